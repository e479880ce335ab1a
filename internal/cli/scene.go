package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/domainstack/pkg/align"
	dsio "github.com/matzehuels/domainstack/pkg/io"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/pipeline"
	"github.com/matzehuels/domainstack/pkg/scene"
	"github.com/matzehuels/domainstack/pkg/units"
)

// sceneCommand creates the scene command group.
func (c *CLI) sceneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Build a composition incrementally",
		Long: `Build a composition incrementally.

A scene keeps the layers added to it across invocations. The first layer
added becomes the scene's reference; later layers are placed against it, or
against the union of all layers in bounds mode.

Scenes are stored under the XDG config directory, or in MongoDB when
DOMAINSTACK_MONGO_URI is set.`,
	}

	cmd.AddCommand(c.sceneNewCommand())
	cmd.AddCommand(c.sceneAddCommand())
	cmd.AddCommand(c.sceneShowCommand())
	cmd.AddCommand(c.sceneModeCommand())
	cmd.AddCommand(c.sceneRangeCommand())
	cmd.AddCommand(c.sceneResetCommand())
	cmd.AddCommand(c.sceneListCommand())
	cmd.AddCommand(c.sceneDeleteCommand())

	return cmd
}

// withScene opens the store, loads the scene named or identified by ref,
// runs fn and saves the scene if fn reports a change.
func (c *CLI) withScene(ctx context.Context, ref string, fn func(*scene.Scene) (bool, error)) error {
	st, err := c.newStore(ctx)
	if err != nil {
		return fmt.Errorf("open scene store: %w", err)
	}
	defer st.Close()

	sc, err := findScene(ctx, st, ref)
	if err != nil {
		return err
	}
	changed, err := fn(sc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := st.Put(ctx, sc); err != nil {
		return fmt.Errorf("save scene: %w", err)
	}
	return nil
}

func findScene(ctx context.Context, st scene.Store, ref string) (*scene.Scene, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return st.Get(ctx, ref)
	}
	return scene.FindByName(ctx, st, ref)
}

func (c *CLI) sceneNewCommand() *cobra.Command {
	var unit string
	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create an empty scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return fmt.Errorf("open scene store: %w", err)
			}
			defer st.Close()

			sc, err := scene.New(args[0], units.Unit(unit))
			if err != nil {
				return err
			}
			if err := st.Put(ctx, sc); err != nil {
				return fmt.Errorf("save scene: %w", err)
			}
			printSuccess("Created scene %s", StyleHighlight.Render(sc.Name))
			printKeyValue("ID", sc.ID)
			printKeyValue("Unit", string(sc.Unit))
			printNewline()
			printNextStep("Add layers", "domainstack scene add "+sc.Name+" description.json")
			return nil
		},
	}
	cmd.Flags().StringVar(&unit, "unit", string(pipeline.DefaultUnit), "unit the scene bounds are tracked in")
	return cmd
}

func (c *CLI) sceneAddCommand() *cobra.Command {
	var (
		noCache  bool
		inMemory bool
	)
	opts := pipeline.Options{}
	opts.SetDefaults()

	cmd := &cobra.Command{
		Use:   "add [scene] [description]",
		Short: "Sample a description and add its layers to a scene",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			desc, err := dsio.ImportDescription(args[1])
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, noCache, inMemory)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			logSampled := timed(c.Logger, "sampled description")
			spinner := newSpinnerWithContext(ctx, "Sampling selections...", sampleTotal(desc))
			defer spinner.Track()()
			spinner.Start()
			defer spinner.Stop()

			sampled, err := runner.Sample(ctx, desc, opts)
			if err != nil {
				spinner.StopWithError("Sampling failed")
				return err
			}

			var (
				samples []layer.Spatial
				sources []scene.Source
			)
			for _, sm := range sampled {
				for i, f := range sm.Selection.FieldList() {
					samples = append(samples, sm.Layers[i])
					sources = append(sources, scene.Source{Dataset: sm.Path, Kind: sm.Selection.Kind(), Field: f})
				}
			}
			logSampled("layers", len(samples))
			spinner.SetMessage(fmt.Sprintf("Placing %d layers...", len(samples)))

			return c.withScene(ctx, args[0], func(sc *scene.Scene) (bool, error) {
				_, warnings, err := sc.Add(samples, sources...)
				spinner.Stop()
				if err != nil {
					return false, err
				}
				for _, w := range warnings {
					printWarning("%s", w)
				}
				printSuccess("Added %d layers to %s", len(samples), StyleHighlight.Render(sc.Name))
				printScene(sc)
				return true, nil
			})
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&inMemory, "in-memory-cache", false, "keep loaded datasets in memory for the run")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "j", opts.Concurrency, "selections sampled in parallel")
	return cmd
}

func (c *CLI) sceneShowCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [scene]",
		Short: "Show the layers of a scene and their placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withScene(cmd.Context(), args[0], func(sc *scene.Scene) (bool, error) {
				if asJSON {
					return false, dsio.WriteExport(sceneExport(sc), os.Stdout)
				}
				printKeyValue("Scene", StyleHighlight.Render(sc.Name))
				printKeyValue("Mode", string(sc.Mode))
				printKeyValue("Updated", sc.UpdatedAt.Local().Format(time.DateTime))
				printScene(sc)
				return false, nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the placement export as JSON")
	return cmd
}

func (c *CLI) sceneModeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "mode [scene] [reference|bounds]",
		Short:     "Switch a scene between reference and bounds placement",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(align.ModeReference), string(align.ModeBounds)},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := align.ParseMode(args[1])
			if err != nil {
				return err
			}
			return c.withScene(cmd.Context(), args[0], func(sc *scene.Scene) (bool, error) {
				if err := sc.SetMode(mode); err != nil {
					return false, err
				}
				printSuccess("Scene %s now uses %s placement", StyleHighlight.Render(sc.Name), mode)
				printScene(sc)
				return true, nil
			})
		},
	}
}

func (c *CLI) sceneRangeCommand() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "range [scene] [layer...]",
		Short: "Print the combined data range of layers",
		Long: `Print the combined data range of layers.

With no layer names every layer of the scene is included. With --apply the
range is stored as the contrast limits of each included layer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args[1:]
			return c.withScene(cmd.Context(), args[0], func(sc *scene.Scene) (bool, error) {
				if apply {
					lim, err := sc.NormalizeColorLimits(names...)
					if err != nil {
						return false, err
					}
					printSuccess("Set contrast limits to %s", formatRange(lim[0], lim[1]))
					return true, nil
				}
				lo, hi, err := sc.DataRange(names...)
				if err != nil {
					return false, err
				}
				fmt.Println(formatRange(lo, hi))
				return false, nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "store the range as contrast limits")
	return cmd
}

func (c *CLI) sceneResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [scene]",
		Short: "Remove every layer and the reference from a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withScene(cmd.Context(), args[0], func(sc *scene.Scene) (bool, error) {
				if err := sc.Reset(); err != nil {
					return false, err
				}
				printSuccess("Reset scene %s", StyleHighlight.Render(sc.Name))
				return true, nil
			})
		},
	}
}

func (c *CLI) sceneListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scenes, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return fmt.Errorf("open scene store: %w", err)
			}
			defer st.Close()

			all, err := st.List(ctx)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				printInfo("No scenes")
				return nil
			}
			rows := make([][]string, len(all))
			for i, s := range all {
				rows[i] = []string{s.Name, fmt.Sprint(s.Layers), s.UpdatedAt.Local().Format(time.DateTime), s.ID}
			}
			fmt.Println(table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
				Headers("Scene", "Layers", "Updated", "ID").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return lipgloss.NewStyle().Foreground(colorGray).Bold(true)
					}
					if col == 3 {
						return StyleDim
					}
					return StyleValue
				}).
				Render())
			return nil
		},
	}
}

func (c *CLI) sceneDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [scene]",
		Short: "Delete a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return fmt.Errorf("open scene store: %w", err)
			}
			defer st.Close()

			sc, err := findScene(ctx, st, args[0])
			if err != nil {
				return err
			}
			if err := st.Delete(ctx, sc.ID); err != nil {
				return err
			}
			printSuccess("Deleted scene %s", StyleHighlight.Render(sc.Name))
			return nil
		},
	}
}

// sceneExport describes the current placement of every scene record.
func sceneExport(sc *scene.Scene) dsio.Export {
	e := dsio.Export{Mode: sc.Mode, Bounds: sc.Bounds, Layers: make([]dsio.Placement, len(sc.Records))}
	if sc.Mode == align.ModeReference && sc.Reference != nil && len(sc.Records) > 0 {
		e.Reference = &dsio.ReferenceInfo{Index: 0, Name: sc.Records[0].Name, Frame: *sc.Reference}
	}
	for i, r := range sc.Records {
		rng := r.DataRange
		e.Layers[i] = dsio.Placement{
			Name:           r.Name,
			Type:           layer.TypeImage,
			Shape:          r.Shape,
			Scale:          r.Scale,
			Translate:      r.Translate,
			DataRange:      &rng,
			IsLog:          r.IsLog,
			ContrastLimits: r.ContrastLimits,
		}
	}
	return e
}

func printScene(sc *scene.Scene) {
	if sc.Len() == 0 {
		printInfo("Scene is empty")
		return
	}
	e := sceneExport(sc)
	ref := -1
	if e.Reference != nil {
		ref = e.Reference.Index
	}
	fmt.Println(placementTable(e.Layers, ref))
}

func formatRange(lo, hi float64) string {
	return StyleNumber.Render(fmt.Sprintf("%g", lo)) + StyleDim.Render(" … ") + StyleNumber.Render(fmt.Sprintf("%g", hi))
}
