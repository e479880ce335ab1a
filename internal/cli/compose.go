package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	dsio "github.com/matzehuels/domainstack/pkg/io"
	"github.com/matzehuels/domainstack/pkg/pipeline"
	"github.com/matzehuels/domainstack/pkg/units"
)

// composeFlags holds flags shared by compose and pick.
type composeFlags struct {
	output      string
	noCache     bool
	inMemory    bool
	refresh     bool
	sceneCenter []float64
	centerUnit  string
}

func (f *composeFlags) register(cmd *cobra.Command, opts *pipeline.Options) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "placement export file (default: <input>.placement.json)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.inMemory, "in-memory-cache", false, "keep loaded datasets in memory for the run")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute even if a cached composition exists")

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", opts.Mode, "placement mode: reference (default), bounds")
	cmd.Flags().StringVar(&opts.Policy, "policy", opts.Policy, "reference policy: first_in_list (default), smallest_volume")
	cmd.Flags().StringVar(&opts.Unit, "unit", opts.Unit, "working unit in bounds mode")
	cmd.Flags().BoolVar(&opts.PromoteSlices, "promote-slices", false, "promote 2-D slices to 3-D before placement")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "j", opts.Concurrency, "selections sampled in parallel")
	cmd.Flags().Float64SliceVar(&f.sceneCenter, "scene-center", nil, "bounds-mode translation origin, e.g. 0.5,0.5,0.5")
	cmd.Flags().StringVar(&f.centerUnit, "scene-center-unit", string(pipeline.DefaultUnit), "unit of --scene-center")
}

// apply copies flag values that need conversion into opts.
func (f *composeFlags) apply(opts *pipeline.Options) {
	if len(f.sceneCenter) > 0 {
		c := units.NewVector(units.Unit(f.centerUnit), f.sceneCenter...)
		opts.SceneCenter = &c
	}
	opts.Refresh = f.refresh
}

func (f *composeFlags) outputPath(input string) string {
	if f.output != "" {
		return f.output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".placement.json"
}

// composeCommand creates the compose command.
func (c *CLI) composeCommand() *cobra.Command {
	var flags composeFlags
	opts := pipeline.Options{}
	opts.SetDefaults()

	cmd := &cobra.Command{
		Use:   "compose [description]",
		Short: "Sample a description and place every layer on one canvas",
		Long: `Sample a description and place every layer on one canvas.

The description (JSON, or TOML by extension) names datasets and timeseries and
the regions and slices to sample from each. In reference mode every layer is
placed relative to one reference layer; in bounds mode every layer is placed
relative to the union of all domains at the finest grid width.

The placement of every layer is written as JSON. Sampled arrays and
compositions are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(&opts)
			if err := opts.Validate(); err != nil {
				return err
			}
			return c.runCompose(cmd.Context(), args[0], opts, flags)
		},
	}
	flags.register(cmd, &opts)
	return cmd
}

// runCompose samples and places the description and writes the export.
func (c *CLI) runCompose(ctx context.Context, input string, opts pipeline.Options, flags composeFlags) error {
	desc, err := dsio.ImportDescription(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, flags.noCache, flags.inMemory)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Sampling selections...", sampleTotal(desc))
	defer spinner.Track()()
	spinner.Start()

	export, cacheHit, err := runner.ExecuteExport(ctx, desc, opts)
	if err != nil {
		spinner.StopWithError("Composition failed")
		return fmt.Errorf("compose %s: %w", input, err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return writeExport(export, flags.outputPath(input), 0, cacheHit)
}

func writeExport(export dsio.Export, path string, stacks int, cached bool) error {
	if err := dsio.ExportJSON(export, path); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}

	ref := -1
	if export.Reference != nil {
		ref = export.Reference.Index
	}

	printSuccess("Composed %s", StyleHighlight.Render(string(export.Mode)))
	fmt.Println(placementTable(export.Layers, ref))
	printFile(path)
	printStats(len(export.Layers), stacks, cached)
	return nil
}
