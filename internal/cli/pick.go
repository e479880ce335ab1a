package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/domainstack/pkg/align"
	"github.com/matzehuels/domainstack/pkg/errors"
	dsio "github.com/matzehuels/domainstack/pkg/io"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/pipeline"
	"github.com/matzehuels/domainstack/pkg/units"
)

// List styles
var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// ReferenceListModel - Interactive reference layer selection
// =============================================================================

// ReferenceListModel is the bubbletea model for choosing the layer every
// other layer is placed against.
type ReferenceListModel struct {
	Samples  []layer.Spatial
	Cursor   int
	Selected int
	Height   int
	Offset   int
}

// NewReferenceListModel creates a new reference list model. Selected is -1
// until a layer is chosen.
func NewReferenceListModel(samples []layer.Spatial) ReferenceListModel {
	return ReferenceListModel{
		Samples:  samples,
		Selected: -1,
		Height:   15,
	}
}

func (m ReferenceListModel) Init() tea.Cmd {
	return nil
}

func (m ReferenceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Samples)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if m.Samples[m.Cursor].Domain == nil {
				return m, nil
			}
			m.Selected = m.Cursor
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m ReferenceListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Reference Layer"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Samples))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		s := m.Samples[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		dataset, _ := metadataExtra(s, "dataset")
		row := []string{cursor, s.Kwargs.Name(), dataset, formatInts(s.Data.Shape()), "—", "—"}
		if d := s.Domain; d != nil {
			row[4] = formatVector(d.LeftEdge)
			row[5] = formatVector(d.GridWidth)
		}
		rows = append(rows, row)
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Layer", "Dataset", "Shape", "Left edge", "Cell width").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col >= 4 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Samples))))

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func metadataExtra(s layer.Spatial, key string) (string, bool) {
	md, ok := s.Kwargs.Metadata()
	if !ok || md.Extra == nil {
		return "", false
	}
	v, ok := md.Extra[key]
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

func formatVector(v units.Vector) string {
	return formatFloats(v.Value, "") + " " + string(v.Unit)
}

// =============================================================================
// Command
// =============================================================================

// pickCommand creates the pick command.
func (c *CLI) pickCommand() *cobra.Command {
	var flags composeFlags
	opts := pipeline.Options{}
	opts.SetDefaults()

	cmd := &cobra.Command{
		Use:   "pick [description]",
		Short: "Compose a description with an interactively chosen reference layer",
		Long: `Compose a description with an interactively chosen reference layer.

pick samples the description like compose, then lists every layer to be
placed and anchors reference-mode placement to the one you select.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(&opts)
			if err := opts.Validate(); err != nil {
				return err
			}
			return c.runPick(cmd.Context(), args[0], opts, flags)
		},
	}
	flags.register(cmd, &opts)
	return cmd
}

func (c *CLI) runPick(ctx context.Context, input string, opts pipeline.Options, flags composeFlags) error {
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

	opts.ChooseReference = func(samples []layer.Spatial) (int, error) {
		spinner.Stop()
		final, err := tea.NewProgram(NewReferenceListModel(samples), tea.WithContext(ctx)).Run()
		if err != nil {
			return 0, err
		}
		m := final.(ReferenceListModel)
		if m.Selected < 0 {
			return 0, errors.New(errors.ErrCodeInvalidInput, "no reference layer selected")
		}
		return m.Selected, nil
	}

	res, err := runner.Execute(ctx, desc, opts)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("compose %s: %w", input, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	export := dsio.NewExport(align.Mode(opts.Mode), res.Composition, res.Layers)
	return writeExport(export, flags.outputPath(input), res.Stats.Stacks, false)
}
