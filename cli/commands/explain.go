package commands

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/cli/internal/ui"
	"github.com/satishbabariya/relquery/cli/internal/watch"
	"github.com/satishbabariya/relquery/query/compiler"
	"github.com/satishbabariya/relquery/query/ir"
)

// Explanation describes the commands a query compiles to
type Explanation struct {
	Provider    string            `yaml:"provider"`
	Key         string            `yaml:"key"`
	Cardinality string            `yaml:"cardinality"`
	Commands    []ExplainedSelect `yaml:"commands"`
	Warnings    []string          `yaml:"warnings,omitempty"`
}

// ExplainedSelect is one select of a compiled query
type ExplainedSelect struct {
	IR         string   `yaml:"ir"`
	SQL        string   `yaml:"sql"`
	Parameters []string `yaml:"parameters,omitempty"`
}

func newExplainCommand(s *settings) *cobra.Command {
	var (
		params    []string
		watchMode bool
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the IR and SQL a query compiles to",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			explain := func() error {
				e, err := s.explain(values)
				if err != nil {
					return err
				}
				return printExplanation(cmd.OutOrStdout(), s.format, e)
			}
			if !watchMode {
				return explain()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			w, err := watch.NewWatcher([]string{s.SchemaPath, s.queryPath}, explain)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&s.queryPath, "query", "q", "", "Path to the JSON query document")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter value as name=value (repeatable)")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Explain again when the schema or query changes")
	return cmd
}

// explain compiles the query of s. Schema and query are read on every call
// so watch mode sees edits.
func (s *settings) explain(values map[string]any) (*Explanation, error) {
	sc, err := s.loadSchema()
	if err != nil {
		return nil, err
	}
	q, err := s.loadQuery()
	if err != nil {
		return nil, err
	}
	opts, err := s.compilerOptions()
	if err != nil {
		return nil, err
	}
	comp, err := compiler.NewCompiler(sc.Model, opts)
	if err != nil {
		return nil, err
	}
	cq, err := comp.Compile(q)
	if err != nil {
		return nil, err
	}
	if s.interactive {
		if err := promptMissing(sortedKeys(cq.Parameters), values); err != nil {
			return nil, err
		}
	}

	e := &Explanation{
		Provider:    comp.Provider(),
		Key:         cq.Key.String(),
		Cardinality: cq.Cardinality.String(),
	}
	cmd, _, err := cq.Command(values)
	if err != nil {
		return nil, err
	}
	e.Commands = append(e.Commands, ExplainedSelect{IR: ir.Print(cq.Select), SQL: cmd.Text, Parameters: cmd.Parameters})
	for i, r := range cq.Related {
		cmd, _, err := cq.RelatedCommand(i, values)
		if err != nil {
			return nil, err
		}
		e.Commands = append(e.Commands, ExplainedSelect{IR: ir.Print(r), SQL: cmd.Text, Parameters: cmd.Parameters})
	}
	for _, w := range cq.Warnings {
		e.Warnings = append(e.Warnings, w.Code+": "+w.Message)
	}
	return e, nil
}

func printExplanation(w io.Writer, format string, e *Explanation) error {
	switch format {
	case "yaml":
		return writeYAML(w, e)
	case "markdown":
		return ui.PrintMarkdown(w, explanationMarkdown(e))
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	ui.PrintSection(w, fmt.Sprintf("%s query (%s)", e.Provider, e.Cardinality))
	for i, c := range e.Commands {
		label := "main"
		if i > 0 {
			label = fmt.Sprintf("related %d", i-1)
		}
		ui.PrintCodeBlock(w, c.SQL, "sql · "+label)
		if len(c.Parameters) > 0 {
			items := make([][2]string, len(c.Parameters))
			for j, p := range c.Parameters {
				items[j] = [2]string{fmt.Sprintf("$%d", j+1), "@" + p}
			}
			ui.PrintList(w, items)
		}
	}
	for _, warning := range e.Warnings {
		ui.PrintWarning(w, "%s", warning)
	}
	return nil
}

func explanationMarkdown(e *Explanation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s query\n\nCardinality: **%s**, key `%s`\n", e.Provider, e.Cardinality, e.Key)
	for i, c := range e.Commands {
		if i == 0 {
			b.WriteString("\n## Main query\n")
		} else {
			fmt.Fprintf(&b, "\n## Related query %d\n", i-1)
		}
		fmt.Fprintf(&b, "\n```sql\n%s\n```\n\n```\n%s\n```\n", c.SQL, c.IR)
		if len(c.Parameters) > 0 {
			fmt.Fprintf(&b, "\nParameters: %s\n", strings.Join(c.Parameters, ", "))
		}
	}
	for _, w := range e.Warnings {
		fmt.Fprintf(&b, "\n> %s\n", w)
	}
	return b.String()
}
