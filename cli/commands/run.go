package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/cli/internal/ui"
	"github.com/satishbabariya/relquery/runtime/client"
)

func newRunCommand(s *settings) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a query against the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			sc, err := s.loadSchema()
			if err != nil {
				return err
			}
			q, err := s.loadQuery()
			if err != nil {
				return err
			}
			if s.DatabaseURL == "" {
				return fmt.Errorf("no database url: set database_url, DATABASE_URL or the schema datasource url")
			}
			copts, err := s.compilerOptions()
			if err != nil {
				return err
			}

			opts := []client.Option{client.WithNullSemantics(copts.NullSemantics)}
			if s.SplitQuery {
				opts = append(opts, client.WithSplitQuery())
			}
			if s.DetailedErrors {
				opts = append(opts, client.WithDetailedErrors())
			}
			if s.ServerVersion != "" {
				opts = append(opts, client.WithServerVersion(s.ServerVersion))
			}
			c, err := client.New(s.Provider, s.DatabaseURL, sc.Model, opts...)
			if err != nil {
				return err
			}
			defer c.Disconnect(cmd.Context())
			if s.interactive {
				cq, err := c.Compiler().Compile(q)
				if err != nil {
					return err
				}
				if err := promptMissing(sortedKeys(cq.Parameters), values); err != nil {
					return err
				}
			}

			res, err := c.Result(cmd.Context(), q, values)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), s.format, res)
		},
	}
	cmd.Flags().StringVarP(&s.queryPath, "query", "q", "", "Path to the JSON query document")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter value as name=value (repeatable)")
	return cmd
}

// printResult prints a sequence of rows as a table and anything else as a
// value
func printResult(w io.Writer, format string, res any) error {
	if format == "yaml" {
		return writeYAML(w, res)
	}
	rows, ok := res.([]any)
	if !ok {
		if m, isMap := res.(map[string]any); isMap {
			rows = []any{m}
		} else {
			_, err := fmt.Fprintln(w, formatCell(res))
			return err
		}
	}
	if len(rows) == 0 {
		ui.PrintWarning(w, "no results")
		return nil
	}

	var headers []string
	if m, ok := rows[0].(map[string]any); ok {
		headers = sortedKeys(m)
	} else {
		headers = []string{"value"}
	}
	table := make([][]string, len(rows))
	for i, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			table[i] = []string{formatCell(r)}
			continue
		}
		table[i] = make([]string, len(headers))
		for j, h := range headers {
			table[i][j] = formatCell(m[h])
		}
	}
	if err := ui.PrintTable(w, headers, table); err != nil {
		return err
	}
	ui.PrintSuccess(w, "%d rows", len(rows))
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []any:
		return fmt.Sprintf("[%d items]", len(x))
	case map[string]any:
		return fmt.Sprintf("{%d fields}", len(x))
	}
	return fmt.Sprint(v)
}
