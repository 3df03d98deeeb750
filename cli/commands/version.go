package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/cli/internal/version"
)

func newVersionCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if s.format == "yaml" {
				return writeYAML(cmd.OutOrStdout(), info)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
}
