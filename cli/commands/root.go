// Package commands implements the relquery CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/relquery/cli/internal/config"
	"github.com/satishbabariya/relquery/cli/internal/version"
	"github.com/satishbabariya/relquery/internal/debug"
)

// settings are the configuration values after flags are applied
type settings struct {
	config.Config
	queryPath   string
	format      string
	interactive bool
}

// NewRootCommand creates the relquery command tree
func NewRootCommand() *cobra.Command {
	s := &settings{}
	root := &cobra.Command{
		Use:           "relquery",
		Short:         "Compile and run object queries against relational databases",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("schema", "", "Path to the Prisma schema (default from config)")
	flags.String("dialect", "", "Database provider: postgresql, mysql, sqlite or sqlserver")
	flags.String("nulls", "", "Null semantics: relational or emulated")
	flags.Bool("split", false, "Load included collections with separate queries")
	flags.Bool("detailed-errors", false, "Report the property and column of materialization errors")
	flags.String("server-version", "", "Database server version used to gate SQL features")
	flags.Bool("debug", false, "Enable debug logging")
	flags.StringVarP(&s.format, "format", "o", "text", "Output format: text, yaml or markdown")
	flags.BoolVarP(&s.interactive, "interactive", "i", false, "Prompt for parameters missing from --param")

	root.AddCommand(newExplainCommand(s))
	root.AddCommand(newRunCommand(s))
	root.AddCommand(newVersionCommand(s))
	return root
}

// Execute runs the CLI
func Execute() error {
	return NewRootCommand().Execute()
}

// load reads the configuration and applies the flags that were set
func (s *settings) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	s.Config = *cfg

	flags := cmd.Flags()
	if flags.Changed("schema") {
		s.SchemaPath, _ = flags.GetString("schema")
	}
	if flags.Changed("dialect") {
		s.Provider, _ = flags.GetString("dialect")
	}
	if flags.Changed("nulls") {
		s.NullSemantics, _ = flags.GetString("nulls")
	}
	if flags.Changed("split") {
		s.SplitQuery, _ = flags.GetBool("split")
	}
	if flags.Changed("detailed-errors") {
		s.DetailedErrors, _ = flags.GetBool("detailed-errors")
	}
	if flags.Changed("server-version") {
		s.ServerVersion, _ = flags.GetString("server-version")
	}
	if flags.Changed("debug") {
		s.Debug, _ = flags.GetBool("debug")
	}
	debug.Init(s.Debug)
	return nil
}
