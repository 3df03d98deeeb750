// Command relquery compiles object queries to SQL and runs them.
package main

import (
	"os"

	"github.com/satishbabariya/relquery/cli/commands"
	"github.com/satishbabariya/relquery/cli/internal/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
