// dirtytool inspects and converts dirty database files.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dirtytool",
		Short:         "Inspect and convert dirty database files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newDumpCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newExportCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
