package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjk/dirty"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "export <db> <out.json>",
		Short:         "Export the live state of a database as pretty-printed JSON",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], args[1])
		},
	}
	return cmd
}

func runExport(cmd *cobra.Command, dbPath, outPath string) error {
	s := &dirty.Store{
		Path: dbPath,
		OnError: func(err error) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", err)
		},
	}
	n, err := dirty.Open(s)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.ExportJSON(outPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d keys to %s\n", n, outPath)
	return nil
}
