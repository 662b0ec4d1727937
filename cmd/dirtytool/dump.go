package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/toon-format/toon-go"

	"github.com/kjk/dirty/fileutil"
	"github.com/kjk/dirty/jsonl"
)

type dumpOptions struct {
	Pretty bool
	Format string // "json" or "toon"
}

func newDumpCommand() *cobra.Command {
	opts := &dumpOptions{}
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print every record of a database log",
		Long: `Print every record of a database log, one per line.

The file may be a live database or a compressed archive (.gz, .zst, .br).
Malformed rows are reported on stderr and skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "pretty-print each record")
	cmd.Flags().StringVar(&opts.Format, "format", "json", "output format: json or toon")
	return cmd
}

func runDump(cmd *cobra.Command, opts *dumpOptions, path string) error {
	if opts.Format != "json" && opts.Format != "toon" {
		return fmt.Errorf("unknown format %q", opts.Format)
	}
	f, err := fileutil.OpenMaybeCompressed(path)
	if err != nil {
		return err
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	r := jsonl.NewReader(bufio.NewReader(f))
	for r.Next() {
		if r.RowErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %s\n", r.Line, r.RowErr)
			continue
		}
		if err := dumpRecord(out, opts, r.Record); err != nil {
			return err
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	if tail := r.Tail(); tail != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "truncated record of %d bytes at end of log\n", len(tail))
	}
	return nil
}

func dumpRecord(out io.Writer, opts *dumpOptions, rec *jsonl.Record) error {
	if opts.Format == "toon" {
		val, err := rec.Value()
		if err != nil {
			return err
		}
		m := map[string]any{"key": rec.Key}
		if !rec.IsTombstone() {
			m["val"] = val
		}
		d, err := toon.Marshal(m)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", d)
		return err
	}
	d, err := rec.Marshal()
	if err != nil {
		return err
	}
	if opts.Pretty {
		d = pretty.Pretty(d)
	}
	_, err = out.Write(d)
	return err
}
