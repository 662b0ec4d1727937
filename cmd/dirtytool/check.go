package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjk/dirty/fileutil"
	"github.com/kjk/dirty/jsonl"
)

type checkStats struct {
	Lines      int
	Records    int
	Tombstones int
	LiveKeys   int
	BadRows    int
	Truncated  bool
}

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Verify a database log and report damage",
		Long: `Replay a database log and report every malformed row and any
truncated trailing record. Exits non-zero when damage is found.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0])
		},
	}
	return cmd
}

func runCheck(cmd *cobra.Command, path string) error {
	f, err := fileutil.OpenMaybeCompressed(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var st checkStats
	live := map[string]bool{}
	r := jsonl.NewReader(bufio.NewReader(f))
	for r.Next() {
		st.Lines++
		if r.RowErr != nil {
			st.BadRows++
			fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %s\n", r.Line, r.RowErr)
			continue
		}
		st.Records++
		if r.Record.IsTombstone() {
			st.Tombstones++
			delete(live, r.Record.Key)
			continue
		}
		live[r.Record.Key] = true
	}
	if err := r.Err(); err != nil {
		return err
	}
	if tail := r.Tail(); tail != "" {
		st.Truncated = true
		fmt.Fprintf(cmd.ErrOrStderr(), "truncated record of %d bytes at end of log\n", len(tail))
	}
	st.LiveKeys = len(live)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "lines:      %d\n", st.Lines)
	fmt.Fprintf(out, "records:    %d\n", st.Records)
	fmt.Fprintf(out, "tombstones: %d\n", st.Tombstones)
	fmt.Fprintf(out, "live keys:  %d\n", st.LiveKeys)
	fmt.Fprintf(out, "bad rows:   %d\n", st.BadRows)

	if st.BadRows > 0 || st.Truncated {
		return fmt.Errorf("%s is damaged: %d bad rows, truncated: %v", path, st.BadRows, st.Truncated)
	}
	return nil
}
