package dirty

import (
	"bufio"
	"fmt"
	"os"

	"github.com/kjk/dirty/jsonl"
)

// load replays the log file at s.Path into the index and returns the
// net live-key count.
//
// Crash-only recovery: there is no checkpoint or clean-shutdown marker.
// The log replayed in order, with tombstone semantics, reconstructs the
// exact state as of the last fully-written record. Partial trailing
// writes are dropped, corrupt rows are skipped; neither fails the load.
func (s *Store) load() (int, error) {
	if s.Path == "" {
		return 0, nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// new database
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	r := jsonl.NewReader(bufio.NewReader(f))
	for r.Next() {
		if r.RowErr != nil {
			s.reportErr(&RowError{Line: r.Line, Data: r.Raw, Err: r.RowErr})
			continue
		}
		rec := r.Record
		if rec.IsTombstone() {
			s.idx.delete(rec.Key)
			continue
		}
		val, err := rec.Value()
		if err != nil {
			s.reportErr(&RowError{Line: r.Line, Data: r.Raw, Err: err})
			continue
		}
		s.idx.put(rec.Key, val)
	}
	if err := r.Err(); err != nil {
		return s.idx.len(), fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	if tail := r.Tail(); tail != "" {
		s.tailLen = len(tail)
		s.reportErr(&TailError{Data: tail})
	}
	return s.idx.len(), nil
}
