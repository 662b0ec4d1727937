package dirty

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kjk/dirty/atomicfile"
	"github.com/tidwall/pretty"
)

// ExportJSON writes the live state as one pretty-printed JSON object
// to path, keys in insertion order. The file is written atomically so
// a crash mid-export can't leave a truncated snapshot.
//
// The export reflects the in-memory state at the time of the call,
// which may be ahead of what the log has durably recorded.
func (s *Store) ExportJSON(path string) error {
	s.mu.Lock()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.idx.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err == nil {
			var v []byte
			v, err = json.Marshal(s.idx.m[key])
			if err == nil {
				buf.Write(k)
				buf.WriteByte(':')
				buf.Write(v)
			}
		}
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to serialize key %q: %w", key, err)
		}
	}
	buf.WriteByte('}')
	s.mu.Unlock()

	f, err := atomicfile.New(path)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = f.Write(pretty.Pretty(buf.Bytes())); err != nil {
		return err
	}
	return f.Close()
}
