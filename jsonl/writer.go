package jsonl

import (
	"bytes"
	"encoding/json"
	"io"
)

// Writer accumulates serialized records in a buffer so that many
// records can be handed to the OS in one physical write.
type Writer struct {
	buf bytes.Buffer
	n   int
}

// Append serializes val under key and adds the line to the batch.
// A nil val is written as a tombstone.
func (w *Writer) Append(key string, val any) error {
	rec := Record{Key: key}
	if val != nil {
		d, err := json.Marshal(val)
		if err != nil {
			return err
		}
		rec.Val = d
	}
	line, err := rec.Marshal()
	if err != nil {
		return err
	}
	w.buf.Write(line)
	w.n++
	return nil
}

// Count returns the number of records appended since the last Reset.
func (w *Writer) Count() int {
	return w.n
}

// Len returns the number of buffered bytes.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// WriteTo writes the batch to dst in a single call.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(w.buf.Bytes())
	return int64(n), err
}

// Reset empties the batch for re-use.
// most batches are small. if the buffer got big, don't keep it
// around (unbounded cache is a mem leak)
func (w *Writer) Reset() {
	w.n = 0
	if w.buf.Cap() > 1024*1024 {
		w.buf = bytes.Buffer{}
		return
	}
	w.buf.Reset()
}
