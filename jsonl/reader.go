package jsonl

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var errMalformedEmptyLine = errors.New("unexpected empty line")

// Reader reads records from a newline-delimited JSON log, one line at
// a time. Malformed lines don't stop the reader: after Next returns
// true, either Record holds a parsed record or RowErr says why the
// line was skipped. This is what lets a crashed-on database still load
// everything that was fully written.
type Reader struct {
	r *bufio.Reader

	// Record is valid after Next() returned true with RowErr == nil.
	// It's over-written by the next Next().
	Record *Record

	// RowErr is set when the current line could not be parsed
	// (bad JSON, no 'key' field, empty line). It never stops iteration.
	RowErr error

	// Raw is the current line without the trailing newline.
	Raw string

	// Line is the 1-based number of the current line.
	Line int

	err  error
	tail string
	done bool
}

// NewReader creates a new reader
func NewReader(r *bufio.Reader) *Reader {
	return &Reader{
		r:      r,
		Record: &Record{},
	}
}

// Next advances to the next line. Returns false when the input is
// exhausted or a read error happened (check Err). A malformed line
// still returns true, with RowErr set.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	r.RowErr = nil

	line, err := r.r.ReadString('\n')
	if err == io.EOF {
		r.done = true
		if line != "" {
			// incomplete final record, typically from a crash mid-write.
			// recorded as Tail, not returned as a record
			r.tail = line
		}
		return false
	}
	if err != nil {
		r.err = err
		return false
	}

	r.Line++
	line = strings.TrimSuffix(line, "\n")
	r.Raw = line
	if line == "" {
		// a healthy log never contains empty lines
		r.RowErr = errMalformedEmptyLine
		return true
	}
	if _, err := UnmarshalRecord([]byte(line), r.Record); err != nil {
		r.RowErr = err
		return true
	}
	return true
}

// Err returns the read error that stopped iteration, if any.
// io.EOF is swallowed.
func (r *Reader) Err() error {
	return r.err
}

// Tail returns the trailing non-newline-terminated fragment, if the
// input ended mid-record. Empty for a cleanly terminated log.
func (r *Reader) Tail() string {
	return r.tail
}
