package jsonl

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one logged mutation: a key plus either a value (upsert)
// or no value (tombstone, i.e. deletion of the key).
type Record struct {
	Key string          `json:"key"`
	Val json.RawMessage `json:"val,omitempty"`
}

var jsonNull = []byte("null")

// IsTombstone returns true if the record denotes deletion of Key.
// A missing "val" and an explicit null both count: JSON has no way
// to distinguish undefined from null after a round-trip.
func (r *Record) IsTombstone() bool {
	return len(r.Val) == 0 || bytes.Equal(r.Val, jsonNull)
}

// Value unmarshals the record's value. Returns nil for tombstones.
func (r *Record) Value() (any, error) {
	if r.IsTombstone() {
		return nil, nil
	}
	var v any
	err := json.Unmarshal(r.Val, &v)
	return v, err
}

// Marshal serializes the record as a single newline-terminated JSON line.
// For tombstones the "val" field is omitted entirely.
func (r *Record) Marshal() ([]byte, error) {
	d, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(d, '\n'), nil
}

// UnmarshalRecord parses a single log line (without the trailing newline).
// rec is passed in to allow re-using Record. can be nil
func UnmarshalRecord(d []byte, rec *Record) (*Record, error) {
	if rec == nil {
		rec = &Record{}
	}
	rec.Key = ""
	rec.Val = nil

	// decode into a raw map first so we can tell a missing "key" field
	// from an empty one
	var m map[string]json.RawMessage
	if err := json.Unmarshal(d, &m); err != nil {
		return nil, err
	}
	rawKey, ok := m["key"]
	if !ok {
		return nil, fmt.Errorf("record has no 'key' field: %s", d)
	}
	if err := json.Unmarshal(rawKey, &rec.Key); err != nil {
		// be permissive: non-string scalar keys (numbers, bools) are kept
		// as their literal text
		var scalar any
		if err2 := json.Unmarshal(rawKey, &scalar); err2 != nil {
			return nil, fmt.Errorf("invalid 'key' field: %s", d)
		}
		switch scalar.(type) {
		case float64, bool:
			rec.Key = string(rawKey)
		default:
			return nil, fmt.Errorf("invalid 'key' field: %s", d)
		}
	}
	if rawVal, ok := m["val"]; ok {
		rec.Val = rawVal
	}
	return rec, nil
}
