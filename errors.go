package dirty

import "fmt"

// RowError describes a single malformed line found while replaying the
// log: unparseable JSON, a record without a 'key' field, or an
// unexpected empty line. The row is skipped and replay continues.
type RowError struct {
	Line int    // 1-based line number in the log file
	Data string // the offending line, without trailing newline
	Err  error  // underlying parse error
}

func (e *RowError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("corrupt row at line %d", e.Line)
	}
	return fmt.Sprintf("corrupt row at line %d: %s", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// TailError means the log ended with a non-newline-terminated fragment,
// implying the previous process crashed mid-write. The fragment is
// discarded; all complete records before it stay loaded.
type TailError struct {
	Data string // the discarded fragment
}

func (e *TailError) Error() string {
	return fmt.Sprintf("truncated record of %d bytes at end of log", len(e.Data))
}
