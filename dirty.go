package dirty

import (
	"context"
	"errors"
	"iter"
	"os"
	"sync"
)

// ErrClosed is returned by mutations issued after Close()
var ErrClosed = errors.New("store is closed")

const defaultMaxBatchRecords = 1000

// Store is an embedded, append-only key-value store. Reads are served
// from memory; every mutation is durably recorded by appending a JSON
// line to the log file at Path.
//
// Configure by setting the exported fields, then call [Open].
type Store struct {
	// Path of the database file. Empty means pure in-memory mode:
	// no file is ever created and mutations are not persisted.
	Path string

	// MaxBatchRecords caps how many records are serialized into one
	// physical write. 0 means 1000.
	MaxBatchRecords int

	// ArchiveDir, if set, makes Reset() compress the outgoing log file
	// into this directory instead of just deleting it.
	ArchiveDir string

	// OnError receives asynchronous errors: corrupt rows found during
	// replay, truncated trailing records, archive failures and write
	// failures that have no per-mutation callback to deliver to.
	// If nil, those diagnostics are dropped.
	OnError func(error)

	// OnDrained is called every time the write queue becomes empty
	// after a flush cycle, i.e. everything requested so far is durable.
	OnDrained func()

	mu       sync.Mutex
	idx      *index
	queue    []writeJob
	flushing bool
	file     *os.File
	// gen is bumped by Reset so that an in-flight flush can tell its
	// handle and queue snapshot are stale and must be abandoned
	gen     int
	idle    chan struct{} // closed while queue is empty and no flush runs
	isIdle  bool
	closed  bool
	tailLen int // byte length of the truncated trailing record load() found
}

// Open replays the existing log file (if any) into memory and opens the
// append handle for subsequent writes. Returns the number of live keys
// net of tombstones.
//
// A missing file is the normal "new database" case, not an error. A
// partially corrupted file still loads every record that was fully
// written; each bad row is reported through s.OnError.
func Open(s *Store) (int, error) {
	if s.MaxBatchRecords <= 0 {
		s.MaxBatchRecords = defaultMaxBatchRecords
	}
	s.idx = newIndex()
	s.queue = nil
	s.flushing = false
	s.closed = false
	s.tailLen = 0
	s.isIdle = true
	s.idle = make(chan struct{})
	close(s.idle)

	n, err := s.load()
	if err != nil {
		return n, err
	}
	if s.Path != "" {
		f, err := openAppend(s.Path)
		if err != nil {
			return n, err
		}
		if s.tailLen > 0 {
			// cut the truncated fragment off the file. Discarded means
			// gone: merely newline-terminating it would resurrect a
			// fragment that happens to be complete JSON on the next
			// replay, and leaving it as-is would swallow the first new
			// record appended after it
			fi, err := f.Stat()
			if err != nil {
				f.Close()
				return n, err
			}
			if err := f.Truncate(fi.Size() - int64(s.tailLen)); err != nil {
				f.Close()
				return n, err
			}
			s.tailLen = 0
		}
		s.file = f
	}
	return n, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Set upserts key to val in memory and queues a durability job. It
// returns before the record hits disk; done (optional, can be nil) is
// called with the outcome of the physical write.
//
// A nil val behaves as Remove: Go has no undefined/null distinction, so
// nil is the absent marker and a logged null replays as a tombstone.
func (s *Store) Set(key string, val any, done func(error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.deliverErr(done, ErrClosed)
		return
	}
	if val == nil {
		s.idx.delete(key)
	} else {
		s.idx.put(key, val)
	}
	s.queue = append(s.queue, writeJob{key: key, done: done})
	s.markBusyLocked()
	s.maybeFlushLocked()
	s.mu.Unlock()
}

// Remove deletes key. Equivalent to Set(key, nil, done).
func (s *Store) Remove(key string, done func(error)) {
	s.Set(key, nil, done)
}

// Get returns the current in-memory value for key. It always reflects
// the most recent Set/Remove, regardless of flush timing.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.get(key)
}

// Size returns the number of live keys.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.len()
}

// FirstKey returns the oldest live key (first-ever write order).
func (s *Store) FirstKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.firstKey()
}

// LastKey returns the newest live key.
func (s *Store) LastKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.lastKey()
}

// Keys returns a lazy, restartable iterator over live keys in
// insertion order.
func (s *Store) Keys() iter.Seq[string] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.keysSeq()
}

// ForEach visits every live key in insertion order. Returning false
// from visit stops the iteration early.
func (s *Store) ForEach(visit func(key string, val any) bool) {
	for key := range s.Keys() {
		val, ok := s.Get(key)
		if !ok {
			// removed while iterating
			continue
		}
		if !visit(key, val) {
			return
		}
	}
}

// WaitDrained blocks until the write queue is empty and no flush is in
// flight, i.e. everything requested before the call is durable.
func (s *Store) WaitDrained(ctx context.Context) error {
	s.mu.Lock()
	ch := s.idle
	s.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset destroys all data: in-memory state, the write queue and the log
// file on disk. A fresh append handle is opened at the same path.
// Durability jobs still in flight are abandoned; their callbacks are
// not guaranteed to fire. If ArchiveDir is set the outgoing log is
// compressed there first.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.idx = newIndex()
	s.queue = nil
	s.flushing = false
	s.gen++
	s.markIdleLocked()
	if s.Path == "" {
		return nil
	}
	if s.file != nil {
		// stale flushes hold their own reference and check gen,
		// so closing here can't redirect their writes
		_ = s.file.Close()
		s.file = nil
	}
	if s.ArchiveDir != "" {
		if err := s.archiveLog(); err != nil {
			s.reportErrAsync(err)
		}
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := openAppend(s.Path)
	if err != nil {
		return err
	}
	s.file = f
	return nil
}

// Close flushes everything still queued, waits for it to become
// durable and closes the file handle. The store is unusable after.
func (s *Store) Close() error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		s.maybeFlushLocked()
		if s.isIdle {
			break // keep the lock
		}
		ch := s.idle
		s.mu.Unlock()
		<-ch
	}
	defer s.mu.Unlock()
	s.closed = true
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// markBusyLocked opens a fresh idle channel when work arrives.
func (s *Store) markBusyLocked() {
	if s.isIdle {
		s.isIdle = false
		s.idle = make(chan struct{})
	}
}

func (s *Store) markIdleLocked() {
	if !s.isIdle {
		s.isIdle = true
		close(s.idle)
	}
}

// deliverErr routes an asynchronous failure to the mutation's own
// callback when there is one, otherwise to the store-level OnError.
// Runs the callback on its own goroutine, never inline in the caller.
func (s *Store) deliverErr(done func(error), err error) {
	if done != nil {
		go done(err)
		return
	}
	s.reportErrAsync(err)
}

// reportErr calls OnError. Must not be called with s.mu held.
func (s *Store) reportErr(err error) {
	if err == nil {
		return
	}
	if h := s.OnError; h != nil {
		h(err)
	}
}

// reportErrAsync is reportErr for contexts that hold s.mu: the handler
// runs on its own goroutine so it can safely call back into the store.
func (s *Store) reportErrAsync(err error) {
	if err == nil {
		return
	}
	if h := s.OnError; h != nil {
		go h(err)
	}
}
