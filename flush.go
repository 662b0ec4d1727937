package dirty

import (
	"fmt"
	"os"

	"github.com/kjk/dirty/jsonl"
)

// writeJob is one queued durability job: the key to log plus an
// optional completion callback. The value is deliberately NOT captured
// here: each batch serializes the value the index holds at the moment
// the batch is built, so the last write for a key wins even when
// several mutations of it were queued before any flush ran.
type writeJob struct {
	key  string
	done func(error)
}

// failedJob is a job whose value could not be serialized. It never
// makes it into a batch; its error is delivered individually.
type failedJob struct {
	done func(error)
	err  error
}

// maybeFlushLocked starts a flush if none is in progress and there is
// queued work. Safe to call repeatedly. s.mu must be held.
func (s *Store) maybeFlushLocked() {
	if s.flushing || len(s.queue) == 0 {
		return
	}
	s.flushing = true
	// the handle and generation are captured here so that a Reset()
	// mid-flush cannot redirect in-flight writes onto the new handle
	go s.flushLoop(s.file, s.gen)
}

// flushLoop drains the queue one batch per cycle until it is empty,
// then clears the flushing flag and signals drained. The serialization
// buffer is reused across cycles. Runs on its own goroutine; at most
// one flushLoop is alive per store generation.
func (s *Store) flushLoop(f *os.File, gen int) {
	var w jsonl.Writer
	for {
		s.mu.Lock()
		if s.gen != gen {
			// the store was reset; this generation's work is abandoned
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.flushing = false
			s.markIdleLocked()
			h := s.OnDrained
			s.mu.Unlock()
			if h != nil {
				h()
			}
			return
		}

		// serialize while holding the lock: records must carry the value
		// the index has right now, not a stale snapshot
		n, dones, failed := s.fillBatchLocked(&w)
		s.mu.Unlock()

		for _, fj := range failed {
			if fj.done != nil {
				fj.done(fj.err)
			} else {
				s.reportErr(fj.err)
			}
		}

		var werr error
		if f != nil && w.Len() > 0 {
			_, werr = w.WriteTo(f)
			if werr != nil {
				werr = fmt.Errorf("failed to append to %s: %w", s.Path, werr)
			}
		}
		// every callback in the batch gets the write's outcome, in
		// enqueue order. A failed batch with no callbacks at all is
		// escalated store-wide instead of being dropped.
		if werr != nil && len(dones) == 0 {
			s.reportErr(werr)
		}
		for _, done := range dones {
			done(werr)
		}
		w.Reset()

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		// drop the jobs just processed. jobs enqueued mid-flush stay
		// for the next cycle
		s.queue = append([]writeJob{}, s.queue[n:]...)
		s.mu.Unlock()
	}
}

// fillBatchLocked serializes jobs from the head of the queue into w,
// at most MaxBatchRecords records, and returns how many jobs were
// consumed, their callbacks in enqueue order and the jobs whose values
// could not be serialized. s.mu must be held.
func (s *Store) fillBatchLocked(w *jsonl.Writer) (int, []func(error), []failedJob) {
	var dones []func(error)
	var failed []failedJob
	n := 0
	for _, job := range s.queue {
		if w.Count() >= s.MaxBatchRecords {
			break
		}
		n++
		// a key missing from the index was removed: log a tombstone
		val, _ := s.idx.get(job.key)
		if err := w.Append(job.key, val); err != nil {
			failed = append(failed, failedJob{
				done: job.done,
				err:  fmt.Errorf("failed to serialize value for key %q: %w", job.key, err),
			})
			continue
		}
		if job.done != nil {
			dones = append(dones, job.done)
		}
	}
	return n, dones, failed
}
