// Package dirty is an embedded, append-only key-value store: the whole
// dataset lives in memory for reads and every mutation is durably
// recorded by appending a JSON line to a log file.
//
// It targets applications that need simple, crash-recoverable
// persistence without a database engine. There are no secondary
// indexes, no range queries, no transactions and no compaction: the
// log only grows, except on an explicit Reset.
//
// # Log format
//
// One record per line, each line a standalone JSON object:
//
//	{"key":"a","val":{"x":1}}
//	{"key":"a"}
//
// A record without "val" (or with null) is a tombstone deleting the
// key. Replaying the log in order reconstructs the exact state as of
// the last fully-written record; a truncated trailing record from a
// crash is dropped, not fatal.
//
// # Basic usage
//
//	s := &dirty.Store{Path: "app.db"}
//	n, err := dirty.Open(s)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s.Set("user:1", map[string]any{"name": "John"}, nil)
//	v, ok := s.Get("user:1") // immediately visible
//	s.WaitDrained(ctx)       // now it's also durable
//
// Set and Remove update memory synchronously and return before the
// disk write happens. Durability is observed per mutation via the
// optional callback, or globally via OnDrained / WaitDrained.
//
// # Thread safety
//
// The Store is safe for concurrent use. All public methods are
// protected by a mutex; writes are flushed by a single background
// goroutine in the order the mutations were issued.
package dirty
