// Package store persists the full packet flow to the on-disk database
// without adding latency to the hot path.
//
// A Worker owns a dedicated goroutine and a FIFO queue. Submit enqueues
// and returns immediately; the worker drains whatever has accumulated
// and writes it as a single transaction, so bursts collapse into one
// commit. Flush inserts a marker and waits until the worker has passed
// it, giving callers a completeness barrier for reads against the
// database. A write failure drops the affected batch and is logged; the
// worker itself keeps running.
//
// The queue is unbounded by default. A queue limit can be configured
// for memory-constrained deployments, in which case submissions beyond
// the limit are dropped and counted.
package store
