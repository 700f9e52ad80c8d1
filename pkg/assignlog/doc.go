// Package assignlog provides assignment logger collaborators: durable sinks
// that consume finalized assignment records produced by the assignment
// service.
//
// The engine treats the logger as a pure pass-through. It never retries or
// buffers on sink failure; a failed write is surfaced to the caller as an
// *Error distinct from the assignment result, so the caller decides whether
// logging failure is fatal. The already-computed assignment is never
// invalidated by a logging failure.
//
// Two sinks are provided: an in-memory sink for tests and a SQLite sink for
// durable single-node logging, plus retention pruning with an optional cron
// schedule.
package assignlog
