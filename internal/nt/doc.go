// Package nt is the application-facing side of the table runtime.
//
// An Instance is one synchronization domain. Default returns the process
// instance, which lives for the whole process; Create returns an owned
// instance that the caller must Close. From an Instance, applications resolve
// Tables (cached, one per normalized path) and Entries (cheap handles), read
// and write values, and register listeners.
//
// LISTENERS:
//
// Listeners come in four independent categories: entry changes, connection
// changes, rpc calls and log messages. A category costs nothing until its
// first listener is registered; that registration starts one worker
// goroutine which blocks in the engine's poll for the category and runs
// callbacks, in the order the engine reports events. Callbacks never run on
// the goroutine that registered them.
//
// Close (or StopListeners) cancels each running worker's poll and waits for
// the worker to exit. A callback must therefore not call Close or
// StopListeners on its own instance.
package nt
