// Package dispatch provides serial dispatch queues.
//
// A Queue owns exactly one worker goroutine that runs submitted tasks in
// FIFO order. Code running on the worker can find its queue with Current,
// which is how connections opened inside a task become bound to that queue
// rather than to a bare goroutine.
//
// Goroutine identity comes from github.com/petermattis/goid.
package dispatch
