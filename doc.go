// Package stagepool implements a fixed-size worker(goroutine) pool designed to
// serve as one stage of a linear processing pipeline: items are dispatched to
// workers in round-robin order, and on shutdown each stage signals the next one
// only after all of its own workers have fully stopped.
package stagepool
