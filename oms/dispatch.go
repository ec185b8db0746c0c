// Package oms implements the settlement coordinator: the per-owner
// serialized request path that runs the position state machine, persists
// the result, records a settlement intent, and broadcasts the outcome.
//
// Grounded on datapipeline/distributor.go's worker-pool shape (N workers,
// each draining a buffered channel, started/stopped against a
// context.Context) generalized here from quote fan-out to request
// serialization: an owner's raw bytes are hashed with FNV-1a onto a fixed
// worker, so every request for that owner lands on the same goroutine and
// therefore executes strictly in order, while distinct owners spread
// across workers and run in parallel.
package oms

import (
	"context"
	"hash/fnv"
	"runtime"
)

// job is one owner-scoped unit of work submitted to a dispatch worker.
type job struct {
	fn   func() error
	done chan error
}

// dispatcher routes owner-scoped closures onto a fixed pool of workers,
// keeping all work for one owner on a single goroutine.
type dispatcher struct {
	queues []chan job
}

// defaultWorkerCount mirrors runtime.GOMAXPROCS(0), overridable by callers
// that want a fixed worker count regardless of the host's core count.
func defaultWorkerCount() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// newDispatcher starts workerCount goroutines, each draining its own
// buffered queue until ctx is canceled. A workerCount <= 0 uses
// defaultWorkerCount.
func newDispatcher(ctx context.Context, workerCount int, queueDepth int) *dispatcher {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount()
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}
	d := &dispatcher{queues: make([]chan job, workerCount)}
	for i := range d.queues {
		d.queues[i] = make(chan job, queueDepth)
		go d.run(ctx, d.queues[i])
	}
	return d
}

func (d *dispatcher) run(ctx context.Context, q chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q:
			j.done <- j.fn()
		}
	}
}

// submit runs fn on the worker owner hashes to, blocking until fn returns
// or ctx is canceled. Requests against different owners may run
// concurrently; requests against the same owner never do.
func (d *dispatcher) submit(ctx context.Context, owner string, fn func() error) error {
	idx := ownerWorker(owner, len(d.queues))
	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case d.queues[idx] <- j:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ownerWorker hashes owner's raw bytes with FNV-1a onto [0, workerCount).
func ownerWorker(owner string, workerCount int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(owner))
	return int(h.Sum32()) % workerCount
}
