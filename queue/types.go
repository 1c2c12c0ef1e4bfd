package queue

import (
	"errors"
	"sync"

	"comfynodes/nodes"
)

var (
	ErrFull    = errors.New("queue: full")
	ErrCleared = errors.New("queue: job removed before it ran")
)

// Result is the outcome of one job.
type Result struct {
	Output nodes.Output
	Err    error
}

// Job is one pending node invocation.
type Job struct {
	ID   string
	Node string
	Args nodes.Args
	done chan Result
}

// Queue runs node invocations one at a time against a shared environment.
// Nodes mutate Env.Store without locking, so everything that touches an
// environment goes through a single queue.
type Queue struct {
	registry *nodes.Registry
	env      *nodes.Env
	limit    int

	mutex      sync.Mutex
	jobs       []*Job
	processing *Job
	wake       chan struct{}
}
