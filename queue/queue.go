package queue

import (
	"context"
	"fmt"

	"comfynodes/logger"
	"comfynodes/nodes"

	"github.com/google/uuid"
)

// DefaultLimit bounds the number of pending jobs.
const DefaultLimit = 64

// New returns a queue executing against registry and env. A limit of zero or
// less uses DefaultLimit.
func New(registry *nodes.Registry, env *nodes.Env, limit int) *Queue {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Queue{
		registry: registry,
		env:      env,
		limit:    limit,
		wake:     make(chan struct{}, 1),
	}
}

func newJob(node string, args nodes.Args) *Job {
	return &Job{
		ID:   uuid.NewString(),
		Node: node,
		Args: args,
		done: make(chan Result, 1),
	}
}

// Enqueue adds an invocation to the end of the queue and reports how many
// jobs are ahead of it, counting the one currently running.
func (q *Queue) Enqueue(node string, args nodes.Args) (*Job, int, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.jobs) >= q.limit {
		return nil, 0, fmt.Errorf("%w: limit is %d", ErrFull, q.limit)
	}
	job := newJob(node, args)
	q.jobs = append(q.jobs, job)

	ahead := len(q.jobs) - 1
	if q.processing != nil {
		ahead++
	}
	q.signal()
	return job, ahead, nil
}

// EnqueueFront adds an invocation ahead of every pending job. It ignores the
// limit.
func (q *Queue) EnqueueFront(node string, args nodes.Args) *Job {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	job := newJob(node, args)
	q.jobs = append([]*Job{job}, q.jobs...)
	q.signal()
	return job
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) dequeue() *Job {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.processing = job
	return job
}

func (q *Queue) finish() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.processing = nil
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.jobs)
}

// Pending returns the node names of the pending jobs in run order.
func (q *Queue) Pending() []string {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	names := make([]string, len(q.jobs))
	for i, job := range q.jobs {
		names[i] = job.Node
	}
	return names
}

// Processing returns the node currently running, or "".
func (q *Queue) Processing() string {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.processing == nil {
		return ""
	}
	return q.processing.Node
}

// Clear drops every pending job. Their waiters receive ErrCleared.
func (q *Queue) Clear() int {
	q.mutex.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.mutex.Unlock()

	for _, job := range jobs {
		job.done <- Result{Err: ErrCleared}
	}
	logger.Info("Queue cleared", "dropped", len(jobs))
	return len(jobs)
}

// Run executes jobs in order until ctx is done. Only one job runs at a time.
func (q *Queue) Run(ctx context.Context) error {
	log := logger.Service("queue")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		job := q.dequeue()
		if job == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
				continue
			}
		}

		log.Debug("Running job", "id", job.ID, "node", job.Node, "pending", q.Len())
		output, err := q.registry.Invoke(ctx, q.env, job.Node, job.Args)
		q.finish()
		job.done <- Result{Output: output, Err: err}
	}
}

// Wait blocks until the job has run or ctx is done.
func (j *Job) Wait(ctx context.Context) (nodes.Output, error) {
	select {
	case res := <-j.done:
		return res.Output, res.Err
	case <-ctx.Done():
		return nodes.Output{}, ctx.Err()
	}
}
