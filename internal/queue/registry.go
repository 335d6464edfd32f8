package queue

import (
	"context"
	"fmt"
	"time"
)

// Queue names served by the settlement engine.
const (
	Installments = "installments"
	Refunds      = "refunds"
	Disputes     = "disputes"
	Treasury     = "treasury"
)

// Registry holds the queue handles built at startup. It is passed by
// reference to anything that enqueues jobs; there is no ambient lookup.
type Registry struct {
	queues map[string]*Queue
}

// NewRegistry builds the standard four queues with the given policy.
func NewRegistry(rdb Redis, opts Options) *Registry {
	r := &Registry{queues: make(map[string]*Queue)}
	for _, name := range []string{Installments, Refunds, Disputes, Treasury} {
		r.queues[name] = New(name, rdb, opts)
	}
	return r
}

// Get returns the named queue, or nil when unknown.
func (r *Registry) Get(name string) *Queue {
	return r.queues[name]
}

// Enqueue adds a job to the named queue.
func (r *Registry) Enqueue(ctx context.Context, queueName, jobName string, payload interface{}, delay time.Duration) error {
	q := r.Get(queueName)
	if q == nil {
		return fmt.Errorf("unknown queue '%s'", queueName)
	}
	return q.Enqueue(ctx, jobName, payload, delay)
}

// Names lists the registered queue names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	return names
}
