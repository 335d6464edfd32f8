package queue

import (
	"context"
	"log"
	"sync"
	"time"
)

// Handler processes one job and reports the outcome. Handlers run
// concurrently and must tolerate redelivery.
type Handler func(ctx context.Context, job Job) Result

// Worker serves a single queue with a pool of concurrent loops.
type Worker struct {
	queue       *Queue
	handler     Handler
	concurrency int
	popTimeout  time.Duration
}

// NewWorker creates a worker for the queue.
func NewWorker(q *Queue, handler Handler, concurrency int) *Worker {
	if q == nil {
		panic("queue is required")
	}
	if handler == nil {
		panic("handler is required")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		handler:     handler,
		concurrency: concurrency,
		popTimeout:  time.Second,
	}
}

// Run serves jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := w.queue.promote(ctx); err != nil && ctx.Err() == nil {
			log.Printf("%s: promote delayed jobs: %v", w.queue.Name(), err)
		}
		id, err := w.queue.pop(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("%s: pop: %v", w.queue.Name(), err)
			continue
		}
		if id == "" {
			continue
		}
		w.process(ctx, id)
	}
}

// process runs one job through the handler and maps its Result onto queue
// behavior.
func (w *Worker) process(ctx context.Context, id string) {
	q := w.queue
	job, err := q.load(ctx, id)
	if err != nil {
		log.Printf("%s: load job %s: %v", q.Name(), id, err)
		return
	}
	log.Printf(">>> %s: job '%s' started", q.Name(), job.Name)

	res := w.handler(ctx, job)
	switch res.Outcome {
	case OutcomeDone:
		if err := q.rdb.Del(ctx, q.jobKey(job.ID)).Err(); err != nil {
			log.Printf("%s: cleanup job %s: %v", q.Name(), job.ID, err)
		}
		log.Printf(">>> %s: job '%s' succeeded", q.Name(), job.Name)
	case OutcomeRetry:
		again, err := q.reschedule(ctx, job)
		if err != nil {
			log.Printf("%s: reschedule job %s: %v", q.Name(), job.ID, err)
			return
		}
		if again {
			log.Printf(">>> %s: job '%s' errored, retrying: %s", q.Name(), job.Name, res.Message)
			return
		}
		if err := q.finalize(ctx, job, "failed"); err != nil {
			log.Printf("%s: finalize job %s: %v", q.Name(), job.ID, err)
		}
		log.Printf(">>> %s: job '%s' failed after %d attempts: %s", q.Name(), job.Name, job.Attempts+1, res.Message)
	case OutcomeCancel:
		if err := q.finalize(ctx, job, "canceled"); err != nil {
			log.Printf("%s: finalize job %s: %v", q.Name(), job.ID, err)
		}
		log.Printf(">>> %s: job '%s' canceled: %s", q.Name(), job.Name, res.Message)
	case OutcomeIgnore:
		if err := q.rdb.Del(ctx, q.jobKey(job.ID)).Err(); err != nil {
			log.Printf("%s: cleanup job %s: %v", q.Name(), job.ID, err)
		}
		log.Printf(">>> %s: job '%s' failed (ignored): %s", q.Name(), job.Name, res.Message)
	}
}
