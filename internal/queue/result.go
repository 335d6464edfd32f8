package queue

import "fmt"

// Outcome classifies how the worker should treat a finished job.
type Outcome int

const (
	// OutcomeDone marks the job as succeeded.
	OutcomeDone Outcome = iota
	// OutcomeRetry re-schedules the job after the queue's backoff, until the
	// attempts cap is reached.
	OutcomeRetry
	// OutcomeCancel terminates the job with no redelivery (acting on it
	// would be unsafe, e.g. the installment was canceled).
	OutcomeCancel
	// OutcomeIgnore records the failure but reports the job succeeded, so an
	// impossible state cannot poison the queue.
	OutcomeIgnore
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeRetry:
		return "retry"
	case OutcomeCancel:
		return "canceled"
	case OutcomeIgnore:
		return "ignored"
	}
	return "unknown"
}

// Result is what a job handler returns. Processors decide the retry
// classification explicitly per operation; the worker maps it onto queue
// behavior.
type Result struct {
	Outcome Outcome
	Message string
	Err     error
}

// Done reports plain success.
func Done() Result {
	return Result{Outcome: OutcomeDone}
}

// Retry reports a transient failure the queue should redeliver.
func Retry(err error) Result {
	return Result{Outcome: OutcomeRetry, Message: err.Error(), Err: err}
}

// Retryf reports a transient failure with a formatted message.
func Retryf(format string, args ...interface{}) Result {
	return Retry(fmt.Errorf(format, args...))
}

// Cancel reports an unrecoverable outcome; the job must never run again.
func Cancel(message string) Result {
	return Result{Outcome: OutcomeCancel, Message: message}
}

// Ignore reports a logically impossible state that should not block the
// queue; the job is logged and marked succeeded.
func Ignore(err error) Result {
	return Result{Outcome: OutcomeIgnore, Message: err.Error(), Err: err}
}

// Ignoref reports an ignorable failure with a formatted message.
func Ignoref(format string, args ...interface{}) Result {
	return Ignore(fmt.Errorf(format, args...))
}
