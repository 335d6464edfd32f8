/*
Package queue implements named, durable, at-least-once work queues on Redis.

Each queue keeps a wait list, a delayed set scored by ready-at time, and one
hash per job. Jobs are retried on a fixed backoff up to a configurable number
of attempts, and may be enqueued with a scheduling delay for future-dated
work.

Handlers return an explicit Result instead of throwing: Retry re-schedules
after the backoff, Cancel terminates the job without redelivery, Ignore logs
and treats the job as succeeded, Done is plain success. Handlers must assume
any job can be delivered more than once and converge on a safe outcome.
*/
package queue
