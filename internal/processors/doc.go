// Package processors contains the job handlers behind the four settlement
// queues. Each handler consumes a named job, reads and writes the ledger,
// calls the external gateways and may enqueue follow-up jobs. Every handler
// assumes at-least-once delivery: jobs re-check current ledger state and
// converge on a safe outcome when redelivered.
package processors
