package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrJobNotFound = errors.New("job not found")
)

// Redis is the subset of the go-redis client the queue uses; it exists so
// tests can swap in an in-memory fake.
type Redis interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Options configures a queue's delivery policy. The bounds are explicit so
// tests can shrink them.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultOptions matches the production policy: up to 10 deliveries spaced
// 24 hours apart.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 10,
		Backoff:     24 * time.Hour,
	}
}

// Job is one unit of work popped from a queue.
type Job struct {
	ID       string
	Queue    string
	Name     string
	Payload  []byte
	Attempts int
}

// Unmarshal decodes the job payload into v.
func (j Job) Unmarshal(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// Queue is a named, durable work queue backed by Redis.
type Queue struct {
	name string
	rdb  Redis
	opts Options
	now  func() time.Time
}

// New creates a queue with the given delivery policy.
func New(name string, rdb Redis, opts Options) *Queue {
	if rdb == nil {
		panic("redis client is required")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultOptions().Backoff
	}
	return &Queue{
		name: name,
		rdb:  rdb,
		opts: opts,
		now:  time.Now,
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

func (q *Queue) key(suffix string) string {
	return "queue:" + q.name + ":" + suffix
}

func (q *Queue) jobKey(id string) string {
	return q.key("job:" + id)
}

// Enqueue adds a named job with a JSON payload. A positive delay schedules
// the job for future delivery instead of making it immediately available.
func (q *Queue) Enqueue(ctx context.Context, name string, payload interface{}, delay time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for job '%s': %w", name, err)
	}
	id := uuid.NewString()
	if err := q.rdb.HSet(ctx, q.jobKey(id),
		"name", name,
		"payload", string(data),
		"attempts", 0,
		"enqueued_at", q.now().UnixMilli(),
	).Err(); err != nil {
		return fmt.Errorf("store job '%s': %w", name, err)
	}
	if delay > 0 {
		readyAt := q.now().Add(delay).UnixMilli()
		return q.rdb.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(readyAt), Member: id}).Err()
	}
	return q.rdb.LPush(ctx, q.key("wait"), id).Err()
}

// promote moves due delayed jobs onto the wait list. ZRem acts as the claim:
// only the caller that removed the member pushes it, so concurrent workers
// cannot double-deliver a promotion.
func (q *Queue) promote(ctx context.Context) error {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		removed, err := q.rdb.ZRem(ctx, q.key("delayed"), id).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.key("wait"), id).Err(); err != nil {
			return err
		}
	}
	return nil
}

// pop blocks up to timeout for the next available job id.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key("wait")).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

// load fetches the stored job for an id.
func (q *Queue) load(ctx context.Context, id string) (Job, error) {
	fields, err := q.rdb.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return Job{}, err
	}
	if len(fields) == 0 {
		return Job{}, ErrJobNotFound
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return Job{
		ID:       id,
		Queue:    q.name,
		Name:     fields["name"],
		Payload:  []byte(fields["payload"]),
		Attempts: attempts,
	}, nil
}

// reschedule puts a job back on the delayed set after the backoff, bumping
// its attempt count. Returns false once the attempts cap is exhausted.
func (q *Queue) reschedule(ctx context.Context, job Job) (bool, error) {
	attempts := job.Attempts + 1
	if attempts >= q.opts.MaxAttempts {
		return false, nil
	}
	if err := q.rdb.HSet(ctx, q.jobKey(job.ID), "attempts", attempts).Err(); err != nil {
		return false, err
	}
	readyAt := q.now().Add(q.opts.Backoff).UnixMilli()
	if err := q.rdb.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(readyAt), Member: job.ID}).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// finalize records a terminal state and drops the job hash. Terminal job ids
// are kept on a per-state list for inspection.
func (q *Queue) finalize(ctx context.Context, job Job, state string) error {
	if err := q.rdb.LPush(ctx, q.key(state), job.ID+":"+job.Name).Err(); err != nil {
		return err
	}
	return q.rdb.Del(ctx, q.jobKey(job.ID)).Err()
}
