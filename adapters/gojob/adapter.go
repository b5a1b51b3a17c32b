// Package gojob bridges drained-buffer processing onto a go-job queue.
// The dispatcher side enqueues one execution message per drained sender;
// the consumer side dequeues, runs the processing pipeline, and applies a
// bounded retry policy.
package gojob

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobworker "github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/core"
	relayworker "github.com/macienko/GemsChatbot/worker"
)

// JobIDProcessBuffer identifies a drained-buffer processing job.
const JobIDProcessBuffer = "relay.buffer.process"

const (
	paramSender   = "sender"
	paramCombined = "combined_text"
)

// RetryPolicy bounds queue retries so one poisoned buffer cannot loop
// forever.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// Normalize clamps nack options for the given attempt number.
func (p RetryPolicy) Normalize(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewProcessMessage builds the execution message for one drained buffer.
// The idempotency key covers sender and content so a redelivered drain
// dedupes while a sender's next, different buffer does not.
func NewProcessMessage(sender string, combined string) *job.ExecutionMessage {
	digest := fnv.New64a()
	digest.Write([]byte(combined))
	return &job.ExecutionMessage{
		JobID: JobIDProcessBuffer,
		Parameters: map[string]any{
			paramSender:   sender,
			paramCombined: combined,
		},
		IdempotencyKey: fmt.Sprintf("%s:%x", sender, digest.Sum64()),
	}
}

// ProcessParams extracts the sender and combined text from an execution
// message.
func ProcessParams(msg *job.ExecutionMessage) (string, string, error) {
	if msg == nil {
		return "", "", core.BadInputError("gojob: execution message is required", nil)
	}
	if msg.JobID != JobIDProcessBuffer {
		return "", "", core.BadInputError("gojob: unexpected job id", map[string]any{"job_id": msg.JobID})
	}
	sender, _ := msg.Parameters[paramSender].(string)
	combined, _ := msg.Parameters[paramCombined].(string)
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return "", "", core.BadInputError("gojob: sender parameter is required", nil)
	}
	return sender, combined, nil
}

// QueueDispatcher implements the lifecycle worker's Dispatcher by
// enqueuing each drained buffer onto the queue instead of spawning a
// goroutine.
type QueueDispatcher struct {
	enqueuer queue.Enqueuer
}

func NewQueueDispatcher(enqueuer queue.Enqueuer) *QueueDispatcher {
	return &QueueDispatcher{enqueuer: enqueuer}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, sender string, combined string) error {
	if d == nil || d.enqueuer == nil {
		return core.BadInputError("gojob: enqueuer is not configured", nil)
	}
	return d.enqueuer.Enqueue(ctx, NewProcessMessage(sender, combined))
}

// Consumer pulls processing jobs off the queue and runs them through the
// pipeline, acking on success and nacking with the retry policy on
// failure.
type Consumer struct {
	dequeuer  queue.Dequeuer
	processor relayworker.Processor
	policy    RetryPolicy
	hook      jobworker.Hook
	logger    core.Logger

	mu       sync.Mutex
	attempts map[string]int
}

type ConsumerOptions struct {
	Dequeuer  queue.Dequeuer
	Processor relayworker.Processor
	Policy    RetryPolicy
	Hook      jobworker.Hook
	Logger    core.Logger
}

func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	if opts.Dequeuer == nil || opts.Processor == nil {
		return nil, core.BadInputError("gojob: dequeuer and processor are required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	return &Consumer{
		dequeuer:  opts.Dequeuer,
		processor: opts.Processor,
		policy:    opts.Policy,
		hook:      opts.Hook,
		logger:    logger,
		attempts:  map[string]int{},
	}, nil
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("queue consume failed", "error", err)
		}
	}
}

// RunOnce dequeues and handles a single delivery.
func (c *Consumer) RunOnce(ctx context.Context) error {
	if c == nil || c.dequeuer == nil {
		return core.BadInputError("gojob: consumer is not configured", nil)
	}
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	return c.handle(ctx, delivery)
}

func (c *Consumer) handle(ctx context.Context, delivery queue.Delivery) error {
	msg := delivery.Message()
	sender, combined, err := ProcessParams(msg)
	if err != nil {
		c.logger.Error("dropping malformed processing job", "error", err)
		return delivery.Nack(ctx, queue.NackOptions{
			DeadLetter: true,
			Reason:     "malformed processing job",
		})
	}

	attempt := c.nextAttempt(msg.IdempotencyKey)
	startedAt := time.Now()
	c.fireStart(ctx, msg, attempt, startedAt)

	if processErr := c.processor.Process(ctx, sender, combined); processErr != nil {
		// A rate-limited drain already answered the sender with the limit
		// notice; requeueing would repeat it.
		if core.IsRateLimited(processErr) {
			c.logger.Info("processing job dropped by daily limit", "sender", sender)
			c.clearAttempts(msg.IdempotencyKey)
			c.fireSuccess(ctx, msg, attempt, startedAt)
			return delivery.Ack(ctx)
		}
		c.fireFailure(ctx, msg, attempt, startedAt, processErr)
		opts := c.policy.Normalize(queue.NackOptions{
			Requeue: true,
			Reason:  processErr.Error(),
		}, attempt)
		if opts.Requeue {
			c.fireRetry(ctx, msg, attempt, startedAt, processErr, opts.Delay)
		}
		return delivery.Nack(ctx, opts)
	}

	c.clearAttempts(msg.IdempotencyKey)
	c.fireSuccess(ctx, msg, attempt, startedAt)
	return delivery.Ack(ctx)
}

func (c *Consumer) nextAttempt(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

func (c *Consumer) clearAttempts(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, key)
}

func (c *Consumer) fireStart(ctx context.Context, msg *job.ExecutionMessage, attempt int, startedAt time.Time) {
	if c.hook == nil {
		return
	}
	c.hook.OnStart(ctx, jobworker.Event{Message: msg, Attempt: attempt, StartedAt: startedAt})
}

func (c *Consumer) fireSuccess(ctx context.Context, msg *job.ExecutionMessage, attempt int, startedAt time.Time) {
	if c.hook == nil {
		return
	}
	c.hook.OnSuccess(ctx, jobworker.Event{
		Message:   msg,
		Attempt:   attempt,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	})
}

func (c *Consumer) fireFailure(ctx context.Context, msg *job.ExecutionMessage, attempt int, startedAt time.Time, err error) {
	if c.hook == nil {
		return
	}
	c.hook.OnFailure(ctx, jobworker.Event{
		Message:   msg,
		Attempt:   attempt,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Err:       err,
	})
}

func (c *Consumer) fireRetry(ctx context.Context, msg *job.ExecutionMessage, attempt int, startedAt time.Time, err error, delay time.Duration) {
	if c.hook == nil {
		return
	}
	c.hook.OnRetry(ctx, jobworker.Event{
		Message:   msg,
		Attempt:   attempt,
		StartedAt: startedAt,
		Delay:     delay,
		Err:       err,
	})
}

var _ relayworker.Dispatcher = (*QueueDispatcher)(nil)
