package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobworker "github.com/goliatone/go-job/queue/worker"

	"github.com/macienko/GemsChatbot/core"
)

func TestNewProcessMessage_CarriesSenderAndContent(t *testing.T) {
	msg := NewProcessMessage("whatsapp:+15550001111", "first\nsecond")
	if msg.JobID != JobIDProcessBuffer {
		t.Fatalf("expected job id %q, got %q", JobIDProcessBuffer, msg.JobID)
	}

	sender, combined, err := ProcessParams(msg)
	if err != nil {
		t.Fatalf("process params: %v", err)
	}
	if sender != "whatsapp:+15550001111" || combined != "first\nsecond" {
		t.Fatalf("unexpected params %q %q", sender, combined)
	}

	same := NewProcessMessage("whatsapp:+15550001111", "first\nsecond")
	if same.IdempotencyKey != msg.IdempotencyKey {
		t.Fatalf("expected identical drains to share an idempotency key")
	}
	different := NewProcessMessage("whatsapp:+15550001111", "third")
	if different.IdempotencyKey == msg.IdempotencyKey {
		t.Fatalf("expected different content to produce a new idempotency key")
	}
}

func TestProcessParams_RejectsMalformedMessages(t *testing.T) {
	if _, _, err := ProcessParams(nil); err == nil {
		t.Fatalf("expected error for nil message")
	}
	if _, _, err := ProcessParams(&job.ExecutionMessage{JobID: "other.job"}); err == nil {
		t.Fatalf("expected error for foreign job id")
	}
	if _, _, err := ProcessParams(&job.ExecutionMessage{
		JobID:      JobIDProcessBuffer,
		Parameters: map[string]any{paramCombined: "text"},
	}); err == nil {
		t.Fatalf("expected error for missing sender")
	}
}

func TestRetryPolicy_Normalize(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	}

	bounded := policy.Normalize(queue.NackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  " transient ",
	}, 1)
	if bounded.Delay != 10*time.Second {
		t.Fatalf("expected delay bounded to 10s, got %s", bounded.Delay)
	}
	if !bounded.Requeue {
		t.Fatalf("expected requeue before max attempts")
	}
	if bounded.Reason != "transient" {
		t.Fatalf("expected trimmed reason, got %q", bounded.Reason)
	}

	final := policy.Normalize(queue.NackOptions{Requeue: true, Reason: "still failing"}, 3)
	if final.Requeue {
		t.Fatalf("expected no requeue at max attempts")
	}
	if !final.DeadLetter {
		t.Fatalf("expected dead letter at max attempts")
	}
}

func TestQueueDispatcher_EnqueuesProcessingJob(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	dispatcher := NewQueueDispatcher(enqueuer)

	if err := dispatcher.Dispatch(context.Background(), "whatsapp:+15550001111", "hello\nthere"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDProcessBuffer {
		t.Fatalf("expected processing job enqueued, got %+v", enqueuer.last)
	}
	if enqueuer.last.Parameters[paramSender] != "whatsapp:+15550001111" {
		t.Fatalf("expected sender parameter, got %v", enqueuer.last.Parameters)
	}
}

func TestConsumer_AcksOnSuccess(t *testing.T) {
	delivery := &stubQueueDelivery{msg: NewProcessMessage("whatsapp:+15550001111", "hello")}
	processor := &stubProcessor{}
	hook := &recordingJobHook{}
	consumer, err := NewConsumer(ConsumerOptions{
		Dequeuer:  &stubQueueDequeuer{delivery: delivery},
		Processor: processor,
		Hook:      hook,
	})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	if err := consumer.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !delivery.acked {
		t.Fatalf("expected delivery acked")
	}
	if len(processor.calls) != 1 || processor.calls[0] != "whatsapp:+15550001111|hello" {
		t.Fatalf("unexpected processor calls %v", processor.calls)
	}
	if hook.starts != 1 || hook.successes != 1 || hook.failures != 0 {
		t.Fatalf("unexpected hook counts %+v", hook)
	}
}

func TestConsumer_NacksWithBoundedRetries(t *testing.T) {
	ctx := context.Background()
	msg := NewProcessMessage("whatsapp:+15550001111", "hello")
	processor := &stubProcessor{err: errors.New("responder down")}
	hook := &recordingJobHook{}
	delivery := &stubQueueDelivery{msg: msg}
	consumer, err := NewConsumer(ConsumerOptions{
		Dequeuer:  &stubQueueDequeuer{delivery: delivery},
		Processor: processor,
		Policy:    RetryPolicy{MaxAttempts: 2, DeadLetterOnMax: true},
		Hook:      hook,
	})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	if err := consumer.RunOnce(ctx); err != nil {
		t.Fatalf("run once attempt 1: %v", err)
	}
	if !delivery.nackOpts.Requeue || delivery.nackOpts.DeadLetter {
		t.Fatalf("expected requeue on first failure, got %+v", delivery.nackOpts)
	}
	if hook.retries != 1 {
		t.Fatalf("expected retry hook on first failure, got %d", hook.retries)
	}

	// Redelivery of the same message reaches max attempts.
	if err := consumer.RunOnce(ctx); err != nil {
		t.Fatalf("run once attempt 2: %v", err)
	}
	if delivery.nackOpts.Requeue {
		t.Fatalf("expected no requeue at max attempts, got %+v", delivery.nackOpts)
	}
	if !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %+v", delivery.nackOpts)
	}
	if hook.failures != 2 {
		t.Fatalf("expected 2 failure events, got %d", hook.failures)
	}
}

func TestConsumer_AcksRateLimitedDrainsWithoutRetry(t *testing.T) {
	delivery := &stubQueueDelivery{msg: NewProcessMessage("whatsapp:+15550001111", "hello")}
	processor := &stubProcessor{err: core.RateLimitedError("whatsapp:+15550001111")}
	hook := &recordingJobHook{}
	consumer, err := NewConsumer(ConsumerOptions{
		Dequeuer:  &stubQueueDequeuer{delivery: delivery},
		Processor: processor,
		Hook:      hook,
	})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	if err := consumer.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !delivery.acked {
		t.Fatalf("expected rate-limited drain acked, got %+v", delivery.nackOpts)
	}
	if delivery.nackOpts.Requeue || delivery.nackOpts.DeadLetter {
		t.Fatalf("expected no retry for a rate-limited drain, got %+v", delivery.nackOpts)
	}
	if hook.failures != 0 || hook.retries != 0 {
		t.Fatalf("expected no failure events for a rate-limited drain, got %+v", hook)
	}
}

func TestConsumer_DeadLettersMalformedJobs(t *testing.T) {
	delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDProcessBuffer}}
	processor := &stubProcessor{}
	consumer, err := NewConsumer(ConsumerOptions{
		Dequeuer:  &stubQueueDequeuer{delivery: delivery},
		Processor: processor,
	})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	if err := consumer.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !delivery.nackOpts.DeadLetter {
		t.Fatalf("expected malformed job dead-lettered, got %+v", delivery.nackOpts)
	}
	if len(processor.calls) != 0 {
		t.Fatalf("expected processor skipped for malformed job")
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type stubProcessor struct {
	calls []string
	err   error
}

func (p *stubProcessor) Process(_ context.Context, sender string, combined string) error {
	p.calls = append(p.calls, sender+"|"+combined)
	return p.err
}

type recordingJobHook struct {
	starts    int
	successes int
	failures  int
	retries   int
}

func (h *recordingJobHook) OnStart(context.Context, jobworker.Event)   { h.starts++ }
func (h *recordingJobHook) OnSuccess(context.Context, jobworker.Event) { h.successes++ }
func (h *recordingJobHook) OnFailure(context.Context, jobworker.Event) { h.failures++ }
func (h *recordingJobHook) OnRetry(context.Context, jobworker.Event)   { h.retries++ }
