package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/macienko/GemsChatbot/buffer"
	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/handoff"
	"github.com/macienko/GemsChatbot/worker"
)

type sentMessage struct {
	Recipient string
	Body      string
	MediaURL  string
}

type stubTransport struct {
	mu    sync.Mutex
	sends []sentMessage
}

func (t *stubTransport) Send(_ context.Context, recipient string, body string, mediaURL string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends = append(t.sends, sentMessage{Recipient: recipient, Body: body, MediaURL: mediaURL})
	return fmt.Sprintf("sid_%d", len(t.sends)), nil
}

func (t *stubTransport) AwaitDelivery(context.Context, string, time.Duration) (core.DeliveryStatus, error) {
	return core.DeliveryStatusDelivered, nil
}

func (t *stubTransport) sent() []sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentMessage(nil), t.sends...)
}

type stubResponder struct {
	mu      sync.Mutex
	calls   []string
	replies []core.ReplyItem
	err     error
}

func (r *stubResponder) Respond(_ context.Context, senderID string, combinedText string) ([]core.ReplyItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, senderID+"|"+combinedText)
	if r.err != nil {
		return nil, r.err
	}
	return r.replies, nil
}

type stubLimiter struct {
	allow bool
}

func (l stubLimiter) Allow(context.Context, string) (bool, error) {
	return l.allow, nil
}

type recordingEscalation struct {
	mu    sync.Mutex
	calls []string
}

func (e *recordingEscalation) NotifyEscalation(_ context.Context, customer string, lastMessage string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, customer+"|"+lastMessage)
	return nil
}

// syncDispatcher processes work inline so tests observe completed work.
type syncDispatcher struct {
	processor worker.Processor
}

func (d syncDispatcher) Dispatch(ctx context.Context, sender string, combined string) error {
	_ = d.processor.Process(ctx, sender, combined)
	return nil
}

type recordingProcessor struct {
	mu      sync.Mutex
	calls   []string
	failFor string
}

func (p *recordingProcessor) Process(_ context.Context, sender string, combined string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, sender+"|"+combined)
	if sender == p.failFor {
		return errors.New("boom")
	}
	return nil
}

func TestPipeline_DeliversRepliesInOrder(t *testing.T) {
	transport := &stubTransport{}
	responder := &stubResponder{replies: []core.ReplyItem{
		{Body: "We have three sapphires in stock."},
		{Body: "2ct oval, Sri Lanka", ImageURL: "https://cdn.example.com/sapphire.jpg"},
		{VideoURL: "https://cdn.example.com/sapphire.mp4"},
	}}
	var slept []time.Duration
	pipeline := &worker.Pipeline{
		Responder: responder,
		Transport: transport,
		Limiter:   stubLimiter{allow: true},
		Sleep:     func(d time.Duration) { slept = append(slept, d) },
	}

	if err := pipeline.Process(context.Background(), "whatsapp:+15550001111", "show me sapphires"); err != nil {
		t.Fatalf("process: %v", err)
	}

	sends := transport.sent()
	if len(sends) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(sends))
	}
	if sends[0].Body != "We have three sapphires in stock." || sends[0].MediaURL != "" {
		t.Fatalf("unexpected first send %+v", sends[0])
	}
	if sends[1].MediaURL != "https://cdn.example.com/sapphire.jpg" {
		t.Fatalf("expected image send second, got %+v", sends[1])
	}
	if sends[2].MediaURL != "https://cdn.example.com/sapphire.mp4" || sends[2].Body != " " {
		t.Fatalf("expected video send with placeholder body, got %+v", sends[2])
	}
	if len(slept) != 1 {
		t.Fatalf("expected one settle sleep after the video, got %v", slept)
	}
}

func TestPipeline_LimitReachedSkipsResponder(t *testing.T) {
	transport := &stubTransport{}
	responder := &stubResponder{replies: []core.ReplyItem{{Body: "hi"}}}
	pipeline := &worker.Pipeline{
		Responder: responder,
		Transport: transport,
		Limiter:   stubLimiter{allow: false},
	}

	err := pipeline.Process(context.Background(), "whatsapp:+15550001111", "hello")
	if err == nil || !core.IsRateLimited(err) {
		t.Fatalf("expected rate-limited classification, got %v", err)
	}

	if len(responder.calls) != 0 {
		t.Fatalf("expected responder to be skipped, got calls %v", responder.calls)
	}
	sends := transport.sent()
	if len(sends) != 1 || sends[0].Body != "You've reached your daily message limit. Please try again tomorrow." {
		t.Fatalf("expected limit notice, got %v", sends)
	}
}

func TestPipeline_EscalationPhraseFansOut(t *testing.T) {
	transport := &stubTransport{}
	escalation := &recordingEscalation{}
	phrase := "Let me get a team member to help you with that."
	pipeline := &worker.Pipeline{
		Responder:        &stubResponder{replies: []core.ReplyItem{{Body: phrase}}},
		Transport:        transport,
		Escalation:       escalation,
		EscalationPhrase: phrase,
	}

	if err := pipeline.Process(context.Background(), "whatsapp:+15550001111", "I need a human"); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(escalation.calls) != 1 {
		t.Fatalf("expected 1 escalation, got %d", len(escalation.calls))
	}
	if escalation.calls[0] != "whatsapp:+15550001111|I need a human" {
		t.Fatalf("unexpected escalation payload %q", escalation.calls[0])
	}
}

func TestPipeline_ResponderFailureIsWrapped(t *testing.T) {
	pipeline := &worker.Pipeline{
		Responder: &stubResponder{err: errors.New("model unavailable")},
		Transport: &stubTransport{},
	}

	err := pipeline.Process(context.Background(), "whatsapp:+15550001111", "hello")
	if err == nil {
		t.Fatalf("expected responder failure to propagate")
	}
}

func TestDrainOnce_FansOutPerSenderAndIsolatesFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := buffer.NewStore(buffer.Options{Now: func() time.Time { return now }})
	store.Enqueue("whatsapp:+15550001111", "first")
	store.Enqueue("whatsapp:+15550002222", "second")
	now = now.Add(31 * time.Second)

	processor := &recordingProcessor{failFor: "whatsapp:+15550001111"}
	w, err := worker.New(worker.Options{
		Buffer:    store,
		Registry:  handoff.NewMemoryRegistry(),
		Processor: processor,
		Dispatch:  syncDispatcher{processor: processor},
	})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	w.DrainOnce(context.Background())

	if len(processor.calls) != 2 {
		t.Fatalf("expected both senders processed, got %v", processor.calls)
	}
	if store.Pending() != 0 {
		t.Fatalf("expected drained buffer, got %d entries", store.Pending())
	}
}

func TestSweepOnce_NotifiesBothPartiesOfLapsedClaims(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry := handoff.NewMemoryRegistry()
	registry.Now = func() time.Time { return now }

	if _, err := registry.TakeOver(ctx, "whatsapp:+15559990000", "whatsapp:+15550001111"); err != nil {
		t.Fatalf("seed take over: %v", err)
	}
	now = now.Add(31 * time.Minute)

	transport := &stubTransport{}
	processor := &recordingProcessor{}
	w, err := worker.New(worker.Options{
		Buffer:         buffer.NewStore(buffer.Options{}),
		Registry:       registry,
		Processor:      processor,
		Transport:      transport,
		Dispatch:       syncDispatcher{processor: processor},
		HandoffTimeout: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	w.SweepOnce(ctx)

	if _, found, _ := registry.GetActive(ctx, "whatsapp:+15550001111"); found {
		t.Fatalf("expected expired claim removed")
	}
	sends := transport.sent()
	if len(sends) != 2 {
		t.Fatalf("expected notifications to both parties, got %d", len(sends))
	}
	if sends[0].Recipient != "whatsapp:+15559990000" || sends[1].Recipient != "whatsapp:+15550001111" {
		t.Fatalf("unexpected notification order %v", sends)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	w, err := worker.New(worker.Options{
		Buffer:      buffer.NewStore(buffer.Options{}),
		Registry:    handoff.NewMemoryRegistry(),
		Processor:   &recordingProcessor{},
		Tick:        time.Millisecond,
		SweepPeriod: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}
