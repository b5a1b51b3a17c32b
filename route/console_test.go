package route_test

import (
	"context"
	"strings"
	"testing"

	"github.com/macienko/GemsChatbot/handoff"
	"github.com/macienko/GemsChatbot/route"
)

func newTestConsole(registry handoff.Registry, transport *stubTransport) *route.OperatorConsole {
	return &route.OperatorConsole{
		Registry:  registry,
		Transport: transport,
	}
}

func TestTake_ConfirmsNewClaim(t *testing.T) {
	ctx := context.Background()
	registry := handoff.NewMemoryRegistry()
	transport := &stubTransport{}
	console := newTestConsole(registry, transport)

	if err := console.Take(ctx, testOperator, testCustomer); err != nil {
		t.Fatalf("take: %v", err)
	}

	record, found, err := registry.GetActive(ctx, testCustomer)
	if err != nil || !found {
		t.Fatalf("expected active claim, found=%v err=%v", found, err)
	}
	if record.Operator != testOperator {
		t.Fatalf("expected claim by %s, got %s", testOperator, record.Operator)
	}

	sends := transport.sent()
	if len(sends) != 1 || sends[0].Recipient != testOperator {
		t.Fatalf("expected confirmation to the operator, got %v", sends)
	}
	if !strings.Contains(sends[0].Body, "You're now chatting with "+testCustomer) {
		t.Fatalf("unexpected confirmation body %q", sends[0].Body)
	}
}

func TestTake_RejectedWhenAnotherOperatorHolds(t *testing.T) {
	ctx := context.Background()
	registry := handoff.NewMemoryRegistry()
	transport := &stubTransport{}
	console := newTestConsole(registry, transport)

	if _, err := registry.TakeOver(ctx, testOtherOperator, testCustomer); err != nil {
		t.Fatalf("seed take over: %v", err)
	}

	if err := console.Take(ctx, testOperator, testCustomer); err != nil {
		t.Fatalf("take: %v", err)
	}

	record, found, err := registry.GetActive(ctx, testCustomer)
	if err != nil || !found {
		t.Fatalf("expected claim to survive, found=%v err=%v", found, err)
	}
	if record.Operator != testOtherOperator {
		t.Fatalf("expected claim kept by %s, got %s", testOtherOperator, record.Operator)
	}

	sends := transport.sent()
	if len(sends) != 1 || !strings.Contains(sends[0].Body, "already taken over") {
		t.Fatalf("expected conflict reply, got %v", sends)
	}
}

func TestTake_ReleasesPreviousClaimWhenSwitching(t *testing.T) {
	ctx := context.Background()
	registry := handoff.NewMemoryRegistry()
	transport := &stubTransport{}
	console := newTestConsole(registry, transport)

	otherCustomer := "whatsapp:+15550002222"
	if _, err := registry.TakeOver(ctx, testOperator, testCustomer); err != nil {
		t.Fatalf("seed take over: %v", err)
	}

	if err := console.Take(ctx, testOperator, otherCustomer); err != nil {
		t.Fatalf("take: %v", err)
	}

	if _, found, _ := registry.GetActive(ctx, testCustomer); found {
		t.Fatalf("expected old claim released")
	}
	record, found, err := registry.GetActive(ctx, otherCustomer)
	if err != nil || !found || record.Operator != testOperator {
		t.Fatalf("expected new claim by %s, got %+v found=%v err=%v", testOperator, record, found, err)
	}
}

func TestDone_ReleasesAndNotifiesBothParties(t *testing.T) {
	ctx := context.Background()
	registry := handoff.NewMemoryRegistry()
	transport := &stubTransport{}
	console := newTestConsole(registry, transport)

	if _, err := registry.TakeOver(ctx, testOperator, testCustomer); err != nil {
		t.Fatalf("seed take over: %v", err)
	}

	if err := console.Done(ctx, testOperator); err != nil {
		t.Fatalf("done: %v", err)
	}

	if _, found, _ := registry.GetActive(ctx, testCustomer); found {
		t.Fatalf("expected claim released by DONE")
	}

	sends := transport.sent()
	if len(sends) != 2 {
		t.Fatalf("expected notifications to both parties, got %d", len(sends))
	}
	if sends[0].Recipient != testOperator || !strings.Contains(sends[0].Body, "Released "+testCustomer) {
		t.Fatalf("unexpected operator notification %v", sends[0])
	}
	if sends[1].Recipient != testCustomer || !strings.Contains(sends[1].Body, "back with our assistant") {
		t.Fatalf("unexpected customer notification %v", sends[1])
	}
}

func TestDone_WithoutClaimShowsHelp(t *testing.T) {
	ctx := context.Background()
	transport := &stubTransport{}
	console := newTestConsole(handoff.NewMemoryRegistry(), transport)

	if err := console.Done(ctx, testOperator); err != nil {
		t.Fatalf("done: %v", err)
	}
	sends := transport.sent()
	if len(sends) != 1 || !strings.Contains(sends[0].Body, "Commands:") {
		t.Fatalf("expected help text, got %v", sends)
	}
}

func TestForward_DeliversToClaimedCustomerAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	registry := handoff.NewMemoryRegistry()
	transport := &stubTransport{}
	history := &recordingHistory{}
	console := newTestConsole(registry, transport)
	console.History = history

	if _, err := registry.TakeOver(ctx, testOperator, testCustomer); err != nil {
		t.Fatalf("seed take over: %v", err)
	}

	if err := console.Forward(ctx, testOperator, "yes, still available"); err != nil {
		t.Fatalf("forward: %v", err)
	}

	sends := transport.sent()
	if len(sends) != 1 || sends[0].Recipient != testCustomer || sends[0].Body != "yes, still available" {
		t.Fatalf("expected verbatim forward to customer, got %v", sends)
	}
	if len(history.exchanges) != 1 || history.exchanges[0].OperatorReply != "yes, still available" {
		t.Fatalf("expected operator reply in history, got %+v", history.exchanges)
	}
}

func TestForward_WithoutClaimShowsHelp(t *testing.T) {
	ctx := context.Background()
	transport := &stubTransport{}
	console := newTestConsole(handoff.NewMemoryRegistry(), transport)

	if err := console.Forward(ctx, testOperator, "hello?"); err != nil {
		t.Fatalf("forward: %v", err)
	}
	sends := transport.sent()
	if len(sends) != 1 || !strings.Contains(sends[0].Body, "Commands:") {
		t.Fatalf("expected help text, got %v", sends)
	}
}

func TestListActive_ShowsClaimTable(t *testing.T) {
	ctx := context.Background()
	registry := handoff.NewMemoryRegistry()
	transport := &stubTransport{}
	console := newTestConsole(registry, transport)

	if _, err := registry.TakeOver(ctx, testOperator, testCustomer); err != nil {
		t.Fatalf("seed take over: %v", err)
	}
	if _, err := registry.TakeOver(ctx, testOtherOperator, "whatsapp:+15550002222"); err != nil {
		t.Fatalf("seed second take over: %v", err)
	}

	if err := console.ListActive(ctx, testOperator); err != nil {
		t.Fatalf("list active: %v", err)
	}

	sends := transport.sent()
	if len(sends) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(sends))
	}
	body := sends[0].Body
	if !strings.HasPrefix(body, "Active hand-offs:") {
		t.Fatalf("unexpected listing header %q", body)
	}
	if !strings.Contains(body, testCustomer+" (operator: "+testOperator+")") {
		t.Fatalf("expected first claim listed, got %q", body)
	}
	if !strings.Contains(body, "whatsapp:+15550002222 (operator: "+testOtherOperator+")") {
		t.Fatalf("expected second claim listed, got %q", body)
	}
}
