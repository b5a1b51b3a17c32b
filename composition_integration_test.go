package relay_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	relay "github.com/macienko/GemsChatbot"
	"github.com/macienko/GemsChatbot/adapters/gojob"
	"github.com/macienko/GemsChatbot/adapters/gologger"
	"github.com/macienko/GemsChatbot/catalog"
	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/inbound"
	"github.com/macienko/GemsChatbot/transport"
)

const compositionSheetCSV = `Gemstone,Carat weight,Single/Pair,Shape,Origin,Treatment,Color,Clarity,Price per ct,Report,Link,Photo,Video
Sapphire,1.80,Single,Oval,Ceylon,None,Blue,Eye clean,1100,GIA,https://example.test/s1,,
Sapphire,3.20,Single,Round,Ceylon,Heated,Blue,VS,950,,,,
`

// The webhook, queue adapter, catalog, and logger bridge are each owned by
// their own package; this test composes them the way a deployment would and
// checks a signed provider callback travels the whole path: webhook ->
// routing -> debounced buffer -> queued drain -> consumer -> catalog-backed
// responder -> outbound transport.
func TestComposition_SignedWebhookThroughQueueToCatalogReply(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var sheetHits int
	sheetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sheetHits++
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(compositionSheetCSV))
	}))
	defer sheetServer.Close()

	inventory := newCompositionCatalog(t, sheetServer)
	responder := &catalogResponder{catalog: inventory}

	sender := transport.NewMemorySender()
	jobs := &memoryJobQueue{}

	service, err := relay.New(compositionConfig(),
		relay.WithTransport(sender),
		relay.WithResponder(responder),
		relay.WithDispatcher(gojob.NewQueueDispatcher(jobs)),
		relay.WithNow(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}

	consumer, err := gojob.NewConsumer(gojob.ConsumerOptions{
		Dequeuer:  jobs,
		Processor: service.Processor(),
		Hook:      &gojob.LoggerHook{Logger: gologger.Component("composition", nil, nil)},
	})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	const (
		authToken = "token-composition"
		publicURL = "https://relay.example.test/webhook"
	)
	verifier, err := inbound.NewTwilioVerifier(authToken)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	hook, err := inbound.NewWebhook(inbound.WebhookOptions{
		Router:    service,
		Verifier:  verifier,
		Claims:    inbound.NewMemoryClaimStore(),
		PublicURL: publicURL,
	})
	if err != nil {
		t.Fatalf("new webhook: %v", err)
	}

	post := func(sid, body string) *httptest.ResponseRecorder {
		form := url.Values{}
		form.Set("From", testCustomer)
		form.Set("Body", body)
		form.Set("MessageSid", sid)
		req := httptest.NewRequest(http.MethodPost, publicURL, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Twilio-Signature", twilioSignature(authToken, publicURL, form))
		res := httptest.NewRecorder()
		hook.ServeHTTP(res, req)
		return res
	}

	if res := post("SM900", "Hi"); res.Code != http.StatusOK {
		t.Fatalf("first fragment: expected 200, got %d body=%s", res.Code, res.Body.String())
	}
	if res := post("SM901", "Do you have sapphires?"); res.Code != http.StatusOK {
		t.Fatalf("second fragment: expected 200, got %d", res.Code)
	}

	// Provider redelivery of an already-claimed message must not reach the
	// buffer a second time.
	if res := post("SM900", "Hi"); res.Code != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d", res.Code)
	}

	service.Worker().DrainOnce(ctx)
	if len(jobs.pending) != 0 {
		t.Fatalf("expected buffer held before idle threshold, got %d jobs", len(jobs.pending))
	}

	now = now.Add(31 * time.Second)
	service.Worker().DrainOnce(ctx)
	if len(jobs.pending) != 1 {
		t.Fatalf("expected one drained buffer enqueued, got %d", len(jobs.pending))
	}
	if got := jobs.pending[0].JobID; got != gojob.JobIDProcessBuffer {
		t.Fatalf("expected processing job id, got %q", got)
	}

	if err := consumer.RunOnce(ctx); err != nil {
		t.Fatalf("consume drained buffer: %v", err)
	}

	if len(responder.combined) != 1 || responder.combined[0] != "Hi\nDo you have sapphires?" {
		t.Fatalf("expected deduped fragments joined for the responder, got %v", responder.combined)
	}

	sent := sender.Sent()
	if len(sent) != 1 || sent[0].Recipient != testCustomer {
		t.Fatalf("expected one reply to the customer, got %v", sent)
	}
	if !strings.Contains(sent[0].Body, "Sapphire 1.80ct") || !strings.Contains(sent[0].Body, "Sapphire 3.20ct") {
		t.Fatalf("expected both catalog rows in the reply, got %q", sent[0].Body)
	}
	if sheetHits != 1 {
		t.Fatalf("expected the inventory export fetched once through the cache, got %d hits", sheetHits)
	}
}

func compositionConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Operators = []string{testOperator}
	return cfg
}

func newCompositionCatalog(t *testing.T, server *httptest.Server) *catalog.Service {
	t.Helper()
	source, err := catalog.NewSheetSource(catalog.SheetSourceOptions{
		SheetID: "sheet-composition",
		BaseURL: server.URL,
		Client:  server.Client(),
	})
	if err != nil {
		t.Fatalf("new sheet source: %v", err)
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}

	inventory, err := catalog.NewService(catalog.ServiceOptions{
		Source:         source,
		Cache:          cacheService,
		CacheKeySuffix: "sheet-composition",
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return inventory
}

// catalogResponder answers every drained buffer with the sapphire
// inventory, close enough to the production responder to prove the
// composition without an LLM in the loop.
type catalogResponder struct {
	catalog  *catalog.Service
	combined []string
}

func (r *catalogResponder) Respond(ctx context.Context, _ string, combined string) ([]core.ReplyItem, error) {
	r.combined = append(r.combined, combined)

	items, err := r.catalog.Search(ctx, catalog.Query{Gemstone: "sapphire", Ascending: true})
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s %.2fct %s, %s/ct", item.Gemstone, item.CaratWeight, item.Shape, item.PricePerCt))
	}
	return []core.ReplyItem{{Body: strings.Join(lines, "\n")}}, nil
}

// twilioSignature reproduces the provider's request signing: HMAC-SHA1 of
// the callback URL followed by the form parameters sorted by name.
func twilioSignature(authToken, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	payload := requestURL
	for _, key := range keys {
		for _, value := range form[key] {
			payload += key + value
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// memoryJobQueue is a minimal in-process queue satisfying both ends of the
// adapter so the test controls exactly when a drained buffer is consumed.
type memoryJobQueue struct {
	pending []*job.ExecutionMessage
}

func (q *memoryJobQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.pending = append(q.pending, msg)
	return nil
}

func (q *memoryJobQueue) Dequeue(context.Context) (queue.Delivery, error) {
	if len(q.pending) == 0 {
		return nil, errors.New("queue empty")
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return &memoryJobDelivery{queue: q, msg: msg}, nil
}

type memoryJobDelivery struct {
	queue *memoryJobQueue
	msg   *job.ExecutionMessage
}

func (d *memoryJobDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *memoryJobDelivery) Ack(context.Context) error { return nil }

func (d *memoryJobDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	if opts.Requeue {
		d.queue.pending = append(d.queue.pending, d.msg)
	}
	return nil
}
