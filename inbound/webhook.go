package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/core"
	"github.com/macienko/GemsChatbot/route"
)

const signatureHeader = "X-Twilio-Signature"

// Router is the relay surface the webhook feeds; *relay.Relay satisfies
// it.
type Router interface {
	HandleInbound(ctx context.Context, msg core.InboundMessage) (route.Outcome, error)
}

// Webhook is the HTTP handler for provider message callbacks. Verification
// and deduplication are both optional; leave Verifier nil for local runs
// without credentials.
type Webhook struct {
	router   Router
	verifier Verifier
	claims   ClaimStore
	claimTTL time.Duration
	logger   core.Logger

	// PublicURL is the externally visible endpoint URL the provider
	// signed, needed when the service sits behind a proxy.
	publicURL string
}

type WebhookOptions struct {
	Router    Router
	Verifier  Verifier
	Claims    ClaimStore
	ClaimTTL  time.Duration
	PublicURL string
	Logger    core.Logger
}

func NewWebhook(opts WebhookOptions) (*Webhook, error) {
	if opts.Router == nil {
		return nil, inboundBadInput("inbound: router is required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	claimTTL := opts.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	return &Webhook{
		router:    opts.Router,
		verifier:  opts.Verifier,
		claims:    opts.Claims,
		claimTTL:  claimTTL,
		logger:    logger,
		publicURL: strings.TrimSpace(opts.PublicURL),
	}, nil
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form payload", http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		signature := r.Header.Get(signatureHeader)
		if err := h.verifier.Verify(r.Context(), h.requestURL(r), r.PostForm, signature); err != nil {
			h.logger.Warn("webhook verification failed", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "signature verification failed", http.StatusUnauthorized)
			return
		}
	}

	msg := core.InboundMessage{
		Sender: r.PostForm.Get("From"),
		Body:   r.PostForm.Get("Body"),
	}
	messageID := strings.TrimSpace(r.PostForm.Get("MessageSid"))

	claimID := ""
	if h.claims != nil && messageID != "" {
		id, accepted, err := h.claims.Claim(r.Context(), messageID, h.claimTTL)
		if err != nil {
			h.logger.Error("webhook claim failed", "message_id", messageID, "error", err)
			http.Error(w, "claim failed", http.StatusInternalServerError)
			return
		}
		if !accepted {
			h.logger.Debug("webhook delivery deduped", "message_id", messageID)
			writeOK(w)
			return
		}
		claimID = id
	}

	outcome, err := h.router.HandleInbound(r.Context(), msg)
	if err != nil {
		h.logger.Error("webhook routing failed", "sender", msg.Sender, "error", err)
		if claimID != "" {
			if failErr := h.claims.Fail(r.Context(), claimID); failErr != nil {
				h.logger.Error("webhook claim release failed", "claim_id", claimID, "error", failErr)
			}
		}
		// 5xx so the provider retries; the released claim lets the retry
		// through.
		http.Error(w, "routing failed", http.StatusInternalServerError)
		return
	}

	if claimID != "" {
		if err := h.claims.Complete(r.Context(), claimID); err != nil {
			h.logger.Error("webhook claim complete failed", "claim_id", claimID, "error", err)
		}
	}
	h.logger.Debug("webhook handled", "sender", msg.Sender, "outcome", outcome)
	writeOK(w)
}

// requestURL reconstructs the URL the provider signed.
func (h *Webhook) requestURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	return u.String()
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

var _ http.Handler = (*Webhook)(nil)
