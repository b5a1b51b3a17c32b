// Package transport delivers relay messages over the WhatsApp Business
// API exposed by Twilio's REST surface.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/macienko/GemsChatbot/core"
)

const (
	defaultAPIBaseURL     = "https://api.twilio.com"
	defaultClientTimeout  = 30 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
	defaultBodyLimitBytes = 1 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WhatsAppSender sends messages through the Messages API and polls the
// per-message status resource until delivery settles.
type WhatsAppSender struct {
	accountSID   string
	authToken    string
	from         string
	baseURL      string
	client       HTTPDoer
	pollInterval time.Duration
	bodyLimit    int64
	logger       core.Logger
}

type WhatsAppSenderOptions struct {
	AccountSID string
	AuthToken  string
	// From is the sending identity, e.g. "whatsapp:+14155238886".
	From string
	// BaseURL overrides the API host, mainly for tests.
	BaseURL      string
	Client       HTTPDoer
	PollInterval time.Duration
	Logger       core.Logger
}

func NewWhatsAppSender(opts WhatsAppSenderOptions) (*WhatsAppSender, error) {
	accountSID := strings.TrimSpace(opts.AccountSID)
	authToken := strings.TrimSpace(opts.AuthToken)
	from := strings.TrimSpace(opts.From)
	if accountSID == "" || authToken == "" || from == "" {
		return nil, transportError(
			"transport: account sid, auth token and sender identity are required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	return &WhatsAppSender{
		accountSID:   accountSID,
		authToken:    authToken,
		from:         from,
		baseURL:      baseURL,
		client:       client,
		pollInterval: pollInterval,
		bodyLimit:    defaultBodyLimitBytes,
		logger:       logger,
	}, nil
}

type messageResource struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"message"`
}

// Send posts one outbound message and returns the provider's message id.
func (s *WhatsAppSender) Send(ctx context.Context, recipient string, body string, mediaURL string) (string, error) {
	if s == nil || s.client == nil {
		return "", transportError(
			"transport: whatsapp sender is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", transportError(
			"transport: recipient is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", recipient)
	form.Set("Body", body)
	if strings.TrimSpace(mediaURL) != "" {
		form.Set("MediaUrl", strings.TrimSpace(mediaURL))
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	resource, err := s.call(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	s.logger.Info("message sent",
		"to", recipient,
		"delivery_id", resource.SID,
		"media", mediaURL != "",
	)
	return resource.SID, nil
}

// AwaitDelivery polls the message resource until it reaches a terminal
// status or the timeout lapses. On timeout the last observed status comes
// back without an error; the caller decides how hard to treat it.
func (s *WhatsAppSender) AwaitDelivery(ctx context.Context, deliveryID string, timeout time.Duration) (core.DeliveryStatus, error) {
	if s == nil || s.client == nil {
		return "", transportError(
			"transport: whatsapp sender is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return "", transportError(
			"transport: delivery id is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages/%s.json",
		s.baseURL, url.PathEscape(s.accountSID), url.PathEscape(deliveryID))

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	last := core.DeliveryStatusQueued
	for {
		resource, err := s.call(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return last, err
		}
		last = core.DeliveryStatus(resource.Status)
		if last.Terminal() {
			return last, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, nil
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *WhatsAppSender) call(ctx context.Context, method string, endpoint string, payload io.Reader) (messageResource, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return messageResource{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create api request",
			http.StatusBadRequest,
			map[string]any{"method": method},
		)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := s.client.Do(req)
	if err != nil {
		return messageResource{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute api request",
			http.StatusBadGateway,
			map[string]any{"method": method},
		)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, s.bodyLimit))
	if err != nil {
		return messageResource{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read api response",
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode},
		)
	}

	var resource messageResource
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resource); err != nil {
			return messageResource{}, transportWrapError(
				err,
				goerrors.CategoryExternal,
				"transport: decode api response",
				http.StatusBadGateway,
				map[string]any{"status_code": res.StatusCode},
			)
		}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		message := strings.TrimSpace(resource.ErrorMessage)
		if message == "" {
			message = "transport: api request rejected"
		}
		return messageResource{}, transportError(
			message,
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode},
		)
	}
	return resource, nil
}

var _ core.TransportSender = (*WhatsAppSender)(nil)
