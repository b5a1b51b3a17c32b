package inbound

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/macienko/GemsChatbot/core"
)

// Verifier authenticates one webhook request before it is processed.
type Verifier interface {
	Verify(ctx context.Context, requestURL string, form url.Values, signature string) error
}

// TwilioVerifier checks the X-Twilio-Signature header: the HMAC-SHA1 of
// the request URL concatenated with every form parameter name and value
// in parameter-name order, keyed by the account auth token.
type TwilioVerifier struct {
	authToken string
}

func NewTwilioVerifier(authToken string) (*TwilioVerifier, error) {
	authToken = strings.TrimSpace(authToken)
	if authToken == "" {
		return nil, inboundBadInput("inbound: auth token is required", nil)
	}
	return &TwilioVerifier{authToken: authToken}, nil
}

func (v *TwilioVerifier) Verify(_ context.Context, requestURL string, form url.Values, signature string) error {
	if v == nil || v.authToken == "" {
		return inboundInternal("inbound: verifier is not configured", nil)
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return unauthorizedError("inbound: signature header is missing")
	}

	expected := v.expectedSignature(requestURL, form)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return unauthorizedError("inbound: signature mismatch")
	}
	return nil
}

func (v *TwilioVerifier) expectedSignature(requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(requestURL)
	for _, key := range keys {
		for _, value := range form[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	mac := hmac.New(sha1.New, []byte(v.authToken))
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func unauthorizedError(message string) error {
	return inboundError(
		message,
		goerrors.CategoryAuth,
		http.StatusUnauthorized,
		core.RelayErrorUnauthorized,
		nil,
	)
}

var _ Verifier = (*TwilioVerifier)(nil)
