package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorBadInput               = "RELAY_BAD_INPUT"
	RelayErrorUnauthorized           = "RELAY_UNAUTHORIZED"
	RelayErrorSendFailed             = "RELAY_SEND_FAILED"
	RelayErrorPersistenceUnavailable = "RELAY_PERSISTENCE_UNAVAILABLE"
	RelayErrorClaimConflict          = "RELAY_CLAIM_CONFLICT"
	RelayErrorProcessingFailed       = "RELAY_PROCESSING_FAILED"
	RelayErrorRateLimited            = "RELAY_RATE_LIMITED"
	RelayErrorInternal               = "RELAY_INTERNAL_ERROR"
)

func BadInputError(message string, metadata map[string]any) error {
	return relayError(message, goerrors.CategoryBadInput, http.StatusBadRequest, RelayErrorBadInput, metadata)
}

// SendError wraps a transient delivery failure. The relay logs these and
// does not retry; at most the caller may retry once.
func SendError(source error, recipient string) error {
	return relayWrapError(
		source,
		goerrors.CategoryExternal,
		"relay: message delivery failed",
		http.StatusBadGateway,
		RelayErrorSendFailed,
		map[string]any{"recipient": strings.TrimSpace(recipient)},
	)
}

// PersistenceError marks the durable registry backing as unreachable. It is
// never conflated with "no claim exists": routing fails closed on it.
func PersistenceError(source error, message string) error {
	return relayWrapError(
		source,
		goerrors.CategoryInternal,
		message,
		http.StatusServiceUnavailable,
		RelayErrorPersistenceUnavailable,
		nil,
	)
}

// ConflictError reports a take-over rejected because another operator holds
// the claim. A normal negative result, not an exceptional condition.
func ConflictError(customer string, holder string) error {
	return relayError(
		"relay: customer is already claimed by another operator",
		goerrors.CategoryConflict,
		http.StatusConflict,
		RelayErrorClaimConflict,
		map[string]any{"customer": customer, "operator": holder},
	)
}

// ProcessingError wraps a failure raised while handling one sender's drained
// buffer. Caught and logged per sender, never propagated across senders.
func ProcessingError(source error, sender string) error {
	return relayWrapError(
		source,
		goerrors.CategoryOperation,
		"relay: buffered message processing failed",
		http.StatusInternalServerError,
		RelayErrorProcessingFailed,
		map[string]any{"sender": strings.TrimSpace(sender)},
	)
}

func RateLimitedError(sender string) error {
	return relayError(
		"relay: daily message limit reached",
		goerrors.CategoryRateLimit,
		http.StatusTooManyRequests,
		RelayErrorRateLimited,
		map[string]any{"sender": strings.TrimSpace(sender)},
	)
}

func IsPersistenceUnavailable(err error) bool {
	return hasTextCode(err, RelayErrorPersistenceUnavailable)
}

func IsClaimConflict(err error) bool {
	return hasTextCode(err, RelayErrorClaimConflict)
}

func IsRateLimited(err error) bool {
	return hasTextCode(err, RelayErrorRateLimited)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func relayError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func relayWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return relayError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
