// Package handoff tracks which customer conversations are claimed by which
// human operator, enforcing claim exclusivity and auto-expiry.
package handoff

import (
	"context"
	"time"

	"github.com/macienko/GemsChatbot/core"
)

// Registry is the hand-off capability set. Two interchangeable backings
// exist: the in-process MemoryRegistry here and the bun-backed store in
// store/sql; both expose identical externally observable behavior.
//
// A record moves UNCLAIMED -> CLAIMED on a successful TakeOver and back to
// UNCLAIMED on Release or expiry sweep. TakeOver by a different operator
// while claimed is rejected; TakeOver by the holding operator refreshes
// timestamps.
type Registry interface {
	// TakeOver claims customer for operator. It returns false, without
	// mutating anything, when a different operator already holds the claim.
	// The check-and-set is atomic with respect to concurrent TakeOver calls
	// for the same customer.
	TakeOver(ctx context.Context, operator string, customer string) (bool, error)

	// Release deletes the customer's record; no-op when absent.
	Release(ctx context.Context, customer string) error

	// GetActive returns the customer's current record, if any.
	GetActive(ctx context.Context, customer string) (core.HandoffRecord, bool, error)

	// GetOwnerHandoff returns some customer currently claimed by operator.
	// When the one-claim-per-operator convention is violated by caller
	// error, which claim comes back is unspecified.
	GetOwnerHandoff(ctx context.Context, operator string) (string, bool, error)

	// TouchActivity refreshes last-activity on an existing record; no-op
	// when absent.
	TouchActivity(ctx context.Context, customer string) error

	// ListActive returns all current records.
	ListActive(ctx context.Context) ([]core.HandoffRecord, error)

	// CleanupExpired atomically removes and returns every record whose
	// last-activity is older than timeout.
	CleanupExpired(ctx context.Context, timeout time.Duration) ([]core.HandoffRecord, error)
}
