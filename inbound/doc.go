// Package inbound receives provider webhook traffic for the relay.
//
// Each request is signature-verified, deduplicated on the provider's
// message id with claim/complete/fail semantics, and handed to the
// routing policy. Transient routing failures release the claim so the
// provider's retry is processed rather than swallowed.
package inbound
