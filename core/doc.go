// Package core contains the canonical relay domain contracts, entities, and
// configuration. Higher-level packages (buffer, handoff, route, worker)
// depend on this package; core must not depend on any of them.
package core
