package inventory

import "context"

// Deduplicator is a short-retention command dedup cache consulted before the
// ledger record is loaded. It only ever reports true for commands that were
// fully persisted: MarkApplied runs after the store write, so a crash between
// mutation attempt and mark still resolves correctly through the
// record-embedded applied set on redelivery.
type Deduplicator interface {
	AlreadyApplied(ctx context.Context, commandID string) (bool, error)
	MarkApplied(ctx context.Context, commandID string) error
}
