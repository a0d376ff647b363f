package context_store //nolint:revive // var-naming: using underscores for domain clarity

import "time"

// DefaultBaseImportance is the importance prior when none is given.
const DefaultBaseImportance = 0.5

type insertOptions struct {
	importance float64
	ctxType    ContextType
	observedAt time.Time
}

// InsertOption customises a single Insert.
type InsertOption func(*insertOptions)

// WithImportance sets the caller's importance prior (default 0.5).
func WithImportance(base float64) InsertOption {
	return func(o *insertOptions) { o.importance = base }
}

// WithType sets the context category (default GeneralContext).
func WithType(t ContextType) InsertOption {
	return func(o *insertOptions) { o.ctxType = t }
}

// WithObservedAt sets when the content itself was produced. It feeds the
// freshness bonus of the importance prior and defaults to the insert time.
// Only text payloads earn that bonus, so the option has no effect on the
// importance of a Structured payload.
func WithObservedAt(t time.Time) InsertOption {
	return func(o *insertOptions) { o.observedAt = t }
}

type retrieveOptions struct {
	limit         int
	minImportance float64
}

// RetrieveOption customises a single Retrieve or Peek.
type RetrieveOption func(*retrieveOptions)

// WithLimit caps the number of results. Values below 1 are ignored.
func WithLimit(n int) RetrieveOption {
	return func(o *retrieveOptions) {
		if n > 0 {
			o.limit = n
		}
	}
}

// WithMinImportance sets the importance floor applied before ranking.
func WithMinImportance(v float64) RetrieveOption {
	return func(o *retrieveOptions) { o.minImportance = v }
}
