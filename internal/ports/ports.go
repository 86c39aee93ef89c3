package ports

import (
	"context"
	"errors"
	"time"

	"papertrends/internal/domain"
)

// ErrNotFound signals that a lookup collaborator could not map the input to a
// canonical paper identifier.
var ErrNotFound = errors.New("paper not found")

// Resolver maps an unresolved mention (title/URL) to a canonical paper id.
type Resolver interface {
	Resolve(ctx context.Context, mention domain.SourceMention) (string, error)
}

// Enricher supplies announcement material for a candidate selected for
// publishing. Failures surface as a per-candidate skip, never run-fatal.
type Enricher interface {
	Enrich(ctx context.Context, candidate domain.Candidate) (domain.Enrichment, error)
}

// Publisher delivers one announcement to a single output channel. Channel
// credentials and transport details are entirely the adapter's concern.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, a domain.Announcement) error
}

// Ledger is the durable record of previously announced paper identifiers.
// Snapshot is read once at run start; Record is called per candidate after
// its channel attempts complete.
type Ledger interface {
	Snapshot(ctx context.Context) (map[string]bool, error)
	Record(ctx context.Context, paperID string, announcedAt time.Time) error
}
