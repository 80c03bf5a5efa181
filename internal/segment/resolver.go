package segment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/models"
)

const (
	// InQueryLimit caps how many ids a single IN lookup carries, matching the
	// backing store's query limit.
	InQueryLimit = 10

	// QueryResultCap bounds attribute-query segments to protect the fan-out.
	QueryResultCap = 1000
)

// Store is the recipient directory.
type Store interface {
	GetRecipientsByIDs(ctx context.Context, ids []string) ([]models.Recipient, error)
	QueryRecipients(ctx context.Context, q models.RecipientQuery, limit int) ([]models.Recipient, error)
}

// Resolver expands a segment descriptor into concrete recipients. Ids that
// match no recipient are silently dropped; callers see only addressable
// recipients in input (or query) order.
type Resolver struct {
	store Store
	log   zerolog.Logger
}

func NewResolver(store Store, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, seg models.Segment) ([]models.Recipient, error) {
	if err := seg.Validate(); err != nil {
		return nil, err
	}

	switch seg.Type {
	case models.SegmentOne:
		return r.byIDs(ctx, []string{seg.UID})
	case models.SegmentMany:
		return r.byIDs(ctx, seg.UIDs)
	case models.SegmentQuery:
		recipients, err := r.store.QueryRecipients(ctx, *seg.Query, QueryResultCap)
		if err != nil {
			return nil, fmt.Errorf("query recipients: %w", err)
		}
		return recipients, nil
	default:
		return nil, models.ErrInvalidSegment
	}
}

func (r *Resolver) byIDs(ctx context.Context, ids []string) ([]models.Recipient, error) {
	found := make(map[string]models.Recipient, len(ids))
	for start := 0; start < len(ids); start += InQueryLimit {
		end := start + InQueryLimit
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := r.store.GetRecipientsByIDs(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("lookup recipients: %w", err)
		}
		for _, rec := range batch {
			found[rec.ID] = rec
		}
	}

	out := make([]models.Recipient, 0, len(found))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := found[id]; ok {
			out = append(out, rec)
		} else {
			r.log.Debug().Str("recipient_id", id).Msg("segment id matched no recipient, skipping")
		}
	}
	return out, nil
}
