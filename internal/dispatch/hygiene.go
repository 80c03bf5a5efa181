package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/models"
)

// tokenLookupBatch matches the store's IN-query limit.
const tokenLookupBatch = 10

type TokenStore interface {
	GetRecipientsByTokens(ctx context.Context, tokens []string) ([]models.Recipient, error)
	RemoveRecipientTokens(ctx context.Context, recipientID string, tokens []string) error
}

// Hygiene removes endpoints the gateway reported as permanently invalid, so
// later campaigns stop hammering dead registrations.
type Hygiene struct {
	store TokenStore
	log   zerolog.Logger
}

func NewHygiene(store TokenStore, log zerolog.Logger) *Hygiene {
	return &Hygiene{store: store, log: log}
}

// PruneInvalid reverse-looks-up the recipients owning the given tokens, in
// batches the store can handle, and strips exactly those tokens from each.
// Recipients holding none of the tokens are untouched.
func (h *Hygiene) PruneInvalid(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	invalid := make(map[string]struct{}, len(tokens))
	deduped := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, seen := invalid[t]; seen {
			continue
		}
		invalid[t] = struct{}{}
		deduped = append(deduped, t)
	}

	pruned := make(map[string]struct{})
	for start := 0; start < len(deduped); start += tokenLookupBatch {
		end := start + tokenLookupBatch
		if end > len(deduped) {
			end = len(deduped)
		}
		owners, err := h.store.GetRecipientsByTokens(ctx, deduped[start:end])
		if err != nil {
			return fmt.Errorf("lookup token owners: %w", err)
		}

		for _, owner := range owners {
			if _, done := pruned[owner.ID]; done {
				continue
			}
			pruned[owner.ID] = struct{}{}

			var dead []string
			for _, t := range owner.FCMTokens {
				if _, bad := invalid[t]; bad {
					dead = append(dead, t)
				}
			}
			if len(dead) == 0 {
				continue
			}
			if err := h.store.RemoveRecipientTokens(ctx, owner.ID, dead); err != nil {
				h.log.Error().Err(err).Str("recipient_id", owner.ID).
					Msg("failed to prune invalid tokens")
				continue
			}
			h.log.Info().Str("recipient_id", owner.ID).Int("pruned", len(dead)).
				Msg("removed invalid push endpoints")
		}
	}
	return nil
}
