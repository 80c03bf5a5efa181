package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osanchezp/loyaltynotify/internal/models"
)

func TestPruneInvalidRemovesOnlyDeadTokens(t *testing.T) {
	store := newFakeTokenStore()
	store.addOwner(models.Recipient{ID: "a", FCMTokens: []string{"t1", "t2", "t3"}})
	h := NewHygiene(store, zerolog.Nop())

	err := h.PruneInvalid(context.Background(), []string{"t2"})

	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, store.removed["a"])
}

func TestPruneInvalidBatchesLookups(t *testing.T) {
	store := newFakeTokenStore()
	var tokens []string
	for i := 0; i < 23; i++ {
		tokens = append(tokens, fmt.Sprintf("tok-%02d", i))
	}
	h := NewHygiene(store, zerolog.Nop())

	err := h.PruneInvalid(context.Background(), tokens)

	require.NoError(t, err)
	require.Len(t, store.lookups, 3)
	assert.Len(t, store.lookups[0], 10)
	assert.Len(t, store.lookups[1], 10)
	assert.Len(t, store.lookups[2], 3)
}

func TestPruneInvalidDeduplicates(t *testing.T) {
	store := newFakeTokenStore()
	store.addOwner(models.Recipient{ID: "a", FCMTokens: []string{"t1"}})
	h := NewHygiene(store, zerolog.Nop())

	err := h.PruneInvalid(context.Background(), []string{"t1", "t1", "t1"})

	require.NoError(t, err)
	require.Len(t, store.lookups, 1)
	assert.Len(t, store.lookups[0], 1)
	assert.Equal(t, []string{"t1"}, store.removed["a"])
}

func TestPruneInvalidNoTokensIsANoop(t *testing.T) {
	store := newFakeTokenStore()
	h := NewHygiene(store, zerolog.Nop())

	require.NoError(t, h.PruneInvalid(context.Background(), nil))
	assert.Empty(t, store.lookups)
}

func TestPruneInvalidUntouchedOwners(t *testing.T) {
	store := newFakeTokenStore()
	store.addOwner(models.Recipient{ID: "a", FCMTokens: []string{"dead"}})
	store.addOwner(models.Recipient{ID: "b", FCMTokens: []string{"alive"}})
	h := NewHygiene(store, zerolog.Nop())

	err := h.PruneInvalid(context.Background(), []string{"dead"})

	require.NoError(t, err)
	assert.Contains(t, store.removed, "a")
	assert.NotContains(t, store.removed, "b")
}
