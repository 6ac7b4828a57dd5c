package credentials

import (
	"context"
	"testing"

	"github.com/qrforge/qrforge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() map[models.Tier]models.TierLimits {
	return map[models.Tier]models.TierLimits{
		models.TierFree: {RequestsPerWindow: 2, WindowSeconds: 60},
		models.TierPro:  {RequestsPerWindow: 100, WindowSeconds: 60},
	}
}

func TestStore_UpsertIsPureOverwrite(t *testing.T) {
	store := NewStore(testLimits(), nil)
	ctx := context.Background()

	account := models.Account{
		Identity: "acct_1",
		KeyHash:  "hash1",
		Tier:     models.TierFree,
		Enabled:  true,
	}

	require.NoError(t, store.Upsert(ctx, account))
	require.NoError(t, store.Upsert(ctx, account))
	assert.Equal(t, 1, store.Count())

	// Overwrite with a new tier; no delta semantics.
	account.Tier = models.TierPro
	require.NoError(t, store.Upsert(ctx, account))

	got, ok := store.GetByIdentity("acct_1")
	require.True(t, ok)
	assert.Equal(t, models.TierPro, got.Tier)
	assert.Equal(t, 1, store.Count())
}

func TestStore_KeyRotationDropsOldHash(t *testing.T) {
	store := NewStore(testLimits(), nil)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, models.Account{
		Identity: "acct_1", KeyHash: "oldhash", Tier: models.TierFree, Enabled: true,
	}))
	require.NoError(t, store.Upsert(ctx, models.Account{
		Identity: "acct_1", KeyHash: "newhash", Tier: models.TierFree, Enabled: true,
	}))

	_, ok := store.GetByKeyHash("oldhash")
	assert.False(t, ok, "rotated key must stop resolving")

	got, ok := store.GetByKeyHash("newhash")
	require.True(t, ok)
	assert.Equal(t, "acct_1", got.Identity)
}

func TestStore_UpsertWithoutKeyPreservesCredential(t *testing.T) {
	store := NewStore(testLimits(), nil)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, models.Account{
		Identity: "acct_1", KeyHash: "hash1", Tier: models.TierFree, Enabled: true,
	}))

	// Tier-only mutation carries no key; the stored credential survives.
	require.NoError(t, store.Upsert(ctx, models.Account{
		Identity: "acct_1", Tier: models.TierPro, Enabled: true,
	}))

	got, ok := store.GetByKeyHash("hash1")
	require.True(t, ok)
	assert.Equal(t, models.TierPro, got.Tier)
}

func TestStore_RejectsUnknownTier(t *testing.T) {
	store := NewStore(testLimits(), nil)

	err := store.Upsert(context.Background(), models.Account{
		Identity: "acct_1", KeyHash: "hash1", Tier: "platinum", Enabled: true,
	})
	assert.Error(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestStore_SetEnabled(t *testing.T) {
	store := NewStore(testLimits(), nil)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, models.Account{
		Identity: "acct_1", KeyHash: "hash1", Tier: models.TierFree, Enabled: true,
	}))

	require.NoError(t, store.SetEnabled(ctx, "acct_1", false))
	got, _ := store.GetByIdentity("acct_1")
	assert.False(t, got.Enabled)

	require.NoError(t, store.SetEnabled(ctx, "acct_1", true))
	got, _ = store.GetByIdentity("acct_1")
	assert.True(t, got.Enabled)

	assert.Error(t, store.SetEnabled(ctx, "acct_missing", false))
}

func TestStore_CopiesOut(t *testing.T) {
	store := NewStore(testLimits(), nil)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, models.Account{
		Identity: "acct_1", KeyHash: "hash1", Tier: models.TierFree, Enabled: true,
	}))

	got, _ := store.GetByIdentity("acct_1")
	got.Tier = models.TierPro

	again, _ := store.GetByIdentity("acct_1")
	assert.Equal(t, models.TierFree, again.Tier, "callers must not be able to mutate store state")
}
