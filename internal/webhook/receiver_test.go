package webhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/qrforge/qrforge/internal/credentials"
	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "webhook-test-secret"

func testLimits() map[models.Tier]models.TierLimits {
	return map[models.Tier]models.TierLimits{
		models.TierFree:     {RequestsPerWindow: 2, WindowSeconds: 60},
		models.TierBusiness: {RequestsPerWindow: 100, WindowSeconds: 60},
	}
}

func newTestReceiver(t *testing.T) (*Receiver, *credentials.Store, *ratelimit.SlidingWindow) {
	t.Helper()
	store := credentials.NewStore(testLimits(), nil)
	limiter := ratelimit.NewSlidingWindow(time.Minute)
	return New(store, limiter, testSecret), store, limiter
}

func signedPayload(t *testing.T, p Payload) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(p)
	require.NoError(t, err)
	return body, Sign(testSecret, body)
}

func TestReceiver_UpsertAndIdempotency(t *testing.T) {
	receiver, store, _ := newTestReceiver(t)
	ctx := context.Background()

	body, sig := signedPayload(t, Payload{
		Identity: "acct_123",
		Tier:     models.TierBusiness,
		Action:   ActionUpsert,
		APIKey:   "qrf_testkey123",
	})

	result, err := receiver.Handle(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, "acct_123", result.Identity)

	first, ok := store.GetByIdentity("acct_123")
	require.True(t, ok)
	assert.Equal(t, models.TierBusiness, first.Tier)
	assert.True(t, first.Enabled)

	// Replaying the identical payload leaves the store in the same state.
	_, err = receiver.Handle(ctx, body, sig)
	require.NoError(t, err)

	second, ok := store.GetByIdentity("acct_123")
	require.True(t, ok)
	assert.Equal(t, first.Tier, second.Tier)
	assert.Equal(t, first.Enabled, second.Enabled)
	assert.Equal(t, 1, store.Count())
}

func TestReceiver_RejectsTamperedSignature(t *testing.T) {
	receiver, store, _ := newTestReceiver(t)
	ctx := context.Background()

	body, sig := signedPayload(t, Payload{
		Identity: "acct_evil",
		Tier:     models.TierFree,
		Action:   ActionUpsert,
		APIKey:   "qrf_evil",
	})

	t.Run("single bit flip", func(t *testing.T) {
		flipped := []byte(sig)
		flipped[0] ^= 0x01

		_, err := receiver.Handle(ctx, body, string(flipped))
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("completely wrong signature", func(t *testing.T) {
		_, err := receiver.Handle(ctx, body, "deadbeef")
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("empty signature", func(t *testing.T) {
		_, err := receiver.Handle(ctx, body, "")
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	_, ok := store.GetByIdentity("acct_evil")
	assert.False(t, ok, "rejected payloads must not mutate the store")
}

func TestReceiver_PayloadValidation(t *testing.T) {
	receiver, _, _ := newTestReceiver(t)
	ctx := context.Background()

	t.Run("unknown tier", func(t *testing.T) {
		body, sig := signedPayload(t, Payload{
			Identity: "acct_1",
			Tier:     "platinum",
			Action:   ActionUpsert,
			APIKey:   "qrf_key",
		})
		_, err := receiver.Handle(ctx, body, sig)
		assert.ErrorIs(t, err, ErrInvalidTier)
	})

	t.Run("missing identity", func(t *testing.T) {
		body, sig := signedPayload(t, Payload{Tier: models.TierFree, Action: ActionUpsert})
		_, err := receiver.Handle(ctx, body, sig)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("unknown action", func(t *testing.T) {
		body, sig := signedPayload(t, Payload{Identity: "acct_1", Tier: models.TierFree, Action: "explode"})
		_, err := receiver.Handle(ctx, body, sig)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("not json", func(t *testing.T) {
		body := []byte("not json at all")
		_, err := receiver.Handle(ctx, body, Sign(testSecret, body))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}

func TestReceiver_DisableClearsWindowEnableDoesNot(t *testing.T) {
	receiver, store, limiter := newTestReceiver(t)
	ctx := context.Background()

	body, sig := signedPayload(t, Payload{
		Identity: "acct_toggle",
		Tier:     models.TierFree,
		Action:   ActionUpsert,
		APIKey:   "qrf_toggle",
	})
	_, err := receiver.Handle(ctx, body, sig)
	require.NoError(t, err)

	limiter.Admit("acct_toggle", testLimits()[models.TierFree], 1)
	require.Equal(t, 1, limiter.ActiveIdentities())

	body, sig = signedPayload(t, Payload{Identity: "acct_toggle", Action: ActionDisable})
	_, err = receiver.Handle(ctx, body, sig)
	require.NoError(t, err)

	account, ok := store.GetByIdentity("acct_toggle")
	require.True(t, ok)
	assert.False(t, account.Enabled)
	assert.Equal(t, 0, limiter.ActiveIdentities(), "disabling should clear the rate window")

	body, sig = signedPayload(t, Payload{Identity: "acct_toggle", Action: ActionEnable})
	_, err = receiver.Handle(ctx, body, sig)
	require.NoError(t, err)

	account, ok = store.GetByIdentity("acct_toggle")
	require.True(t, ok)
	assert.True(t, account.Enabled)
}

func TestReceiver_TierChangePreservesWindow(t *testing.T) {
	receiver, _, limiter := newTestReceiver(t)
	ctx := context.Background()

	body, sig := signedPayload(t, Payload{
		Identity: "acct_down",
		Tier:     models.TierBusiness,
		Action:   ActionUpsert,
		APIKey:   "qrf_down",
	})
	_, err := receiver.Handle(ctx, body, sig)
	require.NoError(t, err)

	business := testLimits()[models.TierBusiness]
	for i := 0; i < 5; i++ {
		require.True(t, limiter.Admit("acct_down", business, 1).Allowed)
	}

	// Downgrade to free (limit 2). The window survives, so the next
	// request under the new limits is rejected immediately.
	body, sig = signedPayload(t, Payload{Identity: "acct_down", Tier: models.TierFree, Action: ActionUpsert})
	_, err = receiver.Handle(ctx, body, sig)
	require.NoError(t, err)

	d := limiter.Admit("acct_down", testLimits()[models.TierFree], 1)
	assert.False(t, d.Allowed, "stale window must not be forgiven after a downgrade")
}
