package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/qrforge/qrforge/internal/credentials"
	"github.com/qrforge/qrforge/internal/models"
)

// HeaderAPIKey is the only part of the request the authenticator reads.
const HeaderAPIKey = "X-API-Key"

// Anonymous identities live in their own namespace so they can never
// collide with a real account identity.
const anonPrefix = "anon:"

var (
	ErrInvalidKey      = errors.New("invalid API key")
	ErrDisabledAccount = errors.New("account is disabled")
	ErrAuthRequired    = errors.New("authentication required")
)

// Authenticator resolves an inbound request to (identity, tier). It only
// reads from the credential store; nothing here mutates account state.
type Authenticator struct {
	store       *credentials.Store
	limits      map[models.Tier]models.TierLimits
	anonEnabled bool
	anonTier    models.Tier
	salt        []byte
}

func New(store *credentials.Store, limits map[models.Tier]models.TierLimits, anonEnabled bool, anonTier models.Tier, identitySalt string) *Authenticator {
	return &Authenticator{
		store:       store,
		limits:      limits,
		anonEnabled: anonEnabled,
		anonTier:    anonTier,
		salt:        []byte(identitySalt),
	}
}

// Resolve maps an API key (or, absent one, the caller IP) to an identity
// and tier. Authentication failures are terminal; a bad key is never
// silently downgraded to anonymous.
func (a *Authenticator) Resolve(apiKey, clientIP string) (string, models.Tier, error) {
	if apiKey != "" {
		account, ok := a.store.GetByKeyHash(HashKey(apiKey))
		if !ok {
			return "", "", ErrInvalidKey
		}
		if !account.Enabled {
			return "", "", ErrDisabledAccount
		}
		return account.Identity, account.Tier, nil
	}

	if a.anonEnabled {
		return a.AnonymousIdentity(clientIP), a.anonTier, nil
	}

	return "", "", ErrAuthRequired
}

// Limits returns the tier table entry for a resolved tier.
func (a *Authenticator) Limits(tier models.Tier) (models.TierLimits, bool) {
	limits, ok := a.limits[tier]
	return limits, ok
}

// AnonymousIdentity derives a stable identity from the caller IP using a
// keyed hash, so the raw address is neither stored nor recoverable by
// precomputed tables over the IPv4 space.
func (a *Authenticator) AnonymousIdentity(clientIP string) string {
	mac := hmac.New(sha256.New, a.salt)
	mac.Write([]byte(clientIP))
	return anonPrefix + hex.EncodeToString(mac.Sum(nil))
}

// HashKey is the storage form of an API key. Plain keys are only visible
// at creation time.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
