package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qrforge/qrforge/internal/auth"
	"github.com/qrforge/qrforge/internal/credentials"
	"github.com/qrforge/qrforge/internal/models"
	"github.com/rs/zerolog/log"
)

// HeaderSignature carries the hex HMAC-SHA256 of the raw payload bytes.
const HeaderSignature = "X-Webhook-Signature"

var (
	ErrBadSignature     = errors.New("bad webhook signature")
	ErrInvalidTier      = errors.New("invalid tier")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

const (
	ActionUpsert  = "upsert"
	ActionEnable  = "enable"
	ActionDisable = "disable"
)

// Payload is the mutation pushed by the trusted backend.
type Payload struct {
	Identity string      `json:"identity"`
	Tier     models.Tier `json:"tier"`
	Action   string      `json:"action"`
	APIKey   string      `json:"api_key,omitempty"`
}

type Result struct {
	Identity string      `json:"identity"`
	Action   string      `json:"action"`
	Tier     models.Tier `json:"tier,omitempty"`
}

// Windows is the slice of the rate limiter the receiver needs.
type Windows interface {
	Reset(identity string)
}

// Receiver verifies signed payloads from the account backend and applies
// them to the credential store. Applying the same payload twice leaves the
// store in the same state, so delivery retries are safe.
//
// Tier changes do NOT clear the identity's rate window: the recorded
// timestamps immediately count against the new tier's limit, so a
// downgrade takes effect on the very next request. Disabling an account
// does clear its window, since the identity can no longer authenticate.
type Receiver struct {
	store   *credentials.Store
	windows Windows
	secret  []byte
}

func New(store *credentials.Store, windows Windows, secret string) *Receiver {
	return &Receiver{
		store:   store,
		windows: windows,
		secret:  []byte(secret),
	}
}

// Handle verifies the signature, validates the payload, and applies the
// mutation. A rejected payload is never partially applied.
func (r *Receiver) Handle(ctx context.Context, payload []byte, signature string) (Result, error) {
	if !r.verify(payload, signature) {
		return Result{}, ErrBadSignature
	}

	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Identity == "" || p.Action == "" {
		return Result{}, fmt.Errorf("%w: identity and action are required", ErrMalformedPayload)
	}

	switch p.Action {
	case ActionUpsert:
		if p.Tier == "" {
			return Result{}, fmt.Errorf("%w: tier is required for upsert", ErrMalformedPayload)
		}
		if !r.store.ValidTier(p.Tier) {
			return Result{}, fmt.Errorf("%w: %q", ErrInvalidTier, p.Tier)
		}
		account := models.Account{
			Identity: p.Identity,
			Tier:     p.Tier,
			Enabled:  true,
		}
		if p.APIKey != "" {
			account.KeyHash = auth.HashKey(p.APIKey)
		}
		if err := r.store.Upsert(ctx, account); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}

	case ActionEnable, ActionDisable:
		enabled := p.Action == ActionEnable
		if err := r.store.SetEnabled(ctx, p.Identity, enabled); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if !enabled && r.windows != nil {
			r.windows.Reset(p.Identity)
		}

	default:
		return Result{}, fmt.Errorf("%w: unknown action %q", ErrMalformedPayload, p.Action)
	}

	log.Info().
		Str("identity", p.Identity).
		Str("action", p.Action).
		Str("tier", p.Tier.String()).
		Msg("webhook mutation applied")

	return Result{Identity: p.Identity, Action: p.Action, Tier: p.Tier}, nil
}

// verify recomputes the expected signature and compares in constant time,
// so a near-miss and a completely wrong signature are indistinguishable.
func (r *Receiver) verify(payload []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")

	mac := hmac.New(sha256.New, r.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature for payload. Exported for callers and tests
// that need to produce valid deliveries.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
