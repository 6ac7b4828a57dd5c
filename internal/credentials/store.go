package credentials

import (
	"context"
	"fmt"
	"sync"

	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/repository"
	"github.com/rs/zerolog/log"
)

// Store maps API-key hashes to accounts. Lookups are in-memory and
// non-blocking; the optional repository only rehydrates the store at
// startup and records mutations so accounts survive a restart.
//
// All mutation is funneled through the webhook receiver. Accounts are never
// deleted in-process, only disabled.
type Store struct {
	mu         sync.RWMutex
	byHash     map[string]*models.Account
	byIdentity map[string]*models.Account

	limits map[models.Tier]models.TierLimits
	repo   *repository.AccountRepository // nil means memory-only
}

func NewStore(limits map[models.Tier]models.TierLimits, repo *repository.AccountRepository) *Store {
	return &Store{
		byHash:     make(map[string]*models.Account),
		byIdentity: make(map[string]*models.Account),
		limits:     limits,
		repo:       repo,
	}
}

// Load rehydrates the store from the database. Fails fast if any persisted
// account references a tier absent from the configured tier table.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	accounts, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range accounts {
		account := accounts[i]
		if _, ok := s.limits[account.Tier]; !ok {
			return fmt.Errorf("account %s references unknown tier %q", account.Identity, account.Tier)
		}
		s.byHash[account.KeyHash] = &account
		s.byIdentity[account.Identity] = &account
	}

	log.Info().Int("accounts", len(accounts)).Msg("credential store loaded")
	return nil
}

// ValidTier reports whether the tier exists in the configured tier table.
func (s *Store) ValidTier(tier models.Tier) bool {
	_, ok := s.limits[tier]
	return ok
}

// GetByKeyHash looks up an account by the SHA-256 hash of its API key.
// Returns a copy so callers cannot mutate store state.
func (s *Store) GetByKeyHash(hash string) (models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byHash[hash]
	if !ok {
		return models.Account{}, false
	}
	return *account, true
}

func (s *Store) GetByIdentity(identity string) (models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byIdentity[identity]
	if !ok {
		return models.Account{}, false
	}
	return *account, true
}

// Upsert replaces the account for account.Identity wholesale. The overwrite
// carries no delta semantics, so replaying the same mutation is idempotent.
// An empty KeyHash preserves the existing credential.
func (s *Store) Upsert(ctx context.Context, account models.Account) error {
	if _, ok := s.limits[account.Tier]; !ok {
		return fmt.Errorf("unknown tier %q", account.Tier)
	}
	if account.Identity == "" {
		return fmt.Errorf("account identity cannot be empty")
	}

	s.mu.Lock()
	existing, exists := s.byIdentity[account.Identity]
	if exists {
		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
		if account.KeyHash == "" {
			account.KeyHash = existing.KeyHash
		}
		if existing.KeyHash != account.KeyHash {
			delete(s.byHash, existing.KeyHash)
		}
	}
	if account.KeyHash == "" {
		s.mu.Unlock()
		return fmt.Errorf("account %s has no API key", account.Identity)
	}

	stored := account
	s.byHash[stored.KeyHash] = &stored
	s.byIdentity[stored.Identity] = &stored
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Upsert(ctx, &stored); err != nil {
			log.Error().Err(err).Str("identity", stored.Identity).Msg("failed to persist account")
		}
	}

	return nil
}

func (s *Store) SetEnabled(ctx context.Context, identity string, enabled bool) error {
	s.mu.Lock()
	account, ok := s.byIdentity[identity]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown identity %q", identity)
	}
	account.Enabled = enabled
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SetEnabled(ctx, identity, enabled); err != nil {
			log.Error().Err(err).Str("identity", identity).Msg("failed to persist enabled flag")
		}
	}

	return nil
}

func (s *Store) List() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]models.Account, 0, len(s.byIdentity))
	for _, account := range s.byIdentity {
		accounts = append(accounts, *account)
	}
	return accounts
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byIdentity)
}
