package repository

import (
	"context"

	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *storage.Postgres
}

func NewAccountRepository(db *storage.Postgres) *AccountRepository {
	return &AccountRepository{db: db}
}

// Upsert overwrites the row for the account's identity. A pure overwrite
// keeps webhook replays idempotent.
func (r *AccountRepository) Upsert(ctx context.Context, account *models.Account) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{"key_hash", "tier", "enabled", "updated_at"}),
		}).
		Create(account).Error
}

func (r *AccountRepository) FindByIdentity(ctx context.Context, identity string) (*models.Account, error) {
	var account models.Account
	err := r.db.DB.WithContext(ctx).
		Where("identity = ?", identity).
		First(&account).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &account, err
}

func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&accounts).Error

	return accounts, err
}

func (r *AccountRepository) SetEnabled(ctx context.Context, identity string, enabled bool) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.Account{}).
		Where("identity = ?", identity).
		Update("enabled", enabled).Error
}
