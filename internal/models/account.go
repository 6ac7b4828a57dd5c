package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Identity  string    `gorm:"uniqueIndex;not null" json:"identity"`
	KeyHash   string    `gorm:"uniqueIndex;not null" json:"-"`
	Tier      Tier      `gorm:"not null;default:'free'" json:"tier"`
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (Account) TableName() string {
	return "accounts"
}
