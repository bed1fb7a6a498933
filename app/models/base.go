package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every table. IDs are random UUIDs so they can be
// handed to clients without leaking row counts.
type Base struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"_id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// NewID returns an id for a row that must be known before it is inserted.
func NewID() string { return uuid.NewString() }
