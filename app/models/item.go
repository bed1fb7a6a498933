package models

import "github.com/shopspring/decimal"

// Item is a dish on the menu.
type Item struct {
	Base
	Name        string          `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"size:100;index" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Rating      float64         `gorm:"not null;default:0" json:"rating"`
	Hearts      int             `gorm:"not null;default:0" json:"hearts"`
	Stock       int             `gorm:"not null;default:0" json:"quantity"`
	Image       string          `gorm:"size:512" json:"-"`
	Total       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total"`

	// ImageURL is the absolute URL of Image, filled in by the catalog.
	ImageURL string `gorm:"-" json:"imageUrl"`
}
