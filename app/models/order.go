package models

import "github.com/shopspring/decimal"

const (
	PaymentCOD    = "cod"
	PaymentOnline = "online"
)

// Order is a placed order. Orders are never deleted; cancellation is a status.
type Order struct {
	Base
	UserID string `gorm:"type:varchar(36);not null;index" json:"userId"`

	FirstName string `gorm:"size:100" json:"firstName"`
	LastName  string `gorm:"size:100" json:"lastName"`
	Phone     string `gorm:"size:30" json:"phone"`
	Email     string `gorm:"size:255" json:"email"`
	Address   string `gorm:"size:500" json:"address"`
	City      string `gorm:"size:100" json:"city"`
	ZipCode   string `gorm:"size:20" json:"zipCode"`

	PaymentMethod string        `gorm:"size:20;not null" json:"paymentMethod"`
	PaymentStatus PaymentStatus `gorm:"size:20;not null;default:pending;index" json:"paymentStatus"`
	Status        OrderStatus   `gorm:"size:30;not null;default:placed;index" json:"status"`

	Subtotal decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"subtotal"`
	Tax      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"tax"`
	Shipping decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"shipping"`
	Total    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total"`

	SessionID       string `gorm:"size:255;index" json:"sessionId,omitempty"`
	PaymentIntentID string `gorm:"size:255" json:"paymentIntentId,omitempty"`

	// StockCommitted is true while this order's quantities are subtracted
	// from item stock and not yet given back.
	StockCommitted bool `gorm:"not null;default:false" json:"stockCommitted"`

	Lines []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderLine is a snapshot of one item taken when the order was placed.
type OrderLine struct {
	Base
	OrderID  string          `gorm:"type:varchar(36);not null;index" json:"-"`
	ItemID   *string         `gorm:"type:varchar(36);index" json:"itemId"`
	Name     string          `gorm:"size:255;not null" json:"name"`
	Price    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	ImageURL string          `gorm:"size:512" json:"imageUrl"`
	Quantity int             `gorm:"not null;default:0" json:"quantity"`
}

func (o *Order) IsOwnedBy(userID string) bool { return o.UserID == userID }

// IsPaidOnline reports whether the provider holds money for this order.
func (o *Order) IsPaidOnline() bool {
	return o.PaymentMethod == PaymentOnline && o.PaymentStatus == PaymentSucceeded && o.PaymentIntentID != ""
}
