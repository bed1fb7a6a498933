package models

// CartEntry is one line of a user's server-side cart. Quantity is always
// at least 1; an entry that would drop below is deleted instead.
type CartEntry struct {
	Base
	UserID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_user_item" json:"userId"`
	ItemID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_user_item" json:"-"`
	Item     *Item  `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE" json:"item"`
	Quantity int    `gorm:"not null" json:"quantity"`
}
