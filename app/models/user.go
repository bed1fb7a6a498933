package models

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User is an account that can hold a cart and place orders.
type User struct {
	Base
	Username string `gorm:"size:255;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"` // hashed, never serialised
	Role     string `gorm:"size:20;not null;default:client" json:"role"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
