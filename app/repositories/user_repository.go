package repositories

import (
	"context"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/pkg/orm"
	"gorm.io/gorm"
)

// UserRepository handles database operations for User.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks up a user by their email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := orm.On(r.db).WithContext(ctx).Model(&models.User{}).Where("email = ?", email).First(&user)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindByID looks up a user by primary key.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := orm.On(r.db).WithContext(ctx).Model(&models.User{}).Where("id = ?", id).First(&user)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Create persists a new user record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return orm.On(r.db).WithContext(ctx).Create(user)
}

// Update persists changes to an existing user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return orm.On(r.db).WithContext(ctx).Save(user)
}
