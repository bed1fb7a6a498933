package repositories

import (
	"context"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/pkg/orm"
	"gorm.io/gorm"
)

// CartRepository stores cart entries. Every lookup is scoped by user.
type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) q(ctx context.Context) *orm.Query {
	return orm.On(r.db).WithContext(ctx)
}

// ListByUser returns the user's entries with the live item attached.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartEntry, error) {
	entries := []models.CartEntry{}
	err := r.q(ctx).Model(&models.CartEntry{}).
		Preload("Item").
		Where("user_id = ?", userID).
		OrderBy("created_at asc").
		Get(&entries)
	return entries, err
}

// FindByItem returns the user's entry for itemID.
func (r *CartRepository) FindByItem(ctx context.Context, userID, itemID string) (*models.CartEntry, error) {
	var entry models.CartEntry
	err := r.q(ctx).Model(&models.CartEntry{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&entry)
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// FindOwned returns entry id only if it belongs to userID.
func (r *CartRepository) FindOwned(ctx context.Context, userID, id string) (*models.CartEntry, error) {
	var entry models.CartEntry
	err := r.q(ctx).Model(&models.CartEntry{}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&entry)
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

func (r *CartRepository) Create(ctx context.Context, entry *models.CartEntry) error {
	return r.db.WithContext(ctx).Omit("Item").Create(entry).Error
}

// SetQuantity updates only the quantity column.
func (r *CartRepository) SetQuantity(ctx context.Context, entry *models.CartEntry, qty int) error {
	err := r.db.WithContext(ctx).Model(entry).Update("quantity", qty).Error
	if err == nil {
		entry.Quantity = qty
	}
	return err
}

// DeleteOwned removes entry id for userID and reports ErrNotFound when it
// did not exist or belongs to someone else.
func (r *CartRepository) DeleteOwned(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.CartEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every entry for userID.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartEntry{}).Error
}
