package repositories

import (
	"context"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/pkg/orm"
	"gorm.io/gorm"
)

// ItemRepository handles database operations for menu items.
type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) q(ctx context.Context) *orm.Query {
	return orm.On(r.db).WithContext(ctx)
}

// FindByID looks up an item by primary key.
func (r *ItemRepository) FindByID(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := r.q(ctx).Model(&models.Item{}).Where("id = ?", id).First(&item)
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// ExistsByName reports whether another item already uses name.
func (r *ItemRepository) ExistsByName(ctx context.Context, name, exceptID string) (bool, error) {
	n, err := r.q(ctx).Model(&models.Item{}).
		Where("name = ?", name).
		WhereIf(exceptID != "", "id <> ?", exceptID).
		Count()
	return n > 0, err
}

// All returns the catalog, newest first.
func (r *ItemRepository) All(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := r.q(ctx).Model(&models.Item{}).OrderBy("created_at desc").Get(&items)
	return items, err
}

func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	return r.q(ctx).Create(item)
}

func (r *ItemRepository) Update(ctx context.Context, item *models.Item) error {
	return r.q(ctx).Save(item)
}

// Delete removes the item; it returns ErrNotFound when nothing was deleted.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock subtracts qty only if at least qty is in stock. It is a
// single conditional UPDATE, so concurrent callers cannot push stock below
// zero.
func (r *ItemRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if err := r.mustExist(ctx, id); err != nil {
		return err
	}
	return ErrStockConflict
}

// RestoreStock gives qty back to the item.
func (r *ItemRepository) RestoreStock(ctx context.Context, id string, qty int) error {
	return r.AdjustStock(ctx, id, qty)
}

// AdjustStock applies delta and clamps the result at zero.
func (r *ItemRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	res := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("CASE WHEN stock + ? < 0 THEN 0 ELSE stock + ? END", delta, delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// some drivers report zero when the value did not change
		return r.mustExist(ctx, id)
	}
	return nil
}

func (r *ItemRepository) mustExist(ctx context.Context, id string) error {
	n, err := r.q(ctx).Model(&models.Item{}).Where("id = ?", id).Count()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}
