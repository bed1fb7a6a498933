package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/pkg/cache"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/storage"
	"github.com/shopspring/decimal"
)

const catalogCacheKey = "foodie:catalog:items"

// Upload is an image file received with a catalog write.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ItemInput is the admin form for creating or replacing an item.
type ItemInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Quantity    int
	Rating      float64
	Hearts      int
}

// CatalogService owns the menu: admin writes, the cached public list and
// image storage.
type CatalogService struct {
	items *repositories.ItemRepository
	disk  storage.Disk
	ttl   time.Duration
}

func NewCatalogService(items *repositories.ItemRepository, disk storage.Disk, ttl time.Duration) *CatalogService {
	return &CatalogService{items: items, disk: disk, ttl: ttl}
}

// List returns the catalog newest first with absolute image URLs. The result
// is cached in Redis until the next catalog or stock write.
func (s *CatalogService) List(ctx context.Context) ([]models.Item, error) {
	return cache.Remember(ctx, catalogCacheKey, s.ttl, func(ctx context.Context) ([]models.Item, error) {
		items, err := s.items.All(ctx)
		if err != nil {
			return nil, err
		}
		for i := range items {
			s.decorate(&items[i])
		}
		return items, nil
	})
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.items.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("Item not found")
	}
	if err != nil {
		return nil, err
	}
	s.decorate(item)
	return item, nil
}

func (s *CatalogService) Create(ctx context.Context, in ItemInput, image *Upload) (*models.Item, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}
	if image == nil {
		return nil, &ValidationError{Message: "Image is required", Fields: map[string]string{"image": "Image is required"}}
	}
	if err := s.uniqueName(ctx, in.Name, ""); err != nil {
		return nil, err
	}

	key, err := s.storeImage(ctx, image)
	if err != nil {
		return nil, err
	}

	item := &models.Item{Image: key}
	apply(item, in)
	if err := s.items.Create(ctx, item); err != nil {
		s.dropImage(ctx, key)
		return nil, err
	}

	s.Invalidate(ctx)
	s.decorate(item)
	return item, nil
}

// Update replaces every field. The stored image is kept unless a new one
// is sent, in which case the old file is removed.
func (s *CatalogService) Update(ctx context.Context, id string, in ItemInput, image *Upload) (*models.Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateItem(in); err != nil {
		return nil, err
	}
	if err := s.uniqueName(ctx, in.Name, id); err != nil {
		return nil, err
	}

	oldImage := item.Image
	if image != nil {
		key, err := s.storeImage(ctx, image)
		if err != nil {
			return nil, err
		}
		item.Image = key
	}

	apply(item, in)
	if err := s.items.Update(ctx, item); err != nil {
		if item.Image != oldImage {
			s.dropImage(ctx, item.Image)
		}
		return nil, err
	}
	if item.Image != oldImage {
		s.dropImage(ctx, oldImage)
	}

	s.Invalidate(ctx)
	s.decorate(item)
	return item, nil
}

// QuickUpdate changes only price and stock.
func (s *CatalogService) QuickUpdate(ctx context.Context, id string, price *decimal.Decimal, quantity *int) (*models.Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if price != nil && price.IsNegative() {
		fields["price"] = "price must not be negative"
	}
	if quantity != nil && *quantity < 0 {
		fields["quantity"] = "quantity must not be negative"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if price != nil {
		item.Price = *price
		item.Total = *price
	}
	if quantity != nil {
		item.Stock = *quantity
	}
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}

	s.Invalidate(ctx)
	return item, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	item, err := s.items.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("Item not found")
	}
	if err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFound("Item not found")
		}
		return err
	}

	s.dropImage(ctx, item.Image)
	s.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached catalog. Called after any stock change too.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if err := cache.Forget(ctx, catalogCacheKey); err != nil {
		logger.WithCtx(ctx).Warn("catalog: cache invalidation failed", "error", err)
	}
}

func (s *CatalogService) decorate(item *models.Item) {
	if item.Image != "" && s.disk != nil {
		item.ImageURL = s.disk.URL(item.Image)
	}
}

func (s *CatalogService) uniqueName(ctx context.Context, name, exceptID string) error {
	taken, err := s.items.ExistsByName(ctx, name, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return &StatusError{Kind: ErrBadRequest, Message: "Item name already exists"}
	}
	return nil
}

func (s *CatalogService) storeImage(ctx context.Context, up *Upload) (string, error) {
	ext := strings.ToLower(path.Ext(up.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
	default:
		return "", &ValidationError{Message: "Unsupported image type", Fields: map[string]string{"image": "must be jpg, png, webp or gif"}}
	}

	if s.disk == nil {
		return "", errors.New("catalog: image storage is not configured")
	}
	key := fmt.Sprintf("items/%d_%s%s", time.Now().Unix(), uuid.NewString()[:8], ext)
	if err := s.disk.Put(ctx, key, up.Body, up.ContentType); err != nil {
		return "", fmt.Errorf("catalog: store image: %w", err)
	}
	return key, nil
}

func (s *CatalogService) dropImage(ctx context.Context, key string) {
	if key == "" || s.disk == nil {
		return
	}
	if err := s.disk.Delete(ctx, key); err != nil {
		logger.WithCtx(ctx).Warn("catalog: image delete failed", "key", key, "error", err)
	}
}

func validateItem(in ItemInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "name is required"
	}
	if in.Price.IsNegative() {
		fields["price"] = "price must not be negative"
	}
	if in.Quantity < 0 {
		fields["quantity"] = "quantity must not be negative"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func apply(item *models.Item, in ItemInput) {
	item.Name = strings.TrimSpace(in.Name)
	item.Description = in.Description
	item.Category = in.Category
	item.Price = in.Price
	item.Total = in.Price
	item.Stock = in.Quantity
	item.Rating = in.Rating
	item.Hearts = in.Hearts
}
