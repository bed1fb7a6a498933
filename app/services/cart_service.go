package services

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/repositories"
)

// CartService keeps the server-side cart. Stock checks here are advisory:
// nothing is reserved until an order commits stock.
type CartService struct {
	carts *repositories.CartRepository
	items *repositories.ItemRepository
}

func NewCartService(carts *repositories.CartRepository, items *repositories.ItemRepository) *CartService {
	return &CartService{carts: carts, items: items}
}

func (s *CartService) List(ctx context.Context, userID string) ([]models.CartEntry, error) {
	return s.carts.ListByUser(ctx, userID)
}

// Add increases the quantity of itemID in the cart by qty (qty may be
// negative). It reports whether a new entry was created. When the total
// drops below 1 the entry is removed and a zero-quantity entry is returned.
func (s *CartService) Add(ctx context.Context, userID, itemID string, qty int) (*models.CartEntry, bool, error) {
	if itemID == "" {
		return nil, false, &ValidationError{Message: "itemId is required", Fields: map[string]string{"itemId": "itemId is required"}}
	}

	item, err := s.liveItem(ctx, itemID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.carts.FindByItem(ctx, userID, itemID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, err
	}

	if existing != nil {
		total := existing.Quantity + qty
		if total > item.Stock {
			return nil, false, &InsufficientStockError{ItemID: itemID, Available: item.Stock, Requested: total}
		}
		if total < 1 {
			if err := s.carts.DeleteOwned(ctx, userID, existing.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return nil, false, err
			}
			existing.Quantity = 0
			existing.Item = item
			return existing, false, nil
		}
		if err := s.carts.SetQuantity(ctx, existing, total); err != nil {
			return nil, false, err
		}
		existing.Item = item
		return existing, false, nil
	}

	if qty > item.Stock {
		return nil, false, &InsufficientStockError{ItemID: itemID, Available: item.Stock, Requested: qty}
	}
	if qty < 1 {
		// nothing to remove and nothing worth storing
		return &models.CartEntry{UserID: userID, ItemID: itemID, Item: item, Quantity: 0}, false, nil
	}

	entry := &models.CartEntry{UserID: userID, ItemID: itemID, Quantity: qty}
	if err := s.carts.Create(ctx, entry); err != nil {
		return nil, false, err
	}
	entry.Item = item
	return entry, true, nil
}

// Update sets the quantity of an owned entry. Unlike Add it never removes
// the entry: quantities below 1 are stored as 1.
func (s *CartService) Update(ctx context.Context, userID, entryID string, qty int) (*models.CartEntry, error) {
	entry, err := s.carts.FindOwned(ctx, userID, entryID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("Cart item not found")
	}
	if err != nil {
		return nil, err
	}

	item, err := s.liveItem(ctx, entry.ItemID)
	if err != nil {
		return nil, err
	}
	if qty > item.Stock {
		return nil, &InsufficientStockError{ItemID: item.ID, Available: item.Stock, Requested: qty}
	}

	if qty < 1 {
		qty = 1
	}
	if err := s.carts.SetQuantity(ctx, entry, qty); err != nil {
		return nil, err
	}
	entry.Item = item
	return entry, nil
}

func (s *CartService) Remove(ctx context.Context, userID, entryID string) error {
	err := s.carts.DeleteOwned(ctx, userID, entryID)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound("Cart item not found")
	}
	return err
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}

// liveItem loads the item and rejects it when sold out.
func (s *CartService) liveItem(ctx context.Context, itemID string) (*models.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("Item not found")
	}
	if err != nil {
		return nil, err
	}
	if item.Stock <= 0 {
		return nil, ErrOutOfStock
	}
	return item, nil
}
