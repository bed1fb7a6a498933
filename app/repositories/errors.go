package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrItemNotFound is returned by stock operations on a missing item.
	ErrItemNotFound = fmt.Errorf("item: %w", ErrNotFound)

	// ErrStockConflict is returned by DecrementStock when the item no longer
	// has enough stock for the conditional update to apply.
	ErrStockConflict = errors.New("stock conflict")
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
