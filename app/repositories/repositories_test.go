package repositories_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/pkg/testkit"
)

func setup(t *testing.T) (*repositories.ItemRepository, *repositories.OrderRepository, *repositories.CartRepository) {
	t.Helper()
	db := testkit.DB(t, &models.User{}, &models.Item{}, &models.CartEntry{}, &models.Order{}, &models.OrderLine{})
	return repositories.NewItemRepository(db), repositories.NewOrderRepository(db), repositories.NewCartRepository(db)
}

func seedItem(t *testing.T, items *repositories.ItemRepository, name string, stock int) *models.Item {
	t.Helper()
	item := &models.Item{Name: name, Price: decimal.RequireFromString("9.50"), Stock: stock}
	require.NoError(t, items.Create(context.Background(), item))
	return item
}

func stockOf(t *testing.T, items *repositories.ItemRepository, id string) int {
	t.Helper()
	item, err := items.FindByID(context.Background(), id)
	require.NoError(t, err)
	return item.Stock
}

// ─── Items ────────────────────────────────────────────────────────────────────

func TestDecrementStock(t *testing.T) {
	items, _, _ := setup(t)
	ctx := context.Background()
	item := seedItem(t, items, "Dal Makhani", 5)

	require.NoError(t, items.DecrementStock(ctx, item.ID, 2))
	assert.Equal(t, 3, stockOf(t, items, item.ID))

	err := items.DecrementStock(ctx, item.ID, 4)
	assert.ErrorIs(t, err, repositories.ErrStockConflict)
	assert.Equal(t, 3, stockOf(t, items, item.ID), "a lost CAS must not touch stock")

	err = items.DecrementStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, repositories.ErrItemNotFound)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestDecrementStockConcurrent(t *testing.T) {
	items, _, _ := setup(t)
	item := seedItem(t, items, "Paneer Tikka", 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		won       int
		conflicts int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := items.DecrementStock(context.Background(), item.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, repositories.ErrStockConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, won)
	assert.Equal(t, 5, conflicts)
	assert.Equal(t, 0, stockOf(t, items, item.ID))
}

func TestAdjustStockClampsAtZero(t *testing.T) {
	items, _, _ := setup(t)
	ctx := context.Background()
	item := seedItem(t, items, "Gulab Jamun", 2)

	require.NoError(t, items.AdjustStock(ctx, item.ID, -5))
	assert.Equal(t, 0, stockOf(t, items, item.ID))

	require.NoError(t, items.RestoreStock(ctx, item.ID, 3))
	assert.Equal(t, 3, stockOf(t, items, item.ID))

	assert.ErrorIs(t, items.RestoreStock(ctx, "missing", 1), repositories.ErrItemNotFound)
}

func TestItemNameUniqueness(t *testing.T) {
	items, _, _ := setup(t)
	ctx := context.Background()
	item := seedItem(t, items, "Masala Dosa", 1)

	taken, err := items.ExistsByName(ctx, "Masala Dosa", "")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = items.ExistsByName(ctx, "Masala Dosa", item.ID)
	require.NoError(t, err)
	assert.False(t, taken, "an item does not clash with itself")

	require.NoError(t, items.Delete(ctx, item.ID))
	assert.ErrorIs(t, items.Delete(ctx, item.ID), repositories.ErrNotFound)
}

// ─── Orders ───────────────────────────────────────────────────────────────────

func placeOrder(t *testing.T, orders *repositories.OrderRepository, o *models.Order) *models.Order {
	t.Helper()
	if o.UserID == "" {
		o.UserID = "u1"
	}
	if o.Status == "" {
		o.Status = models.StatusPlaced
	}
	require.NoError(t, orders.Create(context.Background(), o))
	return o
}

func TestMarkPaidIsClaimedOnce(t *testing.T) {
	_, orders, _ := setup(t)
	ctx := context.Background()
	o := placeOrder(t, orders, &models.Order{
		PaymentMethod: models.PaymentOnline,
		PaymentStatus: models.PaymentPending,
		SessionID:     "cs_1",
	})

	won, err := orders.MarkPaid(ctx, o.ID, "pi_1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = orders.MarkPaid(ctx, o.ID, "pi_2")
	require.NoError(t, err)
	assert.False(t, won)

	got, err := orders.FindBySessionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, got.PaymentStatus)
	assert.True(t, got.StockCommitted)
	assert.Equal(t, "pi_1", got.PaymentIntentID)
}

func TestMarkPaidSkipsCancelledOrders(t *testing.T) {
	_, orders, _ := setup(t)
	ctx := context.Background()
	o := placeOrder(t, orders, &models.Order{
		PaymentMethod: models.PaymentOnline,
		PaymentStatus: models.PaymentPending,
		Status:        models.StatusCancelled,
	})

	won, err := orders.MarkPaid(ctx, o.ID, "pi_1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestMarkCancelledRequiresUnchangedOrder(t *testing.T) {
	_, orders, _ := setup(t)
	ctx := context.Background()
	o := placeOrder(t, orders, &models.Order{
		PaymentMethod:  models.PaymentCOD,
		PaymentStatus:  models.PaymentSucceeded,
		StockCommitted: true,
	})

	stale := *o
	won, err := orders.TransitionStatus(ctx, o.ID, models.StatusPlaced, models.StatusProcessing, nil)
	require.NoError(t, err)
	require.True(t, won)

	won, err = orders.MarkCancelled(ctx, &stale)
	require.NoError(t, err)
	assert.False(t, won, "status moved on since it was read")

	fresh, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	won, err = orders.MarkCancelled(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, won)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.False(t, got.StockCommitted, "cancel clears the stock flag")
}

func TestTransitionStatusWritesExtraColumnsOnlyWhenItWins(t *testing.T) {
	_, orders, _ := setup(t)
	ctx := context.Background()
	o := placeOrder(t, orders, &models.Order{
		PaymentMethod: models.PaymentCOD,
		PaymentStatus: models.PaymentSucceeded,
		Phone:         "9999999999",
	})

	won, err := orders.TransitionStatus(ctx, o.ID, models.StatusProcessing, models.StatusDelivered,
		map[string]interface{}{"phone": "0000000000"})
	require.NoError(t, err)
	assert.False(t, won)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaced, got.Status)
	assert.Equal(t, "9999999999", got.Phone)

	won, err = orders.TransitionStatus(ctx, o.ID, models.StatusPlaced, models.StatusProcessing,
		map[string]interface{}{"phone": "0000000000"})
	require.NoError(t, err)
	assert.True(t, won)

	got, err = orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.Equal(t, "0000000000", got.Phone)
}

func TestTransitionPayment(t *testing.T) {
	_, orders, _ := setup(t)
	ctx := context.Background()
	o := placeOrder(t, orders, &models.Order{PaymentMethod: models.PaymentOnline, PaymentStatus: models.PaymentSucceeded})

	won, err := orders.TransitionPayment(ctx, o.ID, models.PaymentPending, models.PaymentRefunded)
	require.NoError(t, err)
	assert.False(t, won)

	won, err = orders.TransitionPayment(ctx, o.ID, models.PaymentSucceeded, models.PaymentRefunded)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestPendingOnline(t *testing.T) {
	_, orders, _ := setup(t)
	ctx := context.Background()

	pending := placeOrder(t, orders, &models.Order{PaymentMethod: models.PaymentOnline, PaymentStatus: models.PaymentPending})
	placeOrder(t, orders, &models.Order{PaymentMethod: models.PaymentCOD, PaymentStatus: models.PaymentSucceeded})
	placeOrder(t, orders, &models.Order{PaymentMethod: models.PaymentOnline, PaymentStatus: models.PaymentPending, Status: models.StatusCancelled})

	got, err := orders.PendingOnline(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].ID)

	got, err = orders.PendingOnline(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, got, "orders newer than the cutoff are skipped")
}

func TestOrderLinesAndListing(t *testing.T) {
	_, orders, _ := setup(t)
	ctx := context.Background()
	itemID := "item-1"

	o := placeOrder(t, orders, &models.Order{
		UserID:        "u2",
		PaymentMethod: models.PaymentCOD,
		PaymentStatus: models.PaymentSucceeded,
		Lines: []models.OrderLine{
			{ItemID: &itemID, Name: "Samosa", Price: decimal.RequireFromString("2.50"), Quantity: 4},
			{Name: "Unknown", Quantity: 1},
		},
	})

	mine, err := orders.ListByUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].Lines, 2)

	others, err := orders.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, others)

	page, meta, err := orders.Paginate(ctx, 1, 10, models.StatusPlaced)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.EqualValues(t, 1, meta.Total)

	require.NoError(t, orders.UpdateContact(ctx, o.ID, map[string]interface{}{"city": "Pune"}))
	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pune", got.City)

	_, err = orders.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

// ─── Cart ─────────────────────────────────────────────────────────────────────

func TestCartOwnership(t *testing.T) {
	items, _, carts := setup(t)
	ctx := context.Background()
	item := seedItem(t, items, "Lassi", 4)

	entry := &models.CartEntry{UserID: "u1", ItemID: item.ID, Quantity: 2}
	require.NoError(t, carts.Create(ctx, entry))

	_, err := carts.FindOwned(ctx, "u2", entry.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, carts.DeleteOwned(ctx, "u2", entry.ID), repositories.ErrNotFound)

	list, err := carts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Item)
	assert.Equal(t, "Lassi", list[0].Item.Name)

	require.NoError(t, carts.Clear(ctx, "u1"))
	list, err = carts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
