package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foodie/app/models"
)

var admin = Actor{UserID: "admin-1", Admin: true}

func strp(s string) *string { return &s }

// ─── Checkout ─────────────────────────────────────────────────────────────────

func TestCreateCashCommitsStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Butter Chicken", "250.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 2)))
	require.NoError(t, err)
	assert.Nil(t, res.CheckoutURL)

	o := res.Order
	assert.Equal(t, models.PaymentCOD, o.PaymentMethod)
	assert.Equal(t, models.PaymentSucceeded, o.PaymentStatus)
	assert.Equal(t, models.StatusPlaced, o.Status)
	assert.True(t, o.StockCommitted)
	assert.Equal(t, "500", o.Total.String())
	assert.Equal(t, 3, e.stock(t, item.ID))

	stored, err := e.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.StockCommitted)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "Butter Chicken", stored.Lines[0].Name)
}

func TestCreateCashInsertFailureRestoresStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Kheer", "70.00", 5)

	require.NoError(t, e.db.Migrator().DropTable(&models.OrderLine{}))

	_, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 2)))
	require.Error(t, err)
	assert.Equal(t, 5, e.stock(t, item.ID), "stock is handed back when the order cannot be stored")
}

func TestCreateUnknownMethodFallsBackToCash(t *testing.T) {
	e := newEnv(t)
	item := e.item(t, "Rajma Chawal", "110.00", 2)

	res, err := e.Orders.Create(context.Background(), owner, checkout("upi", line(item, 1)))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCOD, res.Order.PaymentMethod)
}

func TestCreateComputesTotalsServerSide(t *testing.T) {
	e := newEnv(t)
	e.Orders.cfg.TaxRate = decimal.RequireFromString("0.05")
	item := e.item(t, "Thali", "199.99", 10)

	in := checkout("cod", line(item, 3))
	res, err := e.Orders.Create(context.Background(), owner, in)
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, "599.97", o.Subtotal.StringFixed(2))
	assert.Equal(t, "30.00", o.Tax.StringFixed(2))
	assert.Equal(t, "629.97", o.Total.StringFixed(2))
}

func TestCreateRejectsEmptyItems(t *testing.T) {
	e := newEnv(t)

	_, err := e.Orders.Create(context.Background(), owner, checkout("cod"))
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "Invalid or empty items array", vErr.Message)
	assert.Zero(t, e.orderCount(t))
}

func TestCreateOnlineLeavesStockAlone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Hyderabadi Biryani", "300.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("online", line(item, 2)))
	require.NoError(t, err)
	require.NotNil(t, res.CheckoutURL)

	o := res.Order
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.False(t, o.StockCommitted)
	assert.NotEmpty(t, o.SessionID)
	assert.Contains(t, *res.CheckoutURL, o.SessionID)
	assert.Equal(t, 5, e.stock(t, item.ID))

	req, ok := e.provider.Request(o.SessionID)
	require.True(t, ok)
	require.Len(t, req.Lines, 1)
	assert.EqualValues(t, 30000, req.Lines[0].UnitAmount)
	assert.Equal(t, 2, req.Lines[0].Quantity)
	assert.Equal(t, "inr", req.Currency)
	assert.Equal(t, "order-"+o.ID, req.IdempotencyKey)
}

func TestCreateOnlineProviderFailure(t *testing.T) {
	e := newEnv(t)
	e.provider.CreateErr = errors.New("stripe down")
	item := e.item(t, "Naan", "30.00", 5)

	_, err := e.Orders.Create(context.Background(), owner, checkout("online", line(item, 1)))
	assert.ErrorIs(t, err, ErrProvider)
	assert.Zero(t, e.orderCount(t), "nothing is stored when the session cannot be created")
}

func TestCreateKeepsUnresolvableLines(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := checkout("cod", LineInput{ItemID: "gone", Name: "Old dish", Price: Num(10), Quantity: Num(1)})
	res, err := e.Orders.Create(ctx, owner, in)
	require.NoError(t, err, "missing catalog items do not fail checkout")
	assert.Equal(t, "10", res.Order.Total.String())
}

// ─── Confirm ──────────────────────────────────────────────────────────────────

func TestConfirmCommitsStockOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Malai Kofta", "220.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("online", line(item, 2)))
	require.NoError(t, err)
	sid := res.Order.SessionID

	_, err = e.Orders.Confirm(ctx, sid)
	assert.ErrorIs(t, err, ErrPaymentIncomplete)
	assert.Equal(t, 5, e.stock(t, item.ID))

	e.provider.MarkPaid(sid)

	o, err := e.Orders.Confirm(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, o.PaymentStatus)
	assert.True(t, o.StockCommitted)
	assert.NotEmpty(t, o.PaymentIntentID)
	assert.Equal(t, 3, e.stock(t, item.ID))

	again, err := e.Orders.Confirm(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, o.ID, again.ID)
	assert.Equal(t, 3, e.stock(t, item.ID), "a second confirm must not decrement again")
}

func TestConfirmConcurrentCallersDecrementOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Fish Curry", "280.00", 10)

	res, err := e.Orders.Create(ctx, owner, checkout("online", line(item, 4)))
	require.NoError(t, err)
	e.provider.MarkPaid(res.Order.SessionID)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Orders.Confirm(ctx, res.Order.SessionID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, e.stock(t, item.ID))
}

func TestConfirmValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.Orders.Confirm(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Orders.Confirm(ctx, "cs_unknown")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestConfirmAfterCancelRefunds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Prawn Fry", "350.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("online", line(item, 1)))
	require.NoError(t, err)
	sid := res.Order.SessionID

	_, err = e.Orders.Cancel(ctx, owner, res.Order.ID)
	require.NoError(t, err)
	assert.Empty(t, e.provider.Refunds())

	e.provider.MarkPaid(sid)
	_, err = e.Orders.Confirm(ctx, sid)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, e.provider.Refunds(), 1)
	assert.Equal(t, 5, e.stock(t, item.ID))

	o, err := e.orders.FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
}

// ─── Cancel ───────────────────────────────────────────────────────────────────

func TestCancelCashRestoresStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Aloo Paratha", "80.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 2)))
	require.NoError(t, err)
	require.Equal(t, 3, e.stock(t, item.ID))

	o, err := e.Orders.Cancel(ctx, owner, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.False(t, o.StockCommitted)
	assert.Equal(t, 5, e.stock(t, item.ID))

	_, err = e.Orders.Cancel(ctx, owner, res.Order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "Order is already cancelled", err.Error())
	assert.Equal(t, 5, e.stock(t, item.ID), "stock is restored once")
}

func TestCancelPendingOnlineRestoresNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Mutton Rogan Josh", "400.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("online", line(item, 2)))
	require.NoError(t, err)

	o, err := e.Orders.Cancel(ctx, owner, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, 5, e.stock(t, item.ID))
	assert.Empty(t, e.provider.Refunds())
}

func TestCancelPendingOnlinePaidElsewhereRefunds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Kheer", "70.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("online", line(item, 1)))
	require.NoError(t, err)
	e.provider.MarkPaid(res.Order.SessionID)

	_, err = e.Orders.Cancel(ctx, owner, res.Order.ID)
	require.NoError(t, err)
	assert.Len(t, e.provider.Refunds(), 1)
	assert.Equal(t, 5, e.stock(t, item.ID))
}

func TestCancelPaidOnlineRefundsAndRestores(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Tandoori Roti", "25.00", 10)

	res, err := e.Orders.Create(ctx, owner, checkout("online", line(item, 4)))
	require.NoError(t, err)
	e.provider.MarkPaid(res.Order.SessionID)
	paid, err := e.Orders.Confirm(ctx, res.Order.SessionID)
	require.NoError(t, err)
	require.Equal(t, 6, e.stock(t, item.ID))

	o, err := e.Orders.Cancel(ctx, admin, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Equal(t, models.PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, []string{paid.PaymentIntentID}, e.provider.Refunds())
	assert.Equal(t, 10, e.stock(t, item.ID))
}

func TestCancelRefundFailureStillCancels(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Poha", "35.00", 3)

	res, err := e.Orders.Create(ctx, owner, checkout("online", line(item, 1)))
	require.NoError(t, err)
	e.provider.MarkPaid(res.Order.SessionID)
	_, err = e.Orders.Confirm(ctx, res.Order.SessionID)
	require.NoError(t, err)

	e.provider.RefundErr = errors.New("card network down")
	o, err := e.Orders.Cancel(ctx, owner, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Equal(t, models.PaymentSucceeded, o.PaymentStatus, "payment stays succeeded until a refund goes through")
	assert.Equal(t, 3, e.stock(t, item.ID))
}

func TestCancelDeliveredIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Jalebi", "50.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 1)))
	require.NoError(t, err)
	_, err = e.Orders.AdminUpdate(ctx, admin, res.Order.ID, AdminOrderPatch{Status: strp("delivered")})
	require.NoError(t, err)

	_, err = e.Orders.Cancel(ctx, owner, res.Order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "Cannot cancel a delivered order", err.Error())
	assert.Equal(t, 4, e.stock(t, item.ID))
}

func TestCancelByStrangerIsDenied(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Rasmalai", "90.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 1)))
	require.NoError(t, err)

	_, err = e.Orders.Cancel(ctx, Actor{UserID: "someone-else"}, res.Order.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = e.Orders.Cancel(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ─── Reads and updates ────────────────────────────────────────────────────────

func TestGetChecksOwnerAndEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Misal Pav", "75.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 1)))
	require.NoError(t, err)
	id := res.Order.ID

	_, err = e.Orders.Get(ctx, owner, id, "")
	assert.NoError(t, err)
	_, err = e.Orders.Get(ctx, owner, id, "ASHA@example.com")
	assert.NoError(t, err)
	_, err = e.Orders.Get(ctx, owner, id, "other@example.com")
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = e.Orders.Get(ctx, Actor{UserID: "u9"}, id, "")
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = e.Orders.Get(ctx, admin, id, "")
	assert.NoError(t, err)

	mine, err := e.Orders.ListMine(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestUpdateContact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Pongal", "60.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 1)))
	require.NoError(t, err)
	id := res.Order.ID

	o, err := e.Orders.Update(ctx, owner, id, OrderPatch{ContactPatch: ContactPatch{City: strp(" Chennai ")}})
	require.NoError(t, err)
	assert.Equal(t, "Chennai", o.City)
	assert.Equal(t, "12 MG Road", o.Address)

	_, err = e.Orders.Update(ctx, owner, id, OrderPatch{Email: strp("x@example.com")})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = e.Orders.Update(ctx, admin, id, OrderPatch{})
	assert.ErrorIs(t, err, ErrAccessDenied, "the customer update is owner only")

	_, err = e.Orders.Cancel(ctx, owner, id)
	require.NoError(t, err)
	_, err = e.Orders.Update(ctx, owner, id, OrderPatch{ContactPatch: ContactPatch{City: strp("Madurai")}})
	assert.ErrorIs(t, err, ErrInvalidState)
}

// ─── Admin ────────────────────────────────────────────────────────────────────

func TestAdminUpdateWalksTheFulfillmentMachine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Dhokla", "45.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 1)))
	require.NoError(t, err)
	id := res.Order.ID

	o, err := e.Orders.AdminUpdate(ctx, admin, id, AdminOrderPatch{Status: strp("processing")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, o.Status)

	_, err = e.Orders.AdminUpdate(ctx, admin, id, AdminOrderPatch{Status: strp("placed")})
	assert.ErrorIs(t, err, ErrInvalidState, "orders never move backwards")

	_, err = e.Orders.AdminUpdate(ctx, admin, id, AdminOrderPatch{Status: strp("shipped")})
	assert.ErrorIs(t, err, ErrValidation)

	o, err = e.Orders.AdminUpdate(ctx, admin, id, AdminOrderPatch{
		ContactPatch: ContactPatch{Phone: strp("8888888888")},
		Status:       strp("cancelled"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Equal(t, "8888888888", o.Phone)
	assert.Equal(t, 5, e.stock(t, item.ID), "admin cancel runs compensation")
}

func TestAdminUpdateRejectedTransitionKeepsContact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Idli", "40.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 1)))
	require.NoError(t, err)
	id := res.Order.ID
	phone := res.Order.Phone

	_, err = e.Orders.AdminUpdate(ctx, admin, id, AdminOrderPatch{Status: strp("delivered")})
	require.NoError(t, err)

	_, err = e.Orders.AdminUpdate(ctx, admin, id, AdminOrderPatch{
		ContactPatch: ContactPatch{Phone: strp("0000000000")},
		Status:       strp("processing"),
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.Orders.AdminUpdate(ctx, admin, id, AdminOrderPatch{
		ContactPatch: ContactPatch{City: strp("Nowhere")},
		Status:       strp("cancelled"),
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	stored, err := e.orders.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, stored.Status)
	assert.Equal(t, phone, stored.Phone)
	assert.Equal(t, res.Order.City, stored.City)
	assert.Equal(t, 4, e.stock(t, item.ID))
}

func TestAdminUpdateWritesContactWithTransition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Vada", "30.00", 5)

	res, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 1)))
	require.NoError(t, err)

	o, err := e.Orders.AdminUpdate(ctx, admin, res.Order.ID, AdminOrderPatch{
		ContactPatch: ContactPatch{Phone: strp("7777777777")},
		Status:       strp("processing"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, o.Status)
	assert.Equal(t, "7777777777", o.Phone)
}

func TestAdminList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(t, "Khichdi", "65.00", 10)

	for i := 0; i < 3; i++ {
		_, err := e.Orders.Create(ctx, owner, checkout("cod", line(item, 1)))
		require.NoError(t, err)
	}

	orders, page, err := e.Orders.AdminList(ctx, 1, 2, "")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.LastPage)

	orders, _, err = e.Orders.AdminList(ctx, 1, 10, "delivered")
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, _, err = e.Orders.AdminList(ctx, 1, 10, "lost")
	assert.ErrorIs(t, err, ErrValidation)
}

// ─── Line normalization ───────────────────────────────────────────────────────

func TestNormalizeLine(t *testing.T) {
	price := Num(12.5)
	nested := normalizeLine(LineInput{
		Quantity: Num(2.9),
		Item:     &LineItemRef{MongoID: "abc", Name: "Nested", Price: &price, ImageURL: "http://img/x.png"},
	})
	require.NotNil(t, nested.ItemID)
	assert.Equal(t, "abc", *nested.ItemID)
	assert.Equal(t, "Nested", nested.Name)
	assert.Equal(t, "12.5", nested.Price.String())
	assert.Equal(t, 2, nested.Quantity)

	junk := normalizeLine(LineInput{Price: Num(-3), Quantity: Num(-1)})
	assert.Nil(t, junk.ItemID)
	assert.Equal(t, "Unknown", junk.Name)
	assert.True(t, junk.Price.IsZero())
	assert.Zero(t, junk.Quantity)
}

func TestFlexNumberIsLenient(t *testing.T) {
	var in CreateOrderInput
	body := `{"paymentMethod":"cod","items":[{"itemId":"a","price":"19.99","quantity":"3"},{"price":"abc","quantity":{}}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	require.Len(t, in.Items, 2)

	assert.True(t, in.Items[0].Price.Valid)
	assert.Equal(t, "19.99", in.Items[0].Price.Value.String())
	assert.Equal(t, int64(3), in.Items[0].Quantity.Value.IntPart())
	assert.False(t, in.Items[1].Price.Valid)
	assert.False(t, in.Items[1].Quantity.Valid)
}
