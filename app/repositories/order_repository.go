package repositories

import (
	"context"
	"time"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/pkg/orm"
	"gorm.io/gorm"
)

// OrderRepository stores orders and their lines. State changes go through
// conditional updates that report whether this caller won the claim.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) q(ctx context.Context) *orm.Query {
	return orm.On(r.db).WithContext(ctx)
}

// Create inserts the order together with its lines.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.q(ctx).Create(order)
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.q(ctx).Model(&models.Order{}).Preload("Lines").Where("id = ?", id).First(&order)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *OrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.q(ctx).Model(&models.Order{}).Preload("Lines").Where("session_id = ?", sessionID).First(&order)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.q(ctx).Model(&models.Order{}).
		Preload("Lines").
		Where("user_id = ?", userID).
		OrderBy("created_at desc").
		Get(&orders)
	return orders, err
}

// Paginate lists every order, newest first, optionally filtered by status.
func (r *OrderRepository) Paginate(ctx context.Context, page, perPage int, status models.OrderStatus) ([]models.Order, orm.Pagination, error) {
	orders := []models.Order{}
	p, err := r.q(ctx).Model(&models.Order{}).
		WhereIf(status != "", "status = ?", status).
		Preload("Lines").
		OrderBy("created_at desc").
		Paginate(page, perPage, &orders)
	return orders, p, err
}

// PendingOnline returns online orders still awaiting payment that were
// placed before cutoff.
func (r *OrderRepository) PendingOnline(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status = ? AND status <> ? AND created_at < ?",
			models.PaymentOnline, models.PaymentPending, models.StatusCancelled, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// MarkPaid moves a pending, not cancelled order to succeeded and flags its
// stock as committed. It reports false when another caller got there first.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, paymentIntentID string) (bool, error) {
	updates := map[string]interface{}{
		"payment_status":  models.PaymentSucceeded,
		"stock_committed": true,
		"updated_at":      time.Now(),
	}
	if paymentIntentID != "" {
		updates["payment_intent_id"] = gorm.Expr(
			"CASE WHEN payment_intent_id IS NULL OR payment_intent_id = '' THEN ? ELSE payment_intent_id END",
			paymentIntentID)
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND status <> ?", id, models.PaymentPending, models.StatusCancelled).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// MarkCancelled claims the cancellation of an order that is still exactly
// as the caller read it: same fulfillment status, payment status and stock
// flag. The stock flag is cleared in the same statement.
func (r *OrderRepository) MarkCancelled(ctx context.Context, seen *models.Order) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status = ? AND stock_committed = ?",
			seen.ID, seen.Status, seen.PaymentStatus, seen.StockCommitted).
		Updates(map[string]interface{}{
			"status":          models.StatusCancelled,
			"stock_committed": false,
			"updated_at":      time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// TransitionStatus sets the fulfillment status if it is still from. Any
// extra columns are written in the same statement, so they are only saved
// when the transition is.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now()}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// TransitionPayment sets the payment status if it is still from.
func (r *OrderRepository) TransitionPayment(ctx context.Context, id string, from, to models.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, from).
		Updates(map[string]interface{}{"payment_status": to, "updated_at": time.Now()})
	return res.RowsAffected == 1, res.Error
}

// UpdateContact writes the given contact and shipping columns.
func (r *OrderRepository) UpdateContact(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields).Error
}
