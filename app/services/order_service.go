package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shashiranjanraj/foodie/app/events"
	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/pkg/event"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/metrics"
	"github.com/shashiranjanraj/foodie/pkg/orm"
	"github.com/shashiranjanraj/foodie/pkg/payment"
	"github.com/shopspring/decimal"
)

// cancelAttempts bounds how often Cancel re-reads an order whose claim was
// lost to a concurrent confirm or admin update.
const cancelAttempts = 3

// OrderConfig holds the pricing and redirect settings of checkout.
type OrderConfig struct {
	Currency    string
	TaxRate     decimal.Decimal
	FrontendURL string
}

// CreateResult is what checkout returns. CheckoutURL is nil for cash orders.
type CreateResult struct {
	Order       *models.Order `json:"order"`
	CheckoutURL *string       `json:"checkoutUrl"`
}

// OrderService runs the order pipeline: checkout, payment confirmation,
// cancellation with compensation, and the admin overrides.
type OrderService struct {
	orders   *repositories.OrderRepository
	items    *repositories.ItemRepository
	provider payment.Provider
	catalog  *CatalogService
	cfg      OrderConfig
}

func NewOrderService(
	orders *repositories.OrderRepository,
	items *repositories.ItemRepository,
	provider payment.Provider,
	catalog *CatalogService,
	cfg OrderConfig,
) *OrderService {
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	return &OrderService{orders: orders, items: items, provider: provider, catalog: catalog, cfg: cfg}
}

// ─────────────────────────────────────────────
// Checkout
// ─────────────────────────────────────────────

// Create places an order for actor. Cash orders commit stock immediately;
// online orders get a hosted checkout session and commit stock only once
// the payment is confirmed.
func (s *OrderService) Create(ctx context.Context, actor Actor, in CreateOrderInput) (*CreateResult, error) {
	if len(in.Items) == 0 {
		return nil, invalid("Invalid or empty items array")
	}

	lines := make([]models.OrderLine, 0, len(in.Items))
	for _, li := range in.Items {
		lines = append(lines, normalizeLine(li))
	}

	sh := in.Shipping
	order := &models.Order{
		UserID:    actor.UserID,
		FirstName: strings.TrimSpace(sh.FirstName),
		LastName:  strings.TrimSpace(sh.LastName),
		Phone:     strings.TrimSpace(sh.Phone),
		Email:     strings.TrimSpace(sh.Email),
		Address:   strings.TrimSpace(sh.Address),
		City:      strings.TrimSpace(sh.City),
		ZipCode:   strings.TrimSpace(sh.ZipCode),
		Status:    models.StatusPlaced,
		Lines:     lines,
	}
	s.price(order)

	var (
		checkoutURL string
		err         error
	)
	if strings.EqualFold(strings.TrimSpace(in.PaymentMethod), models.PaymentOnline) {
		checkoutURL, err = s.createOnline(ctx, order)
	} else {
		err = s.createCash(ctx, order)
	}
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(order.PaymentMethod).Inc()
	logger.WithCtx(ctx).Info("order placed",
		"order_id", order.ID, "payment_method", order.PaymentMethod, "total", order.Total.StringFixed(2))
	event.FireAsync(ctx, events.OrderCreated, events.New(events.OrderCreated, order, actor.label()))

	res := &CreateResult{Order: order}
	if order.PaymentMethod == models.PaymentOnline {
		res.CheckoutURL = &checkoutURL
	}
	return res, nil
}

// price computes totals from the line snapshot. Client totals are never used.
func (s *OrderService) price(order *models.Order) {
	subtotal := decimal.Zero
	for _, l := range order.Lines {
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	order.Subtotal = subtotal.Round(2)
	order.Tax = subtotal.Mul(s.cfg.TaxRate).Round(2)
	order.Shipping = decimal.Zero
	order.Total = order.Subtotal.Add(order.Tax).Add(order.Shipping)
}

// createCash commits stock before the insert so the stored row already
// carries StockCommitted. A failed insert hands the stock back.
func (s *OrderService) createCash(ctx context.Context, order *models.Order) error {
	order.PaymentMethod = models.PaymentCOD
	order.PaymentStatus = models.PaymentSucceeded
	order.ID = models.NewID()

	s.commitStock(ctx, order)
	order.StockCommitted = true
	if err := s.orders.Create(ctx, order); err != nil {
		logger.WithCtx(ctx).Error("cash order insert failed, restoring stock", "order_id", order.ID, "error", err)
		s.restoreStock(ctx, order)
		return err
	}
	return nil
}

func (s *OrderService) createOnline(ctx context.Context, order *models.Order) (string, error) {
	order.PaymentMethod = models.PaymentOnline
	order.PaymentStatus = models.PaymentPending
	order.ID = models.NewID()

	req := payment.CheckoutRequest{
		Currency:      s.cfg.Currency,
		CustomerEmail: order.Email,
		SuccessURL:    s.cfg.FrontendURL + "/myorder/verify?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.FrontendURL + "/checkout?payment_status=cancel",
		Metadata: map[string]string{
			"firstName": order.FirstName,
			"lastName":  order.LastName,
			"email":     order.Email,
			"phone":     order.Phone,
		},
		IdempotencyKey: "order-" + order.ID,
	}
	for _, l := range order.Lines {
		req.Lines = append(req.Lines, payment.LineItem{
			Name:       l.Name,
			ImageURL:   l.ImageURL,
			UnitAmount: l.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
			Quantity:   l.Quantity,
		})
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		logger.WithCtx(ctx).Error("checkout session failed", "order_id", order.ID, "error", err)
		return "", providerFailed(err)
	}

	order.SessionID = sess.ID
	order.PaymentIntentID = sess.PaymentIntentID
	if err := s.orders.Create(ctx, order); err != nil {
		return "", err
	}
	return sess.URL, nil
}

// ─────────────────────────────────────────────
// Payment confirmation
// ─────────────────────────────────────────────

// Confirm settles an online order after the customer returns from the
// hosted page. It is idempotent: a second call returns the order unchanged.
func (s *OrderService) Confirm(ctx context.Context, sessionID string) (*models.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, &ValidationError{Message: "session_id is required", Fields: map[string]string{"session_id": "required"}}
	}

	sess, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, providerFailed(err)
	}
	if !sess.Paid() {
		return nil, &StatusError{Kind: ErrPaymentIncomplete, Message: "Payment not completed"}
	}

	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("Order not found")
	}
	if err != nil {
		return nil, err
	}

	return s.settle(ctx, order, sess, Actor{UserID: order.UserID})
}

// settle applies a paid session to order. Exactly one caller wins the
// pending → succeeded claim and commits stock.
func (s *OrderService) settle(ctx context.Context, order *models.Order, sess *payment.CheckoutSession, actor Actor) (*models.Order, error) {
	if order.PaymentStatus != models.PaymentPending {
		return order, nil
	}
	if order.Status == models.StatusCancelled {
		s.refundLate(ctx, order, sess.PaymentIntentID)
		return nil, invalidState("Order was cancelled before payment completed", nil)
	}
	if _, err := order.PaymentStatus.Next(models.EventConfirm); err != nil {
		return nil, invalidState("", err)
	}

	won, err := s.orders.MarkPaid(ctx, order.ID, sess.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	fresh, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		if fresh.Status == models.StatusCancelled && fresh.PaymentStatus == models.PaymentPending {
			s.refundLate(ctx, fresh, sess.PaymentIntentID)
			return nil, invalidState("Order was cancelled before payment completed", nil)
		}
		return fresh, nil
	}

	s.commitStock(ctx, fresh)
	metrics.OrdersPaid.Inc()
	logger.WithCtx(ctx).Info("order paid", "order_id", fresh.ID, "session_id", fresh.SessionID)
	event.FireAsync(ctx, events.OrderPaid, events.New(events.OrderPaid, fresh, actor.label()))
	return fresh, nil
}

// refundLate gives the money back for a session paid after its order was
// cancelled. The order itself stays cancelled with payment pending.
func (s *OrderService) refundLate(ctx context.Context, order *models.Order, intentID string) {
	if intentID == "" {
		intentID = order.PaymentIntentID
	}
	if intentID == "" {
		return
	}
	if _, err := s.provider.Refund(ctx, intentID); err != nil {
		metrics.RefundsFailed.Inc()
		logger.WithCtx(ctx).Error("late refund failed", "order_id", order.ID, "payment_intent", intentID, "error", err)
		return
	}
	logger.WithCtx(ctx).Warn("refunded payment for cancelled order", "order_id", order.ID, "payment_intent", intentID)
}

// ─────────────────────────────────────────────
// Cancellation
// ─────────────────────────────────────────────

// Cancel cancels an order on behalf of its owner or an admin and runs the
// compensation: refund when money was taken, stock restore when stock was
// committed.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, orderID string) (*models.Order, error) {
	for attempt := 0; attempt < cancelAttempts; attempt++ {
		order, err := s.find(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !actor.Admin && !order.IsOwnedBy(actor.UserID) {
			return nil, denied("Access denied")
		}
		if _, err := order.Status.Next(models.EventCancel); err != nil {
			return nil, invalidState("", err)
		}

		won, err := s.orders.MarkCancelled(ctx, order)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}
		return s.compensate(ctx, actor, order)
	}
	return nil, invalidState("Order changed while cancelling, try again", nil)
}

// compensate runs after the cancel claim was won. seen is the order as it
// was before the claim.
func (s *OrderService) compensate(ctx context.Context, actor Actor, seen *models.Order) (*models.Order, error) {
	log := logger.WithCtx(ctx).With("order_id", seen.ID, "actor", actor.label())

	switch {
	case seen.IsPaidOnline():
		if _, err := s.provider.Refund(ctx, seen.PaymentIntentID); err != nil {
			metrics.RefundsFailed.Inc()
			log.Error("refund failed", "payment_intent", seen.PaymentIntentID, "error", err)
			break
		}
		to, err := seen.PaymentStatus.Next(models.EventRefund)
		if err != nil {
			break
		}
		if _, err := s.orders.TransitionPayment(ctx, seen.ID, seen.PaymentStatus, to); err != nil {
			log.Error("could not record refund", "error", err)
		}
	case seen.PaymentMethod == models.PaymentOnline && seen.PaymentStatus == models.PaymentPending && seen.SessionID != "":
		// The customer may have paid without coming back to confirm.
		if sess, err := s.provider.RetrieveSession(ctx, seen.SessionID); err == nil && sess.Paid() {
			s.refundLate(ctx, seen, sess.PaymentIntentID)
		}
	}

	if seen.StockCommitted {
		s.restoreStock(ctx, seen)
	}

	order, err := s.orders.FindByID(ctx, seen.ID)
	if err != nil {
		return nil, err
	}

	metrics.OrdersCancelled.WithLabelValues(actor.label()).Inc()
	log.Info("order cancelled", "stock_restored", seen.StockCommitted)
	event.FireAsync(ctx, events.OrderCancelled, events.New(events.OrderCancelled, order, actor.label()))
	return order, nil
}

// ─────────────────────────────────────────────
// Reads and contact updates
// ─────────────────────────────────────────────

func (s *OrderService) ListMine(ctx context.Context, actor Actor) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, actor.UserID)
}

// Get returns an order its owner (or an admin) may see. A non-empty email
// must match the order's email.
func (s *OrderService) Get(ctx context.Context, actor Actor, id, email string) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !order.IsOwnedBy(actor.UserID) {
		return nil, denied("Access denied")
	}
	if email != "" && !strings.EqualFold(strings.TrimSpace(email), order.Email) {
		return nil, denied("Email does not match order")
	}
	return order, nil
}

// Update lets the owner correct contact and shipping details while the
// order is still open.
func (s *OrderService) Update(ctx context.Context, actor Actor, id string, patch OrderPatch) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(actor.UserID) {
		return nil, denied("Access denied")
	}
	if patch.Email != nil && !strings.EqualFold(strings.TrimSpace(*patch.Email), order.Email) {
		return nil, denied("Email does not match order")
	}
	if order.Status.Terminal() {
		return nil, invalidState("Order can no longer be modified", nil)
	}

	if err := s.orders.UpdateContact(ctx, order.ID, patch.columns()); err != nil {
		return nil, err
	}
	return s.orders.FindByID(ctx, order.ID)
}

// AdminList pages through every order, newest first.
func (s *OrderService) AdminList(ctx context.Context, page, perPage int, status string) ([]models.Order, orm.Pagination, error) {
	st := models.OrderStatus(strings.TrimSpace(status))
	if st != "" && !st.Valid() {
		return nil, orm.Pagination{}, &ValidationError{Message: "Invalid status", Fields: map[string]string{"status": "unknown status"}}
	}
	return s.orders.Paginate(ctx, page, perPage, st)
}

// AdminUpdate changes contact fields and moves the order through the
// fulfillment machine. Cancelling goes through Cancel so compensation runs.
func (s *OrderService) AdminUpdate(ctx context.Context, actor Actor, id string, patch AdminOrderPatch) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	var target models.OrderStatus
	if patch.Status != nil {
		target = models.OrderStatus(strings.TrimSpace(*patch.Status))
		if !target.Valid() {
			return nil, &ValidationError{Message: "Invalid status", Fields: map[string]string{"status": "unknown status"}}
		}
	}

	cols := patch.columns()
	if patch.Email != nil {
		cols["email"] = strings.TrimSpace(*patch.Email)
	}

	// Nothing is written until the requested transition is known to be legal.
	switch {
	case target == "" || target == order.Status:
		if err := s.orders.UpdateContact(ctx, order.ID, cols); err != nil {
			return nil, err
		}
		return s.orders.FindByID(ctx, order.ID)
	case target == models.StatusCancelled:
		if _, err := s.Cancel(ctx, actor, order.ID); err != nil {
			return nil, err
		}
		if err := s.orders.UpdateContact(ctx, order.ID, cols); err != nil {
			return nil, err
		}
		return s.orders.FindByID(ctx, order.ID)
	}

	ev, ok := models.EventFor(target)
	if !ok {
		return nil, invalidState("", &models.IllegalTransitionError{Machine: "order", From: string(order.Status), Event: "reopen"})
	}
	to, err := order.Status.Next(ev)
	if err != nil {
		return nil, invalidState("", err)
	}
	won, err := s.orders.TransitionStatus(ctx, order.ID, order.Status, to, cols)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, invalidState("Order changed, try again", nil)
	}

	fresh, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("order status changed", "order_id", fresh.ID, "from", order.Status, "to", to)
	event.FireAsync(ctx, events.OrderStatusChanged, events.New(events.OrderStatusChanged, fresh, actor.label()))
	return fresh, nil
}

func (s *OrderService) find(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound("Order not found")
	}
	return order, err
}

// ─────────────────────────────────────────────
// Stock
// ─────────────────────────────────────────────

// commitStock subtracts every resolvable line from stock. A lost CAS falls
// back to clamping at zero; missing items are skipped. Nothing here fails
// the order.
func (s *OrderService) commitStock(ctx context.Context, order *models.Order) {
	log := logger.WithCtx(ctx).With("order_id", order.ID)

	for _, l := range order.Lines {
		if l.ItemID == nil || l.Quantity <= 0 {
			continue
		}
		err := s.items.DecrementStock(ctx, *l.ItemID, l.Quantity)
		switch {
		case err == nil:
		case errors.Is(err, repositories.ErrItemNotFound):
			log.Debug("stock commit skipped, item gone", "item_id", *l.ItemID)
		case errors.Is(err, repositories.ErrStockConflict):
			metrics.StockOversell.Inc()
			log.Warn("stock conflict, clamping at zero", "item_id", *l.ItemID, "quantity", l.Quantity)
			if err := s.items.AdjustStock(ctx, *l.ItemID, -l.Quantity); err != nil && !errors.Is(err, repositories.ErrItemNotFound) {
				log.Error("stock clamp failed", "item_id", *l.ItemID, "error", err)
			}
		default:
			log.Error("stock commit failed", "item_id", *l.ItemID, "error", err)
		}
	}
	s.invalidateCatalog(ctx)
}

func (s *OrderService) restoreStock(ctx context.Context, order *models.Order) {
	log := logger.WithCtx(ctx).With("order_id", order.ID)

	for _, l := range order.Lines {
		if l.ItemID == nil || l.Quantity <= 0 {
			continue
		}
		err := s.items.RestoreStock(ctx, *l.ItemID, l.Quantity)
		if err != nil && !errors.Is(err, repositories.ErrItemNotFound) {
			log.Error("stock restore failed", "item_id", *l.ItemID, "error", err)
		}
	}
	s.invalidateCatalog(ctx)
}

func (s *OrderService) invalidateCatalog(ctx context.Context) {
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
}
