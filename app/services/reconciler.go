package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/metrics"
	"github.com/shashiranjanraj/foodie/pkg/workerpool"
)

// ReconcileReport counts what one reconciler pass did.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Expired   int `json:"expired"`
	Failed    int `json:"failed"`
}

// Reconciler settles online orders whose customer paid but never came back
// to the confirm page, and cancels the ones left unpaid for too long.
type Reconciler struct {
	orders *repositories.OrderRepository
	svc    *OrderService

	// Grace skips orders younger than this; the customer may still be on
	// the hosted page.
	Grace time.Duration
	// TTL is how long an unpaid order stays open.
	TTL     time.Duration
	Workers int
	Batch   int

	now func() time.Time
}

func NewReconciler(orders *repositories.OrderRepository, svc *OrderService, ttl time.Duration) *Reconciler {
	return &Reconciler{
		orders:  orders,
		svc:     svc,
		Grace:   5 * time.Minute,
		TTL:     ttl,
		Workers: 4,
		Batch:   200,
		now:     time.Now,
	}
}

// Run does one pass. Per-order failures are logged and counted, never
// returned; the error is only for the initial query.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	now := r.now()
	pending, err := r.orders.PendingOnline(ctx, now.Add(-r.Grace), r.Batch)
	if err != nil {
		return ReconcileReport{}, err
	}

	var confirmed, expired, failed atomic.Int64
	pool := workerpool.New(r.Workers)
	for i := range pending {
		order := &pending[i]
		err := pool.Go(ctx, func(ctx context.Context) {
			switch r.reconcile(ctx, order, now) {
			case outcomeConfirmed:
				confirmed.Add(1)
			case outcomeExpired:
				expired.Add(1)
			case outcomeFailed:
				failed.Add(1)
			}
		})
		if err != nil {
			failed.Add(int64(len(pending) - i))
			break
		}
	}
	pool.Wait()

	report := ReconcileReport{
		Checked:   len(pending),
		Confirmed: int(confirmed.Load()),
		Expired:   int(expired.Load()),
		Failed:    int(failed.Load()),
	}
	metrics.Reconciled.WithLabelValues("confirmed").Add(float64(report.Confirmed))
	metrics.Reconciled.WithLabelValues("expired").Add(float64(report.Expired))
	metrics.Reconciled.WithLabelValues("failed").Add(float64(report.Failed))
	if report.Checked > 0 {
		logger.WithCtx(ctx).Info("reconciled pending orders",
			"checked", report.Checked, "confirmed", report.Confirmed, "expired", report.Expired, "failed", report.Failed)
	}
	return report, nil
}

type outcome int

const (
	outcomeUntouched outcome = iota
	outcomeConfirmed
	outcomeExpired
	outcomeFailed
)

func (r *Reconciler) reconcile(ctx context.Context, order *models.Order, now time.Time) outcome {
	log := logger.WithCtx(ctx).With("order_id", order.ID, "session_id", order.SessionID)

	if order.SessionID == "" {
		log.Warn("online order has no checkout session")
		return outcomeFailed
	}

	sess, err := r.svc.provider.RetrieveSession(ctx, order.SessionID)
	if err != nil {
		log.Error("reconcile: retrieve session failed", "error", err)
		return outcomeFailed
	}

	if sess.Paid() {
		if _, err := r.svc.settle(ctx, order, sess, SystemActor()); err != nil {
			log.Error("reconcile: confirm failed", "error", err)
			return outcomeFailed
		}
		return outcomeConfirmed
	}

	if r.TTL > 0 && order.CreatedAt.Before(now.Add(-r.TTL)) {
		if _, err := r.svc.Cancel(ctx, SystemActor(), order.ID); err != nil {
			log.Error("reconcile: expire failed", "error", err)
			return outcomeFailed
		}
		log.Info("expired unpaid order")
		return outcomeExpired
	}
	return outcomeUntouched
}
