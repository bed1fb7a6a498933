// Package server boots the process: connections, services, background
// workers and the HTTP and gRPC listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shashiranjanraj/foodie/app/jobs"
	"github.com/shashiranjanraj/foodie/app/listeners"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/app/routes"
	"github.com/shashiranjanraj/foodie/app/services"
	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/internal/kernel"
	"github.com/shashiranjanraj/foodie/pkg/broker"
	"github.com/shashiranjanraj/foodie/pkg/cache"
	"github.com/shashiranjanraj/foodie/pkg/database"
	"github.com/shashiranjanraj/foodie/pkg/event"
	pkggrpc "github.com/shashiranjanraj/foodie/pkg/grpc"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/notification"
	"github.com/shashiranjanraj/foodie/pkg/payment"
	"github.com/shashiranjanraj/foodie/pkg/queue"
	"github.com/shashiranjanraj/foodie/pkg/schedule"
	"github.com/shashiranjanraj/foodie/pkg/storage"
	"github.com/shashiranjanraj/foodie/pkg/ws"
	"gorm.io/gorm"
)

const (
	shutdownTimeout = 15 * time.Second
	queueWorkers    = 4
	reconcileTask   = "orders:reconcile"
	pruneFailedTask = "queue:prune-failed"

	failedJobRetention = 7 * 24 * time.Hour
)

// App is the wired application.
type App struct {
	DB         *gorm.DB
	Orders     *repositories.OrderRepository
	Deps       routes.Deps
	Reconciler *services.Reconciler
	Publisher  broker.Publisher
}

// Bootstrap loads config and connects the database (required) and Redis
// (optional), then builds the services.
func Bootstrap() (*App, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	if err := logger.Configure(); err != nil {
		return nil, err
	}
	if err := database.Connect(); err != nil {
		return nil, err
	}
	if err := cache.Connect(); err != nil {
		logger.Warn("redis unavailable, running without cache and token revocation", "error", err)
	}
	if err := storage.Connect(context.Background()); err != nil {
		return nil, err
	}

	db := database.DB
	users := repositories.NewUserRepository(db)
	items := repositories.NewItemRepository(db)
	carts := repositories.NewCartRepository(db)
	orders := repositories.NewOrderRepository(db)

	catalog := services.NewCatalogService(items, storage.Default(), time.Duration(config.CacheTTLSeconds())*time.Second)
	orderSvc := services.NewOrderService(orders, items, paymentProvider(), catalog, services.OrderConfig{
		Currency:    config.PaymentCurrency(),
		TaxRate:     config.TaxRate(),
		FrontendURL: config.FrontendURL(),
	})

	return &App{
		DB:     db,
		Orders: orders,
		Deps: routes.Deps{
			Auth:    services.NewAuthService(users, time.Duration(config.JWTTTLHours())*time.Hour),
			Catalog: catalog,
			Carts:   services.NewCartService(carts, items),
			Orders:  orderSvc,
		},
		Reconciler: services.NewReconciler(orders, orderSvc, time.Duration(config.PendingOrderTTLHours())*time.Hour),
		Publisher:  broker.New(config.KafkaBrokers(), config.KafkaOrderTopic()),
	}, nil
}

func paymentProvider() payment.Provider {
	if config.PaymentProvider() == "stripe" {
		return payment.NewStripeProvider(config.StripeSecretKey(), config.StripeAPIBase())
	}
	logger.Warn("payment: using the fake provider, online payments are simulated")
	return payment.NewFakeProvider()
}

// UseQueue selects the queue driver and makes the job types decodable.
func (a *App) UseQueue() {
	if config.QueueDriver() == "redis" {
		if cache.Available() {
			queue.SetDriver(queue.NewRedisDriver(cache.RDB, "default"))
		} else {
			logger.Warn("queue: QUEUE_DRIVER=redis but redis is unavailable, using memory driver")
		}
	}
	queue.SetMaxAttempts(config.QueueMaxAttempts())
	queue.UseDB(a.DB)
	jobs.Register(a.Orders)
}

// Schedule registers the periodic tasks.
func (a *App) Schedule() error {
	err := schedule.Add(schedule.Task{
		Name:      pruneFailedTask,
		Every:     time.Hour,
		Exclusive: true,
		Run: func(ctx context.Context) error {
			n, err := queue.FlushFailed(ctx, failedJobRetention)
			if n > 0 {
				logger.Info("pruned failed jobs", "count", n)
			}
			return err
		},
	})
	if err != nil {
		return err
	}

	minutes := config.ReconcileIntervalMinutes()
	if minutes < 1 {
		return nil
	}
	return schedule.Add(schedule.Task{
		Name:      reconcileTask,
		Every:     time.Duration(minutes) * time.Minute,
		Exclusive: true,
		Run: func(ctx context.Context) error {
			_, err := a.Reconciler.Run(ctx)
			return err
		},
	})
}

// Close releases the connections opened by Bootstrap.
func (a *App) Close() {
	if err := a.Publisher.Close(); err != nil {
		logger.Warn("broker close", "error", err)
	}
	if err := database.Close(); err != nil {
		logger.Warn("database close", "error", err)
	}
}

// Start runs the whole server until ctx is cancelled, then shuts down
// gracefully.
func Start(ctx context.Context) error {
	a, err := Bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	if uri := config.MongoLogURI(); uri != "" {
		if err := logger.EnableMongo(uri); err != nil {
			logger.Warn("mongo log sink disabled", "error", err)
		}
	}
	defer logger.Close()
	notification.SetSlackWebhook(config.SlackWebhookURL())

	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()

	a.UseQueue()
	workers := queue.StartWorkers(workCtx, queueWorkers)

	hub := ws.NewHub(config.CORSOrigins())
	go hub.Run(workCtx)
	a.Deps.Hub = hub
	listeners.Register(event.Default, hub, a.Publisher)

	if err := a.Schedule(); err != nil {
		return err
	}
	schedule.Start(workCtx)

	var grpcSrv *pkggrpc.Server
	if port := config.GRPCPort(); port != "" {
		grpcSrv = pkggrpc.New(database.Ping)
		if err := grpcSrv.Start(port); err != nil {
			return err
		}
	}

	httpSrv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           kernel.NewHTTPKernel(a.Deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("foodie listening", "addr", httpSrv.Addr, "env", config.AppEnv())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if grpcSrv != nil {
		grpcSrv.Stop()
	}

	// Listeners still enqueue mail jobs while events drain.
	event.Wait()
	stopWork()
	schedule.Wait()
	workers.Wait()
	return nil
}
