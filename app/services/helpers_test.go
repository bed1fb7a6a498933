package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/pkg/payment"
	"github.com/shashiranjanraj/foodie/pkg/testkit"
)

type env struct {
	db       *gorm.DB
	items    *repositories.ItemRepository
	orders   *repositories.OrderRepository
	carts    *repositories.CartRepository
	users    *repositories.UserRepository
	provider *payment.FakeProvider

	Cart    *CartService
	Catalog *CatalogService
	Orders  *OrderService
	Auth    *AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testkit.DB(t, &models.User{}, &models.Item{}, &models.CartEntry{}, &models.Order{}, &models.OrderLine{})

	e := &env{
		db:       db,
		items:    repositories.NewItemRepository(db),
		orders:   repositories.NewOrderRepository(db),
		carts:    repositories.NewCartRepository(db),
		users:    repositories.NewUserRepository(db),
		provider: payment.NewFakeProvider(),
	}
	e.Cart = NewCartService(e.carts, e.items)
	e.Catalog = NewCatalogService(e.items, nil, time.Minute)
	e.Orders = NewOrderService(e.orders, e.items, e.provider, e.Catalog, OrderConfig{
		Currency:    "inr",
		TaxRate:     decimal.Zero,
		FrontendURL: "http://shop.test",
	})
	e.Auth = NewAuthService(e.users, time.Hour)
	return e
}

func (e *env) item(t *testing.T, name string, price string, stock int) *models.Item {
	t.Helper()
	item := &models.Item{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, e.items.Create(context.Background(), item))
	return item
}

func (e *env) stock(t *testing.T, id string) int {
	t.Helper()
	item, err := e.items.FindByID(context.Background(), id)
	require.NoError(t, err)
	return item.Stock
}

func (e *env) orderCount(t *testing.T) int {
	t.Helper()
	_, p, err := e.orders.Paginate(context.Background(), 1, 1, "")
	require.NoError(t, err)
	return int(p.Total)
}

func checkout(method string, lines ...LineInput) CreateOrderInput {
	return CreateOrderInput{
		Shipping: ShippingInfo{
			FirstName: "Asha",
			LastName:  "Rao",
			Phone:     "9999999999",
			Email:     "asha@example.com",
			Address:   "12 MG Road",
			City:      "Bengaluru",
			ZipCode:   "560001",
		},
		PaymentMethod: method,
		Items:         lines,
	}
}

func line(item *models.Item, qty float64) LineInput {
	return LineInput{ItemID: item.ID, Name: item.Name, Price: FlexNumber{Value: item.Price, Valid: true}, Quantity: Num(qty)}
}

var owner = Actor{UserID: "user-1"}
