package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/app/services"
	pkggraphql "github.com/shashiranjanraj/foodie/pkg/graphql"
	"github.com/shashiranjanraj/foodie/pkg/payment"
	"github.com/shashiranjanraj/foodie/pkg/session"
	"github.com/shashiranjanraj/foodie/pkg/testkit"
)

type fixture struct {
	handler http.Handler
	items   *repositories.ItemRepository
	orders  *repositories.OrderRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testkit.DB(t, &models.Item{}, &models.Order{}, &models.OrderLine{})
	items := repositories.NewItemRepository(db)
	orders := repositories.NewOrderRepository(db)
	catalog := services.NewCatalogService(items, nil, time.Minute)
	svc := services.NewOrderService(orders, items, payment.NewFakeProvider(), catalog,
		services.OrderConfig{Currency: "inr", TaxRate: decimal.Zero, FrontendURL: "http://shop.test"})

	schema, err := NewSchema(catalog, svc)
	require.NoError(t, err)
	return &fixture{handler: pkggraphql.Handler(schema), items: items, orders: orders}
}

type result struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (f *fixture) query(t *testing.T, q string, id *session.Identity) result {
	t.Helper()
	body, err := json.Marshal(map[string]string{"query": q})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	if id != nil {
		req = req.WithContext(session.WithIdentity(req.Context(), *id))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestItemsQuery(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dosa := &models.Item{Name: "Masala dosa", Category: "breakfast", Price: decimal.RequireFromString("95.50"), Stock: 7, Rating: 4.5}
	require.NoError(t, f.items.Create(ctx, dosa))

	res := f.query(t, `{ items { id name category price quantity rating } }`, nil)
	require.Empty(t, res.Errors)

	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data["items"], &items))
	require.Len(t, items, 1)
	assert.Equal(t, dosa.ID, items[0]["id"])
	assert.Equal(t, "Masala dosa", items[0]["name"])
	assert.Equal(t, 95.5, items[0]["price"])
	assert.Equal(t, float64(7), items[0]["quantity"])
	assert.Equal(t, 4.5, items[0]["rating"])

	res = f.query(t, `{ item(id: "`+dosa.ID+`") { name } }`, nil)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"name":"Masala dosa"}`, string(res.Data["item"]))

	res = f.query(t, `{ item(id: "missing") { name } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "Item not found", res.Errors[0].Message)
}

func TestOrdersNeedLogin(t *testing.T) {
	f := setup(t)
	res := f.query(t, `{ myOrders { id } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "login required", res.Errors[0].Message)
}

func TestMyOrdersAndOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	order := &models.Order{
		UserID:        "u-1",
		PaymentMethod: models.PaymentCOD,
		PaymentStatus: models.PaymentSucceeded,
		Status:        models.StatusPlaced,
		Subtotal:      decimal.RequireFromString("190"),
		Total:         decimal.RequireFromString("190"),
		Lines: []models.OrderLine{
			{Name: "Masala dosa", Price: decimal.RequireFromString("95"), Quantity: 2},
		},
	}
	require.NoError(t, f.orders.Create(ctx, order))

	owner := &session.Identity{UserID: "u-1", Role: session.RoleClient}
	res := f.query(t, `{ myOrders { id status paymentMethod total items { name quantity price } } }`, owner)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `[{"id":"`+order.ID+`","status":"placed","paymentMethod":"cod","total":190,
		"items":[{"name":"Masala dosa","quantity":2,"price":95}]}]`, string(res.Data["myOrders"]))

	stranger := &session.Identity{UserID: "u-2", Role: session.RoleClient}
	res = f.query(t, `{ order(id: "`+order.ID+`") { id } }`, stranger)
	require.NotEmpty(t, res.Errors)

	admin := &session.Identity{UserID: "u-9", Role: session.RoleAdmin}
	res = f.query(t, `{ order(id: "`+order.ID+`") { id status } }`, admin)
	require.Empty(t, res.Errors)
	assert.JSONEq(t, `{"id":"`+order.ID+`","status":"placed"}`, string(res.Data["order"]))
}
