// Package graphql exposes a read-only view of the catalog and the caller's
// orders.
package graphql

import (
	"errors"

	"github.com/graphql-go/graphql"
	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/services"
	pkggraphql "github.com/shashiranjanraj/foodie/pkg/graphql"
	"github.com/shashiranjanraj/foodie/pkg/session"
	"github.com/shopspring/decimal"
)

var errLoginRequired = errors.New("login required")

// money resolves a decimal field as a float.
func money(get func(src interface{}) (decimal.Decimal, bool)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		d, ok := get(p.Source)
		if !ok {
			return nil, nil
		}
		f, _ := d.Float64()
		return f, nil
	}
}

func itemMoney(p graphql.ResolveParams) (interface{}, error) {
	return money(func(src interface{}) (decimal.Decimal, bool) {
		switch it := src.(type) {
		case models.Item:
			return it.Price, true
		case *models.Item:
			return it.Price, true
		}
		return decimal.Zero, false
	})(p)
}

var itemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Item",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: field(func(i *models.Item) interface{} { return i.ID })},
		"name":        &graphql.Field{Type: graphql.String, Resolve: field(func(i *models.Item) interface{} { return i.Name })},
		"description": &graphql.Field{Type: graphql.String, Resolve: field(func(i *models.Item) interface{} { return i.Description })},
		"category":    &graphql.Field{Type: graphql.String, Resolve: field(func(i *models.Item) interface{} { return i.Category })},
		"price":       &graphql.Field{Type: graphql.Float, Resolve: itemMoney},
		"rating":      &graphql.Field{Type: graphql.Float, Resolve: field(func(i *models.Item) interface{} { return i.Rating })},
		"hearts":      &graphql.Field{Type: graphql.Int, Resolve: field(func(i *models.Item) interface{} { return i.Hearts })},
		"quantity":    &graphql.Field{Type: graphql.Int, Resolve: field(func(i *models.Item) interface{} { return i.Stock })},
		"imageUrl":    &graphql.Field{Type: graphql.String, Resolve: field(func(i *models.Item) interface{} { return i.ImageURL })},
	},
})

// field adapts a getter on *models.Item to a resolver.
func field(get func(*models.Item) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		switch it := p.Source.(type) {
		case models.Item:
			return get(&it), nil
		case *models.Item:
			return get(it), nil
		}
		return nil, nil
	}
}

var lineType = graphql.NewObject(graphql.ObjectConfig{
	Name: "OrderLine",
	Fields: graphql.Fields{
		"itemId": &graphql.Field{Type: graphql.ID, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			if l, ok := p.Source.(models.OrderLine); ok && l.ItemID != nil {
				return *l.ItemID, nil
			}
			return nil, nil
		}},
		"name": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			l, _ := p.Source.(models.OrderLine)
			return l.Name, nil
		}},
		"price": &graphql.Field{Type: graphql.Float, Resolve: money(func(src interface{}) (decimal.Decimal, bool) {
			l, ok := src.(models.OrderLine)
			return l.Price, ok
		})},
		"quantity": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			l, _ := p.Source.(models.OrderLine)
			return l.Quantity, nil
		}},
	},
})

func orderOf(src interface{}) (*models.Order, bool) {
	switch o := src.(type) {
	case models.Order:
		return &o, true
	case *models.Order:
		return o, true
	}
	return nil, false
}

func orderField(get func(*models.Order) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		if o, ok := orderOf(p.Source); ok {
			return get(o), nil
		}
		return nil, nil
	}
}

func orderMoney(get func(*models.Order) decimal.Decimal) graphql.FieldResolveFn {
	return money(func(src interface{}) (decimal.Decimal, bool) {
		o, ok := orderOf(src)
		if !ok {
			return decimal.Zero, false
		}
		return get(o), true
	})
}

var orderType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Order",
	Fields: graphql.Fields{
		"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: orderField(func(o *models.Order) interface{} { return o.ID })},
		"status":        &graphql.Field{Type: graphql.String, Resolve: orderField(func(o *models.Order) interface{} { return string(o.Status) })},
		"paymentMethod": &graphql.Field{Type: graphql.String, Resolve: orderField(func(o *models.Order) interface{} { return o.PaymentMethod })},
		"paymentStatus": &graphql.Field{Type: graphql.String, Resolve: orderField(func(o *models.Order) interface{} { return string(o.PaymentStatus) })},
		"subtotal":      &graphql.Field{Type: graphql.Float, Resolve: orderMoney(func(o *models.Order) decimal.Decimal { return o.Subtotal })},
		"tax":           &graphql.Field{Type: graphql.Float, Resolve: orderMoney(func(o *models.Order) decimal.Decimal { return o.Tax })},
		"total":         &graphql.Field{Type: graphql.Float, Resolve: orderMoney(func(o *models.Order) decimal.Decimal { return o.Total })},
		"createdAt":     &graphql.Field{Type: graphql.DateTime, Resolve: orderField(func(o *models.Order) interface{} { return o.CreatedAt })},
		"items":         &graphql.Field{Type: graphql.NewList(lineType), Resolve: orderField(func(o *models.Order) interface{} { return o.Lines })},
	},
})

// NewSchema builds the query root over the catalog and order services.
func NewSchema(catalog *services.CatalogService, orders *services.OrderService) (graphql.Schema, error) {
	caller := func(p graphql.ResolveParams) (services.Actor, error) {
		id, ok := session.FromCtx(p.Context)
		if !ok {
			return services.Actor{}, errLoginRequired
		}
		return services.ActorFrom(id), nil
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"items": &graphql.Field{
				Type: graphql.NewList(itemType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return catalog.List(p.Context)
				},
			},
			"item": &graphql.Field{
				Type: itemType,
				Args: graphql.FieldConfigArgument{"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					return catalog.Get(p.Context, id)
				},
			},
			"myOrders": &graphql.Field{
				Type: graphql.NewList(orderType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					a, err := caller(p)
					if err != nil {
						return nil, err
					}
					return orders.ListMine(p.Context, a)
				},
			},
			"order": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					a, err := caller(p)
					if err != nil {
						return nil, err
					}
					id, _ := p.Args["id"].(string)
					return orders.Get(p.Context, a, id, "")
				},
			},
		},
	})
	return pkggraphql.NewSchema(query)
}
