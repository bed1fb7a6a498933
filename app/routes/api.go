package routes

import (
	"github.com/shashiranjanraj/foodie/app/controllers"
	appgraphql "github.com/shashiranjanraj/foodie/app/graphql"
	"github.com/shashiranjanraj/foodie/app/services"
	"github.com/shashiranjanraj/foodie/pkg/ctx"
	"github.com/shashiranjanraj/foodie/pkg/graphql"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/middleware"
	"github.com/shashiranjanraj/foodie/pkg/router"
	"github.com/shashiranjanraj/foodie/pkg/ws"
)

// Deps are the services the API handlers run on.
type Deps struct {
	Auth    *services.AuthService
	Catalog *services.CatalogService
	Carts   *services.CartService
	Orders  *services.OrderService
	Hub     *ws.Hub
}

func RegisterAPI(r *router.Router, d Deps) {
	authController := controllers.NewAuthController(d.Auth)
	itemController := controllers.NewItemController(d.Catalog)
	cartController := controllers.NewCartController(d.Carts)
	orderController := controllers.NewOrderController(d.Orders)

	api := r.Group.Group("/api")

	api.Post("/user/register", "user.register", ctx.Wrap(authController.Register))
	api.Post("/user/login", "user.login", ctx.Wrap(authController.Login))

	api.Get("/items", "items.index", ctx.Wrap(itemController.List))
	api.Get("/items/{id}", "items.show", ctx.Wrap(itemController.Show))

	user := api.Group("", middleware.AuthMiddleware)
	user.Post("/user/logout", "user.logout", ctx.Wrap(authController.Logout))

	user.Get("/cart", "cart.index", ctx.Wrap(cartController.List))
	user.Post("/cart", "cart.add", ctx.Wrap(cartController.Add))
	user.Post("/cart/clear", "cart.clear", ctx.Wrap(cartController.Clear))
	user.Put("/cart/{id}", "cart.update", ctx.Wrap(cartController.Update))
	user.Delete("/cart/{id}", "cart.remove", ctx.Wrap(cartController.Remove))

	user.Post("/orders", "orders.store", ctx.Wrap(orderController.Create))
	user.Get("/orders", "orders.index", ctx.Wrap(orderController.ListMine))
	user.Get("/orders/confirm", "orders.confirm", ctx.Wrap(orderController.Confirm))
	user.Get("/orders/{id}", "orders.show", ctx.Wrap(orderController.Show))
	user.Put("/orders/{id}", "orders.update", ctx.Wrap(orderController.Update))
	user.Post("/orders/{id}/cancel", "orders.cancel", ctx.Wrap(orderController.Cancel))

	admin := user.Group("", middleware.AdminOnly)
	admin.Post("/items", "items.store", ctx.Wrap(itemController.Create))
	admin.Put("/items/{id}", "items.update", ctx.Wrap(itemController.Update))
	admin.Patch("/items/{id}", "items.patch", ctx.Wrap(itemController.QuickUpdate))
	admin.Delete("/items/{id}", "items.destroy", ctx.Wrap(itemController.Delete))

	admin.Get("/orders/getall", "admin.orders.index", ctx.Wrap(orderController.AdminList))
	admin.Put("/orders/getall/{id}", "admin.orders.update", ctx.Wrap(orderController.AdminUpdate))
	admin.Post("/orders/getall/{id}/cancel", "admin.orders.cancel", ctx.Wrap(orderController.Cancel))

	if d.Hub != nil {
		realtime := controllers.NewRealtimeController(d.Hub)
		admin.Get("/admin/orders/ws", "admin.orders.feed", ctx.Wrap(realtime.Feed))
	}

	schema, err := appgraphql.NewSchema(d.Catalog, d.Orders)
	if err != nil {
		logger.Error("graphql schema disabled", "error", err)
		return
	}
	r.Handle("/graphql", "graphql", graphql.Handler(schema), middleware.OptionalAuth)
}
