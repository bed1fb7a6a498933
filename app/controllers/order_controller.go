package controllers

import (
	"github.com/shashiranjanraj/foodie/app/services"
	"github.com/shashiranjanraj/foodie/pkg/ctx"
	"github.com/shashiranjanraj/foodie/pkg/response"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

func (h *OrderController) Create(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var in services.CreateOrderInput
	if !c.BindJSON(&in) {
		return
	}

	res, err := h.orders.Create(c.Context(), a, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(res)
}

func (h *OrderController) Confirm(c *ctx.Context) {
	order, err := h.orders.Confirm(c.Context(), c.Query("session_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

func (h *OrderController) ListMine(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	orders, err := h.orders.ListMine(c.Context(), a)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(orders)
}

func (h *OrderController) Show(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Context(), a, c.Param("id"), c.Query("email"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

func (h *OrderController) Update(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var patch services.OrderPatch
	if !c.BindJSON(&patch) {
		return
	}
	order, err := h.orders.Update(c.Context(), a, c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

// Cancel serves both the owner route and the admin route; the actor decides
// whether ownership is checked.
func (h *OrderController) Cancel(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	order, err := h.orders.Cancel(c.Context(), a, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.SuccessWith("Order cancelled successfully", order)
}

func (h *OrderController) AdminList(c *ctx.Context) {
	orders, p, err := h.orders.AdminList(c.Context(), c.QueryInt("page", 1), c.QueryInt("limit", 0), c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Paginated(c.W, orders, p)
}

func (h *OrderController) AdminUpdate(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var patch services.AdminOrderPatch
	if !c.BindJSON(&patch) {
		return
	}
	order, err := h.orders.AdminUpdate(c.Context(), a, c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}
