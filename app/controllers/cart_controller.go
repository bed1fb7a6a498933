package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/foodie/app/services"
	"github.com/shashiranjanraj/foodie/pkg/ctx"
)

type CartController struct {
	carts *services.CartService
}

func NewCartController(carts *services.CartService) *CartController {
	return &CartController{carts: carts}
}

// Quantity is a pointer so a missing quantity is told apart from 0. A
// quantity that is not a JSON number fails decoding with a 400.
type addInput struct {
	ItemID   string `json:"itemId"   validate:"required"`
	Quantity *int   `json:"quantity" validate:"required"`
}

type updateInput struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (h *CartController) List(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	entries, err := h.carts.List(c.Context(), a.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(entries)
}

func (h *CartController) Add(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var in addInput
	if !c.BindJSON(&in) {
		return
	}

	entry, created, err := h.carts.Add(c.Context(), a.UserID, in.ItemID, *in.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	if created {
		c.Created(entry)
		return
	}
	c.Success(entry)
}

func (h *CartController) Update(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var in updateInput
	if !c.BindJSON(&in) {
		return
	}

	entry, err := h.carts.Update(c.Context(), a.UserID, c.Param("id"), *in.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(entry)
}

func (h *CartController) Remove(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.carts.Remove(c.Context(), a.UserID, id); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]string{"_id": id})
}

func (h *CartController) Clear(c *ctx.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Context(), a.UserID); err != nil {
		fail(c, err)
		return
	}
	c.Message(http.StatusOK, "Cart cleared")
}
