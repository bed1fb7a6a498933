package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/services"
	"github.com/shashiranjanraj/foodie/pkg/ctx"
	"github.com/shashiranjanraj/foodie/pkg/logger"
)

// fail maps a service error to its HTTP response. Anything unknown is
// logged with the request id and answered with a bare 500.
func fail(c *ctx.Context, err error) {
	var (
		verr  *services.ValidationError
		stock *services.InsufficientStockError
		state *models.IllegalTransitionError
	)

	switch {
	case errors.As(err, &verr):
		c.Fail(http.StatusUnprocessableEntity, verr.Error(), verr.Fields)
	case errors.As(err, &stock):
		c.Fail(http.StatusConflict, stock.Error(), map[string]int{
			"available": stock.Available,
			"requested": stock.Requested,
		})
	case errors.Is(err, services.ErrNotFound):
		c.Error(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAccessDenied):
		c.Error(http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrOutOfStock),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrConflict):
		c.Error(http.StatusConflict, err.Error())
	case errors.As(err, &state):
		c.Error(http.StatusConflict, state.Error())
	case errors.Is(err, services.ErrPaymentIncomplete):
		c.Error(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, services.ErrProvider):
		logger.WithCtx(c.Context()).Error("payment provider failed", "error", err)
		c.Error(http.StatusBadGateway, err.Error())
	case errors.Is(err, services.ErrBadRequest):
		c.Error(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		c.Error(http.StatusUnauthorized, err.Error())
	default:
		logger.WithCtx(c.Context()).Error("request failed", "path", c.Path(), "error", err)
		c.Error(http.StatusInternalServerError, "Internal Server Error")
	}
}

// actor builds the service actor from the request identity. Routes using
// it sit behind the auth middleware, so a missing identity is a 401.
func actor(c *ctx.Context) (services.Actor, bool) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized("Token missing")
		return services.Actor{}, false
	}
	return services.ActorFrom(id), true
}
