package controllers

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/foodie/app/services"
	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/pkg/ctx"
	"github.com/shashiranjanraj/foodie/pkg/middleware"
)

type AuthController struct {
	service *services.AuthService
}

func NewAuthController(service *services.AuthService) *AuthController {
	return &AuthController{service: service}
}

func (a *AuthController) Register(c *ctx.Context) {
	var in services.RegisterInput
	if !c.BindJSON(&in) {
		return
	}

	token, err := a.service.Register(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	a.setCookie(c, token)
	c.Created(map[string]any{"token": token.Value, "user": token.User})
}

func (a *AuthController) Login(c *ctx.Context) {
	var in services.LoginInput
	if !c.BindJSON(&in) {
		return
	}

	token, err := a.service.Login(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	a.setCookie(c, token)
	c.Success(map[string]any{"token": token.Value, "user": token.User})
}

func (a *AuthController) Logout(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized("Token missing")
		return
	}
	if err := a.service.Logout(c.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.SetCookie(middleware.TokenCookie, "", -1, config.IsProduction())
	c.Message(http.StatusOK, "Logged out")
}

func (a *AuthController) setCookie(c *ctx.Context, token *services.Token) {
	maxAge := int(time.Until(token.Expires).Seconds())
	c.SetCookie(middleware.TokenCookie, token.Value, maxAge, config.IsProduction())
}
