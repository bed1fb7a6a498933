package controllers

import (
	"github.com/shashiranjanraj/foodie/pkg/ctx"
	"github.com/shashiranjanraj/foodie/pkg/ws"
)

// RealtimeController serves the admin live order feed.
type RealtimeController struct {
	hub *ws.Hub
}

func NewRealtimeController(hub *ws.Hub) *RealtimeController {
	return &RealtimeController{hub: hub}
}

// Feed upgrades to a websocket. The upgrader has already answered the
// request when it fails, so the error is only logged there.
func (h *RealtimeController) Feed(c *ctx.Context) {
	_ = h.hub.Upgrade(c.W, c.R)
}
