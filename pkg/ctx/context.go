// Package ctx gives handlers one value for the request and its response.
//
//	func (h *CartController) Update(c *ctx.Context) {
//	    var in updateInput
//	    if !c.BindJSON(&in) {
//	        return // 400 or 422 already written
//	    }
//	    entry, err := h.carts.Update(c.Context(), userID, c.Param("id"), in.Quantity)
//	    ...
//	    c.Success(entry)
//	}
//
//	router.Put("/cart/{id}", "cart.update", ctx.Wrap(h.Update))
//
// Every writer goes through pkg/response, so handlers and middleware answer
// with the same envelope.
package ctx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/foodie/pkg/bind"
	"github.com/shashiranjanraj/foodie/pkg/response"
	"github.com/shashiranjanraj/foodie/pkg/session"
	"github.com/shashiranjanraj/foodie/pkg/validate"
)

// HandlerFunc is the signature of every API handler.
type HandlerFunc func(c *Context)

// Wrap adapts h to net/http.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(&Context{W: w, R: r})
	}
}

type Context struct {
	W http.ResponseWriter
	R *http.Request

	status int
}

// ─── Request ──────────────────────────────────────────────────────────────────

// Context is the request's context.Context; it is cancelled when the client
// goes away.
func (c *Context) Context() context.Context { return c.R.Context() }

func (c *Context) Param(key string) string { return chi.URLParam(c.R, key) }

func (c *Context) Query(key string) string {
	return strings.TrimSpace(c.R.URL.Query().Get(key))
}

func (c *Context) DefaultQuery(key, def string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return def
}

// QueryInt parses key as an integer and falls back to def when it is
// missing or malformed.
func (c *Context) QueryInt(key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

// PostForm reads a field of a urlencoded or multipart form.
func (c *Context) PostForm(key string) string { return c.R.FormValue(key) }

func (c *Context) Path() string { return c.R.URL.Path }

// Identity returns the caller the auth middleware put in the context.
func (c *Context) Identity() (session.Identity, bool) {
	return session.FromCtx(c.R.Context())
}

// BindJSON decodes and validates the body into dest. On failure it writes
// a 400 for an unusable body or a 422 listing the failed fields, and
// returns false.
func (c *Context) BindJSON(dest interface{}) bool {
	err := bind.JSON(c.R, dest)
	if err == nil {
		return true
	}

	var fields validate.Errors
	if errors.As(err, &fields) {
		c.ValidationError(fields)
		return false
	}
	c.Error(http.StatusBadRequest, err.Error())
	return false
}

// ─── Response ─────────────────────────────────────────────────────────────────

// JSON writes v as-is, without the envelope.
func (c *Context) JSON(code int, v interface{}) {
	c.status = code
	response.JSON(c.W, code, v)
}

func (c *Context) write(env response.Envelope) {
	c.status = env.Status
	response.Write(c.W, env)
}

func (c *Context) Success(data interface{}) {
	c.write(response.Envelope{Status: http.StatusOK, Data: data})
}

// SuccessWith is Success with a message for the client to show.
func (c *Context) SuccessWith(message string, data interface{}) {
	c.write(response.Envelope{Status: http.StatusOK, Message: message, Data: data})
}

func (c *Context) Created(data interface{}) {
	c.write(response.Envelope{Status: http.StatusCreated, Data: data})
}

// Message answers with only a message, e.g. {"status":200,"message":"Cart cleared"}.
func (c *Context) Message(code int, message string) {
	c.write(response.Envelope{Status: code, Message: message})
}

func (c *Context) Error(code int, message string) {
	c.Message(code, message)
}

// Fail is Error with extra detail under "errors".
func (c *Context) Fail(code int, message string, details interface{}) {
	c.write(response.Envelope{Status: code, Message: message, Errors: details})
}

func (c *Context) ValidationError(fields map[string]string) {
	c.Fail(http.StatusUnprocessableEntity, "Validation failed", fields)
}

func (c *Context) Unauthorized(message string) {
	c.Error(http.StatusUnauthorized, message)
}

func (c *Context) NoContent() {
	c.status = http.StatusNoContent
	c.W.WriteHeader(http.StatusNoContent)
}

// SetCookie sets an HttpOnly, SameSite=Lax cookie on path "/". A negative
// maxAge deletes it.
func (c *Context) SetCookie(name, value string, maxAge int, secure bool) {
	http.SetCookie(c.W, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Written returns the status written so far, or 0.
func (c *Context) Written() int { return c.status }
