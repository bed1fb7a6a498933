// Package response writes the JSON envelope every endpoint answers with.
//
//	{"status": 200, "data": {...}}
//	{"status": 200, "message": "Cart cleared"}
//	{"status": 409, "message": "Item is out of stock"}
//	{"status": 422, "message": "Validation failed", "errors": {"email": "..."}}
package response

import (
	"encoding/json"
	"net/http"

	"github.com/shashiranjanraj/foodie/pkg/orm"
)

// Envelope is the body of every API response. Status repeats the HTTP
// status code so clients that only see the body can still branch on it.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// JSON writes v as the body with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write sends env using env.Status as the HTTP status.
func Write(w http.ResponseWriter, env Envelope) {
	JSON(w, env.Status, env)
}

func Success(w http.ResponseWriter, data interface{}) {
	Write(w, Envelope{Status: http.StatusOK, Data: data})
}

func Created(w http.ResponseWriter, data interface{}) {
	Write(w, Envelope{Status: http.StatusCreated, Data: data})
}

// Message sends a body with only a human readable message.
func Message(w http.ResponseWriter, status int, msg string) {
	Write(w, Envelope{Status: status, Message: msg})
}

// Error is Message for failures. Kept separate so call sites read well.
func Error(w http.ResponseWriter, status int, msg string) {
	Message(w, status, msg)
}

// Fail sends an error with machine readable detail under "errors".
func Fail(w http.ResponseWriter, status int, msg string, details interface{}) {
	Write(w, Envelope{Status: status, Message: msg, Errors: details})
}

// Paginated wraps one page of results with its pagination metadata.
func Paginated(w http.ResponseWriter, items interface{}, p orm.Pagination) {
	Success(w, map[string]interface{}{
		"items":      items,
		"pagination": p,
	})
}
