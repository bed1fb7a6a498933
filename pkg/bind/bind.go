// Package bind decodes a request body into a struct and validates it.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/pkg/validate"
)

const defaultMaxBody = 1 << 20

// DecodeError is returned when the body is not usable JSON. Its message is
// safe to show to the client.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string { return e.Message }
func (e *DecodeError) Unwrap() error { return e.Err }

// JSON decodes r's body into dest and runs its validate tags. It returns a
// *DecodeError for a malformed, empty or oversized body and validate.Errors
// when rules fail.
func JSON(r *http.Request, dest interface{}) error {
	return decode(r, dest, false)
}

// OptionalJSON is JSON that treats a missing body as "{}".
func OptionalJSON(r *http.Request, dest interface{}) error {
	return decode(r, dest, true)
}

func decode(r *http.Request, dest interface{}, allowEmpty bool) error {
	limit := int64(config.GetInt("MAX_BODY_BYTES", defaultMaxBody))
	if limit <= 0 {
		limit = defaultMaxBody
	}

	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, limit)).Decode(dest)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF) && allowEmpty:
	case errors.Is(err, io.EOF):
		return &DecodeError{Message: "Request body is empty", Err: err}
	case errors.As(err, &tooLarge):
		return &DecodeError{Message: fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), Err: err}
	case err != nil:
		return &DecodeError{Message: "Malformed JSON body", Err: err}
	}

	if errs := validate.Struct(dest); errs != nil {
		return errs
	}
	return nil
}
