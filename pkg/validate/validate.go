// Package validate checks request structs against rules in their `validate`
// tags. Rules are comma separated and run in order; the first failing rule
// of a field is the one reported.
//
//	type RegisterInput struct {
//	    Username string `json:"username" validate:"required,min=2,max=50"`
//	    Email    string `json:"email"    validate:"required,email"`
//	    Phone    string `json:"phone"    validate:"nullable,digits"`
//	    Method   string `json:"method"   validate:"in=cod|online"`
//	}
//
// Supported rules:
//
//	required   not the zero value (strings are trimmed first); a non-nil
//	           pointer is always present, so *int can require a number
//	           while still accepting 0
//	nullable   skip the remaining rules when empty
//	email      an address net/mail accepts, without a display name
//	uuid       a UUID in canonical form
//	digits     only 0-9
//	min=N      strings: at least N characters; numbers: at least N
//	max=N      strings: at most N characters; numbers: at most N
//	in=a|b     one of the listed values
package validate

import (
	"fmt"
	"net/mail"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Errors maps a field's JSON name to the message of its failed rule.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Struct validates the tagged fields of v, which must be a struct or a
// pointer to one. Embedded structs are walked. It returns nil when every
// rule passes.
func Struct(v interface{}) Errors {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	errs := Errors{}
	walk(rv, errs)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func walk(rv reflect.Value, errs Errors) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		fv := rv.Field(i)

		if f.Anonymous && fv.Kind() == reflect.Struct {
			walk(fv, errs)
			continue
		}
		if !f.IsExported() {
			continue
		}

		tag := f.Tag.Get("validate")
		if tag == "" {
			continue
		}
		name := fieldName(f)
		if msg := check(name, fv, strings.Split(tag, ",")); msg != "" {
			errs[name] = msg
		}
	}
}

func check(name string, v reflect.Value, rules []string) string {
	for _, r := range rules {
		if strings.TrimSpace(r) == "nullable" && empty(v) {
			return ""
		}
	}

	for _, r := range rules {
		rule, param, _ := strings.Cut(strings.TrimSpace(r), "=")
		if rule == "" || rule == "nullable" {
			continue
		}
		if msg := apply(rule, param, name, v); msg != "" {
			return msg
		}
	}
	return ""
}

func apply(rule, param, name string, v reflect.Value) string {
	s := text(v)

	switch rule {
	case "required":
		if empty(v) {
			return fmt.Sprintf("%s is required", name)
		}
	case "email":
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
			return fmt.Sprintf("%s must be a valid email address", name)
		}
	case "uuid":
		if _, err := uuid.Parse(s); err != nil || len(s) != 36 {
			return fmt.Sprintf("%s must be a valid id", name)
		}
	case "digits":
		for _, c := range s {
			if c < '0' || c > '9' {
				return fmt.Sprintf("%s may only contain digits", name)
			}
		}
	case "min", "max":
		return bound(rule, param, name, v)
	case "in":
		for _, opt := range strings.Split(param, "|") {
			if s == opt {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of %s", name, strings.ReplaceAll(param, "|", ", "))
	default:
		return fmt.Sprintf("%s has unknown rule %q", name, rule)
	}
	return ""
}

func bound(rule, param, name string, v reflect.Value) string {
	limit, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return fmt.Sprintf("%s has a malformed %s rule", name, rule)
	}

	n, numeric := number(v)
	unit := ""
	if !numeric {
		n = float64(utf8.RuneCountInString(text(v)))
		unit = " characters"
	}

	switch {
	case rule == "min" && n < limit:
		return fmt.Sprintf("%s must be at least %s%s", name, param, unit)
	case rule == "max" && n > limit:
		return fmt.Sprintf("%s must be at most %s%s", name, param, unit)
	}
	return ""
}

// ─── Reflection helpers ───────────────────────────────────────────────────────

func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func deref(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, true
}

func empty(v reflect.Value) bool {
	if v.Kind() == reflect.Ptr {
		return v.IsNil()
	}
	v, ok := deref(v)
	if !ok {
		return true
	}
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	}
	return v.IsZero()
}

func text(v reflect.Value) string {
	v, ok := deref(v)
	if !ok {
		return ""
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	if !v.CanInterface() {
		return ""
	}
	return fmt.Sprint(v.Interface())
}

func number(v reflect.Value) (float64, bool) {
	v, ok := deref(v)
	if !ok {
		return 0, false
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}
