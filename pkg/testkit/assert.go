package testkit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Contains reports the places where actual does not contain expected.
// Objects match when every expected key matches; extra keys in actual are
// ignored. Arrays must have the same length and match element by element.
// Scalars are compared by their JSON value.
func Contains(expected, actual []byte) ([]string, error) {
	if len(expected) == 0 {
		return nil, nil
	}
	var exp, act interface{}
	if err := json.Unmarshal(expected, &exp); err != nil {
		return nil, fmt.Errorf("testkit: expected is not valid JSON: %w", err)
	}
	if err := json.Unmarshal(actual, &act); err != nil {
		return nil, fmt.Errorf("testkit: response is not valid JSON: %w", err)
	}
	return diff("", exp, act), nil
}

func diff(path string, expected, actual interface{}) []string {
	var out []string
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return []string{fmt.Sprintf("%s: expected object, got %s", keyPath(path), describe(actual))}
		}
		keys := make([]string, 0, len(exp))
		for k := range exp {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			av, exists := act[k]
			if !exists {
				out = append(out, fmt.Sprintf("%s.%s: missing", keyPath(path), k))
				continue
			}
			out = append(out, diff(path+"."+k, exp[k], av)...)
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return []string{fmt.Sprintf("%s: expected array, got %s", keyPath(path), describe(actual))}
		}
		if len(exp) != len(act) {
			out = append(out, fmt.Sprintf("%s: expected %d elements, got %d", keyPath(path), len(exp), len(act)))
		}
		for i := 0; i < len(exp) && i < len(act); i++ {
			out = append(out, diff(path+"["+strconv.Itoa(i)+"]", exp[i], act[i])...)
		}
	default:
		if describe(expected) != describe(actual) {
			out = append(out, fmt.Sprintf("%s: expected %s, got %s", keyPath(path), describe(expected), describe(actual)))
		}
	}
	return out
}

func describe(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func keyPath(path string) string {
	if path == "" {
		return "root"
	}
	return strings.TrimPrefix(path, ".")
}

// Lookup walks a dotted path such as "data.items.0._id" through a decoded
// JSON document and returns the value as a string.
func Lookup(body []byte, path string) (string, bool) {
	var cur interface{}
	if err := json.Unmarshal(body, &cur); err != nil {
		return "", false
	}
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[part]
			if !ok {
				return "", false
			}
			cur = v
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return "", false
			}
			cur = node[i]
		default:
			return "", false
		}
	}
	if s, ok := cur.(string); ok {
		return s, true
	}
	return describe(cur), cur != nil
}
