// Package testkit drives REST API tests from JSON scenario files.
//
// A scenario file holds an ordered list of steps. Each step fires one
// request against an http.Handler, checks the status code and checks that
// the response contains the expected JSON. Values captured from one
// response can be used in later steps, in urls, headers, bodies and
// expectations, as {{name}}:
//
//	[
//	  {
//	    "name": "place cash order",
//	    "as": "client",
//	    "method": "POST",
//	    "url": "/api/orders",
//	    "body": {"paymentMethod": "cod", "items": [{"itemId": "{{item}}", "quantity": 2}]},
//	    "expectedCode": 201,
//	    "expect": {"data": {"order": {"paymentStatus": "succeeded"}}},
//	    "capture": {"order": "data.order._id"}
//	  }
//	]
//
// Outgoing calls made through pkg/http are answered by the step's "mocks";
// mail sent through pkg/mail is recorded and can be asserted with "mails".
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scenario is one request/response step.
type Scenario struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	As          string            `json:"as"` // token name passed to Runner.Tokens, "" for anonymous
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers"`
	Body        json.RawMessage   `json:"body"`

	ExpectedCode int             `json:"expectedCode"`
	Expect       json.RawMessage `json:"expect"` // must be contained in the response body

	// Capture maps a variable name to a dotted path into the response.
	Capture map[string]string `json:"capture"`

	Mocks []MockStep `json:"mocks"`
	// StrictMocks fails the step when an outgoing call matches no mock.
	StrictMocks bool `json:"strictMocks"`
	// Mails is the number of mails the step must send, when set.
	Mails *int `json:"mails"`
}

// MockStep answers outgoing HTTP calls whose method and URL match.
type MockStep struct {
	Method   string `json:"method"`   // "" matches any method
	MatchURL string `json:"matchUrl"` // prefix, "" matches any URL; {{vars}} are expanded
	// Times limits how often the mock answers. 0 means unlimited.
	Times int `json:"times"`
	// Optional marks a mock that may stay unused.
	Optional bool `json:"optional"`

	Status int             `json:"status"` // defaults to 200
	Body   json.RawMessage `json:"body"`
}

// Load reads the steps of a scenario file.
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", path, err)
	}

	var steps []Scenario
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", path, err)
	}
	for i := range steps {
		if err := steps[i].validate(); err != nil {
			return nil, fmt.Errorf("testkit: %s step %d: %w", filepath.Base(path), i, err)
		}
	}
	return steps, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.Method == "" {
		s.Method = "GET"
	}
	s.Method = strings.ToUpper(s.Method)
	return nil
}

// expand replaces {{name}} with vars[name]. Unknown names are left as is.
func expand(s string, vars map[string]string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}
