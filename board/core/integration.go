// ABOUTME: HttpIntegration is a saved outbound HTTP target whose query and headers are parsed at save time.
// ABOUTME: Free-form JSON text is turned into validated string maps or rejected with a ValidationError.
package core

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
)

// HttpIntegration describes a reusable HTTP endpoint configuration. Automations
// that reference one get its headers and query parameters on every dispatch.
type HttpIntegration struct {
	ID      ulid.ULID         `json:"id"`
	Name    string            `json:"name"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Query   map[string]string `json:"query"`
	Headers map[string]string `json:"headers"`
}

// IntegrationInput is the raw form of an integration as typed by a user:
// query and headers are JSON object text.
type IntegrationInput struct {
	Name        string `json:"name"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	QueryJSON   string `json:"query"`
	HeadersJSON string `json:"headers"`
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// ParseHttpIntegration validates raw input and returns a structured
// integration with a fresh id. Empty query or headers text means no entries.
func ParseHttpIntegration(in IntegrationInput) (HttpIntegration, error) {
	name, err := requireText("integration name", in.Name)
	if err != nil {
		return HttpIntegration{}, err
	}
	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if method == "" {
		method = http.MethodPost
	}
	if !allowedMethods[method] {
		return HttpIntegration{}, &ValidationError{Field: "method", Reason: "unsupported method " + method}
	}
	u, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return HttpIntegration{}, &ValidationError{Field: "url", Reason: "must be an absolute http or https URL"}
	}
	query, err := parseStringMap("query", in.QueryJSON)
	if err != nil {
		return HttpIntegration{}, err
	}
	headers, err := parseStringMap("headers", in.HeadersJSON)
	if err != nil {
		return HttpIntegration{}, err
	}
	for k := range headers {
		if strings.TrimSpace(k) == "" || strings.ContainsAny(k, " \t\r\n:") {
			return HttpIntegration{}, &ValidationError{Field: "headers", Reason: "invalid header name " + k}
		}
	}
	return HttpIntegration{
		ID:      NewULID(),
		Name:    name,
		Method:  method,
		URL:     u.String(),
		Query:   query,
		Headers: headers,
	}, nil
}

// parseStringMap decodes a JSON object whose values are all strings.
func parseStringMap(field, text string) (map[string]string, error) {
	out := map[string]string{}
	text = strings.TrimSpace(text)
	if text == "" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ValidationError{Field: field, Reason: "malformed JSON object"}
	}
	if dec.More() {
		return nil, &ValidationError{Field: field, Reason: "trailing data after JSON object"}
	}
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, &ValidationError{Field: field, Reason: "value for " + k + " must be a string"}
		}
		out[k] = s
	}
	return out, nil
}

// Apply adds the integration's query parameters and headers to req.
// Headers already present on req are overwritten.
func (h HttpIntegration) Apply(req *http.Request) {
	if len(h.Query) > 0 {
		q := req.URL.Query()
		for k, v := range h.Query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
}
