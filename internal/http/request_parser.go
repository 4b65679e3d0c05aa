// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// path periods, numeric identifiers and JSON or form bodies.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"household/internal/core"
)

// maxBodyBytes caps request bodies; no endpoint needs more.
const maxBodyBytes = 64 << 10

// MonthParams holds a (month, year) period taken from the request.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts the period from the {year} and {month} path values.
func ParseMonthParams(r *http.Request) (MonthParams, error) {
	year, err := strconv.Atoi(strings.TrimSpace(r.PathValue("year")))
	if err != nil {
		return MonthParams{}, fmt.Errorf("%w: year %q", core.ErrInvalidYear, r.PathValue("year"))
	}
	month, err := strconv.Atoi(strings.TrimSpace(r.PathValue("month")))
	if err != nil {
		return MonthParams{}, fmt.Errorf("%w: month %q", core.ErrInvalidMonth, r.PathValue("month"))
	}
	if err := core.ValidatePeriod(month, year); err != nil {
		return MonthParams{}, err
	}
	return MonthParams{Year: year, Month: month}, nil
}

// ParseID reads a positive int64 path value.
func ParseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", core.ErrValidation, name, r.PathValue(name))
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// JSON objects are preferred; form-encoded bodies are accepted too.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("%w: request body too large", core.ErrValidation)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		dec := json.NewDecoder(strings.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed JSON body: %v", core.ErrValidation, err)
			return p.err
		}
		return nil
	}
	if body[0] == '[' {
		p.err = fmt.Errorf("%w: expected a JSON object", core.ErrValidation)
		return p.err
	}

	p.formData, p.err = url.ParseQuery(body)
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form body: %v", core.ErrValidation, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// GetInt returns an integer value, or def when the key is absent.
func (p *RequestBodyParser) GetInt(key string, def int) (int, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", core.ErrValidation, key, v)
	}
	return n, nil
}

// GetBool returns a boolean value; absent or unparseable means false.
func (p *RequestBodyParser) GetBool(key string) bool {
	b, _ := strconv.ParseBool(p.Get(key))
	return b
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseBody is the common NewRequestBodyParser + Parse sequence.
func parseBody(r *http.Request) (*RequestBodyParser, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return p, nil
}
