// Package http provides HTTP server and handler implementations.
//
// This file implements a builder for JSON responses. Every value set on a
// response goes through the numeric sanitizer, so NaN or infinite floats
// never reach the encoder.

package http

import (
	"net/http"

	"github.com/go-chi/render"

	"profitcalc/internal/classify"
	"profitcalc/internal/core"
	"profitcalc/internal/storage"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	fields     map[string]any
	headers    map[string]string
}

// NewJSONResponse creates a builder with a 200 status and success=true.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		fields:     map[string]any{"success": true},
		headers:    make(map[string]string),
	}
}

// NewJSONError creates a builder for a failed request.
func NewJSONError(code int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(code).Set("success", false).Set("error", message)
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Set adds a top-level field. Values are sanitized here.
func (b *JSONResponseBuilder) Set(key string, value any) *JSONResponseBuilder {
	b.fields[key] = classify.Sanitize(value)
	return b
}

// SetIf adds a field only when cond holds.
func (b *JSONResponseBuilder) SetIf(cond bool, key string, value any) *JSONResponseBuilder {
	if cond {
		return b.Set(key, value)
	}
	return b
}

// Omit removes a field, including the default success flag.
func (b *JSONResponseBuilder) Omit(key string) *JSONResponseBuilder {
	delete(b.fields, key)
	return b
}

// Header sets a response header.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Fields returns the body as built so far.
func (b *JSONResponseBuilder) Fields() map[string]any {
	return b.fields
}

// Send writes headers, status and the JSON body.
func (b *JSONResponseBuilder) Send(w http.ResponseWriter, r *http.Request) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	render.Status(r, b.statusCode)
	render.JSON(w, r, b.fields)
}

// writeError sends {success:false, error:message}.
func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	NewJSONError(code, message).Send(w, r)
}

// sanitizeRecord returns a copy of rec safe to encode.
func sanitizeRecord(rec storage.MonthRecord) storage.MonthRecord {
	rec.Spreadsheet = classify.Sanitize(rec.Spreadsheet).([]core.ReportRow)
	rec.Summary = classify.Sanitize(rec.Summary).(core.Summary)
	return rec
}
