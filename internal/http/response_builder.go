// Package http serves the loan ledger as a JSON API.
//
// This file holds the response builder and the JSON views of loans.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"kuberx/internal/analytics"
	"kuberx/internal/auth"
	"kuberx/internal/core"
	"kuberx/internal/llm"
	"kuberx/internal/log"
	"kuberx/internal/search"
	"kuberx/internal/services"
	"kuberx/internal/storage"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	raw        []byte
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Raw sets a pre-encoded body, sent as is with the given content type.
func (b *JSONResponseBuilder) Raw(contentType string, body []byte) *JSONResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.raw = body
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body := b.raw
	if b.raw == nil && b.body != nil {
		encoded, err := json.Marshal(b.body)
		if err != nil {
			http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
			return
		}
		body = encoded
		b.headers["Content-Type"] = "application/json; charset=utf-8"
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// ErrorFor maps a service error onto a status code and a client-safe
// message. Unexpected errors are logged and reported as 500.
func ErrorFor(ctx context.Context, err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrMissingRecordID),
		errors.Is(err, core.ErrMissingDate),
		errors.Is(err, core.ErrMissingName),
		errors.Is(err, core.ErrMissingAmount),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidStatus):
		return ErrorResponse(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return ErrorResponse(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAlreadyClosed),
		errors.Is(err, storage.ErrDuplicateRecord):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrExtractionUnavailable),
		errors.Is(err, services.ErrSearchUnavailable):
		return ErrorResponse(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, search.ErrUnknownMode),
		errors.Is(err, search.ErrUnknownField):
		return BadRequestError(err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return ErrorResponse(http.StatusUnauthorized, err.Error())
	case errors.Is(err, llm.ErrNoJSON):
		return ErrorResponse(http.StatusBadGateway, "language model returned no usable answer")
	case errors.Is(err, context.Canceled):
		return ErrorResponse(499, "request canceled")
	}
	log.FromContext(ctx).ErrorContext(ctx, "Request failed", log.FieldError, err)
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// LoanView is the JSON form of a loan, keyed by the sheet header names.
type LoanView struct {
	Row            int     `json:"row,omitempty"`
	RecordID       string  `json:"recordId"`
	Date           string  `json:"date"`
	NameHindi      string  `json:"nameHindi"`
	NameEnglish    string  `json:"nameEnglish"`
	AddressHindi   string  `json:"addressHindi"`
	AddressEnglish string  `json:"addressEnglish"`
	Ward           string  `json:"wardArea"`
	Mobile         string  `json:"mobile"`
	DairyNumber    string  `json:"dairyNumber"`
	PageNumber     string  `json:"pageNumber"`
	Amount         string  `json:"amount"`
	Interest       string  `json:"interest"`
	Guarantee      string  `json:"guarantee"`
	Relationship   string  `json:"relationship"`
	Status         string  `json:"loanStatus"`
	AmountValue    float64 `json:"amountValue"`
	Score          float64 `json:"score,omitempty"`
}

func loanView(l core.Loan) LoanView {
	return LoanView{
		RecordID:       l.RecordID,
		Date:           l.Date,
		NameHindi:      l.NameHindi,
		NameEnglish:    l.NameEnglish,
		AddressHindi:   l.AddressHindi,
		AddressEnglish: l.AddressEnglish,
		Ward:           l.Ward,
		Mobile:         l.Mobile,
		DairyNumber:    l.DairyNumber,
		PageNumber:     l.PageNumber,
		Amount:         l.Amount,
		Interest:       l.Interest,
		Guarantee:      l.Guarantee,
		Relationship:   l.Relationship,
		Status:         string(l.Status),
		AmountValue:    core.ParseAmount(l.Amount).InexactFloat64(),
	}
}

func recordView(r analytics.Record) LoanView {
	v := loanView(r.Loan)
	v.Row = r.Row
	v.AmountValue = r.Amount.InexactFloat64()
	return v
}

func recordViews(recs []analytics.Record) []LoanView {
	out := make([]LoanView, len(recs))
	for i, r := range recs {
		out[i] = recordView(r)
	}
	return out
}

func hitViews(hits []services.Hit) []LoanView {
	out := make([]LoanView, len(hits))
	for i, h := range hits {
		out[i] = recordView(h.Record)
		out[i].Score = h.Score
	}
	return out
}
