package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"kuberx/internal/log"
	"kuberx/internal/search"
	"kuberx/internal/services"
)

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := services.ParseStatusFilter(q.Get("status"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	field, err := search.ParseField(q.Get("field"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	limit, err := positiveInt(q, "limit")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	recs, err := s.ledger.Records(r.Context(), services.RecordFilter{
		Status: status,
		Query:  q.Get("q"),
		Field:  field,
		Limit:  limit,
	})
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]any{
		"count": len(recs),
		"loans": recordViews(recs),
	}).Write(w)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	row, err := parseRow(chi.URLParam(r, "row"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rec, err := s.ledger.Record(r.Context(), row)
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().JSON(recordView(rec)).Write(w)
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := ParseLoan(NewRequestBodyParser(r))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	created, err := s.ledger.CreateLoan(r.Context(), loan)
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogLoanCreated(r.Context(), created.RecordID, loan.Ward, loan.Amount, created.Ref)
	NewJSONResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleCloseLoan(w http.ResponseWriter, r *http.Request) {
	row, err := parseRow(chi.URLParam(r, "row"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.ledger.CloseLoan(r.Context(), row); err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]any{"row": row, "loanStatus": "Closed"}).Write(w)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	text := p.Get("text")
	if text == "" {
		BadRequestError("text is required").Write(w)
		return
	}

	loan, err := s.ledger.Extract(r.Context(), text)
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().JSON(loanView(loan)).Write(w)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		BadRequestError("q is required").Write(w)
		return
	}

	mode, err := search.ParseMode(q.Get("mode"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var field search.Field
	if v := q.Get("field"); v != "" {
		if field, err = search.ParseField(v); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
	}
	topK := search.DefaultTopK
	if v := q.Get("top_k"); v != "" {
		if topK, err = strconv.Atoi(v); err != nil || topK < 1 {
			BadRequestError("invalid top_k: must be a positive integer").Write(w)
			return
		}
	}

	hits, err := s.ledger.Search(r.Context(), services.SearchRequest{
		Query: query,
		Mode:  mode,
		Field: field,
		TopK:  topK,
	})
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Search served",
		log.FieldSearchMode, mode, log.FieldRecords, len(hits))
	NewJSONResponse().JSON(map[string]any{
		"mode":    mode,
		"count":   len(hits),
		"results": hitViews(hits),
	}).Write(w)
}
