package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kuberx/internal/analytics"
	"kuberx/internal/export"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseOptions(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	d, err := s.ledger.Dashboard(r.Context(), opts)
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().JSON(d).Write(w)
}

func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseOptions(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rep, err := s.ledger.Interest(r.Context(), opts)
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().JSON(rep).Write(w)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	g, err := analytics.ParseGranularity(chi.URLParam(r, "granularity"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	buckets, err := s.ledger.Trend(r.Context(), g)
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]any{
		"granularity": g,
		"buckets":     buckets,
	}).Write(w)
}

func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	g, err := s.ledger.Growth(r.Context())
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().JSON(g).Write(w)
}

// handleExport renders the dashboard and interest report as a workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseOptions(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	d, err := s.ledger.Dashboard(r.Context(), opts)
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}
	rep, err := s.ledger.Interest(r.Context(), opts)
	if err != nil {
		ErrorFor(r.Context(), err).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, d, rep); err != nil {
		ErrorFor(r.Context(), fmt.Errorf("export workbook: %w", err)).Write(w)
		return
	}
	name := fmt.Sprintf("kuberx-%s.xlsx", d.GeneratedAt.Format("2006-01-02"))
	NewJSONResponse().
		Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name)).
		Raw(export.ContentType, buf.Bytes()).
		Write(w)
}
