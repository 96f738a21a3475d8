package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"costboard/internal/core"
	"costboard/internal/log"
	"costboard/internal/storage"
)

const (
	maxBodyBytes  = 1 << 20
	defaultEvents = 50
	maxEvents     = 500
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks the annotation store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"brands": len(s.dashboard.Brands()),
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
		},
	}
	if s.ready == nil {
		checks["store"] = "not_configured"
	} else if err := s.ready.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	writeJSON(r.Context(), w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.WriteHeader(http.StatusOK)
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_requests_failed_total", "counter", "HTTP requests answered with 5xx", traceMetrics.FailedRequests)
	metric("http_last_response_ms", "gauge", "Duration of the last request", traceMetrics.LastResponseMs)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleBrands(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.dashboard.Brands())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := ParseDashboardQuery(s.validate, r.URL.Query())
	if err != nil {
		s.writeServiceError(ctx, w, "Invalid dashboard query", log.OpValidate, err)
		return
	}

	d, err := s.dashboard.Dashboard(ctx, q)
	if err != nil {
		s.writeServiceError(ctx, w, "Dashboard failed", log.OpLoad, err)
		return
	}
	if len(d.Failures) > 0 {
		s.logger.WarnContext(ctx, "Dashboard served with missing snapshots",
			log.FieldBrand, q.BrandID, log.FieldFailures, len(d.Failures))
	}
	writeJSON(ctx, w, http.StatusOK, d)
}

func (s *Server) handleGetInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.insights == nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "annotation store not configured")
		return
	}
	doc, err := s.insights.GetInsights(ctx)
	if err != nil {
		s.writeServiceError(ctx, w, "Failed to read insights", log.OpRead, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, doc)
}

func (s *Server) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.insights == nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "annotation store not configured")
		return
	}
	in, err := s.insights.GetInsight(ctx, sanitizeInput(r.PathValue("key")))
	if err != nil {
		s.writeServiceError(ctx, w, "Failed to read insight", log.OpRead, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, in)
}

// handleReplaceInsights stores the whole document sent by the dashboard.
func (s *Server) handleReplaceInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.insights == nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "annotation store not configured")
		return
	}

	var doc core.Insights
	if err := decodeBody(w, r, &doc); err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if doc == nil {
		doc = core.Insights{}
	}
	if err := s.insights.ReplaceInsights(ctx, doc); err != nil {
		s.writeServiceError(ctx, w, "Failed to save insights", log.OpUpdate, err)
		return
	}

	s.logger.InfoContext(ctx, "Insights saved", log.FieldOperation, log.OpUpdate, log.FieldRecords, len(doc))
	writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "count": len(doc)})
}

func (s *Server) handleUpsertInsight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.insights == nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "annotation store not configured")
		return
	}

	key := sanitizeInput(r.PathValue("key"))
	var in core.Insight
	if err := decodeBody(w, r, &in); err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.insights.UpsertInsight(ctx, key, in); err != nil {
		s.writeServiceError(ctx, w, "Failed to save insight", log.OpUpdate, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "key": key})
}

func (s *Server) handleSnapshotEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.events == nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "event store not configured")
		return
	}

	query := r.URL.Query()
	limit := defaultEvents
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEvents {
			writeError(ctx, w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxEvents))
			return
		}
		limit = n
	}
	period, err := ParsePeriodParam(query.Get("period"))
	if err != nil {
		s.writeServiceError(ctx, w, "Invalid events query", log.OpValidate, err)
		return
	}
	brand := strings.ToLower(sanitizeInput(query.Get("brand")))

	events, err := s.events.RecentSnapshotEvents(ctx, limit)
	if err != nil {
		s.writeServiceError(ctx, w, "Failed to list snapshot events", log.OpRead, err)
		return
	}
	// Filters apply to the most recent limit events.
	events = lo.Filter(events, func(ev storage.SnapshotEvent, _ int) bool {
		return (brand == "" || strings.EqualFold(ev.Brand, brand)) &&
			(period.IsZero() || ev.Period == period)
	})
	writeJSON(ctx, w, http.StatusOK, events)
}

// invalidateRequest drops one brand's cached snapshots; a zero period
// drops every cached month.
type invalidateRequest struct {
	Brand  string      `json:"brand" validate:"required,max=64"`
	Period core.Period `json:"period"`
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req invalidateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	req.Brand = strings.ToLower(sanitizeInput(req.Brand))
	if err := s.validate.Struct(req); err != nil {
		s.writeServiceError(ctx, w, "Invalid invalidate request", log.OpValidate, fmt.Errorf("%w: %v", ErrInvalidQuery, err))
		return
	}
	if !req.Period.IsZero() {
		if err := req.Period.Validate(); err != nil {
			s.writeServiceError(ctx, w, "Invalid invalidate request", log.OpValidate, err)
			return
		}
	}

	n, err := s.dashboard.Invalidate(ctx, req.Brand, req.Period)
	if err != nil {
		s.writeServiceError(ctx, w, "Cache invalidation failed", log.OpInvalidate, err)
		return
	}
	s.logger.InfoContext(ctx, "Snapshot cache invalidated",
		log.FieldOperation, log.OpInvalidate, log.FieldBrand, req.Brand,
		log.FieldPeriod, req.Period.String(), log.FieldEvicted, n)
	writeJSON(ctx, w, http.StatusOK, map[string]any{"evicted": n})
}

// decodeBody reads one JSON value of at most maxBodyBytes into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}
