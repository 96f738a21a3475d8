package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"costboard/internal/core"
	"costboard/internal/log"
	"costboard/internal/profile"
	"costboard/internal/services"
	"costboard/internal/storage"
)

type fakeDashboard struct {
	lastQuery   services.Query
	invalidated []string
	err         error
}

func (f *fakeDashboard) Brands() []profile.Brand {
	return []profile.Brand{{ID: "mlb", Name: "MLB"}, {ID: "discovery", Name: "Discovery"}}
}

func (f *fakeDashboard) Dashboard(_ context.Context, q services.Query) (*services.Dashboard, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	if q.BrandID != "mlb" {
		return nil, fmt.Errorf("%w: %q", profile.ErrUnknownBrand, q.BrandID)
	}
	return &services.Dashboard{
		Brand:     profile.Brand{ID: "mlb", Name: "MLB"},
		Month:     202510,
		Filter:    q.Filter,
		TotalCost: decimal.NewFromInt(1500),
	}, nil
}

func (f *fakeDashboard) Invalidate(_ context.Context, brandID string, p core.Period) (int, error) {
	if brandID != "mlb" {
		return 0, fmt.Errorf("%w: %q", profile.ErrUnknownBrand, brandID)
	}
	f.invalidated = append(f.invalidated, brandID+":"+p.String())
	if p.IsZero() {
		return 24, nil
	}
	return 1, nil
}

func newTestServer(t *testing.T) (*Server, *fakeDashboard, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "costboard.db"), log.Discard())
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	dash := &fakeDashboard{}
	srv := NewServer(":0", Deps{
		Dashboard:  dash,
		Insights:   repo,
		Events:     repo,
		Ready:      repo,
		Logger:     log.Discard(),
		WriteLimit: 3,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, dash, repo
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body)
		}
	}

	rr := do(srv, http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
	if !strings.Contains(do(srv, http.MethodGet, "/metrics", "").Body.String(), "http_requests_total") {
		t.Error("metrics body missing request counter")
	}
}

func TestBrands(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/brands", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var brands []profile.Brand
	if err := json.Unmarshal(rr.Body.Bytes(), &brands); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(brands) != 2 || brands[0].ID != "mlb" {
		t.Errorf("unexpected brands %+v", brands)
	}
}

func TestDashboard(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"valid query", "/api/dashboard?brand=mlb&month=202510&category=%EC%9D%B8%EA%B1%B4%EB%B9%84", http.StatusOK},
		{"missing brand", "/api/dashboard?month=202510", http.StatusBadRequest},
		{"bad month", "/api/dashboard?brand=mlb&month=202513", http.StatusBadRequest},
		{"unknown brand", "/api/dashboard?brand=nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t)
			rr := do(srv, http.MethodGet, tt.target, "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want=%d body=%s", rr.Code, tt.wantStatus, rr.Body)
			}
			if tt.wantStatus != http.StatusOK {
				var body errorBody
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" || body.RequestID == "" {
					t.Errorf("expected error body with request id, got %s", rr.Body)
				}
			}
		})
	}
}

func TestDashboardPassesFilter(t *testing.T) {
	srv, dash, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/dashboard?brand=mlb&month=2025-10&department=Sales&bound=202509", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	q := dash.lastQuery
	if q.Filter.Month != 202510 || q.Filter.Department != "Sales" || q.Bound != 202509 {
		t.Errorf("unexpected query %+v", q)
	}

	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["totalCost"] != "1500" {
		t.Errorf("totalCost = %v, want \"1500\"", got["totalCost"])
	}
}

func TestDashboardServiceFailureHidesCause(t *testing.T) {
	srv, dash, _ := newTestServer(t)
	dash.err = fmt.Errorf("redis: connection refused at 10.0.0.3")

	rr := do(srv, http.MethodGet, "/api/dashboard?brand=mlb", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.3") {
		t.Error("internal error details leaked to client")
	}
}

func TestInsightsRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(srv, http.MethodGet, "/api/insights", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "{}" {
		t.Fatalf("empty document: status=%d body=%s", rr.Code, rr.Body)
	}

	doc := `{"mlb_total":{"trend":"up","insight":"인건비 증가","analysis":"신규 채용","costItem":"인건비"}}`
	rr = do(srv, http.MethodPut, "/api/insights", doc)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT status=%d body=%s", rr.Code, rr.Body)
	}

	rr = do(srv, http.MethodPut, "/api/insights/mlb_ratio", `{"trend":"flat"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT key status=%d body=%s", rr.Code, rr.Body)
	}

	rr = do(srv, http.MethodGet, "/api/insights", "")
	var got core.Insights
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got["mlb_total"].Insight != "인건비 증가" || got["mlb_ratio"].Trend != "flat" {
		t.Errorf("unexpected document %+v", got)
	}
	if got["mlb_total"].UpdatedAt.IsZero() {
		t.Error("expected updatedAt to be set")
	}

	rr = do(srv, http.MethodGet, "/api/insights/mlb_ratio", "")
	var one core.Insight
	if err := json.Unmarshal(rr.Body.Bytes(), &one); err != nil || one.Trend != "flat" {
		t.Errorf("GET key status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := do(srv, http.MethodGet, "/api/insights/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing key status=%d", rr.Code)
	}
}

func TestInsightsRejectsBadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"trailing data", `{} {}`},
		{"blank key", `{" ":{"trend":"up"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodPost, "/api/insights", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status=%d body=%s", rr.Code, rr.Body)
			}
		})
	}
}

func TestInsightWritesAreRateLimited(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var last int
	for i := 0; i < 4; i++ {
		last = do(srv, http.MethodPut, "/api/insights", `{}`).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", last)
	}
	if do(srv, http.MethodGet, "/api/insights", "").Code != http.StatusOK {
		t.Fatal("reads must not be limited")
	}
}

func TestInvalidateAndEvents(t *testing.T) {
	srv, dash, repo := newTestServer(t)

	rr := do(srv, http.MethodPost, "/api/snapshots/invalidate", `{"brand":"mlb","period":202510}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"evicted":1`) {
		t.Fatalf("invalidate: status=%d body=%s", rr.Code, rr.Body)
	}
	if len(dash.invalidated) != 1 || dash.invalidated[0] != "mlb:202510" {
		t.Errorf("unexpected invalidations %v", dash.invalidated)
	}

	for _, tt := range []struct {
		body string
		want int
	}{
		{`{"period":202510}`, http.StatusBadRequest},
		{`{"brand":"mlb","period":202513}`, http.StatusBadRequest},
	} {
		if rr := do(srv, http.MethodPost, "/api/snapshots/invalidate", tt.body); rr.Code != tt.want {
			t.Errorf("%s: status=%d want=%d", tt.body, rr.Code, tt.want)
		}
	}

	ctx := context.Background()
	for i, brand := range []string{"mlb", "discovery"} {
		ev := storage.SnapshotEvent{Brand: brand, Period: 202510, Kind: "cost", Evicted: i, ReceivedAt: time.Date(2025, 10, 1, 9, i, 0, 0, time.UTC)}
		if _, err := repo.RecordSnapshotEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	rr = do(srv, http.MethodGet, "/api/snapshots/events?limit=1", "")
	var events []storage.SnapshotEvent
	if err := json.Unmarshal(rr.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v body=%s", err, rr.Body)
	}
	if len(events) != 1 || events[0].Brand != "discovery" {
		t.Errorf("expected newest event first, got %+v", events)
	}

	rr = do(srv, http.MethodGet, "/api/snapshots/events?brand=MLB&period=202510", "")
	events = nil
	if err := json.Unmarshal(rr.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v body=%s", err, rr.Body)
	}
	if len(events) != 1 || events[0].Brand != "mlb" {
		t.Errorf("expected only the mlb event, got %+v", events)
	}

	rr = do(srv, http.MethodGet, "/api/snapshots/events?period=202401", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("no match: status=%d body=%s", rr.Code, rr.Body)
	}

	for _, q := range []string{"limit=0", "period=202513", "period=abc"} {
		if rr := do(srv, http.MethodGet, "/api/snapshots/events?"+q, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s status=%d", q, rr.Code)
		}
	}
}

func TestInvalidateNormalisesBrand(t *testing.T) {
	srv, dash, _ := newTestServer(t)

	rr := do(srv, http.MethodPost, "/api/snapshots/invalidate", `{"brand":" MLB "}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"evicted":24`) {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if len(dash.invalidated) != 1 || dash.invalidated[0] != "mlb:000000" {
		t.Errorf("unexpected invalidations %v", dash.invalidated)
	}

	if rr := do(srv, http.MethodPost, "/api/snapshots/invalidate", `{"brand":"  "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank brand status=%d", rr.Code)
	}
}

func TestOptionalStores(t *testing.T) {
	srv := NewServer(":0", Deps{Dashboard: &fakeDashboard{}})
	defer srv.Shutdown(context.Background())

	for _, path := range []string{"/api/insights", "/api/snapshots/events"} {
		if rr := do(srv, http.MethodGet, path, ""); rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status=%d", path, rr.Code)
		}
	}
	if rr := do(srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Errorf("readyz without store status=%d", rr.Code)
	}
}

func TestTrustedProxies(t *testing.T) {
	srv := NewServer(":0", Deps{
		Dashboard:      &fakeDashboard{},
		TrustedProxies: []string{"192.0.2.0/24", "not-a-cidr"},
	})
	defer srv.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if ip := srv.securityDetector.ExtractClientIP(req); ip != "203.0.113.7" {
		t.Errorf("expected forwarded client IP, got %s", ip)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if rr := do(srv, http.MethodDelete, "/api/brands", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status=%d", rr.Code)
	}
}
