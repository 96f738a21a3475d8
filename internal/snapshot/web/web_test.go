package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"costboard/internal/snapshot"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/cost_mlb_202501.csv":
			_, _ = w.Write([]byte("header\nrow"))
		case "/data/인원수_2025.csv":
			_, _ = w.Write([]byte("월,MLB"))
		case "/data/broken.csv":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/data")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.WithHTTPClient(srv.Client())
	ctx := context.Background()

	body, err := c.Fetch(ctx, "cost_mlb_202501.csv")
	if err != nil || string(body) != "header\nrow" {
		t.Fatalf("unexpected fetch: %q %v", body, err)
	}
	body, err = c.Fetch(ctx, "인원수_2025.csv")
	if err != nil || string(body) != "월,MLB" {
		t.Fatalf("unexpected fetch of korean key: %q %v", body, err)
	}
	if _, err := c.Fetch(ctx, "cost_mlb_209901.csv"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = c.Fetch(ctx, "broken.csv")
	var fe *snapshot.FetchError
	if !errors.As(err, &fe) || fe.Key != "broken.csv" {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	for _, in := range []string{"", "ftp://host/data", "::bad"} {
		if _, err := New(in); err == nil {
			t.Fatalf("%q should be rejected", in)
		}
	}
}
