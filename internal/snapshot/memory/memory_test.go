package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"costboard/internal/snapshot"
)

func TestStorePutFetch(t *testing.T) {
	s := New()
	s.Put("cost_mlb_202501.csv", []byte("h\nrow"))

	body, err := s.Fetch(context.Background(), "cost_mlb_202501.csv")
	if err != nil || string(body) != "h\nrow" {
		t.Fatalf("unexpected fetch: %q %v", body, err)
	}
	body[0] = 'x'
	again, _ := s.Fetch(context.Background(), "cost_mlb_202501.csv")
	if string(again) != "h\nrow" {
		t.Fatalf("stored body must not alias returned slice")
	}

	s.Delete("cost_mlb_202501.csv")
	if _, err := s.Fetch(context.Background(), "cost_mlb_202501.csv"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "인원수_2025.csv"), []byte("월,MLB"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFromDir(dir)
	s.Put("extra.csv", nil)

	body, err := s.Fetch(context.Background(), "인원수_2025.csv")
	if err != nil || string(body) != "월,MLB" {
		t.Fatalf("unexpected fetch: %q %v", body, err)
	}
	if _, err := s.Fetch(context.Background(), "missing.csv"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Fetch(context.Background(), "../etc/passwd"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("path escape should be not found, got %v", err)
	}

	keys, err := s.Keys(context.Background())
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"extra.csv", "인원수_2025.csv"}) {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Fetch(ctx, "k")
	var fe *snapshot.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}
