package snapshot

import (
	"context"
	"errors"
	"fmt"

	"costboard/internal/core"
)

// Ports for snapshot adapters.
type (
	// Source returns the raw bytes stored under a key. A missing key is
	// reported as ErrNotFound; anything else is an upstream failure.
	Source interface {
		Fetch(ctx context.Context, key string) ([]byte, error)
	}

	// Lister is implemented by sources that can enumerate their keys.
	Lister interface {
		Keys(ctx context.Context) ([]string, error)
	}
)

var ErrNotFound = errors.New("snapshot not found")

// FetchError reports a resource that exists upstream but could not be read.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Wrap classifies err for key: nil and ErrNotFound pass through, everything
// else becomes a *FetchError.
func Wrap(key string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Key: key, Err: err}
}

// CostKey names the monthly cost snapshot of a brand.
func CostKey(prefix string, p core.Period) string {
	return fmt.Sprintf("cost_%s_%s.csv", prefix, p)
}

// CostJSONKey is the JSON variant of CostKey.
func CostJSONKey(prefix string, p core.Period) string {
	return fmt.Sprintf("cost_%s_%s.json", prefix, p)
}

// HeadcountKey names the yearly headcount table.
func HeadcountKey(year int) string {
	return fmt.Sprintf("인원수_%d.csv", year)
}

// RevenueKey names the yearly revenue table.
func RevenueKey(year int) string {
	return fmt.Sprintf("실판매출_%d.csv", year)
}
