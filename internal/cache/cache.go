package cache

import (
	"context"
	"time"

	"costboard/internal/log"
)

// Cache is a keyed store of parsed snapshots. Implementations are safe for
// concurrent use; a miss and a backend failure both report ok == false.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, data T)
	Delete(ctx context.Context, key string)
	// DeletePrefix removes every key starting with prefix and reports how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic cleanup over registered in-process caches.
type Manager struct {
	caches      []Cleaner
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager. Values that are not Cleaners are
// ignored, so any Cache can be passed.
func (m *Manager) Register(c any) {
	if cl, ok := c.(Cleaner); ok {
		m.caches = append(m.caches, cl)
	}
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, c := range m.caches {
				total += c.CleanExpired()
			}
			if total > 0 {
				m.logger.Debug("Expired cache entries removed", log.FieldEvicted, total)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine. It must follow StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
