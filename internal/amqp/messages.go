package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"costboard/internal/core"
)

// Snapshot kinds carried by SnapshotUpdatedMessage.
const (
	KindCost      = "cost"
	KindHeadcount = "headcount"
	KindRevenue   = "revenue"
)

var ErrInvalidMessage = errors.New("invalid snapshot message")

// SnapshotUpdatedMessage announces that the snapshot of a brand was
// refreshed. A zero Period means every period of the brand.
type SnapshotUpdatedMessage struct {
	Brand     string      `json:"brand"`
	Period    core.Period `json:"period,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewSnapshotUpdatedMessage(brand string, period core.Period, kind string) *SnapshotUpdatedMessage {
	return &SnapshotUpdatedMessage{
		Brand:     brand,
		Period:    period,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// Validate checks the brand is set, the period is a real month (or zero)
// and the kind is known. An empty kind means KindCost.
func (m *SnapshotUpdatedMessage) Validate() error {
	if strings.TrimSpace(m.Brand) == "" {
		return fmt.Errorf("%w: missing brand", ErrInvalidMessage)
	}
	if !m.Period.IsZero() {
		if err := m.Period.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	}
	switch m.Kind {
	case "", KindCost, KindHeadcount, KindRevenue:
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
}

// EffectiveKind returns Kind, defaulting to KindCost.
func (m *SnapshotUpdatedMessage) EffectiveKind() string {
	if m.Kind == "" {
		return KindCost
	}
	return m.Kind
}

func (m *SnapshotUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotUpdatedMessageFromJSON decodes and validates a message body.
func SnapshotUpdatedMessageFromJSON(data []byte) (*SnapshotUpdatedMessage, error) {
	var msg SnapshotUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
