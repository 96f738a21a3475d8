package core

import "time"

// Insight is the free-text annotation attached to one dashboard box.
type Insight struct {
	Trend     string    `json:"trend,omitempty"`
	Insight   string    `json:"insight,omitempty"`
	Analysis  string    `json:"analysis,omitempty"`
	CostItem  string    `json:"costItem,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Insights is the whole annotation document, keyed by box.
type Insights map[string]Insight
