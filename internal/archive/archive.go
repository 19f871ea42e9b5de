// Package archive keeps a history of explanation runs for later review.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sources of an archived run.
const (
	SourceAPI   = "api"
	SourceBatch = "batch"
	SourceCLI   = "cli"
)

// DefaultListLimit applies when a caller asks for zero entries.
const DefaultListLimit = 20

// MaxListLimit caps a single listing.
const MaxListLimit = 500

// Entry is one archived explanation.
type Entry struct {
	ID             string           `json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	Source         string           `json:"source"`
	PriorYear      int              `json:"prior_year"`
	CurrentYear    int              `json:"current_year"`
	PriorBalance   decimal.Decimal  `json:"prior_balance"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	TotalChange    decimal.Decimal  `json:"total_change"`
	Direction      domain.Direction `json:"total_change_direction"`
	DriverCount    int              `json:"driver_count"`
	Drivers        json.RawMessage  `json:"drivers"`
	Narrative      *string          `json:"ai_summary"`
}

// Recorder persists explanation runs.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	// Prune deletes entries created before cutoff and returns how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// NewEntry snapshots result with a fresh ID.
func NewEntry(result domain.RefundExplainerResult, source string) (*Entry, error) {
	drivers, err := json.Marshal(result.Drivers)
	if err != nil {
		return nil, fmt.Errorf("NewEntry: marshal drivers: %w", err)
	}
	return &Entry{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Source:         source,
		PriorYear:      result.PriorYear,
		CurrentYear:    result.CurrentYear,
		PriorBalance:   result.PriorBalance.Signed(),
		CurrentBalance: result.CurrentBalance.Signed(),
		TotalChange:    result.TotalChange,
		Direction:      result.Direction,
		DriverCount:    len(result.Drivers),
		Drivers:        drivers,
		Narrative:      result.Narrative,
	}, nil
}

// NormalizeLimit clamps a requested listing size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
