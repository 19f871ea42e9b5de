package archive

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleResult() domain.RefundExplainerResult {
	summary := "Withholding rose."
	return domain.RefundExplainerResult{
		PriorYear:      2023,
		CurrentYear:    2024,
		PriorBalance:   domain.BalanceFromSigned(decimal.NewFromInt(-200)),
		CurrentBalance: domain.BalanceFromSigned(decimal.NewFromInt(800)),
		TotalChange:    decimal.NewFromInt(1000),
		Direction:      domain.IncreasedRefund,
		Drivers: []domain.RefundChangeDriver{
			{
				Field:        "w2_withholding",
				Label:        "W-2 withholding",
				Category:     domain.CategoryPayment,
				PriorValue:   domain.MoneyInt(9000),
				CurrentValue: domain.MoneyInt(10000),
				Impact:       decimal.NewFromInt(1000),
				Direction:    domain.IncreasedRefund,
			},
		},
		Narrative: &summary,
	}
}

func openSQLite(t *testing.T) *SQLiteRecorder {
	t.Helper()
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRecorder failed: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func TestNewEntry(t *testing.T) {
	e, err := NewEntry(sampleResult(), SourceAPI)
	if err != nil {
		t.Fatalf("NewEntry failed: %v", err)
	}
	if e.ID == "" {
		t.Error("Expected generated ID")
	}
	if !e.PriorBalance.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("Expected signed prior balance -200, got %s", e.PriorBalance)
	}
	if e.DriverCount != 1 {
		t.Errorf("Expected 1 driver, got %d", e.DriverCount)
	}

	var drivers []map[string]any
	if err := json.Unmarshal(e.Drivers, &drivers); err != nil || drivers[0]["field"] != "w2_withholding" {
		t.Errorf("Expected drivers JSON, got %s (%v)", e.Drivers, err)
	}
}

func TestSQLiteRecorder_RecordAndList(t *testing.T) {
	ctx := context.Background()
	rec := openSQLite(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e, _ := NewEntry(sampleResult(), SourceBatch)
		e.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if i == 2 {
			e.Narrative = nil
		}
		if err := rec.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := rec.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if !entries[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("Expected newest first, got %s", entries[0].CreatedAt)
	}
	if entries[0].Narrative != nil {
		t.Error("Expected nil narrative to round trip")
	}
	if entries[1].Narrative == nil || *entries[1].Narrative != "Withholding rose." {
		t.Errorf("Expected narrative, got %v", entries[1].Narrative)
	}
	if !entries[1].TotalChange.Equal(decimal.NewFromInt(1000)) || entries[1].Source != SourceBatch {
		t.Errorf("Unexpected entry %+v", entries[1])
	}
}

func TestSQLiteRecorder_Prune(t *testing.T) {
	ctx := context.Background()
	rec := openSQLite(t)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, age := range []time.Duration{48 * time.Hour, 12 * time.Hour, time.Hour} {
		e, _ := NewEntry(sampleResult(), SourceAPI)
		e.CreatedAt = now.Add(-age)
		if err := rec.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	p, err := NewPruner(rec, 24*time.Hour, "", zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("NewPruner failed: %v", err)
	}
	p.now = func() time.Time { return now }

	n, err := p.RunNow(ctx)
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned entry, got %d", n)
	}

	entries, _ := rec.ListRecent(ctx, 0)
	if len(entries) != 2 {
		t.Errorf("Expected 2 remaining entries, got %d", len(entries))
	}
}

func TestNewPruner_Validation(t *testing.T) {
	log := zerolog.New(io.Discard)
	if _, err := NewPruner(NewNoopRecorder(), 0, "", log); err == nil {
		t.Error("Expected error for zero retention")
	}
	if _, err := NewPruner(NewNoopRecorder(), time.Hour, "not a schedule", log); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestNormalizeLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{10, 10},
		{10000, MaxListLimit},
	}
	for _, tt := range tests {
		if got := NormalizeLimit(tt.in); got != tt.want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBigQueryRowConversion(t *testing.T) {
	e, _ := NewEntry(sampleResult(), SourceCLI)

	back, err := fromRow(*toRow(e))
	if err != nil {
		t.Fatalf("fromRow failed: %v", err)
	}
	if back.ID != e.ID || !back.CurrentBalance.Equal(e.CurrentBalance) {
		t.Errorf("Expected row conversion to preserve entry, got %+v", back)
	}
	if back.Narrative == nil || *back.Narrative != *e.Narrative {
		t.Error("Expected narrative to survive row conversion")
	}
	if string(back.Drivers) != string(e.Drivers) {
		t.Errorf("Expected drivers JSON to survive, got %s", back.Drivers)
	}
}
