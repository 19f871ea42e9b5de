package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/refund-explainer/internal/archive"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
)

type mockExplainer struct {
	ExplainFunc func(ctx context.Context, prior, current domain.TaxRecord) (domain.RefundExplainerResult, error)
}

func (m *mockExplainer) Explain(ctx context.Context, prior, current domain.TaxRecord) (domain.RefundExplainerResult, error) {
	return m.ExplainFunc(ctx, prior, current)
}

type mockRecorder struct {
	archive.NoopRecorder
	mu      sync.Mutex
	entries []*archive.Entry
	err     error
}

func (m *mockRecorder) Record(_ context.Context, e *archive.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

// yearExplainer reports the wage delta as the total change and fails for tax year 1999.
func yearExplainer() *mockExplainer {
	return &mockExplainer{
		ExplainFunc: func(ctx context.Context, prior, current domain.TaxRecord) (domain.RefundExplainerResult, error) {
			if prior.TaxYear == 1999 {
				return domain.RefundExplainerResult{}, &domain.CalculationError{Stage: "prior", Err: errors.New("unsupported")}
			}
			change := current.Wages.Sub(prior.Wages)
			return domain.RefundExplainerResult{
				PriorYear:   prior.TaxYear,
				CurrentYear: current.TaxYear,
				TotalChange: change,
				Direction:   domain.DirectionOf(change),
				Drivers:     []domain.RefundChangeDriver{},
			}, nil
		},
	}
}

func pair(label string, priorYear int, wages int64) ExplainPair {
	current := domain.DefaultRecord(priorYear + 1)
	current.Wages = decimal.NewFromInt(wages)
	return ExplainPair{Label: label, Prior: domain.DefaultRecord(priorYear), Current: current}
}

func TestBatchProcessor_Run_PreservesOrder(t *testing.T) {
	rec := &mockRecorder{}
	p := NewBatchProcessor(yearExplainer(), rec, 2)

	pairs := []ExplainPair{pair("a", 2023, 100), pair("b", 1999, 0), pair("c", 2023, 300)}
	results := p.Run(context.Background(), pairs, archive.SourceCLI)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"a", "b", "c"} {
		if results[i].Index != i || results[i].Label != want {
			t.Errorf("Result %d: expected label %s, got %+v", i, want, results[i])
		}
	}
	if results[1].Error == "" || results[1].Result != nil {
		t.Errorf("Expected pair b to fail, got %+v", results[1])
	}
	if results[2].Result == nil || !results[2].Result.TotalChange.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected pair c to change by 300, got %+v", results[2].Result)
	}
	if len(rec.entries) != 2 {
		t.Errorf("Expected 2 archived entries, got %d", len(rec.entries))
	}
	for _, e := range rec.entries {
		if e.Source != archive.SourceCLI {
			t.Errorf("Expected source %s, got %s", archive.SourceCLI, e.Source)
		}
	}
}

func TestBatchProcessor_Handle(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []ExplainPair
		wantErr bool
	}{
		{name: "empty batch", pairs: nil},
		{name: "partial failure succeeds", pairs: []ExplainPair{pair("ok", 2023, 1), pair("bad", 1999, 0)}},
		{name: "all pairs failing fails the job", pairs: []ExplainPair{pair("bad", 1999, 0)}, wantErr: true},
	}

	p := NewBatchProcessor(yearExplainer(), nil, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &BatchExplainJob{JobID: "j", Pairs: tt.pairs}
			err := p.Handle(context.Background(), job)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if len(job.Results) != len(tt.pairs) {
				t.Errorf("Expected %d results, got %d", len(tt.pairs), len(job.Results))
			}
		})
	}
}

func TestBatchProcessor_ArchiveFailureIsNotFatal(t *testing.T) {
	rec := &mockRecorder{err: errors.New("disk full")}
	p := NewBatchProcessor(yearExplainer(), rec, 1)

	results := p.Run(context.Background(), []ExplainPair{pair("a", 2023, 5)}, archive.SourceBatch)
	if results[0].Error != "" || results[0].Result == nil {
		t.Errorf("Expected success despite archive failure, got %+v", results[0])
	}
}

func TestBatchProcessor_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	p := NewBatchProcessor(yearExplainer(), nil, 1)
	results := p.Run(ctx, []ExplainPair{pair("a", 2023, 5)}, archive.SourceBatch)
	if results[0].Error == "" {
		t.Error("Expected canceled context to be reported")
	}
}

func TestJobStatus_Valid(t *testing.T) {
	if !JobStatusRetrying.Valid() {
		t.Error("Expected retrying to be valid")
	}
	if JobStatus("done").Valid() {
		t.Error("Expected unknown status to be invalid")
	}
}
