package taxcalc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/refund-explainer/internal/cache"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/shopspring/decimal"
)

// mockStore is a cache.Store whose reads and writes can be made to fail
type mockStore struct {
	GetFunc func(ctx context.Context, key string) (string, bool, error)
	SetFunc func(ctx context.Context, key, value string, ttl time.Duration) error
}

func (m *mockStore) Get(ctx context.Context, key string) (string, bool, error) {
	return m.GetFunc(ctx, key)
}

func (m *mockStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return m.SetFunc(ctx, key, value, ttl)
}

func countingCalculator(calls *int) Calculator {
	return CalculatorFunc(func(ctx context.Context, r domain.TaxRecord) (domain.BalanceResult, error) {
		*calls++
		return domain.BalanceFromSigned(r.W2Withholding), nil
	})
}

func TestCached_HitsStoreOnSecondCall(t *testing.T) {
	calls := 0
	store := cache.NewMemoryStore()
	calc := NewCached(countingCalculator(&calls), store, time.Minute)

	r := domain.DefaultRecord(2024)
	r.W2Withholding = decimal.NewFromInt(1200)

	for i := 0; i < 3; i++ {
		got, err := calc.Calculate(context.Background(), r)
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}
		if !got.Amount.Equal(decimal.NewFromInt(1200)) || got.Kind != domain.BalanceRefund {
			t.Errorf("Expected refund 1200, got %+v", got)
		}
	}

	if calls != 1 {
		t.Errorf("Expected 1 underlying call, got %d", calls)
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 cache entry, got %d", store.Len())
	}
}

func TestCached_DistinctRecordsMiss(t *testing.T) {
	calls := 0
	calc := NewCached(countingCalculator(&calls), cache.NewMemoryStore(), 0)

	a := domain.DefaultRecord(2024)
	b := domain.DefaultRecord(2024)
	zero := decimal.Zero
	b.TotalDeductions = &zero

	if _, err := calc.Calculate(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if _, err := calc.Calculate(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	if calls != 2 {
		t.Errorf("Expected null and zero deductions to be cached separately, got %d calls", calls)
	}
}

func TestCached_StoreFailuresFallThrough(t *testing.T) {
	calls := 0
	store := &mockStore{
		GetFunc: func(ctx context.Context, key string) (string, bool, error) {
			return "", false, errors.New("connection refused")
		},
		SetFunc: func(ctx context.Context, key, value string, ttl time.Duration) error {
			return errors.New("connection refused")
		},
	}
	calc := NewCached(countingCalculator(&calls), store, time.Minute)

	if _, err := calc.Calculate(context.Background(), domain.DefaultRecord(2024)); err != nil {
		t.Fatalf("Expected cache failures to be ignored, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 underlying call, got %d", calls)
	}
}

func TestCached_PropagatesCalculatorError(t *testing.T) {
	boom := errors.New("upstream down")
	next := CalculatorFunc(func(ctx context.Context, r domain.TaxRecord) (domain.BalanceResult, error) {
		return domain.BalanceResult{}, boom
	})
	store := cache.NewMemoryStore()
	calc := NewCached(next, store, time.Minute)

	if _, err := calc.Calculate(context.Background(), domain.DefaultRecord(2024)); !errors.Is(err, boom) {
		t.Errorf("Expected upstream error, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("Expected failed calculations not to be cached")
	}
}

func TestCacheKey(t *testing.T) {
	a, err := CacheKey(domain.DefaultRecord(2024))
	if err != nil {
		t.Fatalf("CacheKey failed: %v", err)
	}
	b, _ := CacheKey(domain.DefaultRecord(2025))

	if !strings.HasPrefix(a, "refund:calc:") {
		t.Errorf("Expected prefixed key, got %s", a)
	}
	if a == b {
		t.Error("Expected keys for different tax years to differ")
	}
}
