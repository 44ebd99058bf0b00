package otp

import (
	"context"
	"testing"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/config"
	apperrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

type memStore struct {
	counts map[string]int64
}

func newMemStore() *memStore {
	return &memStore{counts: map[string]int64{}}
}

func (s *memStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.counts[key]++
	return s.counts[key], nil
}

func (s *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.counts, k)
	}
	return nil
}

func (s *memStore) OTPGenerateKey(orderID string) string { return "gen:" + orderID }
func (s *memStore) OTPAttemptKey(orderID string) string  { return "att:" + orderID }

func testManager(t *testing.T) (*Manager, *memStore) {
	t.Helper()
	store := newMemStore()
	m, err := NewManager(store, config.OTPConfig{
		TTL:            30 * time.Minute,
		GenerateLimit:  3,
		GenerateWindow: time.Hour,
		VerifyLimit:    5,
		VerifyWindow:   15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, store
}

func TestGenerateProducesFourDigits(t *testing.T) {
	m, _ := testManager(t)
	code, err := m.Generate(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(code) != CodeLength {
		t.Fatalf("expected %d digits, got %q", CodeLength, code)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit in code %q", code)
		}
	}
}

func TestGenerateRateLimit(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := m.Generate(ctx, "order-1"); err != nil {
			t.Fatalf("Generate %d: %v", i, err)
		}
	}
	if _, err := m.Generate(ctx, "order-1"); !apperrors.IsCode(err, apperrors.CodeRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	// A different order has its own window.
	if _, err := m.Generate(ctx, "order-2"); err != nil {
		t.Fatalf("Generate for second order: %v", err)
	}
}

func TestVerifyAttemptLockout(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := m.ChargeVerifyAttempt(ctx, "order-1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := m.ChargeVerifyAttempt(ctx, "order-1"); !apperrors.IsCode(err, apperrors.CodeRateLimit) {
		t.Fatalf("expected lockout, got %v", err)
	}
}

func TestClearAttemptsResetsWindow(t *testing.T) {
	m, store := testManager(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := m.ChargeVerifyAttempt(ctx, "order-1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := m.ClearAttempts(ctx, "order-1"); err != nil {
		t.Fatalf("ClearAttempts: %v", err)
	}
	if store.counts["att:order-1"] != 0 {
		t.Fatalf("attempts not cleared: %d", store.counts["att:order-1"])
	}
	if err := m.ChargeVerifyAttempt(ctx, "order-1"); err != nil {
		t.Fatalf("attempt after clear: %v", err)
	}
}
