package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/config"
	apperrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

// CodeLength is the number of digits in a delivery code.
const CodeLength = 4

// Store is the redis surface the manager needs: windowed counters for
// limits and deletes for resetting attempts after a successful verify.
type Store interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Del(ctx context.Context, keys ...string) error
	OTPGenerateKey(orderID string) string
	OTPAttemptKey(orderID string) string
}

// Manager issues numeric delivery codes and enforces per-order limits on
// generation and verification attempts. Limits live in redis with TTLs, so
// lockouts survive restarts and apply across instances.
type Manager struct {
	store Store
	cfg   config.OTPConfig
}

// NewManager wires a Manager.
func NewManager(store Store, cfg config.OTPConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("otp manager requires a store")
	}
	return &Manager{store: store, cfg: cfg}, nil
}

// TTL is how long a generated code stays valid.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Generate returns a fresh numeric code after charging the per-order
// generation window. Leading zeros are preserved.
func (m *Manager) Generate(ctx context.Context, orderID string) (string, error) {
	count, err := m.store.IncrWithTTL(ctx, m.store.OTPGenerateKey(orderID), m.cfg.GenerateWindow)
	if err != nil {
		return "", fmt.Errorf("charging otp generation window: %w", err)
	}
	if count > m.cfg.GenerateLimit {
		return "", apperrors.New(apperrors.CodeRateLimit, "too many delivery codes requested, try again later")
	}
	return randomDigits(CodeLength)
}

// ChargeVerifyAttempt records one verification attempt and errors once the
// window limit is exhausted. Callers charge before comparing codes so
// failed guesses and storage races both count.
func (m *Manager) ChargeVerifyAttempt(ctx context.Context, orderID string) error {
	count, err := m.store.IncrWithTTL(ctx, m.store.OTPAttemptKey(orderID), m.cfg.VerifyWindow)
	if err != nil {
		return fmt.Errorf("charging otp verify window: %w", err)
	}
	if count > m.cfg.VerifyLimit {
		return apperrors.New(apperrors.CodeRateLimit, "too many verification attempts, try again later")
	}
	return nil
}

// ClearAttempts resets the verify counter after a successful delivery.
func (m *Manager) ClearAttempts(ctx context.Context, orderID string) error {
	return m.store.Del(ctx, m.store.OTPAttemptKey(orderID))
}

func randomDigits(n int) (string, error) {
	max := big.NewInt(10)
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating otp digit: %w", err)
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}
