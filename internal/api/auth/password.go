package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// PasswordHasher wraps bcrypt with a bounded semaphore so that the
// intentionally slow hash computation cannot starve concurrent request
// handling.
type PasswordHasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewPasswordHasher returns a hasher at the given bcrypt cost. Costs below
// 12 are raised to 12.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < 12 {
		cost = 12
	}
	return &PasswordHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
}

// Hash derives a salted bcrypt hash of password. It blocks while the
// semaphore is saturated and honors ctx cancellation while waiting.
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Check reports whether password matches hashedValue. Malformed hashes and
// mismatches both yield false; Check never returns an error to the caller.
func (h *PasswordHasher) Check(password, hashedValue string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedValue), []byte(password)) == nil
}
