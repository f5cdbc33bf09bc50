package auth

import (
	"time"

	"github.com/wandertrails/tourism-api/config"
	"github.com/wandertrails/tourism-api/internal/types"
)

// AccountGuard tracks consecutive failed logins on the user record and
// enforces a temporary lockout. It is pure computation over the record; the
// caller persists the mutated user via the store. A read-modify-write race
// yielding a slightly stale counter is acceptable: this is a throttle, not
// a ledger.
type AccountGuard struct {
	maxFailures int
	lockout     time.Duration
}

// NewAccountGuard builds a guard from auth policy configuration.
func NewAccountGuard(cfg config.AuthConfig) *AccountGuard {
	return &AccountGuard{
		maxFailures: cfg.MaxFailedLogins,
		lockout:     cfg.LockoutDuration,
	}
}

// IsLocked reports whether the account is under an active lockout. This
// check must run before any password verification is attempted.
func (g *AccountGuard) IsLocked(u *types.User, now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RecordFailure increments the failure counter and, on reaching the
// threshold, sets a lockout expiry in the future. It reports whether this
// failure triggered the lockout.
func (g *AccountGuard) RecordFailure(u *types.User, now time.Time) bool {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= g.maxFailures {
		until := now.Add(g.lockout)
		u.LockedUntil = &until
		return true
	}
	return false
}

// RecordSuccess resets the failure counter, clears any lockout, and updates
// the login bookkeeping fields.
func (g *AccountGuard) RecordSuccess(u *types.User, now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLogin = &now
	u.LoginCount++
}
