package mfa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wandertrails/tourism-api/app/observability/metrics"
	"github.com/wandertrails/tourism-api/config"
	"github.com/wandertrails/tourism-api/internal/types"
)

const (
	backupCodeCount  = 10
	backupCodeLength = 8
	// backupCodeAlphabet avoids ambiguous characters (0/O, 1/I/L).
	backupCodeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"
)

// UserSource is the slice of the user store the challenge manager needs.
// The auth package's UserStore satisfies it.
type UserSource interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error)
	ConsumeBackupCode(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error)
	ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codeHashes []string) error
}

// Manager runs the per-login second-factor state machine: pending ->
// code-sent (sms/email only); verification and terminal failure both
// destroy the challenge rather than storing an end state.
type Manager struct {
	store   ChallengeStore
	users   UserSource
	sender  CodeSender
	metrics *metrics.AppMetrics
	logger  *slog.Logger
	cfg     config.MFAConfig
}

// NewManager wires the challenge manager over a pluggable challenge store.
func NewManager(
	store ChallengeStore,
	users UserSource,
	sender CodeSender,
	m *metrics.AppMetrics,
	cfg config.MFAConfig,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		store:   store,
		users:   users,
		sender:  sender,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}
}

// Begin opens a challenge for a user whose password already verified and
// returns the opaque session id plus the channels available to them.
func (m *Manager) Begin(ctx context.Context, user *types.User) (string, []string, error) {
	methods := []string{string(ChannelEmail)}
	if user.Phone != nil && *user.Phone != "" {
		methods = append(methods, string(ChannelSMS))
	}
	if user.TOTPSecret != nil && *user.TOTPSecret != "" {
		methods = append(methods, string(ChannelTOTP), string(ChannelBackupCode))
	}

	sessionID := uuid.NewString()
	challenge := &Challenge{
		UserID:    user.ID,
		Methods:   methods,
		State:     StatePending,
		CreatedAt: time.Now(),
	}
	if err := m.store.Save(ctx, sessionID, challenge, m.cfg.ChallengeTTL); err != nil {
		return "", nil, fmt.Errorf("begin mfa challenge: %w", err)
	}
	return sessionID, methods, nil
}

// SendCode generates a numeric one-time code and dispatches it on an
// sms/email channel. Resends are rate-limited by the configured cooldown.
func (m *Manager) SendCode(ctx context.Context, sessionID string, channel Channel) error {
	if channel != ChannelSMS && channel != ChannelEmail {
		return fmt.Errorf("send code: %w", ErrChannelUnavailable)
	}

	challenge, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	if challenge.State != StatePending && challenge.State != StateCodeSent {
		return fmt.Errorf("send code: %w", ErrChallengeNotFound)
	}
	if !challenge.HasMethod(channel) {
		return fmt.Errorf("send code: %w", ErrChannelUnavailable)
	}

	now := time.Now()
	if !challenge.LastSentAt.IsZero() && now.Sub(challenge.LastSentAt) < m.cfg.ResendCooldown {
		return fmt.Errorf("send code: %w", ErrResendCooldown)
	}

	user, err := m.users.GetUserByID(ctx, challenge.UserID)
	if err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	code, err := numericCode(6)
	if err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	// Dispatch before persisting the cooldown: a failed delivery must not
	// consume the resend window.
	switch channel {
	case ChannelSMS:
		if user.Phone == nil {
			return fmt.Errorf("send code: %w", ErrChannelUnavailable)
		}
		err = m.sender.SendSMS(ctx, *user.Phone, code)
	case ChannelEmail:
		err = m.sender.SendEmail(ctx, user.Email, code)
	}
	if err != nil {
		return fmt.Errorf("send code: dispatch failed: %w", err)
	}

	hash := sha256.Sum256([]byte(code))
	challenge.CodeHash = hash[:]
	challenge.CodeExpiresAt = now.Add(m.cfg.CodeTTL)
	challenge.LastSentAt = now
	challenge.State = StateCodeSent
	if err := m.store.Save(ctx, sessionID, challenge, m.cfg.ChallengeTTL); err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	m.metrics.CountMFACodeSent(ctx, string(channel))
	return nil
}

// Verify redeems a challenge against the channel-appropriate secret. On
// success the challenge is destroyed and the verified user id returned; the
// caller then issues the normal token pair. A mismatch counts against the
// attempt budget; exhausting it fails the challenge terminally.
func (m *Manager) Verify(ctx context.Context, sessionID string, req VerifyRequest) (uuid.UUID, error) {
	challenge, err := m.store.Get(ctx, sessionID)
	if err != nil {
		m.metrics.CountMFAVerification(ctx, "not_found")
		return uuid.Nil, fmt.Errorf("verify mfa: %w", err)
	}

	var matched bool
	switch {
	case req.BackupCode != "":
		matched, err = m.verifyBackupCode(ctx, challenge, req.BackupCode)
	case req.Token != "":
		matched, err = m.verifyToken(ctx, challenge, req.Token)
	default:
		return uuid.Nil, fmt.Errorf("verify mfa: %w", ErrCodeMismatch)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("verify mfa: %w", err)
	}

	if !matched {
		challenge.Attempts++
		if challenge.Attempts >= m.cfg.MaxAttempts {
			// Terminal failure: the pending login must restart from
			// password authentication.
			if delErr := m.store.Delete(ctx, sessionID); delErr != nil {
				m.logger.WarnContext(ctx, "Failed to delete exhausted MFA challenge", slog.Any("error", delErr))
			}
			m.metrics.CountMFAVerification(ctx, "exhausted")
			return uuid.Nil, fmt.Errorf("verify mfa: %w", ErrChallengeFailed)
		}
		if saveErr := m.store.Save(ctx, sessionID, challenge, m.cfg.ChallengeTTL); saveErr != nil {
			m.logger.WarnContext(ctx, "Failed to persist MFA attempt counter", slog.Any("error", saveErr))
		}
		m.metrics.CountMFAVerification(ctx, "mismatch")
		return uuid.Nil, fmt.Errorf("verify mfa: %w", ErrCodeMismatch)
	}

	// Verified is terminal: destroy the session so it cannot be replayed.
	if err := m.store.Delete(ctx, sessionID); err != nil {
		m.logger.WarnContext(ctx, "Failed to delete verified MFA challenge", slog.Any("error", err))
	}
	m.metrics.CountMFAVerification(ctx, "success")
	return challenge.UserID, nil
}

func (m *Manager) verifyToken(ctx context.Context, challenge *Challenge, token string) (bool, error) {
	// A code previously sent over sms/email takes precedence; otherwise the
	// token is treated as a TOTP code.
	if challenge.State == StateCodeSent && len(challenge.CodeHash) > 0 {
		if time.Now().After(challenge.CodeExpiresAt) {
			return false, nil
		}
		hash := sha256.Sum256([]byte(strings.TrimSpace(token)))
		return subtle.ConstantTimeCompare(hash[:], challenge.CodeHash) == 1, nil
	}

	if !challenge.HasMethod(ChannelTOTP) {
		return false, ErrChannelUnavailable
	}
	user, err := m.users.GetUserByID(ctx, challenge.UserID)
	if err != nil {
		return false, err
	}
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return false, ErrChannelUnavailable
	}
	return VerifyTOTP(*user.TOTPSecret, token, time.Now())
}

func (m *Manager) verifyBackupCode(ctx context.Context, challenge *Challenge, code string) (bool, error) {
	if !challenge.HasMethod(ChannelBackupCode) {
		return false, ErrChannelUnavailable
	}
	// Consumption is a conditional update in the store, so a code can be
	// redeemed exactly once even under concurrent attempts.
	return m.users.ConsumeBackupCode(ctx, challenge.UserID, HashBackupCode(code))
}

// GenerateBackupCodes replaces the user's recovery codes with a fresh set
// and returns the plaintext codes exactly once.
func (m *Manager) GenerateBackupCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	codes := make([]string, 0, backupCodeCount)
	hashes := make([]string, 0, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		code, err := randomBackupCode()
		if err != nil {
			return nil, fmt.Errorf("generate backup codes: %w", err)
		}
		codes = append(codes, code)
		hashes = append(hashes, HashBackupCode(code))
	}

	if err := m.users.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}
	return codes, nil
}

// HashBackupCode normalizes and hashes a recovery code for storage and
// lookup.
func HashBackupCode(code string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}

func randomBackupCode() (string, error) {
	buf := make([]byte, backupCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	for i, c := range buf {
		if i == backupCodeLength/2 {
			b.WriteByte('-')
		}
		b.WriteByte(backupCodeAlphabet[int(c)%len(backupCodeAlphabet)])
	}
	return b.String(), nil
}

func numericCode(digits int) (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint64(buf[:])
	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, n%mod), nil
}

// IsTerminalError reports whether the verification error ended the
// challenge (exhausted attempts), as opposed to a retryable mismatch.
func IsTerminalError(err error) bool {
	return errors.Is(err, ErrChallengeFailed)
}
