package mfa

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ChallengeState tracks a pending login's second-factor progress. There are
// no stored terminal states: a verified or failed challenge is deleted.
type ChallengeState string

const (
	StatePending  ChallengeState = "pending"
	StateCodeSent ChallengeState = "code-sent"
)

// Channel identifies a verification method.
type Channel string

const (
	ChannelTOTP       Channel = "totp"
	ChannelSMS        Channel = "sms"
	ChannelEmail      Channel = "email"
	ChannelBackupCode Channel = "backup-code"
)

// Challenge is the ephemeral record behind one mfaSessionId. It is scoped
// to a single user and a single pending login and is destroyed once
// verified, failed, or expired.
type Challenge struct {
	UserID        uuid.UUID      `json:"user_id"`
	Methods       []string       `json:"methods"`
	State         ChallengeState `json:"state"`
	CodeHash      []byte         `json:"code_hash,omitempty"`
	CodeExpiresAt time.Time      `json:"code_expires_at,omitempty"`
	LastSentAt    time.Time      `json:"last_sent_at,omitempty"`
	Attempts      int            `json:"attempts"`
	CreatedAt     time.Time      `json:"created_at"`
}

// HasMethod reports whether the challenge allows the given channel.
func (c *Challenge) HasMethod(channel Channel) bool {
	for _, m := range c.Methods {
		if m == string(channel) {
			return true
		}
	}
	return false
}

var (
	ErrChallengeNotFound  = errors.New("mfa challenge not found or expired")
	ErrChallengeFailed    = errors.New("mfa challenge failed")
	ErrCodeMismatch       = errors.New("verification code mismatch")
	ErrResendCooldown     = errors.New("resend cooldown active")
	ErrChannelUnavailable = errors.New("verification channel unavailable")
	ErrStoreUnavailable   = errors.New("mfa challenge store unavailable")
)

// SendCodeRequest asks for a one-time code on an sms/email channel.
type SendCodeRequest struct {
	MFASessionID string `json:"mfaSessionId"`
	Channel      string `json:"channel"`
}

// VerifyRequest redeems a challenge with either a channel code/TOTP token
// or a single-use backup code.
type VerifyRequest struct {
	MFASessionID string `json:"mfaSessionId"`
	Token        string `json:"token,omitempty"`
	BackupCode   string `json:"backupCode,omitempty"`
}
