package auth

import (
	"time"

	"github.com/wandertrails/tourism-api/internal/types"
)

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the flat success shape for login. Either the token
// fields or the MFA fields are populated, never both.
type LoginResponse struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message,omitempty"`
	User         *types.UserProjection  `json:"user,omitempty"`
	AccessToken  string                 `json:"accessToken,omitempty"`
	RefreshToken string                 `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time             `json:"expiresAt,omitempty"`
	MFARequired  bool                   `json:"mfaRequired,omitempty"`
	MFASessionID string                 `json:"mfaSessionId,omitempty"`
	MFAMethods   []string               `json:"mfaMethods,omitempty"`
}

// RegisterResponse is the flat success shape for registration.
type RegisterResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	User    *types.UserProjection `json:"user"`
}

// RefreshTokenRequest represents the expected JSON body for refreshing tokens.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest represents the expected JSON body for changing the
// authenticated user's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ForgotPasswordRequest carries the account email for a reset request.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest redeems a reset token for a new password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// VerifyEmailRequest redeems an email verification token.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// LoginResult is the service-level outcome of a successful credential check.
type LoginResult struct {
	User         *types.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	MFARequired  bool
	MFASessionID string
	MFAMethods   []string
}

// TokenPair is the outcome of a refresh.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
