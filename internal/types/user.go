package types

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates the access levels a user account can hold.
type Role string

const (
	RoleTourist    Role = "TOURIST"
	RoleGuide      Role = "GUIDE"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleTourist, RoleGuide, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role carries administrative privileges.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Status enumerates the lifecycle states of a user account.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusBanned    Status = "BANNED"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusBanned:
		return true
	}
	return false
}

// Preferences holds per-user settings stored as JSONB alongside the account.
type Preferences struct {
	Language           string `json:"language"`
	EmailNotifications bool   `json:"email_notifications"`
	SMSNotifications   bool   `json:"sms_notifications"`
	ProfilePublic      bool   `json:"profile_public"`
	ShowEmail          bool   `json:"show_email"`
}

// DefaultPreferences returns the preferences applied to newly registered users.
func DefaultPreferences() Preferences {
	return Preferences{
		Language:           "en",
		EmailNotifications: true,
	}
}

// User represents the identity record backing authentication and
// authorization. PasswordHash and TOTPSecret are never serialized.
type User struct {
	ID                       uuid.UUID   `json:"id"`
	Email                    string      `json:"email"`
	PasswordHash             string      `json:"-"`
	FirstName                string      `json:"first_name"`
	LastName                 string      `json:"last_name"`
	Phone                    *string     `json:"phone,omitempty"`
	Role                     Role        `json:"role"`
	Status                   Status      `json:"status"`
	EmailVerified            bool        `json:"email_verified"`
	FailedLoginAttempts      int         `json:"-"`
	LockedUntil              *time.Time  `json:"-"`
	LastLogin                *time.Time  `json:"last_login,omitempty"`
	LoginCount               int         `json:"login_count"`
	EmailVerificationToken   *string     `json:"-"`
	EmailVerificationExpires *time.Time  `json:"-"`
	ResetPasswordToken       *string     `json:"-"`
	ResetPasswordExpires     *time.Time  `json:"-"`
	TwoFactorEnabled         bool        `json:"two_factor_enabled"`
	TOTPSecret               *string     `json:"-"`
	Preferences              Preferences `json:"preferences"`
	CreatedAt                time.Time   `json:"created_at"`
	UpdatedAt                time.Time   `json:"updated_at"`
}

// Identity is the minimal projection the auth middleware attaches to the
// request context for downstream handlers.
type Identity struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	Status        Status    `json:"status"`
	EmailVerified bool      `json:"email_verified"`
}

// UserProjection is the sanitized view of a user returned by the API.
type UserProjection struct {
	ID            uuid.UUID   `json:"id"`
	Email         string      `json:"email"`
	FirstName     string      `json:"first_name"`
	LastName      string      `json:"last_name"`
	Phone         *string     `json:"phone,omitempty"`
	Role          Role        `json:"role"`
	Status        Status      `json:"status"`
	EmailVerified bool        `json:"email_verified"`
	LastLogin     *time.Time  `json:"last_login,omitempty"`
	LoginCount    int         `json:"login_count"`
	Preferences   Preferences `json:"preferences"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Project returns the sanitized projection of u.
func (u *User) Project() UserProjection {
	return UserProjection{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		Role:          u.Role,
		Status:        u.Status,
		EmailVerified: u.EmailVerified,
		LastLogin:     u.LastLogin,
		LoginCount:    u.LoginCount,
		Preferences:   u.Preferences,
		CreatedAt:     u.CreatedAt,
	}
}

// UpdateProfileParams defines the fields allowed for profile updates.
// Pointers distinguish "not provided" from zero values for partial updates.
type UpdateProfileParams struct {
	FirstName   *string      `json:"first_name,omitempty"`
	LastName    *string      `json:"last_name,omitempty"`
	Phone       *string      `json:"phone,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// AdminUpdateParams defines the fields an administrator may change on
// another account.
type AdminUpdateParams struct {
	Role   *Role   `json:"role,omitempty"`
	Status *Status `json:"status,omitempty"`
}
