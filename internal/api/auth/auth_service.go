package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wandertrails/tourism-api/app/observability/metrics"
	"github.com/wandertrails/tourism-api/config"
	"github.com/wandertrails/tourism-api/internal/types"
)

// dummyHash is compared against when the account does not exist, so that
// lookups and password failures take comparable time.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// ChallengeStarter creates a pending MFA challenge for a user whose
// password already verified. Implemented by the mfa package.
type ChallengeStarter interface {
	Begin(ctx context.Context, user *types.User) (sessionID string, methods []string, err error)
}

// Mailer dispatches account emails through an external channel. The in-repo
// implementation only logs; real delivery is a collaborator.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// LogMailer is the default Mailer: it records the dispatch without sending
// anything. Token values are never written to the log.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, email, _ string) error {
	m.Logger.InfoContext(ctx, "Verification email dispatched", slog.String("email", email))
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, email, _ string) error {
	m.Logger.InfoContext(ctx, "Password reset email dispatched", slog.String("email", email))
	return nil
}

var _ AuthService = (*ServiceImpl)(nil)

// AuthService orchestrates registration, login, token refresh, and the
// account-recovery flows over the injected user store.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*types.UserProjection, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	IssueTokensForUser(ctx context.Context, userID uuid.UUID) (*LoginResult, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.UserProjection, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.UserProjection, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
}

// ServiceImpl is the production AuthService.
type ServiceImpl struct {
	store      UserStore
	tokens     *TokenService
	hasher     *PasswordHasher
	guard      *AccountGuard
	challenges ChallengeStarter
	mailer     Mailer
	metrics    *metrics.AppMetrics
	logger     *slog.Logger
	cfg        config.AuthConfig
}

// NewAuthService wires the auth orchestration. challenges may be nil when
// MFA is disabled for the deployment; metrics may be nil in tests.
func NewAuthService(
	store UserStore,
	tokens *TokenService,
	hasher *PasswordHasher,
	guard *AccountGuard,
	challenges ChallengeStarter,
	mailer Mailer,
	m *metrics.AppMetrics,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		store:      store,
		tokens:     tokens,
		hasher:     hasher,
		guard:      guard,
		challenges: challenges,
		mailer:     mailer,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
	}
}

// newSecurityToken returns a 64-hex-char single-use token for email
// verification and password reset links.
func newSecurityToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate security token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Register validates input, enforces email uniqueness, hashes the password,
// and persists a PENDING, unverified user.
func (s *ServiceImpl) Register(ctx context.Context, req RegisterRequest) (*types.UserProjection, error) {
	var details []string
	if !ValidEmail(req.Email) {
		details = append(details, "email must have the form local@domain.tld")
	}
	if req.FirstName == "" {
		details = append(details, "firstName is required")
	}
	if req.LastName == "" {
		details = append(details, "lastName is required")
	}
	details = append(details, ValidatePassword(req.Password)...)

	role := types.RoleTourist
	if req.Role != "" {
		role = types.Role(req.Role)
		if !role.IsValid() || role.IsAdmin() {
			// Administrative roles are granted only through the admin API.
			details = append(details, "role must be TOURIST or GUIDE")
		}
	}
	if len(details) > 0 {
		return nil, types.NewValidationError(details...)
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("register: email taken: %w", types.ErrConflict)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("register: lookup failed: %w", err)
	}

	hashed, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	verifyToken, err := newSecurityToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	verifyExpires := now.Add(s.cfg.VerificationTokenTTL)
	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}
	user := &types.User{
		ID:                       uuid.New(),
		Email:                    req.Email,
		PasswordHash:             hashed,
		FirstName:                req.FirstName,
		LastName:                 req.LastName,
		Phone:                    phone,
		Role:                     role,
		Status:                   types.StatusPending,
		EmailVerified:            false,
		EmailVerificationToken:   &verifyToken,
		EmailVerificationExpires: &verifyExpires,
		Preferences:              types.DefaultPreferences(),
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, types.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, verifyToken); err != nil {
		// The account exists; delivery failures are logged, not surfaced.
		s.logger.WarnContext(ctx, "Failed to dispatch verification email",
			slog.Any("error", err), slog.String("user_id", user.ID.String()))
	}

	s.metrics.CountRegistration(ctx)
	projection := user.Project()
	return &projection, nil
}

// Login runs the lockout check, verifies the password, and either issues a
// token pair or opens an MFA challenge.
func (s *ServiceImpl) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	now := time.Now()

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			// Burn comparable CPU so absent accounts are not distinguishable
			// by response time.
			s.hasher.Check(password, dummyHash)
			s.metrics.CountLogin(ctx, "invalid_credentials")
			return nil, fmt.Errorf("login: %w", types.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("login: lookup failed: %w", err)
	}

	// Lockout precedes password verification for a locked account.
	if s.guard.IsLocked(user, now) {
		s.metrics.CountLogin(ctx, "locked")
		return nil, fmt.Errorf("login: %w", types.ErrAccountLocked)
	}

	if !s.hasher.Check(password, user.PasswordHash) {
		locked := s.guard.RecordFailure(user, now)
		if err := s.store.UpdateUser(ctx, user); err != nil {
			// Best-effort counter update; a stale counter is acceptable.
			s.logger.WarnContext(ctx, "Failed to persist login failure counter",
				slog.Any("error", err), slog.String("user_id", user.ID.String()))
		}
		if locked {
			s.metrics.CountLockout(ctx)
		}
		s.metrics.CountLogin(ctx, "invalid_credentials")
		return nil, fmt.Errorf("login: %w", types.ErrUnauthenticated)
	}

	if user.Status != types.StatusActive {
		s.metrics.CountLogin(ctx, "inactive")
		return nil, fmt.Errorf("login: account not active: %w", types.ErrForbidden)
	}

	if user.TwoFactorEnabled && s.challenges != nil {
		sessionID, methods, err := s.challenges.Begin(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("login: open mfa challenge: %w", err)
		}
		s.metrics.CountLogin(ctx, "mfa_pending")
		return &LoginResult{
			User:         user,
			MFARequired:  true,
			MFASessionID: sessionID,
			MFAMethods:   methods,
		}, nil
	}

	return s.completeLogin(ctx, user, now)
}

// IssueTokensForUser finishes an MFA-gated login: the challenge manager has
// verified the second factor and the normal token pair is issued as if
// password authentication alone had succeeded.
func (s *ServiceImpl) IssueTokensForUser(ctx context.Context, userID uuid.UUID) (*LoginResult, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("issue tokens: %w", types.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("issue tokens: lookup failed: %w", err)
	}
	if user.Status != types.StatusActive {
		return nil, fmt.Errorf("issue tokens: account not active: %w", types.ErrForbidden)
	}
	return s.completeLogin(ctx, user, time.Now())
}

func (s *ServiceImpl) completeLogin(ctx context.Context, user *types.User, now time.Time) (*LoginResult, error) {
	s.guard.RecordSuccess(user, now)
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist login success state",
			slog.Any("error", err), slog.String("user_id", user.ID.String()))
	}

	accessToken, err := s.tokens.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.metrics.CountLogin(ctx, "success")
	return &LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.tokens.AccessTTL()),
	}, nil
}

// Refresh mints a new token pair from a valid refresh token. Any token
// failure and any non-active account yield ErrUnauthenticated uniformly.
func (s *ServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims := s.tokens.VerifyRefresh(refreshToken)
	if claims == nil {
		return nil, fmt.Errorf("refresh: %w", types.ErrUnauthenticated)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", types.ErrUnauthenticated)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", types.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("refresh: lookup failed: %w", err)
	}
	if user.Status != types.StatusActive {
		return nil, fmt.Errorf("refresh: account not active: %w", types.ErrUnauthenticated)
	}

	access, err := s.tokens.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	newRefresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	s.metrics.CountRefresh(ctx)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: newRefresh,
		ExpiresAt:    time.Now().Add(s.tokens.AccessTTL()),
	}, nil
}

func (s *ServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.UserProjection, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	projection := user.Project()
	return &projection, nil
}

// UpdateProfile applies the provided partial fields and returns the updated
// projection.
func (s *ServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.UserProjection, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if params.FirstName != nil {
		user.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		user.LastName = *params.LastName
	}
	if params.Phone != nil {
		user.Phone = params.Phone
	}
	if params.Preferences != nil {
		user.Preferences = *params.Preferences
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	projection := user.Project()
	return &projection, nil
}

// ChangePassword verifies the current password before accepting a new one
// that satisfies the password policy.
func (s *ServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if !s.hasher.Check(currentPassword, user.PasswordHash) {
		return types.NewValidationError("current password is incorrect")
	}
	if details := ValidatePassword(newPassword); len(details) > 0 {
		return types.NewValidationError(details...)
	}

	hashed, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// ForgotPassword issues a single-use reset token. It succeeds regardless of
// whether the account exists so the endpoint cannot be used for enumeration.
func (s *ServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("forgot password: lookup failed: %w", err)
	}

	token, err := newSecurityToken()
	if err != nil {
		return err
	}
	expires := time.Now().Add(s.cfg.ResetTokenTTL)
	user.ResetPasswordToken = &token
	user.ResetPasswordExpires = &expires

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
		s.logger.WarnContext(ctx, "Failed to dispatch reset email",
			slog.Any("error", err), slog.String("user_id", user.ID.String()))
	}
	return nil
}

// ResetPassword redeems a reset token. Redemption clears the token so it
// cannot be replayed.
func (s *ServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return fmt.Errorf("reset password: %w", types.ErrTokenExpired)
	}
	user, err := s.store.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("reset password: %w", types.ErrTokenExpired)
		}
		return fmt.Errorf("reset password: lookup failed: %w", err)
	}
	if user.ResetPasswordExpires == nil || user.ResetPasswordExpires.Before(time.Now()) {
		return fmt.Errorf("reset password: %w", types.ErrTokenExpired)
	}
	if details := ValidatePassword(newPassword); len(details) > 0 {
		return types.NewValidationError(details...)
	}

	hashed, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	user.ResetPasswordToken = nil
	user.ResetPasswordExpires = nil
	// A completed reset also clears any standing lockout.
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// VerifyEmail redeems a verification token, marks the email verified, and
// activates a PENDING account.
func (s *ServiceImpl) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("verify email: %w", types.ErrTokenExpired)
	}
	user, err := s.store.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("verify email: %w", types.ErrTokenExpired)
		}
		return fmt.Errorf("verify email: lookup failed: %w", err)
	}
	if user.EmailVerificationExpires == nil || user.EmailVerificationExpires.Before(time.Now()) {
		return fmt.Errorf("verify email: %w", types.ErrTokenExpired)
	}

	user.EmailVerified = true
	user.EmailVerificationToken = nil
	user.EmailVerificationExpires = nil
	if user.Status == types.StatusPending {
		user.Status = types.StatusActive
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	return nil
}
