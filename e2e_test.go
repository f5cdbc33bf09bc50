package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/wandertrails/tourism-api/config"
	"github.com/wandertrails/tourism-api/internal/api/admin"
	"github.com/wandertrails/tourism-api/internal/api/auth"
	"github.com/wandertrails/tourism-api/internal/api/mfa"
	"github.com/wandertrails/tourism-api/internal/router"
	"github.com/wandertrails/tourism-api/internal/types"
)

// memoryUserStore backs the end-to-end suite so the full HTTP stack runs
// without a database. It honors the same sentinel errors as the pgx store.
type memoryUserStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*types.User
	backupCodes map[uuid.UUID]map[string]bool // hash -> used
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{
		users:       make(map[uuid.UUID]*types.User),
		backupCodes: make(map[uuid.UUID]map[string]bool),
	}
}

func (s *memoryUserStore) GetUserByID(_ context.Context, id uuid.UUID) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memoryUserStore) GetUserByEmail(_ context.Context, email string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *memoryUserStore) GetUserByVerificationToken(_ context.Context, token string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.EmailVerificationToken != nil && *u.EmailVerificationToken == token {
			copied := *u
			return &copied, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *memoryUserStore) GetUserByResetToken(_ context.Context, token string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ResetPasswordToken != nil && *u.ResetPasswordToken == token {
			copied := *u
			return &copied, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *memoryUserStore) CreateUser(_ context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return types.ErrConflict
		}
	}
	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *memoryUserStore) UpdateUser(_ context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return types.ErrNotFound
	}
	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *memoryUserStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return types.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memoryUserStore) ListUsers(_ context.Context, limit, offset int) ([]types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]types.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return []types.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *memoryUserStore) CountAdmins(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, u := range s.users {
		if u.Role.IsAdmin() {
			count++
		}
	}
	return count, nil
}

func (s *memoryUserStore) ReplaceBackupCodes(_ context.Context, userID uuid.UUID, codeHashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]bool, len(codeHashes))
	for _, h := range codeHashes {
		set[h] = false
	}
	s.backupCodes[userID] = set
	return nil
}

func (s *memoryUserStore) ConsumeBackupCode(_ context.Context, userID uuid.UUID, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.backupCodes[userID]
	if !ok {
		return false, nil
	}
	used, ok := set[codeHash]
	if !ok || used {
		return false, nil
	}
	set[codeHash] = true
	return true, nil
}

// mutate applies fn to the stored user under the lock, for test arrangement
// that has no HTTP surface (promoting to admin, enabling a second factor).
func (s *memoryUserStore) mutate(id uuid.UUID, fn func(*types.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		fn(u)
	}
}

// captureSender records dispatched MFA codes so the suite can redeem them.
type captureSender struct {
	mu        sync.Mutex
	lastEmail string
	lastSMS   string
}

func (c *captureSender) SendSMS(_ context.Context, _, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSMS = code
	return nil
}

func (c *captureSender) SendEmail(_ context.Context, _, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastEmail = code
	return nil
}

func (c *captureSender) LastEmailCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEmail
}

// E2ETestSuite drives the complete account lifecycle through the real route
// tree: registration, verification, login, lockout, MFA, token refresh,
// password recovery, and the administrative surface.
type E2ETestSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
	store  *memoryUserStore
	sender *captureSender
}

func (s *E2ETestSuite) SetupSuite() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	authCfg := config.AuthConfig{
		BcryptCost:             12,
		MaxFailedLogins:        5,
		LockoutDuration:        30 * time.Minute,
		VerificationTokenTTL:   24 * time.Hour,
		ResetTokenTTL:          time.Hour,
		LoginRateLimit:         200,
		LoginRateLimitInterval: time.Minute,
	}
	jwtCfg := config.JWTConfig{
		AccessSecret:    "e2e-access-secret",
		RefreshSecret:   "e2e-refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "tourism-api-e2e",
		Audience:        "tourism-api-clients",
	}
	mfaCfg := config.MFAConfig{
		ChallengeTTL:   10 * time.Minute,
		CodeTTL:        10 * time.Minute,
		ResendCooldown: time.Millisecond,
		MaxAttempts:    5,
		TOTPIssuer:     "WanderTrails",
	}

	s.store = newMemoryUserStore()
	s.sender = &captureSender{}

	tokenService := auth.NewTokenService(jwtCfg, logger)
	hasher := auth.NewPasswordHasher(authCfg.BcryptCost)
	guard := auth.NewAccountGuard(authCfg)
	mfaManager := mfa.NewManager(mfa.NewMemoryChallengeStore(), s.store, s.sender, nil, mfaCfg, logger)

	authService := auth.NewAuthService(
		s.store, tokenService, hasher, guard,
		mfaManager, &auth.LogMailer{Logger: logger},
		nil, authCfg, logger,
	)

	adminService := admin.NewAdminService(s.store, admin.DefaultFieldVisibility(), logger)

	handler := router.SetupRouter(&router.Config{
		AuthHandler:  auth.NewAuthHandler(authService, logger),
		MFAHandler:   mfa.NewMFAHandler(mfaManager, authService, logger),
		AdminHandler: admin.NewAdminHandler(adminService, logger),

		Authenticate: auth.Authenticate(tokenService, s.store, logger),
		RequireAdmin: auth.RequireRole(logger, router.AdminRoles...),

		AllowedOrigins:         []string{"http://localhost:5173"},
		LoginRateLimit:         authCfg.LoginRateLimit,
		LoginRateLimitInterval: authCfg.LoginRateLimitInterval,
	})

	s.server = httptest.NewServer(handler)
	s.client = &http.Client{Timeout: 30 * time.Second}
}

func (s *E2ETestSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
}

func (s *E2ETestSuite) post(path string, body any, token string) (*http.Response, map[string]any) {
	return s.do(http.MethodPost, path, body, token)
}

func (s *E2ETestSuite) do(method, path string, body any, token string) (*http.Response, map[string]any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.T(), err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	require.NoError(s.T(), err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	resp.Body.Close()

	decoded := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

// registerActiveUser provisions and verifies a fresh account, returning its ID.
func (s *E2ETestSuite) registerActiveUser(email, password string) uuid.UUID {
	resp, _ := s.post("/api/auth/register", map[string]string{
		"email":     email,
		"password":  password,
		"firstName": "E2E",
		"lastName":  "User",
	}, "")
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	user, err := s.store.GetUserByEmail(context.Background(), email)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), user.EmailVerificationToken)

	resp, _ = s.post("/api/auth/verify-email", map[string]string{
		"token": *user.EmailVerificationToken,
	}, "")
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	return user.ID
}

func (s *E2ETestSuite) login(email, password string) (*http.Response, map[string]any) {
	return s.post("/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
}

func (s *E2ETestSuite) TestHealthCheck() {
	resp, err := s.client.Get(s.server.URL + "/ping")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *E2ETestSuite) TestRegistrationAndLoginJourney() {
	email := fmt.Sprintf("journey+%d@example.com", time.Now().UnixNano())
	password := "Sup3rSecret!Pass"

	resp, body := s.post("/api/auth/register", map[string]string{
		"email":     email,
		"password":  password,
		"firstName": "Ana",
		"lastName":  "Silva",
	}, "")
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(true, body["success"])

	// Unverified accounts cannot log in yet.
	resp, _ = s.login(email, password)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	user, err := s.store.GetUserByEmail(context.Background(), email)
	s.Require().NoError(err)
	s.Require().NotNil(user.EmailVerificationToken)

	resp, _ = s.post("/api/auth/verify-email", map[string]string{"token": *user.EmailVerificationToken}, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, body = s.login(email, password)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	accessToken, _ := body["accessToken"].(string)
	refreshToken, _ := body["refreshToken"].(string)
	s.NotEmpty(accessToken)
	s.NotEmpty(refreshToken)

	// The token opens the protected surface.
	resp, body = s.do(http.MethodGet, "/api/auth/profile", nil, accessToken)
	s.Equal(http.StatusOK, resp.StatusCode)

	// No token does not.
	resp, _ = s.do(http.MethodGet, "/api/auth/profile", nil, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Refresh rotates the pair.
	resp, body = s.post("/api/auth/refresh-token", map[string]string{"refreshToken": refreshToken}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	data, _ := body["data"].(map[string]any)
	s.NotEmpty(data["accessToken"])

	// The access token is not accepted as a refresh token.
	resp, _ = s.post("/api/auth/refresh-token", map[string]string{"refreshToken": accessToken}, "")
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *E2ETestSuite) TestAccountLockout() {
	email := fmt.Sprintf("lockout+%d@example.com", time.Now().UnixNano())
	password := "Sup3rSecret!Pass"
	s.registerActiveUser(email, password)

	for i := 0; i < 5; i++ {
		resp, _ := s.login(email, "Wrong!Password1")
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	}

	// Locked now, even with the correct password.
	resp, _ := s.login(email, password)
	s.Equal(http.StatusLocked, resp.StatusCode)
}

func (s *E2ETestSuite) TestPasswordRecovery() {
	email := fmt.Sprintf("recovery+%d@example.com", time.Now().UnixNano())
	s.registerActiveUser(email, "Or1ginal!Secret")

	// The response never reveals whether the account exists.
	resp, _ := s.post("/api/auth/forgot-password", map[string]string{"email": "nobody@example.com"}, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.post("/api/auth/forgot-password", map[string]string{"email": email}, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	user, err := s.store.GetUserByEmail(context.Background(), email)
	s.Require().NoError(err)
	s.Require().NotNil(user.ResetPasswordToken)

	newPassword := "Brand!New1Secret"
	resp, _ = s.post("/api/auth/reset-password", map[string]string{
		"token":       *user.ResetPasswordToken,
		"newPassword": newPassword,
	}, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.login(email, "Or1ginal!Secret")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.login(email, newPassword)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *E2ETestSuite) TestMFAJourney() {
	email := fmt.Sprintf("mfa+%d@example.com", time.Now().UnixNano())
	password := "Sup3rSecret!Pass"
	userID := s.registerActiveUser(email, password)

	s.store.mutate(userID, func(u *types.User) {
		u.TwoFactorEnabled = true
	})

	resp, body := s.login(email, password)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, body["mfaRequired"])
	sessionID, _ := body["mfaSessionId"].(string)
	s.Require().NotEmpty(sessionID)
	s.Empty(body["accessToken"])

	resp, _ = s.post("/api/auth/mfa/send-code", map[string]string{
		"mfaSessionId": sessionID,
		"channel":      "email",
	}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	code := s.sender.LastEmailCode()
	s.Require().Len(code, 6)

	// A wrong code burns an attempt without closing the challenge.
	resp, _ = s.post("/api/auth/mfa/verify", map[string]string{
		"mfaSessionId": sessionID,
		"token":        "000000",
	}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.post("/api/auth/mfa/verify", map[string]string{
		"mfaSessionId": sessionID,
		"token":        code,
	}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.NotEmpty(body["accessToken"])

	// The challenge is single-use.
	resp, _ = s.post("/api/auth/mfa/verify", map[string]string{
		"mfaSessionId": sessionID,
		"token":        code,
	}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *E2ETestSuite) TestAdminSurface() {
	adminEmail := fmt.Sprintf("admin+%d@example.com", time.Now().UnixNano())
	touristEmail := fmt.Sprintf("tourist+%d@example.com", time.Now().UnixNano())
	password := "Sup3rSecret!Pass"

	adminID := s.registerActiveUser(adminEmail, password)
	touristID := s.registerActiveUser(touristEmail, password)

	s.store.mutate(adminID, func(u *types.User) {
		u.Role = types.RoleAdmin
	})

	_, body := s.login(adminEmail, password)
	adminToken, _ := body["accessToken"].(string)
	s.Require().NotEmpty(adminToken)

	_, body = s.login(touristEmail, password)
	touristToken, _ := body["accessToken"].(string)
	s.Require().NotEmpty(touristToken)

	// Tourists are turned away at the role gate.
	resp, _ := s.do(http.MethodGet, "/api/auth/admin/users", nil, touristToken)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/api/auth/admin/users", nil, adminToken)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	// Administrators can suspend an account.
	resp, _ = s.do(http.MethodPatch, "/api/auth/admin/users/"+touristID.String(),
		map[string]string{"status": "SUSPENDED"}, adminToken)
	s.Equal(http.StatusOK, resp.StatusCode)

	// A suspended user's token stops working immediately.
	resp, _ = s.do(http.MethodGet, "/api/auth/profile", nil, touristToken)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	// The sole administrator cannot remove itself.
	resp, _ = s.do(http.MethodDelete, "/api/auth/admin/users/"+adminID.String(), nil, adminToken)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	// Deleting the suspended tourist is fine.
	resp, _ = s.do(http.MethodDelete, "/api/auth/admin/users/"+touristID.String(), nil, adminToken)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func TestE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end suite in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}
