package mfa

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wandertrails/tourism-api/internal/api/auth"
	"github.com/wandertrails/tourism-api/internal/types"
)

// MockTokenIssuer is a mock implementation of the TokenIssuer interface
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) IssueTokensForUser(ctx context.Context, userID uuid.UUID) (*auth.LoginResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.LoginResult), args.Error(1)
}

func postJSON(t *testing.T, target string, body any) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestMFAHandlerSendCode(t *testing.T) {
	t.Run("UnknownSession", func(t *testing.T) {
		handler := NewMFAHandler(newTestManager(new(MockUserSource), nil), new(MockTokenIssuer), slog.Default())

		req := postJSON(t, "/api/auth/mfa/send-code", SendCodeRequest{
			MFASessionID: "never-created", Channel: "email",
		})
		rr := httptest.NewRecorder()
		handler.SendCode(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid or expired MFA session")
	})

	t.Run("CooldownAnswers429", func(t *testing.T) {
		ctx := context.Background()
		mockUsers := new(MockUserSource)
		sender := &recordingSender{}
		manager := newTestManager(mockUsers, sender)
		handler := NewMFAHandler(manager, new(MockTokenIssuer), slog.Default())

		user := mfaUser()
		sessionID, _, err := manager.Begin(ctx, user)
		assert.NoError(t, err)
		mockUsers.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		assert.NoError(t, manager.SendCode(ctx, sessionID, ChannelEmail))

		req := postJSON(t, "/api/auth/mfa/send-code", SendCodeRequest{
			MFASessionID: sessionID, Channel: "email",
		})
		rr := httptest.NewRecorder()
		handler.SendCode(rr, req)

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	})

	t.Run("MissingFields", func(t *testing.T) {
		handler := NewMFAHandler(newTestManager(new(MockUserSource), nil), new(MockTokenIssuer), slog.Default())

		req := postJSON(t, "/api/auth/mfa/send-code", SendCodeRequest{Channel: "email"})
		rr := httptest.NewRecorder()
		handler.SendCode(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestMFAHandlerVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessIssuesTokenPair", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		sender := &recordingSender{}
		manager := newTestManager(mockUsers, sender)
		mockIssuer := new(MockTokenIssuer)
		handler := NewMFAHandler(manager, mockIssuer, slog.Default())

		user := mfaUser()
		sessionID, _, err := manager.Begin(ctx, user)
		assert.NoError(t, err)
		mockUsers.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		assert.NoError(t, manager.SendCode(ctx, sessionID, ChannelEmail))

		expires := time.Now().Add(15 * time.Minute)
		mockIssuer.On("IssueTokensForUser", mock.Anything, user.ID).
			Return(&auth.LoginResult{
				User:         user,
				AccessToken:  "access-token",
				RefreshToken: "refresh-token",
				ExpiresAt:    expires,
			}, nil).Once()

		req := postJSON(t, "/api/auth/mfa/verify", VerifyRequest{
			MFASessionID: sessionID, Token: sender.emailCodes[0],
		})
		rr := httptest.NewRecorder()
		handler.Verify(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp auth.LoginResponse
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "access-token", resp.AccessToken)
		assert.Equal(t, user.ID, resp.User.ID)
		mockIssuer.AssertExpectations(t)
	})

	t.Run("WrongCode", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		sender := &recordingSender{}
		manager := newTestManager(mockUsers, sender)
		mockIssuer := new(MockTokenIssuer)
		handler := NewMFAHandler(manager, mockIssuer, slog.Default())

		user := mfaUser()
		sessionID, _, err := manager.Begin(ctx, user)
		assert.NoError(t, err)
		mockUsers.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		assert.NoError(t, manager.SendCode(ctx, sessionID, ChannelEmail))

		req := postJSON(t, "/api/auth/mfa/verify", VerifyRequest{
			MFASessionID: sessionID, Token: "000000",
		})
		rr := httptest.NewRecorder()
		handler.Verify(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid verification code")
		mockIssuer.AssertNotCalled(t, "IssueTokensForUser")
	})

	t.Run("SuspendedBetweenPasswordAndSecondFactor", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		sender := &recordingSender{}
		manager := newTestManager(mockUsers, sender)
		mockIssuer := new(MockTokenIssuer)
		handler := NewMFAHandler(manager, mockIssuer, slog.Default())

		user := mfaUser()
		sessionID, _, err := manager.Begin(ctx, user)
		assert.NoError(t, err)
		mockUsers.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		assert.NoError(t, manager.SendCode(ctx, sessionID, ChannelEmail))

		mockIssuer.On("IssueTokensForUser", mock.Anything, user.ID).
			Return(nil, types.ErrForbidden).Once()

		req := postJSON(t, "/api/auth/mfa/verify", VerifyRequest{
			MFASessionID: sessionID, Token: sender.emailCodes[0],
		})
		rr := httptest.NewRecorder()
		handler.Verify(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), "Account is not active")
	})
}

func TestMFAHandlerGenerateBackupCodes(t *testing.T) {
	t.Run("RequiresIdentity", func(t *testing.T) {
		handler := NewMFAHandler(newTestManager(new(MockUserSource), nil), new(MockTokenIssuer), slog.Default())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/mfa/backup-codes", nil)
		rr := httptest.NewRecorder()
		handler.GenerateBackupCodes(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("ReturnsFreshCodes", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		handler := NewMFAHandler(newTestManager(mockUsers, nil), new(MockTokenIssuer), slog.Default())

		identity := &types.Identity{ID: uuid.New(), Role: types.RoleTourist, Status: types.StatusActive}
		mockUsers.On("ReplaceBackupCodes", mock.Anything, identity.ID, mock.AnythingOfType("[]string")).
			Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/auth/mfa/backup-codes", nil)
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
		rr := httptest.NewRecorder()
		handler.GenerateBackupCodes(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				BackupCodes []string `json:"backupCodes"`
			} `json:"data"`
		}
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Len(t, resp.Data.BackupCodes, 10)
		mockUsers.AssertExpectations(t)
	})
}
