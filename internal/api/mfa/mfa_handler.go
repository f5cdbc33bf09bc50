package mfa

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/wandertrails/tourism-api/internal/api"
	"github.com/wandertrails/tourism-api/internal/api/auth"
	"github.com/wandertrails/tourism-api/internal/types"
)

// TokenIssuer finishes a verified challenge by issuing the normal token
// pair. Implemented by the auth service.
type TokenIssuer interface {
	IssueTokensForUser(ctx context.Context, userID uuid.UUID) (*auth.LoginResult, error)
}

// MFAHandler handles HTTP requests for the second-factor flow.
type MFAHandler struct {
	manager *Manager
	issuer  TokenIssuer
	logger  *slog.Logger
}

// NewMFAHandler creates a new MFAHandler.
func NewMFAHandler(manager *Manager, issuer TokenIssuer, logger *slog.Logger) *MFAHandler {
	return &MFAHandler{
		manager: manager,
		issuer:  issuer,
		logger:  logger,
	}
}

// SendCode dispatches a one-time code for a pending challenge.
func (h *MFAHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.MFASessionID == "" || req.Channel == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "mfaSessionId and channel are required")
		return
	}

	err := h.manager.SendCode(r.Context(), req.MFASessionID, Channel(req.Channel))
	if err != nil {
		switch {
		case errors.Is(err, ErrChallengeNotFound):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired MFA session")
		case errors.Is(err, ErrChannelUnavailable):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Verification channel unavailable")
		case errors.Is(err, ErrResendCooldown):
			api.ErrorResponse(w, r, http.StatusTooManyRequests, "Please wait before requesting another code")
		default:
			h.logger.ErrorContext(r.Context(), "MFA code dispatch failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to send verification code")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Message: "Verification code sent",
	})
}

// Verify redeems a challenge and, on success, issues the token pair as if
// password authentication alone had succeeded.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.MFASessionID == "" || (req.Token == "" && req.BackupCode == "") {
		api.ErrorResponse(w, r, http.StatusBadRequest, "mfaSessionId and a token or backupCode are required")
		return
	}

	userID, err := h.manager.Verify(r.Context(), req.MFASessionID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrChallengeNotFound):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired MFA session")
		case errors.Is(err, ErrChallengeFailed):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Too many failed attempts; please log in again")
		case errors.Is(err, ErrCodeMismatch):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid verification code")
		case errors.Is(err, ErrChannelUnavailable):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Verification channel unavailable")
		default:
			h.logger.ErrorContext(r.Context(), "MFA verification failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to verify code")
		}
		return
	}

	result, err := h.issuer.IssueTokensForUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, types.ErrForbidden) {
			api.ErrorResponse(w, r, http.StatusForbidden, "Account is not active")
			return
		}
		h.logger.ErrorContext(r.Context(), "Token issuance after MFA failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to complete login")
		return
	}

	projection := result.User.Project()
	api.WriteJSONResponse(w, r, http.StatusOK, auth.LoginResponse{
		Success:      true,
		Message:      "Login successful",
		User:         &projection,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    &result.ExpiresAt,
	})
}

// GenerateBackupCodes replaces the authenticated user's recovery codes and
// returns the new plaintext set exactly once.
func (h *MFAHandler) GenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	codes, err := h.manager.GenerateBackupCodes(r.Context(), identity.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Backup code generation failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to generate backup codes")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Data:    map[string][]string{"backupCodes": codes},
		Message: "Store these codes safely; each can be used once",
	})
}
