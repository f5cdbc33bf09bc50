package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wandertrails/tourism-api/internal/api"
	"github.com/wandertrails/tourism-api/internal/types"
)

// AuthHandler handles HTTP requests for authentication operations.
type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register creates a new PENDING, unverified user.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	projection, err := h.authService.Register(r.Context(), req)
	if err != nil {
		var vErr *types.ValidationError
		switch {
		case errors.As(err, &vErr):
			api.ValidationErrorResponse(w, r, "Validation failed", vErr.Details)
		case errors.Is(err, types.ErrConflict):
			api.ErrorResponse(w, r, http.StatusConflict, "An account with this email already exists")
		default:
			h.logger.ErrorContext(r.Context(), "Registration failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to register user")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, RegisterResponse{
		Success: true,
		Message: "Registration successful. Please verify your email.",
		User:    projection,
	})
}

// Login authenticates credentials and returns either a token pair or a
// pending MFA challenge.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrAccountLocked):
			api.ErrorResponse(w, r, http.StatusLocked, "Account temporarily locked due to repeated failed login attempts")
		case errors.Is(err, types.ErrUnauthenticated):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, types.ErrForbidden):
			api.ErrorResponse(w, r, http.StatusForbidden, "Account is not active")
		default:
			h.logger.ErrorContext(r.Context(), "Login failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to process login")
		}
		return
	}

	if result.MFARequired {
		api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
			Success:      true,
			Message:      "Additional verification required",
			MFARequired:  true,
			MFASessionID: result.MFASessionID,
			MFAMethods:   result.MFAMethods,
		})
		return
	}

	projection := result.User.Project()
	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		Success:      true,
		Message:      "Login successful",
		User:         &projection,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    &result.ExpiresAt,
	})
}

// RefreshToken exchanges a valid refresh token for a new token pair.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Refresh token is required")
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusForbidden, "Invalid refresh token")
			return
		}
		h.logger.ErrorContext(r.Context(), "Token refresh failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to refresh token")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{Success: true, Data: pair})
}

// Logout acknowledges the logout. Tokens are stateless bearer credentials;
// the client discards its pair.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	h.logger.InfoContext(r.Context(), "User logged out", slog.String("user_id", identity.ID.String()))
	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Message: "Logged out successfully",
	})
}

// GetProfile returns the authenticated user's projection.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	projection, err := h.authService.GetProfile(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Profile lookup failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{Success: true, Data: projection})
}

// UpdateProfile applies a partial profile update.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var params types.UpdateProfileParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	projection, err := h.authService.UpdateProfile(r.Context(), identity.ID, params)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Profile update failed", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), "Failed to update profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Data:    projection,
		Message: "Profile updated",
	})
}

// ChangePassword verifies the current password and installs a new one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Current and new passwords are required")
		return
	}

	err := h.authService.ChangePassword(r.Context(), identity.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var vErr *types.ValidationError
		if errors.As(err, &vErr) {
			api.ValidationErrorResponse(w, r, "Password change rejected", vErr.Details)
			return
		}
		h.logger.ErrorContext(r.Context(), "Password change failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to change password")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Message: "Password changed successfully",
	})
}

// ForgotPassword always answers 200 so the endpoint cannot be used to probe
// which emails are registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		// Still answer 200; log the internal failure.
		h.logger.ErrorContext(r.Context(), "Forgot-password processing failed", slog.Any("error", err))
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Message: "If an account exists for that email, a reset link has been sent",
	})
}

// ResetPassword redeems a single-use reset token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		var vErr *types.ValidationError
		switch {
		case errors.As(err, &vErr):
			api.ValidationErrorResponse(w, r, "Password reset rejected", vErr.Details)
		case errors.Is(err, types.ErrTokenExpired):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid or expired reset token")
		default:
			h.logger.ErrorContext(r.Context(), "Password reset failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to reset password")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Message: "Password reset successfully",
	})
}

// VerifyEmail redeems an email verification token and activates the account.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, types.ErrTokenExpired) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid or expired verification token")
			return
		}
		h.logger.ErrorContext(r.Context(), "Email verification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to verify email")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Message: "Email verified successfully",
	})
}
