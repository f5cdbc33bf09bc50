package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wandertrails/tourism-api/internal/api"
	"github.com/wandertrails/tourism-api/internal/api/auth"
	"github.com/wandertrails/tourism-api/internal/types"
)

// AdminHandler exposes the administrative user-management endpoints. The
// router mounts it behind Authenticate plus RequireRole(ADMIN, SUPER_ADMIN).
type AdminHandler struct {
	adminService AdminService
	logger       *slog.Logger
}

func NewAdminHandler(adminService AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// ListUsers handles GET /api/auth/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentityFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	users, err := h.adminService.ListUsers(r.Context(), identity.Role, limit, offset)
	if err != nil {
		if errors.Is(err, types.ErrForbidden) {
			api.ErrorResponse(w, r, http.StatusForbidden, "Insufficient permissions")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to list users", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list users")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Data: map[string]any{
			"users":  users,
			"limit":  limit,
			"offset": offset,
		},
	})
}

// UpdateUser handles PATCH /api/auth/admin/users/{userID}.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var params types.AdminUpdateParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.adminService.UpdateUser(r.Context(), id, params)
	if err != nil {
		var ve *types.ValidationError
		switch {
		case errors.As(err, &ve):
			api.ValidationErrorResponse(w, r, "User update rejected", ve.Details)
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			h.logger.ErrorContext(r.Context(), "Failed to update user",
				slog.String("user_id", id.String()), slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update user")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Data:    map[string]any{"user": user},
		Message: "User updated",
	})
}

// DeleteUser handles DELETE /api/auth/admin/users/{userID}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.adminService.DeleteUser(r.Context(), id); err != nil {
		var ve *types.ValidationError
		switch {
		case errors.As(err, &ve):
			api.ValidationErrorResponse(w, r, "User deletion rejected", ve.Details)
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			h.logger.ErrorContext(r.Context(), "Failed to delete user",
				slog.String("user_id", id.String()), slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete user")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.SuccessPayload{
		Success: true,
		Message: "User deleted",
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
