package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wandertrails/tourism-api/internal/api/auth"
	"github.com/wandertrails/tourism-api/internal/types"
)

// FieldVisibility maps a viewer role to the user fields it may see in
// listings. Treated as configuration rather than inline conditionals so the
// matrix can be adjusted without touching query code.
type FieldVisibility map[types.Role][]string

// DefaultFieldVisibility is the standing matrix: ADMIN sees operational
// fields, SUPER_ADMIN additionally sees contact details and preferences.
func DefaultFieldVisibility() FieldVisibility {
	adminFields := []string{
		"id", "email", "first_name", "last_name", "role", "status",
		"email_verified", "last_login", "created_at",
	}
	superFields := append(append([]string(nil), adminFields...),
		"phone", "login_count", "preferences",
	)
	return FieldVisibility{
		types.RoleAdmin:      adminFields,
		types.RoleSuperAdmin: superFields,
	}
}

var _ AdminService = (*ServiceImpl)(nil)

// AdminService manages user accounts on behalf of administrators.
type AdminService interface {
	ListUsers(ctx context.Context, viewer types.Role, limit, offset int) ([]map[string]any, error)
	UpdateUser(ctx context.Context, id uuid.UUID, params types.AdminUpdateParams) (*types.UserProjection, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// ServiceImpl is the production AdminService.
type ServiceImpl struct {
	store      auth.UserStore
	visibility FieldVisibility
	logger     *slog.Logger
}

// NewAdminService wires the admin operations over the shared user store.
func NewAdminService(store auth.UserStore, visibility FieldVisibility, logger *slog.Logger) *ServiceImpl {
	if visibility == nil {
		visibility = DefaultFieldVisibility()
	}
	return &ServiceImpl{
		store:      store,
		visibility: visibility,
		logger:     logger,
	}
}

// ListUsers returns user records projected through the viewer's visibility
// row.
func (s *ServiceImpl) ListUsers(ctx context.Context, viewer types.Role, limit, offset int) ([]map[string]any, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.store.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	fields, ok := s.visibility[viewer]
	if !ok {
		return nil, fmt.Errorf("list users: no visibility row for role %s: %w", viewer, types.ErrForbidden)
	}

	out := make([]map[string]any, 0, len(users))
	for i := range users {
		out = append(out, projectFields(&users[i], fields))
	}
	return out, nil
}

func projectFields(u *types.User, fields []string) map[string]any {
	full := map[string]any{
		"id":             u.ID,
		"email":          u.Email,
		"first_name":     u.FirstName,
		"last_name":      u.LastName,
		"phone":          u.Phone,
		"role":           u.Role,
		"status":         u.Status,
		"email_verified": u.EmailVerified,
		"last_login":     u.LastLogin,
		"login_count":    u.LoginCount,
		"preferences":    u.Preferences,
		"created_at":     u.CreatedAt,
	}
	visible := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := full[f]; ok {
			visible[f] = v
		}
	}
	return visible
}

// UpdateUser applies administrative role/status edits.
func (s *ServiceImpl) UpdateUser(ctx context.Context, id uuid.UUID, params types.AdminUpdateParams) (*types.UserProjection, error) {
	var details []string
	if params.Role != nil && !params.Role.IsValid() {
		details = append(details, "role must be one of TOURIST, GUIDE, ADMIN, SUPER_ADMIN")
	}
	if params.Status != nil && !params.Status.IsValid() {
		details = append(details, "status must be one of PENDING, ACTIVE, SUSPENDED, BANNED")
	}
	if params.Role == nil && params.Status == nil {
		details = append(details, "at least one of role or status must be provided")
	}
	if len(details) > 0 {
		return nil, types.NewValidationError(details...)
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	// Demoting or suspending the last administrator would lock everyone
	// out, same as deleting them.
	if user.Role.IsAdmin() && (demotes(params.Role) || deactivates(params.Status)) {
		count, err := s.store.CountAdmins(ctx)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		if count <= 1 {
			return nil, types.NewValidationError("cannot demote or deactivate the last remaining administrator")
		}
	}

	if params.Role != nil {
		user.Role = *params.Role
	}
	if params.Status != nil {
		user.Status = *params.Status
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "Administrative user edit applied",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)),
		slog.String("status", string(user.Status)))

	projection := user.Project()
	return &projection, nil
}

func demotes(role *types.Role) bool {
	return role != nil && !role.IsAdmin()
}

func deactivates(status *types.Status) bool {
	return status != nil && *status != types.StatusActive
}

// DeleteUser removes an account. Deleting the sole remaining administrator
// is rejected.
func (s *ServiceImpl) DeleteUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("delete user: %w", types.ErrNotFound)
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if user.Role.IsAdmin() {
		count, err := s.store.CountAdmins(ctx)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if count <= 1 {
			return types.NewValidationError("cannot delete the last remaining administrator")
		}
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.InfoContext(ctx, "User deleted by administrator", slog.String("user_id", id.String()))
	return nil
}
