package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wandertrails/tourism-api/internal/types"
)

// PGXPool is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type PGXPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UserStore is the capability set every auth component receives by
// injection: lookups, create, update, delete, and admin counting, plus the
// backup-code operations the MFA layer consumes.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*types.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*types.User, error)
	CreateUser(ctx context.Context, u *types.User) error
	UpdateUser(ctx context.Context, u *types.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, limit, offset int) ([]types.User, error)
	CountAdmins(ctx context.Context) (int, error)
	ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codeHashes []string) error
	ConsumeBackupCode(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error)
}

var _ UserStore = (*PostgresUserStore)(nil)

// PostgresUserStore is the pgx-backed user store.
type PostgresUserStore struct {
	logger *slog.Logger
	pgpool PGXPool
}

// NewPostgresUserStore wires a user store over the given pool.
func NewPostgresUserStore(pgpool PGXPool, logger *slog.Logger) *PostgresUserStore {
	return &PostgresUserStore{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone,
	role, status, email_verified, failed_login_attempts, locked_until,
	last_login, login_count, email_verification_token, email_verification_expires,
	reset_password_token, reset_password_expires, two_factor_enabled, totp_secret,
	preferences, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.Role, &u.Status, &u.EmailVerified, &u.FailedLoginAttempts, &u.LockedUntil,
		&u.LastLogin, &u.LoginCount, &u.EmailVerificationToken, &u.EmailVerificationExpires,
		&u.ResetPasswordToken, &u.ResetPasswordExpires, &u.TwoFactorEnabled, &u.TOTPSecret,
		&u.Preferences, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *PostgresUserStore) GetUserByVerificationToken(ctx context.Context, token string) (*types.User, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_verification_token = $1`, token)
	return scanUser(row)
}

func (r *PostgresUserStore) GetUserByResetToken(ctx context.Context, token string) (*types.User, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_password_token = $1`, token)
	return scanUser(row)
}

func (r *PostgresUserStore) CreateUser(ctx context.Context, u *types.User) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, phone,
			role, status, email_verified, email_verification_token,
			email_verification_expires, two_factor_enabled, preferences,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone,
		u.Role, u.Status, u.EmailVerified, u.EmailVerificationToken,
		u.EmailVerificationExpires, u.TwoFactorEnabled, u.Preferences,
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create user: %w", types.ErrConflict)
		}
		return fmt.Errorf("create user: db insert failed: %w", err)
	}
	return nil
}

// UpdateUser persists every mutable field of the record. Counter updates
// are read-modify-write by design; see AccountGuard.
func (r *PostgresUserStore) UpdateUser(ctx context.Context, u *types.User) error {
	u.UpdatedAt = time.Now()
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET
			email = $2, password_hash = $3, first_name = $4, last_name = $5,
			phone = $6, role = $7, status = $8, email_verified = $9,
			failed_login_attempts = $10, locked_until = $11, last_login = $12,
			login_count = $13, email_verification_token = $14,
			email_verification_expires = $15, reset_password_token = $16,
			reset_password_expires = $17, two_factor_enabled = $18,
			totp_secret = $19, preferences = $20, updated_at = $21
		 WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.Phone, u.Role, u.Status, u.EmailVerified,
		u.FailedLoginAttempts, u.LockedUntil, u.LastLogin,
		u.LoginCount, u.EmailVerificationToken,
		u.EmailVerificationExpires, u.ResetPasswordToken,
		u.ResetPasswordExpires, u.TwoFactorEnabled,
		u.TOTPSecret, u.Preferences, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresUserStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: db delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresUserStore) ListUsers(ctx context.Context, limit, offset int) ([]types.User, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: query failed: %w", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: rows: %w", err)
	}
	return users, nil
}

func (r *PostgresUserStore) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role IN ($1, $2)`,
		types.RoleAdmin, types.RoleSuperAdmin).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: query failed: %w", err)
	}
	return count, nil
}

// ReplaceBackupCodes drops the user's existing recovery codes and stores the
// new hashed set.
func (r *PostgresUserStore) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codeHashes []string) error {
	_, err := r.pgpool.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("replace backup codes: delete failed: %w", err)
	}
	for _, h := range codeHashes {
		_, err = r.pgpool.Exec(ctx,
			`INSERT INTO backup_codes (user_id, code_hash, created_at) VALUES ($1, $2, $3)`,
			userID, h, time.Now())
		if err != nil {
			return fmt.Errorf("replace backup codes: insert failed: %w", err)
		}
	}
	return nil
}

// ConsumeBackupCode marks a recovery code as used. The conditional UPDATE
// makes consumption single-use even under concurrent verification attempts.
func (r *PostgresUserStore) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error) {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE backup_codes SET used_at = $1
		 WHERE user_id = $2 AND code_hash = $3 AND used_at IS NULL`,
		time.Now(), userID, codeHash)
	if err != nil {
		return false, fmt.Errorf("consume backup code: db update failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
