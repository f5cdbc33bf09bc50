package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wandertrails/tourism-api/config"
	"github.com/wandertrails/tourism-api/internal/types"
)

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It intentionally carries
// only the user id.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens against two
// independent secrets. Verification fails closed: any parse, signature, or
// expiry problem yields nil, never an error the caller could branch on.
type TokenService struct {
	cfg    config.JWTConfig
	logger *slog.Logger
}

// NewTokenService builds a TokenService from validated configuration.
func NewTokenService(cfg config.JWTConfig, logger *slog.Logger) *TokenService {
	return &TokenService{cfg: cfg, logger: logger}
}

// AccessTTL exposes the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.cfg.AccessTokenTTL
}

// IssueAccess signs an access token carrying {userId, email, role}.
func (s *TokenService) IssueAccess(userID uuid.UUID, email string, role types.Role) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID.String(),
		Email:  email,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefresh signs a refresh token carrying only {userId}.
func (s *TokenService) IssueRefresh(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccess parses and validates an access token. Nil means
// unauthenticated, whatever the underlying cause.
func (s *TokenService) VerifyAccess(tokenString string) *AccessClaims {
	claims := &AccessClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.AccessSecret), nil
	}, opts...)
	if err != nil || !token.Valid || claims.UserID == "" {
		if err != nil {
			s.logger.Debug("Access token rejected", slog.Any("error", err))
		}
		return nil
	}
	return claims
}

// VerifyRefresh parses and validates a refresh token, returning nil on any
// failure.
func (s *TokenService) VerifyRefresh(tokenString string) *RefreshClaims {
	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.RefreshSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		if err != nil {
			s.logger.Debug("Refresh token rejected", slog.Any("error", err))
		}
		return nil
	}
	return claims
}
