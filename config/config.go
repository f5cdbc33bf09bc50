package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
		Redis struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
			Enabled  bool   `mapstructure:"enabled"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	JWT  JWTConfig  `mapstructure:"jwt"`
	Auth AuthConfig `mapstructure:"auth"`
	MFA  MFAConfig  `mapstructure:"mfa"`
}

// JWTConfig holds the two independent signing contexts for access and
// refresh tokens. Secrets have no defaults: Validate refuses to start the
// service when either is unset.
type JWTConfig struct {
	AccessSecret    string        `mapstructure:"accessSecret"`
	RefreshSecret   string        `mapstructure:"refreshSecret"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
}

// AuthConfig tunes the credential hasher and the account guard.
type AuthConfig struct {
	BcryptCost             int           `mapstructure:"bcryptCost"`
	MaxFailedLogins        int           `mapstructure:"maxFailedLogins"`
	LockoutDuration        time.Duration `mapstructure:"lockoutDuration"`
	VerificationTokenTTL   time.Duration `mapstructure:"verificationTokenTTL"`
	ResetTokenTTL          time.Duration `mapstructure:"resetTokenTTL"`
	LoginRateLimit         int           `mapstructure:"loginRateLimit"`
	LoginRateLimitInterval time.Duration `mapstructure:"loginRateLimitInterval"`
}

// MFAConfig tunes the multi-factor challenge manager.
type MFAConfig struct {
	ChallengeTTL   time.Duration `mapstructure:"challengeTTL"`
	CodeTTL        time.Duration `mapstructure:"codeTTL"`
	ResendCooldown time.Duration `mapstructure:"resendCooldown"`
	MaxAttempts    int           `mapstructure:"maxAttempts"`
	TOTPIssuer     string        `mapstructure:"totpIssuer"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets are only accepted from the environment, never from the
	// checked-in config file.
	v.SetEnvPrefix("TOURISM")
	_ = v.BindEnv("jwt.accessSecret", "TOURISM_JWT_ACCESS_SECRET")
	_ = v.BindEnv("jwt.refreshSecret", "TOURISM_JWT_REFRESH_SECRET")
	_ = v.BindEnv("repositories.postgres.password", "TOURISM_POSTGRES_PASSWORD")
	_ = v.BindEnv("repositories.redis.password", "TOURISM_REDIS_PASSWORD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWT.AccessTokenTTL == 0 {
		cfg.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.JWT.RefreshTokenTTL == 0 {
		cfg.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 12
	}
	if cfg.Auth.MaxFailedLogins == 0 {
		cfg.Auth.MaxFailedLogins = 5
	}
	if cfg.Auth.LockoutDuration == 0 {
		cfg.Auth.LockoutDuration = 30 * time.Minute
	}
	if cfg.Auth.VerificationTokenTTL == 0 {
		cfg.Auth.VerificationTokenTTL = 24 * time.Hour
	}
	if cfg.Auth.ResetTokenTTL == 0 {
		cfg.Auth.ResetTokenTTL = time.Hour
	}
	if cfg.Auth.LoginRateLimit == 0 {
		cfg.Auth.LoginRateLimit = 20
	}
	if cfg.Auth.LoginRateLimitInterval == 0 {
		cfg.Auth.LoginRateLimitInterval = time.Minute
	}
	if cfg.MFA.ChallengeTTL == 0 {
		cfg.MFA.ChallengeTTL = 10 * time.Minute
	}
	if cfg.MFA.CodeTTL == 0 {
		cfg.MFA.CodeTTL = 10 * time.Minute
	}
	if cfg.MFA.ResendCooldown == 0 {
		cfg.MFA.ResendCooldown = 60 * time.Second
	}
	if cfg.MFA.MaxAttempts == 0 {
		cfg.MFA.MaxAttempts = 5
	}
	if cfg.MFA.TOTPIssuer == "" {
		cfg.MFA.TOTPIssuer = "WanderTrails"
	}
}

// Validate enforces the fail-fast policy for required secrets. A missing JWT
// secret must never silently default to a well-known value.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" {
		return errors.New("config: TOURISM_JWT_ACCESS_SECRET is required")
	}
	if c.JWT.RefreshSecret == "" {
		return errors.New("config: TOURISM_JWT_REFRESH_SECRET is required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.Auth.BcryptCost < 12 {
		return fmt.Errorf("config: bcrypt cost %d below minimum of 12", c.Auth.BcryptCost)
	}
	return nil
}
