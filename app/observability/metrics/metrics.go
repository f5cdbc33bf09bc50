package metrics

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	LoginAttemptsTotal    metric.Int64Counter
	LockoutsTotal         metric.Int64Counter
	RegistrationsTotal    metric.Int64Counter
	TokenRefreshesTotal   metric.Int64Counter
	MFAVerificationsTotal metric.Int64Counter
	MFACodesSentTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("wandertrails-api")
		var err error
		m := &AppMetrics{}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"login_attempts_total",
			metric.WithDescription("Total number of login attempts by outcome"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_attempts_total: %v", err)
		}

		m.LockoutsTotal, err = meter.Int64Counter(
			"account_lockouts_total",
			metric.WithDescription("Total number of accounts locked after repeated failures"),
			metric.WithUnit("{lockout}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create account_lockouts_total: %v", err)
		}

		m.RegistrationsTotal, err = meter.Int64Counter(
			"registrations_total",
			metric.WithDescription("Total number of completed registrations"),
			metric.WithUnit("{registration}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create registrations_total: %v", err)
		}

		m.TokenRefreshesTotal, err = meter.Int64Counter(
			"token_refreshes_total",
			metric.WithDescription("Total number of successful token refreshes"),
			metric.WithUnit("{refresh}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create token_refreshes_total: %v", err)
		}

		m.MFAVerificationsTotal, err = meter.Int64Counter(
			"mfa_verifications_total",
			metric.WithDescription("Total number of MFA verification attempts by outcome"),
			metric.WithUnit("{verification}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create mfa_verifications_total: %v", err)
		}

		m.MFACodesSentTotal, err = meter.Int64Counter(
			"mfa_codes_sent_total",
			metric.WithDescription("Total number of one-time codes dispatched by channel"),
			metric.WithUnit("{code}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create mfa_codes_sent_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, or nil when
// InitAppMetrics has not run (tests). All Count helpers are nil-safe.
func Get() *AppMetrics {
	return appMetrics
}

// CountLogin records a login attempt with its outcome
// (success, invalid_credentials, locked, inactive, mfa_pending).
func (m *AppMetrics) CountLogin(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// CountLockout records an account entering lockout.
func (m *AppMetrics) CountLockout(ctx context.Context) {
	if m == nil {
		return
	}
	m.LockoutsTotal.Add(ctx, 1)
}

// CountRegistration records a completed registration.
func (m *AppMetrics) CountRegistration(ctx context.Context) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.Add(ctx, 1)
}

// CountRefresh records a successful token refresh.
func (m *AppMetrics) CountRefresh(ctx context.Context) {
	if m == nil {
		return
	}
	m.TokenRefreshesTotal.Add(ctx, 1)
}

// CountMFAVerification records an MFA verification attempt outcome.
func (m *AppMetrics) CountMFAVerification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.MFAVerificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// CountMFACodeSent records a one-time code dispatch on a channel.
func (m *AppMetrics) CountMFACodeSent(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.MFACodesSentTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}
