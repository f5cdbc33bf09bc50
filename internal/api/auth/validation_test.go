package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEmail(t *testing.T) {
	valid := []string{
		"tourist@example.com",
		"first.last@sub.domain.co",
		"x@y.io",
	}
	for _, email := range valid {
		assert.True(t, ValidEmail(email), email)
	}

	invalid := []string{
		"",
		"no-at-sign.com",
		"two@@example.com",
		"spaces in@example.com",
		"missing-tld@example",
		"@example.com",
	}
	for _, email := range invalid {
		assert.False(t, ValidEmail(email), email)
	}
}

func TestValidatePassword(t *testing.T) {
	t.Run("AcceptsStrongPassword", func(t *testing.T) {
		assert.Empty(t, ValidatePassword("Sup3r$ecret"))
	})

	t.Run("ReportsEveryFailingRule", func(t *testing.T) {
		failures := ValidatePassword("abc")

		assert.Len(t, failures, 4)
		assert.Contains(t, failures, "password must be at least 8 characters long")
		assert.Contains(t, failures, "password must contain at least one uppercase letter")
		assert.Contains(t, failures, "password must contain at least one digit")
		assert.Contains(t, failures, "password must contain at least one symbol")
	})

	t.Run("SingleMissingRule", func(t *testing.T) {
		failures := ValidatePassword("Sup3rSecret")

		assert.Equal(t, []string{"password must contain at least one symbol"}, failures)
	})

	t.Run("MissingLowercase", func(t *testing.T) {
		failures := ValidatePassword("SUP3R$ECRET")

		assert.Equal(t, []string{"password must contain at least one lowercase letter"}, failures)
	})
}
