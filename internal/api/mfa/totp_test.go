package mfa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// rfcSecret is the base32 encoding of the RFC 4226/6238 test key
// "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestVerifyTOTP(t *testing.T) {
	// At t=59s the time counter is 1; HOTP(1) for the RFC test key is 287082.
	at := time.Unix(59, 0)

	t.Run("AcceptsCurrentStep", func(t *testing.T) {
		ok, err := VerifyTOTP(rfcSecret, "287082", at)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AcceptsPreviousStepWithinSkew", func(t *testing.T) {
		// HOTP(0) = 755224
		ok, err := VerifyTOTP(rfcSecret, "755224", at)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AcceptsNextStepWithinSkew", func(t *testing.T) {
		// HOTP(2) = 359152
		ok, err := VerifyTOTP(rfcSecret, "359152", at)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RejectsStepOutsideSkew", func(t *testing.T) {
		// HOTP(3) = 969429, two steps ahead of the counter at t=59s.
		ok, err := VerifyTOTP(rfcSecret, "969429", at)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RejectsWrongCode", func(t *testing.T) {
		ok, err := VerifyTOTP(rfcSecret, "000000", at)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RejectsMalformedCodes", func(t *testing.T) {
		for _, code := range []string{"", "28708", "2870822", "28708a", "abc def"} {
			ok, err := VerifyTOTP(rfcSecret, code, at)
			assert.NoError(t, err, code)
			assert.False(t, ok, code)
		}
	})

	t.Run("AcceptsSurroundingWhitespace", func(t *testing.T) {
		ok, err := VerifyTOTP(rfcSecret, " 287082 ", at)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ToleratesPaddedLowercaseSecret", func(t *testing.T) {
		ok, err := VerifyTOTP("gezdgnbvgy3tqojqgezdgnbvgy3tqojq====", "287082", at)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("InvalidSecretErrors", func(t *testing.T) {
		_, err := VerifyTOTP("not base32 !!!", "287082", at)
		assert.Error(t, err)
	})
}
