package registration

import (
	"testing"
	"time"

	"github.com/store-rating-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOTPEmail_Registration(t *testing.T) {
	subject, body, err := renderOTPEmail(domain.PurposeRegistration, "123456", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Your OTP Code for Registration", subject)
	assert.Contains(t, body, "<strong>123456</strong>")
	assert.Contains(t, body, "10 minutes")
}

func TestRenderOTPEmail_PasswordReset(t *testing.T) {
	subject, body, err := renderOTPEmail(domain.PurposePasswordReset, "654321", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Password Reset OTP Code", subject)
	assert.Contains(t, body, "654321")
	assert.Contains(t, body, "ignore this email")
}

func TestRenderOTPEmail_UnknownPurpose(t *testing.T) {
	_, _, err := renderOTPEmail(domain.OTPPurpose("other"), "1", time.Minute)
	assert.Error(t, err)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "1 minute", humanize(time.Minute))
	assert.Equal(t, "15 minutes", humanize(15*time.Minute))
	assert.Equal(t, "1m30s", humanize(90*time.Second))
}
