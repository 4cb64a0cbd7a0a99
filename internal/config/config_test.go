package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OTP_EXPIRY", "")
	t.Setenv("KV_BACKEND", "")
	cfg := Load()
	assert.Equal(t, 10*time.Minute, cfg.OTPExpiry)
	assert.Equal(t, 24*time.Hour, cfg.PendingRegistrationTTL)
	assert.Equal(t, "memory", cfg.KVBackend)
	assert.False(t, cfg.ResetRequireAuthorization)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OTP_EXPIRY", "90s")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("RESET_REQUIRE_AUTHORIZATION", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.OTPExpiry)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.True(t, cfg.ResetRequireAuthorization)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("OTP_EXPIRY", "ten minutes")
	t.Setenv("REDIS_DB", "x")
	cfg := Load()
	assert.Equal(t, 10*time.Minute, cfg.OTPExpiry)
	assert.Equal(t, 0, cfg.RedisDB)
}
