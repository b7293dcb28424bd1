package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-auth/internal/config"
	"creator-auth/internal/notify"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Auth: config.AuthConfig{
			OTPSecret:         "otp-secret",
			SessionSecret:     "session-secret",
			OTPTTL:            10 * time.Minute,
			SessionTTL:        time.Hour,
			ResendInterval:    time.Minute,
			MaxVerifyAttempts: 5,
			SessionIssuer:     "creator-auth",
			CookieName:        "creator_session",
		},
		DevOTP: config.DevOTPConfig{Window: time.Minute},
		Store:  config.StoreConfig{Backend: "memory"},
	}
}

func TestNewFactoryWithMemoryBackend(t *testing.T) {
	f, err := NewFactory(memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.IsType(t, notify.LogSender{}, f.sender)
	assert.Nil(t, f.TLSManager())
	assert.Empty(t, f.HealthCheck(context.Background()))

	svc, err := f.ServiceFactory().AuthService()
	require.NoError(t, err)
	assert.True(t, svc.DevOTPEnabled())
}

func TestNewFactoryRejectsUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Backend = "postgres"

	_, err := NewFactory(cfg)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestNewFactoryRequiresSessionSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.SessionSecret = ""

	_, err := NewFactory(cfg)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
