package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr)
	assert.Equal(t, "@every 1m", cfg.SweepSchedule)
	assert.Equal(t, 30*time.Minute, cfg.ConversationTTL)
	assert.Empty(t, cfg.DatabaseURI)

	rate, err := cfg.BonusRate()
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.1")))

	minimum, err := cfg.MinWithdrawAmount()
	require.NoError(t, err)
	assert.True(t, minimum.Equal(decimal.NewFromInt(5)))

	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestNewConfigEnvOverridesFlags(t *testing.T) {
	t.Setenv("RUN_ADDRESS", "127.0.0.1:9000")
	t.Setenv("MIN_WITHDRAW", "10.5")
	t.Setenv("TELEGRAM_ADMIN_IDS", "11, 22,")
	t.Setenv("CONVERSATION_TTL", "5m")

	cfg, err := NewConfig([]string{"-a", "0.0.0.0:1234", "-sweep", "@every 10s"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ServerAddr)
	assert.Equal(t, "@every 10s", cfg.SweepSchedule)
	assert.Equal(t, 5*time.Minute, cfg.ConversationTTL)

	minimum, err := cfg.MinWithdrawAmount()
	require.NoError(t, err)
	assert.True(t, minimum.Equal(decimal.RequireFromString("10.5")))

	ids, err := cfg.AdminIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 22}, ids)
}

func TestNewConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bonus rate", key: "REFERRAL_BONUS_PERCENT", val: "ten"},
		{name: "min withdraw", key: "MIN_WITHDRAW", val: "x"},
		{name: "admin ids", key: "TELEGRAM_ADMIN_IDS", val: "1,two"},
		{name: "rate limit", key: "TELEGRAM_RATE_LIMIT", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := NewConfig(nil)
			require.Error(t, err)
		})
	}
}
