package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PLATFORM_ACCOUNT_ID", "")
	t.Setenv("DEFAULT_COMMISSION_PERCENT", "")
	t.Setenv("ORDER_COOLDOWN_SECONDS", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Business.DefaultCommissionPercent.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 10*time.Second, cfg.Business.OrderCooldown)
	assert.Equal(t, 5, cfg.Business.LowStockThreshold)
	assert.Equal(t, 6, cfg.Business.OTPLength)
	assert.Equal(t, "order-events", cfg.Kafka.TopicOrderEvents)
	assert.Equal(t, "notifications", cfg.Kafka.TopicNotifications)
	assert.Equal(t, "file://migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, 1.0, cfg.Observ.TraceSampleRatio)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PLATFORM_ACCOUNT_ID", "0b7e0f5e-admin")
	t.Setenv("DEFAULT_COMMISSION_PERCENT", "7.5")
	t.Setenv("ORDER_COOLDOWN_SECONDS", "30")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	cfg := Load()

	assert.Equal(t, "0b7e0f5e-admin", cfg.Business.PlatformAccountID)
	assert.True(t, cfg.Business.DefaultCommissionPercent.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, 30*time.Second, cfg.Business.OrderCooldown)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.25, cfg.Observ.TraceSampleRatio)
}

func TestLoad_InvalidCommissionFallsBack(t *testing.T) {
	t.Setenv("DEFAULT_COMMISSION_PERCENT", "five")

	cfg := Load()
	assert.True(t, cfg.Business.DefaultCommissionPercent.Equal(decimal.NewFromInt(5)))
}

func TestLoad_OutOfRangeCommissionFallsBack(t *testing.T) {
	for _, v := range []string{"150", "-5", "100.01"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("DEFAULT_COMMISSION_PERCENT", v)

			cfg := Load()
			assert.True(t, cfg.Business.DefaultCommissionPercent.Equal(decimal.NewFromInt(5)))
		})
	}
}

func TestParseCommission(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0", want: "0"},
		{in: "12.5", want: "12.5"},
		{in: "100", want: "100"},
		{in: "100.5", wantErr: true},
		{in: "-0.01", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCommission(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)))
		})
	}
}
