package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Env:     EnvLocal,
			Punch:   Punch{DedupWindow: 2 * time.Minute},
			Devices: Devices{EnrollmentKey: "k", TokenTTL: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		wantKey string
	}{
		{name: "valid", mutate: func(c *Config) {}, wantKey: "k"},
		{name: "dev key outside prod", mutate: func(c *Config) { c.Devices.EnrollmentKey = "" }, wantKey: DevEnrollmentKey},
		{name: "prod without key", mutate: func(c *Config) { c.Env = EnvProd; c.Devices.EnrollmentKey = "" }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.Punch.DedupWindow = 0 }, wantErr: true},
		{name: "negative ttl", mutate: func(c *Config) { c.Devices.TokenTTL = -time.Hour }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, cfg.Devices.EnrollmentKey)
		})
	}
}

func TestMustLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URI", "")
	t.Setenv("ENROLLMENT_KEY", "")
	t.Setenv("APP_ENV", EnvLocal)

	cfg := MustLoad()

	assert.Equal(t, ":8080", cfg.Server.RunAddress)
	assert.Equal(t, 2*time.Minute, cfg.Punch.DedupWindow)
	assert.Equal(t, DevEnrollmentKey, cfg.Devices.EnrollmentKey)
	assert.True(t, cfg.InMemory())
}
