package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	for _, tt := range []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "Postgres",
			cfg:  Config{Storage: StoragePostgres, DatabaseURL: "postgres://localhost/cart"},
		},
		{
			name:    "PostgresWithoutURL",
			cfg:     Config{Storage: StoragePostgres},
			wantErr: "database URL is required",
		},
		{
			name: "Memory",
			cfg:  Config{Storage: StorageMemory, Report: ReportConfig{Timezone: "Europe/Berlin"}},
		},
		{
			name:    "UnknownStorage",
			cfg:     Config{Storage: "sqlite"},
			wantErr: `unknown storage "sqlite"`,
		},
		{
			name:    "BadTimezone",
			cfg:     Config{Storage: StorageMemory, Report: ReportConfig{Timezone: "Mars/Olympus"}},
			wantErr: `report timezone "Mars/Olympus"`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReportConfig_Location(t *testing.T) {
	loc, err := ReportConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = ReportConfig{Timezone: "Asia/Tokyo"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/cart")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/cart", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	// Explicit settings win.
	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/cart"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/cart", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
