package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "clinic-dev")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, StoreFirestore, cfg.StoreBackend)
	assert.Equal(t, "diagnostics:permission", cfg.DiagnosticsStream)
	assert.EqualValues(t, 1000, cfg.DiagnosticsMaxLen)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.False(t, cfg.MailEnabled())
	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "clinic-prod")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("PORT", "9090")
	t.Setenv("BOOTSTRAP_ADMIN_UID", "root-uid")
	t.Setenv("DIAGNOSTICS_MAX_LEN", "50")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USERNAME", "mailer")
	t.Setenv("CLINIC_INBOX", "front-desk@example.com")
	t.Setenv("CLINIC_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, "root-uid", cfg.BootstrapAdminUID)
	assert.EqualValues(t, 50, cfg.DiagnosticsMaxLen)
	assert.True(t, cfg.MailEnabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing project",
			env:  map[string]string{"FIREBASE_PROJECT_ID": ""},
			want: "FIREBASE_PROJECT_ID is required",
		},
		{
			name: "unknown backend",
			env:  map[string]string{"FIREBASE_PROJECT_ID": "p", "STORE_BACKEND": "mongo"},
			want: "STORE_BACKEND must be",
		},
		{
			name: "bad timezone",
			env:  map[string]string{"FIREBASE_PROJECT_ID": "p", "CLINIC_TIMEZONE": "Mars/Olympus"},
			want: "CLINIC_TIMEZONE is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
