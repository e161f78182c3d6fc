// ABOUTME: Tests for configuration loading
// ABOUTME: Covers YAML parsing, env var expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes the given YAML content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/sparkpit/sparkpit.db
auth:
  jwt_secret: jwt-secret-value
  bot_master_secret: master-secret-value
handshake:
  challenge_ttl: 5m
  credential_ttl: 168h
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/sparkpit/sparkpit.db", cfg.Database.Path)
	assert.Equal(t, "jwt-secret-value", cfg.Auth.JWTSecret)
	assert.Equal(t, "master-secret-value", cfg.Auth.MasterSecret)
	assert.Equal(t, 5*time.Minute, cfg.Handshake.ChallengeTTL)
	assert.Equal(t, 168*time.Hour, cfg.Handshake.CredentialTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "expanded-jwt")
	t.Setenv("TEST_MASTER_SECRET", "expanded-master")

	path := writeConfig(t, `
database:
  path: test.db
auth:
  jwt_secret: ${TEST_JWT_SECRET}
  bot_master_secret: ${TEST_MASTER_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, "expanded-master", cfg.Auth.MasterSecret)
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	path := writeConfig(t, `
database:
  path: test.db
auth:
  jwt_secret: ${DEFINITELY_NOT_SET_VAR}
  bot_master_secret: master
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoad_DefaultsWhenDurationsOmitted(t *testing.T) {
	path := writeConfig(t, `
database:
  path: test.db
auth:
  jwt_secret: jwt
  bot_master_secret: master
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	// Zero values; the service substitutes its own defaults
	assert.Equal(t, time.Duration(0), cfg.Handshake.ChallengeTTL)
	assert.Equal(t, time.Duration(0), cfg.Handshake.CredentialTTL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  path: test.db
auth:
  jwt_secret: jwt
  bot_master_secret: master
handshake:
  challenge_ttl: not-a-duration
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "challenge_ttl")
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing database path",
			content: `
auth:
  jwt_secret: jwt
  bot_master_secret: master
`,
			wantErr: "database.path",
		},
		{
			name: "missing jwt secret",
			content: `
database:
  path: test.db
auth:
  bot_master_secret: master
`,
			wantErr: "jwt_secret",
		},
		{
			name: "missing master secret",
			content: `
database:
  path: test.db
auth:
  jwt_secret: jwt
`,
			wantErr: "bot_master_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
