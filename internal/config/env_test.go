package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line    string
		key     string
		value   string
		ok      bool
		wantErr bool
	}{
		{line: "GROQ_API_KEY=gsk_123", key: "GROQ_API_KEY", value: "gsk_123", ok: true},
		{line: `JWT_SECRET="two words"`, key: "JWT_SECRET", value: "two words", ok: true},
		{line: "JWT_SECRET='single'", key: "JWT_SECRET", value: "single", ok: true},
		{line: "export MEDTRACK_LOG_LEVEL=debug", key: "MEDTRACK_LOG_LEVEL", value: "debug", ok: true},
		{line: "EMPTY=", key: "EMPTY", value: "", ok: true},
		{line: `HALF="open`, key: "HALF", value: `"open`, ok: true},
		{line: "   "},
		{line: "# comment"},
		{line: "no equals sign", wantErr: true},
		{line: "=value", wantErr: true},
		{line: "TWO WORDS=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			key, value, ok, err := parseEnvLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	content := "# medtrack\nMEDTRACK_TEST_A=from-file\nexport MEDTRACK_TEST_B='kept?'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0644))

	os.Unsetenv("MEDTRACK_TEST_A")
	t.Cleanup(func() { os.Unsetenv("MEDTRACK_TEST_A") })
	t.Setenv("MEDTRACK_TEST_B", "from-env")

	require.NoError(t, LoadEnvFiles(dir))
	assert.Equal(t, "from-file", os.Getenv("MEDTRACK_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("MEDTRACK_TEST_B"), "existing variables win")
}

func TestLoadEnvFiles_Malformed(t *testing.T) {
	dir := t.TempDir()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OK=1\nbroken line\n"), 0644))

	err := LoadEnvFiles(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env:2")
}

func TestApplyEnvAliases(t *testing.T) {
	for _, a := range envAliases {
		for _, name := range a.names {
			t.Setenv(name, "")
		}
	}

	cfg := &Config{}
	cfg.Security.JWTSecret = "from-file"
	applyEnvAliases(cfg)
	assert.Equal(t, "from-file", cfg.Security.JWTSecret, "unset env leaves the file value")

	t.Setenv("GEMINI_API_KEY", "gemini")
	t.Setenv("JWT_SECRET", "short-name")
	applyEnvAliases(cfg)
	assert.Equal(t, "gemini", cfg.Insights.APIKey)
	assert.Equal(t, "short-name", cfg.Security.JWTSecret)

	t.Setenv("GROQ_API_KEY", "groq")
	t.Setenv("MEDTRACK_SECURITY_JWT_SECRET", "canonical")
	applyEnvAliases(cfg)
	assert.Equal(t, "groq", cfg.Insights.APIKey, "earlier names take priority")
	assert.Equal(t, "canonical", cfg.Security.JWTSecret)
}

func TestDataDir(t *testing.T) {
	t.Setenv("MEDTRACK_STORAGE_DATA_DIR", "")
	t.Setenv("MEDTRACK_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "/xdg")

	assert.Equal(t, "/flag", DataDir("/flag"))
	assert.Equal(t, filepath.Join("/xdg", "medtrack"), DataDir(""))

	t.Setenv("MEDTRACK_DATA_DIR", "/short")
	assert.Equal(t, "/short", DataDir(""))
	t.Setenv("MEDTRACK_STORAGE_DATA_DIR", "/long")
	assert.Equal(t, "/long", DataDir(""))
}

func TestRequireJWTSecret(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireJWTSecret()
	require.Error(t, err)

	var missingErr *MissingSettingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "security.jwt_secret", missingErr.Setting)
	assert.Contains(t, missingErr.EnvKeys, "JWT_SECRET")
	assert.Contains(t, err.Error(), "MEDTRACK_SECURITY_JWT_SECRET")

	cfg.Security.JWTSecret = "s3cret"
	assert.NoError(t, cfg.RequireJWTSecret())
}

func TestMissingSettingError_NoAliases(t *testing.T) {
	err := missing("server.port")
	assert.Empty(t, err.EnvKeys)
	assert.Equal(t, "server.port is not set", err.Error())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
