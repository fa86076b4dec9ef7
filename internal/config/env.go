package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// envAlias lists the variables that can supply one setting, highest
// priority first. The MEDTRACK_ name leads; the rest are the names people
// already export for other tools.
type envAlias struct {
	setting string
	names   []string
	apply   func(*Config, string)
}

var envAliases = []envAlias{
	{
		setting: "insights.api_key",
		names:   []string{"MEDTRACK_INSIGHTS_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"},
		apply:   func(c *Config, v string) { c.Insights.APIKey = v },
	},
	{
		setting: "security.jwt_secret",
		names:   []string{"MEDTRACK_SECURITY_JWT_SECRET", "MEDTRACK_JWT_SECRET", "JWT_SECRET"},
		apply:   func(c *Config, v string) { c.Security.JWTSecret = v },
	},
}

var dataDirNames = []string{"MEDTRACK_STORAGE_DATA_DIR", "MEDTRACK_DATA_DIR"}

// applyEnvAliases lets the environment override secrets from the file.
// viper only binds env for keys it has defaults for, and secrets have none.
func applyEnvAliases(cfg *Config) {
	for _, a := range envAliases {
		if v := firstEnv(a.names); v != "" {
			a.apply(cfg, v)
		}
	}
}

func firstEnv(names []string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// DataDir resolves the data directory: the -data flag, then the env, then
// the XDG default.
func DataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := firstEnv(dataDirNames); v != "" {
		return v
	}
	return getDefaultDataDir()
}

// MissingSettingError is returned when a command needs a setting that
// neither the config file nor the environment provides.
type MissingSettingError struct {
	Setting string
	EnvKeys []string
}

func (e *MissingSettingError) Error() string {
	if len(e.EnvKeys) == 0 {
		return e.Setting + " is not set"
	}
	return fmt.Sprintf("%s is not set (config file or %s)", e.Setting, strings.Join(e.EnvKeys, ", "))
}

func missing(setting string) *MissingSettingError {
	err := &MissingSettingError{Setting: setting}
	for _, a := range envAliases {
		if a.setting == setting {
			err.EnvKeys = a.names
		}
	}
	return err
}

// RequireJWTSecret fails when no token secret is configured. An empty
// secret would make every HS256 token signed with "" valid.
func (c *Config) RequireJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return missing("security.jwt_secret")
	}
	return nil
}

// envFiles lists the .env files read at startup, nearest first.
func envFiles(dataDir string) []string {
	files := []string{".env"}
	if dataDir != "" {
		files = append(files, filepath.Join(dataDir, ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".config", "medtrack", ".env"))
	}
	return files
}

// LoadEnvFiles exports the variables of every .env file found. Variables
// already in the environment are never replaced, so an earlier file wins
// over a later one.
func LoadEnvFiles(dataDir string) error {
	for _, path := range envFiles(dataDir) {
		vars, err := readEnvFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		for key, value := range vars {
			if _, set := os.LookupEnv(key); !set {
				os.Setenv(key, value)
			}
		}
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		key, value, ok, err := parseEnvLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		if ok {
			vars[key] = value
		}
	}
	return vars, scanner.Err()
}

// parseEnvLine reads KEY=value with an optional "export " prefix and
// matching quotes around the value. Blank lines and comments yield ok=false.
func parseEnvLine(line string) (key, value string, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false, nil
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false, errors.New("expected KEY=value")
	}

	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		if q := value[0]; (q == '"' || q == '\'') && value[len(value)-1] == q {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, true, nil
}
