// Package config resolves learnsync's runtime settings from defaults, an
// optional config file, an optional .env file and LEARNSYNC_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"learnsync/internal/gateway"
)

const EnvPrefix = "LEARNSYNC"

const (
	SecureKeyring = "keyring"
	SecureFile    = "file"
)

type Config struct {
	// Dir is the config directory everything else defaults under.
	Dir     string
	DataDir string

	LogFile  string
	LogLevel string

	IDBase        string
	LearnBase     string
	RoamingPrefix string

	SSOTimeout    time.Duration
	SSOHeadless   bool
	SSODeviceName string

	SecureBackend    string
	SecurePassphrase string

	PersistDebounce  time.Duration
	FetchConcurrency int
	HTTPTimeout      time.Duration
}

func (c *Config) DBPath() string     { return filepath.Join(c.DataDir, "state.sqlite") }
func (c *Config) SealedPath() string { return filepath.Join(c.DataDir, "secrets.sealed") }

// Dir returns the config directory. LEARNSYNC_CONFIG_DIR overrides the
// default ~/.learnsync.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".learnsync"), nil
}

// Load reads configuration rooted at dir, or at Dir() when dir is empty.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		d, err := Dir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("dataDir", dir)
	v.SetDefault("log.file", filepath.Join(dir, "learnsync.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("portal.idBase", gateway.DefaultIDBase)
	v.SetDefault("portal.learnBase", gateway.DefaultLearnBase)
	v.SetDefault("portal.roamingPrefix", "")
	v.SetDefault("sso.timeout", 3*time.Minute)
	v.SetDefault("sso.headless", false)
	v.SetDefault("sso.deviceName", "learnsync")
	v.SetDefault("secure.backend", SecureKeyring)
	v.SetDefault("secure.passphrase", "")
	v.SetDefault("persist.debounce", 500*time.Millisecond)
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("http.timeout", 30*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", dotEnvPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: stat %s: %w", dotEnvPath, err)
	}
	v.AutomaticEnv()

	cfgPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgPath, err)
		}
	}

	cfg := &Config{
		Dir:              dir,
		DataDir:          v.GetString("dataDir"),
		LogFile:          v.GetString("log.file"),
		LogLevel:         v.GetString("log.level"),
		IDBase:           v.GetString("portal.idBase"),
		LearnBase:        v.GetString("portal.learnBase"),
		RoamingPrefix:    v.GetString("portal.roamingPrefix"),
		SSOTimeout:       v.GetDuration("sso.timeout"),
		SSOHeadless:      v.GetBool("sso.headless"),
		SSODeviceName:    v.GetString("sso.deviceName"),
		SecureBackend:    strings.ToLower(v.GetString("secure.backend")),
		SecurePassphrase: v.GetString("secure.passphrase"),
		PersistDebounce:  v.GetDuration("persist.debounce"),
		FetchConcurrency: v.GetInt("fetch.concurrency"),
		HTTPTimeout:      v.GetDuration("http.timeout"),
	}
	if cfg.RoamingPrefix == "" {
		cfg.RoamingPrefix = strings.TrimRight(cfg.LearnBase, "/") + gateway.RoamingPath
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SecureBackend {
	case SecureKeyring:
	case SecureFile:
		if c.SecurePassphrase == "" {
			return errors.New("config: secure.backend=file needs secure.passphrase")
		}
	default:
		return fmt.Errorf("config: unknown secure.backend %q (want keyring or file)", c.SecureBackend)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("config: fetch.concurrency must be positive, got %d", c.FetchConcurrency)
	}
	if c.SSOTimeout <= 0 {
		return fmt.Errorf("config: sso.timeout must be positive, got %s", c.SSOTimeout)
	}
	return nil
}
