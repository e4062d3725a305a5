package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/verte-zerg/parkdash/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. PARKDASH_API_URL.
const EnvPrefix = "PARKDASH_"

// Defaults.
const (
	DefaultAPIURL         = "http://localhost:5000"
	DefaultTimeout        = 15 * time.Second
	DefaultCollectTimeout = 30 * time.Second
	DefaultLogLevel       = "info"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Settings is the resolved configuration.
type Settings struct {
	APIURL         string
	CollectURL     string
	Timeout        time.Duration
	CollectTimeout time.Duration
	LogLevel       string
	LogFile        string
	MetricsAddr    string
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		APIURL:         DefaultAPIURL,
		Timeout:        DefaultTimeout,
		CollectTimeout: DefaultCollectTimeout,
		LogLevel:       DefaultLogLevel,
	}
}

// Resolve layers defaults, the TOML file at path and PARKDASH_* environment
// variables, in that order. CLI flags are applied by the caller afterwards.
func Resolve(path string) (Settings, error) {
	s := Defaults()
	fileCfg, err := LoadConfig(path)
	if err != nil {
		return Settings{}, err
	}
	if err := s.applyFile(fileCfg); err != nil {
		return Settings{}, err
	}
	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyFile(cfg FileConfig) error {
	setString(&s.APIURL, cfg.API.URL)
	setString(&s.CollectURL, cfg.API.CollectURL)
	setString(&s.LogLevel, cfg.Log.Level)
	setString(&s.LogFile, cfg.Log.File)
	setString(&s.MetricsAddr, cfg.Metrics.Addr)
	if err := setDuration(&s.Timeout, "api.timeout", cfg.API.Timeout); err != nil {
		return err
	}
	return setDuration(&s.CollectTimeout, "api.collect-timeout", cfg.API.CollectTimeout)
}

func (s *Settings) applyEnv() error {
	k := koanf.New(".")
	provider := env.Provider(EnvPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	lookup := func(key string) *string {
		v := k.String(key)
		if !k.Exists(key) || strings.TrimSpace(v) == "" {
			return nil
		}
		return &v
	}
	setString(&s.APIURL, lookup("api_url"))
	setString(&s.CollectURL, lookup("collect_url"))
	setString(&s.LogLevel, lookup("log_level"))
	setString(&s.LogFile, lookup("log_file"))
	setString(&s.MetricsAddr, lookup("metrics_addr"))
	if err := setDuration(&s.Timeout, EnvPrefix+"TIMEOUT", lookup("timeout")); err != nil {
		return err
	}
	return setDuration(&s.CollectTimeout, EnvPrefix+"COLLECT_TIMEOUT", lookup("collect_timeout"))
}

// Validate checks the resolved settings.
func (s Settings) Validate() error {
	if err := checkURL("api url", s.APIURL); err != nil {
		return err
	}
	if s.CollectURL != "" {
		if err := checkURL("collect url", s.CollectURL); err != nil {
			return err
		}
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0", ErrInvalidConfig)
	}
	if s.CollectTimeout <= 0 {
		return fmt.Errorf("%w: collect timeout must be > 0", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL, got %q", ErrInvalidConfig, name, raw)
	}
	return nil
}

func setString(target, value *string) {
	if value == nil {
		return
	}
	*target = strings.TrimSpace(*value)
}

func setDuration(target *time.Duration, name string, value *string) error {
	if value == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	*target = d
	return nil
}
