package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all service settings.
const envPrefix = "BIODOCKVIZ"

// Sentinel errors returned (wrapped) by Load.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigParseError   = errors.New("config parse error")
	ErrConfigValidation   = errors.New("config validation failed")
)

// DefaultSearchPaths are tried in order when no explicit config path is set.
var DefaultSearchPaths = []string{".", "./configs", "/etc/biodockviz"}

var global atomic.Pointer[Config]

// Get returns the Config most recently produced by Load, or nil.
func Get() *Config {
	return global.Load()
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

type loadOptions struct {
	configPath  string
	searchPaths []string
	dotEnvFiles []string
	overrides   map[string]interface{}
	requireFile bool
}

// Option customises Load.
type Option func(*loadOptions)

// WithConfigPath loads exactly the given file. A missing file is an error.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
		o.requireFile = true
	}
}

// WithSearchPaths looks for config.yaml in each directory in order.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) { o.searchPaths = paths }
}

// WithDotEnv loads the given .env files into the process environment before
// viper reads it. Missing files are skipped; variables that are already set
// are never overwritten.
func WithDotEnv(files ...string) Option {
	return func(o *loadOptions) { o.dotEnvFiles = files }
}

// WithOverrides sets keys with the highest precedence (used by CLI flags).
func WithOverrides(overrides map[string]interface{}) Option {
	return func(o *loadOptions) { o.overrides = overrides }
}

// ─────────────────────────────────────────────────────────────────────────────
// Loading
// ─────────────────────────────────────────────────────────────────────────────

// newViper builds a Viper instance with the service conventions: YAML files,
// BIODOCKVIZ_ env prefix and "." -> "_" key mapping, so "database.host"
// resolves to BIODOCKVIZ_DATABASE_HOST. Every known key is registered so env
// overrides work without a config file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerKeys(v, reflect.TypeOf(Config{}), "")
	return v
}

// registerKeys walks the mapstructure tags of t and binds every leaf key to
// its environment variable.
func registerKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			registerKeys(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// Load resolves configuration from (in increasing precedence) defaults, the
// config file, BIODOCKVIZ_* environment variables and explicit overrides,
// then validates it. With no options it searches DefaultSearchPaths and
// tolerates a missing file.
func Load(opts ...Option) (*Config, error) {
	o := &loadOptions{searchPaths: DefaultSearchPaths}
	for _, opt := range opts {
		opt(o)
	}

	for _, f := range o.dotEnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: failed to load %q: %w", f, ErrConfigParseError)
		}
	}

	v := newViper()
	if o.configPath != "" {
		if _, err := os.Stat(o.configPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: %q: %w", o.configPath, ErrConfigFileNotFound)
		}
		v.SetConfigFile(o.configPath)
	} else {
		v.SetConfigName("config")
		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && !o.requireFile:
			// env-only configuration
		case errors.As(err, &notFound):
			return nil, fmt.Errorf("config: %v: %w", err, ErrConfigFileNotFound)
		default:
			return nil, fmt.Errorf("config: failed to read config file: %v: %w", err, ErrConfigParseError)
		}
	}

	for k, val := range o.overrides {
		v.Set(k, val)
	}

	cfg, err := unmarshalAndFinalize(v)
	if err != nil {
		return nil, err
	}
	global.Store(cfg)
	return cfg, nil
}

// LoadFromFile is Load(WithConfigPath(path)).
func LoadFromFile(path string) (*Config, error) {
	return Load(WithConfigPath(path))
}

// LoadFromEnv builds a Config from BIODOCKVIZ_* environment variables (and a
// ./.env file when present) without reading any config file.
func LoadFromEnv() (*Config, error) {
	o := &loadOptions{}
	WithDotEnv(".env")(o)
	for _, f := range o.dotEnvFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
	cfg, err := unmarshalAndFinalize(newViper())
	if err != nil {
		return nil, err
	}
	global.Store(cfg)
	return cfg, nil
}

// unmarshalAndFinalize decodes viper state into a Config, applies defaults
// and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %v: %w", err, ErrConfigParseError)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrConfigValidation)
	}
	return cfg, nil
}

// Watch re-reads configPath whenever it changes on disk and calls onChange
// with the new Config. Invalid revisions are reported to onError (if set)
// and otherwise ignored. Only hot-reloadable settings (log level, rate
// limits) should be applied by callers.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		global.Store(cfg)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on any error. For use in main().
func MustLoad(opts ...Option) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
