// Package config loads the typed application configuration and exposes the
// property and profile view a context consults at runtime.
//
// Sources, lowest precedence first: built-in defaults, a YAML config file,
// .env files (loaded into the process environment by godotenv), then
// APPCTX_-prefixed environment variables. "context.default_locale" is read
// from APPCTX_CONTEXT_DEFAULT_LOCALE.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/km-arc/go-appcontext/framework/validation"
)

// EnvPrefix is the environment variable prefix viper binds.
const EnvPrefix = "APPCTX"

// Config is the central typed configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Context ContextConfig `mapstructure:"context"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"` // local | production | testing
	Debug bool   `mapstructure:"debug"`
	URL   string `mapstructure:"url"`
	Port  string `mapstructure:"port"`
}

// ContextConfig shapes the root application context.
type ContextConfig struct {
	ID            string        `mapstructure:"id"`
	DisplayName   string        `mapstructure:"display_name"`
	Profiles      []string      `mapstructure:"profiles"`
	DefaultLocale string        `mapstructure:"default_locale"`
	Messages      string        `mapstructure:"messages"` // bundle pattern, e.g. "i18n/messages*.yaml"
	MessageDB     string        `mapstructure:"message_db"`
	MessageTable  string        `mapstructure:"message_table"`
	ResourceRoot  string        `mapstructure:"resource_root"`
	Reloadable    bool          `mapstructure:"reloadable"`
	Watch         []string      `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	S3            S3Config      `mapstructure:"s3"`
	AdminToken    string        `mapstructure:"admin_token"` // bearer token for POST /refresh; empty disables the check
}

// S3Config enables the "s3:" resource scheme when Bucket is set.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// Defaults returns the configuration used when no source sets a key.
func Defaults() Config {
	return Config{
		App: AppConfig{
			Name:  "appctx",
			Env:   "local",
			Debug: true,
			URL:   "http://localhost",
			Port:  "8000",
		},
		Context: ContextConfig{
			DefaultLocale: "en",
			Messages:      "i18n/messages*.yaml",
			MessageTable:  "messages",
			ResourceRoot:  ".",
			WatchDebounce: 250 * time.Millisecond,
		},
	}
}

// SetDefaults registers every key with v so environment overrides reach
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.env", d.App.Env)
	v.SetDefault("app.debug", d.App.Debug)
	v.SetDefault("app.url", d.App.URL)
	v.SetDefault("app.port", d.App.Port)
	v.SetDefault("context.id", "")
	v.SetDefault("context.display_name", "")
	v.SetDefault("context.profiles", []string{})
	v.SetDefault("context.default_locale", d.Context.DefaultLocale)
	v.SetDefault("context.messages", d.Context.Messages)
	v.SetDefault("context.message_db", "")
	v.SetDefault("context.message_table", d.Context.MessageTable)
	v.SetDefault("context.resource_root", d.Context.ResourceRoot)
	v.SetDefault("context.reloadable", false)
	v.SetDefault("context.watch", []string{})
	v.SetDefault("context.watch_debounce", d.Context.WatchDebounce)
	v.SetDefault("context.s3.bucket", "")
	v.SetDefault("context.s3.region", "")
	v.SetDefault("context.s3.prefix", "")
	v.SetDefault("context.s3.endpoint", "")
	v.SetDefault("context.s3.path_style", false)
	v.SetDefault("context.admin_token", "")
}

// NewViper returns a viper instance with defaults and env binding applied.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env files (if present) and an optional YAML file, then decodes
// the result. An empty file skips the file source.
// Call once at bootstrap: cfg, err := config.Load("config.yaml")
func Load(file string, envFiles ...string) (*Config, error) {
	cfg, _, err := LoadWithViper(file, envFiles...)
	return cfg, err
}

// LoadWithViper is Load that also returns the viper instance, for building
// an Environment over every loaded key.
func LoadWithViper(file string, envFiles ...string) (*Config, *viper.Viper, error) {
	LoadEnv(envFiles...)
	v := NewViper()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("config %s: %w", file, err)
		}
	}
	cfg, err := FromViper(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// not an error: .env may not exist in production.
func LoadEnv(envFiles ...string) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	_ = godotenv.Load(files...)
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var configRules = validation.Rules{
	"app.name":               "required|max:100",
	"app.env":                "required|in:local,production,testing,staging",
	"app.port":               "required|integer|gte:1|lte:65535",
	"context.default_locale": "required|regex:^[A-Za-z]{2,8}([_-][A-Za-z0-9]{1,8})*$",
	"context.message_table":  "nullable|alpha_dash",
}

// Validate checks the decoded values.
func (c *Config) Validate() error {
	data := map[string]string{
		"app.name":               c.App.Name,
		"app.env":                c.App.Env,
		"app.port":               c.App.Port,
		"context.default_locale": c.Context.DefaultLocale,
		"context.message_table":  c.Context.MessageTable,
	}
	if err := validation.Make(data, configRules).Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
