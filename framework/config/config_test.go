package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/km-arc/go-appcontext/framework/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func setEnv(t *testing.T, key, val string) {
	t.Helper()
	t.Setenv(key, val) // automatically restored after test
}

func mustLoad(t *testing.T, file string, envFiles ...string) *config.Config {
	t.Helper()
	cfg, err := config.Load(file, envFiles...)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	cfg := mustLoad(t, "", "testdata/empty.env")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"App.Name", cfg.App.Name, "appctx"},
		{"App.Env", cfg.App.Env, "local"},
		{"App.Port", cfg.App.Port, "8000"},
		{"Context.DefaultLocale", cfg.Context.DefaultLocale, "en"},
		{"Context.Messages", cfg.Context.Messages, "i18n/messages*.yaml"},
		{"Context.MessageTable", cfg.Context.MessageTable, "messages"},
		{"Context.ResourceRoot", cfg.Context.ResourceRoot, "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
	if cfg.Context.WatchDebounce != 250*time.Millisecond {
		t.Errorf("WatchDebounce: got %v", cfg.Context.WatchDebounce)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	setEnv(t, "APPCTX_APP_NAME", "MyApp")
	setEnv(t, "APPCTX_APP_ENV", "production")
	setEnv(t, "APPCTX_APP_PORT", "9000")
	setEnv(t, "APPCTX_CONTEXT_DEFAULT_LOCALE", "de")

	cfg := mustLoad(t, "", "testdata/empty.env")

	if cfg.App.Name != "MyApp" {
		t.Errorf("App.Name: got %q want %q", cfg.App.Name, "MyApp")
	}
	if cfg.App.Env != "production" {
		t.Errorf("App.Env: got %q want %q", cfg.App.Env, "production")
	}
	if cfg.App.Port != "9000" {
		t.Errorf("App.Port: got %q want %q", cfg.App.Port, "9000")
	}
	if cfg.Context.DefaultLocale != "de" {
		t.Errorf("Context.DefaultLocale: got %q want %q", cfg.Context.DefaultLocale, "de")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	// godotenv never overrides a variable that exists; register cleanup for
	// the keys the file sets, then clear them.
	for _, key := range []string{"APPCTX_APP_NAME", "APPCTX_CONTEXT_PROFILES"} {
		setEnv(t, key, "")
		os.Unsetenv(key)
	}

	cfg := mustLoad(t, "", "testdata/app.env")
	if cfg.App.Name != "FromDotEnv" {
		t.Errorf("App.Name: got %q want %q", cfg.App.Name, "FromDotEnv")
	}
	if len(cfg.Context.Profiles) != 2 || cfg.Context.Profiles[1] != "metrics" {
		t.Errorf("Context.Profiles: got %v", cfg.Context.Profiles)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	cfg := mustLoad(t, "testdata/config.yaml", "testdata/empty.env")

	if cfg.App.Name != "FromYAML" {
		t.Errorf("App.Name: got %q", cfg.App.Name)
	}
	if cfg.App.Port != "9100" {
		t.Errorf("App.Port: got %q", cfg.App.Port)
	}
	if cfg.Context.ID != "root" || !cfg.Context.Reloadable {
		t.Errorf("Context: got %+v", cfg.Context)
	}
	if len(cfg.Context.Watch) != 1 || cfg.Context.Watch[0] != "i18n" {
		t.Errorf("Context.Watch: got %v", cfg.Context.Watch)
	}
	if cfg.Context.WatchDebounce != time.Second {
		t.Errorf("Context.WatchDebounce: got %v", cfg.Context.WatchDebounce)
	}
	if cfg.Context.S3.Bucket != "bundles" {
		t.Errorf("Context.S3.Bucket: got %q", cfg.Context.S3.Bucket)
	}
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	setEnv(t, "APPCTX_APP_NAME", "FromEnv")
	cfg := mustLoad(t, "testdata/config.yaml", "testdata/empty.env")
	if cfg.App.Name != "FromEnv" {
		t.Errorf("App.Name: got %q", cfg.App.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load("testdata/nope.yaml", "testdata/empty.env"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_AppDebugFalse(t *testing.T) {
	setEnv(t, "APPCTX_APP_DEBUG", "false")
	cfg := mustLoad(t, "", "testdata/empty.env")
	if cfg.App.Debug {
		t.Error("expected App.Debug to be false")
	}
}

// ── Validate ─────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		pass   bool
	}{
		{"defaults", func(*config.Config) {}, true},
		{"bad env", func(c *config.Config) { c.App.Env = "moon" }, false},
		{"port not a number", func(c *config.Config) { c.App.Port = "http" }, false},
		{"port out of range", func(c *config.Config) { c.App.Port = "70000" }, false},
		{"empty locale", func(c *config.Config) { c.Context.DefaultLocale = "" }, false},
		{"underscore locale", func(c *config.Config) { c.Context.DefaultLocale = "pt_BR" }, true},
		{"bad table", func(c *config.Config) { c.Context.MessageTable = "drop table" }, false},
		{"no table", func(c *config.Config) { c.Context.MessageTable = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.pass && err != nil {
				t.Errorf("expected pass, got %v", err)
			}
			if !tt.pass && err == nil {
				t.Error("expected failure")
			}
		})
	}
}

// ── Get / GetInt / GetBool ───────────────────────────────────────────────────

func TestGet_ReturnsValue(t *testing.T) {
	setEnv(t, "CUSTOM_KEY", "hello")
	if got := config.Get("CUSTOM_KEY", "default"); got != "hello" {
		t.Errorf("got %q want %q", got, "hello")
	}
}

func TestGet_ReturnsFallback(t *testing.T) {
	setEnv(t, "MISSING_KEY", "")
	if got := config.Get("MISSING_KEY", "fallback"); got != "fallback" {
		t.Errorf("got %q want %q", got, "fallback")
	}
}

func TestGetInt_ReturnsFallbackOnInvalid(t *testing.T) {
	setEnv(t, "SOME_INT", "notanint")
	if got := config.GetInt("SOME_INT", 99); got != 99 {
		t.Errorf("got %d want %d", got, 99)
	}
	setEnv(t, "SOME_INT", "42")
	if got := config.GetInt("SOME_INT", 0); got != 42 {
		t.Errorf("got %d want %d", got, 42)
	}
}

func TestGetBool(t *testing.T) {
	for _, val := range []string{"true", "1", "True", "TRUE"} {
		setEnv(t, "BOOL_KEY", val)
		if !config.GetBool("BOOL_KEY", false) {
			t.Errorf("expected true for %q", val)
		}
	}
	setEnv(t, "BOOL_KEY", "notabool")
	if !config.GetBool("BOOL_KEY", true) {
		t.Error("expected fallback true")
	}
}
