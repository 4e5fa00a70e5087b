package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// DefaultProfile is active when no profile was activated explicitly.
const DefaultProfile = "default"

// PropertyResolver is the read side of an Environment, and what a child
// environment falls back to.
type PropertyResolver interface {
	Property(key string) (string, bool)
	ActiveProfiles() []string
}

// EnvOption configures an Environment.
type EnvOption func(*Environment)

// WithProfiles activates profiles.
func WithProfiles(profiles ...string) EnvOption {
	return func(e *Environment) { e.profiles = appendProfiles(e.profiles, profiles...) }
}

// WithProperties adds explicit properties; later calls win.
func WithProperties(props map[string]string) EnvOption {
	return func(e *Environment) { maps.Copy(e.props, props) }
}

// WithSystemEnv makes the process environment a property source, consulted
// after explicit properties. "app.name" is read from APPCTX_APP_NAME.
func WithSystemEnv() EnvOption {
	return func(e *Environment) { e.lookupEnv = os.LookupEnv }
}

// WithParentEnvironment sets the resolver used when a key is absent locally.
// The parent's active profiles are merged into the child's.
func WithParentEnvironment(p PropertyResolver) EnvOption {
	return func(e *Environment) { e.parent = p }
}

// Environment answers property and profile questions for one context level.
// It is immutable after construction.
type Environment struct {
	profiles  []string
	props     map[string]string
	lookupEnv func(string) (string, bool)
	parent    PropertyResolver
}

// NewEnvironment builds an Environment.
func NewEnvironment(opts ...EnvOption) *Environment {
	e := &Environment{props: make(map[string]string)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnvironmentFrom snapshots every viper setting as a flattened property and
// activates the configured profiles.
func EnvironmentFrom(cfg *Config, v *viper.Viper, opts ...EnvOption) *Environment {
	props := make(map[string]string)
	for _, key := range v.AllKeys() {
		props[key] = stringify(v.Get(key))
	}
	base := []EnvOption{WithProperties(props), WithProfiles(cfg.Context.Profiles...), WithSystemEnv()}
	return NewEnvironment(append(base, opts...)...)
}

// Property returns the value of key from local properties, the process
// environment, then the parent.
func (e *Environment) Property(key string) (string, bool) {
	if v, ok := e.props[key]; ok {
		return v, true
	}
	if e.lookupEnv != nil {
		if v, ok := e.lookupEnv(EnvKey(key)); ok {
			return v, true
		}
	}
	if e.parent != nil {
		return e.parent.Property(key)
	}
	return "", false
}

// PropertyOr returns the value of key or def.
func (e *Environment) PropertyOr(key, def string) string {
	if v, ok := e.Property(key); ok {
		return v
	}
	return def
}

// Keys lists the local property keys, sorted.
func (e *Environment) Keys() []string {
	keys := slices.Collect(maps.Keys(e.props))
	sort.Strings(keys)
	return keys
}

// ActiveProfiles returns the explicitly active profiles, local first, then
// the parent's.
func (e *Environment) ActiveProfiles() []string {
	out := slices.Clone(e.profiles)
	if e.parent != nil {
		out = appendProfiles(out, e.parent.ActiveProfiles()...)
	}
	return out
}

// AcceptsProfiles reports whether any expression matches. "name" matches an
// active profile and "!name" matches when name is not active. With no
// explicit profile, DefaultProfile counts as active.
func (e *Environment) AcceptsProfiles(exprs ...string) bool {
	active := e.ActiveProfiles()
	if len(active) == 0 {
		active = []string{DefaultProfile}
	}
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if name, neg := strings.CutPrefix(expr, "!"); neg {
			if !slices.Contains(active, name) {
				return true
			}
			continue
		}
		if slices.Contains(active, expr) {
			return true
		}
	}
	return false
}

// EnvKey maps a property key to its environment variable name.
func EnvKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func appendProfiles(dst []string, profiles ...string) []string {
	for _, p := range profiles {
		p = strings.TrimSpace(p)
		if p != "" && !slices.Contains(dst, p) {
			dst = append(dst, p)
		}
	}
	return dst
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}
