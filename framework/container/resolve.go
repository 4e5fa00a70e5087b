package container

import (
	"fmt"
	"reflect"

	"github.com/km-arc/go-appcontext/framework/errors"
)

// ── Generics helpers ──────────────────────────────────────────────────────────

// Get looks name up and type-asserts the result.
//
//	// Instead of: v, err := l.Get("db"); db := v.(*sql.DB)
//	// Write:      db, err := container.Get[*sql.DB](l, "db")
func Get[T any](l Lookup, name string) (T, error) {
	var zero T
	v, err := l.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%q resolved to %T, want %s: %w", name, v, reflect.TypeFor[T](), errors.ErrTypeMismatch)
	}
	return typed, nil
}

// MustGet is Get for bootstrap code where a missing component is a bug.
func MustGet[T any](l Lookup, name string) T {
	v, err := Get[T](l, name)
	if err != nil {
		panic(fmt.Sprintf("container: MustGet[%s](%q): %v", reflect.TypeFor[T](), name, err))
	}
	return v
}

// GetByType resolves the single component assignable to T.
//
//	repo, err := container.GetByType[UserRepository](ctx)
func GetByType[T any](l Lookup) (T, error) {
	var zero T
	v, err := l.GetByType(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// GetAll returns every local component assignable to T keyed by name.
func GetAll[T any](l Lister) (map[string]T, error) {
	all, err := l.GetAll(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(all))
	for name, v := range all {
		out[name] = v.(T)
	}
	return out, nil
}

// Optional turns ErrNotFound into (zero, false, nil); any other failure,
// including an ambiguous match, is still returned.
func Optional[T any](l Lookup) (T, bool, error) {
	v, err := GetByType[T](l)
	if errors.Is(err, errors.ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}
