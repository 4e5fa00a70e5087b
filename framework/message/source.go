// Package message resolves localized message text with locale fallback and
// parent delegation.
//
// A Source answers for one context level. It looks the key up in its own
// Catalog (exact locale, language-only, default locale, root bundle) and,
// when nothing matches, asks its parent Resolver, which repeats the whole
// chain one level up. Positional arguments ({0}, {1,number}, {2,date}) are
// substituted only after text is found, so a bad argument list surfaces as
// ErrFormat and never as ErrMissingKey. Numbers and dates are rendered for
// the requested locale.
package message

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/km-arc/go-appcontext/framework/errors"
)

// Resolver is the resolution surface a child source delegates to.
type Resolver interface {
	Resolve(key string, tag language.Tag, args ...any) (string, error)
}

// Resolvable bundles alternative keys, arguments and a default text.
type Resolvable interface {
	Keys() []string
	Arguments() []any
	DefaultMessage() string
}

// Message is the plain Resolvable.
type Message struct {
	Codes   []string
	Args    []any
	Default string
}

func (m Message) Keys() []string         { return m.Codes }
func (m Message) Arguments() []any       { return m.Args }
func (m Message) DefaultMessage() string { return m.Default }

// MissingKeyError reports a key absent from this level and every ancestor.
type MissingKeyError struct {
	Key    string
	Locale language.Tag
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no message for key %q in locale %s", e.Key, e.Locale)
}

// Is makes errors.Is(err, ErrMissingKey) hold.
func (e *MissingKeyError) Is(target error) bool { return target == errors.ErrMissingKey }

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithParent sets the resolver asked when the local catalog has no entry.
func WithParent(r Resolver) SourceOption {
	return func(s *Source) { s.parent = r }
}

// WithKeyAsDefault makes unresolvable keys render as the key itself instead
// of failing with ErrMissingKey.
func WithKeyAsDefault() SourceOption {
	return func(s *Source) { s.keyAsDefault = true }
}

// WithMissObserver is called for every key that resolves nowhere.
func WithMissObserver(fn func(key string, tag language.Tag)) SourceOption {
	return func(s *Source) { s.onMiss = fn }
}

// Source resolves messages for one level. It is immutable and safe for
// concurrent use.
type Source struct {
	catalog      *Catalog
	parent       Resolver
	format       *formatter
	keyAsDefault bool
	onMiss       func(string, language.Tag)
}

// NewSource wraps catalog. A nil catalog behaves as an empty one.
func NewSource(catalog *Catalog, opts ...SourceOption) *Source {
	if catalog == nil {
		catalog = NewCatalog(language.Und)
	}
	s := &Source{catalog: catalog, format: newFormatter()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the local catalog.
func (s *Source) Catalog() *Catalog { return s.catalog }

// Resolve returns the text for key in tag with args substituted.
func (s *Source) Resolve(key string, tag language.Tag, args ...any) (string, error) {
	text, err := s.resolve(key, tag, args)
	if errors.Is(err, errors.ErrMissingKey) && s.keyAsDefault {
		return key, nil
	}
	return text, err
}

// ResolveDefault is Resolve with a caller-supplied fallback text, which is
// formatted with the same arguments when used.
func (s *Source) ResolveDefault(key, def string, tag language.Tag, args ...any) (string, error) {
	text, err := s.resolve(key, tag, args)
	if errors.Is(err, errors.ErrMissingKey) {
		return s.format.Format(def, tag, args)
	}
	return text, err
}

// ResolveMessage tries each key of r in order, then its default message.
func (s *Source) ResolveMessage(r Resolvable, tag language.Tag) (string, error) {
	keys := r.Keys()
	for _, key := range keys {
		text, err := s.resolve(key, tag, r.Arguments())
		if !errors.Is(err, errors.ErrMissingKey) {
			return text, err
		}
	}
	if def := r.DefaultMessage(); def != "" {
		return s.format.Format(def, tag, r.Arguments())
	}
	last := ""
	if len(keys) > 0 {
		last = keys[len(keys)-1]
	}
	if s.keyAsDefault && last != "" {
		return last, nil
	}
	return "", &MissingKeyError{Key: last, Locale: tag}
}

func (s *Source) resolve(key string, tag language.Tag, args []any) (string, error) {
	if text, _, ok := s.catalog.Lookup(key, tag); ok {
		return s.format.Format(text, tag, args)
	}
	if s.parent != nil {
		text, err := s.parent.Resolve(key, tag, args...)
		if !errors.Is(err, errors.ErrMissingKey) {
			return text, err
		}
	}
	if s.onMiss != nil {
		s.onMiss(key, tag)
	}
	return "", &MissingKeyError{Key: key, Locale: tag}
}
