// Package resource resolves location patterns to resource handles over
// pluggable spaces (a directory tree, memory, an S3 bucket).
//
// A location is an optional "scheme:" prefix naming a registered space
// followed by a slash-separated path or Ant-style pattern. Exact paths resolve
// to one handle or fail with ErrPatternResolution; wildcard patterns resolve
// to zero or more handles sorted by path. When the local result is empty the
// resolver asks its parent.
package resource

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/km-arc/go-appcontext/framework/errors"
)

// PatternResolver is what a child resolver delegates to.
type PatternResolver interface {
	Resolve(ctx context.Context, location string) ([]Handle, error)
}

// Handle is one resolved resource.
type Handle struct {
	Location string // scheme-qualified, as a caller would pass it back
	Path     string
	Size     int64
	ModTime  time.Time

	space Space
}

// Open streams the resource content.
func (h Handle) Open(ctx context.Context) (io.ReadCloser, error) {
	if h.space == nil {
		return nil, fmt.Errorf("resource %s: no backing space", h.Location)
	}
	return h.space.Open(ctx, h.Path)
}

// ReadAll returns the whole resource content.
func (h Handle) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := h.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// PatternError reports an exact location that matched nothing.
type PatternError struct {
	Location string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("resource %q does not exist", e.Location)
}

// Is makes errors.Is(err, ErrPatternResolution) hold.
func (e *PatternError) Is(target error) bool { return target == errors.ErrPatternResolution }

// Option configures a Resolver.
type Option func(*Resolver)

// WithSpace registers a space under scheme.
func WithSpace(scheme string, s Space) Option {
	return func(r *Resolver) { r.spaces[scheme] = s }
}

// WithParent sets the resolver asked when the local result is empty.
func WithParent(p PatternResolver) Option {
	return func(r *Resolver) { r.parent = p }
}

// Resolver maps locations onto its spaces. It holds no mutable state.
type Resolver struct {
	def    Space
	spaces map[string]Space
	parent PatternResolver
}

// NewResolver returns a resolver whose unqualified locations go to def,
// which may be nil.
func NewResolver(def Space, opts ...Option) *Resolver {
	r := &Resolver{def: def, spaces: make(map[string]Space)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schemes lists the registered scheme names, sorted.
func (r *Resolver) Schemes() []string {
	out := make([]string, 0, len(r.spaces))
	for s := range r.spaces {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the handles for location.
func (r *Resolver) Resolve(ctx context.Context, location string) ([]Handle, error) {
	scheme, p, space := r.split(location)
	if err := ValidatePattern(p); err != nil {
		return nil, fmt.Errorf("resource pattern %q: %w", location, err)
	}

	var local []Handle
	if space != nil {
		var err error
		if IsPattern(p) {
			local, err = r.match(ctx, scheme, p, space)
		} else {
			local, err = r.exact(ctx, scheme, p, space)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(local) > 0 {
		return local, nil
	}
	if r.parent != nil {
		return r.parent.Resolve(ctx, location)
	}
	if IsPattern(p) {
		return []Handle{}, nil
	}
	return nil, &PatternError{Location: location}
}

// split peels a registered scheme off location. Unregistered prefixes stay
// part of the path.
func (r *Resolver) split(location string) (string, string, Space) {
	if i := strings.IndexByte(location, ':'); i > 0 {
		if s, ok := r.spaces[location[:i]]; ok {
			return location[:i], location[i+1:], s
		}
	}
	return "", location, r.def
}

func (r *Resolver) exact(ctx context.Context, scheme, p string, space Space) ([]Handle, error) {
	e, err := space.Stat(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", p, err)
	}
	return []Handle{handle(scheme, e, space)}, nil
}

func (r *Resolver) match(ctx context.Context, scheme, pattern string, space Space) ([]Handle, error) {
	entries, err := space.List(ctx, staticPrefix(pattern))
	if err != nil {
		return nil, fmt.Errorf("resource pattern %s: %w", pattern, err)
	}
	pattern = clean(pattern)
	var out []Handle
	for _, e := range entries {
		if Match(pattern, e.Path) {
			out = append(out, handle(scheme, e, space))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func handle(scheme string, e Entry, space Space) Handle {
	loc := e.Path
	if scheme != "" {
		loc = scheme + ":" + e.Path
	}
	return Handle{Location: loc, Path: e.Path, Size: e.Size, ModTime: e.ModTime, space: space}
}
