package resource

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry describes one resource inside a Space. Path is slash-separated and
// relative to the space root.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Space is a locatable set of resources. Stat reports fs.ErrNotExist for an
// absent path; List returns every resource under prefix ("" lists all).
type Space interface {
	Stat(ctx context.Context, p string) (Entry, error)
	List(ctx context.Context, prefix string) ([]Entry, error)
	Open(ctx context.Context, p string) (io.ReadCloser, error)
}

// FSSpace serves resources from an fs.FS.
type FSSpace struct {
	fsys fs.FS
}

// NewFSSpace wraps fsys.
func NewFSSpace(fsys fs.FS) *FSSpace { return &FSSpace{fsys: fsys} }

// NewDirSpace serves the directory tree rooted at dir.
func NewDirSpace(dir string) *FSSpace { return NewFSSpace(os.DirFS(dir)) }

func (s *FSSpace) Stat(_ context.Context, p string) (Entry, error) {
	name := fsName(p)
	info, err := fs.Stat(s.fsys, name)
	if err != nil {
		return Entry{}, err
	}
	if info.IsDir() {
		return Entry{}, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return Entry{Path: clean(p), Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *FSSpace) List(ctx context.Context, prefix string) ([]Entry, error) {
	var out []Entry
	err := fs.WalkDir(s.fsys, fsName(prefix), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Entry{Path: p, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	return out, err
}

func (s *FSSpace) Open(_ context.Context, p string) (io.ReadCloser, error) {
	return s.fsys.Open(fsName(p))
}

func fsName(p string) string {
	if p = clean(p); p == "" {
		return "."
	}
	return p
}

// MemorySpace is an in-process Space, mostly for tests and embedded bundles.
type MemorySpace struct {
	mu    sync.RWMutex
	files map[string]memFile
	now   func() time.Time
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// NewMemorySpace returns an empty space.
func NewMemorySpace() *MemorySpace {
	return &MemorySpace{files: make(map[string]memFile), now: time.Now}
}

// Put stores data under p, replacing any previous content.
func (s *MemorySpace) Put(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[clean(p)] = memFile{data: bytes.Clone(data), modTime: s.now()}
}

// Remove deletes p.
func (s *MemorySpace) Remove(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, clean(p))
}

func (s *MemorySpace) Stat(_ context.Context, p string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[clean(p)]
	if !ok {
		return Entry{}, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return Entry{Path: clean(p), Size: int64(len(f.data)), ModTime: f.modTime}, nil
}

func (s *MemorySpace) List(_ context.Context, prefix string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix = clean(prefix)
	var out []Entry
	for p, f := range s.files {
		if prefix != "" && p != prefix && !strings.HasPrefix(p, prefix+"/") {
			continue
		}
		out = append(out, Entry{Path: p, Size: int64(len(f.data)), ModTime: f.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *MemorySpace) Open(_ context.Context, p string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[clean(p)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}
