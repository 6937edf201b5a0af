package codegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// maxIO bounds the files read or written concurrently by FS.
const maxIO = 12

// FS is a pseudo-filesystem of generated files that supports batch-writing
// its contents to the real filesystem, or batch-comparing its contents to
// the real filesystem.
//
// The normal behavior of the wrapper generator is to write files to disk,
// but in CI it verifies that what is already on disk is identical to the
// results of generation. FS supports these two behaviors through its Write
// and Verify methods, respectively.
//
// Files may not be removed once added. If a path conflict occurs when
// adding a new file or merging another FS, an error is returned.
type FS struct {
	mu sync.Mutex
	m  map[string]fsEntry
}

type fsEntry struct {
	data  []byte
	owner string
	from  []NamedJenny
}

// NewFS creates a new FS, ready for use.
func NewFS() *FS {
	return &FS{m: make(map[string]fsEntry)}
}

// Len is the number of files in the FS.
func (fs *FS) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.m)
}

// Get returns the contents of the file at path, if there is one.
func (fs *FS) Get(path string) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, ok := fs.m[filepath.ToSlash(path)]
	return e.data, ok
}

type writeItem struct {
	path     string
	contents []byte
}

func (fs *FS) toSlice() []writeItem {
	sl := make([]writeItem, 0, len(fs.m))
	for k, v := range fs.m {
		sl = append(sl, writeItem{path: k, contents: v.data})
	}
	sort.Slice(sl, func(i, j int) bool {
		return sl[i].path < sl[j].path
	})
	return sl
}

// Verify checks the contents of each file against the filesystem. It emits
// an error if any of its contained files differ or are missing.
//
// If the provided prefix path is non-empty, it will be prepended to all file
// entries. prefix may be an absolute path.
func (fs *FS) Verify(ctx context.Context, prefix string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxIO)

	var (
		rmu    sync.Mutex
		result *multierror.Error
	)
	fail := func(err error) {
		rmu.Lock()
		result = multierror.Append(result, err)
		rmu.Unlock()
	}

	for _, item := range fs.toSlice() {
		g.Go(func() error {
			ipath := filepath.Join(prefix, filepath.FromSlash(item.path))
			ob, err := os.ReadFile(ipath) //nolint:gosec
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					fail(fmt.Errorf("%s: generated file should exist, but does not", ipath))
					return nil
				}
				return fmt.Errorf("%s: error reading file: %w", ipath, err)
			}
			if dstr := cmp.Diff(string(ob), string(item.contents)); dstr != "" {
				fail(fmt.Errorf("%s would have changed:\n\n%s", ipath, dstr))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("io error while verifying tree: %w", err)
	}

	return result.ErrorOrNil()
}

// Write writes all of the files to their indicated paths, creating parent
// directories as needed.
//
// If the provided prefix path is non-empty, it will be prepended to all file
// entries. prefix may be an absolute path.
func (fs *FS) Write(ctx context.Context, prefix string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxIO)

	for _, item := range fs.toSlice() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(prefix, filepath.FromSlash(item.path))
			if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
				return fmt.Errorf("%s: failed to ensure parent directory exists: %w", path, err)
			}
			if err := os.WriteFile(path, item.contents, 0o644); err != nil {
				return fmt.Errorf("%s: error while writing file: %w", path, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Add adds one or more files to the FS. An error is returned if any of the
// provided files would conflict with a file already in the FS.
func (fs *FS) Add(owner string, flist ...File) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.add(owner, flist...)
}

func (fs *FS) add(owner string, flist ...File) error {
	var result *multierror.Error
	for _, f := range flist {
		if rf, has := fs.m[f.RelativePath]; has {
			result = multierror.Append(result, fmt.Errorf("cannot create %s for %q, already created for %q", f.RelativePath, owner, rf.owner))
		}
		if filepath.IsAbs(f.RelativePath) {
			result = multierror.Append(result, fmt.Errorf("generated files must have relative paths, got %s from %q", f.RelativePath, owner))
		}
	}
	if result.ErrorOrNil() != nil {
		return result
	}

	for _, f := range flist {
		fs.m[f.RelativePath] = fsEntry{data: f.Data, owner: owner, from: f.From}
	}
	return nil
}

// Merge combines all the entries from the provided FS into the callee FS.
// Duplicate paths result in an error.
func (fs *FS) Merge(fs2 *FS) error {
	if fs2 == nil {
		return nil
	}
	fs2.mu.Lock()
	entries := make(map[string]fsEntry, len(fs2.m))
	for k, v := range fs2.m {
		entries[k] = v
	}
	fs2.mu.Unlock()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	var result *multierror.Error
	for k, e := range entries {
		if err := fs.add(e.owner, File{RelativePath: k, Data: e.data, From: e.from}); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// AsFiles returns the contents of the FS as Files, sorted by path.
func (fs *FS) AsFiles() Files {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	paths := make([]string, 0, len(fs.m))
	for k := range fs.m {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	fl := make(Files, 0, len(paths))
	for _, p := range paths {
		e := fs.m[p]
		fl = append(fl, File{RelativePath: p, Data: e.data, From: e.from})
	}
	return fl
}
