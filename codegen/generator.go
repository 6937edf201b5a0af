// Package codegen generates Go source for script wrappers ahead of time.
//
// Generation is organized as jennies: small generators that each turn one
// or many inputs into a File. A JennyList composes jennies and collects
// their output into an FS, which is either written to disk or verified
// against it. The Generator drives the wrapper jennies over analyzed
// classes, skipping classes whose wrapper on disk is current and checking
// that what it wrote compiles.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/wrapper"
)

// DefaultPackage is the name and directory of the generated package.
const DefaultPackage = "eswrap"

// Generator writes the wrappers of analyzed classes into a package under a
// work directory.
type Generator struct {
	dir      string
	pkg      string
	compiler Compiler
	log      logrus.FieldLogger
	locks    keyedMutex
	docMu    sync.Mutex
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithPackage sets the generated package name, which is also its directory
// under the work directory.
func WithPackage(name string) GeneratorOption {
	return func(g *Generator) {
		if name != "" {
			g.pkg = name
		}
	}
}

// WithCompiler sets the compiler run over freshly written wrappers. A nil
// compiler skips the check.
func WithCompiler(c Compiler) GeneratorOption {
	return func(g *Generator) { g.compiler = c }
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(log logrus.FieldLogger) GeneratorOption {
	return func(g *Generator) { g.log = log }
}

// NewGenerator returns a Generator writing under dir.
func NewGenerator(dir string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		dir:      dir,
		pkg:      DefaultPackage,
		compiler: PackagesCompiler{},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PackageDir is the directory of the generated package.
func (g *Generator) PackageDir() string {
	return filepath.Join(g.dir, g.pkg)
}

// Result reports what a Generate call did, by class name.
type Result struct {
	Generated []string
	Skipped   []string
}

func (g *Generator) wrappers() *JennyList[*beaninfo.BeanInfo] {
	jl := JennyListWithNamer(func(bi *beaninfo.BeanInfo) string { return bi.Type().Name() })
	jl.AppendOneToOne(WrapperJenny{Package: g.pkg})
	jl.AddPostprocessors(Prefixer(g.pkg))
	return jl
}

func (g *Generator) docs() *JennyList[Header] {
	jl := new(JennyList[Header])
	jl.AppendManyToOne(RegistryJenny{Package: g.pkg})
	jl.AddPostprocessors(Prefixer(g.pkg))
	return jl
}

func headerOf(info *beaninfo.BeanInfo) Header {
	return Header{Class: info.Type().Name(), Version: wrapper.FormatVersion, Hash: info.Hash()}
}

// catalog returns the headers of the wrappers on disk together with those
// of infos, which replace disk entries of the same class, sorted by class.
func (g *Generator) catalog(infos []*beaninfo.BeanInfo) ([]Header, error) {
	byClass := make(map[string]Header)
	paths, err := filepath.Glob(filepath.Join(g.PackageDir(), "*"+FileSuffix))
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		h, err := ReadHeader(p)
		switch {
		case errors.Is(err, ErrNoHeader):
			g.log.WithField("file", p).Debug("ignoring file without a wrapper header")
			continue
		case err != nil:
			return nil, err
		}
		byClass[h.Class] = h
	}
	for _, info := range infos {
		byClass[info.Type().Name()] = headerOf(info)
	}

	out := make([]Header, 0, len(byClass))
	for _, h := range byClass {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out, nil
}

// Render generates the wrappers of infos in memory, with the package doc
// covering them and every wrapper already on disk.
func (g *Generator) Render(infos ...*beaninfo.BeanInfo) (*FS, error) {
	infos = uniqueInfos(infos)
	fs, err := g.wrappers().GenerateFS(infos...)
	if err != nil {
		return nil, err
	}
	headers, err := g.catalog(infos)
	if err != nil {
		return nil, err
	}
	doc, err := g.docs().GenerateFS(headers...)
	if err != nil {
		return nil, err
	}
	if err := fs.Merge(doc); err != nil {
		return nil, err
	}
	return fs, nil
}

// Generate brings the wrappers of infos on disk up to date. A wrapper whose
// header carries the current format version and the class's hash is
// reused; the others are regenerated, written and compiled. The package doc
// is rewritten to list every wrapper in the package. A compile failure is
// returned as ErrCompile.
//
// Generation of a class is serialized across concurrent calls.
func (g *Generator) Generate(ctx context.Context, infos ...*beaninfo.BeanInfo) (Result, error) {
	infos = uniqueInfos(infos)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Type().Name()
	}
	unlock := g.locks.lockAll(names)
	defer unlock()

	var (
		res   Result
		stale []*beaninfo.BeanInfo
	)
	for _, info := range infos {
		name := info.Type().Name()
		if g.current(info) {
			g.log.WithField("class", name).Debug("generated wrapper is current")
			res.Skipped = append(res.Skipped, name)
			continue
		}
		stale = append(stale, info)
		res.Generated = append(res.Generated, name)
	}
	if len(stale) == 0 {
		return res, nil
	}

	fs, err := g.wrappers().GenerateFS(stale...)
	if err != nil {
		return Result{}, err
	}
	if err := fs.Write(ctx, g.dir); err != nil {
		return Result{}, fmt.Errorf("writing wrappers: %w", err)
	}
	if err := g.writeDoc(ctx, infos); err != nil {
		return Result{}, err
	}
	g.log.WithFields(logrus.Fields{
		"dir":     g.PackageDir(),
		"classes": len(stale),
		"files":   fs.Len() + 1,
	}).Info("wrote generated wrappers")

	if g.compiler != nil {
		if err := g.compiler.Compile(ctx, g.PackageDir()); err != nil {
			if !errors.Is(err, ErrCompile) {
				err = fmt.Errorf("%w: %w", ErrCompile, err)
			}
			return Result{}, err
		}
	}
	return res, nil
}

// writeDoc rewrites the package doc from the wrappers on disk.
func (g *Generator) writeDoc(ctx context.Context, infos []*beaninfo.BeanInfo) error {
	g.docMu.Lock()
	defer g.docMu.Unlock()
	headers, err := g.catalog(infos)
	if err != nil {
		return err
	}
	doc, err := g.docs().GenerateFS(headers...)
	if err != nil {
		return err
	}
	if err := doc.Write(ctx, g.dir); err != nil {
		return fmt.Errorf("writing %s: %w", DocFile, err)
	}
	return nil
}

// Verify regenerates the wrappers of infos in memory and reports every
// file on disk that is missing or differs.
func (g *Generator) Verify(ctx context.Context, infos ...*beaninfo.BeanInfo) error {
	fs, err := g.Render(infos...)
	if err != nil {
		return err
	}
	return fs.Verify(ctx, g.dir)
}

// current reports whether the wrapper of info on disk was generated from
// the same analysis with the current format.
func (g *Generator) current(info *beaninfo.BeanInfo) bool {
	p := filepath.Join(g.dir, filepath.FromSlash(Path(g.pkg, info.Type())))
	h, err := ReadHeader(p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			g.log.WithError(err).WithField("file", p).Debug("unreadable wrapper header")
		}
		return false
	}
	return h == headerOf(info)
}

func uniqueInfos(infos []*beaninfo.BeanInfo) []*beaninfo.BeanInfo {
	byName := make(map[string]*beaninfo.BeanInfo, len(infos))
	for _, info := range infos {
		if info != nil {
			byName[info.Type().Name()] = info
		}
	}
	out := make([]*beaninfo.BeanInfo, 0, len(byName))
	for _, info := range byName {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Type().Name() < out[j].Type().Name()
	})
	return out
}

// keyedMutex is a set of mutexes by name.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = new(sync.Mutex)
		k.m[key] = l
	}
	return l
}

// lockAll locks the mutexes of keys in sorted order and returns the
// function unlocking them.
func (k *keyedMutex) lockAll(keys []string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	var held []*sync.Mutex
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		l := k.get(key)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
