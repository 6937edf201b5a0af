// Package srcload describes Go types from type-checked source, loaded with
// golang.org/x/tools/go/packages. Descriptors cannot be invoked; they exist so
// wrappers can be generated ahead of time for packages that are not linked
// into the generator.
package srcload

import (
	"context"
	"fmt"
	"go/types"
	"reflect"
	"sort"
	"strings"
	"sync"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/sdboyer/esbean/jtype"
)

// Universe is a jtype.Resolver over a set of loaded packages and everything
// they import.
type Universe struct {
	mu     sync.Mutex
	roots  []string
	pkgs   map[string]*types.Package
	byType typeutil.Map
}

// Load loads the packages matching patterns and returns a Universe over them.
func Load(ctx context.Context, patterns ...string) (*Universe, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedTypes | packages.NeedImports,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", strings.Join(patterns, " "), err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", strings.Join(patterns, " "))
	}

	var tpkgs []*types.Package
	for _, p := range pkgs {
		if len(p.Errors) > 0 {
			return nil, fmt.Errorf("package errors: %v", p.Errors)
		}
		if p.Types == nil {
			return nil, fmt.Errorf("type information not available for %s", p.PkgPath)
		}
		tpkgs = append(tpkgs, p.Types)
	}
	return New(tpkgs...), nil
}

// New returns a Universe over already type-checked packages.
func New(pkgs ...*types.Package) *Universe {
	u := &Universe{pkgs: make(map[string]*types.Package)}
	var add func(p *types.Package)
	add = func(p *types.Package) {
		if _, seen := u.pkgs[p.Path()]; seen {
			return
		}
		u.pkgs[p.Path()] = p
		for _, imp := range p.Imports() {
			add(imp)
		}
	}
	for _, p := range pkgs {
		u.roots = append(u.roots, p.Path())
		add(p)
	}
	sort.Strings(u.roots)
	return u
}

// Roots returns the import paths of the packages the Universe was created
// over, sorted.
func (u *Universe) Roots() []string {
	return append([]string(nil), u.roots...)
}

// Lookup finds a package-level type by qualified name, e.g. "net/url.URL".
func (u *Universe) Lookup(name string) (jtype.Type, bool) {
	slash := strings.LastIndex(name, "/")
	dot := strings.LastIndex(name, ".")
	if dot <= slash {
		return nil, false
	}
	u.mu.Lock()
	pkg, ok := u.pkgs[name[:dot]]
	u.mu.Unlock()
	if !ok {
		return nil, false
	}
	tn, ok := pkg.Scope().Lookup(name[dot+1:]).(*types.TypeName)
	if !ok {
		return nil, false
	}
	return u.Of(tn.Type()), true
}

// Of returns the descriptor of t.
func (u *Universe) Of(t types.Type) jtype.Type {
	u.mu.Lock()
	defer u.mu.Unlock()
	if st, ok := u.byType.At(t).(*stype); ok {
		return st
	}
	st := &stype{u: u, t: t}
	u.byType.Set(t, st)
	return st
}

// Packages returns the import paths of the loaded packages and their
// imports, sorted.
func (u *Universe) Packages() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.pkgs))
	for p := range u.pkgs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ClassNames returns the qualified names of the exported struct types
// declared in pkgPath.
func (u *Universe) ClassNames(pkgPath string) []string {
	u.mu.Lock()
	pkg, ok := u.pkgs[pkgPath]
	u.mu.Unlock()
	if !ok {
		return nil
	}
	var out []string
	scope := pkg.Scope()
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || !tn.Exported() || tn.IsAlias() {
			continue
		}
		if _, ok := tn.Type().Underlying().(*types.Struct); ok {
			out = append(out, jtype.QualifiedName(pkgPath, name))
		}
	}
	return out
}

var errorIface = types.Universe.Lookup("error").Type()

func qualify(p *types.Package) string { return p.Path() }

type stype struct {
	u *Universe
	t types.Type

	once    sync.Once
	methods []jtype.Method
	fields  []jtype.Field
	ctors   []jtype.Method
}

func (st *stype) named() *types.Named {
	n, _ := st.t.(*types.Named)
	return n
}

func (st *stype) Name() string { return types.TypeString(st.t, qualify) }

func (st *stype) SimpleName() string {
	switch t := st.t.(type) {
	case *types.Named:
		return t.Obj().Name()
	case *types.Basic:
		return t.Name()
	}
	return ""
}

func (st *stype) PkgPath() string {
	if n := st.named(); n != nil && n.Obj().Pkg() != nil {
		return n.Obj().Pkg().Path()
	}
	return ""
}

func (st *stype) Kind() jtype.Kind {
	if _, ok := st.t.(*types.TypeParam); ok {
		return jtype.Invalid
	}
	switch t := st.t.Underlying().(type) {
	case *types.Basic:
		return basicKinds[t.Kind()]
	case *types.Pointer:
		return jtype.Pointer
	case *types.Slice:
		return jtype.Slice
	case *types.Array:
		return jtype.Array
	case *types.Map:
		return jtype.Map
	case *types.Signature:
		return jtype.Func
	case *types.Chan:
		return jtype.Chan
	case *types.Struct:
		return jtype.Struct
	case *types.Interface:
		return jtype.Interface
	}
	return jtype.Invalid
}

var basicKinds = map[types.BasicKind]jtype.Kind{
	types.Bool:    jtype.Bool,
	types.Int:     jtype.Int,
	types.Int8:    jtype.Int8,
	types.Int16:   jtype.Int16,
	types.Int32:   jtype.Int32,
	types.Int64:   jtype.Int64,
	types.Uint:    jtype.Uint,
	types.Uint8:   jtype.Uint8,
	types.Uint16:  jtype.Uint16,
	types.Uint32:  jtype.Uint32,
	types.Uint64:  jtype.Uint64,
	types.Uintptr: jtype.Uintptr,
	types.Float32: jtype.Float32,
	types.Float64: jtype.Float64,
	types.String:  jtype.String,
}

func (st *stype) Elem() jtype.Type {
	var e types.Type
	switch t := st.t.Underlying().(type) {
	case *types.Pointer:
		e = t.Elem()
	case *types.Slice:
		e = t.Elem()
	case *types.Array:
		e = t.Elem()
	case *types.Map:
		e = t.Elem()
	case *types.Chan:
		e = t.Elem()
	default:
		return nil
	}
	return st.u.Of(e)
}

func (st *stype) IsPublic() bool {
	if n := st.named(); n != nil {
		return n.Obj().Pkg() == nil || n.Obj().Exported()
	}
	if e := st.Elem(); e != nil {
		return e.IsPublic()
	}
	return true
}

func (st *stype) IsAbstract() bool {
	_, ok := st.t.Underlying().(*types.Interface)
	return ok
}

// Interfaces returns the exported interfaces of the declaring package that
// a pointer to the class implements, in scope order.
func (st *stype) Interfaces() []jtype.Type {
	n := st.named()
	if n == nil || n.Obj().Pkg() == nil || st.IsAbstract() {
		return nil
	}
	ptr := types.NewPointer(n)
	scope := n.Obj().Pkg().Scope()
	var out []jtype.Type
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || !tn.Exported() {
			continue
		}
		iface, ok := tn.Type().Underlying().(*types.Interface)
		if !ok || iface.NumMethods() == 0 {
			continue
		}
		if types.Implements(ptr, iface) {
			out = append(out, st.u.Of(tn.Type()))
		}
	}
	return out
}

func (st *stype) Superclass() jtype.Type {
	s, ok := st.t.Underlying().(*types.Struct)
	if !ok {
		return nil
	}
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		if !f.Embedded() || !f.Exported() {
			continue
		}
		ft := f.Type()
		if p, ok := ft.(*types.Pointer); ok {
			ft = p.Elem()
		}
		if _, ok := ft.Underlying().(*types.Struct); ok {
			return st.u.Of(ft)
		}
	}
	return nil
}

func (st *stype) Methods() []jtype.Method {
	st.load()
	return st.methods
}

func (st *stype) Fields() []jtype.Field {
	st.load()
	return st.fields
}

func (st *stype) Constructors() []jtype.Method {
	st.load()
	return st.ctors
}

func (st *stype) load() {
	st.once.Do(func() {
		st.methods = st.loadMethods()
		st.fields = st.loadFields()
		st.ctors = st.loadConstructors()
	})
}

func (st *stype) loadMethods() []jtype.Method {
	var out []jtype.Method
	if iface, ok := st.t.Underlying().(*types.Interface); ok {
		for i := 0; i < iface.NumMethods(); i++ {
			fn := iface.Method(i)
			if !fn.Exported() {
				continue
			}
			if m := st.newMethod(fn.Name(), fn.Type().(*types.Signature)); m != nil {
				out = append(out, m)
			}
		}
		return out
	}

	n := st.named()
	if n == nil {
		return nil
	}
	holder := jtype.IsStaticHolder(st)
	mset := types.NewMethodSet(types.NewPointer(n))
	for i := 0; i < mset.Len(); i++ {
		sel := mset.At(i)
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		// Promoted methods belong to the embedded type.
		if len(sel.Index()) > 1 {
			continue
		}
		m := st.newMethod(fn.Name(), fn.Type().(*types.Signature))
		if m == nil {
			continue
		}
		m.static = holder
		out = append(out, m)
	}
	return out
}

// loadConstructors collects the package-level New<Type>... functions that
// return the class or a pointer to it.
func (st *stype) loadConstructors() []jtype.Method {
	n := st.named()
	if n == nil || n.Obj().Pkg() == nil || st.IsAbstract() {
		return nil
	}
	prefix := "New" + n.Obj().Name()
	scope := n.Obj().Pkg().Scope()
	var out []jtype.Method
	for _, name := range scope.Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		fn, ok := scope.Lookup(name).(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		sig := fn.Type().(*types.Signature)
		if sig.Results().Len() == 0 || !jtype.SameClass(st.u.Of(sig.Results().At(0).Type()), st) {
			continue
		}
		m := st.newMethod(name, sig)
		if m == nil {
			continue
		}
		m.static, m.ctor = true, true
		m.pkg = n.Obj().Pkg().Path()
		out = append(out, m)
	}
	return out
}

func (st *stype) newMethod(name string, sig *types.Signature) *smethod {
	if sig.Variadic() {
		return nil
	}
	m := &smethod{decl: st, name: name, ret: jtype.VoidType}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		m.params = append(m.params, st.u.Of(params.At(i).Type()))
	}
	results := sig.Results()
	switch results.Len() {
	case 0:
	case 1:
		if types.Identical(results.At(0).Type(), errorIface) {
			m.returnsErr = true
		} else {
			m.ret = st.u.Of(results.At(0).Type())
		}
	case 2:
		if !types.Identical(results.At(1).Type(), errorIface) {
			return nil
		}
		m.ret = st.u.Of(results.At(0).Type())
		m.returnsErr = true
	default:
		return nil
	}
	return m
}

func (st *stype) loadFields() []jtype.Field {
	s, ok := st.t.Underlying().(*types.Struct)
	if !ok {
		return nil
	}
	var out []jtype.Field
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		if f.Embedded() || !f.Exported() {
			continue
		}
		out = append(out, &sfield{
			decl: st,
			name: f.Name(),
			typ:  st.u.Of(f.Type()),
			tag:  reflect.StructTag(s.Tag(i)),
		})
	}
	return out
}

func (st *stype) AssignableTo(u jtype.Type) bool {
	if su, ok := u.(*stype); ok {
		return types.AssignableTo(st.t, su.t)
	}
	return jtype.Identical(st, u)
}

func (st *stype) IterElem() (jtype.Type, bool) {
	switch t := st.t.Underlying().(type) {
	case *types.Slice:
		return st.u.Of(t.Elem()), true
	case *types.Array:
		return st.u.Of(t.Elem()), true
	case *types.Signature:
		if t.Params().Len() != 1 || t.Results().Len() != 0 {
			return nil, false
		}
		y, ok := t.Params().At(0).Type().Underlying().(*types.Signature)
		if !ok || y.Params().Len() != 1 || y.Results().Len() != 1 {
			return nil, false
		}
		if b, ok := y.Results().At(0).Type().Underlying().(*types.Basic); !ok || b.Kind() != types.Bool {
			return nil, false
		}
		return st.u.Of(y.Params().At(0).Type()), true
	}
	return nil, false
}

func (st *stype) New() (any, error) { return nil, jtype.ErrNotInvocable }

type smethod struct {
	decl       *stype
	name       string
	params     []jtype.Type
	ret        jtype.Type
	returnsErr bool
	static     bool
	ctor       bool
	pkg        string
}

func (m *smethod) Name() string              { return m.name }
func (m *smethod) DeclaringType() jtype.Type { return m.decl }
func (m *smethod) ParamTypes() []jtype.Type  { return m.params }
func (m *smethod) ReturnType() jtype.Type    { return m.ret }
func (m *smethod) ReturnsErr() bool          { return m.returnsErr }
func (m *smethod) IsStatic() bool            { return m.static }
func (m *smethod) IsPublic() bool            { return jtype.IsExported(m.name) }
func (m *smethod) IsConstructor() bool       { return m.ctor }

func (m *smethod) Func() (string, string, bool) {
	if m.pkg == "" {
		return "", "", false
	}
	return m.pkg, m.name, true
}

func (m *smethod) Invoke(any, []any) (any, error) { return nil, jtype.ErrNotInvocable }

type sfield struct {
	decl *stype
	name string
	typ  jtype.Type
	tag  reflect.StructTag
}

func (f *sfield) Name() string              { return f.name }
func (f *sfield) Type() jtype.Type          { return f.typ }
func (f *sfield) DeclaringType() jtype.Type { return f.decl }
func (f *sfield) IsPublic() bool            { return true }
func (f *sfield) Tag(key string) string     { return f.tag.Get(key) }
func (f *sfield) Get(any) (any, error)      { return nil, jtype.ErrNotInvocable }
func (f *sfield) Set(any, any) error        { return jtype.ErrNotInvocable }
