package jtype

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Registry describes Go types through the reflect package. It is the only
// backend whose descriptors can be invoked, so it is the one the wrapper
// runtime uses. Types must be registered before they are analyzed if they
// carry constructors, static functions or interface declarations; other
// types are described on demand by Of.
type Registry struct {
	mu     sync.RWMutex
	types  map[reflect.Type]*rtype
	byName map[string]*rtype
}

// Option configures a registered class.
type Option func(*classOptions)

type classOptions struct {
	ctors   []any
	statics []staticFunc
	ifaces  []reflect.Type
}

type staticFunc struct {
	name string
	fn   any
}

// Constructors registers functions returning the class (or a pointer to it),
// optionally with a trailing error, as its constructors.
func Constructors(fns ...any) Option {
	return func(o *classOptions) {
		o.ctors = append(o.ctors, fns...)
	}
}

// Static registers fn as a static method of the class under the given name.
// Several functions may share a name to form overloads.
func Static(name string, fn any) Option {
	return func(o *classOptions) {
		o.statics = append(o.statics, staticFunc{name: name, fn: fn})
	}
}

// Implements declares the interfaces the class implements, in order. Pass
// interface types as reflect.TypeOf((*I)(nil)).Elem().
func Implements(ifaces ...reflect.Type) Option {
	return func(o *classOptions) {
		o.ifaces = append(o.ifaces, ifaces...)
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[reflect.Type]*rtype),
		byName: make(map[string]*rtype),
	}
}

// Register describes t as a class with the given options. Registering a
// pointer type registers its element.
func (r *Registry) Register(t reflect.Type, opts ...Option) Type {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	rt := r.of(t)
	rt.mu.Lock()
	for _, opt := range opts {
		opt(&rt.opts)
	}
	rt.mu.Unlock()
	return rt
}

// Of returns the descriptor of t.
func (r *Registry) Of(t reflect.Type) Type {
	if t == nil {
		return NullType
	}
	return r.of(t)
}

// TypeOf returns the descriptor of the dynamic type of v, or NullType when v
// is nil.
func (r *Registry) TypeOf(v any) Type {
	if v == nil {
		return NullType
	}
	return r.of(reflect.TypeOf(v))
}

// Lookup finds a type that has been registered or described before.
func (r *Registry) Lookup(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return rt, true
}

func (r *Registry) of(t reflect.Type) *rtype {
	r.mu.RLock()
	rt, ok := r.types[t]
	r.mu.RUnlock()
	if ok {
		return rt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.types[t]; ok {
		return rt
	}
	rt = &rtype{reg: r, t: t, name: reflectName(t)}
	r.types[t] = rt
	if _, taken := r.byName[rt.name]; !taken {
		r.byName[rt.name] = rt
	}
	return rt
}

func reflectName(t reflect.Type) string {
	if t.Name() != "" {
		return QualifiedName(t.PkgPath(), t.Name())
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + reflectName(t.Elem())
	case reflect.Slice:
		return "[]" + reflectName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), reflectName(t.Elem()))
	case reflect.Map:
		return "map[" + reflectName(t.Key()) + "]" + reflectName(t.Elem())
	case reflect.Chan:
		return "chan " + reflectName(t.Elem())
	}
	return t.String()
}

var reflectKinds = map[reflect.Kind]Kind{
	reflect.Bool:      Bool,
	reflect.Int:       Int,
	reflect.Int8:      Int8,
	reflect.Int16:     Int16,
	reflect.Int32:     Int32,
	reflect.Int64:     Int64,
	reflect.Uint:      Uint,
	reflect.Uint8:     Uint8,
	reflect.Uint16:    Uint16,
	reflect.Uint32:    Uint32,
	reflect.Uint64:    Uint64,
	reflect.Uintptr:   Uintptr,
	reflect.Float32:   Float32,
	reflect.Float64:   Float64,
	reflect.String:    String,
	reflect.Pointer:   Pointer,
	reflect.Slice:     Slice,
	reflect.Array:     Array,
	reflect.Map:       Map,
	reflect.Func:      Func,
	reflect.Chan:      Chan,
	reflect.Struct:    Struct,
	reflect.Interface: Interface,
}

type rtype struct {
	reg  *Registry
	t    reflect.Type
	name string

	mu   sync.Mutex
	opts classOptions

	once    sync.Once
	methods []Method
	fields  []Field
	ctors   []Method
}

// Reflect returns the underlying reflect.Type.
func (rt *rtype) Reflect() reflect.Type { return rt.t }

func (rt *rtype) Name() string { return rt.name }

func (rt *rtype) SimpleName() string { return rt.t.Name() }

func (rt *rtype) PkgPath() string { return rt.t.PkgPath() }

func (rt *rtype) Kind() Kind { return reflectKinds[rt.t.Kind()] }

func (rt *rtype) Elem() Type {
	switch rt.t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rt.reg.of(rt.t.Elem())
	}
	return nil
}

func (rt *rtype) IsPublic() bool {
	if rt.t.Name() != "" {
		return rt.t.PkgPath() == "" || IsExported(rt.t.Name())
	}
	if e := rt.Elem(); e != nil {
		return e.IsPublic()
	}
	return true
}

func (rt *rtype) IsAbstract() bool { return rt.t.Kind() == reflect.Interface }

func (rt *rtype) Interfaces() []Type {
	rt.mu.Lock()
	ifaces := append([]reflect.Type(nil), rt.opts.ifaces...)
	rt.mu.Unlock()

	out := make([]Type, 0, len(ifaces))
	for _, it := range ifaces {
		out = append(out, rt.reg.of(it))
	}
	return out
}

func (rt *rtype) Superclass() Type {
	sup := rt.superclass()
	if sup == nil {
		return nil
	}
	return rt.reg.of(sup)
}

func (rt *rtype) superclass() reflect.Type {
	if rt.t.Kind() != reflect.Struct {
		return nil
	}
	i := superIndex(rt.t)
	if i < 0 {
		return nil
	}
	ft := rt.t.Field(i).Type
	if ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}
	return ft
}

// superIndex is the index of the first exported embedded struct field of
// the struct type t, or -1.
func superIndex(t reflect.Type) int {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous || !f.IsExported() {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			return i
		}
	}
	return -1
}

// Upcast walks the superclass chain of x, the way Superclass does, and
// returns the first embedded value that can be used as a t. A superclass
// embedded by value is returned by address when t is its pointer type and
// x is a pointer.
func Upcast(x any, t reflect.Type) (reflect.Value, bool) {
	rv := reflect.ValueOf(x)
	for rv.IsValid() {
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				break
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			break
		}
		i := superIndex(rv.Type())
		if i < 0 {
			break
		}
		rv = rv.Field(i)
		switch {
		case rv.Type().AssignableTo(t):
			return rv, true
		case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(t):
			return rv.Elem(), true
		case rv.Kind() != reflect.Pointer && rv.CanAddr() && reflect.PointerTo(rv.Type()).AssignableTo(t):
			return rv.Addr(), true
		}
	}
	return reflect.Value{}, false
}

func (rt *rtype) Methods() []Method {
	rt.load()
	return rt.methods
}

func (rt *rtype) Fields() []Field {
	rt.load()
	return rt.fields
}

func (rt *rtype) Constructors() []Method {
	rt.load()
	return rt.ctors
}

func (rt *rtype) load() {
	rt.once.Do(func() {
		rt.mu.Lock()
		opts := rt.opts
		rt.mu.Unlock()

		rt.methods = rt.loadMethods()
		for _, s := range opts.statics {
			if m := rt.funcMethod(s.name, s.fn, false); m != nil {
				rt.methods = append(rt.methods, m)
			}
		}
		for _, c := range opts.ctors {
			if m := rt.funcMethod("", c, true); m != nil {
				rt.ctors = append(rt.ctors, m)
			}
		}
		rt.fields = rt.loadFields()
	})
}

func (rt *rtype) loadMethods() []Method {
	var out []Method
	if rt.t.Kind() == reflect.Interface {
		for i := 0; i < rt.t.NumMethod(); i++ {
			m := rt.t.Method(i)
			if !m.IsExported() {
				continue
			}
			if rm := rt.newMethod(m.Name, m.Type, 0); rm != nil {
				out = append(out, rm)
			}
		}
		return out
	}

	var promoted reflect.Type
	if sup := rt.superclass(); sup != nil {
		promoted = reflect.PointerTo(sup)
	}
	holder := IsStaticHolder(rt)
	pt := reflect.PointerTo(rt.t)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if !m.IsExported() {
			continue
		}
		if promoted != nil {
			if _, ok := promoted.MethodByName(m.Name); ok && !declaredOn(rt.t, m.Name) {
				continue
			}
		}
		rm := rt.newMethod(m.Name, m.Type, 1)
		if rm == nil {
			continue
		}
		rm.static = holder
		rm.holder = holder
		out = append(out, rm)
	}
	return out
}

// declaredOn reports whether t or *t declares the named method itself.
// Methods promoted from embedded fields are compiler-generated wrappers.
func declaredOn(t reflect.Type, name string) bool {
	for _, typ := range []reflect.Type{t, reflect.PointerTo(t)} {
		m, ok := typ.MethodByName(name)
		if !ok {
			continue
		}
		f := runtime.FuncForPC(m.Func.Pointer())
		if f == nil {
			continue
		}
		if file, _ := f.FileLine(f.Entry()); file != "<autogenerated>" {
			return true
		}
	}
	return false
}

func (rt *rtype) funcMethod(name string, fn any, ctor bool) *rmethod {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil
	}
	pkg, sym, ok := funcSymbol(v)
	if name == "" {
		name = sym
		if !ok {
			name = "New" + rt.t.Name()
		}
	}
	m := rt.newMethod(name, v.Type(), 0)
	if m == nil {
		return nil
	}
	m.fn = v
	m.static = true
	m.ctor = ctor
	if ok {
		m.pkg, m.sym = pkg, sym
	}
	return m
}

// funcSymbol splits the runtime name of a top-level function into its
// import path and identifier. Closures and method values are rejected.
func funcSymbol(v reflect.Value) (pkg, name string, ok bool) {
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "", "", false
	}
	full := f.Name()
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return "", "", false
	}
	pkg, name = full[:slash+1+dot], full[slash+1+dot+1:]
	if strings.ContainsAny(name, ".[") || !IsExported(name) {
		return "", "", false
	}
	return pkg, name, true
}

// newMethod describes a function type, skipping the first skip inputs
// (the receiver). Variadic functions and functions with more than one
// non-error result are not representable and yield nil.
func (rt *rtype) newMethod(name string, ft reflect.Type, skip int) *rmethod {
	if ft.IsVariadic() {
		return nil
	}
	m := &rmethod{decl: rt, name: name, ret: VoidType}
	for i := skip; i < ft.NumIn(); i++ {
		m.params = append(m.params, rt.reg.of(ft.In(i)))
	}
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			m.returnsErr = true
		} else {
			m.ret = rt.reg.of(ft.Out(0))
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil
		}
		m.ret = rt.reg.of(ft.Out(0))
		m.returnsErr = true
	default:
		return nil
	}
	return m
}

func (rt *rtype) loadFields() []Field {
	if rt.t.Kind() != reflect.Struct {
		return nil
	}
	var out []Field
	for i := 0; i < rt.t.NumField(); i++ {
		f := rt.t.Field(i)
		if f.Anonymous || !f.IsExported() {
			continue
		}
		out = append(out, &rfield{decl: rt, f: f, typ: rt.reg.of(f.Type)})
	}
	return out
}

func (rt *rtype) AssignableTo(u Type) bool {
	if ru, ok := u.(*rtype); ok {
		return rt.t.AssignableTo(ru.t)
	}
	return Identical(rt, u)
}

func (rt *rtype) IterElem() (Type, bool) {
	switch rt.t.Kind() {
	case reflect.Slice, reflect.Array:
		return rt.reg.of(rt.t.Elem()), true
	case reflect.Func:
		if yield, ok := seqYield(rt.t); ok {
			return rt.reg.of(yield.In(0)), true
		}
	}
	return nil, false
}

// seqYield matches the iter.Seq shape func(yield func(V) bool).
func seqYield(t reflect.Type) (reflect.Type, bool) {
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	y := t.In(0)
	if y.Kind() != reflect.Func || y.NumIn() != 1 || y.NumOut() != 1 || y.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return y, true
}

func (rt *rtype) New() (any, error) {
	switch rt.t.Kind() {
	case reflect.Interface:
		return nil, fmt.Errorf("%s: cannot instantiate an interface", rt.name)
	case reflect.Pointer:
		return reflect.New(rt.t.Elem()).Interface(), nil
	}
	return reflect.New(rt.t).Interface(), nil
}

type rmethod struct {
	decl       *rtype
	name       string
	params     []Type
	ret        Type
	returnsErr bool
	static     bool
	holder     bool
	ctor       bool
	fn         reflect.Value
	pkg, sym   string
}

func (m *rmethod) Name() string        { return m.name }
func (m *rmethod) DeclaringType() Type { return m.decl }
func (m *rmethod) ParamTypes() []Type  { return m.params }
func (m *rmethod) ReturnType() Type    { return m.ret }
func (m *rmethod) ReturnsErr() bool    { return m.returnsErr }
func (m *rmethod) IsStatic() bool      { return m.static }
func (m *rmethod) IsPublic() bool      { return IsExported(m.name) || m.fn.IsValid() }
func (m *rmethod) IsConstructor() bool { return m.ctor }

func (m *rmethod) Func() (string, string, bool) {
	return m.pkg, m.sym, m.sym != ""
}

func (m *rmethod) Invoke(recv any, args []any) (result any, err error) {
	var fn reflect.Value
	switch {
	case m.fn.IsValid():
		fn = m.fn
	case m.holder:
		fn = reflect.New(m.decl.t).MethodByName(m.name)
	default:
		if recv == nil {
			return nil, fmt.Errorf("%s.%s: nil receiver", m.decl.name, m.name)
		}
		rv := reflect.ValueOf(recv)
		fn = rv.MethodByName(m.name)
		if !fn.IsValid() && rv.Kind() != reflect.Pointer {
			ptr := reflect.New(rv.Type())
			ptr.Elem().Set(rv)
			fn = ptr.MethodByName(m.name)
		}
	}
	if !fn.IsValid() {
		return nil, fmt.Errorf("%s.%s: method not found on %T", m.decl.name, m.name, recv)
	}

	in, err := convertArgs(fn.Type(), args)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", m.decl.name, m.name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%s.%s: panic: %v", m.decl.name, m.name, r)
		}
	}()
	return splitResults(fn.Call(in), m.returnsErr)
}

func convertArgs(ft reflect.Type, args []any) ([]reflect.Value, error) {
	if len(args) != ft.NumIn() {
		return nil, fmt.Errorf("want %d arguments, got %d", ft.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := convertValue(a, ft.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

func convertValue(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(pt), nil
	}
	rv := reflect.ValueOf(a)
	if rv.Type().AssignableTo(pt) {
		return rv, nil
	}
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(pt) {
		return rv.Elem(), nil
	}
	if up, ok := Upcast(a, pt); ok {
		return up, nil
	}
	from, to := reflectKinds[rv.Kind()], reflectKinds[pt.Kind()]
	if (from.IsPrimitive() && to.IsPrimitive() && (from == Bool) == (to == Bool)) || from == to {
		if rv.CanConvert(pt) {
			return rv.Convert(pt), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), pt)
}

func splitResults(out []reflect.Value, returnsErr bool) (any, error) {
	if returnsErr {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

type rfield struct {
	decl *rtype
	f    reflect.StructField
	typ  Type
}

func (f *rfield) Name() string          { return f.f.Name }
func (f *rfield) Type() Type            { return f.typ }
func (f *rfield) DeclaringType() Type   { return f.decl }
func (f *rfield) IsPublic() bool        { return f.f.IsExported() }
func (f *rfield) Tag(key string) string { return f.f.Tag.Get(key) }

var errNotStruct = errors.New("receiver is not a struct")

func (f *rfield) Get(recv any) (any, error) {
	rv := reflect.Indirect(reflect.ValueOf(recv))
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s.%s: %w", f.decl.name, f.f.Name, errNotStruct)
	}
	fv := rv.FieldByName(f.f.Name)
	if !fv.IsValid() {
		return nil, fmt.Errorf("%s.%s: no such field on %T", f.decl.name, f.f.Name, recv)
	}
	return fv.Interface(), nil
}

func (f *rfield) Set(recv any, v any) error {
	rv := reflect.ValueOf(recv)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%s.%s: receiver %T is not addressable", f.decl.name, f.f.Name, recv)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("%s.%s: %w", f.decl.name, f.f.Name, errNotStruct)
	}
	fv := rv.FieldByName(f.f.Name)
	if !fv.IsValid() || !fv.CanSet() {
		return fmt.Errorf("%s.%s: field cannot be set", f.decl.name, f.f.Name)
	}
	val, err := convertValue(v, fv.Type())
	if err != nil {
		return fmt.Errorf("%s.%s: %w", f.decl.name, f.f.Name, err)
	}
	fv.Set(val)
	return nil
}
