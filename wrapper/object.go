package wrapper

import (
	"fmt"
	"reflect"

	"github.com/dop251/goja"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/dispatch"
	"github.com/sdboyer/esbean/jtype"
)

// callTable is the dispatch state of one overloaded name: the groups by
// arity and a dispatcher for every group with more than one candidate.
type callTable struct {
	name    string
	arities []int
	groups  map[int]beaninfo.OverloadGroup
	disp    map[int]*dispatch.Dispatcher
}

func newCallTable(name string, groups []beaninfo.OverloadGroup) *callTable {
	ct := &callTable{
		name:   name,
		groups: make(map[int]beaninfo.OverloadGroup),
		disp:   make(map[int]*dispatch.Dispatcher),
	}
	for arity, g := range groups {
		if len(g) == 0 {
			continue
		}
		ct.arities = append(ct.arities, arity)
		ct.groups[arity] = g
		if len(g) > 1 {
			ct.disp[arity] = dispatch.New(g.ParamTypes())
		}
	}
	return ct
}

func (ct *callTable) pick(r *Runtime, args []goja.Value) (*beaninfo.MethodDescriptor, error) {
	arity := PickArity(len(args), ct.arities...)
	g := ct.groups[arity]
	switch len(g) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, ct.name)
	case 1:
		return g[0], nil
	}
	i := r.Select(ct.disp[arity], args)
	if i == dispatch.NoMatch {
		return nil, fmt.Errorf("%w: %s/%d", ErrNoMatch, ct.name, arity)
	}
	return g[i], nil
}

// table is shared by the factory of a class and every Object it wraps.
// Name lookups map to 1-based indexes so that a missing name reads as 0.
type table struct {
	rt      *Runtime
	info    *beaninfo.BeanInfo
	props   map[string]int
	plist   []beaninfo.Property
	methods map[string]int
	mlist   []*callTable
	statics map[string]int
	slist   []*callTable
	ctors   *callTable
}

// Build returns the blank factory for info. The class must be described by
// the Runtime's Registry, since its methods are invoked through reflection.
func Build(r *Runtime, info *beaninfo.BeanInfo) (*Object, error) {
	if _, ok := info.Type().(reflected); !ok {
		return nil, fmt.Errorf("%s: %w", info.Type().Name(), jtype.ErrNotInvocable)
	}
	t := &table{
		rt:      r,
		info:    info,
		props:   make(map[string]int),
		methods: make(map[string]int),
		statics: make(map[string]int),
	}
	for _, p := range info.Properties() {
		t.plist = append(t.plist, p)
		t.props[p.Name] = len(t.plist)
	}
	for _, name := range info.MethodNames() {
		t.mlist = append(t.mlist, newCallTable(name, info.Methods(name)))
		t.methods[name] = len(t.mlist)
	}
	for _, name := range info.StaticMethodNames() {
		t.slist = append(t.slist, newCallTable(name, info.StaticMethods(name)))
		t.statics[name] = len(t.slist)
	}
	creators, _ := info.Creators()
	t.ctors = newCallTable(beaninfo.CreateMethod, creators)
	return &Object{t: t}, nil
}

// Object is a Bridge driven by dispatch tables built in memory.
type Object struct {
	t      *table
	value  any
	static bool
	views  Views
}

var _ Bridge = (*Object)(nil)

func (o *Object) Dup() Bridge { return &Object{t: o.t} }

func (o *Object) Wrap(native any) Bridge {
	if rv := reflect.ValueOf(native); rv.Kind() == reflect.Struct {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		native = ptr.Interface()
	}
	return &Object{t: o.t, value: native}
}

func (o *Object) WrapStatic() Bridge { return &Object{t: o.t, static: true} }

func (o *Object) Value() any { return o.value }

func (o *Object) JavaType() jtype.Type {
	if o.value == nil {
		return o.t.info.Type()
	}
	return o.t.rt.reg.TypeOf(o.value)
}

func (o *Object) VersionID() int { return FormatVersion }

func (o *Object) Hash() string { return o.t.info.Hash() }

// Get reads a property. Indexed and named properties read as cached
// sub-views; methods read as functions.
func (o *Object) Get(key string) goja.Value {
	r := o.t.rt
	if o.static {
		if o.t.statics[key] > 0 {
			return r.Method(o, key)
		}
		return goja.Undefined()
	}
	if i := o.t.props[key]; i > 0 {
		return o.getProp(o.t.plist[i-1])
	}
	if o.t.methods[key] > 0 {
		return r.Method(o, key)
	}
	return goja.Undefined()
}

func (o *Object) getProp(p beaninfo.Property) goja.Value {
	r := o.t.rt
	switch p.Kind {
	case beaninfo.Indexed:
		return o.views.Get(r, p.Name, func() goja.DynamicObject { return o.indexedView(p) })
	case beaninfo.Named:
		return o.views.Get(r, p.Name, func() goja.DynamicObject { return o.namedView(p) })
	}
	switch {
	case p.Getter != nil:
		return r.Must(r.Invoke(p.Getter, o.value, nil))
	case p.Field != nil:
		x, err := p.Field.Get(o.value)
		if err != nil {
			r.Throw(err)
		}
		return r.FromNative(x)
	}
	return goja.Undefined()
}

func (o *Object) invoker(md *beaninfo.MethodDescriptor) func(args ...goja.Value) (goja.Value, error) {
	if md == nil {
		return nil
	}
	return func(args ...goja.Value) (goja.Value, error) {
		return o.t.rt.Invoke(md, o.value, args)
	}
}

func (o *Object) indexedView(p beaninfo.Property) *IndexedView {
	v := &IndexedView{RT: o.t.rt}
	if call := o.invoker(p.Size); call != nil {
		v.Size = func() (goja.Value, error) { return call() }
	}
	if call := o.invoker(p.Getter); call != nil {
		v.Item = func(i goja.Value) (goja.Value, error) { return call(i) }
	}
	if call := o.invoker(p.Setter); call != nil {
		v.SetItem = func(i, val goja.Value) error {
			_, err := call(i, val)
			return err
		}
	}
	return v
}

func (o *Object) namedView(p beaninfo.Property) *NamedView {
	v := &NamedView{RT: o.t.rt}
	if call := o.invoker(p.Getter); call != nil {
		v.Item = func(k goja.Value) (goja.Value, error) { return call(k) }
	}
	if call := o.invoker(p.Setter); call != nil {
		v.SetItem = func(k, val goja.Value) error {
			_, err := call(k, val)
			return err
		}
	}
	if call := o.invoker(p.Remover); call != nil {
		v.Remove = func(k goja.Value) (goja.Value, error) { return call(k) }
	}
	if md := p.Iterator; md != nil {
		v.Names = func() ([]string, error) { return o.enumerate(md) }
	}
	return v
}

func (o *Object) enumerate(md *beaninfo.MethodDescriptor) ([]string, error) {
	x, err := md.Invoke(o.value, nil)
	if err != nil {
		return nil, err
	}
	return Enumerate(x)
}

// Set writes a plain property through its setter or field. Unknown and
// read-only properties are ignored.
func (o *Object) Set(key string, val goja.Value) bool {
	i := o.t.props[key]
	if o.static || i == 0 {
		return false
	}
	r := o.t.rt
	p := o.t.plist[i-1]
	if p.Kind != beaninfo.Plain {
		return false
	}
	switch {
	case p.Setter != nil:
		r.Must(r.Invoke(p.Setter, o.value, []goja.Value{val}))
	case p.Field != nil:
		x, err := r.ToNative(val, p.Field.Type())
		if err == nil {
			err = p.Field.Set(o.value, x)
		}
		if err != nil {
			r.Throw(err)
		}
	default:
		return false
	}
	return true
}

func (o *Object) Has(key string) bool {
	if o.static {
		return o.t.statics[key] > 0
	}
	return o.t.props[key] > 0 || o.t.methods[key] > 0
}

// Delete is false on the root object; named views handle deletion.
func (o *Object) Delete(string) bool { return false }

// Keys enumerates the bound value with the class's default iterator.
func (o *Object) Keys() []string {
	md := o.t.info.Iterator()
	if md == nil || o.value == nil {
		return nil
	}
	keys, err := o.enumerate(md)
	if err != nil {
		o.t.rt.Throw(err)
	}
	return keys
}

func (o *Object) Call(name string, args []goja.Value) (goja.Value, error) {
	idx, list := o.t.methods, o.t.mlist
	if o.static {
		idx, list = o.t.statics, o.t.slist
	}
	i := idx[name]
	if i == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUndefined, name)
	}
	md, err := list[i-1].pick(o.t.rt, args)
	if err != nil {
		return nil, err
	}
	return o.t.rt.Invoke(md, o.value, args)
}

func (o *Object) Construct(args []goja.Value) (goja.Value, error) {
	if !o.static {
		return nil, fmt.Errorf("%s: %w", o.t.info.Type().Name(), ErrNotStatic)
	}
	if len(o.t.ctors.arities) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoConstructor, o.t.info.Type().Name())
	}
	md, err := o.t.ctors.pick(o.t.rt, args)
	if err != nil {
		return nil, err
	}
	return o.t.rt.Invoke(md, nil, args)
}
