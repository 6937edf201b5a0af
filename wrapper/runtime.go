package wrapper

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/dispatch"
	"github.com/sdboyer/esbean/jtype"
)

// Runtime connects a goja runtime to the native classes of a Registry. It
// owns the wrapper factories built for that goja runtime. Like goja itself,
// bridges must only be used from the goroutine running scripts; Factory may
// be called concurrently.
type Runtime struct {
	vm    *goja.Runtime
	reg   *jtype.Registry
	intro *beaninfo.Introspector
	log   logrus.FieldLogger

	group     singleflight.Group
	mu        sync.RWMutex
	factories map[string]Bridge
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithIntrospector shares an introspector between runtimes. It must
// resolve companions through the same Registry.
func WithIntrospector(in *beaninfo.Introspector) RuntimeOption {
	return func(r *Runtime) { r.intro = in }
}

// WithRuntimeLogger sets the logger.
func WithRuntimeLogger(log logrus.FieldLogger) RuntimeOption {
	return func(r *Runtime) { r.log = log }
}

// NewRuntime returns a Runtime for vm over the classes described by reg.
func NewRuntime(vm *goja.Runtime, reg *jtype.Registry, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		vm:        vm,
		reg:       reg,
		log:       logrus.StandardLogger(),
		factories: make(map[string]Bridge),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.intro == nil {
		r.intro = beaninfo.NewIntrospector(reg, beaninfo.WithLogger(r.log))
	}
	return r
}

// VM is the goja runtime.
func (r *Runtime) VM() *goja.Runtime { return r.vm }

// Registry is the registry native types are described by.
func (r *Runtime) Registry() *jtype.Registry { return r.reg }

// Introspector is the introspector analyzing the classes.
func (r *Runtime) Introspector() *beaninfo.Introspector { return r.intro }

// Factory returns the blank wrapper factory of t's class. A generated
// wrapper is used when one is registered with the current format version
// and the hash of the live analysis; otherwise the factory is built in
// memory. Factories are built once per class.
func (r *Runtime) Factory(t jtype.Type) (Bridge, error) {
	cls := jtype.ClassOf(t)
	name := cls.Name()

	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		f, ok := r.factories[name]
		r.mu.RUnlock()
		if ok {
			return f, nil
		}

		f, err := r.build(cls)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.factories[name] = f
		r.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Bridge), nil
}

func (r *Runtime) build(cls jtype.Type) (Bridge, error) {
	info := r.intro.Analyze(cls)
	log := r.log.WithField("class", cls.Name())

	if g, ok := LookupGenerated(cls.Name()); ok {
		if g.Version == FormatVersion && g.Hash == info.Hash() {
			log.Debug("using generated wrapper")
			return g.New(r), nil
		}
		log.WithFields(logrus.Fields{
			"version": g.Version,
			"hash":    g.Hash,
		}).Debug("generated wrapper is stale; building in memory")
	}

	obj, err := Build(r, info)
	if err != nil {
		return nil, fmt.Errorf("building wrapper for %s: %w", cls.Name(), err)
	}
	log.Debug("built wrapper in memory")
	return obj, nil
}

// Wrap returns the script value bridging the native value x. Values whose
// wrapper cannot be built are handed to goja as they are.
func (r *Runtime) Wrap(x any) goja.Value {
	f, err := r.Factory(r.reg.TypeOf(x))
	if err != nil {
		r.log.WithError(err).Debug("wrapping value through goja")
		return r.vm.ToValue(x)
	}
	return r.vm.NewDynamicObject(f.Wrap(x))
}

// Bind installs t's class as the global name: a constructor function
// carrying the class's static methods.
func (r *Runtime) Bind(name string, t jtype.Type) error {
	f, err := r.Factory(t)
	if err != nil {
		return err
	}
	static := f.WrapStatic()
	ctor := r.vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		return r.Must(static.Construct(call.Arguments)).ToObject(r.vm)
	}).ToObject(r.vm)

	for _, m := range r.intro.Analyze(t).StaticMethodNames() {
		if err := ctor.Set(m, r.Method(static, m)); err != nil {
			return fmt.Errorf("binding %s.%s: %w", name, m, err)
		}
	}
	return r.vm.Set(name, ctor)
}

// Method returns a script function calling the named method of b.
func (r *Runtime) Method(b Bridge, name string) goja.Value {
	return r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return r.Must(b.Call(name, call.Arguments))
	})
}

// Must returns v, throwing err into the script if it is not nil.
func (r *Runtime) Must(v goja.Value, err error) goja.Value {
	if err != nil {
		r.Throw(err)
	}
	if v == nil {
		return goja.Undefined()
	}
	return v
}

// Throw raises err as a script exception. It does not return.
func (r *Runtime) Throw(err error) {
	panic(r.vm.NewGoError(err))
}

// Invoke calls md on recv with script arguments, converting them to the
// parameter types and the result back to a script value.
func (r *Runtime) Invoke(md *beaninfo.MethodDescriptor, recv any, args []goja.Value) (goja.Value, error) {
	if recv == nil && !md.IsStatic() {
		return nil, fmt.Errorf("%s: %w", md.Name(), ErrNotStatic)
	}
	params := md.ParamTypes()
	native := make([]any, len(params))
	for i, p := range params {
		x, err := r.ToNative(Arg(args, i), p)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", md.Name(), i, err)
		}
		native[i] = x
	}
	res, err := md.Invoke(recv, native)
	if err != nil {
		return nil, err
	}
	if md.ReturnType().Kind() == jtype.Void {
		return goja.Undefined(), nil
	}
	return r.FromNative(res), nil
}

// PickArity chooses the overload arity for a call with argc arguments: the
// smallest available arity that is at least argc, or else the largest.
// arities must be sorted ascending; PickArity returns -1 when it is empty.
func PickArity(argc int, arities ...int) int {
	if len(arities) == 0 {
		return -1
	}
	i := sort.SearchInts(arities, argc)
	if i == len(arities) {
		return arities[len(arities)-1]
	}
	return arities[i]
}

// Dispatcher returns a dispatcher over overload candidates whose parameter
// types are named natively, as generated wrappers name them.
func (r *Runtime) Dispatcher(cands ...[]reflect.Type) *dispatch.Dispatcher {
	types := make([][]jtype.Type, len(cands))
	for i, params := range cands {
		types[i] = make([]jtype.Type, len(params))
		for j, p := range params {
			types[i][j] = r.reg.Of(p)
		}
	}
	return dispatch.New(types)
}

// Select returns the candidate of d the script arguments convert to most
// cheaply, or dispatch.NoMatch.
func (r *Runtime) Select(d *dispatch.Dispatcher, args []goja.Value) int {
	return d.Select(r.ArgTypes(args))
}
