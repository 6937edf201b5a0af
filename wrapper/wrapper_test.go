package wrapper_test

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"

	"github.com/sdboyer/esbean/jtype"
	"github.com/sdboyer/esbean/wrapper"
)

type Counter struct {
	Label  string
	Secret string `js:"-"`

	n     int
	items []string
	attrs map[string]string
}

func NewCounter() *Counter {
	return &Counter{items: []string{"a", "b"}, attrs: map[string]string{"x": "1"}}
}

func NewCounterLabeled(label string) *Counter {
	c := NewCounter()
	c.Label = label
	return c
}

func (c *Counter) GetCount() int  { return c.n }
func (c *Counter) SetCount(n int) { c.n = n }

func (c *Counter) Add(n int) int {
	c.n += n
	return c.n
}

func (c *Counter) GetItem(i int) string    { return c.items[i] }
func (c *Counter) SetItem(i int, v string) { c.items[i] = v }
func (c *Counter) GetItemSize() int        { return len(c.items) }
func (c *Counter) GetAttr(k string) string { return c.attrs[k] }
func (c *Counter) SetAttr(k, v string)     { c.attrs[k] = v }
func (c *Counter) RemoveAttr(k string)     { delete(c.attrs, k) }
func (c *Counter) Same(o *Counter) bool    { return c == o }
func (c *Counter) Fail() (string, error)   { return "", errors.New("boom") }
func (c *Counter) Describe() string        { return "native" }

func (c *Counter) GetAttrKeys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Counter) Keys() []string { return []string{"count", "label"} }

// CounterEcmaWrap retrofits script methods onto Counter.
type CounterEcmaWrap struct{}

func (CounterEcmaWrap) Describe(c *Counter) string { return "wrapped " + c.Label }

func parseInt(n int) string       { return "int" }
func parseString(s string) string { return "string" }

func setup(t *testing.T) (*goja.Runtime, *wrapper.Runtime) {
	t.Helper()
	reg := jtype.NewRegistry()
	reg.Register(reflect.TypeFor[CounterEcmaWrap]())
	cls := reg.Register(reflect.TypeFor[Counter](),
		jtype.Constructors(NewCounter, NewCounterLabeled),
		jtype.Static("parse", parseInt),
		jtype.Static("parse", parseString),
	)
	vm := goja.New()
	r := wrapper.NewRuntime(vm, reg)
	if err := r.Bind("Counter", cls); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return vm, r
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	if err != nil {
		t.Fatalf("%s: %v", src, err)
	}
	return v
}

func TestScriptProperties(t *testing.T) {
	is := is.New(t)
	vm, _ := setup(t)

	tests := []struct {
		src  string
		want any
	}{
		{`new Counter("x").label`, "x"},
		{`new Counter().label`, ""},
		{`var c = new Counter(); c.count = 3; c.count`, int64(3)},
		{`new Counter().secret`, nil},
		{`var c = new Counter(); c.add(2); c.add(5)`, int64(7)},
		{`new Counter().item.length`, int64(2)},
		{`new Counter().itemSize`, int64(2)},
		{`new Counter().item[1]`, "b"},
		{`var c = new Counter(); c.item[0] = "z"; c.item[0]`, "z"},
		{`var c = new Counter(); c.item === c.item`, true},
		{`new Counter().attr.x`, "1"},
		{`var c = new Counter(); c.attr.y = "2"; c.attr["y"]`, "2"},
		{`var c = new Counter(); delete c.attr.x; c.attr.x`, ""},
		{`Object.keys(new Counter().attr).join(",")`, "x"},
		{`"count" in new Counter()`, true},
		{`"nope" in new Counter()`, false},
		{`var c = new Counter(); c.same(c)`, true},
		{`new Counter().same(new Counter())`, false},
	}
	for _, tt := range tests {
		v := run(t, vm, tt.src)
		is.Equal(v.Export(), tt.want) // tt.src
	}
}

func TestScriptDispatch(t *testing.T) {
	is := is.New(t)
	vm, _ := setup(t)

	is.Equal(run(t, vm, `Counter.parse(5)`).Export(), "int")
	is.Equal(run(t, vm, `Counter.parse("5")`).Export(), "string")

	_, err := vm.RunString(`Counter.parse(new Counter())`)
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), wrapper.ErrNoMatch.Error()))
}

func TestCompanionOverridesMethod(t *testing.T) {
	is := is.New(t)
	vm, _ := setup(t)
	is.Equal(run(t, vm, `new Counter("q").describe()`).Export(), "wrapped q")
}

func TestScriptErrorsAreCatchable(t *testing.T) {
	is := is.New(t)
	vm, _ := setup(t)
	v := run(t, vm, `try { new Counter().fail(); "no" } catch (e) { "caught" }`)
	is.Equal(v.Export(), "caught")
}

func TestRootKeys(t *testing.T) {
	is := is.New(t)
	vm, _ := setup(t)
	v := run(t, vm, `Object.keys(new Counter()).join(",")`)
	is.Equal(v.Export(), "count,label")
}

func TestBridgeViews(t *testing.T) {
	is := is.New(t)
	_, r := setup(t)

	f, err := r.Factory(wrapper.Class[Counter](r))
	is.NoErr(err)
	is.Equal(f.VersionID(), wrapper.FormatVersion)
	is.Equal(f.Hash(), r.Introspector().Analyze(wrapper.Class[Counter](r)).Hash())

	f2, err := r.Factory(r.Registry().TypeOf(&Counter{}))
	is.NoErr(err)
	is.Equal(f, f2) // factories are built once per class

	c := NewCounterLabeled("v")
	b := f.Wrap(c)
	is.Equal(b.Value(), c)
	is.Equal(b.JavaType().Name(), "*github.com/sdboyer/esbean/wrapper_test.Counter")
	is.Equal(b.Get("label").Export(), "v")
	is.True(b.Set("count", r.VM().ToValue(4)))
	is.Equal(c.n, 4)
	is.True(!b.Set("nope", r.VM().ToValue(1)))
	is.True(!b.Delete("label"))

	static := f.WrapStatic()
	is.Equal(static.Value(), nil)
	is.Equal(static.JavaType().Name(), "github.com/sdboyer/esbean/wrapper_test.Counter")
	is.True(static.Has("parse"))
	is.True(!static.Has("add"))

	_, err = b.Construct(nil)
	is.True(errors.Is(err, wrapper.ErrNotStatic))
	_, err = static.Call("add", []goja.Value{r.VM().ToValue(1)})
	is.True(errors.Is(err, wrapper.ErrUndefined))
	_, err = b.Call("missing", nil)
	is.True(errors.Is(err, wrapper.ErrUndefined))

	v, err := static.Construct([]goja.Value{r.VM().ToValue("made")})
	is.NoErr(err)
	made, ok := v.Export().(wrapper.Bridge)
	is.True(ok)
	is.Equal(made.Value().(*Counter).Label, "made")
}

type Point struct{ X, Y int }

func TestNoConstructor(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	r := wrapper.NewRuntime(goja.New(), reg)
	f, err := r.Factory(reg.Of(reflect.TypeFor[Point]()))
	is.NoErr(err)
	_, err = f.WrapStatic().Construct(nil)
	is.True(errors.Is(err, wrapper.ErrNoConstructor))
}

func TestValueStructsAreAddressable(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	r := wrapper.NewRuntime(goja.New(), reg)
	f, err := r.Factory(reg.Of(reflect.TypeFor[Point]()))
	is.NoErr(err)
	b := f.Wrap(Point{X: 1})
	is.True(b.Set("y", r.VM().ToValue(2)))
	is.Equal(b.Value(), &Point{X: 1, Y: 2})
}

func TestFromNative(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	r := wrapper.NewRuntime(goja.New(), reg)

	type mode int
	is.Equal(r.FromNative(mode(3)).Export(), int64(3))
	is.Equal(r.FromNative(uint8(7)).Export(), int64(7))
	is.Equal(r.FromNative("s").Export(), "s")
	is.True(goja.IsNull(r.FromNative(nil)))
	is.True(goja.IsNull(r.FromNative((*Point)(nil))))

	v := r.FromNative(&Point{X: 1})
	b, ok := v.Export().(wrapper.Bridge)
	is.True(ok)
	is.Equal(b.Get("x").Export(), int64(1))
}

func TestToNative(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	vm := goja.New()
	r := wrapper.NewRuntime(vm, reg)

	x, err := r.ToNative(vm.ToValue(2.9), reg.Of(reflect.TypeFor[int]()))
	is.NoErr(err)
	is.Equal(x, int64(2))

	x, err = r.ToNative(goja.Undefined(), reg.Of(reflect.TypeFor[string]()))
	is.NoErr(err)
	is.Equal(x, nil)

	arr, err := vm.RunString(`["a", "b"]`)
	is.NoErr(err)
	ss, err := wrapper.Unwrap[[]string](r, arr)
	is.NoErr(err)
	if diff := cmp.Diff([]string{"a", "b"}, ss); diff != "" {
		t.Errorf("Unwrap mismatch (-want +got):\n%s", diff)
	}

	p := &Point{X: 5}
	got, err := wrapper.Unwrap[Point](r, r.FromNative(p))
	is.NoErr(err)
	is.Equal(got, Point{X: 5})
}

func TestCoercionHelpers(t *testing.T) {
	is := is.New(t)
	vm := goja.New()

	args := []goja.Value{vm.ToValue("12"), vm.ToValue(2.5)}
	is.True(goja.IsUndefined(wrapper.Arg(args, 2)))
	is.Equal(wrapper.ToInt64(wrapper.Arg(args, 0)), int64(12))
	is.Equal(wrapper.ToFloat64(wrapper.Arg(args, 1)), 2.5)
	is.Equal(wrapper.ToString(wrapper.Arg(args, 5)), "")
	is.Equal(wrapper.ToBool(wrapper.Arg(args, 0)), true)
	is.Equal(wrapper.AsNumber[int8](args[0]), int8(12))
	is.Equal(wrapper.AsNumber[float32](args[1]), float32(2.5))

	type name string
	is.Equal(wrapper.AsString[name](args[0]), name("12"))
	is.Equal(wrapper.AsBool[bool](goja.Null()), false)
}

func TestPickArity(t *testing.T) {
	is := is.New(t)
	is.Equal(wrapper.PickArity(0), -1)
	is.Equal(wrapper.PickArity(1, 0, 2, 3), 2)
	is.Equal(wrapper.PickArity(2, 0, 2, 3), 2)
	is.Equal(wrapper.PickArity(5, 0, 2, 3), 3)
	is.Equal(wrapper.PickArity(0, 1), 1)
}

func TestEnumerate(t *testing.T) {
	is := is.New(t)

	got, err := wrapper.Enumerate([]int{1, 2})
	is.NoErr(err)
	is.Equal(got, []string{"1", "2"})

	seq := func(yield func(string) bool) {
		_ = yield("a") && yield("b")
	}
	got, err = wrapper.Enumerate(seq)
	is.NoErr(err)
	is.Equal(got, []string{"a", "b"})

	_, err = wrapper.Enumerate(42)
	is.True(err != nil)
}

type Vector struct{ DX, DY float64 }

func TestGeneratedWrapperIsPreferred(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	r := wrapper.NewRuntime(goja.New(), reg)
	cls := reg.Of(reflect.TypeFor[Vector]())
	info := r.Introspector().Analyze(cls)

	var built int
	wrapper.RegisterGenerated(wrapper.Generated{
		Class:   cls.Name(),
		Version: wrapper.FormatVersion,
		Hash:    info.Hash(),
		New: func(r *wrapper.Runtime) wrapper.Bridge {
			built++
			obj, err := wrapper.Build(r, info)
			is.NoErr(err)
			return obj
		},
	})
	g, ok := wrapper.LookupGenerated(cls.Name())
	is.True(ok)
	is.Equal(g.Hash, info.Hash())

	_, err := r.Factory(cls)
	is.NoErr(err)
	_, err = r.Factory(cls)
	is.NoErr(err)
	is.Equal(built, 1)
}

type TallyCounter struct {
	Counter
	Step int
}

func NewTallyCounter(label string) *TallyCounter {
	return &TallyCounter{Counter: *NewCounterLabeled(label), Step: 1}
}

func TestInheritedCompanionMethod(t *testing.T) {
	is := is.New(t)
	vm, r := setup(t)
	cls := r.Registry().Register(reflect.TypeFor[TallyCounter](), jtype.Constructors(NewTallyCounter))
	is.NoErr(r.Bind("Tally", cls))

	is.Equal(run(t, vm, `new Tally("t").describe()`).Export(), "wrapped t")
	is.Equal(run(t, vm, `new Tally("t").add(4)`).Export(), int64(4))
	is.Equal(run(t, vm, `new Tally("t").step`).Export(), int64(1))

	up, err := wrapper.Upcast[*Counter](&TallyCounter{Counter: Counter{Label: "u"}})
	is.NoErr(err)
	is.Equal(up.Label, "u")
	_, err = wrapper.Upcast[*TallyCounter](&Counter{})
	is.True(err != nil)
}
