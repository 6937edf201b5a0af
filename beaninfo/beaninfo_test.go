package beaninfo_test

import (
	"iter"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
	"github.com/sirupsen/logrus"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/jtype"
)

type Named interface{ Name() string }

type Labeled interface{ Label() string }

type Base struct{ Serial int }

func (b *Base) Name() string { return "base" }
func (b *Base) Size() int    { return 1 }

type Shape struct {
	Base
	Color string
	Notes string `js:"memo"`
	Skip  string `js:"-"`
}

func (s *Shape) Name() string               { return "shape" }
func (s *Shape) Label() string              { return "label" }
func (s *Shape) GetArea() float64           { return 0 }
func (s *Shape) GetPointSize() int          { return 0 }
func (s *Shape) GetPoint(i int) float64     { return 0 }
func (s *Shape) SetPoint(i int, v float64)  {}
func (s *Shape) GetTag(k string) string     { return "" }
func (s *Shape) SetTag(k, v string)         {}
func (s *Shape) DeleteTag(k string)         {}
func (s *Shape) GetTagNames() []string      { return nil }
func (s *Shape) GetNothing()                {}
func (s *Shape) Settle(v int)               {}
func (s *Shape) Keys() []string             { return nil }
func (s *Shape) Iterator() iter.Seq[string] { return nil }

func newLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	return l
}

func shapeRegistry() (*jtype.Registry, jtype.Type) {
	reg := jtype.NewRegistry()
	cls := reg.Register(reflect.TypeFor[Shape](),
		jtype.Implements(reflect.TypeFor[Named](), reflect.TypeFor[Labeled]()))
	return reg, cls
}

func propNames(bi *beaninfo.BeanInfo) map[string]beaninfo.PropertyKind {
	out := make(map[string]beaninfo.PropertyKind)
	for _, p := range bi.Properties() {
		out[p.Name] = p.Kind
	}
	return out
}

func TestPropertyInference(t *testing.T) {
	is := is.New(t)
	reg, cls := shapeRegistry()
	bi := beaninfo.NewIntrospector(reg, beaninfo.WithLogger(newLogger())).Analyze(cls)

	want := map[string]beaninfo.PropertyKind{
		"area":      beaninfo.Plain,
		"pointSize": beaninfo.Plain,
		"point":     beaninfo.Indexed,
		"tag":       beaninfo.Named,
		"color":     beaninfo.Plain,
		"memo":      beaninfo.Plain,
		"serial":    beaninfo.Plain,
	}
	if diff := cmp.Diff(want, propNames(bi)); diff != "" {
		t.Fatalf("properties mismatch (-want +got):\n%s", diff)
	}

	point, _ := bi.Property("point")
	is.Equal(point.Size.Method().Name(), "GetPointSize")
	is.Equal(point.Getter.Method().Name(), "GetPoint")
	is.Equal(point.Setter.Method().Name(), "SetPoint")

	tag, _ := bi.Property("tag")
	is.Equal(tag.Getter.Method().Name(), "GetTag")
	is.Equal(tag.Setter.Method().Name(), "SetTag")
	is.Equal(tag.Remover.Method().Name(), "DeleteTag")
	is.Equal(tag.Iterator.Method().Name(), "GetTagNames")

	area, _ := bi.Property("area")
	is.True(area.Readable())
	is.True(!area.Writable())

	is.Equal(bi.Iterator().Name(), "keys") // keys wins over iterator
}

func TestOwnMethodsWin(t *testing.T) {
	is := is.New(t)
	reg, cls := shapeRegistry()
	bi := beaninfo.NewIntrospector(reg).Analyze(cls)

	name := bi.Methods("name")
	is.Equal(len(name), 1)
	is.Equal(len(name[0]), 1)
	is.Equal(name[0][0].Method().DeclaringType().Name(), cls.Name())

	label := bi.Methods("label")
	is.Equal(label[0][0].Method().DeclaringType().Name(), cls.Name())

	size := bi.Methods("size")
	is.Equal(size[0][0].Method().DeclaringType().Name(), reg.Of(reflect.TypeFor[Base]()).Name())

	is.Equal(bi.Methods("settle")[1][0].Name(), "settle")
	_, ok := bi.Property("tle")
	is.True(!ok)
	_, ok = bi.Property("nothing")
	is.True(!ok)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	is := is.New(t)
	reg, cls := shapeRegistry()
	in := beaninfo.NewIntrospector(reg, beaninfo.WithCacheSize(1))

	first := in.Analyze(cls)
	is.Equal(in.Analyze(reg.Of(reflect.TypeFor[*Shape]())), first) // pointer analyzes the class

	in.Clear()
	is.Equal(in.Len(), 0)
	second := in.Analyze(cls)
	is.True(first != second)
	is.Equal(first.Describe(), second.Describe())
	is.Equal(first.Hash(), second.Hash())

	in.Invalidate(cls)
	in.Analyze(reg.Of(reflect.TypeFor[Base]()))
	is.Equal(in.Len(), 1) // bounded
	is.Equal(in.Analyze(cls).Hash(), first.Hash())
}

type Foo struct{}

func (f *Foo) Bar() string   { return "foo" }
func (f *Foo) Baz(n int) int { return n }

type FooEcmaWrap struct{}

func (FooEcmaWrap) Bar(self *Foo) string          { return "wrapped" }
func (FooEcmaWrap) Qux(self Foo, s string) string { return s }
func (FooEcmaWrap) Make(n int) *Foo               { return &Foo{} }

func TestEcmaWrapOverwrite(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	reg.Register(reflect.TypeFor[FooEcmaWrap]())
	cls := reg.Register(reflect.TypeFor[Foo]())
	bi := beaninfo.NewIntrospector(reg).Analyze(cls)

	bar := bi.Methods("bar")
	is.Equal(len(bar), 1)
	is.Equal(len(bar[0]), 1)
	md := bar[0][0]
	is.True(md.StaticVirtual())
	is.True(md.Overwrite())
	is.True(!md.IsStatic())
	is.Equal(md.Method().DeclaringType().SimpleName(), "FooEcmaWrap")

	res, err := md.Invoke(&Foo{}, nil)
	is.NoErr(err)
	is.Equal(res, "wrapped")

	qux := bi.Methods("qux")[1][0]
	is.True(qux.StaticVirtual())
	res, err = qux.Invoke(&Foo{}, []any{"x"})
	is.NoErr(err)
	is.Equal(res, "x")

	mk := bi.StaticMethods("make")
	is.Equal(len(mk[1]), 1)
	is.True(mk[1][0].IsStatic())
	is.True(!mk[1][0].StaticVirtual())
}

func TestStaticVirtualArity(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	reg.Register(reflect.TypeFor[FooEcmaWrap]())
	cls := reg.Register(reflect.TypeFor[Foo]())
	bi := beaninfo.NewIntrospector(reg).Analyze(cls)

	for _, name := range bi.MethodNames() {
		for _, g := range bi.Methods(name) {
			for _, md := range g {
				if !md.StaticVirtual() {
					continue
				}
				native := md.Method().ParamTypes()
				is.Equal(md.Arity(), len(native)-1)
				is.Equal(md.DeclaringType(), native[0])
			}
		}
	}
}

type Money struct{ cents int64 }

func NewMoney(cents int) *Money              { return &Money{int64(cents)} }
func NewMoneyParse(s string) (*Money, error) { return &Money{}, nil }
func NewMoneyAgain(cents int) *Money         { return &Money{int64(cents) * 2} }
func NewMoneyZero() Money                    { return Money{} }

func TestDuplicateConstructors(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	cls := reg.Register(reflect.TypeFor[Money](),
		jtype.Constructors(NewMoney, NewMoneyParse, NewMoneyAgain, NewMoneyZero))
	bi := beaninfo.NewIntrospector(reg).Analyze(cls)

	ctors := bi.Constructors()
	is.Equal(len(ctors), 2)
	is.Equal(len(ctors[0]), 1)
	is.Equal(len(ctors[1]), 2)
	is.Equal(ctors[1][0].Method().Name(), "NewMoney") // the duplicate is dropped
	is.Equal(ctors[1][1].Method().Name(), "NewMoneyParse")

	groups, factory := bi.Creators()
	is.True(!factory)
	is.Equal(len(groups), 2)
}

type Widget struct{ Size int }

func (w *Widget) Rotate()        {}
func (w *Widget) Spin()          {}
func (w *Widget) GetWeight() int { return 0 }

type WidgetBeanInfo struct{}

func (WidgetBeanInfo) MethodSpecs() []beaninfo.MethodSpec {
	return []beaninfo.MethodSpec{{Name: "turn", Method: "Rotate"}, {Method: "Missing"}}
}

func (WidgetBeanInfo) PropertySpecs() []beaninfo.PropertySpec { return nil }

func TestBeanInfoProvider(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	reg.Register(reflect.TypeFor[WidgetBeanInfo]())
	cls := reg.Register(reflect.TypeFor[Widget]())
	bi := beaninfo.NewIntrospector(reg).Analyze(cls)

	is.Equal(bi.MethodNames(), []string{"turn"})
	turn := bi.Methods("turn")[0][0]
	is.True(turn.Overwrite())
	is.Equal(turn.Method().Name(), "Rotate")

	// properties were not consumed
	_, ok := bi.Property("weight")
	is.True(ok)
	_, ok = bi.Property("size")
	is.True(ok)
}

type Gadget struct{ Mode string }

func (g *Gadget) GetLevel() int { return 0 }

type GadgetBeanInfo struct{}

func (GadgetBeanInfo) MethodSpecs() []beaninfo.MethodSpec { return []beaninfo.MethodSpec{} }

func (GadgetBeanInfo) PropertySpecs() []beaninfo.PropertySpec {
	return []beaninfo.PropertySpec{{Name: "power", Kind: beaninfo.Plain, Getter: "GetLevel", Field: "Mode"}}
}

func TestBeanInfoProviderConsumesAll(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	reg.Register(reflect.TypeFor[GadgetBeanInfo]())
	cls := reg.Register(reflect.TypeFor[Gadget]())
	bi := beaninfo.NewIntrospector(reg).Analyze(cls)

	is.Equal(len(bi.MethodNames()), 0)
	props := bi.Properties()
	is.Equal(len(props), 1)
	is.Equal(props[0].Name, "power")
	is.Equal(props[0].Getter.Method().Name(), "GetLevel")
	is.Equal(props[0].Field.Name(), "Mode")
}

type Clash struct{ Entry string }

func (c *Clash) GetEntry(k string) string { return k }

type hidden struct{}

type Private struct{}

func (p *Private) Use(h hidden) {}
func (p *Private) Fine(n int)   {}

func TestSilentDegradation(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	in := beaninfo.NewIntrospector(reg)

	clash := in.Analyze(reg.Of(reflect.TypeFor[Clash]()))
	_, ok := clash.Property("entry")
	is.True(!ok) // named getter and plain field conflict

	priv := in.Analyze(reg.Of(reflect.TypeFor[Private]()))
	is.Equal(priv.MethodNames(), []string{"fine"})
}

type Node struct {
	*Node
	Value int
}

func TestEmbeddingCycle(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	bi := beaninfo.NewIntrospector(reg).Analyze(reg.Of(reflect.TypeFor[Node]()))
	_, ok := bi.Property("value")
	is.True(ok)
}

type Holder struct{}

func helperA(n int) string             { return "a" }
func helperB(s string) string          { return "b" }
func (h *Holder) Helper(b bool) string { return "virtual" }

func TestVirtualDisplacesStatic(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	cls := reg.Register(reflect.TypeFor[Holder](),
		jtype.Static("helper", helperA),
		jtype.Static("helper", helperB))
	bi := beaninfo.NewIntrospector(reg).Analyze(cls)

	g := bi.Methods("helper")[1]
	is.Equal(len(g), 1)
	is.True(!g[0].IsStatic())

	statics := bi.StaticMethods("helper")[1]
	is.Equal(len(statics), 2)
}

func TestPackages(t *testing.T) {
	is := is.New(t)
	reg, cls := shapeRegistry()
	bi := beaninfo.NewIntrospector(reg).Analyze(cls)
	is.Equal(bi.Packages(), []string{"github.com/sdboyer/esbean/beaninfo_test"})
}

type HolderChild struct{ Holder }

func TestFoldKeepsDisplacedStatics(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	reg.Register(reflect.TypeFor[Holder](),
		jtype.Static("helper", helperA),
		jtype.Static("helper", helperB))
	child := reg.Register(reflect.TypeFor[HolderChild]())
	in := beaninfo.NewIntrospector(reg)

	parent := in.Analyze(reg.Of(reflect.TypeFor[Holder]()))
	bi := in.Analyze(child)

	is.Equal(bi.StaticMethodNames(), []string{"helper"})
	statics := bi.StaticMethods("helper")
	is.Equal(len(statics), 2)
	is.Equal(len(statics[1]), 2)
	if diff := cmp.Diff(signatures(parent.StaticMethods("helper")[1]), signatures(statics[1])); diff != "" {
		t.Errorf("inherited statics (-parent +child):\n%s", diff)
	}

	g := bi.Methods("helper")[1]
	is.Equal(len(g), 1)
	is.True(!g[0].IsStatic())
}

func signatures(g beaninfo.OverloadGroup) []string {
	out := make([]string, len(g))
	for i, md := range g {
		out[i] = md.Signature()
	}
	return out
}

type FirstNamer interface{ Name() string }

type SecondNamer interface{ Name() string }

type Part struct{}

func (p *Part) Name() string { return "part" }

type Gizmo struct{ Part }

func TestInheritedMergeOrder(t *testing.T) {
	tests := map[string]struct {
		ifaces []reflect.Type
		want   reflect.Type
	}{
		"first interface wins": {
			ifaces: []reflect.Type{reflect.TypeFor[FirstNamer](), reflect.TypeFor[SecondNamer]()},
			want:   reflect.TypeFor[FirstNamer](),
		},
		"interface order decides": {
			ifaces: []reflect.Type{reflect.TypeFor[SecondNamer](), reflect.TypeFor[FirstNamer]()},
			want:   reflect.TypeFor[SecondNamer](),
		},
		"superclass without interfaces": {
			want: reflect.TypeFor[Part](),
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			reg := jtype.NewRegistry()
			cls := reg.Register(reflect.TypeFor[Gizmo](), jtype.Implements(tt.ifaces...))
			bi := beaninfo.NewIntrospector(reg).Analyze(cls)

			g := bi.Methods("name")
			is.Equal(len(g), 1)
			is.Equal(len(g[0]), 1)
			is.Equal(g[0][0].Method().DeclaringType().Name(), reg.Of(tt.want).Name())
		})
	}
}

type Sprite struct{}

func (s *Sprite) Rotate() {}
func (s *Sprite) Spin()   {}

type SpriteTurns struct{}

func (SpriteTurns) MethodSpecs() []beaninfo.MethodSpec {
	return []beaninfo.MethodSpec{{Name: "turn", Method: "Rotate"}}
}

func (SpriteTurns) PropertySpecs() []beaninfo.PropertySpec { return nil }

type ExtrasEcmaWrap struct{}

func (ExtrasEcmaWrap) Flip(s *Sprite) {}

// aliasResolver answers some names with types declared under other names.
type aliasResolver struct {
	jtype.Resolver
	alias map[string]jtype.Type
}

func (r aliasResolver) Lookup(name string) (jtype.Type, bool) {
	if t, ok := r.alias[name]; ok {
		return t, true
	}
	return r.Resolver.Lookup(name)
}

func TestWrapRootHoldsOnlyEcmaWrapCompanions(t *testing.T) {
	is := is.New(t)
	reg := jtype.NewRegistry()
	cls := reg.Register(reflect.TypeFor[Sprite]())
	turns := reg.Register(reflect.TypeFor[SpriteTurns]())
	extras := reg.Register(reflect.TypeFor[ExtrasEcmaWrap]())

	mirror := beaninfo.DefaultWrapRoot + "/" + cls.PkgPath()
	res := aliasResolver{Resolver: reg, alias: map[string]jtype.Type{
		jtype.QualifiedName(mirror, "SpriteBeanInfo"):                   turns,
		jtype.QualifiedName(beaninfo.DefaultWrapRoot, "SpriteBeanInfo"): turns,
		jtype.QualifiedName(mirror, "SpriteEcmaWrap"):                   extras,
	}}
	bi := beaninfo.NewIntrospector(res).Analyze(cls)

	if diff := cmp.Diff([]string{"flip", "rotate", "spin"}, bi.MethodNames()); diff != "" {
		t.Errorf("methods (-want +got):\n%s", diff)
	}
	is.True(bi.Methods("flip")[0][0].StaticVirtual())

	// Beside the class, the same provider is applied.
	res.alias[jtype.QualifiedName(cls.PkgPath(), "SpriteBeanInfo")] = turns
	bi = beaninfo.NewIntrospector(res).Analyze(cls)
	is.Equal(bi.MethodNames(), []string{"flip", "turn"})
}
