package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/hashicorp/go-multierror"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/jtype"
	"github.com/sdboyer/esbean/wrapper"
)

const (
	wrapperPkg  = "github.com/sdboyer/esbean/wrapper"
	dispatchPkg = "github.com/sdboyer/esbean/dispatch"
	gojaPkg     = "github.com/dop251/goja"
)

// ErrUnsupportedType means a member refers to a type that generated code
// cannot spell, such as a map or an unexported type.
var ErrUnsupportedType = errors.New("type cannot be named in generated code")

// WrapperJenny generates the wrapper source file of one analyzed class. The
// file declares a wrapper.Bridge implementation whose dispatch tables are
// switch statements over name indexes, and registers it from init.
type WrapperJenny struct {
	// Package is the name of the generated package.
	Package string
}

var _ OneToOne[*beaninfo.BeanInfo] = WrapperJenny{}

func (j WrapperJenny) JennyName() string { return "WrapperJenny" }

// Generate renders the wrapper of info into a file named by FileName.
// Classes that are not exported produce no file.
func (j WrapperJenny) Generate(info *beaninfo.BeanInfo) (*File, error) {
	cls := info.Type()
	if !cls.IsPublic() || cls.PkgPath() == "" || cls.SimpleName() == "" {
		return nil, nil
	}

	g := newWrapperGen(info, j.Package)
	if err := g.generate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := g.f.Render(&buf); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", cls.Name(), err)
	}
	return &File{RelativePath: FileName(cls), Data: buf.Bytes()}, nil
}

type wrapperGen struct {
	info  *beaninfo.BeanInfo
	cls   jtype.Type
	typ   string
	lower string
	f     *jen.File

	// class is the class type expression; value is the type of the bound
	// native value, a pointer for struct classes.
	class *jen.Statement
	value *jen.Statement
	ptr   bool

	calls map[*beaninfo.MethodDescriptor]string
	keys  map[*beaninfo.MethodDescriptor]string
	funcs []jen.Code
	disps []jen.Code
	errs  *multierror.Error
}

func newWrapperGen(info *beaninfo.BeanInfo, pkg string) *wrapperGen {
	cls := info.Type()
	id := Ident(cls)
	g := &wrapperGen{
		info:  info,
		cls:   cls,
		typ:   id + "Wrapper",
		lower: strings.ToLower(id[:1]) + id[1:],
		f:     jen.NewFile(pkg),
		class: jen.Qual(cls.PkgPath(), cls.SimpleName()),
		ptr:   cls.Kind() == jtype.Struct,
		calls: make(map[*beaninfo.MethodDescriptor]string),
		keys:  make(map[*beaninfo.MethodDescriptor]string),
	}
	g.value = g.class.Clone()
	if g.ptr {
		g.value = jen.Op("*").Add(g.class.Clone())
	}
	return g
}

func (g *wrapperGen) fail(err error) {
	g.errs = multierror.Append(g.errs, err)
}

// typeExpr spells t in generated code.
func (g *wrapperGen) typeExpr(t jtype.Type) *jen.Statement {
	k := t.Kind()
	switch {
	case !t.IsPublic():
	case t.PkgPath() != "" && t.SimpleName() != "":
		return jen.Qual(t.PkgPath(), t.SimpleName())
	case t.SimpleName() == "error":
		return jen.Error()
	case t.SimpleName() != "" && (k.IsPrimitive() || k == jtype.String):
		return jen.Id(t.SimpleName())
	case k == jtype.Pointer:
		return jen.Op("*").Add(g.typeExpr(t.Elem()))
	case k == jtype.Slice:
		return jen.Index().Add(g.typeExpr(t.Elem()))
	case k == jtype.Interface && len(t.Methods()) == 0:
		return jen.Any()
	}
	g.fail(fmt.Errorf("%s: %w", t.Name(), ErrUnsupportedType))
	return jen.Any()
}

func (g *wrapperGen) recv() *jen.Statement {
	return jen.Func().Params(jen.Id("w").Op("*").Id(g.typ))
}

func (g *wrapperGen) table(suffix string) string { return g.lower + suffix }

func (g *wrapperGen) clone(fields ...jen.Code) *jen.Statement {
	d := jen.Dict{
		jen.Id("rt"):   jen.Id("w").Dot("rt"),
		jen.Id("disp"): jen.Id("w").Dot("disp"),
	}
	for i := 0; i+1 < len(fields); i += 2 {
		d[fields[i]] = fields[i+1]
	}
	return jen.Op("&").Id(g.typ).Values(d)
}

func (g *wrapperGen) errorf(format string, args ...jen.Code) *jen.Statement {
	return jen.Qual("fmt", "Errorf").Call(append([]jen.Code{jen.Lit(format)}, args...)...)
}

func (g *wrapperGen) generate() error {
	h := Header{Class: g.cls.Name(), Version: wrapper.FormatVersion, Hash: g.info.Hash()}
	for _, line := range h.lines() {
		g.f.HeaderComment(line)
	}
	g.f.ImportName(wrapperPkg, "wrapper")
	g.f.ImportName(dispatchPkg, "dispatch")
	g.f.ImportName(gojaPkg, "goja")

	props := g.info.Properties()
	methods := g.info.MethodNames()
	statics := g.info.StaticMethodNames()

	// Members first: they discover the invokers and dispatchers the
	// declarations below refer to.
	members := []jen.Code{
		g.genBoilerplate(),
		g.genGet(props),
		g.genSet(props),
		g.genHas(),
		jen.Comment("Delete is false on the root object; named views handle deletion."),
		g.recv().Id("Delete").Params(jen.String()).Bool().Block(jen.Return(jen.False())),
		g.genKeys(),
		g.genCall(methods, statics),
		g.genConstruct(),
	}
	if g.errs.ErrorOrNil() != nil {
		return fmt.Errorf("%s: %w", g.cls.Name(), g.errs)
	}

	g.genDecls(props, methods, statics)
	for _, m := range members {
		g.f.Add(m)
		g.f.Line()
	}
	g.genRecvHelper()
	for _, fn := range g.funcs {
		g.f.Add(fn)
		g.f.Line()
	}
	return nil
}

func indexDict[T any](items []T, name func(T) string) jen.Dict {
	d := jen.Dict{}
	for i, it := range items {
		d[jen.Lit(name(it))] = jen.Lit(i + 1)
	}
	return d
}

func (g *wrapperGen) genDecls(props []beaninfo.Property, methods, statics []string) {
	f := g.f
	self := func(s string) string { return s }

	f.Commentf("%s is the generated wrapper.Bridge of %s.", g.typ, g.cls.Name())
	f.Type().Id(g.typ).Struct(
		jen.Id("rt").Op("*").Qual(wrapperPkg, "Runtime"),
		jen.Id("disp").Index().Op("*").Qual(dispatchPkg, "Dispatcher"),
		jen.Id("value").Add(g.value.Clone()),
		jen.Id("static").Bool(),
		jen.Id("views").Qual(wrapperPkg, "Views"),
	)
	f.Line()

	f.Var().Defs(
		jen.Id(g.table("Props")).Op("=").Map(jen.String()).Int().Values(indexDict(props, func(p beaninfo.Property) string { return p.Name })),
		jen.Id(g.table("Methods")).Op("=").Map(jen.String()).Int().Values(indexDict(methods, self)),
		jen.Id(g.table("Statics")).Op("=").Map(jen.String()).Int().Values(indexDict(statics, self)),
	)
	f.Line()

	f.Commentf("New%s returns the blank factory of %s.", g.typ, g.cls.Name())
	fields := jen.Dict{jen.Id("rt"): jen.Id("r")}
	if len(g.disps) > 0 {
		fields[jen.Id("disp")] = jen.Index().Op("*").Qual(dispatchPkg, "Dispatcher").ValuesFunc(func(grp *jen.Group) {
			for _, d := range g.disps {
				grp.Line().Add(d)
			}
			grp.Line()
		})
	}
	f.Func().Id("New"+g.typ).Params(jen.Id("r").Op("*").Qual(wrapperPkg, "Runtime")).Qual(wrapperPkg, "Bridge").Block(
		jen.Return(jen.Op("&").Id(g.typ).Values(fields)),
	)
	f.Line()

	f.Func().Id("init").Params().Block(
		jen.Qual(wrapperPkg, "RegisterGenerated").Call(jen.Qual(wrapperPkg, "Generated").Values(jen.Dict{
			jen.Id("Class"):   jen.Lit(g.cls.Name()),
			jen.Id("Version"): jen.Lit(wrapper.FormatVersion),
			jen.Id("Hash"):    jen.Lit(g.info.Hash()),
			jen.Id("New"):     jen.Id("New" + g.typ),
		})),
	)
	f.Line()
}

func (g *wrapperGen) genBoilerplate() jen.Code {
	w := jen.Id("w")
	wrapCases := []jen.Code{
		jen.Case(g.value.Clone()).Block(jen.Return(g.clone(jen.Id("value"), jen.Id("v")))),
	}
	if g.ptr {
		wrapCases = append(wrapCases,
			jen.Case(g.class.Clone()).Block(jen.Return(g.clone(jen.Id("value"), jen.Op("&").Id("v")))))
	}

	return jen.Add(
		g.recv().Id("Dup").Params().Qual(wrapperPkg, "Bridge").Block(jen.Return(g.clone())),
		jen.Line(), jen.Line(),
		g.recv().Id("Wrap").Params(jen.Id("native").Any()).Qual(wrapperPkg, "Bridge").Block(
			jen.Switch(jen.Id("v").Op(":=").Id("native").Assert(jen.Type())).Block(wrapCases...),
			w.Clone().Dot("rt").Dot("Throw").Call(g.errorf("cannot wrap %T as %s", jen.Id("native"), jen.Lit(g.cls.Name()))),
			jen.Return(jen.Nil()),
		),
		jen.Line(), jen.Line(),
		g.recv().Id("WrapStatic").Params().Qual(wrapperPkg, "Bridge").Block(
			jen.Return(g.clone(jen.Id("static"), jen.True())),
		),
		jen.Line(), jen.Line(),
		g.recv().Id("Value").Params().Any().Block(
			jen.If(w.Clone().Dot("value").Op("==").Nil()).Block(jen.Return(jen.Nil())),
			jen.Return(w.Clone().Dot("value")),
		),
		jen.Line(), jen.Line(),
		g.recv().Id("JavaType").Params().Qual("github.com/sdboyer/esbean/jtype", "Type").Block(
			jen.If(w.Clone().Dot("value").Op("==").Nil()).Block(
				jen.Return(jen.Qual(wrapperPkg, "Class").Types(g.class.Clone()).Call(w.Clone().Dot("rt"))),
			),
			jen.Return(w.Clone().Dot("rt").Dot("Registry").Call().Dot("TypeOf").Call(w.Clone().Dot("value"))),
		),
		jen.Line(), jen.Line(),
		g.recv().Id("VersionID").Params().Int().Block(jen.Return(jen.Lit(wrapper.FormatVersion))),
		jen.Line(), jen.Line(),
		g.recv().Id("Hash").Params().String().Block(jen.Return(jen.Lit(g.info.Hash()))),
	)
}

func (g *wrapperGen) genGet(props []beaninfo.Property) jen.Code {
	w := jen.Id("w")
	var cases []jen.Code
	for i, p := range props {
		cases = append(cases, jen.Case(jen.Lit(i+1)).Block(g.getProp(p)...))
	}
	return jen.Add(
		jen.Comment("Get reads a property. Indexed and named properties read as cached"),
		jen.Line(),
		jen.Comment("sub-views; methods read as functions."),
		jen.Line(),
		g.recv().Id("Get").Params(jen.Id("key").String()).Qual(gojaPkg, "Value").Block(
			jen.If(w.Clone().Dot("static")).Block(
				jen.If(jen.Id(g.table("Statics")).Index(jen.Id("key")).Op(">").Lit(0)).Block(
					jen.Return(w.Clone().Dot("rt").Dot("Method").Call(w.Clone(), jen.Id("key"))),
				),
				jen.Return(jen.Qual(gojaPkg, "Undefined").Call()),
			),
			jen.Switch(jen.Id(g.table("Props")).Index(jen.Id("key"))).Block(cases...),
			jen.If(jen.Id(g.table("Methods")).Index(jen.Id("key")).Op(">").Lit(0)).Block(
				jen.Return(w.Clone().Dot("rt").Dot("Method").Call(w.Clone(), jen.Id("key"))),
			),
			jen.Return(jen.Qual(gojaPkg, "Undefined").Call()),
		),
	)
}

// viewFunc is a closure calling the invoker of md with the listed script
// values, as the views expect their accessors.
func (g *wrapperGen) viewFunc(md *beaninfo.MethodDescriptor, params []string, errOnly bool) jen.Code {
	call := jen.Id("w").Dot(g.invoker(md)).Call(jen.Index().Qual(gojaPkg, "Value").ValuesFunc(func(grp *jen.Group) {
		for _, p := range params {
			grp.Id(p)
		}
	}))
	sig := jen.Func().ParamsFunc(func(grp *jen.Group) {
		if len(params) > 0 {
			grp.List(idList(params)...).Qual(gojaPkg, "Value")
		}
	})
	if errOnly {
		return sig.Error().Block(
			jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(call),
			jen.Return(jen.Err()),
		)
	}
	return sig.Parens(jen.List(jen.Qual(gojaPkg, "Value"), jen.Error())).Block(jen.Return(call))
}

func idList(names []string) []jen.Code {
	out := make([]jen.Code, len(names))
	for i, n := range names {
		out[i] = jen.Id(n)
	}
	return out
}

func (g *wrapperGen) getProp(p beaninfo.Property) []jen.Code {
	w := jen.Id("w")
	view := func(typ string, fields jen.Dict) []jen.Code {
		fields[jen.Id("RT")] = w.Clone().Dot("rt")
		return []jen.Code{jen.Return(w.Clone().Dot("views").Dot("Get").Call(
			w.Clone().Dot("rt"), jen.Id("key"),
			jen.Func().Params().Qual(gojaPkg, "DynamicObject").Block(
				jen.Return(jen.Op("&").Qual(wrapperPkg, typ).Values(fields)),
			),
		))}
	}

	switch p.Kind {
	case beaninfo.Indexed:
		fields := jen.Dict{}
		if p.Size != nil {
			fields[jen.Id("Size")] = g.viewFunc(p.Size, nil, false)
		}
		if p.Getter != nil {
			fields[jen.Id("Item")] = g.viewFunc(p.Getter, []string{"i"}, false)
		}
		if p.Setter != nil {
			fields[jen.Id("SetItem")] = g.viewFunc(p.Setter, []string{"i", "v"}, true)
		}
		return view("IndexedView", fields)
	case beaninfo.Named:
		fields := jen.Dict{}
		if p.Getter != nil {
			fields[jen.Id("Item")] = g.viewFunc(p.Getter, []string{"k"}, false)
		}
		if p.Setter != nil {
			fields[jen.Id("SetItem")] = g.viewFunc(p.Setter, []string{"k", "v"}, true)
		}
		if p.Remover != nil {
			fields[jen.Id("Remove")] = g.viewFunc(p.Remover, []string{"k"}, false)
		}
		if p.Iterator != nil {
			fields[jen.Id("Names")] = w.Clone().Dot(g.keyLister(p.Iterator))
		}
		return view("NamedView", fields)
	}

	switch {
	case p.Getter != nil:
		return []jen.Code{jen.Return(w.Clone().Dot("rt").Dot("Must").Call(w.Clone().Dot(g.invoker(p.Getter)).Call(jen.Nil())))}
	case p.Field != nil:
		return []jen.Code{
			jen.List(jen.Id("v"), jen.Err()).Op(":=").Add(w.Clone().Dot("recv").Call()),
			jen.If(jen.Err().Op("!=").Nil()).Block(w.Clone().Dot("rt").Dot("Throw").Call(jen.Err())),
			jen.Return(w.Clone().Dot("rt").Dot("FromNative").Call(jen.Id("v").Dot(p.Field.Name()))),
		}
	}
	return []jen.Code{jen.Return(jen.Qual(gojaPkg, "Undefined").Call())}
}

func (g *wrapperGen) genSet(props []beaninfo.Property) jen.Code {
	w := jen.Id("w")
	var cases []jen.Code
	for i, p := range props {
		if p.Kind != beaninfo.Plain || !p.Writable() {
			continue
		}
		var body []jen.Code
		if p.Setter != nil {
			body = append(body,
				w.Clone().Dot("rt").Dot("Must").Call(w.Clone().Dot(g.invoker(p.Setter)).Call(
					jen.Index().Qual(gojaPkg, "Value").Values(jen.Id("val")))),
			)
		} else {
			throw := func() jen.Code { return w.Clone().Dot("rt").Dot("Throw").Call(jen.Err()) }
			body = append(body,
				jen.List(jen.Id("v"), jen.Err()).Op(":=").Add(w.Clone().Dot("recv").Call()),
				jen.If(jen.Err().Op("!=").Nil()).Block(throw()),
			)
			body = append(body, g.convert(p.Field.Type(), jen.Id("val"), "x", throw)...)
			body = append(body, jen.Id("v").Dot(p.Field.Name()).Op("=").Id("x"))
		}
		body = append(body, jen.Return(jen.True()))
		cases = append(cases, jen.Case(jen.Lit(i+1)).Block(body...))
	}

	return jen.Add(
		jen.Comment("Set writes a plain property through its setter or field. Unknown and"),
		jen.Line(),
		jen.Comment("read-only properties are ignored."),
		jen.Line(),
		g.recv().Id("Set").Params(jen.Id("key").String(), jen.Id("val").Qual(gojaPkg, "Value")).Bool().BlockFunc(func(grp *jen.Group) {
			grp.If(w.Clone().Dot("static")).Block(jen.Return(jen.False()))
			if len(cases) > 0 {
				grp.Switch(jen.Id(g.table("Props")).Index(jen.Id("key"))).Block(cases...)
			}
			grp.Return(jen.False())
		}),
	)
}

func (g *wrapperGen) genHas() jen.Code {
	w := jen.Id("w")
	return g.recv().Id("Has").Params(jen.Id("key").String()).Bool().Block(
		jen.If(w.Clone().Dot("static")).Block(
			jen.Return(jen.Id(g.table("Statics")).Index(jen.Id("key")).Op(">").Lit(0)),
		),
		jen.Return(jen.Id(g.table("Props")).Index(jen.Id("key")).Op(">").Lit(0).Op("||").
			Id(g.table("Methods")).Index(jen.Id("key")).Op(">").Lit(0)),
	)
}

func (g *wrapperGen) genKeys() jen.Code {
	w := jen.Id("w")
	md := g.info.Iterator()
	if md == nil {
		return g.recv().Id("Keys").Params().Index().String().Block(jen.Return(jen.Nil()))
	}
	return jen.Add(
		jen.Comment("Keys enumerates the bound value with the class's default iterator."),
		jen.Line(),
		g.recv().Id("Keys").Params().Index().String().Block(
			jen.If(w.Clone().Dot("value").Op("==").Nil()).Block(jen.Return(jen.Nil())),
			jen.List(jen.Id("keys"), jen.Err()).Op(":=").Add(w.Clone().Dot(g.keyLister(md)).Call()),
			jen.If(jen.Err().Op("!=").Nil()).Block(w.Clone().Dot("rt").Dot("Throw").Call(jen.Err())),
			jen.Return(jen.Id("keys")),
		),
	)
}

func (g *wrapperGen) genCall(methods, statics []string) jen.Code {
	w := jen.Id("w")
	cases := func(names []string, groups func(string) []beaninfo.OverloadGroup) []jen.Code {
		var out []jen.Code
		for i, name := range names {
			out = append(out, jen.Case(jen.Lit(i+1)).Block(g.dispatch(name, groups(name))...))
		}
		return out
	}
	undefined := jen.Return(jen.Nil(), g.errorf("%w: %s", jen.Qual(wrapperPkg, "ErrUndefined"), jen.Id("name")))

	return g.recv().Id("Call").Params(jen.Id("name").String(), jen.Id("args").Index().Qual(gojaPkg, "Value")).
		Parens(jen.List(jen.Qual(gojaPkg, "Value"), jen.Error())).BlockFunc(func(grp *jen.Group) {
		grp.If(w.Clone().Dot("static")).BlockFunc(func(sg *jen.Group) {
			if len(statics) > 0 {
				sg.Switch(jen.Id(g.table("Statics")).Index(jen.Id("name"))).Block(cases(statics, g.info.StaticMethods)...)
			}
			sg.Add(undefined.Clone())
		})
		if len(methods) > 0 {
			grp.Switch(jen.Id(g.table("Methods")).Index(jen.Id("name"))).Block(cases(methods, g.info.Methods)...)
		}
		grp.Add(undefined.Clone())
	})
}

func (g *wrapperGen) genConstruct() jen.Code {
	w := jen.Id("w")
	creators, _ := g.info.Creators()
	return g.recv().Id("Construct").Params(jen.Id("args").Index().Qual(gojaPkg, "Value")).
		Parens(jen.List(jen.Qual(gojaPkg, "Value"), jen.Error())).BlockFunc(func(grp *jen.Group) {
		grp.If(jen.Op("!").Add(w.Clone().Dot("static"))).Block(
			jen.Return(jen.Nil(), g.errorf("%s: %w", jen.Lit(g.cls.Name()), jen.Qual(wrapperPkg, "ErrNotStatic"))),
		)
		if arities(creators) == nil {
			grp.Return(jen.Nil(), g.errorf("%w: %s", jen.Qual(wrapperPkg, "ErrNoConstructor"), jen.Lit(g.cls.Name())))
			return
		}
		for _, c := range g.dispatch(beaninfo.CreateMethod, creators) {
			grp.Add(c)
		}
	})
}

func arities(groups []beaninfo.OverloadGroup) []int {
	var out []int
	for arity, grp := range groups {
		if len(grp) > 0 {
			out = append(out, arity)
		}
	}
	return out
}

// dispatch picks the overload group by arity and, within a group of more
// than one candidate, by conversion cost.
func (g *wrapperGen) dispatch(name string, groups []beaninfo.OverloadGroup) []jen.Code {
	ars := arities(groups)
	call := func(md *beaninfo.MethodDescriptor) jen.Code {
		return jen.Return(jen.Id("w").Dot(g.invoker(md)).Call(jen.Id("args")))
	}
	if len(ars) == 1 && len(groups[ars[0]]) == 1 {
		return []jen.Code{call(groups[ars[0]][0])}
	}

	var cases []jen.Code
	for _, arity := range ars {
		grp := groups[arity]
		if len(grp) == 1 {
			cases = append(cases, jen.Case(jen.Lit(arity)).Block(call(grp[0])))
			continue
		}
		d := g.dispatcher(grp)
		var sel []jen.Code
		for i, md := range grp {
			sel = append(sel, jen.Case(jen.Lit(i)).Block(call(md)))
		}
		cases = append(cases, jen.Case(jen.Lit(arity)).Block(
			jen.Switch(jen.Id("w").Dot("rt").Dot("Select").Call(jen.Id("w").Dot("disp").Index(jen.Lit(d)), jen.Id("args"))).Block(sel...),
			jen.Return(jen.Nil(), g.errorf("%w: %s/%d", jen.Qual(wrapperPkg, "ErrNoMatch"), jen.Lit(name), jen.Lit(arity))),
		))
	}

	pick := jen.Qual(wrapperPkg, "PickArity").CallFunc(func(grp *jen.Group) {
		grp.Len(jen.Id("args"))
		for _, a := range ars {
			grp.Lit(a)
		}
	})
	return []jen.Code{
		jen.Switch(pick).Block(cases...),
		jen.Return(jen.Nil(), g.errorf("%w: %s", jen.Qual(wrapperPkg, "ErrNoMatch"), jen.Lit(name))),
	}
}

// dispatcher registers the candidate list of grp and returns its index in
// the wrapper's dispatcher slice.
func (g *wrapperGen) dispatcher(grp beaninfo.OverloadGroup) int {
	args := make([]jen.Code, 0, len(grp))
	for _, params := range grp.ParamTypes() {
		args = append(args, jen.Index().Qual("reflect", "Type").ValuesFunc(func(vg *jen.Group) {
			for _, p := range params {
				vg.Qual("reflect", "TypeFor").Types(g.typeExpr(p)).Call()
			}
		}))
	}
	g.disps = append(g.disps, jen.Id("r").Dot("Dispatcher").Call(args...))
	return len(g.disps) - 1
}

// convert declares dst as the native value of the script value src for a
// parameter of type t. onErr handles a failed conversion.
func (g *wrapperGen) convert(t jtype.Type, src jen.Code, dst string, onErr func() jen.Code) []jen.Code {
	te := g.typeExpr(t)
	var helper string
	switch k := t.Kind(); {
	case k == jtype.Bool:
		helper = "AsBool"
	case k.IsInteger(), k.IsFloat():
		helper = "AsNumber"
	case k == jtype.String:
		helper = "AsString"
	default:
		return []jen.Code{
			jen.List(jen.Id(dst), jen.Err()).Op(":=").Qual(wrapperPkg, "Unwrap").Types(te).Call(jen.Id("w").Dot("rt"), src),
			jen.If(jen.Err().Op("!=").Nil()).Block(onErr()),
		}
	}
	return []jen.Code{jen.Id(dst).Op(":=").Qual(wrapperPkg, helper).Types(te).Call(src)}
}

// target is the callee expression of md and the leading native arguments
// it needs before the script arguments.
func (g *wrapperGen) target(md *beaninfo.MethodDescriptor) (callee *jen.Statement, lead []jen.Code, needRecv bool) {
	m := md.Method()
	decl := m.DeclaringType()
	switch {
	case md.StaticVirtual():
		self := jen.Id("v")
		switch p0 := m.ParamTypes()[0]; {
		case !jtype.SameClass(p0, g.cls):
			self = jen.Id("self")
		case g.ptr && p0.Kind() != jtype.Pointer:
			self = jen.Op("*").Id("v")
		}
		return jen.New(g.typeExpr(decl)).Dot(m.Name()), []jen.Code{self}, true
	case md.IsStatic():
		if pkg, name, ok := m.Func(); ok {
			return jen.Qual(pkg, name), nil, false
		}
		if jtype.IsStaticHolder(decl) {
			return jen.New(g.typeExpr(decl)).Dot(m.Name()), nil, false
		}
		g.fail(fmt.Errorf("%s: static method has no package-level symbol: %w", md.Signature(), ErrUnsupportedType))
		return jen.Id("_"), nil, false
	}
	return jen.Id("v").Dot(m.Name()), nil, true
}

// prologue converts the receiver and the script arguments of md, returning
// the statements and the native argument list.
func (g *wrapperGen) prologue(md *beaninfo.MethodDescriptor, onErr func() jen.Code) (body []jen.Code, callee *jen.Statement, args []jen.Code) {
	callee, lead, needRecv := g.target(md)
	if needRecv {
		body = append(body,
			jen.List(jen.Id("v"), jen.Err()).Op(":=").Add(jen.Id("w").Dot("recv").Call()),
			jen.If(jen.Err().Op("!=").Nil()).Block(onErr()),
		)
	}
	// A companion method inherited from a superclass takes the embedded
	// superclass value.
	if md.StaticVirtual() && !jtype.SameClass(md.Method().ParamTypes()[0], g.cls) {
		body = append(body,
			jen.List(jen.Id("self"), jen.Err()).Op(":=").Qual(wrapperPkg, "Upcast").Types(g.typeExpr(md.Method().ParamTypes()[0])).Call(jen.Id("v")),
			jen.If(jen.Err().Op("!=").Nil()).Block(onErr()),
		)
	}
	args = append(args, lead...)
	for i, p := range md.ParamTypes() {
		a := "a" + strconv.Itoa(i)
		src := jen.Qual(wrapperPkg, "Arg").Call(jen.Id("args"), jen.Lit(i))
		body = append(body, g.convert(p, src, a, onErr)...)
		args = append(args, jen.Id(a))
	}
	return body, callee, args
}

// invoker returns the name of the method calling md with script arguments,
// generating it on first use.
func (g *wrapperGen) invoker(md *beaninfo.MethodDescriptor) string {
	if name, ok := g.calls[md]; ok {
		return name
	}
	name := "call" + strconv.Itoa(len(g.calls))
	g.calls[md] = name

	ret := func() jen.Code { return jen.Return(jen.Nil(), jen.Err()) }
	body, callee, args := g.prologue(md, ret)
	call := callee.Call(args...)
	void := md.ReturnType().Kind() == jtype.Void
	undefined := jen.Return(jen.Qual(gojaPkg, "Undefined").Call(), jen.Nil())
	switch {
	case void && md.Method().ReturnsErr():
		body = append(body,
			jen.If(jen.Err().Op(":=").Add(call), jen.Err().Op("!=").Nil()).Block(ret()),
			undefined,
		)
	case void:
		body = append(body, call, undefined)
	case md.Method().ReturnsErr():
		body = append(body,
			jen.List(jen.Id("res"), jen.Err()).Op(":=").Add(call),
			jen.If(jen.Err().Op("!=").Nil()).Block(ret()),
			jen.Return(jen.Id("w").Dot("rt").Dot("FromNative").Call(jen.Id("res")), jen.Nil()),
		)
	default:
		body = append(body, jen.Return(jen.Id("w").Dot("rt").Dot("FromNative").Call(call), jen.Nil()))
	}

	g.funcs = append(g.funcs,
		jen.Commentf("%s calls %s.", name, md.Signature()).Line().
			Add(g.recv()).Id(name).Params(jen.Id("args").Index().Qual(gojaPkg, "Value")).
			Parens(jen.List(jen.Id("val").Qual(gojaPkg, "Value"), jen.Err().Error())).
			Block(append([]jen.Code{g.recoverPanic(md, "val")}, body...)...),
	)
	return name
}

// recoverPanic turns a panic in the native call of md into an error
// result, as the in-memory builder does.
func (g *wrapperGen) recoverPanic(md *beaninfo.MethodDescriptor, result string) jen.Code {
	m := md.Method()
	where := m.Name()
	if decl := m.DeclaringType(); decl != nil {
		where = decl.Name() + "." + where
	}
	return jen.Defer().Func().Params().Block(
		jen.If(jen.Id("r").Op(":=").Recover(), jen.Id("r").Op("!=").Nil()).Block(
			jen.List(jen.Id(result), jen.Err()).Op("=").List(jen.Nil(), g.errorf(where+": panic: %v", jen.Id("r"))),
		),
	).Call()
}

// keyLister returns the name of the method enumerating the result of the
// iterator md as strings, generating it on first use.
func (g *wrapperGen) keyLister(md *beaninfo.MethodDescriptor) string {
	if name, ok := g.keys[md]; ok {
		return name
	}
	name := "keys" + strconv.Itoa(len(g.keys))
	g.keys[md] = name

	ret := func() jen.Code { return jen.Return(jen.Nil(), jen.Err()) }
	body, callee, native := g.prologue(md, ret)
	call := callee.Call(native...)
	if md.Method().ReturnsErr() {
		body = append(body,
			jen.List(jen.Id("res"), jen.Err()).Op(":=").Add(call),
			jen.If(jen.Err().Op("!=").Nil()).Block(ret()),
			jen.Return(jen.Qual(wrapperPkg, "Enumerate").Call(jen.Id("res"))),
		)
	} else {
		body = append(body, jen.Return(jen.Qual(wrapperPkg, "Enumerate").Call(call)))
	}

	g.funcs = append(g.funcs,
		jen.Commentf("%s enumerates %s.", name, md.Signature()).Line().
			Add(g.recv()).Id(name).Params().Parens(jen.List(jen.Id("keys").Index().String(), jen.Err().Error())).
			Block(append([]jen.Code{g.recoverPanic(md, "keys")}, body...)...),
	)
	return name
}

func (g *wrapperGen) genRecvHelper() {
	w := jen.Id("w")
	g.f.Func().Params(jen.Id("w").Op("*").Id(g.typ)).Id("recv").Params().Parens(jen.List(g.value.Clone(), jen.Error())).Block(
		jen.If(w.Clone().Dot("value").Op("==").Nil()).Block(
			jen.Return(jen.Nil(), g.errorf("%s: %w", jen.Lit(g.cls.Name()), jen.Qual(wrapperPkg, "ErrNotStatic"))),
		),
		jen.Return(w.Clone().Dot("value"), jen.Nil()),
	)
	g.f.Line()
}
