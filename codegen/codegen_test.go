package codegen_test

import (
	"context"
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/codegen"
	"github.com/sdboyer/esbean/jtype"
	"github.com/sdboyer/esbean/wrapper"
)

type Sprocket struct {
	Label string
	Teeth int
	Notes map[string]string `js:"-"`

	items []string
}

func NewSprocket(label string) *Sprocket { return &Sprocket{Label: label} }

func (s *Sprocket) Spin(n int) int          { return n * s.Teeth }
func (s *Sprocket) GetItem(i int) string    { return s.items[i] }
func (s *Sprocket) SetItem(i int, v string) { s.items[i] = v }
func (s *Sprocket) GetItemSize() int        { return len(s.items) }
func (s *Sprocket) Mesh(o *Sprocket) error  { return nil }
func (s *Sprocket) Keys() []string          { return []string{"label"} }

// SprocketEcmaWrap adds script methods to Sprocket.
type SprocketEcmaWrap struct{}

func (SprocketEcmaWrap) Describe(s *Sprocket) string { return s.Label }

func ScaleInt(n int) int          { return n }
func ScaleString(s string) string { return s }

type Gear struct{}

type Pulley struct{ Radius int }

func (p *Pulley) Lift(n int) int { return n * p.Radius }

func (g *Gear) Configure(m map[string]int) {}

func analyze(t *testing.T) (*jtype.Registry, *beaninfo.Introspector) {
	t.Helper()
	reg := jtype.NewRegistry()
	reg.Register(reflect.TypeFor[SprocketEcmaWrap]())
	reg.Register(reflect.TypeFor[Sprocket](),
		jtype.Constructors(NewSprocket),
		jtype.Static("scale", ScaleInt),
		jtype.Static("scale", ScaleString),
	)
	reg.Register(reflect.TypeFor[Gear]())
	reg.Register(reflect.TypeFor[Pulley]())
	return reg, beaninfo.NewIntrospector(reg)
}

func sprocketInfo(t *testing.T) *beaninfo.BeanInfo {
	t.Helper()
	reg, in := analyze(t)
	return in.Analyze(reg.Of(reflect.TypeFor[Sprocket]()))
}

func gearInfo(t *testing.T) *beaninfo.BeanInfo {
	t.Helper()
	reg, in := analyze(t)
	return in.Analyze(reg.Of(reflect.TypeFor[Gear]()))
}

func pulleyInfo(t *testing.T) *beaninfo.BeanInfo {
	t.Helper()
	reg, in := analyze(t)
	return in.Analyze(reg.Of(reflect.TypeFor[Pulley]()))
}

func TestMangle(t *testing.T) {
	is := is.New(t)
	tests := map[string]string{
		"example.com/shapes.Point": "example_dcom_sshapes_dPoint",
		"a/b_c.D":                  "a_sb__c_dD",
		"x.My_Type":                "x_dMy__Type",
		"a-b.C":                    "a_hb_dC",
		"Plain":                    "Plain",
	}
	for in, want := range tests {
		is.Equal(codegen.Mangle(in), want) // in
	}

	for _, pair := range [][2]string{
		{"example.com/x.T", "example/com/x.T"},
		{"a/b_c.D", "a/b.c_D"},
		{"a_b.C", "a__b.C"},
		{"a/b.C", "a_b.C"},
	} {
		is.True(codegen.Mangle(pair[0]) != codegen.Mangle(pair[1])) // pair
	}
}

// named is a class known only by name.
type named struct {
	jtype.Type
	pkg, name string
}

func (n named) Name() string       { return jtype.QualifiedName(n.pkg, n.name) }
func (n named) SimpleName() string { return n.name }
func (n named) PkgPath() string    { return n.pkg }
func (n named) Kind() jtype.Kind   { return jtype.Struct }

func TestPathAndIdent(t *testing.T) {
	is := is.New(t)
	cls := sprocketInfo(t).Type()

	is.Equal(codegen.FileName(cls), "github_dcom_ssdboyer_sesbean_scodegen__test_dSprocket_es.go")
	is.Equal(codegen.Path("eswrap", cls), "eswrap/"+codegen.FileName(cls))
	is.Equal(codegen.Ident(cls), "CodegenTestSprocket_2b59cc4c")

	is.Equal(codegen.Ident(named{pkg: "example.com/shapes", name: "Point"}), "ShapesPoint_086aab3a")
	a := named{pkg: "example.com/a/util", name: "Pool"}
	b := named{pkg: "example.com/b/util", name: "Pool"}
	is.True(codegen.Ident(a) != codegen.Ident(b))
	is.True(codegen.FileName(a) != codegen.FileName(b))
	is.True(strings.HasPrefix(codegen.Ident(a), "UtilPool_"))
}

// receiverMethods parses src and returns the names of the exported methods
// declared on typ.
func receiverMethods(t *testing.T, src []byte, typ string) []string {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "wrapper.go", src, 0)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	var out []string
	for _, d := range f.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || !fd.Name.IsExported() {
			continue
		}
		star, ok := fd.Recv.List[0].Type.(*ast.StarExpr)
		if !ok {
			continue
		}
		if id, ok := star.X.(*ast.Ident); ok && id.Name == typ {
			out = append(out, fd.Name.Name)
		}
	}
	sort.Strings(out)
	return out
}

func TestWrapperJenny(t *testing.T) {
	is := is.New(t)
	info := sprocketInfo(t)

	f, err := codegen.WrapperJenny{Package: "eswrap"}.Generate(info)
	is.NoErr(err)
	is.True(f != nil)
	is.Equal(f.RelativePath, codegen.FileName(info.Type()))

	want := []string{
		"Call", "Construct", "Delete", "Dup", "Get", "Has", "Hash", "JavaType",
		"Keys", "Set", "Value", "VersionID", "Wrap", "WrapStatic",
	}
	if diff := cmp.Diff(want, receiverMethods(t, f.Data, "CodegenTestSprocket_2b59cc4cWrapper")); diff != "" {
		t.Errorf("bridge methods (-want +got):\n%s", diff)
	}

	src := string(f.Data)
	for _, frag := range []string{
		"package eswrap",
		"// Code generated by esbeangen. DO NOT EDIT.",
		"// esbean:hash " + info.Hash(),
		"wrapper.RegisterGenerated(wrapper.Generated{",
		"func NewCodegenTestSprocket_2b59cc4cWrapper(r *wrapper.Runtime) wrapper.Bridge",
		"(val goja.Value, err error)",
		"(keys []string, err error)",
		"if r := recover(); r != nil",
		`Sprocket.GetItem: panic: %v", r)`,
		"r.Dispatcher(",
		"wrapper.AsNumber[int](wrapper.Arg(args, 0))",
		"wrapper.AsString[string](wrapper.Arg(args, 0))",
		"SprocketEcmaWrap).Describe(v)",
		".ScaleInt(a0)",
		".ScaleString(a0)",
		".NewSprocket(a0)",
		"&wrapper.IndexedView{",
		"wrapper.Enumerate(v.Keys())",
		`"spin":`,
		`"scale":`,
	} {
		is.True(strings.Contains(src, frag)) // frag
	}
	is.True(!strings.Contains(src, `"notes"`))
}

func TestWrapperJennyIsDeterministic(t *testing.T) {
	is := is.New(t)
	a, err := codegen.WrapperJenny{Package: "eswrap"}.Generate(sprocketInfo(t))
	is.NoErr(err)
	b, err := codegen.WrapperJenny{Package: "eswrap"}.Generate(sprocketInfo(t))
	is.NoErr(err)
	if diff := cmp.Diff(string(a.Data), string(b.Data)); diff != "" {
		t.Errorf("generation is not deterministic:\n%s", diff)
	}
}

func TestWrapperJennyUnsupportedType(t *testing.T) {
	is := is.New(t)
	_, err := codegen.WrapperJenny{Package: "eswrap"}.Generate(gearInfo(t))
	is.True(errors.Is(err, codegen.ErrUnsupportedType))
}

func TestReadHeader(t *testing.T) {
	is := is.New(t)
	info := sprocketInfo(t)
	f, err := codegen.WrapperJenny{Package: "eswrap"}.Generate(info)
	is.NoErr(err)

	dir := t.TempDir()
	p := filepath.Join(dir, "w.go")
	is.NoErr(os.WriteFile(p, f.Data, 0o644))

	h, err := codegen.ReadHeader(p)
	is.NoErr(err)
	is.Equal(h, codegen.Header{
		Class:   info.Type().Name(),
		Version: wrapper.FormatVersion,
		Hash:    info.Hash(),
	})

	plain := filepath.Join(dir, "plain.go")
	is.NoErr(os.WriteFile(plain, []byte("package eswrap\n"), 0o644))
	_, err = codegen.ReadHeader(plain)
	is.True(errors.Is(err, codegen.ErrNoHeader))
}

func TestJennyList(t *testing.T) {
	is := is.New(t)
	info := sprocketInfo(t)
	jl := codegen.JennyListWithNamer(func(bi *beaninfo.BeanInfo) string { return bi.Type().SimpleName() })
	jl.AppendOneToOne(codegen.WrapperJenny{Package: "eswrap"})
	jl.AddPostprocessors(codegen.Prefixer("gen"))

	files, err := jl.Generate(info)
	is.NoErr(err)
	is.Equal(len(files), 1)
	is.Equal(files[0].RelativePath, "gen/"+codegen.FileName(info.Type()))
	is.Equal(files[0].From[0].JennyName(), "WrapperJenny")

	_, err = jl.Generate(info, gearInfo(t))
	is.True(err != nil)
	is.True(errors.Is(err, codegen.ErrUnsupportedType))
	is.True(strings.Contains(err.Error(), `for input "Gear"`))
}

func TestRegistryJenny(t *testing.T) {
	is := is.New(t)
	jl := new(codegen.JennyList[codegen.Header])
	jl.AppendManyToOne(codegen.RegistryJenny{Package: "eswrap"})
	jl.AddPostprocessors(codegen.Prefixer("gen"))

	files, err := jl.Generate(
		codegen.Header{Class: "example.com/b.Two"},
		codegen.Header{Class: "example.com/a.One"},
		codegen.Header{Class: "example.com/b.Two"},
	)
	is.NoErr(err)
	is.Equal(len(files), 1)
	is.Equal(files[0].RelativePath, "gen/"+codegen.DocFile)

	src := string(files[0].Data)
	is.True(strings.HasPrefix(src, "// Code generated by esbeangen. DO NOT EDIT."))
	one, two := strings.Index(src, "example.com/a.One"), strings.Index(src, "example.com/b.Two")
	is.True(one > 0 && two > one)
	is.Equal(strings.Count(src, "example.com/b.Two"), 1)
	is.True(strings.Contains(src, `_ "github.com/sdboyer/esbean/wrapper"`))

	files, err = jl.Generate()
	is.NoErr(err)
	is.Equal(len(files), 0)
}

func TestFilesValidate(t *testing.T) {
	is := is.New(t)
	is.NoErr(codegen.Files{{RelativePath: "a.go", Data: []byte("a")}}.Validate())

	err := codegen.Files{
		{RelativePath: "a.go", Data: []byte("a")},
		{RelativePath: "a.go", Data: []byte("b")},
	}.Validate()
	is.True(err != nil)

	is.True(codegen.Files{{RelativePath: "/abs.go", Data: []byte("a")}}.Validate() != nil)
	is.True(codegen.Files{{RelativePath: "empty.go"}}.Validate() != nil)
}

func TestFSWriteVerify(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	fs := codegen.NewFS()
	is.NoErr(fs.Add("test",
		codegen.File{RelativePath: "eswrap/a.go", Data: []byte("package eswrap\n")},
		codegen.File{RelativePath: "eswrap/b.go", Data: []byte("package eswrap\n\nvar b = 1\n")},
	))
	is.True(fs.Add("other", codegen.File{RelativePath: "eswrap/a.go", Data: []byte("x")}) != nil)
	is.Equal(fs.Len(), 2)

	is.NoErr(fs.Write(ctx, dir))
	is.NoErr(fs.Verify(ctx, dir))

	is.NoErr(os.WriteFile(filepath.Join(dir, "eswrap", "b.go"), []byte("package eswrap\n"), 0o644))
	err := fs.Verify(ctx, dir)
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "would have changed"))

	is.NoErr(os.Remove(filepath.Join(dir, "eswrap", "a.go")))
	err = fs.Verify(ctx, dir)
	is.True(strings.Contains(err.Error(), "should exist"))
}

func TestFSMerge(t *testing.T) {
	is := is.New(t)
	a, b := codegen.NewFS(), codegen.NewFS()
	is.NoErr(a.Add("a", codegen.File{RelativePath: "x.go", Data: []byte("x")}))
	is.NoErr(b.Add("b", codegen.File{RelativePath: "y.go", Data: []byte("y")}))
	is.NoErr(a.Merge(b))

	paths := []string{}
	for _, f := range a.AsFiles() {
		paths = append(paths, f.RelativePath)
	}
	is.Equal(paths, []string{"x.go", "y.go"})

	is.True(a.Merge(b) != nil)
	data, ok := a.Get("y.go")
	is.True(ok)
	is.Equal(string(data), "y")
}

func TestGeneratorSkipsCurrentWrappers(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	compiles := 0
	gen := codegen.NewGenerator(dir, codegen.WithCompiler(codegen.CompilerFunc(func(_ context.Context, pkgDir string) error {
		compiles++
		is.Equal(pkgDir, filepath.Join(dir, codegen.DefaultPackage))
		return nil
	})))
	info := sprocketInfo(t)

	res, err := gen.Generate(ctx, info)
	is.NoErr(err)
	is.Equal(res.Generated, []string{info.Type().Name()})
	is.Equal(compiles, 1)

	res, err = gen.Generate(ctx, info, info)
	is.NoErr(err)
	is.Equal(res.Skipped, []string{info.Type().Name()})
	is.Equal(len(res.Generated), 0)
	is.Equal(compiles, 1)

	is.NoErr(gen.Verify(ctx, info))

	p := filepath.Join(dir, filepath.FromSlash(codegen.Path(codegen.DefaultPackage, info.Type())))
	is.NoErr(os.WriteFile(p, []byte("// Code generated by esbeangen. DO NOT EDIT.\n// esbean:version 1\n// esbean:hash stale\n\npackage eswrap\n"), 0o644))
	is.True(gen.Verify(ctx, info) != nil)

	res, err = gen.Generate(ctx, info)
	is.NoErr(err)
	is.Equal(res.Generated, []string{info.Type().Name()})
	is.Equal(compiles, 2)
	is.NoErr(gen.Verify(ctx, info))
}

func TestGeneratorCompileFailure(t *testing.T) {
	is := is.New(t)
	gen := codegen.NewGenerator(t.TempDir(),
		codegen.WithPackage("wrappers"),
		codegen.WithCompiler(codegen.CompilerFunc(func(context.Context, string) error {
			return errors.New("undefined: x")
		})),
	)
	_, err := gen.Generate(context.Background(), sprocketInfo(t))
	is.True(errors.Is(err, codegen.ErrCompile))
	is.True(strings.HasSuffix(gen.PackageDir(), "wrappers"))
}

func TestGeneratorDocListsEveryWrapper(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	gen := codegen.NewGenerator(t.TempDir(), codegen.WithCompiler(nil))
	sprocket, pulley := sprocketInfo(t), pulleyInfo(t)

	_, err := gen.Generate(ctx, sprocket)
	is.NoErr(err)
	stray := filepath.Join(gen.PackageDir(), "notes"+codegen.FileSuffix)
	is.NoErr(os.WriteFile(stray, []byte("package eswrap\n"), 0o644))
	_, err = gen.Generate(ctx, pulley)
	is.NoErr(err)

	doc, err := os.ReadFile(filepath.Join(gen.PackageDir(), codegen.DocFile))
	is.NoErr(err)
	is.True(strings.Contains(string(doc), sprocket.Type().Name()))
	is.True(strings.Contains(string(doc), pulley.Type().Name()))
	is.True(!strings.Contains(string(doc), "notes"))

	is.NoErr(gen.Verify(ctx, sprocket))
	is.NoErr(gen.Verify(ctx, pulley))
	is.NoErr(gen.Verify(ctx, sprocket, pulley))
}
