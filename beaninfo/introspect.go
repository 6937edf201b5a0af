package beaninfo

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/sdboyer/esbean/jtype"
)

// DefaultWrapRoot is the import path searched for EcmaWrap companions of
// classes that cannot carry one in their own package.
const DefaultWrapRoot = "github.com/sdboyer/esbean/eswrap"

// DefaultCacheSize bounds the number of analyzed classes kept by an
// Introspector.
const DefaultCacheSize = 512

// Provider is implemented by XxxBeanInfo companion types. A non-nil result
// from either method replaces reflective discovery of that kind of member
// for class Xxx.
type Provider interface {
	MethodSpecs() []MethodSpec
	PropertySpecs() []PropertySpec
}

// MethodSpec exposes the native method Method under the script name Name.
type MethodSpec struct {
	Name   string
	Method string
}

// PropertySpec declares a property by the native names of its accessors.
type PropertySpec struct {
	Name     string
	Kind     PropertyKind
	Field    string
	Getter   string
	Setter   string
	Size     string
	Remover  string
	Iterator string
}

// Mask reports which kinds of reflective discovery a BeanInfo companion
// consumed.
type Mask uint8

const (
	ConsumeMethods Mask = 1 << iota
	ConsumeProperties

	ConsumeAll = ConsumeMethods | ConsumeProperties
)

// Introspector analyzes classes into BeanInfos and memoizes the results in
// a bounded cache keyed by class name.
type Introspector struct {
	resolver jtype.Resolver
	wrapRoot string
	size     int
	log      logrus.FieldLogger
	cache    *lru.Cache[string, *BeanInfo]
}

// IntrospectorOption configures an Introspector.
type IntrospectorOption func(*Introspector)

// WithCacheSize bounds the number of cached analyses.
func WithCacheSize(n int) IntrospectorOption {
	return func(in *Introspector) {
		if n > 0 {
			in.size = n
		}
	}
}

// WithWrapRoot sets the package searched for EcmaWrap companions after the
// class's own package.
func WithWrapRoot(pkg string) IntrospectorOption {
	return func(in *Introspector) { in.wrapRoot = pkg }
}

// WithLogger sets the logger for dropped and conflicting members.
func WithLogger(log logrus.FieldLogger) IntrospectorOption {
	return func(in *Introspector) { in.log = log }
}

// NewIntrospector returns an Introspector finding companions through
// resolver.
func NewIntrospector(resolver jtype.Resolver, opts ...IntrospectorOption) *Introspector {
	in := &Introspector{
		resolver: resolver,
		wrapRoot: DefaultWrapRoot,
		size:     DefaultCacheSize,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(in)
	}
	// lru.New only fails for non-positive sizes.
	in.cache, _ = lru.New[string, *BeanInfo](in.size)
	return in
}

// Analyze returns the BeanInfo of t. Pointer types are analyzed as the
// class they point to. Analysis never fails: members that cannot be
// represented are left out.
func (in *Introspector) Analyze(t jtype.Type) *BeanInfo {
	return in.analyze(jtype.ClassOf(t), make(map[string]bool))
}

// Invalidate drops the cached analysis of t.
func (in *Introspector) Invalidate(t jtype.Type) {
	in.cache.Remove(jtype.ClassOf(t).Name())
}

// Clear drops every cached analysis.
func (in *Introspector) Clear() { in.cache.Purge() }

// Len is the number of cached analyses.
func (in *Introspector) Len() int { return in.cache.Len() }

func (in *Introspector) analyze(cls jtype.Type, visiting map[string]bool) *BeanInfo {
	name := cls.Name()
	if bi, ok := in.cache.Get(name); ok {
		return bi
	}
	if visiting[name] {
		// An embedding cycle; the outer analysis supplies the members.
		return newBuilder(cls, in.log).freeze()
	}
	visiting[name] = true
	defer delete(visiting, name)

	bi := in.build(cls, visiting)
	in.cache.Add(name, bi)
	return bi
}

func (in *Introspector) build(cls jtype.Type, visiting map[string]bool) *BeanInfo {
	b := newBuilder(cls, in.log)
	b.notePackage(cls)

	mask := in.applyProvider(b, cls)
	if mask != ConsumeAll {
		for _, iface := range cls.Interfaces() {
			b.fold(in.analyze(iface, visiting))
		}
		if sup := cls.Superclass(); sup != nil {
			b.fold(in.analyze(sup, visiting))
		}
		if cls.IsPublic() {
			for _, m := range cls.Methods() {
				md := NewMethodDescriptor(cls, m, false)
				if mask&ConsumeMethods == 0 {
					b.addMethod(md)
				}
				if mask&ConsumeProperties == 0 {
					b.inferProperty(md, false)
				}
			}
			if mask&ConsumeProperties == 0 {
				for _, f := range cls.Fields() {
					b.addField(f)
				}
			}
		}
	}

	if wrap := in.companion(cls); wrap != nil {
		b.log.WithField("companion", wrap.Name()).Debug("merging EcmaWrap companion")
		for _, m := range wrap.Methods() {
			md := NewMethodDescriptor(cls, m, true)
			b.addMethod(md)
			b.inferProperty(md, true)
		}
	}

	if cls.IsPublic() && !cls.IsAbstract() {
		for _, c := range cls.Constructors() {
			b.addConstructor(NewMethodDescriptor(cls, c, false))
		}
	}
	return b.freeze()
}

// companion finds the EcmaWrap companion of cls. The class's own package is
// searched first, then the mirrored path under the wrap root, then the bare
// name and the wrap root itself. The first hit wins.
func (in *Introspector) companion(cls jtype.Type) jtype.Type {
	if in.resolver == nil || cls.SimpleName() == "" {
		return nil
	}
	simple := cls.SimpleName() + "EcmaWrap"
	pkg := cls.PkgPath()
	candidates := []string{jtype.QualifiedName(pkg, simple)}
	if pkg != "" && in.wrapRoot != "" {
		candidates = append(candidates, jtype.QualifiedName(in.wrapRoot+"/"+pkg, simple))
	}
	candidates = append(candidates, simple)
	if in.wrapRoot != "" {
		candidates = append(candidates, jtype.QualifiedName(in.wrapRoot, simple))
	}
	for _, name := range candidates {
		if t, ok := in.resolver.Lookup(name); ok {
			return t
		}
	}
	return nil
}

// applyProvider harvests the XxxBeanInfo companion of cls, if there is one
// that can be instantiated and implements Provider. Anything else counts as
// no companion.
func (in *Introspector) applyProvider(b *builder, cls jtype.Type) Mask {
	if in.resolver == nil || cls.SimpleName() == "" {
		return 0
	}
	comp, ok := in.resolver.Lookup(jtype.QualifiedName(cls.PkgPath(), cls.SimpleName()+"BeanInfo"))
	if !ok {
		return 0
	}
	v, err := comp.New()
	if err != nil {
		b.log.WithError(err).Debug("BeanInfo companion cannot be instantiated")
		return 0
	}
	p, ok := v.(Provider)
	if !ok {
		return 0
	}

	byName := make(map[string]jtype.Method)
	for _, m := range cls.Methods() {
		byName[m.Name()] = m
	}
	describe := func(native string) *MethodDescriptor {
		if m, ok := byName[native]; ok {
			return NewMethodDescriptor(cls, m, true)
		}
		return nil
	}

	var mask Mask
	if specs := p.MethodSpecs(); specs != nil {
		mask |= ConsumeMethods
		for _, spec := range specs {
			md := describe(spec.Method)
			if md == nil {
				continue
			}
			if spec.Name != "" {
				md = md.withName(spec.Name)
			}
			b.addMethod(md)
		}
	}
	if specs := p.PropertySpecs(); specs != nil {
		mask |= ConsumeProperties
		for _, spec := range specs {
			prop := Property{
				Name:     spec.Name,
				Kind:     spec.Kind,
				Getter:   describe(spec.Getter),
				Setter:   describe(spec.Setter),
				Size:     describe(spec.Size),
				Remover:  describe(spec.Remover),
				Iterator: describe(spec.Iterator),
			}
			for _, f := range cls.Fields() {
				if spec.Field != "" && f.Name() == spec.Field {
					prop.Field = f
				}
			}
			b.addProp(prop, true)
		}
	}
	return mask
}
