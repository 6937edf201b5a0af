package beaninfo

import (
	"strings"

	"github.com/sdboyer/esbean/jtype"
)

// MethodDescriptor is one analyzed native method as seen by scripts. It is
// immutable once created.
type MethodDescriptor struct {
	name          string
	method        jtype.Method
	owner         jtype.Type
	overwrite     bool
	staticVirtual bool
}

// NewMethodDescriptor describes m as a member of the analyzed class cls. The
// script name is the native name with its first letter lower-cased.
func NewMethodDescriptor(cls jtype.Type, m jtype.Method, overwrite bool) *MethodDescriptor {
	return &MethodDescriptor{
		name:          jtype.Decapitalize(m.Name()),
		method:        m,
		owner:         cls,
		overwrite:     overwrite,
		staticVirtual: IsStaticVirtual(cls, m),
	}
}

// IsStaticVirtual reports whether m is a static function of an XxxEcmaWrap
// companion whose first parameter stands in for an instance of cls.
func IsStaticVirtual(cls jtype.Type, m jtype.Method) bool {
	if !m.IsStatic() || m.IsConstructor() {
		return false
	}
	if decl := m.DeclaringType(); decl == nil || !strings.HasSuffix(decl.SimpleName(), "EcmaWrap") {
		return false
	}
	params := m.ParamTypes()
	return len(params) > 0 && jtype.SameClass(params[0], cls)
}

func (md *MethodDescriptor) withName(name string) *MethodDescriptor {
	cp := *md
	cp.name = name
	return &cp
}

// Name is the name scripts call the method by.
func (md *MethodDescriptor) Name() string { return md.name }

// Method is the underlying native method.
func (md *MethodDescriptor) Method() jtype.Method { return md.method }

// Owner is the class whose analysis created the descriptor.
func (md *MethodDescriptor) Owner() jtype.Type { return md.owner }

// Overwrite reports whether the descriptor replaces an existing descriptor
// with the same signature instead of being dropped as a duplicate.
func (md *MethodDescriptor) Overwrite() bool { return md.overwrite }

// StaticVirtual reports whether the first native parameter is the receiver.
func (md *MethodDescriptor) StaticVirtual() bool { return md.staticVirtual }

// ParamTypes are the script-visible parameters.
func (md *MethodDescriptor) ParamTypes() []jtype.Type {
	params := md.method.ParamTypes()
	if md.staticVirtual {
		return params[1:]
	}
	return params
}

// Arity is the number of script-visible parameters.
func (md *MethodDescriptor) Arity() int { return len(md.ParamTypes()) }

// DeclaringType is the receiver type for static-virtual methods and the
// native declaring type otherwise.
func (md *MethodDescriptor) DeclaringType() jtype.Type {
	if md.staticVirtual {
		return md.method.ParamTypes()[0]
	}
	return md.method.DeclaringType()
}

// IsStatic reports whether the method needs no receiver.
func (md *MethodDescriptor) IsStatic() bool {
	return !md.staticVirtual && md.method.IsStatic()
}

// ReturnType is the native result type.
func (md *MethodDescriptor) ReturnType() jtype.Type { return md.method.ReturnType() }

// Invoke calls the method on recv with already converted arguments.
func (md *MethodDescriptor) Invoke(recv any, args []any) (any, error) {
	if md.staticVirtual {
		full := make([]any, 0, len(args)+1)
		full = append(full, recv)
		return md.method.Invoke(nil, append(full, args...))
	}
	return md.method.Invoke(recv, args)
}

// Signature renders the descriptor for diagnostics and hashing.
func (md *MethodDescriptor) Signature() string {
	var sb strings.Builder
	sb.WriteString(md.name)
	sb.WriteByte('(')
	for i, p := range md.ParamTypes() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name())
	}
	sb.WriteString(") ")
	sb.WriteString(md.ReturnType().Name())
	sb.WriteString(" <- ")
	sb.WriteString(jtype.QualifiedName(md.method.DeclaringType().Name(), md.method.Name()))
	if md.overwrite {
		sb.WriteString(" overwrite")
	}
	if md.staticVirtual {
		sb.WriteString(" static-virtual")
	} else if md.method.IsStatic() {
		sb.WriteString(" static")
	}
	return sb.String()
}

func sameParams(a, b *MethodDescriptor) bool {
	pa, pb := a.ParamTypes(), b.ParamTypes()
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if !jtype.Identical(pa[i], pb[i]) {
			return false
		}
	}
	return true
}

// OverloadGroup holds the descriptors sharing a name and arity. No two
// entries have identical parameter types.
type OverloadGroup []*MethodDescriptor

// ParamTypes returns the parameter type tuples of the group, in order.
func (g OverloadGroup) ParamTypes() [][]jtype.Type {
	out := make([][]jtype.Type, len(g))
	for i, md := range g {
		out[i] = md.ParamTypes()
	}
	return out
}

// PropertyKind is the shape of a property.
type PropertyKind uint8

const (
	// Plain properties are read and written as obj.name.
	Plain PropertyKind = iota
	// Indexed properties are array-like: obj.name[i], obj.name.length.
	Indexed
	// Named properties are map-like: obj.name["k"], delete, for-in.
	Named
)

func (k PropertyKind) String() string {
	switch k {
	case Indexed:
		return "indexed"
	case Named:
		return "named"
	}
	return "plain"
}

// Property is one analyzed property. Which accessors are meaningful depends
// on Kind: Field, Getter and Setter for Plain; Getter, Setter and Size for
// Indexed; Getter, Setter, Remover and Iterator for Named.
type Property struct {
	Name     string
	Kind     PropertyKind
	Field    jtype.Field
	Getter   *MethodDescriptor
	Setter   *MethodDescriptor
	Size     *MethodDescriptor
	Remover  *MethodDescriptor
	Iterator *MethodDescriptor
}

// Readable reports whether a plain property has a getter or a field.
func (p Property) Readable() bool { return p.Getter != nil || p.Field != nil }

// Writable reports whether a plain property has a setter or a field.
func (p Property) Writable() bool { return p.Setter != nil || p.Field != nil }

// merge fills in the accessors of p from q. When replace is set, accessors
// present in q win; otherwise only absent ones are filled.
func (p *Property) merge(q Property, replace bool) {
	pick := func(dst **MethodDescriptor, src *MethodDescriptor) {
		if src != nil && (replace || *dst == nil) {
			*dst = src
		}
	}
	pick(&p.Getter, q.Getter)
	pick(&p.Setter, q.Setter)
	pick(&p.Size, q.Size)
	pick(&p.Remover, q.Remover)
	pick(&p.Iterator, q.Iterator)
	if q.Field != nil && (replace || p.Field == nil) {
		p.Field = q.Field
	}
}

func (p Property) describe() string {
	var sb strings.Builder
	sb.WriteString(p.Kind.String())
	sb.WriteByte(' ')
	sb.WriteString(p.Name)
	if p.Field != nil {
		sb.WriteString(" field=" + p.Field.Name())
	}
	for _, acc := range []struct {
		label string
		md    *MethodDescriptor
	}{
		{"get", p.Getter},
		{"set", p.Setter},
		{"size", p.Size},
		{"remove", p.Remover},
		{"keys", p.Iterator},
	} {
		if acc.md != nil {
			sb.WriteString(" " + acc.label + "=" + acc.md.Signature())
		}
	}
	return sb.String()
}
