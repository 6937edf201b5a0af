// Package jtype describes native Go types as classes with methods, fields and
// constructors, so that the bean introspector can analyze them without caring
// whether the description comes from the reflect package at runtime or from
// type-checked source ahead of time.
package jtype

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNotInvocable is returned by descriptors that only describe code, such as
// those loaded from source, when asked to run it.
var ErrNotInvocable = errors.New("descriptor cannot be invoked")

// Type is a type descriptor.
type Type interface {
	// Name is the fully qualified name, e.g. "net/url.URL", "*net/url.URL",
	// "[]string" or "int".
	Name() string
	// SimpleName is the unqualified name of a named type, or "" for
	// composite types.
	SimpleName() string
	// PkgPath is the import path of a named type, or "".
	PkgPath() string
	Kind() Kind
	// Elem is the element type of pointers, slices, arrays, maps and chans.
	Elem() Type
	IsPublic() bool
	// IsAbstract is true for interfaces, which cannot be constructed.
	IsAbstract() bool
	Interfaces() []Type
	// Superclass is the first embedded struct of a class, or nil.
	Superclass() Type
	// Methods are the exported methods declared by the type itself, not
	// the ones promoted from an embedded superclass.
	Methods() []Method
	Fields() []Field
	Constructors() []Method
	AssignableTo(u Type) bool
	// IterElem reports whether values of the type can be enumerated, and
	// the type of the enumerated elements.
	IterElem() (Type, bool)
	// New returns a new zero instance, as used for companion types.
	New() (any, error)
}

// Method describes a method, static function or constructor.
type Method interface {
	// Name is the native Go identifier.
	Name() string
	DeclaringType() Type
	ParamTypes() []Type
	// ReturnType is the first non-error result, or the Void type.
	ReturnType() Type
	// ReturnsErr reports whether the last result is an error.
	ReturnsErr() bool
	IsStatic() bool
	IsPublic() bool
	IsConstructor() bool
	// Func returns the package-level function implementing a static
	// method or constructor. ok is false for methods with a receiver.
	Func() (pkgPath, name string, ok bool)
	// Invoke calls the method. recv is ignored for static methods.
	Invoke(recv any, args []any) (any, error)
}

// Field describes an exported struct field.
type Field interface {
	Name() string
	Type() Type
	DeclaringType() Type
	IsPublic() bool
	Tag(key string) string
	Get(recv any) (any, error)
	Set(recv any, v any) error
}

// Resolver finds types by fully qualified name. The introspector uses it to
// discover companion types.
type Resolver interface {
	Lookup(name string) (Type, bool)
}

// Identical reports whether a and b describe the same type.
func Identical(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b || a.Name() == b.Name()
}

// SameClass reports whether t is cls or a pointer to cls.
func SameClass(t, cls Type) bool {
	if Identical(t, cls) {
		return true
	}
	return t != nil && t.Kind() == Pointer && Identical(t.Elem(), cls)
}

// ClassOf returns the class a value of type t is an instance of: the
// element of a pointer to a struct, otherwise t itself.
func ClassOf(t Type) Type {
	if t != nil && t.Kind() == Pointer && t.Elem() != nil && t.Elem().Kind() == Struct {
		return t.Elem()
	}
	return t
}

// QualifiedName joins an import path and identifier the way Type.Name does.
func QualifiedName(pkgPath, name string) string {
	if pkgPath == "" {
		return name
	}
	return pkgPath + "." + name
}

// Decapitalize lower-cases the first letter of name, following the bean
// convention: a name starting with two upper case letters, such as ID or
// URLPath, is left alone.
func Decapitalize(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	if next, _ := utf8.DecodeRuneInString(name[size:]); unicode.IsUpper(r) && unicode.IsUpper(next) {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

// IsExported reports whether name starts with an upper case letter.
func IsExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// IsStaticHolder reports whether t only exists to carry static methods. Go
// has no static methods, so every method of a type named XxxEcmaWrap is
// treated as one.
func IsStaticHolder(t Type) bool {
	return t != nil && strings.HasSuffix(t.SimpleName(), "EcmaWrap")
}

var (
	// VoidType is the return type of methods without results and the type
	// of a missing argument.
	VoidType Type = special{kind: Void, name: "void"}
	// NullType is the type of the script null and undefined values.
	NullType Type = special{kind: Null, name: "null"}
)

type special struct {
	kind Kind
	name string
}

func (s special) Name() string             { return s.name }
func (s special) SimpleName() string       { return s.name }
func (s special) PkgPath() string          { return "" }
func (s special) Kind() Kind               { return s.kind }
func (s special) Elem() Type               { return nil }
func (s special) IsPublic() bool           { return true }
func (s special) IsAbstract() bool         { return true }
func (s special) Interfaces() []Type       { return nil }
func (s special) Superclass() Type         { return nil }
func (s special) Methods() []Method        { return nil }
func (s special) Fields() []Field          { return nil }
func (s special) Constructors() []Method   { return nil }
func (s special) AssignableTo(u Type) bool { return Identical(s, u) }
func (s special) IterElem() (Type, bool)   { return nil, false }
func (s special) New() (any, error)        { return nil, ErrNotInvocable }
