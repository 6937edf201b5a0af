// Package beaninfo analyzes native classes into the object model scripts
// see: properties (plain, indexed and named), overloaded methods grouped by
// arity, constructors and the default enumeration method.
package beaninfo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/sdboyer/esbean/jtype"
)

// CreateMethod is the static method name that, when present, replaces the
// native constructors as the way scripts construct a class.
const CreateMethod = "create"

// BeanInfo is the frozen analysis of one class.
type BeanInfo struct {
	typ      jtype.Type
	methods  map[string][]OverloadGroup
	statics  map[string][]OverloadGroup
	ctors    []OverloadGroup
	props    map[string]Property
	iterator *MethodDescriptor
	packages []string
}

// Type is the analyzed class.
func (bi *BeanInfo) Type() jtype.Type { return bi.typ }

// Methods returns the overload groups of the named method indexed by arity.
// Missing arities are nil.
func (bi *BeanInfo) Methods(name string) []OverloadGroup {
	return cloneGroups(bi.methods[name])
}

// StaticMethods is like Methods, restricted to static descriptors.
func (bi *BeanInfo) StaticMethods(name string) []OverloadGroup {
	return cloneGroups(bi.statics[name])
}

// MethodNames returns the method names, sorted.
func (bi *BeanInfo) MethodNames() []string { return sortedKeys(bi.methods) }

// StaticMethodNames returns the static method names, sorted.
func (bi *BeanInfo) StaticMethodNames() []string { return sortedKeys(bi.statics) }

// Constructors returns the native constructors indexed by arity.
func (bi *BeanInfo) Constructors() []OverloadGroup { return cloneGroups(bi.ctors) }

// Creators returns the groups scripts construct the class with: the static
// "create" method when the class has one, otherwise its constructors.
func (bi *BeanInfo) Creators() (groups []OverloadGroup, factory bool) {
	if g := bi.statics[CreateMethod]; len(g) > 0 {
		return cloneGroups(g), true
	}
	return bi.Constructors(), false
}

// Property returns the usable property with the given name.
func (bi *BeanInfo) Property(name string) (Property, bool) {
	p, ok := bi.props[name]
	return p, ok
}

// Properties returns every usable property, sorted by name.
func (bi *BeanInfo) Properties() []Property {
	out := make([]Property, 0, len(bi.props))
	for _, name := range sortedKeys(bi.props) {
		out = append(out, bi.props[name])
	}
	return out
}

// Iterator returns the default enumeration method, if any.
func (bi *BeanInfo) Iterator() *MethodDescriptor { return bi.iterator }

// Packages returns the import paths of the named types that appear as
// parameter or field types, sorted.
func (bi *BeanInfo) Packages() []string {
	return append([]string(nil), bi.packages...)
}

// Describe renders the analysis as canonical text: two BeanInfos with the
// same description expose the same object model.
func (bi *BeanInfo) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "class %s\n", bi.typ.Name())
	if bi.iterator != nil {
		fmt.Fprintf(&sb, "iterator %s\n", bi.iterator.Signature())
	}
	describeGroups(&sb, "method", bi.methods)
	describeGroups(&sb, "static", bi.statics)
	for arity, g := range bi.ctors {
		for _, md := range g {
			fmt.Fprintf(&sb, "constructor/%d %s\n", arity, md.Signature())
		}
	}
	for _, p := range bi.Properties() {
		fmt.Fprintf(&sb, "property %s\n", p.describe())
	}
	for _, pkg := range bi.packages {
		fmt.Fprintf(&sb, "package %s\n", pkg)
	}
	return sb.String()
}

func describeGroups(sb *strings.Builder, label string, m map[string][]OverloadGroup) {
	for _, name := range sortedKeys(m) {
		for arity, g := range m[name] {
			for _, md := range g {
				fmt.Fprintf(sb, "%s %s/%d %s\n", label, name, arity, md.Signature())
			}
		}
	}
}

// Hash is a digest of Describe. Generated wrappers embed it to detect that
// the class they were generated from has changed.
func (bi *BeanInfo) Hash() string {
	sum := sha256.Sum256([]byte(bi.Describe()))
	return hex.EncodeToString(sum[:])
}

func cloneGroups(groups []OverloadGroup) []OverloadGroup {
	if groups == nil {
		return nil
	}
	out := make([]OverloadGroup, len(groups))
	for i, g := range groups {
		if g != nil {
			out[i] = append(OverloadGroup(nil), g...)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
