package beaninfo

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sdboyer/esbean/jtype"
)

type slotState uint8

const (
	slotUnset slotState = iota
	slotUsable
	slotConflicted
)

// slot is the merge state of one property name. A conflicted slot stays
// conflicted unless an overwriting definition replaces it, and never
// reaches the frozen BeanInfo.
type slot struct {
	state slotState
	prop  Property
}

// builder accumulates the mutable merge state of one class analysis.
type builder struct {
	typ      jtype.Type
	methods  map[string][]OverloadGroup
	statics  map[string][]OverloadGroup
	ctors    []OverloadGroup
	props    map[string]*slot
	iterator *MethodDescriptor
	packages map[string]struct{}
	log      logrus.FieldLogger
}

func newBuilder(t jtype.Type, log logrus.FieldLogger) *builder {
	return &builder{
		typ:      t,
		methods:  make(map[string][]OverloadGroup),
		statics:  make(map[string][]OverloadGroup),
		props:    make(map[string]*slot),
		packages: make(map[string]struct{}),
		log:      log.WithField("class", t.Name()),
	}
}

// notePackage records the import paths a generated wrapper needs to name t.
func (b *builder) notePackage(t jtype.Type) {
	for t != nil {
		if p := t.PkgPath(); p != "" {
			b.packages[p] = struct{}{}
			return
		}
		t = t.Elem()
	}
}

// usableParams reports whether every script-visible parameter type can be
// named from outside its package, noting the packages it needs.
func (b *builder) usableParams(md *MethodDescriptor) bool {
	params := md.ParamTypes()
	for _, p := range params {
		if !p.IsPublic() {
			return false
		}
	}
	for _, p := range params {
		b.notePackage(p)
	}
	return true
}

func (b *builder) addMethod(md *MethodDescriptor) {
	if !md.Method().IsPublic() || !b.usableParams(md) {
		b.log.WithField("method", md.Signature()).Debug("skipping method with non-public signature")
		return
	}
	b.methods[md.Name()] = b.place(b.methods[md.Name()], md)
	if md.IsStatic() {
		b.statics[md.Name()] = b.place(b.statics[md.Name()], md)
	}
}

func (b *builder) addConstructor(md *MethodDescriptor) {
	if !md.Method().IsPublic() || !b.usableParams(md) {
		return
	}
	b.ctors = b.place(b.ctors, md)
}

// place puts md into the arity slot of groups, growing it as needed.
func (b *builder) place(groups []OverloadGroup, md *MethodDescriptor) []OverloadGroup {
	arity := md.Arity()
	for len(groups) <= arity {
		groups = append(groups, nil)
	}
	groups[arity] = b.merge(groups[arity], md)
	return groups
}

// merge adds md to an overload group:
//
//   - a descriptor with the same parameter types is replaced when md
//     overwrites, or when md is declared by the analyzed class and the
//     existing one was inherited without overwriting; otherwise md is dropped
//   - virtual descriptors displace static ones of the same name and arity,
//     and static descriptors never join a group holding a virtual one
//   - anything else becomes a new overload
func (b *builder) merge(group OverloadGroup, md *MethodDescriptor) OverloadGroup {
	for i, old := range group {
		if !sameParams(old, md) {
			continue
		}
		if md.Overwrite() || (!old.Overwrite() && b.isOwn(md) && !b.isOwn(old)) {
			group[i] = md
		} else {
			b.log.WithField("method", md.Signature()).Debug("dropping duplicate method")
		}
		return group
	}

	hasStatic, hasVirtual := false, false
	for _, old := range group {
		if old.IsStatic() {
			hasStatic = true
		} else {
			hasVirtual = true
		}
	}
	switch {
	case md.IsStatic() && hasVirtual:
		b.log.WithField("method", md.Signature()).Debug("dropping static method shadowed by a virtual one")
		return group
	case !md.IsStatic() && hasStatic:
		kept := group[:0]
		for _, old := range group {
			if !old.IsStatic() {
				kept = append(kept, old)
			}
		}
		group = kept
	}
	return append(group, md)
}

func (b *builder) isOwn(md *MethodDescriptor) bool {
	return jtype.Identical(md.Owner(), b.typ)
}

func (b *builder) setIterator(md *MethodDescriptor) {
	switch {
	case b.iterator == nil:
		b.iterator = md
	case md.Name() == "keys" && b.iterator.Name() != "keys":
		b.iterator = md
	}
}

func (b *builder) addField(f jtype.Field) {
	if !f.IsPublic() || !f.Type().IsPublic() {
		return
	}
	name := f.Tag("js")
	switch name {
	case "-":
		return
	case "":
		name = jtype.Decapitalize(f.Name())
	}
	b.notePackage(f.Type())
	b.addProp(Property{Name: name, Kind: Plain, Field: f}, false)
}

func (b *builder) addProp(p Property, overwrite bool) {
	s, ok := b.props[p.Name]
	switch {
	case !ok:
		b.props[p.Name] = &slot{state: slotUsable, prop: p}
	case s.state == slotUsable && s.prop.Kind == p.Kind:
		s.prop.merge(p, overwrite)
	case overwrite:
		s.state, s.prop = slotUsable, p
	default:
		if s.state != slotConflicted {
			b.log.WithFields(logrus.Fields{
				"property": p.Name,
				"kind":     p.Kind,
				"existing": s.prop.Kind,
			}).Debug("property definitions conflict; dropping property")
		}
		s.state = slotConflicted
	}
}

// fold merges the analysis of an interface or superclass into the class.
func (b *builder) fold(parent *BeanInfo) {
	if parent.iterator != nil {
		b.setIterator(parent.iterator)
	}
	for _, name := range sortedKeys(parent.methods) {
		for _, g := range parent.methods[name] {
			for _, md := range g {
				b.addMethod(md)
			}
		}
	}
	// Statics displaced from the parent's instance map by a virtual
	// overload survive only in its static map.
	for _, name := range sortedKeys(parent.statics) {
		for _, g := range parent.statics[name] {
			for _, md := range g {
				b.statics[name] = b.place(b.statics[name], md)
			}
		}
	}
	for _, name := range sortedKeys(parent.props) {
		b.addProp(parent.props[name], false)
	}
	for _, p := range parent.packages {
		b.packages[p] = struct{}{}
	}
}

func (b *builder) freeze() *BeanInfo {
	bi := &BeanInfo{
		typ:      b.typ,
		methods:  make(map[string][]OverloadGroup, len(b.methods)),
		statics:  make(map[string][]OverloadGroup, len(b.statics)),
		ctors:    cloneGroups(b.ctors),
		props:    make(map[string]Property, len(b.props)),
		iterator: b.iterator,
	}
	for name, g := range b.methods {
		bi.methods[name] = cloneGroups(g)
	}
	for name, g := range b.statics {
		bi.statics[name] = cloneGroups(g)
	}
	for name, s := range b.props {
		if s.state == slotUsable {
			bi.props[name] = s.prop
		}
	}
	for p := range b.packages {
		bi.packages = append(bi.packages, p)
	}
	sort.Strings(bi.packages)
	return bi
}
