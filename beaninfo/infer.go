package beaninfo

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sdboyer/esbean/jtype"
)

// inferProperty applies the bean naming conventions to one method. The first
// matching rule wins:
//
//	keys() / iterator()            default enumeration, keys preferred
//	getXxxKeys() / getXxxNames()   named property xxx, key iterator
//	getXxxSize() / getXxxLength()  plain xxxSize/xxxLength and indexed xxx size
//	getXxx()                       plain getter
//	getXxx(string)                 named getter
//	getXxx(int)                    indexed getter
//	setXxx(v)                      plain setter
//	setXxx(string, v)              named setter
//	setXxx(int, v)                 indexed setter
//	removeXxx(string)              named remover
//	deleteXxx(string)              named remover
//
// Methods that fit none of these shapes, such as a getter without a result,
// are left alone.
func (b *builder) inferProperty(md *MethodDescriptor, overwrite bool) {
	if md.IsStatic() {
		return
	}
	name := md.Name()
	params := md.ParamTypes()
	ret := md.ReturnType()

	if (name == "keys" || name == "iterator") && len(params) == 0 && isIterator(ret) {
		b.setIterator(md)
		return
	}

	if prop, ok := accessorName(name, "get"); ok {
		b.inferGetter(prop, md, params, ret, overwrite)
		return
	}
	if prop, ok := accessorName(name, "set"); ok {
		b.inferSetter(prop, md, params, ret, overwrite)
		return
	}
	for _, prefix := range []string{"remove", "delete"} {
		if prop, ok := accessorName(name, prefix); ok {
			if len(params) == 1 && params[0].Kind() == jtype.String {
				b.addProp(Property{Name: prop, Kind: Named, Remover: md}, overwrite)
			}
			return
		}
	}
}

func (b *builder) inferGetter(prop string, md *MethodDescriptor, params []jtype.Type, ret jtype.Type, overwrite bool) {
	if ret.Kind() == jtype.Void {
		return
	}
	switch len(params) {
	case 0:
		if base, ok := trimAnySuffix(prop, "Keys", "Names"); ok && isIterator(ret) {
			b.addProp(Property{Name: base, Kind: Named, Iterator: md}, overwrite)
			return
		}
		if base, ok := trimAnySuffix(prop, "Size", "Length"); ok && isInt(ret) {
			b.addProp(Property{Name: prop, Kind: Plain, Getter: md}, overwrite)
			b.addProp(Property{Name: base, Kind: Indexed, Size: md}, overwrite)
			return
		}
		b.addProp(Property{Name: prop, Kind: Plain, Getter: md}, overwrite)
	case 1:
		switch {
		case params[0].Kind() == jtype.String:
			b.addProp(Property{Name: prop, Kind: Named, Getter: md}, overwrite)
		case isInt(params[0]):
			b.addProp(Property{Name: prop, Kind: Indexed, Getter: md}, overwrite)
		}
	}
}

func (b *builder) inferSetter(prop string, md *MethodDescriptor, params []jtype.Type, ret jtype.Type, overwrite bool) {
	if ret.Kind() != jtype.Void {
		return
	}
	switch len(params) {
	case 1:
		b.addProp(Property{Name: prop, Kind: Plain, Setter: md}, overwrite)
	case 2:
		switch {
		case params[0].Kind() == jtype.String:
			b.addProp(Property{Name: prop, Kind: Named, Setter: md}, overwrite)
		case isInt(params[0]):
			b.addProp(Property{Name: prop, Kind: Indexed, Setter: md}, overwrite)
		}
	}
}

// accessorName strips prefix from a camelCase method name and returns the
// decapitalized remainder. The remainder must start with an upper case
// letter, so "settle" is not a setter for "tle".
func accessorName(name, prefix string) (string, bool) {
	if len(name) <= len(prefix) || !strings.HasPrefix(name, prefix) {
		return "", false
	}
	rest := name[len(prefix):]
	r, _ := utf8.DecodeRuneInString(rest)
	if !unicode.IsUpper(r) {
		return "", false
	}
	return jtype.Decapitalize(rest), true
}

func trimAnySuffix(s string, suffixes ...string) (string, bool) {
	for _, suffix := range suffixes {
		if len(s) > len(suffix) && strings.HasSuffix(s, suffix) {
			return s[:len(s)-len(suffix)], true
		}
	}
	return "", false
}

func isIterator(t jtype.Type) bool {
	_, ok := t.IterElem()
	return ok
}

func isInt(t jtype.Type) bool {
	return t.Kind() == jtype.Int || t.Kind() == jtype.Int32
}
