package wrapper

import (
	"slices"
	"strconv"

	"github.com/dop251/goja"
)

// LengthKey is the property of an indexed view answered by its size getter.
const LengthKey = "length"

// Views caches the sub-views of one wrapper instance by property name, so
// obj.items === obj.items holds in scripts.
type Views struct {
	m map[string]*goja.Object
}

// Get returns the cached view for name, creating it with mk on first use.
func (vs *Views) Get(r *Runtime, name string, mk func() goja.DynamicObject) goja.Value {
	if obj, ok := vs.m[name]; ok {
		return obj
	}
	if vs.m == nil {
		vs.m = make(map[string]*goja.Object)
	}
	obj := r.vm.NewDynamicObject(mk())
	vs.m[name] = obj
	return obj
}

// IndexedView is the array-like view of an indexed property. Any of the
// accessors may be nil.
type IndexedView struct {
	RT      *Runtime
	Size    func() (goja.Value, error)
	Item    func(i goja.Value) (goja.Value, error)
	SetItem func(i, v goja.Value) error
}

func index(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || strconv.Itoa(i) != key {
		return 0, false
	}
	return i, true
}

func (v *IndexedView) Get(key string) goja.Value {
	if key == LengthKey {
		if v.Size == nil {
			return goja.Undefined()
		}
		return v.RT.Must(v.Size())
	}
	i, ok := index(key)
	if !ok || v.Item == nil {
		return goja.Undefined()
	}
	return v.RT.Must(v.Item(v.RT.vm.ToValue(i)))
}

func (v *IndexedView) Set(key string, val goja.Value) bool {
	i, ok := index(key)
	if !ok || v.SetItem == nil {
		return false
	}
	if err := v.SetItem(v.RT.vm.ToValue(i), val); err != nil {
		v.RT.Throw(err)
	}
	return true
}

func (v *IndexedView) Has(key string) bool {
	if key == LengthKey {
		return v.Size != nil
	}
	i, ok := index(key)
	if !ok || v.Item == nil {
		return false
	}
	return v.Size == nil || int64(i) < v.length()
}

func (v *IndexedView) Delete(string) bool { return false }

func (v *IndexedView) Keys() []string {
	if v.Size == nil {
		return nil
	}
	n := v.length()
	keys := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		keys = append(keys, strconv.FormatInt(i, 10))
	}
	return keys
}

func (v *IndexedView) length() int64 { return ToInt64(v.RT.Must(v.Size())) }

// NamedView is the map-like view of a named property. Any of the accessors
// may be nil.
type NamedView struct {
	RT      *Runtime
	Item    func(k goja.Value) (goja.Value, error)
	SetItem func(k, v goja.Value) error
	Remove  func(k goja.Value) (goja.Value, error)
	Names   func() ([]string, error)
}

func (v *NamedView) Get(key string) goja.Value {
	if v.Item == nil {
		return goja.Undefined()
	}
	return v.RT.Must(v.Item(v.RT.vm.ToValue(key)))
}

func (v *NamedView) Set(key string, val goja.Value) bool {
	if v.SetItem == nil {
		return false
	}
	if err := v.SetItem(v.RT.vm.ToValue(key), val); err != nil {
		v.RT.Throw(err)
	}
	return true
}

func (v *NamedView) Has(key string) bool {
	if v.Names != nil {
		return slices.Contains(v.Keys(), key)
	}
	return v.Item != nil && !absent(v.Get(key))
}

// Delete removes key through the remover. A remover returning a boolean
// decides the result; any other remover reports success.
func (v *NamedView) Delete(key string) bool {
	if v.Remove == nil {
		return false
	}
	res := v.RT.Must(v.Remove(v.RT.vm.ToValue(key)))
	if b, ok := res.Export().(bool); ok {
		return b
	}
	return true
}

func (v *NamedView) Keys() []string {
	if v.Names == nil {
		return nil
	}
	keys, err := v.Names()
	if err != nil {
		v.RT.Throw(err)
	}
	return keys
}
