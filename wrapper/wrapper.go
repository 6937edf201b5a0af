// Package wrapper bridges native Go values into goja scripts. A Bridge is
// the script-facing view of one class: it answers property reads and
// writes, enumeration, deletion, method calls and construction from the
// class's analyzed BeanInfo. Bridges are either generated ahead of time by
// the codegen package or built in memory from the BeanInfo on first use.
package wrapper

import (
	"errors"
	"sync"

	"github.com/dop251/goja"

	"github.com/sdboyer/esbean/jtype"
)

// FormatVersion is the version of the generated wrapper format. Generated
// wrappers carrying another version are ignored.
const FormatVersion = 1

var (
	// ErrNoMatch means no overload accepts the call's arguments.
	ErrNoMatch = errors.New("no matching method")
	// ErrNoConstructor means the class cannot be constructed from scripts.
	ErrNoConstructor = errors.New("can't create")
	// ErrUndefined means the name is not a method of the class.
	ErrUndefined = errors.New("undefined property")
	// ErrNotStatic means an operation needs the other kind of view: an
	// instance method called on the class or a constructor called on an
	// instance.
	ErrNotStatic = errors.New("not a static member")
)

// Bridge is the script-facing view of a class or one of its instances.
//
// A Bridge comes in three flavors sharing the same dispatch tables: the
// blank factory returned by Runtime.Factory, instances bound to a native
// value by Wrap, and the static view returned by WrapStatic, which only
// answers static methods and construction.
type Bridge interface {
	goja.DynamicObject

	// Call invokes the named method with script arguments.
	Call(name string, args []goja.Value) (goja.Value, error)
	// Construct creates a new instance. Only the static view constructs.
	Construct(args []goja.Value) (goja.Value, error)
	// JavaType is the type of the bound value, or the class itself.
	JavaType() jtype.Type
	// Value is the bound native value, nil for the factory and static view.
	Value() any

	Dup() Bridge
	Wrap(native any) Bridge
	WrapStatic() Bridge

	// VersionID is the wrapper format version.
	VersionID() int
	// Hash is the BeanInfo hash the dispatch tables were built from.
	Hash() string
}

// Generated describes a wrapper produced by the code generator. Generated
// packages register one per class from an init function.
type Generated struct {
	Class   string
	Version int
	Hash    string
	New     func(r *Runtime) Bridge
}

var generated = struct {
	sync.RWMutex
	m map[string]Generated
}{m: make(map[string]Generated)}

// RegisterGenerated makes a generated wrapper available to every Runtime.
// A later registration for the same class replaces the earlier one.
func RegisterGenerated(g Generated) {
	generated.Lock()
	defer generated.Unlock()
	generated.m[g.Class] = g
}

// LookupGenerated returns the generated wrapper registered for class.
func LookupGenerated(class string) (Generated, bool) {
	generated.RLock()
	defer generated.RUnlock()
	g, ok := generated.m[class]
	return g, ok
}
