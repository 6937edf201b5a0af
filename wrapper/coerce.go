package wrapper

import (
	"fmt"
	"reflect"

	"github.com/dop251/goja"
	"golang.org/x/exp/constraints"

	"github.com/sdboyer/esbean/jtype"
)

var (
	valueType  = reflect.TypeFor[goja.Value]()
	objectType = reflect.TypeFor[*goja.Object]()
	intType    = reflect.TypeFor[int]()
	floatType  = reflect.TypeFor[float64]()
	boolType   = reflect.TypeFor[bool]()
	stringType = reflect.TypeFor[string]()
)

// Arg returns the i-th argument, or undefined when the call has fewer.
func Arg(args []goja.Value, i int) goja.Value {
	if i < len(args) && args[i] != nil {
		return args[i]
	}
	return goja.Undefined()
}

func absent(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// ToInt64 coerces a script value to an integer; absent values are 0.
func ToInt64(v goja.Value) int64 {
	if absent(v) {
		return 0
	}
	return v.ToInteger()
}

// ToFloat64 coerces a script value to a float; absent values are 0.
func ToFloat64(v goja.Value) float64 {
	if absent(v) {
		return 0
	}
	return v.ToFloat()
}

// ToBool coerces a script value with the script truthiness rules.
func ToBool(v goja.Value) bool {
	if absent(v) {
		return false
	}
	return v.ToBoolean()
}

// ToString coerces a script value to a string; absent values are "".
func ToString(v goja.Value) string {
	if absent(v) {
		return ""
	}
	return v.String()
}

// AsNumber converts a script value to any native numeric type.
func AsNumber[N constraints.Integer | constraints.Float](v goja.Value) N {
	switch reflect.TypeFor[N]().Kind() {
	case reflect.Float32, reflect.Float64:
		return N(ToFloat64(v))
	}
	return N(ToInt64(v))
}

// AsString converts a script value to a native string type.
func AsString[S ~string](v goja.Value) S { return S(ToString(v)) }

// AsBool converts a script value to a native boolean type.
func AsBool[B ~bool](v goja.Value) B { return B(ToBool(v)) }

// Unwrap converts a script value to T: wrapped natives are unwrapped and
// anything else is exported through goja.
func Unwrap[T any](r *Runtime, v goja.Value) (T, error) {
	var zero T
	x, err := r.ToNative(v, r.reg.Of(reflect.TypeFor[T]()))
	if err != nil || x == nil {
		return zero, err
	}
	if t, ok := x.(T); ok {
		return t, nil
	}
	rv := reflect.ValueOf(x)
	if target := reflect.TypeFor[T](); rv.CanConvert(target) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, fmt.Errorf("cannot use %T as %s", x, reflect.TypeFor[T]())
}

// Upcast converts the bound value x to T, the superclass it embeds or an
// interface it implements. Companion methods inherited from a superclass
// take their receiver this way.
func Upcast[T any](x any) (T, error) {
	if t, ok := x.(T); ok {
		return t, nil
	}
	if up, ok := jtype.Upcast(x, reflect.TypeFor[T]()); ok {
		return up.Interface().(T), nil
	}
	var zero T
	return zero, fmt.Errorf("cannot use %T as %s", x, reflect.TypeFor[T]())
}

// Class returns the class descriptor of T in r's registry.
func Class[T any](r *Runtime) jtype.Type {
	return jtype.ClassOf(r.reg.Of(reflect.TypeFor[T]()))
}

// TypeOfValue is the native type a script value most naturally presents
// as. Integral numbers present as int, other numbers as float64, and
// wrapped natives as their bound type.
func (r *Runtime) TypeOfValue(v goja.Value) jtype.Type {
	if absent(v) {
		return jtype.NullType
	}
	switch x := v.Export().(type) {
	case nil:
		return jtype.NullType
	case int64:
		return r.reg.Of(intType)
	case float64:
		return r.reg.Of(floatType)
	case bool:
		return r.reg.Of(boolType)
	case string:
		return r.reg.Of(stringType)
	case Bridge:
		return x.JavaType()
	default:
		return r.reg.TypeOf(x)
	}
}

// ArgTypes returns the TypeOfValue of every argument.
func (r *Runtime) ArgTypes(args []goja.Value) []jtype.Type {
	out := make([]jtype.Type, len(args))
	for i, a := range args {
		out[i] = r.TypeOfValue(a)
	}
	return out
}

type reflected interface{ Reflect() reflect.Type }

// ToNative converts a script value to a native value for a parameter of
// type t. Absent values become nil, which invocation turns into the zero
// value of the parameter.
func (r *Runtime) ToNative(v goja.Value, t jtype.Type) (any, error) {
	if absent(v) {
		return nil, nil
	}
	switch k := t.Kind(); {
	case k == jtype.Bool:
		return v.ToBoolean(), nil
	case k.IsInteger():
		return v.ToInteger(), nil
	case k.IsFloat():
		return v.ToFloat(), nil
	case k == jtype.String:
		return v.String(), nil
	}

	rt, ok := t.(reflected)
	if !ok {
		return nil, fmt.Errorf("%s: %w", t.Name(), jtype.ErrNotInvocable)
	}
	target := rt.Reflect()
	switch target {
	case valueType:
		return v, nil
	case objectType:
		if obj, ok := v.(*goja.Object); ok {
			return obj, nil
		}
	}
	if b, ok := v.Export().(Bridge); ok {
		native := b.Value()
		if native == nil {
			return nil, fmt.Errorf("%s: %w", b.JavaType().Name(), ErrNotStatic)
		}
		rv := reflect.ValueOf(native)
		switch {
		case rv.Type().AssignableTo(target):
			return native, nil
		case rv.Kind() == reflect.Pointer && rv.Elem().Type().AssignableTo(target):
			return rv.Elem().Interface(), nil
		}
		return nil, fmt.Errorf("cannot use %s as %s", b.JavaType().Name(), t.Name())
	}

	ptr := reflect.New(target)
	if err := r.vm.ExportTo(v, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("converting %s to %s: %w", v.String(), t.Name(), err)
	}
	return ptr.Elem().Interface(), nil
}

// FromNative converts a native value for scripts. Scalars become script
// primitives, script values pass through, nil becomes null, slices and maps
// are exported through goja, and everything else is wrapped in a Bridge.
func (r *Runtime) FromNative(x any) goja.Value {
	switch v := x.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return v
	case Bridge:
		return r.vm.NewDynamicObject(v)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Bool:
		return r.vm.ToValue(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return r.vm.ToValue(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return r.vm.ToValue(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return r.vm.ToValue(rv.Float())
	case reflect.String:
		return r.vm.ToValue(rv.String())
	case reflect.Slice, reflect.Map, reflect.Func:
		if rv.IsNil() {
			return goja.Null()
		}
		return r.vm.ToValue(x)
	case reflect.Array, reflect.Chan:
		return r.vm.ToValue(x)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return goja.Null()
		}
	}
	return r.Wrap(x)
}

// Enumerate lists the elements of a slice, array or iter.Seq as strings.
func Enumerate(x any) ([]string, error) {
	if x == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]string, rv.Len())
		for i := range out {
			out[i] = fmt.Sprint(rv.Index(i).Interface())
		}
		return out, nil
	case reflect.Func:
		if rv.IsNil() {
			return nil, nil
		}
		t := rv.Type()
		if t.NumIn() != 1 || t.NumOut() != 0 || t.In(0).Kind() != reflect.Func {
			break
		}
		var out []string
		yield := reflect.MakeFunc(t.In(0), func(in []reflect.Value) []reflect.Value {
			out = append(out, fmt.Sprint(in[0].Interface()))
			return []reflect.Value{reflect.ValueOf(true)}
		})
		rv.Call([]reflect.Value{yield})
		return out, nil
	}
	return nil, fmt.Errorf("cannot enumerate %T", x)
}
