package jtype

// Kind classifies a Type the way the wrapper generator needs to see it.
type Kind uint8

const (
	Invalid Kind = iota
	Void
	Null
	Bool
	Int
	Int8
	Int16
	Int32
	Int64
	Uint
	Uint8
	Uint16
	Uint32
	Uint64
	Uintptr
	Float32
	Float64
	String
	Pointer
	Slice
	Array
	Map
	Func
	Chan
	Struct
	Interface
)

var kindNames = [...]string{
	Invalid:   "invalid",
	Void:      "void",
	Null:      "null",
	Bool:      "bool",
	Int:       "int",
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Uint:      "uint",
	Uint8:     "uint8",
	Uint16:    "uint16",
	Uint32:    "uint32",
	Uint64:    "uint64",
	Uintptr:   "uintptr",
	Float32:   "float32",
	Float64:   "float64",
	String:    "string",
	Pointer:   "pointer",
	Slice:     "slice",
	Array:     "array",
	Map:       "map",
	Func:      "func",
	Chan:      "chan",
	Struct:    "struct",
	Interface: "interface",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// IsPrimitive reports whether values of this kind are booleans or numbers.
// Strings are not primitive; they cross the script boundary through their
// own conversion calls.
func (k Kind) IsPrimitive() bool {
	return k >= Bool && k <= Float64
}

// IsInteger reports whether k is a signed or unsigned integer kind.
func (k Kind) IsInteger() bool {
	return k >= Int && k <= Uintptr
}

// IsFloat reports whether k is a floating point kind.
func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

// IsReference reports whether the zero value of this kind is nil.
func (k Kind) IsReference() bool {
	switch k {
	case Pointer, Slice, Map, Func, Chan, Interface:
		return true
	}
	return false
}
