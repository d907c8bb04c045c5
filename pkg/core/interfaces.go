package core

// Runtime is an external environment runtime, such as a Python
// interpreter with Gymnasium installed. All access goes through Object
// handles; callers never see the runtime's native representation.
type Runtime interface {
	// Acquire enters the runtime's interpreter context. The returned
	// func leaves it and must be called exactly once.
	Acquire() (release func())
	// Import loads a module by name, e.g. "gymnasium".
	Import(module string) (Object, error)
}

// Object is an opaque handle to a value living inside a Runtime.
// Handles are only valid while the runtime context is held.
type Object interface {
	// Attr returns the named attribute.
	Attr(name string) (Object, error)
	// HasAttr reports whether the named attribute exists.
	HasAttr(name string) (bool, error)
	// Call invokes the object with positional and keyword arguments.
	// Arguments are plain marshal values (see Marshalable).
	Call(args []any, kwargs map[string]any) (Object, error)
	// CallMethod is shorthand for Attr(name) followed by Call.
	CallMethod(name string, args []any, kwargs map[string]any) (Object, error)
	// Item returns the element at index i of a sequence.
	Item(i int) (Object, error)
	// Len returns the length of a sequence.
	Len() (int, error)
	// Extract converts the value into dst, which must be one of
	// *int, *float64, *bool, *string, *[]int or *[]float32.
	Extract(dst any) error
	// Release drops the handle. Using it afterwards is an error.
	Release()
}

// Marshalable is a value that can be passed across the runtime
// boundary. MarshalGym returns a fresh plain value: int64, uint64,
// float64, bool, string, []int64 or []float64.
type Marshalable interface {
	MarshalGym() any
}
