// Package value defines RuntimeValue, the tagged value representation
// the compiler's constant pool and the VM's stacks hold.
//
// The teacher VM passes Go's bare interface{} around and type-switches on
// it at every opcode. bramble's equality rule is tag-first — Eq never
// coerces across types (spec: "deep value equality with tag match") — so
// values carry an explicit Kind tag instead, the same tagged-variant
// pattern pkg/ast uses for syntax nodes.
package value

import (
	"fmt"

	"github.com/kristofer/bramble/pkg/bytecode"
)

// Kind tags which field of a RuntimeValue is live.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindArray
	KindObject
	KindFunctionRef
	KindNativeRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindFunctionRef:
		return "function"
	case KindNativeRef:
		return "native"
	default:
		return "unknown"
	}
}

// RuntimeValue is the single value type flowing through the VM's operand
// stack, locals, globals, and object properties. Number is always
// float64: the spec's open-question decision is that there is no
// separate integer representation, so Div always performs float
// division.
type RuntimeValue struct {
	Kind Kind

	Boolean bool
	Number  float64
	Str     string

	Array  *Array
	Object *Object

	FunctionRef *FunctionRef
	NativeRef   *NativeRef
}

// Array is a runtime array: an ordered, growable value list.
type Array struct {
	Elements []RuntimeValue
}

// Object is a runtime prototype object: insertion-ordered properties plus
// the set of prototypes it was mixed in from, in mixin order. Mixins
// copy, so Parents is informational only — never walked for property
// lookup.
type Object struct {
	keys    []string
	values  map[string]RuntimeValue
	Parents []*Object
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]RuntimeValue)}
}

// Get reads a property, returning Null if the key is absent (spec:
// "missing keys yield Null on read").
func (o *Object) Get(key string) RuntimeValue {
	if v, ok := o.values[key]; ok {
		return v
	}
	return Null()
}

// Set writes a property, appending key to the insertion order on first
// write (spec: "insert on write").
func (o *Object) Set(key string, v RuntimeValue) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Has reports whether key has been explicitly set on this object.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Keys returns property names in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// CopyInto shallow-copies every key from o into dst, overwriting existing
// keys, implementing the CopyProperties opcode's mixin semantics, and
// records o as one of dst's prototype-parents.
func (o *Object) CopyInto(dst *Object) {
	for _, k := range o.keys {
		dst.Set(k, o.values[k])
	}
	dst.Parents = append(dst.Parents, o)
}

// FunctionRef is a callable script function value. The VM builds one
// directly from a bytecode.Constant of kind ConstFunction when it
// executes LoadConst, carrying the compiled body chunk along rather than
// a constant-pool index — a function value can be stored in a global,
// passed as an argument, or returned, long after the chunk that defined
// it stops being "current", so an index alone wouldn't stay resolvable.
type FunctionRef struct {
	Name   string
	Params []string
	Chunk  *bytecode.Chunk
}

// NativeRef points at a host-registered callable by name (spec §1: "the
// host registers named callables in the global binding environment").
type NativeRef struct {
	Name string
}

// Null, Bool, Num, and Str are constructors for the scalar kinds.
func Null() RuntimeValue                  { return RuntimeValue{Kind: KindNull} }
func Bool(b bool) RuntimeValue            { return RuntimeValue{Kind: KindBoolean, Boolean: b} }
func Num(n float64) RuntimeValue          { return RuntimeValue{Kind: KindNumber, Number: n} }
func Str(s string) RuntimeValue           { return RuntimeValue{Kind: KindString, Str: s} }
func Arr(a *Array) RuntimeValue           { return RuntimeValue{Kind: KindArray, Array: a} }
func Obj(o *Object) RuntimeValue          { return RuntimeValue{Kind: KindObject, Object: o} }
func Fn(f *FunctionRef) RuntimeValue      { return RuntimeValue{Kind: KindFunctionRef, FunctionRef: f} }
func Native(n *NativeRef) RuntimeValue    { return RuntimeValue{Kind: KindNativeRef, NativeRef: n} }

// IsTruthy implements the language's truthiness rule: Null and false are
// falsy, everything else (including 0, "", empty arrays/objects) is
// truthy. This is a deliberate, documented departure from C-like
// zero-is-false semantics, matching the spec's "falsy" wording being
// scoped only to Null and Boolean false.
func (v RuntimeValue) IsTruthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBoolean:
		return v.Boolean
	default:
		return true
	}
}

// Equal implements tag-first deep equality: values of different Kind are
// never equal, even when a coercion might seem plausible (e.g. 0 and "").
func Equal(a, b RuntimeValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBoolean:
		return a.Boolean == b.Boolean
	case KindNumber:
		return a.Number == b.Number
	case KindString:
		return a.Str == b.Str
	case KindArray:
		if a.Array == nil || b.Array == nil {
			return a.Array == b.Array
		}
		if len(a.Array.Elements) != len(b.Array.Elements) {
			return false
		}
		for i := range a.Array.Elements {
			if !Equal(a.Array.Elements[i], b.Array.Elements[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return a.Object == b.Object
	case KindFunctionRef:
		return a.FunctionRef == b.FunctionRef
	case KindNativeRef:
		return a.NativeRef == b.NativeRef
	default:
		return false
	}
}

// String renders a value the way Print/ToString opcodes do.
func (v RuntimeValue) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBoolean:
		if v.Boolean {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Number)
	case KindString:
		return v.Str
	case KindArray:
		out := "["
		for i, e := range v.Array.Elements {
			if i > 0 {
				out += ", "
			}
			out += e.String()
		}
		return out + "]"
	case KindObject:
		out := "{"
		for i, k := range v.Object.Keys() {
			if i > 0 {
				out += ", "
			}
			out += k + ": " + v.Object.Get(k).String()
		}
		return out + "}"
	case KindFunctionRef:
		return fmt.Sprintf("<function %s>", v.FunctionRef.Name)
	case KindNativeRef:
		return fmt.Sprintf("<native %s>", v.NativeRef.Name)
	default:
		return "<unknown>"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
