// Package vm executes a compiled bytecode.Chunk: an operand stack per
// call frame, a call-frame stack for recursion and error reporting, a
// process-wide global environment, and the event registry that
// BindEvent/BroadcastEvent opcodes drive (spec.md §4.4 "Virtual
// Machine", §4.5 "Event System").
//
// The teacher's vm.go keeps one shared stack/locals array across an
// entire run and threads recursion through Go's own call stack inside
// send()/executeMethod/executeBlock; this VM follows the same shape —
// one *frame per active call, recursion via Go calls, the same
// push/pop/stack-overflow-or-underflow error style, and the same
// pushFrame/popFrame/runtimeError pattern from pkg/vm/errors.go — but
// gives every frame its own operand stack and locals slice rather than
// one VM-wide array, since bramble's Call opcode recurses through
// ordinary script functions (not just blocks), and a shared array would
// let an inner call's locals clobber an outer one's.
package vm

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/kristofer/bramble/pkg/bytecode"
	"github.com/kristofer/bramble/pkg/event"
	"github.com/kristofer/bramble/pkg/value"
)

const (
	maxOperandStack = 1024
	maxCallDepth    = 255
)

// NativeFunc is a host-registered callable (spec.md §6 "Host callable
// ABI"). The host closes over whatever state it needs (the "environment"
// of the ABI description) rather than receiving an opaque handle — the
// idiomatic Go equivalent of passing an environment pointer.
type NativeFunc func(args []value.RuntimeValue) (value.RuntimeValue, error)

// VM executes chunks against a shared global environment and event
// registry. A VM is reusable across Run calls; globals and registered
// listeners persist across runs.
type VM struct {
	globals map[string]value.RuntimeValue
	natives map[string]NativeFunc
	events  *event.Registry
	stdout  io.Writer

	callStack []StackFrame
}

// New creates a VM that writes Print output to stdout (spec.md
// §7: "the core never writes to a process stream itself" except through
// this injected writer).
func New(stdout io.Writer) *VM {
	return &VM{
		globals: make(map[string]value.RuntimeValue),
		natives: make(map[string]NativeFunc),
		events:  event.New(),
		stdout:  stdout,
	}
}

// Events returns the VM's event registry, so a host can inspect listener
// state or set DebugFlag/ProximityThreshold before running a script.
func (vm *VM) Events() *event.Registry { return vm.events }

// SetGlobal binds name in the global environment before a run (spec.md
// §6: "the host registers named callables in the global binding
// environment before execution" — this is the same environment, used
// for data globals too).
func (vm *VM) SetGlobal(name string, v value.RuntimeValue) { vm.globals[name] = v }

// Global reads a global binding, for host inspection after a run.
func (vm *VM) Global(name string) (value.RuntimeValue, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// RegisterNative installs fn as a host callable, reachable from script
// code the same way a script function is: by name, through Call.
func (vm *VM) RegisterNative(name string, fn NativeFunc) {
	vm.natives[name] = fn
	vm.globals[name] = value.Native(&value.NativeRef{Name: name})
}

// Run executes chunk as the program's top-level frame.
func (vm *VM) Run(chunk *bytecode.Chunk) (value.RuntimeValue, error) {
	return vm.call(chunk, nil, value.Null(), "main")
}

// CallGlobal invokes a global by name with positional arguments, for a
// host driving a script function directly.
func (vm *VM) CallGlobal(name string, args ...value.RuntimeValue) (value.RuntimeValue, error) {
	callee, ok := vm.globals[name]
	if !ok {
		return value.Null(), fmt.Errorf("undefined global %q", name)
	}
	return vm.invoke(callee, args, value.Null(), 0)
}

// frame is one call's activation record: its own operand stack and
// locals array, its chunk, and the `this` bound for CallMethod-invoked
// calls (Null otherwise — scripts have no explicit `this` expression, so
// it's only ever read back by BindEvent/BroadcastEvent as the event
// owner/source).
type frame struct {
	chunk  *bytecode.Chunk
	ip     int
	locals []value.RuntimeValue
	stack  []value.RuntimeValue
	this   value.RuntimeValue
	name   string
}

func (f *frame) getLocal(idx int) value.RuntimeValue {
	if idx < len(f.locals) {
		return f.locals[idx]
	}
	return value.Null()
}

func (f *frame) setLocal(idx int, v value.RuntimeValue) {
	for idx >= len(f.locals) {
		f.locals = append(f.locals, value.Null())
	}
	f.locals[idx] = v
}

func (f *frame) push(v value.RuntimeValue) error {
	if len(f.stack) >= maxOperandStack {
		return fmt.Errorf("stack overflow")
	}
	f.stack = append(f.stack, v)
	return nil
}

func (f *frame) pop() (value.RuntimeValue, error) {
	if len(f.stack) == 0 {
		return value.RuntimeValue{}, fmt.Errorf("stack underflow")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

func (f *frame) peek() (value.RuntimeValue, error) {
	if len(f.stack) == 0 {
		return value.RuntimeValue{}, fmt.Errorf("stack underflow")
	}
	return f.stack[len(f.stack)-1], nil
}

// call pushes a new frame bound to args (positional, matching the
// callee's param slots 0..n-1 exactly since the compiler defines params
// in that order) and this, runs it to completion, and pops the frame.
func (vm *VM) call(chunk *bytecode.Chunk, args []value.RuntimeValue, this value.RuntimeValue, name string) (value.RuntimeValue, error) {
	if len(vm.callStack) >= maxCallDepth {
		return value.Null(), vm.runtimeError("call-frame overflow", 0)
	}
	f := &frame{chunk: chunk, this: this, name: name}
	for i, a := range args {
		f.setLocal(i, a)
	}

	vm.callStack = append(vm.callStack, StackFrame{Name: name})
	defer func() { vm.callStack = vm.callStack[:len(vm.callStack)-1] }()

	return vm.run(f)
}

// callNamedParams maps a params-by-name map (an event's bound
// parameters) onto a callee's declared positional parameter names,
// filling any parameter the event didn't supply with Null.
func (vm *VM) callNamedParams(chunk *bytecode.Chunk, paramNames []string, params map[string]value.RuntimeValue, this value.RuntimeValue, name string) (value.RuntimeValue, error) {
	args := make([]value.RuntimeValue, len(paramNames))
	for i, p := range paramNames {
		args[i] = params[p]
	}
	return vm.call(chunk, args, this, name)
}

// run executes f's chunk from its current ip until Return or a runtime
// error. It implements the dispatch loop spec.md §4.4 describes: "read
// one byte opcode, read inline operands per opcode, execute, advance
// IP."
func (vm *VM) run(f *frame) (value.RuntimeValue, error) {
	code := f.chunk.Code
	for f.ip < len(code) {
		opPos := f.ip
		op := bytecode.Op(code[opPos])
		line := f.chunk.Lines[opPos]
		f.ip++

		switch op {
		case bytecode.OpNoop, bytecode.OpYield, bytecode.OpResume:
			// Yield/Resume are reserved and execute as Noop (spec.md §5).

		case bytecode.OpPop:
			if _, err := f.pop(); err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}

		case bytecode.OpDup:
			v, err := f.peek()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(v)

		case bytecode.OpSwap:
			b, errB := f.pop()
			a, errA := f.pop()
			if errA != nil || errB != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			f.push(b)
			f.push(a)

		case bytecode.OpLoadConst:
			idx := int(code[f.ip])
			f.ip++
			f.push(vm.constantValue(f.chunk.Constants[idx]))

		case bytecode.OpLoadConstWide:
			idx := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			f.push(vm.constantValue(f.chunk.Constants[idx]))

		case bytecode.OpLoadVar:
			idx := int(code[f.ip])
			f.ip++
			f.push(f.getLocal(idx))

		case bytecode.OpLoadVarWide:
			idx := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			f.push(f.getLocal(idx))

		case bytecode.OpStoreVar:
			idx := int(code[f.ip])
			f.ip++
			v, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.setLocal(idx, v)
			f.push(v)

		case bytecode.OpStoreVarWide:
			idx := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			v, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.setLocal(idx, v)
			f.push(v)

		case bytecode.OpLoadGlobal:
			idx := int(code[f.ip])
			f.ip++
			v, err := vm.loadGlobal(f.chunk.Constants[idx].Str)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(v)

		case bytecode.OpLoadGlobalWide:
			idx := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			v, err := vm.loadGlobal(f.chunk.Constants[idx].Str)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(v)

		case bytecode.OpStoreGlobal:
			idx := int(code[f.ip])
			f.ip++
			v, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			vm.globals[f.chunk.Constants[idx].Str] = v
			f.push(v)

		case bytecode.OpStoreGlobalWide:
			idx := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			v, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			vm.globals[f.chunk.Constants[idx].Str] = v
			f.push(v)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			b, errB := f.pop()
			a, errA := f.pop()
			if errA != nil || errB != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			res, err := vm.arith(op, a, b)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(res)

		case bytecode.OpNeg:
			a, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			if a.Kind != value.KindNumber {
				return value.Null(), vm.runtimeError(fmt.Sprintf("type mismatch: cannot negate %s", a.Kind), line)
			}
			f.push(value.Num(-a.Number))

		case bytecode.OpNot:
			a, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(value.Bool(!a.IsTruthy()))

		case bytecode.OpAnd:
			b, _ := f.pop()
			a, _ := f.pop()
			f.push(value.Bool(a.IsTruthy() && b.IsTruthy()))

		case bytecode.OpOr:
			b, _ := f.pop()
			a, _ := f.pop()
			f.push(value.Bool(a.IsTruthy() || b.IsTruthy()))

		case bytecode.OpEq:
			b, _ := f.pop()
			a, _ := f.pop()
			f.push(value.Bool(value.Equal(a, b)))

		case bytecode.OpNeq:
			b, _ := f.pop()
			a, _ := f.pop()
			f.push(value.Bool(!value.Equal(a, b)))

		case bytecode.OpLt, bytecode.OpGt, bytecode.OpLte, bytecode.OpGte:
			b, errB := f.pop()
			a, errA := f.pop()
			if errA != nil || errB != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			res, err := vm.compare(op, a, b)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(value.Bool(res))

		case bytecode.OpJump:
			off := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			f.ip += off

		case bytecode.OpJumpIfFalse:
			off := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			v, err := f.peek()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			if !v.IsTruthy() {
				f.ip += off
			}

		case bytecode.OpJumpIfTrue:
			off := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			v, err := f.peek()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			if v.IsTruthy() {
				f.ip += off
			}

		case bytecode.OpLoop:
			off := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			f.ip -= off

		case bytecode.OpCall:
			argc := int(code[f.ip])
			f.ip++
			args, err := f.popN(argc)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			callee, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			result, err := vm.invoke(callee, args, value.Null(), line)
			if err != nil {
				return value.Null(), err
			}
			f.push(result)

		case bytecode.OpCallMethod:
			argc := int(code[f.ip])
			f.ip++
			args, err := f.popN(argc)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			callee, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			receiver, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			result, err := vm.invoke(callee, args, receiver, line)
			if err != nil {
				return value.Null(), err
			}
			f.push(result)

		case bytecode.OpReturn:
			return f.pop()

		case bytecode.OpNewArray:
			f.push(value.Arr(&value.Array{}))

		case bytecode.OpArrayPush:
			v, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			arr, err := f.peek()
			if err != nil || arr.Kind != value.KindArray {
				return value.Null(), vm.runtimeError("ArrayPush on a non-array", line)
			}
			arr.Array.Elements = append(arr.Array.Elements, v)

		case bytecode.OpGetIndex:
			idx, errI := f.pop()
			coll, errC := f.pop()
			if errI != nil || errC != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			v, err := vm.getIndex(coll, idx)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(v)

		case bytecode.OpSetIndex:
			val, errV := f.pop()
			idx, errI := f.pop()
			coll, errC := f.pop()
			if errV != nil || errI != nil || errC != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			stored, err := vm.setIndex(coll, idx, val)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(stored)

		case bytecode.OpNewObject:
			f.push(value.Obj(value.NewObject()))

		case bytecode.OpSetProperty, bytecode.OpSetPropertyWide:
			name, err := vm.readNameOperand(f, op == bytecode.OpSetPropertyWide)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			v, errV := f.pop()
			obj, errO := f.peek()
			if errV != nil || errO != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			if obj.Kind != value.KindObject {
				return value.Null(), vm.runtimeError("SetProperty on a non-object", line)
			}
			obj.Object.Set(name, v)

		case bytecode.OpGetProperty, bytecode.OpGetPropertyWide:
			name, err := vm.readNameOperand(f, op == bytecode.OpGetPropertyWide)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			obj, errO := f.pop()
			if errO != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			if obj.Kind != value.KindObject {
				return value.Null(), vm.runtimeError(fmt.Sprintf("unknown property %q on non-object", name), line)
			}
			f.push(obj.Object.Get(name))

		case bytecode.OpSetNestedProperty:
			pathIdx := int(code[f.ip])
			f.ip++
			path := f.chunk.KeyPaths[pathIdx]
			v, errV := f.pop()
			obj, errO := f.pop()
			if errV != nil || errO != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			stored, err := vm.setNestedProperty(obj, path, v)
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(stored)

		case bytecode.OpCopyProperties:
			src, errS := f.pop()
			dst, errD := f.peek()
			if errS != nil || errD != nil {
				return value.Null(), vm.runtimeError("stack underflow", line)
			}
			if src.Kind != value.KindObject || dst.Kind != value.KindObject {
				return value.Null(), vm.runtimeError("CopyProperties requires two objects", line)
			}
			src.Object.CopyInto(dst.Object)

		case bytecode.OpPrint:
			v, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			fmt.Fprintln(vm.stdout, v.String())
			f.push(value.Null())

		case bytecode.OpToString:
			v, err := f.pop()
			if err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}
			f.push(value.Str(v.String()))

		case bytecode.OpBindEvent:
			idx := int(code[f.ip])
			f.ip++
			if err := vm.bindEvent(f, f.chunk.EventBindings[idx]); err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}

		case bytecode.OpBroadcastEvent:
			idx := int(code[f.ip])
			f.ip++
			if err := vm.broadcastEvent(f, f.chunk.EventBroadcasts[idx]); err != nil {
				return value.Null(), vm.runtimeError(err.Error(), line)
			}

		default:
			return value.Null(), vm.runtimeError(fmt.Sprintf("illegal opcode %d", op), line)
		}
	}

	// A well-formed program leaves the stack empty after its last opcode
	// (spec.md §8); top-level chunks fall off the end this way rather
	// than hitting an explicit Return, so return whatever residue, if
	// any, remains as the result.
	if v, err := f.pop(); err == nil {
		return v, nil
	}
	return value.Null(), nil
}

func (f *frame) popN(n int) ([]value.RuntimeValue, error) {
	out := make([]value.RuntimeValue, n)
	for i := n - 1; i >= 0; i-- {
		v, err := f.pop()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (vm *VM) readNameOperand(f *frame, wide bool) (string, error) {
	var idx int
	if wide {
		idx = int(bytecode.ReadUint16(f.chunk.Code, f.ip))
		f.ip += 2
	} else {
		idx = int(f.chunk.Code[f.ip])
		f.ip++
	}
	if idx < 0 || idx >= len(f.chunk.Constants) {
		return "", fmt.Errorf("constant index out of bounds: %d", idx)
	}
	return f.chunk.Constants[idx].Str, nil
}

func (vm *VM) loadGlobal(name string) (value.RuntimeValue, error) {
	v, ok := vm.globals[name]
	if !ok {
		return value.Null(), fmt.Errorf("undefined global %q", name)
	}
	return v, nil
}

func (vm *VM) constantValue(c bytecode.Constant) value.RuntimeValue {
	switch c.Kind {
	case bytecode.ConstNumber:
		return value.Num(c.Number)
	case bytecode.ConstString:
		return value.Str(c.Str)
	case bytecode.ConstBoolean:
		return value.Bool(c.Boolean)
	case bytecode.ConstFunction:
		return value.Fn(&value.FunctionRef{Name: c.FunctionName, Params: c.FunctionParams, Chunk: c.FunctionChunk})
	default:
		return value.Null()
	}
}

func (vm *VM) invoke(callee value.RuntimeValue, args []value.RuntimeValue, this value.RuntimeValue, line int) (value.RuntimeValue, error) {
	switch callee.Kind {
	case value.KindFunctionRef:
		return vm.call(callee.FunctionRef.Chunk, args, this, callee.FunctionRef.Name)
	case value.KindNativeRef:
		fn, ok := vm.natives[callee.NativeRef.Name]
		if !ok {
			return value.Null(), vm.runtimeError(fmt.Sprintf("unregistered native %q", callee.NativeRef.Name), line)
		}
		v, err := fn(args)
		if err != nil {
			return value.Null(), vm.runtimeError(err.Error(), line)
		}
		return v, nil
	default:
		return value.Null(), vm.runtimeError(fmt.Sprintf("value of kind %s is not callable", callee.Kind), line)
	}
}

// arith implements Add's numeric-or-string-concatenation rule and the
// strictly-numeric Sub/Mul/Div/Mod (spec.md §4.4).
func (vm *VM) arith(op bytecode.Op, a, b value.RuntimeValue) (value.RuntimeValue, error) {
	if op == bytecode.OpAdd {
		if a.Kind == value.KindNumber && b.Kind == value.KindNumber {
			return value.Num(a.Number + b.Number), nil
		}
		if a.Kind == value.KindString || b.Kind == value.KindString {
			return value.Str(a.String() + b.String()), nil
		}
		return value.RuntimeValue{}, fmt.Errorf("type mismatch: cannot add %s and %s", a.Kind, b.Kind)
	}

	if a.Kind != value.KindNumber || b.Kind != value.KindNumber {
		return value.RuntimeValue{}, fmt.Errorf("type mismatch: %s requires numbers, got %s and %s", op, a.Kind, b.Kind)
	}
	switch op {
	case bytecode.OpSub:
		return value.Num(a.Number - b.Number), nil
	case bytecode.OpMul:
		return value.Num(a.Number * b.Number), nil
	case bytecode.OpDiv:
		if b.Number == 0 {
			return value.RuntimeValue{}, fmt.Errorf("division by zero")
		}
		return value.Num(a.Number / b.Number), nil
	case bytecode.OpMod:
		if b.Number == 0 {
			return value.RuntimeValue{}, fmt.Errorf("division by zero")
		}
		return value.Num(math.Mod(a.Number, b.Number)), nil
	default:
		return value.RuntimeValue{}, fmt.Errorf("unreachable arithmetic op %s", op)
	}
}

func (vm *VM) compare(op bytecode.Op, a, b value.RuntimeValue) (bool, error) {
	if a.Kind != value.KindNumber || b.Kind != value.KindNumber {
		return false, fmt.Errorf("type mismatch: %s requires numbers, got %s and %s", op, a.Kind, b.Kind)
	}
	switch op {
	case bytecode.OpLt:
		return a.Number < b.Number, nil
	case bytecode.OpGt:
		return a.Number > b.Number, nil
	case bytecode.OpLte:
		return a.Number <= b.Number, nil
	case bytecode.OpGte:
		return a.Number >= b.Number, nil
	default:
		return false, fmt.Errorf("unreachable comparison op %s", op)
	}
}

func (vm *VM) getIndex(coll, idx value.RuntimeValue) (value.RuntimeValue, error) {
	switch coll.Kind {
	case value.KindArray:
		if idx.Kind != value.KindNumber {
			return value.Null(), fmt.Errorf("array index must be a number")
		}
		i := int(idx.Number)
		if i < 0 || i >= len(coll.Array.Elements) {
			return value.Null(), fmt.Errorf("array index out of range: %d", i)
		}
		return coll.Array.Elements[i], nil
	case value.KindObject:
		if idx.Kind != value.KindString {
			return value.Null(), fmt.Errorf("object key must be a string")
		}
		return coll.Object.Get(idx.Str), nil
	default:
		return value.Null(), fmt.Errorf("cannot index into %s", coll.Kind)
	}
}

func (vm *VM) setIndex(coll, idx, val value.RuntimeValue) (value.RuntimeValue, error) {
	switch coll.Kind {
	case value.KindArray:
		if idx.Kind != value.KindNumber {
			return value.Null(), fmt.Errorf("array index must be a number")
		}
		i := int(idx.Number)
		if i < 0 || i >= len(coll.Array.Elements) {
			return value.Null(), fmt.Errorf("array index out of range: %d", i)
		}
		coll.Array.Elements[i] = val
		return val, nil
	case value.KindObject:
		if idx.Kind != value.KindString {
			return value.Null(), fmt.Errorf("object key must be a string")
		}
		coll.Object.Set(idx.Str, val)
		return val, nil
	default:
		return value.Null(), fmt.Errorf("cannot index into %s", coll.Kind)
	}
}

// setNestedProperty walks path[:len-1] through already-existing nested
// objects and sets the final segment, matching the single-opcode design
// that avoids leaking intermediate objects onto the stack on failure
// (spec.md §9): a missing or non-object intermediate fails outright
// rather than auto-vivifying one.
func (vm *VM) setNestedProperty(obj value.RuntimeValue, path []string, val value.RuntimeValue) (value.RuntimeValue, error) {
	cur := obj
	for _, key := range path[:len(path)-1] {
		if cur.Kind != value.KindObject {
			return value.Null(), fmt.Errorf("unknown property %q on non-object", key)
		}
		cur = cur.Object.Get(key)
	}
	if cur.Kind != value.KindObject {
		return value.Null(), fmt.Errorf("unknown property %q on non-object", path[len(path)-1])
	}
	cur.Object.Set(path[len(path)-1], val)
	return val, nil
}

// bindEvent registers a listener from a compiled EventBindingDescriptor.
// The condition/handler sub-chunks were compiled with the VM's ordinary
// function-call machinery (compileFunctionValue) in mind, so they're
// invoked via the same vm.call path as any script function.
func (vm *VM) bindEvent(f *frame, desc bytecode.EventBindingDescriptor) error {
	handlerConst := f.chunk.Constants[desc.HandlerConst]
	owner := f.this

	var condFn event.ConditionFunc
	if desc.ConditionChunk >= 0 {
		condConst := f.chunk.Constants[desc.ConditionChunk]
		condFn = func(params map[string]value.RuntimeValue) (bool, error) {
			result, err := vm.withParamGlobals(params, func() (value.RuntimeValue, error) {
				return vm.call(condConst.FunctionChunk, nil, owner, "<condition>")
			})
			if err != nil {
				return false, err
			}
			return result.IsTruthy(), nil
		}
	}

	handler := func(params map[string]value.RuntimeValue, this value.RuntimeValue) error {
		_, err := vm.callNamedParams(handlerConst.FunctionChunk, handlerConst.FunctionParams, params, this, desc.EventName+":"+handlerConst.FunctionName)
		return err
	}

	filters, priority, err := vm.convertFilters(f.chunk, owner, desc.Filters)
	if err != nil {
		return err
	}
	vm.events.Register(&event.Listener{
		EventName: desc.EventName,
		Condition: condFn,
		Filters:   filters,
		Handler:   handler,
		Owner:     owner,
		Priority:  priority,
	})
	return nil
}

// broadcastEvent pops the descriptor's argument values (pushed in
// declaration order, so popped back to front) into a params map, then
// dispatches through the event registry. A broadcast-level condition, if
// present, gates whether the broadcast happens at all.
func (vm *VM) broadcastEvent(f *frame, desc bytecode.EventBroadcastDescriptor) error {
	params := make(map[string]value.RuntimeValue, len(desc.ArgNames))
	for i := len(desc.ArgNames) - 1; i >= 0; i-- {
		v, err := f.pop()
		if err != nil {
			return err
		}
		params[desc.ArgNames[i]] = v
	}

	if desc.ConditionChunk >= 0 {
		condConst := f.chunk.Constants[desc.ConditionChunk]
		result, err := vm.withParamGlobals(params, func() (value.RuntimeValue, error) {
			return vm.call(condConst.FunctionChunk, nil, f.this, "<condition>")
		})
		if err != nil {
			return err
		}
		if !result.IsTruthy() {
			return nil
		}
	}

	var dispatchErr error
	vm.events.Broadcast(desc.EventName, params, f.this, func(err error) {
		if dispatchErr == nil {
			dispatchErr = err
		}
	})
	return dispatchErr
}

// withParamGlobals temporarily binds params into the global environment
// so a zero-argument condition chunk (compiled with no formal
// parameters, since condition expressions are compiled as bare
// `return <expr>` bodies) can still read an event parameter by bare
// name, restoring whatever was previously bound afterward.
func (vm *VM) withParamGlobals(params map[string]value.RuntimeValue, fn func() (value.RuntimeValue, error)) (value.RuntimeValue, error) {
	prev := make(map[string]value.RuntimeValue, len(params))
	hadPrev := make(map[string]bool, len(params))
	for name, v := range params {
		if old, ok := vm.globals[name]; ok {
			prev[name] = old
			hadPrev[name] = true
		}
		vm.globals[name] = v
	}
	defer func() {
		for name := range params {
			if hadPrev[name] {
				vm.globals[name] = prev[name]
			} else {
				delete(vm.globals, name)
			}
		}
	}()
	return fn()
}

// convertFilters resolves each CompiledFilter's constant-pool value (if
// any) to a runtime value and extracts the registration-time priority
// from a `priority(...)` filter, defaulting to Medium (spec.md §4.5). A
// literal constant resolves directly; a ConstFunction constant is the
// lowering of a non-literal operand (near(obj), target(obj), and the
// like) and is invoked once, here, in the binding's own owner scope. A
// binding's condition, unlike these operands, is evaluated afresh on
// every broadcast.
func (vm *VM) convertFilters(chunk *bytecode.Chunk, owner value.RuntimeValue, compiled []bytecode.CompiledFilter) ([]event.Filter, event.Priority, error) {
	out := make([]event.Filter, 0, len(compiled))
	priority := event.PriorityMedium
	for _, cf := range compiled {
		var v value.RuntimeValue
		hasValue := cf.ValueConst >= 0
		if hasValue {
			valueConst := chunk.Constants[cf.ValueConst]
			if valueConst.Kind == bytecode.ConstFunction {
				result, err := vm.call(valueConst.FunctionChunk, nil, owner, "<filter>")
				if err != nil {
					return nil, priority, err
				}
				v = result
			} else {
				v = vm.constantValue(valueConst)
			}
		}
		out = append(out, event.Filter{Tag: cf.Tag, Comparison: cf.Comparison, Value: v, HasValue: hasValue})
		if cf.Tag == "priority" && hasValue {
			switch strings.ToLower(v.String()) {
			case "high":
				priority = event.PriorityHigh
			case "low":
				priority = event.PriorityLow
			default:
				priority = event.PriorityMedium
			}
		}
	}
	return out, priority, nil
}

func (vm *VM) runtimeError(message string, line int) error {
	stack := make([]StackFrame, len(vm.callStack))
	copy(stack, vm.callStack)
	if len(stack) > 0 {
		stack[len(stack)-1].SourceLine = line
	}
	return newRuntimeError(message, stack)
}
