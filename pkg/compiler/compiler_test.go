package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/bramble/pkg/ast"
	"github.com/kristofer/bramble/pkg/bytecode"
	"github.com/kristofer/bramble/pkg/parser"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := parser.New(src, nil)
	prog := p.Parse()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	return prog
}

func compileProgram(t *testing.T, src string) (*bytecode.Chunk, *Compiler) {
	t.Helper()
	prog := parseProgram(t, src)
	c := New(nil, nil)
	chunk, ok := c.Compile(prog)
	require.True(t, ok, "unexpected compile errors: %v", c.Errors())
	return chunk, c
}

func lastOp(code []byte) bytecode.Op {
	return bytecode.Op(code[len(code)-1])
}

func TestCompile_ArithmeticPrecedence(t *testing.T) {
	chunk, _ := compileProgram(t, "print(2 + 3 * 4)\n")
	// print(expr) compiles expr then emits OpPrint directly (no OpCall).
	assert.Contains(t, chunk.Code, byte(bytecode.OpMul))
	assert.Contains(t, chunk.Code, byte(bytecode.OpAdd))
	assert.Contains(t, chunk.Code, byte(bytecode.OpPrint))
}

func TestCompile_IfElseEmitsBothJumpKinds(t *testing.T) {
	src := "x: 5\n" +
		"if x > 0\n" +
		"    y: 1\n" +
		"else\n" +
		"    y: 2\n"
	chunk, _ := compileProgram(t, src)
	assert.Contains(t, chunk.Code, byte(bytecode.OpJumpIfFalse))
	assert.Contains(t, chunk.Code, byte(bytecode.OpJump))
	assert.Contains(t, chunk.Code, byte(bytecode.OpGt))
}

func TestCompile_NakedIteratorEmitsLoop(t *testing.T) {
	src := "total: 0\n" +
		"i: 0..5\n" +
		"    total = total + i\n"
	chunk, _ := compileProgram(t, src)
	assert.Contains(t, chunk.Code, byte(bytecode.OpLoop))
	assert.Contains(t, chunk.Code, byte(bytecode.OpLt))
}

func TestCompile_ObjectLiteralWithMixinOrdersCopyBeforeSet(t *testing.T) {
	src := `monster: { base, hp: 10, name: "orc" }` + "\n"
	chunk, _ := compileProgram(t, src)
	copyIdx := indexOf(chunk.Code, byte(bytecode.OpCopyProperties))
	setIdx := indexOf(chunk.Code, byte(bytecode.OpSetProperty))
	require.GreaterOrEqual(t, copyIdx, 0)
	require.GreaterOrEqual(t, setIdx, 0)
	assert.Less(t, copyIdx, setIdx, "mixin copy must compile before explicit properties so they win on conflict")
}

func indexOf(code []byte, b byte) int {
	for i, c := range code {
		if c == b {
			return i
		}
	}
	return -1
}

func TestCompile_EventBindingAndBroadcastRecordDescriptors(t *testing.T) {
	src := "onHit: function(amount) <- [\"Damage\" {amount > 0} |type(\"enemy\")|]\n" +
		"    total: total + amount\n" +
		`fire ["Damage"] { amount: 5 }` + "\n"
	chunk, _ := compileProgram(t, src)

	require.Len(t, chunk.EventBindings, 1)
	binding := chunk.EventBindings[0]
	assert.Equal(t, "Damage", binding.EventName)
	assert.GreaterOrEqual(t, binding.ConditionChunk, 0)
	require.Len(t, binding.Filters, 1)
	assert.Equal(t, "type", binding.Filters[0].Tag)

	require.Len(t, chunk.EventBroadcasts, 1)
	broadcast := chunk.EventBroadcasts[0]
	assert.Equal(t, "Damage", broadcast.EventName)
	assert.Equal(t, []string{"amount"}, broadcast.ArgNames)

	assert.Contains(t, chunk.Code, byte(bytecode.OpBindEvent))
	assert.Contains(t, chunk.Code, byte(bytecode.OpBroadcastEvent))
}

func TestCompile_EventFilterAcceptsVariableValue(t *testing.T) {
	src := "threshold: 5\n" +
		"onHit: function(amount) <- [\"Damage\" |near(threshold)|]\n" +
		"    total: amount\n"
	chunk, _ := compileProgram(t, src)
	require.Len(t, chunk.EventBindings, 1)
	require.Len(t, chunk.EventBindings[0].Filters, 1)
	filter := chunk.EventBindings[0].Filters[0]
	assert.Equal(t, "near", filter.Tag)
	require.GreaterOrEqual(t, filter.ValueConst, 0)
	assert.Equal(t, bytecode.ConstFunction, chunk.Constants[filter.ValueConst].Kind)
}

func TestCompile_EventFilterBarePriorityLowersToStringNotVariable(t *testing.T) {
	chunk, _ := compileProgram(t, "onHit: function() <- [\"Damage\" |priority(high)|]\n    total: 1\n")
	require.Len(t, chunk.EventBindings[0].Filters, 1)
	filter := chunk.EventBindings[0].Filters[0]
	assert.Equal(t, "priority", filter.Tag)
	require.GreaterOrEqual(t, filter.ValueConst, 0)
	constant := chunk.Constants[filter.ValueConst]
	assert.Equal(t, bytecode.ConstString, constant.Kind)
	assert.Equal(t, "high", constant.Str)
}

func TestCompile_LetReassignmentIsCompileError(t *testing.T) {
	src := "let x: 5\nx = 6\n"
	prog := parseProgram(t, src)
	c := New(nil, nil)
	_, ok := c.Compile(prog)
	require.False(t, ok)
	require.NotEmpty(t, c.Errors())
	assert.Contains(t, c.Errors()[0].Message, "immutable")
}

func TestCompile_FunctionDefStoresGlobalAndReturns(t *testing.T) {
	chunk, _ := compileProgram(t, "function add(a, b)\n    return a + b\n")
	require.Len(t, chunk.Constants, 2) // the function, then its global name
	fn := chunk.Constants[0]
	require.Equal(t, bytecode.ConstFunction, fn.Kind)
	assert.Equal(t, "add", fn.FunctionName)
	assert.Equal(t, []string{"a", "b"}, fn.FunctionParams)
	require.NotNil(t, fn.FunctionChunk)
	assert.Equal(t, bytecode.OpReturn, lastOp(fn.FunctionChunk.Code))
}

func TestCompile_MethodCallDuplicatesReceiver(t *testing.T) {
	src := `m: { hp: 10 }` + "\n" + `m.heal(5)` + "\n"
	chunk, _ := compileProgram(t, src)
	dupIdx := indexOf(chunk.Code, byte(bytecode.OpDup))
	callIdx := indexOf(chunk.Code, byte(bytecode.OpCallMethod))
	require.GreaterOrEqual(t, dupIdx, 0)
	require.GreaterOrEqual(t, callIdx, 0)
	assert.Less(t, dupIdx, callIdx)
}

func TestCompile_UnknownImportIsRejectedByResolver(t *testing.T) {
	prog := parseProgram(t, `import "nonexistent"`+"\n")
	c := New(nil, stubResolver{known: map[string]bool{"known": true}})
	_, ok := c.Compile(prog)
	require.False(t, ok)
	assert.Contains(t, c.Errors()[0].Message, "unknown package")
}

type stubResolver struct{ known map[string]bool }

func (r stubResolver) HasPackage(path string) bool { return r.known[path] }
