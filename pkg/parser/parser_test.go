package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/bramble/pkg/ast"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(src, nil)
	prog := p.Parse()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	return prog
}

func TestParse_VariableDecl_Explicit(t *testing.T) {
	prog := parseProgram(t, "var x: 5\nlet y: 10\n")
	require.Len(t, prog.Statements, 2)

	v := prog.Statements[0].(*ast.VariableDecl)
	assert.Equal(t, "x", v.Name)
	assert.Equal(t, ast.DeclVar, v.Kind)
	assert.True(t, v.Mutable)

	l := prog.Statements[1].(*ast.VariableDecl)
	assert.Equal(t, "y", l.Name)
	assert.Equal(t, ast.DeclLet, l.Kind)
	assert.False(t, l.Mutable)
}

func TestParse_VariableDecl_Implicit(t *testing.T) {
	prog := parseProgram(t, "score: 0\n")
	require.Len(t, prog.Statements, 1)
	v := prog.Statements[0].(*ast.VariableDecl)
	assert.Equal(t, "score", v.Name)
	assert.Equal(t, ast.DeclImplicit, v.Kind)
}

func TestParse_IfElseIndented(t *testing.T) {
	src := "if x > 0\n    y: 1\nelse\n    y: 2\n"
	prog := parseProgram(t, src)
	require.Len(t, prog.Statements, 1)

	ifstmt := prog.Statements[0].(*ast.If)
	require.Len(t, ifstmt.Then.Statements, 1)
	require.NotNil(t, ifstmt.Else)
	require.Len(t, ifstmt.Else.Statements, 1)
}

func TestParse_IfElseBraced(t *testing.T) {
	src := "if (x > 0) { y: 1 } else { y: 2 }"
	prog := parseProgram(t, src)
	require.Len(t, prog.Statements, 1)
	ifstmt := prog.Statements[0].(*ast.If)
	require.NotNil(t, ifstmt.Else)
}

func TestParse_NakedIterator(t *testing.T) {
	src := "i: 0..10\n    total: total + i\n"
	prog := parseProgram(t, src)
	require.Len(t, prog.Statements, 1)

	it := prog.Statements[0].(*ast.NakedIterator)
	assert.Equal(t, "i", it.Variable)
	rng, ok := it.Iterable.(*ast.Range)
	require.True(t, ok)
	assert.NotNil(t, rng.Start)
	assert.NotNil(t, rng.End)
	require.Len(t, it.Body.Statements, 1)
}

func TestParse_ObjectLiteralWithMixin(t *testing.T) {
	src := `monster: { base, hp: 10, name: "orc" }` + "\n"
	prog := parseProgram(t, src)
	decl := prog.Statements[0].(*ast.VariableDecl)
	obj := decl.Initializer.(*ast.ObjectLiteral)
	assert.Equal(t, []string{"base"}, obj.Mixins)
	require.Len(t, obj.Properties, 2)
	assert.Equal(t, "hp", obj.Properties[0].Key)
	assert.Equal(t, "name", obj.Properties[1].Key)
}

func TestParse_PropertyAndIndexAssignment(t *testing.T) {
	prog := parseProgram(t, "a.b.c = 5\narr[0] = 9\n")
	require.Len(t, prog.Statements, 2)

	pa := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.PropertyAssignment)
	assert.Equal(t, []string{"b", "c"}, pa.Path)

	ia := prog.Statements[1].(*ast.ExpressionStatement).Expression.(*ast.IndexAssignment)
	require.NotNil(t, ia.Index)
	require.NotNil(t, ia.Value)
}

func TestParse_EventBindingAndBroadcast(t *testing.T) {
	src := `onHit: function(amount) <- ["Damage" {amount > 0} |type("enemy")|]
    total: total + amount
fire ["Damage"] { amount: 5 }
`
	prog := parseProgram(t, src)
	require.Len(t, prog.Statements, 2)

	eb := prog.Statements[0].(*ast.EventBinding)
	assert.Equal(t, "onHit", eb.Handler)
	assert.Equal(t, []string{"amount"}, eb.Params)
	assert.Equal(t, "Damage", eb.Event)
	require.NotNil(t, eb.Condition)
	require.Len(t, eb.Filters, 1)
	assert.Equal(t, "type", eb.Filters[0].Tag)

	fire := prog.Statements[1].(*ast.EventBroadcast)
	assert.Equal(t, "Damage", fire.Event)
	require.Len(t, fire.Args, 1)
	assert.Equal(t, "amount", fire.Args[0].Key)
}

func TestParse_FunctionDefAndReturn(t *testing.T) {
	src := "function add(a, b)\n    return a + b\n"
	prog := parseProgram(t, src)
	fn := prog.Statements[0].(*ast.FunctionDef)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	require.Len(t, fn.Body.Statements, 1)
	ret := fn.Body.Statements[0].(*ast.Return)
	require.NotNil(t, ret.Value)
}

func TestParse_SwitchStatement(t *testing.T) {
	src := "switch x {\ncase 1:\n    y: 1\ncase 2:\n    y: 2\ndefault:\n    y: 0\n}\n"
	prog := parseProgram(t, src)
	sw := prog.Statements[0].(*ast.SwitchStatement)
	require.Len(t, sw.Cases, 2)
	require.NotNil(t, sw.Default)
}

func TestParse_SyntaxErrorRecovers(t *testing.T) {
	src := "var x: \nvar y: 5\n"
	p := New(src, nil)
	prog := p.Parse()
	require.NotEmpty(t, p.Errors())
	// Recovery must still leave the following declaration parseable.
	found := false
	for _, s := range prog.Statements {
		if v, ok := s.(*ast.VariableDecl); ok && v.Name == "y" {
			found = true
		}
	}
	assert.True(t, found, "parser should recover and parse the statement after the error")
}
