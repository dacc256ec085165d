package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/bramble/pkg/ast"
)

// exprOf parses a single expression statement and returns its Expression.
func exprOf(t *testing.T, src string) ast.Expression {
	t.Helper()
	prog := parseProgram(t, src+"\n")
	require.Len(t, prog.Statements, 1)
	return prog.Statements[0].(*ast.ExpressionStatement).Expression
}

func TestPrecedence_MultiplicationBindsTighterThanAddition(t *testing.T) {
	// 1 + 2 * 3  ==  1 + (2 * 3)
	expr := exprOf(t, "1 + 2 * 3")
	bin := expr.(*ast.BinaryOp)
	assert.Equal(t, "+", bin.Operator)

	right := bin.Right.(*ast.BinaryOp)
	assert.Equal(t, "*", right.Operator)
}

func TestPrecedence_ComparisonBelowAdditive(t *testing.T) {
	// 1 + 2 > 3 - 1  ==  (1 + 2) > (3 - 1)
	expr := exprOf(t, "1 + 2 > 3 - 1")
	cmp := expr.(*ast.BinaryOp)
	assert.Equal(t, ">", cmp.Operator)
	_, leftOk := cmp.Left.(*ast.BinaryOp)
	_, rightOk := cmp.Right.(*ast.BinaryOp)
	assert.True(t, leftOk)
	assert.True(t, rightOk)
}

func TestPrecedence_LogicalAndBindsTighterThanOr(t *testing.T) {
	// a || b && c == a || (b && c)
	expr := exprOf(t, "a || b && c")
	or := expr.(*ast.LogicalOp)
	assert.Equal(t, "||", or.Operator)
	and := or.Right.(*ast.LogicalOp)
	assert.Equal(t, "&&", and.Operator)
}

func TestPrecedence_EqualityBelowLogicalAnd(t *testing.T) {
	// a == b && c == d  ==  (a == b) && (c == d)
	expr := exprOf(t, "a == b && c == d")
	and := expr.(*ast.LogicalOp)
	assert.Equal(t, "&&", and.Operator)
	_, leftOk := and.Left.(*ast.BinaryOp)
	_, rightOk := and.Right.(*ast.BinaryOp)
	assert.True(t, leftOk)
	assert.True(t, rightOk)
}

func TestPrecedence_UnaryBindsTighterThanBinary(t *testing.T) {
	// -a + b  ==  (-a) + b
	expr := exprOf(t, "-a + b")
	bin := expr.(*ast.BinaryOp)
	assert.Equal(t, "+", bin.Operator)
	unary := bin.Left.(*ast.UnaryOp)
	assert.Equal(t, "-", unary.Operator)
}

func TestPrecedence_LeftAssociativeSubtraction(t *testing.T) {
	// 10 - 3 - 2  ==  (10 - 3) - 2
	expr := exprOf(t, "10 - 3 - 2")
	outer := expr.(*ast.BinaryOp)
	assert.Equal(t, "-", outer.Operator)
	inner, ok := outer.Left.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "-", inner.Operator)
	_, rightIsLiteral := outer.Right.(*ast.Literal)
	assert.True(t, rightIsLiteral)
}

func TestPrecedence_ParenthesesOverridePrecedence(t *testing.T) {
	// (1 + 2) * 3
	expr := exprOf(t, "(1 + 2) * 3")
	mul := expr.(*ast.BinaryOp)
	assert.Equal(t, "*", mul.Operator)
	_, leftIsAdd := mul.Left.(*ast.BinaryOp)
	assert.True(t, leftIsAdd)
}

func TestPrecedence_RangeIsLowestAndNonAssociative(t *testing.T) {
	expr := exprOf(t, "0..n + 1")
	rng := expr.(*ast.Range)
	_, startIsLiteral := rng.Start.(*ast.Literal)
	assert.True(t, startIsLiteral)
	// n + 1 binds tighter than .., so End is the additive expression.
	_, endIsBinary := rng.End.(*ast.BinaryOp)
	assert.True(t, endIsBinary)
}

func TestPrecedence_PostfixChainsBeforeUnary(t *testing.T) {
	// !obj.flag  ==  !(obj.flag)
	expr := exprOf(t, "!obj.flag")
	not := expr.(*ast.UnaryOp)
	assert.Equal(t, "!", not.Operator)
	_, isProp := not.Operand.(*ast.PropertyAccess)
	assert.True(t, isProp)
}
