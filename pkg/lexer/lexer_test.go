package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/bramble/pkg/token"
)

func TestNextToken_BasicSymbols(t *testing.T) {
	input := "( ) { } [ ] , ; : .. <- == != <= >= && ||\n"

	tests := []struct {
		expectedType   token.Type
		expectedLexeme string
	}{
		{token.Punctuation, "("},
		{token.Punctuation, ")"},
		{token.Punctuation, "{"},
		{token.Punctuation, "}"},
		{token.Punctuation, "["},
		{token.Punctuation, "]"},
		{token.Punctuation, ","},
		{token.Punctuation, ";"},
		{token.Punctuation, ":"},
		{token.Operator, ".."},
		{token.Operator, "<-"},
		{token.Operator, "=="},
		{token.Operator, "!="},
		{token.Operator, "<="},
		{token.Operator, ">="},
		{token.Operator, "&&"},
		{token.Operator, "||"},
		{token.Newline, "\n"},
		{token.Eof, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		assert.Equalf(t, tt.expectedType, tok.Type, "tests[%d] type", i)
		assert.Equalf(t, tt.expectedLexeme, tok.Lexeme, "tests[%d] lexeme", i)
	}
}

func TestNextToken_KeywordsAndLiterals(t *testing.T) {
	input := `var let true false null import fire foo 42 3.14 "hi"`

	l := New(input)
	want := []token.Type{
		token.Keyword, token.Keyword, token.Boolean, token.Boolean, token.Null,
		token.Keyword, token.Keyword, token.Identifier, token.Number, token.Number, token.String,
	}
	for i, typ := range want {
		tok := l.NextToken()
		assert.Equalf(t, typ, tok.Type, "tests[%d]", i)
	}
}

func TestIndentation_SimpleBlock(t *testing.T) {
	input := "if x\n    print(x)\nprint(y)\n"
	l := New(input)

	var types []token.Type
	for {
		tok := l.NextToken()
		types = append(types, tok.Type)
		if tok.Type == token.Eof {
			break
		}
	}

	require.Contains(t, types, token.Indent)
	require.Contains(t, types, token.Dedent)

	indents, dedents := 0, 0
	for _, typ := range types {
		switch typ {
		case token.Indent:
			indents++
		case token.Dedent:
			dedents++
		}
	}
	assert.Equal(t, indents, dedents, "INDENT/DEDENT counts must balance")
}

func TestIndentation_InconsistentDedentIsError(t *testing.T) {
	input := "if x\n        print(x)\n    print(y)\n"
	l := New(input)

	sawError := false
	for {
		tok := l.NextToken()
		if tok.Type == token.Error {
			sawError = true
		}
		if tok.Type == token.Eof {
			break
		}
	}
	assert.True(t, sawError, "expected an inconsistent-dedent error token")
}

func TestNumber_IntegerAndFloat(t *testing.T) {
	l := New("1 2.5 100")
	tok := l.NextToken()
	require.Equal(t, token.Number, tok.Type)
	assert.Equal(t, "1", tok.Lexeme)

	tok = l.NextToken()
	require.Equal(t, token.Number, tok.Type)
	assert.Equal(t, "2.5", tok.Lexeme)
}

func TestString_Escapes(t *testing.T) {
	l := New(`"a\nb\"c"`)
	tok := l.NextToken()
	require.Equal(t, token.String, tok.Type)
	assert.Equal(t, "a\nb\"c", tok.Lexeme)
}

func TestLineComment_Skipped(t *testing.T) {
	l := New("1 // a comment\n2")
	tok := l.NextToken()
	assert.Equal(t, "1", tok.Lexeme)
	tok = l.NextToken()
	assert.Equal(t, token.Newline, tok.Type)
	tok = l.NextToken()
	assert.Equal(t, "2", tok.Lexeme)
}
