// Package parser implements bramble's recursive-descent parser.
//
// Parser Architecture:
//
// The parser uses recursive descent with precedence climbing for
// expressions, the same two-token-lookahead technique the teacher's
// Smalltalk parser uses:
//
//   - curTok: the token currently being examined
//   - peekTok: the next token, consulted without consuming it
//
// Precedence (low to high): logical-or, logical-and, equality, comparison,
// additive, multiplicative, unary, primary — with postfix call/property/
// index/method chains applied directly to primaries. Binary operators are
// left-associative; unary operators are right-associative.
//
// Statements are distinguished by leading keyword, or by lookahead when an
// identifier is immediately followed by ':' — that shape is either an
// implicit variable declaration, a naked iterator, or the start of an
// event-binding handler, disambiguated as parsing proceeds (see
// parseIdentifierLed).
//
// Blocks come in two forms, both accepted wherever a block is expected:
// brace-delimited (`{ ... }`) and indentation-delimited (an INDENT token
// after the statement header, closed by a matching DEDENT).
//
// Error Handling:
//
// On a syntax error the parser records a diagnostic via langerr.Collector
// (invoking the host callback if one was supplied) and enters panic-mode
// recovery: it discards tokens until it reaches a statement terminator
// (NEWLINE at the current level, ';', '}', DEDENT, or EOF) and resumes
// parsing from there. The accumulated error count is exposed through
// Errors(); a non-zero count means the caller must not compile the
// resulting (possibly partial) tree.
package parser

import (
	"github.com/kristofer/bramble/pkg/ast"
	"github.com/kristofer/bramble/pkg/langerr"
	"github.com/kristofer/bramble/pkg/lexer"
	"github.com/kristofer/bramble/pkg/token"
)

// Parser turns a token stream into an *ast.Program.
type Parser struct {
	l       *lexer.Lexer
	curTok  token.Token
	peekTok token.Token

	diags *langerr.Collector
}

// New creates a Parser over source, optionally reporting diagnostics to
// onError as they are recorded (onError may be nil).
func New(source string, onError langerr.Callback) *Parser {
	p := &Parser{
		l:     lexer.New(source),
		diags: langerr.NewCollector(onError),
	}
	p.advance()
	p.advance()
	return p
}

// Errors returns every diagnostic recorded during parsing, in order.
func (p *Parser) Errors() []*langerr.Diagnostic { return p.diags.Items() }

func (p *Parser) advance() {
	p.curTok = p.peekTok
	p.peekTok = p.l.NextToken()
}

func (p *Parser) errorf(format string, args ...any) {
	p.diags.Add(langerr.Syntactic, p.curTok.Line, p.curTok.Column, format, args...)
}

func (p *Parser) curIs(typ token.Type) bool  { return p.curTok.Type == typ }
func (p *Parser) peekIs(typ token.Type) bool { return p.peekTok.Type == typ }

func (p *Parser) curIsLexeme(typ token.Type, lexeme string) bool {
	return p.curTok.Type == typ && p.curTok.Lexeme == lexeme
}

func (p *Parser) curIsKeyword(kw string) bool {
	return p.curTok.Type == token.Keyword && p.curTok.Lexeme == kw
}

// expect consumes curTok if it matches, or records an error and leaves
// curTok in place (the caller's synchronize() will recover).
func (p *Parser) expect(typ token.Type, lexeme string) bool {
	if p.curIsLexeme(typ, lexeme) {
		p.advance()
		return true
	}
	p.errorf("expected %q, got %q", lexeme, p.curTok.Lexeme)
	return false
}

// skipSeparators consumes any run of NEWLINE/';' tokens between
// statements.
func (p *Parser) skipSeparators() {
	for p.curIs(token.Newline) || p.curIsLexeme(token.Punctuation, ";") {
		p.advance()
	}
}

// synchronize discards tokens until a statement boundary, implementing
// panic-mode recovery (spec.md §4.2 "Error policy").
func (p *Parser) synchronize() {
	for {
		switch {
		case p.curIs(token.Eof):
			return
		case p.curIs(token.Newline), p.curIs(token.Dedent):
			return
		case p.curIsLexeme(token.Punctuation, ";"), p.curIsLexeme(token.Punctuation, "}"):
			return
		}
		p.advance()
	}
}

// Parse parses the whole token stream into a Program. A non-nil tree is
// always returned, even when errors were recorded, to support error
// recovery and reporting; callers must check Errors() before compiling.
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{NodeBase: ast.Pos(1, 1)}
	p.skipSeparators()
	for !p.curIs(token.Eof) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		p.skipSeparators()
	}
	return prog
}

// ---- Statements ----

func (p *Parser) parseStatement() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column

	switch {
	case p.curIsKeyword("var"):
		return p.parseVariableDecl(ast.DeclVar)
	case p.curIsKeyword("let"):
		return p.parseVariableDecl(ast.DeclLet)
	case p.curIsKeyword("if"):
		return p.parseIf()
	case p.curIsKeyword("while"):
		return p.parseWhile()
	case p.curIsKeyword("for"):
		return p.parseFor()
	case p.curIsKeyword("switch"):
		return p.parseSwitch()
	case p.curIsKeyword("function"):
		return p.parseFunctionDef()
	case p.curIsKeyword("return"):
		return p.parseReturn()
	case p.curIsKeyword("import"):
		return p.parseImport()
	case p.curIsKeyword("fire"):
		return p.parseEventBroadcast()
	case p.curIs(token.Identifier) && p.peekIs(token.Punctuation) && p.peekTok.Lexeme == ":":
		return p.parseIdentifierLed(line, col)
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseVariableDecl(kind ast.DeclKind) ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'var' / 'let'
	if !p.curIs(token.Identifier) {
		p.errorf("expected identifier after declaration keyword, got %q", p.curTok.Lexeme)
		p.synchronize()
		return nil
	}
	name := p.curTok.Lexeme
	p.advance()
	if !p.expect(token.Punctuation, ":") {
		p.synchronize()
		return nil
	}
	value := p.parseExpression()
	return &ast.VariableDecl{
		NodeBase: ast.Pos(line, col), Name: name, Initializer: value,
		Kind: kind, Mutable: kind != ast.DeclLet,
	}
}

// parseIdentifierLed handles `name : ...`, which is ambiguous among three
// shapes until enough of the right-hand side has been parsed:
//
//   - `name : function(params) <- [...]` — an event-binding handler
//   - `name : range-expr` followed by a block — a naked iterator
//   - `name : expr` — an implicit variable declaration
func (p *Parser) parseIdentifierLed(line, col int) ast.Statement {
	name := p.curTok.Lexeme
	p.advance() // identifier
	p.advance() // ':'

	if p.curIsKeyword("function") {
		return p.parseEventBinding(line, col, name)
	}

	value := p.parseExpression()
	if rng, ok := value.(*ast.Range); ok {
		body := p.parseBlock()
		return &ast.NakedIterator{NodeBase: ast.Pos(line, col), Variable: name, Iterable: rng, Body: body}
	}

	return &ast.VariableDecl{
		NodeBase: ast.Pos(line, col), Name: name, Initializer: value,
		Kind: ast.DeclImplicit, Mutable: true,
	}
}

func (p *Parser) parseIf() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'if'
	cond := p.parseExpression()
	thenBlock := p.parseBlock()

	stmt := &ast.If{NodeBase: ast.Pos(line, col), Condition: cond, Then: thenBlock}

	p.skipSeparators()
	if p.curIsKeyword("else") {
		p.advance()
		if p.curIsKeyword("if") {
			elseIf := p.parseIf()
			stmt.Else = &ast.Block{NodeBase: ast.Pos(line, col), Statements: []ast.Statement{elseIf}}
		} else {
			stmt.Else = p.parseBlock()
		}
	}
	return stmt
}

func (p *Parser) parseWhile() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'while'
	cond := p.parseExpression()
	body := p.parseBlock()
	return &ast.While{NodeBase: ast.Pos(line, col), Condition: cond, Body: body}
}

func (p *Parser) parseFor() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'for'
	p.expect(token.Punctuation, "(")

	var init ast.Statement
	if !p.curIsLexeme(token.Punctuation, ";") {
		init = p.parseStatement()
	}
	p.expect(token.Punctuation, ";")

	var cond ast.Expression
	if !p.curIsLexeme(token.Punctuation, ";") {
		cond = p.parseExpression()
	}
	p.expect(token.Punctuation, ";")

	var incr ast.Statement
	if !p.curIsLexeme(token.Punctuation, ")") {
		incr = p.parseStatement()
	}
	p.expect(token.Punctuation, ")")

	body := p.parseBlock()
	return &ast.For{NodeBase: ast.Pos(line, col), Init: init, Condition: cond, Increment: incr, Body: body}
}

func (p *Parser) parseSwitch() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'switch'
	discriminant := p.parseExpression()

	p.skipSeparators()
	p.expect(token.Punctuation, "{")
	p.skipSeparators()

	stmt := &ast.SwitchStatement{NodeBase: ast.Pos(line, col), Discriminant: discriminant}
	for p.curIsKeyword("case") || p.curIsKeyword("default") {
		if p.curIsKeyword("case") {
			p.advance()
			val := p.parseExpression()
			p.expect(token.Punctuation, ":")
			body := p.parseCaseBody()
			stmt.Cases = append(stmt.Cases, ast.SwitchCase{Value: val, Body: body})
		} else {
			p.advance()
			p.expect(token.Punctuation, ":")
			stmt.Default = p.parseCaseBody()
		}
		p.skipSeparators()
	}
	p.expect(token.Punctuation, "}")
	return stmt
}

// parseCaseBody reads an indented block, or else statements until the
// next case/default/closing brace.
func (p *Parser) parseCaseBody() *ast.Block {
	line, col := p.curTok.Line, p.curTok.Column
	block := &ast.Block{NodeBase: ast.Pos(line, col)}
	p.skipSeparators()
	if p.curIs(token.Indent) {
		return p.parseBlock()
	}
	for !p.curIsKeyword("case") && !p.curIsKeyword("default") &&
		!p.curIsLexeme(token.Punctuation, "}") && !p.curIs(token.Eof) {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.skipSeparators()
	}
	return block
}

func (p *Parser) parseFunctionDef() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'function'
	if !p.curIs(token.Identifier) {
		p.errorf("expected function name, got %q", p.curTok.Lexeme)
		p.synchronize()
		return nil
	}
	name := p.curTok.Lexeme
	p.advance()
	params := p.parseParamList()
	body := p.parseBlock()
	return &ast.FunctionDef{NodeBase: ast.Pos(line, col), Name: name, Params: params, Body: body}
}

func (p *Parser) parseParamList() []string {
	p.expect(token.Punctuation, "(")
	var params []string
	for !p.curIsLexeme(token.Punctuation, ")") && !p.curIs(token.Eof) {
		if p.curIs(token.Identifier) {
			params = append(params, p.curTok.Lexeme)
			p.advance()
		}
		if p.curIsLexeme(token.Punctuation, ",") {
			p.advance()
		}
	}
	p.expect(token.Punctuation, ")")
	return params
}

func (p *Parser) parseReturn() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'return'
	if p.curIs(token.Newline) || p.curIs(token.Dedent) || p.curIs(token.Eof) ||
		p.curIsLexeme(token.Punctuation, ";") || p.curIsLexeme(token.Punctuation, "}") {
		return &ast.Return{NodeBase: ast.Pos(line, col)}
	}
	val := p.parseExpression()
	return &ast.Return{NodeBase: ast.Pos(line, col), Value: val}
}

func (p *Parser) parseImport() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'import'
	if !p.curIs(token.String) {
		p.errorf("expected import path string, got %q", p.curTok.Lexeme)
		p.synchronize()
		return nil
	}
	path := p.curTok.Lexeme
	p.advance()
	return &ast.Import{NodeBase: ast.Pos(line, col), Path: path}
}

// parseEventBinding parses the tail of `handler : function(params) <- [...]`
// plus its body. curTok is 'function' on entry.
func (p *Parser) parseEventBinding(line, col int, handlerName string) ast.Statement {
	p.advance() // 'function'
	params := p.parseParamList()
	if !p.expect(token.Operator, "<-") {
		p.synchronize()
		return nil
	}
	eventName, cond, filters := p.parseEventBracket()
	body := p.parseBlock()
	return &ast.EventBinding{
		NodeBase: ast.Pos(line, col), Handler: handlerName, Params: params,
		Event: eventName, Condition: cond, Filters: filters, Body: body,
	}
}

func (p *Parser) parseEventBroadcast() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // 'fire'
	eventName, cond, filters := p.parseEventBracket()

	var args []ast.ObjectProperty
	if p.curIsLexeme(token.Punctuation, "{") || p.curIsLexeme(token.Punctuation, "(") {
		closer := "}"
		if p.curTok.Lexeme == "(" {
			closer = ")"
		}
		p.advance()
		p.skipSeparators()
		for !p.curIsLexeme(token.Punctuation, closer) && !p.curIs(token.Eof) {
			if !p.curIs(token.Identifier) {
				p.errorf("expected argument name, got %q", p.curTok.Lexeme)
				p.synchronize()
				break
			}
			key := p.curTok.Lexeme
			p.advance()
			p.expect(token.Punctuation, ":")
			val := p.parseExpression()
			args = append(args, ast.ObjectProperty{Key: key, Value: val})
			if p.curIsLexeme(token.Punctuation, ",") {
				p.advance()
			}
			p.skipSeparators()
		}
		p.expect(token.Punctuation, closer)
	}

	return &ast.EventBroadcast{
		NodeBase: ast.Pos(line, col), Event: eventName, Condition: cond,
		Filters: filters, Args: args,
	}
}

// parseEventBracket parses `[ "EventName" { condition }? ( | filter )* |? ]`,
// shared by event bindings and broadcasts. A trailing `|` before `]` is
// accepted.
func (p *Parser) parseEventBracket() (string, ast.Expression, []*ast.FilterExpression) {
	p.expect(token.Punctuation, "[")
	var name string
	if p.curIs(token.String) {
		name = p.curTok.Lexeme
		p.advance()
	} else {
		p.errorf("expected event name string, got %q", p.curTok.Lexeme)
	}

	var cond ast.Expression
	if p.curIsLexeme(token.Punctuation, "{") {
		p.advance()
		if !p.curIsLexeme(token.Punctuation, "}") {
			cond = p.parseExpression()
		}
		p.expect(token.Punctuation, "}")
	}

	var filters []*ast.FilterExpression
	for p.curIsLexeme(token.Punctuation, "|") {
		p.advance()
		if p.curIsLexeme(token.Punctuation, "]") {
			break
		}
		filters = append(filters, p.parseFilter())
	}

	p.expect(token.Punctuation, "]")
	return name, cond, filters
}

func (p *Parser) parseFilter() *ast.FilterExpression {
	line, col := p.curTok.Line, p.curTok.Column
	tag := p.curTok.Lexeme
	p.advance()

	f := &ast.FilterExpression{NodeBase: ast.Pos(line, col), Tag: tag}
	if p.curIsLexeme(token.Punctuation, "(") {
		p.advance()
		if p.curIs(token.Operator) {
			switch p.curTok.Lexeme {
			case "==", "!=", "<", ">", "<=", ">=":
				f.Comparison = p.curTok.Lexeme
				p.advance()
			}
		}
		if !p.curIsLexeme(token.Punctuation, ")") {
			f.Value = p.parseExpression()
		}
		p.expect(token.Punctuation, ")")
	}
	return f
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	line, col := p.curTok.Line, p.curTok.Column
	expr := p.parseExpression()

	if p.curIsLexeme(token.Operator, "=") {
		p.advance()
		value := p.parseExpression()
		switch target := expr.(type) {
		case *ast.Variable:
			expr = &ast.Assignment{NodeBase: ast.Pos(line, col), Name: target.Name, Value: value}
		case *ast.PropertyAccess:
			path, obj := flattenPropertyPath(target)
			expr = &ast.PropertyAssignment{NodeBase: ast.Pos(line, col), Object: obj, Path: path, Value: value}
		case *ast.IndexAccess:
			expr = &ast.IndexAssignment{NodeBase: ast.Pos(line, col), Collection: target.Collection, Index: target.Index, Value: value}
		default:
			p.errorf("invalid assignment target")
		}
	}

	return &ast.ExpressionStatement{NodeBase: ast.Pos(line, col), Expression: expr}
}

// flattenPropertyPath walks a chain of PropertyAccess nodes (a.b.c) into
// its root object expression and the ordered list of property names, so
// the compiler can emit a single SetNestedProperty opcode.
func flattenPropertyPath(pa *ast.PropertyAccess) ([]string, ast.Expression) {
	var path []string
	var cur ast.Expression = pa
	for {
		access, ok := cur.(*ast.PropertyAccess)
		if !ok {
			break
		}
		path = append([]string{access.Property}, path...)
		cur = access.Object
	}
	return path, cur
}

// ---- Blocks ----

// parseBlock accepts either a brace-delimited or indentation-delimited
// block, whichever follows the statement header.
func (p *Parser) parseBlock() *ast.Block {
	line, col := p.curTok.Line, p.curTok.Column
	block := &ast.Block{NodeBase: ast.Pos(line, col)}

	if p.curIsLexeme(token.Punctuation, "{") {
		p.advance()
		p.skipSeparators()
		for !p.curIsLexeme(token.Punctuation, "}") && !p.curIs(token.Eof) {
			stmt := p.parseStatement()
			if stmt != nil {
				block.Statements = append(block.Statements, stmt)
			}
			p.skipSeparators()
		}
		p.expect(token.Punctuation, "}")
		return block
	}

	p.skipSeparators()
	if !p.curIs(token.Indent) {
		p.errorf("expected a block (indented or braced), got %q", p.curTok.Lexeme)
		return block
	}
	p.advance() // INDENT
	p.skipSeparators()
	for !p.curIs(token.Dedent) && !p.curIs(token.Eof) {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.skipSeparators()
	}
	if p.curIs(token.Dedent) {
		p.advance()
	}
	return block
}

// ---- Expressions ----

func (p *Parser) parseExpression() ast.Expression {
	left := p.parseLogicalOr()
	if p.curIsLexeme(token.Operator, "..") {
		line, col := p.curTok.Line, p.curTok.Column
		p.advance()
		right := p.parseLogicalOr()
		return &ast.Range{NodeBase: ast.Pos(line, col), Start: left, End: right}
	}
	return left
}

func (p *Parser) parseLogicalOr() ast.Expression {
	left := p.parseLogicalAnd()
	for p.curIsLexeme(token.Operator, "||") {
		line, col := p.curTok.Line, p.curTok.Column
		op := p.curTok.Lexeme
		p.advance()
		right := p.parseLogicalAnd()
		left = &ast.LogicalOp{NodeBase: ast.Pos(line, col), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseLogicalAnd() ast.Expression {
	left := p.parseEquality()
	for p.curIsLexeme(token.Operator, "&&") {
		line, col := p.curTok.Line, p.curTok.Column
		op := p.curTok.Lexeme
		p.advance()
		right := p.parseEquality()
		left = &ast.LogicalOp{NodeBase: ast.Pos(line, col), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expression {
	left := p.parseComparison()
	for p.curIsLexeme(token.Operator, "==") || p.curIsLexeme(token.Operator, "!=") {
		line, col := p.curTok.Line, p.curTok.Column
		op := p.curTok.Lexeme
		p.advance()
		right := p.parseComparison()
		left = &ast.BinaryOp{NodeBase: ast.Pos(line, col), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseComparison() ast.Expression {
	left := p.parseAdditive()
	for p.curTok.Type == token.Operator && isComparisonOp(p.curTok.Lexeme) {
		line, col := p.curTok.Line, p.curTok.Column
		op := p.curTok.Lexeme
		p.advance()
		right := p.parseAdditive()
		left = &ast.BinaryOp{NodeBase: ast.Pos(line, col), Left: left, Operator: op, Right: right}
	}
	return left
}

func isComparisonOp(op string) bool {
	switch op {
	case "<", ">", "<=", ">=":
		return true
	}
	return false
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.curTok.Type == token.Operator && (p.curTok.Lexeme == "+" || p.curTok.Lexeme == "-") {
		line, col := p.curTok.Line, p.curTok.Column
		op := p.curTok.Lexeme
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.BinaryOp{NodeBase: ast.Pos(line, col), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for p.curTok.Type == token.Operator && (p.curTok.Lexeme == "*" || p.curTok.Lexeme == "/" || p.curTok.Lexeme == "%") {
		line, col := p.curTok.Line, p.curTok.Column
		op := p.curTok.Lexeme
		p.advance()
		right := p.parseUnary()
		left = &ast.BinaryOp{NodeBase: ast.Pos(line, col), Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.curTok.Type == token.Operator && (p.curTok.Lexeme == "-" || p.curTok.Lexeme == "!") {
		line, col := p.curTok.Line, p.curTok.Column
		op := p.curTok.Lexeme
		p.advance()
		operand := p.parseUnary()
		return &ast.UnaryOp{NodeBase: ast.Pos(line, col), Operator: op, Operand: operand}
	}
	return p.parsePostfix()
}

// parsePostfix applies property access, index access, and call chains to
// a primary expression: `obj.prop`, `obj.method(args)`, `arr[i]`,
// `fn(args)`.
func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()

	for {
		line, col := p.curTok.Line, p.curTok.Column
		switch {
		case p.curIsLexeme(token.Punctuation, "."):
			p.advance()
			if !p.curIs(token.Identifier) {
				p.errorf("expected property name after '.', got %q", p.curTok.Lexeme)
				return expr
			}
			name := p.curTok.Lexeme
			p.advance()
			if p.curIsLexeme(token.Punctuation, "(") {
				args := p.parseArgList()
				expr = &ast.MethodCall{NodeBase: ast.Pos(line, col), Object: expr, Method: name, Args: args}
			} else {
				expr = &ast.PropertyAccess{NodeBase: ast.Pos(line, col), Object: expr, Property: name}
			}
		case p.curIsLexeme(token.Punctuation, "["):
			p.advance()
			idx := p.parseExpression()
			p.expect(token.Punctuation, "]")
			expr = &ast.IndexAccess{NodeBase: ast.Pos(line, col), Collection: expr, Index: idx}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgList() []ast.Expression {
	p.expect(token.Punctuation, "(")
	var args []ast.Expression
	for !p.curIsLexeme(token.Punctuation, ")") && !p.curIs(token.Eof) {
		args = append(args, p.parseExpression())
		if p.curIsLexeme(token.Punctuation, ",") {
			p.advance()
		}
	}
	p.expect(token.Punctuation, ")")
	return args
}

func (p *Parser) parsePrimary() ast.Expression {
	line, col := p.curTok.Line, p.curTok.Column

	switch {
	case p.curIs(token.Number):
		lit := &ast.Literal{NodeBase: ast.Pos(line, col), Kind: ast.LiteralNumber, Lexeme: p.curTok.Lexeme}
		p.advance()
		return lit
	case p.curIs(token.String):
		lit := &ast.Literal{NodeBase: ast.Pos(line, col), Kind: ast.LiteralString, Lexeme: p.curTok.Lexeme}
		p.advance()
		return lit
	case p.curIs(token.Boolean):
		lit := &ast.Literal{NodeBase: ast.Pos(line, col), Kind: ast.LiteralBoolean, Lexeme: p.curTok.Lexeme}
		p.advance()
		return lit
	case p.curIs(token.Null):
		lit := &ast.Literal{NodeBase: ast.Pos(line, col), Kind: ast.LiteralNull, Lexeme: p.curTok.Lexeme}
		p.advance()
		return lit
	case p.curIsLexeme(token.Punctuation, "("):
		p.advance()
		expr := p.parseExpression()
		p.expect(token.Punctuation, ")")
		return expr
	case p.curIsLexeme(token.Punctuation, "["):
		return p.parseArrayLiteral()
	case p.curIsLexeme(token.Punctuation, "{"):
		return p.parseObjectLiteral()
	case p.curIs(token.Identifier):
		name := p.curTok.Lexeme
		p.advance()
		if p.curIsLexeme(token.Punctuation, "(") {
			args := p.parseArgList()
			return &ast.FunctionCall{NodeBase: ast.Pos(line, col), Callee: name, Args: args}
		}
		return &ast.Variable{NodeBase: ast.Pos(line, col), Name: name}
	default:
		p.errorf("unexpected token %q", p.curTok.Lexeme)
		tok := p.curTok
		p.advance()
		return &ast.Literal{NodeBase: ast.Pos(line, col), Kind: ast.LiteralNull, Lexeme: tok.Lexeme}
	}
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // '['
	var elems []ast.Expression
	for !p.curIsLexeme(token.Punctuation, "]") && !p.curIs(token.Eof) {
		elems = append(elems, p.parseExpression())
		if p.curIsLexeme(token.Punctuation, ",") {
			p.advance()
		}
	}
	p.expect(token.Punctuation, "]")
	return &ast.ArrayLiteral{NodeBase: ast.Pos(line, col), Elements: elems}
}

// parseObjectLiteral parses `{ mixinName, ..., key: value, ... }`. Bare
// identifiers (no following ':') name mixin sources; `key: value` pairs
// are explicit properties, applied after mixins so they always win.
func (p *Parser) parseObjectLiteral() ast.Expression {
	line, col := p.curTok.Line, p.curTok.Column
	p.advance() // '{'
	p.skipSeparators()

	obj := &ast.ObjectLiteral{NodeBase: ast.Pos(line, col)}
	for !p.curIsLexeme(token.Punctuation, "}") && !p.curIs(token.Eof) {
		switch {
		case p.curIs(token.Identifier) || p.curIs(token.String):
			key := p.curTok.Lexeme
			p.advance()
			if p.curIsLexeme(token.Punctuation, ":") {
				p.advance()
				val := p.parseExpression()
				obj.Properties = append(obj.Properties, ast.ObjectProperty{Key: key, Value: val})
			} else {
				// Bare name with nothing following: a mixin reference
				// (the common `{ base, atk: 5 }` shape).
				obj.Mixins = append(obj.Mixins, key)
			}
		default:
			p.errorf("unexpected token %q in object literal", p.curTok.Lexeme)
			p.advance()
		}

		if p.curIsLexeme(token.Punctuation, ",") {
			p.advance()
		}
		p.skipSeparators()
	}
	p.expect(token.Punctuation, "}")
	return obj
}
