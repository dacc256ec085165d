// Package compiler performs bramble's single-pass compilation from
// syntax tree to bytecode chunk.
//
// Compared to the teacher's compiler — one flat instruction slice, a
// single symbols map, no jump patching, no nested functions — this
// compiler tracks a stack of (chunk, scope) pairs, one per function
// body being compiled, and backpatches forward jumps once their target
// is known (spec.md §4.3 "Control flow uses forward-patched jumps").
//
// Every node type follows one invariant throughout: compiling an
// Expression leaves exactly one more value on the operand stack than
// before it ran; compiling a Statement leaves the stack exactly as it
// found it. Enforcing this uniformly is what lets the VM's "operand
// stack is empty after the final opcode" property (spec §8) hold
// without special-casing individual node kinds.
package compiler

import (
	"strconv"

	"github.com/kristofer/bramble/pkg/ast"
	"github.com/kristofer/bramble/pkg/bytecode"
	"github.com/kristofer/bramble/pkg/langerr"
	"github.com/kristofer/bramble/pkg/symtab"
)

// PackageResolver answers whether an imported package is known, letting
// the compiler reject an `import` statement at compile time rather than
// deferring to a runtime host lookup (spec.md §1 treats the package
// registry as an external collaborator; this is the compiler's only
// contact point with it).
type PackageResolver interface {
	HasPackage(path string) bool
}

// Compiler performs a single-pass compile of one Program into one
// top-level Chunk, with nested Chunks for each function, event handler,
// and event condition compiled along the way.
type Compiler struct {
	chunk      *bytecode.Chunk
	chunkStack []*bytecode.Chunk

	scope      *symtab.Table // non-nil only while compiling inside a function body
	scopeStack []*symtab.Table

	// scopeBases records, per live *symtab.Table, the frame-slot offset its
	// own slot-0 maps to. A symtab.Table numbers its own slots from 0 no
	// matter how deeply nested it is (see pkg/symtab's doc comment); a
	// function's call frame, though, needs one flat locals array across
	// every nested if/while/for block, so the compiler — not symtab —
	// tracks each scope's cumulative base and adds it in when emitting a
	// load/store.
	scopeBases map[*symtab.Table]int
	baseStack  []map[*symtab.Table]int

	globals *symtab.Table

	diags    *langerr.Collector
	resolver PackageResolver
}

// New creates a Compiler. onError may be nil; resolver may be nil (every
// import is then accepted unconditionally).
func New(onError langerr.Callback, resolver PackageResolver) *Compiler {
	return &Compiler{
		globals:  symtab.New(),
		diags:    langerr.NewCollector(onError),
		resolver: resolver,
	}
}

// Errors returns every diagnostic recorded during compilation.
func (c *Compiler) Errors() []*langerr.Diagnostic { return c.diags.Items() }

func (c *Compiler) errorf(line int, format string, args ...any) {
	c.diags.Add(langerr.Semantic, line, 0, format, args...)
}

// Compile compiles prog into a top-level Chunk. ok is false when any
// semantic error was recorded, and then no chunk is returned (nil).
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.Chunk, bool) {
	c.chunk = bytecode.NewChunk()
	for _, stmt := range prog.Statements {
		c.compileStatement(stmt)
	}
	if c.diags.HasErrors() {
		return nil, false
	}
	return c.chunk, true
}

func (c *Compiler) inFunction() bool { return c.scope != nil }

// pushFunction switches compilation into a fresh chunk and a fresh,
// parent-less local scope (no closures: a function body never resolves
// names from an enclosing function's locals, only its own params/locals
// or the global scope — see SPEC_FULL.md open-question decision on
// upvalues).
func (c *Compiler) pushFunction() {
	c.chunkStack = append(c.chunkStack, c.chunk)
	c.scopeStack = append(c.scopeStack, c.scope)
	c.baseStack = append(c.baseStack, c.scopeBases)
	c.chunk = bytecode.NewChunk()
	c.scope = symtab.New()
	c.scopeBases = map[*symtab.Table]int{c.scope: 0}
}

func (c *Compiler) popFunction() *bytecode.Chunk {
	body := c.chunk
	c.chunk = c.chunkStack[len(c.chunkStack)-1]
	c.chunkStack = c.chunkStack[:len(c.chunkStack)-1]
	c.scope = c.scopeStack[len(c.scopeStack)-1]
	c.scopeStack = c.scopeStack[:len(c.scopeStack)-1]
	c.scopeBases = c.baseStack[len(c.baseStack)-1]
	c.baseStack = c.baseStack[:len(c.baseStack)-1]
	return body
}

// pushBlockScope opens a nested block scope for shadowing within the
// current function; at top level (no enclosing function) blocks don't
// get their own scope since top-level bindings are all globals.
func (c *Compiler) pushBlockScope() {
	if !c.inFunction() {
		return
	}
	base := c.scopeBases[c.scope] + c.scope.Count()
	c.scope = symtab.NewChild(c.scope)
	c.scopeBases[c.scope] = base
}

func (c *Compiler) popBlockScope() {
	if c.inFunction() {
		c.scope = c.scope.Parent()
	}
}

// frameSlot resolves name to its absolute call-frame slot by walking
// depth scopes up from the current one to find the table that actually
// owns the symbol, then adding that table's recorded base.
func (c *Compiler) frameSlot(sym symtab.Symbol, depth int) int {
	owner := c.scope
	for i := 0; i < depth; i++ {
		owner = owner.Parent()
	}
	return c.scopeBases[owner] + sym.Slot
}

// ---- Statements ----

func (c *Compiler) compileStatement(stmt ast.Statement) {
	line, _ := stmt.Pos()
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		c.compileExpression(s.Expression)
		c.chunk.Emit(bytecode.OpPop, line)
	case *ast.VariableDecl:
		c.compileVariableDecl(s)
	case *ast.Block:
		c.pushBlockScope()
		for _, inner := range s.Statements {
			c.compileStatement(inner)
		}
		c.popBlockScope()
	case *ast.If:
		c.compileIf(s)
	case *ast.While:
		c.compileWhile(s)
	case *ast.For:
		c.compileFor(s)
	case *ast.SwitchStatement:
		c.compileSwitch(s)
	case *ast.FunctionDef:
		c.compileFunctionDef(s)
	case *ast.Return:
		if s.Value != nil {
			c.compileExpression(s.Value)
		} else {
			c.emitLoadNull(line)
		}
		c.chunk.Emit(bytecode.OpReturn, line)
	case *ast.NakedIterator:
		c.compileNakedIterator(s)
	case *ast.EventBinding:
		c.compileEventBinding(s)
	case *ast.EventBroadcast:
		c.compileEventBroadcast(s)
	case *ast.Import:
		c.compileImport(s)
	default:
		c.errorf(line, "unhandled statement type %T", stmt)
	}
}

func (c *Compiler) compileVariableDecl(v *ast.VariableDecl) {
	line, _ := v.Pos()
	c.compileExpression(v.Initializer)

	if v.Kind == ast.DeclImplicit {
		if sym, ok, depth := c.resolveLocalOnly(v.Name); ok {
			if !sym.Mutable {
				c.errorf(line, "cannot assign to immutable binding %q", v.Name)
			}
			c.emitStoreResolved(sym, depth, line)
			c.chunk.Emit(bytecode.OpPop, line)
			return
		}
		if !c.inFunction() {
			if sym, ok, _ := c.globals.Resolve(v.Name); ok {
				if !sym.Mutable {
					c.errorf(line, "cannot assign to immutable binding %q", v.Name)
				}
				c.emitStoreGlobal(v.Name, line)
				c.chunk.Emit(bytecode.OpPop, line)
				return
			}
		}
	}

	mutable := v.Mutable
	if c.inFunction() {
		sym := c.scope.Define(v.Name, mutable)
		c.emitStoreResolved(sym, 0, line)
	} else {
		c.globals.Define(v.Name, mutable)
		c.emitStoreGlobal(v.Name, line)
	}
	c.chunk.Emit(bytecode.OpPop, line)
}

// resolveLocalOnly resolves name against the current function's block
// scope chain only (never the global table), used to detect re-assignment
// via the implicit `name: value` form before falling back to a fresh
// declaration.
func (c *Compiler) resolveLocalOnly(name string) (symtab.Symbol, bool, int) {
	if !c.inFunction() {
		return symtab.Symbol{}, false, 0
	}
	return c.scope.Resolve(name)
}

func (c *Compiler) compileIf(s *ast.If) {
	line, _ := s.Pos()
	c.compileExpression(s.Condition)
	thenJump := c.chunk.EmitWide(bytecode.OpJumpIfFalse, 0, line)
	c.chunk.Emit(bytecode.OpPop, line)
	c.compileStatement(s.Then)

	elseJump := c.chunk.EmitWide(bytecode.OpJump, 0, line)
	c.chunk.PatchJump(thenJump)
	c.chunk.Emit(bytecode.OpPop, line)

	if s.Else != nil {
		c.compileStatement(s.Else)
	}
	c.chunk.PatchJump(elseJump)
}

func (c *Compiler) compileWhile(s *ast.While) {
	line, _ := s.Pos()
	loopStart := len(c.chunk.Code)
	c.compileExpression(s.Condition)
	exitJump := c.chunk.EmitWide(bytecode.OpJumpIfFalse, 0, line)
	c.chunk.Emit(bytecode.OpPop, line)
	c.compileStatement(s.Body)
	c.emitLoop(loopStart, line)
	c.chunk.PatchJump(exitJump)
	c.chunk.Emit(bytecode.OpPop, line)
}

func (c *Compiler) compileFor(s *ast.For) {
	line, _ := s.Pos()
	c.pushBlockScope()
	if s.Init != nil {
		c.compileStatement(s.Init)
	}

	loopStart := len(c.chunk.Code)
	var exitJump int
	hasCond := s.Condition != nil
	if hasCond {
		c.compileExpression(s.Condition)
		exitJump = c.chunk.EmitWide(bytecode.OpJumpIfFalse, 0, line)
		c.chunk.Emit(bytecode.OpPop, line)
	}

	c.compileStatement(s.Body)
	if s.Increment != nil {
		c.compileStatement(s.Increment)
	}
	c.emitLoop(loopStart, line)

	if hasCond {
		c.chunk.PatchJump(exitJump)
		c.chunk.Emit(bytecode.OpPop, line)
	}
	c.popBlockScope()
}

// compileNakedIterator lowers `name: start..end` plus its body to an
// induction variable loop (spec.md §4.3 "Naked iterators over a range").
func (c *Compiler) compileNakedIterator(s *ast.NakedIterator) {
	line, _ := s.Pos()
	rng := s.Iterable.(*ast.Range)

	c.pushBlockScope()
	c.compileExpression(rng.Start)
	var sym symtab.Symbol
	if c.inFunction() {
		sym = c.scope.Define(s.Variable, true)
		c.emitStoreResolved(sym, 0, line)
	} else {
		c.globals.Define(s.Variable, true)
		c.emitStoreGlobal(s.Variable, line)
	}
	c.chunk.Emit(bytecode.OpPop, line)

	loopStart := len(c.chunk.Code)
	c.emitLoadResolvedOrGlobal(s.Variable, line)
	c.compileExpression(rng.End)
	c.chunk.Emit(bytecode.OpLt, line)
	exitJump := c.chunk.EmitWide(bytecode.OpJumpIfFalse, 0, line)
	c.chunk.Emit(bytecode.OpPop, line)

	c.compileStatement(s.Body)

	c.emitLoadResolvedOrGlobal(s.Variable, line)
	c.chunk.EmitByte(bytecode.OpLoadConst, byte(c.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstNumber, Number: 1})), line)
	c.chunk.Emit(bytecode.OpAdd, line)
	if c.inFunction() {
		c.emitStoreResolved(sym, 0, line)
	} else {
		c.emitStoreGlobal(s.Variable, line)
	}
	c.chunk.Emit(bytecode.OpPop, line)

	c.emitLoop(loopStart, line)
	c.chunk.PatchJump(exitJump)
	c.chunk.Emit(bytecode.OpPop, line)
	c.popBlockScope()
}

func (c *Compiler) compileSwitch(s *ast.SwitchStatement) {
	line, _ := s.Pos()
	var endJumps []int
	for _, cs := range s.Cases {
		c.compileExpression(s.Discriminant)
		c.compileExpression(cs.Value)
		c.chunk.Emit(bytecode.OpEq, line)
		nextJump := c.chunk.EmitWide(bytecode.OpJumpIfFalse, 0, line)
		c.chunk.Emit(bytecode.OpPop, line)
		c.compileStatement(cs.Body)
		endJumps = append(endJumps, c.chunk.EmitWide(bytecode.OpJump, 0, line))
		c.chunk.PatchJump(nextJump)
		c.chunk.Emit(bytecode.OpPop, line)
	}
	if s.Default != nil {
		c.compileStatement(s.Default)
	}
	for _, j := range endJumps {
		c.chunk.PatchJump(j)
	}
}

func (c *Compiler) compileFunctionDef(s *ast.FunctionDef) {
	line, _ := s.Pos()
	c.globals.DefineFunction(s.Name)
	fnConst := c.compileFunctionValue(s.Name, s.Params, s.Body)
	c.chunk.EmitByte(bytecode.OpLoadConst, byte(fnConst), line)
	c.emitStoreGlobal(s.Name, line)
	c.chunk.Emit(bytecode.OpPop, line)
}

// compileFunctionValue compiles params+body into a fresh chunk and
// returns its index as a ConstFunction constant in the enclosing chunk.
func (c *Compiler) compileFunctionValue(name string, params []string, body *ast.Block) int {
	c.pushFunction()
	for _, p := range params {
		c.scope.Define(p, true)
	}
	for _, stmt := range body.Statements {
		c.compileStatement(stmt)
	}
	line, _ := body.Pos()
	c.emitLoadNull(line)
	c.chunk.Emit(bytecode.OpReturn, line)
	fnChunk := c.popFunction()

	return c.chunk.AddConstant(bytecode.Constant{
		Kind: bytecode.ConstFunction, FunctionName: name, FunctionParams: params, FunctionChunk: fnChunk,
	})
}

func (c *Compiler) compileImport(s *ast.Import) {
	line, _ := s.Pos()
	if c.resolver != nil && !c.resolver.HasPackage(s.Path) {
		c.errorf(line, "unknown package %q", s.Path)
	}
}

// ---- Events ----

func (c *Compiler) compileEventBinding(s *ast.EventBinding) {
	line, _ := s.Pos()
	handlerConst := c.compileFunctionValue(s.Handler, s.Params, s.Body)

	conditionChunk := -1
	if s.Condition != nil {
		conditionChunk = c.compileConditionValue(s.Condition)
	}

	filters := c.compileFilters(s.Filters)

	desc := bytecode.EventBindingDescriptor{
		EventName: s.Event, ConditionChunk: conditionChunk, Filters: filters, HandlerConst: handlerConst,
	}
	idx := len(c.chunk.EventBindings)
	c.chunk.EventBindings = append(c.chunk.EventBindings, desc)
	c.chunk.EmitByte(bytecode.OpBindEvent, byte(idx), line)
}

func (c *Compiler) compileEventBroadcast(s *ast.EventBroadcast) {
	line, _ := s.Pos()
	conditionChunk := -1
	if s.Condition != nil {
		conditionChunk = c.compileConditionValue(s.Condition)
	}
	filters := c.compileFilters(s.Filters)

	names := make([]string, len(s.Args))
	for i, arg := range s.Args {
		names[i] = arg.Key
		c.compileExpression(arg.Value)
	}

	desc := bytecode.EventBroadcastDescriptor{
		EventName: s.Event, ConditionChunk: conditionChunk, Filters: filters, ArgNames: names,
	}
	idx := len(c.chunk.EventBroadcasts)
	c.chunk.EventBroadcasts = append(c.chunk.EventBroadcasts, desc)
	c.chunk.EmitByte(bytecode.OpBroadcastEvent, byte(idx), line)
}

// compileConditionValue compiles a bare expression as a zero-argument
// function (`return <expr>`), letting OpBindEvent/OpBroadcastEvent share
// the VM's ordinary function-call machinery to evaluate it; the VM binds
// the event's parameters as temporary globals while the condition runs.
func (c *Compiler) compileConditionValue(expr ast.Expression) int {
	line, _ := expr.Pos()
	body := &ast.Block{NodeBase: ast.Pos(line, 0), Statements: []ast.Statement{
		&ast.Return{NodeBase: ast.Pos(line, 0), Value: expr},
	}}
	return c.compileFunctionValue("<condition>", nil, body)
}

// compileFilters lowers each FilterExpression's optional value. A
// literal lowers straight to a constant. Anything else — `near(obj)`,
// `target(obj)` — lowers to a zero-argument function constant, the same trick compileConditionValue
// uses for condition expressions, and is evaluated once by the VM when
// the binding opcode runs (see vm.convertFilters), not re-evaluated per
// dispatch.
//
// `priority`'s level is the one bare word in the grammar that isn't a
// reference to another binding (spec's own worked example spells it
// priority(high), unquoted): resolving it as a variable lookup would
// make every program depend on a global named high/low/medium existing,
// so a bare identifier there lowers to its name as a string instead.
func (c *Compiler) compileFilters(filters []*ast.FilterExpression) []bytecode.CompiledFilter {
	out := make([]bytecode.CompiledFilter, 0, len(filters))
	for _, f := range filters {
		cf := bytecode.CompiledFilter{Tag: f.Tag, Comparison: f.Comparison, ValueConst: -1}
		if f.Value != nil {
			if f.Tag == "priority" {
				if ident, isVar := f.Value.(*ast.Variable); isVar {
					cf.ValueConst = c.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: ident.Name})
					out = append(out, cf)
					continue
				}
			}
			if lit, isLit := f.Value.(*ast.Literal); isLit {
				cf.ValueConst = c.chunk.AddConstant(literalConstant(lit))
			} else {
				cf.ValueConst = c.compileFilterValue(f.Value)
			}
		}
		out = append(out, cf)
	}
	return out
}

// compileFilterValue compiles a filter's comparison operand the same
// way compileConditionValue compiles a condition: a zero-argument
// function whose body returns the expression, let loose on the VM's
// ordinary call machinery instead of requiring a compile-time constant.
func (c *Compiler) compileFilterValue(expr ast.Expression) int {
	line, _ := expr.Pos()
	body := &ast.Block{NodeBase: ast.Pos(line, 0), Statements: []ast.Statement{
		&ast.Return{NodeBase: ast.Pos(line, 0), Value: expr},
	}}
	return c.compileFunctionValue("<filter>", nil, body)
}

// ---- Expressions ----

func (c *Compiler) compileExpression(expr ast.Expression) {
	line, _ := expr.Pos()
	switch e := expr.(type) {
	case *ast.Literal:
		c.chunk.EmitByte(bytecode.OpLoadConst, byte(c.chunk.AddConstant(literalConstant(e))), line)
	case *ast.Variable:
		c.emitLoadResolvedOrGlobal(e.Name, line)
	case *ast.BinaryOp:
		c.compileBinaryOp(e)
	case *ast.LogicalOp:
		c.compileLogicalOp(e)
	case *ast.UnaryOp:
		c.compileExpression(e.Operand)
		switch e.Operator {
		case "-":
			c.chunk.Emit(bytecode.OpNeg, line)
		case "!":
			c.chunk.Emit(bytecode.OpNot, line)
		default:
			c.errorf(line, "unknown unary operator %q", e.Operator)
		}
	case *ast.Assignment:
		c.compileExpression(e.Value)
		if sym, ok, depth := c.resolveLocalOnly(e.Name); ok {
			if !sym.Mutable {
				c.errorf(line, "cannot assign to immutable binding %q", e.Name)
			}
			c.emitStoreResolved(sym, depth, line)
			return
		}
		if sym, ok, _ := c.globals.Resolve(e.Name); ok && !sym.Mutable {
			c.errorf(line, "cannot assign to immutable binding %q", e.Name)
		}
		c.emitStoreGlobal(e.Name, line)
	case *ast.FunctionCall:
		c.compileFunctionCall(e)
	case *ast.ArrayLiteral:
		c.chunk.Emit(bytecode.OpNewArray, line)
		for _, el := range e.Elements {
			c.compileExpression(el)
			c.chunk.Emit(bytecode.OpArrayPush, line)
		}
	case *ast.IndexAccess:
		c.compileExpression(e.Collection)
		c.compileExpression(e.Index)
		c.chunk.Emit(bytecode.OpGetIndex, line)
	case *ast.IndexAssignment:
		c.compileExpression(e.Collection)
		c.compileExpression(e.Index)
		c.compileExpression(e.Value)
		c.chunk.Emit(bytecode.OpSetIndex, line)
	case *ast.ObjectLiteral:
		c.compileObjectLiteral(e)
	case *ast.PropertyAccess:
		c.compileExpression(e.Object)
		c.chunk.EmitByte(bytecode.OpGetProperty, byte(c.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: e.Property})), line)
	case *ast.PropertyAssignment:
		c.compileExpression(e.Object)
		c.compileExpression(e.Value)
		pathIdx := len(c.chunk.KeyPaths)
		c.chunk.KeyPaths = append(c.chunk.KeyPaths, e.Path)
		c.chunk.EmitByte(bytecode.OpSetNestedProperty, byte(pathIdx), line)
	case *ast.MethodCall:
		c.compileMethodCall(e)
	case *ast.Range:
		// Fallback for a Range used outside a naked iterator: represent
		// it as a two-element [start, end) array.
		c.chunk.Emit(bytecode.OpNewArray, line)
		c.compileExpression(e.Start)
		c.chunk.Emit(bytecode.OpArrayPush, line)
		c.compileExpression(e.End)
		c.chunk.Emit(bytecode.OpArrayPush, line)
	default:
		c.errorf(line, "unhandled expression type %T", expr)
	}
}

func (c *Compiler) compileBinaryOp(e *ast.BinaryOp) {
	line, _ := e.Pos()
	c.compileExpression(e.Left)
	c.compileExpression(e.Right)
	switch e.Operator {
	case "+":
		c.chunk.Emit(bytecode.OpAdd, line)
	case "-":
		c.chunk.Emit(bytecode.OpSub, line)
	case "*":
		c.chunk.Emit(bytecode.OpMul, line)
	case "/":
		c.chunk.Emit(bytecode.OpDiv, line)
	case "%":
		c.chunk.Emit(bytecode.OpMod, line)
	case "==":
		c.chunk.Emit(bytecode.OpEq, line)
	case "!=":
		c.chunk.Emit(bytecode.OpNeq, line)
	case "<":
		c.chunk.Emit(bytecode.OpLt, line)
	case ">":
		c.chunk.Emit(bytecode.OpGt, line)
	case "<=":
		c.chunk.Emit(bytecode.OpLte, line)
	case ">=":
		c.chunk.Emit(bytecode.OpGte, line)
	default:
		c.errorf(line, "unknown binary operator %q", e.Operator)
	}
}

// compileLogicalOp compiles && and || as branch-and-pop sequences rather
// than eager And/Or opcodes, per spec.md's redesign note: "this is both
// simpler and matches the value-preserving semantics above" — the
// short-circuited operand's truthy/falsy value is what remains on the
// stack, not a coerced boolean.
func (c *Compiler) compileLogicalOp(e *ast.LogicalOp) {
	line, _ := e.Pos()
	c.compileExpression(e.Left)
	if e.Operator == "&&" {
		endJump := c.chunk.EmitWide(bytecode.OpJumpIfFalse, 0, line)
		c.chunk.Emit(bytecode.OpPop, line)
		c.compileExpression(e.Right)
		c.chunk.PatchJump(endJump)
		return
	}
	endJump := c.chunk.EmitWide(bytecode.OpJumpIfTrue, 0, line)
	c.chunk.Emit(bytecode.OpPop, line)
	c.compileExpression(e.Right)
	c.chunk.PatchJump(endJump)
}

func (c *Compiler) compileFunctionCall(e *ast.FunctionCall) {
	line, _ := e.Pos()
	switch e.Callee {
	case "print":
		if len(e.Args) == 1 {
			c.compileExpression(e.Args[0])
			c.chunk.Emit(bytecode.OpPrint, line)
			return
		}
	case "toString":
		if len(e.Args) == 1 {
			c.compileExpression(e.Args[0])
			c.chunk.Emit(bytecode.OpToString, line)
			return
		}
	}

	c.emitLoadResolvedOrGlobal(e.Callee, line)
	for _, arg := range e.Args {
		c.compileExpression(arg)
	}
	c.chunk.EmitByte(bytecode.OpCall, byte(len(e.Args)), line)
}

func (c *Compiler) compileMethodCall(e *ast.MethodCall) {
	line, _ := e.Pos()
	c.compileExpression(e.Object)
	c.chunk.Emit(bytecode.OpDup, line)
	c.chunk.EmitByte(bytecode.OpGetProperty, byte(c.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: e.Method})), line)
	for _, arg := range e.Args {
		c.compileExpression(arg)
	}
	c.chunk.EmitByte(bytecode.OpCallMethod, byte(len(e.Args)), line)
}

// compileObjectLiteral: NewObject, then mixins left to right via
// CopyProperties, then explicit properties — mixins first so explicit
// keys always win on conflict (spec.md §4.3).
func (c *Compiler) compileObjectLiteral(e *ast.ObjectLiteral) {
	line, _ := e.Pos()
	c.chunk.Emit(bytecode.OpNewObject, line)
	for _, mixin := range e.Mixins {
		c.emitLoadResolvedOrGlobal(mixin, line)
		c.chunk.Emit(bytecode.OpCopyProperties, line)
	}
	for _, prop := range e.Properties {
		c.compileExpression(prop.Value)
		c.chunk.EmitByte(bytecode.OpSetProperty, byte(c.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: prop.Key})), line)
	}
}

// ---- Variable load/store helpers ----

func (c *Compiler) emitLoadResolvedOrGlobal(name string, line int) {
	if c.inFunction() {
		if sym, ok, depth := c.scope.Resolve(name); ok {
			c.chunk.EmitByte(bytecode.OpLoadVar, byte(c.frameSlot(sym, depth)), line)
			return
		}
	}
	c.chunk.EmitByte(bytecode.OpLoadGlobal, byte(c.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: name})), line)
}

// emitStoreResolved emits a store to a local slot, flattening sym's
// scope-relative slot to an absolute frame slot via frameSlot. StoreVar
// pops the stack's top value, writes it to the slot, then pushes it back
// — every assignment is an expression that evaluates to the value it
// stored (ast.Assignment), so statement-level callers emit their own
// trailing Pop instead of this helper taking on two shapes.
func (c *Compiler) emitStoreResolved(sym symtab.Symbol, depth int, line int) {
	c.chunk.EmitByte(bytecode.OpStoreVar, byte(c.frameSlot(sym, depth)), line)
}

func (c *Compiler) emitStoreGlobal(name string, line int) {
	c.chunk.EmitByte(bytecode.OpStoreGlobal, byte(c.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstString, Str: name})), line)
}

func (c *Compiler) emitLoadNull(line int) {
	c.chunk.EmitByte(bytecode.OpLoadConst, byte(c.chunk.AddConstant(bytecode.Constant{Kind: bytecode.ConstNull})), line)
}

func (c *Compiler) emitLoop(start, line int) {
	offset := len(c.chunk.Code) + 3 - start
	c.chunk.EmitWide(bytecode.OpLoop, uint16(offset), line)
}

func literalConstant(lit *ast.Literal) bytecode.Constant {
	switch lit.Kind {
	case ast.LiteralNumber:
		n, _ := strconv.ParseFloat(lit.Lexeme, 64)
		return bytecode.Constant{Kind: bytecode.ConstNumber, Number: n}
	case ast.LiteralString:
		return bytecode.Constant{Kind: bytecode.ConstString, Str: lit.Lexeme}
	case ast.LiteralBoolean:
		return bytecode.Constant{Kind: bytecode.ConstBoolean, Boolean: lit.Lexeme == "true"}
	default:
		return bytecode.Constant{Kind: bytecode.ConstNull}
	}
}
