package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineAssignsSequentialSlots(t *testing.T) {
	tab := New()
	a := tab.Define("a", true)
	b := tab.Define("b", false)
	assert.Equal(t, 0, a.Slot)
	assert.Equal(t, 1, b.Slot)
	assert.Equal(t, 2, tab.Count())
}

func TestResolveFindsMostRecentShadow(t *testing.T) {
	tab := New()
	tab.Define("x", true)
	tab.Define("x", false) // shadow in the same scope

	sym, ok, depth := tab.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, 0, depth)
	assert.Equal(t, 1, sym.Slot)
	assert.False(t, sym.Mutable)
}

func TestResolveWalksParentChain(t *testing.T) {
	root := New()
	root.Define("outer", true)
	child := NewChild(root)
	child.Define("inner", true)

	sym, ok, depth := child.Resolve("outer")
	require.True(t, ok)
	assert.Equal(t, 1, depth)
	assert.Equal(t, 0, sym.Slot)

	_, ok, _ = child.Resolve("missing")
	assert.False(t, ok)
}

func TestDefineFunctionIsImmutable(t *testing.T) {
	tab := New()
	sym := tab.DefineFunction("add")
	assert.True(t, sym.IsFunction)
	assert.False(t, sym.Mutable)
}

func TestLocalNamesPreservesDeclarationOrder(t *testing.T) {
	tab := New()
	tab.Define("a", true)
	tab.Define("b", true)
	tab.Define("c", true)
	assert.Equal(t, []string{"a", "b", "c"}, tab.LocalNames())
}
