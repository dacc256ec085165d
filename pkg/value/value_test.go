package value

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual_TagFirst_NoCrossTypeCoercion(t *testing.T) {
	// 0 and "" and false and null must never compare equal to each other,
	// even though each is the "zero value" for its kind.
	cases := []struct {
		name string
		a, b RuntimeValue
	}{
		{"number-vs-string", Num(0), Str("")},
		{"number-vs-boolean", Num(0), Bool(false)},
		{"boolean-vs-null", Bool(false), Null()},
		{"string-vs-null", Str(""), Null()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, Equal(tc.a, tc.b))
			assert.False(t, Equal(tc.b, tc.a))
		})
	}
}

func TestEqual_SameKindSameValue(t *testing.T) {
	assert.True(t, Equal(Num(5), Num(5)))
	assert.True(t, Equal(Str("hi"), Str("hi")))
	assert.True(t, Equal(Bool(true), Bool(true)))
	assert.True(t, Equal(Null(), Null()))
	assert.False(t, Equal(Num(5), Num(6)))
}

func TestEqual_ArrayDeep(t *testing.T) {
	a := Arr(&Array{Elements: []RuntimeValue{Num(1), Str("x")}})
	b := Arr(&Array{Elements: []RuntimeValue{Num(1), Str("x")}})
	c := Arr(&Array{Elements: []RuntimeValue{Num(1), Str("y")}})

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))

	diff := cmp.Diff(a.Array.Elements, b.Array.Elements, cmpopts.EquateEmpty())
	assert.Empty(t, diff)
}

func TestObject_InsertionOrderPreserved(t *testing.T) {
	o := NewObject()
	o.Set("z", Num(1))
	o.Set("a", Num(2))
	o.Set("m", Num(3))
	assert.Equal(t, []string{"z", "a", "m"}, o.Keys())

	// Re-setting an existing key does not move it.
	o.Set("a", Num(99))
	assert.Equal(t, []string{"z", "a", "m"}, o.Keys())
	assert.Equal(t, Num(99), o.Get("a"))
}

func TestObject_MissingKeyReadsNull(t *testing.T) {
	o := NewObject()
	got := o.Get("missing")
	assert.Equal(t, Null(), got)
	assert.False(t, o.Has("missing"))
}

func TestObject_CopyIntoAppliesMixinOverwrite(t *testing.T) {
	base := NewObject()
	base.Set("hp", Num(10))
	base.Set("name", Str("creature"))

	target := NewObject()
	target.Set("hp", Num(999)) // present before mixin: mixin still overwrites

	base.CopyInto(target)

	require.True(t, target.Has("name"))
	assert.Equal(t, Num(10), target.Get("hp"))
	assert.Equal(t, Str("creature"), target.Get("name"))
	require.Len(t, target.Parents, 1)
	assert.Same(t, base, target.Parents[0])
}

func TestObject_CopyIntoRecordsEveryMixinAsAParent(t *testing.T) {
	base := NewObject()
	other := NewObject()
	target := NewObject()

	base.CopyInto(target)
	other.CopyInto(target)

	require.Len(t, target.Parents, 2)
	assert.Same(t, base, target.Parents[0])
	assert.Same(t, other, target.Parents[1])
}

func TestIsTruthy_OnlyNullAndFalseAreFalsy(t *testing.T) {
	assert.False(t, Null().IsTruthy())
	assert.False(t, Bool(false).IsTruthy())
	assert.True(t, Bool(true).IsTruthy())
	assert.True(t, Num(0).IsTruthy())
	assert.True(t, Str("").IsTruthy())
	assert.True(t, Arr(&Array{}).IsTruthy())
}

func TestString_Rendering(t *testing.T) {
	assert.Equal(t, "5", Num(5).String())
	assert.Equal(t, "2.5", Num(2.5).String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "null", Null().String())

	o := NewObject()
	o.Set("a", Num(1))
	assert.Equal(t, "{a: 1}", Obj(o).String())
}
