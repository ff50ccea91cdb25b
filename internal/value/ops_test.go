package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmeticPromotion(t *testing.T) {
	c := NewCache()

	div, err := Div(Int(10), Dec(2.5))
	require.NoError(t, err)
	assert.Equal(t, Decimal, div.Tag)
	assert.Equal(t, 4.0, div.Dec)

	div2, err := Div(Int(10), Int(3))
	require.NoError(t, err)
	assert.Equal(t, Integer, div2.Tag)
	assert.Equal(t, int32(3), div2.Int)

	a := Str(c.Pop("a "))
	b := Str(c.Pop("b"))
	concat, err := Add(c, a, b, nil)
	require.NoError(t, err)
	assert.Equal(t, "a b", c.Get(concat.Idx))

	mixed, err := Add(c, Int(10), Str(c.Pop("x")), nil)
	require.NoError(t, err)
	assert.Equal(t, "10x", c.Get(mixed.Idx))
}

func TestBitNotComplementsRatherThanNoOp(t *testing.T) {
	r, err := BitNot(Int(0))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), r.Int)

	r2, err := BitNot(Int(5))
	require.NoError(t, err)
	assert.Equal(t, int32(^int32(5)), r2.Int)
}

func TestDivisionByZeroFails(t *testing.T) {
	_, err := Div(Int(1), Int(0))
	assert.Error(t, err)
}

func TestTruthiness(t *testing.T) {
	assert.False(t, IsTrue(Nil()))
	assert.False(t, IsTrue(Int(0)))
	assert.True(t, IsTrue(Int(1)))
	assert.True(t, IsTrue(Str(0)))
}

func TestStringCacheTemporaryLifecycle(t *testing.T) {
	c := NewCache()
	idx := c.Pop("hello")
	assert.Equal(t, "hello", c.Get(idx))
	c.ClearTemporary()
	// Promoted (ref>0) strings must survive clearTemporary.
	persisted := c.PopPersistent("kept")
	c.ClearTemporary()
	assert.Equal(t, "kept", c.Get(persisted))
}

func TestFindStringContentAddressable(t *testing.T) {
	c := NewCache()
	idx := c.PopPersistent("shared")
	found := c.FindString("shared")
	assert.Equal(t, idx, found)
	assert.Equal(t, int32(-1), c.FindString("absent"))
}
