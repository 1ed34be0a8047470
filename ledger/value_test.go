package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAsset(policyByte byte, name string) AssetID {
	var policy Hash28
	policy[0] = policyByte
	return AssetID{Policy: policy, Name: name}
}

func TestValueAdd(t *testing.T) {
	tokenA := testAsset(1, "tokenA")
	tokenB := testAsset(2, "tokenB")

	a := NewValue(100).WithAsset(tokenA, 5)
	b := NewValue(50).WithAsset(tokenA, 3).WithAsset(tokenB, 7)

	sum := a.Add(b)
	assert.Equal(t, uint64(150), sum.Lovelace)
	assert.Equal(t, uint64(8), sum.AssetQuantity(tokenA))
	assert.Equal(t, uint64(7), sum.AssetQuantity(tokenB))

	// Operands are unchanged.
	assert.Equal(t, uint64(5), a.AssetQuantity(tokenA))
	assert.Equal(t, uint64(0), a.AssetQuantity(tokenB))
}

func TestValueEqual(t *testing.T) {
	token := testAsset(1, "token")

	assert.True(t, NewValue(10).Equal(NewValue(10)))
	assert.False(t, NewValue(10).Equal(NewValue(11)))
	assert.True(t, NewValue(10).WithAsset(token, 2).Equal(NewValue(10).WithAsset(token, 2)))
	assert.False(t, NewValue(10).WithAsset(token, 2).Equal(NewValue(10)))
}

func TestValueLovelaceOnly(t *testing.T) {
	assert.True(t, NewValue(10).IsLovelaceOnly())
	assert.False(t, NewValue(10).WithAsset(testAsset(1, "t"), 1).IsLovelaceOnly())
}

func TestValueCBORLovelaceOnlyIsBareUint(t *testing.T) {
	data, err := MarshalCanonical(NewValue(5))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05}, data)
}

func TestValueCBORRoundTrip(t *testing.T) {
	v := NewValue(1234567).
		WithAsset(testAsset(3, "gold"), 42).
		WithAsset(testAsset(1, ""), 1)

	data, err := MarshalCanonical(v)
	require.NoError(t, err)

	var got Value
	require.NoError(t, UnmarshalCanonical(data, &got))
	assert.True(t, v.Equal(got))
}

func TestAssetIDOrdering(t *testing.T) {
	a := testAsset(1, "b")
	b := testAsset(1, "a")
	c := testAsset(2, "a")

	// Policy bytes order first, then name.
	assert.True(t, b.Less(a))
	assert.True(t, a.Less(c))
	assert.False(t, c.Less(a))
}

func TestDeltaSettlement(t *testing.T) {
	token := testAsset(1, "token")

	var d Delta
	d.AddValue(NewValue(100).WithAsset(token, 5))
	assert.False(t, d.IsSettled())

	d.SubValue(NewValue(100).WithAsset(token, 5))
	assert.True(t, d.IsSettled())
	assert.Empty(t, d.Assets)
}

func TestDeltaSurplus(t *testing.T) {
	token := testAsset(1, "token")

	var d Delta
	d.SubValue(NewValue(30).WithAsset(token, 2))

	surplus, err := d.Surplus()
	require.NoError(t, err)
	assert.Equal(t, uint64(30), surplus.Lovelace)
	assert.Equal(t, uint64(2), surplus.AssetQuantity(token))
}

func TestDeltaSurplusRejectsUnmet(t *testing.T) {
	var d Delta
	d.AddValue(NewValue(10))
	_, err := d.Surplus()
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestDeltaMintSupplies(t *testing.T) {
	token := testAsset(1, "token")

	// A demand for 5 tokens met by a mint of 5 settles exactly.
	var d Delta
	d.AddAsset(token, 5)
	d.AddAsset(token, -5)
	assert.True(t, d.IsSettled())
	assert.Empty(t, d.Assets)
}

func TestDeltaPositiveAssetsDeterministic(t *testing.T) {
	d := Delta{}
	d.AddAsset(testAsset(2, "b"), 1)
	d.AddAsset(testAsset(1, "z"), 1)
	d.AddAsset(testAsset(1, "a"), 1)
	d.AddAsset(testAsset(3, "neg"), -1)

	ids := d.PositiveAssets()
	require.Len(t, ids, 3)
	assert.Equal(t, testAsset(1, "a"), ids[0])
	assert.Equal(t, testAsset(1, "z"), ids[1])
	assert.Equal(t, testAsset(2, "b"), ids[2])
}
