package coinselect

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coloredcoins/libcolored-go/coin"
)

// testItems builds native items with synthetic outpoints, one per amount.
func testItems(t *testing.T, amounts ...int64) []Item[int64] {
	t.Helper()
	items := make([]Item[int64], len(amounts))
	for i, amt := range amounts {
		txid := bytes.Repeat([]byte{byte(i + 1)}, 32)
		h, err := chainhash.NewHash(txid)
		require.NoError(t, err)
		items[i] = Item[int64]{
			Coin:   coin.NewPlain(coin.Outpoint{TxID: *h, Vout: uint32(i)}, uint64(amt), nil),
			Amount: amt,
		}
	}
	return items
}

func amounts(items []Item[int64]) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.Amount
	}
	return out
}

func testRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestSelectExactMatch(t *testing.T) {
	sel := Select(testRNG(1), testItems(t, 1, 2, 3), 2)
	require.NotNil(t, sel)
	assert.Equal(t, []int64{2}, amounts(sel))
}

func TestSelectZeroTarget(t *testing.T) {
	sel := Select(testRNG(1), testItems(t, 1, 2, 3), 0)
	require.NotNil(t, sel)
	assert.Empty(t, sel)
}

func TestSelectBelowSumSweep(t *testing.T) {
	sel := Select(testRNG(1), testItems(t, 1, 2, 3), 6)
	require.NotNil(t, sel)
	assert.Equal(t, []int64{1, 2, 3}, amounts(sel))
}

func TestSelectSmallestOver(t *testing.T) {
	sel := Select(testRNG(1), testItems(t, 5, 10), 7)
	require.NotNil(t, sel)
	assert.Equal(t, []int64{10}, amounts(sel))
}

func TestSelectRandomizedFallback(t *testing.T) {
	sel := Select(testRNG(42), testItems(t, 4, 4, 4, 4), 7)
	require.NotNil(t, sel)

	var total int64
	for _, item := range sel {
		total += item.Amount
	}
	// The minimum reachable sum at or above 7 from fours is 8.
	assert.Equal(t, int64(8), total)
	assert.Len(t, sel, 2)
}

func TestSelectInsufficient(t *testing.T) {
	assert.Nil(t, Select(testRNG(1), testItems(t, 1, 2), 10))
	assert.Nil(t, Select[int64](testRNG(1), nil, 10))
}

func TestSelectCoversWhenPossible(t *testing.T) {
	cases := []struct {
		name    string
		amounts []int64
		target  int64
	}{
		{"single big", []int64{100}, 60},
		{"many small", []int64{10, 10, 10, 10, 10}, 35},
		{"mixed", []int64{3, 9, 27, 81}, 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel := Select(testRNG(7), testItems(t, tc.amounts...), tc.target)
			require.NotNil(t, sel)
			var total int64
			for _, item := range sel {
				total += item.Amount
			}
			assert.GreaterOrEqual(t, total, tc.target)
		})
	}
}

func TestSelectDeterministicUnderSeed(t *testing.T) {
	a := Select(testRNG(99), testItems(t, 4, 6, 9, 13, 21), 17)
	b := Select(testRNG(99), testItems(t, 4, 6, 9, 13, 21), 17)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, amounts(a), amounts(b))
}

func TestSelectAssetAmounts(t *testing.T) {
	items := []Item[uint64]{
		{Amount: 100},
		{Amount: 40},
	}
	sel := Select(testRNG(1), items, 40)
	require.NotNil(t, sel)
	assert.Equal(t, uint64(40), sel[0].Amount)
}

func TestShufflePreservesMultiset(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	shuffled := append([]int(nil), items...)
	Shuffle(testRNG(5), shuffled)

	assert.ElementsMatch(t, items, shuffled)
}
