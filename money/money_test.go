package money

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetIDRoundTrip(t *testing.T) {
	hex := strings.Repeat("ab", AssetIDLen)
	id, err := ParseAssetID(hex)
	require.NoError(t, err)
	assert.Equal(t, hex, id.String())
}

func TestParseAssetIDRejectsBadInput(t *testing.T) {
	_, err := ParseAssetID("zz")
	assert.ErrorIs(t, err, ErrInvalidAssetID)

	_, err = ParseAssetID("abcd")
	assert.ErrorIs(t, err, ErrInvalidAssetID)
}

func TestBagAddMergesQuantities(t *testing.T) {
	var a, b AssetID
	a[0], b[0] = 1, 2

	bag := Bag{Native: 500}
	bag = bag.Add(Asset{ID: a, Quantity: 10})
	bag = bag.Add(Asset{ID: b, Quantity: 20})
	bag = bag.Add(Asset{ID: a, Quantity: 5})

	require.Len(t, bag.Assets, 2)
	assert.Equal(t, uint64(15), bag.Assets[0].Quantity)
	assert.Equal(t, uint64(20), bag.Assets[1].Quantity)
}
