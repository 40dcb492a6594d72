package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/money"
)

func TestEstimateSizeP2PKHInput(t *testing.T) {
	key := testKey(t)
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, keyScript(key))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000)

	tx, err := b.Build(false)
	require.NoError(t, err)

	base := cloneTransaction(tx)
	base.Inputs = nil

	size, err := b.EstimateSize(tx)
	require.NoError(t, err)
	assert.Equal(t, len(base.Bytes())+inputFixedSize+dummySigPush+dummyPubKeyPush, size)
}

func TestEstimateSizeMultisigAndP2SH(t *testing.T) {
	k1, k2, k3 := testKey(t), testKey(t), testKey(t)
	multisig := multisigScript(t, 2, k1.PubKey(), k2.PubKey(), k3.PubKey())

	msCoin := coin.NewPlain(testOutpoint(t, 0x01, 0), 20_000, multisig)

	redeem := keyScript(k1)
	p2sh := p2shLockingScript(coin.Hash160(redeem.Bytes()))
	shCoin, err := coin.NewScriptCoin(coin.NewPlain(testOutpoint(t, 0x02, 0), 20_000, p2sh), redeem)
	require.NoError(t, err)

	b := New(testOptions()).
		AddCoins(msCoin, shCoin).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 40_000)

	tx, err := b.Build(false)
	require.NoError(t, err)
	require.Len(t, tx.Inputs, 2)

	base := cloneTransaction(tx)
	base.Inputs = nil

	multisigEstimate := 1 + 2*dummySigPush
	redeemLen := len(redeem.Bytes())
	p2shEstimate := dummySigPush + dummyPubKeyPush + pushOverhead(redeemLen) + redeemLen

	size, err := b.EstimateSize(tx)
	require.NoError(t, err)
	assert.Equal(t, len(base.Bytes())+2*inputFixedSize+multisigEstimate+p2shEstimate, size)
}

func TestEstimateSizeColoredUsesBearer(t *testing.T) {
	key := testKey(t)
	idA := assetID(0xa1)
	bearer := plainCoin(t, 0x01, 0, 600, keyScript(key))
	colored := coin.NewColored(bearer, idA, 50)

	b := New(testOptions()).
		AddCoins(colored, plainCoin(t, 0x02, 0, 10_000, keyScript(key))).
		SetChange(destScript(0xc1)).
		SetColoredChange(destScript(0xcc)).
		SendAsset(destScript(0xd1), money.Asset{ID: idA, Quantity: 50})

	tx, err := b.Build(false)
	require.NoError(t, err)

	base := cloneTransaction(tx)
	base.Inputs = nil

	size, err := b.EstimateSize(tx)
	require.NoError(t, err)
	perInput := inputFixedSize + dummySigPush + dummyPubKeyPush
	assert.Equal(t, len(base.Bytes())+len(tx.Inputs)*perInput, size, "colored input estimated as its bearer")
}

func TestEstimateSizeUnknownCoinFails(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000)

	tx, err := b.Build(false)
	require.NoError(t, err)

	stranger := New(testOptions())
	_, err = stranger.EstimateSize(tx)
	assert.ErrorIs(t, err, ErrCoinNotFound)
}

func TestEstimateFeesRounding(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000)

	tx, err := b.Build(false)
	require.NoError(t, err)

	size, err := b.EstimateSize(tx)
	require.NoError(t, err)

	fee, err := b.EstimateFees(tx, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(size), fee, "1000 sat/kB is one satoshi per byte")

	fee, err = b.EstimateFees(tx, 500)
	require.NoError(t, err)
	assert.Equal(t, (uint64(size)+1)/2, fee, "fees round up")
}

func TestSendEstimatedFees(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 50_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000)
	require.NoError(t, b.SendEstimatedFees(1000))

	tx, err := b.Build(false)
	require.NoError(t, err)

	fee := spentValue(t, b, tx) - outputValue(tx)
	assert.Greater(t, fee, uint64(0), "estimated fee was queued")
	assert.Less(t, fee, uint64(2_000), "fee stays in a sane range for a small transaction")
}
