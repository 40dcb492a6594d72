package builder

import (
	"bytes"
	"errors"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/money"
)

// testOptions is DefaultOptions pinned to a seed so builds reproduce.
func testOptions() Options {
	opts := DefaultOptions()
	opts.Seed = 1
	return opts
}

func testOutpoint(t *testing.T, fill byte, vout uint32) coin.Outpoint {
	t.Helper()
	op, err := coin.NewOutpoint(bytes.Repeat([]byte{fill}, 32), vout)
	require.NoError(t, err)
	return op
}

// destScript is an arbitrary P2PKH destination.
func destScript(fill byte) *script.Script {
	return p2pkhLockingScript(bytes.Repeat([]byte{fill}, 20))
}

func keyScript(key *ec.PrivateKey) *script.Script {
	return p2pkhLockingScript(bsvhash.Hash160(key.PubKey().Compressed()))
}

func plainCoin(t *testing.T, fill byte, vout uint32, amount uint64, s *script.Script) *coin.Plain {
	t.Helper()
	return coin.NewPlain(testOutpoint(t, fill, vout), amount, s)
}

func testKey(t *testing.T) *ec.PrivateKey {
	t.Helper()
	key, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

// spentValue sums the values of the coins b resolves for tx's inputs.
func spentValue(t *testing.T, b *Builder, tx *transaction.Transaction) uint64 {
	t.Helper()
	var total uint64
	for i, in := range tx.Inputs {
		c := b.findCoin(inputOutpoint(in))
		require.NotNil(t, c, "input %d has no coin", i)
		total += c.Value()
	}
	return total
}

func outputValue(tx *transaction.Transaction) uint64 {
	var total uint64
	for _, o := range tx.Outputs {
		total += o.Satoshis
	}
	return total
}

func TestBuildExactMatchSelection(t *testing.T) {
	opts := testOptions()
	opts.DustPrevention = false
	dest := destScript(0xd1)

	b := New(opts).
		AddCoins(
			plainCoin(t, 0x01, 0, 1, destScript(0x0a)),
			plainCoin(t, 0x02, 0, 2, destScript(0x0a)),
			plainCoin(t, 0x03, 0, 3, destScript(0x0a)),
		).
		Send(dest, 2)

	tx, err := b.Build(false)
	require.NoError(t, err)

	require.Len(t, tx.Inputs, 1)
	require.Len(t, tx.Outputs, 1)
	assert.Equal(t, uint64(2), tx.Outputs[0].Satoshis)
	assert.Equal(t, uint64(2), spentValue(t, b, tx), "exact match selects the matching coin")
	assert.Equal(t, spentValue(t, b, tx), outputValue(tx), "zero change, zero fees")
}

func TestBuildWithChangeOutput(t *testing.T) {
	dest := destScript(0xd1)
	change := destScript(0xc1)

	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(change).
		Send(dest, 5_000)

	tx, err := b.Build(false)
	require.NoError(t, err)

	require.Len(t, tx.Inputs, 1)
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, uint64(5_000), tx.Outputs[0].Satoshis, "change placed first by the re-plan")
	assert.Equal(t, change.Bytes(), tx.Outputs[0].LockingScript.Bytes())
	assert.Equal(t, uint64(5_000), tx.Outputs[1].Satoshis)
	assert.Equal(t, dest.Bytes(), tx.Outputs[1].LockingScript.Bytes())
	assert.Equal(t, spentValue(t, b, tx), outputValue(tx))
}

func TestBuildDustChangeAbsorbedAsFee(t *testing.T) {
	dest := destScript(0xd1)

	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 5_400, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(dest, 5_000)

	tx, err := b.Build(false)
	require.NoError(t, err)

	require.Len(t, tx.Outputs, 1)
	assert.Equal(t, uint64(5_000), tx.Outputs[0].Satoshis)
	assert.Equal(t, uint64(400), spentValue(t, b, tx)-outputValue(tx), "sub-dust change becomes fee")
}

func TestDustPreventionReroutesToFees(t *testing.T) {
	dest := destScript(0xd1)
	change := destScript(0xc1)

	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 5_000, destScript(0x0a))).
		SetChange(change).
		Send(dest, 100)

	tx, err := b.Build(false)
	require.NoError(t, err)

	for _, o := range tx.Outputs {
		assert.NotEqual(t, uint64(100), o.Satoshis, "sub-dust send must not produce an output")
	}
	assert.Equal(t, uint64(100), spentValue(t, b, tx)-outputValue(tx), "rerouted amount joins fees")
}

func TestSendFeesConservation(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000).
		SendFees(1_000)

	tx, err := b.Build(false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), spentValue(t, b, tx)-outputValue(tx))
}

func TestBuildDeterministicUnderSeed(t *testing.T) {
	build := func() []byte {
		b := New(testOptions()).
			AddCoins(
				plainCoin(t, 0x01, 0, 4_000, destScript(0x0a)),
				plainCoin(t, 0x02, 0, 4_000, destScript(0x0a)),
				plainCoin(t, 0x03, 0, 4_000, destScript(0x0a)),
				plainCoin(t, 0x04, 0, 4_000, destScript(0x0a)),
			).
			SetChange(destScript(0xc1)).
			Send(destScript(0xd1), 7_000)
		tx, err := b.Build(false)
		require.NoError(t, err)
		return tx.Bytes()
	}

	assert.Equal(t, build(), build(), "same seed, coins and intents build byte-identical transactions")
}

func TestNotEnoughFundsCarriesGroupAndMissing(t *testing.T) {
	b := New(testOptions()).
		SetGroupName("funding").
		AddCoins(plainCoin(t, 0x01, 0, 100, destScript(0x0a))).
		Send(destScript(0xd1), 10_000)

	_, err := b.Build(false)
	require.ErrorIs(t, err, ErrNotEnoughFunds)

	var nef *NotEnoughFundsError
	require.True(t, errors.As(err, &nef))
	assert.Equal(t, "funding", nef.Group)
	assert.Equal(t, money.Native(9_900), nef.MissingNative)
}

func TestMissingChangeScriptFails(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		Send(destScript(0xd1), 5_000)

	_, err := b.Build(false)
	assert.ErrorIs(t, err, ErrMissingChangeScript)
}

func TestNegativeSendFails(t *testing.T) {
	b := New(testOptions()).Send(destScript(0xd1), -5)
	_, err := b.Build(false)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestSendFeesSplitAcrossGroups(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Then().
		AddCoins(plainCoin(t, 0x02, 0, 10_000, destScript(0x0b))).
		SetChange(destScript(0xc2))
	b.SendFeesSplit(1_001)

	tx, err := b.Build(false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_001), spentValue(t, b, tx)-outputValue(tx), "split shares sum to the original amount")
	require.Len(t, tx.Inputs, 2, "each group funds its own share")
}

func TestShufflePreservesIntentsAndCoins(t *testing.T) {
	dest := []*script.Script{destScript(0xd1), destScript(0xd2), destScript(0xd3)}

	b := New(testOptions()).
		AddCoins(
			plainCoin(t, 0x01, 0, 4_000, destScript(0x0a)),
			plainCoin(t, 0x02, 0, 4_000, destScript(0x0a)),
			plainCoin(t, 0x03, 0, 4_000, destScript(0x0a)),
		).
		SetChange(destScript(0xc1)).
		Send(dest[0], 1_000).
		Send(dest[1], 2_000).
		Send(dest[2], 3_000).
		Shuffle()

	tx, err := b.Build(false)
	require.NoError(t, err)

	var sent []uint64
	for _, o := range tx.Outputs {
		for _, d := range dest {
			if bytes.Equal(o.LockingScript.Bytes(), d.Bytes()) {
				sent = append(sent, o.Satoshis)
			}
		}
	}
	assert.ElementsMatch(t, []uint64{1_000, 2_000, 3_000}, sent, "shuffle reorders, never drops")
}

func TestLockTimeSetsNonFinalSequence(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		SetLockTime(650_000).
		Send(destScript(0xd1), 5_000)

	tx, err := b.Build(false)
	require.NoError(t, err)
	assert.Equal(t, uint32(650_000), tx.LockTime)
	require.NotEmpty(t, tx.Inputs)
	assert.Equal(t, uint32(0), tx.Inputs[0].SequenceNumber, "first consumed input carries the non-final sequence")
}

func TestCoverTheRestTopsUpContinuedTransaction(t *testing.T) {
	dest := destScript(0xd1)
	base := transaction.NewTransaction()
	base.AddOutput(&transaction.TransactionOutput{Satoshis: 8_000, LockingScript: dest})

	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		ContinueToBuild(base)
	require.NoError(t, b.CoverTheRest())

	tx, err := b.Build(false)
	require.NoError(t, err)

	require.Len(t, tx.Inputs, 1)
	assert.Equal(t, spentValue(t, b, tx), outputValue(tx), "deficit covered exactly, surplus returned as change")
	assert.Equal(t, uint64(8_000), tx.Outputs[0].Satoshis, "continued output kept in place")
}

func TestCoverTheRestWithoutBaseFails(t *testing.T) {
	assert.ErrorIs(t, New(testOptions()).CoverTheRest(), ErrNoBaseTransaction)
}
