package builder

import (
	"testing"

	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCleanTransaction(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000).
		SendFees(1_000)

	tx, err := b.Build(false)
	require.NoError(t, err)

	violations, err := b.VerifyFees(tx, 1_000)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestVerifyFeeMismatch(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000).
		SendFees(1_000)

	tx, err := b.Build(false)
	require.NoError(t, err)

	violations, err := b.VerifyFees(tx, 5_000)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "fee-mismatch", violations[0].Rule)
}

func TestVerifyFeeToleranceWithDustPrevention(t *testing.T) {
	// 400 satoshis of absorbed sub-dust change make the real fee 400; with
	// dust prevention on the tolerance is two dust units, so an expected
	// fee of zero still verifies.
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 5_400, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000)

	tx, err := b.Build(false)
	require.NoError(t, err)

	violations, err := b.VerifyFees(tx, 0)
	require.NoError(t, err)
	assert.Empty(t, violations)

	// With dust prevention off the margin collapses to zero.
	opts := testOptions()
	opts.DustPrevention = false
	strict := New(opts).AddCoins(plainCoin(t, 0x01, 0, 5_400, destScript(0x0a)))
	violations, err = strict.VerifyFees(tx, 0)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "fee-mismatch", violations[0].Rule)
}

func TestVerifyCollectsPolicyViolations(t *testing.T) {
	// A hand-built transaction paying a dust output.
	tx := transaction.NewTransaction()
	c := plainCoin(t, 0x01, 0, 10_000, destScript(0x0a))
	op := c.Outpoint()
	txid := op.TxID
	tx.AddInput(&transaction.TransactionInput{
		SourceTXID:       &txid,
		SourceTxOutIndex: op.Vout,
		SequenceNumber:   transaction.DefaultSequenceNumber,
	})
	tx.AddOutput(&transaction.TransactionOutput{Satoshis: 50, LockingScript: destScript(0xd1)})

	b := New(testOptions()).AddCoins(c)
	violations, err := b.Verify(tx)
	require.NoError(t, err)

	found := false
	for _, v := range violations {
		if v.Rule == "dust" {
			found = true
		}
	}
	assert.True(t, found, "dust output reported as a policy violation")
}

func TestVerifyUnknownCoinErrors(t *testing.T) {
	tx := transaction.NewTransaction()
	op := testOutpoint(t, 0x42, 0)
	txid := op.TxID
	tx.AddInput(&transaction.TransactionInput{
		SourceTXID:       &txid,
		SourceTxOutIndex: 0,
		SequenceNumber:   transaction.DefaultSequenceNumber,
	})

	_, err := New(testOptions()).Verify(tx)
	assert.ErrorIs(t, err, ErrCoinNotFound)
}

func TestVerifyFeeRate(t *testing.T) {
	b := New(testOptions()).
		AddCoins(plainCoin(t, 0x01, 0, 50_000, destScript(0x0a))).
		SetChange(destScript(0xc1)).
		Send(destScript(0xd1), 5_000)
	require.NoError(t, b.SendEstimatedFees(1000))

	tx, err := b.Build(false)
	require.NoError(t, err)

	violations, err := b.VerifyFeeRate(tx, 1000)
	require.NoError(t, err)
	assert.Empty(t, violations, "fee estimated at the same rate verifies")
}
