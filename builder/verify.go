package builder

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/money"
	"github.com/coloredcoins/libcolored-go/policy"
)

// Verify checks tx against the miner and standard policies. The returned
// list is empty for a valid transaction; violations are collected, never
// raised. A spent output the session cannot resolve is an error, not a
// violation.
func (b *Builder) Verify(tx *transaction.Transaction) ([]policy.Violation, error) {
	return b.verify(tx, nil)
}

// VerifyFees additionally requires the transaction's fee to match the
// expected amount. With dust prevention on, absorbed sub-dust change
// widens the tolerance to twice the native dust threshold.
func (b *Builder) VerifyFees(tx *transaction.Transaction, expected money.Native) ([]policy.Violation, error) {
	return b.verify(tx, &expected)
}

// VerifyFeeRate derives the expected fee from the transaction's estimated
// size at rate satoshis per kilobyte.
func (b *Builder) VerifyFeeRate(tx *transaction.Transaction, rate uint64) ([]policy.Violation, error) {
	fee, err := b.EstimateFees(tx, rate)
	if err != nil {
		return nil, err
	}
	expected := money.Native(fee)
	return b.verify(tx, &expected)
}

func (b *Builder) verify(tx *transaction.Transaction, expected *money.Native) ([]policy.Violation, error) {
	spent := make([]coin.Coin, len(tx.Inputs))
	for i, in := range tx.Inputs {
		op := inputOutpoint(in)
		c := b.findCoin(op)
		if c == nil {
			return nil, &CoinNotFoundError{Outpoint: op, InputIndex: i}
		}
		spent[i] = c
	}

	var violations []policy.Violation
	violations = append(violations, b.MinerPolicy.Check(tx, spent)...)
	violations = append(violations, b.StandardPolicy.Check(tx, spent)...)

	if expected != nil {
		var in, out money.Native
		for _, c := range spent {
			in += money.Native(c.Value())
		}
		for _, o := range tx.Outputs {
			out += money.Native(o.Satoshis)
		}
		fee := in - out

		var margin money.Native
		if b.opts.DustPrevention {
			margin = 2 * money.Native(b.nativeDust())
		}
		diff := fee - *expected
		if diff < 0 {
			diff = -diff
		}
		if diff > margin {
			violations = append(violations, policy.Violation{
				Rule:   "fee-mismatch",
				Detail: fmt.Sprintf("fee %d, expected %d (tolerance %d)", fee, *expected, margin),
			})
		}
	}

	return violations, nil
}
