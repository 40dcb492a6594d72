package builder

import (
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/coloredcoins/libcolored-go/coin"
)

const (
	// inputFixedSize is an input minus its unlocking script: outpoint 36,
	// sequence 4, script length prefix 1.
	inputFixedSize = 41

	// dummySigPush is a pushed worst-case DER signature plus sighash flag.
	dummySigPush = 1 + 73

	// dummyPubKeyPush is a pushed compressed public key.
	dummyPubKeyPush = 1 + 33
)

// EstimateSize measures an unsigned transaction: the serialization with
// inputs cleared, plus a per-input estimate built from template-specific
// dummy signatures. Colored inputs are estimated as their bearer coin;
// unknown templates fall back to the output script's own length.
func (b *Builder) EstimateSize(tx *transaction.Transaction) (int, error) {
	base := cloneTransaction(tx)
	base.Inputs = nil
	size := len(base.Bytes())

	for i, in := range tx.Inputs {
		op := inputOutpoint(in)
		c := b.findCoin(op)
		if c == nil {
			return 0, &CoinNotFoundError{Outpoint: op, InputIndex: i}
		}
		size += inputFixedSize + b.unlockingScriptSize(c)
	}
	return size, nil
}

// EstimateFees estimates the fee for tx at rate satoshis per kilobyte,
// rounding up.
func (b *Builder) EstimateFees(tx *transaction.Transaction, rate uint64) (uint64, error) {
	size, err := b.EstimateSize(tx)
	if err != nil {
		return 0, err
	}
	return (uint64(size)*rate + 999) / 1000, nil
}

func (b *Builder) unlockingScriptSize(c coin.Coin) int {
	return b.templateUnlockingSize(c, c.LockingScript())
}

func (b *Builder) templateUnlockingSize(c coin.Coin, lock *script.Script) int {
	info := classifyScript(lock)
	switch info.kind {
	case templateP2PK:
		return dummySigPush
	case templateP2PKH:
		return dummySigPush + dummyPubKeyPush
	case templateMultisig:
		return 1 + info.required*dummySigPush
	case templateP2SH:
		redeem := b.redeemFor(c, nil, info.scriptHash)
		if redeem == nil {
			return len(lock.Bytes())
		}
		n := len(redeem.Bytes())
		return b.templateUnlockingSize(c, redeem) + pushOverhead(n) + n
	default:
		return len(lock.Bytes())
	}
}
