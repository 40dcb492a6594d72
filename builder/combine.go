package builder

import (
	"bytes"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/coloredcoins/libcolored-go/coin"
)

// CombineSignatures folds independently signed copies of the same
// transaction into one, merging the unlocking scripts input by input.
// Where the session cannot resolve a spent coin, the output script is
// deduced from either side's unlocking script.
func (b *Builder) CombineSignatures(txs ...*transaction.Transaction) (*transaction.Transaction, error) {
	if len(txs) == 0 {
		return nil, ErrNothingToCombine
	}
	result := cloneTransaction(txs[0])
	for _, other := range txs[1:] {
		for i := range result.Inputs {
			if i >= len(other.Inputs) {
				break
			}
			merged, err := b.mergeInput(result, other, i)
			if err != nil {
				return nil, err
			}
			result.Inputs[i].UnlockingScript = merged
		}
	}
	return result, nil
}

func (b *Builder) mergeInput(result, other *transaction.Transaction, i int) (*script.Script, error) {
	sa := result.Inputs[i].UnlockingScript
	sb := other.Inputs[i].UnlockingScript
	if emptyScript(sb) {
		return sa, nil
	}
	if emptyScript(sa) {
		return script.NewFromBytes(append([]byte(nil), sb.Bytes()...)), nil
	}

	op := inputOutpoint(result.Inputs[i])
	var lock *script.Script
	var value uint64
	if c := b.findCoin(op); c != nil {
		lock = c.LockingScript()
		value = c.Value()
	} else {
		lock = deduceLockingScript(sa)
		if lock == nil {
			lock = deduceLockingScript(sb)
		}
	}
	if lock == nil {
		return sa, nil
	}
	return b.mergeScripts(result, i, value, lock, sa, sb)
}

func (b *Builder) mergeScripts(tx *transaction.Transaction, i int, value uint64, lock, sa, sb *script.Script) (*script.Script, error) {
	info := classifyScript(lock)
	switch info.kind {
	case templateP2PK, templateP2PKH:
		want := 1
		if info.kind == templateP2PKH {
			want = 2
		}
		if completePushes(sa, want) {
			return sa, nil
		}
		if completePushes(sb, want) {
			return script.NewFromBytes(append([]byte(nil), sb.Bytes()...)), nil
		}
		return sa, nil

	case templateMultisig:
		return b.mergeMultisig(tx, i, value, lock, info, sa, sb)

	case templateP2SH:
		redeem := redeemFromSigScript(sa, info.scriptHash)
		if redeem == nil {
			redeem = redeemFromSigScript(sb, info.scriptHash)
		}
		if redeem == nil {
			return sa, nil
		}
		inner, err := b.mergeScripts(tx, i, value, redeem,
			stripRedeemPush(sa, info.scriptHash), stripRedeemPush(sb, info.scriptHash))
		if err != nil {
			return nil, err
		}
		s := script.NewFromBytes(append([]byte(nil), inner.Bytes()...))
		if err := s.AppendPushData(redeem.Bytes()); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return sa, nil
	}
}

// mergeMultisig unions the verified signatures of both sides by pubkey
// slot, making the merge order-independent.
func (b *Builder) mergeMultisig(tx *transaction.Transaction, i int, value uint64, lock *script.Script, info templateInfo, sa, sb *script.Script) (*script.Script, error) {
	hash, err := b.subscriptHash(tx, i, value, lock)
	if err != nil {
		return nil, err
	}

	slots := make([][]byte, len(info.pubKeys))
	fill := func(s *script.Script) {
		for _, push := range pushesOf(s) {
			if len(push) < 9 || push[0] != 0x30 {
				continue
			}
			sig, err := ec.ParseDERSignature(push[:len(push)-1])
			if err != nil {
				continue
			}
			for k, pubBytes := range info.pubKeys {
				if slots[k] != nil {
					continue
				}
				pub, err := ec.ParsePubKey(pubBytes)
				if err != nil {
					continue
				}
				if sig.Verify(hash, pub) {
					slots[k] = push
					break
				}
			}
		}
	}
	fill(sa)
	fill(sb)

	s := &script.Script{}
	*s = append(*s, script.Op0)
	for _, slot := range slots {
		if slot == nil {
			continue
		}
		if err := s.AppendPushData(slot); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// deduceLockingScript reconstructs the output script from an unlocking
// script's shape: a pay-to-pubkey-hash spend embeds the public key, a
// script-hash spend embeds the redeem script.
func deduceLockingScript(s *script.Script) *script.Script {
	pushes := pushesOf(s)
	if len(pushes) == 0 {
		return nil
	}
	if len(pushes) == 2 {
		sig, pub := pushes[0], pushes[1]
		if len(sig) > 0 && sig[0] == 0x30 && (len(pub) == 33 || len(pub) == 65) {
			return p2pkhLockingScript(coin.Hash160(pub))
		}
	}
	last := pushes[len(pushes)-1]
	if len(last) > 0 {
		if info := classifyScript(script.NewFromBytes(last)); info.kind != templateUnknown && info.kind != templateNullData {
			return p2shLockingScript(coin.Hash160(last))
		}
	}
	return nil
}

// redeemFromSigScript extracts a trailing redeem push matching the
// committed script hash.
func redeemFromSigScript(s *script.Script, scriptHash []byte) *script.Script {
	pushes := pushesOf(s)
	if len(pushes) == 0 {
		return nil
	}
	last := pushes[len(pushes)-1]
	if len(last) > 0 && bytes.Equal(coin.Hash160(last), scriptHash) {
		return script.NewFromBytes(append([]byte(nil), last...))
	}
	return nil
}

// completePushes reports whether s carries want non-empty pushes.
func completePushes(s *script.Script, want int) bool {
	pushes := pushesOf(s)
	if len(pushes) != want {
		return false
	}
	for _, p := range pushes {
		if len(p) == 0 {
			return false
		}
	}
	return true
}

func emptyScript(s *script.Script) bool {
	return s == nil || len(s.Bytes()) == 0
}
