package builder

import (
	"bytes"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	sighash "github.com/bsv-blockchain/go-sdk/transaction/sighash"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/stealth"
)

// Sign signs every input of tx for which the session can resolve a coin
// and a key. Partial multisig signatures are left in place for later
// completion with CombineSignatures.
func (b *Builder) Sign(tx *transaction.Transaction) error {
	ctx := &buildContext{b: b, tx: tx, consumed: make(map[coin.Outpoint]coin.Coin)}
	return b.signAll(ctx)
}

func (b *Builder) signAll(ctx *buildContext) error {
	for i := range ctx.tx.Inputs {
		if err := b.signInput(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) signInput(ctx *buildContext, i int) error {
	in := ctx.tx.Inputs[i]
	op := inputOutpoint(in)
	c := ctx.consumed[op]
	if c == nil {
		c = b.findCoin(op)
	}
	if c == nil {
		return &CoinNotFoundError{Outpoint: op, InputIndex: i}
	}

	if sc, ok := bearerOf(c).(*coin.StealthCoin); ok {
		b.uncoverStealth(ctx, sc)
	}

	sigScript, err := b.signScript(ctx, c, i, c.Value(), c.LockingScript(), in.UnlockingScript)
	if err != nil {
		return fmt.Errorf("input %d: %w", i, err)
	}
	in.UnlockingScript = sigScript
	return nil
}

// signScript dispatches on the output-script template and produces the
// unlocking script, recursing through script-hash wrappers.
func (b *Builder) signScript(ctx *buildContext, c coin.Coin, i int, value uint64, lock, existing *script.Script) (*script.Script, error) {
	info := classifyScript(lock)
	switch info.kind {
	case templateP2PK:
		key := b.lookupKeyByPubKey(ctx, info.pubKey, lock)
		if key == nil {
			return nil, fmt.Errorf("%w: pay-to-pubkey", ErrKeyNotFound)
		}
		sig, err := b.signHash(ctx.tx, i, value, lock, key)
		if err != nil {
			return nil, err
		}
		s := &script.Script{}
		if err := s.AppendPushData(sig); err != nil {
			return nil, err
		}
		return s, nil

	case templateP2PKH:
		key := b.lookupKeyByHash(ctx, info.pubKeyHash, lock)
		if key == nil {
			return nil, fmt.Errorf("%w: pay-to-pubkey-hash %x", ErrKeyNotFound, info.pubKeyHash)
		}
		sig, err := b.signHash(ctx.tx, i, value, lock, key)
		if err != nil {
			return nil, err
		}
		s := &script.Script{}
		if err := s.AppendPushData(sig); err != nil {
			return nil, err
		}
		if err := s.AppendPushData(key.PubKey().Compressed()); err != nil {
			return nil, err
		}
		return s, nil

	case templateMultisig:
		return b.signMultisig(ctx, i, value, lock, info, existing)

	case templateP2SH:
		redeem := b.redeemFor(c, existing, info.scriptHash)
		if redeem == nil {
			return nil, fmt.Errorf("%w: redeem script %x", ErrRedeemNotFound, info.scriptHash)
		}
		inner, err := b.signScript(ctx, c, i, value, redeem, stripRedeemPush(existing, info.scriptHash))
		if err != nil {
			return nil, err
		}
		s := script.NewFromBytes(append([]byte(nil), inner.Bytes()...))
		if err := s.AppendPushData(redeem.Bytes()); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: %x", ErrUnknownTemplate, lock.Bytes())
	}
}

// signMultisig merges any signatures already present, verified against
// their pubkey slots, then signs with every known key until the required
// count is reached. The serialized script keeps the standard leading OP_0.
func (b *Builder) signMultisig(ctx *buildContext, i int, value uint64, lock *script.Script, info templateInfo, existing *script.Script) (*script.Script, error) {
	hash, err := b.subscriptHash(ctx.tx, i, value, lock)
	if err != nil {
		return nil, err
	}

	slots := make([][]byte, len(info.pubKeys))
	count := 0
	for _, push := range pushesOf(existing) {
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
				count++
				break
			}
		}
	}

	for k, pubBytes := range info.pubKeys {
		if count >= info.required {
			break
		}
		if slots[k] != nil {
			continue
		}
		key := b.lookupKeyByPubKey(ctx, pubBytes, lock)
		if key == nil {
			continue
		}
		sig, err := b.signHash(ctx.tx, i, value, lock, key)
		if err != nil {
			return nil, err
		}
		slots[k] = sig
		count++
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: multisig", ErrKeyNotFound)
	}

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

// signHash signs the input's sighash against the given subscript.
func (b *Builder) signHash(tx *transaction.Transaction, i int, value uint64, subscript *script.Script, key *ec.PrivateKey) ([]byte, error) {
	hash, err := b.subscriptHash(tx, i, value, subscript)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("builder: sign input %d: %w", i, err)
	}
	return append(sig.Serialize(), byte(sighash.AllForkID)), nil
}

// subscriptHash computes the input's signature hash with subscript as the
// script being satisfied; for script-hash inputs this is the redeem script.
func (b *Builder) subscriptHash(tx *transaction.Transaction, i int, value uint64, subscript *script.Script) ([]byte, error) {
	tx.Inputs[i].SetSourceTxOutput(&transaction.TransactionOutput{
		Satoshis:      value,
		LockingScript: subscript,
	})
	hash, err := tx.CalcInputSignatureHash(uint32(i), sighash.AllForkID)
	if err != nil {
		return nil, fmt.Errorf("builder: sighash input %d: %w", i, err)
	}
	return hash, nil
}

// redeemFor recovers the redeem script of a script-hash output: from a
// script-coin wrapper, from the last push of an existing unlocking script,
// or from the session's known redeems.
func (b *Builder) redeemFor(c coin.Coin, existing *script.Script, scriptHash []byte) *script.Script {
	if sc, ok := bearerOf(c).(*coin.ScriptCoin); ok {
		return sc.Redeem
	}
	if pushes := pushesOf(existing); len(pushes) > 0 {
		last := pushes[len(pushes)-1]
		if len(last) > 0 && bytes.Equal(coin.Hash160(last), scriptHash) {
			return script.NewFromBytes(append([]byte(nil), last...))
		}
	}
	for _, r := range b.knownRedeems {
		if bytes.Equal(coin.Hash160(r.Bytes()), scriptHash) {
			return r
		}
	}
	return nil
}

// stripRedeemPush drops a trailing redeem push from an existing unlocking
// script so the inner signer sees only the inner signatures.
func stripRedeemPush(existing *script.Script, scriptHash []byte) *script.Script {
	if existing == nil {
		return nil
	}
	pushes := pushesOf(existing)
	if len(pushes) == 0 {
		return existing
	}
	last := pushes[len(pushes)-1]
	if len(last) == 0 || !bytes.Equal(coin.Hash160(last), scriptHash) {
		return existing
	}
	inner := &script.Script{}
	for _, push := range pushes[:len(pushes)-1] {
		if len(push) == 0 {
			*inner = append(*inner, script.Op0)
			continue
		}
		if err := inner.AppendPushData(push); err != nil {
			return existing
		}
	}
	return inner
}

// uncoverStealth derives the stealth spend keys the session can uncover
// and adds them to the context's additional keys.
func (b *Builder) uncoverStealth(ctx *buildContext, sc *coin.StealthCoin) {
	if sc.Address == nil || len(sc.Ephemeral) == 0 {
		return
	}
	scanPriv := b.keyMatchingPubKey(ctx, sc.Address.ScanKey.Compressed())
	if scanPriv == nil {
		return
	}
	ephem, err := ec.ParsePubKey(sc.Ephemeral)
	if err != nil {
		return
	}
	for _, spendPub := range sc.Address.SpendKeys {
		spendPriv := b.keyMatchingPubKey(ctx, spendPub.Compressed())
		if spendPriv == nil {
			continue
		}
		derived, err := stealth.Uncover(scanPriv, ephem, spendPriv)
		if err != nil {
			continue
		}
		ctx.additionalKeys = append(ctx.additionalKeys, derived)
	}
}

// allKeys walks the session keys then the context's derived keys.
func (b *Builder) allKeys(ctx *buildContext) []*ec.PrivateKey {
	if ctx == nil || len(ctx.additionalKeys) == 0 {
		return b.keys
	}
	keys := make([]*ec.PrivateKey, 0, len(b.keys)+len(ctx.additionalKeys))
	keys = append(keys, b.keys...)
	keys = append(keys, ctx.additionalKeys...)
	return keys
}

// keyMatchingPubKey finds a session key by compressed public key bytes.
func (b *Builder) keyMatchingPubKey(ctx *buildContext, compressed []byte) *ec.PrivateKey {
	for _, key := range b.allKeys(ctx) {
		if bytes.Equal(key.PubKey().Compressed(), compressed) {
			return key
		}
	}
	return nil
}

// lookupKeyByPubKey resolves a key for a script-embedded public key,
// normalizing the embedded encoding, falling back to the key finder with
// the enclosing script.
func (b *Builder) lookupKeyByPubKey(ctx *buildContext, pubBytes []byte, lock *script.Script) *ec.PrivateKey {
	if pub, err := ec.ParsePubKey(pubBytes); err == nil {
		if key := b.keyMatchingPubKey(ctx, pub.Compressed()); key != nil {
			return key
		}
	}
	if b.KeyFinder != nil {
		return b.KeyFinder(lock)
	}
	return nil
}

// lookupKeyByHash resolves a key whose compressed public key hashes to the
// given hash160, falling back to the key finder.
func (b *Builder) lookupKeyByHash(ctx *buildContext, pubKeyHash []byte, lock *script.Script) *ec.PrivateKey {
	for _, key := range b.allKeys(ctx) {
		if bytes.Equal(bsvhash.Hash160(key.PubKey().Compressed()), pubKeyHash) {
			return key
		}
	}
	if b.KeyFinder != nil {
		return b.KeyFinder(lock)
	}
	return nil
}

// bearerOf unwraps colored and issuance coins to the native bearer coin.
func bearerOf(c coin.Coin) coin.Coin {
	switch v := c.(type) {
	case *coin.Colored:
		return bearerOf(v.Bearer)
	case *coin.Issuance:
		return bearerOf(v.Bearer)
	default:
		return c
	}
}
