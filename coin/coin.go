// Package coin models spendable outputs consumed by the transaction builder:
// plain outputs, script-hash outputs with their redeem scripts, stealth
// outputs, and colored outputs carrying asset quantities.
package coin

import (
	"bytes"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/coloredcoins/libcolored-go/money"
	"github.com/coloredcoins/libcolored-go/stealth"
)

// Outpoint identifies a previously created output.
type Outpoint struct {
	TxID chainhash.Hash
	Vout uint32
}

// NewOutpoint builds an outpoint from a 32-byte txid and output index.
func NewOutpoint(txid []byte, vout uint32) (Outpoint, error) {
	h, err := chainhash.NewHash(txid)
	if err != nil {
		return Outpoint{}, fmt.Errorf("%w: %w", ErrInvalidOutpoint, err)
	}
	return Outpoint{TxID: *h, Vout: vout}, nil
}

// String returns "txid:vout" with the txid in display order.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Vout)
}

// Coin is an immutable reference to a spendable output. Outpoints uniquely
// identify coins within a build; the builder borrows coins and never
// mutates them.
type Coin interface {
	Outpoint() Outpoint
	Value() uint64
	LockingScript() *script.Script
}

// Plain is an ordinary output: outpoint, value, locking script.
type Plain struct {
	Out    Outpoint
	Amount uint64
	Script *script.Script
}

// NewPlain builds a plain coin.
func NewPlain(out Outpoint, amount uint64, lockingScript *script.Script) *Plain {
	return &Plain{Out: out, Amount: amount, Script: lockingScript}
}

func (c *Plain) Outpoint() Outpoint            { return c.Out }
func (c *Plain) Value() uint64                 { return c.Amount }
func (c *Plain) LockingScript() *script.Script { return c.Script }

// ScriptCoin is a plain coin whose output pays to a script hash; it carries
// the redeem script matching that hash.
type ScriptCoin struct {
	Plain
	Redeem *script.Script
}

// NewScriptCoin wraps a plain coin with its redeem script. The redeem
// script's hash160 must match the hash committed in the locking script.
func NewScriptCoin(plain *Plain, redeem *script.Script) (*ScriptCoin, error) {
	if redeem == nil {
		return nil, fmt.Errorf("%w: nil redeem script", ErrRedeemMismatch)
	}
	committed, ok := ScriptHashFromLocking(plain.Script)
	if !ok {
		return nil, fmt.Errorf("%w: output is not pay-to-script-hash", ErrRedeemMismatch)
	}
	if !bytes.Equal(committed, Hash160(redeem.Bytes())) {
		return nil, fmt.Errorf("%w: redeem hash does not match output", ErrRedeemMismatch)
	}
	return &ScriptCoin{Plain: *plain, Redeem: redeem}, nil
}

// StealthCoin is a plain coin paid through a stealth address. The ephemeral
// key comes from the payment's metadata output.
type StealthCoin struct {
	Plain
	Address   *stealth.Address
	Ephemeral []byte // compressed ephemeral public key
}

// Colored is a coin bearing an asset quantity on top of a native bearer
// coin. Its native value is the bearer's dust amount.
type Colored struct {
	Bearer   Coin
	AssetID  money.AssetID
	Quantity uint64
}

// NewColored attaches an asset quantity to a bearer coin.
func NewColored(bearer Coin, id money.AssetID, quantity uint64) *Colored {
	return &Colored{Bearer: bearer, AssetID: id, Quantity: quantity}
}

func (c *Colored) Outpoint() Outpoint            { return c.Bearer.Outpoint() }
func (c *Colored) Value() uint64                 { return c.Bearer.Value() }
func (c *Colored) LockingScript() *script.Script { return c.Bearer.LockingScript() }

// Asset returns the coin's asset amount.
func (c *Colored) Asset() money.Asset {
	return money.Asset{ID: c.AssetID, Quantity: c.Quantity}
}

// Issuance is a coin authorizing the creation of new asset units. The asset
// id is derived from the coin's locking script; DefinitionURL optionally
// points at an out-of-band asset definition.
type Issuance struct {
	Bearer        Coin
	DefinitionURL string
}

// NewIssuance wraps a bearer coin as an issuance coin.
func NewIssuance(bearer Coin) *Issuance {
	return &Issuance{Bearer: bearer}
}

func (c *Issuance) Outpoint() Outpoint            { return c.Bearer.Outpoint() }
func (c *Issuance) Value() uint64                 { return c.Bearer.Value() }
func (c *Issuance) LockingScript() *script.Script { return c.Bearer.LockingScript() }

// AssetID returns the id of the asset this coin may issue.
func (c *Issuance) AssetID() money.AssetID {
	return AssetIDFromScript(c.Bearer.LockingScript())
}
