package builder

import (
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/colormarker"
	"github.com/coloredcoins/libcolored-go/money"
)

// opReturnOwner tracks which subsystem holds the transaction's single
// data-carrier slot. The only transitions are unused to colored and unused
// to stealth.
type opReturnOwner int

const (
	ownerNone opReturnOwner = iota
	ownerColored
	ownerStealth
)

// buildContext is the mutable per-build state. It exists only for the
// duration of one Build call.
type buildContext struct {
	b     *Builder
	group *group

	tx       *transaction.Transaction
	consumed map[coin.Outpoint]coin.Coin

	// additionalFees accumulates the native cost of colored outputs minus
	// the bearer value of consumed colored inputs, per group.
	additionalFees money.Native

	marker  *colormarker.Marker
	colored bool

	issuance *coin.Issuance

	changeNative money.Native
	changeAsset  uint64
	dust         uint64
	coverOnly    money.Native
	coverOnlySet bool
	changeKind   changeKind

	nonFinalSeqSet bool

	opReturnOwner opReturnOwner

	// stealthClaim remembers which stealth intent holds the slot, so the
	// same intent may re-apply across fixed-point passes while a second
	// stealth send still conflicts.
	stealthClaim *stealthIntent

	// additionalKeys holds keys derived during the build, such as
	// uncovered stealth spend keys.
	additionalKeys []*ec.PrivateKey
}

func newBuildContext(b *Builder) *buildContext {
	ctx := &buildContext{
		b:        b,
		consumed: make(map[coin.Outpoint]coin.Coin),
	}
	if b.baseTx != nil {
		ctx.tx = cloneTransaction(b.baseTx)
		for _, in := range ctx.tx.Inputs {
			op := inputOutpoint(in)
			if c := b.findCoin(op); c != nil {
				ctx.consumed[op] = c
			}
		}
	} else {
		ctx.tx = transaction.NewTransaction()
	}
	if b.lockTimeSet {
		ctx.tx.LockTime = b.lockTime
	}
	return ctx
}

// memento captures the state the change fixed point may need to roll back:
// the marker, the growing transaction, and the fee accumulator.
type memento struct {
	marker         *colormarker.Marker
	tx             *transaction.Transaction
	additionalFees money.Native
}

func (ctx *buildContext) memento() memento {
	m := memento{
		tx:             cloneTransaction(ctx.tx),
		additionalFees: ctx.additionalFees,
	}
	if ctx.marker != nil {
		m.marker = ctx.marker.Clone()
	}
	return m
}

func (ctx *buildContext) restore(m memento) {
	ctx.tx = cloneTransaction(m.tx)
	ctx.additionalFees = m.additionalFees
	if m.marker != nil {
		ctx.marker = m.marker.Clone()
	} else {
		ctx.marker = nil
	}
}

// claimOpReturn moves the data-carrier slot to owner; a slot already held
// by the other subsystem is a configuration error.
func (ctx *buildContext) claimOpReturn(owner opReturnOwner) error {
	if ctx.opReturnOwner == ownerNone || ctx.opReturnOwner == owner {
		ctx.opReturnOwner = owner
		return nil
	}
	return ErrOpReturnConflict
}

// ensureMarker returns the build's marker, inserting the marker output on
// first use. The output is located by script pattern afterwards, never by
// remembered index, because issuance reorders outputs.
func (ctx *buildContext) ensureMarker() (*colormarker.Marker, error) {
	if err := ctx.claimOpReturn(ownerColored); err != nil {
		return nil, err
	}
	ctx.colored = true
	if ctx.marker == nil {
		ctx.marker = colormarker.New()
		ctx.marker.Tag = ctx.b.opts.MarkerTag
	}
	if ctx.markerOutputIndex() < 0 {
		out, err := ctx.marker.Output()
		if err != nil {
			return nil, err
		}
		ctx.tx.AddOutput(out)
	}
	return ctx.marker, nil
}

// markerOutputIndex locates the marker output by script pattern, or -1.
func (ctx *buildContext) markerOutputIndex() int {
	for i, out := range ctx.tx.Outputs {
		if out.LockingScript == nil {
			continue
		}
		if _, err := colormarker.FromScript(out.LockingScript); err == nil {
			return i
		}
	}
	return -1
}

// finish rewrites the marker output's script with the final encoding; the
// quantity list may have grown since the output was inserted.
func (ctx *buildContext) finish() error {
	if !ctx.colored || ctx.marker == nil {
		return nil
	}
	idx := ctx.markerOutputIndex()
	if idx < 0 {
		return colormarker.ErrNotMarkerScript
	}
	s, err := ctx.marker.Script()
	if err != nil {
		return err
	}
	ctx.tx.Outputs[idx].LockingScript = s
	return nil
}

// insertColoredOutput places a colored output just before the marker
// output, keeping the marker last among the overlay's outputs, and returns
// the output's marker quantity position: one slot per non-marker output in
// transaction order. ensureMarker must have run first.
func (ctx *buildContext) insertColoredOutput(out *transaction.TransactionOutput) int {
	idx := ctx.markerOutputIndex()
	if idx < 0 {
		idx = len(ctx.tx.Outputs)
	}
	ctx.insertOutput(idx, out)
	return idx
}

// consume marks a coin spent and ensures an input spends its outpoint,
// applying the lock-time sequence rule to the first consumed input.
func (ctx *buildContext) consume(c coin.Coin) {
	op := c.Outpoint()
	ctx.consumed[op] = c
	for _, in := range ctx.tx.Inputs {
		if inputOutpoint(in) == op {
			return
		}
	}
	ctx.addInput(op, len(ctx.tx.Inputs))
}

// addInput inserts an input spending op at the given index.
func (ctx *buildContext) addInput(op coin.Outpoint, index int) {
	txid := op.TxID
	in := &transaction.TransactionInput{
		SourceTXID:       &txid,
		SourceTxOutIndex: op.Vout,
		SequenceNumber:   transaction.DefaultSequenceNumber,
	}
	if ctx.b.lockTimeSet && !ctx.nonFinalSeqSet {
		in.SequenceNumber = 0
		ctx.nonFinalSeqSet = true
	}
	if index >= len(ctx.tx.Inputs) {
		ctx.tx.Inputs = append(ctx.tx.Inputs, in)
		return
	}
	ctx.tx.Inputs = append(ctx.tx.Inputs, nil)
	copy(ctx.tx.Inputs[index+1:], ctx.tx.Inputs[index:])
	ctx.tx.Inputs[index] = in
}

// insertOutput inserts an output at the given index.
func (ctx *buildContext) insertOutput(index int, out *transaction.TransactionOutput) {
	if index >= len(ctx.tx.Outputs) {
		ctx.tx.Outputs = append(ctx.tx.Outputs, out)
		return
	}
	ctx.tx.Outputs = append(ctx.tx.Outputs, nil)
	copy(ctx.tx.Outputs[index+1:], ctx.tx.Outputs[index:])
	ctx.tx.Outputs[index] = out
}

// cloneTransaction deep-copies the fields the builder mutates: inputs,
// outputs, version and lock time. The memento depends on this being a full
// value copy.
func cloneTransaction(tx *transaction.Transaction) *transaction.Transaction {
	c := transaction.NewTransaction()
	c.Version = tx.Version
	c.LockTime = tx.LockTime
	for _, in := range tx.Inputs {
		ci := &transaction.TransactionInput{
			SourceTxOutIndex: in.SourceTxOutIndex,
			SequenceNumber:   in.SequenceNumber,
		}
		if in.SourceTXID != nil {
			txid := *in.SourceTXID
			ci.SourceTXID = &txid
		}
		if in.UnlockingScript != nil {
			ci.UnlockingScript = script.NewFromBytes(append([]byte(nil), in.UnlockingScript.Bytes()...))
		}
		c.Inputs = append(c.Inputs, ci)
	}
	for _, out := range tx.Outputs {
		co := &transaction.TransactionOutput{Satoshis: out.Satoshis}
		if out.LockingScript != nil {
			co.LockingScript = script.NewFromBytes(append([]byte(nil), out.LockingScript.Bytes()...))
		}
		c.Outputs = append(c.Outputs, co)
	}
	return c
}
