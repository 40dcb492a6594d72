package builder

import (
	"crypto/sha1"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/coloredcoins/libcolored-go/assetdef"
	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/colormarker"
	"github.com/coloredcoins/libcolored-go/money"
	"github.com/coloredcoins/libcolored-go/stealth"
)

// Intents are data, not closures: each variant carries what it needs and
// mutates the build context in apply, returning the amount it contributed
// to the pass's funding target. The planner may apply the same intent more
// than once while reconciling change, so apply must be safe to repeat
// after a memento restore.

// nativeIntent contributes to a group's native funding target.
type nativeIntent interface {
	apply(ctx *buildContext) (money.Native, error)
}

// assetIntent contributes to a per-asset funding target (or, for issuance,
// to the issued quantity).
type assetIntent interface {
	apply(ctx *buildContext) (uint64, error)
}

// sendIntent appends a native output.
type sendIntent struct {
	script *script.Script
	amount money.Native
}

func (it *sendIntent) apply(ctx *buildContext) (money.Native, error) {
	ctx.tx.AddOutput(&transaction.TransactionOutput{
		Satoshis:      uint64(it.amount),
		LockingScript: it.script,
	})
	return it.amount, nil
}

// feeIntent contributes to the target without producing an output.
type feeIntent struct {
	amount money.Native
}

func (it *feeIntent) apply(ctx *buildContext) (money.Native, error) {
	return it.amount, nil
}

// additionalFeesIntent surfaces the accumulated native cost of the group's
// colored outputs into the native pass.
type additionalFeesIntent struct{}

func (additionalFeesIntent) apply(ctx *buildContext) (money.Native, error) {
	return ctx.additionalFees, nil
}

// changeIntent is the implicit head of every native pass: once the fixed
// point has discovered a material change amount, it places the change
// output.
type changeIntent struct{}

func (changeIntent) apply(ctx *buildContext) (money.Native, error) {
	if ctx.changeNative == 0 {
		return 0, nil
	}
	cs := ctx.group.changeScripts[changeUncolored]
	if cs == nil {
		return 0, fmt.Errorf("%w: group %q", ErrMissingChangeScript, ctx.group.name)
	}
	ctx.tx.AddOutput(&transaction.TransactionOutput{
		Satoshis:      uint64(ctx.changeNative),
		LockingScript: cs,
	})
	return ctx.changeNative, nil
}

// coloredChangeIntent closes every per-asset pass: once the fixed point
// has discovered overshoot, it returns the excess quantity to the group's
// colored change script on a dust-sized bearer output, placed after the
// pass's sends.
type coloredChangeIntent struct{}

func (coloredChangeIntent) apply(ctx *buildContext) (uint64, error) {
	if ctx.changeAsset == 0 {
		return 0, nil
	}
	cs := ctx.group.changeScripts[changeColored]
	if cs == nil {
		return 0, fmt.Errorf("%w: group %q (colored)", ErrMissingChangeScript, ctx.group.name)
	}
	marker, err := ctx.ensureMarker()
	if err != nil {
		return 0, err
	}
	dust := ctx.b.dustFor(cs)
	pos := ctx.insertColoredOutput(&transaction.TransactionOutput{
		Satoshis:      dust,
		LockingScript: cs,
	})
	marker.SetQuantity(pos, ctx.changeAsset)
	ctx.additionalFees += money.Native(dust)
	return ctx.changeAsset, nil
}

// sendAssetIntent appends a colored output. toExchange flags the marker
// entry under opcode 0x01; exchangeOp is one leg of an exchange operation
// under opcode 0x02, carrying the operation's reason.
type sendAssetIntent struct {
	script     *script.Script
	asset      money.Asset
	toExchange bool
	exchangeOp bool
	reason     string
}

func (it *sendAssetIntent) apply(ctx *buildContext) (uint64, error) {
	marker, err := ctx.ensureMarker()
	if err != nil {
		return 0, err
	}

	switch {
	case it.exchangeOp:
		if marker.Opcode != 0 && marker.Opcode != colormarker.OpcodeExchange {
			return 0, fmt.Errorf("%w: 0x%02x", ErrOpcodeConflict, marker.Opcode)
		}
		// An asset entry already recorded without a flag would decode as
		// exchange-bound once the opcode becomes 0x02.
		for i, q := range marker.Quantities {
			if q != 0 && (i >= len(marker.ExchangeFlags) || !marker.ExchangeFlags[i]) {
				return 0, fmt.Errorf("%w: unflagged entry %d", ErrOpcodeConflict, i)
			}
		}
		marker.Version = colormarker.VersionExchange
		marker.Opcode = colormarker.OpcodeExchange
		digest := sha1.Sum([]byte(it.reason))
		marker.Metadata = digest[:]
		if err := ctx.b.Repository.Add(it.reason); err != nil {
			return 0, fmt.Errorf("builder: metadata repository: %w", err)
		}
	case it.toExchange:
		if marker.Opcode != 0 && marker.Opcode != colormarker.OpcodeToExchange {
			return 0, fmt.Errorf("%w: 0x%02x", ErrOpcodeConflict, marker.Opcode)
		}
		marker.Version = colormarker.VersionExchange
		marker.Opcode = colormarker.OpcodeToExchange
	default:
		// A plain transfer cannot share a marker with an exchange
		// operation: opcode 0x02 carries no flag bitfield, so its entry
		// would decode as exchange-bound.
		if marker.Opcode == colormarker.OpcodeExchange {
			return 0, fmt.Errorf("%w: 0x%02x", ErrOpcodeConflict, marker.Opcode)
		}
	}

	dust := ctx.b.dustFor(it.script)
	pos := ctx.insertColoredOutput(&transaction.TransactionOutput{
		Satoshis:      dust,
		LockingScript: it.script,
	})
	marker.SetQuantity(pos, it.asset.Quantity)
	if it.toExchange || it.exchangeOp {
		marker.SetExchangeFlag(pos)
	}
	ctx.additionalFees += money.Native(dust)
	return it.asset.Quantity, nil
}

// issueIntent creates new units of an asset. The issuance input lands at
// input index 0 and the issued output at output index 0, per the marker
// convention.
type issueIntent struct {
	script *script.Script
	asset  money.Asset
}

func (it *issueIntent) apply(ctx *buildContext) (uint64, error) {
	marker, err := ctx.ensureMarker()
	if err != nil {
		return 0, err
	}

	if ctx.issuance == nil {
		found := findIssuanceCoin(ctx.group, it.asset.ID)
		if found == nil {
			return 0, fmt.Errorf("%w: no issuance coin for asset %s in group %q",
				ErrCoinNotFound, it.asset.ID, ctx.group.name)
		}
		ctx.issuance = found
		op := found.Outpoint()
		ctx.consumed[op] = found
		ctx.addInput(op, 0)
		ctx.additionalFees -= money.Native(found.Value())
		if found.DefinitionURL != "" {
			marker.Metadata = assetdef.FormatPointer(found.DefinitionURL)
		}
	}

	dust := ctx.b.dustFor(it.script)
	ctx.insertOutput(0, &transaction.TransactionOutput{
		Satoshis:      dust,
		LockingScript: it.script,
	})
	marker.InsertQuantity(0, it.asset.Quantity)
	ctx.additionalFees += money.Native(dust)
	return it.asset.Quantity, nil
}

// findIssuanceCoin scans a group's coins for an issuance coin of the asset.
func findIssuanceCoin(g *group, id money.AssetID) *coin.Issuance {
	for _, c := range g.coins {
		if iss, ok := c.(*coin.Issuance); ok && iss.AssetID() == id {
			return iss
		}
	}
	return nil
}

// stealthIntent appends a stealth payment: the metadata output revealing
// the ephemeral key, then the pay output. The payment was derived when the
// intent was queued, so repeated applies are stable.
type stealthIntent struct {
	payment *stealth.Payment
	amount  money.Native
}

func (it *stealthIntent) apply(ctx *buildContext) (money.Native, error) {
	if err := ctx.claimOpReturn(ownerStealth); err != nil {
		return 0, err
	}
	if ctx.stealthClaim != nil && ctx.stealthClaim != it {
		return 0, ErrOpReturnConflict
	}
	ctx.stealthClaim = it
	ctx.tx.AddOutput(&transaction.TransactionOutput{
		Satoshis:      0,
		LockingScript: it.payment.Metadata,
	})
	ctx.tx.AddOutput(&transaction.TransactionOutput{
		Satoshis:      uint64(it.amount),
		LockingScript: it.payment.PayScript,
	})
	return it.amount, nil
}
