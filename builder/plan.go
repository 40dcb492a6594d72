package builder

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/coinselect"
	"github.com/coloredcoins/libcolored-go/money"
)

// maxPlanPasses bounds the change fixed point. Two passes settle every
// well-formed plan; the bound only guards against re-entry that cannot
// converge.
const maxPlanPasses = 100

// Build walks every group in order: issuance intents first, then one
// funding pass per asset, then the native pass covering sends, fees and
// the accumulated cost of colored outputs. The marker output's script is
// rewritten once all quantities are known. With sign set, every input
// whose key is known is signed in place.
func (b *Builder) Build(sign bool) (*transaction.Transaction, error) {
	if b.stickyErr != nil {
		return nil, b.stickyErr
	}
	if len(b.groups) == 0 {
		return nil, ErrNoGroups
	}

	ctx := newBuildContext(b)
	for _, g := range b.groups {
		ctx.group = g
		ctx.additionalFees = 0

		for _, it := range g.issuanceIntents {
			if _, err := it.apply(ctx); err != nil {
				return nil, err
			}
		}

		for _, id := range g.assetOrder {
			intents := make([]assetIntent, 0, len(g.assetIntents[id])+1)
			intents = append(intents, g.assetIntents[id]...)
			intents = append(intents, coloredChangeIntent{})

			ctx.changeAsset = 0
			ctx.changeKind = changeColored
			ctx.coverOnlySet = false

			sel, err := ctx.planAsset(id, intents, coloredCandidates(g, id))
			if err != nil {
				return nil, err
			}
			// The bearer value of consumed colored inputs funds the native
			// pass; flip its sign into the fee accumulator.
			for _, item := range sel {
				ctx.additionalFees -= money.Native(item.Coin.Value())
			}
		}

		intents := make([]nativeIntent, 0, len(g.nativeIntents)+2)
		intents = append(intents, changeIntent{}, additionalFeesIntent{})
		intents = append(intents, g.nativeIntents...)

		ctx.changeNative = 0
		ctx.changeKind = changeUncolored
		ctx.dust = b.nativeDust()
		ctx.coverOnly = g.coverOnly
		ctx.coverOnlySet = g.coverOnlySet

		if _, err := ctx.planNative(intents, nativeCandidates(g)); err != nil {
			return nil, err
		}
	}

	if err := ctx.finish(); err != nil {
		return nil, err
	}
	if sign {
		if err := b.signAll(ctx); err != nil {
			return nil, err
		}
	}
	return ctx.tx, nil
}

// planNative runs the funding fixed point for the native pass: apply the
// intents to learn the target, select coins, and either settle, absorb
// sub-dust change as fee, or roll back and re-plan with a change output.
func (ctx *buildContext) planNative(intents []nativeIntent, candidates []coinselect.Item[int64]) ([]coinselect.Item[int64], error) {
	for pass := 0; pass < maxPlanPasses; pass++ {
		snap := ctx.memento()

		var target int64
		for _, it := range intents {
			amt, err := it.apply(ctx)
			if err != nil {
				return nil, err
			}
			target += int64(amt)
		}
		if ctx.coverOnlySet {
			target = int64(ctx.coverOnly + ctx.changeNative)
		}

		available := unconsumedItems(ctx, candidates)
		sel := ctx.b.SelectNative(ctx.b.rng, available, target)
		if sel == nil {
			var avail int64
			for _, item := range available {
				avail += item.Amount
			}
			return nil, &NotEnoughFundsError{Group: ctx.group.name, MissingNative: money.Native(target - avail)}
		}

		var total int64
		for _, item := range sel {
			total += item.Amount
		}
		change := total - target
		if change < 0 {
			return nil, &NotEnoughFundsError{Group: ctx.group.name, MissingNative: money.Native(-change)}
		}

		if change > int64(ctx.dust) {
			cs := ctx.group.changeScripts[changeUncolored]
			if cs == nil {
				return nil, fmt.Errorf("%w: group %q", ErrMissingChangeScript, ctx.group.name)
			}
			if change > int64(ctx.b.dustFor(cs)) {
				ctx.restore(snap)
				ctx.changeNative = money.Native(change)
				continue
			}
			// Sub-dust for the change script: absorbed as fee.
		}

		for _, item := range sel {
			ctx.consume(item.Coin)
		}
		return sel, nil
	}
	return nil, fmt.Errorf("%w: group %q", ErrPlanNotConverging, ctx.group.name)
}

// planAsset is the colored counterpart of planNative. Asset money has no
// dust: any overshoot requires a colored change output.
func (ctx *buildContext) planAsset(id money.AssetID, intents []assetIntent, candidates []coinselect.Item[uint64]) ([]coinselect.Item[uint64], error) {
	for pass := 0; pass < maxPlanPasses; pass++ {
		snap := ctx.memento()

		var target uint64
		for _, it := range intents {
			amt, err := it.apply(ctx)
			if err != nil {
				return nil, err
			}
			target += amt
		}

		available := unconsumedItems(ctx, candidates)
		sel := ctx.b.SelectAsset(ctx.b.rng, available, target)
		if sel == nil {
			var avail uint64
			for _, item := range available {
				avail += item.Amount
			}
			return nil, &NotEnoughFundsError{
				Group:        ctx.group.name,
				MissingAsset: &money.Asset{ID: id, Quantity: target - avail},
			}
		}

		var total uint64
		for _, item := range sel {
			total += item.Amount
		}
		if total < target {
			return nil, &NotEnoughFundsError{
				Group:        ctx.group.name,
				MissingAsset: &money.Asset{ID: id, Quantity: target - total},
			}
		}

		if change := total - target; change > 0 {
			if ctx.group.changeScripts[changeColored] == nil {
				return nil, fmt.Errorf("%w: group %q (colored)", ErrMissingChangeScript, ctx.group.name)
			}
			ctx.restore(snap)
			ctx.changeAsset = change
			continue
		}

		for _, item := range sel {
			ctx.consume(item.Coin)
		}
		return sel, nil
	}
	return nil, fmt.Errorf("%w: group %q", ErrPlanNotConverging, ctx.group.name)
}

// unconsumedItems drops candidates whose coins the build already spent.
func unconsumedItems[A coinselect.Amount](ctx *buildContext, items []coinselect.Item[A]) []coinselect.Item[A] {
	out := make([]coinselect.Item[A], 0, len(items))
	for _, item := range items {
		if _, ok := ctx.consumed[item.Coin.Outpoint()]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// coloredCandidates lists a group's colored coins of one asset.
func coloredCandidates(g *group, id money.AssetID) []coinselect.Item[uint64] {
	var items []coinselect.Item[uint64]
	for _, c := range g.coins {
		if colored, ok := c.(*coin.Colored); ok && colored.AssetID == id {
			items = append(items, coinselect.Item[uint64]{Coin: colored, Amount: colored.Quantity})
		}
	}
	return items
}

// nativeCandidates lists a group's uncolored coins; colored and issuance
// coins never fund the native pass.
func nativeCandidates(g *group) []coinselect.Item[int64] {
	var items []coinselect.Item[int64]
	for _, c := range g.coins {
		switch c.(type) {
		case *coin.Colored, *coin.Issuance:
			continue
		default:
			items = append(items, coinselect.Item[int64]{Coin: c, Amount: int64(c.Value())})
		}
	}
	return items
}
