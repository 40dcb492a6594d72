// Package coinselect chooses a subset of coins covering a target amount
// with minimal change. Selection is deterministic for a fixed random
// source, which the caller owns and passes in explicitly.
package coinselect

import (
	"math/rand"

	"github.com/coloredcoins/libcolored-go/coin"
)

// Amount is a selectable money kind: native satoshis or asset quantities.
type Amount interface {
	~int64 | ~uint64
}

// Item pairs a coin with the amount it contributes toward the target.
type Item[A Amount] struct {
	Coin   coin.Coin
	Amount A
}

// Func is a pluggable selector. A nil result means the candidates cannot
// cover the target.
type Func[A Amount] func(rng *rand.Rand, candidates []Item[A], target A) []Item[A]

// rounds bounds the randomized fallback search.
const rounds = 1000

// Select picks candidates covering target. The rules apply in order: a
// single exact-value candidate wins outright; a zero target selects
// nothing; an ascending sweep of below-target candidates wins on an exact
// prefix sum; a single above-target candidate wins when the sweep falls
// short; otherwise a randomized search over the full candidate set keeps
// the smallest over-target combination seen across 1000 shuffles.
// Returns nil when the candidates cannot cover the target.
func Select[A Amount](rng *rand.Rand, candidates []Item[A], target A) []Item[A] {
	var zero A

	for _, c := range candidates {
		if c.Amount == target {
			return []Item[A]{c}
		}
	}
	if target == zero {
		return []Item[A]{}
	}

	ordered := make([]Item[A], len(candidates))
	copy(ordered, candidates)
	sortByAmount(ordered)

	var total A
	result := []Item[A]{}
	for _, c := range ordered {
		switch {
		case total < target && c.Amount < target:
			total += c.Amount
			result = append(result, c)
			if total == target {
				return result
			}
		case total < target && c.Amount > target:
			return []Item[A]{c}
		default:
			return randomized(rng, ordered, target)
		}
	}
	if total < target {
		return nil
	}
	return result
}

// randomized runs the 1000-round shuffle search over the full candidate
// set, accumulating each shuffle in order until the target is met. An exact
// hit returns immediately; otherwise the smallest over-target sum seen
// wins. A shuffle that cannot reach the target means none can.
func randomized[A Amount](rng *rand.Rand, candidates []Item[A], target A) []Item[A] {
	working := make([]Item[A], len(candidates))
	copy(working, candidates)

	var best []Item[A]
	var bestTotal A
	for i := 0; i < rounds; i++ {
		Shuffle(rng, working)
		var total A
		selection := make([]Item[A], 0, len(working))
		for _, c := range working {
			selection = append(selection, c)
			total += c.Amount
			if total == target {
				return selection
			}
			if total > target {
				break
			}
		}
		if total < target {
			return nil
		}
		if best == nil || total < bestTotal {
			best = selection
			bestTotal = total
		}
	}
	return best
}

// Shuffle permutes items in place with a Fisher-Yates walk over rng.
func Shuffle[T any](rng *rand.Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// sortByAmount orders items ascending by amount with a stable insertion
// sort; candidate lists are small and ties must keep insertion order so
// selection stays deterministic.
func sortByAmount[A Amount](items []Item[A]) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Amount < items[j-1].Amount; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
