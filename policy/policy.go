// Package policy checks transactions against relay and miner rules.
// Checks collect violations rather than failing fast, so callers can report
// everything wrong with a transaction at once.
package policy

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/coloredcoins/libcolored-go/coin"
)

// Violation names one failed policy rule.
type Violation struct {
	Rule   string
	Detail string
}

// String renders "rule: detail".
func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// Policy checks a transaction against a rule set. spent lists the coins the
// transaction's inputs consume, in input order.
type Policy interface {
	Check(tx *transaction.Transaction, spent []coin.Coin) []Violation
}

const (
	// DefaultRelayFeeRate is the relay fee rate in satoshis per kilobyte
	// used to derive dust thresholds.
	DefaultRelayFeeRate = uint64(1000)

	// maxStandardTxSize bounds a relay-standard transaction.
	maxStandardTxSize = 100_000

	// maxBlockTxSize bounds what a miner accepts at all.
	maxBlockTxSize = 1_000_000

	// maxScriptSigSize bounds a standard unlocking script.
	maxScriptSigSize = 1650

	// inputSizeOverhead approximates the cost of spending an output, used
	// in the dust derivation.
	inputSizeOverhead = 148
)

// DustThreshold returns the minimum relayable value for an output paying to
// s: three times the fee to relay the output and later spend it.
func DustThreshold(s *script.Script, relayFeeRate uint64) uint64 {
	outputSize := 8 + uint64(compactSizeLen(len(s.Bytes()))) + uint64(len(s.Bytes()))
	return 3 * (outputSize + inputSizeOverhead) * relayFeeRate / 1000
}

func compactSizeLen(n int) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}

// IsNullData reports whether s is a data-carrier script (OP_RETURN or
// OP_FALSE OP_RETURN leading).
func IsNullData(s *script.Script) bool {
	b := s.Bytes()
	if len(b) == 0 {
		return false
	}
	if b[0] == script.OpRETURN {
		return true
	}
	return len(b) >= 2 && b[0] == script.Op0 && b[1] == script.OpRETURN
}

// Standard enforces relay-standardness: bounded size, no dust outputs, one
// data carrier, push-only unlocking scripts.
type Standard struct {
	// RelayFeeRate derives the dust threshold; zero means the default.
	RelayFeeRate uint64
}

// Check implements Policy.
func (p *Standard) Check(tx *transaction.Transaction, spent []coin.Coin) []Violation {
	var violations []Violation
	rate := p.RelayFeeRate
	if rate == 0 {
		rate = DefaultRelayFeeRate
	}

	if size := len(tx.Bytes()); size > maxStandardTxSize {
		violations = append(violations, Violation{"tx-size", fmt.Sprintf("%d bytes exceeds %d", size, maxStandardTxSize)})
	}

	nullData := 0
	for i, out := range tx.Outputs {
		if out.LockingScript == nil {
			violations = append(violations, Violation{"output-script", fmt.Sprintf("output %d has no script", i)})
			continue
		}
		if IsNullData(out.LockingScript) {
			nullData++
			continue
		}
		if out.Satoshis < DustThreshold(out.LockingScript, rate) {
			violations = append(violations, Violation{"dust", fmt.Sprintf("output %d value %d below dust", i, out.Satoshis)})
		}
	}
	if nullData > 1 {
		violations = append(violations, Violation{"multi-op-return", fmt.Sprintf("%d data-carrier outputs", nullData)})
	}

	for i, in := range tx.Inputs {
		if in.UnlockingScript == nil {
			continue
		}
		if len(in.UnlockingScript.Bytes()) > maxScriptSigSize {
			violations = append(violations, Violation{"scriptsig-size", fmt.Sprintf("input %d unlocking script too large", i)})
		}
		if !pushOnly(in.UnlockingScript) {
			violations = append(violations, Violation{"scriptsig-not-pushonly", fmt.Sprintf("input %d", i)})
		}
	}

	return violations
}

// Miner enforces what a miner requires regardless of relay rules.
type Miner struct{}

// Check implements Policy.
func (p *Miner) Check(tx *transaction.Transaction, spent []coin.Coin) []Violation {
	var violations []Violation

	if len(tx.Inputs) == 0 {
		violations = append(violations, Violation{"no-inputs", "transaction spends nothing"})
	}
	if len(tx.Outputs) == 0 {
		violations = append(violations, Violation{"no-outputs", "transaction creates nothing"})
	}
	if size := len(tx.Bytes()); size > maxBlockTxSize {
		violations = append(violations, Violation{"tx-size", fmt.Sprintf("%d bytes exceeds %d", size, maxBlockTxSize)})
	}

	seen := make(map[string]bool, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if in.SourceTXID == nil {
			violations = append(violations, Violation{"input-outpoint", fmt.Sprintf("input %d has no source", i)})
			continue
		}
		key := fmt.Sprintf("%s:%d", in.SourceTXID.String(), in.SourceTxOutIndex)
		if seen[key] {
			violations = append(violations, Violation{"duplicate-input", key})
		}
		seen[key] = true
	}

	if len(spent) == len(tx.Inputs) && len(spent) > 0 {
		var in, out uint64
		for _, c := range spent {
			in += c.Value()
		}
		for _, o := range tx.Outputs {
			out += o.Satoshis
		}
		if out > in {
			violations = append(violations, Violation{"negative-fee", fmt.Sprintf("outputs %d exceed inputs %d", out, in)})
		}
	}

	return violations
}

// pushOnly reports whether the script consists solely of data pushes.
func pushOnly(s *script.Script) bool {
	b := s.Bytes()
	for i := 0; i < len(b); {
		op := b[i]
		switch {
		case op <= 0x4b:
			i += 1 + int(op)
		case op == script.OpPUSHDATA1:
			if i+1 >= len(b) {
				return false
			}
			i += 2 + int(b[i+1])
		case op == script.OpPUSHDATA2:
			if i+2 >= len(b) {
				return false
			}
			i += 3 + int(b[i+1]) + int(b[i+2])<<8
		case op >= script.Op1NEGATE && op <= script.Op16 && op != 0x50:
			i++
		default:
			return false
		}
	}
	return true
}
