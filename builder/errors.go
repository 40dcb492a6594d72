package builder

import (
	"errors"
	"fmt"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/money"
)

var (
	// ErrNotEnoughFunds indicates a group's coins cannot cover its target.
	ErrNotEnoughFunds = errors.New("builder: not enough funds")

	// ErrCoinNotFound indicates a spent output has no known coin.
	ErrCoinNotFound = errors.New("builder: coin not found")

	// ErrKeyNotFound indicates no private key matches an output script.
	ErrKeyNotFound = errors.New("builder: key not found")

	// ErrRedeemNotFound indicates a script-hash input whose redeem script
	// could not be recovered.
	ErrRedeemNotFound = errors.New("builder: redeem script not found")

	// ErrNothingToCombine indicates CombineSignatures with no transactions.
	ErrNothingToCombine = errors.New("builder: nothing to combine")

	// ErrMissingChangeScript indicates change is material but the group has
	// no change script of the required kind.
	ErrMissingChangeScript = errors.New("builder: no change script configured")

	// ErrOpReturnConflict indicates two subsystems claimed the transaction's
	// single data-carrier slot.
	ErrOpReturnConflict = errors.New("builder: op-return slot already in use")

	// ErrMultipleIssuance indicates a second asset id in issuance intents.
	ErrMultipleIssuance = errors.New("builder: only one asset may be issued per transaction")

	// ErrExchangeAfterAsset indicates an exchange operation queued after
	// per-asset intents.
	ErrExchangeAfterAsset = errors.New("builder: exchange operation must precede asset intents")

	// ErrOpcodeConflict indicates the marker opcode is already set to an
	// incompatible value.
	ErrOpcodeConflict = errors.New("builder: marker opcode conflict")

	// ErrNegativeAmount indicates a send of a negative native amount.
	ErrNegativeAmount = errors.New("builder: negative send amount")

	// ErrUnknownTemplate indicates an output script no signer template
	// matches.
	ErrUnknownTemplate = errors.New("builder: unknown script template")

	// ErrPlanNotConverging guards the change fixed point against infinite
	// re-entry.
	ErrPlanNotConverging = errors.New("builder: change planning did not converge")

	// ErrNoBaseTransaction indicates CoverTheRest without ContinueToBuild.
	ErrNoBaseTransaction = errors.New("builder: no transaction to continue")

	// ErrNoGroups indicates a build with no groups configured.
	ErrNoGroups = errors.New("builder: no builder groups")

	// ErrZeroRelayFeeRate indicates options with no relay fee rate.
	ErrZeroRelayFeeRate = errors.New("builder: relay fee rate must be positive")

	// ErrUnknownMarkerTag indicates options with an unrecognized marker tag.
	ErrUnknownMarkerTag = errors.New("builder: unknown marker tag")
)

// NotEnoughFundsError reports the group whose plan failed and how much is
// missing, in the money kind of the failing pass.
type NotEnoughFundsError struct {
	Group         string
	MissingNative money.Native
	MissingAsset  *money.Asset
}

func (e *NotEnoughFundsError) Error() string {
	if e.MissingAsset != nil {
		return fmt.Sprintf("builder: not enough funds in group %q: missing %d of asset %s",
			e.Group, e.MissingAsset.Quantity, e.MissingAsset.ID)
	}
	return fmt.Sprintf("builder: not enough funds in group %q: missing %d satoshis", e.Group, e.MissingNative)
}

// Unwrap lets errors.Is match ErrNotEnoughFunds.
func (e *NotEnoughFundsError) Unwrap() error { return ErrNotEnoughFunds }

// CoinNotFoundError reports the outpoint an input spends that no coin map
// or finder could resolve.
type CoinNotFoundError struct {
	Outpoint   coin.Outpoint
	InputIndex int
}

func (e *CoinNotFoundError) Error() string {
	return fmt.Sprintf("builder: no coin for input %d spending %s", e.InputIndex, e.Outpoint)
}

// Unwrap lets errors.Is match ErrCoinNotFound.
func (e *CoinNotFoundError) Unwrap() error { return ErrCoinNotFound }
