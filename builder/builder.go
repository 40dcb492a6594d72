// Package builder constructs relay-standard transactions over a pool of
// spendable coins, arranging native sends, colored-asset transfers and
// issuance behind a single overlay marker output, selecting coins to cover
// targets plus fees, and signing every input whose key is known.
//
// A Builder is a single-use, single-threaded session: accumulate coins,
// keys and intents, optionally open further funding groups with Then, then
// call Build. Create a fresh session per transaction.
package builder

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/coinselect"
	"github.com/coloredcoins/libcolored-go/metadata"
	"github.com/coloredcoins/libcolored-go/money"
	"github.com/coloredcoins/libcolored-go/policy"
	"github.com/coloredcoins/libcolored-go/stealth"
)

// CoinFinder resolves an outpoint the session's coin maps do not know.
type CoinFinder func(coin.Outpoint) coin.Coin

// KeyFinder resolves a private key for an output script the session's key
// set does not cover.
type KeyFinder func(*script.Script) *ec.PrivateKey

// changeKind selects which of a group's change scripts a pass uses.
type changeKind int

const (
	changeUncolored changeKind = iota
	changeColored
)

// group is one independent funding plan: its own coins, intents, change
// scripts and cover-only cap.
type group struct {
	name            string
	coins           []coin.Coin
	byOutpoint      map[coin.Outpoint]coin.Coin
	nativeIntents   []nativeIntent
	assetOrder      []money.AssetID
	assetIntents    map[money.AssetID][]assetIntent
	issuanceIntents []assetIntent
	changeScripts   [2]*script.Script
	coverOnly       money.Native
	coverOnlySet    bool
}

func newGroup(name string) *group {
	return &group{
		name:         name,
		byOutpoint:   make(map[coin.Outpoint]coin.Coin),
		assetIntents: make(map[money.AssetID][]assetIntent),
	}
}

// addAssetIntent queues an intent under its asset id, keeping the per-asset
// map iteration order explicit.
func (g *group) addAssetIntent(id money.AssetID, it assetIntent) {
	if _, ok := g.assetIntents[id]; !ok {
		g.assetOrder = append(g.assetOrder, id)
	}
	g.assetIntents[id] = append(g.assetIntents[id], it)
}

func (g *group) hasAssetIntents() bool {
	return len(g.assetOrder) > 0
}

// Builder is the transaction-building session.
type Builder struct {
	opts Options
	rng  *rand.Rand

	groups  []*group
	current *group

	keys         []*ec.PrivateKey
	knownRedeems []*script.Script

	// CoinFinder supplies coins for outpoints outside the session's groups.
	CoinFinder CoinFinder

	// KeyFinder supplies keys for scripts the session's key set misses.
	KeyFinder KeyFinder

	// SelectNative and SelectAsset choose coins for the native and colored
	// funding passes. Both default to coinselect.Select.
	SelectNative coinselect.Func[int64]
	SelectAsset  coinselect.Func[uint64]

	// StandardPolicy and MinerPolicy are consulted by Verify.
	StandardPolicy policy.Policy
	MinerPolicy    policy.Policy

	// Repository receives out-of-band metadata strings, such as exchange
	// reasons. Defaults to an in-memory sink.
	Repository metadata.Repository

	lockTime    uint32
	lockTimeSet bool

	baseTx *transaction.Transaction

	issuedAsset *money.AssetID

	// stickyErr records the first configuration mistake; Build reports it.
	stickyErr error
}

// New creates a session. Invalid options surface on Build.
func New(opts Options) *Builder {
	b := &Builder{
		opts:           opts,
		SelectNative:   coinselect.Select[int64],
		SelectAsset:    coinselect.Select[uint64],
		StandardPolicy: &policy.Standard{RelayFeeRate: opts.RelayFeeRate},
		MinerPolicy:    &policy.Miner{},
		Repository:     metadata.NewMemRepository(),
	}
	if err := opts.Validate(); err != nil {
		b.fail(err)
	}
	seed := opts.Seed
	if seed == 0 {
		var buf [8]byte
		if _, err := crand.Read(buf[:]); err == nil {
			seed = int64(binary.LittleEndian.Uint64(buf[:]))
		}
	}
	b.rng = rand.New(rand.NewSource(seed))
	b.current = newGroup("group #1")
	b.groups = []*group{b.current}
	return b
}

// fail records the first configuration error for Build to report.
func (b *Builder) fail(err error) {
	if b.stickyErr == nil {
		b.stickyErr = err
	}
}

// Then closes the current group and opens a new one; later coins, change
// scripts and intents land in the new group.
func (b *Builder) Then() *Builder {
	b.current = newGroup(fmt.Sprintf("group #%d", len(b.groups)+1))
	b.groups = append(b.groups, b.current)
	return b
}

// SetGroupName names the current group; the name appears in
// not-enough-funds errors.
func (b *Builder) SetGroupName(name string) *Builder {
	b.current.name = name
	return b
}

// AddCoins adds spendable coins to the current group. A coin whose
// outpoint is already present replaces the earlier one.
func (b *Builder) AddCoins(coins ...coin.Coin) *Builder {
	for _, c := range coins {
		op := c.Outpoint()
		if _, ok := b.current.byOutpoint[op]; ok {
			for i, existing := range b.current.coins {
				if existing.Outpoint() == op {
					b.current.coins[i] = c
					break
				}
			}
		} else {
			b.current.coins = append(b.current.coins, c)
		}
		b.current.byOutpoint[op] = c
	}
	return b
}

// AddKeys adds signing keys to the session.
func (b *Builder) AddKeys(keys ...*ec.PrivateKey) *Builder {
	b.keys = append(b.keys, keys...)
	return b
}

// AddKnownRedeems registers redeem scripts the signer may need for
// script-hash inputs whose coins do not carry one.
func (b *Builder) AddKnownRedeems(redeems ...*script.Script) *Builder {
	b.knownRedeems = append(b.knownRedeems, redeems...)
	return b
}

// SetChange sets the current group's change script for native change.
func (b *Builder) SetChange(s *script.Script) *Builder {
	b.current.changeScripts[changeUncolored] = s
	return b
}

// SetColoredChange sets the current group's change script for asset change.
func (b *Builder) SetColoredChange(s *script.Script) *Builder {
	b.current.changeScripts[changeColored] = s
	return b
}

// SetCoverOnly caps the current group's native funding at amount plus
// change instead of the sum of its intents.
func (b *Builder) SetCoverOnly(amount money.Native) *Builder {
	b.current.coverOnly = amount
	b.current.coverOnlySet = true
	return b
}

// SetLockTime sets the transaction lock time; the first consumed input gets
// a non-final sequence so the lock time binds.
func (b *Builder) SetLockTime(lockTime uint32) *Builder {
	b.lockTime = lockTime
	b.lockTimeSet = true
	return b
}

// ContinueToBuild seeds the build with an existing partial transaction.
func (b *Builder) ContinueToBuild(tx *transaction.Transaction) *Builder {
	b.baseTx = cloneTransaction(tx)
	return b
}

// CoverTheRest targets the continued transaction's deficit: the amount its
// outputs exceed its known inputs. Fails when an input's coin is unknown.
func (b *Builder) CoverTheRest() error {
	if b.baseTx == nil {
		return ErrNoBaseTransaction
	}
	var spent money.Native
	for i, in := range b.baseTx.Inputs {
		op := inputOutpoint(in)
		c := b.findCoin(op)
		if c == nil {
			return &CoinNotFoundError{Outpoint: op, InputIndex: i}
		}
		spent += money.Native(c.Value())
	}
	var outs money.Native
	for _, o := range b.baseTx.Outputs {
		outs += money.Native(o.Satoshis)
	}
	deficit := outs - spent
	if deficit < 0 {
		deficit = 0
	}
	b.current.coverOnly = deficit
	b.current.coverOnlySet = true
	return nil
}

// Shuffle reorders each group's coins and intent lists with the session's
// random source. Group order and the structural pass order are untouched.
func (b *Builder) Shuffle() *Builder {
	for _, g := range b.groups {
		coinselect.Shuffle(b.rng, g.coins)
		coinselect.Shuffle(b.rng, g.nativeIntents)
		coinselect.Shuffle(b.rng, g.issuanceIntents)
		for _, id := range g.assetOrder {
			coinselect.Shuffle(b.rng, g.assetIntents[id])
		}
	}
	return b
}

// Send queues a native-currency send. With dust prevention on, a sub-dust
// amount to a non-data-carrier script joins the fee pool instead of
// producing an unrelayable output.
func (b *Builder) Send(s *script.Script, amount money.Native) *Builder {
	if amount < 0 {
		b.fail(fmt.Errorf("%w: %d", ErrNegativeAmount, amount))
		return b
	}
	if b.opts.DustPrevention && !policy.IsNullData(s) && uint64(amount) < b.dustFor(s) {
		return b.SendFees(amount)
	}
	b.current.nativeIntents = append(b.current.nativeIntents, &sendIntent{script: s, amount: amount})
	return b
}

// SendBag queues each component of a bag: the native part and every asset
// amount, each through its own path.
func (b *Builder) SendBag(s *script.Script, bag money.Bag) *Builder {
	if bag.Native != 0 {
		b.Send(s, bag.Native)
	}
	for _, a := range bag.Assets {
		b.SendAsset(s, a)
	}
	return b
}

// SendAsset queues a colored transfer of the given asset amount. A plain
// transfer cannot share a build with an exchange operation; Build fails
// with an opcode conflict. Queued in the same group before the operation,
// it makes the operation fail with ErrExchangeAfterAsset instead.
func (b *Builder) SendAsset(s *script.Script, asset money.Asset) *Builder {
	b.current.addAssetIntent(asset.ID, &sendAssetIntent{script: s, asset: asset})
	return b
}

// SendAssetToExchange queues a colored transfer whose marker entry is
// flagged for an exchange ledger; the marker becomes version 2, opcode
// 0x01. Build fails if the marker's opcode is already set to another value.
func (b *Builder) SendAssetToExchange(s *script.Script, asset money.Asset) *Builder {
	b.current.addAssetIntent(asset.ID, &sendAssetIntent{script: s, asset: asset, toExchange: true})
	return b
}

// PerformExchangeOperation queues an exchange between two asset positions:
// two flagged colored outputs under marker version 2 opcode 0x02, with the
// SHA-1 of reason as marker metadata. The reason itself goes to the
// session's metadata repository. The operation must be queued before any
// other asset intent in the group.
func (b *Builder) PerformExchangeOperation(s1 *script.Script, a1 money.Asset, s2 *script.Script, a2 money.Asset, reason string) *Builder {
	if b.current.hasAssetIntents() {
		b.fail(ErrExchangeAfterAsset)
		return b
	}
	b.current.addAssetIntent(a1.ID, &sendAssetIntent{script: s1, asset: a1, exchangeOp: true, reason: reason})
	b.current.addAssetIntent(a2.ID, &sendAssetIntent{script: s2, asset: a2, exchangeOp: true, reason: reason})
	return b
}

// IssueAsset queues the issuance of new units. Only one asset id may be
// issued per transaction; the current group must hold an issuance coin for
// that id when Build runs.
func (b *Builder) IssueAsset(s *script.Script, asset money.Asset) *Builder {
	if b.issuedAsset != nil && *b.issuedAsset != asset.ID {
		b.fail(fmt.Errorf("%w: %s and %s", ErrMultipleIssuance, b.issuedAsset, asset.ID))
		return b
	}
	id := asset.ID
	b.issuedAsset = &id
	b.current.issuanceIntents = append(b.current.issuanceIntents, &issueIntent{script: s, asset: asset})
	return b
}

// SendFees adds amount to the current group's native funding target
// without producing an output.
func (b *Builder) SendFees(amount money.Native) *Builder {
	if amount < 0 {
		b.fail(fmt.Errorf("%w: %d", ErrNegativeAmount, amount))
		return b
	}
	b.current.nativeIntents = append(b.current.nativeIntents, &feeIntent{amount: amount})
	return b
}

// SendFeesSplit spreads amount over all groups in near-equal shares, the
// remainder going to the last group.
func (b *Builder) SendFeesSplit(amount money.Native) *Builder {
	if amount < 0 {
		b.fail(fmt.Errorf("%w: %d", ErrNegativeAmount, amount))
		return b
	}
	n := money.Native(len(b.groups))
	share := amount / n
	var distributed money.Native
	for i, g := range b.groups {
		part := share
		if i == len(b.groups)-1 {
			part = amount - distributed
		}
		g.nativeIntents = append(g.nativeIntents, &feeIntent{amount: part})
		distributed += part
	}
	return b
}

// SendEstimatedFees builds an unsigned transaction from the queued intents,
// estimates its size, and queues the fee at the given rate (satoshis per
// kilobyte).
func (b *Builder) SendEstimatedFees(rate uint64) error {
	fee, err := b.estimateBuiltFees(rate)
	if err != nil {
		return err
	}
	b.SendFees(fee)
	return nil
}

// SendEstimatedFeesSplit is SendEstimatedFees with the fee spread over all
// groups.
func (b *Builder) SendEstimatedFeesSplit(rate uint64) error {
	fee, err := b.estimateBuiltFees(rate)
	if err != nil {
		return err
	}
	b.SendFeesSplit(fee)
	return nil
}

func (b *Builder) estimateBuiltFees(rate uint64) (money.Native, error) {
	tx, err := b.Build(false)
	if err != nil {
		return 0, err
	}
	fee, err := b.EstimateFees(tx, rate)
	if err != nil {
		return 0, err
	}
	return money.Native(fee), nil
}

// SendStealth queues a payment to a stealth address: a zero-value metadata
// output revealing the ephemeral key plus the derived pay output. The
// transaction's single data-carrier slot goes to the stealth payment, so a
// colored intent in the same build fails. A nil ephemeral key draws a fresh
// one; passing a key makes the payment reproducible.
func (b *Builder) SendStealth(addr *stealth.Address, amount money.Native, ephemeral *ec.PrivateKey) *Builder {
	if amount < 0 {
		b.fail(fmt.Errorf("%w: %d", ErrNegativeAmount, amount))
		return b
	}
	payment, err := addr.CreatePayment(ephemeral)
	if err != nil {
		b.fail(err)
		return b
	}
	b.current.nativeIntents = append(b.current.nativeIntents, &stealthIntent{payment: payment, amount: amount})
	return b
}

// dustFor returns the dust threshold for outputs paying to s.
func (b *Builder) dustFor(s *script.Script) uint64 {
	return policy.DustThreshold(s, b.opts.RelayFeeRate)
}

// nativeDust returns the pass-level dust threshold, derived for a
// standard-size pay-to-pubkey-hash output.
func (b *Builder) nativeDust() uint64 {
	return policy.DustThreshold(referenceP2PKHScript(), b.opts.RelayFeeRate)
}

// findCoin resolves an outpoint through every group's coin map, then the
// caller-supplied finder.
func (b *Builder) findCoin(op coin.Outpoint) coin.Coin {
	for _, g := range b.groups {
		if c, ok := g.byOutpoint[op]; ok {
			return c
		}
	}
	if b.CoinFinder != nil {
		return b.CoinFinder(op)
	}
	return nil
}

// inputOutpoint reads the outpoint an input spends.
func inputOutpoint(in *transaction.TransactionInput) coin.Outpoint {
	op := coin.Outpoint{Vout: in.SourceTxOutIndex}
	if in.SourceTXID != nil {
		op.TxID = *in.SourceTXID
	}
	return op
}

// referenceP2PKHScript is the dust-derivation reference output script.
func referenceP2PKHScript() *script.Script {
	s := &script.Script{}
	*s = append(*s, script.OpDUP, script.OpHASH160, script.OpDATA20)
	*s = append(*s, make([]byte, 20)...)
	*s = append(*s, script.OpEQUALVERIFY, script.OpCHECKSIG)
	return s
}
