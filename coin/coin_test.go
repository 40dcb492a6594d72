package coin

import (
	"bytes"
	"testing"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coloredcoins/libcolored-go/money"
)

func testOutpoint(t *testing.T, fill byte, vout uint32) Outpoint {
	t.Helper()
	op, err := NewOutpoint(bytes.Repeat([]byte{fill}, 32), vout)
	require.NoError(t, err)
	return op
}

func p2pkhScript(fill byte) *script.Script {
	s := &script.Script{}
	*s = append(*s, script.OpDUP, script.OpHASH160, script.OpDATA20)
	*s = append(*s, bytes.Repeat([]byte{fill}, 20)...)
	*s = append(*s, script.OpEQUALVERIFY, script.OpCHECKSIG)
	return s
}

func TestNewOutpointRejectsShortTxID(t *testing.T) {
	_, err := NewOutpoint([]byte{1, 2, 3}, 0)
	assert.ErrorIs(t, err, ErrInvalidOutpoint)
}

func TestPlainCoinAccessors(t *testing.T) {
	op := testOutpoint(t, 0xaa, 3)
	s := p2pkhScript(0x01)
	c := NewPlain(op, 5000, s)

	assert.Equal(t, op, c.Outpoint())
	assert.Equal(t, uint64(5000), c.Value())
	assert.Equal(t, s, c.LockingScript())
}

func TestScriptCoinVerifiesRedeemHash(t *testing.T) {
	redeem := p2pkhScript(0x07)

	lock := &script.Script{}
	*lock = append(*lock, script.OpHASH160, script.OpDATA20)
	*lock = append(*lock, Hash160(redeem.Bytes())...)
	*lock = append(*lock, script.OpEQUAL)

	plain := NewPlain(testOutpoint(t, 0x01, 0), 600, lock)
	sc, err := NewScriptCoin(plain, redeem)
	require.NoError(t, err)
	assert.Equal(t, redeem, sc.Redeem)

	// A redeem script that does not hash to the committed value fails.
	_, err = NewScriptCoin(plain, p2pkhScript(0x08))
	assert.ErrorIs(t, err, ErrRedeemMismatch)

	// A non-P2SH output cannot wrap a redeem script.
	_, err = NewScriptCoin(NewPlain(testOutpoint(t, 0x02, 0), 600, redeem), redeem)
	assert.ErrorIs(t, err, ErrRedeemMismatch)
}

func TestColoredCoinBearerSemantics(t *testing.T) {
	bearer := NewPlain(testOutpoint(t, 0x03, 1), 600, p2pkhScript(0x02))
	var id money.AssetID
	id[0] = 0x11

	colored := NewColored(bearer, id, 100)
	assert.Equal(t, bearer.Outpoint(), colored.Outpoint())
	assert.Equal(t, uint64(600), colored.Value(), "colored value is the bearer dust")
	assert.Equal(t, money.Asset{ID: id, Quantity: 100}, colored.Asset())
}

func TestIssuanceAssetIDDerivation(t *testing.T) {
	issuerScript := p2pkhScript(0x05)
	bearer := NewPlain(testOutpoint(t, 0x04, 0), 600, issuerScript)
	iss := NewIssuance(bearer)

	want := AssetIDFromScript(issuerScript)
	assert.Equal(t, want, iss.AssetID())

	// The same issuer script always derives the same id.
	other := NewIssuance(NewPlain(testOutpoint(t, 0x09, 2), 700, issuerScript))
	assert.Equal(t, want, other.AssetID())

	// A different script derives a different id.
	different := NewIssuance(NewPlain(testOutpoint(t, 0x0a, 0), 600, p2pkhScript(0x06)))
	assert.NotEqual(t, want, different.AssetID())
}

func TestHash160Length(t *testing.T) {
	assert.Len(t, Hash160([]byte("payload")), 20)
}
