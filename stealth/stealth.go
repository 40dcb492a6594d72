// Package stealth implements stealth-address payments: a sender derives a
// one-time pay script from the recipient's scan and spend keys plus a fresh
// ephemeral key, and the recipient uncovers the matching private key with
// the scan private key.
package stealth

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/bsv-blockchain/go-sdk/script"
)

const (
	// CompressedPubKeyLen is the length of a compressed public key.
	CompressedPubKeyLen = 33

	// metadataVersion tags the OP_RETURN stealth metadata payload.
	metadataVersion = 0x06

	// nonceLen is the length of the metadata nonce.
	nonceLen = 4
)

// Address is the recipient's stealth address material: one scan key and one
// or more spend keys, of which Signatures many must sign.
type Address struct {
	ScanKey    *ec.PublicKey
	SpendKeys  []*ec.PublicKey
	Signatures int
}

// NewAddress builds a stealth address. signatures defaults to 1.
func NewAddress(scan *ec.PublicKey, spendKeys []*ec.PublicKey, signatures int) (*Address, error) {
	if scan == nil {
		return nil, fmt.Errorf("%w: scan key", ErrNilKey)
	}
	if len(spendKeys) == 0 {
		return nil, fmt.Errorf("%w: spend keys", ErrNilKey)
	}
	if signatures <= 0 {
		signatures = 1
	}
	if signatures > len(spendKeys) {
		return nil, fmt.Errorf("%w: %d signatures from %d spend keys", ErrBadSignatureCount, signatures, len(spendKeys))
	}
	return &Address{ScanKey: scan, SpendKeys: spendKeys, Signatures: signatures}, nil
}

// Payment is a single stealth payment: the metadata output script revealing
// the ephemeral key and the derived pay script.
type Payment struct {
	Ephemeral *ec.PublicKey
	Metadata  *script.Script
	PayScript *script.Script
}

// sharedTweak derives the scalar added to the spend key:
// SHA256(compressed(priv·pub)). Both sides of the exchange compute the same
// point, so sender and recipient agree on the tweak.
func sharedTweak(priv *ec.PrivateKey, pub *ec.PublicKey) ([]byte, error) {
	point, err := priv.DeriveSharedSecret(pub)
	if err != nil {
		return nil, fmt.Errorf("stealth: shared secret: %w", err)
	}
	c := sha256.Sum256(point.Compressed())
	return c[:], nil
}

// tweakPublic returns spend + c*G.
func tweakPublic(spend *ec.PublicKey, c []byte) (*ec.PublicKey, error) {
	cKey, _ := ec.PrivateKeyFromBytes(c)
	if cKey == nil {
		return nil, ErrBadTweak
	}
	cPub := cKey.PubKey()
	x, y := ec.S256().Add(spend.X, spend.Y, cPub.X, cPub.Y)
	return &ec.PublicKey{Curve: ec.S256(), X: x, Y: y}, nil
}

// CreatePayment derives the pay script and metadata for a payment to the
// address. A nil ephemeral generates a fresh key; passing one makes the
// payment reproducible.
func (a *Address) CreatePayment(ephemeral *ec.PrivateKey) (*Payment, error) {
	if ephemeral == nil {
		var err error
		ephemeral, err = ec.NewPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("stealth: ephemeral key: %w", err)
		}
	}

	c, err := sharedTweak(ephemeral, a.ScanKey)
	if err != nil {
		return nil, err
	}

	uncovered := make([]*ec.PublicKey, len(a.SpendKeys))
	for i, spend := range a.SpendKeys {
		uncovered[i], err = tweakPublic(spend, c)
		if err != nil {
			return nil, err
		}
	}

	payScript, err := payScriptFor(uncovered, a.Signatures)
	if err != nil {
		return nil, err
	}
	meta, err := metadataScript(ephemeral.PubKey())
	if err != nil {
		return nil, err
	}

	return &Payment{
		Ephemeral: ephemeral.PubKey(),
		Metadata:  meta,
		PayScript: payScript,
	}, nil
}

// Uncover derives the private key spending a stealth payment:
// spend + SHA256(compressed(scan·ephemeral)) mod n.
func Uncover(scan *ec.PrivateKey, ephemeral *ec.PublicKey, spend *ec.PrivateKey) (*ec.PrivateKey, error) {
	if scan == nil || spend == nil {
		return nil, ErrNilKey
	}
	if ephemeral == nil {
		return nil, fmt.Errorf("%w: ephemeral key", ErrNilKey)
	}
	c, err := sharedTweak(scan, ephemeral)
	if err != nil {
		return nil, err
	}
	n := ec.S256().N
	d := new(big.Int).SetBytes(c)
	d.Add(d, spend.D)
	d.Mod(d, n)
	if d.Sign() == 0 {
		return nil, ErrBadTweak
	}
	b := d.Bytes()
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	priv, _ := ec.PrivateKeyFromBytes(padded)
	if priv == nil {
		return nil, ErrBadTweak
	}
	return priv, nil
}

// payScriptFor builds the locking script for the uncovered keys: P2PKH for a
// single key, bare multisig otherwise.
func payScriptFor(keys []*ec.PublicKey, signatures int) (*script.Script, error) {
	s := &script.Script{}
	if len(keys) == 1 {
		h := bsvhash.Hash160(keys[0].Compressed())
		*s = append(*s, script.OpDUP, script.OpHASH160)
		if err := s.AppendPushData(h); err != nil {
			return nil, fmt.Errorf("stealth: pay script: %w", err)
		}
		*s = append(*s, script.OpEQUALVERIFY, script.OpCHECKSIG)
		return s, nil
	}
	if err := s.AppendOpcodes(script.Op1 + uint8(signatures-1)); err != nil {
		return nil, fmt.Errorf("stealth: pay script: %w", err)
	}
	for _, k := range keys {
		if err := s.AppendPushData(k.Compressed()); err != nil {
			return nil, fmt.Errorf("stealth: pay script: %w", err)
		}
	}
	if err := s.AppendOpcodes(script.Op1+uint8(len(keys)-1), script.OpCHECKMULTISIG); err != nil {
		return nil, fmt.Errorf("stealth: pay script: %w", err)
	}
	return s, nil
}

// metadataScript builds the OP_RETURN output revealing the ephemeral key:
// OP_RETURN PUSH(version || nonce || ephemeral). The nonce is derived from
// the ephemeral key so identical payments serialize identically.
func metadataScript(ephemeral *ec.PublicKey) (*script.Script, error) {
	comp := ephemeral.Compressed()
	sum := sha256.Sum256(comp)

	payload := make([]byte, 0, 1+nonceLen+CompressedPubKeyLen)
	payload = append(payload, metadataVersion)
	payload = append(payload, sum[:nonceLen]...)
	payload = append(payload, comp...)

	s := &script.Script{}
	*s = append(*s, script.OpRETURN)
	if err := s.AppendPushData(payload); err != nil {
		return nil, fmt.Errorf("stealth: metadata script: %w", err)
	}
	return s, nil
}

// EphemeralFromMetadata extracts the ephemeral public key from a stealth
// metadata script. Returns false if the script is not stealth metadata.
func EphemeralFromMetadata(s *script.Script) (*ec.PublicKey, bool) {
	b := s.Bytes()
	// OP_RETURN PUSH38(version || nonce4 || key33)
	const payloadLen = 1 + nonceLen + CompressedPubKeyLen
	if len(b) != 2+payloadLen || b[0] != script.OpRETURN || b[1] != payloadLen {
		return nil, false
	}
	payload := b[2:]
	if payload[0] != metadataVersion {
		return nil, false
	}
	pub, err := ec.ParsePubKey(payload[1+nonceLen:])
	if err != nil {
		return nil, false
	}
	return pub, true
}
