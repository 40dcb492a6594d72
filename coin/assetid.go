package coin

import (
	"crypto/sha256"

	"github.com/bsv-blockchain/go-sdk/script"
	"golang.org/x/crypto/ripemd160"

	"github.com/coloredcoins/libcolored-go/money"
)

// Hash160 computes RIPEMD160(SHA256(b)).
func Hash160(b []byte) []byte {
	sha := sha256.Sum256(b)
	rip := ripemd160.New()
	rip.Write(sha[:])
	return rip.Sum(nil)
}

// AssetIDFromScript derives an asset id from an issuer locking script.
// The id is the hash160 of the raw script bytes, so every issuance output
// under the same script issues the same asset.
func AssetIDFromScript(s *script.Script) money.AssetID {
	var id money.AssetID
	copy(id[:], Hash160(s.Bytes()))
	return id
}

// ScriptHashFromLocking extracts the 20-byte script hash from a
// pay-to-script-hash locking script: OP_HASH160 <20 bytes> OP_EQUAL.
func ScriptHashFromLocking(s *script.Script) ([]byte, bool) {
	b := s.Bytes()
	if len(b) != 23 || b[0] != script.OpHASH160 || b[1] != script.OpDATA20 || b[22] != script.OpEQUAL {
		return nil, false
	}
	return b[2:22], true
}
