package coin

import "errors"

var (
	// ErrInvalidOutpoint indicates the txid is not 32 bytes.
	ErrInvalidOutpoint = errors.New("coin: invalid outpoint")

	// ErrRedeemMismatch indicates a redeem script does not hash to the
	// output's committed script hash.
	ErrRedeemMismatch = errors.New("coin: redeem script mismatch")
)
