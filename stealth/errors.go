package stealth

import "errors"

var (
	// ErrNilKey indicates a required key is nil.
	ErrNilKey = errors.New("stealth: required key is nil")

	// ErrBadSignatureCount indicates the signature count exceeds the spend keys.
	ErrBadSignatureCount = errors.New("stealth: invalid signature count")

	// ErrBadTweak indicates the derived scalar is unusable.
	ErrBadTweak = errors.New("stealth: unusable derived key")
)
