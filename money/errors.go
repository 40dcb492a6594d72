package money

import "errors"

var (
	// ErrInvalidAssetID indicates an asset id is not 20 hex-decodable bytes.
	ErrInvalidAssetID = errors.New("money: invalid asset id")
)
