// Package money defines the value types moved by the transaction builder:
// native satoshi amounts, 20-byte asset identifiers, asset quantities, and
// bags combining both.
package money

import (
	"encoding/hex"
	"fmt"
)

// AssetIDLen is the byte length of an asset identifier.
const AssetIDLen = 20

// MaxQuantity is the largest asset quantity the overlay encoding admits.
const MaxQuantity = uint64(1)<<63 - 1

// Native is an amount of the native currency in satoshis. Negative values
// appear transiently inside fee accounting, never in outputs.
type Native int64

// AssetID identifies an asset. It is the hash160 of the issuer script.
type AssetID [AssetIDLen]byte

// String returns the hex encoding of the asset id.
func (id AssetID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseAssetID decodes a hex-encoded 20-byte asset id.
func ParseAssetID(s string) (AssetID, error) {
	var id AssetID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %w", ErrInvalidAssetID, err)
	}
	if len(b) != AssetIDLen {
		return id, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAssetID, len(b), AssetIDLen)
	}
	copy(id[:], b)
	return id, nil
}

// Asset is a quantity of a single asset.
type Asset struct {
	ID       AssetID
	Quantity uint64
}

// Bag is a multiset of native currency and asset quantities. Sending a bag
// is equivalent to sending each component separately.
type Bag struct {
	Native Native
	Assets []Asset
}

// Add returns a bag with the given asset quantity merged in.
func (b Bag) Add(a Asset) Bag {
	for i := range b.Assets {
		if b.Assets[i].ID == a.ID {
			b.Assets[i].Quantity += a.Quantity
			return b
		}
	}
	b.Assets = append(b.Assets, a)
	return b
}
