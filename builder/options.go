package builder

import (
	"fmt"

	"github.com/coloredcoins/libcolored-go/colormarker"
	"github.com/coloredcoins/libcolored-go/policy"
)

// Options configures a builder session.
type Options struct {
	// Seed seeds the session's random source. Zero draws a random seed;
	// a fixed seed makes builds fully reproducible.
	Seed int64

	// DustPrevention reroutes sub-dust sends into the fee pool and widens
	// the fee tolerance of Verify. On by default through DefaultOptions.
	DustPrevention bool

	// RelayFeeRate is the relay fee rate in satoshis per kilobyte used to
	// derive dust thresholds.
	RelayFeeRate uint64

	// MarkerTag is the overlay magic written into markers.
	MarkerTag uint16
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		DustPrevention: true,
		RelayFeeRate:   policy.DefaultRelayFeeRate,
		MarkerTag:      colormarker.TagOpenAsset,
	}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.RelayFeeRate == 0 {
		return ErrZeroRelayFeeRate
	}
	if o.MarkerTag != colormarker.TagOpenAsset && o.MarkerTag != colormarker.TagExchange {
		return fmt.Errorf("%w: 0x%04x", ErrUnknownMarkerTag, o.MarkerTag)
	}
	return nil
}
