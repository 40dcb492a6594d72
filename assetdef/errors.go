package assetdef

import "errors"

var (
	// ErrInvalidHandle indicates a handle that is not "name@domain".
	ErrInvalidHandle = errors.New("assetdef: invalid definition handle")

	// ErrLookupFailed indicates a DNS lookup failure.
	ErrLookupFailed = errors.New("assetdef: dns lookup failed")

	// ErrNoEndpoints indicates the domain publishes no definition records.
	ErrNoEndpoints = errors.New("assetdef: no definition records")

	// ErrDNSSECValidation indicates the response was not authenticated.
	ErrDNSSECValidation = errors.New("assetdef: dnssec validation failed")

	// ErrNilFetcher indicates FetchAll was called without a fetcher.
	ErrNilFetcher = errors.New("assetdef: nil fetcher")
)
