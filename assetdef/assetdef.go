// Package assetdef handles asset definition pointers: the "u=" metadata an
// issuance marker carries, and the DNS-based resolution of definition
// handles to fetchable endpoints.
package assetdef

import (
	"fmt"
	"strings"
)

// MetadataPrefix introduces a definition URL inside marker metadata.
const MetadataPrefix = "u="

// ParsePointer extracts the definition URL from marker metadata. Returns
// false when the metadata is not a definition pointer.
func ParsePointer(metadata []byte) (string, bool) {
	s := string(metadata)
	if !strings.HasPrefix(s, MetadataPrefix) {
		return "", false
	}
	url := s[len(MetadataPrefix):]
	if url == "" {
		return "", false
	}
	return url, true
}

// FormatPointer renders a definition URL as marker metadata.
func FormatPointer(url string) []byte {
	return []byte(MetadataPrefix + url)
}

// SplitHandle splits a definition handle "name@domain".
func SplitHandle(handle string) (name, domain string, err error) {
	at := strings.LastIndex(handle, "@")
	if at <= 0 || at == len(handle)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return handle[:at], handle[at+1:], nil
}
