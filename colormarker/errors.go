package colormarker

import "errors"

var (
	// ErrBadMagic indicates the payload does not open with a known tag.
	ErrBadMagic = errors.New("colormarker: unknown marker tag")

	// ErrBadVersion indicates a version other than 1 or 2.
	ErrBadVersion = errors.New("colormarker: unsupported marker version")

	// ErrBadOpcode indicates an unknown version-2 opcode.
	ErrBadOpcode = errors.New("colormarker: unknown marker opcode")

	// ErrQuantityTooLarge indicates a quantity above 2^63-1.
	ErrQuantityTooLarge = errors.New("colormarker: quantity exceeds maximum")

	// ErrOverlongLEB128 indicates a quantity encoding past ten bytes or a
	// tenth byte overflowing 64 bits.
	ErrOverlongLEB128 = errors.New("colormarker: overlong LEB128 quantity")

	// ErrTruncated indicates the payload ended mid-field.
	ErrTruncated = errors.New("colormarker: truncated marker payload")

	// ErrTrailingBytes indicates unused bytes after the last field.
	ErrTrailingBytes = errors.New("colormarker: trailing bytes after marker payload")

	// ErrNotMarkerScript indicates a script that is not OP_RETURN plus a
	// single push.
	ErrNotMarkerScript = errors.New("colormarker: script is not a marker script")
)
