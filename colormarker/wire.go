package colormarker

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// reader walks a payload with an explicit position so decode can enforce
// full consumption.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) u8() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// compactSize reads a Bitcoin variable-length integer.
func (r *reader) compactSize() (uint64, error) {
	b, err := r.u8()
	if err != nil {
		return 0, err
	}
	switch b {
	case 0xfd:
		v, err := r.u16()
		return uint64(v), err
	case 0xfe:
		raw, err := r.take(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(raw)), nil
	case 0xff:
		raw, err := r.take(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(raw), nil
	default:
		return uint64(b), nil
	}
}

// leb128 reads an unsigned base-128 value, continuation-bit variant, capped
// at ten bytes. The tenth byte may only contribute the 64th bit.
func (r *reader) leb128() (uint64, error) {
	var v uint64
	for i := 0; i < maxLEB128Len; i++ {
		b, err := r.u8()
		if err != nil {
			return 0, err
		}
		if i == maxLEB128Len-1 && b > 0x01 {
			return 0, fmt.Errorf("%w: tenth byte 0x%02x", ErrOverlongLEB128, b)
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrOverlongLEB128
}

// varBytes reads a length-prefixed byte string.
func (r *reader) varBytes() ([]byte, error) {
	n, err := r.compactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.pos) {
		return nil, ErrTruncated
	}
	return r.take(int(n))
}

func writeCompactSize(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xfd:
		buf.WriteByte(byte(v))
	case v <= 0xffff:
		buf.WriteByte(0xfd)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		buf.Write(b[:])
	case v <= 0xffffffff:
		buf.WriteByte(0xfe)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	default:
		buf.WriteByte(0xff)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
}

func writeLEB128(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}
