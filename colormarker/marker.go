// Package colormarker encodes and decodes the asset overlay carried by a
// transaction's marker output. The payload travels in a zero-value
// OP_RETURN output and lists the asset quantities assigned to the
// transaction's other outputs, a format version, an optional exchange
// opcode, and free-form metadata.
package colormarker

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// TagOpenAsset is the classic overlay magic, "OA" on the wire.
	TagOpenAsset = uint16(0x414f)

	// TagExchange is the exchange-extension magic, "CO" on the wire.
	TagExchange = uint16(0x4f43)

	// VersionTransfer is the original marker version.
	VersionTransfer = uint16(1)

	// VersionExchange adds the opcode byte and exchange flags.
	VersionExchange = uint16(2)

	// OpcodeToExchange marks a transfer whose flagged outputs move to an
	// exchange ledger.
	OpcodeToExchange = byte(0x01)

	// OpcodeExchange marks an exchange operation; metadata carries a
	// 20-byte digest of the out-of-band reason.
	OpcodeExchange = byte(0x02)

	// MaxQuantity is the largest encodable quantity.
	MaxQuantity = uint64(1)<<63 - 1

	// maxLEB128Len caps a single encoded quantity.
	maxLEB128Len = 10
)

// Marker is the decoded overlay payload. Quantities map positionally onto
// the enclosing transaction's non-marker outputs; ExchangeFlags parallels
// Quantities and is meaningful only for version 2: opcode 0x01 carries it
// as a bitfield, and Decode reports every entry of an opcode 0x02 marker
// as flagged.
type Marker struct {
	Tag           uint16
	Version       uint16
	Opcode        byte
	Quantities    []uint64
	Metadata      []byte
	ExchangeFlags []bool
}

// New returns a version-1 marker under the default tag.
func New() *Marker {
	return &Marker{Tag: TagOpenAsset, Version: VersionTransfer}
}

// Clone deep-copies the marker.
func (m *Marker) Clone() *Marker {
	c := *m
	c.Quantities = append([]uint64(nil), m.Quantities...)
	c.Metadata = append([]byte(nil), m.Metadata...)
	c.ExchangeFlags = append([]bool(nil), m.ExchangeFlags...)
	return &c
}

// SetQuantity grows the quantity list as needed and records quantity at
// index. The flag list grows in step so the two stay parallel.
func (m *Marker) SetQuantity(index int, quantity uint64) {
	for len(m.Quantities) <= index {
		m.Quantities = append(m.Quantities, 0)
		m.ExchangeFlags = append(m.ExchangeFlags, false)
	}
	m.Quantities[index] = quantity
}

// InsertQuantity shifts quantities at and after index up by one position.
// Issuance uses this to claim position 0.
func (m *Marker) InsertQuantity(index int, quantity uint64) {
	for len(m.Quantities) < index {
		m.Quantities = append(m.Quantities, 0)
		m.ExchangeFlags = append(m.ExchangeFlags, false)
	}
	m.Quantities = append(m.Quantities, 0)
	m.ExchangeFlags = append(m.ExchangeFlags, false)
	copy(m.Quantities[index+1:], m.Quantities[index:])
	copy(m.ExchangeFlags[index+1:], m.ExchangeFlags[index:])
	m.Quantities[index] = quantity
	m.ExchangeFlags[index] = false
}

// SetExchangeFlag marks the quantity at index as exchange-bound.
func (m *Marker) SetExchangeFlag(index int) {
	m.SetQuantity(index, m.quantityAt(index))
	m.ExchangeFlags[index] = true
}

func (m *Marker) quantityAt(index int) uint64 {
	if index < len(m.Quantities) {
		return m.Quantities[index]
	}
	return 0
}

// Encode serializes the marker payload.
func (m *Marker) Encode() ([]byte, error) {
	if m.Version != VersionTransfer && m.Version != VersionExchange {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, m.Version)
	}
	if m.Version == VersionExchange && m.Opcode != OpcodeToExchange && m.Opcode != OpcodeExchange {
		return nil, fmt.Errorf("%w: 0x%02x", ErrBadOpcode, m.Opcode)
	}
	for _, q := range m.Quantities {
		if q > MaxQuantity {
			return nil, fmt.Errorf("%w: %d", ErrQuantityTooLarge, q)
		}
	}

	var buf bytes.Buffer
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], m.Tag)
	buf.Write(u16[:])
	binary.LittleEndian.PutUint16(u16[:], m.Version)
	buf.Write(u16[:])
	if m.Version == VersionExchange {
		buf.WriteByte(m.Opcode)
	}
	writeCompactSize(&buf, uint64(len(m.Quantities)))
	for _, q := range m.Quantities {
		writeLEB128(&buf, q)
	}

	meta := m.Metadata
	if m.Version == VersionExchange && m.Opcode == OpcodeToExchange {
		meta = append(m.flagBytes(), m.Metadata...)
	}
	writeCompactSize(&buf, uint64(len(meta)))
	buf.Write(meta)

	return buf.Bytes(), nil
}

// flagBytes packs the exchange flags: the flag array is consumed in reverse
// quantity order, each bit placed least-significant-first within its byte.
func (m *Marker) flagBytes() []byte {
	n := len(m.Quantities)
	out := make([]byte, (n+7)/8)
	bit := 0
	for i := n - 1; i >= 0; i-- {
		if i < len(m.ExchangeFlags) && m.ExchangeFlags[i] {
			out[bit/8] |= 1 << (bit % 8)
		}
		bit++
	}
	return out
}

// Decode parses a marker payload. The whole payload must be consumed.
func Decode(payload []byte) (*Marker, error) {
	r := &reader{buf: payload}

	tag, err := r.u16()
	if err != nil {
		return nil, err
	}
	if tag != TagOpenAsset && tag != TagExchange {
		return nil, fmt.Errorf("%w: 0x%04x", ErrBadMagic, tag)
	}
	version, err := r.u16()
	if err != nil {
		return nil, err
	}
	if version != VersionTransfer && version != VersionExchange {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}

	m := &Marker{Tag: tag, Version: version}
	if version == VersionExchange {
		op, err := r.u8()
		if err != nil {
			return nil, err
		}
		if op != OpcodeToExchange && op != OpcodeExchange {
			return nil, fmt.Errorf("%w: 0x%02x", ErrBadOpcode, op)
		}
		m.Opcode = op
	}

	n, err := r.compactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(payload)) {
		// Each quantity takes at least one byte.
		return nil, fmt.Errorf("%w: %d quantities in %d bytes", ErrTruncated, n, len(payload))
	}
	m.Quantities = make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		q, err := r.leb128()
		if err != nil {
			return nil, err
		}
		if q > MaxQuantity {
			return nil, fmt.Errorf("%w: %d", ErrQuantityTooLarge, q)
		}
		m.Quantities = append(m.Quantities, q)
	}
	m.ExchangeFlags = make([]bool, len(m.Quantities))

	meta, err := r.varBytes()
	if err != nil {
		return nil, err
	}
	if r.pos != len(payload) {
		return nil, fmt.Errorf("%w: %d bytes unused", ErrTrailingBytes, len(payload)-r.pos)
	}

	if version == VersionExchange && m.Opcode == OpcodeToExchange {
		flagLen := (len(m.Quantities) + 7) / 8
		if len(meta) < flagLen {
			return nil, fmt.Errorf("%w: exchange flags", ErrTruncated)
		}
		bit := 0
		for i := len(m.Quantities) - 1; i >= 0; i-- {
			m.ExchangeFlags[i] = meta[bit/8]>>(bit%8)&1 == 1
			bit++
		}
		meta = meta[flagLen:]
	}
	if version == VersionExchange && m.Opcode == OpcodeExchange {
		// An exchange operation carries no bitfield: every quantity it
		// moves is exchange-bound.
		for i := range m.ExchangeFlags {
			m.ExchangeFlags[i] = true
		}
	}
	m.Metadata = append([]byte{}, meta...)

	return m, nil
}
