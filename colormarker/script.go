package colormarker

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// Script materializes the marker as a null-data locking script:
// OP_RETURN PUSH(payload).
func (m *Marker) Script() (*script.Script, error) {
	payload, err := m.Encode()
	if err != nil {
		return nil, err
	}
	s := &script.Script{}
	*s = append(*s, script.OpRETURN)
	if err := s.AppendPushData(payload); err != nil {
		return nil, fmt.Errorf("colormarker: marker script: %w", err)
	}
	return s, nil
}

// Output materializes the marker as a zero-value transaction output.
func (m *Marker) Output() (*transaction.TransactionOutput, error) {
	s, err := m.Script()
	if err != nil {
		return nil, err
	}
	return &transaction.TransactionOutput{Satoshis: 0, LockingScript: s}, nil
}

// PayloadFromScript extracts the marker payload from a null-data script.
// The script must be exactly OP_RETURN followed by a single push.
func PayloadFromScript(s *script.Script) ([]byte, error) {
	b := s.Bytes()
	if len(b) < 2 || b[0] != script.OpRETURN {
		return nil, ErrNotMarkerScript
	}
	rest := b[1:]

	var payload []byte
	op := rest[0]
	switch {
	case op >= 0x01 && op <= 0x4b:
		if len(rest) != 1+int(op) {
			return nil, ErrNotMarkerScript
		}
		payload = rest[1:]
	case op == script.OpPUSHDATA1:
		if len(rest) < 2 || len(rest) != 2+int(rest[1]) {
			return nil, ErrNotMarkerScript
		}
		payload = rest[2:]
	case op == script.OpPUSHDATA2:
		if len(rest) < 3 {
			return nil, ErrNotMarkerScript
		}
		n := int(rest[1]) | int(rest[2])<<8
		if len(rest) != 3+n {
			return nil, ErrNotMarkerScript
		}
		payload = rest[3:]
	default:
		return nil, ErrNotMarkerScript
	}
	return payload, nil
}

// FromScript decodes the marker carried by a null-data script.
func FromScript(s *script.Script) (*Marker, error) {
	payload, err := PayloadFromScript(s)
	if err != nil {
		return nil, err
	}
	return Decode(payload)
}

// FromTransaction locates the transaction's marker: the first output whose
// script decodes as a valid marker. Returns the marker and the output
// index, or nil and -1 when no output qualifies.
func FromTransaction(tx *transaction.Transaction) (*Marker, int) {
	for i, out := range tx.Outputs {
		if out.LockingScript == nil {
			continue
		}
		m, err := FromScript(out.LockingScript)
		if err != nil {
			continue
		}
		return m, i
	}
	return nil, -1
}

// ValidInTransaction reports whether the marker's quantity count fits the
// enclosing transaction: at most one quantity per non-marker output.
func (m *Marker) ValidInTransaction(tx *transaction.Transaction) bool {
	return len(m.Quantities) <= len(tx.Outputs)-1
}
