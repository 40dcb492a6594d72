package builder

import (
	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/coloredcoins/libcolored-go/coin"
	"github.com/coloredcoins/libcolored-go/policy"
)

// templateKind names the output-script shapes the signer and estimator
// understand.
type templateKind int

const (
	templateUnknown templateKind = iota
	templateP2PK
	templateP2PKH
	templateMultisig
	templateP2SH
	templateNullData
)

// templateInfo is a classified script with its extracted parameters.
type templateInfo struct {
	kind       templateKind
	pubKey     []byte
	pubKeyHash []byte
	scriptHash []byte
	required   int
	pubKeys    [][]byte
}

// classifyScript recognizes the standard templates by shape.
func classifyScript(s *script.Script) templateInfo {
	b := s.Bytes()

	if policy.IsNullData(s) {
		return templateInfo{kind: templateNullData}
	}

	// OP_DUP OP_HASH160 <20> OP_EQUALVERIFY OP_CHECKSIG
	if len(b) == 25 && b[0] == script.OpDUP && b[1] == script.OpHASH160 &&
		b[2] == script.OpDATA20 && b[23] == script.OpEQUALVERIFY && b[24] == script.OpCHECKSIG {
		return templateInfo{kind: templateP2PKH, pubKeyHash: b[3:23]}
	}

	if h, ok := coin.ScriptHashFromLocking(s); ok {
		return templateInfo{kind: templateP2SH, scriptHash: h}
	}

	// <33|65 byte key> OP_CHECKSIG
	if (len(b) == 35 && b[0] == 33 || len(b) == 67 && b[0] == 65) && b[len(b)-1] == script.OpCHECKSIG {
		return templateInfo{kind: templateP2PK, pubKey: b[1 : len(b)-1]}
	}

	if info, ok := classifyMultisig(b); ok {
		return info
	}

	return templateInfo{kind: templateUnknown}
}

// classifyMultisig matches OP_m <keys...> OP_n OP_CHECKMULTISIG.
func classifyMultisig(b []byte) (templateInfo, bool) {
	if len(b) < 4 || b[0] < script.Op1 || b[0] > script.Op16 {
		return templateInfo{}, false
	}
	required := int(b[0]-script.Op1) + 1

	var keys [][]byte
	i := 1
	for i < len(b) && (b[i] == 33 || b[i] == 65) {
		l := int(b[i])
		if i+1+l > len(b) {
			return templateInfo{}, false
		}
		keys = append(keys, b[i+1:i+1+l])
		i += 1 + l
	}
	if len(keys) == 0 || i+2 != len(b) {
		return templateInfo{}, false
	}
	if b[i] < script.Op1 || b[i] > script.Op16 || int(b[i]-script.Op1)+1 != len(keys) {
		return templateInfo{}, false
	}
	if b[i+1] != script.OpCHECKMULTISIG || required > len(keys) {
		return templateInfo{}, false
	}
	return templateInfo{kind: templateMultisig, required: required, pubKeys: keys}, true
}

// p2pkhLockingScript builds OP_DUP OP_HASH160 <hash> OP_EQUALVERIFY
// OP_CHECKSIG.
func p2pkhLockingScript(pubKeyHash []byte) *script.Script {
	s := &script.Script{}
	*s = append(*s, script.OpDUP, script.OpHASH160, script.OpDATA20)
	*s = append(*s, pubKeyHash...)
	*s = append(*s, script.OpEQUALVERIFY, script.OpCHECKSIG)
	return s
}

// p2shLockingScript builds OP_HASH160 <hash> OP_EQUAL.
func p2shLockingScript(scriptHash []byte) *script.Script {
	s := &script.Script{}
	*s = append(*s, script.OpHASH160, script.OpDATA20)
	*s = append(*s, scriptHash...)
	*s = append(*s, script.OpEQUAL)
	return s
}

// pushesOf returns the data pushes of a push-only script, in order.
// Non-push opcodes OP_0..OP_16 contribute empty or single-byte pushes.
func pushesOf(s *script.Script) [][]byte {
	if s == nil {
		return nil
	}
	b := s.Bytes()
	var pushes [][]byte
	for i := 0; i < len(b); {
		op := b[i]
		switch {
		case op == script.Op0:
			pushes = append(pushes, nil)
			i++
		case op <= 0x4b:
			if i+1+int(op) > len(b) {
				return pushes
			}
			pushes = append(pushes, b[i+1:i+1+int(op)])
			i += 1 + int(op)
		case op == script.OpPUSHDATA1:
			if i+1 >= len(b) {
				return pushes
			}
			l := int(b[i+1])
			if i+2+l > len(b) {
				return pushes
			}
			pushes = append(pushes, b[i+2:i+2+l])
			i += 2 + l
		case op == script.OpPUSHDATA2:
			if i+2 >= len(b) {
				return pushes
			}
			l := int(b[i+1]) | int(b[i+2])<<8
			if i+3+l > len(b) {
				return pushes
			}
			pushes = append(pushes, b[i+3:i+3+l])
			i += 3 + l
		case op >= script.Op1 && op <= script.Op16:
			pushes = append(pushes, []byte{op - script.Op1 + 1})
			i++
		default:
			i++
		}
	}
	return pushes
}

// pushOverhead is the length of the push opcode prefix for n data bytes.
func pushOverhead(n int) int {
	switch {
	case n <= 0x4b:
		return 1
	case n <= 0xff:
		return 2
	default:
		return 3
	}
}
