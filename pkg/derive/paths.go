package derive

import "fmt"

// AddressType is the semantic encoding of a derived public key.
type AddressType int

const (
	// Legacy is P2PKH over the compressed public key.
	Legacy AddressType = iota
	// LegacyUncompressed is P2PKH over the 65-byte uncompressed key, the
	// encoding browser-era wallets actually produced.
	LegacyUncompressed
	// NestedSegWit is P2SH-wrapped P2WPKH (BIP49).
	NestedSegWit
	// NativeSegWit is P2WPKH (BIP84).
	NativeSegWit
	// Taproot is P2TR with the BIP86 no-script tweak.
	Taproot
)

func (t AddressType) String() string {
	switch t {
	case Legacy:
		return "p2pkh"
	case LegacyUncompressed:
		return "p2pkh-uncompressed"
	case NestedSegWit:
		return "p2sh-p2wpkh"
	case NativeSegWit:
		return "p2wpkh"
	case Taproot:
		return "p2tr"
	}
	return "unknown"
}

const hardened = 0x80000000

// PathSpec is one derivation path template: the account-level prefix, the
// change branch, and the address type its chain encodes as. The address
// index is appended per candidate.
type PathSpec struct {
	Name   string
	Prefix []uint32 // child numbers up to and excluding change/index
	Change uint32
	Type   AddressType
}

// String renders the template with a concrete index, m/44'/0'/0'/0/7 style.
func (p PathSpec) String(index uint32) string {
	s := "m"
	for _, n := range p.Prefix {
		if n >= hardened {
			s += fmt.Sprintf("/%d'", n-hardened)
		} else {
			s += fmt.Sprintf("/%d", n)
		}
	}
	return s + fmt.Sprintf("/%d/%d", p.Change, index)
}

// BIP44Path is the single-path default: legacy external chain.
func BIP44Path() PathSpec {
	return PathSpec{
		Name:   "bip44",
		Prefix: []uint32{hardened + 44, hardened, hardened},
		Type:   Legacy,
	}
}

// StandardPaths covers every purpose-coded template plus the legacy
// account-first layout used by pre-BIP44 wallets, external and change
// branches both.
func StandardPaths() []PathSpec {
	var out []PathSpec
	purposes := []struct {
		name    string
		purpose uint32
		typ     AddressType
	}{
		{"bip44", 44, Legacy},
		{"bip49", 49, NestedSegWit},
		{"bip84", 84, NativeSegWit},
		{"bip86", 86, Taproot},
	}
	for _, p := range purposes {
		for change := uint32(0); change <= 1; change++ {
			out = append(out, PathSpec{
				Name:   p.name,
				Prefix: []uint32{hardened + p.purpose, hardened, hardened},
				Change: change,
				Type:   p.typ,
			})
		}
	}
	// Electrum-era account-first layout: m/0'/0/i.
	out = append(out, PathSpec{
		Name:   "account-first",
		Prefix: []uint32{hardened},
		Type:   Legacy,
	})
	return out
}
