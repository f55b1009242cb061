package forensics

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrMalformedDER marks signature bytes that do not parse even under the
// lax rules below.
var ErrMalformedDER = errors.New("forensics: malformed DER signature")

// ParseDERSignature extracts the r and s scalars from a DER-encoded ECDSA
// signature. Parsing is deliberately lax: historical transactions carry
// signatures with redundant leading zeros, high-bit values without
// padding, and trailing sighash bytes, all of which strict parsers
// reject. Each integer must still fit 256 bits after trimming.
func ParseDERSignature(sig []byte) (r, s [32]byte, err error) {
	if len(sig) < 8 || sig[0] != 0x30 {
		return r, s, ErrMalformedDER
	}
	// Sequence length byte; anything after the sequence (sighash flag) is
	// ignored.
	seqLen := int(sig[1])
	if 2+seqLen > len(sig) {
		return r, s, ErrMalformedDER
	}
	body := sig[2 : 2+seqLen]

	rBytes, rest, err := readDERInt(body)
	if err != nil {
		return r, s, err
	}
	sBytes, _, err := readDERInt(rest)
	if err != nil {
		return r, s, err
	}
	copy(r[32-len(rBytes):], rBytes)
	copy(s[32-len(sBytes):], sBytes)
	return r, s, nil
}

func readDERInt(b []byte) (val, rest []byte, err error) {
	if len(b) < 2 || b[0] != 0x02 {
		return nil, nil, ErrMalformedDER
	}
	n := int(b[1])
	if n == 0 || 2+n > len(b) {
		return nil, nil, ErrMalformedDER
	}
	val = b[2 : 2+n]
	for len(val) > 1 && val[0] == 0x00 {
		val = val[1:]
	}
	if len(val) > 32 {
		return nil, nil, fmt.Errorf("%w: integer wider than 256 bits", ErrMalformedDER)
	}
	return val, b[2+n:], nil
}

// ParseDERSignatureHex is ParseDERSignature over a hex string, the form
// signatures arrive in from block explorer dumps.
func ParseDERSignatureHex(sigHex string) (r, s [32]byte, err error) {
	raw, decErr := hex.DecodeString(sigHex)
	if decErr != nil {
		return r, s, fmt.Errorf("%w: %v", ErrMalformedDER, decErr)
	}
	return ParseDERSignature(raw)
}
