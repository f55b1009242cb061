package forensics

import (
	"bytes"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func scalarFromByte(b byte) *secp256k1.ModNScalar {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	raw[0] &= 0x3f // keep well under the group order
	s := new(secp256k1.ModNScalar)
	s.SetBytes(&raw)
	return s
}

func digest(b byte) (z [32]byte) {
	for i := range z {
		z[i] = b ^ 0xa5
	}
	return
}

// signWithNonce produces an ECDSA signature with an explicitly chosen
// nonce, the failure mode under test.
func signWithNonce(d, k *secp256k1.ModNScalar, z [32]byte) (rb, sb [32]byte) {
	var pt secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &pt)
	pt.ToAffine()

	var xb [32]byte
	pt.X.PutBytes(&xb)
	var r secp256k1.ModNScalar
	r.SetBytes(&xb)

	var zs secp256k1.ModNScalar
	zs.SetBytes(&z)

	s := new(secp256k1.ModNScalar).Set(&r)
	s.Mul(d).Add(&zs).Mul(new(secp256k1.ModNScalar).InverseValNonConst(k))

	r.PutBytes(&rb)
	s.PutBytes(&sb)
	return
}

func reusePair(d, k *secp256k1.ModNScalar, withPubKey bool) Pair {
	z1, z2 := digest(1), digest(2)
	r1, s1 := signWithNonce(d, k, z1)
	r2, s2 := signWithNonce(d, k, z2)

	var pub []byte
	if withPubKey {
		pub = secp256k1.NewPrivateKey(d).PubKey().SerializeCompressed()
	}
	return Pair{
		A: Observation{TxID: "aa", Vin: 0, R: r1, S: s1, Z: z1, PubKey: pub},
		B: Observation{TxID: "bb", Vin: 0, R: r2, S: s2, Z: z2, PubKey: pub},
	}
}

func TestRecoverSharedNonce(t *testing.T) {
	d := scalarFromByte(0x17)
	pair := reusePair(d, scalarFromByte(0x2b), true)

	priv, err := Recover(pair)
	if err != nil {
		t.Fatal(err)
	}
	want := secp256k1.NewPrivateKey(d)
	if !bytes.Equal(priv.Serialize(), want.Serialize()) {
		t.Errorf("recovered key %x, want %x", priv.Serialize(), want.Serialize())
	}
}

func TestRecoverLowSNormalized(t *testing.T) {
	d := scalarFromByte(0x17)
	pair := reusePair(d, scalarFromByte(0x2b), true)

	// Relays rewrite s to n-s; the raw algebra on the rewritten value
	// yields garbage, so recovery must try the negated branch.
	var s2 secp256k1.ModNScalar
	s2.SetBytes(&pair.B.S)
	s2.Negate()
	s2.PutBytes(&pair.B.S)

	priv, err := Recover(pair)
	if err != nil {
		t.Fatal(err)
	}
	want := secp256k1.NewPrivateKey(d)
	if !bytes.Equal(priv.Serialize(), want.Serialize()) {
		t.Errorf("recovered key %x, want %x", priv.Serialize(), want.Serialize())
	}
}

func TestRecoverWithoutPubKey(t *testing.T) {
	d := scalarFromByte(0x33)
	pair := reusePair(d, scalarFromByte(0x05), false)

	priv, err := Recover(pair)
	if err != nil {
		t.Fatal(err)
	}
	want := secp256k1.NewPrivateKey(d)
	if !bytes.Equal(priv.Serialize(), want.Serialize()) {
		t.Error("nonce-point verification path recovered the wrong key")
	}
}

func TestRecoverRejectsDegeneratePairs(t *testing.T) {
	d := scalarFromByte(0x17)
	pair := reusePair(d, scalarFromByte(0x2b), true)

	sameS := pair
	sameS.B.S = sameS.A.S
	if _, err := Recover(sameS); !errors.Is(err, ErrNotReusable) {
		t.Errorf("equal-s pair: err = %v, want ErrNotReusable", err)
	}

	diffR := pair
	diffR.B.R[31] ^= 1
	if _, err := Recover(diffR); !errors.Is(err, ErrNotReusable) {
		t.Errorf("different-r pair: err = %v, want ErrNotReusable", err)
	}
}

func TestRecoverRejectsCoincidentalCollision(t *testing.T) {
	d := scalarFromByte(0x17)
	pair := reusePair(d, scalarFromByte(0x2b), true)

	// Forge B: same r bytes, but s and z from an unrelated signature. The
	// algebra still produces a candidate; verification must reject it.
	other := scalarFromByte(0x61)
	z3 := digest(9)
	_, s3 := signWithNonce(other, scalarFromByte(0x49), z3)
	pair.B.S = s3
	pair.B.Z = z3

	if _, err := Recover(pair); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("collision pair: err = %v, want ErrKeyMismatch", err)
	}
}

func TestIndexFiltersDuplicatesAndEqualS(t *testing.T) {
	d := scalarFromByte(0x17)
	pair := reusePair(d, scalarFromByte(0x2b), false)

	ix := NewIndex()
	ix.Add(pair.A)
	ix.Add(pair.A) // same txid/vin seen again
	if got := ix.Pairs(); len(got) != 0 {
		t.Fatalf("duplicate observation produced %d pairs", len(got))
	}

	relay := pair.A
	relay.TxID = "cc" // same signature under a different txid
	ix.Add(relay)
	if got := ix.Pairs(); len(got) != 0 {
		t.Fatalf("equal-s observations produced %d pairs", len(got))
	}

	ix.Add(pair.B)
	got := ix.Pairs()
	if len(got) != 2 {
		// B pairs with both copies of the A signature.
		t.Fatalf("found %d pairs, want 2", len(got))
	}
	if _, err := Recover(got[0]); err != nil {
		t.Errorf("indexed pair does not recover: %v", err)
	}
}

func TestParseDERSignature(t *testing.T) {
	// 0x30 len 0x02 len r 0x02 len s, with a sighash byte appended and a
	// redundant leading zero on r.
	sig := []byte{
		0x30, 0x0b,
		0x02, 0x03, 0x00, 0x81, 0x02,
		0x02, 0x04, 0x10, 0x20, 0x30, 0x40,
		0x01, // SIGHASH_ALL
	}
	r, s, err := ParseDERSignature(sig)
	if err != nil {
		t.Fatal(err)
	}
	if r[30] != 0x81 || r[31] != 0x02 {
		t.Errorf("r tail = %x, want 8102", r[30:])
	}
	if s[28] != 0x10 || s[31] != 0x40 {
		t.Errorf("s = %x", s[28:])
	}

	bad := [][]byte{
		nil,
		{0x30},
		{0x31, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01}, // wrong tag
		{0x30, 0x06, 0x02, 0x30, 0x01, 0x02, 0x01, 0x01}, // overlong int
	}
	for i, b := range bad {
		if _, _, err := ParseDERSignature(b); !errors.Is(err, ErrMalformedDER) {
			t.Errorf("case %d: err = %v, want ErrMalformedDER", i, err)
		}
	}
}

func TestParseDERSignatureHex(t *testing.T) {
	r, _, err := ParseDERSignatureHex("3006020107020109")
	if err != nil {
		t.Fatal(err)
	}
	if r[31] != 0x07 {
		t.Errorf("r = %x", r[31])
	}
	if _, _, err := ParseDERSignatureHex("zz"); err == nil {
		t.Error("bad hex accepted")
	}
}
