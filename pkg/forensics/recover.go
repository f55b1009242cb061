package forensics

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// ErrNotReusable marks a pair that cannot yield a key: different r
	// values, or identical s (the same signature observed twice).
	ErrNotReusable = errors.New("forensics: signatures do not share a usable nonce")
	// ErrInvalidSignature marks scalars outside [1, n).
	ErrInvalidSignature = errors.New("forensics: signature scalar out of range")
	// ErrKeyMismatch marks a coincidental r collision between unrelated
	// keys: the algebra produces a candidate, but it fails verification.
	ErrKeyMismatch = errors.New("forensics: recovered key fails verification")
)

// Recover extracts the private key from two signatures that reused a
// nonce: k = (z1-z2)/(s1-s2), d = (s1*k - z1)/r, all mod n. Wallets and
// relays normalize s to the low half of the range, so the s2-negated
// branch is tried as well. The result is never returned unverified: it
// must match the observed public key, or when no key was observed, the
// nonce it implies must reproduce r.
func Recover(p Pair) (*btcec.PrivateKey, error) {
	if p.A.R != p.B.R {
		return nil, ErrNotReusable
	}

	var r, s1, s2, z1, z2 secp256k1.ModNScalar
	if r.SetBytes(&p.A.R) != 0 || r.IsZero() {
		return nil, ErrInvalidSignature
	}
	if s1.SetBytes(&p.A.S) != 0 || s1.IsZero() {
		return nil, ErrInvalidSignature
	}
	if s2.SetBytes(&p.B.S) != 0 || s2.IsZero() {
		return nil, ErrInvalidSignature
	}
	// Digests reduce mod n by definition of ECDSA.
	z1.SetBytes(&p.A.Z)
	z2.SetBytes(&p.B.Z)

	if scalarsEqual(&s1, &s2) {
		return nil, ErrNotReusable
	}

	for _, negateS2 := range []bool{false, true} {
		s2branch := new(secp256k1.ModNScalar).Set(&s2)
		if negateS2 {
			s2branch.Negate()
		}
		d := candidateKey(&z1, &z2, &s1, s2branch, &r)
		if d == nil {
			continue
		}
		priv := secp256k1.NewPrivateKey(d)
		if verifyCandidate(priv, &p, &z1, &s1, &r) {
			return priv, nil
		}
		priv.Zero()
	}
	return nil, ErrKeyMismatch
}

// candidateKey runs the reuse algebra for one sign branch. Returns nil
// when the branch degenerates (equal s or zero key).
func candidateKey(z1, z2, s1, s2, r *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	den := new(secp256k1.ModNScalar).Set(s1)
	den.Add(new(secp256k1.ModNScalar).Set(s2).Negate())
	if den.IsZero() {
		return nil
	}

	k := new(secp256k1.ModNScalar).Set(z1)
	k.Add(new(secp256k1.ModNScalar).Set(z2).Negate())
	k.Mul(new(secp256k1.ModNScalar).InverseValNonConst(den))

	d := new(secp256k1.ModNScalar).Set(s1)
	d.Mul(k)
	d.Add(new(secp256k1.ModNScalar).Set(z1).Negate())
	d.Mul(new(secp256k1.ModNScalar).InverseValNonConst(r))
	if d.IsZero() {
		return nil
	}
	return d
}

// verifyCandidate checks the recovered key against the observed public
// key when one is available, otherwise re-derives the nonce and checks
// that its point reproduces r. A candidate that fails both is a
// coincidental r collision, not a recovery.
func verifyCandidate(priv *secp256k1.PrivateKey, p *Pair, z1, s1, r *secp256k1.ModNScalar) bool {
	for _, raw := range [][]byte{p.A.PubKey, p.B.PubKey} {
		if len(raw) == 0 {
			continue
		}
		pub, err := secp256k1.ParsePubKey(raw)
		if err != nil {
			return false
		}
		return bytes.Equal(priv.PubKey().SerializeCompressed(), pub.SerializeCompressed())
	}

	// k = (z1 + r*d) / s1, then check x(kG) mod n == r.
	k := new(secp256k1.ModNScalar).Set(r)
	k.Mul(&priv.Key)
	k.Add(z1)
	k.Mul(new(secp256k1.ModNScalar).InverseValNonConst(s1))

	var pt secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &pt)
	pt.ToAffine()

	var xb [32]byte
	pt.X.PutBytes(&xb)
	var x secp256k1.ModNScalar
	x.SetBytes(&xb)
	return scalarsEqual(&x, r)
}

func scalarsEqual(a, b *secp256k1.ModNScalar) bool {
	var ab, bb [32]byte
	a.PutBytes(&ab)
	b.PutBytes(&bb)
	return ab == bb
}
