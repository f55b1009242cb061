// Package forensics recovers private keys from ECDSA nonce reuse. Two
// signatures from the same key sharing an r value expose the nonce, and
// through it the key. The package indexes observed signatures by r,
// surfaces reuse pairs, and runs the algebraic recovery with a mandatory
// check of the result against the claimed public key.
package forensics

// Observation is one signature seen on chain, with the message digest it
// signed and, when known, the public key that produced it.
type Observation struct {
	TxID string
	Vin  int
	R    [32]byte
	S    [32]byte
	Z    [32]byte // digest of the signed message
	// PubKey is the serialized public key from the input script, if the
	// script type exposes one. Recovery verifies against it when present.
	PubKey []byte
}

// Pair is two observations sharing an r value, a recovery candidate.
type Pair struct {
	A, B Observation
}

// Index accumulates observations and reports nonce-reuse pairs. It is not
// safe for concurrent use.
type Index struct {
	byR map[[32]byte][]Observation
}

func NewIndex() *Index {
	return &Index{byR: make(map[[32]byte][]Observation)}
}

// Add records an observation. Re-adding the same (txid, vin) is a no-op so
// overlapping input dumps do not manufacture fake reuse.
func (ix *Index) Add(obs Observation) {
	bucket := ix.byR[obs.R]
	for _, seen := range bucket {
		if seen.TxID == obs.TxID && seen.Vin == obs.Vin {
			return
		}
	}
	ix.byR[obs.R] = append(ix.byR[obs.R], obs)
}

// Pairs returns every recovery candidate: observations sharing r with
// distinct s values. Equal-s pairs are the same signature relayed twice
// and algebraically useless, so they are filtered here rather than failing
// later in recovery.
func (ix *Index) Pairs() []Pair {
	var out []Pair
	for _, bucket := range ix.byR {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if bucket[i].S == bucket[j].S {
					continue
				}
				out = append(out, Pair{A: bucket[i], B: bucket[j]})
			}
		}
	}
	return out
}

// Len reports the number of distinct r values observed.
func (ix *Index) Len() int {
	return len(ix.byR)
}
