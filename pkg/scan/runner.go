package scan

import (
	"crypto/sha256"
	"errors"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/entropylab/keystorm/pkg/candidate"
	"github.com/entropylab/keystorm/pkg/derive"
	"github.com/entropylab/keystorm/pkg/prng"
	"github.com/entropylab/keystorm/pkg/target"
)

// runner is the per-worker derivation context. Both backends execute
// candidates through the same two stages, material then derivation, so
// they cannot diverge on what a candidate yields; the stages are split
// because the pipeline backend overlaps them across slots.
type runner struct {
	profile Profile
	set     *target.Set
	engine  prng.Engine
	pipe    *derive.Pipeline
}

func newRunner(profile Profile, set *target.Set, params *chaincfg.Params) (*runner, error) {
	engine, err := prng.New(profile.Variant)
	if err != nil {
		return nil, err
	}
	return &runner{
		profile: profile,
		set:     set,
		engine:  engine,
		pipe:    derive.NewPipeline(params, profile.Paths, profile.IndexStart, profile.IndexCount),
	}, nil
}

// stride is the key material width per candidate.
func (r *runner) stride() int {
	if r.profile.EntropyLen > 0 {
		return r.profile.EntropyLen
	}
	return sha256.Size
}

// material fills dst with the candidate's raw key material: the generator
// stream for timestamp candidates, SHA256 for dictionary words.
func (r *runner) material(c candidate.Candidate, dst []byte) {
	if c.Word != "" {
		sum := sha256.Sum256([]byte(c.Word))
		copy(dst, sum[:])
		return
	}
	r.engine.Seed(c.Seed)
	r.engine.NextBytes(dst)
}

// deriveMaterial runs the derivation pipeline over prepared material and
// probes every resulting address against the watch list. Degenerate keys
// are counted and skipped; any other error aborts the batch.
func (r *runner) deriveMaterial(c candidate.Candidate, material []byte, now time.Time) ([]Match, Stats, error) {
	st := Stats{Candidates: 1}

	var derived []derive.Derived
	var err error
	if r.profile.DirectKey {
		derived, err = r.pipe.Direct(material)
	} else {
		derived, err = r.pipe.FromEntropy(material)
	}
	if errors.Is(err, derive.ErrDegenerateKey) {
		st.Degenerate = 1
		return nil, st, nil
	}
	if err != nil {
		return nil, st, err
	}
	st.Keys = 1

	var matches []Match
	for i := range derived {
		d := &derived[i]
		st.Addresses++
		hit, cerr := r.set.Contains(d.Address)
		if cerr != nil {
			err = cerr
			break
		}
		if hit {
			wif, werr := d.WIF()
			if werr != nil {
				err = werr
				break
			}
			matches = append(matches, Match{
				Address:     d.Address,
				Path:        d.Path,
				VulnClass:   r.profile.Name,
				Variant:     c.Variant,
				Seed:        c.Seed,
				Word:        c.Word,
				Fingerprint: c.Fingerprint,
				FoundAt:     now,
				wif:         wif,
			})
		}
	}
	for i := range derived {
		derived[i].Zero()
	}
	if err != nil {
		return nil, st, err
	}
	return matches, st, nil
}

// run executes both stages for one candidate using buf as scratch.
func (r *runner) run(c candidate.Candidate, buf []byte, now time.Time) ([]Match, Stats, error) {
	r.material(c, buf)
	return r.deriveMaterial(c, buf, now)
}
