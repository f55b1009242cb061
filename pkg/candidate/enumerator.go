package candidate

import (
	"errors"
	"time"

	"github.com/entropylab/keystorm/pkg/prng"
)

// Sentinel errors for malformed candidate spaces. These are
// configuration-level failures: the scan refuses to start rather than
// silently enumerating nothing.
var (
	ErrEmptySpace   = errors.New("candidate: empty candidate space")
	ErrBadTimeRange = errors.New("candidate: start timestamp after end timestamp")
	ErrBadStep      = errors.New("candidate: step must be positive")
)

// Space bounds the enumeration: a timestamp interval at a configured step,
// crossed with a prevalence-ordered fingerprint list, or a dictionary for
// word-driven sources. Exactly one of the two drives the inner loop.
type Space struct {
	Variant      prng.Variant
	Start, End   uint64 // inclusive, at the variant's native granularity
	Step         uint64
	Fingerprints []Fingerprint
	Words        []string
}

func (s Space) validate() error {
	if len(s.Words) == 0 {
		if s.Start > s.End {
			return ErrBadTimeRange
		}
		if s.Step == 0 {
			return ErrBadStep
		}
	}
	if len(s.Fingerprints) == 0 && len(s.Words) == 0 {
		return ErrEmptySpace
	}
	return nil
}

// Enumerator walks a Space lazily. It is single-consumer: the dispatcher
// pulls batches from it on one goroutine, so no locking is needed.
type Enumerator struct {
	space   Space
	cur     Cursor
	emitted uint64
	started time.Time
	done    bool
}

// New starts enumeration at the beginning of the space. Fingerprints are
// walked outer-loop in the order given (most prevalent first), timestamps
// inner-loop.
func New(space Space) (*Enumerator, error) {
	if err := space.validate(); err != nil {
		return nil, err
	}
	cur := Cursor{Timestamp: space.Start}
	return &Enumerator{space: space, cur: cur, started: time.Now()}, nil
}

// Resume starts enumeration at a saved cursor, for checkpoint restart.
func Resume(space Space, cur Cursor) (*Enumerator, error) {
	if err := space.validate(); err != nil {
		return nil, err
	}
	if cur.Timestamp < space.Start {
		cur.Timestamp = space.Start
	}
	return &Enumerator{space: space, cur: cur, started: time.Now()}, nil
}

// Next returns the next candidate, or ok=false when the space is
// exhausted.
func (e *Enumerator) Next() (Candidate, bool) {
	if e.done {
		return Candidate{}, false
	}
	if len(e.space.Words) > 0 {
		return e.nextWord()
	}
	return e.nextTimestamp()
}

func (e *Enumerator) nextWord() (Candidate, bool) {
	if e.cur.DictLine >= uint64(len(e.space.Words)) {
		e.done = true
		return Candidate{}, false
	}
	c := Candidate{
		Variant: e.space.Variant,
		Word:    e.space.Words[e.cur.DictLine],
	}
	e.cur.DictLine++
	e.emitted++
	return c, true
}

func (e *Enumerator) nextTimestamp() (Candidate, bool) {
	fps := e.space.Fingerprints
	if e.cur.FingerprintIdx >= len(fps) {
		e.done = true
		return Candidate{}, false
	}

	fp := &fps[e.cur.FingerprintIdx]
	c := Candidate{
		Variant:     e.space.Variant,
		Seed:        e.cur.Timestamp,
		Fingerprint: fp,
	}

	if e.cur.Timestamp+e.space.Step > e.space.End ||
		e.cur.Timestamp+e.space.Step < e.cur.Timestamp {
		// Interval exhausted for this fingerprint, move to the next one.
		e.cur.FingerprintIdx++
		e.cur.Timestamp = e.space.Start
	} else {
		e.cur.Timestamp += e.space.Step
	}

	e.emitted++
	return c, true
}

// Cursor reports the position of the next candidate to be emitted.
func (e *Enumerator) Cursor() Cursor {
	return e.cur
}

// Emitted reports how many candidates have been produced so far.
func (e *Enumerator) Emitted() uint64 {
	return e.emitted
}

// Rate reports candidates emitted per second since enumeration started.
func (e *Enumerator) Rate() float64 {
	secs := time.Since(e.started).Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(e.emitted) / secs
}

// Remaining estimates the number of candidates not yet emitted. For
// word-driven spaces this is exact; for timestamp spaces it is the product
// of remaining steps and fingerprints.
func (e *Enumerator) Remaining() uint64 {
	if len(e.space.Words) > 0 {
		return uint64(len(e.space.Words)) - e.cur.DictLine
	}
	if e.cur.FingerprintIdx >= len(e.space.Fingerprints) {
		return 0
	}
	perFP := (e.space.End-e.space.Start)/e.space.Step + 1
	inCurrent := (e.space.End-e.cur.Timestamp)/e.space.Step + 1
	fullFPs := uint64(len(e.space.Fingerprints) - e.cur.FingerprintIdx - 1)
	return inCurrent + fullFPs*perFP
}
