// Package scan drives the search: it pulls candidates from the
// enumerator, fans them out to a compute backend, matches derived
// addresses against the watch list, and checkpoints progress after every
// batch so an interrupted scan resumes without rework.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entropylab/keystorm/pkg/candidate"
	"github.com/entropylab/keystorm/pkg/prng"
)

// ErrBackendInit marks a backend that cannot start on this host. The
// dispatcher falls back to the CPU backend when it sees it.
var ErrBackendInit = errors.New("scan: backend initialization failed")

// Batch is the unit of dispatch and the granularity of cancellation and
// checkpointing: a batch either completes or is re-run from the previous
// checkpoint, never half-applied.
type Batch struct {
	ID         uint64
	Candidates []candidate.Candidate
}

// Match is one watch list hit. The controlling key is unexported and
// reachable only through ExportSecret, so matches can be logged and
// serialized without leaking key material.
type Match struct {
	Address     string                 `json:"address"`
	Path        string                 `json:"path"`
	VulnClass   string                 `json:"vuln_class"`
	Variant     prng.Variant           `json:"variant"`
	Seed        uint64                 `json:"seed"`
	Word        string                 `json:"word,omitempty"`
	Fingerprint *candidate.Fingerprint `json:"fingerprint,omitempty"`
	FoundAt     time.Time              `json:"found_at"`

	wif string
}

// ExportSecret returns the private key in wallet import format. This is
// the only channel key material leaves the scan through.
func (m Match) ExportSecret() string {
	return m.wif
}

// String renders the match for logs, without key material.
func (m Match) String() string {
	return fmt.Sprintf("%s via %s (%s seed=%d)", m.Address, m.Path, m.Variant, m.Seed)
}

// Stats counts work done by a backend. Fields are plain uint64 because a
// Stats value is only ever written by one goroutine; backends aggregate
// per-worker counters with atomics and merge at batch end.
type Stats struct {
	Candidates uint64
	Keys       uint64
	Addresses  uint64
	Degenerate uint64
}

// Merge folds another Stats into this one.
func (s *Stats) Merge(o Stats) {
	s.Candidates += o.Candidates
	s.Keys += o.Keys
	s.Addresses += o.Addresses
	s.Degenerate += o.Degenerate
}

// Backend executes one batch and reports matches. Implementations must be
// deterministic: the same batch yields the same match set regardless of
// internal parallelism or buffering.
type Backend interface {
	Name() string
	RunBatch(ctx context.Context, batch Batch) ([]Match, Stats, error)
}
