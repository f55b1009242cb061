package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/entropylab/keystorm/pkg/candidate"
	"github.com/entropylab/keystorm/pkg/target"
)

const (
	defaultSlotCandidates = 2048
	maxSlotCandidates     = 1 << 16
)

// PipelineBackend overlaps generator expansion with derivation using two
// arena slots: while one slot's material is being derived and matched,
// the next slot is being filled. Output is bit-identical to the CPU
// backend because both run the same candidate stages; the parity check
// enforces that at runtime.
type PipelineBackend struct {
	profile Profile
	set     *target.Set
	params  *chaincfg.Params
	slotCap int
	stride  int
}

// NewPipelineBackend sizes the two arenas. Errors wrap ErrBackendInit so
// the dispatcher can fall back to the CPU backend.
func NewPipelineBackend(profile Profile, set *target.Set, params *chaincfg.Params, slotCandidates int) (*PipelineBackend, error) {
	if slotCandidates == 0 {
		slotCandidates = defaultSlotCandidates
	}
	if slotCandidates < 0 || slotCandidates > maxSlotCandidates {
		return nil, fmt.Errorf("%w: slot size %d out of range (max %d)",
			ErrBackendInit, slotCandidates, maxSlotCandidates)
	}
	probe, err := newRunner(profile, set, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendInit, err)
	}
	return &PipelineBackend{
		profile: profile,
		set:     set,
		params:  params,
		slotCap: slotCandidates,
		stride:  probe.stride(),
	}, nil
}

func (b *PipelineBackend) Name() string { return "pipeline" }

// slotRef hands a filled arena slot from the fill stage to the derive
// stage.
type slotRef struct {
	slot       int
	candidates []candidate.Candidate
}

func (b *PipelineBackend) RunBatch(ctx context.Context, batch Batch) ([]Match, Stats, error) {
	filler, err := newRunner(b.profile, b.set, b.params)
	if err != nil {
		return nil, Stats{}, err
	}
	deriver, err := newRunner(b.profile, b.set, b.params)
	if err != nil {
		return nil, Stats{}, err
	}

	arenas := [2][]byte{
		make([]byte, b.slotCap*b.stride),
		make([]byte, b.slotCap*b.stride),
	}
	free := make(chan int, 2)
	free <- 0
	free <- 1
	filled := make(chan slotRef, 2)

	fillCtx, cancelFill := context.WithCancel(ctx)
	defer cancelFill()

	// Fill stage: expand candidates into whichever arena slot is free.
	go func() {
		defer close(filled)
		rest := batch.Candidates
		for len(rest) > 0 {
			n := b.slotCap
			if n > len(rest) {
				n = len(rest)
			}
			chunk := rest[:n]
			rest = rest[n:]

			var slot int
			select {
			case slot = <-free:
			case <-fillCtx.Done():
				return
			}
			for i, c := range chunk {
				filler.material(c, arenas[slot][i*b.stride:(i+1)*b.stride])
			}
			select {
			case filled <- slotRef{slot: slot, candidates: chunk}:
			case <-fillCtx.Done():
				return
			}
		}
	}()

	now := time.Now().UTC()
	var all []Match
	var total Stats
	for ref := range filled {
		for i, c := range ref.candidates {
			if err == nil && ctx.Err() != nil {
				err = ctx.Err()
			}
			if err != nil {
				break
			}
			material := arenas[ref.slot][i*b.stride : (i+1)*b.stride]
			ms, st, derr := deriver.deriveMaterial(c, material, now)
			total.Merge(st)
			if derr != nil {
				err = derr
				break
			}
			all = append(all, ms...)
		}
		if err != nil {
			cancelFill()
			// Keep draining so the fill goroutine exits.
			continue
		}
		free <- ref.slot
	}

	if err != nil {
		return nil, total, err
	}
	sortMatches(all)
	return all, total, nil
}
