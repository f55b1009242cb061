package scan

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/entropylab/keystorm/pkg/candidate"
	"github.com/entropylab/keystorm/pkg/target"
)

// CPUBackend fans a batch out over a fixed worker pool. Each worker owns
// its generator and derivation pipeline, so workers share nothing but the
// read-only watch list and the result sink.
type CPUBackend struct {
	profile Profile
	set     *target.Set
	params  *chaincfg.Params
	workers int
}

// NewCPUBackend validates the profile against the generator registry and
// sizes the pool, defaulting to one worker per CPU.
func NewCPUBackend(profile Profile, set *target.Set, params *chaincfg.Params, workers int) (*CPUBackend, error) {
	if _, err := newRunner(profile, set, params); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{profile: profile, set: set, params: params, workers: workers}, nil
}

func (b *CPUBackend) Name() string { return "cpu" }

// RunBatch processes every candidate in the batch and returns the matches
// in canonical order. Cancellation aborts mid-batch with the context
// error; the dispatcher re-runs the batch from its checkpoint, so partial
// results are discarded.
func (b *CPUBackend) RunBatch(ctx context.Context, batch Batch) ([]Match, Stats, error) {
	workers := b.workers
	if workers > len(batch.Candidates) {
		workers = len(batch.Candidates)
	}
	if workers == 0 {
		return nil, Stats{}, nil
	}

	now := time.Now().UTC()
	var (
		mu       sync.Mutex
		all      []Match
		total    Stats
		firstErr error
		wg       sync.WaitGroup
	)

	shardSize := (len(batch.Candidates) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * shardSize
		hi := lo + shardSize
		if hi > len(batch.Candidates) {
			hi = len(batch.Candidates)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(shard []candidate.Candidate) {
			defer wg.Done()

			r, err := newRunner(b.profile, b.set, b.params)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			buf := make([]byte, r.stride())

			var local []Match
			var st Stats
			for _, c := range shard {
				if ctx.Err() != nil {
					err = ctx.Err()
					break
				}
				ms, cst, rerr := r.run(c, buf, now)
				st.Merge(cst)
				if rerr != nil {
					err = rerr
					break
				}
				local = append(local, ms...)
			}

			mu.Lock()
			total.Merge(st)
			all = append(all, local...)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}(batch.Candidates[lo:hi])
	}

	wg.Wait()

	sortMatches(all)
	if firstErr != nil {
		return nil, total, firstErr
	}
	return all, total, nil
}

// sortMatches puts matches in canonical order so backend output is
// independent of worker interleaving.
func sortMatches(ms []Match) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Address != ms[j].Address {
			return ms[i].Address < ms[j].Address
		}
		if ms[i].Path != ms[j].Path {
			return ms[i].Path < ms[j].Path
		}
		return ms[i].Seed < ms[j].Seed
	})
}
