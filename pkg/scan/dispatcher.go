package scan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/entropylab/keystorm/internal/logger"
	"github.com/entropylab/keystorm/pkg/candidate"
	"github.com/entropylab/keystorm/pkg/target"
)

// State is the dispatcher's position in its batch cycle.
type State int32

const (
	StateIdle State = iota
	StateBatchInFlight
	StateCheckpointing
	StateHalted
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBatchInFlight:
		return "batch-in-flight"
	case StateCheckpointing:
		return "checkpointing"
	case StateHalted:
		return "halted"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// DispatcherConfig wires a scan together.
type DispatcherConfig struct {
	Profile Profile
	Space   candidate.Space
	Backend Backend
	// ParityBackend, when set, re-runs every ParityEvery-th batch on both
	// backends and fails the scan on divergence.
	ParityBackend Backend
	ParityEvery   uint64
	BatchSize     int
	// CheckpointPath enables resume. An existing checkpoint for the same
	// profile moves the cursor past completed batches.
	CheckpointPath string
	// OnMatch is invoked synchronously for every match, before the batch
	// is checkpointed, so no hit can be lost to a crash after its batch
	// completed.
	OnMatch     func(Match)
	Logger      *logger.Logger
	LogInterval time.Duration
	Verbose     bool
}

// Summary is the result of a finished or halted scan.
type Summary struct {
	Stats    Stats
	Matches  []Match
	Batches  uint64
	Duration time.Duration
	State    State
}

// Dispatcher owns the scan loop. Batches are the unit of everything:
// dispatch, cancellation, checkpointing, parity. Between batches it is
// safe to stop; within a batch it never is.
type Dispatcher struct {
	cfg   DispatcherConfig
	enum  *candidate.Enumerator
	state atomic.Int32

	stats       Stats
	matches     []Match
	nextBatch   uint64
	scanned     atomic.Uint64
	started     time.Time
	elapsedBase float64
}

// NewDispatcher validates the config and positions the enumerator,
// resuming from the checkpoint file when one exists for this profile.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Backend == nil {
		return nil, errors.New("scan: no backend configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New()
	}

	d := &Dispatcher{cfg: cfg}

	if cfg.CheckpointPath != "" {
		cp, err := LoadCheckpoint(cfg.CheckpointPath)
		if err != nil {
			return nil, err
		}
		if cp != nil && cp.Profile == cfg.Profile.Name {
			enum, err := candidate.Resume(cfg.Space, cp.Cursor)
			if err != nil {
				return nil, err
			}
			d.enum = enum
			d.nextBatch = cp.NextBatch
			d.stats.Candidates = cp.Candidates
			d.stats.Keys = cp.Keys
			d.stats.Addresses = cp.Addresses
			d.elapsedBase = cp.ElapsedSeconds
			if cfg.Verbose {
				cfg.Logger.Printf("Resuming %s scan from batch %d (%d candidates done)",
					cfg.Profile.Name, cp.NextBatch, cp.Candidates)
			}
		}
	}
	if d.enum == nil {
		enum, err := candidate.New(cfg.Space)
		if err != nil {
			return nil, err
		}
		d.enum = enum
	}
	return d, nil
}

// State reports the current scan state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Run executes the scan to exhaustion or cancellation. On cancellation
// the in-flight batch is abandoned, the last completed batch's checkpoint
// stands, and ctx.Err() is returned alongside the partial summary.
func (d *Dispatcher) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	d.started = start

	var tickerDone chan struct{}
	if d.cfg.Verbose && d.cfg.LogInterval > 0 {
		tickerDone = make(chan struct{})
		total := d.stats.Candidates + d.enum.Remaining()
		go d.progressLogger(start, total, tickerDone)
		d.cfg.Logger.Printf("Scan started: profile %s, backend %s, batch size %d, %d candidates",
			d.cfg.Profile.Name, d.cfg.Backend.Name(), d.cfg.BatchSize, d.enum.Remaining())
	}
	defer func() {
		if tickerDone != nil {
			close(tickerDone)
		}
	}()

	for {
		if ctx.Err() != nil {
			d.state.Store(int32(StateHalted))
			return d.summary(start, StateHalted), ctx.Err()
		}

		d.state.Store(int32(StateIdle))
		batch := d.pullBatch()
		if len(batch.Candidates) == 0 {
			d.state.Store(int32(StateDone))
			return d.summary(start, StateDone), nil
		}

		d.state.Store(int32(StateBatchInFlight))
		matches, stats, err := d.cfg.Backend.RunBatch(ctx, batch)
		if err != nil {
			d.state.Store(int32(StateHalted))
			return d.summary(start, StateHalted), err
		}

		if d.cfg.ParityBackend != nil && d.cfg.ParityEvery > 0 &&
			batch.ID%d.cfg.ParityEvery == 0 {
			if perr := VerifyParity(ctx, d.cfg.Backend, d.cfg.ParityBackend, batch); perr != nil {
				d.state.Store(int32(StateHalted))
				return d.summary(start, StateHalted), perr
			}
		}

		d.stats.Merge(stats)
		d.scanned.Store(d.stats.Candidates)
		for _, m := range matches {
			if d.cfg.OnMatch != nil {
				d.cfg.OnMatch(m)
			}
			d.matches = append(d.matches, m)
		}

		d.state.Store(int32(StateCheckpointing))
		if err := d.saveCheckpoint(); err != nil {
			d.state.Store(int32(StateHalted))
			return d.summary(start, StateHalted), err
		}
	}
}

func (d *Dispatcher) pullBatch() Batch {
	batch := Batch{ID: d.nextBatch}
	for len(batch.Candidates) < d.cfg.BatchSize {
		c, ok := d.enum.Next()
		if !ok {
			break
		}
		batch.Candidates = append(batch.Candidates, c)
	}
	if len(batch.Candidates) > 0 {
		d.nextBatch++
	}
	return batch
}

func (d *Dispatcher) saveCheckpoint() error {
	if d.cfg.CheckpointPath == "" {
		return nil
	}
	cp := &Checkpoint{
		Profile:        d.cfg.Profile.Name,
		Cursor:         d.enum.Cursor(),
		NextBatch:      d.nextBatch,
		Candidates:     d.stats.Candidates,
		Keys:           d.stats.Keys,
		Addresses:      d.stats.Addresses,
		Matches:        len(d.matches),
		ElapsedSeconds: d.elapsedBase + time.Since(d.started).Seconds(),
		UpdatedAt:      time.Now().UTC(),
	}
	return cp.Save(d.cfg.CheckpointPath)
}

func (d *Dispatcher) summary(start time.Time, state State) *Summary {
	return &Summary{
		Stats:    d.stats,
		Matches:  d.matches,
		Batches:  d.nextBatch,
		Duration: time.Since(start),
		State:    state,
	}
}

// progressLogger reports scan rate at regular intervals until the scan
// ends. It reads only atomics, never the enumerator, which belongs to
// the scan goroutine.
func (d *Dispatcher) progressLogger(start time.Time, total uint64, done chan struct{}) {
	ticker := time.NewTicker(d.cfg.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			scanned := d.scanned.Load()
			elapsed := time.Since(start)

			rate := 0.0
			if elapsed.Seconds() > 0 {
				rate = float64(scanned) / elapsed.Seconds()
			}
			remaining := uint64(0)
			if total > scanned {
				remaining = total - scanned
			}
			d.cfg.Logger.Printf("Progress: %d candidates, %.2f keys/sec, %d remaining, state %s",
				scanned, rate, remaining, d.State())
		case <-done:
			return
		}
	}
}

// SelectBackend builds the requested backend, falling back to the CPU
// backend with a single log line when the pipeline backend cannot
// initialize on this host.
func SelectBackend(kind string, profile Profile, set *target.Set, params *chaincfg.Params,
	workers, slotCandidates int, log *logger.Logger) (Backend, error) {
	switch kind {
	case "", "cpu":
		return NewCPUBackend(profile, set, params, workers)
	case "pipeline", "gpu":
		b, err := NewPipelineBackend(profile, set, params, slotCandidates)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrBackendInit) {
			return nil, err
		}
		log.Printf("Pipeline backend unavailable (%v), falling back to cpu", err)
		return NewCPUBackend(profile, set, params, workers)
	}
	return nil, fmt.Errorf("scan: unknown backend %q", kind)
}
