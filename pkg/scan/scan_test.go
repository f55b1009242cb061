package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/entropylab/keystorm/internal/logger"
	"github.com/entropylab/keystorm/pkg/candidate"
	"github.com/entropylab/keystorm/pkg/derive"
	"github.com/entropylab/keystorm/pkg/prng"
	"github.com/entropylab/keystorm/pkg/target"
)

// plantedScan builds a small direct-key scan space with the addresses for
// seed 5 planted on the watch list, so exactly that candidate matches.
func plantedScan(t *testing.T) (Profile, candidate.Space, *target.Set, []byte) {
	t.Helper()

	profile := Profile{
		Name:       "mwc-browser",
		Variant:    prng.MWC1616,
		EntropyLen: 32,
		DirectKey:  true,
	}

	eng, err := prng.New(profile.Variant)
	if err != nil {
		t.Fatal(err)
	}
	eng.Seed(5)
	keyBytes := make([]byte, 32)
	eng.NextBytes(keyBytes)

	priv, err := derive.DirectKey(keyBytes)
	if err != nil {
		t.Fatal(err)
	}
	var addrs []string
	for _, typ := range []derive.AddressType{derive.Legacy, derive.LegacyUncompressed} {
		addr, err := derive.EncodeAddress(priv.PubKey(), typ, nil)
		if err != nil {
			t.Fatal(err)
		}
		addrs = append(addrs, addr)
	}

	store, err := target.Open(filepath.Join(t.TempDir(), "targets.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.ImportAddresses(strings.NewReader(strings.Join(addrs, "\n")), profile.Name); err != nil {
		t.Fatal(err)
	}
	set, err := target.NewSet(store, 0.001)
	if err != nil {
		t.Fatal(err)
	}

	space := candidate.Space{
		Variant:      profile.Variant,
		Start:        0,
		End:          29,
		Step:         1,
		Fingerprints: []candidate.Fingerprint{{Platform: "Win32"}},
	}
	return profile, space, set, keyBytes
}

func drainSpace(t *testing.T, space candidate.Space) []candidate.Candidate {
	t.Helper()
	enum, err := candidate.New(space)
	if err != nil {
		t.Fatal(err)
	}
	var out []candidate.Candidate
	for {
		c, ok := enum.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestCPUBackendFindsPlantedMatch(t *testing.T) {
	profile, space, set, keyBytes := plantedScan(t)
	backend, err := NewCPUBackend(profile, set, nil, 4)
	if err != nil {
		t.Fatal(err)
	}

	batch := Batch{ID: 1, Candidates: drainSpace(t, space)}
	matches, stats, err := backend.RunBatch(context.Background(), batch)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Candidates != 30 {
		t.Errorf("candidates = %d, want 30", stats.Candidates)
	}
	// Both the compressed and uncompressed encodings are planted.
	if len(matches) != 2 {
		t.Fatalf("found %d matches, want 2", len(matches))
	}
	for _, m := range matches {
		if m.Seed != 5 {
			t.Errorf("match seed = %d, want 5", m.Seed)
		}
		if m.VulnClass != "mwc-browser" {
			t.Errorf("vuln class = %s", m.VulnClass)
		}
		wif, err := btcutil.DecodeWIF(m.ExportSecret())
		if err != nil {
			t.Fatalf("exported secret does not decode: %v", err)
		}
		if !bytes.Equal(wif.PrivKey.Serialize(), keyBytes) {
			t.Error("exported key differs from the planted key")
		}
	}
}

func TestPipelineBackendParity(t *testing.T) {
	profile, space, set, _ := plantedScan(t)
	cpu, err := NewCPUBackend(profile, set, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	// Slot smaller than the batch forces multiple buffer rotations.
	pipe, err := NewPipelineBackend(profile, set, nil, 7)
	if err != nil {
		t.Fatal(err)
	}

	batch := Batch{ID: 1, Candidates: drainSpace(t, space)}
	if err := VerifyParity(context.Background(), cpu, pipe, batch); err != nil {
		t.Fatalf("backends diverge: %v", err)
	}
}

func TestVerifyParityDetectsDroppedMatch(t *testing.T) {
	profile, space, set, _ := plantedScan(t)
	cpu, err := NewCPUBackend(profile, set, nil, 2)
	if err != nil {
		t.Fatal(err)
	}

	batch := Batch{ID: 9, Candidates: drainSpace(t, space)}
	err = VerifyParity(context.Background(), cpu, droppingBackend{cpu}, batch)
	var perr *ParityError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ParityError", err)
	}
	if perr.BatchID != 9 || len(perr.Missing) != 1 {
		t.Errorf("ParityError = %+v", perr)
	}
}

// droppingBackend discards the first match of every batch, simulating a
// backend that silently skips work.
type droppingBackend struct{ inner Backend }

func (b droppingBackend) Name() string { return "dropping" }

func (b droppingBackend) RunBatch(ctx context.Context, batch Batch) ([]Match, Stats, error) {
	ms, st, err := b.inner.RunBatch(ctx, batch)
	if len(ms) > 0 {
		ms = ms[1:]
	}
	return ms, st, err
}

func TestDispatcherRunsToCompletion(t *testing.T) {
	profile, space, set, _ := plantedScan(t)
	backend, err := NewCPUBackend(profile, set, nil, 2)
	if err != nil {
		t.Fatal(err)
	}

	d, err := NewDispatcher(DispatcherConfig{
		Profile:   profile,
		Space:     space,
		Backend:   backend,
		BatchSize: 8,
	})
	if err != nil {
		t.Fatal(err)
	}
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.State != StateDone {
		t.Errorf("state = %s, want done", sum.State)
	}
	if sum.Stats.Candidates != 30 {
		t.Errorf("candidates = %d, want 30", sum.Stats.Candidates)
	}
	if len(sum.Matches) != 2 {
		t.Errorf("matches = %d, want 2", len(sum.Matches))
	}
	if sum.Batches != 4 { // 8+8+8+6
		t.Errorf("batches = %d, want 4", sum.Batches)
	}
}

func TestDispatcherInterruptAndResume(t *testing.T) {
	profile, space, set, _ := plantedScan(t)
	cpPath := filepath.Join(t.TempDir(), "scan.checkpoint")

	backend, err := NewCPUBackend(profile, set, nil, 2)
	if err != nil {
		t.Fatal(err)
	}

	// Cancel as soon as the first match is seen. The in-flight batch
	// still completes and checkpoints before the loop observes the
	// cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	var firstMatches []Match
	d1, err := NewDispatcher(DispatcherConfig{
		Profile:        profile,
		Space:          space,
		Backend:        backend,
		BatchSize:      8,
		CheckpointPath: cpPath,
		OnMatch: func(m Match) {
			firstMatches = append(firstMatches, m)
			cancel()
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	sum1, err := d1.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("interrupted run err = %v, want context.Canceled", err)
	}
	if sum1.State != StateHalted {
		t.Errorf("state = %s, want halted", sum1.State)
	}
	if len(firstMatches) != 2 {
		t.Fatalf("matches before halt = %d, want 2", len(firstMatches))
	}

	// Resume and finish. Totals must equal an uninterrupted run: no
	// candidate lost, none double counted.
	d2, err := NewDispatcher(DispatcherConfig{
		Profile:        profile,
		Space:          space,
		Backend:        backend,
		BatchSize:      8,
		CheckpointPath: cpPath,
	})
	if err != nil {
		t.Fatal(err)
	}
	sum2, err := d2.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum2.Stats.Candidates != 30 {
		t.Errorf("final candidates = %d, want 30", sum2.Stats.Candidates)
	}
	if len(sum2.Matches) != 0 {
		t.Errorf("resumed run re-found %d matches, want 0", len(sum2.Matches))
	}
}

func TestDispatcherParityCheck(t *testing.T) {
	profile, space, set, _ := plantedScan(t)
	cpu, err := NewCPUBackend(profile, set, nil, 2)
	if err != nil {
		t.Fatal(err)
	}

	d, err := NewDispatcher(DispatcherConfig{
		Profile:       profile,
		Space:         space,
		Backend:       droppingBackend{cpu},
		ParityBackend: cpu,
		ParityEvery:   1,
		BatchSize:     30,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.Run(context.Background())
	var perr *ParityError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ParityError", err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	cp := &Checkpoint{
		Profile:    "milk-sad",
		Cursor:     candidate.Cursor{FingerprintIdx: 2, Timestamp: 1234},
		NextBatch:  7,
		Candidates: 56,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := cp.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Profile != "milk-sad" || got.Cursor.Timestamp != 1234 || got.NextBatch != 7 {
		t.Errorf("loaded checkpoint = %+v", got)
	}
}

func TestCheckpointIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	blob := `{"profile":"randstorm","cursor":{"timestamp":99},"gpu_queue_depth":4}`
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Profile != "randstorm" || got.Cursor.Timestamp != 99 {
		t.Errorf("loaded checkpoint = %+v", got)
	}
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	got, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent"))
	if err != nil || got != nil {
		t.Errorf("LoadCheckpoint(absent) = %v, %v; want nil, nil", got, err)
	}
}

func TestMatchNeverLeaksSecret(t *testing.T) {
	profile, space, set, _ := plantedScan(t)
	backend, err := NewCPUBackend(profile, set, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	matches, _, err := backend.RunBatch(context.Background(),
		Batch{ID: 1, Candidates: drainSpace(t, space)})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Fatal("no matches to inspect")
	}

	m := matches[0]
	secret := m.ExportSecret()
	if secret == "" {
		t.Fatal("no secret to guard")
	}
	if strings.Contains(m.String(), secret) {
		t.Error("String() leaks the key")
	}
	blob, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(blob), secret) {
		t.Error("JSON encoding leaks the key")
	}
}

func TestLookupProfile(t *testing.T) {
	p, err := LookupProfile("milk-sad")
	if err != nil {
		t.Fatal(err)
	}
	if p.Variant != prng.MT19937MSB || p.EntropyLen != 24 {
		t.Errorf("milk-sad profile = %+v", p)
	}
	if _, err := LookupProfile("nope"); err == nil {
		t.Error("unknown profile accepted")
	}
}

func testLogger() *logger.Logger {
	return logger.NewWriter(io.Discard)
}

func TestSelectBackendFallback(t *testing.T) {
	profile, _, set, _ := plantedScan(t)

	// Oversized slot request: pipeline init fails, cpu takes over.
	b, err := SelectBackend("pipeline", profile, set, nil, 2, maxSlotCandidates+1, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if b.Name() != "cpu" {
		t.Errorf("fallback backend = %s, want cpu", b.Name())
	}

	if _, err := SelectBackend("quantum", profile, set, nil, 2, 0, testLogger()); err == nil {
		t.Error("unknown backend kind accepted")
	}
}
