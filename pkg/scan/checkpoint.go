package scan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/entropylab/keystorm/pkg/candidate"
)

// Checkpoint is the durable scan position, written after every completed
// batch. Loading tolerates unknown fields so checkpoints survive format
// additions in either direction.
type Checkpoint struct {
	Profile    string           `json:"profile"`
	Cursor     candidate.Cursor `json:"cursor"`
	NextBatch  uint64           `json:"next_batch"`
	Candidates uint64           `json:"candidates"`
	Keys       uint64           `json:"keys"`
	Addresses  uint64           `json:"addresses"`
	Matches    int              `json:"matches"`
	// ElapsedSeconds accumulates scan wall-clock time across resumed
	// runs.
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Save writes the checkpoint atomically: temp file in the same directory,
// fsync, rename. A crash mid-write leaves the previous checkpoint intact.
func (c *Checkpoint) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadCheckpoint reads a checkpoint from disk. A missing file is not an
// error; it returns (nil, nil) and the scan starts fresh.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
