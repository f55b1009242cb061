package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/entropylab/keystorm/pkg/candidate"
	"github.com/entropylab/keystorm/pkg/prng"
)

// Errors
var (
	ErrNoProfile     = errors.New("must specify --profile")
	ErrNoTargets     = errors.New("must specify --targets database")
	ErrBadTimeWindow = errors.New("--start must not be after --end")
	ErrBadStep       = errors.New("--step must be positive")
	ErrBadFPRate     = errors.New("--fp-rate must be in (0, 1)")
	ErrBadBatchSize  = errors.New("--batch-size must be positive")
)

// Config holds the application configuration
type Config struct {
	Profile   string
	Workers   int
	Backend   string
	BatchSize int
	SlotSize  int

	Start uint64
	End   uint64
	Step  uint64

	Dictionary       string
	FingerprintsFile string

	AllPaths   bool
	IndexStart uint32
	IndexCount uint32

	TargetsDB string
	FPRate    float64

	Checkpoint  string
	ExportFile  string
	Verbose     bool
	LogFile     string
	LogInterval int // Logging interval in seconds
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Workers:     runtime.NumCPU(),
		Backend:     "cpu",
		BatchSize:   4096,
		Step:        1,
		FPRate:      0.0001,
		IndexCount:  100,
		LogInterval: 5, // Default 5 seconds
	}
}

// Validate validates the configuration for a scan run
func (c *Config) Validate() error {
	if c.Profile == "" {
		return ErrNoProfile
	}
	if c.TargetsDB == "" {
		return ErrNoTargets
	}
	if c.Dictionary == "" {
		if c.Start > c.End {
			return ErrBadTimeWindow
		}
		if c.Step == 0 {
			return ErrBadStep
		}
	}
	if c.FPRate <= 0 || c.FPRate >= 1 {
		return ErrBadFPRate
	}
	if c.BatchSize <= 0 {
		return ErrBadBatchSize
	}
	return nil
}

// BuildSpace assembles the candidate space from the configured time
// window, fingerprint table, and dictionary.
func (c *Config) BuildSpace(variant prng.Variant) (candidate.Space, error) {
	space := candidate.Space{
		Variant: variant,
		Start:   c.Start,
		End:     c.End,
		Step:    c.Step,
	}

	if c.Dictionary != "" {
		words, err := readDictionary(c.Dictionary)
		if err != nil {
			return candidate.Space{}, err
		}
		space.Words = words
		return space, nil
	}

	if c.FingerprintsFile != "" {
		f, err := os.Open(c.FingerprintsFile)
		if err != nil {
			return candidate.Space{}, err
		}
		defer f.Close()
		fps, err := candidate.ReadFingerprintsCSV(f)
		if err != nil {
			return candidate.Space{}, fmt.Errorf("fingerprints %s: %w", c.FingerprintsFile, err)
		}
		space.Fingerprints = fps
		return space, nil
	}

	space.Fingerprints = candidate.DefaultFingerprints()
	return space, nil
}

// GetScanDescription returns a human-readable description of the scan
func (c *Config) GetScanDescription() string {
	if c.Dictionary != "" {
		return "dictionary: " + c.Dictionary
	}
	return fmt.Sprintf("time window %d..%d step %d", c.Start, c.End, c.Step)
}

// readDictionary reads one candidate word per line, skipping blanks and
// comments.
func readDictionary(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
