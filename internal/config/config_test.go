package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/entropylab/keystorm/pkg/prng"
)

func validConfig() *Config {
	c := NewConfig()
	c.Profile = "milk-sad"
	c.TargetsDB = "targets.db"
	c.Start = 1300000000
	c.End = 1400000000
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(c *Config) {}, nil},
		{"no profile", func(c *Config) { c.Profile = "" }, ErrNoProfile},
		{"no targets", func(c *Config) { c.TargetsDB = "" }, ErrNoTargets},
		{"reversed window", func(c *Config) { c.Start, c.End = c.End, c.Start }, ErrBadTimeWindow},
		{"zero step", func(c *Config) { c.Step = 0 }, ErrBadStep},
		{"fp rate too high", func(c *Config) { c.FPRate = 1 }, ErrBadFPRate},
		{"fp rate zero", func(c *Config) { c.FPRate = 0 }, ErrBadFPRate},
		{"bad batch size", func(c *Config) { c.BatchSize = 0 }, ErrBadBatchSize},
		{"dictionary ignores window", func(c *Config) {
			c.Dictionary = "words.txt"
			c.Start, c.End = c.End, c.Start
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildSpaceDefaults(t *testing.T) {
	c := validConfig()
	space, err := c.BuildSpace(prng.MT19937MSB)
	if err != nil {
		t.Fatal(err)
	}
	if len(space.Fingerprints) == 0 {
		t.Error("no default fingerprints")
	}
	if space.Start != c.Start || space.End != c.End {
		t.Errorf("window = %d..%d", space.Start, space.End)
	}
}

func TestBuildSpaceDictionary(t *testing.T) {
	dict := filepath.Join(t.TempDir(), "words.txt")
	content := "# common passphrases\ncorrect horse battery staple\n\npassword1\n"
	if err := os.WriteFile(dict, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := validConfig()
	c.Dictionary = dict
	space, err := c.BuildSpace(prng.ARC4Pool)
	if err != nil {
		t.Fatal(err)
	}
	if len(space.Words) != 2 {
		t.Fatalf("loaded %d words, want 2", len(space.Words))
	}
	if space.Words[0] != "correct horse battery staple" {
		t.Errorf("first word = %q", space.Words[0])
	}
}

func TestBuildSpaceFingerprintCSV(t *testing.T) {
	csv := filepath.Join(t.TempDir(), "fps.csv")
	content := "user_agent,screen_width,screen_height,color_depth,timezone_offset,language,platform,market_share\n" +
		"UA,1366,768,24,-300,en-US,Win32,0.4\n"
	if err := os.WriteFile(csv, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := validConfig()
	c.FingerprintsFile = csv
	space, err := c.BuildSpace(prng.MWC1616)
	if err != nil {
		t.Fatal(err)
	}
	if len(space.Fingerprints) != 1 || space.Fingerprints[0].UserAgent != "UA" {
		t.Errorf("fingerprints = %+v", space.Fingerprints)
	}
}

func TestGetScanDescription(t *testing.T) {
	c := validConfig()
	if got := c.GetScanDescription(); got != "time window 1300000000..1400000000 step 1" {
		t.Errorf("description = %q", got)
	}
	c.Dictionary = "words.txt"
	if got := c.GetScanDescription(); got != "dictionary: words.txt" {
		t.Errorf("description = %q", got)
	}
}
