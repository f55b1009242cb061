package candidate

import (
	"strings"
	"testing"

	"github.com/entropylab/keystorm/pkg/prng"
)

func smallSpace() Space {
	return Space{
		Variant: prng.MT19937MSB,
		Start:   100,
		End:     104,
		Step:    1,
		Fingerprints: []Fingerprint{
			{Platform: "Win32", MarketShare: 0.5},
			{Platform: "MacIntel", MarketShare: 0.3},
		},
	}
}

func drain(e *Enumerator) []Candidate {
	var out []Candidate
	for {
		c, ok := e.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestEnumeratorCoversFullSpace(t *testing.T) {
	e, err := New(smallSpace())
	if err != nil {
		t.Fatal(err)
	}
	got := drain(e)

	// 5 timestamps x 2 fingerprints.
	if len(got) != 10 {
		t.Fatalf("emitted %d candidates, want 10", len(got))
	}
	if got[0].Seed != 100 || got[0].Fingerprint.Platform != "Win32" {
		t.Errorf("first candidate = seed %d fp %s, want 100/Win32",
			got[0].Seed, got[0].Fingerprint.Platform)
	}
	// Fingerprints are the outer loop: the second one starts after the
	// first finishes its whole interval.
	if got[5].Seed != 100 || got[5].Fingerprint.Platform != "MacIntel" {
		t.Errorf("sixth candidate = seed %d fp %s, want 100/MacIntel",
			got[5].Seed, got[5].Fingerprint.Platform)
	}
	if e.Emitted() != 10 {
		t.Errorf("Emitted() = %d, want 10", e.Emitted())
	}
}

func TestEnumeratorResume(t *testing.T) {
	full, _ := New(smallSpace())
	all := drain(full)

	// Consume 4 candidates, save the cursor, resume.
	first, _ := New(smallSpace())
	for i := 0; i < 4; i++ {
		first.Next()
	}
	cur := first.Cursor()

	resumed, err := Resume(smallSpace(), cur)
	if err != nil {
		t.Fatal(err)
	}
	rest := drain(resumed)

	if len(rest) != len(all)-4 {
		t.Fatalf("resumed emission = %d candidates, want %d", len(rest), len(all)-4)
	}
	for i, c := range rest {
		want := all[i+4]
		if c.Seed != want.Seed || c.Fingerprint.Platform != want.Fingerprint.Platform {
			t.Fatalf("resumed candidate %d = %+v, want %+v", i, c, want)
		}
	}
}

func TestEnumeratorDictionary(t *testing.T) {
	space := Space{
		Variant: prng.ARC4Pool,
		Words:   []string{"correct", "horse", "battery"},
	}
	e, err := New(space)
	if err != nil {
		t.Fatal(err)
	}
	got := drain(e)
	if len(got) != 3 {
		t.Fatalf("emitted %d, want 3", len(got))
	}
	if got[1].Word != "horse" {
		t.Errorf("second word = %q, want horse", got[1].Word)
	}
}

func TestEnumeratorRemaining(t *testing.T) {
	e, _ := New(smallSpace())
	if r := e.Remaining(); r != 10 {
		t.Fatalf("Remaining() at start = %d, want 10", r)
	}
	for i := 0; i < 7; i++ {
		e.Next()
	}
	if r := e.Remaining(); r != 3 {
		t.Errorf("Remaining() after 7 = %d, want 3", r)
	}
}

func TestSpaceValidation(t *testing.T) {
	tests := []struct {
		name  string
		space Space
		want  error
	}{
		{"empty", Space{Start: 0, End: 10, Step: 1}, ErrEmptySpace},
		{"reversed range", Space{Start: 10, End: 5, Step: 1,
			Fingerprints: []Fingerprint{{}}}, ErrBadTimeRange},
		{"zero step", Space{Start: 0, End: 10,
			Fingerprints: []Fingerprint{{}}}, ErrBadStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.space); err != tt.want {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDefaultFingerprintsOrdered(t *testing.T) {
	fps := DefaultFingerprints()
	if len(fps) == 0 {
		t.Fatal("no default fingerprints")
	}
	for i := 1; i < len(fps); i++ {
		if fps[i].MarketShare > fps[i-1].MarketShare {
			t.Errorf("fingerprints not prevalence-ordered at %d", i)
		}
	}
}

func TestReadFingerprintsCSV(t *testing.T) {
	data := `user_agent,screen_width,screen_height,color_depth,timezone_offset,language,platform,market_share
UA-low,1024,768,24,0,en-US,Win32,0.01
UA-high,1366,768,24,-300,en-US,Win32,0.40
`
	fps, err := ReadFingerprintsCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(fps) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(fps))
	}
	if fps[0].UserAgent != "UA-high" {
		t.Errorf("rows not re-sorted by market share: first = %s", fps[0].UserAgent)
	}
}
