// Package candidate defines the hypothesis space for a scan: every
// combination of seed timestamp, device/browser fingerprint, and dictionary
// entry that a vulnerable wallet could have been generated from. The
// enumerator walks that space lazily, fingerprints first by estimated
// prevalence, and supports restart from a saved cursor.
package candidate

import "github.com/entropylab/keystorm/pkg/prng"

// Fingerprint is one device/browser configuration record. For browser-era
// generators it selects the Math.random engine behavior; for all sources it
// is carried through to the match record for classification.
type Fingerprint struct {
	UserAgent      string  `json:"user_agent"`
	ScreenWidth    int     `json:"screen_width"`
	ScreenHeight   int     `json:"screen_height"`
	ColorDepth     int     `json:"color_depth"`
	TimezoneOffset int     `json:"timezone_offset"`
	Language       string  `json:"language"`
	Platform       string  `json:"platform"`
	MarketShare    float64 `json:"market_share"`
}

// Candidate is one point in the hypothesis space. It is immutable once
// emitted and consumed by exactly one engine invocation.
type Candidate struct {
	Variant prng.Variant
	// Seed is the numeric generator seed at the variant's native
	// granularity (milliseconds for browser engines, seconds for
	// timestamp-seeded wallet tools).
	Seed uint64
	// Word is set instead of Seed for dictionary-driven sources.
	Word        string
	Fingerprint *Fingerprint
}

// Cursor is a resumable position in the enumeration order. It serializes
// into checkpoints; unknown fields in older checkpoints are ignored on
// load.
type Cursor struct {
	FingerprintIdx int    `json:"fingerprint_idx"`
	Timestamp      uint64 `json:"timestamp"`
	DictLine       uint64 `json:"dict_line"`
}
