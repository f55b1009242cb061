package candidate

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
)

// DefaultFingerprints is the embedded browser/device configuration table
// for the 2011-2015 window, ordered by estimated market share so the most
// plausible wallet-generation environments are scanned first.
func DefaultFingerprints() []Fingerprint {
	return []Fingerprint{
		{"Mozilla/5.0 (Windows NT 6.1) Chrome/28.0", 1366, 768, 24, -300, "en-US", "Win32", 0.172},
		{"Mozilla/5.0 (Windows NT 6.1) Chrome/28.0", 1920, 1080, 24, -300, "en-US", "Win32", 0.121},
		{"Mozilla/5.0 (Windows NT 5.1) Firefox/22.0", 1024, 768, 24, -300, "en-US", "Win32", 0.093},
		{"Mozilla/5.0 (Windows NT 6.1) Firefox/22.0", 1366, 768, 24, 0, "en-GB", "Win32", 0.078},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_8) Safari/536.30", 1440, 900, 24, -480, "en-US", "MacIntel", 0.064},
		{"Mozilla/5.0 (Windows NT 6.1; Trident/7.0)", 1280, 1024, 24, -300, "en-US", "Win32", 0.057},
		{"Mozilla/5.0 (Windows NT 6.2) Chrome/31.0", 1600, 900, 24, 60, "de-DE", "Win32", 0.043},
		{"Mozilla/5.0 (X11; Linux x86_64) Firefox/24.0", 1920, 1080, 24, 0, "en-US", "Linux x86_64", 0.031},
		{"Mozilla/5.0 (Windows NT 6.1) Opera/12.16", 1366, 768, 32, 180, "ru-RU", "Win32", 0.027},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_9) Chrome/32.0", 2560, 1440, 24, -480, "en-US", "MacIntel", 0.022},
	}
}

// ReadFingerprintsCSV loads a custom fingerprint table. Columns:
// user_agent,screen_width,screen_height,color_depth,timezone_offset,
// language,platform,market_share. The result is sorted by market share
// descending regardless of file order.
func ReadFingerprintsCSV(r io.Reader) ([]Fingerprint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 8

	var fps []Fingerprint
	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			if _, convErr := strconv.Atoi(rec[1]); convErr != nil {
				continue // header row
			}
		}
		fp, err := parseFingerprintRow(rec)
		if err != nil {
			return nil, err
		}
		fps = append(fps, fp)
	}

	sort.SliceStable(fps, func(i, j int) bool {
		return fps[i].MarketShare > fps[j].MarketShare
	})
	return fps, nil
}

func parseFingerprintRow(rec []string) (Fingerprint, error) {
	w, err := strconv.Atoi(rec[1])
	if err != nil {
		return Fingerprint{}, err
	}
	h, err := strconv.Atoi(rec[2])
	if err != nil {
		return Fingerprint{}, err
	}
	depth, err := strconv.Atoi(rec[3])
	if err != nil {
		return Fingerprint{}, err
	}
	tz, err := strconv.Atoi(rec[4])
	if err != nil {
		return Fingerprint{}, err
	}
	share, err := strconv.ParseFloat(rec[7], 64)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{
		UserAgent:      rec[0],
		ScreenWidth:    w,
		ScreenHeight:   h,
		ColorDepth:     depth,
		TimezoneOffset: tz,
		Language:       rec[5],
		Platform:       rec[6],
		MarketShare:    share,
	}, nil
}
