// Package target holds the funded-address watch list: a SQLite store as
// the authoritative record and an in-memory Bloom filter in front of it,
// so the scan hot path pays a hash probe instead of a database query.
// Bloom positives are always confirmed against the store, so the matcher
// has false positives only transiently and false negatives never.
package target

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS targets (
	address    TEXT PRIMARY KEY,
	vuln_class TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'watch',
	first_seen TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_targets_vuln_class ON targets(vuln_class);
`

// Store is the durable watch list. It is safe for concurrent use; SQLite
// serializes writers and WAL mode keeps readers unblocked.
type Store struct {
	db     *sql.DB
	params *chaincfg.Params
}

// Open opens or creates the watch list database at path.
func Open(path string, params *chaincfg.Params) (*Store, error) {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, params: params}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ImportResult summarizes a bulk load.
type ImportResult struct {
	Imported int
	Rejected int
}

// ImportAddresses bulk-loads a newline-delimited address list inside a
// single transaction. Lines that are blank or start with '#' are skipped
// silently; lines that fail base58/bech32 decoding are counted as
// rejected and do not abort the load. Duplicates are ignored.
func (s *Store) ImportAddresses(r io.Reader, vulnClass string) (ImportResult, error) {
	var res ImportResult
	tx, err := s.db.Begin()
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO targets(address, vuln_class, first_seen) VALUES(?, ?, ?)`)
	if err != nil {
		return res, err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// CSV exports often carry trailing columns; the address is first.
		if i := strings.IndexAny(line, ",\t "); i > 0 {
			line = line[:i]
		}
		if _, err := btcutil.DecodeAddress(line, s.params); err != nil {
			res.Rejected++
			continue
		}
		if _, err := stmt.Exec(line, vulnClass, now); err != nil {
			return res, err
		}
		res.Imported++
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	return res, tx.Commit()
}

// jsonTarget is the JSON import row shape. Only address is required.
type jsonTarget struct {
	Address   string `json:"address"`
	VulnClass string `json:"vuln_class,omitempty"`
	Status    string `json:"status,omitempty"`
	Metadata  string `json:"metadata,omitempty"`
}

// ImportJSON bulk-loads a JSON array of target records inside a single
// transaction. Rows with undecodable addresses are counted as rejected;
// rows without a vuln_class inherit the fallback class.
func (s *Store) ImportJSON(r io.Reader, fallbackClass string) (ImportResult, error) {
	var res ImportResult
	var rows []jsonTarget
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return res, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO targets(address, vuln_class, status, first_seen, metadata)
		VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return res, err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, row := range rows {
		if _, err := btcutil.DecodeAddress(row.Address, s.params); err != nil {
			res.Rejected++
			continue
		}
		class := row.VulnClass
		if class == "" {
			class = fallbackClass
		}
		status := row.Status
		if status == "" {
			status = "watch"
		}
		if _, err := stmt.Exec(row.Address, class, status, now, row.Metadata); err != nil {
			return res, err
		}
		res.Imported++
	}
	return res, tx.Commit()
}

// Target is one watch list record.
type Target struct {
	Address   string
	VulnClass string
	Status    string
	FirstSeen string
	Metadata  string
}

// Lookup fetches the full record for an address.
func (s *Store) Lookup(address string) (Target, bool, error) {
	var t Target
	err := s.db.QueryRow(
		`SELECT address, vuln_class, status, first_seen, metadata FROM targets WHERE address = ?`,
		address).Scan(&t.Address, &t.VulnClass, &t.Status, &t.FirstSeen, &t.Metadata)
	if err == sql.ErrNoRows {
		return Target{}, false, nil
	}
	if err != nil {
		return Target{}, false, err
	}
	return t, true, nil
}

// Exists reports whether the address is on the watch list. Transient
// busy/locked errors are retried with bounded backoff.
func (s *Store) Exists(address string) (bool, error) {
	var found bool
	err := withRetry(func() error {
		var one int
		err := s.db.QueryRow(
			`SELECT 1 FROM targets WHERE address = ?`, address).Scan(&one)
		if err == sql.ErrNoRows {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// MarkMatched records that a scan hit the address, stamping status and
// metadata for the report.
func (s *Store) MarkMatched(address, metadata string) error {
	return withRetry(func() error {
		_, err := s.db.Exec(
			`UPDATE targets SET status = 'matched', metadata = ? WHERE address = ?`,
			metadata, address)
		return err
	})
}

// Count returns the watch list size.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM targets`).Scan(&n)
	return n, err
}

// Addresses streams every watch list address to fn, used to populate the
// Bloom filter at startup.
func (s *Store) Addresses(fn func(address string) error) error {
	rows, err := s.db.Query(`SELECT address FROM targets`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return err
		}
		if err := fn(addr); err != nil {
			return err
		}
	}
	return rows.Err()
}

const retryAttempts = 5

// withRetry reruns fn on SQLITE_BUSY/SQLITE_LOCKED with doubling backoff.
// Anything else fails immediately.
func withRetry(fn func() error) error {
	var err error
	delay := 10 * time.Millisecond
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var serr sqlite3.Error
		if !errors.As(err, &serr) ||
			(serr.Code != sqlite3.ErrBusy && serr.Code != sqlite3.ErrLocked) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}
