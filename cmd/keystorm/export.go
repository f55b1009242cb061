package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/entropylab/keystorm/pkg/forensics"
	"github.com/entropylab/keystorm/pkg/scan"
)

// keyExporter is the only sink recovered key material is ever written to.
// The file is owner-readable only and appended so an interrupted run does
// not clobber earlier exports.
type keyExporter struct {
	f *os.File
}

func newKeyExporter(path string) (*keyExporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &keyExporter{f: f}, nil
}

// Write records one scan match: key, address, provenance.
func (e *keyExporter) Write(m scan.Match) error {
	_, err := fmt.Fprintf(e.f, "%s\t%s\t%s\t%s\tseed=%d\n",
		m.ExportSecret(), m.Address, m.Path, m.VulnClass, m.Seed)
	return err
}

// WriteRecovered records a key recovered from nonce reuse with the
// transactions that exposed it.
func (e *keyExporter) WriteRecovered(pair forensics.Pair, priv *btcec.PrivateKey) error {
	wif, err := btcutil.NewWIF(priv, &chaincfg.MainNetParams, true)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.f, "%s\tnonce-reuse\t%s:%d\t%s:%d\n",
		wif.String(), pair.A.TxID, pair.A.Vin, pair.B.TxID, pair.B.Vin)
	return err
}

func (e *keyExporter) Close() error {
	return e.f.Close()
}
