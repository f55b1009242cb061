// Package derive turns raw generator output into the bitcoin addresses a
// vulnerable wallet would have shown its user: entropy to BIP39 mnemonic,
// mnemonic to BIP32 master key, master key through the standard path
// templates to every common address encoding. Direct-key sources skip the
// mnemonic stage and treat the bytes as the private key itself.
package derive

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"
)

var (
	// ErrDegenerateKey marks candidate bytes that do not form a valid
	// private key: zero, or at least the group order. Such candidates are
	// skipped and counted, never treated as matches.
	ErrDegenerateKey = errors.New("derive: candidate scalar is zero or exceeds group order")
	// ErrBadKeyLength marks direct-key material that is not 32 bytes.
	ErrBadKeyLength = errors.New("derive: direct key material must be 32 bytes")
)

// Derived is one address produced from a candidate, together with the
// private key that controls it. The key is unexported and reachable only
// through WIF(), so it cannot leak through logging or serialization.
type Derived struct {
	Path    string
	Index   uint32
	Type    AddressType
	Address string

	key    *btcec.PrivateKey
	params *chaincfg.Params
}

// WIF exports the controlling private key in wallet import format. This is
// the only way key material leaves the package.
func (d *Derived) WIF() (string, error) {
	if d.key == nil {
		return "", errors.New("derive: key already zeroized")
	}
	compressed := d.Type != LegacyUncompressed
	wif, err := btcutil.NewWIF(d.key, d.params, compressed)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}

// Zero wipes the private key material in place.
func (d *Derived) Zero() {
	if d.key != nil {
		d.key.Zero()
		d.key = nil
	}
}

// Pipeline is the reusable derivation context for one scan profile. It is
// not safe for concurrent use; each worker holds its own.
type Pipeline struct {
	params     *chaincfg.Params
	paths      []PathSpec
	indexStart uint32
	indexCount uint32
}

// NewPipeline builds a pipeline over the given path templates and address
// index window. A nil params defaults to mainnet; a zero indexCount
// defaults to a single index.
func NewPipeline(params *chaincfg.Params, paths []PathSpec, indexStart, indexCount uint32) *Pipeline {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	if indexCount == 0 {
		indexCount = 1
	}
	return &Pipeline{
		params:     params,
		paths:      paths,
		indexStart: indexStart,
		indexCount: indexCount,
	}
}

// FromEntropy runs the full HD pipeline: entropy to mnemonic, mnemonic to
// seed with an empty passphrase, seed to master key, then every configured
// path and index. Entropy must be a valid BIP39 length (16 to 32 bytes in
// 4-byte steps).
func (p *Pipeline) FromEntropy(entropy []byte) ([]Derived, error) {
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return p.FromMnemonic(mnemonic)
}

// FromMnemonic derives from an existing mnemonic with an empty passphrase.
func (p *Pipeline) FromMnemonic(mnemonic string) ([]Derived, error) {
	seed := bip39.NewSeed(mnemonic, "")
	return p.FromSeed(seed)
}

// FromSeed derives from raw BIP32 seed material.
func (p *Pipeline) FromSeed(seed []byte) ([]Derived, error) {
	master, err := hdkeychain.NewMaster(seed, p.params)
	if err != nil {
		return nil, err
	}
	defer master.Zero()

	var out []Derived
	for _, path := range p.paths {
		branch, err := deriveChain(master, path)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < p.indexCount; i++ {
			idx := p.indexStart + i
			child, err := branch.Derive(idx)
			if err != nil {
				// Roughly 1 in 2^127 children are invalid per BIP32; the
				// index is simply skipped, as a wallet would have done.
				continue
			}
			priv, err := child.ECPrivKey()
			if err != nil {
				return nil, err
			}
			addr, err := EncodeAddress(priv.PubKey(), path.Type, p.params)
			if err != nil {
				return nil, err
			}
			out = append(out, Derived{
				Path:    path.String(idx),
				Index:   idx,
				Type:    path.Type,
				Address: addr,
				key:     priv,
				params:  p.params,
			})
		}
		branch.Zero()
	}
	return out, nil
}

// Direct treats the candidate bytes as the private key itself, the way
// browser wallets and direct-SHA256 tools produced keys. Degenerate
// scalars are rejected. Both compressed and uncompressed legacy addresses
// are emitted since era wallets used either.
func (p *Pipeline) Direct(keyBytes []byte) ([]Derived, error) {
	priv, err := DirectKey(keyBytes)
	if err != nil {
		return nil, err
	}
	var out []Derived
	for _, typ := range []AddressType{Legacy, LegacyUncompressed} {
		addr, err := EncodeAddress(priv.PubKey(), typ, p.params)
		if err != nil {
			return nil, err
		}
		out = append(out, Derived{
			Path:    "direct",
			Type:    typ,
			Address: addr,
			key:     priv,
			params:  p.params,
		})
	}
	return out, nil
}

func deriveChain(master *hdkeychain.ExtendedKey, path PathSpec) (*hdkeychain.ExtendedKey, error) {
	key := master
	for _, n := range path.Prefix {
		next, err := key.Derive(n)
		if err != nil {
			return nil, err
		}
		if key != master {
			key.Zero()
		}
		key = next
	}
	branch, err := key.Derive(path.Change)
	if key != master {
		key.Zero()
	}
	if err != nil {
		return nil, err
	}
	return branch, nil
}

// DirectKey validates 32 candidate bytes as a secp256k1 private key,
// rejecting the zero scalar and values at or above the group order.
func DirectKey(keyBytes []byte) (*btcec.PrivateKey, error) {
	if len(keyBytes) != 32 {
		return nil, ErrBadKeyLength
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(keyBytes); overflow {
		return nil, ErrDegenerateKey
	}
	if scalar.IsZero() {
		return nil, ErrDegenerateKey
	}
	priv, _ := btcec.PrivKeyFromBytes(keyBytes)
	return priv, nil
}
