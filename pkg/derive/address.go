package derive

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// EncodeAddress renders a public key as the given address type on the
// given network. Nil params means mainnet.
func EncodeAddress(pub *btcec.PublicKey, typ AddressType, params *chaincfg.Params) (string, error) {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	switch typ {
	case Legacy:
		return p2pkh(pub.SerializeCompressed(), params)
	case LegacyUncompressed:
		return p2pkh(pub.SerializeUncompressed(), params)
	case NestedSegWit:
		return nestedSegwit(pub, params)
	case NativeSegWit:
		addr, err := btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pub.SerializeCompressed()), params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case Taproot:
		tweaked := txscript.ComputeTaprootKeyNoScript(pub)
		addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(tweaked), params)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	}
	return "", fmt.Errorf("derive: unknown address type %d", typ)
}

func p2pkh(serialized []byte, params *chaincfg.Params) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serialized), params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// nestedSegwit wraps the P2WPKH witness program in a P2SH script, the
// BIP49 compatibility encoding.
func nestedSegwit(pub *btcec.PublicKey, params *chaincfg.Params) (string, error) {
	witness, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pub.SerializeCompressed()), params)
	if err != nil {
		return "", err
	}
	script, err := txscript.PayToAddrScript(witness)
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressScriptHash(script, params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}
