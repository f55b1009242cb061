package derive

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/pbkdf2"
)

// ElectrumSeed stretches a mnemonic into BIP32 seed material the Electrum
// way: PBKDF2-HMAC-SHA512, 2048 rounds, salt "electrum" plus the
// passphrase. Electrum mnemonics are not BIP39 wordlist-checked, so any
// phrase a weak generator produced goes straight through.
func ElectrumSeed(mnemonic, passphrase string) []byte {
	normalized := strings.Join(strings.Fields(mnemonic), " ")
	return pbkdf2.Key([]byte(normalized), []byte("electrum"+passphrase), 2048, 64, sha512.New)
}

// BrainwalletKey is the classic brainwallet construction: the private key
// is SHA256 of the passphrase.
func BrainwalletKey(passphrase string) (*btcec.PrivateKey, error) {
	sum := sha256.Sum256([]byte(passphrase))
	return DirectKey(sum[:])
}

// SensorKey reproduces generators that hashed low-entropy sensor readings,
// SHA256 over the decimal "x,y,z" rendering.
func SensorKey(x, y, z int) (*btcec.PrivateKey, error) {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d,%d,%d", x, y, z)))
	return DirectKey(sum[:])
}
