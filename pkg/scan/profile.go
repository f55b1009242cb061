package scan

import (
	"fmt"
	"sort"

	"github.com/entropylab/keystorm/pkg/derive"
	"github.com/entropylab/keystorm/pkg/prng"
)

// Profile binds a generator variant to the derivation shape its wallet
// class used: how many entropy bytes, whether the bytes are a mnemonic
// seed or the private key itself, which paths, and how deep the address
// index window goes.
type Profile struct {
	// Name doubles as the vulnerability class recorded on matches.
	Name       string
	Variant    prng.Variant
	EntropyLen int
	// DirectKey skips the mnemonic stage and treats the generator output
	// as the private key, the browser-wallet construction.
	DirectKey  bool
	Paths      []derive.PathSpec
	IndexStart uint32
	IndexCount uint32
}

func builtinProfiles() map[string]Profile {
	ps := []Profile{
		// libbitcoin bx seed: MT19937 seeded with a 32-bit time, high
		// byte of each output, 192-bit default entropy.
		{Name: "milk-sad", Variant: prng.MT19937MSB, EntropyLen: 24,
			Paths: derive.StandardPaths(), IndexCount: 100},
		{Name: "milk-sad-128", Variant: prng.MT19937MSB, EntropyLen: 16,
			Paths: derive.StandardPaths(), IndexCount: 100},
		{Name: "milk-sad-256", Variant: prng.MT19937MSB, EntropyLen: 32,
			Paths: derive.StandardPaths(), IndexCount: 100},
		{Name: "mt19937-low-byte", Variant: prng.MT19937LSB, EntropyLen: 24,
			Paths: derive.StandardPaths(), IndexCount: 100},
		// BitcoinJS-era browser wallets: the ARC4 pool keyed by
		// Math.random and the generation timestamp, keystream as key.
		{Name: "randstorm", Variant: prng.ARC4Pool, EntropyLen: 32, DirectKey: true},
		{Name: "mwc-browser", Variant: prng.MWC1616, EntropyLen: 32, DirectKey: true},
		{Name: "xorshift-browser", Variant: prng.XorShift128, EntropyLen: 32, DirectKey: true},
		{Name: "jsc-browser", Variant: prng.LCG48JSC, EntropyLen: 32, DirectKey: true},
		// Trust Wallet Core: minstd_rand0 packed into little-endian
		// words, used as 128-bit mnemonic entropy.
		{Name: "trust-wallet", Variant: prng.Minstd, EntropyLen: 16,
			Paths: derive.StandardPaths(), IndexCount: 100},
		{Name: "java-util-random", Variant: prng.LCG48Java, EntropyLen: 32, DirectKey: true},
		{Name: "drand48", Variant: prng.LCG48Drand, EntropyLen: 32, DirectKey: true},
		{Name: "msvc-crt", Variant: prng.MSVCCrt, EntropyLen: 32, DirectKey: true},
		// Dictionary-driven: the candidate word is the key via SHA256.
		{Name: "brainwallet", Variant: prng.ARC4Pool, DirectKey: true},
	}
	m := make(map[string]Profile, len(ps))
	for _, p := range ps {
		m[p.Name] = p
	}
	return m
}

// LookupProfile resolves a profile by name.
func LookupProfile(name string) (Profile, error) {
	p, ok := builtinProfiles()[name]
	if !ok {
		return Profile{}, fmt.Errorf("scan: unknown profile %q (known: %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames lists the built-in profiles, sorted.
func ProfileNames() []string {
	m := builtinProfiles()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
