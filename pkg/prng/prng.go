// Package prng reconstructs the weak pseudo-random generators used by
// historical wallet software. Each variant reproduces one documented
// generator bit-for-bit, including its byte-extraction convention, so a
// candidate seed deterministically maps to the exact entropy a vulnerable
// wallet would have produced.
package prng

import "fmt"

// Variant identifies one historical generator. The set is closed: each
// variant pins both the generator algorithm and the byte-extraction rule,
// because distinct wallets used the same generator with different
// extraction conventions and the difference is load-bearing.
type Variant string

const (
	// MT19937MSB is the 32-bit Mersenne Twister with most-significant-byte
	// extraction, as used by libbitcoin explorer `bx seed` (CVE-2023-31290).
	MT19937MSB Variant = "mt19937-msb"
	// MT19937LSB is the same twister with least-significant-byte extraction,
	// kept as a separately labeled variant rather than unified with MSB.
	MT19937LSB Variant = "mt19937-lsb"
	// MWC1616 is the V8-era Math.random() pair of 16-bit
	// multiply-with-carry generators.
	MWC1616 Variant = "mwc1616"
	// LCG48Java is the java.util.Random 48-bit LCG with the 53-bit double
	// output construction (two next(32) draws).
	LCG48Java Variant = "lcg48-java"
	// LCG48Drand is the drand48-style 48-bit LCG with full-state output.
	LCG48Drand Variant = "lcg48-drand48"
	// LCG48JSC is the WebKit JavaScriptCore 48-bit LCG with the 26+27-bit
	// double construction.
	LCG48JSC Variant = "lcg48-jsc"
	// MSVCCrt is the MSVC CRT rand() generator (Safari on Windows era),
	// two 15-bit draws per output.
	MSVCCrt Variant = "msvc-crt"
	// XorShift128 is xorshift128+ with splitmix64 seed expansion, used by
	// later SpiderMonkey and JSC Math.random().
	XorShift128 Variant = "xorshift128"
	// Minstd is std::minstd_rand0 (a=16807, m=2^31-1) with little-endian
	// word fill, the Trust Wallet iOS generator (CVE-2024-23660).
	Minstd Variant = "minstd"
	// ARC4Pool is the BitcoinJS v0.1.3 construction: a 256-byte pool filled
	// from weak Math.random(), timestamp XORed into the head, then used as
	// an ARC4 key whose keystream becomes the private key bytes.
	ARC4Pool Variant = "arc4-pool"
)

// Engine is the uniform contract over all variants. Seed fully
// reinitializes the state from a single numeric seed (a timestamp at the
// variant's native granularity, or an explicit override); NextBytes fills p
// from the stream. Engines hold no shared state and are cheap to create,
// so every worker owns its own instance.
type Engine interface {
	Seed(seed uint64)
	NextBytes(p []byte)
}

// New returns a fresh engine for the variant. The variant set is closed;
// unknown tags are an error, never a silent fallback to a "close enough"
// generator.
func New(v Variant) (Engine, error) {
	switch v {
	case MT19937MSB:
		return &mt19937{msb: true}, nil
	case MT19937LSB:
		return &mt19937{msb: false}, nil
	case MWC1616, LCG48Java, LCG48Drand, LCG48JSC, MSVCCrt, XorShift128:
		return &mathRandom{variant: v}, nil
	case Minstd:
		return &minstd{}, nil
	case ARC4Pool:
		return &arc4Pool{inner: mathRandom{variant: MWC1616}}, nil
	default:
		return nil, fmt.Errorf("prng: unknown variant %q", v)
	}
}

// ParseVariant maps user-facing selector strings (including the common
// aliases from disclosure writeups) onto the closed variant set.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "mt19937-msb", "milk-sad", "bx":
		return MT19937MSB, nil
	case "mt19937-lsb":
		return MT19937LSB, nil
	case "mwc1616", "v8", "chrome":
		return MWC1616, nil
	case "lcg48-java", "java":
		return LCG48Java, nil
	case "lcg48-drand48", "drand48":
		return LCG48Drand, nil
	case "lcg48-jsc", "jsc", "webkit":
		return LCG48JSC, nil
	case "msvc-crt", "safari-windows":
		return MSVCCrt, nil
	case "xorshift128", "xorshift128plus", "spidermonkey":
		return XorShift128, nil
	case "minstd", "trust-wallet":
		return Minstd, nil
	case "arc4-pool", "bitcoinjs", "randstorm":
		return ARC4Pool, nil
	}
	return "", fmt.Errorf("prng: unknown variant %q", s)
}

// Variants lists every supported variant tag.
func Variants() []Variant {
	return []Variant{
		MT19937MSB, MT19937LSB, MWC1616, LCG48Java, LCG48Drand,
		LCG48JSC, MSVCCrt, XorShift128, Minstd, ARC4Pool,
	}
}
