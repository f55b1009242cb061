package prng

import "math"

const (
	lcg48Mult = 0x5DEECE66D
	lcg48Inc  = 11
	lcg48Mask = (1 << 48) - 1

	mwcMultHi = 18000
	mwcMultLo = 30903

	crtMult = 214013
	crtInc  = 2531011
)

// mathRandom reproduces the Math.random() implementations of historical
// browser engines. Each variant keeps only the state words its engine
// actually had; the float output and the 16-bit integer output both follow
// the engine's documented construction, since vulnerable callers consumed
// the generator through both shapes.
type mathRandom struct {
	variant Variant
	seed48  uint64
	s1, s2  uint32
	x0, x1  uint64
}

func (m *mathRandom) Seed(seed uint64) {
	m.seed48 = seed & lcg48Mask
	m.s1 = uint32(seed)
	m.s2 = uint32(seed >> 32)
	if m.variant == XorShift128 {
		m.x0 = splitmix64(seed)
		m.x1 = splitmix64(seed + 0x9E3779B97F4A7C15)
	}
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func (m *mathRandom) stepLCG48() uint64 {
	m.seed48 = (m.seed48*lcg48Mult + lcg48Inc) & lcg48Mask
	return m.seed48
}

// stepMWC advances both 16-bit multiply-with-carry lanes and returns the
// 48-bit sum (s1 << 16) + s2. V8 truncated it to 32 bits for the float
// output but kept the upper 32 bits for the 16-bit integer output, so
// both shapes derive from this sum, not from a pre-truncated word.
func (m *mathRandom) stepMWC() uint64 {
	m.s1 = mwcMultHi*(m.s1&0xFFFF) + (m.s1 >> 16)
	m.s2 = mwcMultLo*(m.s2&0xFFFF) + (m.s2 >> 16)
	return uint64(m.s1)<<16 + uint64(m.s2)
}

func (m *mathRandom) stepCRT() uint32 {
	m.s1 = m.s1*crtMult + crtInc
	r1 := (m.s1 >> 16) & 0x7FFF
	m.s1 = m.s1*crtMult + crtInc
	r2 := (m.s1 >> 16) & 0x7FFF
	return r1<<15 | r2
}

func (m *mathRandom) stepXorShift() uint64 {
	s1, s0 := m.x0, m.x1
	m.x0 = s0
	s1 ^= s1 << 23
	m.x1 = s1 ^ s0 ^ (s1 >> 17) ^ (s0 >> 26)
	return m.x1 + s0
}

// next returns the engine's Math.random() value in [0, 1).
func (m *mathRandom) next() float64 {
	switch m.variant {
	case MWC1616:
		return float64(uint32(m.stepMWC())) / 4294967296.0
	case LCG48Drand:
		return float64(m.stepLCG48()) / 281474976710656.0
	case LCG48Java:
		// java.util.Random doubles: 26 high bits then 27 high bits.
		hi := m.stepLCG48() >> 22
		lo := m.stepLCG48() >> 21
		return float64(hi<<27|lo) / float64(uint64(1)<<53)
	case LCG48JSC:
		hi := m.stepLCG48() >> 22
		lo := m.stepLCG48() >> 21
		return float64(hi<<27|lo) / float64(uint64(1)<<53)
	case MSVCCrt:
		return float64(m.stepCRT()) / 1073741824.0
	case XorShift128:
		return float64(m.stepXorShift()>>11) / float64(uint64(1)<<53)
	}
	return 0
}

// nextU16 is Math.floor(65536 * Math.random()) as each engine computed it.
// BitcoinJS fills its entropy pool through this shape.
func (m *mathRandom) nextU16() uint16 {
	switch m.variant {
	case MWC1616:
		return uint16(m.stepMWC() >> 16)
	case LCG48Drand:
		return uint16(m.stepLCG48() >> 32)
	case LCG48Java:
		hi := m.stepLCG48() >> 22
		lo := m.stepLCG48() >> 21
		v := float64(hi<<27|lo) / float64(uint64(1)<<53)
		return uint16(math.Floor(v * 65536.0))
	case LCG48JSC:
		return uint16(m.stepLCG48() >> 16)
	case MSVCCrt:
		return uint16(m.stepCRT() >> 14)
	case XorShift128:
		return uint16(m.stepXorShift() >> 48)
	}
	return 0
}

// NextBytes emits Math.floor(256 * Math.random()) per byte, the shape
// BitcoinJS-era randomBytes() used when crypto.getRandomValues was absent.
func (m *mathRandom) NextBytes(p []byte) {
	for i := range p {
		p[i] = byte(math.Floor(m.next() * 256.0))
	}
}
