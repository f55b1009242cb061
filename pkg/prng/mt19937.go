package prng

const (
	mtN         = 624
	mtM         = 397
	mtMatrixA   = 0x9908b0df
	mtUpperMask = 0x80000000
	mtLowerMask = 0x7fffffff
	mtSeedMult  = 1812433253
	mtTemperB   = 0x9d2c5680
	mtTemperC   = 0xefc60000
)

// mt19937 is the standard 32-bit Mersenne Twister. The extraction rule
// (msb) is fixed per variant: libbitcoin's bx takes only the most
// significant byte of each output word, discarding the other three.
type mt19937 struct {
	state [mtN]uint32
	index int
	msb   bool
}

func (m *mt19937) Seed(seed uint64) {
	m.state[0] = uint32(seed)
	for i := 1; i < mtN; i++ {
		prev := m.state[i-1]
		m.state[i] = mtSeedMult*(prev^(prev>>30)) + uint32(i)
	}
	m.index = mtN
}

func (m *mt19937) next() uint32 {
	if m.index >= mtN {
		m.twist()
	}
	y := m.state[m.index]
	m.index++

	y ^= y >> 11
	y ^= (y << 7) & mtTemperB
	y ^= (y << 15) & mtTemperC
	y ^= y >> 18
	return y
}

func (m *mt19937) twist() {
	for i := 0; i < mtN; i++ {
		y := (m.state[i] & mtUpperMask) | (m.state[(i+1)%mtN] & mtLowerMask)
		next := m.state[(i+mtM)%mtN] ^ (y >> 1)
		if y&1 != 0 {
			next ^= mtMatrixA
		}
		m.state[i] = next
	}
	m.index = 0
}

func (m *mt19937) NextBytes(p []byte) {
	for i := range p {
		v := m.next()
		if m.msb {
			p[i] = byte(v >> 24)
		} else {
			p[i] = byte(v)
		}
	}
}
