package prng

import "encoding/binary"

// minstd is std::minstd_rand0, the multiplicative congruential generator
// Trust Wallet iOS seeded with a timestamp (CVE-2024-23660). Outputs are
// packed little-endian, four bytes per draw, matching the wallet's buffer
// fill on ARM.
type minstd struct {
	state uint32
}

func (m *minstd) Seed(seed uint64) {
	s := uint32(seed)
	if s == 0 {
		s = 1
	}
	m.state = s
}

func (m *minstd) next() uint32 {
	const (
		a = 16807
		n = 2147483647
	)
	m.state = uint32(uint64(m.state) * a % n)
	return m.state
}

func (m *minstd) NextBytes(p []byte) {
	var word [4]byte
	for i := 0; i < len(p); i += 4 {
		binary.LittleEndian.PutUint32(word[:], m.next())
		copy(p[i:], word[:])
	}
}
