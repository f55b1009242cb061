package prng

// arc4 is the RC4 stream cipher exactly as BitcoinJS v0.1.3 shipped it in
// its SecureRandom fallback path.
type arc4 struct {
	i, j byte
	s    [256]byte
}

func newARC4(key []byte) *arc4 {
	a := &arc4{}
	for i := 0; i < 256; i++ {
		a.s[i] = byte(i)
	}
	var j byte
	for i := 0; i < 256; i++ {
		j += a.s[i] + key[i%len(key)]
		a.s[i], a.s[j] = a.s[j], a.s[i]
	}
	return a
}

func (a *arc4) nextByte() byte {
	a.i++
	a.j += a.s[a.i]
	a.s[a.i], a.s[a.j] = a.s[a.j], a.s[a.i]
	k := a.s[a.i] + a.s[a.j]
	return a.s[k]
}

// arc4Pool reproduces the BitcoinJS v0.1.3 key generation path. The
// navigator.appVersion check in that release failed on modern browsers, so
// the 256-byte entropy pool was filled from weak Math.random() instead of
// the crypto API, with only the low 32 bits of Date.now() XORed into the
// head. The pool keys an ARC4 instance whose keystream becomes the wallet's
// private key bytes.
type arc4Pool struct {
	inner  mathRandom
	cipher *arc4
}

func (e *arc4Pool) Seed(seed uint64) {
	e.inner.Seed(seed)

	var pool [256]byte
	for ptr := 0; ptr < 256; {
		r := e.inner.nextU16()
		pool[ptr] = byte(r >> 8)
		ptr++
		if ptr < 256 {
			pool[ptr] = byte(r)
			ptr++
		}
	}

	// rng_seed_time: XOR the millisecond timestamp into the pool head.
	ts := uint32(seed)
	pool[0] ^= byte(ts)
	pool[1] ^= byte(ts >> 8)
	pool[2] ^= byte(ts >> 16)
	pool[3] ^= byte(ts >> 24)

	e.cipher = newARC4(pool[:])
}

func (e *arc4Pool) NextBytes(p []byte) {
	for i := range p {
		p[i] = e.cipher.nextByte()
	}
}
