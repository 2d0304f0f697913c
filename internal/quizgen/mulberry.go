package quizgen

// mulberry32 is a 32-bit generator with a single word of state. All arithmetic
// wraps at 32 bits so the sequence matches other implementations bit for bit.
type mulberry32 struct {
	state uint32
}

func newMulberry32(seed uint32) *mulberry32 {
	return &mulberry32{state: seed}
}

func (m *mulberry32) next() uint32 {
	m.state += 0x6d2b79f5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// float returns a value in [0, 1).
func (m *mulberry32) float() float64 {
	return float64(m.next()) / 4294967296.0
}
