package rng

// Scripted replays fixed draws in order. Once a queue is exhausted it keeps
// returning the zero draw (0 for IntN, 0.99 for Float64 so probabilistic
// branches default to "did not happen"). Out-of-range ints are clamped.
type Scripted struct {
	Ints   []int
	Floats []float64
}

// NewScripted creates a scripted source.
func NewScripted(ints []int, floats []float64) *Scripted {
	return &Scripted{Ints: ints, Floats: floats}
}

// IntN returns the next scripted int, clamped to [0, n).
func (s *Scripted) IntN(n int) int {
	if n <= 0 {
		panic("rng: invalid argument to IntN")
	}
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// Float64 returns the next scripted float, or 0.99 once exhausted.
func (s *Scripted) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0.99
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}
