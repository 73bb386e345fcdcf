package metrics

// Stability is the fraction of outputs that were finite and whose Courant
// number stayed at or below the threshold. The simulator checks neither.
type Stability struct {
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string {
	return "stability"
}

func (s *Stability) Observe(snap *Snapshot) {
	s.samples++
	if !Finite(snap) {
		s.violations++
		return
	}
	if _, cfl := Speeds(snap); cfl > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
