package sim

// scheme advances the authoritative triple by one sub-step of length dt
// starting at time t. The halo of the authoritative triple is valid on
// entry and must be valid on return.
type scheme interface {
	name() string
	advance(s *Simulator, t, dt float64) (stage string, err error)
}

type euler struct{}

func (euler) name() string { return "euler" }

func (euler) advance(s *Simulator, t, dt float64) (string, error) {
	if err := s.kernel.Advance(s.params.WithStage(0, t, dt), s.state.Current(), s.state.Scratch(), s.bathy); err != nil {
		return "kernel stage 0", err
	}
	s.state.Swap()
	if err := s.bc.ApplyTo(s.state.Current()); err != nil {
		return "boundary", err
	}
	return "", nil
}

// rk2 is the two-stage scheme. Stage 1 writes back into the authoritative
// buffer and blends with the Q^n it still holds, so no swap happens.
type rk2 struct{}

func (rk2) name() string { return "rk2" }

func (rk2) advance(s *Simulator, t, dt float64) (string, error) {
	cur, scr := s.state.Current(), s.state.Scratch()
	if err := s.kernel.Advance(s.params.WithStage(0, t, dt), cur, scr, s.bathy); err != nil {
		return "kernel stage 0", err
	}
	if err := s.bc.ApplyTo(scr); err != nil {
		return "boundary", err
	}
	if err := s.kernel.Advance(s.params.WithStage(1, t, dt), scr, cur, s.bathy); err != nil {
		return "kernel stage 1", err
	}
	if err := s.bc.ApplyTo(cur); err != nil {
		return "boundary", err
	}
	return "", nil
}

func pickScheme(useRK2 bool) scheme {
	if useRK2 {
		return rk2{}
	}
	return euler{}
}
