package sim

import (
	"github.com/charmbracelet/log"

	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
)

type Option func(*Simulator)

// WithBackend sets the compute backend used for allocation. The default is
// compute.GetBackend().
func WithBackend(b compute.Backend) Option {
	return func(s *Simulator) { s.backend = b }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Simulator) { s.log = l }
}
