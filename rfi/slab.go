package rfi

import (
	"github.com/phil-mansfield/simplepart/geom"
)

// SlabSolver is a stand-in calculator. It splits the cube [0, Width]^3 into
// equal slabs along x, one per worker, and applies a uniform force plus
// linear drag to every particle image whose center lies in a worker's slab.
type SlabSolver struct {
	Workers    int
	Iterations int
	Width      float64
	// Load is applied to every image. Drag is the coefficient of the
	// linear drag force and moment, -Drag v and -Drag omega.
	Load geom.Vec
	Drag  float64

	boxes []geom.Box
}

var _ Solver = &SlabSolver{}

func (s *SlabSolver) Boxes(iter int) ([]geom.Box, bool) {
	if iter >= s.Iterations {
		return nil, false
	}
	if len(s.boxes) != s.Workers {
		s.boxes = make([]geom.Box, s.Workers)
		dx := s.Width / float64(s.Workers)
		for i := range s.boxes {
			s.boxes[i] = geom.Box{
				Declared: true,
				Lower:    geom.Vec{dx * float64(i), 0, 0},
				Upper:    geom.Vec{dx * float64(i+1), s.Width, s.Width},
			}
		}
	}
	return s.boxes, true
}

// Force gives the whole load of an image to the first worker whose slab
// contains its center, so that images straddling a slab boundary are not
// counted twice.
func (s *SlabSolver) Force(iter, worker int, p *ParticleRecord, f *ForceRecord) {
	for w := 0; w < worker; w++ {
		if s.boxes[w].Contains(&p.Pos) {
			return
		}
	}
	if !s.boxes[worker].Contains(&p.Pos) {
		return
	}
	f.Force = s.Load
	f.Force.AddScaledSelf(&p.Vel, -s.Drag)
	p.Omega.ScaleAt(-s.Drag, &f.Moment)
}
