package simplepart

import (
	"fmt"

	"github.com/phil-mansfield/simplepart/geom"
	"github.com/phil-mansfield/simplepart/rfi"
)

// Session runs the per-iteration exchange with the calculator: count the
// images each worker needs, send them, and collect the forces on them.
type Session struct {
	tr  rfi.Transport
	dom *geom.Domain

	// Per-exchange state. boxes is a snapshot of the worker boxes taken when
	// the exchange starts, so all three passes see the same partitioning.
	boxes []geom.Box
	sizes []int
	index []int
	imgs  []geom.Image
}

// Stats summarizes one exchange.
type Stats struct {
	Workers int
	// Images is the number of particle images sent to each worker.
	Images []int
}

// Total returns the number of images sent to all workers.
func (s *Stats) Total() int {
	n := 0
	for _, k := range s.Images {
		n += k
	}
	return n
}

// NewSession returns a Session which exchanges particles over tr. dom must
// not change for the lifetime of the Session.
func NewSession(tr rfi.Transport, dom *geom.Domain) *Session {
	return &Session{tr: tr, dom: dom}
}

// visit calls fn for every image of every particle overlapping every worker,
// in particle, worker, image order. pos is only valid during the call.
func (s *Session) visit(ps []Particle, fn func(p *Particle, worker int, pos *geom.Vec)) {
	pos := geom.Vec{}
	for i := range ps {
		p := &ps[i]
		for w := range s.boxes {
			s.imgs = s.dom.Images(&p.X, p.R, &s.boxes[w], s.imgs[:0])
			for _, img := range s.imgs {
				s.dom.TranslateAt(&p.X, img, &pos)
				fn(p, w, &pos)
			}
		}
	}
}

// snapshot copies the current worker boxes and clears the per-worker
// counters.
func (s *Session) snapshot() {
	n := s.tr.Workers()
	s.boxes = s.boxes[:0]
	for w := 0; w < n; w++ {
		s.boxes = append(s.boxes, s.tr.WorkerBox(w))
	}
	s.sizes = resize(s.sizes, n)
	s.index = resize(s.index, n)
}

func resize(xs []int, n int) []int {
	if cap(xs) < n {
		return make([]int, n)
	}
	xs = xs[:n]
	for i := range xs {
		xs[i] = 0
	}
	return xs
}

// Exchange sends the state of ps to the calculator and replaces the F and
// Torque of every particle with the sum of the forces reported for all of
// its images. It must be called after Active has reported true on the
// Session's transport.
func (s *Session) Exchange(ps []Particle) (Stats, error) {
	s.snapshot()
	rot := s.tr.Rot()

	// Count.
	s.visit(ps, func(p *Particle, w int, pos *geom.Vec) {
		s.sizes[w]++
	})
	for w, n := range s.sizes {
		s.tr.SetSize(w, n)
	}
	if err := s.tr.SendSizes(); err != nil {
		return Stats{}, fmt.Errorf("simplepart: send sizes: %w", err)
	}
	s.tr.Alloc()

	// Fill.
	s.visit(ps, func(p *Particle, w int, pos *geom.Vec) {
		rec := &s.tr.Particles(w)[s.index[w]]
		rec.R = p.R
		rec.Pos = *pos
		rec.Vel = p.V
		if rot {
			rec.Omega = p.Omega
		} else {
			rec.Omega.Zero()
		}
		s.index[w]++
	})
	if err := s.tr.SendParticles(); err != nil {
		return Stats{}, fmt.Errorf("simplepart: send particles: %w", err)
	}
	if err := s.tr.SendForces(); err != nil {
		return Stats{}, fmt.Errorf("simplepart: receive forces: %w", err)
	}

	// Collect.
	for i := range ps {
		ps[i].F.Zero()
		ps[i].Torque.Zero()
	}
	for w := range s.index {
		s.index[w] = 0
	}
	s.visit(ps, func(p *Particle, w int, pos *geom.Vec) {
		rec := &s.tr.Forces(w)[s.index[w]]
		p.F.AddSelf(&rec.Force)
		if rot {
			p.Torque.AddSelf(&rec.Moment)
		}
		s.index[w]++
	})

	images := make([]int, len(s.sizes))
	copy(images, s.sizes)
	return Stats{Workers: len(s.boxes), Images: images}, nil
}
