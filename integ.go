package simplepart

import (
	"math"

	"github.com/phil-mansfield/simplepart/geom"
)

// Integrator advances particles with a semi-implicit Euler scheme: velocities
// are updated from the forces of the current exchange, then positions are
// updated from the new velocities.
type Integrator struct {
	Dt float64
	// Accel is a uniform acceleration applied to every free particle with
	// mass, modulated by cos(2 pi AccelFreq t). With AccelFreq = 0 it is a
	// constant body force such as gravity.
	Accel     geom.Vec
	AccelFreq float64

	initialized bool
}

// Init applies the half-step velocity offset for Accel. Only the first call
// has an effect.
func (in *Integrator) Init(ps []Particle) {
	if in.initialized {
		return
	}
	in.initialized = true
	for i := range ps {
		ps[i].V.AddScaledSelf(&in.Accel, -0.5)
	}
}

// Time returns the simulated time at the given iteration.
func (in *Integrator) Time(iter int) float64 { return in.Dt * float64(iter) }

// Step advances every particle by one timestep, using the forces from the
// exchange of iteration iter.
func (in *Integrator) Step(ps []Particle, iter int) {
	t := in.Time(iter)
	accFac := math.Cos(2*math.Pi*in.AccelFreq*t) * in.Dt
	for i := range ps {
		in.step(&ps[i], t, accFac)
	}
}

func (in *Integrator) step(p *Particle, t, accFac float64) {
	p.ForceSum.AddSelf(&p.F)

	switch {
	case p.ramping && t < p.EaseIn:
		fac := (1 - math.Cos(math.Pi*t/p.EaseIn)) / 2
		p.V0.ScaleAt(fac, &p.V)
		p.Omega0.ScaleAt(fac, &p.Omega)
	case p.ramping:
		p.V, p.Omega = p.V0, p.Omega0
		p.ramping = false
	case p.M > 0:
		p.V.AddScaledSelf(&p.F, in.Dt/p.M)
		p.V.AddScaledSelf(&in.Accel, accFac)
	default:
		// Massless free particles are frozen.
		return
	}

	p.X.AddScaledSelf(&p.V, in.Dt)
}
