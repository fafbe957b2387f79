package simplepart

import (
	"fmt"

	"github.com/phil-mansfield/simplepart/geom"
)

// Particle is a rigid sphere moved by the forces the calculator reports.
type Particle struct {
	// ID is the position of the particle in the configuration. It names the
	// particle's columns in the trajectory log.
	ID int

	X, V, Omega geom.Vec
	// V0 and Omega0 are the reference velocities reached at the end of the
	// ease-in ramp.
	V0, Omega0 geom.Vec
	// F and Torque are the totals over every worker and every periodic image
	// from the most recent exchange.
	F, Torque geom.Vec
	// ForceSum accumulates F for averaged logging. The trajectory log resets
	// it after every row.
	ForceSum geom.Vec

	R, M   float64
	EaseIn float64
	Log    bool

	ramping bool
}

// ParticleParams are the loaded values of a particle.
type ParticleParams struct {
	X, V0, Omega0 geom.Vec
	R, M, EaseIn  float64
	Log           bool
}

// NewParticle checks pp and returns a particle in its starting state. A
// particle with an ease-in time starts at rest and ramps up to V0 and Omega0,
// otherwise it starts moving at V0 and Omega0 right away.
func NewParticle(id int, pp *ParticleParams) (Particle, error) {
	switch {
	case pp.R <= 0:
		return Particle{}, fmt.Errorf(
			"particle %d: radius must be positive, got %g", id, pp.R,
		)
	case pp.M < 0:
		return Particle{}, fmt.Errorf(
			"particle %d: mass must be non-negative, got %g", id, pp.M,
		)
	case pp.EaseIn < 0:
		return Particle{}, fmt.Errorf(
			"particle %d: ease-in time must be non-negative, got %g",
			id, pp.EaseIn,
		)
	}

	p := Particle{
		ID: id, X: pp.X, V0: pp.V0, Omega0: pp.Omega0,
		R: pp.R, M: pp.M, EaseIn: pp.EaseIn, Log: pp.Log,
		ramping: pp.EaseIn > 0,
	}
	if !p.ramping {
		p.V, p.Omega = p.V0, p.Omega0
	}
	return p, nil
}

// Ramping returns true while the particle's motion is prescribed by its
// ease-in ramp.
func (p *Particle) Ramping() bool { return p.ramping }

// EaseInRemaining returns how much simulated time is left in the ramp at
// time t. It is zero once the particle is free.
func (p *Particle) EaseInRemaining(t float64) float64 {
	if !p.ramping || t >= p.EaseIn {
		return 0
	}
	return p.EaseIn - t
}
