package rfi

import (
	"github.com/phil-mansfield/simplepart/geom"
)

// Loopback is an in-process Transport which plays the calculator itself. It
// checks that calls arrive in protocol order and records the sizes it was
// sent, which makes it the workhorse of the package tests that sit on top
// of rfi.
type Loopback struct {
	buffers

	// Iterations is the number of iterations before Active reports false.
	Iterations int
	// Boxes gives the worker boxes for an iteration. If nil, a single
	// worker with an undeclared box is used.
	Boxes func(iter int) []geom.Box
	// Force fills in the load on one image. If nil, forces are zero.
	Force  func(iter, worker int, p *ParticleRecord, f *ForceRecord)
	RotDOF bool
	Dt     float64
	Vars   map[string]string

	// Sizes holds the per-worker counts sent in each iteration.
	Sizes [][]int
	// Sent holds copies of the particle records sent in the last iteration.
	Sent   [][]ParticleRecord
	Closed bool

	iter  int
	boxes []geom.Box
	state loopState
}

type loopState int

const (
	loopIdle loopState = iota
	loopActive
	loopSized
	loopAllocated
	loopSent
)

var _ Transport = &Loopback{}

func (l *Loopback) step(op string, from, to loopState) error {
	if l.state != from {
		return protocolErrorf(op, "called out of order")
	}
	l.state = to
	return nil
}

func (l *Loopback) Active() (bool, error) {
	if l.Closed {
		return false, protocolErrorf("status", "transport closed")
	}
	if l.state != loopIdle {
		return false, protocolErrorf("status", "previous iteration incomplete")
	}
	if l.iter >= l.Iterations {
		return false, nil
	}

	if l.Boxes == nil {
		l.boxes = []geom.Box{{}}
	} else {
		l.boxes = l.Boxes(l.iter)
	}
	l.reset(len(l.boxes))
	l.state = loopActive
	return true, nil
}

// Iteration returns the number of iterations started so far.
func (l *Loopback) Iteration() int { return l.iter }

func (l *Loopback) Workers() int             { return len(l.boxes) }
func (l *Loopback) WorkerBox(i int) geom.Box { return l.boxes[i] }
func (l *Loopback) Rot() bool                { return l.RotDOF }
func (l *Loopback) Timestep() float64        { return l.Dt }

func (l *Loopback) HasVar(name string) bool {
	_, ok := l.Vars[name]
	return ok
}

func (l *Loopback) Var(name string) string { return l.Vars[name] }

func (l *Loopback) SendSizes() error {
	if err := l.step("sizes", loopActive, loopSized); err != nil {
		return err
	}
	l.Sizes = append(l.Sizes, append([]int(nil), l.sizes...))
	return nil
}

func (l *Loopback) Alloc() {
	l.buffers.Alloc()
	if l.state == loopSized {
		l.state = loopAllocated
	}
}

func (l *Loopback) SendParticles() error {
	if err := l.step("particles", loopAllocated, loopSent); err != nil {
		return err
	}
	l.Sent = l.Sent[:0]
	for _, ps := range l.parts {
		l.Sent = append(l.Sent, append([]ParticleRecord(nil), ps...))
	}
	return nil
}

func (l *Loopback) SendForces() error {
	if err := l.step("forces", loopSent, loopIdle); err != nil {
		return err
	}
	for w := range l.parts {
		for i := range l.parts[w] {
			f := &l.forces[w][i]
			f.Force.Zero()
			f.Moment.Zero()
			if l.Force != nil {
				l.Force(l.iter, w, &l.parts[w][i], f)
			}
			if !l.RotDOF {
				f.Moment.Zero()
			}
		}
	}
	l.iter++
	return nil
}

func (l *Loopback) Close() error {
	l.Closed = true
	return nil
}
