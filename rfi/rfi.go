/*package rfi implements the remote force interface: the message channel
between the particle program and a spatially partitioned force calculator.

Every iteration follows the same handshake. The calculator announces whether
it is still active and the bounding box of each of its workers. The particle
side then reports how many particle images it will send to each worker, fills
one typed record per image, sends them, and blocks until the calculator
returns one force record per image, in the same order.
*/
package rfi

import (
	"fmt"

	"github.com/phil-mansfield/simplepart/geom"
)

// ParticleRecord is the state of one particle image sent to a worker.
type ParticleRecord struct {
	R        float64
	Pos, Vel geom.Vec
	Omega    geom.Vec // Only transferred if rotation was negotiated.
}

// ForceRecord is the hydrodynamic load a worker computed for one image.
type ForceRecord struct {
	Force  geom.Vec
	Moment geom.Vec // Only transferred if rotation was negotiated.
}

// Welcome is what the calculator tells a client when it connects.
type Welcome struct {
	Workers  int
	Rot      bool
	Timestep float64
	Vars     map[string]string
}

// Transport is the particle side of the channel. Calls must follow the
// order Active, SetSize, SendSizes, Alloc, Particles, SendParticles,
// SendForces, Forces once per iteration. All methods block; none of them
// may be called concurrently.
type Transport interface {
	// Active waits for the start of the next iteration and reports whether
	// the calculator wants one.
	Active() (bool, error)
	// Workers and WorkerBox describe the partitioning for the current
	// iteration. They may change between iterations.
	Workers() int
	WorkerBox(i int) geom.Box
	// Rot reports whether angular velocities and moments are exchanged.
	Rot() bool

	SetSize(worker, n int)
	SendSizes() error
	// Alloc sizes the record buffers to the counts given to SetSize.
	Alloc()
	Particles(worker int) []ParticleRecord
	SendParticles() error
	// SendForces asks the calculator for the forces on the particles sent
	// and blocks until they have arrived.
	SendForces() error
	Forces(worker int) []ForceRecord

	HasVar(name string) bool
	Var(name string) string
	// Timestep is the calculator's suggested timestep.
	Timestep() float64

	Close() error
}

// ProtocolError reports a message which arrived out of order or which could
// not be decoded.
type ProtocolError struct {
	Op  string
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rfi: %s: %s", e.Op, e.Msg)
}

func protocolErrorf(op, format string, args ...interface{}) error {
	return &ProtocolError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// buffers holds the per-worker sizes and record slices shared by every
// Transport implementation.
type buffers struct {
	sizes  []int
	parts  [][]ParticleRecord
	forces [][]ForceRecord
}

// reset forgets the sizes of the previous iteration and resizes the tables
// for the given number of workers. Record storage is kept for reuse.
func (b *buffers) reset(workers int) {
	if cap(b.sizes) < workers {
		b.sizes = make([]int, workers)
	}
	b.sizes = b.sizes[:workers]
	for i := range b.sizes {
		b.sizes[i] = 0
	}
	for len(b.parts) < workers {
		b.parts = append(b.parts, nil)
		b.forces = append(b.forces, nil)
	}
	b.parts, b.forces = b.parts[:workers], b.forces[:workers]
}

func (b *buffers) SetSize(worker, n int) { b.sizes[worker] = n }

func (b *buffers) Alloc() {
	for w, n := range b.sizes {
		if cap(b.parts[w]) < n {
			b.parts[w] = make([]ParticleRecord, n)
			b.forces[w] = make([]ForceRecord, n)
		}
		b.parts[w] = b.parts[w][:n]
		b.forces[w] = b.forces[w][:n]
	}
}

func (b *buffers) Particles(worker int) []ParticleRecord { return b.parts[worker] }
func (b *buffers) Forces(worker int) []ForceRecord       { return b.forces[worker] }

func (b *buffers) total() int {
	n := 0
	for _, s := range b.sizes {
		n += s
	}
	return n
}
