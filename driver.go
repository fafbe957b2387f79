/*package simplepart moves a set of rigid spherical particles through a fluid
whose forces are computed by a separate, spatially partitioned calculator.

Each iteration the Driver asks the calculator whether it is still running,
exchanges particle images for forces through a Session, optionally records
the particles, and advances them with an Integrator.
*/
package simplepart

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/phil-mansfield/simplepart/geom"
	"github.com/phil-mansfield/simplepart/metrics"
	"github.com/phil-mansfield/simplepart/rfi"
)

// DefaultReportInterval is the wall time between progress reports.
const DefaultReportInterval = 10 * time.Second

// Recorder observes the particles after each exchange, before they are
// advanced. Record is only called on iterations divisible by Stride.
type Recorder interface {
	Stride() int
	Record(iter int, t float64, ps []Particle) error
	Close() error
}

// Driver runs the coupling loop until the calculator stops.
type Driver struct {
	tr    rfi.Transport
	sess  *Session
	integ *Integrator
	ps    []Particle

	rec            Recorder
	logger         *zap.Logger
	met            *metrics.Metrics
	clk            clock.Clock
	reportInterval time.Duration
	maxIter        int

	iter       int
	lastReport time.Time
	lastIter   int
	closed     bool
}

type Option func(*Driver)

// WithRecorder records the particles every rec.Stride() iterations.
func WithRecorder(rec Recorder) Option { return func(d *Driver) { d.rec = rec } }

func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option { return func(d *Driver) { d.met = m } }

// WithClock replaces the wall clock used for progress reports and timings.
func WithClock(clk clock.Clock) Option { return func(d *Driver) { d.clk = clk } }

// WithReportInterval sets the wall time between progress reports. A
// non-positive interval turns them off.
func WithReportInterval(dt time.Duration) Option {
	return func(d *Driver) { d.reportInterval = dt }
}

// WithMaxIterations stops the loop after n iterations even if the calculator
// is still active. n <= 0 means no limit.
func WithMaxIterations(n int) Option { return func(d *Driver) { d.maxIter = n } }

// NewDriver returns a Driver which moves ps. The Driver owns tr and the
// recorder and closes both in Close.
func NewDriver(
	tr rfi.Transport, dom *geom.Domain, integ *Integrator,
	ps []Particle, opts ...Option,
) *Driver {
	d := &Driver{
		tr: tr, sess: NewSession(tr, dom), integ: integ, ps: ps,
		logger:         zap.NewNop(),
		clk:            clock.New(),
		reportInterval: DefaultReportInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Iteration returns the number of completed iterations.
func (d *Driver) Iteration() int { return d.iter }

// Particles returns the particles being moved.
func (d *Driver) Particles() []Particle { return d.ps }

// Run loops until the calculator reports that it is done. Any error ends the
// loop; the Driver cannot be resumed afterwards.
func (d *Driver) Run() error {
	d.integ.Init(d.ps)
	d.lastReport, d.lastIter = d.clk.Now(), d.iter

	d.logger.Info("starting coupling loop",
		zap.Int("particles", len(d.ps)),
		zap.Float64("dt", d.integ.Dt),
		zap.Bool("rotation", d.tr.Rot()),
	)

	for d.maxIter <= 0 || d.iter < d.maxIter {
		active, err := d.tr.Active()
		if err != nil {
			return fmt.Errorf("simplepart: iteration %d: %w", d.iter, err)
		}
		if !active {
			d.logger.Info("calculator finished",
				zap.Int("iterations", d.iter),
				zap.Float64("time", d.integ.Time(d.iter)),
			)
			return nil
		}

		if err := d.iterate(); err != nil {
			return fmt.Errorf("simplepart: iteration %d: %w", d.iter, err)
		}
		d.report()
	}

	d.logger.Info("iteration limit reached", zap.Int("iterations", d.iter))
	return nil
}

func (d *Driver) iterate() error {
	start := d.clk.Now()
	stats, err := d.sess.Exchange(d.ps)
	if err != nil {
		return err
	}
	exchanged := d.clk.Now()
	d.met.ObserveExchange(stats.Images, exchanged.Sub(start))
	if ce := d.logger.Check(zap.DebugLevel, "exchanged"); ce != nil {
		ce.Write(
			zap.Int("iteration", d.iter),
			zap.Int("workers", stats.Workers),
			zap.Ints("images", stats.Images),
		)
	}

	if d.rec != nil && d.iter%d.rec.Stride() == 0 {
		if err := d.rec.Record(d.iter, d.integ.Time(d.iter), d.ps); err != nil {
			return err
		}
		d.met.ObserveRow()
	}

	d.integ.Step(d.ps, d.iter)
	d.iter++
	d.met.ObserveStep(d.integ.Time(d.iter), d.clk.Since(exchanged))
	return nil
}

// report logs the iteration speed if reportInterval has passed since the
// last report.
func (d *Driver) report() {
	if d.reportInterval <= 0 {
		return
	}
	now := d.clk.Now()
	elapsed := now.Sub(d.lastReport)
	if elapsed < d.reportInterval {
		return
	}
	d.logger.Info("progress",
		zap.Int("iteration", d.iter),
		zap.Float64("time", d.integ.Time(d.iter)),
		zap.Float64("iterations_per_second",
			float64(d.iter-d.lastIter)/elapsed.Seconds()),
	)
	d.lastReport, d.lastIter = now, d.iter
}

// Close closes the recorder and the transport. It is safe to call more than
// once.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var err error
	if d.rec != nil {
		err = multierr.Append(err, d.rec.Close())
	}
	return multierr.Append(err, d.tr.Close())
}
