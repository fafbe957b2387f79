package io

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	sp "github.com/phil-mansfield/simplepart"
	"github.com/phil-mansfield/simplepart/geom"
)

// Column group prefixes of the trajectory log. The position group has no
// prefix, so its columns are p<n>_x, p<n>_y and p<n>_z.
const (
	PositionPrefix = ""
	VelocityPrefix = "v"
	ForcePrefix    = "f"
	OmegaPrefix    = "o"
	TorquePrefix   = "t"
)

// Logger writes the trajectories of the logged particles to a CSV file. It
// implements simplepart.Recorder.
type Logger struct {
	opts LogOptions
	f    *os.File
	w    *csv.Writer
	ids  []int
	row  []string
}

var _ sp.Recorder = &Logger{}

// NewLogger creates opts.Name and writes the header for the particles in ps
// which have logging turned on.
func NewLogger(opts *LogOptions, ps []sp.Particle, logger *zap.Logger) (*Logger, error) {
	if opts.Stride < 1 {
		return nil, fmt.Errorf("log stride must be at least 1, got %d", opts.Stride)
	}
	if opts.Average {
		logger.Info("particle force averaging is on", zap.Int("stride", opts.Stride))
	}
	if opts.Rotation {
		logger.Info("particle omega and torque are logged")
	}

	f, err := os.Create(opts.Name)
	if err != nil {
		return nil, err
	}
	l := &Logger{opts: *opts, f: f, w: csv.NewWriter(f)}

	header := []string{"Iteration", "Time"}
	for i := range ps {
		if !ps[i].Log {
			continue
		}
		l.ids = append(l.ids, i)
		for _, prefix := range l.groups() {
			header = append(header, ColumnNames(ps[i].ID, prefix)...)
		}
	}
	if err := l.w.Write(header); err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	l.row = make([]string, 0, len(header))

	logger.Info("logging particle trajectories",
		zap.String("file", opts.Name),
		zap.Int("particles", len(l.ids)),
	)
	return l, nil
}

func (l *Logger) groups() []string {
	gs := []string{PositionPrefix, VelocityPrefix, ForcePrefix}
	if l.opts.Rotation {
		gs = append(gs, OmegaPrefix, TorquePrefix)
	}
	return gs
}

// ColumnNames returns the names of the three columns of a group for the
// particle with the given ID.
func ColumnNames(id int, prefix string) []string {
	out := make([]string, 3)
	for j := range out {
		out[j] = fmt.Sprintf("p%d_%s%s", id, prefix, axisNames[j])
	}
	return out
}

func (l *Logger) Stride() int { return l.opts.Stride }

// Record appends a row for iteration iter at time t. With averaging on, the
// force columns hold the mean force since the previous row and each logged
// particle's ForceSum is reset.
func (l *Logger) Record(iter int, t float64, ps []sp.Particle) error {
	l.row = append(l.row[:0], strconv.Itoa(iter), formatFloat(t))
	for _, i := range l.ids {
		p := &ps[i]
		l.appendVec(&p.X)
		l.appendVec(&p.V)
		if l.opts.Average {
			avg := geom.Vec{}
			p.ForceSum.ScaleAt(1/float64(l.opts.Stride), &avg)
			l.appendVec(&avg)
			p.ForceSum.Zero()
		} else {
			l.appendVec(&p.F)
		}
		if l.opts.Rotation {
			l.appendVec(&p.Omega)
			l.appendVec(&p.Torque)
		}
	}
	if err := l.w.Write(l.row); err != nil {
		return fmt.Errorf("write %s: %w", l.opts.Name, err)
	}
	return nil
}

func (l *Logger) appendVec(v *geom.Vec) {
	for j := 0; j < 3; j++ {
		l.row = append(l.row, formatFloat(v[j]))
	}
}

// formatFloat prints 15 significant digits.
func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', 15, 64)
}

// Close flushes the log and closes the file.
func (l *Logger) Close() error {
	l.w.Flush()
	return multierr.Append(l.w.Error(), l.f.Close())
}
