package io

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	sp "github.com/phil-mansfield/simplepart"
	"github.com/phil-mansfield/simplepart/geom"
	"github.com/phil-mansfield/simplepart/rfi"
)

func particles(t *testing.T, logged ...bool) []sp.Particle {
	ps := make([]sp.Particle, len(logged))
	for i, log := range logged {
		p, err := sp.NewParticle(i, &sp.ParticleParams{
			R: 1, M: 1, X: geom.Vec{float64(i), 0, 0}, Log: log,
		})
		require.NoError(t, err)
		ps[i] = p
	}
	return ps
}

func TestLoggerHeader(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "log.csv")
	ps := particles(t, false, true)

	l, err := NewLogger(&LogOptions{Name: fname, Stride: 1, Rotation: true},
		ps, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Equal(t,
		"Iteration,Time,"+
			"p1_x,p1_y,p1_z,p1_vx,p1_vy,p1_vz,p1_fx,p1_fy,p1_fz,"+
			"p1_ox,p1_oy,p1_oz,p1_tx,p1_ty,p1_tz\n",
		string(data),
	)
}

func TestLoggerRows(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "log.csv")
	ps := particles(t, true)
	ps[0].X = geom.Vec{0.1, 1.0 / 3, -2e-7}
	ps[0].V = geom.Vec{1, 2, 3}
	ps[0].F = geom.Vec{-1, 0, 4}

	l, err := NewLogger(&LogOptions{Name: fname, Stride: 2}, ps, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, l.Stride())
	require.NoError(t, l.Record(4, 0.25, ps))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "4,0.25,0.1,0.333333333333333,-2e-07,1,2,3,-1,0,4", lines[1])
}

func TestLoggerAverage(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "log.csv")
	ps := particles(t, true)

	l, err := NewLogger(&LogOptions{Name: fname, Stride: 4, Average: true},
		ps, zap.NewNop())
	require.NoError(t, err)

	ps[0].ForceSum = geom.Vec{8, 4, 0}
	ps[0].F = geom.Vec{100, 100, 100}
	require.NoError(t, l.Record(4, 1, ps))
	assert.Equal(t, geom.Vec{}, ps[0].ForceSum)
	require.NoError(t, l.Close())

	log, err := ReadLog(fname)
	require.NoError(t, err)
	fx, ok := log.Column("p0_fx")
	require.True(t, ok)
	assert.Equal(t, []float64{2}, fx)
	fy, _ := log.Column("p0_fy")
	assert.Equal(t, []float64{1}, fy)
}

func TestLoggerBadStride(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "log.csv")
	_, err := NewLogger(&LogOptions{Name: fname}, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = os.Stat(fname)
	assert.True(t, os.IsNotExist(err))
}

func TestLoggerUnwritable(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "missing", "log.csv")
	_, err := NewLogger(&LogOptions{Name: fname, Stride: 1}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestLoggingStride(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "run_SP_Log.csv")
	src := `
[SimplePart]
dt = 0.5
[Particle "a"]
r = 1
m = 1
log = true
[Log]
Iterations = 3
`
	tr := &rfi.Loopback{
		Iterations: 9,
		Vars:       map[string]string{OutputVar: strings.TrimSuffix(fname, LogSuffix)},
		Force: func(iter, w int, p *rfi.ParticleRecord, f *rfi.ForceRecord) {
			f.Force = geom.Vec{1, 0, 0}
		},
	}
	cfg, err := ParseConfig([]byte(src), "stride.cfg", tr)
	require.NoError(t, err)
	require.Equal(t, fname, cfg.Log.Name)

	l, err := NewLogger(cfg.Log, cfg.Particles, zap.NewNop())
	require.NoError(t, err)
	d := sp.NewDriver(tr, &cfg.Domain, &cfg.Integrator, cfg.Particles,
		sp.WithRecorder(l))
	require.NoError(t, d.Run())
	require.NoError(t, d.Close())

	log, err := ReadLog(fname)
	require.NoError(t, err)
	assert.Equal(t, 3, log.Rows())
	iters, _ := log.Column("Iteration")
	assert.Equal(t, []float64{0, 3, 6}, iters)
	times, _ := log.Column("Time")
	assert.Equal(t, []float64{0, 1.5, 3}, times)
	fx, _ := log.Column("p0_fx")
	assert.Equal(t, []float64{1, 1, 1}, fx)
}

func TestParseLogErrors(t *testing.T) {
	_, err := ParseLog(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseLog(strings.NewReader("Iteration,Time\n0,abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column Time")

	_, err = ParseLog(strings.NewReader("Iteration,Time\n0\n"))
	assert.Error(t, err)

	log, err := ParseLog(strings.NewReader("Iteration,Time\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, log.Rows())
	_, ok := log.Column("p0_x")
	assert.False(t, ok)
}

func TestLogSeries(t *testing.T) {
	src := "Iteration,Time,p2_vx,p2_vy,p2_vz\n0,0,1,2,3\n5,0.5,4,5,6\n"
	log, err := ParseLog(strings.NewReader(src))
	require.NoError(t, err)

	ts, vs, err := log.Series(2, VelocityPrefix)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5}, ts)
	assert.Equal(t, []float64{1, 4}, vs[0])
	assert.Equal(t, []float64{3, 6}, vs[2])

	_, _, err = log.Series(2, ForcePrefix)
	assert.Error(t, err)
	_, _, err = log.Series(0, VelocityPrefix)
	assert.Error(t, err)
}
