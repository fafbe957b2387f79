package io

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phil-mansfield/simplepart/geom"
	"github.com/phil-mansfield/simplepart/rfi"
)

const fullConfig = `
; Two balls falling through a channel which is periodic along x.
[SimplePart]
dt    = 0.001
ax    = 0
ay    = -9.81
az    = 0
afreq = 0.5

[Particle "ball"]
x = 1.0
y = 2.0
z = 0.5
vx = 0.1
omega-z = 2
r = 0.25
m = 1.5
log = true
ease-in = 0.1

[Particle "anchor"]
x = 4
r = 0.5

[Periodic]
period-x = 10
p-x = -5

[Log]
name = trajectory.csv
Iterations = 10
average = true
rotation = true
`

func solver(dt float64, vars map[string]string) *rfi.Loopback {
	return &rfi.Loopback{Dt: dt, Vars: vars}
}

func configError(t *testing.T, err error) *ConfigError {
	require.Error(t, err)
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr), "got %T: %v", err, err)
	return cerr
}

func TestParseFullConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(fullConfig), "full.cfg", solver(0.5, nil))
	require.NoError(t, err)

	require.Len(t, cfg.Particles, 2)
	assert.Equal(t, []string{"ball", "anchor"}, cfg.Names)

	ball := &cfg.Particles[0]
	assert.Equal(t, 0, ball.ID)
	assert.Equal(t, geom.Vec{1, 2, 0.5}, ball.X)
	assert.Equal(t, geom.Vec{0.1, 0, 0}, ball.V0)
	assert.Equal(t, geom.Vec{0, 0, 2}, ball.Omega0)
	assert.Equal(t, 0.25, ball.R)
	assert.Equal(t, 1.5, ball.M)
	assert.Equal(t, 0.1, ball.EaseIn)
	assert.True(t, ball.Log)
	assert.True(t, ball.Ramping())
	assert.Equal(t, geom.Vec{}, ball.V, "ramping particles start at rest")

	anchor := &cfg.Particles[1]
	assert.Equal(t, 1, anchor.ID)
	assert.Equal(t, 0.0, anchor.M)
	assert.False(t, anchor.Log)

	assert.Equal(t, [3]bool{true, false, false}, cfg.Domain.Periodic)
	assert.Equal(t, 10.0, cfg.Domain.Period[0])
	assert.Equal(t, -5.0, cfg.Domain.Origin[0])

	assert.Equal(t, 0.001, cfg.Integrator.Dt)
	assert.Equal(t, geom.Vec{0, -9.81, 0}, cfg.Integrator.Accel)
	assert.Equal(t, 0.5, cfg.Integrator.AccelFreq)

	require.NotNil(t, cfg.Log)
	assert.Equal(t, LogOptions{
		Name: "trajectory.csv", Stride: 10, Average: true, Rotation: true,
	}, *cfg.Log)
}

func TestParticleOrder(t *testing.T) {
	src := `
[SimplePart]
[Particle "zeta"]
r = 1
[Particle "alpha"]
r = 2
[particle "mid"]
r = 3
`
	cfg, err := ParseConfig([]byte(src), "order.cfg", solver(1, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, cfg.Names)
	for i, p := range cfg.Particles {
		assert.Equal(t, i, p.ID)
		assert.Equal(t, float64(i+1), p.R)
	}
	assert.Nil(t, cfg.Log)
}

func TestDefaults(t *testing.T) {
	src := `
[SimplePart]
[Particle "a"]
r = 1
vx = 3
[Log]
`
	cfg, err := ParseConfig([]byte(src), "defaults.cfg",
		solver(0.01, map[string]string{OutputVar: "out/run"}))
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.Integrator.Dt)
	assert.Equal(t, geom.Vec{3, 0, 0}, cfg.Particles[0].V, "no ease-in")
	assert.Equal(t, [3]bool{}, cfg.Domain.Periodic)
	require.NotNil(t, cfg.Log)
	assert.Equal(t, "out/run"+LogSuffix, cfg.Log.Name)
	assert.Equal(t, 1, cfg.Log.Stride)
}

func TestConfigErrors(t *testing.T) {
	table := []struct {
		name               string
		src                string
		sect, sub, varName string
	}{
		{"missing radius", "[SimplePart]\n[Particle \"a\"]\nm = 1\n",
			"Particle", "a", "r"},
		{"negative mass", "[SimplePart]\n[Particle \"a\"]\nr = 1\nm = -1\n",
			"Particle", "a", "m"},
		{"negative ease-in", "[SimplePart]\n[Particle \"a\"]\nr = 1\nease-in = -2\n",
			"Particle", "a", "ease-in"},
		{"repeated particle", "[SimplePart]\n[Particle \"a\"]\nr = 1\n[Particle \"a\"]\nr = 2\n",
			"Particle", "a", ""},
		{"two logs", "[SimplePart]\n[Log \"x\"]\nname = a\n[Log \"y\"]\nname = b\n",
			"Log", "y", ""},
		{"repeated log", "[SimplePart]\n[Log]\nname = a\n[Log]\nname = b\n",
			"Log", "", ""},
		{"repeated periodic", "[SimplePart]\n[Periodic]\nperiod-x = 1\n[Periodic]\nperiod-y = 1\n",
			"Periodic", "", ""},
		{"zero stride", "[SimplePart]\n[Log]\nname = a\nIterations = 0\n",
			"Log", "", "Iterations"},
		{"no log name", "[SimplePart]\n[Log]\naverage = true\n",
			"Log", "", "name"},
		{"bad period", "[SimplePart]\n[Periodic]\nperiod-z = -1\n",
			"Periodic", "", "period-z"},
		{"zero dt", "[SimplePart]\ndt = 0\n",
			"SimplePart", "", "dt"},
		{"no root section", "[Particle \"a\"]\nr = 1\n",
			"SimplePart", "", ""},
	}

	for _, tt := range table {
		_, err := ParseConfig([]byte(tt.src), tt.name, solver(1, nil))
		cerr := configError(t, err)
		assert.Equal(t, tt.sect, cerr.Section, tt.name)
		assert.Equal(t, tt.sub, cerr.Subsection, tt.name)
		assert.Equal(t, tt.varName, cerr.Variable, tt.name)
	}
}

func TestUnknownEntriesAreFatal(t *testing.T) {
	for _, src := range []string{
		"[SimplePart]\ndt = 1\ngravity = 9.8\n",
		"[SimplePart]\n[Particle \"a\"]\nr = 1\ncolor = red\n",
		"[SimplePart]\n[Wall]\nx = 1\n",
		"[SimplePart]\n[Periodic]\nperiod-w = 1\n",
		"[SimplePart]\n[Log]\nname = a\nformat = csv\n",
	} {
		_, err := ParseConfig([]byte(src), "unknown.cfg", solver(1, nil))
		configError(t, err)
	}
}

func TestSolverTimestepRequired(t *testing.T) {
	_, err := ParseConfig([]byte("[SimplePart]\n"), "dt.cfg", solver(0, nil))
	cerr := configError(t, err)
	assert.Equal(t, "dt", cerr.Variable)
}

func TestLoadConfigSource(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "sp.cfg")
	require.NoError(t, os.WriteFile(fname, []byte(
		"[SimplePart]\n[Particle \"file\"]\nr = 1\n",
	), 0644))
	content := "[SimplePart]\n[Particle \"content\"]\nr = 2\n"

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	cfg, err := LoadConfig(fname,
		solver(1, map[string]string{ContentVar: content}), logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"file"}, cfg.Names)
	assert.Equal(t, 1, logs.FilterMessage(
		"ignoring configuration content sent by calculator").Len())

	cfg, err = LoadConfig("", solver(1, map[string]string{ContentVar: content}), logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"content"}, cfg.Names)

	_, err = LoadConfig("", solver(1, nil), logger)
	configError(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.cfg"), solver(1, nil), logger)
	assert.Error(t, err)
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Section: "Particle", Subsection: "a", Variable: "r", Msg: "bad"}
	assert.Equal(t, `config: [Particle "a"] r: bad`, err.Error())
	err = &ConfigError{Section: "Log", Msg: "twice"}
	assert.Equal(t, "config: [Log]: twice", err.Error())
	err = &ConfigError{Msg: "nothing"}
	assert.Equal(t, "config: nothing", err.Error())
}

func TestExampleConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(ExampleConfig), "example", solver(0, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"ball"}, cfg.Names)
	assert.True(t, cfg.Domain.Periodic[0])
	require.NotNil(t, cfg.Log)
	assert.Equal(t, 10, cfg.Log.Stride)
}
