package io

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gcfg.v1"
	"gopkg.in/gcfg.v1/scanner"
	"gopkg.in/gcfg.v1/token"

	sp "github.com/phil-mansfield/simplepart"
	"github.com/phil-mansfield/simplepart/geom"
)

const (
	// LogSuffix is appended to the calculator's output prefix to name the
	// trajectory log when the configuration does not name one.
	LogSuffix = "_SP_Log.csv"

	// Names of the calculator variables the configuration depends on.
	OutputVar  = "output"
	ContentVar = "content"
)

// ConfigError is a problem with the configuration tree. Section, Subsection
// and Variable are set as far as they are known.
type ConfigError struct {
	Section, Subsection, Variable string
	Msg                           string
}

func (e *ConfigError) Error() string {
	loc := ""
	switch {
	case e.Section == "":
	case e.Subsection != "" && e.Variable != "":
		loc = fmt.Sprintf("[%s \"%s\"] %s: ", e.Section, e.Subsection, e.Variable)
	case e.Subsection != "":
		loc = fmt.Sprintf("[%s \"%s\"]: ", e.Section, e.Subsection)
	case e.Variable != "":
		loc = fmt.Sprintf("[%s] %s: ", e.Section, e.Variable)
	default:
		loc = fmt.Sprintf("[%s]: ", e.Section)
	}
	return "config: " + loc + e.Msg
}

// Solver is the part of the calculator connection which configuration
// depends on.
type Solver interface {
	HasVar(name string) bool
	Var(name string) string
	Timestep() float64
}

type SimplePartConfig struct {
	// Dt defaults to the calculator's timestep.
	Dt         *float64
	Ax, Ay, Az float64
	AFreq      float64
}

type ParticleConfig struct {
	// Required
	R float64

	// Optional
	X, Y, Z    float64
	Vx, Vy, Vz float64
	OmegaX     float64 `gcfg:"omega-x"`
	OmegaY     float64 `gcfg:"omega-y"`
	OmegaZ     float64 `gcfg:"omega-z"`
	M          float64
	Log        bool
	EaseIn     float64 `gcfg:"ease-in"`
}

// CheckInit validates the particle and converts it to a starting state.
func (pc *ParticleConfig) CheckInit(id int, name string) (sp.Particle, error) {
	p, err := sp.NewParticle(id, &sp.ParticleParams{
		X:      geom.Vec{pc.X, pc.Y, pc.Z},
		V0:     geom.Vec{pc.Vx, pc.Vy, pc.Vz},
		Omega0: geom.Vec{pc.OmegaX, pc.OmegaY, pc.OmegaZ},
		R:      pc.R, M: pc.M, EaseIn: pc.EaseIn, Log: pc.Log,
	})
	if err != nil {
		cerr := &ConfigError{Section: "Particle", Subsection: name, Msg: err.Error()}
		switch {
		case pc.R <= 0:
			cerr.Variable, cerr.Msg = "r", "need to specify a positive radius"
		case pc.M < 0:
			cerr.Variable = "m"
		case pc.EaseIn < 0:
			cerr.Variable = "ease-in"
		}
		return sp.Particle{}, cerr
	}
	return p, nil
}

type PeriodicConfig struct {
	// Setting a period makes that axis periodic.
	PeriodX *float64 `gcfg:"period-x"`
	PeriodY *float64 `gcfg:"period-y"`
	PeriodZ *float64 `gcfg:"period-z"`

	PX float64 `gcfg:"p-x"`
	PY float64 `gcfg:"p-y"`
	PZ float64 `gcfg:"p-z"`
}

// Domain converts the section to a geom.Domain.
func (pc *PeriodicConfig) Domain() (geom.Domain, error) {
	dom := geom.Domain{Origin: [3]float64{pc.PX, pc.PY, pc.PZ}}
	periods := [3]*float64{pc.PeriodX, pc.PeriodY, pc.PeriodZ}
	for j, prd := range periods {
		if prd == nil {
			continue
		}
		if *prd <= 0 {
			return dom, &ConfigError{
				Section: "Periodic", Variable: "period-" + axisNames[j],
				Msg: fmt.Sprintf("period must be positive, got %g", *prd),
			}
		}
		dom.Periodic[j], dom.Period[j] = true, *prd
	}
	return dom, nil
}

var axisNames = [3]string{"x", "y", "z"}

type LogConfig struct {
	Name       string
	Iterations *int
	Average    bool
	Rotation   bool
}

type configFile struct {
	SimplePart SimplePartConfig
	Particle   map[string]*ParticleConfig
	Periodic   PeriodicConfig
	Log        map[string]*LogConfig
}

// LogOptions says where and how the trajectory log is written.
type LogOptions struct {
	Name string
	// Stride is the number of iterations between rows.
	Stride   int
	Average  bool
	Rotation bool
}

// Config is a fully checked configuration.
type Config struct {
	Particles []sp.Particle
	// Names holds the subsection name of each particle, indexed by ID.
	Names      []string
	Domain     geom.Domain
	Integrator sp.Integrator
	// Log is nil if trajectories are not logged.
	Log *LogOptions
}

// LoadConfig reads the configuration from the file fname if it is given and
// from the calculator's content variable otherwise.
func LoadConfig(fname string, solver Solver, logger *zap.Logger) (*Config, error) {
	if fname != "" {
		if solver.HasVar(ContentVar) {
			logger.Warn("ignoring configuration content sent by calculator",
				zap.String("file", fname))
		}
		return ReadConfigFile(fname, solver)
	}
	if solver.HasVar(ContentVar) {
		logger.Info("using configuration sent by calculator")
		return ParseConfig([]byte(solver.Var(ContentVar)), ContentVar, solver)
	}
	return nil, &ConfigError{
		Msg: "no configuration provided: give a config file or have the " +
			"calculator send content",
	}
}

// ReadConfigFile reads and checks the configuration file fname.
func ReadConfigFile(fname string, solver Solver) (*Config, error) {
	src, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return ParseConfig(src, fname, solver)
}

// ParseConfig checks the configuration in src. name is only used in error
// messages.
func ParseConfig(src []byte, name string, solver Solver) (*Config, error) {
	cf := configFile{}
	if err := gcfg.ReadStringInto(&cf, string(src)); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("%s: %s", name, err.Error())}
	}
	hs, err := sectionHeaders(src, name)
	if err != nil {
		return nil, &ConfigError{Msg: err.Error()}
	}

	if !hasSection(hs, "SimplePart") {
		return nil, &ConfigError{Section: "SimplePart", Msg: name + ": missing section"}
	}

	cfg := &Config{}
	if err := cfg.readParticles(&cf, hs); err != nil {
		return nil, err
	}
	if err := checkUnique(hs, "Periodic"); err != nil {
		return nil, err
	}
	if cfg.Domain, err = cf.Periodic.Domain(); err != nil {
		return nil, err
	}
	if err := cfg.readIntegrator(&cf.SimplePart, solver); err != nil {
		return nil, err
	}
	if err := cfg.readLog(&cf, hs, solver); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) readParticles(cf *configFile, hs []header) error {
	seen := map[string]bool{}
	for _, h := range hs {
		if !strings.EqualFold(h.sect, "Particle") {
			continue
		}
		if seen[h.sub] {
			return &ConfigError{
				Section: "Particle", Subsection: h.sub,
				Msg: fmt.Sprintf("%s: repeated particle", h.pos),
			}
		}
		seen[h.sub] = true

		pc := cf.Particle[h.sub]
		if pc == nil {
			pc = &ParticleConfig{}
		}
		p, err := pc.CheckInit(len(cfg.Particles), h.sub)
		if err != nil {
			return err
		}
		cfg.Particles = append(cfg.Particles, p)
		cfg.Names = append(cfg.Names, h.sub)
	}
	return nil
}

func (cfg *Config) readIntegrator(sc *SimplePartConfig, solver Solver) error {
	in := &cfg.Integrator
	in.Dt = solver.Timestep()
	if sc.Dt != nil {
		in.Dt = *sc.Dt
	}
	if in.Dt <= 0 {
		return &ConfigError{
			Section: "SimplePart", Variable: "dt",
			Msg: fmt.Sprintf("timestep must be positive, got %g", in.Dt),
		}
	}
	in.Accel = geom.Vec{sc.Ax, sc.Ay, sc.Az}
	in.AccelFreq = sc.AFreq
	return nil
}

func (cfg *Config) readLog(cf *configFile, hs []header, solver Solver) error {
	if err := checkUnique(hs, "Log"); err != nil {
		return err
	}
	for _, h := range hs {
		if !strings.EqualFold(h.sect, "Log") {
			continue
		}
		lc := cf.Log[h.sub]
		if lc == nil {
			lc = &LogConfig{}
		}
		opts, err := lc.options(h.sub, solver)
		if err != nil {
			return err
		}
		cfg.Log = opts
	}
	return nil
}

func (lc *LogConfig) options(sub string, solver Solver) (*LogOptions, error) {
	opts := &LogOptions{
		Name: lc.Name, Stride: 1,
		Average: lc.Average, Rotation: lc.Rotation,
	}
	if lc.Iterations != nil {
		opts.Stride = *lc.Iterations
		if opts.Stride < 1 {
			return nil, &ConfigError{
				Section: "Log", Subsection: sub, Variable: "Iterations",
				Msg: fmt.Sprintf("must be at least 1, got %d", opts.Stride),
			}
		}
	}
	if opts.Name == "" && solver.HasVar(OutputVar) {
		opts.Name = solver.Var(OutputVar) + LogSuffix
	}
	if opts.Name == "" {
		return nil, &ConfigError{
			Section: "Log", Subsection: sub, Variable: "name",
			Msg: "log file name not set and calculator has no output prefix",
		}
	}
	return opts, nil
}

func hasSection(hs []header, sect string) bool {
	for _, h := range hs {
		if strings.EqualFold(h.sect, sect) {
			return true
		}
	}
	return false
}

// checkUnique returns an error if the section sect has more than one header.
func checkUnique(hs []header, sect string) error {
	var first *header
	for i := range hs {
		if !strings.EqualFold(hs[i].sect, sect) {
			continue
		}
		if first != nil {
			return &ConfigError{
				Section: sect, Subsection: hs[i].sub,
				Msg: fmt.Sprintf(
					"%s: there can be only one %s section, first given at %s",
					hs[i].pos, sect, first.pos,
				),
			}
		}
		first = &hs[i]
	}
	return nil
}

// header is a section header in the order it appears in the source.
type header struct {
	sect, sub string
	pos       token.Position
}

// sectionHeaders lists the section headers of src. gcfg collects
// subsections into maps, so this is the only record of their order.
func sectionHeaders(src []byte, name string) ([]header, error) {
	fset := token.NewFileSet()
	file := fset.AddFile(name, fset.Base(), len(src))
	var errs scanner.ErrorList
	s := scanner.Scanner{}
	s.Init(file, src, func(p token.Position, m string) { errs.Add(p, m) }, 0)

	hs := []header{}
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok != token.LBRACK {
			continue
		}

		h := header{pos: fset.Position(pos)}
		_, tok, lit = s.Scan()
		if tok != token.IDENT {
			continue
		}
		h.sect = lit
		_, tok, lit = s.Scan()
		if tok == token.STRING {
			h.sub = unquote(lit)
		}
		hs = append(hs, h)
	}
	if errs.Len() > 0 {
		return nil, errs.Err()
	}
	return hs, nil
}

// unquote removes the quotes and escapes of a subsection name.
func unquote(s string) string {
	out := make([]rune, 0, len(s))
	esc := false
	for _, c := range s {
		switch {
		case esc:
			out = append(out, c)
			esc = false
		case c == '\\':
			esc = true
		case c != '"':
			out = append(out, c)
		}
	}
	return string(out)
}

// ExampleConfig is a commented configuration which uses every variable.
const ExampleConfig = `[SimplePart]
# Timestep. Defaults to the calculator's timestep.
dt = 0.001
# Uniform acceleration of every free particle with mass, multiplied by
# cos(2 pi afreq t).
ax = 0
ay = -9.81
az = 0
afreq = 0

# One section per particle. The order of the sections sets the particle
# numbers used in the log.
[Particle "ball"]
# Required: radius.
r = 0.25
# Optional: position, reference velocity and angular velocity, mass (0 holds
# the particle in place once it is free), logging and ease-in time.
x = 1.0
y = 2.0
z = 0.5
vx = 0.1
vy = 0
vz = 0
omega-x = 0
omega-y = 0
omega-z = 2
m = 1.5
log = true
ease-in = 0.1

# Setting a period makes that axis periodic.
[Periodic]
period-x = 10
p-x = 0

# Remove this section to turn off logging. The name defaults to the
# calculator's output prefix followed by _SP_Log.csv.
[Log]
name = trajectory.csv
Iterations = 10
average = true
rotation = true
`
