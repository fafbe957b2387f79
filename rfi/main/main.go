package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/phil-mansfield/simplepart/geom"
	"github.com/phil-mansfield/simplepart/rfi"
)

func main() {
	var (
		addr, force, output, content string
		workers, iterations          int
		width, dt, drag              float64
		rot, debug                   bool
	)

	flag.StringVar(&addr, "addr", "", "Listen address. Defaults to "+
		"$SIMPLEPART_SOLVER_ADDR or 127.0.0.1:7711.")
	flag.IntVar(&workers, "workers", 2, "Number of x slabs.")
	flag.IntVar(&iterations, "iterations", 100, "Iterations to run.")
	flag.Float64Var(&width, "width", 10, "Width of the cubic domain.")
	flag.Float64Var(&dt, "dt", 0.01, "Suggested timestep.")
	flag.StringVar(&force, "force", "0,0,0",
		"Uniform force on every particle, as 'fx,fy,fz'.")
	flag.Float64Var(&drag, "drag", 0, "Linear drag coefficient.")
	flag.BoolVar(&rot, "rot", false, "Exchange angular velocities and moments.")
	flag.StringVar(&output, "output", "",
		"Output prefix sent to the client as the 'output' variable.")
	flag.StringVar(&content, "content", "",
		"Configuration file sent to the client as the 'content' variable.")
	flag.BoolVar(&debug, "debug", false, "Log at debug level.")
	flag.Parse()

	logger, err := zap.NewProduction()
	if debug {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal(err.Error())
	}
	defer logger.Sync()

	if addr == "" {
		cfg, err := rfi.ReadConfig()
		if err != nil {
			logger.Fatal("reading environment", zap.Error(err))
		}
		addr = cfg.Addr
	}

	f, err := parseVec(force)
	if err != nil {
		logger.Fatal("bad -force", zap.String("force", force), zap.Error(err))
	}
	if workers < 1 {
		logger.Fatal("-workers must be at least 1", zap.Int("workers", workers))
	}

	vars := map[string]string{}
	if output != "" {
		vars["output"] = output
	}
	if content != "" {
		data, err := os.ReadFile(content)
		if err != nil {
			logger.Fatal("reading content file", zap.Error(err))
		}
		vars["content"] = string(data)
	}

	srv := &rfi.Server{
		Welcome: rfi.Welcome{
			Workers: workers, Rot: rot, Timestep: dt, Vars: vars,
		},
		Solver: &rfi.SlabSolver{
			Workers: workers, Iterations: iterations, Width: width,
			Load: f, Drag: drag,
		},
		Logger: logger,
	}
	if err := srv.ListenAndServe(addr); err != nil {
		logger.Fatal("serving particle client", zap.Error(err))
	}
}

func parseVec(s string) (geom.Vec, error) {
	v := geom.Vec{}
	tok := strings.Split(s, ",")
	if len(tok) != 3 {
		return v, strconv.ErrSyntax
	}
	for i := range tok {
		x, err := strconv.ParseFloat(strings.TrimSpace(tok[i]), 64)
		if err != nil {
			return v, err
		}
		v[i] = x
	}
	return v, nil
}
