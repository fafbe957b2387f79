package rfi

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls how the particle program reaches the calculator. It is
// read from the environment so that job scripts can set it next to the
// launcher's own variables.
type Config struct {
	Addr        string        `env:"SIMPLEPART_SOLVER_ADDR" envDefault:"127.0.0.1:7711"`
	Name        string        `env:"SIMPLEPART_NAME" envDefault:"SIMPLEPART"`
	DialTimeout time.Duration `env:"SIMPLEPART_DIAL_TIMEOUT" envDefault:"30s"`
}

// ReadConfig loads a Config from the environment.
func ReadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("rfi: parse environment: %w", err)
	}
	return cfg, nil
}

// rankEnv holds the process counts exported by common MPI launchers and
// batch schedulers.
type rankEnv struct {
	OpenMPI int `env:"OMPI_COMM_WORLD_SIZE"`
	Hydra   int `env:"PMI_SIZE"`
	Slurm   int `env:"SLURM_NTASKS"`
}

// CheckSingleRank returns an error if a launcher started more than one copy
// of this program. The particle side has no decomposition of its own.
func CheckSingleRank() error {
	re := rankEnv{}
	if err := env.Parse(&re); err != nil {
		return fmt.Errorf("rfi: parse launcher environment: %w", err)
	}
	for _, n := range []int{re.OpenMPI, re.Hydra, re.Slurm} {
		if n > 1 {
			return fmt.Errorf(
				"rfi: can only run on a single rank, but launcher started %d", n,
			)
		}
	}
	return nil
}
