package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"strings"

	plt "github.com/phil-mansfield/pyplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/phil-mansfield/simplepart/io"
)

type group struct {
	prefix, label string
}

var (
	groups = map[string]group{
		"x": {io.PositionPrefix, "Position"},
		"v": {io.VelocityPrefix, "Velocity"},
		"f": {io.ForcePrefix, "Force"},
		"o": {io.OmegaPrefix, "Angular velocity"},
		"t": {io.TorquePrefix, "Torque"},
	}
	axisNames  = []string{"x", "y", "z"}
	pltColors  = []string{"r", "g", "b"}
	plotColors = []color.Color{
		color.RGBA{R: 200, A: 255},
		color.RGBA{G: 150, A: 255},
		color.RGBA{B: 200, A: 255},
	}
)

func main() {
	var (
		logFile, quantity, out, backend string
		particle                        int
	)

	flag.StringVar(&logFile, "Log", "", "Trajectory log to plot.")
	flag.IntVar(&particle, "Particle", 0, "Number of the particle to plot.")
	flag.StringVar(
		&quantity, "Quantity", "x",
		"Column group to plot: 'x', 'v', 'f', 'o' or 't'.",
	)
	flag.StringVar(&out, "Out", "", "Output image. Defaults to the log name "+
		"with the particle and quantity appended.")
	flag.StringVar(
		&backend, "Backend", "gonum",
		"'gonum' renders the image directly, 'pyplot' runs matplotlib.",
	)
	flag.Parse()

	if logFile == "" {
		if flag.NArg() != 1 {
			log.Fatal("Must supply a trajectory log.")
		}
		logFile = flag.Arg(0)
	}
	g, ok := groups[quantity]
	if !ok {
		log.Fatalf("Unknown quantity '%s'.", quantity)
	}
	if out == "" {
		out = fmt.Sprintf("%s_p%d_%s.png",
			strings.TrimSuffix(logFile, ".csv"), particle, quantity)
	}

	traj, err := io.ReadLog(logFile)
	if err != nil {
		log.Fatal(err.Error())
	}
	ts, xs, err := traj.Series(particle, g.prefix)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch backend {
	case "gonum":
		err = gonumPlot(ts, xs, particle, g, out)
	case "pyplot":
		pyPlot(ts, xs, particle, g, out)
	default:
		log.Fatalf("Unknown backend '%s'.", backend)
	}
	if err != nil {
		log.Fatal(err.Error())
	}
}

func pyPlot(ts []float64, xs [3][]float64, particle int, g group, out string) {
	plt.Figure(plt.FigSize(8, 6))
	for j := range xs {
		plt.Plot(ts, xs[j], plt.C(pltColors[j]), plt.LW(2))
	}
	plt.XLabel(`$t$`, plt.FontSize(16))
	plt.YLabel(fmt.Sprintf("%s of particle %d", g.label, particle),
		plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(out)
	plt.Execute()
}

func gonumPlot(ts []float64, xs [3][]float64, particle int, g group, out string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s of particle %d", g.label, particle)
	p.X.Label.Text = "t"
	p.Y.Label.Text = g.label
	p.Add(plotter.NewGrid())

	for j := range xs {
		pts := make(plotter.XYs, len(ts))
		for i := range ts {
			pts[i].X, pts[i].Y = ts[i], xs[j][i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotColors[j]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(axisNames[j], line)
	}

	return p.Save(8*vg.Inch, 6*vg.Inch, out)
}
