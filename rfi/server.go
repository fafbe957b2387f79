package rfi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/phil-mansfield/simplepart/geom"
)

// Solver is the calculator side of the protocol.
type Solver interface {
	// Boxes returns the worker boxes for iteration iter. ok is false once
	// the calculation is over.
	Boxes(iter int) (boxes []geom.Box, ok bool)
	// Force computes the load on one particle image held by a worker.
	Force(iter, worker int, p *ParticleRecord, f *ForceRecord)
}

// Server drives a single client through the iteration handshake on behalf
// of a Solver. It exists so that the particle side can be exercised without
// the real calculator.
type Server struct {
	Welcome Welcome
	Solver  Solver
	Logger  *zap.Logger
}

// ListenAndServe accepts exactly one client on addr and serves it.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger().Info("waiting for particle client", zap.String("addr", ln.Addr().String()))

	conn, err := ln.Accept()
	if err != nil {
		return multierr.Append(err, ln.Close())
	}
	return multierr.Combine(s.Serve(conn), ln.Close())
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Serve runs the protocol over conn until the solver finishes or the client
// leaves. conn is closed on return.
func (s *Server) Serve(conn io.ReadWriteCloser) (err error) {
	defer func() { err = multierr.Append(err, conn.Close()) }()

	var (
		r   = bufio.NewReader(conn)
		w   = bufio.NewWriter(conn)
		enc encoder
		dec decoder
		buf buffers
		st  status
		log = s.logger()
	)

	if err := dec.readFrame(r); err != nil {
		return fmt.Errorf("rfi: hello: %w", err)
	}
	if err := dec.expect(msgHello); err != nil {
		return err
	}
	var h hello
	if err := dec.hello(&h); err != nil {
		return err
	}
	log = log.With(zap.String("client", h.Name), zap.String("run", h.RunID))
	log.Info("particle client connected")

	enc.welcome(&s.Welcome)
	if err := enc.writeTo(w); err != nil {
		return err
	}

	for iter := 0; ; iter++ {
		boxes, ok := s.Solver.Boxes(iter)
		st.Active, st.Boxes = ok, boxes
		enc.status(&st)
		if err := enc.writeTo(w); err != nil {
			return err
		}
		if !ok {
			log.Info("calculation finished", zap.Int("iterations", iter))
			return s.awaitBye(r, &dec)
		}

		if err := dec.readFrame(r); err != nil {
			return fmt.Errorf("rfi: sizes: %w", err)
		}
		if dec.typ == msgBye {
			log.Info("particle client left early", zap.Int("iteration", iter))
			return nil
		}
		if err := dec.expect(msgSizes); err != nil {
			return err
		}
		sizes, err := dec.sizes(nil)
		if err != nil {
			return err
		}
		if len(sizes) != len(boxes) {
			return protocolErrorf("sizes", "%d sizes for %d workers",
				len(sizes), len(boxes))
		}
		buf.reset(len(boxes))
		for i, n := range sizes {
			buf.SetSize(i, n)
		}
		buf.Alloc()

		if err := dec.readFrame(r); err != nil {
			return fmt.Errorf("rfi: particles: %w", err)
		}
		if err := dec.expect(msgParticles); err != nil {
			return err
		}
		if err := dec.particles(buf.parts, s.Welcome.Rot); err != nil {
			return err
		}

		for wi := range buf.parts {
			for i := range buf.parts[wi] {
				f := &buf.forces[wi][i]
				f.Force.Zero()
				f.Moment.Zero()
				s.Solver.Force(iter, wi, &buf.parts[wi][i], f)
			}
		}
		log.Debug("computed forces",
			zap.Int("iteration", iter), zap.Int("images", buf.total()))

		enc.forces(buf.forces, s.Welcome.Rot)
		if err := enc.writeTo(w); err != nil {
			return err
		}
	}
}

func (s *Server) awaitBye(r *bufio.Reader, dec *decoder) error {
	err := dec.readFrame(r)
	if errors.Is(err, io.EOF) {
		return nil
	} else if err != nil {
		return err
	}
	return dec.expect(msgBye)
}
