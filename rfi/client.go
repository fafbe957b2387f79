package rfi

import (
	"bufio"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/phil-mansfield/simplepart/geom"
)

// Client is a Transport speaking to a force calculator over a byte stream.
type Client struct {
	buffers

	conn io.ReadWriteCloser
	r    *bufio.Reader
	w    *bufio.Writer
	enc  encoder
	dec  decoder

	welcome Welcome
	st      status
	runID   string
	// started is set once an active status has been read. From then on the
	// worker count comes from the status, even when it lists no boxes.
	started bool
	done    bool
	closed  bool

	logger *zap.Logger
}

var _ Transport = &Client{}

// Dial connects to the calculator at cfg.Addr and performs the handshake.
func Dial(cfg *Config, logger *zap.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", cfg.Addr, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("rfi: could not reach calculator: %w", err)
	}

	c, err := NewClient(conn, cfg.Name, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient performs the handshake over an already established connection.
// The client takes ownership of conn.
func NewClient(conn io.ReadWriteCloser, name string, logger *zap.Logger) (*Client, error) {
	c := &Client{
		conn:   conn,
		r:      bufio.NewReader(conn),
		w:      bufio.NewWriter(conn),
		runID:  uuid.New().String(),
		logger: logger,
	}

	c.enc.hello(&hello{Name: name, RunID: c.runID})
	if err := c.enc.writeTo(c.w); err != nil {
		return nil, fmt.Errorf("rfi: connect: %w", err)
	}

	if err := c.read(msgWelcome); err != nil {
		return nil, fmt.Errorf("rfi: connect: %w", err)
	}
	if err := c.dec.welcome(&c.welcome); err != nil {
		return nil, err
	}

	c.logger.Info("connected to force calculator",
		zap.String("name", name),
		zap.String("run", c.runID),
		zap.Int("workers", c.welcome.Workers),
		zap.Bool("rotation", c.welcome.Rot),
		zap.Float64("timestep", c.welcome.Timestep),
	)
	return c, nil
}

// RunID identifies this connection in the calculator's logs.
func (c *Client) RunID() string { return c.runID }

func (c *Client) read(typ byte) error {
	if err := c.dec.readFrame(c.r); err != nil {
		return err
	}
	return c.dec.expect(typ)
}

func (c *Client) Active() (bool, error) {
	if c.done {
		return false, nil
	}
	if err := c.read(msgStatus); err != nil {
		return false, fmt.Errorf("rfi: status: %w", err)
	}
	if err := c.dec.status(&c.st); err != nil {
		return false, err
	}

	if !c.st.Active {
		c.done = true
		c.logger.Info("force calculator finished")
		return false, nil
	}
	c.started = true
	c.reset(len(c.st.Boxes))
	return true, nil
}

func (c *Client) Workers() int {
	if !c.started {
		return c.welcome.Workers
	}
	return len(c.st.Boxes)
}

func (c *Client) WorkerBox(i int) geom.Box { return c.st.Boxes[i] }
func (c *Client) Rot() bool                { return c.welcome.Rot }
func (c *Client) Timestep() float64        { return c.welcome.Timestep }

func (c *Client) HasVar(name string) bool {
	_, ok := c.welcome.Vars[name]
	return ok
}

func (c *Client) Var(name string) string { return c.welcome.Vars[name] }

func (c *Client) SendSizes() error {
	c.enc.sizes(c.sizes)
	if err := c.enc.writeTo(c.w); err != nil {
		return fmt.Errorf("rfi: sizes: %w", err)
	}
	return nil
}

func (c *Client) SendParticles() error {
	c.enc.particles(c.parts, c.welcome.Rot)
	if err := c.enc.writeTo(c.w); err != nil {
		return fmt.Errorf("rfi: particles: %w", err)
	}
	return nil
}

func (c *Client) SendForces() error {
	if err := c.read(msgForces); err != nil {
		return fmt.Errorf("rfi: forces: %w", err)
	}
	return c.dec.forces(c.forces, c.welcome.Rot)
}

// Close says goodbye to the calculator and closes the connection. It is
// safe to call more than once.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.enc.bye()
	err := c.enc.writeTo(c.w)
	return multierr.Append(err, c.conn.Close())
}
