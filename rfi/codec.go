package rfi

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/multiformats/go-varint"

	"github.com/phil-mansfield/simplepart/geom"
)

// Every frame on the wire is a uvarint payload length followed by the
// payload. The first payload byte is one of the msg* constants.
const (
	msgHello byte = iota + 1
	msgWelcome
	msgStatus
	msgSizes
	msgParticles
	msgForces
	msgBye
)

const (
	maxFrameLen = 1 << 30
	// particleRecordSize is the wire size of a ParticleRecord without
	// rotation: R, Pos and Vel.
	particleRecordSize = 56
	maxRecords         = maxFrameLen / particleRecordSize
)

var end = binary.LittleEndian

var msgNames = map[byte]string{
	msgHello:     "hello",
	msgWelcome:   "welcome",
	msgStatus:    "status",
	msgSizes:     "sizes",
	msgParticles: "particles",
	msgForces:    "forces",
	msgBye:       "bye",
}

func msgName(typ byte) string {
	if name, ok := msgNames[typ]; ok {
		return name
	}
	return "unknown"
}

type hello struct {
	Name, RunID string
}

type status struct {
	Active bool
	Boxes  []geom.Box
}

////////////
// Writer //
////////////

type encoder struct {
	buf []byte
}

func (e *encoder) reset(typ byte) {
	e.buf = append(e.buf[:0], typ)
}

func (e *encoder) uvarint(x uint64) {
	e.buf = append(e.buf, varint.ToUvarint(x)...)
}

func (e *encoder) float(x float64) {
	var b [8]byte
	end.PutUint64(b[:], math.Float64bits(x))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) vec(v *geom.Vec) {
	e.float(v[0])
	e.float(v[1])
	e.float(v[2])
}

func (e *encoder) bool(b bool) {
	if b {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

func (e *encoder) string(s string) {
	e.uvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) hello(h *hello) {
	e.reset(msgHello)
	e.string(h.Name)
	e.string(h.RunID)
}

func (e *encoder) welcome(w *Welcome) {
	e.reset(msgWelcome)
	e.uvarint(uint64(w.Workers))
	e.bool(w.Rot)
	e.float(w.Timestep)

	// Sorted so that identical welcomes encode identically.
	keys := make([]string, 0, len(w.Vars))
	for k := range w.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.uvarint(uint64(len(keys)))
	for _, k := range keys {
		e.string(k)
		e.string(w.Vars[k])
	}
}

func (e *encoder) status(s *status) {
	e.reset(msgStatus)
	e.bool(s.Active)
	e.uvarint(uint64(len(s.Boxes)))
	for i := range s.Boxes {
		e.bool(s.Boxes[i].Declared)
		e.vec(&s.Boxes[i].Lower)
		e.vec(&s.Boxes[i].Upper)
	}
}

func (e *encoder) sizes(sizes []int) {
	e.reset(msgSizes)
	e.uvarint(uint64(len(sizes)))
	for _, n := range sizes {
		e.uvarint(uint64(n))
	}
}

func (e *encoder) particles(parts [][]ParticleRecord, rot bool) {
	e.reset(msgParticles)
	e.uvarint(uint64(len(parts)))
	for _, ps := range parts {
		e.uvarint(uint64(len(ps)))
		for i := range ps {
			e.float(ps[i].R)
			e.vec(&ps[i].Pos)
			e.vec(&ps[i].Vel)
			if rot {
				e.vec(&ps[i].Omega)
			}
		}
	}
}

func (e *encoder) forces(forces [][]ForceRecord, rot bool) {
	e.reset(msgForces)
	e.uvarint(uint64(len(forces)))
	for _, fs := range forces {
		e.uvarint(uint64(len(fs)))
		for i := range fs {
			e.vec(&fs[i].Force)
			if rot {
				e.vec(&fs[i].Moment)
			}
		}
	}
}

func (e *encoder) bye() {
	e.reset(msgBye)
}

// writeTo writes the current message as a single frame.
func (e *encoder) writeTo(w *bufio.Writer) error {
	if _, err := w.Write(varint.ToUvarint(uint64(len(e.buf)))); err != nil {
		return err
	}
	if _, err := w.Write(e.buf); err != nil {
		return err
	}
	return w.Flush()
}

////////////
// Reader //
////////////

// decoder reads a single frame. The first error sticks: once set, every
// later read returns a zero value and err() reports the original problem.
type decoder struct {
	buf []byte
	off int
	typ byte
	op  string
	e   error
}

// readFrame reads the next frame from r into d.
func (d *decoder) readFrame(r *bufio.Reader) error {
	n, err := varint.ReadUvarint(r)
	if err != nil {
		return err
	}
	if n == 0 || n > maxFrameLen {
		return protocolErrorf("read", "invalid frame length %d", n)
	}

	if uint64(cap(d.buf)) < n {
		d.buf = make([]byte, n)
	}
	d.buf = d.buf[:n]
	if _, err := io.ReadFull(r, d.buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}

	d.typ, d.off, d.e = d.buf[0], 1, nil
	d.op = msgName(d.typ)
	return nil
}

// expect checks the type of the frame that was just read.
func (d *decoder) expect(typ byte) error {
	if d.typ != typ {
		return protocolErrorf(msgName(typ), "expected %s message, got %s",
			msgName(typ), msgName(d.typ))
	}
	return nil
}

func (d *decoder) fail(format string, args ...interface{}) {
	if d.e == nil {
		d.e = protocolErrorf(d.op, format, args...)
	}
}

func (d *decoder) err() error {
	if d.e == nil && d.off != len(d.buf) {
		d.fail("%d trailing bytes", len(d.buf)-d.off)
	}
	return d.e
}

func (d *decoder) uvarint() uint64 {
	if d.e != nil {
		return 0
	}
	x, n, err := varint.FromUvarint(d.buf[d.off:])
	if err != nil {
		d.fail("bad uvarint: %s", err.Error())
		return 0
	}
	d.off += n
	return x
}

// count reads a length which must be coverable by the rest of the frame
// with records of at least minSize bytes each.
func (d *decoder) count(minSize int) int {
	n := d.uvarint()
	if d.e == nil && n > uint64(len(d.buf)-d.off)/uint64(minSize) {
		d.fail("count %d overruns frame", n)
		return 0
	}
	return int(n)
}

func (d *decoder) float() float64 {
	if d.e != nil {
		return 0
	}
	if len(d.buf)-d.off < 8 {
		d.fail("truncated float")
		return 0
	}
	x := math.Float64frombits(end.Uint64(d.buf[d.off:]))
	d.off += 8
	return x
}

func (d *decoder) vec(v *geom.Vec) {
	v[0], v[1], v[2] = d.float(), d.float(), d.float()
}

func (d *decoder) bool() bool {
	if d.e != nil {
		return false
	}
	if d.off >= len(d.buf) {
		d.fail("truncated bool")
		return false
	}
	b := d.buf[d.off]
	d.off++
	return b != 0
}

func (d *decoder) string() string {
	n := d.count(1)
	if d.e != nil {
		return ""
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s
}

func (d *decoder) hello(h *hello) error {
	h.Name = d.string()
	h.RunID = d.string()
	return d.err()
}

func (d *decoder) welcome(w *Welcome) error {
	w.Workers = int(d.uvarint())
	w.Rot = d.bool()
	w.Timestep = d.float()
	n := d.count(2)
	w.Vars = make(map[string]string, n)
	for i := 0; i < n && d.e == nil; i++ {
		k := d.string()
		w.Vars[k] = d.string()
	}
	return d.err()
}

func (d *decoder) status(s *status) error {
	s.Active = d.bool()
	n := d.count(49)
	s.Boxes = s.Boxes[:0]
	for i := 0; i < n && d.e == nil; i++ {
		var b geom.Box
		b.Declared = d.bool()
		d.vec(&b.Lower)
		d.vec(&b.Upper)
		s.Boxes = append(s.Boxes, b)
	}
	return d.err()
}

func (d *decoder) sizes(sizes []int) ([]int, error) {
	n := d.count(1)
	sizes = sizes[:0]
	total := uint64(0)
	for i := 0; i < n && d.e == nil; i++ {
		x := d.uvarint()
		total += x
		if d.e == nil && (x > maxRecords || total > maxRecords) {
			d.fail("size %d for worker %d exceeds %d records", x, i, maxRecords)
		}
		sizes = append(sizes, int(x))
	}
	return sizes, d.err()
}

// particles decodes into parts, which must already be sized to the counts
// the sender announced.
func (d *decoder) particles(parts [][]ParticleRecord, rot bool) error {
	recSize := particleRecordSize
	if rot {
		recSize += 24
	}
	if n := d.count(1); d.e == nil && n != len(parts) {
		d.fail("%d workers, expected %d", n, len(parts))
	}
	for w := 0; w < len(parts) && d.e == nil; w++ {
		ps := parts[w]
		if n := d.count(recSize); d.e == nil && n != len(ps) {
			d.fail("%d records for worker %d, expected %d", n, w, len(ps))
		}
		for i := 0; i < len(ps) && d.e == nil; i++ {
			ps[i].R = d.float()
			d.vec(&ps[i].Pos)
			d.vec(&ps[i].Vel)
			if rot {
				d.vec(&ps[i].Omega)
			} else {
				ps[i].Omega.Zero()
			}
		}
	}
	return d.err()
}

// forces decodes into forces, which must already be sized to the counts the
// particle side announced.
func (d *decoder) forces(forces [][]ForceRecord, rot bool) error {
	recSize := 24
	if rot {
		recSize += 24
	}
	if n := d.count(1); d.e == nil && n != len(forces) {
		d.fail("%d workers, expected %d", n, len(forces))
	}
	for w := 0; w < len(forces) && d.e == nil; w++ {
		fs := forces[w]
		if n := d.count(recSize); d.e == nil && n != len(fs) {
			d.fail("%d records for worker %d, expected %d", n, w, len(fs))
		}
		for i := 0; i < len(fs) && d.e == nil; i++ {
			d.vec(&fs[i].Force)
			if rot {
				d.vec(&fs[i].Moment)
			} else {
				fs[i].Moment.Zero()
			}
		}
	}
	return d.err()
}
