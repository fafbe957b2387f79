package rfi

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/simplepart/geom"
)

func frame(t *testing.T, enc *encoder) *bufio.Reader {
	out := &bytes.Buffer{}
	w := bufio.NewWriter(out)
	require.NoError(t, enc.writeTo(w))
	return bufio.NewReader(out)
}

func TestWelcomeFrame(t *testing.T) {
	enc := encoder{}
	enc.welcome(&Welcome{
		Workers: 3, Rot: true, Timestep: 1e-3,
		Vars: map[string]string{"output": "out/run", "content": ""},
	})

	dec := decoder{}
	require.NoError(t, dec.readFrame(frame(t, &enc)))
	require.NoError(t, dec.expect(msgWelcome))

	w := Welcome{}
	require.NoError(t, dec.welcome(&w))
	assert.Equal(t, 3, w.Workers)
	assert.True(t, w.Rot)
	assert.Equal(t, 1e-3, w.Timestep)
	assert.Equal(t, map[string]string{"output": "out/run", "content": ""}, w.Vars)
}

func TestStatusFrame(t *testing.T) {
	in := status{Active: true, Boxes: []geom.Box{
		{},
		{Declared: true, Lower: geom.Vec{-1, 0, 0.5}, Upper: geom.Vec{1, 2, 3}},
	}}
	enc := encoder{}
	enc.status(&in)

	dec := decoder{}
	require.NoError(t, dec.readFrame(frame(t, &enc)))
	assert.Error(t, dec.expect(msgForces))

	out := status{}
	require.NoError(t, dec.status(&out))
	assert.Equal(t, in, out)
}

func TestParticlesFrameCountMismatch(t *testing.T) {
	enc := encoder{}
	enc.particles([][]ParticleRecord{make([]ParticleRecord, 2)}, false)

	dec := decoder{}
	require.NoError(t, dec.readFrame(frame(t, &enc)))
	err := dec.particles([][]ParticleRecord{make([]ParticleRecord, 3)}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 3")
}

func TestTruncatedFrame(t *testing.T) {
	enc := encoder{}
	enc.forces([][]ForceRecord{make([]ForceRecord, 1)}, false)
	// Drop the last float of the record but keep the length prefix honest.
	enc.buf = enc.buf[:len(enc.buf)-8]

	dec := decoder{}
	require.NoError(t, dec.readFrame(frame(t, &enc)))
	err := dec.forces([][]ForceRecord{make([]ForceRecord, 1)}, false)
	require.Error(t, err)
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)
}

func TestTrailingBytes(t *testing.T) {
	enc := encoder{}
	enc.bye()
	enc.buf = append(enc.buf, 0xff)

	dec := decoder{}
	require.NoError(t, dec.readFrame(frame(t, &enc)))
	assert.Error(t, dec.err())
}

func TestEmptyFrame(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(varint.ToUvarint(0)))
	dec := decoder{}
	assert.Error(t, dec.readFrame(r))
}

func TestSizesFrameBounds(t *testing.T) {
	enc := encoder{}
	enc.sizes([]int{3, 0, 7})
	dec := decoder{}
	require.NoError(t, dec.readFrame(frame(t, &enc)))
	sizes, err := dec.sizes(nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0, 7}, sizes)

	enc.sizes([]int{1, maxRecords + 1})
	require.NoError(t, dec.readFrame(frame(t, &enc)))
	_, err = dec.sizes(nil)
	require.Error(t, err)
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)

	enc.sizes([]int{maxRecords, maxRecords})
	require.NoError(t, dec.readFrame(frame(t, &enc)))
	_, err = dec.sizes(nil)
	assert.Error(t, err)
}
