// Package content defines the encoded tile payload envelope and its codec.
//
// The envelope is a small fixed header followed by a zstd-compressed mesh
// blob. The mesh bytes are opaque to the selection core; only the primitive
// counts matter to it.
package content

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

var magic = [4]byte{'T', 'S', 'C', '1'}

const (
	flagLeaf       = 1 << 0
	flagHasGraphic = 1 << 1
)

// Graphic is the drawable part of a decoded tile payload.
type Graphic struct {
	Vertices  int
	Triangles int
	Mesh      []byte
}

// TileContent is the result of decoding one tile payload.
//
// A nil Graphic means the tile is genuinely empty at this address. A
// SizeMultiplier greater than the one the content was requested under tells
// the viewer the producer wants this tile refined rather than subdivided.
type TileContent struct {
	IsLeaf         bool
	SizeMultiplier float64
	EmptyChildMask uint8
	Graphic        *Graphic
}

func Encode(c TileContent) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	var flags uint8
	if c.IsLeaf {
		flags |= flagLeaf
	}
	if c.Graphic != nil {
		flags |= flagHasGraphic
	}
	buf.WriteByte(flags)
	buf.WriteByte(c.EmptyChildMask)
	var mult [8]byte
	binary.LittleEndian.PutUint64(mult[:], math.Float64bits(c.SizeMultiplier))
	buf.Write(mult[:])
	if c.Graphic != nil {
		var hdr [12]byte
		binary.LittleEndian.PutUint32(hdr[0:], uint32(c.Graphic.Vertices))
		binary.LittleEndian.PutUint32(hdr[4:], uint32(c.Graphic.Triangles))
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		compressed := enc.EncodeAll(c.Graphic.Mesh, nil)
		_ = enc.Close()
		binary.LittleEndian.PutUint32(hdr[8:], uint32(len(compressed)))
		buf.Write(hdr[:])
		buf.Write(compressed)
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded payload. On any malformation it returns an empty
// leaf result alongside the error, so callers can degrade instead of fail.
func Decode(b []byte) (TileContent, error) {
	degraded := TileContent{IsLeaf: true}
	if len(b) < 14 || !bytes.Equal(b[:4], magic[:]) {
		return degraded, fmt.Errorf("content: bad envelope header")
	}
	flags := b[4]
	c := TileContent{
		IsLeaf:         flags&flagLeaf != 0,
		EmptyChildMask: b[5],
		SizeMultiplier: math.Float64frombits(binary.LittleEndian.Uint64(b[6:14])),
	}
	if c.SizeMultiplier < 0 || math.IsNaN(c.SizeMultiplier) {
		return degraded, fmt.Errorf("content: bad size multiplier")
	}
	rest := b[14:]
	if flags&flagHasGraphic == 0 {
		if len(rest) != 0 {
			return degraded, fmt.Errorf("content: trailing bytes on empty payload")
		}
		return c, nil
	}
	if len(rest) < 12 {
		return degraded, fmt.Errorf("content: truncated graphic header")
	}
	vertices := int(binary.LittleEndian.Uint32(rest[0:]))
	triangles := int(binary.LittleEndian.Uint32(rest[4:]))
	clen := int(binary.LittleEndian.Uint32(rest[8:]))
	rest = rest[12:]
	if len(rest) != clen {
		return degraded, fmt.Errorf("content: graphic length mismatch (%d != %d)", len(rest), clen)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return degraded, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	mesh, err := dec.DecodeAll(rest, nil)
	if err != nil {
		return degraded, fmt.Errorf("content: decompress mesh: %w", err)
	}
	c.Graphic = &Graphic{Vertices: vertices, Triangles: triangles, Mesh: mesh}
	return c, nil
}
