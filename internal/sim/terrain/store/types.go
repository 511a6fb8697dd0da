package store

import (
	"crypto/sha256"
	"encoding/binary"

	"sandcraft.ai/internal/sim/cell"
)

type ChunkKey struct {
	CX int
	CY int
}

// Chunk is a Size x Size tile of cells in row-major order.
type Chunk struct {
	CX, CY int
	Size   int
	Cells  []cell.Cell

	scratch  []cell.Cell
	dirty    bool
	modified bool

	hash      [32]byte
	hashValid bool
}

func NewChunk(cx, cy, size int) *Chunk {
	return &Chunk{CX: cx, CY: cy, Size: size, Cells: make([]cell.Cell, size*size)}
}

// NewChunkWithCells adopts cells, which must hold size*size entries.
func NewChunkWithCells(cx, cy, size int, cells []cell.Cell) *Chunk {
	return &Chunk{CX: cx, CY: cy, Size: size, Cells: cells}
}

func (c *Chunk) Key() ChunkKey { return ChunkKey{CX: c.CX, CY: c.CY} }

// Origin returns the world coordinates of the chunk's top-left cell.
func (c *Chunk) Origin() (int, int) {
	return c.CX * c.Size, c.CY * c.Size
}

func (c *Chunk) index(x, y int) int {
	return x + y*c.Size
}

func (c *Chunk) Get(x, y int) cell.Cell {
	return c.Cells[c.index(x, y)]
}

func (c *Chunk) Set(x, y int, v cell.Cell) {
	i := c.index(x, y)
	if c.Cells[i] == v {
		return
	}
	c.Cells[i] = v
	c.MarkDirty()
}

// At returns a pointer into the chunk and marks it dirty.
func (c *Chunk) At(x, y int) *cell.Cell {
	c.MarkDirty()
	return &c.Cells[c.index(x, y)]
}

// Scratch returns the back buffer used by the transition engine.
func (c *Chunk) Scratch() []cell.Cell {
	if len(c.scratch) != len(c.Cells) {
		c.scratch = make([]cell.Cell, len(c.Cells))
	}
	return c.scratch
}

func (c *Chunk) Dirty() bool { return c.dirty }

func (c *Chunk) MarkDirty() {
	c.dirty = true
	c.modified = true
	c.hashValid = false
}

// ClearDirty acknowledges the change for render consumers. The chunk stays
// modified until it is persisted.
func (c *Chunk) ClearDirty() { c.dirty = false }

// Modified reports changes not yet written to an archive.
func (c *Chunk) Modified() bool { return c.modified }

func (c *Chunk) ClearModified() { c.modified = false }

// Digest is the sha256 of the little-endian cell encoding. It is cached until
// the next mutation through the chunk API.
func (c *Chunk) Digest() [32]byte {
	if !c.hashValid {
		h := sha256.New()
		var tmp [8]byte
		for _, v := range c.Cells {
			PutCell(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.hashValid = true
	}
	return c.hash
}

// PutCell writes the 8-byte little-endian encoding of v into b.
func PutCell(b []byte, v cell.Cell) {
	binary.LittleEndian.PutUint16(b[0:2], v.Material)
	b[2] = byte(v.Flags)
	b[3] = v.Aux
	b[4] = byte(v.VelX)
	b[5] = byte(v.VelY)
	binary.LittleEndian.PutUint16(b[6:8], v.Data)
}

func ReadCell(b []byte) cell.Cell {
	return cell.Cell{
		Material: binary.LittleEndian.Uint16(b[0:2]),
		Flags:    cell.Flags(b[2]),
		Aux:      b[3],
		VelX:     int8(b[4]),
		VelY:     int8(b[5]),
		Data:     binary.LittleEndian.Uint16(b[6:8]),
	}
}

const CellBytes = 8

// EncodeCells returns the packed byte form of cells.
func EncodeCells(cells []cell.Cell) []byte {
	out := make([]byte, len(cells)*CellBytes)
	for i, v := range cells {
		PutCell(out[i*CellBytes:], v)
	}
	return out
}

// DecodeCells is the inverse of EncodeCells. want is the expected cell count.
func DecodeCells(b []byte, want int) ([]cell.Cell, error) {
	if len(b) != want*CellBytes {
		return nil, errLength(len(b)/CellBytes, want)
	}
	out := make([]cell.Cell, want)
	for i := range out {
		out[i] = ReadCell(b[i*CellBytes:])
	}
	return out, nil
}

// Store holds the loaded chunks keyed by chunk coordinate. It is owned by
// the simulation loop and not safe for concurrent mutation.
type Store struct {
	size   int
	chunks map[ChunkKey]*Chunk
}

func NewStore(size int) *Store {
	return &Store{size: size, chunks: map[ChunkKey]*Chunk{}}
}

func (s *Store) ChunkSize() int { return s.size }
