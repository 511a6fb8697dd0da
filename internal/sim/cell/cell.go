package cell

// Flags is the per-cell state bitset.
type Flags uint8

const (
	FlagSolid Flags = 1 << iota
	FlagLiquid
	FlagBurning
	FlagElectric
	// FlagUpdated marks a cell that moved during the current physics pass.
	FlagUpdated
)

const (
	biomeMask     = 0x00ff
	elevationMask = 0x7f00
	hydratedBit   = 0x8000

	MaxElevation = 0x7f

	// RoomTemperature is the aux value for freshly placed inert cells.
	RoomTemperature = 20
)

// Cell is one grid element. It packs into 8 bytes; buffers of cells are
// handed to workers and persistence as-is.
//
// Aux is the temperature for inert materials and the growth stage for living
// ones (grass). Data holds the biome id in its low byte and elevation plus
// the hydrated bit in its high byte.
type Cell struct {
	Material uint16
	Flags    Flags
	Aux      uint8
	VelX     int8
	VelY     int8
	Data     uint16
}

// Empty is the air cell. It equals the zero value.
var Empty = Cell{}

func New(material uint16) Cell {
	return Cell{Material: material, Aux: RoomTemperature}
}

func (c Cell) IsEmpty() bool   { return c.Material == 0 }
func (c Cell) IsSolid() bool   { return c.Flags&FlagSolid != 0 }
func (c Cell) IsLiquid() bool  { return c.Flags&FlagLiquid != 0 }
func (c Cell) IsBurning() bool { return c.Flags&FlagBurning != 0 }
func (c Cell) Has(f Flags) bool {
	return c.Flags&f == f
}

func (c Cell) With(f Flags) Cell {
	c.Flags |= f
	return c
}

func (c Cell) Without(f Flags) Cell {
	c.Flags &^= f
	return c
}

func (c Cell) Temperature() uint8 { return c.Aux }
func (c Cell) Growth() uint8      { return c.Aux }

func (c Cell) WithGrowth(g uint8) Cell {
	c.Aux = g
	return c
}

func (c Cell) Biome() uint8 { return uint8(c.Data & biomeMask) }

func (c Cell) WithBiome(b uint8) Cell {
	c.Data = c.Data&^biomeMask | uint16(b)
	return c
}

func (c Cell) Elevation() uint8 { return uint8((c.Data & elevationMask) >> 8) }

// WithElevation stores e, clamped to MaxElevation.
func (c Cell) WithElevation(e uint8) Cell {
	if e > MaxElevation {
		e = MaxElevation
	}
	c.Data = c.Data&^elevationMask | uint16(e)<<8
	return c
}

func (c Cell) Hydrated() bool { return c.Data&hydratedBit != 0 }

func (c Cell) WithHydrated(v bool) Cell {
	if v {
		c.Data |= hydratedBit
	} else {
		c.Data &^= hydratedBit
	}
	return c
}
