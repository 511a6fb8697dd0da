package cell

import "fmt"

// MaxMaterials bounds the material table.
const MaxMaterials = 1024

// Built-in material ids. Catalogs may add more after GoldOre.
const (
	Air uint16 = iota
	Dirt
	Stone
	Grass
	Water
	Sand
	Lava
	Sandstone
	Clay
	Gravel
	Snow
	CoalOre
	IronOre
	CopperOre
	GoldOre
)

type MaterialFlags uint8

const (
	MaterialSolid MaterialFlags = 1 << iota
	MaterialLiquid
)

// Properties is the static physical record of a material.
type Properties struct {
	Density      uint16
	Friction     uint8
	Flammability uint8
	Conductivity uint8
	Hardness     uint8
	Flags        MaterialFlags
	Reserved     uint8
}

func (p Properties) Solid() bool  { return p.Flags&MaterialSolid != 0 }
func (p Properties) Liquid() bool { return p.Flags&MaterialLiquid != 0 }

// Material is one table row as supplied by a catalog.
type Material struct {
	ID    uint16
	Name  string
	Props Properties
}

// Materials is the immutable material table shared by all workers.
type Materials struct {
	props  []Properties
	names  []string
	byName map[string]uint16
}

// NewMaterials builds a table. Ids must be unique and below MaxMaterials;
// gaps read as zero properties.
func NewMaterials(defs []Material) (*Materials, error) {
	maxID := -1
	for _, d := range defs {
		if int(d.ID) >= MaxMaterials {
			return nil, fmt.Errorf("material %q: id %d exceeds max %d", d.Name, d.ID, MaxMaterials-1)
		}
		if int(d.ID) > maxID {
			maxID = int(d.ID)
		}
	}
	m := &Materials{
		props:  make([]Properties, maxID+1),
		names:  make([]string, maxID+1),
		byName: make(map[string]uint16, len(defs)),
	}
	seen := make([]bool, maxID+1)
	for _, d := range defs {
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate material id %d", d.ID)
		}
		if d.Name == "" {
			return nil, fmt.Errorf("material id %d: empty name", d.ID)
		}
		if _, dup := m.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate material name %q", d.Name)
		}
		seen[d.ID] = true
		m.props[d.ID] = d.Props
		m.names[d.ID] = d.Name
		m.byName[d.Name] = d.ID
	}
	return m, nil
}

// Get returns the properties of id, or the zero record when id is unknown.
func (m *Materials) Get(id uint16) Properties {
	if m == nil || int(id) >= len(m.props) {
		return Properties{}
	}
	return m.props[id]
}

func (m *Materials) Len() int {
	if m == nil {
		return 0
	}
	return len(m.props)
}

func (m *Materials) Name(id uint16) string {
	if m == nil || int(id) >= len(m.names) {
		return ""
	}
	return m.names[id]
}

func (m *Materials) ID(name string) (uint16, bool) {
	if m == nil {
		return 0, false
	}
	id, ok := m.byName[name]
	return id, ok
}

// Cell returns a fresh cell of material id with its solid/liquid flags set
// from the table.
func (m *Materials) Cell(id uint16) Cell {
	if id == Air {
		return Empty
	}
	c := New(id)
	p := m.Get(id)
	if p.Solid() {
		c.Flags |= FlagSolid
	}
	if p.Liquid() {
		c.Flags |= FlagLiquid
	}
	return c
}

// DefaultMaterials returns the built-in table.
func DefaultMaterials() *Materials {
	m, err := NewMaterials(defaultDefs)
	if err != nil {
		panic(err)
	}
	return m
}

var defaultDefs = []Material{
	{ID: Air, Name: "AIR"},
	{ID: Dirt, Name: "DIRT", Props: Properties{Density: 1500, Friction: 180, Hardness: 40, Flags: MaterialSolid}},
	{ID: Stone, Name: "STONE", Props: Properties{Density: 2600, Friction: 220, Conductivity: 30, Hardness: 200, Flags: MaterialSolid}},
	{ID: Grass, Name: "GRASS", Props: Properties{Density: 1400, Friction: 170, Flammability: 120, Hardness: 30, Flags: MaterialSolid}},
	{ID: Water, Name: "WATER", Props: Properties{Density: 1000, Friction: 5, Conductivity: 60, Flags: MaterialLiquid}},
	{ID: Sand, Name: "SAND", Props: Properties{Density: 1600, Friction: 120, Hardness: 10}},
	{ID: Lava, Name: "LAVA", Props: Properties{Density: 3100, Friction: 80, Conductivity: 200, Flags: MaterialLiquid}},
	{ID: Sandstone, Name: "SANDSTONE", Props: Properties{Density: 2300, Friction: 200, Hardness: 120, Flags: MaterialSolid}},
	{ID: Clay, Name: "CLAY", Props: Properties{Density: 1800, Friction: 200, Hardness: 60, Flags: MaterialSolid}},
	{ID: Gravel, Name: "GRAVEL", Props: Properties{Density: 1900, Friction: 150, Hardness: 20}},
	{ID: Snow, Name: "SNOW", Props: Properties{Density: 300, Friction: 40, Hardness: 5}},
	{ID: CoalOre, Name: "COAL_ORE", Props: Properties{Density: 2700, Friction: 220, Flammability: 200, Hardness: 210, Flags: MaterialSolid}},
	{ID: IronOre, Name: "IRON_ORE", Props: Properties{Density: 3500, Friction: 220, Conductivity: 120, Hardness: 230, Flags: MaterialSolid}},
	{ID: CopperOre, Name: "COPPER_ORE", Props: Properties{Density: 3300, Friction: 220, Conductivity: 220, Hardness: 220, Flags: MaterialSolid}},
	{ID: GoldOre, Name: "GOLD_ORE", Props: Properties{Density: 4200, Friction: 220, Conductivity: 180, Hardness: 180, Flags: MaterialSolid}},
}
