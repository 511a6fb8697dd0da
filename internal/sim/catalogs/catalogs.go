package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"sandcraft.ai/internal/sim/cell"
)

//go:embed materials.schema.json
var materialsSchemaJSON string

type Catalog struct {
	Materials *cell.Materials
	Defs      []MaterialDef
	Digest    string
	// Raw is the file the catalog was parsed from.
	Raw []byte
}

type MaterialDef struct {
	ID           uint16 `json:"id"`
	Name         string `json:"name"`
	Density      uint16 `json:"density"`
	Friction     uint8  `json:"friction"`
	Flammability uint8  `json:"flammability"`
	Conductivity uint8  `json:"conductivity"`
	Hardness     uint8  `json:"hardness"`
	Solid        bool   `json:"solid"`
	Liquid       bool   `json:"liquid"`
}

type materialsFile struct {
	Materials []MaterialDef `json:"materials"`
}

func Load(configDir string) (*Catalog, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, "materials.json"))
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	schema, err := jsonschema.CompileString("materials.schema.json", materialsSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("materials.schema.json: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("materials.json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("materials.json: %w", err)
	}

	var f materialsFile
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("materials.json: %w", err)
	}

	// The engine writes water, grass and dirt by id, so built-in names stay
	// pinned to their ids and those ids are not reusable.
	builtins := cell.DefaultMaterials()
	hasAir := false
	defs := make([]cell.Material, 0, len(f.Materials))
	for _, d := range f.Materials {
		if id, ok := builtins.ID(d.Name); ok && id != d.ID {
			return nil, fmt.Errorf("materials.json: %s must have id %d, got %d", d.Name, id, d.ID)
		}
		if d.ID <= cell.GoldOre && builtins.Name(d.ID) != d.Name {
			return nil, fmt.Errorf("materials.json: id %d is reserved for %s, got %s", d.ID, builtins.Name(d.ID), d.Name)
		}
		if d.ID == cell.Air {
			hasAir = true
		}
		if d.Solid && d.Liquid {
			return nil, fmt.Errorf("materials.json: %s is both solid and liquid", d.Name)
		}
		var flags cell.MaterialFlags
		if d.Solid {
			flags |= cell.MaterialSolid
		}
		if d.Liquid {
			flags |= cell.MaterialLiquid
		}
		defs = append(defs, cell.Material{
			ID:   d.ID,
			Name: d.Name,
			Props: cell.Properties{
				Density:      d.Density,
				Friction:     d.Friction,
				Flammability: d.Flammability,
				Conductivity: d.Conductivity,
				Hardness:     d.Hardness,
				Flags:        flags,
			},
		})
	}
	if !hasAir {
		return nil, fmt.Errorf("materials.json: missing AIR")
	}
	mats, err := cell.NewMaterials(defs)
	if err != nil {
		return nil, fmt.Errorf("materials.json: %w", err)
	}
	return &Catalog{Materials: mats, Defs: f.Materials, Digest: sha256Hex(raw), Raw: raw}, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
