// Package encoding packs chunk material layers for observers. Terrain is
// dominated by long horizontal runs, so (material, run) varint pairs are far
// smaller than the raw cell records.
package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"sandcraft.ai/internal/sim/cell"
)

// Materials extracts the material id of every cell.
func Materials(cells []cell.Cell) []uint16 {
	out := make([]uint16, len(cells))
	for i, c := range cells {
		out[i] = c.Material
	}
	return out
}

// AppendRuns appends (id, run) uvarint pairs for ids to dst.
func AppendRuns(dst []byte, ids []uint16) []byte {
	for i := 0; i < len(ids); {
		id := ids[i]
		j := i + 1
		for j < len(ids) && ids[j] == id {
			j++
		}
		dst = binary.AppendUvarint(dst, uint64(id))
		dst = binary.AppendUvarint(dst, uint64(j-i))
		i = j
	}
	return dst
}

// EncodeRLE is base64(AppendRuns(ids)).
func EncodeRLE(ids []uint16) string {
	return base64.StdEncoding.EncodeToString(AppendRuns(nil, ids))
}

// DecodeRLE expands an EncodeRLE string. It fails if the runs do not add
// up to exactly want ids.
func DecodeRLE(s string, want int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, want)
	for i := 0; i < len(raw); {
		id, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if id >= cell.MaxMaterials {
			return nil, fmt.Errorf("material id too large: %d", id)
		}
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("run of %d overflows %d ids", run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(id))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("decoded %d ids, want %d", len(out), want)
	}
	return out, nil
}
