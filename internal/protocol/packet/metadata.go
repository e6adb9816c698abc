package packet

import "fmt"

// Entity metadata is a list of (index, typed value) pairs. Each entry starts
// with a key byte: the type in the top three bits, the index in the low five.
// The list ends with 0x7F.

const metadataEnd = 0x7F

// Metadata value types carried on the wire.
const (
	MetaByte   = 0
	MetaShort  = 1
	MetaInt    = 2
	MetaFloat  = 3
	MetaString = 4
	MetaSlot   = 5
	MetaVector = 6
)

// Slot is an item stack as found in metadata.
type Slot struct {
	ItemID int16
	Count  int8
	Damage int16
}

// Vector is a triple of ints as found in metadata.
type Vector struct {
	X, Y, Z int32
}

// MetadataEntry holds one value. Value must be int8, int16, int32, float32,
// string, Slot or Vector.
type MetadataEntry struct {
	Index uint8
	Value any
}

type Metadata []MetadataEntry

func (m Metadata) encode(w *fieldWriter) {
	for _, e := range m {
		if e.Index > 0x1F {
			w.fail("metadata", fmt.Errorf("index %d out of range", e.Index))
			return
		}
		switch v := e.Value.(type) {
		case int8:
			w.uint8(MetaByte<<5 | e.Index)
			w.int8(v)
		case int16:
			w.uint8(MetaShort<<5 | e.Index)
			w.int16(v)
		case int32:
			w.uint8(MetaInt<<5 | e.Index)
			w.int32(v)
		case float32:
			if MetaFloat<<5|e.Index == metadataEnd {
				w.fail("metadata", fmt.Errorf("index %d collides with terminator", e.Index))
				return
			}
			w.uint8(MetaFloat<<5 | e.Index)
			w.float32(v)
		case string:
			w.uint8(MetaString<<5 | e.Index)
			w.string("metadata", v)
		case Slot:
			w.uint8(MetaSlot<<5 | e.Index)
			w.int16(v.ItemID)
			w.int8(v.Count)
			w.int16(v.Damage)
		case Vector:
			w.uint8(MetaVector<<5 | e.Index)
			w.int32(v.X)
			w.int32(v.Y)
			w.int32(v.Z)
		default:
			w.fail("metadata", fmt.Errorf("%w: %T", errBadMetadata, e.Value))
			return
		}
	}
	w.uint8(metadataEnd)
}

func (m *Metadata) decode(r *fieldReader) {
	var out Metadata
	for r.err == nil {
		key := r.uint8()
		if r.err != nil || key == metadataEnd {
			break
		}
		e := MetadataEntry{Index: key & 0x1F}
		switch key >> 5 {
		case MetaByte:
			e.Value = r.int8()
		case MetaShort:
			e.Value = r.int16()
		case MetaInt:
			e.Value = r.int32()
		case MetaFloat:
			e.Value = r.float32()
		case MetaString:
			e.Value = r.string("metadata")
		case MetaSlot:
			e.Value = Slot{ItemID: r.int16(), Count: r.int8(), Damage: r.int16()}
		case MetaVector:
			e.Value = Vector{X: r.int32(), Y: r.int32(), Z: r.int32()}
		default:
			r.fail("metadata", fmt.Errorf("%w: %d", errBadMetadata, key>>5))
		}
		out = append(out, e)
	}
	*m = out
}
