package record

// ColumnType identifies how a column's bytes are laid out in an encoded row.
type ColumnType int

const (
	ColInt32 ColumnType = iota
	ColInt64
	ColBool
	ColFloat64
	ColText
	ColBytes
)

// FixedWidth returns the column's encoded width in bytes, or (0, false)
// for variable-length types (ColText, ColBytes).
func (t ColumnType) FixedWidth() (int, bool) {
	switch t {
	case ColInt32:
		return 4, true
	case ColInt64:
		return 8, true
	case ColBool:
		return 1, true
	case ColFloat64:
		return 8, true
	default:
		return 0, false
	}
}

type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

type Schema struct {
	Cols []Column
}

func (s Schema) NumCols() int { return len(s.Cols) }

// ByteOffsetOf returns the byte offset, from the start of an encoded row,
// at which column name's value begins. Fixed-width columns always reserve
// their full width even when NULL (the null bitmap only marks validity), so
// the offset is defined as long as name and every column before it is
// fixed-width; it is undefined once a variable-length column (ColText,
// ColBytes) precedes name, since those are packed back-to-back at whatever
// length their value happens to be. internal/bptree requires its key column
// satisfy this, mirroring attrByteOffset in the system this index design
// was distilled from.
func (s Schema) ByteOffsetOf(name string) (int, error) {
	off := s.bitmapSize()
	fixedSoFar := true
	for _, c := range s.Cols {
		w, fixed := c.Type.FixedWidth()
		if c.Name == name {
			if !fixed || !fixedSoFar {
				return 0, ErrOffsetNotFixed
			}
			return off, nil
		}
		if !fixed {
			fixedSoFar = false
		}
		off += w
	}
	return 0, ErrNoSuchColumn
}

func (s Schema) bitmapSize() int {
	return (len(s.Cols) + 7) / 8
}
