package record

import (
	"errors"
	"math"

	"github.com/arlobase/bptreeidx/internal/bx"
)

var (
	ErrSchemaMismatch = errors.New("record: value count does not match schema")
	ErrBadBuffer      = errors.New("record: buffer too short or malformed")
	ErrVarTooLong     = errors.New("record: variable-length field exceeds 65535 bytes")
	ErrUnsupportedType = errors.New("record: unsupported column type")
	ErrNullNotAllowed  = errors.New("record: nil value for non-nullable column")
	ErrOffsetNotFixed  = errors.New("record: column offset is not statically fixed")
	ErrNoSuchColumn    = errors.New("record: no such column")
)

// EncodeRow packs values according to s into a byte slice: a leading
// null-bitmap (ceil(NumCols/8) bytes, bit=1 means NULL), followed by each
// column's encoding in schema order. Fixed-width columns always occupy
// their full width (zero-filled when NULL); variable-length columns are
// prefixed with a uint16 length (0 when NULL).
func EncodeRow(s Schema, values []any) ([]byte, error) {
	if len(values) != s.NumCols() {
		return nil, ErrSchemaMismatch
	}

	bitmap := make([]byte, s.bitmapSize())
	body := make([]byte, 0, 64)

	for i, c := range s.Cols {
		v := values[i]
		if v == nil {
			if !c.Nullable {
				return nil, ErrNullNotAllowed
			}
			bitmap[i/8] |= 1 << uint(i%8)
			if w, fixed := c.Type.FixedWidth(); fixed {
				body = append(body, make([]byte, w)...)
			} else {
				body = append(body, 0, 0)
			}
			continue
		}

		enc, err := encodeValue(c.Type, v)
		if err != nil {
			return nil, err
		}
		if _, fixed := c.Type.FixedWidth(); !fixed {
			if len(enc) > math.MaxUint16 {
				return nil, ErrVarTooLong
			}
			var lenBuf [2]byte
			bx.PutU16(lenBuf[:], uint16(len(enc)))
			body = append(body, lenBuf[:]...)
		}
		body = append(body, enc...)
	}

	out := make([]byte, 0, len(bitmap)+len(body))
	out = append(out, bitmap...)
	out = append(out, body...)
	return out, nil
}

func encodeValue(t ColumnType, v any) ([]byte, error) {
	switch t {
	case ColInt32:
		n, ok := v.(int32)
		if !ok {
			return nil, ErrUnsupportedType
		}
		b := make([]byte, 4)
		bx.PutI32(b, n)
		return b, nil
	case ColInt64:
		n, ok := v.(int64)
		if !ok {
			return nil, ErrUnsupportedType
		}
		b := make([]byte, 8)
		bx.PutI64(b, n)
		return b, nil
	case ColBool:
		n, ok := v.(bool)
		if !ok {
			return nil, ErrUnsupportedType
		}
		if n {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case ColFloat64:
		n, ok := v.(float64)
		if !ok {
			return nil, ErrUnsupportedType
		}
		b := make([]byte, 8)
		bx.PutU64(b, math.Float64bits(n))
		return b, nil
	case ColText:
		s, ok := v.(string)
		if !ok {
			return nil, ErrUnsupportedType
		}
		return []byte(s), nil
	case ColBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, ErrUnsupportedType
		}
		return b, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(s Schema, buf []byte) ([]any, error) {
	bms := s.bitmapSize()
	if len(buf) < bms {
		return nil, ErrBadBuffer
	}
	bitmap := buf[:bms]
	off := bms

	values := make([]any, s.NumCols())
	for i, c := range s.Cols {
		isNull := bitmap[i/8]&(1<<uint(i%8)) != 0

		if w, fixed := c.Type.FixedWidth(); fixed {
			if off+w > len(buf) {
				return nil, ErrBadBuffer
			}
			field := buf[off : off+w]
			off += w
			if isNull {
				values[i] = nil
				continue
			}
			dv, err := decodeValue(c.Type, field)
			if err != nil {
				return nil, err
			}
			values[i] = dv
			continue
		}

		if off+2 > len(buf) {
			return nil, ErrBadBuffer
		}
		n := int(bx.U16At(buf, off))
		off += 2
		if off+n > len(buf) {
			return nil, ErrBadBuffer
		}
		field := buf[off : off+n]
		off += n
		if isNull {
			values[i] = nil
			continue
		}
		dv, err := decodeValue(c.Type, field)
		if err != nil {
			return nil, err
		}
		values[i] = dv
	}
	return values, nil
}

func decodeValue(t ColumnType, b []byte) (any, error) {
	switch t {
	case ColInt32:
		return bx.I32(b), nil
	case ColInt64:
		return bx.I64(b), nil
	case ColBool:
		return b[0] != 0, nil
	case ColFloat64:
		return math.Float64frombits(bx.U64(b)), nil
	case ColText:
		return string(b), nil
	case ColBytes:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	default:
		return nil, ErrUnsupportedType
	}
}
