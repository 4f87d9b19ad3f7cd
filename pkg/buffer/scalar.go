package buffer

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/arenabuf/pkg/schema"
	"github.com/ssargent/arenabuf/pkg/sortenc"
)

// geo precision by kind: values are stored as scaled signed integers.
var geoScale = map[schema.Kind]float64{
	schema.KindGeo4:  1e2,
	schema.KindGeo8:  1e7,
	schema.KindGeo16: 1e9,
}

// encodeScalar appends the stored form of v, which must already be coerced
// to n's Go type.
func encodeScalar(dst []byte, n *schema.Node, v any) ([]byte, error) {
	switch n.Kind {
	case schema.KindString, schema.KindBytes:
		var payload []byte
		if s, ok := v.(string); ok {
			payload = []byte(s)
		} else {
			payload = v.([]byte)
		}
		if n.Size > 0 {
			return sortenc.AppendFixed(dst, payload, n.Size)
		}
		if uint64(len(payload)) > math.MaxUint32-dataStart {
			return nil, &CapacityError{What: "value length", Limit: math.MaxUint32 - dataStart}
		}
		dst = sortenc.AppendUint32(dst, uint32(len(payload)))
		return append(dst, payload...), nil
	case schema.KindInt8:
		return sortenc.AppendInt8(dst, v.(int8)), nil
	case schema.KindInt16:
		return sortenc.AppendInt16(dst, v.(int16)), nil
	case schema.KindInt32:
		return sortenc.AppendInt32(dst, v.(int32)), nil
	case schema.KindInt64:
		return sortenc.AppendInt64(dst, v.(int64)), nil
	case schema.KindUint8:
		return sortenc.AppendUint8(dst, v.(uint8)), nil
	case schema.KindUint16:
		return sortenc.AppendUint16(dst, v.(uint16)), nil
	case schema.KindUint32:
		return sortenc.AppendUint32(dst, v.(uint32)), nil
	case schema.KindUint64:
		return sortenc.AppendUint64(dst, v.(uint64)), nil
	case schema.KindFloat:
		return sortenc.AppendFloat32(dst, v.(float32)), nil
	case schema.KindDouble:
		return sortenc.AppendFloat64(dst, v.(float64)), nil
	case schema.KindDecimal:
		return sortenc.AppendInt64(dst, v.(schema.Decimal).Num), nil
	case schema.KindBool:
		return sortenc.AppendBool(dst, v.(bool)), nil
	case schema.KindGeo4:
		g := v.(schema.Geo)
		dst = sortenc.AppendInt16(dst, int16(math.Round(g.Lat*geoScale[n.Kind])))
		return sortenc.AppendInt16(dst, int16(math.Round(g.Lng*geoScale[n.Kind]))), nil
	case schema.KindGeo8:
		g := v.(schema.Geo)
		dst = sortenc.AppendInt32(dst, int32(math.Round(g.Lat*geoScale[n.Kind])))
		return sortenc.AppendInt32(dst, int32(math.Round(g.Lng*geoScale[n.Kind]))), nil
	case schema.KindGeo16:
		g := v.(schema.Geo)
		dst = sortenc.AppendInt64(dst, int64(math.Round(g.Lat*geoScale[n.Kind])))
		return sortenc.AppendInt64(dst, int64(math.Round(g.Lng*geoScale[n.Kind]))), nil
	case schema.KindUUID:
		id := v.(uuid.UUID)
		return append(dst, id[:]...), nil
	case schema.KindKSUID:
		return append(dst, v.(ksuid.KSUID).Bytes()...), nil
	case schema.KindDate:
		return sortenc.AppendInt64(dst, v.(time.Time).UnixMilli()), nil
	case schema.KindEnum:
		i, ok := n.ChoiceIndex(v.(string))
		if !ok {
			return nil, fmt.Errorf("buffer: %q is not a choice", v)
		}
		return sortenc.AppendUint8(dst, uint8(i)), nil
	}
	return nil, fmt.Errorf("buffer: %s is not a scalar", n.Kind)
}

// scalarSize returns the stored size of the scalar at off.
func scalarSize(m *memory, n *schema.Node, off uint32) (int, error) {
	if w := n.Width(); w > 0 {
		return w, m.check(off, w)
	}
	l, err := m.u32(off)
	if err != nil {
		return 0, err
	}
	if err := m.check(off+4, int(l)); err != nil {
		return 0, err
	}
	return 4 + int(l), nil
}

// decodeScalar reads the scalar stored at off.
func decodeScalar(m *memory, n *schema.Node, off uint32) (any, error) {
	size, err := scalarSize(m, n, off)
	if err != nil {
		return nil, err
	}
	b, err := m.slice(off, size)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case schema.KindString, schema.KindBytes:
		var payload []byte
		if n.Size > 0 {
			if payload, err = sortenc.Fixed(b, n.Size); err != nil {
				return nil, &BufferBoundsError{Offset: uint64(off), Size: m.size(), Msg: err.Error()}
			}
		} else {
			payload = append([]byte(nil), b[4:]...)
		}
		if n.Kind == schema.KindString {
			return string(payload), nil
		}
		return payload, nil
	case schema.KindInt8:
		return sortenc.Int8(b), nil
	case schema.KindInt16:
		return sortenc.Int16(b), nil
	case schema.KindInt32:
		return sortenc.Int32(b), nil
	case schema.KindInt64:
		return sortenc.Int64(b), nil
	case schema.KindUint8:
		return sortenc.Uint8(b), nil
	case schema.KindUint16:
		return sortenc.Uint16(b), nil
	case schema.KindUint32:
		return sortenc.Uint32(b), nil
	case schema.KindUint64:
		return sortenc.Uint64(b), nil
	case schema.KindFloat:
		return sortenc.Float32(b), nil
	case schema.KindDouble:
		return sortenc.Float64(b), nil
	case schema.KindDecimal:
		return schema.Decimal{Num: sortenc.Int64(b), Exp: n.Exp}, nil
	case schema.KindBool:
		return sortenc.Bool(b), nil
	case schema.KindGeo4:
		s := geoScale[n.Kind]
		return schema.Geo{Lat: float64(sortenc.Int16(b)) / s, Lng: float64(sortenc.Int16(b[2:])) / s}, nil
	case schema.KindGeo8:
		s := geoScale[n.Kind]
		return schema.Geo{Lat: float64(sortenc.Int32(b)) / s, Lng: float64(sortenc.Int32(b[4:])) / s}, nil
	case schema.KindGeo16:
		s := geoScale[n.Kind]
		return schema.Geo{Lat: float64(sortenc.Int64(b)) / s, Lng: float64(sortenc.Int64(b[8:])) / s}, nil
	case schema.KindUUID:
		var id uuid.UUID
		copy(id[:], b)
		return id, nil
	case schema.KindKSUID:
		id, err := ksuid.FromBytes(b)
		if err != nil {
			return nil, &BufferBoundsError{Offset: uint64(off), Size: m.size(), Msg: err.Error()}
		}
		return id, nil
	case schema.KindDate:
		return time.UnixMilli(sortenc.Int64(b)).UTC(), nil
	case schema.KindEnum:
		i := int(sortenc.Uint8(b))
		if i >= len(n.Choices) {
			return nil, &BufferBoundsError{Offset: uint64(off), Size: m.size(), Msg: fmt.Sprintf("enum index %d out of range", i)}
		}
		return n.Choices[i], nil
	}
	return nil, fmt.Errorf("buffer: %s is not a scalar", n.Kind)
}
