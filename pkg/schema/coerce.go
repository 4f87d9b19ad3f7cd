package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// ValueError is returned when a value cannot be represented by a node.
type ValueError struct {
	Kind   Kind
	Value  any
	Reason string
}

func (e *ValueError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot use %T as %s: %s", e.Value, e.Kind, e.Reason)
	}
	return fmt.Sprintf("cannot use %T as %s", e.Value, e.Kind)
}

// Coerce converts v into the Go representation of scalar node n:
//
//	string          string
//	bytes           []byte
//	intN, uintN     intN, uintN
//	float, double   float32, float64
//	decimal         Decimal
//	bool            bool
//	geo4/8/16       Geo
//	uuid            uuid.UUID
//	ksuid           ksuid.KSUID
//	date            time.Time (UTC, millisecond precision)
//	enum            string
//
// Integer kinds accept any Go integer, integral floats and json.Number within
// range. Decimal, float and double accept any number; float and double also
// accept "NaN", "Infinity" and "-Infinity". uuid, ksuid and date
// also accept their string forms; date accepts milliseconds since the epoch.
func (n *Node) Coerce(v any) (any, error) {
	fail := func(reason string) (any, error) {
		return nil, &ValueError{Kind: n.Kind, Value: v, Reason: reason}
	}
	switch n.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return fail("")
		}
		if n.Size > 0 && len(s) > n.Size {
			return fail(fmt.Sprintf("length %d exceeds size %d", len(s), n.Size))
		}
		if n.Size == 0 && uint64(len(s)) > math.MaxUint32 {
			return fail("too long")
		}
		return s, nil
	case KindBytes:
		var b []byte
		switch t := v.(type) {
		case []byte:
			b = t
		case []any:
			b = make([]byte, len(t))
			for i, e := range t {
				u, ok := toUint(e, math.MaxUint8)
				if !ok {
					return fail(fmt.Sprintf("element %d is not a byte", i))
				}
				b[i] = byte(u)
			}
		default:
			return fail("")
		}
		if n.Size > 0 && len(b) > n.Size {
			return fail(fmt.Sprintf("length %d exceeds size %d", len(b), n.Size))
		}
		return b, nil
	case KindInt8:
		i, ok := toInt(v, math.MinInt8, math.MaxInt8)
		if !ok {
			return fail("out of range or not an integer")
		}
		return int8(i), nil
	case KindInt16:
		i, ok := toInt(v, math.MinInt16, math.MaxInt16)
		if !ok {
			return fail("out of range or not an integer")
		}
		return int16(i), nil
	case KindInt32:
		i, ok := toInt(v, math.MinInt32, math.MaxInt32)
		if !ok {
			return fail("out of range or not an integer")
		}
		return int32(i), nil
	case KindInt64:
		i, ok := toInt(v, math.MinInt64, math.MaxInt64)
		if !ok {
			return fail("out of range or not an integer")
		}
		return i, nil
	case KindUint8:
		u, ok := toUint(v, math.MaxUint8)
		if !ok {
			return fail("out of range or not an integer")
		}
		return uint8(u), nil
	case KindUint16:
		u, ok := toUint(v, math.MaxUint16)
		if !ok {
			return fail("out of range or not an integer")
		}
		return uint16(u), nil
	case KindUint32:
		u, ok := toUint(v, math.MaxUint32)
		if !ok {
			return fail("out of range or not an integer")
		}
		return uint32(u), nil
	case KindUint64:
		u, ok := toUint(v, math.MaxUint64)
		if !ok {
			return fail("out of range or not an integer")
		}
		return u, nil
	case KindFloat:
		if f, ok := v.(float32); ok {
			return f, nil
		}
		if f, ok := nonFinite(v); ok {
			return float32(f), nil
		}
		f, ok := toFloat(v)
		if !ok {
			return fail("")
		}
		return float32(f), nil
	case KindDouble:
		if f, ok := nonFinite(v); ok {
			return f, nil
		}
		f, ok := toFloat(v)
		if !ok {
			return fail("")
		}
		return f, nil
	case KindDecimal:
		return n.coerceDecimal(v)
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return fail("")
		}
		return b, nil
	case KindGeo4, KindGeo8, KindGeo16:
		var g Geo
		switch t := v.(type) {
		case Geo:
			g = t
		case *Geo:
			if t == nil {
				return fail("nil")
			}
			g = *t
		case map[string]any:
			lat, ok1 := toFloat(t["lat"])
			lng, ok2 := toFloat(t["lng"])
			if !ok1 || !ok2 {
				return fail("want lat and lng")
			}
			g = Geo{Lat: lat, Lng: lng}
		default:
			return fail("")
		}
		if !g.Valid() {
			return fail("coordinates out of range")
		}
		return g, nil
	case KindUUID:
		switch t := v.(type) {
		case uuid.UUID:
			return t, nil
		case [16]byte:
			return uuid.UUID(t), nil
		case string:
			id, err := uuid.Parse(t)
			if err != nil {
				return fail(err.Error())
			}
			return id, nil
		}
		return fail("")
	case KindKSUID:
		switch t := v.(type) {
		case ksuid.KSUID:
			return t, nil
		case string:
			id, err := ksuid.Parse(t)
			if err != nil {
				return fail(err.Error())
			}
			return id, nil
		}
		return fail("")
	case KindDate:
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Truncate(time.Millisecond), nil
		case string:
			ts, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return fail(err.Error())
			}
			return ts.UTC().Truncate(time.Millisecond), nil
		}
		ms, ok := toInt(v, math.MinInt64, math.MaxInt64)
		if !ok {
			return fail("")
		}
		return time.UnixMilli(ms).UTC(), nil
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return fail("")
		}
		if _, ok := n.ChoiceIndex(s); !ok {
			return fail(fmt.Sprintf("%q is not a choice", s))
		}
		return s, nil
	}
	return fail("not a scalar")
}

func (n *Node) coerceDecimal(v any) (any, error) {
	var (
		d  Decimal
		ok bool
	)
	switch t := v.(type) {
	case Decimal:
		d, ok = t.Rescale(n.Exp)
	case json.Number:
		d, ok = ParseDecimal(t.String(), n.Exp)
	case string:
		d, ok = ParseDecimal(t, n.Exp)
	case float32:
		d, ok = DecimalFromFloat(float64(t), n.Exp)
	case float64:
		d, ok = DecimalFromFloat(t, n.Exp)
	default:
		var i int64
		if i, ok = toInt(v, math.MinInt64, math.MaxInt64); ok {
			d, ok = Decimal{Num: i}.Rescale(n.Exp)
		}
	}
	if !ok {
		return nil, &ValueError{Kind: KindDecimal, Value: v, Reason: fmt.Sprintf("not representable with exp %d", n.Exp)}
	}
	return d, nil
}

// Names JSON uses for floats it has no number for.
const (
	NaN         = "NaN"
	Infinity    = "Infinity"
	NegInfinity = "-Infinity"
)

func nonFinite(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	switch s {
	case NaN:
		return math.NaN(), true
	case Infinity:
		return math.Inf(1), true
	case NegInfinity:
		return math.Inf(-1), true
	}
	return 0, false
}

// ChoiceIndex returns the position of choice s in an enum node.
func (n *Node) ChoiceIndex(s string) (int, bool) {
	for i, c := range n.Choices {
		if c == s {
			return i, true
		}
	}
	return 0, false
}

func toInt(v any, lo, hi int64) (int64, bool) {
	var i int64
	switch t := v.(type) {
	case int:
		i = int64(t)
	case int8:
		i = int64(t)
	case int16:
		i = int64(t)
	case int32:
		i = int64(t)
	case int64:
		i = t
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, false
		}
		i = int64(t)
	case uint8:
		i = int64(t)
	case uint16:
		i = int64(t)
	case uint32:
		i = int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		i = int64(t)
	case float32:
		return toInt(float64(t), lo, hi)
	case float64:
		if t != math.Trunc(t) || t < -(1<<63) || t >= 1<<63 {
			return 0, false
		}
		i = int64(t)
	case json.Number:
		n, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0, false
			}
			return toInt(f, lo, hi)
		}
		i = n
	default:
		return 0, false
	}
	if i < lo || i > hi {
		return 0, false
	}
	return i, true
}

func toUint(v any, hi uint64) (uint64, bool) {
	var u uint64
	switch t := v.(type) {
	case uint:
		u = uint64(t)
	case uint8:
		u = uint64(t)
	case uint16:
		u = uint64(t)
	case uint32:
		u = uint64(t)
	case uint64:
		u = t
	case json.Number:
		n, err := strconv.ParseUint(t.String(), 10, 64)
		if err != nil {
			i, ok := toInt(t, 0, math.MaxInt64)
			if !ok {
				return 0, false
			}
			n = uint64(i)
		}
		u = n
	case float64:
		if t != math.Trunc(t) || t < 0 || t >= 1<<64 {
			return 0, false
		}
		u = uint64(t)
	default:
		i, ok := toInt(v, 0, math.MaxInt64)
		if !ok {
			return 0, false
		}
		u = uint64(i)
	}
	if u > hi {
		return 0, false
	}
	return u, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v, math.MinInt64, math.MaxInt64); ok {
		return float64(i), true
	}
	if u, ok := toUint(v, math.MaxUint64); ok {
		return float64(u), true
	}
	return 0, false
}
