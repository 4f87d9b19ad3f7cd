package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ssargent/arenabuf/pkg/schema"
)

// tagDecimalFraction is the CBOR tag for [exponent, mantissa] decimals (RFC 8949 3.4.4).
const tagDecimalFraction = 4

var cborMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// MarshalCBOR encodes a value decoded from a buffer as canonical CBOR.
// Decimals become tag 4 decimal fractions, byte values byte strings,
// dates RFC 3339 strings.
func MarshalCBOR(v any) ([]byte, error) {
	out, err := cborMode.Marshal(cborValue(v))
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return out, nil
}

// UnmarshalCBOR decodes data produced by MarshalCBOR into v.
func UnmarshalCBOR(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return nil
}

func cborValue(v any) any {
	switch v := v.(type) {
	case schema.Decimal:
		return cbor.Tag{Number: tagDecimalFraction, Content: []any{-int64(v.Exp), v.Num}}
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cborValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cborValue(item)
		}
		return out
	default:
		return v
	}
}
