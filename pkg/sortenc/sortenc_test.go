package sortenc

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertOrdered checks that encodings of ascending inputs compare ascending.
func assertOrdered(t *testing.T, enc [][]byte) {
	t.Helper()
	for i := 1; i < len(enc); i++ {
		assert.Equal(t, -1, bytes.Compare(enc[i-1], enc[i]), "index %d: %x !< %x", i, enc[i-1], enc[i])
	}
}

func TestSignedOrder(t *testing.T) {
	t.Run("int8", func(t *testing.T) {
		values := []int8{math.MinInt8, -100, -1, 0, 1, 100, math.MaxInt8}
		var enc [][]byte
		for _, v := range values {
			b := AppendInt8(nil, v)
			assert.Equal(t, v, Int8(b))
			enc = append(enc, b)
		}
		assertOrdered(t, enc)
		assert.Equal(t, []byte{0x00}, AppendInt8(nil, math.MinInt8))
		assert.Equal(t, []byte{0x7F}, AppendInt8(nil, -1))
		assert.Equal(t, []byte{0x80}, AppendInt8(nil, 0))
		assert.Equal(t, []byte{0xFF}, AppendInt8(nil, math.MaxInt8))
	})

	t.Run("int16", func(t *testing.T) {
		values := []int16{math.MinInt16, -300, -1, 0, 1, 300, math.MaxInt16}
		var enc [][]byte
		for _, v := range values {
			b := AppendInt16(nil, v)
			assert.Equal(t, v, Int16(b))
			enc = append(enc, b)
		}
		assertOrdered(t, enc)
	})

	t.Run("int32", func(t *testing.T) {
		values := []int32{math.MinInt32, -70000, -1, 0, 1, 70000, math.MaxInt32}
		var enc [][]byte
		for _, v := range values {
			b := AppendInt32(nil, v)
			assert.Equal(t, v, Int32(b))
			enc = append(enc, b)
		}
		assertOrdered(t, enc)
	})

	t.Run("int64", func(t *testing.T) {
		values := []int64{math.MinInt64, -1 << 40, -1, 0, 1, 1 << 40, math.MaxInt64}
		var enc [][]byte
		for _, v := range values {
			b := AppendInt64(nil, v)
			assert.Equal(t, v, Int64(b))
			enc = append(enc, b)
		}
		assertOrdered(t, enc)
	})
}

func TestUnsignedOrder(t *testing.T) {
	values := []uint64{0, 1, 255, 256, 1 << 32, math.MaxUint64}
	var enc [][]byte
	for _, v := range values {
		b := AppendUint64(nil, v)
		assert.Equal(t, v, Uint64(b))
		enc = append(enc, b)
	}
	assertOrdered(t, enc)

	assert.Equal(t, uint8(7), Uint8(AppendUint8(nil, 7)))
	assert.Equal(t, uint16(0xBEEF), Uint16(AppendUint16(nil, 0xBEEF)))
	assert.Equal(t, uint32(0xDEADBEEF), Uint32(AppendUint32(nil, 0xDEADBEEF)))
}

func TestFloatOrder(t *testing.T) {
	t.Run("double", func(t *testing.T) {
		values := []float64{
			math.Inf(-1), -math.MaxFloat64, -1.5, -math.SmallestNonzeroFloat64,
			0, math.SmallestNonzeroFloat64, 1.5, math.MaxFloat64, math.Inf(1),
		}
		var enc [][]byte
		for _, v := range values {
			b := AppendFloat64(nil, v)
			assert.Equal(t, v, Float64(b))
			enc = append(enc, b)
		}
		assertOrdered(t, enc)
	})

	t.Run("float", func(t *testing.T) {
		values := []float32{
			float32(math.Inf(-1)), -math.MaxFloat32, -2.25, 0, 2.25, math.MaxFloat32, float32(math.Inf(1)),
		}
		var enc [][]byte
		for _, v := range values {
			b := AppendFloat32(nil, v)
			assert.Equal(t, v, Float32(b))
			enc = append(enc, b)
		}
		assertOrdered(t, enc)
	})

	t.Run("negative zero", func(t *testing.T) {
		assert.Equal(t, AppendFloat64(nil, 0), AppendFloat64(nil, math.Copysign(0, -1)))
		assert.Equal(t, AppendFloat32(nil, 0), AppendFloat32(nil, float32(math.Copysign(0, -1))))
	})

	t.Run("nan is canonical", func(t *testing.T) {
		a := AppendFloat64(nil, math.NaN())
		b := AppendFloat64(nil, math.Float64frombits(0xFFF8000000000123))
		assert.Equal(t, a, b)
		assert.True(t, math.IsNaN(Float64(a)))
	})
}

func TestBool(t *testing.T) {
	f := AppendBool(nil, false)
	tr := AppendBool(nil, true)
	assert.Equal(t, -1, bytes.Compare(f, tr))
	assert.False(t, Bool(f))
	assert.True(t, Bool(tr))
}

func TestKeyStrings(t *testing.T) {
	values := []string{"", "\x00", "\x00\x00", "\x00a", "a", "a\x00", "a\x00b", "ab", "b"}
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	require.Equal(t, sorted, values, "test inputs must be in ascending order")

	var enc [][]byte
	for _, v := range values {
		b := AppendString(nil, v)
		got, rest, err := DecodeBytes(b)
		require.NoError(t, err)
		assert.Equal(t, v, string(got))
		assert.Empty(t, rest)
		enc = append(enc, b)
	}
	assertOrdered(t, enc)
}

func TestKeyStringPrefixSortsFirst(t *testing.T) {
	assert.Equal(t, -1, bytes.Compare(AppendString(nil, ""), AppendString(nil, "a")))
	assert.Equal(t, -1, bytes.Compare(AppendString(nil, "abc"), AppendString(nil, "abcd")))
	// Concatenated keys keep the first component dominant.
	k1 := AppendString(AppendString(nil, "ab"), "z")
	k2 := AppendString(AppendString(nil, "abc"), "a")
	assert.Equal(t, -1, bytes.Compare(k1, k2))
}

func TestDecodeBytesErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"no terminator", []byte("abc")},
		{"dangling escape", []byte{'a', 0x00}},
		{"bad escape", []byte{0x00, 0x07}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeBytes(tt.in)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestDecodeBytesRest(t *testing.T) {
	b := AppendString(nil, "first")
	b = AppendUint16(b, 42)
	got, rest, err := DecodeBytes(b)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	assert.Equal(t, uint16(42), Uint16(rest))
}

func TestFixed(t *testing.T) {
	b, err := AppendFixed(nil, []byte("hi"), 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{'h', 'i', 0, 0, 0, 0, 2}, b)
	assert.Len(t, b, FixedWidth(5))

	got, err := Fixed(b, 5)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	_, err = AppendFixed(nil, []byte("toolong"), 3)
	assert.ErrorIs(t, err, ErrTooLong)

	_, err = Fixed([]byte{0, 0}, 5)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Fixed([]byte{'a', 0, 9}, 1)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFixedOrder(t *testing.T) {
	values := []string{"", "a", "a\x00", "ab", "b"}
	var enc [][]byte
	for _, v := range values {
		b, err := AppendFixed(nil, []byte(v), 4)
		require.NoError(t, err)
		enc = append(enc, b)
	}
	assertOrdered(t, enc)
}

func TestAbsentSortsFirst(t *testing.T) {
	absent := []byte{Absent, 0, 0, 0, 0}
	present := AppendInt32([]byte{Present}, math.MinInt32)
	assert.Equal(t, -1, bytes.Compare(absent, present))
}
