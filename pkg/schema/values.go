package schema

import (
	"math"
	"strconv"
	"strings"
)

// Decimal is a fixed point number: Num * 10^-Exp.
type Decimal struct {
	Num int64
	Exp uint8
}

// MaxDecimalExp is the largest exp a decimal node may declare.
const MaxDecimalExp = 18

var pow10 = func() [MaxDecimalExp + 1]int64 {
	var p [MaxDecimalExp + 1]int64
	p[0] = 1
	for i := 1; i <= MaxDecimalExp; i++ {
		p[i] = p[i-1] * 10
	}
	return p
}()

// DecimalFromFloat rounds f to exp decimal places.
func DecimalFromFloat(f float64, exp uint8) (Decimal, bool) {
	if exp > MaxDecimalExp || math.IsNaN(f) || math.IsInf(f, 0) {
		return Decimal{}, false
	}
	scaled := math.Round(f * float64(pow10[exp]))
	if scaled < math.MinInt64 || scaled >= math.MaxInt64 {
		return Decimal{}, false
	}
	return Decimal{Num: int64(scaled), Exp: exp}, true
}

// ParseDecimal parses a base 10 literal such as "-12.345" at the given exp.
// Extra fractional digits are rejected rather than rounded.
func ParseDecimal(s string, exp uint8) (Decimal, bool) {
	if exp > MaxDecimalExp || s == "" {
		return Decimal{}, false
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" && frac == "" {
		return Decimal{}, false
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > int(exp) {
		return Decimal{}, false
	}
	frac += strings.Repeat("0", int(exp)-len(frac))
	digits := intPart + frac
	if digits == "" {
		digits = "0"
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return Decimal{}, false
	}
	if neg {
		if n > 1<<63 {
			return Decimal{}, false
		}
		return Decimal{Num: -int64(n), Exp: exp}, true
	}
	if n > math.MaxInt64 {
		return Decimal{}, false
	}
	return Decimal{Num: int64(n), Exp: exp}, true
}

// Rescale returns d expressed with exp decimal places.
func (d Decimal) Rescale(exp uint8) (Decimal, bool) {
	if exp > MaxDecimalExp || d.Exp > MaxDecimalExp {
		return Decimal{}, false
	}
	if exp == d.Exp {
		return d, true
	}
	if exp > d.Exp {
		m := pow10[exp-d.Exp]
		if d.Num > math.MaxInt64/m || d.Num < math.MinInt64/m {
			return Decimal{}, false
		}
		return Decimal{Num: d.Num * m, Exp: exp}, true
	}
	m := pow10[d.Exp-exp]
	if d.Num%m != 0 {
		return Decimal{}, false
	}
	return Decimal{Num: d.Num / m, Exp: exp}, true
}

// Float64 returns d as a float.
func (d Decimal) Float64() float64 {
	return float64(d.Num) / float64(pow10[d.Exp%(MaxDecimalExp+1)])
}

func (d Decimal) String() string {
	neg := d.Num < 0
	var digits string
	if neg {
		digits = strconv.FormatUint(uint64(-(d.Num+1))+1, 10)
	} else {
		digits = strconv.FormatUint(uint64(d.Num), 10)
	}
	if d.Exp > 0 {
		if len(digits) <= int(d.Exp) {
			digits = strings.Repeat("0", int(d.Exp)-len(digits)+1) + digits
		}
		cut := len(digits) - int(d.Exp)
		digits = digits[:cut] + "." + digits[cut:]
	}
	if neg {
		return "-" + digits
	}
	return digits
}

// MarshalJSON writes d as a JSON number.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

// Geo is a latitude/longitude pair.
type Geo struct {
	Lat float64 `json:"lat" yaml:"lat" cbor:"lat"`
	Lng float64 `json:"lng" yaml:"lng" cbor:"lng"`
}

// Valid reports whether g is within the usual coordinate range.
func (g Geo) Valid() bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lng >= -180 && g.Lng <= 180
}
