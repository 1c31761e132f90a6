// Package core provides the report domain types and the fixed-point Amount
// used by every calculation.
//
// An Amount is a scaled integer: the value is unscaled / 10^scale. Addition
// and subtraction are exact. The only division is DivHalfUp, which always
// states the number of fractional digits and rounds half away from zero.
package core

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScale is the largest number of fractional digits an Amount may carry.
const MaxScale = 12

var ErrInvalidAmount = errors.New("invalid amount")

// Amount is immutable. The unscaled value is arbitrary precision so sums and
// rescaling never wrap; a nil value is zero.
type Amount struct {
	unscaled *big.Int
	scale    int32
}

// NewAmount returns unscaled / 10^scale.
func NewAmount(unscaled int64, scale int32) Amount {
	if scale < 0 {
		scale = 0
	}
	return Amount{unscaled: big.NewInt(unscaled), scale: scale}
}

// ZeroAmount returns zero with the given number of fractional digits,
// e.g. ZeroAmount(2) prints as "0.00".
func ZeroAmount(scale int32) Amount {
	return NewAmount(0, scale)
}

// ParseAmount parses a plain decimal string such as "-100.30" or "+12".
//
// The scale of the result is the number of fractional digits in the input.
// Exponents, thousands separators and empty fractions are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Amount{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
		if fracPart == "" {
			return Amount{}, ErrInvalidAmount
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > MaxScale {
		return Amount{}, fmt.Errorf("%w: more than %d fractional digits", ErrInvalidAmount, MaxScale)
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return Amount{}, ErrInvalidAmount
		}
	}
	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return Amount{}, ErrInvalidAmount
	}
	if neg {
		v.Neg(v)
	}
	return Amount{unscaled: v, scale: int32(len(fracPart))}, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(fmt.Sprintf("core: MustParseAmount(%q): %v", s, err))
	}
	return a
}

// AmountFromDecimal converts a decimal decoded from upstream input.
// The unscaled value must fit in an int64 at its own scale; larger inputs
// are rejected with ErrInvalidAmount.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	coef := d.Coefficient()
	exp := d.Exponent()
	scale := int32(0)
	if exp > 0 {
		coef.Mul(coef, bigPow10(exp))
	} else {
		scale = -exp
	}
	if scale > MaxScale {
		return Amount{}, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidAmount, d.String(), MaxScale)
	}
	if !coef.IsInt64() {
		return Amount{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return Amount{unscaled: coef, scale: scale}, nil
}

func (a Amount) value() *big.Int {
	if a.unscaled == nil {
		return new(big.Int)
	}
	return a.unscaled
}

// Unscaled returns a copy of the unscaled value.
func (a Amount) Unscaled() *big.Int { return new(big.Int).Set(a.value()) }

func (a Amount) Scale() int32 { return a.scale }

// WithMinScale returns the same value with at least scale fractional digits.
func (a Amount) WithMinScale(scale int32) Amount {
	if a.scale >= scale {
		return a
	}
	return a.rescale(scale)
}

func (a Amount) rescale(scale int32) Amount {
	if scale <= a.scale {
		return a
	}
	v := new(big.Int).Mul(a.value(), bigPow10(scale-a.scale))
	return Amount{unscaled: v, scale: scale}
}

func align(a, b Amount) (Amount, Amount) {
	if a.scale == b.scale {
		return a, b
	}
	if a.scale > b.scale {
		return a, b.rescale(a.scale)
	}
	return a.rescale(b.scale), b
}

func (a Amount) Add(b Amount) Amount {
	a, b = align(a, b)
	return Amount{unscaled: new(big.Int).Add(a.value(), b.value()), scale: a.scale}
}

func (a Amount) Sub(b Amount) Amount {
	a, b = align(a, b)
	return Amount{unscaled: new(big.Int).Sub(a.value(), b.value()), scale: a.scale}
}

func (a Amount) Neg() Amount {
	return Amount{unscaled: new(big.Int).Neg(a.value()), scale: a.scale}
}

func (a Amount) Abs() Amount {
	if a.Sign() < 0 {
		return a.Neg()
	}
	return a
}

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int { return a.value().Sign() }

func (a Amount) IsZero() bool { return a.Sign() == 0 }

// Cmp compares numeric values regardless of scale.
func (a Amount) Cmp(b Amount) int {
	a, b = align(a, b)
	return a.value().Cmp(b.value())
}

// Equal reports numeric and scale equality, so 1.0 and 1.00 differ.
func (a Amount) Equal(b Amount) bool {
	return a.scale == b.scale && a.value().Cmp(b.value()) == 0
}

// DivHalfUp divides by an integer and rounds HALF_UP to places digits.
// It panics on a zero divisor.
func (a Amount) DivHalfUp(divisor int64, places int32) Amount {
	if divisor == 0 {
		panic("core: division by zero")
	}
	num := new(big.Int).Mul(a.value(), bigPow10(places))
	den := new(big.Int).Mul(big.NewInt(divisor), bigPow10(a.scale))

	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		twice := new(big.Int).Abs(r)
		twice.Lsh(twice, 1)
		if twice.Cmp(new(big.Int).Abs(den)) >= 0 {
			if num.Sign()*den.Sign() < 0 {
				q.Sub(q, big.NewInt(1))
			} else {
				q.Add(q, big.NewInt(1))
			}
		}
	}
	return Amount{unscaled: q, scale: places}
}

func bigPow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// String prints exactly Scale fractional digits, e.g. "-100.30".
func (a Amount) String() string {
	v := a.value()
	neg := v.Sign() < 0
	digits := new(big.Int).Abs(v).String()
	if a.scale > 0 {
		if pad := int(a.scale) + 1 - len(digits); pad > 0 {
			digits = strings.Repeat("0", pad) + digits
		}
		cut := len(digits) - int(a.scale)
		digits = digits[:cut] + "." + digits[cut:]
	}
	if neg {
		return "-" + digits
	}
	return digits
}

// MarshalText renders the amount as a decimal string so JSON carries
// the exact value rather than a float.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	v, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
