// Package value implements the interpreter's Value type: a tagged union
// of numeric (double-precision) and string data, with the coercion and
// arithmetic/comparison/logical rules classic BASIC programs depend on.
package value

import (
	"math"
	"strconv"
	"strings"

	"github.com/mbasic/microbasic/berrors"
)

// epsilon is the tolerance used for numeric equality/inequality and for
// FOR/NEXT limit tests.
const epsilon = 1e-9

// Kind tags which case of the union a Value holds.
type Kind int

const (
	// NumberKind values hold a float64 in num.
	NumberKind Kind = iota
	// TextKind values hold a string in str.
	TextKind
)

// Value is either a Number or a Text; there is no separate boolean case —
// comparisons produce the Number -1 for true and 0 for false.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Number wraps a float64 as a numeric Value.
func Number(f float64) Value { return Value{kind: NumberKind, num: f} }

// Text wraps a string as a string Value.
func Text(s string) Value { return Value{kind: TextKind, str: s} }

// IsString reports whether v holds text.
func (v Value) IsString() bool { return v.kind == TextKind }

// Raw returns the underlying float64 without any coercion; only valid for
// a Number value (callers that don't know the kind should use AsNumber).
func (v Value) Raw() float64 { return v.num }

// RawString returns the underlying string without any coercion.
func (v Value) RawString() string { return v.str }

// AsNumber coerces v to a float64. A Number returns its value unchanged;
// Text is parsed with invariant, period-decimal conventions and yields 0
// on any parse failure.
func (v Value) AsNumber() float64 {
	if v.kind == NumberKind {
		return v.num
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
	if err != nil {
		return 0
	}
	return f
}

// AsString coerces v to a string. Text returns itself unchanged; a Number
// is rendered as a culture-invariant decimal with up to 15 fractional
// digits, trailing zeros (and a trailing decimal point) trimmed.
func (v Value) AsString() string {
	if v.kind == TextKind {
		return v.str
	}
	return formatFixed(v.num, 15)
}

// AsInt32 coerces v to an int32, rounding half-away-from-zero.
func (v Value) AsInt32() int32 {
	return int32(roundHalfAway(v.AsNumber()))
}

// Truthy reports whether v is BASIC-true: any non-zero numeric value.
func (v Value) Truthy() bool {
	return v.AsNumber() != 0
}

func roundHalfAway(f float64) float64 {
	if f >= 0 {
		return math.Floor(f + 0.5)
	}
	return math.Ceil(f - 0.5)
}

func formatFixed(f float64, fracDigits int) string {
	s := strconv.FormatFloat(f, 'f', fracDigits, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// ToPrintString renders v the way PRINT displays it: Text is written
// verbatim; a Number is an invariant decimal with up to 12 significant
// digits, switching to scientific notation for magnitudes >= 1e10 or
// (non-zero and) < 1e-3.
func (v Value) ToPrintString() string {
	if v.kind == TextKind {
		return v.str
	}
	return formatPrintNumber(v.num)
}

func formatPrintNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	mag := math.Abs(f)
	if mag >= 1e10 || mag < 1e-3 {
		return formatScientific(f, 12)
	}
	exp := int(math.Floor(math.Log10(mag)))
	decimals := 12 - exp - 1
	if decimals < 0 {
		decimals = 0
	}
	return formatFixed(f, decimals)
}

func formatScientific(f float64, sig int) string {
	s := strconv.FormatFloat(f, 'e', sig-1, 64)
	parts := strings.SplitN(s, "e", 2)
	mantissa := parts[0]
	if strings.Contains(mantissa, ".") {
		mantissa = strings.TrimRight(mantissa, "0")
		mantissa = strings.TrimSuffix(mantissa, ".")
	}
	expPart := parts[1]
	sign := expPart[:1]
	digits := strings.TrimLeft(expPart[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "E" + sign + digits
}

// Add implements "+": string concatenation when either operand is a
// string, else numeric addition.
func Add(a, b Value) Value {
	if a.IsString() || b.IsString() {
		return Text(a.AsString() + b.AsString())
	}
	return Number(a.AsNumber() + b.AsNumber())
}

// Sub, Mul, Div, Pow implement the purely-numeric arithmetic operators.
// Div returns berrors.DivisionByZero on division by zero.

func Sub(a, b Value) (Value, error) {
	if a.IsString() || b.IsString() {
		return Value{}, berrors.TypeMismatch()
	}
	return Number(a.AsNumber() - b.AsNumber()), nil
}

func Mul(a, b Value) (Value, error) {
	if a.IsString() || b.IsString() {
		return Value{}, berrors.TypeMismatch()
	}
	return Number(a.AsNumber() * b.AsNumber()), nil
}

func Div(a, b Value) (Value, error) {
	if a.IsString() || b.IsString() {
		return Value{}, berrors.TypeMismatch()
	}
	denom := b.AsNumber()
	if denom == 0 {
		return Value{}, berrors.DivisionByZero()
	}
	return Number(a.AsNumber() / denom), nil
}

func Pow(a, b Value) (Value, error) {
	if a.IsString() || b.IsString() {
		return Value{}, berrors.TypeMismatch()
	}
	return Number(math.Pow(a.AsNumber(), b.AsNumber())), nil
}

// Neg implements unary minus.
func Neg(a Value) (Value, error) {
	if a.IsString() {
		return Value{}, berrors.TypeMismatch()
	}
	return Number(-a.AsNumber()), nil
}

// boolValue converts a Go bool to the classic BASIC -1/0 Number.
func boolValue(b bool) Value {
	if b {
		return Number(-1)
	}
	return Number(0)
}

// Equal, NotEqual, Less, Greater, LessOrEqual, GreaterOrEqual implement
// the comparison operators. When either operand is a string, both sides
// are compared lexicographically (ordinal) via AsString; otherwise the
// comparison is numeric, with = and <> using epsilon equality.

func Equal(a, b Value) Value {
	if a.IsString() || b.IsString() {
		return boolValue(a.AsString() == b.AsString())
	}
	return boolValue(math.Abs(a.AsNumber()-b.AsNumber()) < epsilon)
}

func NotEqual(a, b Value) Value {
	if a.IsString() || b.IsString() {
		return boolValue(a.AsString() != b.AsString())
	}
	return boolValue(math.Abs(a.AsNumber()-b.AsNumber()) >= epsilon)
}

func Less(a, b Value) Value {
	if a.IsString() || b.IsString() {
		return boolValue(a.AsString() < b.AsString())
	}
	return boolValue(a.AsNumber() < b.AsNumber())
}

func Greater(a, b Value) Value {
	if a.IsString() || b.IsString() {
		return boolValue(a.AsString() > b.AsString())
	}
	return boolValue(a.AsNumber() > b.AsNumber())
}

func LessOrEqual(a, b Value) Value {
	if a.IsString() || b.IsString() {
		return boolValue(a.AsString() <= b.AsString())
	}
	return boolValue(a.AsNumber() <= b.AsNumber())
}

func GreaterOrEqual(a, b Value) Value {
	if a.IsString() || b.IsString() {
		return boolValue(a.AsString() >= b.AsString())
	}
	return boolValue(a.AsNumber() >= b.AsNumber())
}

// And, Or, Not implement classic BASIC's bitwise logical operators: the
// operands are rounded to 32-bit integers and combined bitwise; true is
// the all-ones pattern -1.

func And(a, b Value) Value {
	return Number(float64(a.AsInt32() & b.AsInt32()))
}

func Or(a, b Value) Value {
	return Number(float64(a.AsInt32() | b.AsInt32()))
}

func Not(a Value) Value {
	return Number(float64(^a.AsInt32()))
}

// Epsilon exposes the tolerance used for numeric equality and FOR/NEXT
// continuation tests, so runtime can share the same constant.
const Epsilon = epsilon
