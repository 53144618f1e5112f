// Package builtins implements the interpreter's built-in numeric and
// string functions. Each entry declares its own argument count, which
// Call checks before invoking it; entries coerce their arguments with
// AsNumber/AsString rather than rejecting a wrong type. The runtime
// looks functions up by name and evaluates arguments before calling in.
package builtins

import (
	"math"
	"strconv"
	"strings"

	"github.com/mbasic/microbasic/berrors"
	"github.com/mbasic/microbasic/value"
)

// Host is the runtime capability a handful of functions need beyond their
// arguments: RND's stateful sequence and GET's blocking character read.
type Host interface {
	// NextRandom draws the next value from the current uniform [0,1)
	// sequence, reseeding it with |x| first if x < 0.
	NextRandom(x float64) float64
	// ReadChar blocks for a single character of console input.
	ReadChar() (string, error)
}

// Fn is one built-in function's arity and implementation.
type Fn struct {
	MinArgs int
	MaxArgs int // -1 means no upper bound
	Call    func(h Host, args []value.Value) (value.Value, error)
}

// Table maps built-in function names to their implementation.
var Table = map[string]*Fn{
	"ABS": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(math.Abs(a[0].AsNumber())), nil
	}},
	"ATN": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(math.Atan(a[0].AsNumber())), nil
	}},
	"COS": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(math.Cos(a[0].AsNumber())), nil
	}},
	"EXP": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(math.Exp(a[0].AsNumber())), nil
	}},
	"INT": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(math.Floor(a[0].AsNumber())), nil
	}},
	"LOG": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		x := a[0].AsNumber()
		if x <= 0 {
			return value.Value{}, berrors.IllegalFunctionCall()
		}
		return value.Number(math.Log(x)), nil
	}},
	"SGN": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		x := a[0].AsNumber()
		switch {
		case x < 0:
			return value.Number(-1), nil
		case x > 0:
			return value.Number(1), nil
		default:
			return value.Number(0), nil
		}
	}},
	"SIN": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(math.Sin(a[0].AsNumber())), nil
	}},
	"SQR": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		x := a[0].AsNumber()
		if x < 0 {
			return value.Value{}, berrors.IllegalFunctionCall()
		}
		return value.Number(math.Sqrt(x)), nil
	}},
	"TAN": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(math.Tan(a[0].AsNumber())), nil
	}},
	"RND": {0, 1, func(h Host, a []value.Value) (value.Value, error) {
		x := 1.0
		if len(a) == 1 {
			x = a[0].AsNumber()
		}
		return value.Number(h.NextRandom(x)), nil
	}},
	"GET": {0, 0, func(h Host, a []value.Value) (value.Value, error) {
		s, err := h.ReadChar()
		if err != nil {
			return value.Value{}, err
		}
		return value.Number(float64(s[0])), nil
	}},
	"LEN": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(float64(len(a[0].AsString()))), nil
	}},
	"LEFT$": {2, 2, func(h Host, a []value.Value) (value.Value, error) {
		s := a[0].AsString()
		n := int(a[1].AsInt32())
		if n < 0 {
			return value.Value{}, berrors.IllegalFunctionCall()
		}
		if n > len(s) {
			n = len(s)
		}
		return value.Text(s[:n]), nil
	}},
	"RIGHT$": {2, 2, func(h Host, a []value.Value) (value.Value, error) {
		s := a[0].AsString()
		n := int(a[1].AsInt32())
		if n < 0 {
			return value.Value{}, berrors.IllegalFunctionCall()
		}
		if n > len(s) {
			n = len(s)
		}
		return value.Text(s[len(s)-n:]), nil
	}},
	"MID$": {2, 3, func(h Host, a []value.Value) (value.Value, error) {
		s := a[0].AsString()
		start := int(a[1].AsInt32())
		if start < 1 {
			return value.Value{}, berrors.IllegalFunctionCall()
		}
		if start > len(s) {
			return value.Text(""), nil
		}
		rest := s[start-1:]
		if len(a) == 3 {
			n := int(a[2].AsInt32())
			if n < 0 {
				return value.Value{}, berrors.IllegalFunctionCall()
			}
			if n < len(rest) {
				rest = rest[:n]
			}
		}
		return value.Text(rest), nil
	}},
	"CHR$": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		n := a[0].AsInt32()
		if n < 0 || n > 255 {
			return value.Value{}, berrors.IllegalFunctionCall()
		}
		return value.Text(string(rune(n))), nil
	}},
	"ASC": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		s := a[0].AsString()
		if s == "" {
			return value.Value{}, berrors.IllegalFunctionCall()
		}
		return value.Number(float64(s[0])), nil
	}},
	"STR$": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		n := a[0].AsNumber()
		s := value.Number(n).AsString()
		if n >= 0 {
			s = " " + s
		}
		return value.Text(s), nil
	}},
	"VAL": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Number(scanNumericPrefix(a[0].AsString())), nil
	}},
	"TAB": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Text(spaces(a[0].AsInt32())), nil
	}},
	"SPC": {1, 1, func(h Host, a []value.Value) (value.Value, error) {
		return value.Text(spaces(a[0].AsInt32())), nil
	}},
}

func spaces(n int32) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat(" ", int(n))
}

// scanNumericPrefix implements VAL's algorithm: skip leading whitespace,
// then consume an optional sign, digits, an optional decimal point and
// more digits, and an optional E/D exponent (itself with an optional
// sign and digits), stopping at the first character that doesn't fit.
// Trailing garbage after the numeric prefix is ignored. If no digits
// were consumed at all, VAL returns 0.
func scanNumericPrefix(s string) float64 {
	i, n := 0, len(s)
	for i < n && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	start := i
	if i < n && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digitsFrom := i
	for i < n && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	hasDigits := i > digitsFrom

	if i < n && s[i] == '.' {
		i++
		fracFrom := i
		for i < n && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		hasDigits = hasDigits || i > fracFrom
	}
	if !hasDigits {
		return 0
	}

	if i < n && (s[i] == 'E' || s[i] == 'e' || s[i] == 'D' || s[i] == 'd') {
		j := i + 1
		if j < n && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expFrom := j
		for j < n && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j > expFrom {
			i = j
		}
	}

	raw := strings.NewReplacer("D", "E", "d", "E").Replace(s[start:i])
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

// IsBuiltin reports whether name is a built-in function.
func IsBuiltin(name string) bool {
	_, ok := Table[name]
	return ok
}

// Call invokes the named built-in after checking its arity.
func Call(h Host, name string, args []value.Value) (value.Value, error) {
	fn, ok := Table[name]
	if !ok {
		return value.Value{}, berrors.UnknownFunction(name)
	}
	if len(args) < fn.MinArgs || (fn.MaxArgs >= 0 && len(args) > fn.MaxArgs) {
		return value.Value{}, berrors.NewRuntime("Syntax error")
	}
	return fn.Call(h, args)
}
