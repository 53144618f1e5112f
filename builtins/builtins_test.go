package builtins

import (
	"testing"

	"github.com/mbasic/microbasic/value"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	next  float64
	chars []string
}

func (f *fakeHost) NextRandom(x float64) float64 { return f.next }
func (f *fakeHost) ReadChar() (string, error) {
	c := f.chars[0]
	f.chars = f.chars[1:]
	return c, nil
}

func TestIsBuiltinKnowsTable(t *testing.T) {
	require.True(t, IsBuiltin("LEFT$"))
	require.False(t, IsBuiltin("FROB"))
}

func TestAbsSgnInt(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "ABS", []value.Value{value.Number(-4)})
	require.NoError(t, err)
	require.Equal(t, 4.0, v.AsNumber())

	v, err = Call(h, "INT", []value.Value{value.Number(-1.5)})
	require.NoError(t, err)
	require.Equal(t, -2.0, v.AsNumber())
}

func TestSqrOfNegativeIsIllegalFunctionCall(t *testing.T) {
	h := &fakeHost{}
	_, err := Call(h, "SQR", []value.Value{value.Number(-1)})
	require.Error(t, err)
}

func TestStringSlicing(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "LEFT$", []value.Value{value.Text("HELLO"), value.Number(3)})
	require.NoError(t, err)
	require.Equal(t, "HEL", v.RawString())

	v, err = Call(h, "RIGHT$", []value.Value{value.Text("HELLO"), value.Number(3)})
	require.NoError(t, err)
	require.Equal(t, "LLO", v.RawString())

	v, err = Call(h, "MID$", []value.Value{value.Text("HELLO"), value.Number(2), value.Number(3)})
	require.NoError(t, err)
	require.Equal(t, "ELL", v.RawString())
}

func TestStrDollarAddsLeadingSpaceForNonNegative(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "STR$", []value.Value{value.Number(5)})
	require.NoError(t, err)
	require.Equal(t, " 5", v.RawString())

	v, err = Call(h, "STR$", []value.Value{value.Number(-5)})
	require.NoError(t, err)
	require.Equal(t, "-5", v.RawString())
}

func TestChrAndAsc(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "CHR$", []value.Value{value.Number(65)})
	require.NoError(t, err)
	require.Equal(t, "A", v.RawString())

	v, err = Call(h, "ASC", []value.Value{value.Text("A")})
	require.NoError(t, err)
	require.Equal(t, 65.0, v.AsNumber())
}

func TestTabAndSpcProduceSpaces(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "TAB", []value.Value{value.Number(3)})
	require.NoError(t, err)
	require.Equal(t, "   ", v.RawString())

	v, err = Call(h, "SPC", []value.Value{value.Number(3)})
	require.NoError(t, err)
	require.Equal(t, v.RawString(), "   ")
}

func TestRndDelegatesToHost(t *testing.T) {
	h := &fakeHost{next: 0.42}
	v, err := Call(h, "RND", nil)
	require.NoError(t, err)
	require.Equal(t, 0.42, v.AsNumber())
}

func TestGetReadsFromHost(t *testing.T) {
	h := &fakeHost{chars: []string{"Q"}}
	v, err := Call(h, "GET", nil)
	require.NoError(t, err)
	require.Equal(t, float64('Q'), v.AsNumber())
}

func TestUnknownFunctionErrors(t *testing.T) {
	h := &fakeHost{}
	_, err := Call(h, "FROB", nil)
	require.Error(t, err)
}

func TestWrongArityIsARuntimeError(t *testing.T) {
	h := &fakeHost{}
	_, err := Call(h, "ABS", nil)
	require.Error(t, err)
}

func TestValStopsAtFirstNonNumericCharacter(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "VAL", []value.Value{value.Text("123ABC")})
	require.NoError(t, err)
	require.Equal(t, 123.0, v.AsNumber())
}

func TestValSkipsLeadingSpaceAndKeepsSign(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "VAL", []value.Value{value.Text("  -3.5xyz")})
	require.NoError(t, err)
	require.Equal(t, -3.5, v.AsNumber())
}

func TestValWithExponentAndTrailingGarbage(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "VAL", []value.Value{value.Text("1.5E2Q")})
	require.NoError(t, err)
	require.Equal(t, 150.0, v.AsNumber())
}

func TestValWithNoLeadingDigitsReturnsZero(t *testing.T) {
	h := &fakeHost{}
	v, err := Call(h, "VAL", []value.Value{value.Text("ABC")})
	require.NoError(t, err)
	require.Equal(t, 0.0, v.AsNumber())
}
