package berrors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageWithoutLine(t *testing.T) {
	err := DivisionByZero()
	require.Equal(t, "Division by zero", err.Error())
}

func TestErrorMessageWithLine(t *testing.T) {
	err := WithLine(NextWithoutFor(), 40)
	require.Equal(t, "Line 40: NEXT without FOR", err.Error())
}

func TestWithLineSetsLineAndKeepsKind(t *testing.T) {
	plain := NewSyntax("Syntax error")
	wrapped := WithLine(plain, 10)
	be, ok := wrapped.(*Error)
	require.True(t, ok)
	require.Equal(t, 10, be.Line)
	require.Equal(t, Syntax, be.Kind)
}

func TestCanonicalMessagesFormatArguments(t *testing.T) {
	require.Equal(t, "Undefined line 250", UndefinedLine(250).Error())
	require.Equal(t, "Index out of range for A", IndexOutOfRange("A").Error())
	require.Equal(t, "Array B expects 2 dimensions", ArrayDimensionMismatch("B", 2).Error())
	require.Equal(t, "Unknown function FROB", UnknownFunction("FROB").Error())
	require.Equal(t, "File #1 is not open for output", FileNotOpenForOutput(1).Error())
}

func TestRuntimeAndSyntaxKindsAreDistinct(t *testing.T) {
	require.Equal(t, Runtime, DivisionByZero().Kind)
	require.Equal(t, Syntax, NewSyntax("bad").Kind)
}
