package runtime

import (
	"testing"

	"github.com/mbasic/microbasic/parser"
	"github.com/mbasic/microbasic/program"
	"github.com/mbasic/microbasic/testsupport"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, lines map[int]string) *program.Compiled {
	t.Helper()
	s := program.NewStore()
	for n, src := range lines {
		s.SetLine(n, src)
	}
	c, err := program.Compile(s, parser.NewRegistry())
	require.NoError(t, err)
	return c
}

func TestAssignArithmeticAndPrint(t *testing.T) {
	prog := build(t, map[int]string{
		10: `X = 1+2*3`,
		20: `PRINT X`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "7\n", io.Output.String())
}

func TestPrintCommaEmitsTabOnConsole(t *testing.T) {
	prog := build(t, map[int]string{
		10: `PRINT "A","B"`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "A\tB\n", io.Output.String())
}

func TestPrintCommaEmitsLiteralCommaToFile(t *testing.T) {
	prog := build(t, map[int]string{
		10: `OPEN "OUT.TXT" FOR OUTPUT AS #1`,
		20: `PRINT #1,"A","B"`,
		30: `CLOSE #1`,
	})
	fs := testsupport.NewFakeFileSystem()
	rt := New(testsupport.NewFakeIO(), fs)
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "A,B\n", fs.Files["OUT.TXT"].String())
}

func TestPrintSemicolonDoesNotPad(t *testing.T) {
	prog := build(t, map[int]string{
		10: `PRINT "A";"B"`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "AB\n", io.Output.String())
}

func TestForNextAccumulates(t *testing.T) {
	prog := build(t, map[int]string{
		10: `S = 0`,
		20: `FOR I = 1 TO 5`,
		30: `S = S + I`,
		40: `NEXT I`,
		50: `PRINT S`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "15\n", io.Output.String())
}

func TestForNextCountsDownWithNegativeStep(t *testing.T) {
	prog := build(t, map[int]string{
		10: `FOR I = 3 TO 1 STEP -1`,
		20: `PRINT I;`,
		30: `NEXT I`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "321", io.Output.String())
}

func TestGosubAndReturn(t *testing.T) {
	prog := build(t, map[int]string{
		10:  `GOSUB 100`,
		20:  `PRINT "BACK"`,
		30:  `END`,
		100: `PRINT "SUB"`,
		110: `RETURN`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "SUB\nBACK\n", io.Output.String())
}

func TestIfThenNumericSugarIsGoto(t *testing.T) {
	prog := build(t, map[int]string{
		10: `IF 1 THEN 30`,
		20: `PRINT "SKIPPED"`,
		30: `PRINT "HIT"`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "HIT\n", io.Output.String())
}

func TestIfThenElseStatementLists(t *testing.T) {
	prog := build(t, map[int]string{
		10: `X = 5`,
		20: `IF X > 3 THEN PRINT "BIG" ELSE PRINT "SMALL"`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "BIG\n", io.Output.String())
}

func TestOnGotoSelectsTarget(t *testing.T) {
	prog := build(t, map[int]string{
		10:  `ON 2 GOTO 100,200,300`,
		20:  `PRINT "NOPE"`,
		30:  `END`,
		100: `PRINT "ONE" : END`,
		200: `PRINT "TWO" : END`,
		300: `PRINT "THREE" : END`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "TWO\n", io.Output.String())
}

func TestOnGotoOutOfRangeFallsThrough(t *testing.T) {
	prog := build(t, map[int]string{
		10:  `ON 5 GOTO 100,200`,
		20:  `PRINT "FELL THROUGH"`,
		30:  `END`,
		100: `END`,
		200: `END`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "FELL THROUGH\n", io.Output.String())
}

func TestDimAndIndexedAssignment(t *testing.T) {
	prog := build(t, map[int]string{
		10: `DIM A(5)`,
		20: `A(3) = 42`,
		30: `PRINT A(3)`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "42\n", io.Output.String())
}

func TestArrayAutoAllocatesWithoutDim(t *testing.T) {
	prog := build(t, map[int]string{
		10: `B(2) = 7`,
		20: `PRINT B(2)`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "7\n", io.Output.String())
}

func TestDimNegativeBoundClampsToZero(t *testing.T) {
	prog := build(t, map[int]string{
		10: `DIM A(-5)`,
		20: `A(0) = 9`,
		30: `PRINT A(0)`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "9\n", io.Output.String())
}

func TestRedimensioningIsAnError(t *testing.T) {
	prog := build(t, map[int]string{
		10: `DIM A(5)`,
		20: `DIM A(10)`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	err := rt.Run(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already dimensioned")
}

func TestReadDataAndRestore(t *testing.T) {
	prog := build(t, map[int]string{
		10: `READ A,B$`,
		20: `PRINT A;B$`,
		30: `RESTORE`,
		40: `READ C`,
		50: `PRINT C`,
		60: `DATA 5, "hi"`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "5hi\n5\n", io.Output.String())
}

func TestReadPastEndOfDataIsAnError(t *testing.T) {
	prog := build(t, map[int]string{
		10: `READ A`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	err := rt.Run(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Out of data")
}

func TestDefUserFunction(t *testing.T) {
	prog := build(t, map[int]string{
		10: `DEF FNSQ(X) = X*X`,
		20: `PRINT FNSQ(4)`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "16\n", io.Output.String())
}

func TestUserFunctionDoesNotLeakParamBinding(t *testing.T) {
	prog := build(t, map[int]string{
		10: `X = 99`,
		20: `DEF FNSQ(X) = X*X`,
		30: `Y = FNSQ(4)`,
		40: `PRINT X;Y`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "9916\n", io.Output.String())
}

func TestOpenOutputWritesToFile(t *testing.T) {
	prog := build(t, map[int]string{
		10: `OPEN "TEST.TXT" FOR OUTPUT AS #1`,
		20: `PRINT #1,"HELLO"`,
		30: `CLOSE #1`,
	})
	fs := testsupport.NewFakeFileSystem()
	rt := New(testsupport.NewFakeIO(), fs)
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "HELLO\n", fs.Files["TEST.TXT"].String())
}

func TestOpenInputReadsFromFile(t *testing.T) {
	prog := build(t, map[int]string{
		10: `OPEN "IN.TXT" FOR INPUT AS #1`,
		20: `INPUT #1,X`,
		30: `PRINT X`,
		40: `CLOSE #1`,
	})
	fs := testsupport.NewFakeFileSystem()
	fs.Seed("IN.TXT", "42\n")
	io := testsupport.NewFakeIO()
	rt := New(io, fs)
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "42\n", io.Output.String())
}

func TestRandomizeIsDeterministicForAGivenSeed(t *testing.T) {
	prog := build(t, map[int]string{
		10: `RANDOMIZE 42`,
		20: `X = RND(1)`,
		30: `PRINT X`,
	})
	io1 := testsupport.NewFakeIO()
	rt1 := New(io1, testsupport.NewFakeFileSystem())
	require.NoError(t, rt1.Run(prog))

	io2 := testsupport.NewFakeIO()
	rt2 := New(io2, testsupport.NewFakeFileSystem())
	require.NoError(t, rt2.Run(prog))

	require.Equal(t, io1.Output.String(), io2.Output.String())
}

func TestStopHaltsWithoutError(t *testing.T) {
	prog := build(t, map[int]string{
		10: `PRINT "A"`,
		20: `STOP`,
		30: `PRINT "B"`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "A\n", io.Output.String())
	require.True(t, rt.stoppedOnce)
}

func TestDivisionByZeroIsReported(t *testing.T) {
	prog := build(t, map[int]string{
		10: `X = 1/0`,
	})
	rt := New(testsupport.NewFakeIO(), testsupport.NewFakeFileSystem())
	err := rt.Run(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Division by zero")
	require.Contains(t, err.Error(), "Line 10")
}

func TestNextWithoutForIsAnError(t *testing.T) {
	prog := build(t, map[int]string{
		10: `NEXT`,
	})
	rt := New(testsupport.NewFakeIO(), testsupport.NewFakeFileSystem())
	err := rt.Run(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "NEXT without FOR")
}

func TestGotoUndefinedLineIsAnError(t *testing.T) {
	prog := build(t, map[int]string{
		10: `GOTO 999`,
	})
	rt := New(testsupport.NewFakeIO(), testsupport.NewFakeFileSystem())
	err := rt.Run(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Undefined line 999")
}

func TestClearResetsVariablesAndStacks(t *testing.T) {
	prog := build(t, map[int]string{
		10:  `X = 1`,
		20:  `GOSUB 100`,
		30:  `PRINT X`,
		40:  `END`,
		100: `CLEAR`,
		110: `RETURN`,
	})
	rt := New(testsupport.NewFakeIO(), testsupport.NewFakeFileSystem())
	err := rt.Run(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "RETURN without GOSUB")
}

func TestClearResetsDataPointerAndClosesChannels(t *testing.T) {
	prog := build(t, map[int]string{
		10: `OPEN "OUT.TXT" FOR OUTPUT AS #1`,
		20: `READ A`,
		30: `CLEAR`,
		40: `READ B`,
		50: `PRINT #1,B`,
		60: `DATA 1,2`,
	})
	fs := testsupport.NewFakeFileSystem()
	rt := New(testsupport.NewFakeIO(), fs)
	err := rt.Run(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not open for output")
}

func TestClearReseedsRNGToDefault(t *testing.T) {
	prog := build(t, map[int]string{
		10: `RANDOMIZE 42`,
		20: `X = RND(1)`,
		30: `CLEAR`,
		40: `Y = RND(1)`,
		50: `PRINT Y`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))

	fresh := build(t, map[int]string{
		10: `Y = RND(1)`,
		20: `PRINT Y`,
	})
	io2 := testsupport.NewFakeIO()
	rt2 := New(io2, testsupport.NewFakeFileSystem())
	require.NoError(t, rt2.Run(fresh))

	require.Equal(t, io2.Output.String(), io.Output.String())
}

func TestRunResetsVariablesOnEachCall(t *testing.T) {
	prog := build(t, map[int]string{
		10: `X = X + 1`,
		20: `PRINT X`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "1\n1\n", io.Output.String())
}

func TestForNextWithZeroStepDoesNotContinue(t *testing.T) {
	prog := build(t, map[int]string{
		10: `FOR I = 1 TO 5 STEP 0`,
		20: `PRINT I;`,
		30: `NEXT I`,
	})
	io := testsupport.NewFakeIO()
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "1", io.Output.String())
}

func TestInputConsoleRetriesSameTargetOnBadNumber(t *testing.T) {
	prog := build(t, map[int]string{
		10: `INPUT X`,
		20: `PRINT X`,
	})
	io := testsupport.NewFakeIO("nope", "5")
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "?Redo from start\n5\n", io.Output.String())
}

func TestInputConsoleWritesNoPromptWhenNoneGiven(t *testing.T) {
	prog := build(t, map[int]string{
		10: `INPUT X`,
	})
	io := testsupport.NewFakeIO("7")
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "", io.Output.String())
}

func TestInputConsoleWritesPromptWhenGiven(t *testing.T) {
	prog := build(t, map[int]string{
		10: `INPUT "AGE";A`,
	})
	io := testsupport.NewFakeIO("7")
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "AGE? ", io.Output.String())
}

func TestGetDrainsALineThenReturnsALineFeed(t *testing.T) {
	prog := build(t, map[int]string{
		10: `A = GET`,
		20: `B = GET`,
		30: `C = GET`,
		40: `PRINT A;B;C`,
	})
	io := testsupport.NewFakeIO("AB")
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "656610\n", io.Output.String())
}

func TestGetReadsANewLineOnceItsBufferIsEmpty(t *testing.T) {
	prog := build(t, map[int]string{
		10: `A = GET`,
		20: `B = GET`,
		30: `C = GET`,
		40: `PRINT A;B;C`,
	})
	io := testsupport.NewFakeIO("A", "B")
	rt := New(io, testsupport.NewFakeFileSystem())
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "651066\n", io.Output.String())
}

func TestInputFileReadsMultipleQuotedFieldsFromOneLine(t *testing.T) {
	prog := build(t, map[int]string{
		10: `OPEN "IN.TXT" FOR INPUT AS #1`,
		20: `INPUT #1,N$,A`,
		30: `PRINT N$;A`,
		40: `CLOSE #1`,
	})
	fs := testsupport.NewFakeFileSystem()
	fs.Seed("IN.TXT", `"Smith, J.",42`+"\n")
	io := testsupport.NewFakeIO()
	rt := New(io, fs)
	require.NoError(t, rt.Run(prog))
	require.Equal(t, "Smith, J.42\n", io.Output.String())
}

func TestInputFileBadNumberIsAHardError(t *testing.T) {
	prog := build(t, map[int]string{
		10: `OPEN "IN.TXT" FOR INPUT AS #1`,
		20: `INPUT #1,X`,
	})
	fs := testsupport.NewFakeFileSystem()
	fs.Seed("IN.TXT", "nope\n")
	rt := New(testsupport.NewFakeIO(), fs)
	err := rt.Run(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid numeric input")
}
