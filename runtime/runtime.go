// Package runtime executes a compiled program. It owns every piece of
// mutable interpreter state — variables, the GOSUB and FOR stacks, the
// DATA cursor, open channels, and the RNG — behind a single Runtime,
// the way the teacher's evaluator bundles its object.Environment.
// Interpretation is a type switch over ast nodes, not virtual dispatch.
package runtime

import (
	"bufio"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/mbasic/microbasic/ast"
	"github.com/mbasic/microbasic/berrors"
	"github.com/mbasic/microbasic/program"
	"github.com/mbasic/microbasic/token"
	"github.com/mbasic/microbasic/value"
)

// defaultRNGSeed is the fixed seed CLEAR and a fresh Runtime both reseed
// from, giving a repeatable default sequence until RANDOMIZE reseeds it.
const defaultRNGSeed = 1

// dataEntry is one literal collected from every DATA statement in the
// program, in line order, forming the single cursor READ walks.
type dataEntry struct {
	LineNumber int
	IsString   bool
	Str        string
	Num        float64
}

type forFrame struct {
	Var    string
	Limit  value.Value
	Step   value.Value
	BodyPC program.PC
}

// Runtime holds all state for one running program.
type Runtime struct {
	io  LineIO
	fs  FileSystem
	vars *vars

	gosubStack []program.PC
	forStack   []forFrame

	data    []dataEntry
	dataPos int

	userFuncs map[string]*ast.DefStatement
	channels  map[int]*channel

	rng *rand.Rand

	prog        *program.Compiled
	lastStopPC  program.PC
	stoppedOnce bool

	// pendingChars holds console input GET() has read a line ahead of;
	// it is drained one byte at a time and refilled from io.ReadLine
	// (with a trailing "\n" appended) when empty.
	pendingChars string
}

// New builds a Runtime bound to io for console interaction and fs for
// OPEN's sequential file access.
func New(io LineIO, fs FileSystem) *Runtime {
	return &Runtime{
		io:        io,
		fs:        fs,
		vars:      newVars(),
		userFuncs: map[string]*ast.DefStatement{},
		channels:  map[int]*channel{},
		rng:       rand.New(rand.NewSource(defaultRNGSeed)),
	}
}

// ctrlKind classifies what a statement asked the executor to do next.
type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlJump
	ctrlEnd
	ctrlStop
)

type control struct {
	kind ctrlKind
	jump program.PC
}

// Run executes prog from its first line to completion: an END
// statement, a STOP statement, or falling off the last line. Variable
// and array storage is reset on every call, and every channel left
// open when the program stops is closed before Run returns.
func (rt *Runtime) Run(prog *program.Compiled) error {
	rt.prog = prog
	rt.vars.Clear()
	rt.gosubStack = nil
	rt.forStack = nil
	rt.loadData(prog)
	defer func() {
		for n, ch := range rt.channels {
			closeChannel(ch)
			delete(rt.channels, n)
		}
	}()
	pc, ok := prog.First()
	if !ok {
		return nil
	}
	for {
		if pc.Line >= len(prog.Lines) {
			return nil
		}
		stmt := prog.StatementAt(pc)
		next, hasNext := prog.Next(pc)
		ctl, err := rt.exec(stmt, next)
		if err != nil {
			return berrors.WithLine(err, prog.LineNumberAt(pc.Line))
		}
		switch ctl.kind {
		case ctrlEnd:
			return nil
		case ctrlStop:
			rt.lastStopPC = pc
			rt.stoppedOnce = true
			return nil
		case ctrlJump:
			pc = ctl.jump
		default:
			if !hasNext {
				return nil
			}
			pc = next
		}
	}
}

func (rt *Runtime) loadData(prog *program.Compiled) {
	rt.data = nil
	for _, l := range prog.Lines {
		for _, stmt := range l.Stmts {
			if d, ok := stmt.(*ast.DataStatement); ok {
				for _, it := range d.Items {
					rt.data = append(rt.data, dataEntry{
						LineNumber: l.Number,
						IsString:   it.IsString,
						Str:        it.Str,
						Num:        it.Num,
					})
				}
			}
		}
	}
	rt.dataPos = 0
}

func (rt *Runtime) exec(stmt ast.Statement, next program.PC) (control, error) {
	switch s := stmt.(type) {
	case *ast.RemStatement:
		return control{}, nil
	case *ast.AssignStatement:
		return control{}, rt.execAssign(s)
	case *ast.PrintStatement:
		return control{}, rt.execPrint(s)
	case *ast.InputStatement:
		return control{}, rt.execInput(s)
	case *ast.ReadStatement:
		return control{}, rt.execRead(s)
	case *ast.DataStatement:
		return control{}, nil
	case *ast.IfStatement:
		return rt.execIf(s, next)
	case *ast.OnStatement:
		return rt.execOn(s, next)
	case *ast.ForStatement:
		return control{}, rt.execFor(s, next)
	case *ast.NextStatement:
		return rt.execNext(s)
	case *ast.GotoStatement:
		pc, err := rt.execGoto(s)
		if err != nil {
			return control{}, err
		}
		return control{kind: ctrlJump, jump: pc}, nil
	case *ast.GosubStatement:
		pc, err := rt.execGosub(s, next)
		if err != nil {
			return control{}, err
		}
		return control{kind: ctrlJump, jump: pc}, nil
	case *ast.ReturnStatement:
		pc, err := rt.execReturn()
		if err != nil {
			return control{}, err
		}
		return control{kind: ctrlJump, jump: pc}, nil
	case *ast.EndStatement:
		return control{kind: ctrlEnd}, nil
	case *ast.StopStatement:
		return control{kind: ctrlStop}, nil
	case *ast.ClearStatement:
		rt.vars.Clear()
		rt.gosubStack = nil
		rt.forStack = nil
		rt.dataPos = 0
		rt.rng = rand.New(rand.NewSource(defaultRNGSeed))
		for n, ch := range rt.channels {
			closeChannel(ch)
			delete(rt.channels, n)
		}
		return control{}, nil
	case *ast.RestoreStatement:
		return control{}, rt.execRestore(s)
	case *ast.RandomizeStatement:
		return control{}, rt.execRandomize(s)
	case *ast.DimStatement:
		return control{}, rt.execDim(s)
	case *ast.OpenStatement:
		return control{}, rt.execOpen(s)
	case *ast.CloseStatement:
		return control{}, rt.execClose(s)
	case *ast.DefStatement:
		rt.userFuncs[s.Name] = s
		return control{}, nil
	default:
		return control{}, berrors.NewRuntime("Cannot execute statement")
	}
}

func (rt *Runtime) execList(stmts []ast.Statement, next program.PC) (control, error) {
	for _, st := range stmts {
		ctl, err := rt.exec(st, next)
		if err != nil {
			return control{}, err
		}
		if ctl.kind != ctrlNone {
			return ctl, nil
		}
	}
	return control{}, nil
}

func (rt *Runtime) execIf(s *ast.IfStatement, next program.PC) (control, error) {
	cond, err := rt.eval(s.Cond)
	if err != nil {
		return control{}, err
	}
	if cond.Truthy() {
		if s.ThenGoto != nil {
			pc, err := rt.prog.Jump(*s.ThenGoto)
			if err != nil {
				return control{}, err
			}
			return control{kind: ctrlJump, jump: pc}, nil
		}
		return rt.execList(s.Then, next)
	}
	if s.ElseGoto != nil {
		pc, err := rt.prog.Jump(*s.ElseGoto)
		if err != nil {
			return control{}, err
		}
		return control{kind: ctrlJump, jump: pc}, nil
	}
	return rt.execList(s.Else, next)
}

func (rt *Runtime) execOn(s *ast.OnStatement, next program.PC) (control, error) {
	v, err := rt.eval(s.Selector)
	if err != nil {
		return control{}, err
	}
	n := int(v.AsInt32())
	if n < 1 || n > len(s.Targets) {
		return control{}, nil
	}
	tv, err := rt.eval(s.Targets[n-1])
	if err != nil {
		return control{}, err
	}
	pc, err := rt.prog.Jump(int(tv.AsInt32()))
	if err != nil {
		return control{}, err
	}
	if s.IsGosub {
		rt.gosubStack = append(rt.gosubStack, next)
	}
	return control{kind: ctrlJump, jump: pc}, nil
}

func (rt *Runtime) execAssign(s *ast.AssignStatement) error {
	v, err := rt.eval(s.Value)
	if err != nil {
		return err
	}
	return rt.assign(s.Target, v)
}

func (rt *Runtime) assign(t *ast.Target, v value.Value) error {
	if len(t.Indices) == 0 {
		rt.vars.Set(t.Name, v)
		return nil
	}
	idx, err := rt.evalIndices(t.Indices)
	if err != nil {
		return err
	}
	return rt.vars.SetIndexed(t.Name, idx, v)
}

func (rt *Runtime) execFor(s *ast.ForStatement, bodyPC program.PC) error {
	start, err := rt.eval(s.Start)
	if err != nil {
		return err
	}
	limit, err := rt.eval(s.Limit)
	if err != nil {
		return err
	}
	step, err := rt.eval(s.Step)
	if err != nil {
		return err
	}
	rt.vars.Set(s.Var, start)
	rt.forStack = append(rt.forStack, forFrame{Var: s.Var, Limit: limit, Step: step, BodyPC: bodyPC})
	return nil
}

func (rt *Runtime) execNext(s *ast.NextStatement) (control, error) {
	if len(rt.forStack) == 0 {
		return control{}, berrors.NextWithoutFor()
	}
	idx := len(rt.forStack) - 1
	if s.HasName {
		found := -1
		for i := len(rt.forStack) - 1; i >= 0; i-- {
			if rt.forStack[i].Var == s.Var {
				found = i
				break
			}
		}
		if found == -1 {
			return control{}, berrors.NextWithoutMatchingFor()
		}
		idx = found
	}
	frame := rt.forStack[idx]
	rt.forStack = rt.forStack[:idx]

	next := value.Number(rt.vars.Get(frame.Var).AsNumber() + frame.Step.AsNumber())
	rt.vars.Set(frame.Var, next)

	stepVal := frame.Step.AsNumber()
	limitVal := frame.Limit.AsNumber()
	nextVal := next.AsNumber()
	var continues bool
	switch {
	case stepVal == 0:
		continues = false
	case stepVal > 0:
		continues = nextVal <= limitVal+value.Epsilon
	default:
		continues = nextVal >= limitVal-value.Epsilon
	}
	if continues {
		rt.forStack = append(rt.forStack, frame)
		return control{kind: ctrlJump, jump: frame.BodyPC}, nil
	}
	return control{}, nil
}

func (rt *Runtime) execGoto(s *ast.GotoStatement) (program.PC, error) {
	v, err := rt.eval(s.Target)
	if err != nil {
		return program.PC{}, err
	}
	return rt.prog.Jump(int(v.AsInt32()))
}

func (rt *Runtime) execGosub(s *ast.GosubStatement, returnPC program.PC) (program.PC, error) {
	v, err := rt.eval(s.Target)
	if err != nil {
		return program.PC{}, err
	}
	pc, err := rt.prog.Jump(int(v.AsInt32()))
	if err != nil {
		return program.PC{}, err
	}
	rt.gosubStack = append(rt.gosubStack, returnPC)
	return pc, nil
}

func (rt *Runtime) execReturn() (program.PC, error) {
	if len(rt.gosubStack) == 0 {
		return program.PC{}, berrors.ReturnWithoutGosub()
	}
	pc := rt.gosubStack[len(rt.gosubStack)-1]
	rt.gosubStack = rt.gosubStack[:len(rt.gosubStack)-1]
	return pc, nil
}

func (rt *Runtime) execRestore(s *ast.RestoreStatement) error {
	if s.Target == nil {
		rt.dataPos = 0
		return nil
	}
	v, err := rt.eval(s.Target)
	if err != nil {
		return err
	}
	target := int(v.AsInt32())
	pos := len(rt.data)
	for i, d := range rt.data {
		if d.LineNumber >= target {
			pos = i
			break
		}
	}
	rt.dataPos = pos
	return nil
}

func (rt *Runtime) execRandomize(s *ast.RandomizeStatement) error {
	var seed int64
	if s.Seed == nil {
		seed = time.Now().UnixNano()
	} else {
		v, err := rt.eval(s.Seed)
		if err != nil {
			return err
		}
		seed = int64(math.Round(v.AsNumber()))
	}
	rt.rng = rand.New(rand.NewSource(seed))
	return nil
}

func (rt *Runtime) execDim(s *ast.DimStatement) error {
	for _, e := range s.Entries {
		dims := make([]int, len(e.Dims))
		for i, d := range e.Dims {
			v, err := rt.eval(d)
			if err != nil {
				return err
			}
			n := int(v.AsInt32())
			if n < 0 {
				n = 0
			}
			dims[i] = n + 1
		}
		if err := rt.vars.Dim(e.Name, dims); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) execRead(s *ast.ReadStatement) error {
	for _, t := range s.Targets {
		if rt.dataPos >= len(rt.data) {
			return berrors.OutOfData()
		}
		item := rt.data[rt.dataPos]
		rt.dataPos++
		v := readDataAs(t.Name, item)
		if err := rt.assign(t, v); err != nil {
			return err
		}
	}
	return nil
}

func readDataAs(name string, item dataEntry) value.Value {
	if isStringName(name) {
		if item.IsString {
			return value.Text(item.Str)
		}
		return value.Text(value.Number(item.Num).AsString())
	}
	if item.IsString {
		return value.Number(value.Text(item.Str).AsNumber())
	}
	return value.Number(item.Num)
}

func (rt *Runtime) execPrint(s *ast.PrintStatement) error {
	toFile := s.Channel != nil
	var sb strings.Builder
	for _, item := range s.Items {
		if item.Expr != nil {
			v, err := rt.eval(item.Expr)
			if err != nil {
				return err
			}
			sb.WriteString(v.ToPrintString())
		}
		if item.Sep == token.COMMA {
			if toFile {
				sb.WriteString(",")
			} else {
				sb.WriteString("\t")
			}
		}
	}
	newline := !s.SuppressesNewline()
	out := sb.String()
	if toFile {
		if newline {
			out += "\n"
		}
		ch, err := rt.channelFor(s.Channel, token.OUTPUT)
		if err != nil {
			return err
		}
		_, err = ch.w.Write([]byte(out))
		return err
	}
	if newline {
		return rt.io.Println(out)
	}
	return rt.io.Print(out)
}

func (rt *Runtime) execInput(s *ast.InputStatement) error {
	if s.Channel != nil {
		return rt.execInputFile(s)
	}
	return rt.execInputConsole(s)
}

// execInputConsole reads one line per target. A prompt is written only
// when the statement supplies one; a numeric parse failure retries the
// same target from a freshly read line rather than aborting the
// statement.
func (rt *Runtime) execInputConsole(s *ast.InputStatement) error {
	if s.Prompt != nil {
		if err := rt.io.Print(*s.Prompt + "? "); err != nil {
			return err
		}
	}
	for _, t := range s.Targets {
		for {
			line, err := rt.io.ReadLine()
			if err != nil {
				return berrors.InputEndOfStream()
			}
			line = strings.TrimSpace(line)
			if isStringName(t.Name) {
				if err := rt.assign(t, value.Text(line)); err != nil {
					return err
				}
				break
			}
			f, perr := strconv.ParseFloat(line, 64)
			if perr != nil {
				if err := rt.io.Println("?Redo from start"); err != nil {
					return err
				}
				continue
			}
			if err := rt.assign(t, value.Number(f)); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// execInputFile draws each target from the channel's pending-fields
// queue, refilling it by reading and splitting the next line. A
// numeric parse failure on a file field is a hard error, unlike the
// console's retry.
func (rt *Runtime) execInputFile(s *ast.InputStatement) error {
	ch, err := rt.channelFor(s.Channel, token.INPUT)
	if err != nil {
		return err
	}
	for _, t := range s.Targets {
		raw, ferr := rt.nextField(ch, s.Channel)
		if ferr != nil {
			return ferr
		}
		if isStringName(t.Name) {
			if err := rt.assign(t, value.Text(raw)); err != nil {
				return err
			}
			continue
		}
		f, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return berrors.InvalidNumericInput(raw)
		}
		if err := rt.assign(t, value.Number(f)); err != nil {
			return err
		}
	}
	return nil
}

// nextField pops the next queued field for ch, refilling the queue by
// reading and splitting another line when it runs dry.
func (rt *Runtime) nextField(ch *channel, chanExpr ast.Expression) (string, error) {
	for len(ch.fields) == 0 {
		line, err := ch.r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" && err != nil {
			v, everr := rt.eval(chanExpr)
			if everr != nil {
				return "", everr
			}
			return "", berrors.EndOfFileOnChannel(int(v.AsInt32()))
		}
		ch.fields = splitFields(line)
	}
	f := ch.fields[0]
	ch.fields = ch.fields[1:]
	return f, nil
}

func (rt *Runtime) execOpen(s *ast.OpenStatement) error {
	pathVal, err := rt.eval(s.Path)
	if err != nil {
		return err
	}
	chVal, err := rt.eval(s.Channel)
	if err != nil {
		return err
	}
	n := int(chVal.AsInt32())
	path := pathVal.AsString()

	ch := &channel{mode: s.Mode}
	switch s.Mode {
	case token.OUTPUT:
		w, oerr := rt.fs.OpenForOutput(path)
		if oerr != nil {
			return berrors.NewRuntime("%s", oerr.Error())
		}
		ch.w = w
	case token.APPEND:
		w, oerr := rt.fs.OpenForAppend(path)
		if oerr != nil {
			return berrors.NewRuntime("%s", oerr.Error())
		}
		ch.w = w
	case token.INPUT:
		r, oerr := rt.fs.OpenForInput(path)
		if oerr != nil {
			return berrors.NewRuntime("%s", oerr.Error())
		}
		ch.rc = r
		ch.r = bufio.NewReader(r)
	}
	if old, ok := rt.channels[n]; ok {
		closeChannel(old)
	}
	rt.channels[n] = ch
	return nil
}

func (rt *Runtime) execClose(s *ast.CloseStatement) error {
	if len(s.Channels) == 0 {
		for n, ch := range rt.channels {
			closeChannel(ch)
			delete(rt.channels, n)
		}
		return nil
	}
	for _, e := range s.Channels {
		v, err := rt.eval(e)
		if err != nil {
			return err
		}
		n := int(v.AsInt32())
		if ch, ok := rt.channels[n]; ok {
			closeChannel(ch)
			delete(rt.channels, n)
		}
	}
	return nil
}

func (rt *Runtime) channelFor(expr ast.Expression, want token.Type) (*channel, error) {
	v, err := rt.eval(expr)
	if err != nil {
		return nil, err
	}
	n := int(v.AsInt32())
	ch, ok := rt.channels[n]
	if !ok {
		if want == token.INPUT {
			return nil, berrors.FileNotOpenForInput(n)
		}
		return nil, berrors.FileNotOpenForOutput(n)
	}
	if want == token.INPUT {
		if ch.mode != token.INPUT {
			return nil, berrors.FileNotOpenForInput(n)
		}
	} else if ch.mode != token.OUTPUT && ch.mode != token.APPEND {
		return nil, berrors.FileNotOpenForOutput(n)
	}
	return ch, nil
}

// NextRandom implements builtins.Host: a negative x reseeds the
// sequence with its absolute value before drawing; any other x
// (including no argument, which arrives as 1) draws the next uniform
// value in [0,1).
func (rt *Runtime) NextRandom(x float64) float64 {
	if x < 0 {
		rt.rng = rand.New(rand.NewSource(int64(math.Abs(x))))
	}
	return rt.rng.Float64()
}

// ReadChar implements builtins.Host for GET(): it returns the next
// buffered console character, reading a whole line and appending a "\n"
// to it when the buffer runs dry.
func (rt *Runtime) ReadChar() (string, error) {
	if rt.pendingChars == "" {
		line, err := rt.io.ReadLine()
		if err != nil {
			return "", err
		}
		rt.pendingChars = line + "\n"
	}
	c := rt.pendingChars[:1]
	rt.pendingChars = rt.pendingChars[1:]
	return c, nil
}
