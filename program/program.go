// Package program holds a BASIC program's source lines and compiles
// them into an ordered, parsed form the runtime can execute. Line
// storage is a B-tree keyed by line number (github.com/google/btree)
// so ascending iteration and edit-in-place both stay cheap as programs
// grow, rather than a bare map with a sort on every compile.
package program

import (
	"strings"

	"github.com/google/btree"
	"github.com/mbasic/microbasic/ast"
	"github.com/mbasic/microbasic/berrors"
	"github.com/mbasic/microbasic/parser"
)

// LineSource is one stored source line, keyed for the B-tree by Number.
type LineSource struct {
	Number int
	Source string
}

// Less implements btree.Item.
func (l LineSource) Less(than btree.Item) bool {
	return l.Number < than.(LineSource).Number
}

// Store holds a program's uncompiled source, ordered by line number.
type Store struct {
	tree *btree.BTree
}

// NewStore returns an empty line store.
func NewStore() *Store {
	return &Store{tree: btree.New(32)}
}

// SetLine stores source under line number n, replacing any existing
// text for that line. A blank or whitespace-only source deletes the
// line instead, matching direct-mode "type a line number alone".
func (s *Store) SetLine(n int, source string) {
	if strings.TrimSpace(source) == "" {
		s.tree.Delete(LineSource{Number: n})
		return
	}
	s.tree.ReplaceOrInsert(LineSource{Number: n, Source: source})
}

// Clear empties the store, as NEW does.
func (s *Store) Clear() {
	s.tree = btree.New(32)
}

// Len reports how many lines are stored.
func (s *Store) Len() int { return s.tree.Len() }

// Lines returns every stored line in ascending line-number order.
func (s *Store) Lines() []LineSource {
	out := make([]LineSource, 0, s.tree.Len())
	s.tree.Ascend(func(item btree.Item) bool {
		out = append(out, item.(LineSource))
		return true
	})
	return out
}

// CompiledLine is one source line after parsing.
type CompiledLine struct {
	Number int
	Stmts  []ast.Statement
}

// Compiled is the ordered, parsed form of a Store, ready to execute.
type Compiled struct {
	Lines []CompiledLine
	index map[int]int
}

// Compile parses every line in s, in ascending order, sharing reg (so a
// DEF on one line is visible when a later line is parsed). A parse
// failure is wrapped with the offending source line number.
func Compile(s *Store, reg *parser.Registry) (*Compiled, error) {
	lines := s.Lines()
	c := &Compiled{
		Lines: make([]CompiledLine, 0, len(lines)),
		index: make(map[int]int, len(lines)),
	}
	for _, l := range lines {
		stmts, err := parser.ParseLine(reg, l.Source)
		if err != nil {
			return nil, berrors.WithLine(err, l.Number)
		}
		c.index[l.Number] = len(c.Lines)
		c.Lines = append(c.Lines, CompiledLine{Number: l.Number, Stmts: stmts})
	}
	return c, nil
}

// PC addresses one statement: Line is a position in Compiled.Lines (not
// a source line number), Stmt is the statement's index within it.
type PC struct {
	Line int
	Stmt int
}

// PositionOf returns the Lines index holding source line number n.
func (c *Compiled) PositionOf(n int) (int, bool) {
	pos, ok := c.index[n]
	return pos, ok
}

// LineNumberAt returns the source line number at Lines[pos].
func (c *Compiled) LineNumberAt(pos int) int {
	return c.Lines[pos].Number
}

// Jump builds a PC at the first executable statement at or after source
// line n, skipping lines that compiled to zero statements the same way
// Next does (a bare ":" line, say). If n and every line after it are
// empty, it returns a PC one past the end of the program: Run treats
// that the same as falling off the last line, ending the program.
func (c *Compiled) Jump(n int) (PC, error) {
	pos, ok := c.index[n]
	if !ok {
		return PC{}, berrors.UndefinedLine(n)
	}
	for pos < len(c.Lines) && len(c.Lines[pos].Stmts) == 0 {
		pos++
	}
	return PC{Line: pos, Stmt: 0}, nil
}

// Next advances pc to the following statement, falling through to the
// next non-empty line when the current one is exhausted. ok is false
// once the program has run off the end, the natural end reached by
// falling off the last line without an END.
func (c *Compiled) Next(pc PC) (PC, bool) {
	if pc.Line >= len(c.Lines) {
		return pc, false
	}
	if pc.Stmt+1 < len(c.Lines[pc.Line].Stmts) {
		return PC{Line: pc.Line, Stmt: pc.Stmt + 1}, true
	}
	next := pc.Line + 1
	for next < len(c.Lines) && len(c.Lines[next].Stmts) == 0 {
		next++
	}
	if next >= len(c.Lines) {
		return pc, false
	}
	return PC{Line: next, Stmt: 0}, true
}

// StatementAt returns the statement pc addresses.
func (c *Compiled) StatementAt(pc PC) ast.Statement {
	return c.Lines[pc.Line].Stmts[pc.Stmt]
}

// First returns the PC of the program's first executable statement,
// skipping any leading lines with none (a bare ":", say). ok is false
// for a program with
// no executable statements anywhere.
func (c *Compiled) First() (PC, bool) {
	for i, l := range c.Lines {
		if len(l.Stmts) > 0 {
			return PC{Line: i, Stmt: 0}, true
		}
	}
	return PC{}, false
}
