// Package ast defines the statement and expression node types produced by
// the parser. Nodes are inert data; all interpretation happens in the
// runtime package via type switches, not virtual dispatch on the nodes.
package ast

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mbasic/microbasic/token"
)

// Node is implemented by every statement and expression.
type Node interface {
	String() string
}

// Statement is implemented by every statement node.
type Statement interface {
	Node
	statementNode()
}

// Expression is implemented by every expression node.
type Expression interface {
	Node
	expressionNode()
}

// Target names a variable or array-element assignment/read destination.
// A Name ending in "$" is string-typed.
type Target struct {
	Name    string
	Indices []Expression
}

func (t *Target) String() string {
	if len(t.Indices) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Indices))
	for i, e := range t.Indices {
		parts[i] = e.String()
	}
	return fmt.Sprintf("%s(%s)", t.Name, strings.Join(parts, ","))
}

// ---- Expressions ----------------------------------------------------

// NumberLiteral is a parsed numeric constant.
type NumberLiteral struct {
	Value float64
}

func (n *NumberLiteral) expressionNode() {}
func (n *NumberLiteral) String() string  { return fmt.Sprintf("%v", n.Value) }

// StringLiteral is a parsed string constant.
type StringLiteral struct {
	Value string
}

func (s *StringLiteral) expressionNode() {}
func (s *StringLiteral) String() string  { return `"` + s.Value + `"` }

// Identifier is a bare variable reference (no parenthesized arguments).
type Identifier struct {
	Name string
}

func (i *Identifier) expressionNode() {}
func (i *Identifier) String() string  { return i.Name }

// ArrayRefExpression indexes an array variable.
type ArrayRefExpression struct {
	Name string
	Args []Expression
}

func (a *ArrayRefExpression) expressionNode() {}
func (a *ArrayRefExpression) String() string {
	return fmt.Sprintf("%s(%s)", a.Name, joinExprs(a.Args))
}

// CallExpression invokes a built-in function by name.
type CallExpression struct {
	Name string
	Args []Expression
}

func (c *CallExpression) expressionNode() {}
func (c *CallExpression) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, joinExprs(c.Args))
}

// UserCallExpression invokes a DEF-registered user function by name.
type UserCallExpression struct {
	Name string
	Args []Expression
}

func (u *UserCallExpression) expressionNode() {}
func (u *UserCallExpression) String() string {
	return fmt.Sprintf("%s(%s)", u.Name, joinExprs(u.Args))
}

// PrefixExpression is a unary operator applied to Right: -X, +X, NOT X.
type PrefixExpression struct {
	Op    token.Type
	Right Expression
}

func (p *PrefixExpression) expressionNode() {}
func (p *PrefixExpression) String() string  { return fmt.Sprintf("(%s%s)", p.Op, p.Right.String()) }

// InfixExpression is a binary operator applied to Left and Right.
type InfixExpression struct {
	Op    token.Type
	Left  Expression
	Right Expression
}

func (ie *InfixExpression) expressionNode() {}
func (ie *InfixExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", ie.Left.String(), ie.Op, ie.Right.String())
}

func joinExprs(args []Expression) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}

// ---- Statements -------------------------------------------------------

// RemStatement is a no-op comment.
type RemStatement struct {
	Text string
}

func (r *RemStatement) statementNode() {}
func (r *RemStatement) String() string { return "REM " + r.Text }

// AssignStatement stores Value into Target, with or without a leading LET.
type AssignStatement struct {
	Target *Target
	Value  Expression
}

func (a *AssignStatement) statementNode() {}
func (a *AssignStatement) String() string {
	return fmt.Sprintf("%s = %s", a.Target.String(), a.Value.String())
}

// PrintItem is one element of a PRINT statement's item list.
type PrintItem struct {
	Expr Expression // nil for a bare separator with nothing before it
	Sep  token.Type // token.COMMA, token.SEMICOLON, or "" if this is the last item
}

// PrintStatement writes items to the console or, if Channel is non-nil, to
// an open file channel.
type PrintStatement struct {
	Channel Expression
	Items   []PrintItem
}

func (p *PrintStatement) statementNode() {}
func (p *PrintStatement) String() string {
	var out bytes.Buffer
	out.WriteString("PRINT ")
	if p.Channel != nil {
		out.WriteString("#" + p.Channel.String() + ",")
	}
	for _, it := range p.Items {
		if it.Expr != nil {
			out.WriteString(it.Expr.String())
		}
		out.WriteString(string(it.Sep))
	}
	return out.String()
}

// SuppressesNewline reports whether the last item ends with , or ;.
func (p *PrintStatement) SuppressesNewline() bool {
	if len(p.Items) == 0 {
		return false
	}
	last := p.Items[len(p.Items)-1]
	return last.Sep == token.COMMA || last.Sep == token.SEMICOLON
}

// InputStatement reads one line of input per target.
type InputStatement struct {
	Prompt  *string
	Channel Expression
	Targets []*Target
}

func (in *InputStatement) statementNode() {}
func (in *InputStatement) String() string {
	var out bytes.Buffer
	out.WriteString("INPUT ")
	if in.Prompt != nil {
		out.WriteString(`"` + *in.Prompt + `";`)
	}
	names := make([]string, len(in.Targets))
	for i, t := range in.Targets {
		names[i] = t.String()
	}
	out.WriteString(strings.Join(names, ","))
	return out.String()
}

// ReadStatement consumes items from the DATA table into Targets.
type ReadStatement struct {
	Targets []*Target
}

func (r *ReadStatement) statementNode() {}
func (r *ReadStatement) String() string {
	names := make([]string, len(r.Targets))
	for i, t := range r.Targets {
		names[i] = t.String()
	}
	return "READ " + strings.Join(names, ",")
}

// DataItem is one literal in a DATA statement.
type DataItem struct {
	IsString bool
	Str      string
	Num      float64
}

// DataStatement holds a literal list collected into the DATA table at
// compile time.
type DataStatement struct {
	Items []DataItem
}

func (d *DataStatement) statementNode() {}
func (d *DataStatement) String() string {
	parts := make([]string, len(d.Items))
	for i, it := range d.Items {
		if it.IsString {
			parts[i] = `"` + it.Str + `"`
		} else {
			parts[i] = fmt.Sprintf("%v", it.Num)
		}
	}
	return "DATA " + strings.Join(parts, ",")
}

// IfStatement is IF Cond THEN Then [ELSE Else]. Then/Else hold parsed
// statement lists; ThenGoto/ElseGoto hold the target line number when a
// branch is bare-numeric sugar for GOTO.
type IfStatement struct {
	Cond     Expression
	Then     []Statement
	ThenGoto *int
	Else     []Statement
	ElseGoto *int
}

func (i *IfStatement) statementNode() {}
func (i *IfStatement) String() string {
	return fmt.Sprintf("IF %s THEN ...", i.Cond.String())
}

// OnStatement is ON expr GOTO|GOSUB line,line,...
type OnStatement struct {
	Selector Expression
	IsGosub  bool
	Targets  []Expression
}

func (o *OnStatement) statementNode() {}
func (o *OnStatement) String() string {
	kw := "GOTO"
	if o.IsGosub {
		kw = "GOSUB"
	}
	return fmt.Sprintf("ON %s %s %s", o.Selector.String(), kw, joinExprs(o.Targets))
}

// ForStatement opens a FOR/NEXT loop.
type ForStatement struct {
	Var   string
	Start Expression
	Limit Expression
	Step  Expression // never nil; defaults to NumberLiteral{1}
}

func (f *ForStatement) statementNode() {}
func (f *ForStatement) String() string {
	return fmt.Sprintf("FOR %s = %s TO %s STEP %s", f.Var, f.Start.String(), f.Limit.String(), f.Step.String())
}

// NextStatement closes the innermost (or named) FOR loop.
type NextStatement struct {
	Var     string
	HasName bool
}

func (n *NextStatement) statementNode() {}
func (n *NextStatement) String() string {
	if n.HasName {
		return "NEXT " + n.Var
	}
	return "NEXT"
}

// GotoStatement transfers control to a runtime-computed line number.
type GotoStatement struct {
	Target Expression
}

func (g *GotoStatement) statementNode() {}
func (g *GotoStatement) String() string { return "GOTO " + g.Target.String() }

// GosubStatement transfers control, pushing a return address.
type GosubStatement struct {
	Target Expression
}

func (g *GosubStatement) statementNode() {}
func (g *GosubStatement) String() string { return "GOSUB " + g.Target.String() }

// ReturnStatement pops the GOSUB return stack.
type ReturnStatement struct{}

func (r *ReturnStatement) statementNode() {}
func (r *ReturnStatement) String() string { return "RETURN" }

// EndStatement halts execution.
type EndStatement struct{}

func (e *EndStatement) statementNode() {}
func (e *EndStatement) String() string { return "END" }

// StopStatement halts execution (recorded distinctly from END for a
// future REPL's benefit; the core treats them identically).
type StopStatement struct{}

func (s *StopStatement) statementNode() {}
func (s *StopStatement) String() string { return "STOP" }

// ClearStatement resets runtime state.
type ClearStatement struct{}

func (c *ClearStatement) statementNode() {}
func (c *ClearStatement) String() string { return "CLEAR" }

// RestoreStatement resets the DATA pointer, optionally to a given line.
type RestoreStatement struct {
	Target Expression // nil resets to the start
}

func (r *RestoreStatement) statementNode() {}
func (r *RestoreStatement) String() string {
	if r.Target == nil {
		return "RESTORE"
	}
	return "RESTORE " + r.Target.String()
}

// RandomizeStatement reseeds the RNG, optionally from Seed.
type RandomizeStatement struct {
	Seed Expression // nil seeds from the clock
}

func (r *RandomizeStatement) statementNode() {}
func (r *RandomizeStatement) String() string {
	if r.Seed == nil {
		return "RANDOMIZE"
	}
	return "RANDOMIZE " + r.Seed.String()
}

// DimEntry declares one array's dimensions.
type DimEntry struct {
	Name string
	Dims []Expression
}

// DimStatement declares one or more arrays.
type DimStatement struct {
	Entries []DimEntry
}

func (d *DimStatement) statementNode() {}
func (d *DimStatement) String() string {
	parts := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		parts[i] = fmt.Sprintf("%s(%s)", e.Name, joinExprs(e.Dims))
	}
	return "DIM " + strings.Join(parts, ",")
}

// OpenStatement opens a channel for sequential I/O.
type OpenStatement struct {
	Path    Expression
	Mode    token.Type // token.INPUT, token.OUTPUT, or token.APPEND
	Channel Expression
}

func (o *OpenStatement) statementNode() {}
func (o *OpenStatement) String() string {
	return fmt.Sprintf("OPEN %s FOR %s AS #%s", o.Path.String(), o.Mode, o.Channel.String())
}

// CloseStatement closes channels, or all channels if Channels is empty.
type CloseStatement struct {
	Channels []Expression
}

func (c *CloseStatement) statementNode() {}
func (c *CloseStatement) String() string { return "CLOSE " + joinExprs(c.Channels) }

// DefStatement registers a user function: DEF name(params) = body.
type DefStatement struct {
	Name   string
	Params []string
	Body   Expression
}

func (d *DefStatement) statementNode() {}
func (d *DefStatement) String() string {
	return fmt.Sprintf("DEF %s(%s) = %s", d.Name, strings.Join(d.Params, ","), d.Body.String())
}
