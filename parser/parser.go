// Package parser turns a tokenized source line into a statement list.
// It is a precedence-climbing (Pratt-style) expression parser paired
// with a hand-written statement dispatcher keyed on the leading token,
// matching the shape of the teacher's original parser without any of
// its GW-BASIC type-suffix machinery.
package parser

import (
	"strconv"
	"strings"

	"github.com/mbasic/microbasic/ast"
	"github.com/mbasic/microbasic/berrors"
	"github.com/mbasic/microbasic/builtins"
	"github.com/mbasic/microbasic/lexer"
	"github.com/mbasic/microbasic/token"
)

// Precedence levels, larger binds tighter. AND/OR sit below the
// comparison operators; ^ and unary +/- sit above everything, with NOT
// one level below them.
const (
	lowest      = 0
	levelOr     = 2
	levelAnd    = 3
	levelCmp    = 4
	levelAdd    = 5
	levelMul    = 6
	levelPow    = 7
)

var precedences = map[token.Type]int{
	token.OR:     levelOr,
	token.AND:    levelAnd,
	token.ASSIGN: levelCmp,
	token.NE:     levelCmp,
	token.LT:     levelCmp,
	token.LE:     levelCmp,
	token.GT:     levelCmp,
	token.GE:     levelCmp,
	token.PLUS:   levelAdd,
	token.MINUS:  levelAdd,
	token.STAR:   levelMul,
	token.SLASH:  levelMul,
	token.CARET:  levelPow,
}

// Registry remembers which names DEF has declared as user functions, so
// later lines can tell a user call apart from an array reference. It is
// shared across every line of a program and outlives any one Parser.
type Registry struct {
	userFuncs map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{userFuncs: map[string]bool{}}
}

// Reset clears the registry, as NEW does.
func (r *Registry) Reset() {
	r.userFuncs = map[string]bool{}
}

// Declare records name as a user function.
func (r *Registry) Declare(name string) {
	r.userFuncs[name] = true
}

// IsUserFunc reports whether name was declared with DEF.
func (r *Registry) IsUserFunc(name string) bool {
	return r.userFuncs[name]
}

// Parser holds one line's token stream and the shared function registry.
type Parser struct {
	toks []token.Token
	pos  int
	reg  *Registry
}

// New builds a Parser over an already-tokenized line.
func New(reg *Registry, toks []token.Token) *Parser {
	return &Parser{toks: toks, reg: reg}
}

// ParseLine tokenizes src and parses it into a statement list, sharing
// reg with every other line compiled against the same program.
func ParseLine(reg *Registry, src string) ([]ast.Statement, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, berrors.NewSyntax("%s", err.Error())
	}
	p := New(reg, toks)
	return p.ParseStatements()
}

// ParseStatements parses the colon-separated statement list that makes
// up the whole line. A leading, trailing, or doubled colon is allowed
// and simply yields no statement for that slot.
func (p *Parser) ParseStatements() ([]ast.Statement, error) {
	var stmts []ast.Statement
	for {
		for p.curIs(token.COLON) {
			p.advance()
		}
		if p.curIs(token.EOF) {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		if p.curIs(token.EOF) {
			break
		}
		if !p.curIs(token.COLON) {
			return nil, berrors.NewSyntax("Syntax error")
		}
	}
	return stmts, nil
}

// ---- token stream helpers ----------------------------------------

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos+1]
}

func (p *Parser) curIs(t token.Type) bool  { return p.cur().Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peek().Type == t }

func (p *Parser) advance() {
	if p.pos < len(p.toks) {
		p.pos++
	}
}

func (p *Parser) expect(t token.Type) error {
	if !p.curIs(t) {
		return berrors.NewSyntax("Syntax error")
	}
	p.advance()
	return nil
}

func withEOF(toks []token.Token) []token.Token {
	out := make([]token.Token, len(toks)+1)
	copy(out, toks)
	out[len(toks)] = token.Token{Type: token.EOF}
	return out
}

func parseNumberLiteral(lit string) (float64, error) {
	norm := strings.NewReplacer("D", "E", "d", "E").Replace(lit)
	f, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, berrors.NewSyntax("Syntax error")
	}
	return f, nil
}

// ---- statement dispatch --------------------------------------------

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur().Type {
	case token.REM:
		return p.parseRem()
	case token.PRINT:
		return p.parsePrint()
	case token.INPUT:
		return p.parseInput()
	case token.READ:
		return p.parseRead()
	case token.DATA:
		return p.parseData()
	case token.IF:
		return p.parseIf()
	case token.ON:
		return p.parseOn()
	case token.FOR:
		return p.parseFor()
	case token.NEXT:
		return p.parseNext()
	case token.GOTO:
		return p.parseGoto()
	case token.GOSUB:
		return p.parseGosub()
	case token.RETURN:
		p.advance()
		return &ast.ReturnStatement{}, nil
	case token.END:
		p.advance()
		return &ast.EndStatement{}, nil
	case token.STOP:
		p.advance()
		return &ast.StopStatement{}, nil
	case token.CLEAR:
		p.advance()
		return &ast.ClearStatement{}, nil
	case token.RESTORE:
		return p.parseRestore()
	case token.RANDOMIZE:
		return p.parseRandomize()
	case token.DIM:
		return p.parseDim()
	case token.OPEN:
		return p.parseOpen()
	case token.CLOSE:
		return p.parseClose()
	case token.DEF:
		return p.parseDef()
	case token.LET:
		p.advance()
		return p.parseAssignment()
	case token.IDENT:
		return p.parseAssignment()
	default:
		return nil, berrors.NewSyntax("Syntax error")
	}
}

func (p *Parser) parseRem() (ast.Statement, error) {
	p.advance()
	var parts []string
	for !p.curIs(token.EOF) {
		parts = append(parts, p.cur().Literal)
		p.advance()
	}
	return &ast.RemStatement{Text: strings.Join(parts, " ")}, nil
}

func (p *Parser) parseAssignment() (ast.Statement, error) {
	if !p.curIs(token.IDENT) {
		return nil, berrors.NewSyntax("Syntax error")
	}
	name := p.cur().Literal
	p.advance()
	var indices []ast.Expression
	if p.curIs(token.LPAREN) {
		p.advance()
		idx, err := p.parseExprList(token.RPAREN)
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		indices = idx
	}
	if err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	return &ast.AssignStatement{Target: &ast.Target{Name: name, Indices: indices}, Value: val}, nil
}

func (p *Parser) parseTarget() (*ast.Target, error) {
	if !p.curIs(token.IDENT) {
		return nil, berrors.NewSyntax("Syntax error")
	}
	name := p.cur().Literal
	p.advance()
	var idx []ast.Expression
	if p.curIs(token.LPAREN) {
		p.advance()
		list, err := p.parseExprList(token.RPAREN)
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		idx = list
	}
	return &ast.Target{Name: name, Indices: idx}, nil
}

func (p *Parser) parsePrint() (ast.Statement, error) {
	p.advance()
	stmt := &ast.PrintStatement{}
	if p.curIs(token.HASH) {
		p.advance()
		ch, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		stmt.Channel = ch
		if err := p.expect(token.COMMA); err != nil {
			return nil, err
		}
	}
	for !p.curIs(token.EOF) && !p.curIs(token.COLON) {
		var item ast.PrintItem
		if !p.curIs(token.COMMA) && !p.curIs(token.SEMICOLON) {
			e, err := p.parseExpression(lowest)
			if err != nil {
				return nil, err
			}
			item.Expr = e
		}
		if p.curIs(token.COMMA) || p.curIs(token.SEMICOLON) {
			item.Sep = p.cur().Type
			p.advance()
		}
		stmt.Items = append(stmt.Items, item)
		if item.Sep == "" {
			break
		}
	}
	return stmt, nil
}

func (p *Parser) parseInput() (ast.Statement, error) {
	p.advance()
	stmt := &ast.InputStatement{}
	if p.curIs(token.STRING) && p.peekIs(token.SEMICOLON) {
		s := p.cur().Literal
		stmt.Prompt = &s
		p.advance()
		p.advance()
	}
	if p.curIs(token.HASH) {
		p.advance()
		ch, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		stmt.Channel = ch
		if err := p.expect(token.COMMA); err != nil {
			return nil, err
		}
	}
	for {
		t, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		stmt.Targets = append(stmt.Targets, t)
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *Parser) parseRead() (ast.Statement, error) {
	p.advance()
	stmt := &ast.ReadStatement{}
	for {
		t, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		stmt.Targets = append(stmt.Targets, t)
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *Parser) parseData() (ast.Statement, error) {
	p.advance()
	stmt := &ast.DataStatement{}
	for {
		item, err := p.parseDataItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *Parser) parseDataItem() (ast.DataItem, error) {
	neg := false
	if p.curIs(token.MINUS) {
		neg = true
		p.advance()
	} else if p.curIs(token.PLUS) {
		p.advance()
	}
	switch p.cur().Type {
	case token.STRING:
		s := p.cur().Literal
		p.advance()
		return ast.DataItem{IsString: true, Str: s}, nil
	case token.NUMBER:
		f, err := parseNumberLiteral(p.cur().Literal)
		if err != nil {
			return ast.DataItem{}, err
		}
		p.advance()
		if neg {
			f = -f
		}
		return ast.DataItem{Num: f}, nil
	default:
		return ast.DataItem{}, berrors.NewSyntax("Syntax error")
	}
}

func (p *Parser) parseIf() (ast.Statement, error) {
	p.advance()
	cond, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.THEN); err != nil {
		return nil, err
	}
	thenToks, elseToks := p.splitBranches()
	stmt := &ast.IfStatement{Cond: cond}
	if err := p.fillBranch(thenToks, &stmt.Then, &stmt.ThenGoto); err != nil {
		return nil, err
	}
	if elseToks != nil {
		if err := p.fillBranch(elseToks, &stmt.Else, &stmt.ElseGoto); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// splitBranches consumes the rest of the token stream (everything after
// THEN), returning the THEN branch's tokens and, if an ELSE keyword is
// found at nesting depth zero, the ELSE branch's tokens. Nested
// single-line IFs push the depth up so their own ELSE doesn't leak out
// to bind to this IF.
func (p *Parser) splitBranches() (thenToks, elseToks []token.Token) {
	start := p.pos
	depth := 0
	i := start
	for i < len(p.toks) && p.toks[i].Type != token.EOF {
		switch p.toks[i].Type {
		case token.IF:
			depth++
		case token.ELSE:
			if depth == 0 {
				thenToks = p.toks[start:i]
				elseStart := i + 1
				j := elseStart
				for j < len(p.toks) && p.toks[j].Type != token.EOF {
					j++
				}
				elseToks = p.toks[elseStart:j]
				p.pos = j
				return thenToks, elseToks
			}
			depth--
		}
		i++
	}
	thenToks = p.toks[start:i]
	p.pos = i
	return thenToks, nil
}

func (p *Parser) fillBranch(toks []token.Token, stmts *[]ast.Statement, gotoTarget **int) error {
	if len(toks) == 1 && toks[0].Type == token.NUMBER {
		f, err := parseNumberLiteral(toks[0].Literal)
		if err != nil {
			return err
		}
		n := int(f)
		*gotoTarget = &n
		return nil
	}
	sub := New(p.reg, withEOF(toks))
	list, err := sub.ParseStatements()
	if err != nil {
		return err
	}
	*stmts = list
	return nil
}

func (p *Parser) parseOn() (ast.Statement, error) {
	p.advance()
	sel, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	isGosub := false
	switch p.cur().Type {
	case token.GOTO:
		p.advance()
	case token.GOSUB:
		isGosub = true
		p.advance()
	default:
		return nil, berrors.NewSyntax("Syntax error")
	}
	var targets []ast.Expression
	for {
		e, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		targets = append(targets, e)
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return &ast.OnStatement{Selector: sel, IsGosub: isGosub, Targets: targets}, nil
}

func (p *Parser) parseFor() (ast.Statement, error) {
	p.advance()
	if !p.curIs(token.IDENT) {
		return nil, berrors.NewSyntax("Syntax error")
	}
	name := p.cur().Literal
	if strings.HasSuffix(name, "$") {
		return nil, berrors.NewSyntax("Syntax error")
	}
	p.advance()
	if err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	start, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.TO); err != nil {
		return nil, err
	}
	limit, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	var step ast.Expression = &ast.NumberLiteral{Value: 1}
	if p.curIs(token.STEP) {
		p.advance()
		step, err = p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
	}
	return &ast.ForStatement{Var: name, Start: start, Limit: limit, Step: step}, nil
}

func (p *Parser) parseNext() (ast.Statement, error) {
	p.advance()
	if p.curIs(token.IDENT) {
		name := p.cur().Literal
		p.advance()
		return &ast.NextStatement{Var: name, HasName: true}, nil
	}
	return &ast.NextStatement{}, nil
}

func (p *Parser) parseGoto() (ast.Statement, error) {
	p.advance()
	e, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	return &ast.GotoStatement{Target: e}, nil
}

func (p *Parser) parseGosub() (ast.Statement, error) {
	p.advance()
	e, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	return &ast.GosubStatement{Target: e}, nil
}

func (p *Parser) parseRestore() (ast.Statement, error) {
	p.advance()
	if p.curIs(token.EOF) || p.curIs(token.COLON) {
		return &ast.RestoreStatement{}, nil
	}
	e, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	return &ast.RestoreStatement{Target: e}, nil
}

func (p *Parser) parseRandomize() (ast.Statement, error) {
	p.advance()
	if p.curIs(token.EOF) || p.curIs(token.COLON) {
		return &ast.RandomizeStatement{}, nil
	}
	e, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	return &ast.RandomizeStatement{Seed: e}, nil
}

func (p *Parser) parseDim() (ast.Statement, error) {
	p.advance()
	stmt := &ast.DimStatement{}
	for {
		if !p.curIs(token.IDENT) {
			return nil, berrors.NewSyntax("Syntax error")
		}
		name := p.cur().Literal
		p.advance()
		if err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		dims, err := p.parseExprList(token.RPAREN)
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		stmt.Entries = append(stmt.Entries, ast.DimEntry{Name: name, Dims: dims})
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *Parser) parseOpen() (ast.Statement, error) {
	p.advance()
	path, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.FOR); err != nil {
		return nil, err
	}
	var mode token.Type
	switch p.cur().Type {
	case token.INPUT, token.OUTPUT, token.APPEND:
		mode = p.cur().Type
	default:
		return nil, berrors.NewSyntax("Syntax error")
	}
	p.advance()
	if err := p.expect(token.AS); err != nil {
		return nil, err
	}
	if p.curIs(token.HASH) {
		p.advance()
	}
	ch, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	return &ast.OpenStatement{Path: path, Mode: mode, Channel: ch}, nil
}

func (p *Parser) parseClose() (ast.Statement, error) {
	p.advance()
	stmt := &ast.CloseStatement{}
	if p.curIs(token.EOF) || p.curIs(token.COLON) {
		return stmt, nil
	}
	for {
		if p.curIs(token.HASH) {
			p.advance()
		}
		e, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		stmt.Channels = append(stmt.Channels, e)
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *Parser) parseDef() (ast.Statement, error) {
	p.advance()
	if !p.curIs(token.IDENT) {
		return nil, berrors.NewSyntax("Syntax error")
	}
	name := p.cur().Literal
	p.advance()
	if err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []string
	if !p.curIs(token.RPAREN) {
		for {
			if !p.curIs(token.IDENT) {
				return nil, berrors.NewSyntax("Syntax error")
			}
			params = append(params, p.cur().Literal)
			p.advance()
			if p.curIs(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	body, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	p.reg.Declare(name)
	return &ast.DefStatement{Name: name, Params: params, Body: body}, nil
}

// ---- expressions ------------------------------------------------------

func (p *Parser) parseExprList(term token.Type) ([]ast.Expression, error) {
	var list []ast.Expression
	if p.curIs(term) {
		return list, nil
	}
	for {
		e, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return list, nil
}

func (p *Parser) parseExpression(minPrec int) (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		opPrec, ok := precedences[p.cur().Type]
		if !ok || opPrec < minPrec {
			break
		}
		op := p.cur().Type
		p.advance()
		nextMinPrec := opPrec + 1
		if op == token.CARET {
			nextMinPrec = opPrec
		}
		right, err := p.parseExpression(nextMinPrec)
		if err != nil {
			return nil, err
		}
		left = &ast.InfixExpression{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	switch p.cur().Type {
	case token.PLUS, token.MINUS:
		op := p.cur().Type
		p.advance()
		right, err := p.parseExpression(levelPow)
		if err != nil {
			return nil, err
		}
		return &ast.PrefixExpression{Op: op, Right: right}, nil
	case token.NOT:
		p.advance()
		right, err := p.parseExpression(levelMul)
		if err != nil {
			return nil, err
		}
		return &ast.PrefixExpression{Op: token.NOT, Right: right}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	switch p.cur().Type {
	case token.NUMBER:
		f, err := parseNumberLiteral(p.cur().Literal)
		if err != nil {
			return nil, err
		}
		p.advance()
		return &ast.NumberLiteral{Value: f}, nil
	case token.STRING:
		s := p.cur().Literal
		p.advance()
		return &ast.StringLiteral{Value: s}, nil
	case token.LPAREN:
		p.advance()
		inner, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case token.IDENT:
		return p.parseIdentifierExpr()
	default:
		return nil, berrors.NewSyntax("Syntax error")
	}
}

func (p *Parser) parseIdentifierExpr() (ast.Expression, error) {
	name := p.cur().Literal
	p.advance()
	if !p.curIs(token.LPAREN) {
		if name == "RND" || name == "GET" {
			return &ast.CallExpression{Name: name}, nil
		}
		return &ast.Identifier{Name: name}, nil
	}
	p.advance()
	args, err := p.parseExprList(token.RPAREN)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if builtins.IsBuiltin(name) {
		return &ast.CallExpression{Name: name, Args: args}, nil
	}
	if p.reg.IsUserFunc(name) {
		return &ast.UserCallExpression{Name: name, Args: args}, nil
	}
	return &ast.ArrayRefExpression{Name: name, Args: args}, nil
}
