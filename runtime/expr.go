package runtime

import (
	"github.com/mbasic/microbasic/ast"
	"github.com/mbasic/microbasic/berrors"
	"github.com/mbasic/microbasic/builtins"
	"github.com/mbasic/microbasic/token"
	"github.com/mbasic/microbasic/value"
)

func (rt *Runtime) eval(expr ast.Expression) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return value.Number(e.Value), nil
	case *ast.StringLiteral:
		return value.Text(e.Value), nil
	case *ast.Identifier:
		return rt.vars.Get(e.Name), nil
	case *ast.ArrayRefExpression:
		idx, err := rt.evalIndices(e.Args)
		if err != nil {
			return value.Value{}, err
		}
		return rt.vars.GetIndexed(e.Name, idx)
	case *ast.CallExpression:
		args, err := rt.evalArgs(e.Args)
		if err != nil {
			return value.Value{}, err
		}
		return builtins.Call(rt, e.Name, args)
	case *ast.UserCallExpression:
		return rt.evalUserCall(e)
	case *ast.PrefixExpression:
		return rt.evalPrefix(e)
	case *ast.InfixExpression:
		return rt.evalInfix(e)
	default:
		return value.Value{}, berrors.NewRuntime("Cannot evaluate expression")
	}
}

func (rt *Runtime) evalArgs(exprs []ast.Expression) ([]value.Value, error) {
	out := make([]value.Value, len(exprs))
	for i, e := range exprs {
		v, err := rt.eval(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (rt *Runtime) evalIndices(exprs []ast.Expression) ([]int, error) {
	out := make([]int, len(exprs))
	for i, e := range exprs {
		v, err := rt.eval(e)
		if err != nil {
			return nil, err
		}
		out[i] = int(v.AsInt32())
	}
	return out, nil
}

func (rt *Runtime) evalPrefix(e *ast.PrefixExpression) (value.Value, error) {
	operand, err := rt.eval(e.Right)
	if err != nil {
		return value.Value{}, err
	}
	switch e.Op {
	case token.MINUS:
		return value.Neg(operand)
	case token.PLUS:
		if operand.IsString() {
			return value.Value{}, berrors.TypeMismatch()
		}
		return value.Number(operand.AsNumber()), nil
	case token.NOT:
		if operand.IsString() {
			return value.Value{}, berrors.TypeMismatch()
		}
		return value.Not(operand), nil
	default:
		return value.Value{}, berrors.NewRuntime("Unknown unary operator %s", e.Op)
	}
}

func (rt *Runtime) evalInfix(e *ast.InfixExpression) (value.Value, error) {
	left, err := rt.eval(e.Left)
	if err != nil {
		return value.Value{}, err
	}
	right, err := rt.eval(e.Right)
	if err != nil {
		return value.Value{}, err
	}
	switch e.Op {
	case token.PLUS:
		return value.Add(left, right), nil
	case token.MINUS:
		return value.Sub(left, right)
	case token.STAR:
		return value.Mul(left, right)
	case token.SLASH:
		return value.Div(left, right)
	case token.CARET:
		return value.Pow(left, right)
	case token.ASSIGN:
		return value.Equal(left, right), nil
	case token.NE:
		return value.NotEqual(left, right), nil
	case token.LT:
		return value.Less(left, right), nil
	case token.LE:
		return value.LessOrEqual(left, right), nil
	case token.GT:
		return value.Greater(left, right), nil
	case token.GE:
		return value.GreaterOrEqual(left, right), nil
	case token.AND:
		return value.And(left, right), nil
	case token.OR:
		return value.Or(left, right), nil
	default:
		return value.Value{}, berrors.NewRuntime("Unknown binary operator %s", e.Op)
	}
}

func (rt *Runtime) evalUserCall(u *ast.UserCallExpression) (value.Value, error) {
	def, ok := rt.userFuncs[u.Name]
	if !ok {
		return value.Value{}, berrors.UnknownFunction(u.Name)
	}
	if len(u.Args) != len(def.Params) {
		return value.Value{}, berrors.NewRuntime("Argument count mismatch calling %s", u.Name)
	}
	argVals, err := rt.evalArgs(u.Args)
	if err != nil {
		return value.Value{}, err
	}

	saved := make([]value.Value, len(def.Params))
	hadValue := make([]bool, len(def.Params))
	for i, p := range def.Params {
		saved[i], hadValue[i] = rt.vars.scalars[p]
		rt.vars.Set(p, argVals[i])
	}
	result, err := rt.eval(def.Body)
	for i, p := range def.Params {
		if hadValue[i] {
			rt.vars.Set(p, saved[i])
		} else {
			delete(rt.vars.scalars, p)
		}
	}
	return result, err
}
