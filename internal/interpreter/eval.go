package interpreter

import (
	"toylang/internal/parser"
	"toylang/internal/runtime"
)

func (in *Interpreter) eval(id parser.ExprID) (runtime.Value, error) {
	e := in.tree.Expr(id)
	in.stats.Expressions++

	switch e.Kind {
	case parser.IntLit:
		return runtime.Int(e.Int), nil

	case parser.BoolLit:
		return runtime.Bool(e.Bool), nil

	case parser.IdentRef:
		v, err := in.env.Read(e.Name)
		if err != nil {
			return runtime.Value{}, in.envError(e.Pos, err)
		}
		return v, nil

	case parser.ArrayAccess:
		index, err := in.intOperand(e.Left, "array index")
		if err != nil {
			return runtime.Value{}, err
		}
		v, err := in.env.ReadIndexed(e.Name, index)
		if err != nil {
			return runtime.Value{}, in.envError(e.Pos, err)
		}
		return v, nil

	case parser.UnaryOp:
		n, err := in.intOperand(e.Left, "operand of unary -")
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.Int(-n), nil

	case parser.NotExpr:
		b, err := in.boolOperand(e.Left, "operand of !")
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.Bool(!b), nil

	case parser.AndExpr, parser.OrExpr:
		op := "&&"
		if e.Kind == parser.OrExpr {
			op = "||"
		}
		l, err := in.boolOperand(e.Left, "left operand of "+op)
		if err != nil {
			return runtime.Value{}, err
		}
		// The right side is skipped once the left decides the result.
		if e.Kind == parser.AndExpr && !l || e.Kind == parser.OrExpr && l {
			return runtime.Bool(l), nil
		}
		r, err := in.boolOperand(e.Right, "right operand of "+op)
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.Bool(r), nil

	case parser.BinaryArith:
		if e.Op == parser.OpEq || e.Op == parser.OpNotEq {
			return in.equality(e)
		}
		return in.arith(e)

	case parser.RelExpr:
		l, r, err := in.intOperands(e)
		if err != nil {
			return runtime.Value{}, err
		}
		switch e.Op {
		case parser.OpLess:
			return runtime.Bool(l < r), nil
		case parser.OpLessEq:
			return runtime.Bool(l <= r), nil
		case parser.OpMore:
			return runtime.Bool(l > r), nil
		case parser.OpMoreEq:
			return runtime.Bool(l >= r), nil
		}
		return runtime.Value{}, in.fail(e.Pos, nil, "unknown relational operator %s", e.Op)
	}

	return runtime.Value{}, in.fail(e.Pos, nil, "unknown expression kind %s", e.Kind)
}

func (in *Interpreter) arith(e parser.Expr) (runtime.Value, error) {
	l, r, err := in.intOperands(e)
	if err != nil {
		return runtime.Value{}, err
	}
	switch e.Op {
	case parser.OpAdd:
		return runtime.Int(l + r), nil
	case parser.OpSub:
		return runtime.Int(l - r), nil
	case parser.OpMul:
		return runtime.Int(l * r), nil
	case parser.OpDiv:
		if r == 0 {
			return runtime.Value{}, in.fail(e.Pos, nil, "division by zero")
		}
		return runtime.Int(l / r), nil
	}
	return runtime.Value{}, in.fail(e.Pos, nil, "unknown arithmetic operator %s", e.Op)
}

func (in *Interpreter) equality(e parser.Expr) (runtime.Value, error) {
	l, err := in.eval(e.Left)
	if err != nil {
		return runtime.Value{}, err
	}
	r, err := in.eval(e.Right)
	if err != nil {
		return runtime.Value{}, err
	}
	if l.Kind() != r.Kind() {
		return runtime.Value{}, in.fail(e.Pos, nil, "type mismatch: cannot compare %s with %s using %s", l.Kind(), r.Kind(), e.Op.Symbol())
	}
	eq := l.Equal(r)
	if e.Op == parser.OpNotEq {
		eq = !eq
	}
	return runtime.Bool(eq), nil
}

func (in *Interpreter) intOperands(e parser.Expr) (int64, int64, error) {
	l, err := in.intOperand(e.Left, "left operand of "+e.Op.Symbol())
	if err != nil {
		return 0, 0, err
	}
	r, err := in.intOperand(e.Right, "right operand of "+e.Op.Symbol())
	if err != nil {
		return 0, 0, err
	}
	return l, r, nil
}

func (in *Interpreter) intOperand(id parser.ExprID, what string) (int64, error) {
	v, err := in.eval(id)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok {
		return 0, in.fail(in.tree.Expr(id).Pos, nil, "type mismatch: %s must be int, got %s", what, v.Kind())
	}
	return n, nil
}

func (in *Interpreter) boolOperand(id parser.ExprID, what string) (bool, error) {
	v, err := in.eval(id)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, in.fail(in.tree.Expr(id).Pos, nil, "type mismatch: %s must be boolean, got %s", what, v.Kind())
	}
	return b, nil
}
