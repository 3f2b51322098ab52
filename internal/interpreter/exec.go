package interpreter

import (
	"fmt"

	"toylang/internal/parser"
)

// flow is the control-flow outcome of executing a statement.
type flow uint8

const (
	flowNormal flow = iota
	flowBreak
)

func (in *Interpreter) exec(id parser.StmtID) (flow, error) {
	s := in.tree.Stmt(id)
	in.stats.Steps++
	if in.opts.MaxSteps > 0 && in.stats.Steps > in.opts.MaxSteps {
		return flowNormal, in.fail(s.Pos, ErrStepLimit, "step limit of %d exceeded", in.opts.MaxSteps)
	}
	if in.opts.Hook != nil && s.Kind != parser.BlockStmt && s.Kind != parser.SeqStmt {
		if err := in.opts.Hook.BeforeStmt(in, s); err != nil {
			return flowNormal, err
		}
	}

	switch s.Kind {
	case parser.BlockStmt:
		for _, d := range s.Decls {
			if err := in.declare(in.tree.Decl(d)); err != nil {
				return flowNormal, err
			}
		}
		return in.exec(s.Body)

	case parser.SeqStmt:
		for _, child := range s.List {
			f, err := in.exec(child)
			if err != nil || f == flowBreak {
				return f, err
			}
		}
		return flowNormal, nil

	case parser.IfStmt, parser.IfElseStmt:
		ok, err := in.condition(s.Cond, "if")
		if err != nil {
			return flowNormal, err
		}
		if ok {
			return in.exec(s.Body)
		}
		if s.Kind == parser.IfElseStmt {
			return in.exec(s.Else)
		}
		return flowNormal, nil

	case parser.WhileStmt:
		for {
			if err := in.checkContext(s.Pos); err != nil {
				return flowNormal, err
			}
			ok, err := in.condition(s.Cond, "while")
			if err != nil || !ok {
				return flowNormal, err
			}
			f, err := in.exec(s.Body)
			if err != nil {
				return flowNormal, err
			}
			if f == flowBreak {
				return flowNormal, nil
			}
		}

	case parser.DoWhileStmt:
		for {
			if err := in.checkContext(s.Pos); err != nil {
				return flowNormal, err
			}
			f, err := in.exec(s.Body)
			if err != nil {
				return flowNormal, err
			}
			if f == flowBreak {
				return flowNormal, nil
			}
			ok, err := in.condition(s.Cond, "do-while")
			if err != nil || !ok {
				return flowNormal, err
			}
		}

	case parser.AssignStmt:
		v, err := in.eval(s.Value)
		if err != nil {
			return flowNormal, err
		}
		want, err := in.env.KindOf(s.Name)
		if err != nil {
			return flowNormal, in.envError(s.Pos, err)
		}
		if want != v.Kind() {
			return flowNormal, in.fail(s.Pos, nil, "type mismatch: cannot assign %s value to %s variable %s", v.Kind(), want, s.Name)
		}
		if err := in.env.Write(s.Name, v); err != nil {
			return flowNormal, in.envError(s.Pos, err)
		}
		return flowNormal, nil

	case parser.AssignIndexedStmt:
		v, err := in.eval(s.Value)
		if err != nil {
			return flowNormal, err
		}
		want, err := in.env.KindOf(s.Name)
		if err != nil {
			return flowNormal, in.envError(s.Pos, err)
		}
		if want != v.Kind() {
			return flowNormal, in.fail(s.Pos, nil, "type mismatch: cannot assign %s value to element of %s array %s", v.Kind(), want, s.Name)
		}
		index, err := in.intOperand(s.Index, "array index")
		if err != nil {
			return flowNormal, err
		}
		if err := in.env.WriteIndexed(s.Name, index, v); err != nil {
			return flowNormal, in.envError(s.Pos, err)
		}
		return flowNormal, nil

	case parser.BreakStmt:
		return flowBreak, nil

	case parser.PrintStmt:
		v, err := in.eval(s.Value)
		if err != nil {
			return flowNormal, err
		}
		if _, err := fmt.Fprintln(in.opts.Output, v.Format(in.opts.BoolFormat)); err != nil {
			return flowNormal, in.fail(s.Pos, err, "write output: %v", err)
		}
		in.stats.Prints++
		return flowNormal, nil
	}

	return flowNormal, in.fail(s.Pos, nil, "unknown statement kind %s", s.Kind)
}

func (in *Interpreter) declare(d parser.Decl) error {
	kind := kindOf(d.Type.Code)
	if !d.Type.IsVector() {
		in.env.Declare(d.Name, kind)
		return nil
	}
	if in.opts.MaxArrayLen > 0 && d.Type.Size > in.opts.MaxArrayLen {
		return in.fail(d.Pos, nil, "array %s of size %d exceeds the limit of %d", d.Name, d.Type.Size, in.opts.MaxArrayLen)
	}
	in.env.DeclareArray(d.Name, kind, d.Type.Size)
	return nil
}

func (in *Interpreter) checkContext(pos parser.Pos) error {
	if err := in.ctx.Err(); err != nil {
		return in.fail(pos, err, "run interrupted: %v", err)
	}
	return nil
}

func (in *Interpreter) condition(id parser.ExprID, construct string) (bool, error) {
	v, err := in.eval(id)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, in.fail(in.tree.Expr(id).Pos, nil, "type mismatch: %s condition must be boolean, got %s", construct, v.Kind())
	}
	return b, nil
}
