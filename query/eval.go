package query

import (
	"github.com/FocuswithJustin/msigo/column"
	msierrors "github.com/FocuswithJustin/msigo/errors"
)

// Env resolves a (possibly table-qualified) column reference to its
// current value for the row being evaluated.
type Env interface {
	Lookup(table, column string) (column.Value, error)
}

// Eval evaluates expr against env, implementing the dialect's
// three-valued NULL logic: NULL propagates through arithmetic and
// comparisons, AND/OR/NOT follow SQL's tri-state truth tables, and
// division by zero yields NULL rather than an error.
func Eval(expr Expr, env Env) (column.Value, error) {
	switch e := expr.(type) {
	case NullLit:
		return column.Null(), nil
	case IntLit:
		return column.Int(e.Value), nil
	case StrLit:
		return column.Str(e.Value), nil
	case ColumnRef:
		return env.Lookup(e.Table, e.Column)
	case *Unary:
		return evalUnary(e, env)
	case *Binary:
		return evalBinary(e, env)
	case *IsNull:
		v, err := Eval(e.X, env)
		if err != nil {
			return column.Value{}, err
		}
		result := v.IsNull()
		if e.Not {
			result = !result
		}
		return column.FromBool(result), nil
	default:
		return column.Value{}, msierrors.NewQuery("", -1, "unknown expression node")
	}
}

func evalUnary(u *Unary, env Env) (column.Value, error) {
	v, err := Eval(u.X, env)
	if err != nil {
		return column.Value{}, err
	}
	switch u.Op {
	case TK_NOT:
		if v.IsNull() {
			return column.Null(), nil
		}
		return column.FromBool(!v.ToBool()), nil
	case TK_MINUS:
		n, ok := v.AsInt()
		if v.IsNull() {
			return column.Null(), nil
		}
		if !ok {
			return column.Value{}, msierrors.NewQuery("", -1, "unary - requires an integer operand")
		}
		return column.Int(-n), nil
	case TK_TILDE:
		n, ok := v.AsInt()
		if v.IsNull() {
			return column.Null(), nil
		}
		if !ok {
			return column.Value{}, msierrors.NewQuery("", -1, "unary ~ requires an integer operand")
		}
		return column.Int(^n), nil
	default:
		return column.Value{}, msierrors.NewQuery("", -1, "unknown unary operator")
	}
}

func evalBinary(b *Binary, env Env) (column.Value, error) {
	switch b.Op {
	case TK_AND:
		return evalAnd(b, env)
	case TK_OR:
		return evalOr(b, env)
	}

	l, err := Eval(b.L, env)
	if err != nil {
		return column.Value{}, err
	}
	r, err := Eval(b.R, env)
	if err != nil {
		return column.Value{}, err
	}

	switch b.Op {
	case TK_EQ, TK_NE, TK_LT, TK_LE, TK_GT, TK_GE:
		return evalComparison(b.Op, l, r)
	default:
		return evalArithmetic(b.Op, l, r)
	}
}

// evalAnd/evalOr short-circuit only where SQL's tri-state logic
// allows: `FALSE AND x` is FALSE and `TRUE OR x` is TRUE regardless of
// whether x is NULL, but every other combination must evaluate both
// sides to determine if the result is NULL.
func evalAnd(b *Binary, env Env) (column.Value, error) {
	l, err := Eval(b.L, env)
	if err != nil {
		return column.Value{}, err
	}
	if !l.IsNull() && !l.ToBool() {
		return column.Int(0), nil
	}
	r, err := Eval(b.R, env)
	if err != nil {
		return column.Value{}, err
	}
	if !r.IsNull() && !r.ToBool() {
		return column.Int(0), nil
	}
	if l.IsNull() || r.IsNull() {
		return column.Null(), nil
	}
	return column.Int(1), nil
}

func evalOr(b *Binary, env Env) (column.Value, error) {
	l, err := Eval(b.L, env)
	if err != nil {
		return column.Value{}, err
	}
	if !l.IsNull() && l.ToBool() {
		return column.Int(1), nil
	}
	r, err := Eval(b.R, env)
	if err != nil {
		return column.Value{}, err
	}
	if !r.IsNull() && r.ToBool() {
		return column.Int(1), nil
	}
	if l.IsNull() || r.IsNull() {
		return column.Null(), nil
	}
	return column.Int(0), nil
}

func evalComparison(op TokenType, l, r column.Value) (column.Value, error) {
	if l.IsNull() || r.IsNull() {
		return column.Null(), nil
	}
	// Comparing an integer to a string is a type mismatch: NULL, not
	// an error, per the dialect's semantics.
	if l.IsInt() != r.IsInt() {
		return column.Null(), nil
	}
	cmp := l.Compare(r)
	switch op {
	case TK_EQ:
		return column.FromBool(cmp == 0), nil
	case TK_NE:
		return column.FromBool(cmp != 0), nil
	case TK_LT:
		return column.FromBool(cmp < 0), nil
	case TK_LE:
		return column.FromBool(cmp <= 0), nil
	case TK_GT:
		return column.FromBool(cmp > 0), nil
	case TK_GE:
		return column.FromBool(cmp >= 0), nil
	default:
		return column.Value{}, msierrors.NewQuery("", -1, "unknown comparison operator")
	}
}

func evalArithmetic(op TokenType, l, r column.Value) (column.Value, error) {
	if l.IsNull() || r.IsNull() {
		return column.Null(), nil
	}
	a, ok1 := l.AsInt()
	b, ok2 := r.AsInt()
	if !ok1 || !ok2 {
		return column.Value{}, msierrors.NewQuery("", -1, "arithmetic requires integer operands")
	}
	switch op {
	case TK_PLUS:
		return column.Int(a + b), nil
	case TK_MINUS:
		return column.Int(a - b), nil
	case TK_STAR:
		return column.Int(a * b), nil
	case TK_SLASH:
		if b == 0 {
			return column.Null(), nil
		}
		return column.Int(a / b), nil
	case TK_PERCENT:
		if b == 0 {
			return column.Null(), nil
		}
		return column.Int(a % b), nil
	case TK_AMP:
		return column.Int(a & b), nil
	case TK_PIPE:
		return column.Int(a | b), nil
	case TK_SHL:
		return column.Int(a << uint32(b)), nil
	case TK_SHR:
		return column.Int(a >> uint32(b)), nil
	default:
		return column.Value{}, msierrors.NewQuery("", -1, "unknown binary operator")
	}
}
