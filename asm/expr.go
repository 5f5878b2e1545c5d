package asm

// ExprKind tags the variant of an Expr node (spec.md §3: Constant,
// LabelRef, PCRef, HighByte, LowByte, Sequence).
type ExprKind int

const (
	Constant ExprKind = iota
	LabelRef
	PCRef
	HighByte
	LowByte
	Sequence
)

// Expr is the immutable expression tree described by SPEC_FULL.md §3.
// A Sequence node holds one precedence level: an alternating list of
// operand/operator, operators drawn from "+ - * / & | ^", grouped by
// the parser so each Sequence node is a single tier (term, arith, or
// bits as named in spec.md §4.2).
type Expr struct {
	Point SourcePosition
	Kind  ExprKind

	// Constant
	IntValue int

	// LabelRef
	Name string

	// HighByte, LowByte: the wrapped sub-expression
	Sub *Expr

	// Sequence: len(Operands) == len(Operators)+1
	Operands  []*Expr
	Operators []byte
}

func constExpr(point SourcePosition, v int) *Expr {
	return &Expr{Point: point, Kind: Constant, IntValue: v}
}

func labelExpr(point SourcePosition, name string) *Expr {
	return &Expr{Point: point, Kind: LabelRef, Name: name}
}

func pcExpr(point SourcePosition) *Expr {
	return &Expr{Point: point, Kind: PCRef}
}

// Clone deep-copies the expression tree. Macro expansion (SPEC_FULL.md
// §4.3) clones every body node on each invocation rather than sharing
// substructure, per spec.md §9's explicit redesign note.
func (e *Expr) Clone() *Expr {
	if e == nil {
		return nil
	}
	c := &Expr{
		Point:    e.Point,
		Kind:     e.Kind,
		IntValue: e.IntValue,
		Name:     e.Name,
		Sub:      e.Sub.Clone(),
	}
	if e.Operands != nil {
		c.Operands = make([]*Expr, len(e.Operands))
		for i, o := range e.Operands {
			c.Operands[i] = o.Clone()
		}
		c.Operators = append([]byte(nil), e.Operators...)
	}
	return c
}

// Hardcoded is true iff the expression is a pure constant independent
// of labels and the PC.
func (e *Expr) Hardcoded() bool {
	if e == nil {
		return true
	}
	switch e.Kind {
	case Constant:
		return true
	case LabelRef, PCRef:
		return false
	case HighByte, LowByte:
		return e.Sub.Hardcoded()
	case Sequence:
		for _, o := range e.Operands {
			if !o.Hardcoded() {
				return false
			}
		}
		return true
	}
	return false
}

// Valid reports whether every label the expression references is
// currently bound in env, and, if it transitively depends on the PC,
// whether pcValid holds.
func (e *Expr) Valid(env *Environment, pcValid bool) bool {
	if e == nil {
		return true
	}
	switch e.Kind {
	case Constant:
		return true
	case LabelRef:
		_, ok := env.Lookup(e.Name)
		return ok
	case PCRef:
		return pcValid
	case HighByte, LowByte:
		return e.Sub.Valid(env, pcValid)
	case Sequence:
		for _, o := range e.Operands {
			if !o.Valid(env, pcValid) {
				return false
			}
		}
		return true
	}
	return true
}

// Value evaluates the expression. Any undefined reference records an
// error on diag and yields 0 for that subexpression (spec.md §3).
func (e *Expr) Value(env *Environment, diag *Diagnostics) int {
	if e == nil {
		return 0
	}
	switch e.Kind {
	case Constant:
		return e.IntValue
	case LabelRef:
		if v, ok := env.Lookup(e.Name); ok {
			return v
		}
		diag.Error(e.Point, "undefined label %q", e.Name)
		return 0
	case PCRef:
		if v, ok := env.PC(); ok {
			return v
		}
		diag.Error(e.Point, "program counter is not currently known")
		return 0
	case HighByte:
		return (e.Sub.Value(env, diag) >> 8) & 0xFF
	case LowByte:
		return e.Sub.Value(env, diag) & 0xFF
	case Sequence:
		acc := e.Operands[0].Value(env, diag)
		for i, op := range e.Operators {
			rhs := e.Operands[i+1].Value(env, diag)
			switch op {
			case '+':
				acc += rhs
			case '-':
				acc -= rhs
			case '*':
				acc *= rhs
			case '/':
				if rhs == 0 {
					diag.Error(e.Point, "division by zero")
					acc = 0
				} else {
					acc /= rhs
				}
			case '&':
				acc &= rhs
			case '|':
				acc |= rhs
			case '^':
				acc ^= rhs
			}
		}
		return acc
	}
	return 0
}

// collectLabels walks the expression and calls fn for every LabelRef
// name referenced. Nothing in the package calls it at present; macro
// substitution uses substitute below.
func (e *Expr) collectLabels(fn func(name string)) {
	if e == nil {
		return
	}
	switch e.Kind {
	case LabelRef:
		fn(e.Name)
	case HighByte, LowByte:
		e.Sub.collectLabels(fn)
	case Sequence:
		for _, o := range e.Operands {
			o.collectLabels(fn)
		}
	}
}

// substitute returns a new expression tree with every LabelRef name
// rewritten by rename, used by macro expansion (SPEC_FULL.md §4.3):
// rename returns a non-nil repl to splice in an actual-argument
// expression, or a newName to rewrite the label in place.
func (e *Expr) substitute(rename func(name string) (repl *Expr, newName string)) *Expr {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case LabelRef:
		repl, newName := rename(e.Name)
		if repl != nil {
			return repl
		}
		if newName != "" {
			return &Expr{Point: e.Point, Kind: LabelRef, Name: newName}
		}
		return &Expr{Point: e.Point, Kind: LabelRef, Name: e.Name}
	case HighByte, LowByte:
		return &Expr{Point: e.Point, Kind: e.Kind, Sub: e.Sub.substitute(rename)}
	case Sequence:
		s := &Expr{Point: e.Point, Kind: Sequence, Operators: append([]byte(nil), e.Operators...)}
		s.Operands = make([]*Expr, len(e.Operands))
		for i, o := range e.Operands {
			s.Operands[i] = o.substitute(rename)
		}
		return s
	default:
		return e.Clone()
	}
}

// String renders the expression for IR dumps (verbosity level 4).
func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case Constant:
		return itoa(e.IntValue)
	case LabelRef:
		return e.Name
	case PCRef:
		return "^"
	case HighByte:
		return ">" + e.Sub.String()
	case LowByte:
		return "<" + e.Sub.String()
	case Sequence:
		s := e.Operands[0].String()
		for i, op := range e.Operators {
			s += " " + string(op) + " " + e.Operands[i+1].String()
		}
		return "(" + s + ")"
	}
	return "?"
}
