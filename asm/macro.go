package asm

import "fmt"

// Macro is a named, parameterized IR template (spec.md §3). Parameter
// count is not declared; it is inferred per-invocation from how many
// actual arguments the caller supplies, matched positionally against
// "_1", "_2", ... references in the body.
type Macro struct {
	Name  string
	Point SourcePosition
	Body  []*Node
}

// MacroTable is the process-wide macro registry, owned by the Context
// for the duration of one Assemble call (spec.md §9: no module-level
// globals).
type MacroTable struct {
	macros map[string]*Macro
}

func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*Macro)}
}

func (mt *MacroTable) Define(m *Macro) {
	mt.macros[m.Name] = m
}

func (mt *MacroTable) Lookup(name string) (*Macro, bool) {
	m, ok := mt.macros[name]
	return m, ok
}

// Expand substitutes actual arguments into a fresh clone of the macro
// body, per SPEC_FULL.md §4.3: "_N" references become the Nth actual
// argument expression; every other label in the body is rewritten as
// "_*N_name" where N is a freshly allocated uniquifying counter value,
// so that two invocations of the same macro never collide.
func (mt *MacroTable) Expand(m *Macro, point SourcePosition, args []*Expr, uniq int) *Node {
	rename := func(name string) (*Expr, string) {
		if n, ok := positionalIndex(name); ok {
			if n >= 1 && n <= len(args) {
				return args[n-1].Clone(), ""
			}
			return constExpr(point, 0), ""
		}
		return nil, fmt.Sprintf("_*%d_%s", uniq, name)
	}

	var body []*Node
	for _, n := range m.Body {
		body = append(body, substituteNode(n.Clone(), rename, point))
	}
	inner := Seq(point, append([]*Node{{Point: point, Kind: NScopeBegin}}, append(body, &Node{Point: point, Kind: NScopeEnd})...)...)
	return inner
}

// positionalIndex reports whether name has the "_N" shape used by
// macro positional parameters.
func positionalIndex(name string) (int, bool) {
	if len(name) < 2 || name[0] != '_' {
		return 0, false
	}
	n := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}

// substituteNode rewrites every expression embedded in n (recursively
// through Children) using rename.
func substituteNode(n *Node, rename func(string) (*Expr, string), callSite SourcePosition) *Node {
	if n == nil {
		return nil
	}
	n.Point = n.Point.Extend(callSite)
	n.Expr = n.Expr.substitute(rename)
	n.Expr2 = n.Expr2.substitute(rename)
	for i, e := range n.Exprs {
		n.Exprs[i] = e.substitute(rename)
	}
	if n.Kind == NLabel && n.Name != "" && n.Name != "*" {
		if repl, newName := rename(n.Name); repl == nil && newName != "" {
			n.Name = newName
		}
	}
	for i, c := range n.Children {
		n.Children[i] = substituteNode(c, rename, callSite)
	}
	return n
}
