package asm

import "github.com/ophis-asm/ophis/opcodes"

// modeOf maps a resolved instruction NodeKind to the opcodes.Mode the
// table is keyed on; the parser-level Memory*/Pointer*/Memory2 kinds
// have no direct Mode (they resolve to one of these via EasyModes,
// Collapse, or NormalizeModes first).
var modeOf = map[NodeKind]opcodes.Mode{
	NImplied: opcodes.Implied, NImmediate: opcodes.Immediate, NImmediateLong: opcodes.ImmediateLong,
	NZeroPage: opcodes.ZeroPage, NZeroPageX: opcodes.ZeroPageX, NZeroPageY: opcodes.ZeroPageY,
	NAbsolute: opcodes.Absolute, NAbsoluteX: opcodes.AbsoluteX, NAbsoluteY: opcodes.AbsoluteY,
	NIndirect: opcodes.Indirect, NAbsIndX: opcodes.AbsIndX, NAbsIndY: opcodes.AbsIndY, NAbsIndZ: opcodes.AbsIndZ,
	NZPIndirect: opcodes.ZPIndirect, NIndirectX: opcodes.IndirectX, NIndirectY: opcodes.IndirectY,
	NIndirectZ: opcodes.IndirectZ, NIndirectSPY: opcodes.IndirectSPY,
	NRelative: opcodes.Relative, NRelativeLong: opcodes.RelativeLong, NZPRelative: opcodes.ZPRelative,
}

func supportsKind(tbl *opcodes.Table, mnemonic string, kind NodeKind) bool {
	mode, ok := modeOf[kind]
	if !ok {
		return false
	}
	return tbl.Supports(mnemonic, mode)
}

// natSize is the provisional PC advance for an instruction node whose
// mode may not yet be fully resolved (spec.md §4.5): implied=1; most
// immediate/zero-page-ish forms=2; most absolute/16-bit forms=3, which
// also covers the still-unresolved parser-level Memory*/Pointer* kinds
// (they are sized as their eventual worst case until Collapse narrows
// them).
func natSize(k NodeKind) int {
	switch k {
	case NImplied:
		return 1
	case NImmediate, NZeroPage, NZeroPageX, NZeroPageY, NZPIndirect,
		NIndirectX, NIndirectY, NIndirectZ, NIndirectSPY, NRelative:
		return 2
	case NImmediateLong, NAbsolute, NAbsoluteX, NAbsoluteY, NIndirect,
		NAbsIndX, NAbsIndY, NAbsIndZ, NRelativeLong, NZPRelative,
		NMemory, NMemoryX, NMemoryY, NMemory2,
		NPointer, NPointerX, NPointerY, NPointerZ, NPointerSPY:
		return 3
	}
	return 0
}

// Walk performs the default structural traversal shared by every pass:
// Sequence recurses, ScopeBegin/ScopeEnd push/pop the Environment's
// scope stack, TextSegment/DataSegment switch segments, Null is a
// no-op, and every other kind is handed to visit (spec.md §4.4).
func Walk(env *Environment, n *Node, visit func(n *Node)) {
	switch n.Kind {
	case NSequence:
		for _, c := range n.Children {
			Walk(env, c, visit)
		}
	case NNull:
	case NScopeBegin:
		env.PushScope()
		visit(n)
	case NScopeEnd:
		visit(n)
		env.PopScope()
	case NTextSegment:
		env.SwitchSegment(SegmentName(n.Name, true), true)
		visit(n)
	case NDataSegment:
		env.SwitchSegment(SegmentName(n.Name, false), false)
		visit(n)
	default:
		visit(n)
	}
}

// Transform is Walk's structure-rewriting counterpart: visit may
// return a replacement node (used by EasyModes, Collapse,
// ExtendBranches and NormalizeModes to swap an instruction node's kind
// or expand a branch into a multi-instruction Sequence).
func Transform(env *Environment, n *Node, visit func(n *Node) *Node) *Node {
	switch n.Kind {
	case NSequence:
		for i, c := range n.Children {
			n.Children[i] = Transform(env, c, visit)
		}
		return n
	case NNull:
		return n
	case NScopeBegin:
		env.PushScope()
		return visit(n)
	case NScopeEnd:
		r := visit(n)
		env.PopScope()
		return r
	case NTextSegment:
		env.SwitchSegment(SegmentName(n.Name, true), true)
		return visit(n)
	case NDataSegment:
		env.SwitchSegment(SegmentName(n.Name, false), false)
		return visit(n)
	default:
		return visit(n)
	}
}

//
// Pass 1: DefineMacros
//

type macroDefState struct {
	depth          int
	active         *Macro
	nestedReported bool
	tbl            *MacroTable
	diag           *Diagnostics
}

// DefineMacros extracts every .macro/.macend span into the macro
// registry, replacing the span with Null (spec.md §4.4 step 1),
// grounded on Ophis/Passes.py's DefineMacros class.
func DefineMacros(ctx *Context, root *Node) *Node {
	s := &macroDefState{tbl: ctx.Macros, diag: ctx.Diag}
	out := transformLeaves(root, s.visit)
	if s.depth > 0 {
		ctx.Diag.Error(root.Point, "unmatched .macro at end of input")
	}
	return out
}

// transformLeaves applies f to every non-Sequence, non-Null node,
// rebuilding Sequence structure as it goes. Unlike Transform, it does
// not touch Environment -- DefineMacros runs before any pass needs
// scope/segment state.
func transformLeaves(n *Node, f func(*Node) *Node) *Node {
	if n.Kind == NSequence {
		for i, c := range n.Children {
			n.Children[i] = transformLeaves(c, f)
		}
		return n
	}
	if n.Kind == NNull {
		return n
	}
	return f(n)
}

func (s *macroDefState) visit(n *Node) *Node {
	switch n.Kind {
	case NMacroBegin:
		s.depth++
		if s.depth > 1 {
			if !s.nestedReported {
				s.diag.Error(n.Point, "macro definitions may not nest")
				s.nestedReported = true
			}
			return Null(n.Point)
		}
		s.active = &Macro{Name: n.Name, Point: n.Point}
		return Null(n.Point)
	case NMacroEnd:
		if s.depth == 0 {
			s.diag.Error(n.Point, "unmatched .macend")
			return Null(n.Point)
		}
		s.depth--
		if s.depth == 0 {
			s.tbl.Define(s.active)
			s.active = nil
			s.nestedReported = false
		}
		return Null(n.Point)
	default:
		if s.active != nil {
			if s.depth == 1 {
				s.active.Body = append(s.active.Body, n)
			}
			return Null(n.Point)
		}
		return n
	}
}

//
// Pass 2: ExpandMacros (fixed-point)
//

// ExpandMacros replaces every MacroInvoke node with a cloned,
// argument-substituted copy of its macro's body (spec.md §4.4 step 2).
// It returns the number of invocations expanded this iteration; the
// FixPoint driver repeats it until that count is zero.
func ExpandMacros(ctx *Context, root *Node) (*Node, int) {
	count := 0
	var visit func(*Node) *Node
	visit = func(n *Node) *Node {
		if n.Kind != NMacroInvoke {
			return n
		}
		m, ok := ctx.Macros.Lookup(n.Name)
		if !ok {
			ctx.Diag.Error(n.Point, "invocation of undefined macro %q", n.Name)
			return Null(n.Point)
		}
		ctx.uniq++
		count++
		expanded := ctx.Macros.Expand(m, n.Point, n.Exprs, ctx.uniq)
		return transformLeaves(expanded, visit)
	}
	out := transformLeaves(root, visit)
	return out, count
}

//
// Pass 3: InitLabels (fixed-point)
//

// InitLabels walks the IR tracking PC validity and inserting newly
// resolvable labels (spec.md §4.4 step 3). It returns the number of
// newly inserted labels this iteration.
func InitLabels(ctx *Context, root *Node) int {
	env := ctx.Env
	env.Reset()
	changed := 0
	defined := map[string]*Node{}

	var visitNode func(n *Node)
	visitNode = func(n *Node) {
		switch n.Kind {
		case NLabel:
			pcv, pcValid := env.PC()
			_ = pcv
			if n.Expr.Valid(env, pcValid) {
				if !env.Defined(n.Name) {
					env.Bind(n.Name, 0)
					defined[env.Qualify(n.Name)] = n
					changed++
					if ctx.Tbl.Known(n.Name) {
						ctx.Diag.Warn(n.Point, "label %q shadows an opcode mnemonic", n.Name)
					}
				} else if defined[env.Qualify(n.Name)] != n && defined[env.Qualify(n.Name)] != nil {
					ctx.Diag.Error(n.Point, "duplicate definition of label %q", n.Name)
				} else {
					defined[env.Qualify(n.Name)] = n
				}
			}
			advancePC(env, n)
		case NSetPC:
			if n.Expr.Hardcoded() || n.Expr.Valid(env, false) {
				pcv, ok := env.PC()
				_ = pcv
				if n.Expr.Valid(env, ok) {
					env.SetPC(n.Expr.Value(env, ctx.Diag))
					return
				}
			}
			env.InvalidatePC()
		case NAdvance:
			_, pcValid := env.PC()
			if n.Expr.Valid(env, pcValid) {
				env.SetPC(n.Expr.Value(env, ctx.Diag))
			} else {
				env.InvalidatePC()
			}
		default:
			advancePC(env, n)
		}
	}
	Walk(env, root, visitNode)
	return changed
}

func advancePC(env *Environment, n *Node) {
	switch n.Kind {
	case NByte:
		env.AdvancePC(len(n.Exprs))
	case NWord:
		env.AdvancePC(len(n.Exprs) * 2)
	case NDword:
		env.AdvancePC(len(n.Exprs) * 4)
	case NWordBE:
		env.AdvancePC(len(n.Exprs) * 2)
	case NDwordBE:
		env.AdvancePC(len(n.Exprs) * 4)
	case NByteRange:
		env.AdvancePC(len(n.Bytes))
	case NCheckPC, NLabel:
		// no PC movement
	default:
		if n.Kind.IsInstruction() {
			env.AdvancePC(natSize(n.Kind))
		}
	}
}

// applyPC is advancePC's counterpart for passes that run after labels are
// known but still need an accurate in-pass PC: NSetPC/NAdvance jump the PC
// to their (now-resolvable) target, exactly like InitLabels, CircularityCheck,
// CheckExprs and UpdateLabels already do inline, and everything else falls
// through to advancePC's width table. Passes that called advancePC alone
// never moved the PC across a .org/.advance, so every PC-dependent decision
// downstream of one (zero-page collapse, branch range) was computed against
// a PC short by that node's offset.
func applyPC(ctx *Context, n *Node) {
	env := ctx.Env
	switch n.Kind {
	case NSetPC, NAdvance:
		if n.Expr.Valid(env, true) {
			env.SetPC(n.Expr.Value(env, ctx.Diag))
		} else {
			env.InvalidatePC()
		}
	default:
		advancePC(env, n)
	}
}

//
// Pass 4: CircularityCheck
//

// CircularityCheck re-validates every expression that must resolve
// against the PC-validity state active when it is visited (spec.md
// §4.4 step 4): a label definition or PC-affecting pragma whose
// expression is not valid given the current environment is reported.
func CircularityCheck(ctx *Context, root *Node) {
	env := ctx.Env
	env.Reset()
	Walk(env, root, func(n *Node) {
		_, pcValid := env.PC()
		switch n.Kind {
		case NLabel:
			if !n.Expr.Valid(env, pcValid) {
				ctx.Diag.Error(n.Point, "label %q has a circular or unresolved dependency", n.Name)
			}
		case NSetPC, NAdvance, NCheckPC:
			if !n.Expr.Valid(env, pcValid) {
				ctx.Diag.Error(n.Point, "expression depends on a value that is not yet known")
			}
		}
		advancePC(env, n)
		if n.Kind == NSetPC || n.Kind == NAdvance {
			if n.Expr.Valid(env, pcValid) {
				env.SetPC(n.Expr.Value(env, ctx.Diag))
			} else {
				env.InvalidatePC()
			}
		}
	})
}

//
// Pass 5: CheckExprs
//

// CheckExprs evaluates every expression appearing in any node purely
// to surface remaining undefined references (spec.md §4.4 step 5).
func CheckExprs(ctx *Context, root *Node) {
	env := ctx.Env
	env.Reset()
	Walk(env, root, func(n *Node) {
		if n.Expr != nil {
			n.Expr.Value(env, ctx.Diag)
		}
		if n.Expr2 != nil {
			n.Expr2.Value(env, ctx.Diag)
		}
		for _, e := range n.Exprs {
			e.Value(env, ctx.Diag)
		}
		if n.Kind == NSetPC || n.Kind == NAdvance {
			if pc, ok := env.PC(); ok {
				_ = pc
			}
			env.SetPC(n.Expr.Value(env, ctx.Diag))
		}
		advancePC(env, n)
	})
}

//
// Pass 6: EasyModes
//

// pointerModeTable maps each parser-level Pointer* kind to its natural
// (non-zero-page) resolved Indirect-family kind, and memoryModeTable
// does the same for Memory* -> Absolute-family kinds.
var memoryModeTable = map[NodeKind]NodeKind{
	NMemory: NAbsolute, NMemoryX: NAbsoluteX, NMemoryY: NAbsoluteY,
}
var pointerModeTable = map[NodeKind]NodeKind{
	NPointer: NIndirect, NPointerX: NAbsIndX, NPointerY: NAbsIndY,
	NPointerZ: NAbsIndZ, NPointerSPY: NIndirectSPY,
}

// zpModeTable maps each resolved-absolute kind to its zero-page
// collapse, used by both EasyModes and Collapse.
var zpModeTable = map[NodeKind]NodeKind{
	NAbsolute: NZeroPage, NAbsoluteX: NZeroPageX, NAbsoluteY: NZeroPageY,
	NIndirect: NZPIndirect, NAbsIndX: NIndirectX, NAbsIndY: NIndirectY,
	NAbsIndZ: NIndirectZ,
}

// EasyModes resolves instruction nodes whose operand is hardcoded
// (spec.md §4.4 step 6): chooses Relative/RelativeLong if the opcode
// has one, else attempts zero-page collapse, else promotes to the
// absolute-family equivalent. It also folds the Memory2 two-operand
// form into ZPRelative.
func EasyModes(ctx *Context, root *Node) *Node {
	env := ctx.Env
	env.Reset()
	return Transform(env, root, func(n *Node) *Node {
		defer applyPC(ctx, n)
		if n.Kind == NMemory2 {
			if rev, ok := ctx.Tbl.IsZPRelative(n.Name); ok {
				_ = rev
				return &Node{Point: n.Point, Kind: NZPRelative, Name: n.Name, Expr: n.Expr, Expr2: n.Expr2}
			}
			ctx.Diag.Error(n.Point, "%s does not support zero-page/relative mode", n.Name)
			return n
		}
		// A branch mnemonic always takes Relative (or RelativeLong under
		// 4502) mode -- unlike zero-page collapse, this is a property of
		// the mnemonic alone and does not wait for the operand to be a
		// known constant (spec.md §4.4 step 6).
		if n.Kind == NMemory {
			if rev, ok := ctx.Tbl.IsBranch(n.Name); ok {
				_ = rev
				if ctx.Opts.Enable4502 {
					return &Node{Point: n.Point, Kind: NRelativeLong, Name: n.Name, Expr: n.Expr}
				}
				return &Node{Point: n.Point, Kind: NRelative, Name: n.Name, Expr: n.Expr}
			}
		}
		if !n.Kind.IsInstruction() || n.Expr == nil || !n.Expr.Hardcoded() {
			return n
		}
		return resolveHardcodedMode(ctx, n)
	})
}

// absKindOf reports the absolute-family root kind for any node whose
// kind is either still parser-level (Memory*/Pointer*) or already an
// absolute-family kind, so the zero-page decision below can be applied
// uniformly regardless of which pass is asking.
func absKindOf(k NodeKind) (NodeKind, bool) {
	if abs, ok := memoryModeTable[k]; ok {
		return abs, true
	}
	if abs, ok := pointerModeTable[k]; ok {
		return abs, true
	}
	if _, ok := zpModeTable[k]; ok {
		return k, true
	}
	for abs, zp := range zpModeTable {
		if zp == k {
			return abs, true
		}
	}
	return k, false
}

// resolveMode picks the zero-page or absolute-family kind for n, given
// its currently known operand value, used by both EasyModes (operand
// known to be hardcoded) and Collapse (operand resolvable once labels
// settle). Relative/RelativeLong/ZPRelative/Implied/Immediate* never
// reach here.
func resolveMode(ctx *Context, n *Node, v int) *Node {
	abs, ok := absKindOf(n.Kind)
	if !ok {
		return n
	}
	if zp, ok2 := zpModeTable[abs]; ok2 && v >= 0 && v < 256 && !ctx.Opts.NoCollapse && supportsKind(ctx.Tbl, n.Name, zp) {
		return &Node{Point: n.Point, Kind: zp, Name: n.Name, Expr: n.Expr}
	}
	return &Node{Point: n.Point, Kind: abs, Name: n.Name, Expr: n.Expr}
}

func resolveHardcodedMode(ctx *Context, n *Node) *Node {
	v := n.Expr.Value(ctx.Env, ctx.Diag)
	return resolveMode(ctx, n, v)
}

//
// Pass 7: Collapse + ExtendBranches (fixed point)
//

// nonCollapsible is true for kinds Collapse/EasyModes must never touch:
// they have no zero-page/absolute duality at all.
func nonCollapsible(k NodeKind) bool {
	switch k {
	case NRelative, NRelativeLong, NZPRelative, NImplied, NImmediate, NImmediateLong:
		return true
	}
	return false
}

// Collapse resolves every remaining Memory*/Pointer* node (those
// EasyModes left untouched because their operand wasn't yet a known
// constant) to zero-page or absolute family, and re-derives already
// resolved nodes the same way -- so a prior zero-page choice is undone
// if a later branch extension has since pushed its value past 0xFF
// (spec.md §4.4 step 7). Each call first rebinds every label against
// the instruction widths chosen so far, so these decisions (and
// ExtendBranches's range checks after it) see current addresses rather
// than InitLabels's placeholder zeros.
func Collapse(ctx *Context, root *Node) (*Node, int) {
	env := ctx.Env
	env.Reset()
	Walk(env, root, func(n *Node) {
		if n.Kind == NLabel {
			if pc, ok := env.PC(); ok && n.Expr.Kind == PCRef {
				env.Bind(n.Name, pc)
			} else if n.Expr.Valid(env, ok) {
				env.Bind(n.Name, n.Expr.Value(env, ctx.Diag))
			}
		}
		applyPC(ctx, n)
	})
	env.Reset()
	count := 0
	out := Transform(env, root, func(n *Node) *Node {
		defer applyPC(ctx, n)
		if n.Expr == nil || !n.Kind.IsInstruction() || nonCollapsible(n.Kind) {
			return n
		}
		if !n.Expr.Valid(env, true) {
			return n
		}
		v := n.Expr.Value(env, ctx.Diag)
		next := resolveMode(ctx, n, v)
		if next.Kind != n.Kind {
			count++
		}
		return next
	})
	return out, count
}

// branchReverseSize is the encoded size of a reversed-branch-plus-jump
// sequence: 2 bytes for the reversed conditional branch, 3 for the JMP
// (spec.md §4.4 step 7 / §4.6).
const branchReverseSize = 5

// zprelReverseSize additionally carries the tested zero-page byte.
const zprelReverseSize = 6

// ExtendBranches rewrites any Relative/ZPRelative whose target is out
// of range into a reversed-branch-plus-JMP sequence, or into a 16-bit
// RelativeLong when 4502 extensions are enabled (spec.md §4.4 step 7).
func ExtendBranches(ctx *Context, root *Node) (*Node, int) {
	env := ctx.Env
	env.Reset()
	count := 0
	out := Transform(env, root, func(n *Node) *Node {
		defer applyPC(ctx, n)
		switch n.Kind {
		case NRelative:
			pc, _ := env.PC()
			target := n.Expr.Value(env, ctx.Diag)
			offset := target - (pc + 2)
			if offset >= -128 && offset <= 127 {
				return n
			}
			count++
			if ctx.Opts.Enable4502 {
				return &Node{Point: n.Point, Kind: NRelativeLong, Name: n.Name, Expr: n.Expr}
			}
			return extendBranch(ctx, n)
		case NZPRelative:
			pc, _ := env.PC()
			target := n.Expr2.Value(env, ctx.Diag)
			offset := target - (pc + 3)
			if offset >= -128 && offset <= 127 {
				return n
			}
			count++
			return extendZPRelative(ctx, n)
		}
		return n
	})
	return out, count
}

func extendBranch(ctx *Context, n *Node) *Node {
	if n.Name == "bra" {
		return &Node{Point: n.Point, Kind: NAbsolute, Name: "jmp", Expr: n.Expr}
	}
	rev, ok := ctx.Tbl.IsBranch(n.Name)
	if !ok || rev == "" {
		ctx.Diag.Error(n.Point, "%s has no reversed form for branch extension", n.Name)
		return n
	}
	skip := &Expr{
		Point:     n.Point,
		Kind:      Sequence,
		Operands:  []*Expr{pcExpr(n.Point), constExpr(n.Point, branchReverseSize)},
		Operators: []byte{'+'},
	}
	return Seq(n.Point,
		&Node{Point: n.Point, Kind: NRelative, Name: rev, Expr: skip},
		&Node{Point: n.Point, Kind: NAbsolute, Name: "jmp", Expr: n.Expr},
	)
}

func extendZPRelative(ctx *Context, n *Node) *Node {
	rev, ok := ctx.Tbl.IsZPRelative(n.Name)
	if !ok {
		ctx.Diag.Error(n.Point, "%s has no reversed form for branch extension", n.Name)
		return n
	}
	skip := &Expr{
		Point:     n.Point,
		Kind:      Sequence,
		Operands:  []*Expr{pcExpr(n.Point), constExpr(n.Point, zprelReverseSize)},
		Operators: []byte{'+'},
	}
	return Seq(n.Point,
		&Node{Point: n.Point, Kind: NZPRelative, Name: rev, Expr: n.Expr, Expr2: skip},
		&Node{Point: n.Point, Kind: NAbsolute, Name: "jmp", Expr: n.Expr2},
	)
}

//
// Pass 8: NormalizeModes
//

// NormalizeModes rewrites any remaining parser-level Memory*/Pointer*
// kind to its Absolute-family equivalent (spec.md §4.4 step 8): by
// this point only operands that never collapsed and never matched a
// relative form remain in these kinds.
func NormalizeModes(ctx *Context, root *Node) *Node {
	env := ctx.Env
	env.Reset()
	return Transform(env, root, func(n *Node) *Node {
		defer applyPC(ctx, n)
		if abs, ok := memoryModeTable[n.Kind]; ok {
			return &Node{Point: n.Point, Kind: abs, Name: n.Name, Expr: n.Expr}
		}
		if res, ok := pointerModeTable[n.Kind]; ok {
			return &Node{Point: n.Point, Kind: res, Name: n.Name, Expr: n.Expr}
		}
		return n
	})
}

//
// Pass 9: UpdateLabels
//

// UpdateLabels performs one final PC-tracking walk to settle label
// values against the final instruction widths (spec.md §4.4 step 9).
func UpdateLabels(ctx *Context, root *Node) {
	env := ctx.Env
	env.Reset()
	Walk(env, root, func(n *Node) {
		switch n.Kind {
		case NLabel:
			if pc, ok := env.PC(); ok && n.Expr.Kind == PCRef {
				env.Bind(n.Name, pc)
			} else if n.Expr.Valid(env, ok) {
				env.Bind(n.Name, n.Expr.Value(env, ctx.Diag))
			}
		case NSetPC, NAdvance:
			if n.Expr.Valid(env, true) {
				env.SetPC(n.Expr.Value(env, ctx.Diag))
			} else {
				env.InvalidatePC()
			}
		case NCheckPC:
			if pc, ok := env.PC(); ok {
				target := n.Expr.Value(env, ctx.Diag)
				if pc > target {
					ctx.Diag.Error(n.Point, "program counter $%04X exceeds checkpoint $%04X", pc, target)
				}
			}
		}
		advancePC(env, n)
	})
}

