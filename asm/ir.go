package asm

import "strings"

// NodeKind is the open enumeration of IR node tags named by spec.md §3.
// Per spec.md §9 this is expressed as a closed, tagged sum dispatched
// with a single Go switch rather than a revived visitor hierarchy.
type NodeKind int

const (
	NSequence NodeKind = iota
	NNull
	NLabel
	NSetPC
	NAdvance
	NCheckPC
	NScopeBegin
	NScopeEnd
	NTextSegment
	NDataSegment
	NMacroBegin
	NMacroEnd
	NMacroInvoke
	NByte
	NWord
	NDword
	NWordBE
	NDwordBE
	NByteRange

	// parser-level instruction nodes: unresolved operand width.
	NImplied
	NImmediate
	NImmediateLong
	NMemory
	NMemoryX
	NMemoryY
	NMemory2 // two-expr form, e.g. "bbr0 zp, target"; folded by EasyModes
	NPointer
	NPointerX
	NPointerY
	NPointerZ
	NPointerSPY

	// resolved instruction nodes: concrete addressing mode.
	NZeroPage
	NZeroPageX
	NZeroPageY
	NAbsolute
	NAbsoluteX
	NAbsoluteY
	NIndirect
	NAbsIndX
	NAbsIndY
	NAbsIndZ
	NZPIndirect
	NIndirectX
	NIndirectY
	NIndirectZ
	NIndirectSPY
	NRelative
	NRelativeLong
	NZPRelative
)

// instructionKinds lists the node kinds that represent an instruction
// (as opposed to a pragma or structural node).
var instructionKinds = map[NodeKind]bool{
	NImplied: true, NImmediate: true, NImmediateLong: true,
	NMemory: true, NMemoryX: true, NMemoryY: true, NMemory2: true,
	NPointer: true, NPointerX: true, NPointerY: true, NPointerZ: true, NPointerSPY: true,
	NZeroPage: true, NZeroPageX: true, NZeroPageY: true,
	NAbsolute: true, NAbsoluteX: true, NAbsoluteY: true,
	NIndirect: true, NAbsIndX: true, NAbsIndY: true, NAbsIndZ: true,
	NZPIndirect: true, NIndirectX: true, NIndirectY: true, NIndirectZ: true, NIndirectSPY: true,
	NRelative: true, NRelativeLong: true, NZPRelative: true,
}

// IsInstruction reports whether k tags an instruction node.
func (k NodeKind) IsInstruction() bool { return instructionKinds[k] }

// Node is the single discriminated IR node type. Only the fields
// relevant to Kind are populated; which fields matter for which kind
// is documented per field below.
type Node struct {
	Point SourcePosition
	Kind  NodeKind

	// NSequence: ordered statement/instruction list.
	Children []*Node

	// NLabel: Name is the label, Expr its bound value (usually PCRef).
	// NTextSegment/NDataSegment: Name is the segment name.
	// NMacroBegin/NMacroEnd/NMacroInvoke: Name is the macro name.
	// NAlias-shaped (.alias uses NLabel with an arbitrary Expr target).
	// instruction nodes: Name is the mnemonic.
	Name string

	// NSetPC, NCheckPC, NLabel(target), instruction primary operand.
	Expr *Expr

	// NAdvance: fill value. NMemory2/NZPRelative: branch target.
	Expr2 *Expr

	// NByte, NWord, NDword, NWordBE, NDwordBE: data list.
	// NMacroInvoke: actual arguments.
	Exprs []*Expr

	// NByteRange (.incbin): raw bytes read from a binary file.
	Bytes []byte
}

// Null is the identity node for Seq.
func Null(point SourcePosition) *Node {
	return &Node{Point: point, Kind: NNull}
}

// Seq builds a Sequence node from nodes, dropping any Null children
// (spec.md §3: "a special Null node is the identity for the Sequence
// constructor and is dropped on concatenation"). A single surviving
// child is returned directly instead of being wrapped.
func Seq(point SourcePosition, nodes ...*Node) *Node {
	var kept []*Node
	for _, n := range nodes {
		if n == nil || n.Kind == NNull {
			continue
		}
		if n.Kind == NSequence && n.Point == point {
			kept = append(kept, n.Children...)
			continue
		}
		kept = append(kept, n)
	}
	if len(kept) == 0 {
		return Null(point)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &Node{Point: point, Kind: NSequence, Children: kept}
}

// Clone deep-copies a node and its entire subtree, used by macro
// expansion so invocation sites never share mutable IR with the body
// captured at .macend (SPEC_FULL.md §4.3).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Point: n.Point,
		Kind:  n.Kind,
		Name:  n.Name,
		Expr:  n.Expr.Clone(),
		Expr2: n.Expr2.Clone(),
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.Clone()
		}
	}
	if n.Exprs != nil {
		c.Exprs = make([]*Expr, len(n.Exprs))
		for i, e := range n.Exprs {
			c.Exprs[i] = e.Clone()
		}
	}
	if n.Bytes != nil {
		c.Bytes = append([]byte(nil), n.Bytes...)
	}
	return c
}

// kindNames supports IR dumps at verbosity level 4.
var kindNames = map[NodeKind]string{
	NSequence: "Sequence", NNull: "Null", NLabel: "Label", NSetPC: "SetPC",
	NAdvance: "Advance", NCheckPC: "CheckPC", NScopeBegin: "ScopeBegin", NScopeEnd: "ScopeEnd",
	NTextSegment: "TextSegment", NDataSegment: "DataSegment", NMacroBegin: "MacroBegin",
	NMacroEnd: "MacroEnd", NMacroInvoke: "MacroInvoke", NByte: "Byte", NWord: "Word",
	NDword: "Dword", NWordBE: "WordBE", NDwordBE: "DwordBE", NByteRange: "ByteRange",
	NImplied: "Implied", NImmediate: "Immediate", NImmediateLong: "ImmediateLong",
	NMemory: "Memory", NMemoryX: "MemoryX", NMemoryY: "MemoryY", NMemory2: "Memory2",
	NPointer: "Pointer", NPointerX: "PointerX", NPointerY: "PointerY", NPointerZ: "PointerZ", NPointerSPY: "PointerSPY",
	NZeroPage: "ZeroPage", NZeroPageX: "ZeroPageX", NZeroPageY: "ZeroPageY",
	NAbsolute: "Absolute", NAbsoluteX: "AbsoluteX", NAbsoluteY: "AbsoluteY",
	NIndirect: "Indirect", NAbsIndX: "AbsIndX", NAbsIndY: "AbsIndY", NAbsIndZ: "AbsIndZ",
	NZPIndirect: "ZPIndirect", NIndirectX: "IndirectX", NIndirectY: "IndirectY", NIndirectZ: "IndirectZ", NIndirectSPY: "IndirectSPY",
	NRelative: "Relative", NRelativeLong: "RelativeLong", NZPRelative: "ZPRelative",
}

func (k NodeKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

func (n *Node) dump(indent string, sb *strings.Builder) {
	sb.WriteString(indent)
	sb.WriteString(string(n.Point))
	sb.WriteString(" ")
	sb.WriteString(n.Kind.String())
	if n.Name != "" {
		sb.WriteString(" " + n.Name)
	}
	if n.Expr != nil {
		sb.WriteString(" " + n.Expr.String())
	}
	if n.Expr2 != nil {
		sb.WriteString(", " + n.Expr2.String())
	}
	sb.WriteString("\n")
	for _, c := range n.Children {
		c.dump(indent+"  ", sb)
	}
}

// Dump renders the IR tree, used by verbosity level 4.
func (n *Node) Dump() string {
	var sb strings.Builder
	n.dump("", &sb)
	return sb.String()
}
