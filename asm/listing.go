package asm

import "fmt"

// ListingLine is one emitted-bytes record for the -l/--listfile
// output, grounded on Ophis/Listing.py's Listing class: a source
// position, the PC the bytes were emitted at, and the bytes
// themselves. A label is recorded with no Bytes so the listing shows
// its resolved address; nodes in a .data segment emit nothing and get
// no record.
type ListingLine struct {
	Point SourcePosition
	PC    int
	Bytes []byte
}

// AssembleBytes is the final pass (spec.md §4.4's last step): it walks
// the fully-resolved IR and emits the concrete byte sequence for every
// instruction and data node, skipping emission (but still advancing
// the PC) while the active segment is a .data segment -- Environment's
// isText flag is exactly this distinction.
func AssembleBytes(ctx *Context, root *Node) ([]byte, []ListingLine) {
	env := ctx.Env
	env.Reset()
	var out []byte
	var listing []ListingLine

	emit := func(n *Node, bytes []byte) {
		if env.InText() {
			pc, _ := env.PC()
			out = append(out, bytes...)
			listing = append(listing, ListingLine{Point: n.Point, PC: pc, Bytes: bytes})
		}
		advancePC(env, n)
	}

	Walk(env, root, func(n *Node) {
		switch n.Kind {
		case NLabel:
			pc, _ := env.PC()
			listing = append(listing, ListingLine{Point: n.Point, PC: pc})
		case NSetPC:
			if n.Expr.Valid(env, true) {
				env.SetPC(n.Expr.Value(env, ctx.Diag))
			}
		case NAdvance:
			target := n.Expr.Value(env, ctx.Diag)
			pc, ok := env.PC()
			if ok && env.InText() {
				fill := byte(n.Expr2.Value(env, ctx.Diag) & 0xFF)
				for p := pc; p < target; p++ {
					out = append(out, fill)
				}
				listing = append(listing, ListingLine{Point: n.Point, PC: pc, Bytes: repeatByte(fill, target-pc)})
			}
			env.SetPC(target)
		case NCheckPC:
			// validated by UpdateLabels; nothing to emit.
		case NByte:
			var bs []byte
			for _, e := range n.Exprs {
				bs = append(bs, byte(e.Value(env, ctx.Diag)&0xFF))
			}
			emit(n, bs)
		case NWord:
			var bs []byte
			for _, e := range n.Exprs {
				bs = append(bs, toBytes(2, e.Value(env, ctx.Diag))...)
			}
			emit(n, bs)
		case NDword:
			var bs []byte
			for _, e := range n.Exprs {
				bs = append(bs, toBytes(4, e.Value(env, ctx.Diag))...)
			}
			emit(n, bs)
		case NWordBE:
			var bs []byte
			for _, e := range n.Exprs {
				bs = append(bs, toBytesBE(2, e.Value(env, ctx.Diag))...)
			}
			emit(n, bs)
		case NDwordBE:
			var bs []byte
			for _, e := range n.Exprs {
				bs = append(bs, toBytesBE(4, e.Value(env, ctx.Diag))...)
			}
			emit(n, bs)
		case NByteRange:
			emit(n, n.Bytes)
		default:
			if n.Kind.IsInstruction() {
				emit(n, encodeInstruction(ctx, n))
			}
		}
	})

	return out, listing
}

func repeatByte(b byte, n int) []byte {
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// encodeInstruction resolves the single opcode table row for a fully
// normalized instruction node and emits opcode + operand bytes
// (spec.md §4.6): ZPRelative/Memory2's two operands are emitted
// zero-page-byte first, then the relative offset.
func encodeInstruction(ctx *Context, n *Node) []byte {
	mode, ok := modeOf[n.Kind]
	if !ok {
		ctx.Diag.Error(n.Point, "internal error: unresolved addressing mode for %s", n.Name)
		return nil
	}
	inst, ok := ctx.Tbl.Find(n.Name, mode, ctx.Chips)
	if !ok {
		ctx.Diag.Error(n.Point, "%s does not support %s under the active chip set", n.Name, mode)
		return nil
	}

	switch n.Kind {
	case NImplied:
		return []byte{inst.Opcode}
	case NZPRelative:
		pc, _ := ctx.Env.PC()
		zp := byte(n.Expr.Value(ctx.Env, ctx.Diag) & 0xFF)
		target := n.Expr2.Value(ctx.Env, ctx.Diag)
		offset := target - (pc + 3)
		if offset < -128 || offset > 127 {
			ctx.Diag.Error(n.Point, "relative branch target out of range")
			offset = 0
		}
		return []byte{inst.Opcode, zp, byte(int8(offset))}
	case NRelative:
		pc, _ := ctx.Env.PC()
		target := n.Expr.Value(ctx.Env, ctx.Diag)
		offset := target - (pc + 2)
		if offset < -128 || offset > 127 {
			ctx.Diag.Error(n.Point, "relative branch target out of range")
			offset = 0
		}
		return []byte{inst.Opcode, byte(int8(offset))}
	case NRelativeLong:
		pc, _ := ctx.Env.PC()
		target := n.Expr.Value(ctx.Env, ctx.Diag)
		offset := target - (pc + 3)
		return append([]byte{inst.Opcode}, toBytes(2, offset)...)
	case NImmediateLong:
		return append([]byte{inst.Opcode}, toBytes(2, n.Expr.Value(ctx.Env, ctx.Diag))...)
	default:
		v := n.Expr.Value(ctx.Env, ctx.Diag)
		argLen := mode.ArgLen()
		return append([]byte{inst.Opcode}, toBytes(argLen, v)...)
	}
}

// RenderListing formats a listing as plain text, grounded on
// Ophis/Listing.py's Listing output: "addr: bytes" per emitted record.
func RenderListing(lines []ListingLine) string {
	var out string
	for _, l := range lines {
		out += fmt.Sprintf("%04X: %-24s %s\n", l.PC, byteString(l.Bytes), l.Point)
	}
	return out
}

// RenderLabelMap formats the final label table as plain text, grounded
// on Ophis/Listing.py's LabelMapper: "name = $addr" per label, one per
// line (no particular sort order is guaranteed, matching a Go map's
// native iteration).
func RenderLabelMap(labels map[string]int) string {
	var out string
	for name, v := range labels {
		out += fmt.Sprintf("%s = $%04X\n", name, v)
	}
	return out
}
