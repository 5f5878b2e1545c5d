// Package opcodes holds the static opcode table for the MOS 6502 family:
// the base NMOS 6502, the undocumented 6510 opcodes, the 65C02 extensions,
// and the CSG 4502 (65CE02-lineage) extensions.
package opcodes

import "strings"

// Mode identifies an addressing mode that has a concrete, resolved
// operand width. Parser-level modes that still need width resolution
// (Memory, MemoryX, MemoryY, Pointer, PointerX, PointerY, PointerZ,
// PointerSPY) live in the asm package's IR and are not represented here.
type Mode int

const (
	Implied Mode = iota
	Immediate
	ImmediateLong
	ZeroPage
	ZeroPageX
	ZeroPageY
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	AbsIndX
	AbsIndY
	AbsIndZ
	ZPIndirect
	IndirectX
	IndirectY
	IndirectZ
	IndirectSPY
	Relative
	RelativeLong
	ZPRelative
	numModes
)

var modeNames = [numModes]string{
	Implied:       "implied",
	Immediate:     "immediate",
	ImmediateLong: "immediate (16-bit)",
	ZeroPage:      "zero page",
	ZeroPageX:     "zero page,X",
	ZeroPageY:     "zero page,Y",
	Absolute:      "absolute",
	AbsoluteX:     "absolute,X",
	AbsoluteY:     "absolute,Y",
	Indirect:      "indirect",
	AbsIndX:       "(absolute,X)",
	AbsIndY:       "(absolute,Y)",
	AbsIndZ:       "(absolute,Z)",
	ZPIndirect:    "(zero page)",
	IndirectX:     "(zero page,X)",
	IndirectY:     "(zero page),Y",
	IndirectZ:     "(zero page),Z",
	IndirectSPY:   "(d,SP),Y",
	Relative:      "relative",
	RelativeLong:  "relative (16-bit)",
	ZPRelative:    "zero page, relative",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= int(numModes) {
		return "unknown mode"
	}
	return modeNames[m]
}

// ArgLen is the number of operand bytes following the opcode byte for a
// given mode (not counting the opcode byte itself).
func (m Mode) ArgLen() int {
	switch m {
	case Implied:
		return 0
	case Immediate, ZeroPage, ZeroPageX, ZeroPageY, ZPIndirect, IndirectX,
		IndirectY, IndirectZ, IndirectSPY, Relative:
		return 1
	case ImmediateLong, Absolute, AbsoluteX, AbsoluteY, Indirect, AbsIndX,
		AbsIndY, AbsIndZ, RelativeLong, ZPRelative:
		return 2
	}
	return 0
}

// Chip is a bitmask of the CPU variants that support a given opcode row.
// The sets are additive: enabling 65C02 or 4502 mode still accepts the
// base NMOS instruction set, and 4502 mode is a superset of 65C02 mode.
type Chip uint8

const (
	NMOS Chip = 1 << iota
	Undoc6510
	CMOS65C02
	CSG4502
)

// Enabled computes the chip mask selected by the given assembler options.
func Enabled(undoc, cmos, csg4502 bool) Chip {
	c := NMOS
	if undoc {
		c |= Undoc6510
	}
	if cmos {
		c |= CMOS65C02
	}
	if csg4502 {
		c |= CMOS65C02 | CSG4502
	}
	return c
}

// Instruction is one (mnemonic, mode) row of the opcode table.
type Instruction struct {
	Mnemonic string
	Mode     Mode
	Opcode   byte
	Chips    Chip
	// ReversedMnemonic names the reversed-condition mnemonic of a
	// branch-style opcode that ExtendBranches may rewrite (empty for
	// non-branches and for opcodes with no inverse, e.g. bra).
	ReversedMnemonic string
}

// Table is a queryable opcode table.
type Table struct {
	byMnemonic map[string][]Instruction
}

var std = buildTable()

// Std returns the full built-in opcode table (all chip variants).
func Std() *Table { return std }

// Lookup returns every row for mnemonic that is enabled under chips.
func (t *Table) Lookup(mnemonic string, chips Chip) []Instruction {
	rows := t.byMnemonic[strings.ToLower(mnemonic)]
	var out []Instruction
	for _, r := range rows {
		if r.Chips&chips != 0 {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the single row for (mnemonic, mode) enabled under chips,
// or ok=false if no such row exists.
func (t *Table) Find(mnemonic string, mode Mode, chips Chip) (Instruction, bool) {
	for _, r := range t.Lookup(mnemonic, chips) {
		if r.Mode == mode {
			return r, true
		}
	}
	return Instruction{}, false
}

// Supports reports whether mnemonic has any row for mode under any chip
// variant at all (used by zero-page selection, which picks a mode
// before the encoder checks it against the active chip set).
func (t *Table) Supports(mnemonic string, mode Mode) bool {
	for _, r := range t.byMnemonic[strings.ToLower(mnemonic)] {
		if r.Mode == mode {
			return true
		}
	}
	return false
}

// Known reports whether mnemonic appears anywhere in the table.
func (t *Table) Known(mnemonic string) bool {
	_, ok := t.byMnemonic[strings.ToLower(mnemonic)]
	return ok
}

// IsBranch reports whether mnemonic is a relative-branch opcode (one
// ExtendBranches may need to rewrite), and returns its reversed form.
func (t *Table) IsBranch(mnemonic string) (reversed string, ok bool) {
	rows := t.byMnemonic[strings.ToLower(mnemonic)]
	for _, r := range rows {
		if r.Mode == Relative || r.Mode == RelativeLong {
			return r.ReversedMnemonic, true
		}
	}
	return "", false
}

// IsZPRelative reports whether mnemonic uses the combined
// zero-page-test-and-branch mode (Rockwell bbr/bbs style).
func (t *Table) IsZPRelative(mnemonic string) (reversed string, ok bool) {
	rows := t.byMnemonic[strings.ToLower(mnemonic)]
	for _, r := range rows {
		if r.Mode == ZPRelative {
			return r.ReversedMnemonic, true
		}
	}
	return "", false
}

type row struct {
	mnem string
	mode Mode
	op   byte
	rev  string
}

func buildTable() *Table {
	t := &Table{byMnemonic: make(map[string][]Instruction)}
	add := func(chips Chip, rows []row) {
		for _, r := range rows {
			t.byMnemonic[r.mnem] = append(t.byMnemonic[r.mnem], Instruction{
				Mnemonic:         r.mnem,
				Mode:             r.mode,
				Opcode:           r.op,
				Chips:            chips,
				ReversedMnemonic: r.rev,
			})
		}
	}
	add(NMOS, nmosRows)
	add(Undoc6510, undocRows)
	add(CMOS65C02, cmosRows)
	add(CSG4502, csg4502Rows)
	return t
}

// nmosRows is the complete documented base 6502 instruction set.
var nmosRows = []row{
	// ADC
	{"adc", Immediate, 0x69, ""}, {"adc", ZeroPage, 0x65, ""}, {"adc", ZeroPageX, 0x75, ""},
	{"adc", Absolute, 0x6D, ""}, {"adc", AbsoluteX, 0x7D, ""}, {"adc", AbsoluteY, 0x79, ""},
	{"adc", IndirectX, 0x61, ""}, {"adc", IndirectY, 0x71, ""},
	// AND
	{"and", Immediate, 0x29, ""}, {"and", ZeroPage, 0x25, ""}, {"and", ZeroPageX, 0x35, ""},
	{"and", Absolute, 0x2D, ""}, {"and", AbsoluteX, 0x3D, ""}, {"and", AbsoluteY, 0x39, ""},
	{"and", IndirectX, 0x21, ""}, {"and", IndirectY, 0x31, ""},
	// ASL
	{"asl", Implied, 0x0A, ""}, {"asl", ZeroPage, 0x06, ""}, {"asl", ZeroPageX, 0x16, ""},
	{"asl", Absolute, 0x0E, ""}, {"asl", AbsoluteX, 0x1E, ""},
	// branches
	{"bcc", Relative, 0x90, "bcs"}, {"bcs", Relative, 0xB0, "bcc"},
	{"beq", Relative, 0xF0, "bne"}, {"bne", Relative, 0xD0, "beq"},
	{"bmi", Relative, 0x30, "bpl"}, {"bpl", Relative, 0x10, "bmi"},
	{"bvc", Relative, 0x50, "bvs"}, {"bvs", Relative, 0x70, "bvc"},
	{"bit", ZeroPage, 0x24, ""}, {"bit", Absolute, 0x2C, ""},
	{"brk", Implied, 0x00, ""},
	// CLx/SEx
	{"clc", Implied, 0x18, ""}, {"cld", Implied, 0xD8, ""}, {"cli", Implied, 0x58, ""}, {"clv", Implied, 0xB8, ""},
	{"sec", Implied, 0x38, ""}, {"sed", Implied, 0xF8, ""}, {"sei", Implied, 0x78, ""},
	// CMP
	{"cmp", Immediate, 0xC9, ""}, {"cmp", ZeroPage, 0xC5, ""}, {"cmp", ZeroPageX, 0xD5, ""},
	{"cmp", Absolute, 0xCD, ""}, {"cmp", AbsoluteX, 0xDD, ""}, {"cmp", AbsoluteY, 0xD9, ""},
	{"cmp", IndirectX, 0xC1, ""}, {"cmp", IndirectY, 0xD1, ""},
	{"cpx", Immediate, 0xE0, ""}, {"cpx", ZeroPage, 0xE4, ""}, {"cpx", Absolute, 0xEC, ""},
	{"cpy", Immediate, 0xC0, ""}, {"cpy", ZeroPage, 0xC4, ""}, {"cpy", Absolute, 0xCC, ""},
	// DEC/INC
	{"dec", ZeroPage, 0xC6, ""}, {"dec", ZeroPageX, 0xD6, ""}, {"dec", Absolute, 0xCE, ""}, {"dec", AbsoluteX, 0xDE, ""},
	{"inc", ZeroPage, 0xE6, ""}, {"inc", ZeroPageX, 0xF6, ""}, {"inc", Absolute, 0xEE, ""}, {"inc", AbsoluteX, 0xFE, ""},
	{"dex", Implied, 0xCA, ""}, {"dey", Implied, 0x88, ""}, {"inx", Implied, 0xE8, ""}, {"iny", Implied, 0xC8, ""},
	// EOR
	{"eor", Immediate, 0x49, ""}, {"eor", ZeroPage, 0x45, ""}, {"eor", ZeroPageX, 0x55, ""},
	{"eor", Absolute, 0x4D, ""}, {"eor", AbsoluteX, 0x5D, ""}, {"eor", AbsoluteY, 0x59, ""},
	{"eor", IndirectX, 0x41, ""}, {"eor", IndirectY, 0x51, ""},
	// jumps/calls
	{"jmp", Absolute, 0x4C, ""}, {"jmp", Indirect, 0x6C, ""},
	{"jsr", Absolute, 0x20, ""}, {"rts", Implied, 0x60, ""}, {"rti", Implied, 0x40, ""},
	// LDA/LDX/LDY
	{"lda", Immediate, 0xA9, ""}, {"lda", ZeroPage, 0xA5, ""}, {"lda", ZeroPageX, 0xB5, ""},
	{"lda", Absolute, 0xAD, ""}, {"lda", AbsoluteX, 0xBD, ""}, {"lda", AbsoluteY, 0xB9, ""},
	{"lda", IndirectX, 0xA1, ""}, {"lda", IndirectY, 0xB1, ""},
	{"ldx", Immediate, 0xA2, ""}, {"ldx", ZeroPage, 0xA6, ""}, {"ldx", ZeroPageY, 0xB6, ""},
	{"ldx", Absolute, 0xAE, ""}, {"ldx", AbsoluteY, 0xBE, ""},
	{"ldy", Immediate, 0xA0, ""}, {"ldy", ZeroPage, 0xA4, ""}, {"ldy", ZeroPageX, 0xB4, ""},
	{"ldy", Absolute, 0xAC, ""}, {"ldy", AbsoluteX, 0xBC, ""},
	// LSR
	{"lsr", Implied, 0x4A, ""}, {"lsr", ZeroPage, 0x46, ""}, {"lsr", ZeroPageX, 0x56, ""},
	{"lsr", Absolute, 0x4E, ""}, {"lsr", AbsoluteX, 0x5E, ""},
	{"nop", Implied, 0xEA, ""},
	// ORA
	{"ora", Immediate, 0x09, ""}, {"ora", ZeroPage, 0x05, ""}, {"ora", ZeroPageX, 0x15, ""},
	{"ora", Absolute, 0x0D, ""}, {"ora", AbsoluteX, 0x1D, ""}, {"ora", AbsoluteY, 0x19, ""},
	{"ora", IndirectX, 0x01, ""}, {"ora", IndirectY, 0x11, ""},
	// stack
	{"pha", Implied, 0x48, ""}, {"php", Implied, 0x08, ""}, {"pla", Implied, 0x68, ""}, {"plp", Implied, 0x28, ""},
	// ROL/ROR
	{"rol", Implied, 0x2A, ""}, {"rol", ZeroPage, 0x26, ""}, {"rol", ZeroPageX, 0x36, ""},
	{"rol", Absolute, 0x2E, ""}, {"rol", AbsoluteX, 0x3E, ""},
	{"ror", Implied, 0x6A, ""}, {"ror", ZeroPage, 0x66, ""}, {"ror", ZeroPageX, 0x76, ""},
	{"ror", Absolute, 0x6E, ""}, {"ror", AbsoluteX, 0x7E, ""},
	// SBC
	{"sbc", Immediate, 0xE9, ""}, {"sbc", ZeroPage, 0xE5, ""}, {"sbc", ZeroPageX, 0xF5, ""},
	{"sbc", Absolute, 0xED, ""}, {"sbc", AbsoluteX, 0xFD, ""}, {"sbc", AbsoluteY, 0xF9, ""},
	{"sbc", IndirectX, 0xE1, ""}, {"sbc", IndirectY, 0xF1, ""},
	// STA/STX/STY
	{"sta", ZeroPage, 0x85, ""}, {"sta", ZeroPageX, 0x95, ""}, {"sta", Absolute, 0x8D, ""},
	{"sta", AbsoluteX, 0x9D, ""}, {"sta", AbsoluteY, 0x99, ""}, {"sta", IndirectX, 0x81, ""}, {"sta", IndirectY, 0x91, ""},
	{"stx", ZeroPage, 0x86, ""}, {"stx", ZeroPageY, 0x96, ""}, {"stx", Absolute, 0x8E, ""},
	{"sty", ZeroPage, 0x84, ""}, {"sty", ZeroPageX, 0x94, ""}, {"sty", Absolute, 0x8C, ""},
	// transfers
	{"tax", Implied, 0xAA, ""}, {"tay", Implied, 0xA8, ""}, {"tsx", Implied, 0xBA, ""},
	{"txa", Implied, 0x8A, ""}, {"txs", Implied, 0x9A, ""}, {"tya", Implied, 0x98, ""},
}

// undocRows is a representative set of the well-known 6510 undocumented
// opcodes (combined read-modify-write and load/store instructions, plus
// the common immediate-mode "magic constant" opcodes).
var undocRows = []row{
	{"slo", ZeroPage, 0x07, ""}, {"slo", ZeroPageX, 0x17, ""}, {"slo", Absolute, 0x0F, ""},
	{"slo", AbsoluteX, 0x1F, ""}, {"slo", AbsoluteY, 0x1B, ""}, {"slo", IndirectX, 0x03, ""}, {"slo", IndirectY, 0x13, ""},
	{"rla", ZeroPage, 0x27, ""}, {"rla", ZeroPageX, 0x37, ""}, {"rla", Absolute, 0x2F, ""},
	{"rla", AbsoluteX, 0x3F, ""}, {"rla", AbsoluteY, 0x3B, ""}, {"rla", IndirectX, 0x23, ""}, {"rla", IndirectY, 0x33, ""},
	{"sre", ZeroPage, 0x47, ""}, {"sre", ZeroPageX, 0x57, ""}, {"sre", Absolute, 0x4F, ""},
	{"sre", AbsoluteX, 0x5F, ""}, {"sre", AbsoluteY, 0x5B, ""}, {"sre", IndirectX, 0x43, ""}, {"sre", IndirectY, 0x53, ""},
	{"rra", ZeroPage, 0x67, ""}, {"rra", ZeroPageX, 0x77, ""}, {"rra", Absolute, 0x6F, ""},
	{"rra", AbsoluteX, 0x7F, ""}, {"rra", AbsoluteY, 0x7B, ""}, {"rra", IndirectX, 0x63, ""}, {"rra", IndirectY, 0x73, ""},
	{"sax", ZeroPage, 0x87, ""}, {"sax", ZeroPageY, 0x97, ""}, {"sax", Absolute, 0x8F, ""}, {"sax", IndirectX, 0x83, ""},
	{"lax", ZeroPage, 0xA7, ""}, {"lax", ZeroPageY, 0xB7, ""}, {"lax", Absolute, 0xAF, ""},
	{"lax", AbsoluteY, 0xBF, ""}, {"lax", IndirectX, 0xA3, ""}, {"lax", IndirectY, 0xB3, ""},
	{"dcp", ZeroPage, 0xC7, ""}, {"dcp", ZeroPageX, 0xD7, ""}, {"dcp", Absolute, 0xCF, ""},
	{"dcp", AbsoluteX, 0xDF, ""}, {"dcp", AbsoluteY, 0xDB, ""}, {"dcp", IndirectX, 0xC3, ""}, {"dcp", IndirectY, 0xD3, ""},
	{"isc", ZeroPage, 0xE7, ""}, {"isc", ZeroPageX, 0xF7, ""}, {"isc", Absolute, 0xEF, ""},
	{"isc", AbsoluteX, 0xFF, ""}, {"isc", AbsoluteY, 0xFB, ""}, {"isc", IndirectX, 0xE3, ""}, {"isc", IndirectY, 0xF3, ""},
	{"anc", Immediate, 0x0B, ""}, {"alr", Immediate, 0x4B, ""}, {"arr", Immediate, 0x6B, ""}, {"axs", Immediate, 0xCB, ""},
}

// cmosRows is the 65C02 (including Rockwell bbr/bbs/rmb/smb) extension
// set: new instructions, new addressing modes on existing mnemonics, and
// the (zero page) indirect-without-index mode.
var cmosRows = []row{
	{"bra", Relative, 0x80, ""},
	{"phx", Implied, 0xDA, ""}, {"phy", Implied, 0x5A, ""}, {"plx", Implied, 0xFA, ""}, {"ply", Implied, 0x7A, ""},
	{"stz", ZeroPage, 0x64, ""}, {"stz", ZeroPageX, 0x74, ""}, {"stz", Absolute, 0x9C, ""}, {"stz", AbsoluteX, 0x9E, ""},
	{"trb", ZeroPage, 0x14, ""}, {"trb", Absolute, 0x1C, ""},
	{"tsb", ZeroPage, 0x04, ""}, {"tsb", Absolute, 0x0C, ""},
	{"inc", Implied, 0x1A, ""}, {"dec", Implied, 0x3A, ""},
	{"bit", Immediate, 0x89, ""}, {"bit", ZeroPageX, 0x34, ""}, {"bit", AbsoluteX, 0x3C, ""},
	{"jmp", AbsIndX, 0x7C, ""},
	// (zp) indirect without index, added to the usual accumulator ops
	{"adc", ZPIndirect, 0x72, ""}, {"and", ZPIndirect, 0x32, ""}, {"cmp", ZPIndirect, 0xD2, ""},
	{"eor", ZPIndirect, 0x52, ""}, {"lda", ZPIndirect, 0xB2, ""}, {"ora", ZPIndirect, 0x12, ""},
	{"sbc", ZPIndirect, 0xF2, ""}, {"sta", ZPIndirect, 0x92, ""},
	// Rockwell bit-test-and-branch / bit-set/reset-memory
	{"rmb0", ZeroPage, 0x07, ""}, {"rmb1", ZeroPage, 0x17, ""}, {"rmb2", ZeroPage, 0x27, ""}, {"rmb3", ZeroPage, 0x37, ""},
	{"rmb4", ZeroPage, 0x47, ""}, {"rmb5", ZeroPage, 0x57, ""}, {"rmb6", ZeroPage, 0x67, ""}, {"rmb7", ZeroPage, 0x77, ""},
	{"smb0", ZeroPage, 0x87, ""}, {"smb1", ZeroPage, 0x97, ""}, {"smb2", ZeroPage, 0xA7, ""}, {"smb3", ZeroPage, 0xB7, ""},
	{"smb4", ZeroPage, 0xC7, ""}, {"smb5", ZeroPage, 0xD7, ""}, {"smb6", ZeroPage, 0xE7, ""}, {"smb7", ZeroPage, 0xF7, ""},
	{"bbr0", ZPRelative, 0x0F, "bbs0"}, {"bbr1", ZPRelative, 0x1F, "bbs1"}, {"bbr2", ZPRelative, 0x2F, "bbs2"}, {"bbr3", ZPRelative, 0x3F, "bbs3"},
	{"bbr4", ZPRelative, 0x4F, "bbs4"}, {"bbr5", ZPRelative, 0x5F, "bbs5"}, {"bbr6", ZPRelative, 0x6F, "bbs6"}, {"bbr7", ZPRelative, 0x7F, "bbs7"},
	{"bbs0", ZPRelative, 0x8F, "bbr0"}, {"bbs1", ZPRelative, 0x9F, "bbr1"}, {"bbs2", ZPRelative, 0xAF, "bbr2"}, {"bbs3", ZPRelative, 0xBF, "bbr3"},
	{"bbs4", ZPRelative, 0xCF, "bbr4"}, {"bbs5", ZPRelative, 0xDF, "bbr5"}, {"bbs6", ZPRelative, 0xEF, "bbr6"}, {"bbs7", ZPRelative, 0xFF, "bbr7"},
}

// csg4502Rows supplements the 65C02 base with the CSG 4502-family
// additions named by SPEC_FULL.md §4.7: the Z index register, the
// 16-bit stack pointer addressing mode, and 16-bit relative branching.
var csg4502Rows = []row{
	{"phz", Implied, 0xDB, ""}, {"plz", Implied, 0xFB, ""},
	{"taz", Implied, 0x4B, ""}, {"tza", Implied, 0x6B, ""},
	{"dez", Implied, 0x3B, ""}, {"inz", Implied, 0x1B, ""},
	{"ldz", Immediate, 0xA3, ""}, {"ldz", Absolute, 0xAB, ""}, {"ldz", AbsoluteX, 0xBB, ""},
	{"cpz", Immediate, 0xC2, ""}, {"cpz", ZeroPage, 0xD4, ""}, {"cpz", Absolute, 0xDC, ""},
	{"asr", Implied, 0x43, ""},
	{"brl", RelativeLong, 0x82, ""},
	// 16-bit relative forms of the branches, used for every branch in 4502 mode
	{"bpl", RelativeLong, 0x13, "bmi"}, {"bmi", RelativeLong, 0x33, "bpl"}, {"bvc", RelativeLong, 0x53, "bvs"},
	{"bvs", RelativeLong, 0x73, "bvc"}, {"bra", RelativeLong, 0x83, ""}, {"bcc", RelativeLong, 0x93, "bcs"},
	{"bcs", RelativeLong, 0xB3, "bcc"}, {"bne", RelativeLong, 0xD3, "beq"}, {"beq", RelativeLong, 0xF3, "bne"},
	// indirect-Z (zp),Z and (abs,Z) forms parallel the Y forms
	{"adc", IndirectZ, 0x72, ""}, {"and", IndirectZ, 0x32, ""}, {"cmp", IndirectZ, 0xD2, ""},
	{"eor", IndirectZ, 0x52, ""}, {"lda", IndirectZ, 0xB2, ""}, {"ora", IndirectZ, 0x12, ""},
	{"sbc", IndirectZ, 0xF2, ""}, {"sta", IndirectZ, 0x92, ""},
	{"jmp", AbsIndZ, 0x22, ""},
	// stack-relative indirect indexed by Y: (d,SP),Y
	{"lda", IndirectSPY, 0xE2, ""}, {"sta", IndirectSPY, 0x82, ""},
}
