package asm

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ophis-asm/ophis/opcodes"
)

// FileReader abstracts source/binary file access so the parser never
// imports os directly; Context wires it to the real filesystem (or to
// an in-memory map for tests), grounded on db47h-ngaro's file-handle
// defer-close idiom at every I/O boundary.
type FileReader interface {
	ReadSource(path string) (string, error)
	ReadBinary(path string) ([]byte, error)
}

// Parser turns a token stream into IR nodes (spec.md §4.2):
// recursive-descent with bounded lookahead of 2 tokens.
type Parser struct {
	tbl      *opcodes.Table
	diag     *Diagnostics
	reader   FileReader
	logger   *Logger
	required map[string]bool // .require dedup, process-wide per assembly
	anonSeen int             // monotonic anonymous-label counter, owned here per spec.md §9
	charmap  *[256]byte
	pragmas  map[string]pragmaHandler
	outfile  string // set by a .outfile pragma, if any
}

// NewParser constructs a Parser with the core pragma set registered
// (including the legacy OldPragmas aliases named in spec.md §9).
func NewParser(tbl *opcodes.Table, diag *Diagnostics, reader FileReader, logger *Logger) *Parser {
	cm := identityCharmap()
	p := &Parser{
		tbl:      tbl,
		diag:     diag,
		reader:   reader,
		logger:   logger,
		required: make(map[string]bool),
		charmap:  &cm,
	}
	p.pragmas = corePragmas()
	return p
}

func identityCharmap() [256]byte {
	var m [256]byte
	for i := range m {
		m[i] = byte(i)
	}
	return m
}

// ParseFile reads and parses a whole source file through reader (the
// path is passed to it unchanged; no FileReader in this package treats
// "-" as standard input), returning the Sequence of
// every statement it contains, in order, with nested .include/.require
// expansions spliced in place.
func (p *Parser) ParseFile(path string) *Node {
	text, err := p.reader.ReadSource(path)
	if err != nil {
		p.diag.Error(SourcePosition(path+":0"), "could not read %s: %v", path, errors.Cause(err))
		return Null(SourcePosition(path + ":0"))
	}
	p.logger.File("Reading %s", path)
	var stmts []*Node
	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		row := i + 1
		point := SourcePosition(path + ":" + itoa(row))
		toks := Lex(path, row, raw, p.tbl.Known, p.diag)
		stmts = append(stmts, p.parseLine(point, toks)...)
	}
	return Seq(SourcePosition(path+":0"), stmts...)
}

// parseLine parses every statement on one line (a LABEL: prefix may be
// followed by another statement on the same line, per spec.md §4.2).
func (p *Parser) parseLine(point SourcePosition, toks []Token) []*Node {
	ts := &tstream{toks: toks}
	var out []*Node
	for {
		if ts.peek(0).Type == TEOL {
			return out
		}
		out = append(out, p.parseStatement(point, ts))
	}
}

func (p *Parser) parseStatement(point SourcePosition, ts *tstream) *Node {
	tok := ts.peek(0)
	switch {
	case tok.Type == TLabel && ts.peek(1).Is(':'):
		name := tok.Str
		ts.next()
		ts.next()
		return &Node{Point: point, Kind: NLabel, Name: name, Expr: pcExpr(point)}

	case tok.Is('*'):
		ts.next()
		p.anonSeen++
		name := "*" + itoa(p.anonSeen)
		return &Node{Point: point, Kind: NLabel, Name: name, Expr: pcExpr(point)}

	case tok.Is('.'):
		ts.next()
		nameTok := ts.expect(point, p.diag, TLabel)
		if nameTok.Type != TLabel {
			ts.skipToEOL()
			return Null(point)
		}
		handler, ok := p.pragmas[nameTok.Str]
		if !ok {
			p.diag.Error(point, "unknown pragma .%s", nameTok.Str)
			ts.skipToEOL()
			return Null(point)
		}
		return handler(p, ts, point)

	case tok.Is('`'):
		ts.next()
		nameTok := ts.expect(point, p.diag, TLabel)
		if nameTok.Type != TLabel {
			ts.skipToEOL()
			return Null(point)
		}
		return p.parseInvokeArgs(ts, point, nameTok.Str)

	case tok.Type == TOpcode:
		ts.next()
		return p.parseInstruction(point, tok.Str, ts)

	case tok.Type == TEOL:
		return Null(point)

	default:
		p.diag.Error(point, "unexpected token %v", tok)
		ts.skipToEOL()
		return Null(point)
	}
}

// parseInstruction detects the addressing mode from the first token
// following the opcode (spec.md §4.2's mode table).
func (p *Parser) parseInstruction(point SourcePosition, mnemonic string, ts *tstream) *Node {
	tok := ts.peek(0)
	switch {
	case tok.Type == TEOL:
		return &Node{Point: point, Kind: NImplied, Name: mnemonic}

	case tok.Is('#'):
		ts.next()
		if ts.peek(0).Is('#') { // ## marks a 16-bit immediate (4502 ImmediateLong)
			ts.next()
			e := p.parseExpr(ts)
			return &Node{Point: point, Kind: NImmediateLong, Name: mnemonic, Expr: e}
		}
		e := p.parseExpr(ts)
		return &Node{Point: point, Kind: NImmediate, Name: mnemonic, Expr: e}

	case tok.Is('('):
		ts.next()
		e := p.parseExpr(ts)
		switch {
		case ts.peek(0).Is(',') && ts.peek(1).Type == TLabel && strings.EqualFold(ts.peek(1).Str, "sp"):
			ts.next()
			ts.next()
			ts.expectPunct(point, p.diag, ')')
			ts.expectPunct(point, p.diag, ',')
			ts.expectY(point, p.diag)
			return &Node{Point: point, Kind: NPointerSPY, Name: mnemonic, Expr: e}
		case ts.peek(0).Is(',') && ts.peek(1).Type == TX:
			ts.next()
			ts.next()
			ts.expectPunct(point, p.diag, ')')
			return &Node{Point: point, Kind: NPointerX, Name: mnemonic, Expr: e}
		case ts.peek(0).Is(')') && ts.peek(1).Is(',') && ts.peek(2).Type == TY:
			ts.next()
			ts.next()
			ts.next()
			return &Node{Point: point, Kind: NPointerY, Name: mnemonic, Expr: e}
		case ts.peek(0).Is(')') && ts.peek(1).Is(',') && ts.peek(2).Type == TLabel && strings.EqualFold(ts.peek(2).Str, "z"):
			ts.next()
			ts.next()
			ts.next()
			return &Node{Point: point, Kind: NPointerZ, Name: mnemonic, Expr: e}
		case ts.peek(0).Is(')'):
			ts.next()
			return &Node{Point: point, Kind: NPointer, Name: mnemonic, Expr: e}
		default:
			p.diag.Error(point, "malformed indirect operand for %s", mnemonic)
			ts.skipToEOL()
			return &Node{Point: point, Kind: NPointer, Name: mnemonic, Expr: e}
		}

	default:
		e := p.parseExpr(ts)
		switch {
		case ts.peek(0).Is(',') && ts.peek(1).Type == TX:
			ts.next()
			ts.next()
			return &Node{Point: point, Kind: NMemoryX, Name: mnemonic, Expr: e}
		case ts.peek(0).Is(',') && ts.peek(1).Type == TY:
			ts.next()
			ts.next()
			return &Node{Point: point, Kind: NMemoryY, Name: mnemonic, Expr: e}
		case ts.peek(0).Is(','):
			// Two-operand form (bbr/bbs-style zero page, relative target).
			ts.next()
			e2 := p.parseExpr(ts)
			return &Node{Point: point, Kind: NMemory2, Name: mnemonic, Expr: e, Expr2: e2}
		default:
			return &Node{Point: point, Kind: NMemory, Name: mnemonic, Expr: e}
		}
	}
}

func (p *Parser) parseInvokeArgs(ts *tstream, point SourcePosition, macro string) *Node {
	var args []*Expr
	if ts.peek(0).Type != TEOL {
		args = p.readDataList(ts, point)
	}
	return &Node{Point: point, Kind: NMacroInvoke, Name: macro, Exprs: args}
}

//
// Expression parsing: three precedence tiers, bits < arith < term,
// per spec.md §4.2.
//

func (p *Parser) parseExpr(ts *tstream) *Expr {
	return p.parseBits(ts)
}

func (p *Parser) parseBits(ts *tstream) *Expr {
	return p.parseLevel(ts, p.parseArith, '&', '|', '^')
}

func (p *Parser) parseArith(ts *tstream) *Expr {
	return p.parseLevel(ts, p.parseTerm, '+', '-')
}

func (p *Parser) parseTerm(ts *tstream) *Expr {
	return p.parseLevel(ts, p.parseAtom, '*', '/')
}

func (p *Parser) parseLevel(ts *tstream, next func(*tstream) *Expr, ops ...byte) *Expr {
	point := ts.peek(0).Point
	first := next(ts)
	operands := []*Expr{first}
	var operators []byte
	for {
		tok := ts.peek(0)
		matched := false
		for _, op := range ops {
			if tok.Is(op) {
				matched = true
				break
			}
		}
		if !matched {
			break
		}
		ts.next()
		operands = append(operands, next(ts))
		operators = append(operators, tok.Punct)
	}
	if len(operands) == 1 {
		return first
	}
	return &Expr{Point: point, Kind: Sequence, Operands: operands, Operators: operators}
}

func (p *Parser) parseAtom(ts *tstream) *Expr {
	tok := ts.peek(0)
	switch {
	case tok.Type == TNum:
		ts.next()
		return constExpr(tok.Point, tok.IntValue)

	case tok.Type == TString:
		ts.next()
		if len(tok.Bytes) == 0 {
			return constExpr(tok.Point, 0)
		}
		return constExpr(tok.Point, int(p.charmap[tok.Bytes[0]]))

	case tok.Type == TLabel:
		ts.next()
		return labelExpr(tok.Point, tok.Str)

	case tok.Is('^'):
		ts.next()
		return pcExpr(tok.Point)

	case tok.Is('['):
		ts.next()
		e := p.parseBits(ts)
		ts.expectPunct(tok.Point, p.diag, ']')
		return e

	case tok.Is('>'):
		ts.next()
		return &Expr{Point: tok.Point, Kind: HighByte, Sub: p.parseAtom(ts)}

	case tok.Is('<'):
		ts.next()
		return &Expr{Point: tok.Point, Kind: LowByte, Sub: p.parseAtom(ts)}

	case tok.Is('+') || tok.Is('-'):
		c := tok.Punct
		n := 0
		for ts.peek(0).Is(c) {
			ts.next()
			n++
		}
		var target int
		if c == '+' {
			target = p.anonSeen + n
		} else {
			target = p.anonSeen - n + 1
		}
		if target < 1 {
			p.diag.Error(tok.Point, "no matching anonymous label")
			target = 1
		}
		return labelExpr(tok.Point, "*"+itoa(target))

	default:
		p.diag.Error(tok.Point, "expected an expression, found %v", tok)
		return constExpr(tok.Point, 0)
	}
}

// readDataList reads a comma-separated list of expressions, expanding
// string literals into one Constant expr per byte through the active
// character map (CorePragmas.readData).
func (p *Parser) readDataList(ts *tstream, point SourcePosition) []*Expr {
	var out []*Expr
	out = append(out, p.readDataItem(ts)...)
	for ts.peek(0).Is(',') {
		ts.next()
		out = append(out, p.readDataItem(ts)...)
	}
	return out
}

func (p *Parser) readDataItem(ts *tstream) []*Expr {
	tok := ts.peek(0)
	if tok.Type == TString {
		ts.next()
		var out []*Expr
		for _, b := range tok.Bytes {
			out = append(out, constExpr(tok.Point, int(p.charmap[b])))
		}
		return out
	}
	return []*Expr{p.parseExpr(ts)}
}
