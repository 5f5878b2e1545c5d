package asm

// pragmaHandler parses the tail of a pragma statement and returns the
// IR node(s) it produces (CorePragmas.py is the grounding source for
// every handler below).
type pragmaHandler func(p *Parser, ts *tstream, point SourcePosition) *Node

func corePragmas() map[string]pragmaHandler {
	m := map[string]pragmaHandler{
		"include":    pragmaInclude,
		"require":    pragmaRequire,
		"incbin":     pragmaIncbin,
		"charmap":    pragmaCharmap,
		"charmapbin": pragmaCharmapbin,
		"org":        pragmaOrg,
		"advance":    pragmaAdvance,
		"checkpc":    pragmaCheckpc,
		"alias":      pragmaAlias,
		"space":      pragmaSpace,
		"text":       pragmaText,
		"data":       pragmaData,
		"byte":       pragmaByte,
		"word":       pragmaWord,
		"dword":      pragmaDword,
		"wordbe":     pragmaWordbe,
		"dwordbe":    pragmaDwordbe,
		"scope":      pragmaScope,
		"scend":      pragmaScend,
		"macro":      pragmaMacro,
		"macend":     pragmaMacend,
		"invoke":     pragmaInvokePragma,
		"outfile":    pragmaOutfile,
	}
	// Legacy OldPragmas aliases (spec.md §9 Open Question): implemented
	// as thin redirects, never expanding the core language.
	m["ascii"] = m["byte"]
	m["address"] = m["org"]
	m["code"] = m["text"]
	m["segment"] = func(p *Parser, ts *tstream, point SourcePosition) *Node {
		if ts.peek(0).Type == TLabel {
			return pragmaText(p, ts, point)
		}
		return pragmaData(p, ts, point)
	}
	m["link"] = func(p *Parser, ts *tstream, point SourcePosition) *Node {
		ts.expect(point, p.diag, TString)
		ts.expectEOL(p.diag)
		return Null(point)
	}
	return m
}

func pragmaInclude(p *Parser, ts *tstream, point SourcePosition) *Node {
	tok := ts.expect(point, p.diag, TString)
	ts.expectEOL(p.diag)
	if tok.Type != TString {
		return Null(point)
	}
	return p.ParseFile(string(tok.Bytes))
}

func pragmaRequire(p *Parser, ts *tstream, point SourcePosition) *Node {
	tok := ts.expect(point, p.diag, TString)
	ts.expectEOL(p.diag)
	if tok.Type != TString {
		return Null(point)
	}
	name := string(tok.Bytes)
	if p.required[name] {
		return Null(point)
	}
	p.required[name] = true
	return p.ParseFile(name)
}

func pragmaIncbin(p *Parser, ts *tstream, point SourcePosition) *Node {
	tok := ts.expect(point, p.diag, TString)
	ts.expectEOL(p.diag)
	if tok.Type != TString {
		return Null(point)
	}
	data, err := p.reader.ReadBinary(string(tok.Bytes))
	if err != nil {
		p.diag.Error(point, "could not read %s", string(tok.Bytes))
		return Null(point)
	}
	return &Node{Point: point, Kind: NByteRange, Bytes: data}
}

func pragmaCharmap(p *Parser, ts *tstream, point SourcePosition) *Node {
	if ts.peek(0).Type == TEOL {
		*p.charmap = identityCharmap()
		return Null(point)
	}
	items := p.readDataList(ts, point)
	ts.expectEOL(p.diag)
	if len(items) == 0 {
		*p.charmap = identityCharmap()
		return Null(point)
	}
	diag := p.diag
	env := NewEnvironment()
	env.Reset()
	base := items[0].Value(env, diag)
	if base < 0 || base > 255 {
		p.diag.Error(point, "charmap replacement out of range")
		return Null(point)
	}
	for i, e := range items[1:] {
		idx := base + i
		if idx > 255 {
			p.diag.Error(point, "charmap replacement out of range")
			break
		}
		p.charmap[idx] = byte(e.Value(env, diag) & 0xFF)
	}
	return Null(point)
}

func pragmaCharmapbin(p *Parser, ts *tstream, point SourcePosition) *Node {
	tok := ts.expect(point, p.diag, TString)
	ts.expectEOL(p.diag)
	if tok.Type != TString {
		return Null(point)
	}
	data, err := p.reader.ReadBinary(string(tok.Bytes))
	if err != nil {
		p.diag.Error(point, "could not read %s", string(tok.Bytes))
		return Null(point)
	}
	if len(data) != 256 {
		p.diag.Error(point, "character map %s not 256 bytes long", string(tok.Bytes))
		return Null(point)
	}
	copy(p.charmap[:], data)
	return Null(point)
}

func pragmaOrg(p *Parser, ts *tstream, point SourcePosition) *Node {
	e := p.parseExpr(ts)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NSetPC, Expr: e}
}

func pragmaAdvance(p *Parser, ts *tstream, point SourcePosition) *Node {
	e := p.parseExpr(ts)
	var fill *Expr
	if ts.peek(0).Is(',') {
		ts.next()
		fill = p.parseExpr(ts)
	} else {
		fill = constExpr(point, 0)
	}
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NAdvance, Expr: e, Expr2: fill}
}

func pragmaCheckpc(p *Parser, ts *tstream, point SourcePosition) *Node {
	e := p.parseExpr(ts)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NCheckPC, Expr: e}
}

func pragmaAlias(p *Parser, ts *tstream, point SourcePosition) *Node {
	nameTok := ts.expect(point, p.diag, TLabel)
	e := p.parseExpr(ts)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NLabel, Name: nameTok.Str, Expr: e}
}

func pragmaSpace(p *Parser, ts *tstream, point SourcePosition) *Node {
	nameTok := ts.expect(point, p.diag, TLabel)
	sizeTok := ts.expect(point, p.diag, TNum)
	ts.expectEOL(p.diag)
	label := &Node{Point: point, Kind: NLabel, Name: nameTok.Str, Expr: pcExpr(point)}
	advance := &Node{Point: point, Kind: NSetPC, Expr: &Expr{
		Point:     point,
		Kind:      Sequence,
		Operands:  []*Expr{pcExpr(point), constExpr(point, sizeTok.IntValue)},
		Operators: []byte{'+'},
	}}
	return Seq(point, label, advance)
}

func pragmaText(p *Parser, ts *tstream, point SourcePosition) *Node {
	name := ""
	if ts.peek(0).Type == TLabel {
		name = ts.next().Str
	}
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NTextSegment, Name: name}
}

func pragmaData(p *Parser, ts *tstream, point SourcePosition) *Node {
	name := ""
	if ts.peek(0).Type == TLabel {
		name = ts.next().Str
	}
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NDataSegment, Name: name}
}

func pragmaByte(p *Parser, ts *tstream, point SourcePosition) *Node {
	items := p.readDataList(ts, point)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NByte, Exprs: items}
}

func pragmaWord(p *Parser, ts *tstream, point SourcePosition) *Node {
	items := p.readDataList(ts, point)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NWord, Exprs: items}
}

func pragmaDword(p *Parser, ts *tstream, point SourcePosition) *Node {
	items := p.readDataList(ts, point)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NDword, Exprs: items}
}

func pragmaWordbe(p *Parser, ts *tstream, point SourcePosition) *Node {
	items := p.readDataList(ts, point)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NWordBE, Exprs: items}
}

func pragmaDwordbe(p *Parser, ts *tstream, point SourcePosition) *Node {
	items := p.readDataList(ts, point)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NDwordBE, Exprs: items}
}

func pragmaScope(p *Parser, ts *tstream, point SourcePosition) *Node {
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NScopeBegin}
}

func pragmaScend(p *Parser, ts *tstream, point SourcePosition) *Node {
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NScopeEnd}
}

func pragmaMacro(p *Parser, ts *tstream, point SourcePosition) *Node {
	nameTok := ts.expect(point, p.diag, TLabel)
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NMacroBegin, Name: nameTok.Str}
}

func pragmaMacend(p *Parser, ts *tstream, point SourcePosition) *Node {
	ts.expectEOL(p.diag)
	return &Node{Point: point, Kind: NMacroEnd}
}

func pragmaInvokePragma(p *Parser, ts *tstream, point SourcePosition) *Node {
	nameTok := ts.expect(point, p.diag, TLabel)
	return p.parseInvokeArgs(ts, point, nameTok.Str)
}

func pragmaOutfile(p *Parser, ts *tstream, point SourcePosition) *Node {
	tok := ts.expect(point, p.diag, TString)
	ts.expectEOL(p.diag)
	if tok.Type != TString {
		return Null(point)
	}
	p.outfile = string(tok.Bytes)
	return Null(point)
}
