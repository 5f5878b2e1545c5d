package asm

// tstream is a token cursor with bounded lookahead, used by the
// recursive-descent parser (spec.md §4.2: "bounded lookahead of 2
// tokens").
type tstream struct {
	toks []Token
	i    int
}

var eofToken = Token{Type: TEOL}

func (t *tstream) peek(k int) Token {
	idx := t.i + k
	if idx < 0 || idx >= len(t.toks) {
		return eofToken
	}
	return t.toks[idx]
}

func (t *tstream) next() Token {
	tok := t.peek(0)
	if t.i < len(t.toks) {
		t.i++
	}
	return tok
}

func (t *tstream) skipToEOL() {
	for t.peek(0).Type != TEOL {
		t.next()
	}
}

// expect consumes and returns the next token if it has one of the
// given types, else reports an error and returns the EOL token.
func (t *tstream) expect(point SourcePosition, diag *Diagnostics, types ...TokenType) Token {
	tok := t.peek(0)
	for _, ty := range types {
		if tok.Type == ty {
			return t.next()
		}
	}
	diag.Error(point, "unexpected token %v", tok)
	return eofToken
}

func (t *tstream) expectPunct(point SourcePosition, diag *Diagnostics, c byte) {
	if t.peek(0).Is(c) {
		t.next()
		return
	}
	diag.Error(point, "expected %q, found %v", c, t.peek(0))
}

func (t *tstream) expectY(point SourcePosition, diag *Diagnostics) {
	if t.peek(0).Type == TY {
		t.next()
		return
	}
	diag.Error(point, "expected Y, found %v", t.peek(0))
}

func (t *tstream) expectEOL(diag *Diagnostics) {
	if t.peek(0).Type != TEOL {
		diag.Error(t.peek(0).Point, "unexpected trailing token %v", t.peek(0))
		t.skipToEOL()
	}
}
