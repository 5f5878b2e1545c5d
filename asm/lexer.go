package asm

import "strings"

// Lex tokenizes a single source line into a token stream terminated by
// TEOL (spec.md §4.1). The lexer is line-local: it never crosses
// newlines, and a trailing backslash is reported as an error. known
// reports whether an identifier names a recognized opcode mnemonic.
func Lex(file string, row int, rawLine string, known func(string) bool, diag *Diagnostics) []Token {
	line := newSrcline(file, row, rawLine)
	line = line.stripTrailingComment()

	var toks []Token
	for {
		line = line.consumeWhitespace()
		if line.isEmpty() {
			break
		}
		point := line.pos()
		c := line.str[0]

		switch {
		case c == '"':
			var tok Token
			tok, line = lexString(line, diag)
			toks = append(toks, tok)

		case c == '\'':
			var tok Token
			tok, line = lexChar(line, diag)
			toks = append(toks, tok)

		case c == '$':
			var tok Token
			tok, line = lexRadix(line, 16, hexadecimal, diag)
			toks = append(toks, tok)

		case c == '%':
			var tok Token
			tok, line = lexRadix(line, 2, binarynum, diag)
			toks = append(toks, tok)

		case decimal(c):
			var tok Token
			tok, line = lexNumber(line, diag)
			toks = append(toks, tok)

		case identifierStartChar(c):
			var tok Token
			tok, line = lexIdentifier(line, known)
			toks = append(toks, tok)

		case c == '\\' && len(line.str) == 1:
			diag.Error(point, "trailing backslash continuation is not supported")
			line = line.consume(1)

		case punctuation(c):
			toks = append(toks, Token{Type: TPunct, Point: point, Punct: c})
			line = line.consume(1)

		default:
			diag.Error(point, "unexpected character %q", c)
			line = line.consume(1)
		}
	}
	toks = append(toks, Token{Type: TEOL, Point: line.pos()})
	return toks
}

func lexString(line srcline, diag *Diagnostics) (Token, srcline) {
	point := line.pos()
	rest := line.consume(1) // opening quote
	var out []byte
	for {
		if rest.isEmpty() {
			diag.Error(point, "unterminated string literal")
			return Token{Type: TString, Point: point, Bytes: out}, rest
		}
		c := rest.str[0]
		if c == '"' {
			rest = rest.consume(1)
			return Token{Type: TString, Point: point, Bytes: out}, rest
		}
		if c == '\\' {
			rest = rest.consume(1)
			if rest.isEmpty() {
				diag.Error(point, "unterminated string literal")
				return Token{Type: TString, Point: point, Bytes: out}, rest
			}
			out = append(out, rest.str[0])
			rest = rest.consume(1)
			continue
		}
		out = append(out, c)
		rest = rest.consume(1)
	}
}

func lexChar(line srcline, diag *Diagnostics) (Token, srcline) {
	point := line.pos()
	rest := line.consume(1) // opening quote
	if rest.isEmpty() {
		diag.Error(point, "bad character literal")
		return Token{Type: TNum, Point: point}, rest
	}
	c := rest.str[0]
	rest = rest.consume(1)
	if c == '\\' {
		if rest.isEmpty() {
			diag.Error(point, "bad character literal")
			return Token{Type: TNum, Point: point}, rest
		}
		c = rest.str[0]
		rest = rest.consume(1)
	}
	return Token{Type: TNum, Point: point, IntValue: int(c)}, rest
}

func lexRadix(line srcline, base int, digit func(byte) bool, diag *Diagnostics) (Token, srcline) {
	point := line.pos()
	rest := line.consume(1) // $ or %
	digits, remain := rest.consumeWhile(digit)
	if digits.isEmpty() {
		diag.Error(point, "invalid numeric constant")
		return Token{Type: TNum, Point: point}, remain
	}
	v := 0
	for i := 0; i < len(digits.str); i++ {
		v = v*base + hexDigitValue(digits.str[i])
	}
	return Token{Type: TNum, Point: point, IntValue: v}, remain
}

func hexDigitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return 0
}

// lexNumber handles a leading-decimal-digit literal: a lone "0" is
// decimal zero, "0" followed by an octal digit starts an octal run,
// anything else is read as decimal (spec.md §4.1).
func lexNumber(line srcline, diag *Diagnostics) (Token, srcline) {
	point := line.pos()
	if line.str[0] == '0' && len(line.str) > 1 && octalnum(line.str[1]) {
		rest := line.consume(1)
		digits, remain := rest.consumeWhile(octalnum)
		v := 0
		for i := 0; i < len(digits.str); i++ {
			v = v*8 + int(digits.str[i]-'0')
		}
		return Token{Type: TNum, Point: point, IntValue: v}, remain
	}
	digits, remain := line.consumeWhile(decimal)
	v := 0
	for i := 0; i < len(digits.str); i++ {
		v = v*10 + int(digits.str[i]-'0')
	}
	return Token{Type: TNum, Point: point, IntValue: v}, remain
}

func lexIdentifier(line srcline, known func(string) bool) (Token, srcline) {
	point := line.pos()
	word, remain := line.consumeWhile(identifierChar)
	name := strings.ToLower(word.str)
	switch name {
	case "x":
		return Token{Type: TX, Point: point}, remain
	case "y":
		return Token{Type: TY, Point: point}, remain
	}
	if known != nil && known(name) {
		return Token{Type: TOpcode, Point: point, Str: name}, remain
	}
	return Token{Type: TLabel, Point: point, Str: name}, remain
}
