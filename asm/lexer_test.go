package asm

import (
	"testing"

	"github.com/ophis-asm/ophis/opcodes"
)

func knownFn() func(string) bool {
	tbl := opcodes.Std()
	return tbl.Known
}

func TestLexNumericBases(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	toks := Lex("t", 1, `$41 %101 010 42 'A`, knownFn(), diag)
	want := []int{0x41, 5, 8, 42, 'A'}
	if len(toks) != len(want)+1 {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want)+1)
	}
	for i, w := range want {
		if toks[i].Type != TNum || toks[i].IntValue != w {
			t.Errorf("token %d = %+v, want num %d", i, toks[i], w)
		}
	}
	if toks[len(want)].Type != TEOL {
		t.Fatal("expected trailing EOL")
	}
	if diag.Count() != 0 {
		t.Fatalf("unexpected errors: %v", diag.All())
	}
}

func TestLexString(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	toks := Lex("t", 1, `"Hello, world!"`, knownFn(), diag)
	if toks[0].Type != TString || string(toks[0].Bytes) != "Hello, world!" {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestLexOpcodeVsLabel(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	toks := Lex("t", 1, `LDA foo`, knownFn(), diag)
	if toks[0].Type != TOpcode || toks[0].Str != "lda" {
		t.Fatalf("got %+v, want opcode lda", toks[0])
	}
	if toks[1].Type != TLabel || toks[1].Str != "foo" {
		t.Fatalf("got %+v, want label foo", toks[1])
	}
}

func TestLexRegisters(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	toks := Lex("t", 1, `x Y`, knownFn(), diag)
	if toks[0].Type != TX || toks[1].Type != TY {
		t.Fatalf("got %+v", toks)
	}
}

func TestLexComment(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	toks := Lex("t", 1, `lda #1 ; a comment`, knownFn(), diag)
	if len(toks) != 4 { // OPCODE, #, NUM, EOL
		t.Fatalf("got %d tokens: %+v", len(toks), toks)
	}
}

func TestLexUnterminatedString(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	_ = Lex("t", 1, `"oops`, knownFn(), diag)
	if diag.Count() != 1 {
		t.Fatalf("expected 1 error, got %d", diag.Count())
	}
}
