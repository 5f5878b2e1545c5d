package asm

import (
	"fmt"
	"testing"
)

// memReader is an in-memory FileReader for tests, avoiding any
// filesystem dependency while exercising the same Assemble entry point
// cmd/ophis drives.
type memReader map[string]string

func (m memReader) ReadSource(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return src, nil
}

func (m memReader) ReadBinary(path string) ([]byte, error) {
	return nil, fmt.Errorf("no binary files registered: %s", path)
}

func assembleSource(t *testing.T, src string, opts Options) *Result {
	t.Helper()
	diag := NewDiagnostics(nil, opts.NoWarn)
	logger := NewLogger(nil, LevelQuiet)
	reader := memReader{"main.s": src}
	res := Assemble("main.s", reader, diag, logger, opts)
	if diag.Count() > 0 {
		t.Fatalf("unexpected diagnostics: %v", diag.All())
	}
	return res
}

func hexBytes(bs []byte) string {
	out := ""
	for i, b := range bs {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%02X", b)
	}
	return out
}

// TestEndToEndScenarios covers the six worked examples in spec.md §8.
func TestEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []byte
	}{
		{
			name: "string literal",
			src:  `.byte "Hello, world!"` + "\n",
			want: []byte{0x48, 0x65, 0x6C, 0x6C, 0x6F, 0x2C, 0x20, 0x77, 0x6F, 0x72, 0x6C, 0x64, 0x21},
		},
		{
			name: "pc-relative immediate",
			src:  ".org $41\nlda #^\n",
			want: []byte{0xA9, 0x41},
		},
		{
			name: "anonymous labels and zero-page collapse",
			src:  ".org $fa\nlda +\nlda ^\n* rts\n",
			want: []byte{0xA5, 0xFE, 0xA5, 0xFC, 0x60},
		},
		{
			name: "branch extension pushes a trailing operand past zero page",
			src:  ".org $fb\nbne ^+200\nlda ^\n",
			want: []byte{0xF0, 0x03, 0x4C, 0xC5, 0x01, 0xAD, 0x00, 0x01},
		},
		{
			name: "scoped labels do not collide",
			src:  ".org $41\n.scope\n_l: .byte _l\n.scend\n.scope\n_l: .byte _l\n.scend\n",
			want: []byte{0x41, 0x42},
		},
		{
			name: "macro invocation with positional argument",
			src:  ".macro greet\n.byte \"hi\",_1\n.macend\n`greet 'A\n.invoke greet 'B\n",
			want: []byte{0x68, 0x69, 0x41, 0x68, 0x69, 0x42},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := assembleSource(t, tc.src, Options{})
			if hexBytes(res.Bytes) != hexBytes(tc.want) {
				t.Fatalf("got % X, want % X", res.Bytes, tc.want)
			}
		})
	}
}

// TestDeterminism checks that assembling the same source twice produces
// byte-identical output (spec.md §8's first testable property).
func TestDeterminism(t *testing.T) {
	src := ".org $c000\nstart:\nlda #1\nsta $d020\njmp start\n"
	r1 := assembleSource(t, src, Options{})
	r2 := assembleSource(t, src, Options{})
	if hexBytes(r1.Bytes) != hexBytes(r2.Bytes) {
		t.Fatalf("non-deterministic output: %X vs %X", r1.Bytes, r2.Bytes)
	}
}

// TestZeroPageThresholdSelection exercises spec.md §8's third testable
// property: lda with an operand under 256 selects zero page, at or
// above it selects absolute.
func TestZeroPageThresholdSelection(t *testing.T) {
	cases := []struct {
		src  string
		want []byte
	}{
		{".org $c000\nlda $ff\n", []byte{0xA5, 0xFF}},
		{".org $c000\nlda $100\n", []byte{0xAD, 0x00, 0x01}},
	}
	for _, tc := range cases {
		res := assembleSource(t, tc.src, Options{})
		if hexBytes(res.Bytes) != hexBytes(tc.want) {
			t.Fatalf("source %q: got % X, want % X", tc.src, res.Bytes, tc.want)
		}
	}
}

// TestZeroPageCollapseAfterLabelResolution exercises the Collapse pass's
// handling of an operand that is not hardcoded at EasyModes time (a
// forward label reference) but ultimately resolves to a zero-page
// value once InitLabels settles it.
func TestZeroPageCollapseAfterLabelResolution(t *testing.T) {
	src := ".org $10\nlda target\ntarget: .byte 0\n"
	res := assembleSource(t, src, Options{})
	want := []byte{0xA5, 0x12, 0x00}
	if hexBytes(res.Bytes) != hexBytes(want) {
		t.Fatalf("got % X, want % X", res.Bytes, want)
	}
}

// TestNoZPCollapseOption verifies --no-zp-collapse forces the absolute
// encoding even when the operand would otherwise fit in zero page.
func TestNoZPCollapseOption(t *testing.T) {
	res := assembleSource(t, ".org $c000\nlda $10\n", Options{NoCollapse: true})
	want := []byte{0xAD, 0x10, 0x00}
	if hexBytes(res.Bytes) != hexBytes(want) {
		t.Fatalf("got % X, want % X", res.Bytes, want)
	}
}

// TestByteRoundTrip covers spec.md §8's fourth testable property: a
// program composed only of .byte directives reproduces its evaluated
// byte list exactly.
func TestByteRoundTrip(t *testing.T) {
	res := assembleSource(t, ".byte 1,2,3,$ff,'A\n", Options{})
	want := []byte{1, 2, 3, 0xFF, 'A'}
	if hexBytes(res.Bytes) != hexBytes(want) {
		t.Fatalf("got % X, want % X", res.Bytes, want)
	}
}

// TestBranchWithinRangeStaysShort confirms a branch whose target is
// within range never grows past two bytes.
func TestBranchWithinRangeStaysShort(t *testing.T) {
	res := assembleSource(t, ".org $c000\nloop:\nnop\nbne loop\n", Options{})
	want := []byte{0xEA, 0xD0, 0xFD}
	if hexBytes(res.Bytes) != hexBytes(want) {
		t.Fatalf("got % X, want % X", res.Bytes, want)
	}
}

// TestUndocumentedOpcodeRequiresFlag confirms a 6510-only mnemonic is
// rejected without -u and accepted with it.
func TestUndocumentedOpcodeRequiresFlag(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	logger := NewLogger(nil, LevelQuiet)
	reader := memReader{"main.s": ".org $c000\nlax $10\n"}
	res := Assemble("main.s", reader, diag, logger, Options{})
	if diag.Count() == 0 {
		t.Fatalf("expected an error for lax without -u, got bytes % X", res.Bytes)
	}

	res2 := assembleSource(t, ".org $c000\nlax $10\n", Options{Undoc: true})
	if len(res2.Bytes) != 2 || res2.Bytes[1] != 0x10 {
		t.Fatalf("got % X", res2.Bytes)
	}
}

// TestDuplicateLabelIsAnError confirms re-defining a global label in
// the same scope is rejected.
func TestDuplicateLabelIsAnError(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	logger := NewLogger(nil, LevelQuiet)
	reader := memReader{"main.s": "foo: nop\nfoo: nop\n"}
	Assemble("main.s", reader, diag, logger, Options{})
	if diag.Count() == 0 {
		t.Fatal("expected a duplicate-label error")
	}
}

// TestCheckPCFailsWhenExceeded confirms .checkpc reports an error once
// the program counter has passed the checkpoint.
func TestCheckPCFailsWhenExceeded(t *testing.T) {
	diag := NewDiagnostics(nil, false)
	logger := NewLogger(nil, LevelQuiet)
	reader := memReader{"main.s": ".org $10\n.byte 1,2,3,4\n.checkpc $12\n"}
	Assemble("main.s", reader, diag, logger, Options{})
	if diag.Count() == 0 {
		t.Fatal("expected a checkpc error")
	}
}
