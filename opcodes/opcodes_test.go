package opcodes

import "testing"

func TestLookupBaseNMOS(t *testing.T) {
	tbl := Std()
	chips := Enabled(false, false, false)
	inst, ok := tbl.Find("lda", Immediate, chips)
	if !ok {
		t.Fatal("expected lda immediate to be found")
	}
	if inst.Opcode != 0xA9 {
		t.Fatalf("got opcode %#02x, want 0xA9", inst.Opcode)
	}
}

func TestUndocGatedByFlag(t *testing.T) {
	tbl := Std()
	if _, ok := tbl.Find("lax", ZeroPage, Enabled(false, false, false)); ok {
		t.Fatal("lax should not be available without -u")
	}
	if _, ok := tbl.Find("lax", ZeroPage, Enabled(true, false, false)); !ok {
		t.Fatal("lax zp should be available with -u")
	}
}

func TestCMOSGatedByFlag(t *testing.T) {
	tbl := Std()
	if _, ok := tbl.Find("bra", Relative, Enabled(false, false, false)); ok {
		t.Fatal("bra should not be available on base NMOS")
	}
	if _, ok := tbl.Find("bra", Relative, Enabled(false, true, false)); !ok {
		t.Fatal("bra should be available with -c")
	}
}

func TestCSG4502ImpliesCMOS(t *testing.T) {
	tbl := Std()
	chips := Enabled(false, false, true)
	if _, ok := tbl.Find("bra", Relative, chips); !ok {
		t.Fatal("4502 mode should still provide 65C02 instructions")
	}
	if _, ok := tbl.Find("taz", Implied, chips); !ok {
		t.Fatal("4502 mode should provide taz")
	}
}

func TestArgLen(t *testing.T) {
	cases := []struct {
		m    Mode
		want int
	}{
		{Implied, 0}, {Immediate, 1}, {ZeroPage, 1}, {Absolute, 2},
		{ZPRelative, 2}, {RelativeLong, 2}, {IndirectSPY, 1},
	}
	for _, c := range cases {
		if got := c.m.ArgLen(); got != c.want {
			t.Errorf("%v.ArgLen() = %d, want %d", c.m, got, c.want)
		}
	}
}

func TestIsBranch(t *testing.T) {
	tbl := Std()
	rev, ok := tbl.IsBranch("bne")
	if !ok || rev != "beq" {
		t.Fatalf("bne reversed = %q, %v; want beq, true", rev, ok)
	}
	if _, ok := tbl.IsBranch("bra"); !ok {
		t.Fatal("bra should be recognized as a branch")
	}
	if rev, _ := tbl.IsBranch("bra"); rev != "" {
		t.Fatalf("bra should have no reversed form, got %q", rev)
	}
}

func TestIsZPRelative(t *testing.T) {
	tbl := Std()
	rev, ok := tbl.IsZPRelative("bbr3")
	if !ok || rev != "bbs3" {
		t.Fatalf("bbr3 reversed = %q, %v; want bbs3, true", rev, ok)
	}
}
