package stm32

import "testing"

func TestPortBase(t *testing.T) {
	cases := map[Port]uint32{
		PortA: 0x40020000,
		PortB: 0x40020400,
		PortI: 0x40022000,
		PortK: 0x40022800,
	}
	for p, want := range cases {
		if got := p.Base(); got != want {
			t.Errorf("%v.Base() = %#x, want %#x", p, got, want)
		}
	}
}

func TestPortFromLetter(t *testing.T) {
	if p, ok := PortFromLetter('C'); !ok || p != PortC {
		t.Fatalf("PortFromLetter('C') = %v,%v", p, ok)
	}
	for _, c := range []byte{'L', 'a', '@', '0'} {
		if _, ok := PortFromLetter(c); ok {
			t.Errorf("PortFromLetter(%q) accepted", c)
		}
	}
	if PortK.Letter() != 'K' {
		t.Fatalf("PortK.Letter() = %q", PortK.Letter())
	}
}

func TestField2(t *testing.T) {
	clr, set := Field2(15, 3)
	if clr != 0xC0000000 || set != 0xC0000000 {
		t.Fatalf("Field2(15,3) = %#x,%#x", clr, set)
	}
	clr, set = Field2(4, 6) // value truncated to 2 bits
	if clr != 0x300 || set != 0x200 {
		t.Fatalf("Field2(4,6) = %#x,%#x", clr, set)
	}
}

func TestBSRRValue(t *testing.T) {
	if v := BSRRValue(3, true); v != 1<<3 {
		t.Fatalf("set = %#x", v)
	}
	if v := BSRRValue(3, false); v != 1<<19 {
		t.Fatalf("reset = %#x", v)
	}
}
