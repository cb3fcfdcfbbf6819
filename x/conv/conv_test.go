package conv

import "testing"

func TestUtoa(t *testing.T) {
	var b [20]byte
	cases := map[uint64]string{
		0:                    "0",
		7:                    "7",
		4000:                 "4000",
		18446744073709551615: "18446744073709551615",
	}
	for n, want := range cases {
		if got := string(Utoa(b[:], n)); got != want {
			t.Errorf("Utoa(%d) = %q", n, got)
		}
	}
	var small [2]byte
	if got := string(Utoa(small[:], 123)); got != "23" {
		t.Errorf("truncated Utoa = %q", got)
	}
}

func TestHex32(t *testing.T) {
	if got := Hex32(0x40020014); got != "0x40020014" {
		t.Fatalf("Hex32 = %q", got)
	}
	if got := Hex32(0xABC); got != "0x00000ABC" {
		t.Fatalf("Hex32 = %q", got)
	}
}
