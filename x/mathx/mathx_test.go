package mathx

import (
	"testing"
	"time"
)

func TestBetween(t *testing.T) {
	if !Between(5, 1, 10) || !Between(1, 1, 10) || !Between(10, 10, 1) {
		t.Fatal("in-range value rejected")
	}
	if Between(0, 1, 10) || Between(11, 1, 10) {
		t.Fatal("out-of-range value accepted")
	}
	if !Between(5*time.Second, time.Second, time.Minute) {
		t.Fatal("duration rejected")
	}
}

func TestClamp(t *testing.T) {
	if Clamp(0, 1, 3600) != 1 || Clamp(9000, 1, 3600) != 3600 || Clamp(60, 3600, 1) != 60 {
		t.Fatal("clamp failed")
	}
}
