package randutil

import "testing"

func TestNewDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("sequences diverged at draw %d", i)
		}
	}
}

func TestDeriveStreamsIndependent(t *testing.T) {
	s0 := Derive(42, 0)
	s1 := Derive(42, 1)
	if s0 == s1 {
		t.Error("adjacent streams derived the same seed")
	}
	if Derive(42, 1) != s1 {
		t.Error("Derive is not deterministic")
	}
	if Derive(43, 1) == s1 {
		t.Error("different base seeds derived the same stream seed")
	}
}
