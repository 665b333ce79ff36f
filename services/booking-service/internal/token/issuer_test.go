package token

import "testing"

func TestNextIsStrictlyIncreasing(t *testing.T) {
	iss := NewIssuer(1)
	seen := map[string]bool{}
	prev := ""
	for i := 0; i < 50; i++ {
		tok := iss.Next()
		if seen[tok] {
			t.Fatalf("token %q issued twice", tok)
		}
		seen[tok] = true
		if tok <= prev && len(tok) == len(prev) {
			t.Fatalf("token %q not greater than previous %q", tok, prev)
		}
		prev = tok
	}
}

func TestSeededSequence(t *testing.T) {
	iss := NewIssuer(8)
	want := []string{"KBR08", "KBR09", "KBR10"}
	for _, w := range want {
		if got := iss.Next(); got != w {
			t.Fatalf("expected %s, got %s", w, got)
		}
	}
}

func TestNoWrapPast99(t *testing.T) {
	iss := NewIssuer(99)
	if got := iss.Next(); got != "KBR99" {
		t.Fatalf("expected KBR99, got %s", got)
	}
	if got := iss.Next(); got != "KBR100" {
		t.Fatalf("expected KBR100 after 99, got %s", got)
	}
}

func TestResetReturnsToBaseline(t *testing.T) {
	iss := NewIssuer(5)
	iss.Next()
	iss.Next()
	iss.Reset()
	if got := iss.Next(); got != "KBR05" {
		t.Fatalf("expected KBR05 after reset, got %s", got)
	}
}
