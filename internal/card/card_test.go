package card

import (
	"strings"
	"testing"
)

func TestHashDeterminism(t *testing.T) {
	a := Hash("4111111111111111")
	b := Hash("4111111111111111")
	if a != b {
		t.Errorf("same input produced different hashes: %s vs %s", a, b)
	}

	c := Hash("4111111111111112")
	if a == c {
		t.Error("different inputs produced the same hash")
	}

	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestHashDoesNotLeakDigits(t *testing.T) {
	h := Hash("4111111111111111")
	if strings.Contains(h, "4111111111111111") {
		t.Error("hash contains the raw card number")
	}
}

func TestLastFour(t *testing.T) {
	if got := LastFour("4111111111111111"); got != "1111" {
		t.Errorf("expected 1111, got %s", got)
	}
	if got := LastFour("42"); got != "42" {
		t.Errorf("expected 42, got %s", got)
	}
}

func TestMask(t *testing.T) {
	if got := Mask("5105105105105100"); got != "****5100" {
		t.Errorf("expected ****5100, got %s", got)
	}
}
