package match

import "testing"

func TestMatchCloseQuestion(t *testing.T) {
	m := New([]string{"como puedo donar", "horarios de misa"}, 0.6)

	key, ok := m.Match("como puedo hacer una donacion")
	if !ok {
		t.Fatal("expected a match above the threshold")
	}
	if key != "como puedo donar" {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestMatchExactQuestion(t *testing.T) {
	m := New([]string{"como puedo donar"}, 0.6)

	if key, ok := m.Match("Como Puedo Donar"); !ok || key != "como puedo donar" {
		t.Fatalf("case-insensitive exact match failed: %q ok=%v", key, ok)
	}
}

func TestUnrelatedMessageMisses(t *testing.T) {
	m := New([]string{"como puedo donar"}, 0.6)

	if key, ok := m.Match("cual es el clima hoy"); ok {
		t.Fatalf("unrelated message must miss, matched %q", key)
	}
}

func TestEmptyInputs(t *testing.T) {
	m := New(nil, 0.6)
	if _, ok := m.Match("hola"); ok {
		t.Fatal("empty key set must never match")
	}

	m = New([]string{"como puedo donar"}, 0.6)
	if _, ok := m.Match("   "); ok {
		t.Fatal("blank message must never match")
	}
}

func TestTieBreakTakesFirstKey(t *testing.T) {
	// Two keys equidistant from the message: the first in iteration order wins.
	m := New([]string{"donar aqui", "donar casa"}, 0.1)

	key, ok := m.Match("donar")
	if !ok {
		t.Fatal("expected a match")
	}
	if key != "donar aqui" {
		t.Fatalf("tie-break should take the first key, got %q", key)
	}
}

func TestInvalidThresholdFallsBack(t *testing.T) {
	m := New([]string{"como puedo donar"}, 0)
	if m.threshold != 0.6 {
		t.Fatalf("expected default threshold, got %v", m.threshold)
	}
}
