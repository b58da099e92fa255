package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestKeyTextRoundTrip(t *testing.T) {
	var k Key
	for i := range k {
		k[i] = byte(i + 1)
	}
	parsed, err := ParseKey(k.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != k {
		t.Fatalf("unexpected key: got=%s want=%s", parsed, k)
	}
}

func TestKeyJSONUsesBase58(t *testing.T) {
	k := BytesToKey([]byte{7})
	raw, err := json.Marshal(struct {
		Owner Key `json:"owner"`
	}{Owner: k})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"owner":"` + k.String() + `"}`
	if string(raw) != want {
		t.Fatalf("unexpected json: got=%s want=%s", raw, want)
	}
}

func TestParseKeyRejectsWrongLength(t *testing.T) {
	if _, err := ParseKey("3mJr7AoUXx2Wqd"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := ParseKey(""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for empty input, got %v", err)
	}
}

func TestParseHashEmptyIsZero(t *testing.T) {
	h, err := ParseHash("")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !h.IsZero() {
		t.Fatalf("expected zero hash, got %s", h)
	}
}

func TestFormatUnits(t *testing.T) {
	cases := map[uint64]string{
		0:               "0.000000000",
		15_000_000:      "0.015000000",
		LamportsPerUnit: "1.000000000",
		2_500_000_001:   "2.500000001",
	}
	for in, want := range cases {
		if got := FormatUnits(in); got != want {
			t.Fatalf("FormatUnits(%d): got=%q want=%q", in, got, want)
		}
	}
}

func TestCheckedArithmetic(t *testing.T) {
	top := ^uint64(0)
	if _, ok := CheckedAdd(top, 1); ok {
		t.Fatal("expected add overflow")
	}
	if got, ok := CheckedAdd(2, 3); !ok || got != 5 {
		t.Fatalf("CheckedAdd: got=%d ok=%v", got, ok)
	}
	if _, ok := CheckedSub(1, 2); ok {
		t.Fatal("expected sub underflow")
	}
	if got, ok := CheckedSub(5, 5); !ok || got != 0 {
		t.Fatalf("CheckedSub: got=%d ok=%v", got, ok)
	}
	if _, ok := CheckedMul(top, 2); ok {
		t.Fatal("expected mul overflow")
	}
	if got, ok := CheckedMul(1<<20, 1<<20); !ok || got != 1<<40 {
		t.Fatalf("CheckedMul: got=%d ok=%v", got, ok)
	}
}
