package phone

import (
	"errors"
	"testing"
)

func TestNormalizeUSFormats(t *testing.T) {
	cases := map[string]string{
		"(555) 123-4567":   "+15551234567",
		"555.123.4567":     "+15551234567",
		"15551234567":      "+15551234567",
		"+15551234567":     "+15551234567",
		"+44 20 7946 0958": "+442079460958",
	}
	for raw, want := range cases {
		got, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%q): unexpected error %v", raw, err)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first, err := Normalize("(555) 123-4567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Normalize(first)
	if err != nil {
		t.Fatalf("unexpected error on second pass: %v", err)
	}
	if first != second {
		t.Fatalf("normalization not idempotent: %q vs %q", first, second)
	}
}

func TestNormalizeInvalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "hello", "123", "+0123456789", "555-1234"} {
		if _, err := Normalize(raw); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("Normalize(%q): expected ErrInvalidPhone, got %v", raw, err)
		}
	}
}

func TestVariants(t *testing.T) {
	got := Variants("+15551234567")
	want := map[string]bool{
		"+15551234567": true,
		"5551234567":   true,
		"15551234567":  true,
	}
	for _, v := range got {
		delete(want, v)
	}
	if len(want) > 0 {
		t.Fatalf("missing variants %v in %v", want, got)
	}
}
