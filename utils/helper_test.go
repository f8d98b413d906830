package utils

import (
	"database/sql"
	"testing"
	"time"
)

func TestDecimalFromAnyClassifiesMalformedAsMissing(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"nil", nil, "0", false},
		{"float", 42.5, "42.5", true},
		{"int", int64(7), "7", true},
		{"bytes", []byte("123.45"), "123.45", true},
		{"string", "  10.000 ", "10.000", true},
		{"empty string", "   ", "0", false},
		{"garbage", "N/A", "0", false},
		{"null string", sql.NullString{}, "0", false},
		{"valid null string", sql.NullString{String: "5.5", Valid: true}, "5.5", true},
		{"null float", sql.NullFloat64{}, "0", false},
		{"valid null float", sql.NullFloat64{Float64: 2.25, Valid: true}, "2.25", true},
		{"unsupported type", struct{}{}, "0", false},
	}

	for _, c := range cases {
		got, ok := DecimalFromAny(c.in)
		if ok != c.ok {
			t.Fatalf("%s: ok = %v, want %v", c.name, ok, c.ok)
		}
		if got.String() != c.want {
			t.Fatalf("%s: value = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestDec128RoundTrips(t *testing.T) {
	d, _ := DecimalFromAny("123.456")
	if got := Dec128(d).String(); got != "123.456" {
		t.Fatalf("Dec128 = %s, want 123.456", got)
	}
}

func TestIntFromEnv(t *testing.T) {
	t.Setenv("HELPER_TEST_INT", "17")
	if got := IntFromEnv("HELPER_TEST_INT", 5); got != 17 {
		t.Fatalf("got %d, want 17", got)
	}
	t.Setenv("HELPER_TEST_INT", "not a number")
	if got := IntFromEnv("HELPER_TEST_INT", 5); got != 5 {
		t.Fatalf("got %d, want default 5", got)
	}
}

func TestDurationFromEnvSeconds(t *testing.T) {
	t.Setenv("HELPER_TEST_SECS", "90")
	if got := DurationFromEnvSeconds("HELPER_TEST_SECS", time.Minute); got != 90*time.Second {
		t.Fatalf("got %v, want 90s", got)
	}
	t.Setenv("HELPER_TEST_SECS", "-3")
	if got := DurationFromEnvSeconds("HELPER_TEST_SECS", time.Minute); got != time.Minute {
		t.Fatalf("got %v, want default", got)
	}
}
