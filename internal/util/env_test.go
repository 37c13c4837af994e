package util

import "testing"

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("LADDER_TEST_BOOL", "true")
	t.Setenv("LADDER_TEST_BAD_BOOL", "maybe")
	t.Setenv("LADDER_TEST_NUM", "12.5")
	t.Setenv("LADDER_TEST_BAD_NUM", "twelve")
	t.Setenv("LADDER_TEST_EMPTY", "")

	if !GetEnvBool("LADDER_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	if !GetEnvBool("LADDER_TEST_BAD_BOOL", true) {
		t.Fatalf("expected default for unparsable bool")
	}
	if got := GetEnvNumeric("LADDER_TEST_NUM", 1); got != 12.5 {
		t.Fatalf("got %v, want 12.5", got)
	}
	if got := GetEnvNumeric("LADDER_TEST_BAD_NUM", 4); got != 4 {
		t.Fatalf("got %v, want 4", got)
	}
	if got := GetEnvString("LADDER_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Fatalf("got %q, want fallback", got)
	}
	if got := GetEnv("LADDER_TEST_UNSET"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		def  bool
		want bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"off", true, false},
		{"", true, true},
		{"garbage", false, false},
	}

	for _, tc := range tests {
		if got := ParseBool(tc.in, tc.def); got != tc.want {
			t.Fatalf("ParseBool(%q, %v) = %v, want %v", tc.in, tc.def, got, tc.want)
		}
	}
}
