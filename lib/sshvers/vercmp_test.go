package sshvers

import "testing"

func TestVerCompare(t *testing.T) {
	for _, tc := range []struct {
		desc string
		a, b string
		want int
	}{
		{"equal", "2.0", "2.0", 0},
		{"major less", "1.5", "2.0", -1},
		{"major greater", "2.0", "1.99", 1},
		{"minor less", "1.3", "1.5", -1},
		{"empty a reads zero", "", "0.0", 0},
		{"non-digit reads zero", "x.y", "0.0", 0},
		{"single component", "2", "2.0", 0},
		{"1.99 greater than 1.5", "1.99", "1.5", 1},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			if got := VerCompare(tc.a, tc.b); got != tc.want {
				t.Fatalf("VerCompare(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestIncludesV1V2(t *testing.T) {
	for _, tc := range []struct {
		v          string
		wantV1     bool
		wantV2     bool
	}{
		{"1.5", true, false},
		{"2.0", false, true},
		{"1.99", true, true},
		{"1.3", true, false},
	} {
		if got := IncludesV1(tc.v); got != tc.wantV1 {
			t.Errorf("IncludesV1(%q) = %v, want %v", tc.v, got, tc.wantV1)
		}
		if got := IncludesV2(tc.v); got != tc.wantV2 {
			t.Errorf("IncludesV2(%q) = %v, want %v", tc.v, got, tc.wantV2)
		}
	}
}
