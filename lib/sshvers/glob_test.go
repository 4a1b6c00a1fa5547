package sshvers

import "testing"

func TestGlobMatch(t *testing.T) {
	for _, tc := range []struct {
		pat, s string
		want   bool
	}{
		{"OpenSSH_2.[5-9]*", "OpenSSH_2.5.0p1", true},
		{"OpenSSH_2.[5-9]*", "OpenSSH_2.3.0p1", false},
		{"OpenSSH_[2-5].*", "OpenSSH_2.3.0p1", true},
		{"OpenSSH_[2-5].*", "OpenSSH_6.1", false},
		{"dropbear_0.5[01]*", "dropbear_0.50", true},
		{"dropbear_0.5[01]*", "dropbear_0.52", false},
		{"*", "anything", true},
		{"a*b", "axxxb", true},
		{"a*b", "axxxc", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"WeOnlyDo-*", "WeOnlyDo-2.0.1", true},
		{"* VShell", "2.3.0 VShell", true},
		{"* VShell", "2.3.0 NotVShell", false},
	} {
		if got := globMatch(tc.pat, tc.s); got != tc.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tc.pat, tc.s, got, tc.want)
		}
	}
}
