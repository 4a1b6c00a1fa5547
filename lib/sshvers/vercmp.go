package sshvers

import "strconv"

// VerCompare reads up to two decimal components of a and b, separated by a
// single '.', and returns -1, 0 or +1 per the usual comparison contract.
// Empty or non-digit segments read as 0 (spec.md §4.1).
func VerCompare(a, b string) int {
	aMajor, aMinor := splitVersion(a)
	bMajor, bMinor := splitVersion(b)
	if aMajor != bMajor {
		if aMajor < bMajor {
			return -1
		}
		return 1
	}
	if aMinor != bMinor {
		if aMinor < bMinor {
			return -1
		}
		return 1
	}
	return 0
}

func splitVersion(v string) (major, minor int) {
	dot := -1
	for i := 0; i < len(v); i++ {
		if v[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return parseComponent(v), 0
	}
	return parseComponent(v[:dot]), parseComponent(v[dot+1:])
}

func parseComponent(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// IncludesV1 reports whether v is willing to speak SSH protocol 1, i.e.
// v < 2.0.
func IncludesV1(v string) bool {
	return VerCompare(v, "2.0") < 0
}

// IncludesV2 reports whether v is willing to speak SSH protocol 2, i.e.
// v >= 1.99. "1.99" is the canonical "speaks both" value.
func IncludesV2(v string) bool {
	return VerCompare(v, "1.99") >= 0
}
