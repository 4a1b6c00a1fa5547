package sshvers

// globMatch reports whether s matches the shell-glob pattern pat, anchored
// to the full string. Supports '*' (any sequence), '?' (any single byte)
// and '[...]' character classes (with optional leading '!' or '^' for
// negation and 'a-z' ranges). This is the wildcard matcher spec.md §4.2/§9
// calls for: a single compiled-once-per-bug matcher, no caching needed.
func globMatch(pat, s string) bool {
	return globMatchAt(pat, s)
}

func globMatchAt(pat, s string) bool {
	for len(pat) > 0 {
		switch pat[0] {
		case '*':
			// Collapse consecutive '*' and try every possible
			// split point, shortest match first.
			for len(pat) > 0 && pat[0] == '*' {
				pat = pat[1:]
			}
			if len(pat) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatchAt(pat, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			pat = pat[1:]
			s = s[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			end := findClassEnd(pat)
			if end < 0 {
				// Unterminated class: treat '[' literally.
				if s[0] != '[' {
					return false
				}
				pat = pat[1:]
				s = s[1:]
				continue
			}
			if !matchClass(pat[1:end], s[0]) {
				return false
			}
			pat = pat[end+1:]
			s = s[1:]
		default:
			if len(s) == 0 || s[0] != pat[0] {
				return false
			}
			pat = pat[1:]
			s = s[1:]
		}
	}
	return len(s) == 0
}

func findClassEnd(pat string) int {
	for i := 1; i < len(pat); i++ {
		if pat[i] == ']' && i > 1 {
			return i
		}
	}
	return -1
}

func matchClass(class string, c byte) bool {
	negate := false
	if len(class) > 0 && (class[0] == '!' || class[0] == '^') {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); {
		if i+2 < len(class) && class[i+1] == '-' {
			lo, hi := class[i], class[i+2]
			if lo <= c && c <= hi {
				matched = true
			}
			i += 3
			continue
		}
		if class[i] == c {
			matched = true
		}
		i++
	}
	return matched != negate
}
