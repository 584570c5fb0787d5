package bbcpath

import "strings"

// MatchWildcard reports whether name matches the ambiguous file specifier
// pattern, where '*' matches zero or more characters and '#' matches
// exactly one. Matching is case-insensitive, as BBC filenames are.
func MatchWildcard(pattern, name string) bool {
	return matchWildcard(strings.ToUpper(pattern), strings.ToUpper(name))
}

// IsWildcard reports whether s contains an AFSP wildcard character.
func IsWildcard(s string) bool {
	return strings.ContainsAny(s, "*#")
}

// matchWildcard is a classic recursive glob matcher specialised to the two
// BBC wildcard characters.
func matchWildcard(pattern, name string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse runs of '*' and try every possible split point.
			pattern = pattern[1:]
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchWildcard(pattern, name[i:]) {
					return true
				}
			}
			return false
		case '#':
			if len(name) == 0 {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		default:
			if len(name) == 0 || pattern[0] != name[0] {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}
