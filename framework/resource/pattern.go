package resource

import (
	"path"
	"strings"
)

// IsPattern reports whether location contains glob metacharacters.
func IsPattern(location string) bool {
	return strings.ContainsAny(location, "*?[")
}

// Match reports whether name matches the Ant-style pattern. Both are
// slash-separated; "**" matches zero or more whole segments and every other
// segment follows path.Match, so "*" and "?" never cross a slash.
// A malformed segment never matches.
func Match(pattern, name string) bool {
	return matchSegments(segments(pattern), segments(name))
}

// ValidatePattern reports the first malformed segment of pattern.
func ValidatePattern(pattern string) error {
	for _, seg := range segments(pattern) {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, ""); err != nil {
			return err
		}
	}
	return nil
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for len(pat) > 0 && pat[0] == "**" {
				pat = pat[1:]
			}
			if len(pat) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(pat, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, err := path.Match(pat[0], segs[0]); err != nil || !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

// staticPrefix is the leading run of literal segments, used to narrow a
// listing before matching.
func staticPrefix(pattern string) string {
	var lit []string
	for _, seg := range segments(pattern) {
		if IsPattern(seg) {
			break
		}
		lit = append(lit, seg)
	}
	return strings.Join(lit, "/")
}

func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func clean(p string) string {
	return strings.Join(segments(p), "/")
}
