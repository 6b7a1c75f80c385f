package cache

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([^}]*)}`)

// compilePathPattern turns a path template into an anchored regexp.
// Literal segments are escaped so they cannot be misinterpreted as
// pattern syntax; each {placeholder} becomes a capture matching one
// path segment.
//
// Example: "/users/{id}/orders" compiles to
// "^\Q/users/\E(?P<id>[^/]+)\Q/orders\E$" (QuoteMeta escaping).
func compilePathPattern(template string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteByte('^')

	lastEnd := 0
	for _, match := range placeholderPattern.FindAllStringSubmatchIndex(template, -1) {
		start, end := match[0], match[1]
		if start > lastEnd {
			sb.WriteString(regexp.QuoteMeta(template[lastEnd:start]))
		}

		name := sanitizeGroupName(template[match[2]:match[3]])
		if name != "" {
			sb.WriteString("(?P<")
			sb.WriteString(name)
			sb.WriteString(">[^/]+)")
		} else {
			// unsanitizable names degrade to an unnamed capture
			sb.WriteString("([^/]+)")
		}

		lastEnd = end
	}

	if lastEnd < len(template) {
		sb.WriteString(regexp.QuoteMeta(template[lastEnd:]))
	}

	sb.WriteByte('$')
	return regexp.Compile(sb.String())
}

// sanitizeGroupName reduces a placeholder name to a form usable as a
// named capture: ASCII letters and digits only, first character forced
// to a letter. Returns "" when nothing usable remains.
func sanitizeGroupName(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			sb.WriteByte(c)
		}
	}
	sanitized := sb.String()
	if sanitized == "" {
		return ""
	}
	if first := sanitized[0]; first >= '0' && first <= '9' {
		sanitized = "p" + sanitized
	}
	return sanitized
}

// hasPlaceholders reports whether the template contains at least one
// {placeholder} segment.
func hasPlaceholders(template string) bool {
	return placeholderPattern.MatchString(template)
}
