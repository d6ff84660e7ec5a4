package family

import (
	"fmt"
	"regexp"
	"strings"
)

// emailRe accepts local@domain.tld with no whitespace and a single "@".
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail reports whether s is a syntactically complete email address.
func IsEmail(s string) bool {
	return emailRe.MatchString(s)
}

// NormalizeEmail lowercases and trims an email identifier.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// splitLines returns the trimmed, non-empty lines of text.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseAuthoritative parses a membership export. Non-email lines name the
// email that follows them. When the export contains an owner marker, role
// header lines are dropped and the first email (the owner) is excluded.
func (m *Matcher) ParseAuthoritative(text string) ([]EmailCandidate, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, &ValidationError{Side: SideAuthoritative, Message: "list is empty"}
	}
	if last := lines[len(lines)-1]; !IsEmail(last) {
		return nil, &ValidationError{
			Side:    SideAuthoritative,
			Message: fmt.Sprintf("last line %q is not a valid email", last),
		}
	}

	ownerMode := m.opts.Markers.HasOwner(lines)
	ownerSkipped := false
	pendingName := ""

	candidates := make([]EmailCandidate, 0, len(lines))
	for _, line := range lines {
		if IsEmail(line) {
			if ownerMode && !ownerSkipped {
				ownerSkipped = true
				pendingName = ""
				continue
			}
			candidates = append(candidates, EmailCandidate{
				Email:       NormalizeEmail(line),
				DisplayName: pendingName,
				Side:        SideAuthoritative,
			})
			pendingName = ""
			continue
		}

		if ownerMode && m.opts.Markers.IsRole(line) {
			continue
		}
		pendingName = line
	}

	return candidates, nil
}

// ParseStored parses the internal-records list. Every non-empty line is an
// email by convention, even when truncated or malformed.
func ParseStored(text string) []EmailCandidate {
	lines := splitLines(text)
	candidates := make([]EmailCandidate, 0, len(lines))
	for i, line := range lines {
		candidates = append(candidates, EmailCandidate{
			Email:       NormalizeEmail(line),
			DisplayName: fmt.Sprintf("Email %d", i+1),
			Side:        SideStored,
		})
	}
	return candidates
}
