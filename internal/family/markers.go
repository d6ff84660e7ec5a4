package family

import "strings"

// Markers holds the keyword tables used when parsing the authoritative list.
// Matching is substring containment, case-sensitive unless IgnoreCase is set.
type Markers struct {
	// Owner markers signal that the export lists the group owner first.
	Owner []string `json:"owner" yaml:"owner"`
	// Role keywords identify structural header lines (group, owner and
	// member labels) that carry no name or address.
	Role []string `json:"role" yaml:"role"`
	// IgnoreCase folds case before matching. Off by default so that name
	// lines such as "Remember Me" are not read as the "Member" label.
	IgnoreCase bool `json:"ignore_case" yaml:"ignore_case"`
}

// DefaultMarkers returns the English and Chinese tables for family-group
// membership exports.
func DefaultMarkers() Markers {
	return Markers{
		Owner: []string{
			"Family organizer",
			"Family manager",
			"家庭组织者",
			"家庭管理员",
			"(you)",
			"(你)",
		},
		Role: []string{
			"Family group",
			"Family organizer",
			"Family manager",
			"Family members",
			"Family member",
			"Members",
			"Member",
			"家庭群组",
			"家庭组",
			"家庭组织者",
			"家庭管理员",
			"家庭成员",
			"成员",
		},
	}
}

// HasOwner reports whether any line contains an owner marker.
func (m Markers) HasOwner(lines []string) bool {
	for _, line := range lines {
		if m.contains(line, m.Owner) {
			return true
		}
	}
	return false
}

// IsRole reports whether line is a structural header line.
func (m Markers) IsRole(line string) bool {
	return m.contains(line, m.Role)
}

func (m Markers) empty() bool {
	return len(m.Owner) == 0 && len(m.Role) == 0
}

func (m Markers) contains(line string, keywords []string) bool {
	if m.IgnoreCase {
		line = strings.ToLower(line)
	}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if m.IgnoreCase {
			kw = strings.ToLower(kw)
		}
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}
