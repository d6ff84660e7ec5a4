// Package family reconciles two free-text lists of email identifiers: a
// family-group membership export and the addresses held in internal records.
package family

// Side identifies which input list a candidate was parsed from.
type Side string

// Side constants.
const (
	SideAuthoritative Side = "authoritative"
	SideStored        Side = "stored"
)

// EmailCandidate is a single normalized entry parsed from one of the lists.
type EmailCandidate struct {
	Email       string `json:"email" yaml:"email"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Side        Side   `json:"side" yaml:"side"`
}

// Difference is one position where two aligned strings disagree. Left or
// Right is empty when that string is shorter than Position.
type Difference struct {
	Position int    `json:"position" yaml:"position"`
	Left     string `json:"left" yaml:"left"`
	Right    string `json:"right" yaml:"right"`
}

// MatchedPair links an authoritative candidate to a stored candidate.
type MatchedPair struct {
	Authoritative EmailCandidate `json:"authoritative" yaml:"authoritative"`
	Stored        EmailCandidate `json:"stored" yaml:"stored"`
	Similarity    float64        `json:"similarity" yaml:"similarity"`
	Differences   []Difference   `json:"differences,omitempty" yaml:"differences,omitempty"`
}

// ComparisonResult partitions both lists. Every authoritative candidate sits
// in exactly one of ExactMatches, FuzzyMatches or AuthoritativeOnly, and every
// stored candidate in exactly one of ExactMatches, FuzzyMatches or StoredOnly.
type ComparisonResult struct {
	ExactMatches       []MatchedPair    `json:"exact_matches" yaml:"exact_matches"`
	FuzzyMatches       []MatchedPair    `json:"fuzzy_matches" yaml:"fuzzy_matches"`
	AuthoritativeOnly  []EmailCandidate `json:"authoritative_only" yaml:"authoritative_only"`
	StoredOnly         []EmailCandidate `json:"stored_only" yaml:"stored_only"`
	TotalAuthoritative int              `json:"total_authoritative" yaml:"total_authoritative"`
	TotalStored        int              `json:"total_stored" yaml:"total_stored"`
}

func newComparisonResult(totalAuthoritative, totalStored int) *ComparisonResult {
	return &ComparisonResult{
		ExactMatches:       make([]MatchedPair, 0),
		FuzzyMatches:       make([]MatchedPair, 0),
		AuthoritativeOnly:  make([]EmailCandidate, 0),
		StoredOnly:         make([]EmailCandidate, 0),
		TotalAuthoritative: totalAuthoritative,
		TotalStored:        totalStored,
	}
}
