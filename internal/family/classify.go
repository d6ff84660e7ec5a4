package family

// Verdict is the coarse classification of a ComparisonResult.
type Verdict string

// Verdict constants.
const (
	VerdictPerfect   Verdict = "perfect"
	VerdictPossible  Verdict = "possible"
	VerdictDifferent Verdict = "different"
	VerdictMixed     Verdict = "mixed"
	VerdictUnknown   Verdict = "unknown"
)

const (
	// possibleCutoff is the mean fuzzy similarity needed for VerdictPossible.
	possibleCutoff = 0.6
	// lowConfidenceCutoff marks an all-fuzzy result as a mismatch.
	lowConfidenceCutoff = 0.3
)

// Summary returns a one-line description of the verdict.
func (v Verdict) Summary() string {
	switch v {
	case VerdictPerfect:
		return "All emails match exactly."
	case VerdictPossible:
		return "Every email has a probable match; review the highlighted differences."
	case VerdictDifferent:
		return "The lists contain emails with no counterpart."
	case VerdictMixed:
		return "Some emails only probably match and others have no counterpart."
	default:
		return "The comparison could not be classified."
	}
}

// Metrics are the counts the classifier decides on.
type Metrics struct {
	Exact              int     `json:"exact" yaml:"exact"`
	Fuzzy              int     `json:"fuzzy" yaml:"fuzzy"`
	AuthoritativeOnly  int     `json:"authoritative_only" yaml:"authoritative_only"`
	StoredOnly         int     `json:"stored_only" yaml:"stored_only"`
	TotalEmails        int     `json:"total_emails" yaml:"total_emails"`
	AvgFuzzySimilarity float64 `json:"avg_fuzzy_similarity" yaml:"avg_fuzzy_similarity"`
}

// Metrics computes the classifier metrics. AvgFuzzySimilarity is 0 when
// there are no fuzzy matches.
func (r *ComparisonResult) Metrics() Metrics {
	m := Metrics{
		Exact:             len(r.ExactMatches),
		Fuzzy:             len(r.FuzzyMatches),
		AuthoritativeOnly: len(r.AuthoritativeOnly),
		StoredOnly:        len(r.StoredOnly),
		TotalEmails:       max(r.TotalAuthoritative, r.TotalStored),
	}
	if m.Fuzzy > 0 {
		var sum float64
		for _, p := range r.FuzzyMatches {
			sum += p.Similarity
		}
		m.AvgFuzzySimilarity = sum / float64(m.Fuzzy)
	}
	return m
}

// Classify maps a result to a Verdict. The first matching rule wins:
//  1. unmatched entries plus fuzzy matches: Mixed
//  2. unmatched entries only, or an all-fuzzy result averaging below 0.3: Different
//  3. fuzzy matches only, averaging at least 0.6: Possible
//  4. exact matches only with equal list sizes: Perfect
//
// Anything else is Unknown.
func Classify(r *ComparisonResult) Verdict {
	if r == nil {
		return VerdictUnknown
	}
	m := r.Metrics()
	unmatched := m.AuthoritativeOnly > 0 || m.StoredOnly > 0

	switch {
	case unmatched && m.Fuzzy > 0:
		return VerdictMixed
	case unmatched:
		return VerdictDifferent
	case m.Fuzzy > 0 && m.Exact == 0 && m.AvgFuzzySimilarity < lowConfidenceCutoff:
		return VerdictDifferent
	case m.Fuzzy > 0 && m.AvgFuzzySimilarity >= possibleCutoff:
		return VerdictPossible
	case m.TotalEmails > 0 && m.Exact > 0 && m.Fuzzy == 0 && r.TotalAuthoritative == r.TotalStored:
		return VerdictPerfect
	default:
		return VerdictUnknown
	}
}
