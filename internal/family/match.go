package family

// Reconcile partitions the two candidate lists in two greedy passes:
//  1. Exact: each authoritative candidate, in order, takes the first
//     remaining stored candidate with the same email.
//  2. Fuzzy: each leftover authoritative candidate, in order, takes the first
//     unused leftover stored candidate scoring at least the threshold.
//
// Whatever is left over lands in AuthoritativeOnly and StoredOnly in original
// order. The assignment is order-sensitive by construction: ties go to the
// earliest eligible partner, not to the best one.
func (m *Matcher) Reconcile(authoritative, stored []EmailCandidate) *ComparisonResult {
	result := newComparisonResult(len(authoritative), len(stored))

	// Exact phase.
	remainingStored := make([]EmailCandidate, len(stored))
	copy(remainingStored, stored)

	var leftoverAuth []EmailCandidate
	for _, a := range authoritative {
		idx := -1
		for j, s := range remainingStored {
			if s.Email == a.Email {
				idx = j
				break
			}
		}
		if idx < 0 {
			leftoverAuth = append(leftoverAuth, a)
			continue
		}
		result.ExactMatches = append(result.ExactMatches, MatchedPair{
			Authoritative: a,
			Stored:        remainingStored[idx],
			Similarity:    1,
		})
		remainingStored = append(remainingStored[:idx], remainingStored[idx+1:]...)
	}

	// Fuzzy phase.
	used := make([]bool, len(remainingStored))
	for _, a := range leftoverAuth {
		paired := false
		for j, s := range remainingStored {
			if used[j] {
				continue
			}
			score := Similarity(a.Email, s.Email)
			if score < m.opts.Threshold {
				continue
			}
			used[j] = true
			paired = true
			result.FuzzyMatches = append(result.FuzzyMatches, MatchedPair{
				Authoritative: a,
				Stored:        s,
				Similarity:    score,
				Differences:   Differences(a.Email, s.Email),
			})
			break
		}
		if !paired {
			result.AuthoritativeOnly = append(result.AuthoritativeOnly, a)
		}
	}

	for j, s := range remainingStored {
		if !used[j] {
			result.StoredOnly = append(result.StoredOnly, s)
		}
	}

	return result
}
