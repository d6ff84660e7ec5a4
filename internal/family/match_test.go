package family

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emails(cs []EmailCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Email
	}
	return out
}

func pairEmails(ps []MatchedPair) [][2]string {
	out := make([][2]string, len(ps))
	for i, p := range ps {
		out[i] = [2]string{p.Authoritative.Email, p.Stored.Email}
	}
	return out
}

func TestReconcile_OwnerExcludedLeavesStoredOnly(t *testing.T) {
	result, err := ReconcileEmailLists(
		"Family organizer\nalice@x.com\nBob\nbob@x.com",
		"alice@x.com\nbob@x.com",
	)
	require.NoError(t, err)

	assert.Equal(t, [][2]string{{"bob@x.com", "bob@x.com"}}, pairEmails(result.ExactMatches))
	assert.Empty(t, result.FuzzyMatches)
	assert.Empty(t, result.AuthoritativeOnly)
	assert.Equal(t, []string{"alice@x.com"}, emails(result.StoredOnly))
	assert.Equal(t, 1, result.TotalAuthoritative)
	assert.Equal(t, 2, result.TotalStored)
	assert.Equal(t, VerdictDifferent, ClassifyResult(result))
}

func TestReconcile_TruncatedStoredEmailIsPossible(t *testing.T) {
	result, err := ReconcileEmailLists("john.smith@corp.com", "john.smith@cor")
	require.NoError(t, err)

	require.Len(t, result.FuzzyMatches, 1)
	pair := result.FuzzyMatches[0]
	assert.Equal(t, 0.75, pair.Similarity)
	assert.Len(t, pair.Differences, 5)
	assert.Empty(t, result.ExactMatches)
	assert.Empty(t, result.AuthoritativeOnly)
	assert.Empty(t, result.StoredOnly)
	assert.Equal(t, VerdictPossible, ClassifyResult(result))
}

func TestReconcile_InvalidAuthoritativeList(t *testing.T) {
	result, err := ReconcileEmailLists("Alice\nalice@x.com\nBob", "alice@x.com")
	assert.Nil(t, result)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, SideAuthoritative, verr.Side)
}

func TestReconcile_NoCounterparts(t *testing.T) {
	result, err := ReconcileEmailLists("alice@example.com\nbob@example.com", "q@z.io")
	require.NoError(t, err)

	assert.Empty(t, result.ExactMatches)
	assert.Empty(t, result.FuzzyMatches)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, emails(result.AuthoritativeOnly))
	assert.Equal(t, []string{"q@z.io"}, emails(result.StoredOnly))
	assert.Equal(t, VerdictDifferent, ClassifyResult(result))
}

func TestReconcile_ShortSimilarAddressesPairFuzzily(t *testing.T) {
	// a@x.com and c@x.com differ by one character out of seven, which clears
	// the threshold, so the first authoritative entry pairs with c@x.com.
	result, err := ReconcileEmailLists("a@x.com\nb@x.com", "c@x.com")
	require.NoError(t, err)

	assert.Equal(t, [][2]string{{"a@x.com", "c@x.com"}}, pairEmails(result.FuzzyMatches))
	assert.Equal(t, []string{"b@x.com"}, emails(result.AuthoritativeOnly))
	assert.Empty(t, result.StoredOnly)
	assert.Equal(t, VerdictMixed, ClassifyResult(result))
}

func TestReconcile_ExactPhaseRunsBeforeFuzzy(t *testing.T) {
	result, err := ReconcileEmailLists("ann@x.com\nanna@x.com", "anna@x.com\nann@x.com")
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"ann@x.com", "ann@x.com"},
		{"anna@x.com", "anna@x.com"},
	}, pairEmails(result.ExactMatches))
	assert.Empty(t, result.FuzzyMatches)
	assert.Equal(t, VerdictPerfect, ClassifyResult(result))
}

func TestReconcile_FuzzyTakesFirstEligiblePartner(t *testing.T) {
	// "bob@x" scores 0.75 and comes first; "bob" would score 0.85.
	result, err := ReconcileEmailLists("bob@x.com", "bob@x\nbob")
	require.NoError(t, err)

	assert.Equal(t, [][2]string{{"bob@x.com", "bob@x"}}, pairEmails(result.FuzzyMatches))
	assert.Equal(t, []string{"bob"}, emails(result.StoredOnly))
}

func TestReconcile_DuplicateAuthoritativeEntries(t *testing.T) {
	result, err := ReconcileEmailLists("a@x.com\na@x.com", "a@x.com")
	require.NoError(t, err)

	assert.Len(t, result.ExactMatches, 1)
	assert.Equal(t, []string{"a@x.com"}, emails(result.AuthoritativeOnly))
}

func TestReconcile_ExactPairsCarryNoDifferences(t *testing.T) {
	result, err := ReconcileEmailLists("Alice\nalice@x.com", "ALICE@X.COM")
	require.NoError(t, err)

	require.Len(t, result.ExactMatches, 1)
	pair := result.ExactMatches[0]
	assert.Equal(t, 1.0, pair.Similarity)
	assert.Empty(t, pair.Differences)
	assert.Equal(t, "Alice", pair.Authoritative.DisplayName)
	assert.Equal(t, "Email 1", pair.Stored.DisplayName)
}

func TestReconcile_ThresholdOption(t *testing.T) {
	m := New(Options{Threshold: 0.9})
	assert.Equal(t, 0.9, m.Threshold())

	result, err := m.ReconcileText("john.smith@corp.com", "john.smith@cor")
	require.NoError(t, err)
	assert.Empty(t, result.FuzzyMatches)
	assert.Len(t, result.AuthoritativeOnly, 1)
	assert.Len(t, result.StoredOnly, 1)
}

func TestReconcile_EmptyStoredList(t *testing.T) {
	result, err := ReconcileEmailLists("a@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com"}, emails(result.AuthoritativeOnly))
	assert.Equal(t, 0, result.TotalStored)
	assert.NotNil(t, result.StoredOnly)
}

var partitionCases = []struct {
	name          string
	authoritative string
	stored        string
}{
	{"owner", "Family organizer\nalice@x.com\nBob\nbob@x.com", "alice@x.com\nbob@x.com"},
	{"truncated", "john.smith@corp.com\njane@corp.com", "john.smith@cor\njane\nsomeone@else.org"},
	{"duplicates", "a@x.com\na@x.com\nb@x.com", "a@x.com\nb@x.co\nb@x.co"},
	{"disjoint", "alice@example.com\nbob@example.com", "q@z.io\nzz"},
	{"mixed case", "Carol\nCAROL@x.com\ndave@x.com", "carol@x.com\ndave@x\nerin@x.com"},
}

func TestReconcile_PartitionsAreExhaustiveAndDisjoint(t *testing.T) {
	m := New(Options{})
	for _, tc := range partitionCases {
		t.Run(tc.name, func(t *testing.T) {
			auth, err := m.ParseAuthoritative(tc.authoritative)
			require.NoError(t, err)
			stored := ParseStored(tc.stored)

			result := m.Reconcile(auth, stored)

			var gotAuth, gotStored []string
			for _, p := range append(append([]MatchedPair{}, result.ExactMatches...), result.FuzzyMatches...) {
				gotAuth = append(gotAuth, p.Authoritative.Email)
				gotStored = append(gotStored, p.Stored.Email)
			}
			gotAuth = append(gotAuth, emails(result.AuthoritativeOnly)...)
			gotStored = append(gotStored, emails(result.StoredOnly)...)

			wantAuth, wantStored := emails(auth), emails(stored)
			sort.Strings(gotAuth)
			sort.Strings(gotStored)
			sort.Strings(wantAuth)
			sort.Strings(wantStored)

			assert.Equal(t, wantAuth, gotAuth)
			assert.Equal(t, wantStored, gotStored)
			assert.Equal(t, len(auth), result.TotalAuthoritative)
			assert.Equal(t, len(stored), result.TotalStored)
		})
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	for _, tc := range partitionCases {
		first, err := ReconcileEmailLists(tc.authoritative, tc.stored)
		require.NoError(t, err)
		second, err := ReconcileEmailLists(tc.authoritative, tc.stored)
		require.NoError(t, err)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s: reconcile not idempotent (-first +second):\n%s", tc.name, diff)
		}
	}
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	m := New(Options{})
	stored := ParseStored("a@x.com\nb@x.com\nc@x.com")
	before := append([]EmailCandidate{}, stored...)

	auth, err := m.ParseAuthoritative("b@x.com")
	require.NoError(t, err)
	m.Reconcile(auth, stored)

	assert.Equal(t, before, stored)
}
