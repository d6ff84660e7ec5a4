package family

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
	assert.Equal(t, 0, editDistance("same", "same"))
	assert.Equal(t, 4, editDistance("", "abcd"))
	assert.Equal(t, 1, editDistance("成员", "成"))
}

func TestSimilarity_Identical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("alice@x.com", "alice@x.com"))
	assert.Equal(t, 1.0, Similarity(" Alice@X.com", "alice@x.com "))
}

func TestSimilarity_BothEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
}

func TestSimilarity_BothComplete(t *testing.T) {
	// One substitution over seven characters.
	assert.InDelta(t, 6.0/7.0, Similarity("a@x.com", "c@x.com"), 1e-9)
}

func TestSimilarity_BothPartial(t *testing.T) {
	assert.InDelta(t, 0.75, Similarity("abcd", "abce"), 1e-9)
}

func TestSimilarity_LocalPartOnly(t *testing.T) {
	assert.Equal(t, 0.85, Similarity("john.smith@corp.com", "john.smith"))
	assert.Equal(t, 0.85, Similarity("john.smith", "john.smith@corp.com"))
}

func TestSimilarity_TruncatedPrefix(t *testing.T) {
	// 14/19 is below the floor.
	assert.Equal(t, 0.75, Similarity("john.smith@corp.com", "john.smith@cor"))
	// 21/25 is above it.
	assert.InDelta(t, 21.0/25.0, Similarity("alexander@examplecorp.com", "alexander@examplecorp"), 1e-9)
}

func TestSimilarity_TruncatedPrefixIsOrderIndependent(t *testing.T) {
	assert.Equal(t,
		Similarity("john.smith@corp.com", "john.smith@cor"),
		Similarity("john.smith@cor", "john.smith@corp.com"),
	)
}

func TestSimilarity_LocalPartContainment(t *testing.T) {
	// "smith" inside "john.smith": 1 - 5/10 = 0.5, lifted to the floor.
	assert.Equal(t, 0.6, Similarity("john.smith@corp.com", "smith"))
	// "bob1" contains "bob": 1 - 1/4.
	assert.InDelta(t, 0.75, Similarity("bob@x.com", "bob1"), 1e-9)
}

func TestSimilarity_Unrelated(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("alice@x.com", "zzz"))
}

func TestSimilarity_Bounds(t *testing.T) {
	inputs := []string{
		"", "a", "alice", "alice@x.com", "alice@x", "x.com", "@", "a@b.c",
		"john.smith@corp.com", "john.smith@cor", "smith", "张三@例子.中国", "张三",
	}
	for _, a := range inputs {
		for _, b := range inputs {
			s := Similarity(a, b)
			assert.GreaterOrEqual(t, s, 0.0, "similarity(%q, %q)", a, b)
			assert.LessOrEqual(t, s, 1.0, "similarity(%q, %q)", a, b)
		}
		if IsEmail(a) {
			assert.Equal(t, 1.0, Similarity(a, a))
		}
	}
}

func TestDifferences(t *testing.T) {
	assert.Empty(t, Differences("same", "same"))
	assert.Equal(t, []Difference{{Position: 2, Left: "c", Right: "d"}}, Differences("abc", "abd"))
}

func TestDifferences_TailCountsAsDifferent(t *testing.T) {
	diffs := Differences("john.smith@corp.com", "john.smith@cor")
	assert.Equal(t, []Difference{
		{Position: 14, Left: "p", Right: ""},
		{Position: 15, Left: ".", Right: ""},
		{Position: 16, Left: "c", Right: ""},
		{Position: 17, Left: "o", Right: ""},
		{Position: 18, Left: "m", Right: ""},
	}, diffs)

	rev := Differences("ab", "abcd")
	assert.Equal(t, []Difference{
		{Position: 2, Left: "", Right: "c"},
		{Position: 3, Left: "", Right: "d"},
	}, rev)
}
