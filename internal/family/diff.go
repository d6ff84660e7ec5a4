package family

// Differences aligns a and b rune by rune over the longer length and
// returns every position where they disagree.
func Differences(a, b string) []Difference {
	left, right := []rune(a), []rune(b)
	n := max(len(left), len(right))

	var diffs []Difference
	for i := 0; i < n; i++ {
		var l, r string
		if i < len(left) {
			l = string(left[i])
		}
		if i < len(right) {
			r = string(right[i])
		}
		if l != r {
			diffs = append(diffs, Difference{Position: i, Left: l, Right: r})
		}
	}
	return diffs
}
