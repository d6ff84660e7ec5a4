package family

// DefaultThreshold is the minimum similarity for a fuzzy match.
const DefaultThreshold = 0.6

// Options configures a Matcher. Zero values take the defaults.
type Options struct {
	Threshold float64
	Markers   Markers
}

// Matcher parses and reconciles email lists. It holds no state between calls
// and is safe for concurrent use.
type Matcher struct {
	opts Options
}

// New creates a Matcher, filling unset options with defaults.
func New(opts Options) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Markers.empty() {
		ignoreCase := opts.Markers.IgnoreCase
		opts.Markers = DefaultMarkers()
		opts.Markers.IgnoreCase = ignoreCase
	}
	return &Matcher{opts: opts}
}

// Threshold returns the fuzzy-match threshold in effect.
func (m *Matcher) Threshold() float64 {
	return m.opts.Threshold
}

// ReconcileText parses both lists and reconciles them. Only the
// authoritative list can fail to parse.
func (m *Matcher) ReconcileText(authoritativeText, storedText string) (*ComparisonResult, error) {
	authoritative, err := m.ParseAuthoritative(authoritativeText)
	if err != nil {
		return nil, err
	}
	return m.Reconcile(authoritative, ParseStored(storedText)), nil
}

var defaultMatcher = New(Options{})

// ReconcileEmailLists reconciles two raw lists with the default options.
func ReconcileEmailLists(authoritativeText, storedText string) (*ComparisonResult, error) {
	return defaultMatcher.ReconcileText(authoritativeText, storedText)
}

// ClassifyResult is Classify under the name callers of ReconcileEmailLists expect.
func ClassifyResult(r *ComparisonResult) Verdict {
	return Classify(r)
}
