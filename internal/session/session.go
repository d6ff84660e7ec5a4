// Package session manages multi-pair reconciliation sessions: several
// authoritative/stored list pairs evaluated together, each independently.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/familycheck/internal/family"
)

// Pair is one authoritative/stored list pair.
type Pair struct {
	Name          string `json:"name" yaml:"name"`
	Authoritative string `json:"authoritative" yaml:"authoritative"`
	Stored        string `json:"stored" yaml:"stored"`
}

// Session is an ordered set of pairs. It replaces any notion of a global
// "current pair": callers hold the session and index into it explicitly.
type Session struct {
	ID    string `json:"id" yaml:"id"`
	Pairs []Pair `json:"pairs" yaml:"pairs"`
}

// New creates an empty session with a fresh ID.
func New() *Session {
	return &Session{ID: uuid.New().String()}
}

// Add appends a pair and returns its index. Unnamed pairs are named by position.
func (s *Session) Add(p Pair) int {
	if p.Name == "" {
		p.Name = fmt.Sprintf("Pair %d", len(s.Pairs)+1)
	}
	s.Pairs = append(s.Pairs, p)
	return len(s.Pairs) - 1
}

// Remove deletes the pair at index.
func (s *Session) Remove(index int) error {
	if index < 0 || index >= len(s.Pairs) {
		return eris.Errorf("session: pair index %d out of range (have %d)", index, len(s.Pairs))
	}
	s.Pairs = append(s.Pairs[:index], s.Pairs[index+1:]...)
	return nil
}

// Len returns the number of pairs.
func (s *Session) Len() int {
	return len(s.Pairs)
}

// Outcome is the evaluation of one pair. Exactly one of Result or Error is set.
type Outcome struct {
	Index   int                      `json:"index" yaml:"index"`
	Name    string                   `json:"name" yaml:"name"`
	Result  *family.ComparisonResult `json:"result,omitempty" yaml:"result,omitempty"`
	Verdict family.Verdict           `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	Error   string                   `json:"error,omitempty" yaml:"error,omitempty"`
	Side    family.Side              `json:"side,omitempty" yaml:"side,omitempty"`
}

// Evaluate reconciles every pair using up to concurrency goroutines. A pair
// whose authoritative list fails validation is reported in its Outcome and
// does not affect the others. Outcomes are returned in pair order.
func (s *Session) Evaluate(ctx context.Context, m *family.Matcher, concurrency int) ([]Outcome, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	log := zap.L().With(zap.String("session_id", s.ID))

	outcomes := make([]Outcome, len(s.Pairs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, p := range s.Pairs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return eris.Wrap(err, "session: evaluate")
			}

			out := Outcome{Index: i, Name: p.Name}
			result, err := m.ReconcileText(p.Authoritative, p.Stored)

			var verr *family.ValidationError
			switch {
			case errors.As(err, &verr):
				out.Error = verr.Error()
				out.Side = verr.Side
				log.Warn("pair skipped", zap.String("pair", p.Name), zap.Error(err))
			case err != nil:
				return eris.Wrapf(err, "session: pair %q", p.Name)
			default:
				out.Result = result
				out.Verdict = family.Classify(result)
			}

			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug("session evaluated", zap.Int("pairs", len(outcomes)))
	return outcomes, nil
}

// Summary counts outcomes per verdict.
type Summary struct {
	Pairs    int                    `json:"pairs" yaml:"pairs"`
	Errors   int                    `json:"errors" yaml:"errors"`
	Verdicts map[family.Verdict]int `json:"verdicts" yaml:"verdicts"`
}

// Summarize tallies a set of outcomes.
func Summarize(outcomes []Outcome) Summary {
	sum := Summary{Pairs: len(outcomes), Verdicts: make(map[family.Verdict]int)}
	for _, o := range outcomes {
		if o.Error != "" {
			sum.Errors++
			continue
		}
		sum.Verdicts[o.Verdict]++
	}
	return sum
}

// LoadFile reads a session from a YAML file of the form
//
//	pairs:
//	  - name: Household A
//	    authoritative: |
//	      ...
//	    stored: |
//	      ...
func LoadFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "session: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML session document.
func Parse(data []byte) (*Session, error) {
	var doc Session
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "session: parse yaml")
	}

	s := New()
	if doc.ID != "" {
		s.ID = doc.ID
	}
	for _, p := range doc.Pairs {
		s.Add(p)
	}
	return s, nil
}
