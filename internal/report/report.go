// Package report renders reconciliation results for people and for other
// tools: aligned tables, CSV rows, JSON/YAML documents and XLSX workbooks.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/familycheck/internal/family"
)

// Format selects an output rendering.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("report: unsupported format %q", s)
	}
}

// Report is the document form of one reconciliation.
type Report struct {
	Name    string                   `json:"name,omitempty" yaml:"name,omitempty"`
	Verdict family.Verdict           `json:"verdict" yaml:"verdict"`
	Summary string                   `json:"summary" yaml:"summary"`
	Metrics family.Metrics           `json:"metrics" yaml:"metrics"`
	Result  *family.ComparisonResult `json:"result" yaml:"result"`
}

// New assembles a Report.
func New(name string, result *family.ComparisonResult, verdict family.Verdict) Report {
	r := Report{Name: name, Verdict: verdict, Summary: verdict.Summary(), Result: result}
	if result != nil {
		r.Metrics = result.Metrics()
	}
	return r
}

// Write renders one reconciliation to w.
func Write(w io.Writer, format Format, name string, result *family.ComparisonResult, verdict family.Verdict) error {
	rep := New(name, result, verdict)
	switch format {
	case FormatTable:
		return writeTable(w, rep)
	case FormatCSV:
		return writeCSV(w, rep)
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatYAML:
		return writeYAML(w, rep)
	default:
		return eris.Errorf("report: unsupported format %q", format)
	}
}

// Row kinds used in tabular output.
const (
	kindExact             = "exact"
	kindFuzzy             = "fuzzy"
	kindAuthoritativeOnly = "authoritative_only"
	kindStoredOnly        = "stored_only"
)

// row is the flattened form shared by the table, CSV and XLSX writers.
type row struct {
	Kind          string
	Name          string
	Authoritative string
	Stored        string
	Similarity    string
	Differences   string
}

func (r row) strings() []string {
	return []string{r.Kind, r.Name, r.Authoritative, r.Stored, r.Similarity, r.Differences}
}

var rowHeader = []string{"kind", "name", "authoritative", "stored", "similarity", "differences"}

func rows(result *family.ComparisonResult) []row {
	if result == nil {
		return nil
	}
	var out []row
	for _, p := range result.ExactMatches {
		out = append(out, pairRow(kindExact, p))
	}
	for _, p := range result.FuzzyMatches {
		out = append(out, pairRow(kindFuzzy, p))
	}
	for _, c := range result.AuthoritativeOnly {
		out = append(out, row{Kind: kindAuthoritativeOnly, Name: c.DisplayName, Authoritative: c.Email})
	}
	for _, c := range result.StoredOnly {
		out = append(out, row{Kind: kindStoredOnly, Name: c.DisplayName, Stored: c.Email})
	}
	return out
}

func pairRow(kind string, p family.MatchedPair) row {
	return row{
		Kind:          kind,
		Name:          p.Authoritative.DisplayName,
		Authoritative: p.Authoritative.Email,
		Stored:        p.Stored.Email,
		Similarity:    fmt.Sprintf("%.0f%%", p.Similarity*100),
		Differences:   FormatDifferences(p.Differences),
	}
}

// FormatDifferences renders differences as "pos:left/right" items; a missing
// side is shown as "-".
func FormatDifferences(diffs []family.Difference) string {
	parts := make([]string, 0, len(diffs))
	for _, d := range diffs {
		parts = append(parts, fmt.Sprintf("%d:%s/%s", d.Position, orDash(d.Left), orDash(d.Right)))
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeTable(out io.Writer, rep Report) error {
	if rep.Name != "" {
		_, _ = fmt.Fprintf(out, "%s\n", rep.Name)
	}
	_, _ = fmt.Fprintf(out, "Verdict: %s (%s)\n\n", rep.Verdict, rep.Summary)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tNAME\tAUTHORITATIVE\tSTORED\tSIMILARITY\tDIFFERENCES")
	_, _ = fmt.Fprintln(w, "----\t----\t-------------\t------\t----------\t-----------")
	for _, r := range rows(rep.Result) {
		_, _ = fmt.Fprintln(w, strings.Join(r.strings(), "\t"))
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "report: write table")
	}

	m := rep.Metrics
	_, err := fmt.Fprintf(out, "\nExact: %d  Fuzzy: %d  Authoritative only: %d  Stored only: %d  Total: %d\n",
		m.Exact, m.Fuzzy, m.AuthoritativeOnly, m.StoredOnly, m.TotalEmails)
	return eris.Wrap(err, "report: write table summary")
}

func writeCSV(w io.Writer, rep Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rowHeader); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}
	for _, r := range rows(rep.Result) {
		if err := cw.Write(r.strings()); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush CSV")
}

// Encode writes v as an indented JSON or YAML document.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, v)
	case FormatYAML:
		return writeYAML(w, v)
	default:
		return eris.Errorf("report: format %q cannot encode documents", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: encode json")
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml encoder")
}
