package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/session"
)

// SessionReport is the document form of an evaluated session.
type SessionReport struct {
	ID       string            `json:"id" yaml:"id"`
	Summary  session.Summary   `json:"summary" yaml:"summary"`
	Outcomes []session.Outcome `json:"outcomes" yaml:"outcomes"`
}

// WriteSession renders session outcomes to w. Table and CSV output list one
// line per pair; JSON and YAML carry the full results.
func WriteSession(w io.Writer, format Format, id string, outcomes []session.Outcome) error {
	doc := SessionReport{ID: id, Summary: session.Summarize(outcomes), Outcomes: outcomes}
	switch format {
	case FormatTable:
		return writeSessionTable(w, doc)
	case FormatCSV:
		return writeSessionCSV(w, outcomes)
	case FormatJSON:
		return writeJSON(w, doc)
	case FormatYAML:
		return writeYAML(w, doc)
	default:
		return eris.Errorf("report: unsupported format %q", format)
	}
}

var sessionHeader = []string{"pair", "name", "verdict", "exact", "fuzzy", "authoritative_only", "stored_only", "error"}

func outcomeRow(o session.Outcome) []string {
	m := family.Metrics{}
	if o.Result != nil {
		m = o.Result.Metrics()
	}
	verdict := string(o.Verdict)
	if o.Error != "" {
		verdict = "invalid"
	}
	return []string{
		fmt.Sprintf("%d", o.Index+1),
		o.Name,
		verdict,
		fmt.Sprintf("%d", m.Exact),
		fmt.Sprintf("%d", m.Fuzzy),
		fmt.Sprintf("%d", m.AuthoritativeOnly),
		fmt.Sprintf("%d", m.StoredOnly),
		o.Error,
	}
}

func writeSessionTable(out io.Writer, doc SessionReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.ToUpper(strings.Join(sessionHeader, "\t")))
	for _, o := range doc.Outcomes {
		_, _ = fmt.Fprintln(w, strings.Join(outcomeRow(o), "\t"))
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "report: write session table")
	}

	_, err := fmt.Fprintf(out, "\nPairs: %d  Invalid: %d  Perfect: %d  Possible: %d  Different: %d  Mixed: %d  Unknown: %d\n",
		doc.Summary.Pairs, doc.Summary.Errors,
		doc.Summary.Verdicts[family.VerdictPerfect],
		doc.Summary.Verdicts[family.VerdictPossible],
		doc.Summary.Verdicts[family.VerdictDifferent],
		doc.Summary.Verdicts[family.VerdictMixed],
		doc.Summary.Verdicts[family.VerdictUnknown],
	)
	return eris.Wrap(err, "report: write session summary")
}

func writeSessionCSV(w io.Writer, outcomes []session.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sessionHeader); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}
	for _, o := range outcomes {
		if err := cw.Write(outcomeRow(o)); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush CSV")
}

// WriteXLSX saves a workbook with a "Summary" sheet listing every pair and
// one detail sheet per valid pair.
func WriteXLSX(path string, outcomes []session.Outcome) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addRow(summary, sessionHeader)
	for _, o := range outcomes {
		addRow(summary, outcomeRow(o))
	}

	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		sheet, err := f.AddSheet(sheetName(o))
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet for pair %d", o.Index+1)
		}
		addRow(sheet, rowHeader)
		for _, r := range rows(o.Result) {
			addRow(sheet, r.strings())
		}
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addRow(sheet *xlsx.Sheet, values []string) {
	r := sheet.AddRow()
	for _, v := range values {
		r.AddCell().SetString(v)
	}
}

// sheetName builds a unique sheet name within Excel's 31 character limit.
func sheetName(o session.Outcome) string {
	name := fmt.Sprintf("%d %s", o.Index+1, o.Name)
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}
