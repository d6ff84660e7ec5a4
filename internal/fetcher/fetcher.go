// Package fetcher loads email list text from local files (plain text, CSV,
// XLSX) and from HTTP sources such as published spreadsheet exports.
package fetcher

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ListOptions selects the column holding the list in tabular sources.
type ListOptions struct {
	Column     int    // zero-based column index, used when Header is empty
	Header     string // header cell to locate the column; implies a header row
	SkipHeader bool   // drop the first row
	Sheet      string // XLSX sheet name; first sheet when empty
}

// ReadListFile reads a list from path and returns it as newline-separated
// text. The format is chosen by extension: .xlsx, .csv, anything else is text.
// A path of "-" reads text from stdin.
func ReadListFile(path string, opts ListOptions) (string, error) {
	if path == "-" {
		return DecodeText(os.Stdin)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		cells, err := ReadXLSXColumn(path, opts)
		if err != nil {
			return "", err
		}
		return joinCells(cells), nil
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return "", eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		text, err := DecodeText(f)
		if err != nil {
			return "", err
		}
		cells, err := ReadCSVColumn(strings.NewReader(text), opts)
		if err != nil {
			return "", err
		}
		return joinCells(cells), nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return "", eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return DecodeText(f)
	}
}

// DecodeText reads r fully, honoring a UTF-8 or UTF-16 byte order mark.
// Input without a BOM is treated as UTF-8.
func DecodeText(r io.Reader) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", eris.Wrap(err, "fetcher: decode text")
	}
	return string(data), nil
}

// selectColumn finds the column index and the number of leading rows to drop.
func selectColumn(header []string, opts ListOptions) (col, skip int, err error) {
	if opts.Header == "" {
		if opts.SkipHeader {
			skip = 1
		}
		return opts.Column, skip, nil
	}
	for i, cell := range header {
		if strings.EqualFold(strings.TrimSpace(cell), opts.Header) {
			return i, 1, nil
		}
	}
	return 0, 0, eris.Errorf("fetcher: header %q not found", opts.Header)
}

func columnCells(rows [][]string, opts ListOptions) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	col, skip, err := selectColumn(rows[0], opts)
	if err != nil {
		return nil, err
	}

	var cells []string
	for _, row := range rows[min(skip, len(rows)):] {
		if col >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[col]); v != "" {
			cells = append(cells, v)
		}
	}
	return cells, nil
}

func joinCells(cells []string) string {
	return strings.Join(cells, "\n")
}
