package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/report"
	"github.com/sells-group/familycheck/internal/store"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const householdExport = `Family group
Family organizer
Owner Person
owner@x.com
Family members
Bob
bob@x.com
John
john.smith@corp.com
`

func TestRunCheck_JSON(t *testing.T) {
	c := testConfig(t)
	opts := checkOptions{
		Authoritative: writeTemp(t, "auth.txt", householdExport),
		Stored:        writeTemp(t, "stored.txt", "bob@x.com\njohn.smith@cor\n"),
		Name:          "household",
		Format:        "json",
	}

	var buf bytes.Buffer
	require.NoError(t, runCheck(context.Background(), c, opts, &buf))

	var got report.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "household", got.Name)
	assert.Equal(t, family.VerdictPossible, got.Verdict)
	assert.Equal(t, 1, got.Metrics.Exact)
	assert.Equal(t, 1, got.Metrics.Fuzzy)
}

func TestRunCheck_CSVColumn(t *testing.T) {
	c := testConfig(t)
	opts := checkOptions{
		Authoritative: writeTemp(t, "auth.txt", "Bob\nbob@x.com\n"),
		Stored:        writeTemp(t, "stored.csv", "name,email\nBob,bob@x.com\n"),
		Format:        "table",
	}
	opts.List.Header = "email"

	var buf bytes.Buffer
	require.NoError(t, runCheck(context.Background(), c, opts, &buf))
	assert.Contains(t, buf.String(), "Verdict: perfect")
}

func TestRunCheck_StoredURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bob@x.com\n"))
	}))
	defer srv.Close()

	c := testConfig(t)
	opts := checkOptions{
		Authoritative: writeTemp(t, "auth.txt", "Bob\nbob@x.com\n"),
		StoredURL:     srv.URL,
		Format:        "csv",
	}

	var buf bytes.Buffer
	require.NoError(t, runCheck(context.Background(), c, opts, &buf))
	assert.Contains(t, buf.String(), "exact,Bob,bob@x.com,bob@x.com,100%,")
}

func TestRunCheck_ValidationErrorIsSaved(t *testing.T) {
	c := testConfig(t)
	opts := checkOptions{
		Authoritative: writeTemp(t, "auth.txt", "Alice\nalice@x.com\nBob\n"),
		Stored:        writeTemp(t, "stored.txt", "alice@x.com\n"),
		Name:          "broken",
		Format:        "table",
		Save:          true,
	}

	var buf bytes.Buffer
	err := runCheck(context.Background(), c, opts, &buf)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
	assert.Empty(t, buf.String())

	st, err := store.NewSQLite(c.Store.DatabaseURL)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "broken", runs[0].Name)
	assert.False(t, runs[0].Valid())
}

func TestRunCheck_SaveAndOutputFile(t *testing.T) {
	c := testConfig(t)
	out := filepath.Join(t.TempDir(), "report.yaml")
	opts := checkOptions{
		Authoritative: writeTemp(t, "auth.txt", "a@x.com\n"),
		Stored:        writeTemp(t, "stored.txt", "a@x.com\n"),
		Format:        "yaml",
		Output:        out,
		Save:          true,
	}

	var buf bytes.Buffer
	require.NoError(t, runCheck(context.Background(), c, opts, &buf))
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "verdict: perfect")

	st, err := store.NewSQLite(c.Store.DatabaseURL)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	runs, err := st.ListRuns(context.Background(), store.RunFilter{Verdict: family.VerdictPerfect})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunCheck_Errors(t *testing.T) {
	c := testConfig(t)
	auth := writeTemp(t, "auth.txt", "a@x.com\n")

	err := runCheck(context.Background(), c, checkOptions{Authoritative: auth, Format: "table"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--stored")

	err = runCheck(context.Background(), c, checkOptions{Authoritative: "-", Stored: "-", Format: "table"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin")

	err = runCheck(context.Background(), c, checkOptions{Authoritative: auth, Stored: auth, Format: "pdf"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	err = runCheck(context.Background(), c, checkOptions{Authoritative: filepath.Join(t.TempDir(), "missing"), Stored: auth, Format: "table"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read authoritative list")
}

func TestMatcherFor(t *testing.T) {
	c := testConfig(t)

	m, err := matcherFor(c, 0)
	require.NoError(t, err)
	assert.InDelta(t, family.DefaultThreshold, m.Threshold(), 0.0001)

	m, err = matcherFor(c, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, m.Threshold(), 0.0001)

	m, err = matcherFor(c, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.Threshold(), 0.0001)

	for _, bad := range []float64{5, 1.01, -0.5} {
		_, err = matcherFor(c, bad)
		require.Error(t, err, "threshold %g", bad)
		assert.Contains(t, err.Error(), "--threshold must be in (0, 1]")
	}
}

func TestRunCheck_ThresholdOutOfRange(t *testing.T) {
	c := testConfig(t)
	auth := writeTemp(t, "auth.txt", "bob@x.com")

	var out bytes.Buffer
	err := runCheck(context.Background(), c, checkOptions{Authoritative: auth, Stored: auth, Format: "table", Threshold: 5}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--threshold must be in (0, 1]")
	assert.Empty(t, out.String())
}
