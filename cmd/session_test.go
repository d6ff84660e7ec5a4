package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/model"
	"github.com/sells-group/familycheck/internal/store"
)

const sessionDoc = `id: nightly
pairs:
  - name: Household A
    authoritative: |
      Family organizer
      owner@x.com
      Bob
      bob@x.com
    stored: |
      bob@x.com
  - name: Household B
    authoritative: |
      Carol
    stored: |
      carol@x.com
`

func TestRunSession(t *testing.T) {
	c := testConfig(t)
	xlsxPath := filepath.Join(t.TempDir(), "out.xlsx")
	opts := sessionOptions{
		File:   writeTemp(t, "pairs.yaml", sessionDoc),
		Format: "table",
		XLSX:   xlsxPath,
		Save:   true,
	}

	var buf bytes.Buffer
	require.NoError(t, runSession(context.Background(), c, opts, &buf))
	assert.Contains(t, buf.String(), "Household A")
	assert.Contains(t, buf.String(), "Pairs: 2  Invalid: 1  Perfect: 1")

	wb, err := xlsx.OpenFile(xlsxPath)
	require.NoError(t, err)
	assert.Len(t, wb.Sheets, 2)

	st, err := store.NewSQLite(c.Store.DatabaseURL)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	runs, err := st.ListRuns(context.Background(), store.RunFilter{SessionID: "nightly"})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunSession_Errors(t *testing.T) {
	c := testConfig(t)

	err := runSession(context.Background(), c, sessionOptions{File: filepath.Join(t.TempDir(), "none.yaml"), Format: "table"}, &bytes.Buffer{})
	require.Error(t, err)

	err = runSession(context.Background(), c, sessionOptions{File: writeTemp(t, "empty.yaml", "pairs: []\n"), Format: "table"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pairs")

	err = runSession(context.Background(), c, sessionOptions{File: writeTemp(t, "p.yaml", sessionDoc), Format: "html"}, &bytes.Buffer{})
	require.Error(t, err)

	err = runSession(context.Background(), c, sessionOptions{File: writeTemp(t, "p.yaml", sessionDoc), Format: "table", Threshold: 2}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--threshold must be in (0, 1]")
}

func TestWriteRun(t *testing.T) {
	result, err := family.ReconcileEmailLists("Bob\nbob@x.com", "bob@x.com")
	require.NoError(t, err)
	run := model.NewCheckRun("household", result, nil)
	run.ID = "0123456789abcdef"

	var buf bytes.Buffer
	require.NoError(t, writeRun(&buf, "json", run))
	assert.Contains(t, buf.String(), `"verdict": "perfect"`)

	buf.Reset()
	require.NoError(t, writeRun(&buf, "table", run))
	assert.Contains(t, buf.String(), "Verdict: perfect")

	invalid := model.NewCheckRun("bad", nil, assert.AnError)
	invalid.ID = "bad-run"
	buf.Reset()
	require.NoError(t, writeRun(&buf, "table", invalid))
	assert.Contains(t, buf.String(), "Run bad-run is invalid")
}

func TestFormatRunsList(t *testing.T) {
	result, err := family.ReconcileEmailLists("Bob\nbob@x.com", "bob@x.com")
	require.NoError(t, err)
	run := model.NewCheckRun("a very long household name that will be truncated", result, nil)
	run.ID = "0123456789abcdef"
	run.CreatedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	formatRunsList(&buf, []model.CheckRun{*run})
	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "perfect")
	assert.Contains(t, out, "2026-03-01 09:30")
}

func TestInitStore(t *testing.T) {
	c := testConfig(t)
	st, err := initStore(context.Background(), c)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	c.Store.Driver = "oracle"
	_, err = initStore(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be sqlite or postgres")
}

func TestNewAPIServer(t *testing.T) {
	srv := newAPIServer(testConfig(t), nil)
	require.NotNil(t, srv)
	assert.NotNil(t, srv.Handler())
}
