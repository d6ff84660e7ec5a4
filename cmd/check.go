package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/familycheck/internal/config"
	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/fetcher"
	"github.com/sells-group/familycheck/internal/model"
	"github.com/sells-group/familycheck/internal/report"
)

// checkOptions holds the resolved flags of one check invocation.
type checkOptions struct {
	Authoritative string
	Stored        string
	StoredURL     string
	Name          string
	Format        string
	Output        string
	Save          bool
	Threshold     float64
	List          fetcher.ListOptions
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Reconcile one authoritative list against one stored list",
	Long: `Reads a family-group membership export (--authoritative) and a stored list
(--stored or --stored-url), reconciles them and prints the result.

Files ending in .csv or .xlsx are reduced to one column (--column, --header).
A path of "-" reads from stdin. Exits with status 2 when the authoritative
list is invalid.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := checkOptions{}
		opts.Authoritative, _ = cmd.Flags().GetString("authoritative")
		opts.Stored, _ = cmd.Flags().GetString("stored")
		opts.StoredURL, _ = cmd.Flags().GetString("stored-url")
		opts.Name, _ = cmd.Flags().GetString("name")
		opts.Format, _ = cmd.Flags().GetString("format")
		opts.Output, _ = cmd.Flags().GetString("output")
		opts.Save, _ = cmd.Flags().GetBool("save")
		opts.Threshold, _ = cmd.Flags().GetFloat64("threshold")
		opts.List = listOptions(cmd)

		if err := cfg.Validate("check"); err != nil {
			return err
		}
		return runCheck(cmd.Context(), cfg, opts, os.Stdout)
	},
}

func init() {
	checkCmd.Flags().String("authoritative", "", "membership export file (required)")
	checkCmd.Flags().String("stored", "", "stored email list file")
	checkCmd.Flags().String("stored-url", "", "URL of the stored email list (text or CSV export)")
	checkCmd.Flags().String("name", "", "label for this comparison")
	checkCmd.Flags().String("format", "table", "output format: table, csv, json, yaml")
	checkCmd.Flags().String("output", "", "write output to file instead of stdout")
	checkCmd.Flags().Bool("save", false, "persist the run to the configured store")
	checkCmd.Flags().Float64("threshold", 0, "fuzzy match threshold (default from config)")
	addListFlags(checkCmd)
	_ = checkCmd.MarkFlagRequired("authoritative")
	checkCmd.MarkFlagsMutuallyExclusive("stored", "stored-url")
	rootCmd.AddCommand(checkCmd)
}

// addListFlags registers the column selection flags shared by list readers.
func addListFlags(cmd *cobra.Command) {
	cmd.Flags().Int("column", 0, "zero-based column holding emails in CSV/XLSX input")
	cmd.Flags().String("header", "", "header cell naming the email column in CSV/XLSX input")
	cmd.Flags().Bool("skip-header", false, "skip the first row of CSV/XLSX input")
	cmd.Flags().String("sheet", "", "XLSX sheet name (default first sheet)")
}

func listOptions(cmd *cobra.Command) fetcher.ListOptions {
	var o fetcher.ListOptions
	o.Column, _ = cmd.Flags().GetInt("column")
	o.Header, _ = cmd.Flags().GetString("header")
	o.SkipHeader, _ = cmd.Flags().GetBool("skip-header")
	o.Sheet, _ = cmd.Flags().GetString("sheet")
	return o
}

// matcherFor builds a matcher from config, with an optional threshold
// override. Zero keeps the configured threshold; the override obeys the same
// (0, 1] range as match.threshold.
func matcherFor(c *config.Config, threshold float64) (*family.Matcher, error) {
	opts := c.Match.Options()
	if threshold != 0 {
		if threshold < 0 || threshold > 1 {
			return nil, eris.Errorf("--threshold must be in (0, 1], got %g", threshold)
		}
		opts.Threshold = threshold
	}
	return family.New(opts), nil
}

func runCheck(ctx context.Context, c *config.Config, opts checkOptions, stdout io.Writer) error {
	if opts.Stored == "" && opts.StoredURL == "" {
		return eris.New("check: one of --stored or --stored-url is required")
	}
	if opts.Authoritative == "-" && opts.Stored == "-" {
		return eris.New("check: only one list can be read from stdin")
	}
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	m, err := matcherFor(c, opts.Threshold)
	if err != nil {
		return eris.Wrap(err, "check")
	}

	authText, err := fetcher.ReadListFile(opts.Authoritative, opts.List)
	if err != nil {
		return eris.Wrap(err, "check: read authoritative list")
	}

	var storedText string
	if opts.StoredURL != "" {
		storedText, err = fetcher.NewHTTPFetcher(c.Fetch.HTTPOptions()).FetchList(ctx, opts.StoredURL, opts.List)
	} else {
		storedText, err = fetcher.ReadListFile(opts.Stored, opts.List)
	}
	if err != nil {
		return eris.Wrap(err, "check: read stored list")
	}

	result, recErr := m.ReconcileText(authText, storedText)

	var verr *family.ValidationError
	if recErr != nil && !errors.As(recErr, &verr) {
		return eris.Wrap(recErr, "check: reconcile")
	}

	if opts.Save {
		run := model.NewCheckRun(opts.Name, result, recErr)
		if err := saveRun(ctx, c, run); err != nil {
			return err
		}
		zap.L().Info("run saved", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
	}

	if verr != nil {
		return verr
	}

	out := stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return eris.Wrapf(err, "check: create output file %s", opts.Output)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	verdict := family.Classify(result)
	zap.L().Debug("check complete",
		zap.String("verdict", string(verdict)),
		zap.Int("exact", len(result.ExactMatches)),
		zap.Int("fuzzy", len(result.FuzzyMatches)),
	)
	return report.Write(out, format, opts.Name, result, verdict)
}

func saveRun(ctx context.Context, c *config.Config, runs ...*model.CheckRun) error {
	st, err := initStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	for _, run := range runs {
		if err := st.SaveRun(ctx, run); err != nil {
			return eris.Wrap(err, "save run")
		}
	}
	if len(runs) > 1 {
		fmt.Fprintf(os.Stderr, "Saved %d runs.\n", len(runs))
	}
	return nil
}
