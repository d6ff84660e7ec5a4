package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/familycheck/internal/config"
	"github.com/sells-group/familycheck/internal/model"
	"github.com/sells-group/familycheck/internal/report"
	"github.com/sells-group/familycheck/internal/session"
)

type sessionOptions struct {
	File        string
	Format      string
	XLSX        string
	Save        bool
	Concurrency int
	Threshold   float64
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Reconcile every list pair in a session file",
	Long: `Evaluates each authoritative/stored pair in a YAML session file. A pair
whose authoritative list is invalid is reported and does not stop the others.

  pairs:
    - name: Household A
      authoritative: |
        Family organizer
        owner@example.com
        ...
      stored: |
        ...`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := sessionOptions{}
		opts.File, _ = cmd.Flags().GetString("file")
		opts.Format, _ = cmd.Flags().GetString("format")
		opts.XLSX, _ = cmd.Flags().GetString("xlsx")
		opts.Save, _ = cmd.Flags().GetBool("save")
		opts.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		opts.Threshold, _ = cmd.Flags().GetFloat64("threshold")

		if opts.Concurrency > 0 {
			cfg.Session.Concurrency = opts.Concurrency
		}
		if err := cfg.Validate("session"); err != nil {
			return err
		}
		return runSession(cmd.Context(), cfg, opts, os.Stdout)
	},
}

func init() {
	sessionCmd.Flags().String("file", "", "YAML session file (required)")
	sessionCmd.Flags().String("format", "table", "output format: table, csv, json, yaml")
	sessionCmd.Flags().String("xlsx", "", "also write an XLSX workbook to this path")
	sessionCmd.Flags().Bool("save", false, "persist one run per pair to the configured store")
	sessionCmd.Flags().Int("concurrency", 0, "pairs evaluated in parallel (default from config)")
	sessionCmd.Flags().Float64("threshold", 0, "fuzzy match threshold (default from config)")
	_ = sessionCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(sessionCmd)
}

func runSession(ctx context.Context, c *config.Config, opts sessionOptions, stdout io.Writer) error {
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	m, err := matcherFor(c, opts.Threshold)
	if err != nil {
		return eris.Wrap(err, "session")
	}

	sess, err := session.LoadFile(opts.File)
	if err != nil {
		return err
	}
	if sess.Len() == 0 {
		return eris.Errorf("session: %s has no pairs", opts.File)
	}

	outcomes, err := sess.Evaluate(ctx, m, c.Session.Concurrency)
	if err != nil {
		return err
	}

	if opts.Save {
		runs := make([]*model.CheckRun, 0, len(outcomes))
		for _, o := range outcomes {
			runs = append(runs, model.RunFromOutcome(sess.ID, o))
		}
		if err := saveRun(ctx, c, runs...); err != nil {
			return err
		}
	}

	if opts.XLSX != "" {
		if err := report.WriteXLSX(opts.XLSX, outcomes); err != nil {
			return err
		}
		zap.L().Info("workbook written", zap.String("path", opts.XLSX))
	}

	return report.WriteSession(stdout, format, sess.ID, outcomes)
}
