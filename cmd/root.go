package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/familycheck/internal/config"
	"github.com/sells-group/familycheck/internal/family"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "familycheck",
	Short:        "Reconcile family-group membership exports against stored emails",
	Long:         "Parses a family-group membership export and a list of stored email addresses, pairs them exactly or by similarity, and classifies how well the lists agree.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// exitCode maps a command error to a process exit status: 2 for lists that
// fail validation, 1 for everything else.
func exitCode(err error) int {
	var verr *family.ValidationError
	if errors.As(err, &verr) {
		return 2
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
