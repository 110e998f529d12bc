package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "filing-assistant",
	Short: "Personal income-tax filing assistant",
	Long: `Reconciles reported tax facts, compares the old and new regimes and
recommends a filing form. Drafts are kept in a local cache and a remote store.

  compute              print the reconciled position for a set of fact files
  export               write the position to an XLSX workbook
  draft save|load|submit
                       manage the owner's filing draft
  serve                run the remote draft store and position API
  migrate              create the draft store schema

Configuration is read from config.yaml and FILING_* environment variables.`,
	// Commands print their own result; a failed save is not a usage error.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "filing-assistant: load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "filing-assistant: init logger")
		}
		zap.L().Debug("command starting", zap.String("command", cmd.CommandPath()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
