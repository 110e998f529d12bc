package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/filing-assistant/internal/ingest"
)

var (
	exportIn  computeInputs
	exportOut string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the computed position to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOut == "" {
			return eris.New("--out is required")
		}
		if err := cfg.Validate("compute"); err != nil {
			return err
		}
		engine, _, _, err := initEngine(cfg)
		if err != nil {
			return err
		}
		v, err := initIngest(cfg)
		if err != nil {
			return err
		}

		pos, err := exportIn.position(cmd.Context(), v, engine)
		if err != nil {
			return err
		}
		if err := ingest.ExportXLSX(exportOut, pos); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d ledger items to %s\n", len(pos.Ledger), exportOut)
		return nil
	},
}

func init() {
	exportIn.register(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output .xlsx path")
	rootCmd.AddCommand(exportCmd)
}
