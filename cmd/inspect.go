package cmd

import (
	"fmt"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	insDelimiter  string
	insMaxRows    int
	insSampleRows int
	insTopValues  int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Profile a CSV/TSV file without calling any model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(args[0], insDelimiter, insMaxRows)
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}

		opt := analysis.DefaultOptions()
		if insSampleRows > 0 {
			opt.SampleRows = insSampleRows
		}
		if insTopValues > 0 {
			opt.TopValues = insTopValues
		}
		rep, err := analysis.Profile(ds, opt)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}

		fmt.Println(rep.Markdown())
		fmt.Println("[SAMPLE ROWS]")
		fmt.Println(rep.SamplePreview())
		return nil
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	inspectCmd.Flags().StringVar(&insDelimiter, "delimiter", "", "CSV delimiter: ','|tab|';' (default by extension)")
	inspectCmd.Flags().IntVar(&insMaxRows, "max-rows", 0, "cap rows loaded from the file (0 = all)")
	inspectCmd.Flags().IntVar(&insSampleRows, "sample-rows", 0, "rows included in the preview")
	inspectCmd.Flags().IntVar(&insTopValues, "top-values", 0, "top categorical values listed per column")
	rootCmd.AddCommand(inspectCmd)
}
