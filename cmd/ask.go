package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/pipeline"
	"github.com/KaramelBytes/datalens-cli/internal/sandbox"
	"github.com/spf13/cobra"
)

var (
	askModel       string
	askProvider    string
	askOllamaHost  string
	askDelimiter   string
	askMaxRows     int
	askSampleRows  int
	askMaxRepairs  int
	askMaxTokens   int
	askTemperature float64
	askTimeoutSec  int
	askShowScript  bool
	askArtifactOut string
	askQuiet       bool
	askPlanOnly    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Answer a natural-language question about a CSV/TSV file",
	Long: `Ask loads a tabular file, profiles it, and runs the analysis pipeline:
a plan and a script are generated by the model, the script executes in a
sandbox, failures trigger bounded repair, and the findings are reported.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, question := args[0], args[1]

		ds, err := loadDataset(path, askDelimiter, askMaxRows)
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
		if !askQuiet {
			fmt.Printf("📊 Loaded %s: %d rows × %d columns\n", ds.Name, ds.NumRows(), ds.NumCols())
		}

		runtime, providerName, err := buildRuntime(cfg, runtimeOptions{
			ProviderFlag: askProvider,
			OllamaHost:   askOllamaHost,
		})
		if err != nil {
			return err
		}
		model := selectModel(cfg, askModel)
		if !askQuiet {
			fmt.Printf("🤖 Using %s via %s\n", model, providerName)
		}

		profOpt := analysis.DefaultOptions()
		if askSampleRows > 0 {
			profOpt.SampleRows = askSampleRows
		} else if cfg != nil && cfg.SampleRows > 0 {
			profOpt.SampleRows = cfg.SampleRows
		}

		var sbOpt sandbox.Options
		if cfg != nil && cfg.SandboxMaxSteps > 0 {
			sbOpt.MaxSteps = uint64(cfg.SandboxMaxSteps)
		}

		pcfg := pipeline.Config{
			Runtime:  runtime,
			Model:    model,
			Analyzer: pipeline.ProfileAnalyzer{Dataset: ds, Options: profOpt},
			Runner:   sandbox.New(ds, sbOpt),
		}
		if cfg != nil {
			pcfg.MaxTokens = cfg.MaxTokens
			pcfg.Temperature = cfg.Temperature
			pcfg.MaxRepairs = cfg.MaxRepairAttempts
			pcfg.ReportCharLimit = cfg.ReportCharLimit
		}
		if askMaxRepairs > 0 {
			pcfg.MaxRepairs = askMaxRepairs
		}
		if askMaxTokens > 0 {
			pcfg.MaxTokens = askMaxTokens
		}
		if cmd.Flags().Changed("temperature") {
			pcfg.Temperature = askTemperature
		}
		if debug {
			pcfg.Log = os.Stderr
		}

		p, err := pipeline.New(pcfg)
		if err != nil {
			return err
		}

		timeout := 5 * time.Minute
		if askTimeoutSec > 0 {
			timeout = time.Duration(askTimeoutSec) * time.Second
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if askPlanOnly {
			st, err := p.Plan(ctx, ds.Name, question)
			if err != nil {
				return hintRuntimeError(err, providerName, model)
			}
			if !askQuiet {
				fmt.Println("\n=== Plan ===")
			}
			fmt.Println(st.Plan)
			return nil
		}

		st, err := p.Run(ctx, ds.Name, question)
		if err != nil {
			return hintRuntimeError(err, providerName, model)
		}

		if askShowScript && st.Script != "" {
			fmt.Println("\n=== Generated Script ===")
			fmt.Println(st.Script)
		}
		if debug {
			for _, w := range st.RunWarnings {
				fmt.Fprintf(os.Stderr, "⚠ sandbox: %s\n", w)
			}
		}

		if askQuiet {
			fmt.Println(st.FinalReport)
		} else {
			fmt.Println("\n=== Report ===")
			fmt.Println(st.FinalReport)
			if st.RepairAttempts > 0 {
				fmt.Printf("\n(%d repair attempt(s) used)\n", st.RepairAttempts)
			}
		}

		if askArtifactOut != "" && st.Artifact != "" {
			if err := os.WriteFile(askArtifactOut, []byte(st.Artifact), 0o644); err != nil {
				return fmt.Errorf("write artifact: %w", err)
			}
			if !askQuiet {
				fmt.Printf("\n💾 Saved chart to %s\n", askArtifactOut)
			}
		} else if askArtifactOut != "" && !askQuiet {
			fmt.Println("\n(no chart was produced)")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model to use (overrides config)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "runtime provider: openrouter|ollama|local")
	askCmd.Flags().StringVar(&askOllamaHost, "ollama-host", "", "Ollama host, e.g. http://127.0.0.1:11434")
	askCmd.Flags().StringVar(&askDelimiter, "delimiter", "", "CSV delimiter: ','|tab|';' (default by extension)")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 0, "cap rows loaded from the file (0 = all)")
	askCmd.Flags().IntVar(&askSampleRows, "sample-rows", 0, "rows shown to the model as a preview")
	askCmd.Flags().IntVar(&askMaxRepairs, "max-repairs", 0, "repair attempt ceiling (overrides config)")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 0, "max tokens per model call (overrides config)")
	askCmd.Flags().Float64Var(&askTemperature, "temperature", 0.2, "sampling temperature")
	askCmd.Flags().IntVar(&askTimeoutSec, "timeout", 0, "overall pipeline timeout in seconds (default 300)")
	askCmd.Flags().BoolVar(&askPlanOnly, "plan-only", false, "print the analysis plan and stop before generating code")
	askCmd.Flags().BoolVar(&askShowScript, "show-script", false, "print the final generated script")
	askCmd.Flags().StringVar(&askArtifactOut, "artifact-out", "", "write the chart JSON artifact to this file")
	askCmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "print only the report")
	rootCmd.AddCommand(askCmd)
}
