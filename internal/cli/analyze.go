package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
	"github.com/Lllllllleong/teacherevaluation/internal/services"
)

var (
	analyzeRemote bool
	analyzeOut    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <folder-link>",
	Short: "Evaluate the evidence in a folder",
	Long: `Analyze downloads every supported file in the folder, asks the
evaluator model for per-file findings, then for a final structured
judgment, and prints the weighted total and grade band.

Example:
  evalctl analyze https://drive.google.com/drive/folders/<id>
  evalctl analyze --mode direct --out result.json <link>
  evalctl analyze --remote <link>`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeRemote, "remote", false, "call the deployed evidence-analyzer")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "write the result JSON to this path instead of stdout")
	analyzeCmd.Flags().String("mode", string(models.ModePartial), "analysis mode (partial, direct)")
	analyzeCmd.Flags().Int("partial-concurrency", 1, "parallel per-file model calls (max 3)")
	_ = viper.BindPFlag("mode", analyzeCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("partial_concurrency", analyzeCmd.Flags().Lookup("partial-concurrency"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	mode := models.AnalysisMode(settings.Mode)
	if mode != models.ModePartial && mode != models.ModeDirect {
		return fmt.Errorf("unknown mode %q (want partial or direct)", settings.Mode)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), settings.RunTimeout)
	defer cancel()

	var result *models.EvaluationResult
	if analyzeRemote {
		client := services.NewClient(settings.ScanURL, settings.AnalyzeURL, nil,
			services.NewRetryController(settings.MaxAttempts, settings.RetryBaseDelay))
		resp, err := client.Analyze(ctx, models.AnalyzeRequest{Link: args[0], Mode: mode}, retryNotice(cmd))
		if err != nil {
			return userError(err)
		}
		result = resp.Result
	} else {
		if settings.ProjectID == "" {
			return fmt.Errorf("project_id is not set (use --config, EVAL_PROJECT_ID or config.yaml)")
		}
		p, err := services.NewPipeline(ctx, settings.PipelineConfig())
		if err != nil {
			return err
		}
		defer p.Close()

		result, _, err = p.Evaluator.Run(ctx, services.RunRequest{Link: args[0], Mode: mode}, progressPrinter(cmd))
		if err != nil {
			return userError(err)
		}
	}

	printSummary(cmd.ErrOrStderr(), result)
	return writeJSON(cmd.OutOrStdout(), analyzeOut, result)
}

func progressPrinter(cmd *cobra.Command) services.Observer {
	return func(p models.Progress) {
		if p.Total > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s %d/%d] %s\n", p.State, p.Current, p.Total, p.Message)
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", p.State, p.Message)
	}
}

func retryNotice(cmd *cobra.Command) func(attempt int) {
	return func(attempt int) {
		fmt.Fprintf(cmd.ErrOrStderr(), "service busy, retrying (attempt %d)\n", attempt)
	}
}

// userError prefers the actionable message over provider diagnostics.
func userError(err error) error {
	evalErr := services.AsEvaluationError(err)
	if verbose {
		return evalErr
	}
	return fmt.Errorf("%s (%s)", evalErr.Message, evalErr.Kind)
}
