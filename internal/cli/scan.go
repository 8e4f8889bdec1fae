package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
	"github.com/Lllllllleong/teacherevaluation/internal/services"
)

var scanRemote bool

var scanCmd = &cobra.Command{
	Use:   "scan <folder-link>",
	Short: "List the evidence files evalctl would evaluate",
	Long: `Scan resolves a Google Drive folder link and lists the supported
evidence files (PDF, Google Docs, images) in it, capped at max_files.

Example:
  evalctl scan https://drive.google.com/drive/folders/<id>
  evalctl scan --remote https://drive.google.com/drive/folders/<id>`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanRemote, "remote", false, "call the deployed folder-scanner instead of Drive directly")
	scanCmd.Flags().Int("max-files", services.DefaultMaxFiles, "maximum number of files considered")
	_ = viper.BindPFlag("max_files", scanCmd.Flags().Lookup("max-files"))
}

func runScan(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), settings.RunTimeout)
	defer cancel()

	var resp *models.ScanFolderResponse
	if scanRemote {
		client := services.NewClient(settings.ScanURL, settings.AnalyzeURL, nil,
			services.NewRetryController(settings.MaxAttempts, settings.RetryBaseDelay))
		resp, err = client.Scan(ctx, args[0], retryNotice(cmd))
	} else {
		var p *services.Pipeline
		p, err = services.NewScanPipeline(ctx, settings.PipelineConfig())
		if err != nil {
			return err
		}
		defer p.Close()
		resp, err = p.Evaluator.Scan(ctx, args[0])
	}
	if err != nil {
		return userError(err)
	}
	return writeJSON(cmd.OutOrStdout(), "", resp)
}
