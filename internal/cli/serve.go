package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/teacherevaluation/internal/services"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scanner and analyzer functions locally",
	Long: `Serve hosts the folder-scanner and evidence-analyzer handlers on one
local port through the Functions Framework, configured from evalctl
settings. Submission lookups are disabled; send {"link": ...}.

  POST /scan     {"link": "..."}
  POST /analyze  {"link": "...", "mode": "partial"}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	ctx := context.Background()

	p, err := services.NewPipeline(ctx, settings.PipelineConfig())
	if err != nil {
		return err
	}
	defer p.Close()

	scanner := services.NewScannerFunction(p.Evaluator)
	analyzer := services.NewAnalyzerFunction(p.Evaluator, nil, settings.PipelineConfig().Mode)

	if err := funcframework.RegisterHTTPFunctionContext(ctx, "/scan", scanner.ServeHTTP); err != nil {
		return fmt.Errorf("register scan handler: %w", err)
	}
	if err := funcframework.RegisterHTTPFunctionContext(ctx, "/analyze", analyzer.ServeHTTP); err != nil {
		return fmt.Errorf("register analyze handler: %w", err)
	}

	slog.Info("Serving evaluation functions.", "port", servePort)
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on :%s\n", servePort)
	return funcframework.Start(servePort)
}
