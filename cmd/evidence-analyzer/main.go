package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/teacherevaluation/internal/services"
)

var (
	analyzerInstance *services.AnalyzerFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleAnalyzeEvidence", handleAnalyzeEvidence)
}

// main is required by the Go Functions Framework.
func main() {}

// handleAnalyzeEvidence runs a full evaluation. It is called by the portal
// for ad-hoc links and by the orchestration workflow for submissions.
func handleAnalyzeEvidence(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		analyzerInstance, initErr = services.NewAnalyzer(context.Background())
	})
	if initErr != nil {
		slog.Error("CRITICAL: Analyzer initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	analyzerInstance.ServeHTTP(w, r)
}
