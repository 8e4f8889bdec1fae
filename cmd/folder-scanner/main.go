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
	scannerInstance *services.ScannerFunction
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleScanFolder" is the entry point name configured in GCP.
	functions.HTTP("HandleScanFolder", handleScanFolder)
}

// main is required by the Go Functions Framework.
func main() {}

func handleScanFolder(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		scannerInstance, initErr = services.NewScanner(context.Background())
	})
	if initErr != nil {
		slog.Error("CRITICAL: Scanner initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	scannerInstance.ServeHTTP(w, r)
}
