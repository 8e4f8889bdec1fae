package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable, falling back on a
// missing or malformed value.
func GetEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("Ignoring malformed integer environment variable", "key", key, "value", raw)
		return fallback
	}
	return v
}

// GetEnvDuration reads a time.Duration ("45s", "2m") environment variable.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("Ignoring malformed duration environment variable", "key", key, "value", raw)
		return fallback
	}
	return d
}

// ObjectWriter opens a writer for an object that must not already exist.
// It is satisfied by the bucket adapter below and by test fakes.
type ObjectWriter interface {
	NewWriter(ctx context.Context, objectName string) io.WriteCloser
}

// BucketWriter adapts a bucket handle to ObjectWriter with a
// DoesNotExist precondition on every write.
type BucketWriter struct {
	Bucket *storage.BucketHandle
}

// NewWriter implements ObjectWriter.
func (b BucketWriter) NewWriter(ctx context.Context, objectName string) io.WriteCloser {
	w := b.Bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentTypeFor(objectName)
	return w
}

func contentTypeFor(objectName string) string {
	switch {
	case strings.HasSuffix(objectName, ".json"):
		return "application/json"
	case strings.HasSuffix(objectName, ".md"):
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// SaveAtomically writes content to an object only if it doesn't already
// exist. An existing object is not a failure.
func SaveAtomically(ctx context.Context, bucket ObjectWriter, objectName, content string) error {
	writer := bucket.NewWriter(ctx, objectName)

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Skipping archive write, object already exists.", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Skipping archive write, object already exists.", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
