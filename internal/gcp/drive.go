package gcp

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewDriveService creates a read-only Drive client. credentialsFile may be
// empty to fall back to Application Default Credentials.
func NewDriveService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*drive.Service, error) {
	opts = append([]option.ClientOption{option.WithScopes(drive.DriveReadonlyScope)}, opts...)
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return srv, nil
}
