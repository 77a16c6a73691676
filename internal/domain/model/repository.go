package model

import "context"

// ArtifactRepository defines the persistence contract for the model registry.
type ArtifactRepository interface {
	// FindLatest retrieves the most recently published artifact for a model name.
	FindLatest(ctx context.Context, name string) (*Artifact, error)

	// FindByVersion retrieves a specific artifact version.
	FindByVersion(ctx context.Context, name, version string) (*Artifact, error)

	// Save publishes a new artifact version.
	Save(ctx context.Context, artifact *Artifact) error
}
