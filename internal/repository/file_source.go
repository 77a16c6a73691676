package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	modelDomain "github.com/triplens/service-trip-duration/internal/domain/model"
)

// FileSource reads a model artifact from disk. If a card file sits next to the artifact
// (artifacts/model.json -> artifacts/model.yaml) its fields override the defaults.
type FileSource struct {
	path     string
	defaults modelDomain.Card
}

func NewFileSource(path string, defaults modelDomain.Card) *FileSource {
	return &FileSource{path: path, defaults: defaults}
}

// CardPath returns where the card for an artifact path is expected.
func CardPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".yaml"
}

func (s *FileSource) Fetch(_ context.Context) (*modelDomain.Artifact, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	card, err := ReadCard(CardPath(s.path))
	if err != nil {
		return nil, err
	}
	return modelDomain.NewArtifact(card.Merge(s.defaults), payload)
}

// ReadCard loads a YAML model card. A missing file yields an empty card.
func ReadCard(path string) (modelDomain.Card, error) {
	var card modelDomain.Card
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return card, nil
	}
	if err != nil {
		return card, fmt.Errorf("read model card: %w", err)
	}
	if err := yaml.Unmarshal(data, &card); err != nil {
		return card, fmt.Errorf("parse model card %s: %w", path, err)
	}
	return card, nil
}
