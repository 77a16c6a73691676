package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/triplens/service-trip-duration/internal/domain"
	modelDomain "github.com/triplens/service-trip-duration/internal/domain/model"
)

// ModelArtifactModel is the GORM model for the model_artifacts table.
type ModelArtifactModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_model_artifacts_name_version"`
	Version   string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_model_artifacts_name_version"`
	Task      string    `gorm:"type:varchar(50)"`
	Target    string    `gorm:"type:varchar(100)"`
	Format    string    `gorm:"type:varchar(20);not null"`
	Payload   []byte    `gorm:"type:bytea;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();index"`
}

func (ModelArtifactModel) TableName() string { return "model_artifacts" }

// GormArtifactRepository implements ArtifactRepository using GORM.
type GormArtifactRepository struct {
	db *gorm.DB
}

func NewGormArtifactRepository(db *gorm.DB) *GormArtifactRepository {
	return &GormArtifactRepository{db: db}
}

func (r *GormArtifactRepository) FindLatest(ctx context.Context, name string) (*modelDomain.Artifact, error) {
	var m ModelArtifactModel
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at DESC").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Model", name)
		}
		return nil, err
	}
	return toArtifactDomain(&m), nil
}

func (r *GormArtifactRepository) FindByVersion(ctx context.Context, name, version string) (*modelDomain.Artifact, error) {
	var m ModelArtifactModel
	if err := r.db.WithContext(ctx).
		Where("name = ? AND version = ?", name, version).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Model", name+"@"+version)
		}
		return nil, err
	}
	return toArtifactDomain(&m), nil
}

func (r *GormArtifactRepository) Save(ctx context.Context, artifact *modelDomain.Artifact) error {
	return r.db.WithContext(ctx).Create(toArtifactModel(artifact)).Error
}

// List returns every published version of a model, newest first, without payloads.
func (r *GormArtifactRepository) List(ctx context.Context, name string) ([]*modelDomain.Artifact, error) {
	var models []ModelArtifactModel
	if err := r.db.WithContext(ctx).
		Omit("payload").
		Where("name = ?", name).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	artifacts := make([]*modelDomain.Artifact, len(models))
	for i := range models {
		artifacts[i] = toArtifactDomain(&models[i])
	}
	return artifacts, nil
}

// RegistrySource fetches a model from the registry: a pinned version, or the latest one
// when version is empty.
type RegistrySource struct {
	repo    modelDomain.ArtifactRepository
	name    string
	version string
}

func NewRegistrySource(repo modelDomain.ArtifactRepository, name, version string) *RegistrySource {
	return &RegistrySource{repo: repo, name: name, version: version}
}

func (s *RegistrySource) Fetch(ctx context.Context) (*modelDomain.Artifact, error) {
	if s.version == "" {
		return s.repo.FindLatest(ctx, s.name)
	}
	return s.repo.FindByVersion(ctx, s.name, s.version)
}

// --- Conversions ---

func toArtifactModel(a *modelDomain.Artifact) *ModelArtifactModel {
	return &ModelArtifactModel{
		ID:        a.ID,
		Name:      a.Card.Name,
		Version:   a.Card.Version,
		Task:      a.Card.Task,
		Target:    a.Card.Target,
		Format:    string(a.Card.Format),
		Payload:   a.Payload,
		CreatedAt: a.CreatedAt,
	}
}

func toArtifactDomain(m *ModelArtifactModel) *modelDomain.Artifact {
	return &modelDomain.Artifact{
		ID: m.ID,
		Card: modelDomain.Card{
			Name:    m.Name,
			Version: m.Version,
			Task:    m.Task,
			Target:  m.Target,
			Format:  modelDomain.Format(m.Format),
		},
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
	}
}
