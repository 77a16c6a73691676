// Package scoring wraps pre-trained regression models behind a single numeric capability.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/triplens/service-trip-duration/internal/domain/model"
	"github.com/triplens/service-trip-duration/internal/domain/trip"
)

// Scorer maps feature vectors to predicted durations. Implementations are immutable once
// built and safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, v trip.FeatureVector) (float64, error)
	// ScoreBatch returns one score per vector, in input order.
	ScoreBatch(ctx context.Context, vs []trip.FeatureVector) ([]float64, error)
}

// Loader produces a ready scorer and the card describing it.
type Loader interface {
	Load(ctx context.Context) (Scorer, model.Card, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Scorer, model.Card, error)

func (f LoaderFunc) Load(ctx context.Context) (Scorer, model.Card, error) { return f(ctx) }

// ArtifactSource fetches a serialized model.
type ArtifactSource interface {
	Fetch(ctx context.Context) (*model.Artifact, error)
}

// FromArtifacts returns a Loader that decodes whatever the source fetches.
func FromArtifacts(src ArtifactSource) Loader {
	return LoaderFunc(func(ctx context.Context) (Scorer, model.Card, error) {
		artifact, err := src.Fetch(ctx)
		if err != nil {
			return nil, model.Card{}, fmt.Errorf("fetch model artifact: %w", err)
		}
		scorer, err := Decode(artifact)
		if err != nil {
			return nil, model.Card{}, err
		}
		return scorer, artifact.Card, nil
	})
}

// Remote returns a Loader for a model served over HTTP.
func Remote(endpoint string, timeout time.Duration, card model.Card) Loader {
	return LoaderFunc(func(ctx context.Context) (Scorer, model.Card, error) {
		card.Format = model.FormatRemote
		return NewRemoteScorer(endpoint, timeout), card, nil
	})
}

// Decode builds an in-process scorer from an artifact payload.
func Decode(artifact *model.Artifact) (Scorer, error) {
	switch artifact.Card.Format {
	case model.FormatXGBoost:
		m, err := ParseXGBoost(artifact.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode xgboost model %s@%s: %w", artifact.Card.Name, artifact.Card.Version, err)
		}
		return m, nil
	case model.FormatLinear:
		m, err := ParseLinear(artifact.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode linear model %s@%s: %w", artifact.Card.Name, artifact.Card.Version, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported artifact format %q", artifact.Card.Format)
	}
}

// scoreEach implements ScoreBatch for scorers whose single-row path is already cheap.
func scoreEach(ctx context.Context, s Scorer, vs []trip.FeatureVector) ([]float64, error) {
	out := make([]float64, len(vs))
	for i, v := range vs {
		score, err := s.Score(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("trip %d: %w", i, err)
		}
		out[i] = score
	}
	return out, nil
}
