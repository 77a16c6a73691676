package scoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/triplens/service-trip-duration/internal/domain"
	"github.com/triplens/service-trip-duration/internal/domain/model"
	"github.com/triplens/service-trip-duration/internal/domain/trip"
)

// ErrModelNotLoaded is returned when scoring is attempted before Load has succeeded.
// It signals a startup ordering bug, not bad input.
var ErrModelNotLoaded = domain.NewScoringUnavailableError("model has not been loaded; call Load first")

// Adapter owns the one-time model initialization and forwards scoring to the loaded model.
type Adapter struct {
	loader Loader
	logger *zap.Logger

	mu     sync.RWMutex
	loaded bool
	scorer Scorer
	card   model.Card
}

// NewAdapter creates an Adapter that will initialize itself through loader.
func NewAdapter(loader Loader, logger *zap.Logger) *Adapter {
	return &Adapter{loader: loader, logger: logger}
}

// Load initializes the model exactly once. Concurrent callers block until the first load
// finishes; after a failed load the next call tries again.
func (a *Adapter) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loaded {
		return nil
	}

	start := time.Now()
	scorer, card, err := a.loader.Load(ctx)
	if err != nil {
		a.logger.Error("failed to load model", zap.Error(err))
		return err
	}

	a.scorer = scorer
	a.card = card
	a.loaded = true

	a.logger.Info("model loaded",
		zap.String("model_name", card.Name),
		zap.String("model_version", card.Version),
		zap.String("format", string(card.Format)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Loaded reports whether Load has succeeded.
func (a *Adapter) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded
}

// Card returns the loaded model's card; the zero Card before Load.
func (a *Adapter) Card() model.Card {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.card
}

func (a *Adapter) current() (Scorer, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.loaded {
		return nil, ErrModelNotLoaded
	}
	return a.scorer, nil
}

// Score scores one vector with the loaded model.
func (a *Adapter) Score(ctx context.Context, v trip.FeatureVector) (float64, error) {
	s, err := a.current()
	if err != nil {
		return 0, err
	}
	return s.Score(ctx, v)
}

// ScoreBatch scores vectors in order with the loaded model.
func (a *Adapter) ScoreBatch(ctx context.Context, vs []trip.FeatureVector) ([]float64, error) {
	s, err := a.current()
	if err != nil {
		return nil, err
	}
	return s.ScoreBatch(ctx, vs)
}
