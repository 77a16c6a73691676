package scoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/triplens/service-trip-duration/internal/domain/trip"
)

// LinearModel is a linear regressor over the feature schema:
//
//	duration = Bias + sum(Weight_i * Feature_i)
//
// Artifacts look like {"bias": 420.0, "weights": {"haversine_km": 95.5, ...}}; columns
// without a weight contribute nothing.
type LinearModel struct {
	Bias    float64
	weights [trip.NumFeatures]float64
}

// ParseLinear decodes a linear artifact, rejecting weights for unknown columns.
func ParseLinear(payload []byte) (*LinearModel, error) {
	var raw struct {
		Bias    float64            `json:"bias"`
		Weights map[string]float64 `json:"weights"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("parse model json: %w", err)
	}

	index := make(map[string]int, trip.NumFeatures)
	for i, col := range trip.FeatureColumns {
		index[col] = i
	}

	m := &LinearModel{Bias: raw.Bias}
	for name, w := range raw.Weights {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("weight for unknown feature %q", name)
		}
		m.weights[i] = w
	}
	return m, nil
}

// Weight returns the coefficient of a column, or 0 for unknown columns.
func (m *LinearModel) Weight(column string) float64 {
	for i, col := range trip.FeatureColumns {
		if col == column {
			return m.weights[i]
		}
	}
	return 0
}

func (m *LinearModel) Score(_ context.Context, v trip.FeatureVector) (float64, error) {
	score := m.Bias
	for i, x := range v.Values() {
		score += m.weights[i] * x
	}
	return score, nil
}

func (m *LinearModel) ScoreBatch(ctx context.Context, vs []trip.FeatureVector) ([]float64, error) {
	return scoreEach(ctx, m, vs)
}
