package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/triplens/service-trip-duration/internal/domain/trip"
)

// RemoteScorer calls a model hosted behind an HTTP endpoint.
//
// Request:
//
//	{"features_list": [{"pickup_longitude": -73.98, ...}, ...]}
//
// Response:
//
//	{"scores": [812.4, ...]}
type RemoteScorer struct {
	Endpoint string
	Client   *http.Client
}

// NewRemoteScorer creates a RemoteScorer with a bounded client timeout.
func NewRemoteScorer(endpoint string, timeout time.Duration) *RemoteScorer {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RemoteScorer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Score scores one vector through the batch endpoint.
func (s *RemoteScorer) Score(ctx context.Context, v trip.FeatureVector) (float64, error) {
	scores, err := s.ScoreBatch(ctx, []trip.FeatureVector{v})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// ScoreBatch sends all vectors in a single request.
func (s *RemoteScorer) ScoreBatch(ctx context.Context, vs []trip.FeatureVector) ([]float64, error) {
	if len(vs) == 0 {
		return []float64{}, nil
	}

	featuresList := make([]map[string]float64, len(vs))
	for i, v := range vs {
		featuresList[i] = v.Named()
	}
	body, err := json.Marshal(map[string]any{"features_list": featuresList})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote scoring call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("remote scoring error: status=%d, body=%s", resp.StatusCode, string(msg))
	}

	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Scores) != len(vs) {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", len(vs), len(result.Scores))
	}
	return result.Scores, nil
}
