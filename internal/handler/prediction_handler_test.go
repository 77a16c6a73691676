package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/triplens/service-trip-duration/internal/application"
	modelDomain "github.com/triplens/service-trip-duration/internal/domain/model"
	"github.com/triplens/service-trip-duration/internal/domain/trip"
	"github.com/triplens/service-trip-duration/internal/scoring"
)

const linearPayload = `{"bias": 300, "weights": {"haversine_km": 100, "wd_4": 50}}`

type payloadSource struct{ card modelDomain.Card }

func (s payloadSource) Fetch(context.Context) (*modelDomain.Artifact, error) {
	return modelDomain.NewArtifact(s.card, []byte(linearPayload))
}

func setupRouter(t *testing.T, load bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	card := modelDomain.Card{Name: "nyc_taxi_linear", Version: "v1.0", Task: "regression", Target: "trip_duration_seconds"}
	adapter := scoring.NewAdapter(scoring.FromArtifacts(payloadSource{card: card}), zap.NewNop())
	if load {
		require.NoError(t, adapter.Load(context.Background()))
	}

	svc := application.NewPredictionService(adapter, 2, zap.NewNop())
	r := gin.New()
	NewPredictionHandler(svc).RegisterRoutes(&r.RouterGroup)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const timesSquareTrip = `{
	"pickup_lat": 40.7580, "pickup_lon": -73.9855,
	"dropoff_lat": 40.6892, "dropoff_lon": -74.0445,
	"pickup_datetime": "2016-01-15T18:30:00Z"
}`

func TestPredict_OK(t *testing.T) {
	r := setupRouter(t, true)

	w := doJSON(r, http.MethodPost, "/predict", timesSquareTrip)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp application.PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	want := 300 + 100*trip.HaversineKm(40.7580, -73.9855, 40.6892, -74.0445) + 50
	assert.InDelta(t, want, resp.PredictedDurationSeconds, 1e-9)
	assert.Equal(t, "v1.0", resp.ModelVersion)
	assert.GreaterOrEqual(t, resp.InferenceTimeMs, 0.0)
}

func TestPredict_ZeroCoordinatesAreValid(t *testing.T) {
	r := setupRouter(t, true)

	w := doJSON(r, http.MethodPost, "/predict",
		`{"pickup_lat": 0, "pickup_lon": 0, "dropoff_lat": 0, "dropoff_lon": 0, "pickup_datetime": "2016-01-16T00:00:00"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `300`, string(mustField(t, w.Body.Bytes(), "predicted_duration_seconds")))
}

func TestPredict_ValidationErrors(t *testing.T) {
	r := setupRouter(t, true)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "latitude out of range",
			body:      `{"pickup_lat": 95, "pickup_lon": 0, "dropoff_lat": 0, "dropoff_lon": 0, "pickup_datetime": "2016-01-15T18:30:00Z"}`,
			wantField: "pickup_lat",
		},
		{
			name:      "longitude out of range",
			body:      `{"pickup_lat": 0, "pickup_lon": 0, "dropoff_lat": 0, "dropoff_lon": -181, "pickup_datetime": "2016-01-15T18:30:00Z"}`,
			wantField: "dropoff_lon",
		},
		{
			name:      "missing field",
			body:      `{"pickup_lat": 0, "pickup_lon": 0, "dropoff_lat": 0, "pickup_datetime": "2016-01-15T18:30:00Z"}`,
			wantField: "dropoff_lon",
		},
		{
			name:      "malformed timestamp",
			body:      `{"pickup_lat": 0, "pickup_lon": 0, "dropoff_lat": 0, "dropoff_lon": 0, "pickup_datetime": "not-a-date"}`,
			wantField: "pickup_datetime",
		},
		{
			name: "not json",
			body: `{"pickup_lat": `,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/predict", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Contains(t, w.Body.String(), "detail")
			if tt.wantField != "" {
				assert.Contains(t, w.Body.String(), tt.wantField)
			}
		})
	}
}

func TestPredict_ModelNotLoadedIsOpaque(t *testing.T) {
	r := setupRouter(t, false)

	w := doJSON(r, http.MethodPost, "/predict", timesSquareTrip)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail": "Internal server error during prediction"}`, w.Body.String())
}

func TestPredictBatch_OK(t *testing.T) {
	r := setupRouter(t, true)

	body := `{"trips": [` + timesSquareTrip + `,
		{"pickup_lat": 40.7580, "pickup_lon": -73.9855, "dropoff_lat": 40.7580, "dropoff_lon": -73.9855,
		 "pickup_datetime": "2016-01-16T18:30:00"}]}`
	w := doJSON(r, http.MethodPost, "/predict_batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp application.BatchPredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, 300.0, resp.Predictions[1])
	assert.Equal(t, "v1.0", resp.ModelVersion)

	single := doJSON(r, http.MethodPost, "/predict", timesSquareTrip)
	var singleResp application.PredictionResponse
	require.NoError(t, json.Unmarshal(single.Body.Bytes(), &singleResp))
	assert.Equal(t, singleResp.PredictedDurationSeconds, resp.Predictions[0])
}

func TestPredictBatch_Errors(t *testing.T) {
	r := setupRouter(t, true)

	w := doJSON(r, http.MethodPost, "/predict_batch", `{"trips": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(r, http.MethodPost, "/predict_batch", `{"trips": [{"pickup_lat": 0, "pickup_lon": 0, "dropoff_lat": 0, "dropoff_lon": 0, "pickup_datetime": "bad"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "pickup_datetime")

	over := `{"trips": [` + timesSquareTrip + `,` + timesSquareTrip + `,` + timesSquareTrip + `]}`
	w = doJSON(r, http.MethodPost, "/predict_batch", over)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds the limit")
}

func TestModelInfo(t *testing.T) {
	r := setupRouter(t, true)

	w := doJSON(r, http.MethodGet, "/model_info", "")
	require.Equal(t, http.StatusOK, w.Code)

	var info application.ModelInfoDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "nyc_taxi_linear", info.ModelName)
	assert.Equal(t, "trip_duration_seconds", info.PredictionTarget)
	assert.Equal(t, 18, info.NumFeatures)
	assert.Equal(t, "bearing_cos", info.Features[17])
}

func TestHealth(t *testing.T) {
	w := doJSON(setupRouter(t, false), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status": "loading"}`, w.Body.String())

	w = doJSON(setupRouter(t, true), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok", "model_version": "v1.0"}`, w.Body.String())
}

func mustField(t *testing.T, body []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return m[key]
}
