package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffFormat(t *testing.T) {
	assert.Equal(t, FormatXGBoost, SniffFormat([]byte(`{"learner": {}, "version": [2, 0, 3]}`)))
	assert.Equal(t, FormatLinear, SniffFormat([]byte(`{"bias": 1.5, "weights": {"haversine_km": 2}}`)))
	assert.Equal(t, Format(""), SniffFormat([]byte(`{"other": true}`)))
	assert.Equal(t, Format(""), SniffFormat([]byte(`not json`)))
}

func TestNewArtifact(t *testing.T) {
	a, err := NewArtifact(Card{Name: "m", Version: "v1"}, []byte(`{"bias": 0, "weights": {}}`))
	require.NoError(t, err)
	assert.Equal(t, FormatLinear, a.Card.Format)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	tests := []struct {
		name    string
		card    Card
		payload string
		wantErr string
	}{
		{"missing name", Card{Version: "v1"}, `{"weights":{}}`, "name"},
		{"missing version", Card{Name: "m"}, `{"weights":{}}`, "version"},
		{"empty payload", Card{Name: "m", Version: "v1"}, ``, "empty"},
		{"unknown payload", Card{Name: "m", Version: "v1"}, `{"x":1}`, "unsupported"},
		{"remote is not storable", Card{Name: "m", Version: "v1", Format: FormatRemote}, `{}`, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArtifact(tt.card, []byte(tt.payload))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCard_Merge(t *testing.T) {
	defaults := Card{Name: "d", Version: "v0", Task: "regression", Target: "trip_duration_seconds", Format: FormatXGBoost}
	got := Card{Version: "v2", Format: FormatLinear}.Merge(defaults)

	assert.Equal(t, Card{Name: "d", Version: "v2", Task: "regression", Target: "trip_duration_seconds", Format: FormatLinear}, got)
}
