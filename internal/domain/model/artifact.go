package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Format identifies how an artifact payload is encoded.
type Format string

const (
	FormatXGBoost Format = "xgboost"
	FormatLinear  Format = "linear"
	FormatRemote  Format = "remote"
)

// IsValid checks whether the format is one the service can score with.
func (f Format) IsValid() bool {
	switch f {
	case FormatXGBoost, FormatLinear, FormatRemote:
		return true
	}
	return false
}

// Card is the descriptive metadata served alongside predictions.
type Card struct {
	Name    string `json:"model_name" yaml:"name"`
	Version string `json:"model_version" yaml:"version"`
	Task    string `json:"task" yaml:"task"`
	Target  string `json:"prediction_target" yaml:"target"`
	Format  Format `json:"format" yaml:"format"`
}

// Merge fills empty fields of c from defaults.
func (c Card) Merge(defaults Card) Card {
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Task == "" {
		c.Task = defaults.Task
	}
	if c.Target == "" {
		c.Target = defaults.Target
	}
	if c.Format == "" {
		c.Format = defaults.Format
	}
	return c
}

// Artifact is a serialized, versioned regression model.
type Artifact struct {
	ID        uuid.UUID
	Card      Card
	Payload   []byte
	CreatedAt time.Time
}

// NewArtifact builds an artifact, sniffing the format from the payload when the card
// does not name one.
func NewArtifact(card Card, payload []byte) (*Artifact, error) {
	if card.Name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if card.Version == "" {
		return nil, fmt.Errorf("model version is required")
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("model payload is empty")
	}
	if card.Format == "" {
		card.Format = SniffFormat(payload)
	}
	if !card.Format.IsValid() || card.Format == FormatRemote {
		return nil, fmt.Errorf("unsupported artifact format %q", card.Format)
	}
	return &Artifact{
		ID:        uuid.New(),
		Card:      card,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SniffFormat guesses the format of a JSON payload from its top-level keys.
func SniffFormat(payload []byte) Format {
	var top map[string]json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(payload)).Decode(&top); err != nil {
		return ""
	}
	if _, ok := top["learner"]; ok {
		return FormatXGBoost
	}
	if _, ok := top["weights"]; ok {
		return FormatLinear
	}
	return ""
}
