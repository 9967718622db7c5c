package backend

import (
	"encoding/json"
	"strings"
)

// ModelType classifies a backend model.
type ModelType string

const (
	ModelChat      ModelType = "chat"
	ModelEmbedding ModelType = "embedding"
	ModelUndefined ModelType = "undefined"
)

// ParseModelType maps a raw string onto the known types; anything else
// is undefined.
func ParseModelType(raw string) ModelType {
	switch t := ModelType(strings.ToLower(strings.TrimSpace(raw))); t {
	case ModelChat, ModelEmbedding:
		return t
	default:
		return ModelUndefined
	}
}

func (t *ModelType) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*t = ModelUndefined
		return nil
	}
	*t = ParseModelType(*raw)
	return nil
}

// Model describes a selectable inference model.
type Model struct {
	ID       string    `json:"id"`
	Alias    string    `json:"alias,omitempty"`
	Provider string    `json:"provider"`
	Type     ModelType `json:"type"`
}

// Label is the name shown in the picker.
func (m Model) Label() string {
	if strings.TrimSpace(m.Alias) != "" {
		return m.Alias
	}
	return m.ID
}

// ModelQuery holds the optional filters of a models request. Zero values
// are omitted from the query string.
type ModelQuery struct {
	Limit int
	Type  ModelType
}
