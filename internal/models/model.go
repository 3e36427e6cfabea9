package models

import (
	"time"

	"github.com/google/uuid"
)

// Model is a catalog entry for a classifier that has been loaded at least once.
type Model struct {
	ID       string    `json:"id"`
	BaseURL  string    `json:"baseUrl"`
	Labels   []string  `json:"labels"`
	LoadedAt time.Time `json:"loadedAt"`
}

func NewModel(baseURL string, labels []string) *Model {
	return &Model{
		ID:       uuid.New().String(),
		BaseURL:  baseURL,
		Labels:   labels,
		LoadedAt: time.Now(),
	}
}
