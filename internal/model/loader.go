package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNoLabels = errors.New("model metadata has no word labels")

const (
	modelFile    = "model.json"
	metadataFile = "metadata.json"

	// maxMetadataSize bounds the metadata.json body; label lists are small.
	maxMetadataSize = 1 << 20
)

// ListenOptions are handed to the in-browser recognizer when listening starts.
type ListenOptions struct {
	ProbabilityThreshold            float64 `json:"probabilityThreshold"`
	OverlapFactor                   float64 `json:"overlapFactor"`
	InvokeCallbackOnNoiseAndUnknown bool    `json:"invokeCallbackOnNoiseAndUnknown"`
}

func DefaultListenOptions() ListenOptions {
	return ListenOptions{
		ProbabilityThreshold:            0.5,
		OverlapFactor:                   0.5,
		InvokeCallbackOnNoiseAndUnknown: true,
	}
}

type Info struct {
	BaseURL     string   `json:"baseUrl"`
	ModelURL    string   `json:"modelUrl"`
	MetadataURL string   `json:"metadataUrl"`
	Labels      []string `json:"labels"`
}

type metadata struct {
	WordLabels []string `json:"wordLabels"`
}

// Fetcher resolves a model base URL into its label set.
type Fetcher interface {
	Load(ctx context.Context, url string) (*Info, error)
}

type Loader struct {
	client *http.Client
}

func NewLoader(timeout time.Duration) *Loader {
	return &Loader{client: &http.Client{Timeout: timeout}}
}

func NewLoaderWithClient(client *http.Client) *Loader {
	return &Loader{client: client}
}

// NormalizeBaseURL trims whitespace and makes sure the URL ends with a slash
// so model.json and metadata.json resolve inside it.
func NormalizeBaseURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" || strings.HasSuffix(url, "/") {
		return url
	}
	return url + "/"
}

func (l *Loader) Load(ctx context.Context, url string) (*Info, error) {
	base := NormalizeBaseURL(url)
	if base == "" {
		return nil, fmt.Errorf("model url is empty")
	}

	info := &Info{
		BaseURL:     base,
		ModelURL:    base + modelFile,
		MetadataURL: base + metadataFile,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.MetadataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch metadata: %s returned %d", info.MetadataURL, resp.StatusCode)
	}

	var meta metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataSize)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if len(meta.WordLabels) == 0 {
		return nil, ErrNoLabels
	}

	info.Labels = meta.WordLabels
	return info, nil
}
