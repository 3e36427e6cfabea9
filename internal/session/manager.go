package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kdimtricp/listenlog/internal/decoder"
	"github.com/kdimtricp/listenlog/internal/model"
	"github.com/kdimtricp/listenlog/internal/models"
	"github.com/kdimtricp/listenlog/internal/observe"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrSessionNotFound = errors.New("session not found")

// Catalog remembers models that loaded successfully.
type Catalog interface {
	Save(ctx context.Context, m *models.Model) error
}

type Manager struct {
	opts    Options
	fetcher model.Fetcher
	catalog Catalog
	metrics *observe.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a Manager. catalog may be nil.
func NewManager(opts Options, fetcher model.Fetcher, catalog Catalog, metrics *observe.Metrics) *Manager {
	return &Manager{
		opts:     opts.withDefaults(),
		fetcher:  fetcher,
		catalog:  catalog,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create(ctx context.Context) *Session {
	s := newSession(uuid.New().String(), m.opts)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.metrics.ActiveSessions.Add(ctx, 1)
	slog.Debug("session created", "session_id", s.ID)
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.metrics.ActiveSessions.Add(ctx, -1)
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune drops sessions untouched for longer than ttl and returns how many
// were removed.
func (m *Manager) Prune(ctx context.Context, ttl time.Duration) int {
	cutoff := m.opts.Now().Add(-ttl)

	var stale []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if m.Remove(ctx, id) {
			removed++
		}
	}
	if removed > 0 {
		slog.Info("pruned idle sessions", "count", removed)
	}
	return removed
}

// LoadModel fetches the model's labels and, on success, starts listening.
// Failures end up in the session status as well as the returned error.
func (m *Manager) LoadModel(ctx context.Context, s *Session, url string) (*model.Info, error) {
	if model.NormalizeBaseURL(url) == "" {
		s.setStatus(StatusError, "Please paste your model URL")
		return nil, errors.New("model url is empty")
	}

	s.setStatus(StatusInfo, "Loading your model...")

	ctx, span := observe.StartSpan(ctx, "session.LoadModel",
		trace.WithAttributes(attribute.String("model.url", url)))
	defer span.End()
	log := observe.Logger(ctx)

	start := time.Now()
	info, err := m.fetcher.Load(ctx, url)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		m.metrics.RecordModelLoad(ctx, "error", elapsed)
		s.setStatus(StatusError, "Error loading model: "+err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("model load failed", "session_id", s.ID, "url", url, "err", err)
		return nil, err
	}
	m.metrics.RecordModelLoad(ctx, "ok", elapsed)

	if m.catalog != nil {
		if err := m.catalog.Save(ctx, models.NewModel(info.BaseURL, info.Labels)); err != nil {
			log.Warn("failed to record model in catalog", "url", info.BaseURL, "err", err)
		}
	}

	s.setModel(info)
	log.Info("model loaded", "session_id", s.ID, "url", info.BaseURL, "classes", len(info.Labels))
	return info, nil
}

// Observe runs one tick through the session and records its outcome.
func (m *Manager) Observe(ctx context.Context, s *Session, scores []float64) (Tick, error) {
	tick, err := s.Observe(scores)
	if err != nil {
		m.metrics.RecordDecodeError(ctx, decodeErrorReason(err))
		return Tick{}, err
	}
	m.metrics.RecordTick(ctx, tick.Label)
	return tick, nil
}

func decodeErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrNotListening):
		return "not_listening"
	case errors.Is(err, decoder.ErrEmptyScores):
		return "empty_scores"
	case errors.Is(err, decoder.ErrLabelMismatch):
		return "label_mismatch"
	default:
		return "other"
	}
}
