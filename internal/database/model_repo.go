package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kdimtricp/listenlog/internal/models"
)

var ErrModelNotFound = errors.New("model not found")

type ModelRepository struct {
	db *DB
}

func NewModelRepository(db *DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// Save inserts the model or, when its base URL is already known, refreshes
// the stored labels and load time. The stored ID is written back to m.
func (r *ModelRepository) Save(ctx context.Context, m *models.Model) error {
	labels, err := json.Marshal(m.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	query := r.db.rebind(`
		INSERT INTO models (id, base_url, labels, loaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (base_url)
		DO UPDATE SET labels = excluded.labels, loaded_at = excluded.loaded_at`)

	if _, err := r.db.conn.ExecContext(ctx, query, m.ID, m.BaseURL, string(labels), m.LoadedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	stored, err := r.GetByURL(ctx, m.BaseURL)
	if err != nil {
		return err
	}
	m.ID = stored.ID
	return nil
}

func (r *ModelRepository) GetByURL(ctx context.Context, baseURL string) (*models.Model, error) {
	query := r.db.rebind(`SELECT id, base_url, labels, loaded_at FROM models WHERE base_url = ?`)

	m, err := scanModel(r.db.conn.QueryRowContext(ctx, query, baseURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return m, nil
}

// ListRecent returns up to limit models, most recently loaded first.
func (r *ModelRepository) ListRecent(ctx context.Context, limit int) ([]models.Model, error) {
	query := r.db.rebind(`SELECT id, base_url, labels, loaded_at FROM models ORDER BY loaded_at DESC LIMIT ?`)

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var result []models.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner) (*models.Model, error) {
	var (
		m        models.Model
		labels   string
		loadedAt time.Time
	)
	if err := row.Scan(&m.ID, &m.BaseURL, &labels, &loadedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(labels), &m.Labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	m.LoadedAt = loadedAt
	return &m, nil
}
