package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	logx "zodbot/pkg/logx"
)

func (s *sqliteStore) ListModels(ctx context.Context) ([]Model, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, label, active FROM models ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Model
	for rows.Next() {
		var (
			m      Model
			active int
		)
		if err := rows.Scan(&m.ID, &m.Key, &m.Label, &active); err != nil {
			return nil, err
		}
		m.Active = active != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// ActiveModel returns the single active entry. When no row is flagged
// (should not happen under ux_models_single_active, but must be tolerated)
// it promotes the lowest id and returns that.
func (s *sqliteStore) ActiveModel(ctx context.Context) (Model, error) {
	var m Model
	err := s.db.QueryRowContext(ctx,
		`SELECT id, key, label FROM models WHERE active = 1`).
		Scan(&m.ID, &m.Key, &m.Label)
	if err == nil {
		m.Active = true
		return m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Model{}, err
	}

	// Self-heal: promote the first entry by id.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Model{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`SELECT id, key, label FROM models ORDER BY id LIMIT 1`).
		Scan(&m.ID, &m.Key, &m.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return Model{}, fmt.Errorf("model registry is empty")
	}
	if err != nil {
		return Model{}, err
	}
	if err := switchActive(ctx, tx, m.ID); err != nil {
		return Model{}, err
	}
	if err := tx.Commit(); err != nil {
		return Model{}, err
	}
	s.log.Warn("model registry had no active row; promoted first entry",
		logx.Int64("model_id", m.ID), logx.String("key", m.Key))
	m.Active = true
	return m, nil
}

// SetActiveModel atomically makes modelID the only active entry.
// Unknown ids fail with ErrNotFound and leave the registry unchanged.
func (s *sqliteStore) SetActiveModel(ctx context.Context, modelID int64) (Model, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Model{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var m Model
	err = tx.QueryRowContext(ctx,
		`SELECT id, key, label FROM models WHERE id = ?`, modelID).
		Scan(&m.ID, &m.Key, &m.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return Model{}, fmt.Errorf("model %d: %w", modelID, ErrNotFound)
	}
	if err != nil {
		return Model{}, err
	}

	if err := switchActive(ctx, tx, modelID); err != nil {
		return Model{}, err
	}
	if err := tx.Commit(); err != nil {
		return Model{}, err
	}
	m.Active = true
	return m, nil
}

// switchActive clears the old flag before raising the new one. A single
// CASE update would trip ux_models_single_active mid-scan whenever the
// target rowid precedes the currently active one: sqlite checks the partial
// index per updated row, so both rows would briefly hold active = 1.
func switchActive(ctx context.Context, tx *sql.Tx, modelID int64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE models SET active = 0 WHERE active = 1`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE models SET active = 1 WHERE id = ?`, modelID)
	return err
}
