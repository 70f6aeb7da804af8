package storage

import (
	"context"
	"time"
)

func (s *sqliteStore) AddNote(ctx context.Context, userID int64, text string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes(user_id, text) VALUES (?, ?)`, userID, text)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) ListNotes(ctx context.Context, userID int64, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at FROM notes
		 WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var (
			n       Note
			created int64
		)
		if err := rows.Scan(&n.ID, &n.Text, &created); err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteNote(ctx context.Context, userID, noteID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notes WHERE user_id = ? AND id = ?`, userID, noteID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
