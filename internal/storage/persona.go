package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *sqliteStore) ListCharacters(ctx context.Context) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, prompt FROM characters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Character
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.ID, &c.Name, &c.Prompt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetUserCharacter(ctx context.Context, userID, characterID int64) (Character, error) {
	var c Character
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, prompt FROM characters WHERE id = ?`, characterID).
		Scan(&c.ID, &c.Name, &c.Prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return Character{}, fmt.Errorf("character %d: %w", characterID, ErrNotFound)
	}
	if err != nil {
		return Character{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_character(user_id, character_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET character_id = excluded.character_id`,
		userID, characterID)
	if err != nil {
		return Character{}, err
	}
	return c, nil
}

// UserCharacter returns the user's persona, falling back to character id 1
// and then to the lowest id when the user never picked one.
func (s *sqliteStore) UserCharacter(ctx context.Context, userID int64) (Character, error) {
	var c Character
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.prompt
		 FROM user_character uc
		 JOIN characters c ON c.id = uc.character_id
		 WHERE uc.user_id = ?`, userID).
		Scan(&c.ID, &c.Name, &c.Prompt)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Character{}, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, prompt FROM characters WHERE id = 1`).
		Scan(&c.ID, &c.Name, &c.Prompt)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Character{}, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, prompt FROM characters ORDER BY id LIMIT 1`).
		Scan(&c.ID, &c.Name, &c.Prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return Character{}, fmt.Errorf("characters table is empty")
	}
	return c, err
}
