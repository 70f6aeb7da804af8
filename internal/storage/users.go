package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (s *sqliteStore) EnsureUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users(user_id, notify_hour, subscribed) VALUES (?, ?, 1)`,
		userID, s.defaultHour,
	)
	return err
}

func (s *sqliteStore) GetUser(ctx context.Context, userID int64) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, sign, notify_hour, subscribed, last_sent_date, created_at
		 FROM users WHERE user_id = ?`, userID)

	var (
		u       User
		sign    sql.NullString
		sub     int
		sent    sql.NullString
		created int64
	)
	if err := row.Scan(&u.ID, &sign, &u.NotifyHour, &sub, &sent, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Sign = sign.String
	u.Subscribed = sub != 0
	u.LastSentDate = sent.String
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

func (s *sqliteStore) SetSign(ctx context.Context, userID int64, sign string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET sign = ? WHERE user_id = ?`, nullStr(sign), userID)
	return err
}

func (s *sqliteStore) SetNotifyHour(ctx context.Context, userID int64, hour int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET notify_hour = ? WHERE user_id = ?`, clampHour(hour), userID)
	return err
}

func (s *sqliteStore) SetSubscribed(ctx context.Context, userID int64, on bool) error {
	v := 0
	if on {
		v = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscribed = ? WHERE user_id = ?`, v, userID)
	return err
}

func (s *sqliteStore) ListDue(ctx context.Context, day time.Time, hour int) ([]DueUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, sign
		 FROM users
		 WHERE subscribed = 1
		   AND sign IS NOT NULL
		   AND notify_hour = ?
		   AND (last_sent_date IS NULL OR last_sent_date <> ?)`,
		hour, day.Format(DateFormat),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueUser
	for rows.Next() {
		var d DueUser
		if err := rows.Scan(&d.ID, &d.Sign); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (s *sqliteStore) MarkSent(ctx context.Context, userID int64, day time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_sent_date = ? WHERE user_id = ?`,
		day.Format(DateFormat), userID)
	return err
}
