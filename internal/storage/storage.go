package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a row the caller named does not exist.
var ErrNotFound = errors.New("not found")

// DateFormat is the calendar-day form used for last_sent_date.
const DateFormat = "2006-01-02"

// User is one subscriber's preference row.
type User struct {
	ID           int64
	Sign         string // "" until the subscriber picks one
	NotifyHour   int    // 0..23
	Subscribed   bool
	LastSentDate string // "YYYY-MM-DD"; "" until first successful delivery
	CreatedAt    time.Time
}

// DueUser is the projection ListDue returns. Order is unspecified.
type DueUser struct {
	ID   int64
	Sign string
}

// Model is one entry of the single-active backend registry.
type Model struct {
	ID     int64
	Key    string
	Label  string
	Active bool
}

// Character is a reply persona used by /ask.
type Character struct {
	ID     int64
	Name   string
	Prompt string
}

type Note struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}

// Store is the persistence API used by the bot and the sweep loop.
type Store interface {
	// EnsureUser inserts a default row if absent; existing values are
	// never overwritten.
	EnsureUser(ctx context.Context, userID int64) error
	GetUser(ctx context.Context, userID int64) (User, error)

	// The Set* operations are targeted single-field updates. They no-op
	// when the row is absent; callers are expected to EnsureUser first.
	SetSign(ctx context.Context, userID int64, sign string) error
	SetNotifyHour(ctx context.Context, userID int64, hour int) error
	SetSubscribed(ctx context.Context, userID int64, on bool) error

	// ListDue returns subscribers eligible for delivery at (day, hour):
	// subscribed, sign set, notify_hour == hour, not yet sent that day.
	ListDue(ctx context.Context, day time.Time, hour int) ([]DueUser, error)
	MarkSent(ctx context.Context, userID int64, day time.Time) error

	ListModels(ctx context.Context) ([]Model, error)
	ActiveModel(ctx context.Context) (Model, error)
	SetActiveModel(ctx context.Context, modelID int64) (Model, error)

	ListCharacters(ctx context.Context) ([]Character, error)
	SetUserCharacter(ctx context.Context, userID, characterID int64) (Character, error)
	UserCharacter(ctx context.Context, userID int64) (Character, error)

	AddNote(ctx context.Context, userID int64, text string) (int64, error)
	ListNotes(ctx context.Context, userID int64, limit int) ([]Note, error)
	DeleteNote(ctx context.Context, userID, noteID int64) (bool, error)

	Close() error
}
