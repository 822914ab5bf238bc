package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the message log operations used by the relay.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Append inserts a new message and returns the assigned id. When the
	// message carries no timestamp the current UTC time is used. The
	// message's ID and Timestamp fields are filled in on success.
	Append(ctx context.Context, msg *Message) (int64, error)

	// ListAll returns every stored message in ascending id order.
	ListAll(ctx context.Context) ([]Message, error)
}

// sqlxStore implements Store on top of sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New creates a Store backed by the given database connection.
func New(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) Append(ctx context.Context, msg *Message) (int64, error) {
	if msg == nil {
		return 0, fmt.Errorf("cannot append nil message")
	}

	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender, text, timestamp, attachment) VALUES (?, ?, ?, ?)`,
		msg.Sender, msg.Text, msg.Timestamp, msg.Attachment)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert message", "sender", msg.Sender, "error", err)
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read assigned message id: %w", err)
	}

	msg.ID = id
	return id, nil
}

func (s *sqlxStore) ListAll(ctx context.Context) ([]Message, error) {
	messages := []Message{}
	err := s.db.SelectContext(ctx, &messages,
		`SELECT id, sender, text, timestamp, attachment FROM messages ORDER BY id ASC`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list messages", "error", err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
