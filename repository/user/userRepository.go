package user

import (
	"context"
	"database/sql"
	"errors"
)

// Directory resolves notification routes for users. Account management
// lives in the auth workflow, not here.
type Directory interface {
	TelegramChatID(ctx context.Context, userID int64) (int64, error)
}

// ErrNoChatID means the user has not linked a Telegram account.
var ErrNoChatID = errors.New("user has no telegram chat id")

type repo struct {
	db *sql.DB
}

func New(db *sql.DB) Directory { return &repo{db: db} }

func (r *repo) TelegramChatID(ctx context.Context, userID int64) (int64, error) {
	const q = `
		SELECT telegram_chat_id
		FROM users
		WHERE id = $1`
	var chatID sql.NullInt64
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&chatID); err != nil {
		return 0, err
	}
	if !chatID.Valid {
		return 0, ErrNoChatID
	}
	return chatID.Int64, nil
}
