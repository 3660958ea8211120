package mysql

import (
	"context"
	"database/sql"

	"guardia/internal/domain"
)

// Repo persists chat sessions and their messages.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) AppendMessage(ctx context.Context, sessionID string, m domain.Message) error {
	// Parent row first to satisfy the FK; upsert keeps last_seen_at fresh.
	if _, err := r.db.ExecContext(ctx, upsertSessionSQL, sessionID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, insertMessageSQL, sessionID, m.Role, m.Content)
	return err
}

func (r *Repo) History(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, historySQL, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
