// README: Append-only chat message store backed by PostgreSQL.
package chat

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, m *Message) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO chat_messages (order_id, sender_id, sender_role, message, media_url)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		RETURNING id, is_read, created_at`,
		m.OrderID, m.SenderID, m.SenderRole, m.Message, m.MediaURL,
	).Scan(&m.ID, &m.IsRead, &m.CreatedAt)
}

func (s *Store) History(ctx context.Context, orderID int64) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, sender_id, sender_role, COALESCE(message, ''), COALESCE(media_url, ''), is_read, created_at
		FROM chat_messages
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.SenderRole, &m.Message, &m.MediaURL, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead flags every message in the order not sent by readerID as read.
func (s *Store) MarkRead(ctx context.Context, orderID, readerID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE chat_messages SET is_read = TRUE
		WHERE order_id = $1 AND sender_id <> $2 AND NOT is_read`,
		orderID, readerID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
