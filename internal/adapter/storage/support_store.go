package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const threadColumns = `id, user_id, subject, concierge, status, created_at, updated_at`

func scanThread(row scanner) (*domain.SupportThread, error) {
	var t domain.SupportThread
	var concierge int
	if err := row.Scan(&t.ID, &t.UserID, &t.Subject, &concierge, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Concierge = concierge != 0
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLStore) CreateThread(ctx context.Context, t domain.SupportThread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO support_threads (`+threadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Subject, boolInt(t.Concierge), t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func (s *SQLStore) GetThread(ctx context.Context, id string) (*domain.SupportThread, error) {
	t, err := scanThread(s.db.QueryRowContext(ctx,
		`SELECT `+threadColumns+` FROM support_threads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}
	return t, nil
}

func (s *SQLStore) ListThreads(ctx context.Context, filter domain.ThreadFilter) ([]domain.SupportThread, error) {
	query := `SELECT ` + threadColumns + ` FROM support_threads WHERE 1=1`
	var args []any
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	limit, offset := limitOffset(filter.Limit, filter.Offset)
	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []domain.SupportThread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, *t)
	}
	return threads, rows.Err()
}

func (s *SQLStore) UpdateThreadStatus(ctx context.Context, id string, status domain.ThreadStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE support_threads SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err := expectOneRow(result, err, domain.ErrNotFound); err != nil {
		return fmt.Errorf("update thread %s: %w", id, err)
	}
	return nil
}

// AddMessage appends to a thread and bumps its updated_at.
func (s *SQLStore) AddMessage(ctx context.Context, m domain.SupportMessage) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE support_threads SET updated_at = ? WHERE id = ?`, m.CreatedAt, m.ThreadID)
		if err := expectOneRow(result, err, domain.ErrNotFound); err != nil {
			return fmt.Errorf("touch thread %s: %w", m.ThreadID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO support_messages (id, thread_id, sender_id, sender_role, body, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.ThreadID, m.SenderID, m.SenderRole, m.Body, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) ListMessages(ctx context.Context, threadID string) ([]domain.SupportMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, sender_id, sender_role, body, created_at
		FROM support_messages WHERE thread_id = ? ORDER BY created_at, id`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.SupportMessage
	for rows.Next() {
		var m domain.SupportMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.SenderRole, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
