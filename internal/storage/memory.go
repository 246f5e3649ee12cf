package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finbot/internal/core"
)

// AppendMemory records one side of a conversational turn. Entries are
// append-only; only a bulk per-user clear removes them.
func (r *SQLiteRepository) AppendMemory(ctx context.Context, userID string, role core.Role, text string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, core.ErrEmptyUserID
	}
	if err := role.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO memory (user_id, role, text) VALUES (?, ?, ?)`,
		userID, string(role), text)
	if err != nil {
		return 0, fmt.Errorf("append memory: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append memory id: %w", err)
	}
	return id, nil
}

// FetchMemories returns a user's conversation history in creation order.
// A user with no history gets an empty slice, not an error.
func (r *SQLiteRepository) FetchMemories(ctx context.Context, userID string) ([]core.MemoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, role, text, created_at FROM memory
		 WHERE user_id = ? ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("fetch memories: %w", err)
	}
	defer rows.Close()

	entries := []core.MemoryEntry{}
	for rows.Next() {
		var (
			e    core.MemoryEntry
			role string
			ts   time.Time
		)
		if err := rows.Scan(&e.ID, &e.UserID, &role, &e.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan memory entry: %w", err)
		}
		e.Role = core.Role(role)
		e.CreatedAt = ts
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return entries, nil
}

// ClearMemories removes a user's whole history and returns how many entries
// went away. Clearing an empty history is a successful zero.
func (r *SQLiteRepository) ClearMemories(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memory WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear memories rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Memories cleared", "user_id", userID, "count", affected)
	return affected, nil
}
