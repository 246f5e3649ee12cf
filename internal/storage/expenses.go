package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"finbot/internal/core"
)

const expenseColumns = "id, user_id, date, category, amount_cents, description"

// InsertExpense appends a record and returns its server-assigned id.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, date, category, amount_cents, description)
		 VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.Date.String(), e.Category, e.Amount.Cents, e.Description)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user_id", e.UserID,
		"date", e.Date.String(),
		"category", e.Category,
		"amount_cents", e.Amount.Cents)

	return id, nil
}

// ListExpenses returns every expense of a user in insertion order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY id`,
		userID)
}

// ListExpensesByCategory returns a user's expenses matching the category
// exactly, in insertion order.
func (r *SQLiteRepository) ListExpensesByCategory(ctx context.Context, userID, category string) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND category = ? ORDER BY id`,
		userID, category)
}

// ListBetween returns a user's expenses with start <= date <= end, date
// ascending.
func (r *SQLiteRepository) ListBetween(ctx context.Context, userID string, start, end core.Date) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE user_id = ? AND date BETWEEN ? AND ? ORDER BY date, id`,
		userID, start.String(), end.String())
}

// SumBetween sums a user's expenses with start <= date <= end. No matching
// rows yields zero, not an error.
func (r *SQLiteRepository) SumBetween(ctx context.Context, userID string, start, end core.Date) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE user_id = ? AND date BETWEEN ? AND ?`,
		userID, start.String(), end.String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses between dates: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// HighestSpendingDay returns the date with the largest summed spending for
// the user, or nil when the user has no expenses.
func (r *SQLiteRepository) HighestSpendingDay(ctx context.Context, userID string) (*core.DayTotal, error) {
	var (
		dateStr string
		cents   int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT date, SUM(amount_cents) AS total FROM expenses
		 WHERE user_id = ? GROUP BY date ORDER BY total DESC, date LIMIT 1`,
		userID).Scan(&dateStr, &cents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("highest spending day: %w", err)
	}

	date, err := core.ParseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("highest spending day date %q: %w", dateStr, err)
	}
	return &core.DayTotal{Date: date, Total: core.Money{Cents: cents}}, nil
}

// DailySpending returns per-date spending totals for the user, date
// ascending.
func (r *SQLiteRepository) DailySpending(ctx context.Context, userID string) ([]core.DayTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, SUM(amount_cents) FROM expenses
		 WHERE user_id = ? GROUP BY date ORDER BY date`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("daily spending: %w", err)
	}
	defer rows.Close()

	totals := []core.DayTotal{}
	for rows.Next() {
		var (
			dateStr string
			cents   int64
		)
		if err := rows.Scan(&dateStr, &cents); err != nil {
			return nil, fmt.Errorf("scan daily spending: %w", err)
		}
		date, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("daily spending date %q: %w", dateStr, err)
		}
		totals = append(totals, core.DayTotal{Date: date, Total: core.Money{Cents: cents}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily spending: %w", err)
	}
	return totals, nil
}

// EditExpense patches only the fields set in the patch, scoped to the user.
// It reports whether a row actually changed; patching a nonexistent id is a
// zero-effect no-op. An empty patch returns core.ErrNoEditFields.
func (r *SQLiteRepository) EditExpense(ctx context.Context, userID string, id int64, patch core.ExpensePatch) (bool, error) {
	if patch.IsEmpty() {
		return false, core.ErrNoEditFields
	}

	sets := []string{}
	args := []any{}
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return false, err
		}
		sets = append(sets, "amount_cents = ?")
		args = append(args, patch.Amount.Cents)
	}
	if patch.Category != nil {
		if strings.TrimSpace(*patch.Category) == "" {
			return false, core.ErrEmptyCategory
		}
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	args = append(args, userID, id)

	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET `+strings.Join(sets, ", ")+` WHERE user_id = ? AND id = ?`,
		args...)
	if err != nil {
		return false, fmt.Errorf("edit expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("edit expense rows affected: %w", err)
	}

	if affected > 0 {
		slog.InfoContext(ctx, "Expense edited", "id", id, "user_id", userID)
	}
	return affected > 0, nil
}

// DeleteExpenses deletes by id when given one, otherwise by date, and
// refuses to delete without criteria. It returns how many rows were
// removed; a nonexistent target deletes zero rows without error.
func (r *SQLiteRepository) DeleteExpenses(ctx context.Context, userID string, criteria core.DeleteCriteria) (int64, error) {
	if err := criteria.Validate(); err != nil {
		return 0, err
	}

	var (
		res sql.Result
		err error
	)
	if criteria.ID != nil {
		res, err = r.db.ExecContext(ctx,
			`DELETE FROM expenses WHERE user_id = ? AND id = ?`,
			userID, *criteria.ID)
	} else {
		res, err = r.db.ExecContext(ctx,
			`DELETE FROM expenses WHERE user_id = ? AND date = ?`,
			userID, criteria.Date.String())
	}
	if err != nil {
		return 0, fmt.Errorf("delete expenses: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expenses rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Expenses deleted", "user_id", userID, "count", affected)
	return affected, nil
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e       core.Expense
			dateStr string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &dateStr, &e.Category, &e.Amount.Cents, &e.Description); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date, err = core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("expense %d date %q: %w", e.ID, dateStr, err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}
