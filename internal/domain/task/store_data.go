package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const taskColumns = "id, title, assignee_id, status, progress, overdue, start_date, due_date, created_at"

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.AssigneeID, &t.Status, &t.Progress, &t.Overdue, &t.StartDate, &t.DueDate, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (s *Store) CreateTask(ctx context.Context, tenantID string, t Task, entry HistoryEntry) (Task, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	if err := tx.QueryRow(ctx, `
    INSERT INTO tasks (tenant_id, title, assignee_id, status, progress, start_date, due_date)
    VALUES ($1,$2,$3,$4,0,$5,$6)
    RETURNING id
  `, tenantID, t.Title, t.AssigneeID, t.Status, t.StartDate, t.DueDate).Scan(&id); err != nil {
		return Task{}, err
	}

	if _, err := tx.Exec(ctx, `
    INSERT INTO task_status_history (tenant_id, task_id, old_status, new_status, change_type, change_reason, changed_by)
    VALUES ($1,$2,NULL,$3,$4,$5,$6)
  `, tenantID, id, entry.NewStatus, entry.ChangeType, nullIfEmpty(entry.ChangeReason), entry.ChangedBy); err != nil {
		return Task{}, err
	}

	created, err := scanTask(tx.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE tenant_id = $1 AND id = $2", tenantID, id))
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Task{}, err
	}
	return created, nil
}

func (s *Store) GetTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	return scanTask(s.DB.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE tenant_id = $1 AND id = $2", tenantID, taskID))
}

func (s *Store) ListTasks(ctx context.Context, tenantID, assigneeID string, limit, offset int) ([]Task, int, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE tenant_id = $1"
	countQuery := "SELECT COUNT(1) FROM tasks WHERE tenant_id = $1"
	args := []any{tenantID}
	if assigneeID != "" {
		query += " AND assignee_id = $2"
		countQuery += " AND assignee_id = $2"
		args = append(args, assigneeID)
	}

	var total int
	if err := s.DB.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		total = 0
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.AssigneeID, &t.Status, &t.Progress, &t.Overdue, &t.StartDate, &t.DueDate, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	return tasks, total, nil
}

// ApplyTransition updates the task row and appends the history entry in a
// single transaction. The status update is conditional on the expected old
// status so a concurrent change loses cleanly.
func (s *Store) ApplyTransition(ctx context.Context, tenantID string, entry HistoryEntry, clearOverdue bool) (Task, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	update := "UPDATE tasks SET status = $1, updated_at = now()"
	args := []any{entry.NewStatus}
	if entry.NewProgress != nil {
		update += fmt.Sprintf(", progress = $%d", len(args)+1)
		args = append(args, *entry.NewProgress)
	}
	if clearOverdue {
		update += ", overdue = false, due_reminded_at = NULL"
	}
	update += fmt.Sprintf(" WHERE tenant_id = $%d AND id = $%d AND status = $%d", len(args)+1, len(args)+2, len(args)+3)
	args = append(args, tenantID, entry.TaskID, entry.OldStatus)

	tag, err := tx.Exec(ctx, update, args...)
	if err != nil {
		return Task{}, err
	}
	if tag.RowsAffected() == 0 {
		return Task{}, ErrInvalidTransition
	}

	if err := insertHistory(ctx, tx, tenantID, entry); err != nil {
		return Task{}, err
	}

	updated, err := scanTask(tx.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE tenant_id = $1 AND id = $2", tenantID, entry.TaskID))
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Task{}, err
	}
	return updated, nil
}

func (s *Store) MarkOverdue(ctx context.Context, tenantID string, entry HistoryEntry) (Task, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE tasks SET overdue = true, updated_at = now()
    WHERE tenant_id = $1 AND id = $2 AND overdue = false AND status = $3
  `, tenantID, entry.TaskID, entry.NewStatus)
	if err != nil {
		return Task{}, err
	}
	if tag.RowsAffected() == 0 {
		// Lost a race with another sweep or a transition; nothing to record.
		return scanTask(s.DB.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE tenant_id = $1 AND id = $2", tenantID, entry.TaskID))
	}

	if err := insertHistory(ctx, tx, tenantID, entry); err != nil {
		return Task{}, err
	}

	updated, err := scanTask(tx.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE tenant_id = $1 AND id = $2", tenantID, entry.TaskID))
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Task{}, err
	}
	return updated, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, tenantID string, entry HistoryEntry) error {
	_, err := tx.Exec(ctx, `
    INSERT INTO task_status_history (tenant_id, task_id, old_status, new_status, old_progress, new_progress, change_type, change_reason, changed_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, tenantID, entry.TaskID, entry.OldStatus, entry.NewStatus, entry.OldProgress, entry.NewProgress, entry.ChangeType, nullIfEmpty(entry.ChangeReason), entry.ChangedBy)
	return err
}

func (s *Store) History(ctx context.Context, tenantID, taskID string) ([]HistoryEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, task_id, old_status, new_status, old_progress, new_progress, change_type, COALESCE(change_reason, ''), changed_by, created_at
    FROM task_status_history
    WHERE tenant_id = $1 AND task_id = $2
    ORDER BY created_at, id
  `, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.OldStatus, &e.NewStatus, &e.OldProgress, &e.NewProgress, &e.ChangeType, &e.ChangeReason, &e.ChangedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) ListAutoStartDue(ctx context.Context, tenantID string, now time.Time) ([]Task, error) {
	return s.listByCondition(ctx, tenantID, `
    status = 'new' AND start_date IS NOT NULL AND start_date <= $2
  `, now)
}

func (s *Store) ListDueSoon(ctx context.Context, tenantID string, now time.Time, window time.Duration) ([]Task, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+taskColumns+`
    FROM tasks
    WHERE tenant_id = $1
      AND status IN ('in_progress', 'pending_review')
      AND overdue = false
      AND due_reminded_at IS NULL
      AND due_date IS NOT NULL
      AND due_date > $2
      AND due_date <= $3
  `, tenantID, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *Store) ListPastDue(ctx context.Context, tenantID string, now time.Time) ([]Task, error) {
	return s.listByCondition(ctx, tenantID, `
    status IN ('in_progress', 'pending_review') AND overdue = false AND due_date IS NOT NULL AND due_date <= $2
  `, now)
}

func (s *Store) MarkDueReminded(ctx context.Context, tenantID, taskID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE tasks SET due_reminded_at = now() WHERE tenant_id = $1 AND id = $2", tenantID, taskID)
	return err
}

func (s *Store) listByCondition(ctx context.Context, tenantID, condition string, args ...any) ([]Task, error) {
	queryArgs := append([]any{tenantID}, args...)
	rows, err := s.DB.Query(ctx, "SELECT "+taskColumns+" FROM tasks WHERE tenant_id = $1 AND ("+condition+")", queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.AssigneeID, &t.Status, &t.Progress, &t.Overdue, &t.StartDate, &t.DueDate, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
