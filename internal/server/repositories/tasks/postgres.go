package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/dbx"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/google/uuid"
)

const taskColumns = `id, seq, user_id, title, description, status, priority, due_date, tags, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO tasks (user_id, title, description, status, priority, due_date, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		 RETURNING ` + taskColumns

	row := r.db.QueryRowContext(ctx, query,
		task.Owner, task.Title, task.Description, task.Status, task.Priority, nullTime(task), tags)

	created, err := scanTask(row)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query := `SELECT ` + taskColumns + ` FROM tasks
		 WHERE id = $1 AND user_id = $2`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	query, args := buildListQuery(ownerID, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Update applies patch in a single conditional statement, so the ownership
// check and the write cannot interleave with another request.
func (r *PostgresRepository) Update(ctx context.Context, ownerID, id string, patch models.TaskPatch) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	var tags any
	if patch.Tags != nil {
		s, err := encodeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		tags = s
	}

	var due any
	if !patch.ClearDueDate && patch.DueDate != nil {
		due = *patch.DueDate
	}
	dueSet := patch.ClearDueDate || patch.DueDate != nil

	query :=
		`UPDATE tasks SET
		   title = COALESCE($3, title),
		   description = COALESCE($4, description),
		   status = COALESCE($5, status),
		   priority = COALESCE($6, priority),
		   due_date = CASE WHEN $7::boolean THEN $8::timestamptz ELSE due_date END,
		   tags = COALESCE($9::jsonb, tags),
		   updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING ` + taskColumns

	row := r.db.QueryRowContext(ctx, query, id, ownerID,
		nullString(patch.Title), nullString(patch.Description), nullString(patch.Status), nullString(patch.Priority),
		dueSet, due, tags)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context, ownerID string) (*models.Stats, error) {
	query :=
		`SELECT COUNT(*),
		   COUNT(*) FILTER (WHERE status = 'pending'),
		   COUNT(*) FILTER (WHERE status = 'in-progress'),
		   COUNT(*) FILTER (WHERE status = 'completed'),
		   COUNT(*) FILTER (WHERE priority = 'high')
		 FROM tasks WHERE user_id = $1`

	s := &models.Stats{}
	err := r.db.QueryRowContext(ctx, query, ownerID).
		Scan(&s.Total, &s.Pending, &s.InProgress, &s.Completed, &s.HighPriority)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// buildListQuery renders the owner-scoped listing for a normalized filter.
func buildListQuery(ownerID string, f models.TaskFilter) (string, []any) {
	var sb strings.Builder
	args := []any{ownerID}

	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`)

	if f.Status != "" {
		args = append(args, f.Status)
		fmt.Fprintf(&sb, ` AND status = $%d`, len(args))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		fmt.Fprintf(&sb, ` AND priority = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		fmt.Fprintf(&sb, ` AND (title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, n, n)
	}

	sb.WriteString(` ORDER BY `)
	sb.WriteString(orderBy(f.Sort))

	return sb.String(), args
}

func orderBy(sort string) string {
	switch sort {
	case common.SortOldest:
		return `created_at ASC, seq ASC`
	case common.SortDueDate:
		return `due_date ASC NULLS LAST, seq ASC`
	case common.SortPriority:
		return `CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC, seq ASC`
	default:
		return `created_at DESC, seq DESC`
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards in s match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		t    models.Task
		due  sql.NullTime
		tags []byte
	)
	err := s.Scan(&t.ID, &t.Seq, &t.Owner, &t.Title, &t.Description, &t.Status, &t.Priority,
		&due, &tags, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	t.Tags = []string{}
	if len(tags) > 0 {
		if err := sonic.ConfigStd.Unmarshal(tags, &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &t, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := sonic.ConfigStd.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(t *models.Task) any {
	if t.DueDate == nil {
		return nil
	}
	return *t.DueDate
}
