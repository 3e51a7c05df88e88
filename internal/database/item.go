package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"journal/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ItemType string

const (
	ItemTypeTask        ItemType = "TASK"
	ItemTypeNote        ItemType = "NOTE"
	ItemTypeTransaction ItemType = "TRANSACTION"
)

func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeTask, ItemTypeNote, ItemTypeTransaction:
		return true
	default:
		return false
	}
}

// ProjectItem is the tagged-variant row shared by tasks, notes and
// transactions. Variant-specific fields are optional columns selected by
// Type; the project back-reference is lookup-only, never an owning pointer.
type ProjectItem struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	OwnerID   uuid.UUID
	Type      ItemType
	Name      string
	Labels    []string
	Position  int

	// Task fields.
	AssigneeID util.Optional[uuid.UUID]
	DueAt      util.Optional[time.Time]

	// Transaction fields.
	Amount  util.Optional[float64]
	PayerID util.Optional[uuid.UUID]

	CreatedAt time.Time
	UpdatedAt time.Time
}

const itemColumns = `id, project_id, owner_id, item_type, name, labels, position, assignee_id, due_at, amount, payer_id, created_at, updated_at`

func scanProjectItem(row pgx.Row) (ProjectItem, error) {
	var item ProjectItem
	err := row.Scan(&item.ID, &item.ProjectID, &item.OwnerID, &item.Type, &item.Name, &item.Labels,
		&item.Position, &item.AssigneeID, &item.DueAt, &item.Amount, &item.PayerID, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

type CreateProjectItemParams struct {
	ProjectID  uuid.UUID
	OwnerID    uuid.UUID
	Type       ItemType
	Name       string
	Labels     []string
	AssigneeID util.Optional[uuid.UUID]
	DueAt      util.Optional[time.Time]
	Amount     util.Optional[float64]
	PayerID    util.Optional[uuid.UUID]
}

func (db *Database) CreateProjectItem(ctx context.Context, params CreateProjectItemParams) (ProjectItem, error) {
	item := ProjectItem{
		ID:         uuid.New(),
		ProjectID:  params.ProjectID,
		OwnerID:    params.OwnerID,
		Type:       params.Type,
		Name:       params.Name,
		Labels:     params.Labels,
		AssigneeID: params.AssigneeID,
		DueAt:      params.DueAt,
		Amount:     params.Amount,
		PayerID:    params.PayerID,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if item.Labels == nil {
		item.Labels = []string{}
	}

	err := db.conn.QueryRow(ctx, `
		INSERT INTO tbl_project_item (id, project_id, owner_id, item_type, name, labels, position, assignee_id, due_at, amount, payer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM tbl_project_item WHERE project_id = $2),
			$7, $8, $9, $10, $11, $12)
		RETURNING position`,
		item.ID, item.ProjectID, item.OwnerID, item.Type, item.Name, item.Labels,
		item.AssigneeID, item.DueAt, item.Amount, item.PayerID, item.CreatedAt, item.UpdatedAt).Scan(&item.Position)
	if err != nil {
		return item, fmt.Errorf("database: failed to insert project item (name=%s): %w", item.Name, err)
	}
	return item, nil
}

func (db *Database) GetProjectItemByID(ctx context.Context, id uuid.UUID) (ProjectItem, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+itemColumns+` FROM tbl_project_item WHERE id = $1`, id)
	item, err := scanProjectItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return item, ErrProjectItemNotFound
		}
		return item, fmt.Errorf("database: failed to scan project item: %w", err)
	}
	return item, nil
}

// GetProjectItemForUpdate locks the item row for the rest of the transaction.
// The loser of two racing moves blocks here and then observes the winner's
// relocation.
func (db *Database) GetProjectItemForUpdate(ctx context.Context, id uuid.UUID) (ProjectItem, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+itemColumns+` FROM tbl_project_item WHERE id = $1 FOR UPDATE`, id)
	item, err := scanProjectItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return item, ErrProjectItemNotFound
		}
		return item, fmt.Errorf("database: failed to scan project item: %w", err)
	}
	return item, nil
}

func (db *Database) ListProjectItems(ctx context.Context, projectID uuid.UUID) ([]ProjectItem, error) {
	rows, err := db.conn.Query(ctx, `SELECT `+itemColumns+` FROM tbl_project_item WHERE project_id = $1 ORDER BY position ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list items of project %s: %w", projectID, err)
	}
	defer rows.Close()

	var items []ProjectItem
	for rows.Next() {
		item, err := scanProjectItem(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan project item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate project items: %w", err)
	}
	return items, nil
}

type UpdateProjectItemParams struct {
	Name       util.Optional[string]
	ProjectID  util.Optional[uuid.UUID]
	Labels     util.Optional[[]string]
	AssigneeID util.Optional[util.Optional[uuid.UUID]]
	DueAt      util.Optional[util.Optional[time.Time]]
	Position   util.Optional[int]
}

func (db *Database) UpdateProjectItemByID(ctx context.Context, id uuid.UUID, params UpdateProjectItemParams) error {
	query := `UPDATE tbl_project_item SET `
	var args []any
	if params.Name.IsSet {
		args = append(args, params.Name.Val)
		query += fmt.Sprintf("name = $%d, ", len(args))
	}
	if params.ProjectID.IsSet {
		args = append(args, params.ProjectID.Val)
		query += fmt.Sprintf("project_id = $%d, ", len(args))
	}
	if params.Labels.IsSet {
		args = append(args, params.Labels.Val)
		query += fmt.Sprintf("labels = $%d, ", len(args))
	}
	if params.AssigneeID.IsSet {
		args = append(args, params.AssigneeID.Val)
		query += fmt.Sprintf("assignee_id = $%d, ", len(args))
	}
	if params.DueAt.IsSet {
		args = append(args, params.DueAt.Val)
		query += fmt.Sprintf("due_at = $%d, ", len(args))
	}
	if params.Position.IsSet {
		args = append(args, params.Position.Val)
		query += fmt.Sprintf("position = $%d, ", len(args))
	}
	args = append(args, time.Now().UTC())
	query += fmt.Sprintf("updated_at = $%d", len(args))
	args = append(args, id)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))

	if _, err := db.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("database: failed to update project item (id=%s): %w", id, err)
	}
	return nil
}

func (db *Database) DeleteProjectItemByID(ctx context.Context, id uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `DELETE FROM tbl_project_item WHERE id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to delete project item (id=%s): %w", id, err)
	}
	return nil
}
