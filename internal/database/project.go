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

type ProjectType string

const (
	ProjectTypeNote   ProjectType = "NOTE"
	ProjectTypeTodo   ProjectType = "TODO"
	ProjectTypeLedger ProjectType = "LEDGER"
)

func (t ProjectType) IsValid() bool {
	switch t {
	case ProjectTypeNote, ProjectTypeTodo, ProjectTypeLedger:
		return true
	default:
		return false
	}
}

type Project struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	GroupID   uuid.UUID
	Type      ProjectType
	ParentID  util.Optional[uuid.UUID]
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

const projectColumns = `id, name, owner_id, group_id, project_type, parent_id, position, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var project Project
	err := row.Scan(&project.ID, &project.Name, &project.OwnerID, &project.GroupID, &project.Type,
		&project.ParentID, &project.Position, &project.CreatedAt, &project.UpdatedAt)
	return project, err
}

type CreateProjectParams struct {
	Name     string
	OwnerID  uuid.UUID
	GroupID  uuid.UUID
	Type     ProjectType
	ParentID util.Optional[uuid.UUID]
}

func (db *Database) CreateProject(ctx context.Context, params CreateProjectParams) (Project, error) {
	project := Project{
		ID:        uuid.New(),
		Name:      params.Name,
		OwnerID:   params.OwnerID,
		GroupID:   params.GroupID,
		Type:      params.Type,
		ParentID:  params.ParentID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	// Appended at the end of the sibling order.
	err := db.conn.QueryRow(ctx, `
		INSERT INTO tbl_project (id, name, owner_id, group_id, project_type, parent_id, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM tbl_project WHERE parent_id IS NOT DISTINCT FROM $6 AND group_id = $4),
			$7, $8)
		RETURNING position`,
		project.ID, project.Name, project.OwnerID, project.GroupID, project.Type, project.ParentID,
		project.CreatedAt, project.UpdatedAt).Scan(&project.Position)
	if err != nil {
		return project, fmt.Errorf("database: failed to insert project (name=%s): %w", project.Name, err)
	}
	return project, nil
}

func (db *Database) GetProjectByID(ctx context.Context, id uuid.UUID) (Project, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+projectColumns+` FROM tbl_project WHERE id = $1`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project, ErrProjectNotFound
		}
		return project, fmt.Errorf("database: failed to scan project: %w", err)
	}
	return project, nil
}

// GetProjectForUpdate takes a row lock so racing mutations of the same
// project serialize within their transactions.
func (db *Database) GetProjectForUpdate(ctx context.Context, id uuid.UUID) (Project, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+projectColumns+` FROM tbl_project WHERE id = $1 FOR UPDATE`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project, ErrProjectNotFound
		}
		return project, fmt.Errorf("database: failed to scan project: %w", err)
	}
	return project, nil
}

type ListProjectsParams struct {
	OwnerID      util.Optional[uuid.UUID]
	GroupID      util.Optional[uuid.UUID]
	ParentID     util.Optional[uuid.UUID]
	TopLevelOnly bool
	Name         util.Optional[string]
}

func (db *Database) ListProjects(ctx context.Context, params ListProjectsParams) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM tbl_project WHERE 1=1`
	var args []any
	if params.OwnerID.IsSet {
		args = append(args, params.OwnerID.Val)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if params.GroupID.IsSet {
		args = append(args, params.GroupID.Val)
		query += fmt.Sprintf(" AND group_id = $%d", len(args))
	}
	if params.ParentID.IsSet {
		args = append(args, params.ParentID.Val)
		query += fmt.Sprintf(" AND parent_id = $%d", len(args))
	}
	if params.TopLevelOnly {
		query += " AND parent_id IS NULL"
	}
	if params.Name.IsSet {
		args = append(args, params.Name.Val)
		query += fmt.Sprintf(" AND name = $%d", len(args))
	}
	query += ` ORDER BY position ASC, id ASC`

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate projects: %w", err)
	}
	return projects, nil
}

func (db *Database) ListChildProjects(ctx context.Context, parentID uuid.UUID) ([]Project, error) {
	return db.ListProjects(ctx, ListProjectsParams{ParentID: util.Some(parentID)})
}

type UpdateProjectParams struct {
	Name     util.Optional[string]
	GroupID  util.Optional[uuid.UUID]
	Position util.Optional[int]
}

func (db *Database) UpdateProjectByID(ctx context.Context, id uuid.UUID, params UpdateProjectParams) error {
	query := `UPDATE tbl_project SET `
	var args []any
	if params.Name.IsSet {
		args = append(args, params.Name.Val)
		query += fmt.Sprintf("name = $%d, ", len(args))
	}
	if params.GroupID.IsSet {
		args = append(args, params.GroupID.Val)
		query += fmt.Sprintf("group_id = $%d, ", len(args))
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
		return fmt.Errorf("database: failed to update project (id=%s): %w", id, err)
	}
	return nil
}

// SetProjectParent re-parents a project. A nil parent makes it top-level.
func (db *Database) SetProjectParent(ctx context.Context, id uuid.UUID, parentID util.Optional[uuid.UUID], position int) error {
	if _, err := db.conn.Exec(ctx, `UPDATE tbl_project SET parent_id = $1, position = $2, updated_at = $3 WHERE id = $4`,
		parentID, position, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("database: failed to set parent of project (id=%s): %w", id, err)
	}
	return nil
}

func (db *Database) DeleteProjectByID(ctx context.Context, id uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `DELETE FROM tbl_project WHERE id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to delete project (id=%s): %w", id, err)
	}
	return nil
}

// GetSharedProjectsOrder returns the per-user display order of shared project
// owners. An empty slice means no explicit order was ever saved.
func (db *Database) GetSharedProjectsOrder(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var owners []string
	err := db.conn.QueryRow(ctx, `SELECT project_owners FROM tbl_shared_projects_order WHERE user_id = $1`, userID).Scan(&owners)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("database: failed to scan shared projects order: %w", err)
	}
	return owners, nil
}

func (db *Database) UpsertSharedProjectsOrder(ctx context.Context, userID uuid.UUID, owners []string) error {
	if _, err := db.conn.Exec(ctx, `
		INSERT INTO tbl_shared_projects_order (user_id, project_owners, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET project_owners = EXCLUDED.project_owners, updated_at = EXCLUDED.updated_at`,
		userID, owners, time.Now().UTC()); err != nil {
		return fmt.Errorf("database: failed to upsert shared projects order (user=%s): %w", userID, err)
	}
	return nil
}
