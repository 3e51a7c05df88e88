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

type Group struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserGroup is a membership edge. Accepted=false means invited but not yet
// joined.
type UserGroup struct {
	UserID    uuid.UUID
	GroupID   uuid.UUID
	Accepted  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateGroupParams struct {
	Name      string
	OwnerID   uuid.UUID
	IsDefault bool
}

func (db *Database) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	group := Group{
		ID:        uuid.New(),
		Name:      params.Name,
		OwnerID:   params.OwnerID,
		IsDefault: params.IsDefault,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := db.conn.Exec(ctx, `INSERT INTO tbl_group (id, name, owner_id, is_default, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		group.ID, group.Name, group.OwnerID, group.IsDefault, group.CreatedAt, group.UpdatedAt); err != nil {
		return group, fmt.Errorf("database: failed to insert group (name=%s): %w", group.Name, err)
	}
	return group, nil
}

func (db *Database) GetGroupByID(ctx context.Context, id uuid.UUID) (Group, error) {
	return db.GetGroup(ctx, GetGroupParams{ID: util.Some(id)})
}

type GetGroupParams struct {
	ID        util.Optional[uuid.UUID]
	Name      util.Optional[string]
	OwnerID   util.Optional[uuid.UUID]
	IsDefault util.Optional[bool]
}

func (db *Database) GetGroup(ctx context.Context, params GetGroupParams) (Group, error) {
	var group Group

	query := `SELECT id, name, owner_id, is_default, created_at, updated_at FROM tbl_group WHERE 1=1`
	var args []any
	if params.ID.IsSet {
		args = append(args, params.ID.Val)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	}
	if params.Name.IsSet {
		args = append(args, params.Name.Val)
		query += fmt.Sprintf(" AND name = $%d", len(args))
	}
	if params.OwnerID.IsSet {
		args = append(args, params.OwnerID.Val)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if params.IsDefault.IsSet {
		args = append(args, params.IsDefault.Val)
		query += fmt.Sprintf(" AND is_default = $%d", len(args))
	}
	query += ` LIMIT 1`

	err := db.conn.QueryRow(ctx, query, args...).Scan(
		&group.ID, &group.Name, &group.OwnerID, &group.IsDefault, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return group, ErrGroupNotFound
		}
		return group, fmt.Errorf("database: failed to scan group: %w", err)
	}
	return group, nil
}

// ListGroupsForUser returns all groups the user is a member of (accepted or
// invited), the user's default group first, remaining groups by ascending id.
func (db *Database) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]Group, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT g.id, g.name, g.owner_id, g.is_default, g.created_at, g.updated_at
		FROM tbl_group g
		JOIN tbl_user_group ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY (g.is_default AND g.owner_id = $1) DESC, g.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list groups for user %s: %w", userID, err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var group Group
		if err := rows.Scan(&group.ID, &group.Name, &group.OwnerID, &group.IsDefault, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate groups: %w", err)
	}
	return groups, nil
}

type UpdateGroupParams struct {
	Name util.Optional[string]
}

func (db *Database) UpdateGroupByID(ctx context.Context, id uuid.UUID, params UpdateGroupParams) error {
	if !params.Name.IsSet {
		return nil
	}
	if _, err := db.conn.Exec(ctx, `UPDATE tbl_group SET name = $1, updated_at = $2 WHERE id = $3`,
		params.Name.Val, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("database: failed to update group (id=%s): %w", id, err)
	}
	return nil
}

func (db *Database) DeleteGroupByID(ctx context.Context, id uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `DELETE FROM tbl_group WHERE id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to delete group (id=%s): %w", id, err)
	}
	return nil
}

type CreateUserGroupParams struct {
	UserID   uuid.UUID
	GroupID  uuid.UUID
	Accepted bool
}

func (db *Database) CreateUserGroup(ctx context.Context, params CreateUserGroupParams) (UserGroup, error) {
	userGroup := UserGroup{
		UserID:    params.UserID,
		GroupID:   params.GroupID,
		Accepted:  params.Accepted,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := db.conn.Exec(ctx, `INSERT INTO tbl_user_group (user_id, group_id, accepted, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		userGroup.UserID, userGroup.GroupID, userGroup.Accepted, userGroup.CreatedAt, userGroup.UpdatedAt); err != nil {
		return userGroup, fmt.Errorf("database: failed to insert user group (user=%s group=%s): %w", params.UserID, params.GroupID, err)
	}
	return userGroup, nil
}

func (db *Database) GetUserGroup(ctx context.Context, userID, groupID uuid.UUID) (UserGroup, error) {
	var userGroup UserGroup
	err := db.conn.QueryRow(ctx, `SELECT user_id, group_id, accepted, created_at, updated_at FROM tbl_user_group WHERE user_id = $1 AND group_id = $2`,
		userID, groupID).Scan(&userGroup.UserID, &userGroup.GroupID, &userGroup.Accepted, &userGroup.CreatedAt, &userGroup.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return userGroup, ErrUserGroupNotFound
		}
		return userGroup, fmt.Errorf("database: failed to scan user group: %w", err)
	}
	return userGroup, nil
}

// IsAcceptedMember reports whether the user has an accepted membership in the
// group. Satisfies the authorization engine's membership source.
func (db *Database) IsAcceptedMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	userGroup, err := db.GetUserGroup(ctx, userID, groupID)
	if err != nil {
		if errors.Is(err, ErrUserGroupNotFound) {
			return false, nil
		}
		return false, err
	}
	return userGroup.Accepted, nil
}

func (db *Database) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]UserGroup, error) {
	rows, err := db.conn.Query(ctx, `SELECT user_id, group_id, accepted, created_at, updated_at FROM tbl_user_group WHERE group_id = $1 ORDER BY created_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list members of group %s: %w", groupID, err)
	}
	defer rows.Close()

	var members []UserGroup
	for rows.Next() {
		var member UserGroup
		if err := rows.Scan(&member.UserID, &member.GroupID, &member.Accepted, &member.CreatedAt, &member.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan group member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate group members: %w", err)
	}
	return members, nil
}

func (db *Database) UpdateUserGroupAccepted(ctx context.Context, userID, groupID uuid.UUID, accepted bool) error {
	tag, err := db.conn.Exec(ctx, `UPDATE tbl_user_group SET accepted = $1, updated_at = $2 WHERE user_id = $3 AND group_id = $4`,
		accepted, time.Now().UTC(), userID, groupID)
	if err != nil {
		return fmt.Errorf("database: failed to update user group (user=%s group=%s): %w", userID, groupID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserGroupNotFound
	}
	return nil
}

func (db *Database) DeleteUserGroup(ctx context.Context, userID, groupID uuid.UUID) error {
	tag, err := db.conn.Exec(ctx, `DELETE FROM tbl_user_group WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	if err != nil {
		return fmt.Errorf("database: failed to delete user group (user=%s group=%s): %w", userID, groupID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserGroupNotFound
	}
	return nil
}
