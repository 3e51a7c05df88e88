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

// User carries only the identity key; display attributes live in the external
// user directory.
type User struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateUserParams struct {
	Name string
}

func (db *Database) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	user := User{
		ID:        uuid.New(),
		Name:      params.Name,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := db.conn.Exec(ctx, `INSERT INTO tbl_user (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Name, user.CreatedAt, user.UpdatedAt); err != nil {
		return user, fmt.Errorf("database: failed to insert user (name=%s): %w", user.Name, err)
	}
	return user, nil
}

func (db *Database) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return db.GetUser(ctx, GetUserParams{ID: util.Some(id)})
}

func (db *Database) GetUserByName(ctx context.Context, name string) (User, error) {
	return db.GetUser(ctx, GetUserParams{Name: util.Some(name)})
}

type GetUserParams struct {
	ID   util.Optional[uuid.UUID]
	Name util.Optional[string]
}

func (db *Database) GetUser(ctx context.Context, params GetUserParams) (User, error) {
	var user User

	query := `SELECT id, name, created_at, updated_at FROM tbl_user WHERE 1=1`
	var args []any
	if params.ID.IsSet {
		args = append(args, params.ID.Val)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	}
	if params.Name.IsSet {
		args = append(args, params.Name.Val)
		query += fmt.Sprintf(" AND name = $%d", len(args))
	}

	err := db.conn.QueryRow(ctx, query, args...).Scan(&user.ID, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrUserNotFound
		}
		return user, fmt.Errorf("database: failed to scan user: %w", err)
	}
	return user, nil
}
