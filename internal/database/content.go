package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Content struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	OwnerID   uuid.UUID
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Revision is an immutable history entry. Text holds the content's text as it
// was immediately before the update that created the revision.
type Revision struct {
	ID        uuid.UUID
	ContentID uuid.UUID
	Number    int
	AuthorID  uuid.UUID
	Text      string
	CreatedAt time.Time
}

type CreateContentParams struct {
	ItemID  uuid.UUID
	OwnerID uuid.UUID
	Text    string
}

func (db *Database) CreateContent(ctx context.Context, params CreateContentParams) (Content, error) {
	content := Content{
		ID:        uuid.New(),
		ItemID:    params.ItemID,
		OwnerID:   params.OwnerID,
		Text:      params.Text,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := db.conn.Exec(ctx, `INSERT INTO tbl_content (id, item_id, owner_id, text, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		content.ID, content.ItemID, content.OwnerID, content.Text, content.CreatedAt, content.UpdatedAt); err != nil {
		return content, fmt.Errorf("database: failed to insert content (item=%s): %w", content.ItemID, err)
	}
	return content, nil
}

func (db *Database) GetContentByID(ctx context.Context, id uuid.UUID) (Content, error) {
	var content Content
	err := db.conn.QueryRow(ctx, `SELECT id, item_id, owner_id, text, created_at, updated_at FROM tbl_content WHERE id = $1`, id).
		Scan(&content.ID, &content.ItemID, &content.OwnerID, &content.Text, &content.CreatedAt, &content.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return content, ErrContentNotFound
		}
		return content, fmt.Errorf("database: failed to scan content: %w", err)
	}
	return content, nil
}

// GetContentForUpdate locks the content row so concurrent updates append
// their revisions serially.
func (db *Database) GetContentForUpdate(ctx context.Context, id uuid.UUID) (Content, error) {
	var content Content
	err := db.conn.QueryRow(ctx, `SELECT id, item_id, owner_id, text, created_at, updated_at FROM tbl_content WHERE id = $1 FOR UPDATE`, id).
		Scan(&content.ID, &content.ItemID, &content.OwnerID, &content.Text, &content.CreatedAt, &content.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return content, ErrContentNotFound
		}
		return content, fmt.Errorf("database: failed to scan content: %w", err)
	}
	return content, nil
}

func (db *Database) ListContents(ctx context.Context, itemID uuid.UUID) ([]Content, error) {
	rows, err := db.conn.Query(ctx, `SELECT id, item_id, owner_id, text, created_at, updated_at FROM tbl_content WHERE item_id = $1 ORDER BY created_at ASC, id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list contents of item %s: %w", itemID, err)
	}
	defer rows.Close()

	var contents []Content
	for rows.Next() {
		var content Content
		if err := rows.Scan(&content.ID, &content.ItemID, &content.OwnerID, &content.Text, &content.CreatedAt, &content.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan content: %w", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate contents: %w", err)
	}
	return contents, nil
}

func (db *Database) UpdateContentText(ctx context.Context, id uuid.UUID, text string) error {
	if _, err := db.conn.Exec(ctx, `UPDATE tbl_content SET text = $1, updated_at = $2 WHERE id = $3`,
		text, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("database: failed to update content (id=%s): %w", id, err)
	}
	return nil
}

func (db *Database) DeleteContentByID(ctx context.Context, id uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `DELETE FROM tbl_content WHERE id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to delete content (id=%s): %w", id, err)
	}
	return nil
}

type CreateRevisionParams struct {
	ContentID uuid.UUID
	AuthorID  uuid.UUID
	Text      string
}

// CreateRevision appends the next revision for a content. The revision number
// is derived inside the insert so it stays gapless under the row lock held by
// the caller's transaction.
func (db *Database) CreateRevision(ctx context.Context, params CreateRevisionParams) (Revision, error) {
	revision := Revision{
		ID:        uuid.New(),
		ContentID: params.ContentID,
		AuthorID:  params.AuthorID,
		Text:      params.Text,
		CreatedAt: time.Now().UTC(),
	}

	err := db.conn.QueryRow(ctx, `
		INSERT INTO tbl_revision (id, content_id, number, author_id, text, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(number) + 1, 1) FROM tbl_revision WHERE content_id = $2), $3, $4, $5)
		RETURNING number`,
		revision.ID, revision.ContentID, revision.AuthorID, revision.Text, revision.CreatedAt).Scan(&revision.Number)
	if err != nil {
		return revision, fmt.Errorf("database: failed to insert revision (content=%s): %w", revision.ContentID, err)
	}
	return revision, nil
}

func (db *Database) GetRevision(ctx context.Context, contentID, revisionID uuid.UUID) (Revision, error) {
	var revision Revision
	err := db.conn.QueryRow(ctx, `SELECT id, content_id, number, author_id, text, created_at FROM tbl_revision WHERE id = $1 AND content_id = $2`,
		revisionID, contentID).Scan(&revision.ID, &revision.ContentID, &revision.Number, &revision.AuthorID, &revision.Text, &revision.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return revision, ErrRevisionNotFound
		}
		return revision, fmt.Errorf("database: failed to scan revision: %w", err)
	}
	return revision, nil
}

func (db *Database) ListRevisions(ctx context.Context, contentID uuid.UUID) ([]Revision, error) {
	rows, err := db.conn.Query(ctx, `SELECT id, content_id, number, author_id, text, created_at FROM tbl_revision WHERE content_id = $1 ORDER BY number ASC`, contentID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list revisions of content %s: %w", contentID, err)
	}
	defer rows.Close()

	var revisions []Revision
	for rows.Next() {
		var revision Revision
		if err := rows.Scan(&revision.ID, &revision.ContentID, &revision.Number, &revision.AuthorID, &revision.Text, &revision.CreatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan revision: %w", err)
		}
		revisions = append(revisions, revision)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate revisions: %w", err)
	}
	return revisions, nil
}

func (db *Database) DeleteRevisionsByContentID(ctx context.Context, contentID uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `DELETE FROM tbl_revision WHERE content_id = $1`, contentID); err != nil {
		return fmt.Errorf("database: failed to delete revisions of content %s: %w", contentID, err)
	}
	return nil
}
