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

type SharePermission string

const (
	SharePermissionRead  SharePermission = "READ"
	SharePermissionWrite SharePermission = "WRITE"
)

func (p SharePermission) IsValid() bool {
	switch p {
	case SharePermissionRead, SharePermissionWrite:
		return true
	default:
		return false
	}
}

// ItemShare grants one user access to one item. The item owner never gets a
// share row; ownership implies full permission.
type ItemShare struct {
	ItemID     uuid.UUID
	GranteeID  uuid.UUID
	Permission SharePermission
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type PublicLink struct {
	Token      string
	ItemID     uuid.UUID
	IssuedAt   time.Time
	TTLSeconds util.Optional[int64]
	Revoked    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateItemShareParams struct {
	ItemID     uuid.UUID
	GranteeID  uuid.UUID
	Permission SharePermission
}

func (db *Database) CreateItemShare(ctx context.Context, params CreateItemShareParams) (ItemShare, error) {
	share := ItemShare{
		ItemID:     params.ItemID,
		GranteeID:  params.GranteeID,
		Permission: params.Permission,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	if _, err := db.conn.Exec(ctx, `INSERT INTO tbl_item_share (item_id, grantee_id, permission, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		share.ItemID, share.GranteeID, share.Permission, share.CreatedAt, share.UpdatedAt); err != nil {
		return share, fmt.Errorf("database: failed to insert item share (item=%s grantee=%s): %w", share.ItemID, share.GranteeID, err)
	}
	return share, nil
}

func (db *Database) GetItemShare(ctx context.Context, itemID, granteeID uuid.UUID) (ItemShare, error) {
	var share ItemShare
	err := db.conn.QueryRow(ctx, `SELECT item_id, grantee_id, permission, created_at, updated_at FROM tbl_item_share WHERE item_id = $1 AND grantee_id = $2`,
		itemID, granteeID).Scan(&share.ItemID, &share.GranteeID, &share.Permission, &share.CreatedAt, &share.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return share, ErrItemShareNotFound
		}
		return share, fmt.Errorf("database: failed to scan item share: %w", err)
	}
	return share, nil
}

func (db *Database) ListItemShares(ctx context.Context, itemID uuid.UUID) ([]ItemShare, error) {
	rows, err := db.conn.Query(ctx, `SELECT item_id, grantee_id, permission, created_at, updated_at FROM tbl_item_share WHERE item_id = $1 ORDER BY created_at ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list shares of item %s: %w", itemID, err)
	}
	defer rows.Close()

	var shares []ItemShare
	for rows.Next() {
		var share ItemShare
		if err := rows.Scan(&share.ItemID, &share.GranteeID, &share.Permission, &share.CreatedAt, &share.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan item share: %w", err)
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate item shares: %w", err)
	}
	return shares, nil
}

func (db *Database) UpdateItemSharePermission(ctx context.Context, itemID, granteeID uuid.UUID, permission SharePermission) error {
	tag, err := db.conn.Exec(ctx, `UPDATE tbl_item_share SET permission = $1, updated_at = $2 WHERE item_id = $3 AND grantee_id = $4`,
		permission, time.Now().UTC(), itemID, granteeID)
	if err != nil {
		return fmt.Errorf("database: failed to update item share (item=%s grantee=%s): %w", itemID, granteeID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemShareNotFound
	}
	return nil
}

func (db *Database) DeleteItemShare(ctx context.Context, itemID, granteeID uuid.UUID) error {
	tag, err := db.conn.Exec(ctx, `DELETE FROM tbl_item_share WHERE item_id = $1 AND grantee_id = $2`, itemID, granteeID)
	if err != nil {
		return fmt.Errorf("database: failed to delete item share (item=%s grantee=%s): %w", itemID, granteeID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemShareNotFound
	}
	return nil
}

func (db *Database) DeleteItemSharesByItemID(ctx context.Context, itemID uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `DELETE FROM tbl_item_share WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("database: failed to delete shares of item %s: %w", itemID, err)
	}
	return nil
}

type CreatePublicLinkParams struct {
	Token      string
	ItemID     uuid.UUID
	TTLSeconds util.Optional[int64]
}

func (db *Database) CreatePublicLink(ctx context.Context, params CreatePublicLinkParams) (PublicLink, error) {
	link := PublicLink{
		Token:      params.Token,
		ItemID:     params.ItemID,
		IssuedAt:   time.Now().UTC(),
		TTLSeconds: params.TTLSeconds,
		Revoked:    false,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	if _, err := db.conn.Exec(ctx, `INSERT INTO tbl_public_link (token, item_id, issued_at, ttl_seconds, revoked, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		link.Token, link.ItemID, link.IssuedAt, link.TTLSeconds, link.Revoked, link.CreatedAt, link.UpdatedAt); err != nil {
		return link, fmt.Errorf("database: failed to insert public link (item=%s): %w", link.ItemID, err)
	}
	return link, nil
}

func (db *Database) GetPublicLinkByToken(ctx context.Context, token string) (PublicLink, error) {
	var link PublicLink
	err := db.conn.QueryRow(ctx, `SELECT token, item_id, issued_at, ttl_seconds, revoked, created_at, updated_at FROM tbl_public_link WHERE token = $1`, token).
		Scan(&link.Token, &link.ItemID, &link.IssuedAt, &link.TTLSeconds, &link.Revoked, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return link, ErrPublicLinkNotFound
		}
		return link, fmt.Errorf("database: failed to scan public link: %w", err)
	}
	return link, nil
}

func (db *Database) GetPublicLinkByItemID(ctx context.Context, itemID uuid.UUID) (PublicLink, error) {
	var link PublicLink
	err := db.conn.QueryRow(ctx, `SELECT token, item_id, issued_at, ttl_seconds, revoked, created_at, updated_at FROM tbl_public_link WHERE item_id = $1 AND NOT revoked ORDER BY issued_at DESC LIMIT 1`, itemID).
		Scan(&link.Token, &link.ItemID, &link.IssuedAt, &link.TTLSeconds, &link.Revoked, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return link, ErrPublicLinkNotFound
		}
		return link, fmt.Errorf("database: failed to scan public link: %w", err)
	}
	return link, nil
}

// RevokePublicLinksByItemID flags every link of the item as revoked. Expired
// or revoked rows are kept and checked at resolution time, never purged
// eagerly.
func (db *Database) RevokePublicLinksByItemID(ctx context.Context, itemID uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `UPDATE tbl_public_link SET revoked = TRUE, updated_at = $1 WHERE item_id = $2`,
		time.Now().UTC(), itemID); err != nil {
		return fmt.Errorf("database: failed to revoke public links of item %s: %w", itemID, err)
	}
	return nil
}

func (db *Database) DeletePublicLinksByItemID(ctx context.Context, itemID uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `DELETE FROM tbl_public_link WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("database: failed to delete public links of item %s: %w", itemID, err)
	}
	return nil
}
