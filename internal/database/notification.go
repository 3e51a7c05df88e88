package database

import (
	"context"
	"fmt"
	"time"

	"journal/internal/util"

	"github.com/google/uuid"
)

// Notification is a delivered event row, one per target user per operation.
type Notification struct {
	ID          uuid.UUID
	TargetUser  uuid.UUID
	Originator  uuid.UUID
	Kind        string
	ContentID   uuid.UUID
	ContentName string
	IsRead      bool
	CreatedAt   time.Time
}

type CreateNotificationParams struct {
	TargetUser  uuid.UUID
	Originator  uuid.UUID
	Kind        string
	ContentID   uuid.UUID
	ContentName string
}

func (db *Database) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error) {
	notification := Notification{
		ID:          uuid.New(),
		TargetUser:  params.TargetUser,
		Originator:  params.Originator,
		Kind:        params.Kind,
		ContentID:   params.ContentID,
		ContentName: params.ContentName,
		IsRead:      false,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := db.conn.Exec(ctx, `INSERT INTO tbl_notification (id, target_user_id, originator_id, kind, content_id, content_name, is_read, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		notification.ID, notification.TargetUser, notification.Originator, notification.Kind,
		notification.ContentID, notification.ContentName, notification.IsRead, notification.CreatedAt); err != nil {
		return notification, fmt.Errorf("database: failed to insert notification (target=%s): %w", notification.TargetUser, err)
	}
	return notification, nil
}

type ListNotificationsParams struct {
	TargetUser util.Optional[uuid.UUID]
	Unread     util.Optional[bool]
	Limit      util.Optional[int]
}

func (db *Database) ListNotifications(ctx context.Context, params ListNotificationsParams) ([]Notification, error) {
	query := `SELECT id, target_user_id, originator_id, kind, content_id, content_name, is_read, created_at FROM tbl_notification WHERE 1=1`
	var args []any
	if params.TargetUser.IsSet {
		args = append(args, params.TargetUser.Val)
		query += fmt.Sprintf(" AND target_user_id = $%d", len(args))
	}
	if params.Unread.IsSet {
		args = append(args, !params.Unread.Val)
		query += fmt.Sprintf(" AND is_read = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`
	if params.Limit.IsSet {
		args = append(args, params.Limit.Val)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var notification Notification
		if err := rows.Scan(&notification.ID, &notification.TargetUser, &notification.Originator, &notification.Kind,
			&notification.ContentID, &notification.ContentName, &notification.IsRead, &notification.CreatedAt); err != nil {
			return nil, fmt.Errorf("database: failed to scan notification: %w", err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate notifications: %w", err)
	}
	return notifications, nil
}

func (db *Database) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	if _, err := db.conn.Exec(ctx, `UPDATE tbl_notification SET is_read = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("database: failed to mark notification read (id=%s): %w", id, err)
	}
	return nil
}
