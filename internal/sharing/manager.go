// Package sharing grants item access to named users and mints public links.
// Links carry an optional TTL and expire lazily: nothing garbage-collects
// them, resolution just reports the expired state.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"journal/internal/authz"
	"journal/internal/database"
	"journal/internal/errs"
	"journal/internal/notifications"
	"journal/internal/project"
	"journal/internal/util"
	"journal/internal/validator"

	"github.com/google/uuid"
)

const tokenLength = 32

type Manager struct {
	logger   *slog.Logger
	db       database.Store
	validate *validator.Validator
}

func NewManager(logger *slog.Logger, db database.Store) Manager {
	return Manager{
		logger:   logger,
		db:       db,
		validate: validator.New(),
	}
}

type ShareItemParams struct {
	ItemID     uuid.UUID                `validate:"required"`
	Usernames  []string                 `validate:"required,min=1,dive,required"`
	Permission database.SharePermission `validate:"required"`
}

// ShareItem grants the named users access to an item. Re-sharing with an
// existing grantee updates the permission in place and produces no event;
// the item owner is skipped silently.
func (m *Manager) ShareItem(ctx context.Context, requester uuid.UUID, params ShareItemParams) (notifications.ShareItemEvent, error) {
	var events []notifications.Event

	if err := m.validate.Validate(params); err != nil {
		return notifications.ShareItemEvent{}, err
	}
	if !params.Permission.IsValid() {
		return notifications.ShareItemEvent{}, fmt.Errorf("invalid permission %q: %w", params.Permission, errs.ErrBadRequest)
	}

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		item, err := getItem(ctx, tx, params.ItemID)
		if err != nil {
			return err
		}
		if err := project.AuthorizeItem(ctx, tx, requester, item, authz.OperationUpdate); err != nil {
			return err
		}

		for _, username := range params.Usernames {
			grantee, err := tx.GetUserByName(ctx, username)
			if err != nil {
				if errors.Is(err, database.ErrUserNotFound) {
					return fmt.Errorf("user %s not found: %w", username, errs.ErrResourceNotFound)
				}
				return err
			}
			if grantee.ID == item.OwnerID {
				continue
			}

			_, err = tx.GetItemShare(ctx, item.ID, grantee.ID)
			switch {
			case err == nil:
				if err := tx.UpdateItemSharePermission(ctx, item.ID, grantee.ID, params.Permission); err != nil {
					return err
				}
				continue
			case !errors.Is(err, database.ErrItemShareNotFound):
				return err
			}

			if _, err := tx.CreateItemShare(ctx, database.CreateItemShareParams{
				ItemID:     item.ID,
				GranteeID:  grantee.ID,
				Permission: params.Permission,
			}); err != nil {
				return err
			}

			events = append(events, notifications.Event{
				TargetUser:  grantee.ID,
				ContentID:   item.ID,
				ContentName: item.Name,
			})
		}
		return nil
	})
	if err != nil {
		return notifications.ShareItemEvent{}, err
	}

	return notifications.NewShareItemEvent(events, requester), nil
}

func (m *Manager) RevokeShare(ctx context.Context, requester, itemID uuid.UUID, username string) error {
	return m.db.WithTx(ctx, func(tx database.Store) error {
		item, err := getItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if err := project.AuthorizeItem(ctx, tx, requester, item, authz.OperationUpdate); err != nil {
			return err
		}

		grantee, err := tx.GetUserByName(ctx, username)
		if err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				return fmt.Errorf("user %s not found: %w", username, errs.ErrResourceNotFound)
			}
			return err
		}

		if err := tx.DeleteItemShare(ctx, item.ID, grantee.ID); err != nil {
			if errors.Is(err, database.ErrItemShareNotFound) {
				return fmt.Errorf("item %s is not shared with %s: %w", itemID, username, errs.ErrResourceNotFound)
			}
			return err
		}
		return nil
	})
}

func (m *Manager) ListShares(ctx context.Context, requester, itemID uuid.UUID) ([]database.ItemShare, error) {
	item, err := getItem(ctx, m.db, itemID)
	if err != nil {
		return nil, err
	}
	if err := project.AuthorizeItem(ctx, m.db, requester, item, authz.OperationGet); err != nil {
		return nil, err
	}
	return m.db.ListItemShares(ctx, itemID)
}

// GeneratePublicLink mints an unguessable token for an item. TTL is optional;
// an unset TTL makes the link live until revoked.
func (m *Manager) GeneratePublicLink(ctx context.Context, requester, itemID uuid.UUID, ttl util.Optional[time.Duration]) (database.PublicLink, error) {
	var link database.PublicLink

	token, err := util.RandomToken(tokenLength)
	if err != nil {
		return link, fmt.Errorf("sharing: failed to generate token: %w", err)
	}

	err = m.db.WithTx(ctx, func(tx database.Store) error {
		item, err := getItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if err := project.AuthorizeItem(ctx, tx, requester, item, authz.OperationUpdate); err != nil {
			return err
		}

		ttlSeconds := util.None[int64]()
		if ttl.IsSet {
			if ttl.Val <= 0 {
				return fmt.Errorf("link ttl must be positive: %w", errs.ErrBadRequest)
			}
			ttlSeconds = util.Some(int64(ttl.Val / time.Second))
		}

		link, err = tx.CreatePublicLink(ctx, database.CreatePublicLinkParams{
			Token:      token,
			ItemID:     item.ID,
			TTLSeconds: ttlSeconds,
		})
		return err
	})
	if err != nil {
		return database.PublicLink{}, err
	}

	m.logger.Info("public link issued", "item_id", itemID, "ttl_set", ttl.IsSet)
	return link, nil
}

// RevokeLink invalidates every public link of an item immediately.
func (m *Manager) RevokeLink(ctx context.Context, requester, itemID uuid.UUID) error {
	return m.db.WithTx(ctx, func(tx database.Store) error {
		item, err := getItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if err := project.AuthorizeItem(ctx, tx, requester, item, authz.OperationUpdate); err != nil {
			return err
		}
		return tx.RevokePublicLinksByItemID(ctx, item.ID)
	})
}

// LinkStatus classifies a resolution attempt. The outcomes are mutually
// exclusive; revocation wins over expiry when both hold.
type LinkStatus string

const (
	LinkOK       LinkStatus = "OK"
	LinkExpired  LinkStatus = "EXPIRED"
	LinkRevoked  LinkStatus = "REVOKED"
	LinkNotFound LinkStatus = "NOT_FOUND"
)

type LinkResolution struct {
	Status LinkStatus
	ItemID uuid.UUID
}

// ResolvePublicLink maps a token to an item. Unknown, revoked and expired
// tokens are ordinary outcomes, not errors; expiry is evaluated lazily at
// resolution time.
func (m *Manager) ResolvePublicLink(ctx context.Context, token string) (LinkResolution, error) {
	link, err := m.db.GetPublicLinkByToken(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrPublicLinkNotFound) {
			return LinkResolution{Status: LinkNotFound}, nil
		}
		return LinkResolution{}, err
	}

	if link.Revoked {
		return LinkResolution{Status: LinkRevoked, ItemID: link.ItemID}, nil
	}
	if link.TTLSeconds.IsSet {
		expiry := link.IssuedAt.Add(time.Duration(link.TTLSeconds.Val) * time.Second)
		if time.Now().UTC().After(expiry) {
			return LinkResolution{Status: LinkExpired, ItemID: link.ItemID}, nil
		}
	}
	return LinkResolution{Status: LinkOK, ItemID: link.ItemID}, nil
}

func getItem(ctx context.Context, db database.Store, itemID uuid.UUID) (database.ProjectItem, error) {
	item, err := db.GetProjectItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, database.ErrProjectItemNotFound) {
			return item, fmt.Errorf("item %s not found: %w", itemID, errs.ErrResourceNotFound)
		}
		return item, err
	}
	return item, nil
}
