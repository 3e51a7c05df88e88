// Package content stores the text bodies attached to project items and their
// revision history. Revisions are append only: each update snapshots the text
// being replaced, so revision N always holds what the content said before
// update N overwrote it.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"journal/internal/authz"
	"journal/internal/database"
	"journal/internal/errs"
	"journal/internal/project"
	"journal/internal/search"
	"journal/internal/validator"

	"github.com/google/uuid"
)

type Manager struct {
	logger   *slog.Logger
	db       database.Store
	indexer  search.Indexer
	validate *validator.Validator
}

func NewManager(logger *slog.Logger, db database.Store, indexer search.Indexer) Manager {
	return Manager{
		logger:   logger,
		db:       db,
		indexer:  indexer,
		validate: validator.New(),
	}
}

type AddContentParams struct {
	ItemID uuid.UUID `validate:"required"`
	Text   string    `validate:"required"`
}

// AddContent attaches a new content body to an item and seeds revision 1
// with the initial text.
func (m *Manager) AddContent(ctx context.Context, author uuid.UUID, params AddContentParams) (database.Content, error) {
	var content database.Content
	var groupID uuid.UUID

	if err := m.validate.Validate(params); err != nil {
		return content, err
	}

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		item, err := getItem(ctx, tx, params.ItemID)
		if err != nil {
			return err
		}
		if err := project.AuthorizeItem(ctx, tx, author, item, authz.OperationUpdate); err != nil {
			return err
		}

		proj, err := tx.GetProjectByID(ctx, item.ProjectID)
		if err != nil {
			return err
		}
		groupID = proj.GroupID

		content, err = tx.CreateContent(ctx, database.CreateContentParams{
			ItemID:  item.ID,
			OwnerID: author,
			Text:    params.Text,
		})
		if err != nil {
			return err
		}

		_, err = tx.CreateRevision(ctx, database.CreateRevisionParams{
			ContentID: content.ID,
			AuthorID:  author,
			Text:      params.Text,
		})
		return err
	})
	if err != nil {
		return content, err
	}

	m.indexer.IndexContent(ctx, params.ItemID, []uuid.UUID{groupID}, params.Text)
	return content, nil
}

// UpdateContent overwrites the current text after appending a revision that
// captures the text being replaced and who replaced it.
func (m *Manager) UpdateContent(ctx context.Context, author, itemID, contentID uuid.UUID, text string) (database.Content, error) {
	var content database.Content
	var groupID uuid.UUID

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		var err error
		content, err = tx.GetContentForUpdate(ctx, contentID)
		if err != nil {
			if errors.Is(err, database.ErrContentNotFound) {
				return fmt.Errorf("content %s not found: %w", contentID, errs.ErrResourceNotFound)
			}
			return err
		}
		if content.ItemID != itemID {
			return fmt.Errorf("content %s does not belong to item %s: %w", contentID, itemID, errs.ErrResourceNotFound)
		}

		item, err := getItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if err := project.AuthorizeItem(ctx, tx, author, item, authz.OperationUpdate); err != nil {
			return err
		}

		proj, err := tx.GetProjectByID(ctx, item.ProjectID)
		if err != nil {
			return err
		}
		groupID = proj.GroupID

		if _, err := tx.CreateRevision(ctx, database.CreateRevisionParams{
			ContentID: content.ID,
			AuthorID:  author,
			Text:      content.Text,
		}); err != nil {
			return err
		}

		if err := tx.UpdateContentText(ctx, content.ID, text); err != nil {
			return err
		}
		content.Text = text
		return nil
	})
	if err != nil {
		return database.Content{}, err
	}

	m.indexer.IndexContent(ctx, itemID, []uuid.UUID{groupID}, text)
	return content, nil
}

func (m *Manager) GetContents(ctx context.Context, requester, itemID uuid.UUID) ([]database.Content, error) {
	item, err := getItem(ctx, m.db, itemID)
	if err != nil {
		return nil, err
	}
	if err := project.AuthorizeItem(ctx, m.db, requester, item, authz.OperationGet); err != nil {
		return nil, err
	}
	return m.db.ListContents(ctx, itemID)
}

// GetRevision returns one historical revision, verifying the full
// item -> content -> revision chain.
func (m *Manager) GetRevision(ctx context.Context, requester, itemID, contentID, revisionID uuid.UUID) (database.Revision, error) {
	var revision database.Revision

	item, err := getItem(ctx, m.db, itemID)
	if err != nil {
		return revision, err
	}
	if err := project.AuthorizeItem(ctx, m.db, requester, item, authz.OperationGet); err != nil {
		return revision, err
	}

	content, err := m.db.GetContentByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, database.ErrContentNotFound) {
			return revision, fmt.Errorf("content %s not found: %w", contentID, errs.ErrResourceNotFound)
		}
		return revision, err
	}
	if content.ItemID != itemID {
		return revision, fmt.Errorf("content %s does not belong to item %s: %w", contentID, itemID, errs.ErrResourceNotFound)
	}

	revision, err = m.db.GetRevision(ctx, contentID, revisionID)
	if err != nil {
		if errors.Is(err, database.ErrRevisionNotFound) {
			return revision, fmt.Errorf("revision %s not found for content %s: %w", revisionID, contentID, errs.ErrResourceNotFound)
		}
		return revision, err
	}
	return revision, nil
}

func (m *Manager) ListRevisions(ctx context.Context, requester, itemID, contentID uuid.UUID) ([]database.Revision, error) {
	item, err := getItem(ctx, m.db, itemID)
	if err != nil {
		return nil, err
	}
	if err := project.AuthorizeItem(ctx, m.db, requester, item, authz.OperationGet); err != nil {
		return nil, err
	}

	content, err := m.db.GetContentByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, database.ErrContentNotFound) {
			return nil, fmt.Errorf("content %s not found: %w", contentID, errs.ErrResourceNotFound)
		}
		return nil, err
	}
	if content.ItemID != itemID {
		return nil, fmt.Errorf("content %s does not belong to item %s: %w", contentID, itemID, errs.ErrResourceNotFound)
	}

	return m.db.ListRevisions(ctx, contentID)
}

// DeleteContent hard-deletes a content and its whole revision history.
func (m *Manager) DeleteContent(ctx context.Context, requester, itemID, contentID uuid.UUID) error {
	return m.db.WithTx(ctx, func(tx database.Store) error {
		content, err := tx.GetContentByID(ctx, contentID)
		if err != nil {
			if errors.Is(err, database.ErrContentNotFound) {
				return fmt.Errorf("content %s not found: %w", contentID, errs.ErrResourceNotFound)
			}
			return err
		}
		if content.ItemID != itemID {
			return fmt.Errorf("content %s does not belong to item %s: %w", contentID, itemID, errs.ErrResourceNotFound)
		}

		item, err := getItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if err := project.AuthorizeItem(ctx, tx, requester, item, authz.OperationDelete); err != nil {
			return err
		}

		if err := tx.DeleteRevisionsByContentID(ctx, content.ID); err != nil {
			return err
		}
		return tx.DeleteContentByID(ctx, content.ID)
	})
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
