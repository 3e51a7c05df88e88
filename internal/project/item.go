package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"journal/internal/authz"
	"journal/internal/database"
	"journal/internal/errs"
	"journal/internal/notifications"
	"journal/internal/util"

	"github.com/google/uuid"
)

// itemTypeForProject maps a project type to the single item type it accepts.
func itemTypeForProject(t database.ProjectType) database.ItemType {
	switch t {
	case database.ProjectTypeTodo:
		return database.ItemTypeTask
	case database.ProjectTypeNote:
		return database.ItemTypeNote
	case database.ProjectTypeLedger:
		return database.ItemTypeTransaction
	default:
		return ""
	}
}

func contentTypeForItem(t database.ItemType) authz.ContentType {
	switch t {
	case database.ItemTypeTask:
		return authz.ContentTypeTask
	case database.ItemTypeNote:
		return authz.ContentTypeNote
	default:
		return authz.ContentTypeTransaction
	}
}

// AuthorizeItem resolves the item's project, owning group and any share
// grant for the subject, then runs the authorization check. Content and
// sharing operations route through it so item access has a single rule set.
func AuthorizeItem(ctx context.Context, db database.Store, subject uuid.UUID, item database.ProjectItem, op authz.Operation) error {
	proj, err := db.GetProjectByID(ctx, item.ProjectID)
	if err != nil {
		return err
	}
	group, err := db.GetGroupByID(ctx, proj.GroupID)
	if err != nil {
		return err
	}

	granted := authz.PermissionNone
	share, err := db.GetItemShare(ctx, item.ID, subject)
	if err == nil {
		switch share.Permission {
		case database.SharePermissionWrite:
			granted = authz.PermissionWrite
		case database.SharePermissionRead:
			granted = authz.PermissionRead
		}
	} else if !errors.Is(err, database.ErrItemShareNotFound) {
		return err
	}

	return authz.Check(ctx, db, authz.Request{
		Subject:       subject,
		Operation:     op,
		ContentType:   contentTypeForItem(item.Type),
		ResourceID:    item.ID,
		ResourceName:  item.Name,
		ResourceOwner: item.OwnerID,
		GroupID:       group.ID,
		GroupOwner:    group.OwnerID,
		DefaultGroup:  group.IsDefault,
		Granted:       granted,
	})
}

type CreateItemParams struct {
	ProjectID  uuid.UUID `validate:"required"`
	Name       string    `validate:"required,min=1,max=500"`
	Labels     []string
	AssigneeID util.Optional[uuid.UUID]
	DueAt      util.Optional[time.Time]
	Amount     util.Optional[float64]
	PayerID    util.Optional[uuid.UUID]
}

// CreateTask adds a task to a TODO project.
func (m *Manager) CreateTask(ctx context.Context, owner uuid.UUID, params CreateItemParams) (database.ProjectItem, error) {
	return m.createItem(ctx, owner, database.ItemTypeTask, params)
}

// CreateNote adds a note to a NOTE project.
func (m *Manager) CreateNote(ctx context.Context, owner uuid.UUID, params CreateItemParams) (database.ProjectItem, error) {
	return m.createItem(ctx, owner, database.ItemTypeNote, params)
}

// CreateTransaction adds a transaction to a LEDGER project.
func (m *Manager) CreateTransaction(ctx context.Context, owner uuid.UUID, params CreateItemParams) (database.ProjectItem, error) {
	return m.createItem(ctx, owner, database.ItemTypeTransaction, params)
}

func (m *Manager) createItem(ctx context.Context, owner uuid.UUID, itemType database.ItemType, params CreateItemParams) (database.ProjectItem, error) {
	var item database.ProjectItem
	var groupID uuid.UUID

	if err := m.validate.Validate(params); err != nil {
		return item, err
	}

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		proj, err := getProject(ctx, tx, params.ProjectID)
		if err != nil {
			return err
		}
		if itemTypeForProject(proj.Type) != itemType {
			return fmt.Errorf("%s project %s does not accept %s items: %w", proj.Type, proj.Name, itemType, errs.ErrBadRequest)
		}

		accepted, err := tx.IsAcceptedMember(ctx, owner, proj.GroupID)
		if err != nil {
			return err
		}
		if !accepted {
			return fmt.Errorf("user %s is not a member of project %s's group: %w", owner, proj.Name, errs.ErrUnauthorized)
		}

		groupID = proj.GroupID
		item, err = tx.CreateProjectItem(ctx, database.CreateProjectItemParams{
			ProjectID:  proj.ID,
			OwnerID:    owner,
			Type:       itemType,
			Name:       params.Name,
			Labels:     params.Labels,
			AssigneeID: params.AssigneeID,
			DueAt:      params.DueAt,
			Amount:     params.Amount,
			PayerID:    params.PayerID,
		})
		return err
	})
	if err != nil {
		return item, err
	}

	m.indexer.IndexName(ctx, item.ID, []uuid.UUID{groupID}, item.Name)
	return item, nil
}

func (m *Manager) GetItem(ctx context.Context, requester, itemID uuid.UUID) (database.ProjectItem, error) {
	item, err := getItem(ctx, m.db, itemID)
	if err != nil {
		return item, err
	}
	if err := AuthorizeItem(ctx, m.db, requester, item, authz.OperationGet); err != nil {
		return database.ProjectItem{}, err
	}
	return item, nil
}

type UpdateItemParams struct {
	Name   util.Optional[string]
	Labels util.Optional[[]string]
	DueAt  util.Optional[util.Optional[time.Time]]
}

func (m *Manager) UpdateItem(ctx context.Context, requester, itemID uuid.UUID, params UpdateItemParams) (database.ProjectItem, error) {
	var item database.ProjectItem
	var groupID uuid.UUID

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		var err error
		item, err = getItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if err := AuthorizeItem(ctx, tx, requester, item, authz.OperationUpdate); err != nil {
			return err
		}
		if params.DueAt.IsSet && item.Type != database.ItemTypeTask {
			return fmt.Errorf("%s items have no due date: %w", item.Type, errs.ErrBadRequest)
		}

		proj, err := tx.GetProjectByID(ctx, item.ProjectID)
		if err != nil {
			return err
		}
		groupID = proj.GroupID

		if err := tx.UpdateProjectItemByID(ctx, item.ID, database.UpdateProjectItemParams{
			Name:   params.Name,
			Labels: params.Labels,
			DueAt:  params.DueAt,
		}); err != nil {
			return err
		}
		if params.Name.IsSet {
			item.Name = params.Name.Val
		}
		if params.Labels.IsSet {
			item.Labels = params.Labels.Val
		}
		if params.DueAt.IsSet {
			item.DueAt = params.DueAt.Val
		}
		return nil
	})
	if err != nil {
		return database.ProjectItem{}, err
	}

	if params.Name.IsSet {
		m.indexer.IndexName(ctx, item.ID, []uuid.UUID{groupID}, item.Name)
	}
	return item, nil
}

// UpdateTaskAssignee reassigns a task. Both the previous and the new
// assignee are notified unless they are the requester.
func (m *Manager) UpdateTaskAssignee(ctx context.Context, requester, itemID uuid.UUID, assignee util.Optional[uuid.UUID]) (notifications.UpdateAssigneeEvent, error) {
	var events []notifications.Event

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		item, err := tx.GetProjectItemForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, database.ErrProjectItemNotFound) {
				return fmt.Errorf("item %s not found: %w", itemID, errs.ErrResourceNotFound)
			}
			return err
		}
		if item.Type != database.ItemTypeTask {
			return fmt.Errorf("item %s is not a task: %w", itemID, errs.ErrBadRequest)
		}
		if err := AuthorizeItem(ctx, tx, requester, item, authz.OperationUpdate); err != nil {
			return err
		}

		if item.AssigneeID == assignee {
			return nil
		}

		if assignee.IsSet {
			if _, err := tx.GetUserByID(ctx, assignee.Val); err != nil {
				if errors.Is(err, database.ErrUserNotFound) {
					return fmt.Errorf("user %s not found: %w", assignee.Val, errs.ErrResourceNotFound)
				}
				return err
			}
		}

		if err := tx.UpdateProjectItemByID(ctx, item.ID, database.UpdateProjectItemParams{
			AssigneeID: util.Some(assignee),
		}); err != nil {
			return err
		}

		for _, target := range []util.Optional[uuid.UUID]{item.AssigneeID, assignee} {
			if !target.IsSet || target.Val == requester {
				continue
			}
			events = append(events, notifications.Event{
				TargetUser:  target.Val,
				ContentID:   item.ID,
				ContentName: item.Name,
			})
		}
		return nil
	})
	if err != nil {
		return notifications.UpdateAssigneeEvent{}, err
	}

	return notifications.NewUpdateAssigneeEvent(events, requester), nil
}

// MoveProjectItem relocates an item to another project of the same flavor.
// Both the item and the target project are authorized before any state is
// inspected, so an unauthorized caller always sees a denial and can never
// probe which project the item currently sits in. The row lock serializes
// concurrent moves; a mover that locked the row after it already left
// fromProjectID fails with Conflict.
func (m *Manager) MoveProjectItem(ctx context.Context, requester, itemID, fromProjectID, targetProjectID uuid.UUID) error {
	return m.db.WithTx(ctx, func(tx database.Store) error {
		item, err := tx.GetProjectItemForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, database.ErrProjectItemNotFound) {
				return fmt.Errorf("item %s not found: %w", itemID, errs.ErrResourceNotFound)
			}
			return err
		}
		if err := AuthorizeItem(ctx, tx, requester, item, authz.OperationUpdate); err != nil {
			return err
		}

		target, err := getProject(ctx, tx, targetProjectID)
		if err != nil {
			return err
		}
		targetGroup, err := tx.GetGroupByID(ctx, target.GroupID)
		if err != nil {
			return err
		}
		if err := authz.Check(ctx, tx, authz.Request{
			Subject:       requester,
			Operation:     authz.OperationUpdate,
			ContentType:   authz.ContentTypeProject,
			ResourceID:    target.ID,
			ResourceName:  target.Name,
			ResourceOwner: target.OwnerID,
			GroupID:       targetGroup.ID,
			GroupOwner:    targetGroup.OwnerID,
			DefaultGroup:  targetGroup.IsDefault,
		}); err != nil {
			return err
		}

		if item.ProjectID == targetProjectID {
			return nil
		}
		if item.ProjectID != fromProjectID {
			return fmt.Errorf("item %s is no longer in project %s: %w", itemID, fromProjectID, errs.ErrConflict)
		}
		if itemTypeForProject(target.Type) != item.Type {
			return fmt.Errorf("%s project %s does not accept %s items: %w", target.Type, target.Name, item.Type, errs.ErrBadRequest)
		}

		siblings, err := tx.ListProjectItems(ctx, target.ID)
		if err != nil {
			return err
		}
		position := 0
		for _, sibling := range siblings {
			if sibling.Position >= position {
				position = sibling.Position + 1
			}
		}

		return tx.UpdateProjectItemByID(ctx, item.ID, database.UpdateProjectItemParams{
			ProjectID: util.Some(target.ID),
			Position:  util.Some(position),
		})
	})
}

// DeleteItem removes an item with its contents, revisions, shares and
// public links. The item owner and, for tasks, the assignee are notified
// with the removal kind of the item's variant.
func (m *Manager) DeleteItem(ctx context.Context, requester, itemID uuid.UUID) (notifications.RemoveItemEvent, error) {
	var events []notifications.Event
	var itemType database.ItemType

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		item, err := getItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		itemType = item.Type
		if err := AuthorizeItem(ctx, tx, requester, item, authz.OperationDelete); err != nil {
			return err
		}

		targets := map[uuid.UUID]bool{item.OwnerID: true}
		if item.AssigneeID.IsSet {
			targets[item.AssigneeID.Val] = true
		}
		for target := range targets {
			if target == requester {
				continue
			}
			events = append(events, notifications.Event{
				TargetUser:  target,
				ContentID:   item.ID,
				ContentName: item.Name,
			})
		}

		return deleteItemCascade(ctx, tx, item.ID)
	})
	if err != nil {
		return notifications.RemoveItemEvent{}, err
	}

	switch itemType {
	case database.ItemTypeNote:
		return notifications.NewRemoveNoteEvent(events, requester), nil
	case database.ItemTypeTransaction:
		return notifications.NewRemoveTransactionEvent(events, requester), nil
	default:
		return notifications.NewRemoveTaskEvent(events, requester), nil
	}
}

func deleteItemCascade(ctx context.Context, tx database.Store, itemID uuid.UUID) error {
	contents, err := tx.ListContents(ctx, itemID)
	if err != nil {
		return err
	}
	for _, content := range contents {
		if err := tx.DeleteRevisionsByContentID(ctx, content.ID); err != nil {
			return err
		}
		if err := tx.DeleteContentByID(ctx, content.ID); err != nil {
			return err
		}
	}
	if err := tx.DeleteItemSharesByItemID(ctx, itemID); err != nil {
		return err
	}
	if err := tx.DeletePublicLinksByItemID(ctx, itemID); err != nil {
		return err
	}
	return tx.DeleteProjectItemByID(ctx, itemID)
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
