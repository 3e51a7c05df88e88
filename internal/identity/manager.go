// Package identity manages users, groups and memberships. Every user owns
// exactly one auto-created default group that scopes their private projects.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"journal/internal/authz"
	"journal/internal/database"
	"journal/internal/errs"
	"journal/internal/notifications"
	"journal/internal/util"
	"journal/internal/validator"

	"github.com/google/uuid"
)

const DefaultGroupName = "Default"

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

type CreateUserParams struct {
	Name string `validate:"required,min=1,max=100"`
}

// CreateUser bootstraps a user together with their default group and the
// accepted owner membership. Calling it again with the same name returns the
// existing user unchanged.
func (m *Manager) CreateUser(ctx context.Context, params CreateUserParams) (database.User, error) {
	var user database.User
	if err := m.validate.Validate(params); err != nil {
		return user, err
	}

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		existing, err := tx.GetUserByName(ctx, params.Name)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, database.ErrUserNotFound) {
			return err
		}

		user, err = tx.CreateUser(ctx, database.CreateUserParams{Name: params.Name})
		if err != nil {
			return err
		}

		group, err := tx.CreateGroup(ctx, database.CreateGroupParams{
			Name:      DefaultGroupName,
			OwnerID:   user.ID,
			IsDefault: true,
		})
		if err != nil {
			return err
		}

		_, err = tx.CreateUserGroup(ctx, database.CreateUserGroupParams{
			UserID:   user.ID,
			GroupID:  group.ID,
			Accepted: true,
		})
		return err
	})
	if err != nil {
		return user, err
	}

	return user, nil
}

type CreateGroupParams struct {
	OwnerID uuid.UUID `validate:"required"`
	Name    string    `validate:"required,min=1,max=100"`
}

func (m *Manager) CreateGroup(ctx context.Context, params CreateGroupParams) (database.Group, error) {
	var group database.Group
	if err := m.validate.Validate(params); err != nil {
		return group, err
	}

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		if _, err := tx.GetUserByID(ctx, params.OwnerID); err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				return fmt.Errorf("user %s not found: %w", params.OwnerID, errs.ErrResourceNotFound)
			}
			return err
		}

		_, err := tx.GetGroup(ctx, database.GetGroupParams{
			Name:    util.Some(params.Name),
			OwnerID: util.Some(params.OwnerID),
		})
		if err == nil {
			return fmt.Errorf("group with name %s already exists: %w", params.Name, errs.ErrResourceAlreadyExists)
		}
		if !errors.Is(err, database.ErrGroupNotFound) {
			return err
		}

		group, err = tx.CreateGroup(ctx, database.CreateGroupParams{
			Name:    params.Name,
			OwnerID: params.OwnerID,
		})
		if err != nil {
			return err
		}

		_, err = tx.CreateUserGroup(ctx, database.CreateUserGroupParams{
			UserID:   params.OwnerID,
			GroupID:  group.ID,
			Accepted: true,
		})
		return err
	})
	if err != nil {
		return group, err
	}

	m.logger.Info("group created", "group_id", group.ID, "owner_id", group.OwnerID)
	return group, nil
}

type UpdateGroupParams struct {
	Name util.Optional[string]
}

func (m *Manager) UpdateGroup(ctx context.Context, requester, groupID uuid.UUID, params UpdateGroupParams) (database.Group, error) {
	var group database.Group

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		var err error
		group, err = getGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}

		if err := authz.Check(ctx, tx, authz.Request{
			Subject:       requester,
			Operation:     authz.OperationUpdate,
			ContentType:   authz.ContentTypeGroup,
			ResourceID:    group.ID,
			ResourceName:  group.Name,
			ResourceOwner: group.OwnerID,
			GroupID:       group.ID,
			GroupOwner:    group.OwnerID,
			DefaultGroup:  group.IsDefault,
		}); err != nil {
			return err
		}

		if !params.Name.IsSet || params.Name.Val == group.Name {
			return nil
		}

		_, err = tx.GetGroup(ctx, database.GetGroupParams{
			Name:    util.Some(params.Name.Val),
			OwnerID: util.Some(group.OwnerID),
		})
		if err == nil {
			return fmt.Errorf("group with name %s already exists: %w", params.Name.Val, errs.ErrResourceAlreadyExists)
		}
		if !errors.Is(err, database.ErrGroupNotFound) {
			return err
		}

		if err := tx.UpdateGroupByID(ctx, group.ID, database.UpdateGroupParams{Name: params.Name}); err != nil {
			return err
		}
		group.Name = params.Name.Val
		return nil
	})
	return group, err
}

// DeleteGroup removes a group and its memberships. The default group is
// never deletable, and neither is a group that still has projects. The
// returned batch holds one event per removed member other than the
// requester; the caller hands it to fan-out after commit.
func (m *Manager) DeleteGroup(ctx context.Context, requester, groupID uuid.UUID) (notifications.RemoveGroupEvent, error) {
	var events []notifications.Event

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		group, err := getGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}

		if err := authz.Check(ctx, tx, authz.Request{
			Subject:       requester,
			Operation:     authz.OperationDelete,
			ContentType:   authz.ContentTypeGroup,
			ResourceID:    group.ID,
			ResourceName:  group.Name,
			ResourceOwner: group.OwnerID,
			GroupID:       group.ID,
			GroupOwner:    group.OwnerID,
			DefaultGroup:  group.IsDefault,
		}); err != nil {
			return err
		}

		projects, err := tx.ListProjects(ctx, database.ListProjectsParams{GroupID: util.Some(group.ID)})
		if err != nil {
			return err
		}
		if len(projects) > 0 {
			names := make([]string, len(projects))
			for i, project := range projects {
				names[i] = project.Name
			}
			return fmt.Errorf("group %s is associated with projects [%s] and cannot be deleted: %w",
				group.Name, strings.Join(names, ", "), errs.ErrBadRequest)
		}

		members, err := tx.ListGroupMembers(ctx, group.ID)
		if err != nil {
			return err
		}
		for _, member := range members {
			if err := tx.DeleteUserGroup(ctx, member.UserID, group.ID); err != nil {
				return err
			}
			if member.UserID != requester {
				events = append(events, notifications.Event{
					TargetUser:  member.UserID,
					ContentID:   group.ID,
					ContentName: group.Name,
				})
			}
		}

		return tx.DeleteGroupByID(ctx, group.ID)
	})
	if err != nil {
		return notifications.RemoveGroupEvent{}, err
	}

	return notifications.NewRemoveGroupEvent(events, requester), nil
}

type AddUserGroupParams struct {
	GroupID  uuid.UUID
	Username string
}

// AddUserGroups invites users into groups, one pending membership each.
// Inviting an existing member is a no-op and produces no event.
func (m *Manager) AddUserGroups(ctx context.Context, requester uuid.UUID, params []AddUserGroupParams) (notifications.JoinGroupEvent, error) {
	var events []notifications.Event

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		for _, param := range params {
			group, err := getGroup(ctx, tx, param.GroupID)
			if err != nil {
				return err
			}

			if err := authz.Check(ctx, tx, authz.Request{
				Subject:       requester,
				Operation:     authz.OperationUpdate,
				ContentType:   authz.ContentTypeGroup,
				ResourceID:    group.ID,
				ResourceName:  group.Name,
				ResourceOwner: group.OwnerID,
				GroupID:       group.ID,
				GroupOwner:    group.OwnerID,
				DefaultGroup:  group.IsDefault,
			}); err != nil {
				return err
			}

			user, err := getUserByName(ctx, tx, param.Username)
			if err != nil {
				return err
			}

			if _, err := tx.GetUserGroup(ctx, user.ID, group.ID); err == nil {
				continue
			} else if !errors.Is(err, database.ErrUserGroupNotFound) {
				return err
			}

			if _, err := tx.CreateUserGroup(ctx, database.CreateUserGroupParams{
				UserID:   user.ID,
				GroupID:  group.ID,
				Accepted: false,
			}); err != nil {
				return err
			}

			events = append(events, notifications.Event{
				TargetUser:  user.ID,
				ContentID:   group.ID,
				ContentName: group.Name,
			})
		}
		return nil
	})
	if err != nil {
		return notifications.JoinGroupEvent{}, err
	}

	return notifications.NewJoinGroupEvent(events, requester), nil
}

type RemoveUserGroupParams struct {
	GroupID  uuid.UUID
	Username string
}

func (m *Manager) RemoveUserGroups(ctx context.Context, requester uuid.UUID, params []RemoveUserGroupParams) (notifications.RemoveGroupEvent, error) {
	var events []notifications.Event

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		for _, param := range params {
			group, err := getGroup(ctx, tx, param.GroupID)
			if err != nil {
				return err
			}

			if err := authz.Check(ctx, tx, authz.Request{
				Subject:       requester,
				Operation:     authz.OperationUpdate,
				ContentType:   authz.ContentTypeGroup,
				ResourceID:    group.ID,
				ResourceName:  group.Name,
				ResourceOwner: group.OwnerID,
				GroupID:       group.ID,
				GroupOwner:    group.OwnerID,
				DefaultGroup:  group.IsDefault,
			}); err != nil {
				return err
			}

			user, err := getUserByName(ctx, tx, param.Username)
			if err != nil {
				return err
			}
			if user.ID == group.OwnerID {
				return fmt.Errorf("cannot remove owner %s from group %s: %w", param.Username, group.Name, errs.ErrBadRequest)
			}

			if err := tx.DeleteUserGroup(ctx, user.ID, group.ID); err != nil {
				if errors.Is(err, database.ErrUserGroupNotFound) {
					return fmt.Errorf("user %s is not a member of group %s: %w", param.Username, group.Name, errs.ErrResourceNotFound)
				}
				return err
			}

			events = append(events, notifications.Event{
				TargetUser:  user.ID,
				ContentID:   group.ID,
				ContentName: group.Name,
			})
		}
		return nil
	})
	if err != nil {
		return notifications.RemoveGroupEvent{}, err
	}

	return notifications.NewRemoveGroupEvent(events, requester), nil
}

// AcceptGroupInvitation flips a pending membership to accepted.
func (m *Manager) AcceptGroupInvitation(ctx context.Context, userID, groupID uuid.UUID) error {
	return m.db.WithTx(ctx, func(tx database.Store) error {
		if err := tx.UpdateUserGroupAccepted(ctx, userID, groupID, true); err != nil {
			if errors.Is(err, database.ErrUserGroupNotFound) {
				return fmt.Errorf("no invitation for user %s in group %s: %w", userID, groupID, errs.ErrResourceNotFound)
			}
			return err
		}
		return nil
	})
}

type GroupMemberView struct {
	UserID   uuid.UUID
	Name     string
	Accepted bool
}

type GroupView struct {
	database.Group
	Members []GroupMemberView
}

// GetGroups lists the user's groups, default group first, remaining groups by
// ascending id, each with its membership roster.
func (m *Manager) GetGroups(ctx context.Context, userID uuid.UUID) ([]GroupView, error) {
	groups, err := m.db.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]GroupView, 0, len(groups))
	for _, group := range groups {
		view, err := m.buildGroupView(ctx, m.db, group)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (m *Manager) GetGroup(ctx context.Context, requester, groupID uuid.UUID) (GroupView, error) {
	group, err := getGroup(ctx, m.db, groupID)
	if err != nil {
		return GroupView{}, err
	}

	if err := authz.Check(ctx, m.db, authz.Request{
		Subject:       requester,
		Operation:     authz.OperationGet,
		ContentType:   authz.ContentTypeGroup,
		ResourceID:    group.ID,
		ResourceName:  group.Name,
		ResourceOwner: group.OwnerID,
		GroupID:       group.ID,
		GroupOwner:    group.OwnerID,
		DefaultGroup:  group.IsDefault,
	}); err != nil {
		return GroupView{}, err
	}

	return m.buildGroupView(ctx, m.db, group)
}

func (m *Manager) buildGroupView(ctx context.Context, db database.Store, group database.Group) (GroupView, error) {
	members, err := db.ListGroupMembers(ctx, group.ID)
	if err != nil {
		return GroupView{}, err
	}

	view := GroupView{Group: group, Members: make([]GroupMemberView, 0, len(members))}
	for _, member := range members {
		user, err := db.GetUserByID(ctx, member.UserID)
		if err != nil {
			return GroupView{}, err
		}
		view.Members = append(view.Members, GroupMemberView{
			UserID:   user.ID,
			Name:     user.Name,
			Accepted: member.Accepted,
		})
	}
	return view, nil
}

func getGroup(ctx context.Context, db database.Store, groupID uuid.UUID) (database.Group, error) {
	group, err := db.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return group, fmt.Errorf("group %s not found: %w", groupID, errs.ErrResourceNotFound)
		}
		return group, err
	}
	return group, nil
}

func getUserByName(ctx context.Context, db database.Store, name string) (database.User, error) {
	user, err := db.GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return user, fmt.Errorf("user %s not found: %w", name, errs.ErrResourceNotFound)
		}
		return user, err
	}
	return user, nil
}
