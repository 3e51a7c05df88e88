// Package project manages the project hierarchy and the items inside it.
// Projects form a forest per owner; moving a node re-parents its whole
// subtree and deleting a node cascades depth first.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"journal/internal/authz"
	"journal/internal/database"
	"journal/internal/errs"
	"journal/internal/notifications"
	"journal/internal/search"
	"journal/internal/util"
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

type CreateProjectParams struct {
	Name     string               `validate:"required,min=1,max=100"`
	GroupID  uuid.UUID            `validate:"required"`
	Type     database.ProjectType `validate:"required"`
	ParentID util.Optional[uuid.UUID]
}

// CreateProject appends a project to the owner's forest, at the end of the
// parent's child order. Top-level names are unique per owner; nested names
// are not.
func (m *Manager) CreateProject(ctx context.Context, owner uuid.UUID, params CreateProjectParams) (database.Project, notifications.CreateProjectEvent, error) {
	var project database.Project
	var events []notifications.Event

	if err := m.validate.Validate(params); err != nil {
		return project, notifications.CreateProjectEvent{}, err
	}
	if !params.Type.IsValid() {
		return project, notifications.CreateProjectEvent{}, fmt.Errorf("invalid project type %q: %w", params.Type, errs.ErrBadRequest)
	}

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		group, err := tx.GetGroupByID(ctx, params.GroupID)
		if err != nil {
			if errors.Is(err, database.ErrGroupNotFound) {
				return fmt.Errorf("group %s not found: %w", params.GroupID, errs.ErrResourceNotFound)
			}
			return err
		}

		accepted, err := tx.IsAcceptedMember(ctx, owner, group.ID)
		if err != nil {
			return err
		}
		if !accepted {
			return fmt.Errorf("user %s is not a member of group %s: %w", owner, group.Name, errs.ErrUnauthorized)
		}

		if params.ParentID.IsSet {
			if _, err := tx.GetProjectByID(ctx, params.ParentID.Val); err != nil {
				if errors.Is(err, database.ErrProjectNotFound) {
					return fmt.Errorf("parent project %s not found: %w", params.ParentID.Val, errs.ErrResourceNotFound)
				}
				return err
			}
		} else {
			existing, err := tx.ListProjects(ctx, database.ListProjectsParams{
				OwnerID:      util.Some(owner),
				Name:         util.Some(params.Name),
				TopLevelOnly: true,
			})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("project with name %s already exists: %w", params.Name, errs.ErrResourceAlreadyExists)
			}
		}

		project, err = tx.CreateProject(ctx, database.CreateProjectParams{
			Name:     params.Name,
			OwnerID:  owner,
			GroupID:  group.ID,
			Type:     params.Type,
			ParentID: params.ParentID,
		})
		if err != nil {
			return err
		}

		events, err = groupMemberEvents(ctx, tx, group.ID, project.ID, project.Name, owner)
		return err
	})
	if err != nil {
		return project, notifications.CreateProjectEvent{}, err
	}

	m.logger.Info("project created", "project_id", project.ID, "owner_id", owner, "group_id", project.GroupID)
	return project, notifications.NewCreateProjectEvent(events, owner), nil
}

func (m *Manager) GetProject(ctx context.Context, requester, projectID uuid.UUID) (database.Project, error) {
	project, err := getProject(ctx, m.db, projectID)
	if err != nil {
		return project, err
	}

	group, err := m.db.GetGroupByID(ctx, project.GroupID)
	if err != nil {
		return project, err
	}

	if err := authz.Check(ctx, m.db, authz.Request{
		Subject:       requester,
		Operation:     authz.OperationGet,
		ContentType:   authz.ContentTypeProject,
		ResourceID:    project.ID,
		ResourceName:  project.Name,
		ResourceOwner: project.OwnerID,
		GroupID:       group.ID,
		GroupOwner:    group.OwnerID,
		DefaultGroup:  group.IsDefault,
	}); err != nil {
		return database.Project{}, err
	}
	return project, nil
}

type UpdateProjectParams struct {
	Name    util.Optional[string]
	GroupID util.Optional[uuid.UUID]
}

// UpdateProject renames a project and/or moves it to another group. A group
// change produces join events for members gaining access and removal events
// for members losing it.
func (m *Manager) UpdateProject(ctx context.Context, requester, projectID uuid.UUID, params UpdateProjectParams) (database.Project, []notifications.Informable, error) {
	var project database.Project
	var informables []notifications.Informable

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		var err error
		project, err = getProject(ctx, tx, projectID)
		if err != nil {
			return err
		}

		group, err := tx.GetGroupByID(ctx, project.GroupID)
		if err != nil {
			return err
		}

		if err := authz.Check(ctx, tx, authz.Request{
			Subject:       requester,
			Operation:     authz.OperationUpdate,
			ContentType:   authz.ContentTypeProject,
			ResourceID:    project.ID,
			ResourceName:  project.Name,
			ResourceOwner: project.OwnerID,
			GroupID:       group.ID,
			GroupOwner:    group.OwnerID,
			DefaultGroup:  group.IsDefault,
		}); err != nil {
			return err
		}

		update := database.UpdateProjectParams{}

		if params.Name.IsSet && params.Name.Val != project.Name {
			if !project.ParentID.IsSet {
				existing, err := tx.ListProjects(ctx, database.ListProjectsParams{
					OwnerID:      util.Some(project.OwnerID),
					Name:         util.Some(params.Name.Val),
					TopLevelOnly: true,
				})
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					return fmt.Errorf("project with name %s already exists: %w", params.Name.Val, errs.ErrResourceAlreadyExists)
				}
			}
			update.Name = params.Name
			project.Name = params.Name.Val
		}

		if params.GroupID.IsSet && params.GroupID.Val != project.GroupID {
			target, err := tx.GetGroupByID(ctx, params.GroupID.Val)
			if err != nil {
				if errors.Is(err, database.ErrGroupNotFound) {
					return fmt.Errorf("group %s not found: %w", params.GroupID.Val, errs.ErrResourceNotFound)
				}
				return err
			}

			accepted, err := tx.IsAcceptedMember(ctx, project.OwnerID, target.ID)
			if err != nil {
				return err
			}
			if !accepted {
				return fmt.Errorf("project owner %s is not a member of group %s: %w", project.OwnerID, target.Name, errs.ErrBadRequest)
			}

			oldMembers, err := acceptedMemberSet(ctx, tx, group.ID)
			if err != nil {
				return err
			}
			newMembers, err := acceptedMemberSet(ctx, tx, target.ID)
			if err != nil {
				return err
			}

			var joined, removed []notifications.Event
			for userID := range newMembers {
				if userID == requester || oldMembers[userID] {
					continue
				}
				joined = append(joined, notifications.Event{
					TargetUser:  userID,
					ContentID:   project.ID,
					ContentName: project.Name,
				})
			}
			for userID := range oldMembers {
				if userID == requester || newMembers[userID] {
					continue
				}
				removed = append(removed, notifications.Event{
					TargetUser:  userID,
					ContentID:   project.ID,
					ContentName: project.Name,
				})
			}
			if len(joined) > 0 {
				informables = append(informables, notifications.NewJoinProjectEvent(joined, requester))
			}
			if len(removed) > 0 {
				informables = append(informables, notifications.NewRemoveFromProjectEvent(removed, requester))
			}

			update.GroupID = params.GroupID
			project.GroupID = params.GroupID.Val
		}

		if !update.Name.IsSet && !update.GroupID.IsSet {
			return nil
		}
		return tx.UpdateProjectByID(ctx, project.ID, update)
	})
	if err != nil {
		return database.Project{}, nil, err
	}
	return project, informables, nil
}

// MoveProject re-parents a project, appending it to the target's child list.
// An unset parent moves the project to the top level. Moving a project under
// its own subtree is rejected.
func (m *Manager) MoveProject(ctx context.Context, requester, projectID uuid.UUID, newParent util.Optional[uuid.UUID]) error {
	return m.db.WithTx(ctx, func(tx database.Store) error {
		project, err := tx.GetProjectForUpdate(ctx, projectID)
		if err != nil {
			if errors.Is(err, database.ErrProjectNotFound) {
				return fmt.Errorf("project %s not found: %w", projectID, errs.ErrResourceNotFound)
			}
			return err
		}

		group, err := tx.GetGroupByID(ctx, project.GroupID)
		if err != nil {
			return err
		}

		if err := authz.Check(ctx, tx, authz.Request{
			Subject:       requester,
			Operation:     authz.OperationUpdate,
			ContentType:   authz.ContentTypeProject,
			ResourceID:    project.ID,
			ResourceName:  project.Name,
			ResourceOwner: project.OwnerID,
			GroupID:       group.ID,
			GroupOwner:    group.OwnerID,
			DefaultGroup:  group.IsDefault,
		}); err != nil {
			return err
		}

		var siblings []database.Project
		if newParent.IsSet {
			if newParent.Val == project.ID {
				return fmt.Errorf("project %s cannot be its own parent: %w", project.ID, errs.ErrBadRequest)
			}
			parent, err := tx.GetProjectByID(ctx, newParent.Val)
			if err != nil {
				if errors.Is(err, database.ErrProjectNotFound) {
					return fmt.Errorf("parent project %s not found: %w", newParent.Val, errs.ErrResourceNotFound)
				}
				return err
			}

			// Walk the target's parent chain to the root. Finding the moving
			// project on it means the move would create a cycle.
			for cursor := parent; cursor.ParentID.IsSet; {
				if cursor.ParentID.Val == project.ID {
					return fmt.Errorf("moving project %s under %s would create a cycle: %w", project.ID, newParent.Val, errs.ErrBadRequest)
				}
				cursor, err = tx.GetProjectByID(ctx, cursor.ParentID.Val)
				if err != nil {
					return err
				}
			}

			siblings, err = tx.ListChildProjects(ctx, parent.ID)
			if err != nil {
				return err
			}
		} else {
			siblings, err = tx.ListProjects(ctx, database.ListProjectsParams{
				OwnerID:      util.Some(project.OwnerID),
				TopLevelOnly: true,
			})
			if err != nil {
				return err
			}
		}

		position := 0
		for _, sibling := range siblings {
			if sibling.ID == project.ID {
				continue
			}
			if sibling.Position >= position {
				position = sibling.Position + 1
			}
		}

		return tx.SetProjectParent(ctx, project.ID, newParent, position)
	})
}

// Relation is one node of a caller-supplied hierarchy snapshot.
type Relation struct {
	ID       uuid.UUID  `json:"id"`
	Children []Relation `json:"children,omitempty"`
}

// UpdateProjectRelations replaces the owner's whole forest layout in one
// transaction. Every referenced project must belong to the owner and appear
// at most once.
func (m *Manager) UpdateProjectRelations(ctx context.Context, owner uuid.UUID, tree []Relation) error {
	return m.db.WithTx(ctx, func(tx database.Store) error {
		seen := make(map[uuid.UUID]bool)

		var apply func(nodes []Relation, parent util.Optional[uuid.UUID]) error
		apply = func(nodes []Relation, parent util.Optional[uuid.UUID]) error {
			for position, node := range nodes {
				if seen[node.ID] {
					return fmt.Errorf("project %s appears twice in the hierarchy: %w", node.ID, errs.ErrBadRequest)
				}
				seen[node.ID] = true

				project, err := tx.GetProjectForUpdate(ctx, node.ID)
				if err != nil {
					if errors.Is(err, database.ErrProjectNotFound) {
						return fmt.Errorf("project %s not found: %w", node.ID, errs.ErrResourceNotFound)
					}
					return err
				}
				if project.OwnerID != owner {
					return fmt.Errorf("user %s is not allowed to UPDATE PROJECT %s: %w", owner, project.ID, errs.ErrUnauthorized)
				}

				if err := tx.SetProjectParent(ctx, project.ID, parent, position); err != nil {
					return err
				}
				if err := apply(node.Children, util.Some(node.ID)); err != nil {
					return err
				}
			}
			return nil
		}

		return apply(tree, util.None[uuid.UUID]())
	})
}

// DeleteProject removes a project and everything beneath it: sub-projects
// depth first, then each project's items with their contents, revisions,
// shares and public links.
func (m *Manager) DeleteProject(ctx context.Context, requester, projectID uuid.UUID) (notifications.RemoveProjectEvent, error) {
	var events []notifications.Event

	err := m.db.WithTx(ctx, func(tx database.Store) error {
		project, err := getProject(ctx, tx, projectID)
		if err != nil {
			return err
		}

		group, err := tx.GetGroupByID(ctx, project.GroupID)
		if err != nil {
			return err
		}

		if err := authz.Check(ctx, tx, authz.Request{
			Subject:       requester,
			Operation:     authz.OperationDelete,
			ContentType:   authz.ContentTypeProject,
			ResourceID:    project.ID,
			ResourceName:  project.Name,
			ResourceOwner: project.OwnerID,
			GroupID:       group.ID,
			GroupOwner:    group.OwnerID,
			DefaultGroup:  group.IsDefault,
		}); err != nil {
			return err
		}

		events, err = groupMemberEvents(ctx, tx, group.ID, project.ID, project.Name, requester)
		if err != nil {
			return err
		}

		return deleteProjectTree(ctx, tx, project.ID)
	})
	if err != nil {
		return notifications.RemoveProjectEvent{}, err
	}

	return notifications.NewRemoveProjectEvent(events, requester), nil
}

func deleteProjectTree(ctx context.Context, tx database.Store, projectID uuid.UUID) error {
	children, err := tx.ListChildProjects(ctx, projectID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := deleteProjectTree(ctx, tx, child.ID); err != nil {
			return err
		}
	}

	items, err := tx.ListProjectItems(ctx, projectID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := deleteItemCascade(ctx, tx, item.ID); err != nil {
			return err
		}
	}

	return tx.DeleteProjectByID(ctx, projectID)
}

// UpdateSharedProjectsOrder stores the user's preferred ordering of the
// shared sections. Every named owner must actually share a project with the
// user through a common group.
func (m *Manager) UpdateSharedProjectsOrder(ctx context.Context, userID uuid.UUID, owners []string) error {
	visible, err := m.sharedOwnerNames(ctx, userID)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		if !visible[owner] {
			return fmt.Errorf("no projects shared by %s: %w", owner, errs.ErrBadRequest)
		}
	}
	return m.db.UpsertSharedProjectsOrder(ctx, userID, owners)
}

// sharedOwnerNames collects the names of users whose projects are visible to
// userID through shared group membership.
func (m *Manager) sharedOwnerNames(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	groups, err := m.db.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool)
	for _, group := range groups {
		projects, err := m.db.ListProjects(ctx, database.ListProjectsParams{GroupID: util.Some(group.ID)})
		if err != nil {
			return nil, err
		}
		for _, project := range projects {
			if project.OwnerID == userID {
				continue
			}
			owner, err := m.db.GetUserByID(ctx, project.OwnerID)
			if err != nil {
				return nil, err
			}
			names[owner.Name] = true
		}
	}
	return names, nil
}

// Node is one project with its resolved children, as returned by GetProjects.
type Node struct {
	database.Project
	Children []Node `json:"children,omitempty"`
}

// OwnerProjects groups another owner's shared projects under their name.
type OwnerProjects struct {
	Owner    string `json:"owner"`
	Projects []Node `json:"projects"`
}

// ProjectsView is the aggregate listing: the user's own forest plus the
// projects shared into groups they accepted, sectioned per owner. Etag lets
// clients short-circuit unchanged re-reads.
type ProjectsView struct {
	Owned  []Node          `json:"owned"`
	Shared []OwnerProjects `json:"shared"`
	Etag   string          `json:"etag"`
}

// GetProjects assembles the owned forest and the shared sections. Shared
// owners follow the user's stored order; owners without a stored position
// sort by name at the end.
func (m *Manager) GetProjects(ctx context.Context, userID uuid.UUID) (ProjectsView, error) {
	var view ProjectsView

	roots, err := m.db.ListProjects(ctx, database.ListProjectsParams{
		OwnerID:      util.Some(userID),
		TopLevelOnly: true,
	})
	if err != nil {
		return view, err
	}
	view.Owned, err = m.buildForest(ctx, roots)
	if err != nil {
		return view, err
	}

	view.Shared, err = m.sharedSections(ctx, userID)
	if err != nil {
		return view, err
	}

	view.Etag = util.Etag(view)
	return view, nil
}

func (m *Manager) buildForest(ctx context.Context, roots []database.Project) ([]Node, error) {
	nodes := make([]Node, 0, len(roots))
	for _, root := range roots {
		children, err := m.db.ListChildProjects(ctx, root.ID)
		if err != nil {
			return nil, err
		}
		childNodes, err := m.buildForest(ctx, children)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, Node{Project: root, Children: childNodes})
	}
	return nodes, nil
}

func (m *Manager) sharedSections(ctx context.Context, userID uuid.UUID) ([]OwnerProjects, error) {
	groups, err := m.db.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byOwner := make(map[string][]Node)
	for _, group := range groups {
		projects, err := m.db.ListProjects(ctx, database.ListProjectsParams{
			GroupID:      util.Some(group.ID),
			TopLevelOnly: true,
		})
		if err != nil {
			return nil, err
		}
		for _, project := range projects {
			if project.OwnerID == userID {
				continue
			}
			owner, err := m.db.GetUserByID(ctx, project.OwnerID)
			if err != nil {
				return nil, err
			}
			children, err := m.db.ListChildProjects(ctx, project.ID)
			if err != nil {
				return nil, err
			}
			childNodes, err := m.buildForest(ctx, children)
			if err != nil {
				return nil, err
			}
			byOwner[owner.Name] = append(byOwner[owner.Name], Node{Project: project, Children: childNodes})
		}
	}
	if len(byOwner) == 0 {
		return nil, nil
	}

	order, err := m.db.GetSharedProjectsOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	ranked := make(map[string]int, len(order))
	for i, owner := range order {
		ranked[owner] = i
	}
	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		ri, iOK := ranked[owners[i]]
		rj, jOK := ranked[owners[j]]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return owners[i] < owners[j]
		}
	})

	sections := make([]OwnerProjects, 0, len(owners))
	for _, owner := range owners {
		sections = append(sections, OwnerProjects{Owner: owner, Projects: byOwner[owner]})
	}
	return sections, nil
}

func getProject(ctx context.Context, db database.Store, projectID uuid.UUID) (database.Project, error) {
	project, err := db.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			return project, fmt.Errorf("project %s not found: %w", projectID, errs.ErrResourceNotFound)
		}
		return project, err
	}
	return project, nil
}

func acceptedMemberSet(ctx context.Context, db database.Store, groupID uuid.UUID) (map[uuid.UUID]bool, error) {
	members, err := db.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	set := make(map[uuid.UUID]bool, len(members))
	for _, member := range members {
		if member.Accepted {
			set[member.UserID] = true
		}
	}
	return set, nil
}

// groupMemberEvents builds one event per accepted group member except the
// excluded user, typically the requester.
func groupMemberEvents(ctx context.Context, db database.Store, groupID, contentID uuid.UUID, contentName string, exclude uuid.UUID) ([]notifications.Event, error) {
	members, err := db.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	var events []notifications.Event
	for _, member := range members {
		if !member.Accepted || member.UserID == exclude {
			continue
		}
		events = append(events, notifications.Event{
			TargetUser:  member.UserID,
			ContentID:   contentID,
			ContentName: contentName,
		})
	}
	return events, nil
}
