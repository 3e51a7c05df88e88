// Package storetest provides an in-memory database.Store for manager tests.
// Data lives in plain slices; list methods reproduce the SQL orderings.
// WithTx runs the callback against the same state without isolation, which
// is sufficient for single-goroutine tests.
package storetest

import (
	"bytes"
	"context"
	"sort"
	"time"

	"journal/internal/database"
	"journal/internal/util"

	"github.com/google/uuid"
)

type Store struct {
	users         []database.User
	groups        []database.Group
	userGroups    []database.UserGroup
	projects      []database.Project
	items         []database.ProjectItem
	contents      []database.Content
	revisions     []database.Revision
	shares        []database.ItemShare
	links         []database.PublicLink
	notifications []database.Notification
	sharedOrders  map[uuid.UUID][]string
}

func New() *Store {
	return &Store{sharedOrders: make(map[uuid.UUID][]string)}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx database.Store) error) error {
	return fn(s)
}

func (s *Store) CreateUser(ctx context.Context, params database.CreateUserParams) (database.User, error) {
	user := database.User{
		ID:        uuid.New(),
		Name:      params.Name,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.users = append(s.users, user)
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, params database.GetUserParams) (database.User, error) {
	for _, user := range s.users {
		if params.ID.IsSet && user.ID != params.ID.Val {
			continue
		}
		if params.Name.IsSet && user.Name != params.Name.Val {
			continue
		}
		return user, nil
	}
	return database.User{}, database.ErrUserNotFound
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	return s.GetUser(ctx, database.GetUserParams{ID: util.Some(id)})
}

func (s *Store) GetUserByName(ctx context.Context, name string) (database.User, error) {
	return s.GetUser(ctx, database.GetUserParams{Name: util.Some(name)})
}

func (s *Store) CreateGroup(ctx context.Context, params database.CreateGroupParams) (database.Group, error) {
	group := database.Group{
		ID:        uuid.New(),
		Name:      params.Name,
		OwnerID:   params.OwnerID,
		IsDefault: params.IsDefault,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.groups = append(s.groups, group)
	return group, nil
}

func (s *Store) GetGroup(ctx context.Context, params database.GetGroupParams) (database.Group, error) {
	for _, group := range s.groups {
		if params.ID.IsSet && group.ID != params.ID.Val {
			continue
		}
		if params.Name.IsSet && group.Name != params.Name.Val {
			continue
		}
		if params.OwnerID.IsSet && group.OwnerID != params.OwnerID.Val {
			continue
		}
		if params.IsDefault.IsSet && group.IsDefault != params.IsDefault.Val {
			continue
		}
		return group, nil
	}
	return database.Group{}, database.ErrGroupNotFound
}

func (s *Store) GetGroupByID(ctx context.Context, id uuid.UUID) (database.Group, error) {
	return s.GetGroup(ctx, database.GetGroupParams{ID: util.Some(id)})
}

func (s *Store) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]database.Group, error) {
	var groups []database.Group
	for _, membership := range s.userGroups {
		if membership.UserID != userID {
			continue
		}
		for _, group := range s.groups {
			if group.ID == membership.GroupID {
				groups = append(groups, group)
			}
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		di := groups[i].IsDefault && groups[i].OwnerID == userID
		dj := groups[j].IsDefault && groups[j].OwnerID == userID
		if di != dj {
			return di
		}
		return bytes.Compare(groups[i].ID[:], groups[j].ID[:]) < 0
	})
	return groups, nil
}

func (s *Store) UpdateGroupByID(ctx context.Context, id uuid.UUID, params database.UpdateGroupParams) error {
	for i := range s.groups {
		if s.groups[i].ID != id {
			continue
		}
		if params.Name.IsSet {
			s.groups[i].Name = params.Name.Val
			s.groups[i].UpdatedAt = time.Now().UTC()
		}
		return nil
	}
	return database.ErrGroupNotFound
}

func (s *Store) DeleteGroupByID(ctx context.Context, id uuid.UUID) error {
	for i := range s.groups {
		if s.groups[i].ID == id {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			return nil
		}
	}
	return database.ErrGroupNotFound
}

func (s *Store) CreateUserGroup(ctx context.Context, params database.CreateUserGroupParams) (database.UserGroup, error) {
	membership := database.UserGroup{
		UserID:    params.UserID,
		GroupID:   params.GroupID,
		Accepted:  params.Accepted,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.userGroups = append(s.userGroups, membership)
	return membership, nil
}

func (s *Store) GetUserGroup(ctx context.Context, userID, groupID uuid.UUID) (database.UserGroup, error) {
	for _, membership := range s.userGroups {
		if membership.UserID == userID && membership.GroupID == groupID {
			return membership, nil
		}
	}
	return database.UserGroup{}, database.ErrUserGroupNotFound
}

func (s *Store) IsAcceptedMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	membership, err := s.GetUserGroup(ctx, userID, groupID)
	if err != nil {
		return false, nil
	}
	return membership.Accepted, nil
}

func (s *Store) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]database.UserGroup, error) {
	var members []database.UserGroup
	for _, membership := range s.userGroups {
		if membership.GroupID == groupID {
			members = append(members, membership)
		}
	}
	return members, nil
}

func (s *Store) UpdateUserGroupAccepted(ctx context.Context, userID, groupID uuid.UUID, accepted bool) error {
	for i := range s.userGroups {
		if s.userGroups[i].UserID == userID && s.userGroups[i].GroupID == groupID {
			s.userGroups[i].Accepted = accepted
			s.userGroups[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return database.ErrUserGroupNotFound
}

func (s *Store) DeleteUserGroup(ctx context.Context, userID, groupID uuid.UUID) error {
	for i := range s.userGroups {
		if s.userGroups[i].UserID == userID && s.userGroups[i].GroupID == groupID {
			s.userGroups = append(s.userGroups[:i], s.userGroups[i+1:]...)
			return nil
		}
	}
	return database.ErrUserGroupNotFound
}

func (s *Store) CreateProject(ctx context.Context, params database.CreateProjectParams) (database.Project, error) {
	position := 0
	for _, project := range s.projects {
		if project.OwnerID == params.OwnerID && project.ParentID == params.ParentID && project.Position >= position {
			position = project.Position + 1
		}
	}
	project := database.Project{
		ID:        uuid.New(),
		Name:      params.Name,
		OwnerID:   params.OwnerID,
		GroupID:   params.GroupID,
		Type:      params.Type,
		ParentID:  params.ParentID,
		Position:  position,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.projects = append(s.projects, project)
	return project, nil
}

func (s *Store) GetProjectByID(ctx context.Context, id uuid.UUID) (database.Project, error) {
	for _, project := range s.projects {
		if project.ID == id {
			return project, nil
		}
	}
	return database.Project{}, database.ErrProjectNotFound
}

func (s *Store) GetProjectForUpdate(ctx context.Context, id uuid.UUID) (database.Project, error) {
	return s.GetProjectByID(ctx, id)
}

func (s *Store) ListProjects(ctx context.Context, params database.ListProjectsParams) ([]database.Project, error) {
	var projects []database.Project
	for _, project := range s.projects {
		if params.OwnerID.IsSet && project.OwnerID != params.OwnerID.Val {
			continue
		}
		if params.GroupID.IsSet && project.GroupID != params.GroupID.Val {
			continue
		}
		if params.ParentID.IsSet && (!project.ParentID.IsSet || project.ParentID.Val != params.ParentID.Val) {
			continue
		}
		if params.TopLevelOnly && project.ParentID.IsSet {
			continue
		}
		if params.Name.IsSet && project.Name != params.Name.Val {
			continue
		}
		projects = append(projects, project)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].Position != projects[j].Position {
			return projects[i].Position < projects[j].Position
		}
		return bytes.Compare(projects[i].ID[:], projects[j].ID[:]) < 0
	})
	return projects, nil
}

func (s *Store) ListChildProjects(ctx context.Context, parentID uuid.UUID) ([]database.Project, error) {
	return s.ListProjects(ctx, database.ListProjectsParams{ParentID: util.Some(parentID)})
}

func (s *Store) UpdateProjectByID(ctx context.Context, id uuid.UUID, params database.UpdateProjectParams) error {
	for i := range s.projects {
		if s.projects[i].ID != id {
			continue
		}
		if params.Name.IsSet {
			s.projects[i].Name = params.Name.Val
		}
		if params.GroupID.IsSet {
			s.projects[i].GroupID = params.GroupID.Val
		}
		if params.Position.IsSet {
			s.projects[i].Position = params.Position.Val
		}
		s.projects[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return database.ErrProjectNotFound
}

func (s *Store) SetProjectParent(ctx context.Context, id uuid.UUID, parentID util.Optional[uuid.UUID], position int) error {
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects[i].ParentID = parentID
			s.projects[i].Position = position
			s.projects[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return database.ErrProjectNotFound
}

func (s *Store) DeleteProjectByID(ctx context.Context, id uuid.UUID) error {
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			return nil
		}
	}
	return database.ErrProjectNotFound
}

func (s *Store) GetSharedProjectsOrder(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.sharedOrders[userID], nil
}

func (s *Store) UpsertSharedProjectsOrder(ctx context.Context, userID uuid.UUID, owners []string) error {
	s.sharedOrders[userID] = append([]string(nil), owners...)
	return nil
}

func (s *Store) CreateProjectItem(ctx context.Context, params database.CreateProjectItemParams) (database.ProjectItem, error) {
	position := 0
	for _, item := range s.items {
		if item.ProjectID == params.ProjectID && item.Position >= position {
			position = item.Position + 1
		}
	}
	item := database.ProjectItem{
		ID:         uuid.New(),
		ProjectID:  params.ProjectID,
		OwnerID:    params.OwnerID,
		Type:       params.Type,
		Name:       params.Name,
		Labels:     params.Labels,
		Position:   position,
		AssigneeID: params.AssigneeID,
		DueAt:      params.DueAt,
		Amount:     params.Amount,
		PayerID:    params.PayerID,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	s.items = append(s.items, item)
	return item, nil
}

func (s *Store) GetProjectItemByID(ctx context.Context, id uuid.UUID) (database.ProjectItem, error) {
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return database.ProjectItem{}, database.ErrProjectItemNotFound
}

func (s *Store) GetProjectItemForUpdate(ctx context.Context, id uuid.UUID) (database.ProjectItem, error) {
	return s.GetProjectItemByID(ctx, id)
}

func (s *Store) ListProjectItems(ctx context.Context, projectID uuid.UUID) ([]database.ProjectItem, error) {
	var items []database.ProjectItem
	for _, item := range s.items {
		if item.ProjectID == projectID {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items, nil
}

func (s *Store) UpdateProjectItemByID(ctx context.Context, id uuid.UUID, params database.UpdateProjectItemParams) error {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if params.Name.IsSet {
			s.items[i].Name = params.Name.Val
		}
		if params.ProjectID.IsSet {
			s.items[i].ProjectID = params.ProjectID.Val
		}
		if params.Labels.IsSet {
			s.items[i].Labels = params.Labels.Val
		}
		if params.AssigneeID.IsSet {
			s.items[i].AssigneeID = params.AssigneeID.Val
		}
		if params.DueAt.IsSet {
			s.items[i].DueAt = params.DueAt.Val
		}
		if params.Position.IsSet {
			s.items[i].Position = params.Position.Val
		}
		s.items[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return database.ErrProjectItemNotFound
}

func (s *Store) DeleteProjectItemByID(ctx context.Context, id uuid.UUID) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return database.ErrProjectItemNotFound
}

func (s *Store) CreateContent(ctx context.Context, params database.CreateContentParams) (database.Content, error) {
	content := database.Content{
		ID:        uuid.New(),
		ItemID:    params.ItemID,
		OwnerID:   params.OwnerID,
		Text:      params.Text,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.contents = append(s.contents, content)
	return content, nil
}

func (s *Store) GetContentByID(ctx context.Context, id uuid.UUID) (database.Content, error) {
	for _, content := range s.contents {
		if content.ID == id {
			return content, nil
		}
	}
	return database.Content{}, database.ErrContentNotFound
}

func (s *Store) GetContentForUpdate(ctx context.Context, id uuid.UUID) (database.Content, error) {
	return s.GetContentByID(ctx, id)
}

func (s *Store) ListContents(ctx context.Context, itemID uuid.UUID) ([]database.Content, error) {
	var contents []database.Content
	for _, content := range s.contents {
		if content.ItemID == itemID {
			contents = append(contents, content)
		}
	}
	return contents, nil
}

func (s *Store) UpdateContentText(ctx context.Context, id uuid.UUID, text string) error {
	for i := range s.contents {
		if s.contents[i].ID == id {
			s.contents[i].Text = text
			s.contents[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return database.ErrContentNotFound
}

func (s *Store) DeleteContentByID(ctx context.Context, id uuid.UUID) error {
	for i := range s.contents {
		if s.contents[i].ID == id {
			s.contents = append(s.contents[:i], s.contents[i+1:]...)
			return nil
		}
	}
	return database.ErrContentNotFound
}

func (s *Store) CreateRevision(ctx context.Context, params database.CreateRevisionParams) (database.Revision, error) {
	number := 1
	for _, revision := range s.revisions {
		if revision.ContentID == params.ContentID && revision.Number >= number {
			number = revision.Number + 1
		}
	}
	revision := database.Revision{
		ID:        uuid.New(),
		ContentID: params.ContentID,
		Number:    number,
		AuthorID:  params.AuthorID,
		Text:      params.Text,
		CreatedAt: time.Now().UTC(),
	}
	s.revisions = append(s.revisions, revision)
	return revision, nil
}

func (s *Store) GetRevision(ctx context.Context, contentID, revisionID uuid.UUID) (database.Revision, error) {
	for _, revision := range s.revisions {
		if revision.ContentID == contentID && revision.ID == revisionID {
			return revision, nil
		}
	}
	return database.Revision{}, database.ErrRevisionNotFound
}

func (s *Store) ListRevisions(ctx context.Context, contentID uuid.UUID) ([]database.Revision, error) {
	var revisions []database.Revision
	for _, revision := range s.revisions {
		if revision.ContentID == contentID {
			revisions = append(revisions, revision)
		}
	}
	sort.SliceStable(revisions, func(i, j int) bool {
		return revisions[i].Number < revisions[j].Number
	})
	return revisions, nil
}

func (s *Store) DeleteRevisionsByContentID(ctx context.Context, contentID uuid.UUID) error {
	kept := s.revisions[:0]
	for _, revision := range s.revisions {
		if revision.ContentID != contentID {
			kept = append(kept, revision)
		}
	}
	s.revisions = kept
	return nil
}

func (s *Store) CreateItemShare(ctx context.Context, params database.CreateItemShareParams) (database.ItemShare, error) {
	share := database.ItemShare{
		ItemID:     params.ItemID,
		GranteeID:  params.GranteeID,
		Permission: params.Permission,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	s.shares = append(s.shares, share)
	return share, nil
}

func (s *Store) GetItemShare(ctx context.Context, itemID, granteeID uuid.UUID) (database.ItemShare, error) {
	for _, share := range s.shares {
		if share.ItemID == itemID && share.GranteeID == granteeID {
			return share, nil
		}
	}
	return database.ItemShare{}, database.ErrItemShareNotFound
}

func (s *Store) ListItemShares(ctx context.Context, itemID uuid.UUID) ([]database.ItemShare, error) {
	var shares []database.ItemShare
	for _, share := range s.shares {
		if share.ItemID == itemID {
			shares = append(shares, share)
		}
	}
	return shares, nil
}

func (s *Store) UpdateItemSharePermission(ctx context.Context, itemID, granteeID uuid.UUID, permission database.SharePermission) error {
	for i := range s.shares {
		if s.shares[i].ItemID == itemID && s.shares[i].GranteeID == granteeID {
			s.shares[i].Permission = permission
			s.shares[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return database.ErrItemShareNotFound
}

func (s *Store) DeleteItemShare(ctx context.Context, itemID, granteeID uuid.UUID) error {
	for i := range s.shares {
		if s.shares[i].ItemID == itemID && s.shares[i].GranteeID == granteeID {
			s.shares = append(s.shares[:i], s.shares[i+1:]...)
			return nil
		}
	}
	return database.ErrItemShareNotFound
}

func (s *Store) DeleteItemSharesByItemID(ctx context.Context, itemID uuid.UUID) error {
	kept := s.shares[:0]
	for _, share := range s.shares {
		if share.ItemID != itemID {
			kept = append(kept, share)
		}
	}
	s.shares = kept
	return nil
}

func (s *Store) CreatePublicLink(ctx context.Context, params database.CreatePublicLinkParams) (database.PublicLink, error) {
	link := database.PublicLink{
		Token:      params.Token,
		ItemID:     params.ItemID,
		IssuedAt:   time.Now().UTC(),
		TTLSeconds: params.TTLSeconds,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	s.links = append(s.links, link)
	return link, nil
}

func (s *Store) GetPublicLinkByToken(ctx context.Context, token string) (database.PublicLink, error) {
	for _, link := range s.links {
		if link.Token == token {
			return link, nil
		}
	}
	return database.PublicLink{}, database.ErrPublicLinkNotFound
}

func (s *Store) GetPublicLinkByItemID(ctx context.Context, itemID uuid.UUID) (database.PublicLink, error) {
	for i := len(s.links) - 1; i >= 0; i-- {
		if s.links[i].ItemID == itemID && !s.links[i].Revoked {
			return s.links[i], nil
		}
	}
	return database.PublicLink{}, database.ErrPublicLinkNotFound
}

func (s *Store) RevokePublicLinksByItemID(ctx context.Context, itemID uuid.UUID) error {
	for i := range s.links {
		if s.links[i].ItemID == itemID {
			s.links[i].Revoked = true
			s.links[i].UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *Store) DeletePublicLinksByItemID(ctx context.Context, itemID uuid.UUID) error {
	kept := s.links[:0]
	for _, link := range s.links {
		if link.ItemID != itemID {
			kept = append(kept, link)
		}
	}
	s.links = kept
	return nil
}

func (s *Store) CreateNotification(ctx context.Context, params database.CreateNotificationParams) (database.Notification, error) {
	notification := database.Notification{
		ID:          uuid.New(),
		TargetUser:  params.TargetUser,
		Originator:  params.Originator,
		Kind:        params.Kind,
		ContentID:   params.ContentID,
		ContentName: params.ContentName,
		CreatedAt:   time.Now().UTC(),
	}
	s.notifications = append(s.notifications, notification)
	return notification, nil
}

func (s *Store) ListNotifications(ctx context.Context, params database.ListNotificationsParams) ([]database.Notification, error) {
	var notifications []database.Notification
	for _, notification := range s.notifications {
		if params.TargetUser.IsSet && notification.TargetUser != params.TargetUser.Val {
			continue
		}
		if params.Unread.IsSet && notification.IsRead == params.Unread.Val {
			continue
		}
		notifications = append(notifications, notification)
		if params.Limit.IsSet && len(notifications) == params.Limit.Val {
			break
		}
	}
	return notifications, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return nil
}

var _ database.Store = (*Store)(nil)
