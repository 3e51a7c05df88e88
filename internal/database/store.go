package database

import (
	"context"

	"journal/internal/util"

	"github.com/google/uuid"
)

// Store is the persistence boundary consumed by the managers: get-by-id,
// get-children-by-parent, save, delete and uniqueness lookups, plus the
// transactional unit of work. *Database implements it against Postgres; tests
// substitute an in-memory fake.
type Store interface {
	// WithTx runs fn inside one atomic unit of work. All reads and writes fn
	// performs through tx share a single commit/rollback boundary.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUser(ctx context.Context, params GetUserParams) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)

	CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error)
	GetGroup(ctx context.Context, params GetGroupParams) (Group, error)
	GetGroupByID(ctx context.Context, id uuid.UUID) (Group, error)
	ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]Group, error)
	UpdateGroupByID(ctx context.Context, id uuid.UUID, params UpdateGroupParams) error
	DeleteGroupByID(ctx context.Context, id uuid.UUID) error

	CreateUserGroup(ctx context.Context, params CreateUserGroupParams) (UserGroup, error)
	GetUserGroup(ctx context.Context, userID, groupID uuid.UUID) (UserGroup, error)
	IsAcceptedMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error)
	ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]UserGroup, error)
	UpdateUserGroupAccepted(ctx context.Context, userID, groupID uuid.UUID, accepted bool) error
	DeleteUserGroup(ctx context.Context, userID, groupID uuid.UUID) error

	CreateProject(ctx context.Context, params CreateProjectParams) (Project, error)
	GetProjectByID(ctx context.Context, id uuid.UUID) (Project, error)
	GetProjectForUpdate(ctx context.Context, id uuid.UUID) (Project, error)
	ListProjects(ctx context.Context, params ListProjectsParams) ([]Project, error)
	ListChildProjects(ctx context.Context, parentID uuid.UUID) ([]Project, error)
	UpdateProjectByID(ctx context.Context, id uuid.UUID, params UpdateProjectParams) error
	SetProjectParent(ctx context.Context, id uuid.UUID, parentID util.Optional[uuid.UUID], position int) error
	DeleteProjectByID(ctx context.Context, id uuid.UUID) error
	GetSharedProjectsOrder(ctx context.Context, userID uuid.UUID) ([]string, error)
	UpsertSharedProjectsOrder(ctx context.Context, userID uuid.UUID, owners []string) error

	CreateProjectItem(ctx context.Context, params CreateProjectItemParams) (ProjectItem, error)
	GetProjectItemByID(ctx context.Context, id uuid.UUID) (ProjectItem, error)
	GetProjectItemForUpdate(ctx context.Context, id uuid.UUID) (ProjectItem, error)
	ListProjectItems(ctx context.Context, projectID uuid.UUID) ([]ProjectItem, error)
	UpdateProjectItemByID(ctx context.Context, id uuid.UUID, params UpdateProjectItemParams) error
	DeleteProjectItemByID(ctx context.Context, id uuid.UUID) error

	CreateContent(ctx context.Context, params CreateContentParams) (Content, error)
	GetContentByID(ctx context.Context, id uuid.UUID) (Content, error)
	GetContentForUpdate(ctx context.Context, id uuid.UUID) (Content, error)
	ListContents(ctx context.Context, itemID uuid.UUID) ([]Content, error)
	UpdateContentText(ctx context.Context, id uuid.UUID, text string) error
	DeleteContentByID(ctx context.Context, id uuid.UUID) error
	CreateRevision(ctx context.Context, params CreateRevisionParams) (Revision, error)
	GetRevision(ctx context.Context, contentID, revisionID uuid.UUID) (Revision, error)
	ListRevisions(ctx context.Context, contentID uuid.UUID) ([]Revision, error)
	DeleteRevisionsByContentID(ctx context.Context, contentID uuid.UUID) error

	CreateItemShare(ctx context.Context, params CreateItemShareParams) (ItemShare, error)
	GetItemShare(ctx context.Context, itemID, granteeID uuid.UUID) (ItemShare, error)
	ListItemShares(ctx context.Context, itemID uuid.UUID) ([]ItemShare, error)
	UpdateItemSharePermission(ctx context.Context, itemID, granteeID uuid.UUID, permission SharePermission) error
	DeleteItemShare(ctx context.Context, itemID, granteeID uuid.UUID) error
	DeleteItemSharesByItemID(ctx context.Context, itemID uuid.UUID) error

	CreatePublicLink(ctx context.Context, params CreatePublicLinkParams) (PublicLink, error)
	GetPublicLinkByToken(ctx context.Context, token string) (PublicLink, error)
	GetPublicLinkByItemID(ctx context.Context, itemID uuid.UUID) (PublicLink, error)
	RevokePublicLinksByItemID(ctx context.Context, itemID uuid.UUID) error
	DeletePublicLinksByItemID(ctx context.Context, itemID uuid.UUID) error

	CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error)
	ListNotifications(ctx context.Context, params ListNotificationsParams) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) error
}

var _ Store = (*Database)(nil)
