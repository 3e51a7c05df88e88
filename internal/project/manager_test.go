package project

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"journal/internal/database"
	"journal/internal/database/storetest"
	"journal/internal/errs"
	"journal/internal/notifications"
	"journal/internal/search"
	"journal/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	manager Manager
	store   *storetest.Store
	alice   database.User
	bob     database.User
	group   database.Group
}

// newFixture wires a manager over the in-memory store with alice owning a
// group that bob has accepted membership in.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	store := storetest.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewManager(logger, store, search.NopIndexer{})

	alice, err := store.CreateUser(ctx, database.CreateUserParams{Name: "alice"})
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, database.CreateUserParams{Name: "bob"})
	require.NoError(t, err)

	group, err := store.CreateGroup(ctx, database.CreateGroupParams{Name: "team", OwnerID: alice.ID})
	require.NoError(t, err)
	for _, userID := range []uuid.UUID{alice.ID, bob.ID} {
		_, err = store.CreateUserGroup(ctx, database.CreateUserGroupParams{UserID: userID, GroupID: group.ID, Accepted: true})
		require.NoError(t, err)
	}

	return fixture{manager: manager, store: store, alice: alice, bob: bob, group: group}
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	project, event, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name:    "chores",
		GroupID: f.group.ID,
		Type:    database.ProjectTypeTodo,
	})
	require.NoError(t, err)
	assert.Equal(t, f.group.ID, project.GroupID)

	assert.Equal(t, notifications.KindCreateProject, event.Kind())
	require.Len(t, event.Events(), 1)
	assert.Equal(t, f.bob.ID, event.Events()[0].TargetUser)

	_, _, err = f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name:    "chores",
		GroupID: f.group.ID,
		Type:    database.ProjectTypeTodo,
	})
	assert.ErrorIs(t, err, errs.ErrResourceAlreadyExists)
}

func TestCreateProjectRequiresMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	carol, err := f.store.CreateUser(ctx, database.CreateUserParams{Name: "carol"})
	require.NoError(t, err)

	_, _, err = f.manager.CreateProject(ctx, carol.ID, CreateProjectParams{
		Name:    "chores",
		GroupID: f.group.ID,
		Type:    database.ProjectTypeTodo,
	})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, _, err = f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name:    "chores",
		GroupID: uuid.New(),
		Type:    database.ProjectTypeTodo,
	})
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)
}

func TestNestedProjectNamesMayRepeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	parent, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name:    "chores",
		GroupID: f.group.ID,
		Type:    database.ProjectTypeTodo,
	})
	require.NoError(t, err)

	_, _, err = f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name:     "chores",
		GroupID:  f.group.ID,
		Type:     database.ProjectTypeTodo,
		ParentID: util.Some(parent.ID),
	})
	assert.NoError(t, err)
}

func TestMoveProjectCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	root, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "root", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)
	child, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "child", GroupID: f.group.ID, Type: database.ProjectTypeTodo, ParentID: util.Some(root.ID),
	})
	require.NoError(t, err)
	grandchild, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "grandchild", GroupID: f.group.ID, Type: database.ProjectTypeTodo, ParentID: util.Some(child.ID),
	})
	require.NoError(t, err)

	err = f.manager.MoveProject(ctx, f.alice.ID, root.ID, util.Some(grandchild.ID))
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	err = f.manager.MoveProject(ctx, f.alice.ID, root.ID, util.Some(root.ID))
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	// Hierarchy unchanged after the rejected moves.
	got, err := f.store.GetProjectByID(ctx, root.ID)
	require.NoError(t, err)
	assert.False(t, got.ParentID.IsSet)

	// A legal re-parent still works.
	require.NoError(t, f.manager.MoveProject(ctx, f.alice.ID, grandchild.ID, util.Some(root.ID)))
	got, err = f.store.GetProjectByID(ctx, grandchild.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, got.ParentID.Val)
}

func TestDeleteProjectCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	root, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "root", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)
	sub, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "sub", GroupID: f.group.ID, Type: database.ProjectTypeTodo, ParentID: util.Some(root.ID),
	})
	require.NoError(t, err)

	task, err := f.manager.CreateTask(ctx, f.alice.ID, CreateItemParams{ProjectID: sub.ID, Name: "laundry"})
	require.NoError(t, err)

	content, err := f.store.CreateContent(ctx, database.CreateContentParams{ItemID: task.ID, OwnerID: f.alice.ID, Text: "whites only"})
	require.NoError(t, err)
	_, err = f.store.CreateRevision(ctx, database.CreateRevisionParams{ContentID: content.ID, AuthorID: f.alice.ID, Text: "whites only"})
	require.NoError(t, err)
	_, err = f.store.CreateItemShare(ctx, database.CreateItemShareParams{ItemID: task.ID, GranteeID: f.bob.ID, Permission: database.SharePermissionRead})
	require.NoError(t, err)
	_, err = f.store.CreatePublicLink(ctx, database.CreatePublicLinkParams{Token: "tok", ItemID: task.ID})
	require.NoError(t, err)

	event, err := f.manager.DeleteProject(ctx, f.alice.ID, root.ID)
	require.NoError(t, err)
	assert.Equal(t, notifications.KindRemoveProject, event.Kind())

	_, err = f.store.GetProjectByID(ctx, root.ID)
	assert.ErrorIs(t, err, database.ErrProjectNotFound)
	_, err = f.store.GetProjectByID(ctx, sub.ID)
	assert.ErrorIs(t, err, database.ErrProjectNotFound)
	_, err = f.store.GetProjectItemByID(ctx, task.ID)
	assert.ErrorIs(t, err, database.ErrProjectItemNotFound)
	_, err = f.store.GetContentByID(ctx, content.ID)
	assert.ErrorIs(t, err, database.ErrContentNotFound)

	revisions, err := f.store.ListRevisions(ctx, content.ID)
	require.NoError(t, err)
	assert.Empty(t, revisions)
	_, err = f.store.GetItemShare(ctx, task.ID, f.bob.ID)
	assert.ErrorIs(t, err, database.ErrItemShareNotFound)
	_, err = f.store.GetPublicLinkByToken(ctx, "tok")
	assert.ErrorIs(t, err, database.ErrPublicLinkNotFound)
}

func TestUpdateProjectGroupChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	carol, err := f.store.CreateUser(ctx, database.CreateUserParams{Name: "carol"})
	require.NoError(t, err)
	other, err := f.store.CreateGroup(ctx, database.CreateGroupParams{Name: "other", OwnerID: f.alice.ID})
	require.NoError(t, err)
	for _, userID := range []uuid.UUID{f.alice.ID, carol.ID} {
		_, err = f.store.CreateUserGroup(ctx, database.CreateUserGroupParams{UserID: userID, GroupID: other.ID, Accepted: true})
		require.NoError(t, err)
	}

	project, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "chores", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)

	updated, informables, err := f.manager.UpdateProject(ctx, f.alice.ID, project.ID, UpdateProjectParams{
		GroupID: util.Some(other.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, updated.GroupID)

	require.Len(t, informables, 2)
	kinds := map[notifications.Kind][]notifications.Event{}
	for _, informable := range informables {
		kinds[informable.Kind()] = informable.Events()
	}
	require.Len(t, kinds[notifications.KindJoinProject], 1)
	assert.Equal(t, carol.ID, kinds[notifications.KindJoinProject][0].TargetUser)
	require.Len(t, kinds[notifications.KindRemoveFromProject], 1)
	assert.Equal(t, f.bob.ID, kinds[notifications.KindRemoveFromProject][0].TargetUser)
}

func TestGetProjectsSharedSections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "chores", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)
	_, _, err = f.manager.CreateProject(ctx, f.bob.ID, CreateProjectParams{
		Name: "recipes", GroupID: f.group.ID, Type: database.ProjectTypeNote,
	})
	require.NoError(t, err)

	view, err := f.manager.GetProjects(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, view.Owned, 1)
	assert.Equal(t, "chores", view.Owned[0].Name)
	require.Len(t, view.Shared, 1)
	assert.Equal(t, "bob", view.Shared[0].Owner)
	require.Len(t, view.Shared[0].Projects, 1)
	assert.Equal(t, "recipes", view.Shared[0].Projects[0].Name)
	assert.NotEmpty(t, view.Etag)

	// An unchanged tree keeps the same etag.
	again, err := f.manager.GetProjects(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Etag, again.Etag)
}

func TestCreateTaskTypeMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	noteProject, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "recipes", GroupID: f.group.ID, Type: database.ProjectTypeNote,
	})
	require.NoError(t, err)

	_, err = f.manager.CreateTask(ctx, f.alice.ID, CreateItemParams{ProjectID: noteProject.ID, Name: "laundry"})
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	_, err = f.manager.CreateNote(ctx, f.alice.ID, CreateItemParams{ProjectID: noteProject.ID, Name: "carbonara"})
	assert.NoError(t, err)
}

func TestUpdateTaskAssignee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	todo, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "chores", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)

	task, err := f.manager.CreateTask(ctx, f.alice.ID, CreateItemParams{ProjectID: todo.ID, Name: "laundry"})
	require.NoError(t, err)

	event, err := f.manager.UpdateTaskAssignee(ctx, f.alice.ID, task.ID, util.Some(f.bob.ID))
	require.NoError(t, err)
	assert.Equal(t, notifications.KindUpdateAssignee, event.Kind())
	require.Len(t, event.Events(), 1)
	assert.Equal(t, f.bob.ID, event.Events()[0].TargetUser)

	// Reassigning to the requester notifies only the previous assignee.
	event, err = f.manager.UpdateTaskAssignee(ctx, f.alice.ID, task.ID, util.Some(f.alice.ID))
	require.NoError(t, err)
	require.Len(t, event.Events(), 1)
	assert.Equal(t, f.bob.ID, event.Events()[0].TargetUser)
}

func TestMoveProjectItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	source, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "chores", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)
	target, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "errands", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)
	notes, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "recipes", GroupID: f.group.ID, Type: database.ProjectTypeNote,
	})
	require.NoError(t, err)

	task, err := f.manager.CreateTask(ctx, f.alice.ID, CreateItemParams{ProjectID: source.ID, Name: "laundry"})
	require.NoError(t, err)

	err = f.manager.MoveProjectItem(ctx, f.alice.ID, task.ID, source.ID, notes.ID)
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	require.NoError(t, f.manager.MoveProjectItem(ctx, f.alice.ID, task.ID, source.ID, target.ID))
	moved, err := f.store.GetProjectItemByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, moved.ProjectID)

	// A second mover still holding the old source loses the race.
	err = f.manager.MoveProjectItem(ctx, f.alice.ID, task.ID, source.ID, notes.ID)
	assert.ErrorIs(t, err, errs.ErrConflict)

	// Moving to the current project is a no-op.
	assert.NoError(t, f.manager.MoveProjectItem(ctx, f.alice.ID, task.ID, source.ID, target.ID))
}

func TestMoveProjectItemUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	source, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "chores", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)
	task, err := f.manager.CreateTask(ctx, f.alice.ID, CreateItemParams{ProjectID: source.ID, Name: "laundry"})
	require.NoError(t, err)

	carol, err := f.store.CreateUser(ctx, database.CreateUserParams{Name: "carol"})
	require.NoError(t, err)

	// A caller with no membership and no share is denied even for a
	// would-be no-op move, and a stale source id surfaces the same denial
	// rather than a state-revealing Conflict.
	err = f.manager.MoveProjectItem(ctx, carol.ID, task.ID, source.ID, source.ID)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	err = f.manager.MoveProjectItem(ctx, carol.ID, task.ID, uuid.New(), source.ID)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	still, err := f.store.GetProjectItemByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, source.ID, still.ProjectID)
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	todo, _, err := f.manager.CreateProject(ctx, f.bob.ID, CreateProjectParams{
		Name: "chores", GroupID: f.group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)

	task, err := f.manager.CreateTask(ctx, f.bob.ID, CreateItemParams{ProjectID: todo.ID, Name: "laundry"})
	require.NoError(t, err)

	// Group owner deletes a member's item; the member is notified.
	event, err := f.manager.DeleteItem(ctx, f.alice.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, notifications.KindRemoveTask, event.Kind())
	require.Len(t, event.Events(), 1)
	assert.Equal(t, f.bob.ID, event.Events()[0].TargetUser)

	_, err = f.store.GetProjectItemByID(ctx, task.ID)
	assert.ErrorIs(t, err, database.ErrProjectItemNotFound)
}

func TestDeleteItemKindNamesVariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	notes, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "recipes", GroupID: f.group.ID, Type: database.ProjectTypeNote,
	})
	require.NoError(t, err)
	ledger, _, err := f.manager.CreateProject(ctx, f.alice.ID, CreateProjectParams{
		Name: "budget", GroupID: f.group.ID, Type: database.ProjectTypeLedger,
	})
	require.NoError(t, err)

	note, err := f.manager.CreateNote(ctx, f.bob.ID, CreateItemParams{ProjectID: notes.ID, Name: "carbonara"})
	require.NoError(t, err)
	transaction, err := f.manager.CreateTransaction(ctx, f.bob.ID, CreateItemParams{ProjectID: ledger.ID, Name: "rent"})
	require.NoError(t, err)

	event, err := f.manager.DeleteItem(ctx, f.alice.ID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, notifications.KindRemoveNote, event.Kind())

	event, err = f.manager.DeleteItem(ctx, f.alice.ID, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, notifications.KindRemoveTransaction, event.Kind())
}

func TestUpdateSharedProjectsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	carol, err := f.store.CreateUser(ctx, database.CreateUserParams{Name: "carol"})
	require.NoError(t, err)
	_, err = f.store.CreateUserGroup(ctx, database.CreateUserGroupParams{UserID: carol.ID, GroupID: f.group.ID, Accepted: true})
	require.NoError(t, err)

	_, _, err = f.manager.CreateProject(ctx, f.bob.ID, CreateProjectParams{
		Name: "recipes", GroupID: f.group.ID, Type: database.ProjectTypeNote,
	})
	require.NoError(t, err)
	_, _, err = f.manager.CreateProject(ctx, carol.ID, CreateProjectParams{
		Name: "budget", GroupID: f.group.ID, Type: database.ProjectTypeLedger,
	})
	require.NoError(t, err)

	// Ordering an owner who shares nothing with the user is rejected.
	err = f.manager.UpdateSharedProjectsOrder(ctx, f.alice.ID, []string{"mallory"})
	assert.ErrorIs(t, err, errs.ErrBadRequest)

	require.NoError(t, f.manager.UpdateSharedProjectsOrder(ctx, f.alice.ID, []string{"carol", "bob"}))

	view, err := f.manager.GetProjects(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, view.Shared, 2)
	assert.Equal(t, "carol", view.Shared[0].Owner)
	assert.Equal(t, "bob", view.Shared[1].Owner)
}
