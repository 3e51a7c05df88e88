package content

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"journal/internal/database"
	"journal/internal/database/storetest"
	"journal/internal/errs"
	"journal/internal/search"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	manager Manager
	store   *storetest.Store
	alice   database.User
	item    database.ProjectItem
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	store := storetest.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewManager(logger, store, search.NopIndexer{})

	alice, err := store.CreateUser(ctx, database.CreateUserParams{Name: "alice"})
	require.NoError(t, err)
	group, err := store.CreateGroup(ctx, database.CreateGroupParams{Name: "team", OwnerID: alice.ID})
	require.NoError(t, err)
	_, err = store.CreateUserGroup(ctx, database.CreateUserGroupParams{UserID: alice.ID, GroupID: group.ID, Accepted: true})
	require.NoError(t, err)
	project, err := store.CreateProject(ctx, database.CreateProjectParams{
		Name: "recipes", OwnerID: alice.ID, GroupID: group.ID, Type: database.ProjectTypeNote,
	})
	require.NoError(t, err)
	item, err := store.CreateProjectItem(ctx, database.CreateProjectItemParams{
		ProjectID: project.ID, OwnerID: alice.ID, Type: database.ItemTypeNote, Name: "carbonara",
	})
	require.NoError(t, err)

	return fixture{manager: manager, store: store, alice: alice, item: item}
}

func TestAddContentSeedsRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	content, err := f.manager.AddContent(ctx, f.alice.ID, AddContentParams{ItemID: f.item.ID, Text: "eggs, guanciale"})
	require.NoError(t, err)
	assert.Equal(t, "eggs, guanciale", content.Text)

	revisions, err := f.manager.ListRevisions(ctx, f.alice.ID, f.item.ID, content.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 1)
	assert.Equal(t, 1, revisions[0].Number)
	assert.Equal(t, "eggs, guanciale", revisions[0].Text)
	assert.Equal(t, f.alice.ID, revisions[0].AuthorID)
}

func TestUpdateContentAppendsRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	content, err := f.manager.AddContent(ctx, f.alice.ID, AddContentParams{ItemID: f.item.ID, Text: "v1"})
	require.NoError(t, err)

	updated, err := f.manager.UpdateContent(ctx, f.alice.ID, f.item.ID, content.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Text)

	_, err = f.manager.UpdateContent(ctx, f.alice.ID, f.item.ID, content.ID, "v3")
	require.NoError(t, err)

	revisions, err := f.manager.ListRevisions(ctx, f.alice.ID, f.item.ID, content.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 3)

	// Revision numbers are strictly increasing and each update's revision
	// holds the text it replaced.
	for i, revision := range revisions {
		assert.Equal(t, i+1, revision.Number)
	}
	assert.Equal(t, "v1", revisions[1].Text)
	assert.Equal(t, "v2", revisions[2].Text)

	current, err := f.store.GetContentByID(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, "v3", current.Text)
}

func TestUpdateContentWrongItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	content, err := f.manager.AddContent(ctx, f.alice.ID, AddContentParams{ItemID: f.item.ID, Text: "v1"})
	require.NoError(t, err)

	_, err = f.manager.UpdateContent(ctx, f.alice.ID, uuid.New(), content.ID, "v2")
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)

	current, err := f.store.GetContentByID(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", current.Text)
}

func TestGetRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	content, err := f.manager.AddContent(ctx, f.alice.ID, AddContentParams{ItemID: f.item.ID, Text: "v1"})
	require.NoError(t, err)

	revisions, err := f.manager.ListRevisions(ctx, f.alice.ID, f.item.ID, content.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 1)

	revision, err := f.manager.GetRevision(ctx, f.alice.ID, f.item.ID, content.ID, revisions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", revision.Text)

	_, err = f.manager.GetRevision(ctx, f.alice.ID, f.item.ID, content.ID, uuid.New())
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)

	_, err = f.manager.GetRevision(ctx, f.alice.ID, f.item.ID, uuid.New(), revisions[0].ID)
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)
}

func TestDeleteContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	content, err := f.manager.AddContent(ctx, f.alice.ID, AddContentParams{ItemID: f.item.ID, Text: "v1"})
	require.NoError(t, err)

	require.NoError(t, f.manager.DeleteContent(ctx, f.alice.ID, f.item.ID, content.ID))

	_, err = f.store.GetContentByID(ctx, content.ID)
	assert.ErrorIs(t, err, database.ErrContentNotFound)
	revisions, err := f.store.ListRevisions(ctx, content.ID)
	require.NoError(t, err)
	assert.Empty(t, revisions)
}

func TestGetContentsRequiresAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.AddContent(ctx, f.alice.ID, AddContentParams{ItemID: f.item.ID, Text: "v1"})
	require.NoError(t, err)

	stranger, err := f.store.CreateUser(ctx, database.CreateUserParams{Name: "mallory"})
	require.NoError(t, err)

	_, err = f.manager.GetContents(ctx, stranger.ID, f.item.ID)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	contents, err := f.manager.GetContents(ctx, f.alice.ID, f.item.ID)
	require.NoError(t, err)
	assert.Len(t, contents, 1)
}
