package sharing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"journal/internal/database"
	"journal/internal/database/storetest"
	"journal/internal/errs"
	"journal/internal/notifications"
	"journal/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	manager Manager
	store   *storetest.Store
	alice   database.User
	bob     database.User
	item    database.ProjectItem
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	store := storetest.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewManager(logger, store)

	alice, err := store.CreateUser(ctx, database.CreateUserParams{Name: "alice"})
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, database.CreateUserParams{Name: "bob"})
	require.NoError(t, err)

	group, err := store.CreateGroup(ctx, database.CreateGroupParams{Name: "team", OwnerID: alice.ID})
	require.NoError(t, err)
	_, err = store.CreateUserGroup(ctx, database.CreateUserGroupParams{UserID: alice.ID, GroupID: group.ID, Accepted: true})
	require.NoError(t, err)
	project, err := store.CreateProject(ctx, database.CreateProjectParams{
		Name: "chores", OwnerID: alice.ID, GroupID: group.ID, Type: database.ProjectTypeTodo,
	})
	require.NoError(t, err)
	item, err := store.CreateProjectItem(ctx, database.CreateProjectItemParams{
		ProjectID: project.ID, OwnerID: alice.ID, Type: database.ItemTypeTask, Name: "laundry",
	})
	require.NoError(t, err)

	return fixture{manager: manager, store: store, alice: alice, bob: bob, item: item}
}

func TestShareItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	event, err := f.manager.ShareItem(ctx, f.alice.ID, ShareItemParams{
		ItemID:     f.item.ID,
		Usernames:  []string{"bob"},
		Permission: database.SharePermissionRead,
	})
	require.NoError(t, err)
	assert.Equal(t, notifications.KindShareItem, event.Kind())
	require.Len(t, event.Events(), 1)
	assert.Equal(t, f.bob.ID, event.Events()[0].TargetUser)

	share, err := f.store.GetItemShare(ctx, f.item.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SharePermissionRead, share.Permission)
}

func TestShareItemIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.ShareItem(ctx, f.alice.ID, ShareItemParams{
		ItemID:     f.item.ID,
		Usernames:  []string{"bob"},
		Permission: database.SharePermissionRead,
	})
	require.NoError(t, err)

	// Re-sharing updates the permission in place without a second event.
	event, err := f.manager.ShareItem(ctx, f.alice.ID, ShareItemParams{
		ItemID:     f.item.ID,
		Usernames:  []string{"bob"},
		Permission: database.SharePermissionWrite,
	})
	require.NoError(t, err)
	assert.Empty(t, event.Events())

	share, err := f.store.GetItemShare(ctx, f.item.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, database.SharePermissionWrite, share.Permission)

	shares, err := f.store.ListItemShares(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Len(t, shares, 1)
}

func TestShareItemSkipsOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	event, err := f.manager.ShareItem(ctx, f.alice.ID, ShareItemParams{
		ItemID:     f.item.ID,
		Usernames:  []string{"alice"},
		Permission: database.SharePermissionWrite,
	})
	require.NoError(t, err)
	assert.Empty(t, event.Events())

	_, err = f.store.GetItemShare(ctx, f.item.ID, f.alice.ID)
	assert.ErrorIs(t, err, database.ErrItemShareNotFound)
}

func TestRevokeShare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.manager.RevokeShare(ctx, f.alice.ID, f.item.ID, "bob")
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)

	_, err = f.manager.ShareItem(ctx, f.alice.ID, ShareItemParams{
		ItemID:     f.item.ID,
		Usernames:  []string{"bob"},
		Permission: database.SharePermissionRead,
	})
	require.NoError(t, err)

	require.NoError(t, f.manager.RevokeShare(ctx, f.alice.ID, f.item.ID, "bob"))
	_, err = f.store.GetItemShare(ctx, f.item.ID, f.bob.ID)
	assert.ErrorIs(t, err, database.ErrItemShareNotFound)
}

func TestResolvePublicLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	link, err := f.manager.GeneratePublicLink(ctx, f.alice.ID, f.item.ID, util.None[time.Duration]())
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)

	resolution, err := f.manager.ResolvePublicLink(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, LinkOK, resolution.Status)
	assert.Equal(t, f.item.ID, resolution.ItemID)

	resolution, err = f.manager.ResolvePublicLink(ctx, "no-such-token")
	require.NoError(t, err)
	assert.Equal(t, LinkNotFound, resolution.Status)

	require.NoError(t, f.manager.RevokeLink(ctx, f.alice.ID, f.item.ID))
	resolution, err = f.manager.ResolvePublicLink(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, LinkRevoked, resolution.Status)
}

func TestResolvePublicLinkExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A sub-second TTL truncates to zero seconds, so the link is already
	// expired by the time it is resolved.
	link, err := f.manager.GeneratePublicLink(ctx, f.alice.ID, f.item.ID, util.Some(time.Millisecond))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	resolution, err := f.manager.ResolvePublicLink(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, LinkExpired, resolution.Status)
	assert.Equal(t, f.item.ID, resolution.ItemID)

	// Revocation wins over expiry.
	require.NoError(t, f.manager.RevokeLink(ctx, f.alice.ID, f.item.ID))
	resolution, err = f.manager.ResolvePublicLink(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, LinkRevoked, resolution.Status)
}

func TestGeneratePublicLinkRejectsNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.GeneratePublicLink(ctx, f.alice.ID, f.item.ID, util.Some(-time.Minute))
	assert.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestShareItemRequiresWriteAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.ShareItem(ctx, f.bob.ID, ShareItemParams{
		ItemID:     f.item.ID,
		Usernames:  []string{"bob"},
		Permission: database.SharePermissionWrite,
	})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}
