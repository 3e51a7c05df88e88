package notifications

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"journal/internal/database"
	"journal/internal/database/storetest"
	"journal/internal/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	batches []Batch
}

func (n *recordingNotifier) Deliver(_ context.Context, batch Batch) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, batch)
	return nil
}

func (n *recordingNotifier) recorded() []Batch {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Batch(nil), n.batches...)
}

func runService(t *testing.T, service *Service) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = service.Run(ctx, "notifications")
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("service did not drain in time")
		}
	}
}

func TestServiceDispatch(t *testing.T) {
	store := storetest.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &recordingNotifier{}
	service := NewService(logger, store, notifier)

	originator := uuid.New()
	target1 := uuid.New()
	target2 := uuid.New()
	groupID := uuid.New()

	stop := runService(t, service)
	service.Inform(NewJoinGroupEvent([]Event{
		{TargetUser: target1, ContentID: groupID, ContentName: "team"},
		{TargetUser: target2, ContentID: groupID, ContentName: "team"},
	}, originator))
	stop()

	batches := notifier.recorded()
	require.Len(t, batches, 1)
	assert.Equal(t, KindJoinGroup, batches[0].Kind)
	assert.Equal(t, originator, batches[0].Originator)
	assert.Len(t, batches[0].Events, 2)

	rows, err := store.ListNotifications(context.Background(), database.ListNotificationsParams{
		TargetUser: util.Some(target1),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(KindJoinGroup), rows[0].Kind)
	assert.Equal(t, "team", rows[0].ContentName)
	assert.Equal(t, originator, rows[0].Originator)
	assert.False(t, rows[0].IsRead)
}

func TestInformDropsEmptyBatches(t *testing.T) {
	store := storetest.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &recordingNotifier{}
	service := NewService(logger, store, notifier)

	stop := runService(t, service)
	service.Inform(nil)
	service.Inform(NewRemoveGroupEvent(nil, uuid.New()))
	stop()

	assert.Empty(t, notifier.recorded())
}

func TestRedisNotifierPublishesPerUser(t *testing.T) {
	mr := miniredis.RunT(t)

	notifier, err := NewRedisNotifier("redis://" + mr.Addr())
	require.NoError(t, err)
	defer notifier.Close()

	target := uuid.New()
	opts, err := redis.ParseURL("redis://" + mr.Addr())
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	sub := client.Subscribe(context.Background(), channelPrefix+target.String())
	defer sub.Close()
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	batch := Batch{
		Kind:       KindShareItem,
		Originator: uuid.New(),
		Events: []Event{
			{TargetUser: target, ContentID: uuid.New(), ContentName: "laundry"},
			{TargetUser: target, ContentID: uuid.New(), ContentName: "laundry"},
		},
	}
	require.NoError(t, notifier.Deliver(context.Background(), batch))

	msg, err := sub.ReceiveTimeout(context.Background(), time.Second)
	require.NoError(t, err)
	payload, ok := msg.(*redis.Message)
	require.True(t, ok)

	var received Batch
	require.NoError(t, json.Unmarshal([]byte(payload.Payload), &received))
	assert.Equal(t, KindShareItem, received.Kind)
	assert.Len(t, received.Events, 2)

	// Duplicate targets collapse to a single publish per channel.
	_, err = sub.ReceiveTimeout(context.Background(), 100*time.Millisecond)
	assert.Error(t, err)
}
