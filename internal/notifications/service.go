package notifications

import (
	"context"
	"log/slog"

	"journal/internal/database"

	"github.com/google/uuid"
)

// Batch is the serialized form handed to the downstream notifier, exactly
// once per committed mutation that produced at least one event.
type Batch struct {
	Kind       Kind      `json:"kind"`
	Originator uuid.UUID `json:"originator"`
	Events     []Event   `json:"events"`
}

// Notifier is the transport boundary. Delivery retries are the notifier's
// concern, not this core's.
type Notifier interface {
	Deliver(ctx context.Context, batch Batch) error
}

// NopNotifier discards batches. Used in development and as a test default.
type NopNotifier struct{}

func (NopNotifier) Deliver(context.Context, Batch) error { return nil }

// Service accumulates informables after their transactions commit and
// dispatches each exactly once: one notification row per target user, one
// Deliver call per batch.
type Service struct {
	logger   *slog.Logger
	db       database.Store
	notifier Notifier
	queue    chan Informable
}

func NewService(logger *slog.Logger, db database.Store, notifier Notifier) *Service {
	return &Service{
		logger:   logger,
		db:       db,
		notifier: notifier,
		queue:    make(chan Informable, 256),
	}
}

// Inform hands a committed mutation's event batch to the fan-out worker.
// Callers must only invoke it after their transaction committed, so a rolled
// back change never notifies anyone. Empty batches are dropped.
func (s *Service) Inform(informable Informable) {
	if informable == nil || len(informable.Events()) == 0 {
		return
	}
	s.queue <- informable
}

// Run consumes the queue until the context is cancelled, draining whatever is
// already enqueued before returning. Satisfies the daemon func signature.
func (s *Service) Run(ctx context.Context, name string) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case informable := <-s.queue:
					s.dispatch(context.WithoutCancel(ctx), informable)
				default:
					return nil
				}
			}
		case informable := <-s.queue:
			s.dispatch(ctx, informable)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, informable Informable) {
	batch := Batch{
		Kind:       informable.Kind(),
		Originator: informable.Originator(),
		Events:     informable.Events(),
	}

	for _, event := range batch.Events {
		if _, err := s.db.CreateNotification(ctx, database.CreateNotificationParams{
			TargetUser:  event.TargetUser,
			Originator:  batch.Originator,
			Kind:        string(batch.Kind),
			ContentID:   event.ContentID,
			ContentName: event.ContentName,
		}); err != nil {
			s.logger.Error("failed to persist notification",
				"kind", batch.Kind, "target", event.TargetUser, "error", err)
		}
	}

	if err := s.notifier.Deliver(ctx, batch); err != nil {
		s.logger.Error("notifier delivery failed", "kind", batch.Kind, "error", err)
	}
}
