// Package notifications converts committed mutations into typed events and
// fans them out to affected users, exactly once per batch.
package notifications

import "github.com/google/uuid"

type Kind string

const (
	KindJoinGroup         Kind = "JOIN_GROUP"
	KindRemoveGroup       Kind = "REMOVE_GROUP"
	KindCreateProject     Kind = "CREATE_PROJECT"
	KindJoinProject       Kind = "JOIN_PROJECT"
	KindRemoveFromProject Kind = "REMOVE_FROM_PROJECT"
	KindRemoveProject     Kind = "REMOVE_PROJECT"
	KindUpdateAssignee    Kind = "UPDATE_ASSIGNEE"
	KindRemoveTask        Kind = "REMOVE_TASK"
	KindRemoveNote        Kind = "REMOVE_NOTE"
	KindRemoveTransaction Kind = "REMOVE_TRANSACTION"
	KindShareItem         Kind = "SHARE_ITEM"
)

// Event is an immutable record of a state change destined for one target
// user. The user who caused the mutation never appears as a target of their
// own events; construction sites enforce this.
type Event struct {
	TargetUser  uuid.UUID `json:"targetUser"`
	ContentID   uuid.UUID `json:"contentId"`
	ContentName string    `json:"contentName"`
}

// Informable is one mutation's worth of logically related events, wrapped as
// a single typed object so downstream delivery can coalesce.
type Informable interface {
	Kind() Kind
	Events() []Event
	Originator() uuid.UUID
}

// EventBatch is the shared carrier embedded by every typed event.
type EventBatch struct {
	EventList []Event
	Origin    uuid.UUID
}

func (b EventBatch) Events() []Event       { return b.EventList }
func (b EventBatch) Originator() uuid.UUID { return b.Origin }

func newBatch(events []Event, originator uuid.UUID) EventBatch {
	return EventBatch{EventList: events, Origin: originator}
}

type JoinGroupEvent struct{ EventBatch }

func (JoinGroupEvent) Kind() Kind { return KindJoinGroup }

func NewJoinGroupEvent(events []Event, originator uuid.UUID) JoinGroupEvent {
	return JoinGroupEvent{newBatch(events, originator)}
}

type RemoveGroupEvent struct{ EventBatch }

func (RemoveGroupEvent) Kind() Kind { return KindRemoveGroup }

func NewRemoveGroupEvent(events []Event, originator uuid.UUID) RemoveGroupEvent {
	return RemoveGroupEvent{newBatch(events, originator)}
}

type CreateProjectEvent struct{ EventBatch }

func (CreateProjectEvent) Kind() Kind { return KindCreateProject }

func NewCreateProjectEvent(events []Event, originator uuid.UUID) CreateProjectEvent {
	return CreateProjectEvent{newBatch(events, originator)}
}

type JoinProjectEvent struct{ EventBatch }

func (JoinProjectEvent) Kind() Kind { return KindJoinProject }

func NewJoinProjectEvent(events []Event, originator uuid.UUID) JoinProjectEvent {
	return JoinProjectEvent{newBatch(events, originator)}
}

type RemoveFromProjectEvent struct{ EventBatch }

func (RemoveFromProjectEvent) Kind() Kind { return KindRemoveFromProject }

func NewRemoveFromProjectEvent(events []Event, originator uuid.UUID) RemoveFromProjectEvent {
	return RemoveFromProjectEvent{newBatch(events, originator)}
}

type RemoveProjectEvent struct{ EventBatch }

func (RemoveProjectEvent) Kind() Kind { return KindRemoveProject }

func NewRemoveProjectEvent(events []Event, originator uuid.UUID) RemoveProjectEvent {
	return RemoveProjectEvent{newBatch(events, originator)}
}

type UpdateAssigneeEvent struct{ EventBatch }

func (UpdateAssigneeEvent) Kind() Kind { return KindUpdateAssignee }

func NewUpdateAssigneeEvent(events []Event, originator uuid.UUID) UpdateAssigneeEvent {
	return UpdateAssigneeEvent{newBatch(events, originator)}
}

// RemoveItemEvent covers all three item variants; the kind names the
// variant that was removed.
type RemoveItemEvent struct {
	EventBatch
	ItemKind Kind
}

func (e RemoveItemEvent) Kind() Kind { return e.ItemKind }

func NewRemoveTaskEvent(events []Event, originator uuid.UUID) RemoveItemEvent {
	return RemoveItemEvent{newBatch(events, originator), KindRemoveTask}
}

func NewRemoveNoteEvent(events []Event, originator uuid.UUID) RemoveItemEvent {
	return RemoveItemEvent{newBatch(events, originator), KindRemoveNote}
}

func NewRemoveTransactionEvent(events []Event, originator uuid.UUID) RemoveItemEvent {
	return RemoveItemEvent{newBatch(events, originator), KindRemoveTransaction}
}

type ShareItemEvent struct{ EventBatch }

func (ShareItemEvent) Kind() Kind { return KindShareItem }

func NewShareItemEvent(events []Event, originator uuid.UUID) ShareItemEvent {
	return ShareItemEvent{newBatch(events, originator)}
}
