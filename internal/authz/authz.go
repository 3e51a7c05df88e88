// Package authz decides, for a (subject, resource, operation) triple, whether
// the action is permitted. Check is a pure decision function: it reads
// membership state through a narrow interface, mutates nothing, and always
// signals a denial instead of silently filtering. Callers must run it before
// any mutation and abort without partial writes on deny.
package authz

import (
	"context"
	"fmt"

	"journal/internal/errs"

	"github.com/google/uuid"
)

type Operation string

const (
	OperationGet    Operation = "GET"
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

type ContentType string

const (
	ContentTypeGroup       ContentType = "GROUP"
	ContentTypeProject     ContentType = "PROJECT"
	ContentTypeTask        ContentType = "TASK"
	ContentTypeNote        ContentType = "NOTE"
	ContentTypeTransaction ContentType = "TRANSACTION"
	ContentTypeContent     ContentType = "CONTENT"
)

// Permission is a per-item grant resolved from a Share row by the caller.
type Permission string

const (
	PermissionNone  Permission = ""
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
)

// MembershipSource answers whether a user is an accepted member of a group.
type MembershipSource interface {
	IsAcceptedMember(ctx context.Context, userID, groupID uuid.UUID) (bool, error)
}

// Request describes one authorization decision. The caller resolves the
// resource's owner, owning group and any per-item share grant before asking.
type Request struct {
	Subject       uuid.UUID
	Operation     Operation
	ContentType   ContentType
	ResourceID    uuid.UUID
	ResourceName  string
	ResourceOwner uuid.UUID
	GroupID       uuid.UUID
	GroupOwner    uuid.UUID
	DefaultGroup  bool
	Granted       Permission
}

// Check evaluates the rule set in order, first match wins:
//
//  1. deleting a default group is denied for everyone, owner included
//  2. the resource owner may do anything else
//  3. a share grant allows reads, a write grant also allows updates
//  4. the owning group's owner administers resources in the group
//  5. accepted group members may read
//  6. otherwise deny
func Check(ctx context.Context, members MembershipSource, req Request) error {
	if req.Operation == OperationDelete && req.ContentType == ContentTypeGroup && req.DefaultGroup {
		return fmt.Errorf("default group %s cannot be deleted: %w", req.ResourceID, errs.ErrBadRequest)
	}

	if req.Subject == req.ResourceOwner {
		return nil
	}

	switch req.Operation {
	case OperationGet:
		if req.Granted != PermissionNone {
			return nil
		}
	case OperationUpdate:
		if req.Granted == PermissionWrite {
			return nil
		}
	}

	if (req.Operation == OperationUpdate || req.Operation == OperationDelete) && req.Subject == req.GroupOwner {
		return nil
	}

	if req.Operation == OperationGet && req.GroupID != uuid.Nil {
		accepted, err := members.IsAcceptedMember(ctx, req.Subject, req.GroupID)
		if err != nil {
			return fmt.Errorf("authz: membership lookup for user %s in group %s: %w", req.Subject, req.GroupID, err)
		}
		if accepted {
			return nil
		}
	}

	return fmt.Errorf("user %s is not allowed to %s %s %s: %w",
		req.Subject, req.Operation, req.ContentType, req.ResourceID, errs.ErrUnauthorized)
}
