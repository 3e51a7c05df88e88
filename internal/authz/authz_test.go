package authz

import (
	"context"
	"testing"

	"journal/internal/errs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type memberFunc func(userID, groupID uuid.UUID) bool

func (f memberFunc) IsAcceptedMember(_ context.Context, userID, groupID uuid.UUID) (bool, error) {
	return f(userID, groupID), nil
}

func TestCheck(t *testing.T) {
	owner := uuid.New()
	groupOwner := uuid.New()
	member := uuid.New()
	stranger := uuid.New()
	groupID := uuid.New()
	resourceID := uuid.New()

	members := memberFunc(func(userID, gID uuid.UUID) bool {
		return userID == member && gID == groupID
	})

	base := Request{
		ContentType:   ContentTypeTask,
		ResourceID:    resourceID,
		ResourceOwner: owner,
		GroupID:       groupID,
		GroupOwner:    groupOwner,
	}

	tests := []struct {
		name    string
		mutate  func(req *Request)
		wantErr error
	}{
		{
			name: "owner may read",
			mutate: func(req *Request) {
				req.Subject = owner
				req.Operation = OperationGet
			},
		},
		{
			name: "owner may delete",
			mutate: func(req *Request) {
				req.Subject = owner
				req.Operation = OperationDelete
			},
		},
		{
			name: "default group delete denied even for owner",
			mutate: func(req *Request) {
				req.Subject = owner
				req.Operation = OperationDelete
				req.ContentType = ContentTypeGroup
				req.DefaultGroup = true
			},
			wantErr: errs.ErrBadRequest,
		},
		{
			name: "accepted member may read",
			mutate: func(req *Request) {
				req.Subject = member
				req.Operation = OperationGet
			},
		},
		{
			name: "accepted member may not update",
			mutate: func(req *Request) {
				req.Subject = member
				req.Operation = OperationUpdate
			},
			wantErr: errs.ErrUnauthorized,
		},
		{
			name: "group owner may update",
			mutate: func(req *Request) {
				req.Subject = groupOwner
				req.Operation = OperationUpdate
			},
		},
		{
			name: "group owner may delete",
			mutate: func(req *Request) {
				req.Subject = groupOwner
				req.Operation = OperationDelete
			},
		},
		{
			name: "read grant allows read",
			mutate: func(req *Request) {
				req.Subject = stranger
				req.Operation = OperationGet
				req.Granted = PermissionRead
			},
		},
		{
			name: "read grant does not allow update",
			mutate: func(req *Request) {
				req.Subject = stranger
				req.Operation = OperationUpdate
				req.Granted = PermissionRead
			},
			wantErr: errs.ErrUnauthorized,
		},
		{
			name: "write grant allows update",
			mutate: func(req *Request) {
				req.Subject = stranger
				req.Operation = OperationUpdate
				req.Granted = PermissionWrite
			},
		},
		{
			name: "stranger denied",
			mutate: func(req *Request) {
				req.Subject = stranger
				req.Operation = OperationGet
			},
			wantErr: errs.ErrUnauthorized,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := base
			test.mutate(&req)

			err := Check(context.Background(), members, req)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
