package registration

import (
	"context"

	"github.com/google/uuid"
)

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	List(ctx context.Context, status string) ([]*Request, error)
	// MarkApproved and MarkRejected resolve a request. Both are guarded on
	// the pending status and return ErrNotPending when another resolution
	// got there first.
	MarkApproved(ctx context.Context, id, approvedBy uuid.UUID) error
	MarkRejected(ctx context.Context, id, approvedBy uuid.UUID) error
}
