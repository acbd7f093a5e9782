package booking

import (
	"context"
	"errors"
	"fmt"
)

// Authorizer decides whether a caller may act on a resource. It is the
// single gate for subject-presence checks; operations never re-check the
// subject themselves.
type Authorizer struct {
	ids IdentityStore
}

func NewAuthorizer(ids IdentityStore) *Authorizer {
	return &Authorizer{ids: ids}
}

// Authorize returns nil when the caller may act on the resource and
// ErrPermissionDenied otherwise. Rules, in order: empty subject fails
// closed; Admin is always allowed; Client and HealthcareWorker are allowed
// only when the domain record resolved from their subject id owns the
// resource.
func (a *Authorizer) Authorize(ctx context.Context, res Owned, role Role, subjectID string) error {
	if subjectID == "" {
		return ErrPermissionDenied
	}

	switch role {
	case RoleAdmin:
		return nil

	case RoleClient:
		c, err := a.ids.GetClientBySubjectID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, ErrClientNotFound) {
				return ErrPermissionDenied
			}
			return fmt.Errorf("resolve client for subject: %w", err)
		}
		if owner := res.OwnerClientID(); owner != 0 && owner == c.ID {
			return nil
		}
		return ErrPermissionDenied

	case RoleHealthcareWorker:
		w, err := a.ids.GetWorkerBySubjectID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, ErrWorkerNotFound) {
				return ErrPermissionDenied
			}
			return fmt.Errorf("resolve worker for subject: %w", err)
		}
		if owner := res.OwnerWorkerID(); owner != 0 && owner == w.ID {
			return nil
		}
		return ErrPermissionDenied

	default:
		return ErrPermissionDenied
	}
}
