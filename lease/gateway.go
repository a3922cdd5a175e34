package lease

import (
	"context"
	"errors"
	"fmt"

	"slot-bot/model"
)

//go:generate mockgen -source=gateway.go -destination=mock/gateway.go -package=mock

// Gateway performs the external side effects of slot transitions on the chat platform.
type Gateway interface {
	CreateResource(ctx context.Context, ownerID string) (string, error)
	DeleteResource(ctx context.Context, resourceID string) error
	GrantRole(ctx context.Context, userID string) error
	// RevokeRole returns an error wrapping ErrPermissionDenied when the bot lacks the rights.
	RevokeRole(ctx context.Context, userID string) error
	RestrictWrites(ctx context.Context, resourceID string) error
	RestoreWrites(ctx context.Context, resourceID string) error
	Notify(ctx context.Context, resourceID string, notice model.Notice) error
	ResourceExists(ctx context.Context, resourceID string) (bool, error)
}

// Store persists the full slot collection. Save must fully replace the stored
// collection or leave it untouched.
type Store interface {
	Load(ctx context.Context) (model.Slots, error)
	Save(ctx context.Context, slots model.Slots) error
}

// Apply runs every action against gw in order. A failing action does not stop
// the ones after it; all failures are returned joined and wrapped in ErrGateway.
func Apply(ctx context.Context, gw Gateway, actions []model.Action) error {
	var errs []error
	for _, a := range actions {
		if err := applyOne(ctx, gw, a); err != nil {
			errs = append(errs, fmt.Errorf("%s on %s: %w", a.Kind, a.ResourceID, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrGateway, errors.Join(errs...))
}

func applyOne(ctx context.Context, gw Gateway, a model.Action) error {
	switch a.Kind {
	case model.ActionGrantRole:
		return gw.GrantRole(ctx, a.UserID)
	case model.ActionRevokeRole:
		return gw.RevokeRole(ctx, a.UserID)
	case model.ActionRestrictWrites:
		return gw.RestrictWrites(ctx, a.ResourceID)
	case model.ActionRestoreWrites:
		return gw.RestoreWrites(ctx, a.ResourceID)
	case model.ActionNotify:
		return gw.Notify(ctx, a.ResourceID, a.Notice)
	case model.ActionDeleteResource:
		return gw.DeleteResource(ctx, a.ResourceID)
	default:
		return fmt.Errorf("unknown action kind %d", a.Kind)
	}
}
