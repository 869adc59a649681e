package authorization

import (
	"context"
	"errors"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

// Service answers whether an actor may perform an action on an object.
// Actors are either "system" (the billing engine) or "user:<id>".
type Service interface {
	Authorize(ctx context.Context, actor string, object string, action string) error
}
