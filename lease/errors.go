package lease

import "errors"

var (
	ErrNotFound            = errors.New("slot not found")
	ErrInvalidPrecondition = errors.New("invalid precondition")
	ErrRateLimited         = errors.New("broadcast rate limited")
	ErrPersistence         = errors.New("persistence failure")
	ErrGateway             = errors.New("gateway failure")
	// ErrPermissionDenied is returned by a Gateway when the bot lacks the rights for a call.
	ErrPermissionDenied = errors.New("permission denied")
)

// Reason codes handed to the command layer.
const (
	ReasonOK                  = "ok"
	ReasonNotFound            = "not_found"
	ReasonInvalidPrecondition = "invalid_precondition"
	ReasonRateLimited         = "rate_limited"
	ReasonPersistence         = "persistence_failure"
	ReasonPermissionDenied    = "permission_denied"
	ReasonGateway             = "gateway_failure"
	ReasonInternal            = "internal"
)

// Reason classifies err into a reason code. A nil error is ReasonOK.
func Reason(err error) string {
	switch {
	case err == nil:
		return ReasonOK
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrInvalidPrecondition):
		return ReasonInvalidPrecondition
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrPersistence):
		return ReasonPersistence
	case errors.Is(err, ErrPermissionDenied):
		return ReasonPermissionDenied
	case errors.Is(err, ErrGateway):
		return ReasonGateway
	default:
		return ReasonInternal
	}
}
