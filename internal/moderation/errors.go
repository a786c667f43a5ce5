package moderation

import "errors"

// Validation
var (
	ErrInvalidReport           = errors.New("invalid report")
	ErrInvalidReportTarget     = errors.New("cannot report yourself")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidAction           = errors.New("invalid moderation action")
	ErrInvalidBanParams        = errors.New("invalid ban parameters")
	ErrActionTypeMismatch      = errors.New("action does not apply to target type")
)

// Conflict
var (
	ErrDuplicateReport       = errors.New("you already have an active report for this target")
	ErrReportAlreadyResolved = errors.New("report has already been resolved")
	ErrAlreadyBanned         = errors.New("user is already banned")
)

// Not found
var (
	ErrReportNotFound = errors.New("report not found")
	ErrTargetNotFound = errors.New("target not found")
)

var (
	ErrUnauthorized = errors.New("not permitted to act on this target")
	ErrRateLimited  = errors.New("too many reports, try again later")
)

// Kind classifies a moderation error for the transport layer
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindRateLimited   Kind = "rate_limited"
	KindInternal      Kind = "internal"
)

// KindOf maps err onto its Kind. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidReport),
		errors.Is(err, ErrInvalidReportTarget),
		errors.Is(err, ErrInvalidStatusTransition),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrInvalidBanParams),
		errors.Is(err, ErrActionTypeMismatch),
		errors.Is(err, ErrInvalidRole):
		return KindValidation
	case errors.Is(err, ErrDuplicateReport),
		errors.Is(err, ErrReportAlreadyResolved),
		errors.Is(err, ErrAlreadyBanned):
		return KindConflict
	case errors.Is(err, ErrReportNotFound), errors.Is(err, ErrTargetNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	}
	return KindInternal
}

// ErrInvalidRole is returned when a role change names an unknown role
var ErrInvalidRole = errors.New("invalid role")
