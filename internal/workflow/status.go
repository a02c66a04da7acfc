// Package workflow guards the transaction status field. All role checks live
// in one capability table instead of per-handler string comparisons.
package workflow

import (
	"errors"

	"github.com/naruebet/tmwatch/internal/models"
)

var (
	// ErrForbidden is returned when the acting role may not perform the
	// requested transition. Distinct from a missing record.
	ErrForbidden = errors.New("role may not change this status")
	// ErrInvalidStatus rejects transitions to an unrecognized status.
	ErrInvalidStatus = errors.New("unknown status")
)

type capability struct {
	// unrestricted roles may move between any statuses at any time;
	// restricted roles get exactly one transition away from normal.
	unrestricted bool
}

var roleCaps = map[models.Role]capability{
	models.RoleDev:   {unrestricted: true},
	models.RoleAdmin: {unrestricted: true},
	models.RoleStaff: {unrestricted: false},
}

// Authorize decides whether role may move a record from current to next.
// It is the only place status transition rules are expressed.
func Authorize(role models.Role, current, next models.TransactionStatus) error {
	if !models.ValidStatus(next) {
		return ErrInvalidStatus
	}
	caps, ok := roleCaps[role]
	if !ok {
		return ErrForbidden
	}
	if caps.unrestricted {
		return nil
	}
	// Restricted: one shot, away from normal only. Once the status is
	// anything else the record is locked for this role.
	if current != models.StatusNormal || next == models.StatusNormal {
		return ErrForbidden
	}
	return nil
}

// Restricted reports whether role needs the caller's explicit confirmation
// step before a transition is applied.
func Restricted(role models.Role) bool {
	caps, ok := roleCaps[role]
	return !ok || !caps.unrestricted
}
