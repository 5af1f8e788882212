package google

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"google.golang.org/api/googleapi"
)

// permissionConflicts maps API reasons to the benign conflicts they signal
var permissionConflicts = map[string]port.PermissionConflict{
	"alreadyShared":               port.ConflictAlreadyShared,
	"duplicate":                   port.ConflictDuplicate,
	"cannotChangeInheritedAccess": port.ConflictCannotChangeInherited,
}

// classify marks client errors permanent so they are not retried.
// Timeouts and rate limits stay transient.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == http.StatusRequestTimeout, gerr.Code == http.StatusTooManyRequests:
		return err
	case gerr.Code == http.StatusForbidden && hasReason(gerr, "rateLimitExceeded", "userRateLimitExceeded"):
		return err
	case gerr.Code >= 400 && gerr.Code < 500:
		return port.Permanent(err)
	}
	return err
}

// classifyPermission recognizes grants that fail because access already exists
func classifyPermission(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	for _, item := range gerr.Errors {
		if kind, ok := permissionConflicts[item.Reason]; ok {
			return &port.PermissionConflictError{Kind: kind, Err: err}
		}
	}
	if strings.Contains(gerr.Message, "less than the inherited access") {
		return &port.PermissionConflictError{Kind: port.ConflictLessThanInherited, Err: err}
	}
	return classify(err)
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}
