// Package compliance gates access to the restricted currency and to
// age-restricted catalog items. The real capability source lives outside this
// service; the ledger only consumes the verdict.
package compliance

import "context"

// Checker reports whether a user holds the restricted-access capability in a
// guild. Implementations must be safe for concurrent use.
type Checker interface {
	IsRestrictedAccessGranted(ctx context.Context, userID, guildID string) (bool, error)
}

// Static is a fixed-verdict Checker for wiring defaults and tests.
type Static bool

const (
	AllowAll Static = true
	DenyAll  Static = false
)

func (s Static) IsRestrictedAccessGranted(context.Context, string, string) (bool, error) {
	return bool(s), nil
}
