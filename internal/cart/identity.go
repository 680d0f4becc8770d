package cart

import (
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	maxSessionIDLen = 128
	guestPrefix     = "guest_"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Identity names the owner of a cart. Exactly one field is set: UserID for
// signed-in shoppers, SessionID for guests.
type Identity struct {
	UserID    string
	SessionID string
}

// Normalize trims both fields.
func (i Identity) Normalize() Identity {
	return Identity{
		UserID:    strings.TrimSpace(i.UserID),
		SessionID: strings.TrimSpace(i.SessionID),
	}
}

// Validate enforces exclusive ownership.
func (i Identity) Validate() error {
	i = i.Normalize()
	switch {
	case i.UserID == "" && i.SessionID == "":
		return pkgerrors.New(pkgerrors.CodeMissingIdentity, "user id or session id is required")
	case i.UserID != "" && i.SessionID != "":
		return pkgerrors.New(pkgerrors.CodeValidation, "a cart belongs to a user or a session, not both")
	case i.SessionID != "" && !ValidSessionID(i.SessionID):
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is malformed")
	}
	return nil
}

// IsGuest reports whether the identity is a guest session.
func (i Identity) IsGuest() bool {
	return strings.TrimSpace(i.UserID) == ""
}

// AnalyticsIdentity is the identity string written to analytics events.
func (i Identity) AnalyticsIdentity() string {
	i = i.Normalize()
	if i.UserID != "" {
		return i.UserID
	}
	return guestPrefix + i.SessionID
}

// owner returns the owning column and its value.
func (i Identity) owner() (string, string) {
	i = i.Normalize()
	if i.UserID != "" {
		return "user_id", i.UserID
	}
	return "session_id", i.SessionID
}

// ValidSessionID reports whether a guest session id is well formed.
func ValidSessionID(id string) bool {
	return len(id) > 0 && len(id) <= maxSessionIDLen && sessionIDPattern.MatchString(id)
}
