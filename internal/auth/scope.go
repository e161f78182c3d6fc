// ABOUTME: Scope types and enforcement for bot credentials
// ABOUTME: Gates every bot-initiated action against room/channel allow-lists

package auth

import (
	"errors"
	"sort"
)

// ErrScopeDenied is returned when a bot action targets a room or channel
// outside its credential's scope.
var ErrScopeDenied = errors.New("scope denied")

// ScopeDim is one dimension (rooms or channels) of a credential's scope.
//
// The zero value is unrestricted. This mirrors the wire format, where an
// empty list means the owner declared no restriction for that dimension:
// default-permissive, not default-deny. The tagged representation exists so
// that reading Restricted() makes the permissive default explicit instead
// of hiding it behind an empty slice.
type ScopeDim struct {
	ids map[string]struct{}
}

// Unrestricted returns a dimension that allows any target.
func Unrestricted() ScopeDim {
	return ScopeDim{}
}

// RestrictedTo returns a dimension that allows only the given ids. With no
// ids it is equivalent to Unrestricted, matching the wire format.
func RestrictedTo(ids ...string) ScopeDim {
	if len(ids) == 0 {
		return ScopeDim{}
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return ScopeDim{ids: set}
}

// Restricted reports whether this dimension carries an allow-list.
func (d ScopeDim) Restricted() bool {
	return len(d.ids) > 0
}

// Allows reports whether the target id passes this dimension.
func (d ScopeDim) Allows(id string) bool {
	if !d.Restricted() {
		return true
	}
	_, ok := d.ids[id]
	return ok
}

// IDs returns the allow-list in sorted order, nil when unrestricted.
// Used for encoding the scope into a credential.
func (d ScopeDim) IDs() []string {
	if !d.Restricted() {
		return nil
	}
	ids := make([]string, 0, len(d.ids))
	for id := range d.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scope is the explicit set of rooms and channels a credential authorizes
// its bearer to act within.
type Scope struct {
	Rooms    ScopeDim
	Channels ScopeDim
}

// Authorize checks an action's target against the scope. Both dimensions
// are checked independently and both must pass. Returns ErrScopeDenied on
// the first dimension that rejects the target.
//
// This check runs after the caller has confirmed the bot is a member of the
// target room: scope narrows membership, it does not substitute for it.
func (s Scope) Authorize(roomID, channelID string) error {
	if !s.Rooms.Allows(roomID) {
		return ErrScopeDenied
	}
	if !s.Channels.Allows(channelID) {
		return ErrScopeDenied
	}
	return nil
}
