package models

// Role is a member's permission level within a group.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Group represents a set of members who share expenses.
// A group may or may not be linked to a trip.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Lisbon 2026", "Roommates").
	Name string

	// TripID optionally links the group to a trip in the itinerary planner.
	TripID string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// Member is a participant in a group.
//
// Virtual members are placeholders for friends who don't use the app.
// They can pay and owe like anyone else but never act on settlements
// through an authenticated session.
type Member struct {
	// ID is the unique identifier for the member (UUID format unless supplied).
	ID string

	// GroupID is the group this member belongs to.
	GroupID string

	// DisplayName is the human-readable name shown in the UI.
	DisplayName string

	// Role is the member's permission level.
	Role Role

	// AvatarRef is an opaque reference to the member's avatar image.
	AvatarRef string

	// Virtual is true for placeholder members without an account.
	Virtual bool

	// CreatedAt is the Unix timestamp when the member was added.
	CreatedAt int64
}
