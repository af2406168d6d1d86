package domain

import (
	"slices"
	"time"
)

// SchemaVersion is the document schema version written by this client.
const SchemaVersion = "1.0.0"

// DefaultRoster returns the built-in initial roster.
func DefaultRoster() []User {
	return []User{
		{ID: "admin", Name: "Administrator", Roles: []Role{RoleTechLead, RoleSalesLead}},
		{ID: "tech-lead", Name: "Tech Lead", Roles: []Role{RoleTechLead}},
		{ID: "sales-lead", Name: "Sales Lead", Roles: []Role{RoleSalesLead}},
		{ID: "viewer", Name: "Viewer", Roles: []Role{RoleViewer}},
	}
}

// NewSeedDocument returns the document used when none has ever been persisted.
// A nil roster selects DefaultRoster.
func NewSeedDocument(now time.Time, roster []User) *Document {
	if roster == nil {
		roster = DefaultRoster()
	}
	users := slices.Clone(roster)
	for i := range users {
		users[i].Roles = slices.Clone(users[i].Roles)
	}
	return &Document{
		Version:     SchemaVersion,
		LastUpdated: now,
		Users:       users,
		Tasks:       []Task{},
		Requests:    []ChangeRequest{},
		History:     []HistoryEntry{},
	}
}
