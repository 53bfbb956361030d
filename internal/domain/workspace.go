// Package domain defines the data structures shared across the application:
// workspaces, members, invites, file tree nodes, cursor presence and the
// broadcast event variants.
package domain

import "time"

// Role is the membership role of a user inside a workspace.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleContributor Role = "contributor"
)

// Member is a user with accepted standing in a workspace.
type Member struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Invite is a pending offer of membership to a specific user. At most one
// pending invite exists per (workspace, invitee) pair.
type Invite struct {
	WorkspaceID string    `json:"workspaceId"`
	InviteeID   string    `json:"inviteeId"`
	InviterID   string    `json:"inviterId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Workspace is the authoritative state of one collaboration unit. Members keep
// insertion order; the owner is always Members[0] and is fixed at creation.
// Invites are keyed by invitee user id, Nodes form a flat arena keyed by node
// id and correlated through Node.ParentID.
type Workspace struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	OwnerID   string            `json:"ownerId"`
	CreatedAt time.Time         `json:"createdAt"`
	Members   []Member          `json:"members"`
	Invites   map[string]Invite `json:"invites"`
	Nodes     map[string]*Node  `json:"nodes"`
}

// MemberByID returns the member with the given user id, or nil.
func (w *Workspace) MemberByID(userID string) *Member {
	for i := range w.Members {
		if w.Members[i].UserID == userID {
			return &w.Members[i]
		}
	}
	return nil
}

// IsMember reports whether the given user id belongs to the member list.
func (w *Workspace) IsMember(userID string) bool {
	return w.MemberByID(userID) != nil
}

// WorkspaceRecord is the persisted form of a workspace. The live state is
// authoritative in memory; the record stores it as a JSON blob so the durable
// backing stays a drop-in behind the store contract.
type WorkspaceRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	OwnerID   string    `gorm:"index;size:191;not null"`
	Name      string    `gorm:"size:191;not null"`
	State     string    `gorm:"type:longtext;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index"`
}
