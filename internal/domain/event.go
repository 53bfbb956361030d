package domain

// EventKind enumerates the broadcast event variants pushed to subscribers.
type EventKind string

const (
	EventSnapshot      EventKind = "snapshot"
	EventMemberAdded   EventKind = "member_added"
	EventMemberRemoved EventKind = "member_removed"
	EventInviteCreated EventKind = "invite_created"
	EventInviteResolved EventKind = "invite_resolved"
	EventTreeChanged   EventKind = "tree_changed"
	EventCursorUpdate  EventKind = "cursor_update"
)

// InviteResolution records how a pending invite reached its terminal state.
type InviteResolution string

const (
	InviteAccepted InviteResolution = "accepted"
	InviteDeclined InviteResolution = "declined"
	InviteRevoked  InviteResolution = "revoked"
)

// TreeOp enumerates the mutations reported by a tree_changed event.
type TreeOp string

const (
	TreeCreated TreeOp = "created"
	TreeRenamed TreeOp = "renamed"
	TreeMoved   TreeOp = "moved"
	TreeDeleted TreeOp = "deleted"
)

// TreeChange is the payload of a tree_changed event. For deletes, RemovedIDs
// lists every node removed by the cascade, the deleted node included.
type TreeChange struct {
	Op         TreeOp   `json:"op"`
	Node       Node     `json:"node"`
	RemovedIDs []string `json:"removedIds,omitempty"`
}

// CursorUpdate is the payload of a cursor_update event. Gone marks an eviction
// or disconnect rather than a position change.
type CursorUpdate struct {
	Cursor CursorState `json:"cursor"`
	Gone   bool        `json:"gone,omitempty"`
}

// Snapshot is the full point-in-time view of a workspace, replayed to every
// subscriber before it receives incremental events. Cursors exclude the
// subscriber's own position.
type Snapshot struct {
	WorkspaceID string        `json:"workspaceId"`
	Name        string        `json:"name"`
	OwnerID     string        `json:"ownerId"`
	Members     []Member      `json:"members"`
	Invites     []Invite      `json:"invites"`
	Nodes       []Node        `json:"nodes"`
	Cursors     []CursorState `json:"cursors"`
}

// Event is the tagged variant delivered on the push channel. Kind selects
// which payload pointer is set; all other payload fields are nil so subscriber
// decoding stays total.
type Event struct {
	Kind        EventKind        `json:"type"`
	Seq         uint64           `json:"seq"`
	WorkspaceID string           `json:"workspaceId"`
	Member      *Member          `json:"member,omitempty"`
	Invite      *Invite          `json:"invite,omitempty"`
	Resolution  InviteResolution `json:"resolution,omitempty"`
	Tree        *TreeChange      `json:"tree,omitempty"`
	Cursor      *CursorUpdate    `json:"cursor,omitempty"`
	Snapshot    *Snapshot        `json:"snapshot,omitempty"`
}
