package domain

import "time"

// NodeKind distinguishes folders from files in the workspace tree.
type NodeKind string

const (
	NodeFolder NodeKind = "folder"
	NodeFile   NodeKind = "file"
)

// Node is one entry of the workspace file tree. ParentID is empty for
// root-level nodes. Files carry a ContentRef pointing at the external blob
// store; the content itself never passes through this system.
type Node struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ParentID   string    `json:"parentId,omitempty"`
	Kind       NodeKind  `json:"kind"`
	ContentRef string    `json:"contentRef,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsFolder reports whether the node can hold children.
func (n *Node) IsFolder() bool { return n.Kind == NodeFolder }
