package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/store"
)

// TreeService manages the hierarchical folder/file tree of a workspace. The
// tree is a flat arena of nodes correlated by parent id; acyclicity is
// enforced on every create and move instead of trusting callers. Duplicate
// sibling names are allowed.
type TreeService struct {
	store *store.Store
}

// NewTreeService creates a TreeService instance.
func NewTreeService(st *store.Store) *TreeService {
	if st == nil {
		panic("Store cannot be nil for TreeService")
	}
	return &TreeService{store: st}
}

// CreateNode adds a folder or file under parentID ("" for the root level).
// Files receive a fresh content blob reference; the blob itself lives in the
// external storage collaborator.
func (s *TreeService) CreateNode(ctx context.Context, workspaceID string, caller domain.Identity, parentID, name string, kind domain.NodeKind) (*domain.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if kind != domain.NodeFolder && kind != domain.NodeFile {
		return nil, ErrInvalidName
	}

	var created domain.Node
	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		if !ws.IsMember(caller.UserID) {
			return nil, ErrUnauthorized
		}
		if parentID != "" {
			parent, ok := ws.Nodes[parentID]
			if !ok || !parent.IsFolder() {
				return nil, ErrInvalidParent
			}
		}

		node := &domain.Node{
			ID:        uuid.NewString(),
			Name:      name,
			ParentID:  parentID,
			Kind:      kind,
			CreatedAt: time.Now(),
		}
		if kind == domain.NodeFile {
			node.ContentRef = "blob://" + uuid.NewString()
		}
		ws.Nodes[node.ID] = node
		created = *node
		return []domain.Event{{
			Kind:        domain.EventTreeChanged,
			WorkspaceID: workspaceID,
			Tree:        &domain.TreeChange{Op: domain.TreeCreated, Node: *node},
		}}, nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"node_id":      created.ID,
		"kind":         created.Kind,
	}).Info("Tree node created")
	return &created, nil
}

// Rename changes a node's display name.
func (s *TreeService) Rename(ctx context.Context, workspaceID string, caller domain.Identity, nodeID, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrInvalidName
	}

	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		if !ws.IsMember(caller.UserID) {
			return nil, ErrUnauthorized
		}
		node, ok := ws.Nodes[nodeID]
		if !ok {
			return nil, ErrNodeNotFound
		}
		node.Name = newName
		return []domain.Event{{
			Kind:        domain.EventTreeChanged,
			WorkspaceID: workspaceID,
			Tree:        &domain.TreeChange{Op: domain.TreeRenamed, Node: *node},
		}}, nil
	})
	return mapStoreError(err)
}

// Move reparents a node. Moving a folder under one of its own descendants
// (or under itself) would break acyclicity and fails with ErrCycleDetected.
func (s *TreeService) Move(ctx context.Context, workspaceID string, caller domain.Identity, nodeID, newParentID string) error {
	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		if !ws.IsMember(caller.UserID) {
			return nil, ErrUnauthorized
		}
		node, ok := ws.Nodes[nodeID]
		if !ok {
			return nil, ErrNodeNotFound
		}
		if newParentID != "" {
			parent, ok := ws.Nodes[newParentID]
			if !ok || !parent.IsFolder() {
				return nil, ErrInvalidParent
			}
			// Walk up from the new parent; hitting the node means the new
			// parent sits inside the node's own subtree.
			for cur := newParentID; cur != ""; {
				if cur == nodeID {
					return nil, ErrCycleDetected
				}
				p, ok := ws.Nodes[cur]
				if !ok {
					break
				}
				cur = p.ParentID
			}
		}
		node.ParentID = newParentID
		return []domain.Event{{
			Kind:        domain.EventTreeChanged,
			WorkspaceID: workspaceID,
			Tree:        &domain.TreeChange{Op: domain.TreeMoved, Node: *node},
		}}, nil
	})
	return mapStoreError(err)
}

// Delete removes a node. Deleting a folder cascades to every descendant
// folder and file in the same atomic step; no reader ever observes a partial
// deletion.
func (s *TreeService) Delete(ctx context.Context, workspaceID string, caller domain.Identity, nodeID string) error {
	var removed []string
	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		if !ws.IsMember(caller.UserID) {
			return nil, ErrUnauthorized
		}
		node, ok := ws.Nodes[nodeID]
		if !ok {
			return nil, ErrNodeNotFound
		}

		removed = collectSubtree(ws, nodeID)
		for _, id := range removed {
			delete(ws.Nodes, id)
		}
		return []domain.Event{{
			Kind:        domain.EventTreeChanged,
			WorkspaceID: workspaceID,
			Tree: &domain.TreeChange{
				Op:         domain.TreeDeleted,
				Node:       *node,
				RemovedIDs: removed,
			},
		}}, nil
	})
	if err != nil {
		return mapStoreError(err)
	}
	logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"node_id":      nodeID,
		"removed":      len(removed),
	}).Info("Tree node deleted")
	return nil
}

// List returns one tree level: the children of parentID ("" for the root),
// folders before files, each group in creation order.
func (s *TreeService) List(ctx context.Context, workspaceID string, caller domain.Identity, parentID string) ([]domain.Node, error) {
	var nodes []domain.Node
	err := s.store.View(ctx, workspaceID, func(ws *domain.Workspace) error {
		if !ws.IsMember(caller.UserID) {
			return ErrUnauthorized
		}
		if parentID != "" {
			parent, ok := ws.Nodes[parentID]
			if !ok {
				return ErrNodeNotFound
			}
			if !parent.IsFolder() {
				return ErrInvalidParent
			}
		}
		for _, node := range ws.Nodes {
			if node.ParentID == parentID {
				nodes = append(nodes, *node)
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Kind != b.Kind {
			return a.Kind == domain.NodeFolder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return nodes, nil
}

// collectSubtree returns nodeID plus every descendant, breadth-first.
func collectSubtree(ws *domain.Workspace, nodeID string) []string {
	children := make(map[string][]string, len(ws.Nodes))
	for id, node := range ws.Nodes {
		if node.ParentID != "" {
			children[node.ParentID] = append(children[node.ParentID], id)
		}
	}
	removed := []string{nodeID}
	for i := 0; i < len(removed); i++ {
		removed = append(removed, children[removed[i]]...)
	}
	return removed
}
