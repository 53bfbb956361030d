package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/service"
)

func TestTreeService_CreateNode_RootAndNested(t *testing.T) {
	st, wsID, notifier := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	folder, err := treeService.CreateNode(ctx, wsID, alice, "", "src", domain.NodeFolder)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeFolder, folder.Kind)
	assert.Empty(t, folder.ParentID)
	assert.Empty(t, folder.ContentRef, "folders carry no content reference")

	file, err := treeService.CreateNode(ctx, wsID, alice, folder.ID, "index.js", domain.NodeFile)
	require.NoError(t, err)
	assert.Equal(t, folder.ID, file.ParentID)
	assert.NotEmpty(t, file.ContentRef, "files receive a fresh blob reference")

	events := notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTreeChanged, events[0].Kind)
	assert.Equal(t, domain.TreeCreated, events[0].Tree.Op)
	assert.Equal(t, folder.ID, events[0].Tree.Node.ID)
	assert.Equal(t, file.ID, events[1].Tree.Node.ID)
}

func TestTreeService_CreateNode_InvalidParent(t *testing.T) {
	st, wsID, _ := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	_, err := treeService.CreateNode(ctx, wsID, alice, "missing", "a", domain.NodeFolder)
	assert.ErrorIs(t, err, service.ErrInvalidParent)

	// Files cannot hold children either.
	file, err := treeService.CreateNode(ctx, wsID, alice, "", "readme.md", domain.NodeFile)
	require.NoError(t, err)
	_, err = treeService.CreateNode(ctx, wsID, alice, file.ID, "child", domain.NodeFile)
	assert.ErrorIs(t, err, service.ErrInvalidParent)
}

func TestTreeService_CreateNode_Validation(t *testing.T) {
	st, wsID, _ := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	_, err := treeService.CreateNode(ctx, wsID, alice, "", "   ", domain.NodeFile)
	assert.ErrorIs(t, err, service.ErrInvalidName)

	_, err = treeService.CreateNode(ctx, wsID, alice, "", "a", domain.NodeKind("symlink"))
	assert.ErrorIs(t, err, service.ErrInvalidName)

	_, err = treeService.CreateNode(ctx, wsID, carol, "", "a", domain.NodeFile)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestTreeService_Rename(t *testing.T) {
	st, wsID, notifier := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	file, err := treeService.CreateNode(ctx, wsID, alice, "", "old.js", domain.NodeFile)
	require.NoError(t, err)
	notifier.reset()

	require.NoError(t, treeService.Rename(ctx, wsID, alice, file.ID, "new.js"))

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.TreeRenamed, events[0].Tree.Op)
	assert.Equal(t, "new.js", events[0].Tree.Node.Name)

	assert.ErrorIs(t, treeService.Rename(ctx, wsID, alice, "ghost", "x"), service.ErrNodeNotFound)
	assert.ErrorIs(t, treeService.Rename(ctx, wsID, alice, file.ID, "  "), service.ErrInvalidName)
}

func TestTreeService_Move_ReparentsNode(t *testing.T) {
	st, wsID, _ := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	src, err := treeService.CreateNode(ctx, wsID, alice, "", "src", domain.NodeFolder)
	require.NoError(t, err)
	file, err := treeService.CreateNode(ctx, wsID, alice, "", "main.go", domain.NodeFile)
	require.NoError(t, err)

	require.NoError(t, treeService.Move(ctx, wsID, alice, file.ID, src.ID))

	children, err := treeService.List(ctx, wsID, alice, src.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, file.ID, children[0].ID)

	// Back to the root level.
	require.NoError(t, treeService.Move(ctx, wsID, alice, file.ID, ""))
	root, err := treeService.List(ctx, wsID, alice, "")
	require.NoError(t, err)
	assert.Len(t, root, 2)
}

func TestTreeService_Move_CycleDetected(t *testing.T) {
	st, wsID, _ := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	a, err := treeService.CreateNode(ctx, wsID, alice, "", "a", domain.NodeFolder)
	require.NoError(t, err)
	b, err := treeService.CreateNode(ctx, wsID, alice, a.ID, "b", domain.NodeFolder)
	require.NoError(t, err)
	c, err := treeService.CreateNode(ctx, wsID, alice, b.ID, "c", domain.NodeFolder)
	require.NoError(t, err)

	// a -> c would put a inside its own subtree; a -> a is the trivial cycle.
	assert.ErrorIs(t, treeService.Move(ctx, wsID, alice, a.ID, c.ID), service.ErrCycleDetected)
	assert.ErrorIs(t, treeService.Move(ctx, wsID, alice, a.ID, a.ID), service.ErrCycleDetected)

	// A sibling move within the same tree is fine.
	require.NoError(t, treeService.Move(ctx, wsID, alice, c.ID, a.ID))
}

func TestTreeService_Delete_CascadesSubtree(t *testing.T) {
	st, wsID, notifier := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	src, err := treeService.CreateNode(ctx, wsID, alice, "", "src", domain.NodeFolder)
	require.NoError(t, err)
	sub, err := treeService.CreateNode(ctx, wsID, alice, src.ID, "lib", domain.NodeFolder)
	require.NoError(t, err)
	file, err := treeService.CreateNode(ctx, wsID, alice, sub.ID, "util.js", domain.NodeFile)
	require.NoError(t, err)
	keep, err := treeService.CreateNode(ctx, wsID, alice, "", "README.md", domain.NodeFile)
	require.NoError(t, err)
	notifier.reset()

	require.NoError(t, treeService.Delete(ctx, wsID, alice, src.ID))

	events := notifier.all()
	require.Len(t, events, 1, "the cascade commits as one atomic change")
	assert.Equal(t, domain.TreeDeleted, events[0].Tree.Op)
	assert.ElementsMatch(t, []string{src.ID, sub.ID, file.ID}, events[0].Tree.RemovedIDs)

	root, err := treeService.List(ctx, wsID, alice, "")
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, keep.ID, root[0].ID)

	assert.ErrorIs(t, treeService.Delete(ctx, wsID, alice, src.ID), service.ErrNodeNotFound)
}

func TestTreeService_List_FoldersFirstInCreationOrder(t *testing.T) {
	st, wsID, _ := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	f1, err := treeService.CreateNode(ctx, wsID, alice, "", "z-file", domain.NodeFile)
	require.NoError(t, err)
	d1, err := treeService.CreateNode(ctx, wsID, alice, "", "z-dir", domain.NodeFolder)
	require.NoError(t, err)
	d2, err := treeService.CreateNode(ctx, wsID, alice, "", "a-dir", domain.NodeFolder)
	require.NoError(t, err)

	nodes, err := treeService.List(ctx, wsID, alice, "")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, d1.ID, nodes[0].ID, "folders come first, oldest first")
	assert.Equal(t, d2.ID, nodes[1].ID)
	assert.Equal(t, f1.ID, nodes[2].ID)
}

func TestTreeService_List_BadParent(t *testing.T) {
	st, wsID, _ := newStoreWithWorkspace(t, alice)
	treeService := service.NewTreeService(st)
	ctx := context.Background()

	_, err := treeService.List(ctx, wsID, alice, "ghost")
	assert.ErrorIs(t, err, service.ErrNodeNotFound)

	file, err := treeService.CreateNode(ctx, wsID, alice, "", "f", domain.NodeFile)
	require.NoError(t, err)
	_, err = treeService.List(ctx, wsID, alice, file.ID)
	assert.ErrorIs(t, err, service.ErrInvalidParent)
}
