package snapshot_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/snapshot"
	"github.com/hasgeek/nodular/pkg/store"
	"github.com/hasgeek/nodular/pkg/store/gormstore/gormstoretest"
	"github.com/hasgeek/nodular/pkg/traverse"
	"github.com/hasgeek/nodular/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	root, docs, intro, old *models.Node
	other                  *models.Node
}

func build(t *testing.T, e *tree.Engine) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	f.root = &models.Node{Name: "site", Title: "Site"}
	require.NoError(t, e.Create(ctx, f.root))
	f.docs = &models.Node{Name: "docs", Title: "Docs", ParentID: f.root.ID}
	require.NoError(t, e.Create(ctx, f.docs))
	f.intro = &models.Node{Name: "intro", Title: "Intro", ParentID: f.docs.ID}
	require.NoError(t, e.Create(ctx, f.intro))
	f.old = &models.Node{Name: "old", ParentID: f.root.ID}
	require.NoError(t, e.Create(ctx, f.old))

	f.other = &models.Node{Name: "elsewhere"}
	require.NoError(t, e.Create(ctx, f.other))

	_, err := e.Rename(ctx, f.docs.ID, "guide")
	require.NoError(t, err)
	require.NoError(t, e.Delete(ctx, f.old.ID))
	// leaves an alias under site pointing into another tree
	moved := &models.Node{Name: "moving", ParentID: f.root.ID}
	require.NoError(t, e.Create(ctx, moved))
	_, err = e.Rename(ctx, moved.ID, "moved")
	require.NoError(t, err)
	_, err = e.Move(ctx, moved.ID, f.other.ID)
	require.NoError(t, err)

	require.NoError(t, e.SetProperty(ctx, f.root.ID, "theme", "dark"))
	require.NoError(t, e.SetProperty(ctx, f.intro.ID, "meta:order", 3))

	first, err := e.Revise(ctx, f.intro.ID, tree.ReviseOptions{Content: map[string]any{"body": "v1"}})
	require.NoError(t, err)
	_, err = e.Promote(ctx, first.ID, 1)
	require.NoError(t, err)
	_, err = e.Revise(ctx, f.intro.ID, tree.ReviseOptions{From: first.ID})
	require.NoError(t, err)
	return f
}

func TestDumpRestore(t *testing.T) {
	ctx := context.Background()
	src := tree.New(gormstoretest.New(t))
	f := build(t, src)

	var buf bytes.Buffer
	stats, err := snapshot.Dump(ctx, src.Store(), f.root.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Stats{Nodes: 3, Aliases: 4, Properties: 2, Revisions: 2}, stats)

	dst := gormstoretest.New(t)
	h, restored, err := snapshot.Restore(ctx, dst, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, snapshot.Version, h.Version)
	assert.Equal(t, f.root.ID, h.Root)
	assert.WithinDuration(t, time.Now(), h.Created, time.Minute)
	assert.Equal(t, stats, restored)

	intro, err := dst.GetNodeByBUID(ctx, f.intro.BUID)
	require.NoError(t, err)
	require.NotNil(t, intro)
	assert.Equal(t, f.intro.ID, intro.ID)
	assert.Equal(t, "/guide/intro", intro.Path)
	assert.Equal(t, f.root.ID, intro.RootID)

	aliases, err := dst.ListAliases(ctx, f.root.ID)
	require.NoError(t, err)
	got := map[string]models.NodeID{}
	for _, a := range aliases {
		got[a.Name] = a.NodeID
	}
	assert.Equal(t, map[string]models.NodeID{
		"docs":   f.docs.ID,
		"old":    {},
		"moving": {},
		"moved":  {},
	}, got)

	prop, err := dst.GetProperty(ctx, intro.ID, "meta:order")
	require.NoError(t, err)
	require.NotNil(t, prop)
	v, ok := prop.Decoded()
	assert.True(t, ok)
	assert.Equal(t, float64(3), v)

	revs, err := dst.ListRevisions(ctx, intro.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	one := 1
	published, err := dst.GetRevisionByStatus(ctx, intro.ID, "", &one)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.JSONEq(t, `{"body":"v1"}`, string(published.Content))

	r, err := traverse.New(dst, traverse.RootByID(f.root.ID), "/", "")
	require.NoError(t, err)
	res, err := r.Traverse(ctx, "/docs/intro", true)
	require.NoError(t, err)
	assert.Equal(t, traverse.Redirect, res.Status)
	assert.Equal(t, "/guide/intro", res.Path)
	res, err = r.Traverse(ctx, "/moving", true)
	require.NoError(t, err)
	assert.Equal(t, traverse.Gone, res.Status)
}

func TestRestoreExistingRoot(t *testing.T) {
	ctx := context.Background()
	e := tree.New(gormstoretest.New(t))
	f := build(t, e)

	var buf bytes.Buffer
	_, err := snapshot.Dump(ctx, e.Store(), f.root.ID, &buf)
	require.NoError(t, err)

	_, _, err = snapshot.Restore(ctx, e.Store(), &buf)
	require.ErrorIs(t, err, store.ErrUniqueConflict)

	nodes, err := e.Store().ListSubtree(ctx, f.root.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func TestRestoreUnknownVersion(t *testing.T) {
	raw, err := cbor.Marshal(snapshot.Header{Version: 99, Root: models.NewNodeID()})
	require.NoError(t, err)
	_, _, err = snapshot.Restore(context.Background(), gormstoretest.New(t), bytes.NewReader(raw))
	require.ErrorIs(t, err, snapshot.ErrUnsupportedVersion)
}

func TestRestoreGarbage(t *testing.T) {
	_, _, err := snapshot.Restore(context.Background(), gormstoretest.New(t), bytes.NewReader([]byte("not cbor")))
	require.Error(t, err)
}

func TestDumpNotRoot(t *testing.T) {
	ctx := context.Background()
	e := tree.New(gormstoretest.New(t))
	f := build(t, e)

	_, err := snapshot.Dump(ctx, e.Store(), f.intro.ID, &bytes.Buffer{})
	require.ErrorIs(t, err, snapshot.ErrNotRoot)
	_, err = snapshot.Dump(ctx, e.Store(), models.NewNodeID(), &bytes.Buffer{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRestoreReadOnly(t *testing.T) {
	ctx := context.Background()
	e := tree.New(gormstoretest.New(t))
	f := build(t, e)
	var buf bytes.Buffer
	_, err := snapshot.Dump(ctx, e.Store(), f.root.ID, &buf)
	require.NoError(t, err)

	ro := store.NewReadOnlyStore(gormstoretest.New(t), func() bool { return true })
	_, _, err = snapshot.Restore(ctx, ro, &buf)
	require.ErrorIs(t, err, store.ErrReadOnly)
}
