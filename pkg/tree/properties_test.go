package tree_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/store"
	"github.com/hasgeek/nodular/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func propTree(t *testing.T) (*tree.Engine, map[string]*models.Node) {
	t.Helper()
	e := newEngine(t)
	root := mk(t, e, nil, "root")
	node2 := mk(t, e, root, "node2")
	node3 := mk(t, e, node2, "node3")
	return e, map[string]*models.Node{
		"root":  root,
		"node1": mk(t, e, root, "node1"),
		"node2": node2,
		"node3": node3,
		"node4": mk(t, e, node3, "node4"),
	}
}

func TestPropertyDict(t *testing.T) {
	ctx := context.Background()
	e, nodes := propTree(t)
	id := nodes["node1"].ID

	require.NoError(t, e.SetProperty(ctx, id, "prop1", "strvalue"))
	require.NoError(t, e.SetProperty(ctx, id, "prop2", 123))
	require.NoError(t, e.SetProperty(ctx, id, "geo:lat", 12.96148))

	props, err := e.Properties(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"prop1": "strvalue", "prop2": float64(123), "geo:lat": 12.96148}, props)

	require.NoError(t, e.SetProperty(ctx, id, "prop1", "otherval"))
	require.NoError(t, e.DeleteProperty(ctx, id, "prop2"))
	require.NoError(t, e.DeleteProperty(ctx, id, "missing"))
	props, err = e.Properties(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"prop1": "otherval", "geo:lat": 12.96148}, props)
}

func TestPropertyLimits(t *testing.T) {
	ctx := context.Background()
	e, nodes := propTree(t)
	id := nodes["node1"].ID

	err := e.SetProperty(ctx, id, "big", strings.Repeat("x", 1000))
	assert.ErrorIs(t, err, store.ErrValueTooLong)
	// 998 characters plus the two quotes fits exactly.
	require.NoError(t, e.SetProperty(ctx, id, "big", strings.Repeat("x", 998)))

	err = e.SetProperty(ctx, id, strings.Repeat("n", 41)+":p", 1)
	assert.ErrorIs(t, err, store.ErrInvalidKey)
	err = e.SetProperty(ctx, models.NewNodeID(), "k", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPropertyInvalidValue(t *testing.T) {
	ctx := context.Background()
	e, nodes := propTree(t)
	id := nodes["node1"].ID

	err := e.Store().Transaction(ctx, func(tx store.Tx) error {
		return tx.PutProperty(ctx, &models.Property{NodeID: id, Name: "propval", Value: models.JSONValue("invalid_value")})
	})
	require.NoError(t, err)

	props, err := e.Properties(ctx, id)
	require.NoError(t, err)
	assert.NotContains(t, props, "propval")

	raw, err := e.Store().GetProperty(ctx, id, "propval")
	require.NoError(t, err)
	assert.Equal(t, "invalid_value", string(raw.Value))

	got, err := e.GetProp(ctx, nodes["node1"], "propval", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", got)
}

func TestPropertyScalarValues(t *testing.T) {
	ctx := context.Background()
	e, nodes := propTree(t)

	values := map[string]any{
		"int":    float64(42),
		"float":  1.5,
		"bool":   true,
		"string": "text",
		"list":   []any{float64(1), float64(2)},
		"object": map[string]any{"k": float64(1)},
		"null":   nil,
	}
	for k, v := range values {
		require.NoError(t, e.SetProperty(ctx, nodes["root"].ID, k, v), k)
	}
	for k, v := range values {
		got, err := e.GetProp(ctx, nodes["node4"], k, "default")
		require.NoError(t, err, k)
		assert.Equal(t, v, got, k)
	}

	props, err := e.Properties(ctx, nodes["root"].ID)
	require.NoError(t, err)
	assert.Equal(t, values, props)
}

func TestGetProp(t *testing.T) {
	ctx := context.Background()
	e, nodes := propTree(t)

	require.NoError(t, e.SetProperty(ctx, nodes["root"].ID, "inherited", "root"))
	require.NoError(t, e.SetProperty(ctx, nodes["node2"].ID, "inherited", "node2"))
	require.NoError(t, e.SetProperty(ctx, nodes["node2"].ID, "branch", true))
	require.NoError(t, e.SetProperty(ctx, nodes["node1"].ID, "sibling", 1))

	getprop := func(name, key string) any {
		v, err := e.GetProp(ctx, nodes[name], key, nil)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "root", getprop("root", "inherited"))
	assert.Equal(t, "root", getprop("node1", "inherited"))
	assert.Equal(t, "node2", getprop("node2", "inherited"))
	assert.Equal(t, "node2", getprop("node4", "inherited"))
	assert.Equal(t, true, getprop("node3", "branch"))
	assert.Nil(t, getprop("node1", "branch"))
	assert.Nil(t, getprop("node4", "sibling"))
	assert.Equal(t, float64(1), getprop("node1", "sibling"))

	v, err := e.GetProp(ctx, nodes["node4"], "absent", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPropertiesCascade(t *testing.T) {
	ctx := context.Background()
	e, nodes := propTree(t)
	id := nodes["node4"].ID
	require.NoError(t, e.SetProperty(ctx, id, "k", "v"))
	require.NoError(t, e.Delete(ctx, nodes["node2"].ID))

	p, err := e.Store().GetProperty(ctx, id, "k")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	e, nodes := propTree(t)
	node1 := nodes["node1"]
	require.NoError(t, e.SetProperty(ctx, node1.ID, "color", "red"))

	out, err := e.Export(ctx, node1.ID)
	require.NoError(t, err)
	assert.Equal(t, node1.BUID, out["buid"])
	assert.Equal(t, "/node1", out["path"])
	assert.Equal(t, map[string]any{"color": "red"}, out["properties"])

	author := "u1"
	data := models.NodeData{
		UUID:        node1.BUID,
		Name:        "moved",
		Title:       "Imported",
		Author:      &author,
		PublishedAt: "2024-01-02T03:04:05Z",
		Properties:  map[string]any{"size": "xl"},
	}
	got, err := e.Import(ctx, nodes["node3"].ID, models.DefaultType, data)
	require.NoError(t, err)
	assert.Equal(t, node1.ID, got.ID)
	assert.Equal(t, "/node2/node3/moved", got.Path)
	assert.Equal(t, "Imported", got.Title)

	props, err := e.Properties(ctx, node1.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"color": "red", "size": "xl"}, props)

	fresh, err := e.Import(ctx, nodes["root"].ID, "page", models.NodeData{UUID: models.NewBUID(), Name: "new", Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, "/new", fresh.Path)
	assert.Equal(t, "page", fresh.Type)
	assert.Equal(t, data.UUID, node1.BUID)
}
