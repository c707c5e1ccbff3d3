package traverse_test

import (
	"context"
	"testing"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodepath"
	"github.com/hasgeek/nodular/pkg/store/gormstore/gormstoretest"
	"github.com/hasgeek/nodular/pkg/traverse"
	"github.com/hasgeek/nodular/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TraversalSuite works on the tree
//
//	root
//	├── node1
//	├── node2
//	│   └── node3
//	│       └── node4
//	└── node5
//
// published once from "/" and once from "/node2" onto "/".
type TraversalSuite struct {
	suite.Suite
	ctx     context.Context
	e       *tree.Engine
	nodes   map[string]*models.Node
	rootpub *traverse.Resolver
	nodepub *traverse.Resolver
}

func TestTraversalSuite(t *testing.T) {
	suite.Run(t, new(TraversalSuite))
}

func (s *TraversalSuite) SetupTest() {
	s.ctx = context.Background()
	s.e = tree.New(gormstoretest.New(s.T()))
	s.nodes = map[string]*models.Node{}
	s.add("root", "")
	s.add("node1", "root")
	s.add("node2", "root")
	s.add("node3", "node2")
	s.add("node4", "node3")
	s.add("node5", "root")

	var err error
	root := traverse.RootByID(s.nodes["root"].ID)
	s.rootpub, err = traverse.New(s.e.Store(), root, "/", "")
	s.Require().NoError(err)
	s.nodepub, err = traverse.New(s.e.Store(), root, "/node2", "/")
	s.Require().NoError(err)
}

func (s *TraversalSuite) add(name, parent string) {
	n := &models.Node{Name: name, Title: name}
	if parent != "" {
		n.ParentID = s.nodes[parent].ID
	}
	s.Require().NoError(s.e.Create(s.ctx, n))
	s.nodes[name] = n
}

func (s *TraversalSuite) traverse(r *traverse.Resolver, path string, redirect bool) traverse.Result {
	res, err := r.Traverse(s.ctx, path, redirect)
	s.Require().NoError(err)
	return res
}

func (s *TraversalSuite) assertResult(res traverse.Result, status traverse.Status, node, path string) {
	s.Equal(status, res.Status, "status")
	if node == "" {
		s.Nil(res.Node)
	} else if s.NotNil(res.Node) {
		s.Equal(s.nodes[node].ID, res.Node.ID, "node: got %s", res.Node.Name)
	}
	s.Equal(path, res.Path, "path")
}

func (s *TraversalSuite) rename(name, to string) {
	_, err := s.e.Rename(s.ctx, s.nodes[name].ID, to)
	s.Require().NoError(err)
}

func (s *TraversalSuite) remove(name string) {
	s.Require().NoError(s.e.Delete(s.ctx, s.nodes[name].ID))
}

func (s *TraversalSuite) TestBasepaths() {
	s.Equal("/", s.rootpub.Basepath())
	s.Equal("/", s.rootpub.Urlpath())
	s.Equal("/node2", s.nodepub.Basepath())
	s.Equal("/", s.nodepub.Urlpath())

	r, err := traverse.New(s.e.Store(), traverse.RootNamed("root"), "/node2/", "")
	s.Require().NoError(err)
	s.Equal("/node2", r.Basepath())
	s.Equal("/node2", r.Urlpath())
}

func (s *TraversalSuite) TestNoRootRoot() {
	s.remove("root")
	s.assertResult(s.traverse(s.rootpub, "/node2", true), traverse.NoRoot, "", "")
}

func (s *TraversalSuite) TestNoRootNode() {
	s.remove("node2")
	s.assertResult(s.traverse(s.nodepub, "/", true), traverse.NoRoot, "", "")
}

func (s *TraversalSuite) TestMatchRoot() {
	for _, prefix := range []string{"/", ""} {
		s.assertResult(s.traverse(s.rootpub, prefix, true), traverse.Match, "root", "")
		s.assertResult(s.traverse(s.rootpub, prefix+"node2", true), traverse.Match, "node2", "")
		s.assertResult(s.traverse(s.rootpub, prefix+"node2/node3", true), traverse.Match, "node3", "")
		s.assertResult(s.traverse(s.rootpub, prefix+"node2/node3/node4/", true), traverse.Match, "node4", "")
	}
}

func (s *TraversalSuite) TestMatchNode() {
	for _, prefix := range []string{"/", ""} {
		s.assertResult(s.traverse(s.nodepub, prefix, true), traverse.Match, "node2", "")
		s.assertResult(s.traverse(s.nodepub, prefix+"node3", true), traverse.Match, "node3", "")
		s.assertResult(s.traverse(s.nodepub, prefix+"node3/node4", true), traverse.Match, "node4", "")
	}
}

func (s *TraversalSuite) TestPartial() {
	s.assertResult(s.traverse(s.rootpub, "/nodeX", true), traverse.Partial, "root", "/nodeX")
	s.assertResult(s.traverse(s.rootpub, "/node3/node4", true), traverse.Partial, "root", "/node3/node4")
	s.assertResult(s.traverse(s.rootpub, "/node2/node4", true), traverse.Partial, "node2", "/node4")
	s.assertResult(s.traverse(s.nodepub, "/node3/edit", true), traverse.Partial, "node3", "/edit")
}

func (s *TraversalSuite) TestRedirectRoot() {
	s.rename("node2", "nodeX")

	s.assertResult(s.traverse(s.rootpub, "/nodeX", true), traverse.Match, "node2", "")
	s.assertResult(s.traverse(s.rootpub, "/node2", true), traverse.Redirect, "root", "/nodeX")
	s.assertResult(s.traverse(s.rootpub, "/node2/node3", true), traverse.Redirect, "root", "/nodeX/node3")
	s.assertResult(s.traverse(s.rootpub, "/node2/node4", true), traverse.Redirect, "root", "/nodeX/node4")
}

func (s *TraversalSuite) TestRedirectNode() {
	s.rename("node3", "nodeX")

	s.assertResult(s.traverse(s.nodepub, "/nodeX", true), traverse.Match, "node3", "")
	s.assertResult(s.traverse(s.nodepub, "/node3", true), traverse.Redirect, "node2", "/nodeX")
	s.assertResult(s.traverse(s.nodepub, "/node3/node4", true), traverse.Redirect, "node2", "/nodeX/node4")
}

func (s *TraversalSuite) TestRedirectSubnode() {
	s.rename("node4", "nodeX")

	s.assertResult(s.traverse(s.nodepub, "/node3/nodeX", true), traverse.Match, "node4", "")
	s.assertResult(s.traverse(s.nodepub, "/node3/node4", true), traverse.Redirect, "node3", "/node3/nodeX")

	samepub, err := traverse.New(s.e.Store(), traverse.RootByID(s.nodes["root"].ID), "/node2", "/node2")
	s.Require().NoError(err)
	s.assertResult(s.traverse(samepub, "/node3/node4", true), traverse.Redirect, "node3", "/node2/node3/nodeX")
}

func (s *TraversalSuite) TestRedirectAfterMove() {
	s.rename("node3", "nodeY")
	_, err := s.e.Move(s.ctx, s.nodes["node3"].ID, s.nodes["node1"].ID)
	s.Require().NoError(err)

	// The renamed-away name follows the node to its new place.
	s.assertResult(s.traverse(s.rootpub, "/node2/node3/node4", true), traverse.Redirect, "node2", "/node1/nodeY/node4")
	// The name it moved away from is gone.
	s.assertResult(s.traverse(s.rootpub, "/node2/nodeY", true), traverse.Gone, "node2", "/nodeY")
	// Outside the published subtree the old name cannot redirect.
	s.assertResult(s.traverse(s.nodepub, "/node3", true), traverse.Gone, "node2", "/node3")
}

func (s *TraversalSuite) TestGone() {
	s.remove("node3")

	s.assertResult(s.traverse(s.rootpub, "/node2/node3", true), traverse.Gone, "node2", "/node3")
	s.assertResult(s.traverse(s.rootpub, "/node2/node3/node4", true), traverse.Gone, "node2", "/node3/node4")
	s.assertResult(s.traverse(s.nodepub, "/node3", true), traverse.Gone, "node2", "/node3")
	s.assertResult(s.traverse(s.nodepub, "/node3/node4", true), traverse.Gone, "node2", "/node3/node4")
}

func (s *TraversalSuite) TestNoRedirect() {
	s.rename("node2", "nodeX")
	s.remove("node5")

	s.assertResult(s.traverse(s.rootpub, "/node2/node3", false), traverse.Partial, "root", "/node2/node3")
	s.assertResult(s.traverse(s.rootpub, "/node5", false), traverse.Partial, "root", "/node5")
	s.assertResult(s.traverse(s.nodepub, "/", false), traverse.NoRoot, "", "")
}

func (s *TraversalSuite) TestRootByName() {
	r, err := traverse.New(s.e.Store(), traverse.RootNamed("site"), "/", "")
	s.Require().NoError(err)
	s.assertResult(s.traverse(r, "/", true), traverse.NoRoot, "", "")

	site := &models.Node{Name: "site"}
	s.Require().NoError(s.e.Create(s.ctx, site))
	s.nodes["site"] = site
	s.assertResult(s.traverse(r, "/", true), traverse.Match, "site", "")

	id, err := r.RootID(s.ctx)
	s.Require().NoError(err)
	s.Equal(site.ID, id)
}

func TestObserver(t *testing.T) {
	ctx := context.Background()
	e := tree.New(gormstoretest.New(t))
	root := &models.Node{Name: "root"}
	require.NoError(t, e.Create(ctx, root))

	var seen []traverse.Status
	r, err := traverse.New(e.Store(), traverse.RootByID(root.ID), "/", "", traverse.WithObserver(func(s traverse.Status) {
		seen = append(seen, s)
	}))
	require.NoError(t, err)

	_, err = r.Traverse(ctx, "/", true)
	require.NoError(t, err)
	_, err = r.Traverse(ctx, "/missing", true)
	require.NoError(t, err)
	assert.Equal(t, []traverse.Status{traverse.Match, traverse.Partial}, seen)
}

func TestNewInvalid(t *testing.T) {
	s := gormstoretest.New(t)
	_, err := traverse.New(s, traverse.RootNamed("root"), "node2", "")
	assert.ErrorIs(t, err, nodepath.ErrNotAbsolute)
	_, err = traverse.New(s, traverse.RootNamed("root"), "/node2", "node2")
	assert.ErrorIs(t, err, nodepath.ErrNotAbsolute)
	_, err = traverse.New(s, traverse.Root{}, "/", "")
	assert.Error(t, err)
}

func TestURLPaths(t *testing.T) {
	r, err := traverse.New(gormstoretest.New(t), traverse.RootNamed("root"), "/node2", "/site")
	require.NoError(t, err)

	assert.Equal(t, "/site", r.URLPath("/node2"))
	assert.Equal(t, "/site/node3/edit", r.URLPath("/node2/node3/edit"))

	for _, tc := range []struct {
		url, want string
		ok        bool
	}{
		{"/site", "/", true},
		{"/site/node3", "/node3", true},
		{"/sitemap", "", false},
		{"/other", "", false},
	} {
		got, ok := r.Relative(tc.url)
		assert.Equal(t, tc.ok, ok, tc.url)
		assert.Equal(t, tc.want, got, tc.url)
	}

	assert.Equal(t, []string{"match", "redirect", "partial", "noroot", "gone"}, []string{
		traverse.Match.String(), traverse.Redirect.String(), traverse.Partial.String(),
		traverse.NoRoot.String(), traverse.Gone.String(),
	})
}
