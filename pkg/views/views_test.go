package views_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/publisher"
	"github.com/hasgeek/nodular/pkg/registry"
	"github.com/hasgeek/nodular/pkg/store/gormstore/gormstoretest"
	"github.com/hasgeek/nodular/pkg/traverse"
	"github.com/hasgeek/nodular/pkg/tree"
	"github.com/hasgeek/nodular/pkg/views"
	"github.com/stretchr/testify/suite"
)

type ViewsSuite struct {
	suite.Suite
	ctx  context.Context
	e    *tree.Engine
	pub  *publisher.Publisher
	root *models.Node
	docs *models.Node
}

func TestViewsSuite(t *testing.T) {
	suite.Run(t, new(ViewsSuite))
}

func (s *ViewsSuite) SetupTest() {
	s.ctx = context.Background()
	s.e = tree.New(gormstoretest.New(s.T()))

	reg := registry.New()
	s.Require().NoError(views.Register(reg, s.e))

	s.root = &models.Node{Name: "root", Title: "Root"}
	s.Require().NoError(s.e.Create(s.ctx, s.root))
	s.docs = &models.Node{Name: "docs", Title: "Docs", ParentID: s.root.ID}
	s.Require().NoError(s.e.Create(s.ctx, s.docs))
	s.Require().NoError(s.e.SetProperty(s.ctx, s.root.ID, "theme", "dark"))

	r, err := traverse.New(s.e.Store(), traverse.RootNamed("root"), "/", "")
	s.Require().NoError(err)
	s.pub = publisher.New(r, reg,
		publisher.WithUserFunc(func(r *http.Request) string { return r.Header.Get("X-User") }),
		publisher.WithPermissionsFunc(func(r *http.Request) []string {
			if p := r.Header.Get("X-Perms"); p != "" {
				return strings.Split(p, ",")
			}
			return nil
		}),
	)
}

func (s *ViewsSuite) do(method, target, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.pub.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (s *ViewsSuite) TestIndex() {
	rec, out := s.do(http.MethodGet, "/docs", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("docs", out["name"])
	s.Equal("/docs", out["path"])
	s.Equal(s.docs.BUID, out["buid"])

	_, out = s.do(http.MethodGet, "/", "")
	s.Equal(map[string]any{"theme": "dark"}, out["properties"])
}

func (s *ViewsSuite) TestChildren() {
	_, out := s.do(http.MethodGet, "/children", "")
	children, ok := out["children"].([]any)
	s.Require().True(ok)
	s.Require().Len(children, 1)
	s.Equal("docs", children[0].(map[string]any)["name"])
}

func (s *ViewsSuite) TestInheritedProperty() {
	rec, out := s.do(http.MethodGet, "/docs/prop/theme", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(map[string]any{"key": "theme", "value": "dark"}, out)

	_, out = s.do(http.MethodGet, "/docs/prop/missing", "")
	s.Nil(out["value"])
}

func (s *ViewsSuite) TestCreate() {
	rec, _ := s.do(http.MethodPost, "/docs/children", `{"name":"intro","title":"Intro"}`)
	s.Equal(http.StatusForbidden, rec.Code)

	rec, out := s.do(http.MethodPost, "/docs/children", `{"name":"intro","title":"Intro"}`,
		"X-User", "alice", "X-Perms", "edit")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("/docs/intro", out["path"])
	s.Equal("alice", out["userid"])

	n, err := s.e.Children(s.docs.ID).Get(s.ctx, "intro")
	s.Require().NoError(err)
	s.Require().NotNil(n)
	s.Equal("Intro", n.Title)

	rec, _ = s.do(http.MethodPost, "/docs/children", `{"name":"intro"}`, "X-Perms", "siteadmin")
	s.Equal(http.StatusConflict, rec.Code)

	rec, _ = s.do(http.MethodPost, "/docs/children", `{"name":"a/b"}`, "X-Perms", "edit")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec, out = s.do(http.MethodPost, "/docs/children", `{not json`, "X-Perms", "edit")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(out["error"], "bad request")
}

func (s *ViewsSuite) TestDelete() {
	rec, _ := s.do(http.MethodDelete, "/docs", "", "X-Perms", "edit")
	s.Equal(http.StatusForbidden, rec.Code)

	rec, out := s.do(http.MethodDelete, "/docs", "", "X-Perms", "delete")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("/docs", out["deleted"])

	rec, _ = s.do(http.MethodGet, "/docs", "")
	s.Equal(http.StatusGone, rec.Code)

	_, out = s.do(http.MethodGet, "/aliases", "")
	s.Equal([]any{map[string]any{"name": "docs", "gone": true}}, out["aliases"])
}

func (s *ViewsSuite) TestAliasesAfterRename() {
	_, err := s.e.Rename(s.ctx, s.docs.ID, "guide")
	s.Require().NoError(err)

	rec, _ := s.do(http.MethodGet, "/docs/children", "")
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/guide/children", rec.Header().Get("Location"))

	_, out := s.do(http.MethodGet, "/aliases", "")
	s.Equal([]any{map[string]any{"name": "docs", "gone": false, "node": s.docs.ID.String()}}, out["aliases"])
}

func (s *ViewsSuite) TestMethodNotAllowed() {
	rec, _ := s.do(http.MethodPut, "/docs/children", "")
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
	s.Equal("GET, HEAD, OPTIONS, POST", rec.Header().Get("Allow"))
}
