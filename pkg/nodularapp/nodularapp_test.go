package nodularapp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hasgeek/nodular/pkg/config"
	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodularapp"
	"github.com/hasgeek/nodular/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteArgs(t *testing.T, dbfile string, rest ...string) []string {
	t.Helper()
	return append([]string{"-env-file", "", "-db-driver", "sqlite", "-db-dsn", dbfile}, rest...)
}

func TestParse(t *testing.T) {
	cmd, cfg, err := nodularapp.Parse([]string{"-env-file", "", "-root", "site", "-basepath", "/docs", "-readonly", "serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", cmd.Name())
	assert.Equal(t, "site", cfg.Publish.Root)
	assert.Equal(t, "/docs", cfg.Publish.Basepath)
	assert.True(t, cfg.ReadOnly)

	cmd, _, err = nodularapp.Parse([]string{"-env-file", "", "-root", "site", "dump", "out.cbor"})
	require.NoError(t, err)
	assert.Equal(t, &nodularapp.DumpCommand{Root: "site", File: "out.cbor"}, cmd)

	cmd, _, err = nodularapp.Parse([]string{"-env-file", "", "changes", "-since", "2h", "-limit", "5"})
	require.NoError(t, err)
	assert.Equal(t, &nodularapp.ChangesCommand{Since: 2 * time.Hour, Limit: 5}, cmd)

	cmd, _, err = nodularapp.Parse([]string{"-env-file", "", "tree"})
	require.NoError(t, err)
	assert.Equal(t, &nodularapp.TreeCommand{}, cmd)
}

func TestParseFlagsOverrideEnv(t *testing.T) {
	t.Setenv(config.EnvAddr, ":9000")
	t.Setenv(config.EnvRoot, "fromenv")

	_, cfg, err := nodularapp.Parse([]string{"-env-file", "", "-addr", ":9100", "migrate"})
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "fromenv", cfg.Publish.Root)
}

func TestParseErrors(t *testing.T) {
	for name, args := range map[string][]string{
		"no command":      {},
		"unknown command": {"frobnicate"},
		"serve root":      {"serve"},
		"dump file":       {"-root", "site", "dump"},
		"restore file":    {"restore", "a", "b"},
		"since":           {"changes", "-since", "-1h"},
		"bad flag":        {"-nope", "migrate"},
		"bad driver":      {"-db-driver", "mysql", "migrate"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := nodularapp.Parse(append([]string{"-env-file", ""}, args...))
			assert.Error(t, err)
		})
	}
	_, _, err := nodularapp.Parse([]string{"-env-file", "", "serve"})
	assert.ErrorIs(t, err, config.ErrInvalid)
	_, _, err = nodularapp.Parse([]string{"-env-file", ""})
	assert.ErrorIs(t, err, nodularapp.ErrUsage)
}

// newApp returns a migrated app on a fresh SQLite file with the tree
//
//	site
//	└── docs
//	    └── intro
func newApp(t *testing.T, dbfile string, opts ...nodularapp.Option) *nodularapp.App {
	t.Helper()
	_, cfg, err := nodularapp.Parse(sqliteArgs(t, dbfile, "-root", "site", "migrate"))
	require.NoError(t, err)
	opts = append([]nodularapp.Option{nodularapp.WithLogWriter(io.Discard)}, opts...)
	app, err := nodularapp.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	require.NoError(t, app.Migrate(context.Background(), &nodularapp.MigrateCommand{}))
	return app
}

func seed(t *testing.T, app *nodularapp.App) (site, docs *models.Node) {
	t.Helper()
	ctx := context.Background()
	e := app.Engine()
	site = &models.Node{Name: "site", Title: "Site"}
	require.NoError(t, e.Create(ctx, site))
	docs = &models.Node{Name: "docs", Title: "Docs", ParentID: site.ID}
	require.NoError(t, e.Create(ctx, docs))
	require.NoError(t, e.Create(ctx, &models.Node{Name: "intro", Title: "Intro", ParentID: docs.ID}))
	return site, docs
}

func TestMainCommands(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbfile := filepath.Join(dir, "nodular.db")
	site, _ := seed(t, newApp(t, dbfile))

	var out bytes.Buffer
	run := func(args ...string) {
		t.Helper()
		out.Reset()
		require.NoError(t, nodularapp.Main(ctx, args,
			nodularapp.WithOutput(&out), nodularapp.WithLogWriter(io.Discard)))
	}

	run(sqliteArgs(t, dbfile, "-root", "site", "tree")...)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "site /"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "  docs"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "    intro"), lines[2])

	run(sqliteArgs(t, dbfile, "tree")...)
	assert.Contains(t, out.String(), site.BUID)

	snap := filepath.Join(dir, "site.cbor")
	run(sqliteArgs(t, dbfile, "-root", "site", "dump", snap)...)
	assert.Contains(t, out.String(), "3 nodes")

	restored := filepath.Join(dir, "restored.db")
	run(sqliteArgs(t, restored, "migrate")...)
	run(sqliteArgs(t, restored, "restore", snap)...)
	assert.Contains(t, out.String(), site.ID.String())
	run(sqliteArgs(t, restored, "-root", "site", "tree")...)
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)

	err := nodularapp.Main(ctx, sqliteArgs(t, restored, "restore", snap), nodularapp.WithLogWriter(io.Discard))
	require.ErrorIs(t, err, store.ErrUniqueConflict)

	run(sqliteArgs(t, dbfile, "changes", "-since", "1h")...)
	assert.Equal(t, 3, strings.Count(out.String(), "CREATE"))

	err = nodularapp.Main(ctx, sqliteArgs(t, dbfile, "-root", "missing", "tree"), nodularapp.WithLogWriter(io.Discard))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandler(t *testing.T) {
	app := newApp(t, filepath.Join(t.TempDir(), "nodular.db"),
		nodularapp.WithUserFunc(func(r *http.Request) string { return r.Header.Get("X-User") }),
		nodularapp.WithPermissionsFunc(func(r *http.Request) []string {
			if r.Header.Get("X-User") == "admin" {
				return []string{"siteadmin"}
			}
			return nil
		}))
	seed(t, app)
	h, err := app.Handler()
	require.NoError(t, err)

	do := func(method, target, body, user string) *httptest.ResponseRecorder {
		var rd io.Reader
		if body != "" {
			rd = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, rd)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","readonly":false}`, rec.Body.String())

	rec = do(http.MethodGet, "/docs/intro", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var node map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &node))
	assert.Equal(t, "/docs/intro", node["path"])

	rec = do(http.MethodPost, "/docs/children", `{"name":"faq","title":"FAQ"}`, "bob")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(http.MethodPost, "/docs/children", `{"name":"faq","title":"FAQ"}`, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	app.SetReadOnly(true)
	rec = do(http.MethodPost, "/docs/children", `{"name":"more"}`, "admin")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(http.MethodGet, "/docs/faq", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(http.MethodGet, "/healthz", "", "")
	assert.JSONEq(t, `{"status":"ok","readonly":true}`, rec.Body.String())

	rec = do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nodular_publish_total{outcome="rendered"} 3`)
	assert.Contains(t, rec.Body.String(), `nodular_publish_total{outcome="forbidden"} 1`)
	assert.Contains(t, rec.Body.String(), `nodular_traverse_total{status="match"}`)
}

func TestServeShutdown(t *testing.T) {
	dbfile := filepath.Join(t.TempDir(), "nodular.db")
	_, cfg, err := nodularapp.Parse(sqliteArgs(t, dbfile, "-root", "site", "-addr", "127.0.0.1:0", "serve"))
	require.NoError(t, err)
	app, err := nodularapp.New(cfg, nodularapp.WithLogWriter(io.Discard))
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, &nodularapp.ServeCommand{}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
