package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"megabots.dev/internal/persistence/indexdb"
	"megabots.dev/internal/sim/world"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestListAndDBQueries(t *testing.T) {
	data := t.TempDir()
	worldDir := filepath.Join(data, "worlds", "w1")
	require.NoError(t, os.MkdirAll(worldDir, 0o755))

	idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	require.NoError(t, err)
	require.NoError(t, idx.WriteTick(world.TickLogEntry{Tick: 7, Moves: 2, Digest: "abc"}))
	require.NoError(t, idx.WriteAudit(world.AuditEntry{Tick: 7, Actor: "s1", Action: "PICKUP", RobotID: 4, X: 2, Y: 2, Ref: 9, Weight: 300}))
	require.NoError(t, idx.WriteAudit(world.AuditEntry{Tick: 7, Actor: "s1", Action: "DROP", RobotID: 4, X: 5, Y: 5, Ref: 10, Weight: 300}))
	require.NoError(t, idx.Close())

	out, err := run(t, "list", "--data", data)
	require.NoError(t, err)
	require.Equal(t, "w1\n", out)

	out, err = run(t, "db", "ticks", "--data", data, "--world", "w1")
	require.NoError(t, err)
	require.Contains(t, out, `"digest": "abc"`)

	out, err = run(t, "db", "tasks", "--data", data, "--world", "w1")
	require.NoError(t, err)
	require.Contains(t, out, `"pickup_id": 9`)
	require.Contains(t, out, `"drop_id": 10`)

	out, err = run(t, "db", "audits", "--data", data, "--world", "w1", "--robot", "4", "--action", "drop")
	require.NoError(t, err)
	require.Contains(t, out, `"action": "DROP"`)
	require.NotContains(t, out, `"PICKUP"`)

	_, err = run(t, "db", "ticks", "--data", data)
	require.Error(t, err)
}

func TestStateFetchesAdminEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/robots/3" {
			http.NotFound(rw, r)
			return
		}
		_, _ = rw.Write([]byte(`{"id":3}`))
	}))
	defer srv.Close()

	out, err := run(t, "robot", "3", "--url", srv.URL)
	require.NoError(t, err)
	require.Equal(t, `{"id":3}`, strings.TrimSpace(out))

	_, err = run(t, "state", "--url", srv.URL)
	require.Error(t, err)
}
