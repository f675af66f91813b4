package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haivivi/edgestore/cmd/edgectl/internal/config"
	"github.com/haivivi/edgestore/pkg/graph"
)

// setupTestEnv points the CLI at an empty config directory.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	globalConfig = nil
	configLoadErr = nil
	return dir
}

// setupMemoryContext creates and selects a memory context with a snapshot
// file and the default scope "acme".
func setupMemoryContext(t *testing.T) string {
	t.Helper()
	dir := setupTestEnv(t)
	mustRun(t, "config", "add-context", "test", "--backend", "memory", "--snapshot", "edges.snap", "--scope", "acme")
	return dir
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	resetFlags(rootCmd)
	return outBuf.String(), errBuf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := runCmd(t, args...)
	require.NoError(t, err, "edgectl %s\nstderr: %s", strings.Join(args, " "), stderr)
	return stdout
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func queryEdges(t *testing.T, args ...string) []graph.Edge {
	t.Helper()
	stdout := mustRun(t, append(args, "-o", "json")...)
	var edges []graph.Edge
	require.NoError(t, json.Unmarshal([]byte(stdout), &edges), stdout)
	return edges
}

func writeEdge(t *testing.T, source, typ, target, version string) {
	t.Helper()
	mustRun(t, "write", "--source", source, "--type", typ, "--target", target, "--version", version)
}

func TestConfigContexts(t *testing.T) {
	setupTestEnv(t)

	out := mustRun(t, "config", "list-contexts")
	assert.Contains(t, out, "No contexts configured.")

	out = mustRun(t, "config", "add-context", "dev", "--backend", "memory", "--scope", "acme")
	assert.Contains(t, out, `Switched to context "dev"`)
	mustRun(t, "config", "add-context", "disk", "--backend", "badger", "--dir", "data")

	assert.Equal(t, "dev\n", mustRun(t, "config", "current-context"))

	out = mustRun(t, "config", "list-contexts")
	assert.Contains(t, out, "BACKEND")
	assert.Regexp(t, `\*\s+dev\s+memory\s+acme`, out)
	assert.Regexp(t, `disk\s+badger`, out)

	mustRun(t, "config", "set", "page_size", "7")
	out = mustRun(t, "config", "show", "-o", "json")
	var store config.Store
	require.NoError(t, json.Unmarshal([]byte(out), &store))
	assert.Equal(t, 7, store.PageSize)
	assert.Equal(t, "acme", store.Scope)

	out = mustRun(t, "config", "show", "-c", "disk", "--jq", ".backend")
	assert.Equal(t, "badger\n", out)

	_, _, err := runCmd(t, "config", "set", "page_size", "zero")
	assert.Error(t, err)
	_, _, err = runCmd(t, "config", "add-context", "bad", "--backend", "dynamodb")
	assert.ErrorContains(t, err, "table")

	mustRun(t, "config", "use-context", "disk")
	mustRun(t, "config", "delete-context", "disk")
	assert.Equal(t, "No current context set.\n", mustRun(t, "config", "current-context"))
}

func TestWriteAndQuery(t *testing.T) {
	setupMemoryContext(t)

	writeEdge(t, "user:u1", "member", "group:g1", "100")
	writeEdge(t, "user:u1", "member", "group:g1", "50")
	writeEdge(t, "user:u1", "member", "group:g2", "5")
	writeEdge(t, "user:u2", "member", "group:g1", "7")
	writeEdge(t, "user:u1", "owns", "file:f1", "3")

	u1 := graph.NodeID{ID: "u1", Type: "user"}
	u2 := graph.NodeID{ID: "u2", Type: "user"}
	g1 := graph.NodeID{ID: "g1", Type: "group"}
	g2 := graph.NodeID{ID: "g2", Type: "group"}
	member := func(src, tgt graph.NodeID, v int64) graph.Edge {
		return graph.Edge{Source: src, Type: "member", Target: tgt, Version: v}
	}

	t.Run("from source", func(t *testing.T) {
		got := queryEdges(t, "edges", "from-source", "user:u1", "--type", "member")
		assert.Equal(t, []graph.Edge{member(u1, g1, 100), member(u1, g1, 50), member(u1, g2, 5)}, got)
	})

	t.Run("page size", func(t *testing.T) {
		got := queryEdges(t, "edges", "from-source", "user:u1", "--type", "member", "--page-size", "1")
		assert.Equal(t, []graph.Edge{member(u1, g1, 100), member(u1, g1, 50), member(u1, g2, 5)}, got)
	})

	t.Run("to target", func(t *testing.T) {
		got := queryEdges(t, "edges", "to-target", "group:g1", "--type", "member")
		assert.Equal(t, []graph.Edge{member(u1, g1, 100), member(u1, g1, 50), member(u2, g1, 7)}, got)
	})

	t.Run("max version", func(t *testing.T) {
		got := queryEdges(t, "edges", "from-source", "user:u1", "--type", "member", "--max-version", "60")
		assert.Equal(t, []graph.Edge{member(u1, g1, 50), member(u1, g2, 5)}, got)
	})

	t.Run("by node type", func(t *testing.T) {
		got := queryEdges(t, "edges", "from-source-by-target-type", "user:u1", "--type", "owns", "--node-type", "file")
		require.Len(t, got, 1)
		assert.Equal(t, "f1", got[0].Target.ID)

		got = queryEdges(t, "edges", "to-target-by-source-type", "group:g1", "--type", "member", "--node-type", "robot")
		assert.Empty(t, got)
	})

	t.Run("versions", func(t *testing.T) {
		got := queryEdges(t, "edges", "versions-from-source", "user:u1", "--type", "member", "--target", "group:g1")
		assert.Equal(t, []graph.Edge{member(u1, g1, 100), member(u1, g1, 50)}, got)

		got = queryEdges(t, "edges", "versions-to-target", "group:g1", "--type", "member", "--source", "user:u1", "--max-version", "99")
		assert.Equal(t, []graph.Edge{member(u1, g1, 50)}, got)
	})

	t.Run("limit and resume", func(t *testing.T) {
		got := queryEdges(t, "edges", "from-source", "user:u1", "--type", "member", "--limit", "1")
		assert.Equal(t, []graph.Edge{member(u1, g1, 100)}, got)

		got = queryEdges(t, "edges", "from-source", "user:u1", "--type", "member",
			"--after-node", "group:g1", "--after-version", "50")
		assert.Equal(t, []graph.Edge{member(u1, g2, 5)}, got)

		got = queryEdges(t, "edges", "versions-from-source", "user:u1", "--type", "member",
			"--target", "group:g1", "--after-version", "100")
		assert.Equal(t, []graph.Edge{member(u1, g1, 50)}, got)
	})

	t.Run("table", func(t *testing.T) {
		out := mustRun(t, "edges", "to-target", "group:g1", "--type", "member", "-o", "table")
		assert.Contains(t, out, "SOURCE")
		assert.Contains(t, out, "user:u2")
	})

	t.Run("other scope", func(t *testing.T) {
		got := queryEdges(t, "edges", "from-source", "user:u1", "--type", "member", "--scope", "globex")
		assert.Empty(t, got)
	})
}

func TestDelete(t *testing.T) {
	setupMemoryContext(t)
	writeEdge(t, "user:u1", "member", "group:g1", "100")
	writeEdge(t, "user:u1", "member", "group:g1", "50")

	out := mustRun(t, "delete", "--source", "user:u1", "--type", "member", "--target", "group:g1", "--version", "100", "-o", "json")
	var res struct {
		Action    string `json:"action"`
		Mutations int    `json:"mutations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "delete", res.Action)
	assert.Equal(t, 5, res.Mutations)

	got := queryEdges(t, "edges", "to-target", "group:g1", "--type", "member")
	require.Len(t, got, 1)
	assert.Equal(t, int64(50), got[0].Version)
}

func TestDryRun(t *testing.T) {
	dir := setupMemoryContext(t)

	out := mustRun(t, "write", "--source", "user:u1", "--type", "member", "--target", "group:g1", "--version", "1", "--dry-run", "-o", "json")
	var muts []mutationView
	require.NoError(t, json.Unmarshal([]byte(out), &muts))
	require.Len(t, muts, 5)
	for i, f := range graph.Families {
		assert.Equal(t, string(f), muts[i].Family)
		assert.True(t, strings.HasPrefix(muts[i].Row, "01"), muts[i].Row)
		assert.True(t, strings.HasPrefix(muts[i].RowText, `\x01acme|`), muts[i].RowText)
		assert.False(t, muts[i].Tombstone)
	}

	assert.Empty(t, queryEdges(t, "edges", "from-source", "user:u1", "--type", "member"))
	assert.NoFileExists(t, filepath.Join(dir, "contexts", "test", "edges.snap"))
}

func TestWriteErrors(t *testing.T) {
	setupTestEnv(t)
	mustRun(t, "config", "add-context", "noscope", "--backend", "memory")

	_, _, err := runCmd(t, "write", "--source", "user:u1", "--type", "member", "--target", "group:g1")
	assert.ErrorContains(t, err, "no scope")

	_, _, err = runCmd(t, "write", "--scope", "acme", "--source", "u1", "--type", "member", "--target", "group:g1")
	assert.ErrorIs(t, err, graph.ErrValidation)

	_, _, err = runCmd(t, "write", "--scope", "acme", "--source", "user:u1", "--type", "member", "--target", "group:g1", "--version", "-1")
	assert.ErrorIs(t, err, graph.ErrValidation)

	_, _, err = runCmd(t, "edges", "from-source", "user:u1", "--type", "member", "--scope", "acme", "--after-version", "3")
	assert.ErrorContains(t, err, "--after-node")
}

func TestInitMemory(t *testing.T) {
	dir := setupMemoryContext(t)
	out := mustRun(t, "init")
	assert.Contains(t, out, `Store ready for context "test"`)
	assert.FileExists(t, filepath.Join(dir, "contexts", "test", "edges.snap"))

	// Idempotent, and keeps existing edges.
	writeEdge(t, "user:u1", "member", "group:g1", "1")
	mustRun(t, "init")
	assert.Len(t, queryEdges(t, "edges", "from-source", "user:u1", "--type", "member"), 1)
}

func TestIDNew(t *testing.T) {
	setupTestEnv(t)
	out := mustRun(t, "id", "new", "user", "-n", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.NotEqual(t, lines[0], lines[1])
	for _, l := range lines {
		n, err := graph.ParseNodeID(l)
		require.NoError(t, err)
		assert.Equal(t, "user", n.Type)
	}
}

func TestVersion(t *testing.T) {
	setupTestEnv(t)
	assert.Contains(t, mustRun(t, "version"), "edgectl")

	out := mustRun(t, "version", "-o", "json")
	assert.Contains(t, out, `"version"`)
}
