package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/resolvekit/internal/store"
)

const libTree = `package: a
decls:
  - fun: {name: f, params: [{name: x, type: Int}]}
`

const mainTree = `package: app
imports: [a.f]
decls:
  - fun:
      name: test
      body:
        - call: {name: f, args: [{lit: Int}]}
`

// workspace writes the trees and an empty config into a temp dir.
func workspace(t *testing.T, trees map[string]string) (dir, cfg string) {
	t.Helper()
	dir = t.TempDir()
	for name, src := range trees {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	cfg = filepath.Join(t.TempDir(), "resolvekit.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log_level: error\n"), 0o644))
	return dir, cfg
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "resolvekit dev\n", out)
}

func TestResolve_Clean(t *testing.T) {
	dir, cfg := workspace(t, map[string]string{"a.yaml": libTree, "main.yaml": mainTree})
	out, _, err := execute(t, "resolve", "--config", cfg, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 units, ")
	assert.Contains(t, out, " 0 failed")
}

func TestResolve_ErrorsSetExitStatus(t *testing.T) {
	broken := strings.Replace(mainTree, "name: f,", "name: nope,", 1)
	dir, cfg := workspace(t, map[string]string{"a.yaml": libTree, "main.yaml": broken})
	out, _, err := execute(t, "resolve", "--config", cfg, dir)
	assert.ErrorIs(t, err, errDiagnostics)
	assert.Contains(t, out, "-- UnresolvedReference Error ")
	assert.Contains(t, out, "1 error, 0 warnings")
}

func TestResolve_JSONAndDB(t *testing.T) {
	dir, cfg := workspace(t, map[string]string{"a.yaml": libTree, "main.yaml": mainTree})
	db := filepath.Join(t.TempDir(), "out.db")
	metricsFile := filepath.Join(t.TempDir(), "metrics.prom")
	out, _, err := execute(t, "resolve", "--config", cfg, "--json", "--db", db, "--metrics-file", metricsFile, dir)
	require.NoError(t, err)

	var res jsonResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Units, 2)
	assert.Equal(t, filepath.Join(dir, "main.yaml"), res.Units[1].Path)
	var found bool
	for _, s := range res.Units[1].Sites {
		if s.Name == "f" && s.Role == "ref" {
			found = true
			assert.Equal(t, "fun a.f(Int)", s.Symbol)
		}
	}
	assert.True(t, found, "no site for f")

	st, err := store.Open(t.Context(), db)
	require.NoError(t, err)
	defer st.Close()
	row, err := st.Session(t.Context(), res.Session)
	require.NoError(t, err)
	assert.Equal(t, 2, row.Units)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "resolvekit_session_units_total")
}

func TestTrace_CheckGoldenArchive(t *testing.T) {
	_, cfg := workspace(t, nil)
	archive := filepath.Join("..", "..", "internal", "trace", "testdata", "imports.txtar")
	out, _, err := execute(t, "trace", "--config", cfg, "--check", archive)
	require.NoError(t, err, out)
	assert.Empty(t, out)
}

func TestTrace_Trees(t *testing.T) {
	dir, cfg := workspace(t, map[string]string{"a.yaml": libTree})
	out, _, err := execute(t, "trace", "--config", cfg, "--spans", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "unit "+filepath.Join(dir, "a.yaml")+"\n"), out)
	assert.Contains(t, out, "type Int resolved class lang.Int (default)")
}

func TestTrace_FlagConflicts(t *testing.T) {
	dir, cfg := workspace(t, map[string]string{"a.yaml": libTree})
	_, _, err := execute(t, "trace", "--config", cfg, "--check", "--update", dir)
	assert.Error(t, err)
	_, _, err = execute(t, "trace", "--config", cfg, "--check", dir)
	assert.Error(t, err)
}
