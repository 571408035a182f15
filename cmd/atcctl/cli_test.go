package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/track.monitor/internal/monitoring"
)

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

const recording = "timestamp,position,x,y,z,magnitude\n" +
	"1000,10.0000,0.0000,0.1000,9.8000,9.8005\n" +
	"1020,10.0004,0.0000,1.5000,9.8000,9.9141\n" +
	"1040,10.0008,0.0000,2.9000,9.8000,10.2201\n" +
	"bad\n"

func writeRecording(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "run_0301.csv")
	require.NoError(t, os.WriteFile(path, []byte(recording), 0o644))
	return path
}

func importedID(t *testing.T, stdout string) string {
	t.Helper()
	fields := strings.Fields(stdout)
	require.GreaterOrEqual(t, len(fields), 2, "unexpected import output %q", stdout)
	return strings.TrimSuffix(fields[1], ":")
}

func TestImportThenHistoryAndExport(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	stdout, stderr, err := executeCLI(t, "--db-path", dbPath, "import", writeRecording(t, dir))
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 samples, 1 rows skipped")
	assert.Contains(t, stderr, "malformed row")
	id := importedID(t, stdout)

	stdout, _, err = executeCLI(t, "--db-path", dbPath, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, id)
	assert.Contains(t, stdout, "IMPORT_CSV")
	assert.Contains(t, stdout, "imported")

	stdout, _, err = executeCLI(t, "--db-path", dbPath, "history", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"note": "Fichier: run_0301.csv"`)

	stdout, _, err = executeCLI(t, "--db-path", dbPath, "export", id)
	require.NoError(t, err)
	assert.Equal(t, recording[:strings.Index(recording, "bad")], stdout)

	out := filepath.Join(dir, "summary.csv")
	_, _, err = executeCLI(t, "--db-path", dbPath, "summary", "-o", out)
	require.NoError(t, err)
	summary, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(summary)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], id+","))

	stdout, _, err = executeCLI(t, "--db-path", dbPath, "audit")
	require.NoError(t, err)
	assert.Contains(t, stdout, "newest="+id)
}

func TestExportUnknownRecord(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	dbPath := filepath.Join(t.TempDir(), "history.db")

	_, _, err := executeCLI(t, "--db-path", dbPath, "export", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestImportRejectsUnknownMapping(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	dir := t.TempDir()

	_, _, err := executeCLI(t, "--db-path", filepath.Join(dir, "h.db"), "import", "--mapping", "json", writeRecording(t, dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column mapping")
}

func TestHistoryEmpty(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	stdout, _, err := executeCLI(t, "--db-path", filepath.Join(t.TempDir(), "h.db"), "history")
	require.NoError(t, err)
	assert.Equal(t, "no sessions\n", stdout)
}

func TestMigrateCommands(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	dbPath := filepath.Join(t.TempDir(), "h.db")

	stdout, _, err := executeCLI(t, "--db-path", dbPath, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "applied 0 (latest 2, dirty false)")

	stdout, _, err = executeCLI(t, "--db-path", dbPath, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "schema at version 2\n", stdout)

	stdout, _, err = executeCLI(t, "--db-path", dbPath, "migrate", "down")
	require.NoError(t, err)
	assert.Equal(t, "schema at version 1\n", stdout)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "dev "))
}
