package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scoreline/internal/testutil"
)

// t0 is 2024-10-07T12:00:00Z.
const t0 = int64(1728302400)

const countriesFile = `{"country": "US", "timezone": "America/New_York"}
{"country": "fr", "timezone": "Europe/Paris"}
`

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func pipelineStream() *testutil.Stream {
	return testutil.NewStream().
		Register(t0, "alice", "US", "ios").
		Register(t0, "bob", "FR", "android").
		Register(t0, "dave", "us", "android").
		MatchStart(t0+100, "m1", "alice", "bob").
		MatchEnd(t0+200, "m1", "alice", "bob", 2, 1).
		Ping(t0, "dave").
		Ping(t0+60, "dave").
		Ping(t0+180, "dave").
		MatchStart(t0+300, "m2", "bob", "alice")
}

func decode(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// field walks nested JSON objects.
func field(t *testing.T, v any, path ...string) any {
	t.Helper()
	for _, p := range path {
		m, ok := v.(map[string]any)
		require.True(t, ok, "%s: not an object", p)
		v = m[p]
	}
	return v
}

func TestRunCommand_Pipeline(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "scoreline.db")
	countries := writeFile(t, dir, "countries.jsonl", countriesFile)
	events := writeFile(t, dir, "events.jsonl", pipelineStream().Lines())

	res := execute(t, "", "run", "--db", db, "--format", "json", countries, events)
	require.NoError(t, res.err, res.stderr)

	resp := decode(t, res.stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(2), field(t, resp.Data, "countries", "inserted"))
	assert.Equal(t, float64(9), field(t, resp.Data, "ingest", "lines"))
	assert.Equal(t, float64(9), field(t, resp.Data, "ingest", "committed"))
	assert.Equal(t, float64(1), field(t, resp.Data, "repair", "unfinished_matches"))
	assert.Equal(t, float64(1), field(t, resp.Data, "repair", "incomplete_sessions"))
	assert.Contains(t, res.stderr, "msg=\"ingest complete\"")

	res = execute(t, "", "verify", "--db", db)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "checked 3 users, 1 matches, 1 sessions: ok")
}

func TestIngestCommand_NoRepairLeavesViolations(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "scoreline.db")
	countries := writeFile(t, dir, "countries.jsonl", countriesFile)

	res := execute(t, "", "countries", "--db", db, countries)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "2 inserted")

	res = execute(t, pipelineStream().Lines(), "ingest", "--db", db, "--no-repair", "-")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "9 committed")
	assert.NotContains(t, res.stdout, "repair:")

	res = execute(t, "", "verify", "--db", db)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "[session-shape] session dave#2")

	res = execute(t, "", "repair", "--db", db, "--vacuum")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "repair: 1 unfinished match events, 1 incomplete session events deleted")
	assert.Contains(t, res.stdout, "vacuum: done")

	res = execute(t, "", "verify", "--db", db, "--format", "json")
	require.NoError(t, res.err)
	assert.Empty(t, field(t, decode(t, res.stdout).Data, "report", "violations"))
}

func TestIngestCommand_Window(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "scoreline.db")
	countries := writeFile(t, dir, "countries.jsonl", countriesFile)
	require.NoError(t, execute(t, "", "countries", "--db", db, countries).err)

	res := execute(t, pipelineStream().Lines(), "ingest", "--db", db, "--format", "json",
		"--from", "2024-10-08", "-")
	require.NoError(t, res.err, res.stderr)

	resp := decode(t, res.stdout)
	assert.Equal(t, float64(0), field(t, resp.Data, "ingest", "committed"))
	assert.Equal(t, float64(9), field(t, resp.Data, "ingest", "skipped", "out-of-window"))
}

func TestCommands_Errors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "scoreline.db")

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:     "missing events file",
			args:     []string{"ingest", "--db", db, filepath.Join(dir, "absent.jsonl")},
			wantCode: ExitCommandError,
			wantOut:  "Error [E003]",
		},
		{
			name:     "bad window",
			args:     []string{"ingest", "--db", db, "--to", "someday", "-"},
			wantCode: ExitCommandError,
			wantOut:  "Error [E001]",
		},
		{
			name:     "unknown driver",
			args:     []string{"verify", "--db", db, "--driver", "oracle"},
			wantCode: ExitCommandError,
			wantOut:  "Error [E001]",
		},
		{
			name:     "missing config file",
			args:     []string{"verify", "--config", filepath.Join(dir, "absent.yaml")},
			wantCode: ExitCommandError,
			wantOut:  "Error [E001]",
		},
		{
			name:     "invalid format",
			args:     []string{"verify", "--db", db, "--format", "yaml"},
			wantCode: ExitCommandError,
		},
		{
			name:     "missing argument",
			args:     []string{"ingest", "--db", db},
			wantCode: ExitCommandError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, "", tt.args...)
			require.Error(t, res.err)
			assert.Equal(t, tt.wantCode, GetExitCode(res.err))
			if tt.wantOut != "" {
				assert.Contains(t, res.stdout, tt.wantOut)
			}
		})
	}
}

func TestConfigFile_Devices(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "scoreline.db")
	countries := writeFile(t, dir, "countries.jsonl", countriesFile)
	cfg := writeFile(t, dir, "scoreline.yaml", "devices: [web]\n")

	stream := testutil.NewStream().
		Register(t0, "alice", "US", "web").
		Register(t0, "bob", "US", "ios")
	events := writeFile(t, dir, "events.jsonl", stream.Lines())

	res := execute(t, "", "run", "--config", cfg, "--db", db, "--format", "json", countries, events)
	require.NoError(t, res.err, res.stderr)

	resp := decode(t, res.stdout)
	assert.Equal(t, float64(1), field(t, resp.Data, "ingest", "committed"))
	assert.Equal(t, float64(1), field(t, resp.Data, "ingest", "outcomes", "unresolved-reference"))
}
