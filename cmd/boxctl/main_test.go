package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/eigerco/boxtx/internal/store"
	"github.com/eigerco/boxtx/pkg/db/pebble"
	"github.com/eigerco/boxtx/pkg/serialization/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoteStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{InMemory: true}, store.NewEntity[Note](noteType, "Note", codec.JSONCodec[Note]{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExecute(t *testing.T) {
	s := newNoteStore(t)

	steps := []struct {
		cmd  string
		args []string
		want string
	}{
		{cmd: "put", args: []string{"buy", "milk"}, want: "1\n"},
		{cmd: "put", args: []string{"call", "home"}, want: "2\n"},
		{cmd: "set", args: []string{"5", "later"}},
		{cmd: "get", args: []string{"1"}, want: `{"text":"buy milk"}` + "\n"},
		{cmd: "count", want: "3\n"},
		{cmd: "list", want: "1\tbuy milk\n2\tcall home\n5\tlater\n"},
		{cmd: "rm", args: []string{"2"}},
		{cmd: "list", want: "1\tbuy milk\n5\tlater\n"},
	}
	for _, step := range steps {
		var out bytes.Buffer
		require.NoError(t, execute(s, step.cmd, step.args, &out), step.cmd)
		assert.Equal(t, step.want, out.String(), step.cmd)
	}
}

func TestExecuteErrors(t *testing.T) {
	s := newNoteStore(t)

	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{name: "unknown_command", cmd: "frobnicate"},
		{name: "put_without_text", cmd: "put"},
		{name: "set_without_text", cmd: "set", args: []string{"1"}},
		{name: "zero_id", cmd: "get", args: []string{"0"}},
		{name: "bad_id", cmd: "rm", args: []string{"abc"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, execute(s, tc.cmd, tc.args, &out))
			assert.Empty(t, out.String())
		})
	}

	var out bytes.Buffer
	err := execute(s, "get", []string{"42"}, &out)
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}

func TestRunPersists(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	require.NoError(t, run([]string{"-dir", dir, "put", "kept"}, &out))
	assert.Equal(t, "1\n", out.String())

	out.Reset()
	require.NoError(t, run([]string{"-dir", dir, "get", "1"}, &out))
	assert.Equal(t, `{"text":"kept"}`+"\n", out.String())
}

func TestRunConfigFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.json")
	cfg := `{"store": {"directory": "` + filepath.Join(dir, "from-config") + `"}, "log_level": "error", "log_type": "json"}`
	require.NoError(t, os.WriteFile(configFile, []byte(cfg), 0o600))

	var out bytes.Buffer
	require.NoError(t, run([]string{"-config", configFile, "put", "a"}, &out))
	assert.DirExists(t, filepath.Join(dir, "from-config"))

	// Flags override the file
	flagDir := filepath.Join(dir, "from-flag")
	out.Reset()
	require.NoError(t, run([]string{"-config", configFile, "-dir", flagDir, "count"}, &out))
	assert.Equal(t, "0\n", out.String())
	assert.DirExists(t, flagDir)
}

func TestRunRejectsBadInput(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"-mem"}, &out))
	assert.Error(t, run([]string{"-mem", "-log-level", "loud", "count"}, &out))
	assert.Error(t, run([]string{"-config", filepath.Join(t.TempDir(), "missing.json"), "count"}, &out))
}
