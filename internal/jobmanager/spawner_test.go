package jobmanager

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExecSpawner_EmptyCommand(t *testing.T) {
	_, err := ExecSpawner{}.Spawn(context.Background())
	assert.Error(t, err)
}

func TestExecSpawner_Stdio(t *testing.T) {
	script := writeScript(t, `echo '{"type":"ready"}'
read line
echo "$line"
echo oops >&2
`)
	proc, err := ExecSpawner{Command: []string{script}}.Spawn(context.Background())
	require.NoError(t, err)
	assert.Greater(t, proc.Pid(), 0)

	out := bufio.NewScanner(proc.Stdout())
	require.True(t, out.Scan())
	assert.Equal(t, `{"type":"ready"}`, out.Text())

	_, err = proc.Stdin().Write([]byte("{\"key\":\"k\"}\n"))
	require.NoError(t, err)
	require.True(t, out.Scan())
	assert.Equal(t, `{"key":"k"}`, out.Text())

	errOut := bufio.NewScanner(proc.Stderr())
	require.True(t, errOut.Scan())
	assert.Equal(t, "oops", errOut.Text())

	assert.NoError(t, proc.Wait())
}

func TestExecSpawner_KillEscalates(t *testing.T) {
	// The script ignores SIGTERM, so only SIGKILL stops it.
	script := writeScript(t, `trap '' TERM
echo started
while true; do sleep 0.05; done
`)
	proc, err := ExecSpawner{Command: []string{script}, Grace: 100 * time.Millisecond}.Spawn(context.Background())
	require.NoError(t, err)

	out := bufio.NewScanner(proc.Stdout())
	require.True(t, out.Scan())

	waited := make(chan error, 1)
	go func() { waited <- proc.Wait() }()

	start := time.Now()
	require.NoError(t, proc.Kill())
	require.NoError(t, proc.Kill())

	select {
	case err := <-waited:
		assert.Error(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("worker survived SIGKILL")
	}
}

func TestExecSpawner_TermStops(t *testing.T) {
	script := writeScript(t, `echo started
exec sleep 30
`)
	proc, err := ExecSpawner{Command: []string{script}}.Spawn(context.Background())
	require.NoError(t, err)

	out := bufio.NewScanner(proc.Stdout())
	require.True(t, out.Scan())

	waited := make(chan error, 1)
	go func() { waited <- proc.Wait() }()
	require.NoError(t, proc.Kill())

	select {
	case err := <-waited:
		assert.Error(t, err)
	case <-time.After(DefaultKillGrace):
		t.Fatal("SIGTERM did not stop the worker")
	}
}
