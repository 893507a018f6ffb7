package debsmith

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorRunPropagatesExitError(t *testing.T) {
	err := testExec().Run(exec.Command("/bin/sh", "-c", "exit 3"))
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestExecutorRunInheritsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	cmd := exec.Command("/bin/sh", "-c", "pwd > out.txt")
	cmd.Dir = dir
	require.NoError(t, testExec().Run(cmd))

	out, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, string(out), resolved)
}

func TestExecutorRunCancelKillsChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{Context: ctx}

	done := make(chan error, 1)
	go func() {
		done <- e.Run(exec.Command("/bin/sh", "-c", "sleep 30"))
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "command aborted")
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not stop the command")
	}
}
