//go:build unix

package supervisor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecKillEndsSpawnedChildren(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	// sleep inherits stdout and would keep the pipe open past its parent
	launcher := &ExecLauncher{
		Command:   sh,
		Args:      []string{"-c", "echo " + LineReady + "; sleep 30", "worker"},
		WaitDelay: 20 * time.Second,
	}
	h, err := launcher.Launch(context.Background(), WorkerSpec{AccountID: "alpha"})
	require.NoError(t, err)
	require.NotZero(t, h.PID())

	select {
	case <-h.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("worker never reported ready")
	}

	require.NoError(t, h.Kill())
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker output was still held open after kill")
	}
	require.Error(t, h.Err())
}

func TestExecWorkerExitCodeIsReported(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	launcher := &ExecLauncher{Command: sh, Args: []string{"-c", "exit 78", "worker"}}
	h, err := launcher.Launch(context.Background(), WorkerSpec{AccountID: "alpha"})
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
	var exitErr *exec.ExitError
	require.ErrorAs(t, h.Err(), &exitErr)
	require.Equal(t, ExitConfig, exitErr.ExitCode())
}
