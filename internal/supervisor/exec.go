package supervisor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultWaitDelay bounds how long a reaped worker may keep its output
// pipes open through processes it left behind.
const DefaultWaitDelay = 2 * time.Second

// ExecLauncher runs each worker as a child process:
// <Command> <Args...> --account <id>. Each worker leads its own process
// group so Kill also ends anything it spawned.
type ExecLauncher struct {
	Command   string
	Args      []string
	Env       []string
	Dir       string
	WaitDelay time.Duration
}

// NewExecLauncher re-executes the current binary's worker command unless
// command is set.
func NewExecLauncher(command string, args []string) (*ExecLauncher, error) {
	if command == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, err
		}
		command = self
		if len(args) == 0 {
			args = []string{"worker"}
		}
	}
	return &ExecLauncher{Command: command, Args: args, WaitDelay: DefaultWaitDelay}, nil
}

func (l *ExecLauncher) Launch(_ context.Context, spec WorkerSpec) (Handle, error) {
	log := spec.Logger
	if log == nil {
		log = zap.NewNop()
	}
	args := append(append([]string{}, l.Args...), "--account", spec.AccountID)
	cmd := exec.Command(l.Command, args...)
	cmd.Dir = l.Dir
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.WaitDelay = l.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	setProcessGroup(cmd)

	stdout, stdoutW := io.Pipe()
	stderr, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return nil, exitCause(err)
	}

	h := &processHandle{signals: newSignals(), cmd: cmd}
	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		h.readProtocol(stdout, log)
	}()
	go func() {
		defer pipes.Done()
		forward(stderr, log)
	}()
	go func() {
		err := cmd.Wait()
		if errors.Is(err, exec.ErrWaitDelay) {
			log.Warn("worker output still held open after exit", zap.Duration("wait_delay", cmd.WaitDelay))
			err = nil
		}
		stdoutW.Close()
		stderrW.Close()
		pipes.Wait()
		h.finish(err)
	}()
	return h, nil
}

type processHandle struct {
	*signals
	cmd *exec.Cmd
}

func (h *processHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *processHandle) Stop() error {
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

func (h *processHandle) Kill() error {
	return killProcessGroup(h.cmd.Process)
}

func (h *processHandle) readProtocol(r io.Reader, log *zap.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch line {
		case LineReady:
			h.markReady()
		case LineHeartbeat:
			h.beat()
		case "":
		default:
			log.Info("worker output", zap.String("line", line))
		}
	}
	drain(r)
}

func forward(r io.Reader, log *zap.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			log.Debug("worker stderr", zap.String("line", line))
		}
	}
	drain(r)
}

// drain keeps the worker from blocking on a full pipe after a scan error.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}
