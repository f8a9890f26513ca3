// Package cgi implements spec.md §4.E: forking an interpreter against a
// .py script, piping its stdout back to the event loop, and enforcing a
// wall-clock timeout with SIGKILL + reap — the one place in the program
// that owns a child process.
//
// Grounded on spec.md §4.E directly (the C++ CGI executor was filtered out
// of the retrieved original_source pack) and on the teacher's own
// process/FD idioms: graceful_restarts/SocketHandoff's os/exec + ExtraFiles
// FD-passing, and sendfl's SyscallConn-to-raw-fd pattern.
package cgi

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/mattn/go-shellwords"
	"golang.org/x/sys/unix"

	"github.com/RealConrad/42webserv/internal/logging"
)

// DefaultInterpreter is the command line used to run .py scripts, tokenised
// with go-shellwords the same way docker/model-runner tokenises its
// model-runner argv lines.
const DefaultInterpreter = "python3"

// Handle is the CgiHandle of spec.md §3: an owning handle over
// {read_fd, child_pid}. Its Close is the destructor guarantee: close the
// fd and reap the child (SIGKILL if still running).
type Handle struct {
	ReadFD    int
	Cmd       *exec.Cmd
	StartedAt time.Time

	closed bool
}

// Start forks the interpreter against scriptPath, per spec.md §4.E's
// protocol: pipe, fork, child dup2's stdout over the pipe write end and
// execs; parent closes the write end and keeps the read end non-blocking.
//
// env carries the minimal environment the spec calls for: empty for GET,
// or REQUEST_BODY (the request body) and CONTENT_LENGTH for POST (the
// system inherits this simplification from spec.md §4.E rather than
// streaming stdin). A nil env still gives the child an empty environment.
func Start(scriptPath string, interpreter string, env []string) (*Handle, error) {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	args, err := shellwords.Parse(interpreter)
	if err != nil || len(args) == 0 {
		return nil, fmt.Errorf("invalid CGI interpreter command: %q", interpreter)
	}

	cmd := exec.Command(args[0], append(args[1:], scriptPath)...)
	// A nil Env would make exec inherit this process's environment.
	cmd.Env = append([]string{}, env...)
	cmd.Stdin = nil

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create CGI pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("failed to start CGI process: %w", err)
	}
	// Parent no longer needs the write end; the child holds its own copy.
	stdoutW.Close()

	fd := int(stdoutR.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		stdoutR.Close()
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		return nil, fmt.Errorf("failed to set CGI pipe non-blocking: %w", err)
	}

	logging.Infof("started CGI process pid=%d for %s", cmd.Process.Pid, scriptPath)
	return &Handle{ReadFD: fd, Cmd: cmd, StartedAt: time.Now()}, nil
}

// BuildEnv constructs the minimal CGI environment per spec.md §4.E.
func BuildEnv(method string, body []byte) []string {
	if method == "POST" {
		return []string{"REQUEST_BODY=" + string(body), "CONTENT_LENGTH=" + strconv.Itoa(len(body))}
	}
	return nil
}

// TryReap performs a non-blocking wait, per spec.md §4.E ("reaped via
// non-blocking wait"). Returns done=true once the child has exited, with
// its exitCode. Remaining stdout bytes are not read here; the caller reads
// them from ReadFD.
func (h *Handle) TryReap() (done bool, exitCode int, err error) {
	if h.Cmd.Process == nil {
		return true, -1, fmt.Errorf("CGI process handle has no process")
	}
	var ws unix.WaitStatus
	pid, werr := unix.Wait4(h.Cmd.Process.Pid, &ws, unix.WNOHANG, nil)
	if werr != nil {
		return false, 0, werr
	}
	if pid == 0 {
		return false, 0, nil // still running
	}
	return true, ws.ExitStatus(), nil
}

// TimedOut reports whether the wall-clock budget has been exceeded, per
// spec.md §4.E's timeout rule.
func (h *Handle) TimedOut(sendTimeout time.Duration) bool {
	return time.Since(h.StartedAt) > sendTimeout
}

// Close is the CgiHandle destructor guarantee of spec.md §3/§4.E: close
// the fd, SIGKILL the child if still running, and reap it. Safe to call
// more than once and safe to call after a normal TryReap() has already
// reaped the child.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	unix.Close(h.ReadFD)

	if h.Cmd.Process == nil {
		return nil
	}
	// SIGKILL is a no-op (ESRCH) if the child already exited; reap
	// unconditionally afterwards so no zombie can survive this path.
	_ = unix.Kill(h.Cmd.Process.Pid, unix.SIGKILL)
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(h.Cmd.Process.Pid, &ws, 0, nil)
		if err != nil || pid == h.Cmd.Process.Pid || pid <= 0 {
			break
		}
	}
	return nil
}
