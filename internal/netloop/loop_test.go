package netloop

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealConrad/42webserv/internal/config"
)

// freeTCPPort asks the kernel for an ephemeral port and hands it back for
// bindListener to reuse, the same loopback-port-probe idiom used across
// the corpus's own networking experiments.
func freeTCPPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// waitForPort blocks until something accepts connections on port, since
// Run's listener bind happens in a goroutine the test doesn't otherwise
// synchronise with.
func waitForPort(t *testing.T, port int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener on port %d never came up", port)
}

// runAndStop starts Run(cfg) in the background, returning a function that
// signals it to shut down and waits for it to return. SIGINT is delivered
// to this process's own pid: Run's signal.Notify intercepts it rather than
// letting the default action kill the test binary, the standard way to
// drive a signal-terminated loop from a test.
func runAndStop(t *testing.T, cfg *config.HTTPConfig) func() {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- Run(cfg) }()
	return func() {
		require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not exit after SIGINT")
		}
	}
}

func TestRunServesStaticRequestOverLoopback(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hello from loop"), 0o644))

	port := freeTCPPort(t)
	cfg := &config.HTTPConfig{
		PollTimeoutMS: 50,
		Servers: []config.ServerConfig{{
			ListenPort:        port,
			ServerName:        "loopback.test",
			RootDirectory:     root,
			IndexFile:         "index.html",
			ClientMaxBodySize: 1 << 20,
			KeepAliveTimeoutS: 5,
			SendTimeoutS:      5,
			Locations: []config.LocationConfig{{
				PathPrefix:     "/",
				AllowedMethods: map[config.Method]bool{config.MethodGet: true},
			}},
		}},
	}

	stop := runAndStop(t, cfg)
	defer stop()
	waitForPort(t, port)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: loopback.test\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	raw, err := io.ReadAll(conn)
	require.NoError(t, err)
	conn.Close()

	resp := string(raw)
	assert.Contains(t, resp, "200")
	assert.Contains(t, resp, "hello from loop")
}

// TestRunCGITimeoutRespondsWith500 drives scenario #8 of spec.md §8 end to
// end through Loop: a CGI script that outlives send_timeout must produce a
// 500 "CGI timeout" response on the socket, not a silently closed
// connection. The script never writes to stdout before sleeping, so its
// pipe fd never becomes poll-ready on its own -- this only passes if
// sweepTimeouts' CGI branch (not just handleCGIReadable's) is exercised.
func TestRunCGITimeoutRespondsWith500(t *testing.T) {
	root := t.TempDir()
	cgiDir := filepath.Join(root, "cgi-bin")
	require.NoError(t, os.MkdirAll(cgiDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cgiDir, "slow.py"), []byte("sleep 2\n"), 0o755))

	prevInterpreter := CGIInterpreter
	CGIInterpreter = "/bin/sh"
	defer func() { CGIInterpreter = prevInterpreter }()

	port := freeTCPPort(t)
	cfg := &config.HTTPConfig{
		PollTimeoutMS: 50,
		Servers: []config.ServerConfig{{
			ListenPort:        port,
			ServerName:        "loopback.test",
			RootDirectory:     root,
			IndexFile:         "index.html",
			ClientMaxBodySize: 1 << 20,
			KeepAliveTimeoutS: 5,
			SendTimeoutS:      1,
			Locations: []config.LocationConfig{{
				PathPrefix:     "/",
				AllowedMethods: map[config.Method]bool{config.MethodGet: true},
			}},
		}},
	}

	stop := runAndStop(t, cfg)
	defer stop()
	waitForPort(t, port)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	_, err = conn.Write([]byte("GET /cgi-bin/slow.py HTTP/1.1\r\nHost: loopback.test\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	raw, err := io.ReadAll(conn)
	require.NoError(t, err)
	conn.Close()

	resp := string(raw)
	assert.Contains(t, resp, "500")
	assert.Contains(t, resp, "CGI timeout")
}
