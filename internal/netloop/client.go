// Package netloop implements spec.md §4.F/§4.G: a single-threaded,
// cooperative, poll()-based event loop over non-blocking sockets. One
// goroutine drives every listener and every connection -- no
// goroutine-per-connection, no blocking syscalls on the hot path. This
// mirrors the teacher's tcpqueue/iowait polling style but is rebuilt
// around golang.org/x/sys/unix.Poll directly, since spec.md's architecture
// (a single poll() loop owning every fd) is itself the thing being
// specified, not an implementation detail to optimise away with goroutines.
package netloop

import (
	"time"

	"github.com/RealConrad/42webserv/internal/cgi"
	"github.com/RealConrad/42webserv/internal/httpmsg"
)

// connState is the connection state machine of spec.md §3/§4.F.
type connState int

const (
	stateReadingHeaders connState = iota
	stateReadingBody
	stateProcessing
	stateWaitCGI
	stateWriting
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateReadingHeaders:
		return "READING_HEADERS"
	case stateReadingBody:
		return "READING_BODY"
	case stateProcessing:
		return "PROCESSING"
	case stateWaitCGI:
		return "WAIT_CGI"
	case stateWriting:
		return "WRITING"
	case stateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ClientState is the per-connection record of spec.md §3: everything the
// loop needs to drive one socket through the state machine without ever
// blocking on it.
type ClientState struct {
	FD         int
	ListenPort int

	State connState

	ReadBuf  []byte
	WriteBuf []byte
	WriteOff int

	KeepAlive         bool
	KeepAliveTimeoutS int
	SendTimeoutS      int

	LastActivity time.Time

	Req  *httpmsg.Request
	Resp *httpmsg.Response

	CGI *cgi.Handle
}

// defaultTimeoutS bounds an accepted connection before any server block
// has been resolved for it (the Host header hasn't been read yet, so no
// configured keepalive_timeout/send_timeout applies). Overwritten in
// Loop.process once a request is dispatched to a resolved ServerConfig.
const defaultTimeoutS = 60

func newClientState(fd, listenPort int) *ClientState {
	return &ClientState{
		FD:                fd,
		ListenPort:        listenPort,
		State:             stateReadingHeaders,
		ReadBuf:           make([]byte, 0, 4096),
		KeepAliveTimeoutS: defaultTimeoutS,
		SendTimeoutS:      defaultTimeoutS,
		LastActivity:      time.Now(),
	}
}

// deadline returns the instant this connection should be abandoned for
// inactivity, per spec.md §4.G: keep-alive timeout while idle between
// requests, send timeout while a response (including CGI) is in flight.
func (c *ClientState) deadline() time.Time {
	if c.State == stateReadingHeaders && len(c.ReadBuf) == 0 {
		return c.LastActivity.Add(time.Duration(c.KeepAliveTimeoutS) * time.Second)
	}
	return c.LastActivity.Add(time.Duration(c.SendTimeoutS) * time.Second)
}

func (c *ClientState) touch() { c.LastActivity = time.Now() }
