package netloop

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/RealConrad/42webserv/internal/cgi"
	"github.com/RealConrad/42webserv/internal/config"
	"github.com/RealConrad/42webserv/internal/httpmsg"
	"github.com/RealConrad/42webserv/internal/logging"
	"github.com/RealConrad/42webserv/internal/vhost"
)

// Loop is the single event loop of spec.md §4.F: it owns every listening
// socket, every accepted connection, and every in-flight CGI pipe, and
// drives all of them from one goroutine via repeated unix.Poll calls.
type Loop struct {
	cfg       *config.HTTPConfig
	listeners *listenerSet
	clients   map[int]*ClientState
	sigCh     chan os.Signal
	reloader  *reloader
}

// CGIInterpreter configures how .py CGI scripts are invoked; set by
// cmd/webserv from a flag before Run. CGI scripts are resolved the same
// way static files are -- relative to the matched virtual host's root
// directory -- so there is no separate CGI root to configure.
var CGIInterpreter = cgi.DefaultInterpreter

// Run builds the listener set for cfg and drives the event loop until
// SIGINT/SIGTERM, per spec.md §4.F/§6.
func Run(cfg *config.HTTPConfig) error {
	listeners, err := setupListeners(cfg)
	if err != nil {
		return err
	}
	rl, err := newReloader(listeners)
	if err != nil {
		logging.Warningf("graceful-restart support disabled: %v", err)
	}

	l := &Loop{
		cfg:       cfg,
		listeners: listeners,
		clients:   make(map[int]*ClientState),
		sigCh:     make(chan os.Signal, 1),
		reloader:  rl,
	}
	signal.Notify(l.sigCh, syscall.SIGINT, syscall.SIGTERM)
	if rl != nil {
		// SIGHUP lands on the same channel the main loop already polls for
		// SIGINT/SIGTERM, so the restart handshake is driven from the
		// single suspension point at the top of this loop rather than a
		// second goroutine racing it.
		signal.Notify(l.sigCh, syscall.SIGHUP)
	}

	defer func() {
		for fd := range l.clients {
			l.closeClient(fd)
		}
		listeners.close()
		if rl != nil {
			rl.stop()
		}
	}()

	logging.Successf("event loop started, pid=%d", os.Getpid())
	for {
		select {
		case sig := <-l.sigCh:
			if sig == syscall.SIGHUP && rl != nil {
				logging.Infof("received SIGHUP, starting graceful restart")
				if err := rl.upgrade(); err != nil {
					logging.Errorf("graceful restart failed: %v", err)
				}
				continue
			}
			logging.Infof("received shutdown signal, stopping event loop")
			return nil
		default:
		}
		if rl != nil && rl.exiting() {
			logging.Infof("graceful restart handed off, stopping event loop")
			return nil
		}

		if err := l.pollOnce(); err != nil {
			return err
		}
		l.sweepTimeouts()
	}
}

// pollOnce builds the pollfd set, blocks in unix.Poll for at most
// PollTimeoutMS (1000 ms when PollTimeoutMS is not positive), and
// dispatches every ready fd. This is the "single point
// of suspension" spec.md §4.F requires: the only blocking syscall in the
// whole loop.
func (l *Loop) pollOnce() error {
	pollFDs := make([]unix.PollFd, 0, len(l.listeners.fdToPort)+len(l.clients))
	index := make(map[int]*ClientState, len(l.clients))

	for fd := range l.listeners.fdToPort {
		pollFDs = append(pollFDs, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	for fd, c := range l.clients {
		var events int16 = 0
		switch c.State {
		case stateReadingHeaders, stateReadingBody:
			events = unix.POLLIN
		case stateWriting:
			events = unix.POLLOUT
		case stateWaitCGI:
			events = 0 // driven by the CGI pipe fd, registered separately below
		}
		if events != 0 {
			pollFDs = append(pollFDs, unix.PollFd{Fd: int32(fd), Events: events})
			index[fd] = c
		}
		if c.State == stateWaitCGI && c.CGI != nil {
			pollFDs = append(pollFDs, unix.PollFd{Fd: int32(c.CGI.ReadFD), Events: unix.POLLIN})
			index[c.CGI.ReadFD] = c
		}
	}

	timeout := l.cfg.PollTimeoutMS
	if timeout <= 0 {
		timeout = 1000
	}
	n, err := unix.Poll(pollFDs, timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	if n == 0 {
		return nil
	}

	for _, pfd := range pollFDs {
		if pfd.Revents == 0 {
			continue
		}
		fd := int(pfd.Fd)
		if port, ok := l.listeners.fdToPort[fd]; ok {
			l.acceptAll(fd, port)
			continue
		}
		c, ok := index[fd]
		if !ok {
			continue
		}
		switch {
		case c.State == stateWaitCGI && c.CGI != nil && fd == c.CGI.ReadFD:
			l.handleCGIReadable(c)
		case pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 && (c.State == stateReadingHeaders || c.State == stateReadingBody):
			l.handleReadable(c)
		case pfd.Revents&unix.POLLOUT != 0 && c.State == stateWriting:
			l.handleWritable(c)
		}
	}
	return nil
}

// acceptAll drains the accept backlog on a listening fd, per spec.md §4.F
// ("accept in a loop until EAGAIN so one ready event doesn't strand
// pending connections until the next poll").
func (l *Loop) acceptAll(listenFD, port int) {
	for {
		connFD, _, err := unix.Accept(listenFD)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				logging.Warningf("accept on port %d: %v", port, err)
			}
			return
		}
		if err := unix.SetNonblock(connFD, true); err != nil {
			unix.Close(connFD)
			continue
		}
		c := newClientState(connFD, port)
		l.clients[connFD] = c
		logging.Debugf("accepted connection fd=%d on port %d", connFD, port)
	}
}

func (l *Loop) closeClient(fd int) {
	c, ok := l.clients[fd]
	if !ok {
		return
	}
	if c.CGI != nil {
		c.CGI.Close()
	}
	unix.Close(fd)
	delete(l.clients, fd)
}

// sweepTimeouts closes any connection past its keep-alive or send timeout
// deadline, per spec.md §4.G. A CGI script that never writes to its pipe
// (e.g. a silent sleep past send_timeout) never makes its read fd
// poll-ready, so handleCGIReadable's own timeout check would never run --
// the sweep has to catch that case itself and route it through the same
// "respond 500 CGI timeout" path spec.md §4.E requires, rather than
// force-closing the socket with no response.
func (l *Loop) sweepTimeouts() {
	now := time.Now()
	for fd, c := range l.clients {
		if c.State == stateClosed {
			l.closeClient(fd)
			continue
		}
		if !now.After(c.deadline()) {
			continue
		}
		if c.State == stateWaitCGI && c.CGI != nil {
			l.timeoutCGI(c)
			continue
		}
		logging.Debugf("closing fd=%d: timeout in state %s", fd, c.State)
		l.closeClient(fd)
	}
}

// handleReadable performs one non-blocking read and advances the
// connection's framing state, per spec.md §4.F.
func (l *Loop) handleReadable(c *ClientState) {
	buf := make([]byte, 8192)
	n, err := unix.Read(c.FD, buf)
	if n == 0 || (err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK) {
		l.closeClient(c.FD)
		return
	}
	if n > 0 {
		c.ReadBuf = append(c.ReadBuf, buf[:n]...)
		c.touch()
	}
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return
	}

	sc := l.serverFor(c)
	maxBody := int64(100 * 1024 * 1024)
	if sc != nil {
		maxBody = sc.ClientMaxBodySize
	}
	framing := scanFraming(c.ReadBuf, maxBody)
	if !framing.headersComplete {
		return
	}
	if framing.malformedLength {
		c.Resp = httpmsg.GenericErrorPage(400, "Malformed Content-Length")
		l.beginWrite(c, false)
		return
	}
	if framing.tooLarge {
		c.Resp = httpmsg.BodyTooLarge(framing.contentLength, maxBody)
		l.beginWrite(c, false)
		return
	}
	if len(c.ReadBuf) < framing.total {
		c.State = stateReadingBody
		return
	}

	raw := c.ReadBuf[:framing.total]
	leftover := append([]byte(nil), c.ReadBuf[framing.total:]...)
	req, perr := httpmsg.ParseRequest(raw)
	c.ReadBuf = leftover
	if perr != nil {
		c.Resp = httpmsg.GenericErrorPage(400, perr.Error())
		l.beginWrite(c, false)
		return
	}
	c.Req = req
	c.State = stateProcessing
	l.process(c)
}

// serverFor resolves the virtual host for a connection's first request
// line's worth of information; used only to pick a max-body-size bound
// before the request is fully parsed, per spec.md §4.D.
func (l *Loop) serverFor(c *ClientState) *config.ServerConfig {
	host, ok := sniffHostHeader(c.ReadBuf)
	if !ok {
		return vhost.Resolve(l.cfg, c.ListenPort, "")
	}
	return vhost.Resolve(l.cfg, c.ListenPort, host)
}

// process dispatches a fully-parsed request: CGI scripts go to
// internal/cgi, everything else to internal/vhost's static handlers.
func (l *Loop) process(c *ClientState) {
	sc := vhost.Resolve(l.cfg, c.ListenPort, c.Req.HostHeader())
	c.KeepAliveTimeoutS = sc.KeepAliveTimeoutS
	if c.KeepAliveTimeoutS <= 0 {
		c.KeepAliveTimeoutS = defaultTimeoutS
	}
	c.SendTimeoutS = sc.SendTimeoutS
	if c.SendTimeoutS <= 0 {
		c.SendTimeoutS = defaultTimeoutS
	}
	c.KeepAlive = isKeepAliveRequested(c.Req.Header("Connection"))

	if vhost.IsCGITarget(c.Req.Target) {
		l.startCGI(c, sc)
		return
	}

	resp := vhost.Dispatch(sc, c.Req)
	c.Resp = resp
	l.beginWrite(c, true)
}

func (l *Loop) startCGI(c *ClientState, sc *config.ServerConfig) {
	if c.Req.Method != "GET" && c.Req.Method != "POST" {
		c.Resp = httpmsg.GenericErrorPage(403, "CGI scripts only accept GET and POST")
		l.beginWrite(c, true)
		return
	}
	scriptPath := sc.RootDirectory + requestPathOnly(c.Req.Target)
	env := cgi.BuildEnv(c.Req.Method, c.Req.Body)
	handle, err := cgi.Start(scriptPath, CGIInterpreter, env)
	if err != nil {
		logging.Errorf("failed to start CGI script %s: %v", scriptPath, err)
		c.Resp = httpmsg.GenericErrorPage(500, "CGI script failed to start")
		l.beginWrite(c, true)
		return
	}
	c.CGI = handle
	c.State = stateWaitCGI
	c.touch()
}

func requestPathOnly(target string) string {
	for i, ch := range target {
		if ch == '?' {
			return target[:i]
		}
	}
	return target
}

func (l *Loop) handleCGIReadable(c *ClientState) {
	buf := make([]byte, 8192)
	for {
		n, err := unix.Read(c.CGI.ReadFD, buf)
		if n > 0 {
			c.WriteBuf = append(c.WriteBuf, buf[:n]...)
		}
		if n == 0 || err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			break
		}
		if err != nil {
			break
		}
	}

	done, exitCode, werr := c.CGI.TryReap()
	timedOut := c.CGI.TimedOut(time.Duration(c.SendTimeoutS) * time.Second)
	if !done && !timedOut {
		return
	}
	if timedOut && !done {
		l.timeoutCGI(c)
		return
	}

	body := c.WriteBuf
	c.WriteBuf = nil
	c.CGI.Close()
	c.CGI = nil

	switch {
	case werr != nil:
		logging.Errorf("CGI wait error: %v", werr)
		c.Resp = httpmsg.GenericErrorPage(500, "Internal server error")
	case exitCode != 0:
		logging.Warningf("CGI script exited %d", exitCode)
		c.Resp = httpmsg.GenericErrorPage(500, "CGI script error")
	default:
		c.Resp = httpmsg.NewResponse(200, body, "text/html")
	}
	l.beginWrite(c, true)
}

// timeoutCGI kills a CGI child that has exceeded its server's send_timeout
// and composes the 500 "CGI timeout" response, per spec.md §4.E. Reached
// both from here and from sweepTimeouts, since a script that never writes
// to its pipe only ever gets noticed by the timer sweep.
func (l *Loop) timeoutCGI(c *ClientState) {
	logging.Warningf("CGI script exceeded send_timeout, killing")
	c.CGI.Close()
	c.CGI = nil
	c.Resp = httpmsg.GenericErrorPage(500, "CGI timeout")
	l.beginWrite(c, true)
}

// beginWrite serialises c.Resp, applies the keep-alive/close connection
// headers per spec.md §4.F, and switches the connection to WRITING.
func (l *Loop) beginWrite(c *ClientState, applyKeepAlive bool) {
	if applyKeepAlive {
		c.Resp.ApplyConnectionHeaders(c.KeepAlive, c.KeepAliveTimeoutS)
	} else {
		c.Resp.ApplyConnectionHeaders(false, 0)
		c.KeepAlive = false
	}
	c.WriteBuf = c.Resp.Bytes()
	c.WriteOff = 0
	c.State = stateWriting
	c.touch()
}

func (l *Loop) handleWritable(c *ClientState) {
	for c.WriteOff < len(c.WriteBuf) {
		n, err := unix.Write(c.FD, c.WriteBuf[c.WriteOff:])
		if n > 0 {
			c.WriteOff += n
			c.touch()
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err != nil {
			l.closeClient(c.FD)
			return
		}
		if n == 0 {
			l.closeClient(c.FD)
			return
		}
	}

	if !c.KeepAlive {
		l.closeClient(c.FD)
		return
	}
	c.WriteBuf = nil
	c.WriteOff = 0
	c.Req = nil
	c.Resp = nil
	c.State = stateReadingHeaders
	c.touch()
}
