package netloop

import (
	"fmt"
	"net"
	"sort"

	"github.com/coreos/go-systemd/v22/activation"
	"golang.org/x/sys/unix"

	"github.com/RealConrad/42webserv/internal/config"
	"github.com/RealConrad/42webserv/internal/logging"
)

// listenPorts returns the distinct listening ports named across all
// virtual hosts, per spec.md §4.A ("one listening socket per distinct
// listen port, shared by every server block that names it").
func listenPorts(cfg *config.HTTPConfig) []int {
	seen := make(map[int]bool)
	var ports []int
	for _, s := range cfg.Servers {
		if !seen[s.ListenPort] {
			seen[s.ListenPort] = true
			ports = append(ports, s.ListenPort)
		}
	}
	sort.Ints(ports)
	return ports
}

// bindListener opens one non-blocking TCP listening socket on port, using
// raw unix syscalls rather than net.Listen, per spec.md §4.F: the loop
// owns every fd itself so it can register it directly with Poll rather
// than reach for it through a net.Listener's internal runtime poller.
// Grounded on the teacher's tcpqueue (socket/bind/listen sequencing) and
// sendfl (raw fd manipulation via syscall primitives).
func bindListener(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("socket(%d): %w", port, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR(%d): %w", port, err)
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind(%d): %w", port, err)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen(%d): %w", port, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("set non-blocking(%d): %w", port, err)
	}
	// spec.md §4.G's shared-resource policy: listener sockets are bound
	// SO_REUSEADDR, O_NONBLOCK, FD_CLOEXEC.
	unix.CloseOnExec(fd)
	return fd, nil
}

// listenerSet maps a listening fd to the port it was bound on.
type listenerSet struct {
	fdToPort map[int]int
}

// setupListeners binds one socket per distinct port named in cfg. When
// systemd socket activation has handed this process pre-opened listening
// sockets (LISTEN_FDS in the environment), those are reused instead --
// the graceful-restart supplement of SPEC_FULL.md, grounded on the
// teacher's graceful_restarts/systemd-socket-activation/main.go.
func setupListeners(cfg *config.HTTPConfig) (*listenerSet, error) {
	ports := listenPorts(cfg)
	ls := &listenerSet{fdToPort: make(map[int]int, len(ports))}

	activated, err := activation.Listeners()
	if err == nil && len(activated) > 0 {
		logging.Infof("inherited %d listener(s) from systemd socket activation", len(activated))
		for i, l := range activated {
			if l == nil || i >= len(ports) {
				continue
			}
			tcpL, ok := l.(*net.TCPListener)
			if !ok {
				continue
			}
			sc, err := tcpL.SyscallConn()
			if err != nil {
				continue
			}
			var fd int
			sc.Control(func(raw uintptr) { fd = int(raw) })
			dupFD, err := unix.Dup(fd)
			if err != nil {
				continue
			}
			if err := unix.SetNonblock(dupFD, true); err != nil {
				unix.Close(dupFD)
				continue
			}
			ls.fdToPort[dupFD] = ports[i]
			tcpL.Close()
		}
		if len(ls.fdToPort) == len(ports) {
			return ls, nil
		}
	}

	for _, port := range ports {
		fd, err := bindListener(port)
		if err != nil {
			// spec.md §7: a single bind/listen failure skips that listener
			// rather than aborting startup, as long as some listener binds.
			logging.Warningf("skipping listener on port %d: %v", port, err)
			continue
		}
		ls.fdToPort[fd] = port
		logging.Successf("listening on port %d (fd=%d)", port, fd)
	}
	if len(ls.fdToPort) == 0 {
		return nil, fmt.Errorf("no listener bound out of %d configured port(s)", len(ports))
	}
	return ls, nil
}

func (ls *listenerSet) fds() []int {
	fds := make([]int, 0, len(ls.fdToPort))
	for fd := range ls.fdToPort {
		fds = append(fds, fd)
	}
	return fds
}

func (ls *listenerSet) close() {
	for fd := range ls.fdToPort {
		unix.Close(fd)
	}
}
