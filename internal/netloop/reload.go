package netloop

import "github.com/cloudflare/tableflip"

// reloader drives the SIGHUP-triggered graceful restart supplement of
// SPEC_FULL.md, grounded on graceful_restarts/tbflip/main.go: a new
// process is spawned on SIGHUP, the old one keeps draining in-flight
// connections until the new one signals Ready, then exits. Socket handoff
// itself goes through systemd socket activation (see listener.go); this
// type only owns the parent/child coordination tableflip provides.
type reloader struct {
	upg *tableflip.Upgrader
}

func newReloader(ls *listenerSet) (*reloader, error) {
	upg, err := tableflip.New(tableflip.Options{})
	if err != nil {
		return nil, err
	}
	if err := upg.Ready(); err != nil {
		upg.Stop()
		return nil, err
	}
	return &reloader{upg: upg}, nil
}

// upgrade runs tableflip's Upgrade() synchronously from the loop's own
// goroutine, in response to a SIGHUP observed at the single poll site
// (loop.go's signal select), rather than from a separate goroutine -- the
// architecture keeps exactly one suspension point and no concurrent access
// to the loop's fds, so the restart handshake is driven from inside the
// same iteration that noticed the signal instead of racing it.
func (r *reloader) upgrade() error {
	return r.upg.Upgrade()
}

// exiting reports whether the parent has been told to wind down because a
// successor process is now ready.
func (r *reloader) exiting() bool {
	select {
	case <-r.upg.Exit():
		return true
	default:
		return false
	}
}

func (r *reloader) stop() {
	r.upg.Stop()
}
