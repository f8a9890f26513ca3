// Package vhost implements spec.md §4.D: resolving a (listening port, Host
// header) pair to a virtual host, then matching the request target against
// that host's locations for the allow-check and redirection lookup.
package vhost

import (
	"strings"

	"github.com/RealConrad/42webserv/internal/config"
	"github.com/RealConrad/42webserv/internal/httpmsg"
)

// Resolve selects the virtual host for a request, per spec.md §4.D.
// Deterministic for a given (port, host) pair, per spec.md §8 invariant 5.
func Resolve(cfg *config.HTTPConfig, listenPort int, hostHeader string) *config.ServerConfig {
	return cfg.FindServer(listenPort, hostHeader)
}

// Outcome captures the allow-check / redirection decision for a request
// against a resolved virtual host, per spec.md §4.D.
type Outcome struct {
	MethodNotAllowed bool
	RedirectTo       string // non-empty => caller must send a 302
}

// Check runs the longest-prefix location match, the method allow-check, and
// the redirection lookup, per spec.md §4.D. Ties among equal-length
// prefixes resolve first-defined-wins (spec.md §8 invariant 6), which
// config.ServerConfig.MatchLocation already guarantees by only replacing
// the current best on strictly greater length.
func Check(sc *config.ServerConfig, method, target string) Outcome {
	uri := target
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		uri = uri[:idx]
	}
	loc := sc.MatchLocation(uri)
	if loc == nil || !loc.Allows(config.Method(method)) {
		return Outcome{MethodNotAllowed: true}
	}
	if loc.Redirection != "" {
		return Outcome{RedirectTo: loc.Redirection}
	}
	return Outcome{}
}

// IsCGITarget reports whether a request target should be dispatched to the
// CGI executor, per spec.md §4.E: the path (before any '?') ends in .py.
func IsCGITarget(target string) bool {
	uri := target
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		uri = uri[:idx]
	}
	return strings.HasSuffix(uri, ".py")
}

// Dispatch fully resolves a request to a response, handling the allow
// check, redirection, and method dispatch to internal/httpmsg's static
// handlers -- everything in spec.md §4.C/§4.D except CGI, which the caller
// (internal/netloop) handles separately since it requires process
// lifecycle the vhost package has no business owning.
func Dispatch(sc *config.ServerConfig, req *httpmsg.Request) *httpmsg.Response {
	outcome := Check(sc, req.Method, req.Target)
	if outcome.MethodNotAllowed {
		return httpmsg.GenericErrorPage(405, "")
	}
	if outcome.RedirectTo != "" {
		return httpmsg.LocationRedirect(outcome.RedirectTo)
	}

	switch req.Method {
	case "GET":
		return httpmsg.HandleGET(req, sc)
	case "POST":
		return httpmsg.HandlePOST(req, sc)
	case "DELETE":
		return httpmsg.HandleDELETE(req, sc)
	default:
		return httpmsg.GenericErrorPage(501, "")
	}
}
