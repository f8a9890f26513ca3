// Package config implements the immutable configuration tree described in
// spec.md §3/§4.A/§6: a line-oriented, brace-delimited grammar parsed once
// at startup into HTTPConfig.
package config

import "fmt"

// Method is a tagged variant over the three supported HTTP methods, per
// spec.md §9's "dynamic dispatch on method" design note.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodDelete Method = "DELETE"
)

// LocationConfig is a per-server routing rule keyed by a URL path prefix.
type LocationConfig struct {
	PathPrefix      string
	AllowedMethods  map[Method]bool
	Redirection     string
}

// Allows reports whether m is permitted at this location.
func (l LocationConfig) Allows(m Method) bool {
	return l.AllowedMethods[m]
}

// ServerConfig is one virtual host. Immutable after Load returns.
type ServerConfig struct {
	ListenPort         int
	ServerName         string
	RootDirectory      string
	IndexFile          string
	DirectoryListing   bool
	ClientMaxBodySize  int64
	KeepAliveTimeoutS  int
	SendTimeoutS       int
	Locations          []LocationConfig
}

// HTTPConfig is the whole parsed tree: one or more virtual hosts plus the
// global poll timeout (named server_timeout_time in the grammar, renamed
// PollTimeoutMS here to match spec.md §3's field name).
type HTTPConfig struct {
	Servers       []ServerConfig
	PollTimeoutMS int
}

// String reproduces original_source/src/utils.cpp's printHTTPConfig, kept
// as a debugging aid (wired to the --dump-config CLI flag).
func (c HTTPConfig) String() string {
	out := "==========Printing HTTP Config==========\n"
	for i, s := range c.Servers {
		out += fmt.Sprintf("\n====PRINTING SERVER %d====\n", i)
		out += fmt.Sprintf("Index File:\t\t%s\n", s.IndexFile)
		out += fmt.Sprintf("Server name:\t\t%s\n", s.ServerName)
		out += fmt.Sprintf("Max Body size:\t\t%d\n", s.ClientMaxBodySize)
		out += fmt.Sprintf("Port:\t\t\t%d\n", s.ListenPort)
		out += fmt.Sprintf("Root Directory:\t\t%s\n", s.RootDirectory)
		out += fmt.Sprintf("Directory listing:\t%v\n", s.DirectoryListing)
		out += fmt.Sprintf("\nLocation block for server: %d\n", i)
		for _, loc := range s.Locations {
			out += fmt.Sprintf("Location Path:\t\t%s\n", loc.PathPrefix)
			out += "Allowed:\t\t"
			for _, m := range []Method{MethodGet, MethodPost, MethodDelete} {
				if loc.AllowedMethods[m] {
					out += string(m) + " "
				}
			}
			out += "\n===========\n"
		}
	}
	out += "\nFINISHED PRINTING HTTP CONFIG!\n"
	return out
}

// FindServer selects the virtual host for (port, host) per spec.md §4.D:
// among servers on the port, the one whose ServerName matches host
// case-insensitively; if none match, the first server on the port (the
// default server). Panics if the port has no configured server at all —
// that is a programming error per spec.md §4.D ("this is a programming
// error"), never a runtime condition reachable from a real accept.
func (c HTTPConfig) FindServer(port int, host string) *ServerConfig {
	var first *ServerConfig
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.ListenPort != port {
			continue
		}
		if first == nil {
			first = s
		}
		if equalFoldHost(s.ServerName, host) {
			return s
		}
	}
	if first == nil {
		panic(fmt.Sprintf("no server configured for listening port %d", port))
	}
	return first
}

func equalFoldHost(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// MatchLocation finds the longest-prefix-matching location for uri, per
// spec.md §4.D and original_source's isMethodAllowed/isRedirection (both
// walk all locations keeping the longest locationPath that is a prefix of
// the URI; ties keep the first-defined, since strictly-greater-length is
// the only replacement condition).
func (s ServerConfig) MatchLocation(uri string) *LocationConfig {
	var best *LocationConfig
	for i := range s.Locations {
		loc := &s.Locations[i]
		if hasPrefix(uri, loc.PathPrefix) {
			if best == nil || len(loc.PathPrefix) > len(best.PathPrefix) {
				best = loc
			}
		}
	}
	return best
}

func hasPrefix(uri, prefix string) bool {
	if len(prefix) > len(uri) {
		return false
	}
	return uri[:len(prefix)] == prefix
}
