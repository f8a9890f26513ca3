package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/mattn/go-shellwords"
)

// sectionType mirrors the original's SectionTypes enum. The parser below
// does not use it: brace nesting is tracked by the nested
// parseHTTPSection/parseServerSection/parseLocationSection calls.
type sectionType int

const (
	sectionHTTP sectionType = iota
	sectionServer
	sectionLocation
)

// Load reads and parses the config file at path, returning a fully
// validated HTTPConfig, or a descriptive error per spec.md §4.A's
// validation contract. The program must not start on error (enforced by
// the caller in cmd/webserv).
func Load(path string) (HTTPConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return HTTPConfig{}, fmt.Errorf("failed to open config file: %s: %w", path, err)
	}
	defer f.Close()

	p := &parser{scanner: bufio.NewScanner(f)}
	if err := p.parseTopLevel(); err != nil {
		return HTTPConfig{}, err
	}
	if err := validate(p.config, p.haveTimeout); err != nil {
		return HTTPConfig{}, err
	}
	return p.config, nil
}

type parser struct {
	scanner *bufio.Scanner
	config  HTTPConfig
	haveTimeout bool
}

// nextLine returns the next non-blank, non-comment, trimmed line, or ok=false
// at end of file.
func (p *parser) nextLine() (string, bool) {
	for p.scanner.Scan() {
		line := strings.TrimSpace(p.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}

func (p *parser) parseTopLevel() error {
	line, ok := p.nextLine()
	if !ok {
		return fmt.Errorf("empty configuration file")
	}
	if line != "http {" {
		return fmt.Errorf("unexpected line: %s", line)
	}
	if err := p.parseHTTPSection(); err != nil {
		return err
	}
	if extra, ok := p.nextLine(); ok {
		return fmt.Errorf("unexpected trailing line after http block: %s", extra)
	}
	return nil
}

func (p *parser) parseHTTPSection() error {
	for {
		line, ok := p.nextLine()
		if !ok {
			return fmt.Errorf("configuration file is missing closing brace '}' for http section")
		}
		if line == "}" {
			return nil
		}
		if line == "server {" {
			sc, err := p.parseServerSection()
			if err != nil {
				return err
			}
			p.config.Servers = append(p.config.Servers, sc)
			continue
		}
		key, value, ok := splitKeyValue(line)
		if !ok {
			return fmt.Errorf("unknown http directive: %s", line)
		}
		switch key {
		case "server_timeout_time":
			if value == "" {
				return fmt.Errorf("value is missing for 'server_timeout_time'")
			}
			n, err := convertStringToInt(value)
			if err != nil {
				return err
			}
			p.config.PollTimeoutMS = n
			p.haveTimeout = true
		default:
			return fmt.Errorf("unknown http directive: %s", key)
		}
	}
}

var requiredServerFields = []string{"index", "root", "server_name", "listen"}

func (p *parser) parseServerSection() (ServerConfig, error) {
	sc := ServerConfig{ClientMaxBodySize: 100, DirectoryListing: false}
	defined := make(map[string]bool)
	for {
		line, ok := p.nextLine()
		if !ok {
			return sc, fmt.Errorf("configuration file is missing closing brace '}' for server section")
		}
		if line == "}" {
			break
		}
		if strings.HasPrefix(line, "location") {
			loc, err := p.parseLocationSection(line)
			if err != nil {
				return sc, err
			}
			sc.Locations = append(sc.Locations, loc)
			continue
		}
		if err := handleServerDirective(line, &sc, defined); err != nil {
			return sc, err
		}
	}

	var missing []string
	for _, req := range requiredServerFields {
		if !defined[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return sc, fmt.Errorf("server config missing required elements: %s", strings.Join(missing, " "))
	}

	seen := make(map[string]bool, len(sc.Locations))
	for _, loc := range sc.Locations {
		if seen[loc.PathPrefix] {
			return sc, fmt.Errorf("duplicate location path_prefix: %s", loc.PathPrefix)
		}
		seen[loc.PathPrefix] = true
	}
	return sc, nil
}

func handleServerDirective(line string, sc *ServerConfig, defined map[string]bool) error {
	key, value, ok := splitKeyValue(line)
	if !ok || key == "" || value == "" {
		return fmt.Errorf("could not find key or value for server directive: %s", line)
	}
	if defined[key] {
		return fmt.Errorf("duplicate key found: %s", key)
	}

	switch key {
	case "index":
		sc.IndexFile = value
	case "server_name":
		sc.ServerName = value
	case "listen":
		n, err := convertStringToInt(value)
		if err != nil {
			return err
		}
		sc.ListenPort = n
	case "keepalive_timeout":
		n, err := convertStringToInt(value)
		if err != nil {
			return err
		}
		sc.KeepAliveTimeoutS = n
	case "send_timeout":
		n, err := convertStringToInt(value)
		if err != nil {
			return err
		}
		sc.SendTimeoutS = n
	case "max_body_size":
		n, err := units.RAMInBytes(value)
		if err != nil {
			return fmt.Errorf("invalid max_body_size %q: %w", value, err)
		}
		sc.ClientMaxBodySize = n
	case "root":
		sc.RootDirectory = value
	case "directory_listing":
		sc.DirectoryListing = value == "true"
	default:
		return fmt.Errorf("unknown server key: %s", key)
	}
	defined[key] = true
	return nil
}

func (p *parser) parseLocationSection(firstLine string) (LocationConfig, error) {
	loc := LocationConfig{AllowedMethods: make(map[Method]bool)}

	fields := strings.Fields(firstLine)
	if len(fields) != 3 {
		return loc, fmt.Errorf("invalid location path format: %s", firstLine)
	}
	loc.PathPrefix = fields[1]
	if loc.PathPrefix == "" {
		return loc, fmt.Errorf("invalid location path format: %s", firstLine)
	}

	for {
		line, ok := p.nextLine()
		if !ok {
			return loc, fmt.Errorf("configuration file is missing closing brace '}' for location section")
		}
		if line == "}" {
			return loc, nil
		}
		key, value, ok := splitKeyValue(line)
		if !ok {
			return loc, fmt.Errorf("unknown key in location section: %s", line)
		}
		switch key {
		case "request_types":
			words, err := shellwords.Parse(value)
			if err != nil {
				return loc, fmt.Errorf("invalid request_types %q: %w", value, err)
			}
			for _, w := range words {
				m := Method(strings.ToUpper(strings.TrimSpace(w)))
				switch m {
				case MethodGet, MethodPost, MethodDelete:
					loc.AllowedMethods[m] = true
				default:
					return loc, fmt.Errorf("unsupported request type: %s", w)
				}
			}
		case "redirection":
			loc.Redirection = value
		default:
			return loc, fmt.Errorf("unknown key in location section: %s", key)
		}
	}
}

func validate(c HTTPConfig, haveTimeout bool) error {
	if !haveTimeout {
		return fmt.Errorf("http config missing required 'server_timeout_time'")
	}
	if c.PollTimeoutMS < 0 {
		return fmt.Errorf("'server_timeout_time' must be >= 0")
	}
	if len(c.Servers) == 0 {
		return fmt.Errorf("http config missing required 'server'")
	}
	return nil
}

// splitKeyValue mirrors Utils.cpp's splitKeyValue: the first whitespace run
// ends the key, everything after (trimmed) is the value.
func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return strings.TrimSpace(line), "", true
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx:])
	return key, value, true
}

func convertStringToInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("cannot convert to int: %s", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("cannot convert to int: %s", s)
	}
	return n, nil
}
