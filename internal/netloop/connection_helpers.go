package netloop

import "strings"

// sniffHostHeader extracts the Host header value out of a possibly-partial
// read buffer, without waiting for the full request to be framed. Used
// only to pick a tentative virtual host for the max-body-size bound
// before a request is fully parsed, per spec.md §4.D/§4.F.
func sniffHostHeader(buf []byte) (string, bool) {
	headerEnd := strings.Index(string(buf), "\r\n\r\n")
	text := string(buf)
	if headerEnd >= 0 {
		text = text[:headerEnd]
	}
	for _, line := range strings.Split(text, "\r\n") {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		if strings.EqualFold(name, "Host") {
			value := strings.TrimSpace(line[colon+1:])
			if idx := strings.LastIndexByte(value, ':'); idx >= 0 {
				value = value[:idx]
			}
			return value, true
		}
	}
	return "", false
}

// isKeepAliveRequested reports the keep-alive decision of spec.md §4.F:
// keep_alive is true only when the Connection header is exactly
// "keep-alive" (case-insensitive) -- there is no implicit HTTP/1.1
// default-to-keep-alive behaviour here, matching the original server.
func isKeepAliveRequested(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "keep-alive")
}
