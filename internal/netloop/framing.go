package netloop

import (
	"bytes"
	"strconv"
	"strings"
)

// requestFraming is the result of scanning a connection's accumulated read
// buffer for one full request, per spec.md §4.F's framing discipline:
// headers are complete once "\r\n\r\n" appears; the body length always
// comes from Content-Length (multipart bodies are no exception -- the
// boundary scan happens after framing, inside internal/httpmsg).
type requestFraming struct {
	headersComplete bool
	total           int // total byte length of one full request, once known
	contentLength   int64
	tooLarge        bool
	malformedLength bool
}

// scanFraming inspects buf (everything read so far for the current
// request) and reports whether a full request is present yet.
func scanFraming(buf []byte, maxBodySize int64) requestFraming {
	idx := bytes.Index(buf, []byte("\r\n\r\n"))
	if idx < 0 {
		return requestFraming{headersComplete: false}
	}
	headerEnd := idx + 4
	headBytes := buf[:idx]

	cl, found, err := extractContentLength(headBytes)
	if err != nil {
		return requestFraming{headersComplete: true, malformedLength: true}
	}
	if !found {
		return requestFraming{headersComplete: true, total: headerEnd}
	}
	if cl > maxBodySize {
		return requestFraming{headersComplete: true, contentLength: cl, tooLarge: true}
	}
	return requestFraming{
		headersComplete: true,
		total:           headerEnd + int(cl),
		contentLength:   cl,
	}
}

// extractContentLength scans raw header bytes (CRLF-separated, no
// trailing blank line) for a case-insensitive Content-Length header.
func extractContentLength(headBytes []byte) (int64, bool, error) {
	for _, line := range strings.Split(string(headBytes), "\r\n") {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		if !strings.EqualFold(name, "Content-Length") {
			continue
		}
		value := strings.TrimSpace(line[colon+1:])
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return 0, true, errInvalidContentLength
		}
		return n, true, nil
	}
	return 0, false, nil
}

var errInvalidContentLength = &framingError{"invalid Content-Length"}

type framingError struct{ msg string }

func (e *framingError) Error() string { return e.msg }
