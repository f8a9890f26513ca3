package httpmsg

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Response is the wire-level reply: status, ordered headers, body. Headers
// are kept as parallel slices to preserve insertion order on the wire,
// per spec.md §3 ("ordered map string->string ... insertion-order for
// serialisation").
type Response struct {
	Status int
	names  []string
	values []string
	Body   []byte
}

var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	302: "Found",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	413: "Payload Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
}

func ReasonPhrase(status int) string {
	if r, ok := reasonPhrases[status]; ok {
		return r
	}
	return "Unknown"
}

// SetHeader sets a header value, case-insensitively replacing any existing
// entry with the same name but preserving its original position (matching
// an ordered-map's update-in-place semantics).
func (r *Response) SetHeader(name, value string) {
	for i, n := range r.names {
		if strings.EqualFold(n, name) {
			r.values[i] = value
			return
		}
	}
	r.names = append(r.names, name)
	r.values = append(r.values, value)
}

func (r *Response) Header(name string) string {
	for i, n := range r.names {
		if strings.EqualFold(n, name) {
			return r.values[i]
		}
	}
	return ""
}

// Bytes serialises the response to wire format per spec.md §4.C: status
// line, ordered headers, blank line, body. Content-Length is always
// derived from len(Body) — invariant 4 in spec.md §8.
func (r *Response) Bytes() []byte {
	r.SetHeader("Content-Length", strconv.Itoa(len(r.Body)))
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.Status, ReasonPhrase(r.Status))
	for i, name := range r.names {
		fmt.Fprintf(&b, "%s: %s\r\n", name, r.values[i])
	}
	b.WriteString("\r\n")
	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, []byte(b.String())...)
	out = append(out, r.Body...)
	return out
}

// ApplyConnectionHeaders sets Connection/Keep-Alive per the state
// machine's keep-alive decision, matching spec.md §4.F.
func (r *Response) ApplyConnectionHeaders(keepAlive bool, keepAliveTimeoutS int) {
	if keepAlive {
		r.SetHeader("Connection", "keep-alive")
		r.SetHeader("Keep-Alive", fmt.Sprintf("timeout=%d", keepAliveTimeoutS))
	} else {
		r.SetHeader("Connection", "close")
	}
}

// NewResponse builds a response with the given status, body and content type,
// mirroring HTTPResponse::assignResponse.
func NewResponse(status int, body []byte, contentType string) *Response {
	r := &Response{Status: status, Body: body}
	r.SetHeader("Content-Type", contentType)
	return r
}

// GenericErrorPage builds the canned HTML error page, reproducing
// original_source/src/HTTPResponse.cpp's assignGenericResponse structure
// verbatim (spec.md §1 calls template content "illustrative"; the
// structure is carried over per SPEC_FULL's supplemented-features list).
func GenericErrorPage(status int, message string) *Response {
	code := strconv.Itoa(status)
	reason := ReasonPhrase(status)
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>")
	b.WriteString("<html lang=\"en\">")
	b.WriteString("<head>")
	b.WriteString("<meta charset=\"UTF-8\">")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">")
	fmt.Fprintf(&b, "<title>Webserv - %s</title>", code)
	b.WriteString("<link rel=\"stylesheet\" href=\"/styles.css\">")
	b.WriteString("<link rel=\"icon\" type=\"image/x-icon\" href=\"/favicon.ico\">")
	b.WriteString("</head>")
	b.WriteString("<body class=\"background\">")
	fmt.Fprintf(&b, "<div class=\"error\">%s - %s</div>", code, reason)
	b.WriteString("<hr>")
	fmt.Fprintf(&b, "<div class=\"info\">%s</div>", message)
	b.WriteString("<button onclick=\"window.history.back()\" class=\"back-button\">Back</button>")
	b.WriteString("</body>")
	b.WriteString("</html>")
	return NewResponse(status, []byte(b.String()), "text/html")
}

// DetermineContentType maps a URI/path suffix onto a content type, per
// spec.md §4.C static-file resolution step 3.
func DetermineContentType(uri string) string {
	switch {
	case strings.HasSuffix(uri, ".css"):
		return "text/css"
	case strings.HasSuffix(uri, ".jpg"), strings.HasSuffix(uri, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(uri, ".png"):
		return "image/png"
	case strings.HasSuffix(uri, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(uri, ".ico"):
		return "image/x-icon"
	default:
		return "text/html"
	}
}

// DirectoryListing builds the directory-listing HTML page, reproducing
// HTTPResponse::serveDirectoryListing.
func DirectoryListing(uri string, entries []os.DirEntry) *Response {
	return listingPage(uri, entries, false)
}

// DeletePage builds the /uploads directory listing where each entry
// carries a client-side DELETE trigger, reproducing
// HTTPResponse::serveDeletePage.
func DeletePage(uri string, entries []os.DirEntry) *Response {
	return listingPage(uri, entries, true)
}

func listingPage(uri string, entries []os.DirEntry, withDelete bool) *Response {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	uriSlash := uri
	if !strings.HasSuffix(uriSlash, "/") {
		uriSlash += "/"
	}

	var content strings.Builder
	for _, name := range names {
		link := uriSlash + name
		if withDelete {
			fmt.Fprintf(&content,
				"<li><a href='%s'>%s</a>"+
					"<button onclick=\"fetch('%s', {method: 'DELETE'})"+
					".then(function(response) { "+
					"if (response.ok) { window.location.reload(); } "+
					"else { alert('Delete failed with status: ' + response.status); } })"+
					".catch(function(error) { alert('Network error or no response from server'); })\">"+
					"Delete</button></li>",
				link, name, link)
		} else {
			fmt.Fprintf(&content, "<li><a href='%s'>%s</a></li>", link, name)
		}
	}

	title := "Directory Listing of"
	if withDelete {
		title = "Delete page of"
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>")
	b.WriteString("<html lang=\"en\">")
	b.WriteString("<head>")
	b.WriteString("<meta charset=\"UTF-8\">")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">")
	fmt.Fprintf(&b, "<title>%s %s</title>", title, uri)
	b.WriteString("<link rel=\"stylesheet\" href=\"/styles.css\">")
	b.WriteString("<link rel=\"icon\" type=\"image/x-icon\" href=\"/favicon.ico\">")
	b.WriteString("</head>")
	b.WriteString("<body class=\"background\">")
	fmt.Fprintf(&b, "<div class=\"error\">%s %s</div>", title, uri)
	b.WriteString("<hr>")
	fmt.Fprintf(&b, "<div class=\"info\">%s</div>", content.String())
	b.WriteString("<button onclick=\"window.history.back()\" class=\"back-button\">Back</button>")
	b.WriteString("</body>")
	b.WriteString("</html>")
	return NewResponse(200, []byte(b.String()), "text/html")
}

// RedirectResponse builds a plain 302 pointing Location at the given
// resource path, with no scheme-prefixing — used for the "file already
// exists" POST-upload case in spec.md §4.C, which points at the uploaded
// resource itself rather than a configured redirection target.
func RedirectResponse(location string) *Response {
	r := NewResponse(302, nil, "text/html")
	r.SetHeader("Location", location)
	return r
}

// LocationRedirect builds a 302 for a location's `redirection` directive,
// applying spec.md §4.D / §9's prefix rule: prepend http:// when the
// configured target has no scheme, and never parse the URL further.
func LocationRedirect(target string) *Response {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "http://" + target
	}
	return RedirectResponse(target)
}
