package httpmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestSimpleGET(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: localhost:8080\r\nConnection: keep-alive\r\n\r\n"
	req, err := ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.Target)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "localhost", req.HostHeader())
	assert.Equal(t, "keep-alive", req.Header("Connection"))
	assert.Empty(t, req.Body)
}

func TestParseRequestWithContentLengthBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: localhost\r\nContent-Length: 5\r\n\r\nhello"
	req, err := ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(req.Body))
}

func TestParseRequestBodyShorterThanContentLengthErrors(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: localhost\r\nContent-Length: 10\r\n\r\nhello"
	_, err := ParseRequest([]byte(raw))
	require.Error(t, err)
}

func TestParseRequestMalformedRequestLine(t *testing.T) {
	raw := "GET /index.html\r\nHost: localhost\r\n\r\n"
	_, err := ParseRequest([]byte(raw))
	require.Error(t, err)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseRequestDuplicateHeaderLastWins(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: localhost\r\nX-Test: first\r\nX-Test: second\r\n\r\n"
	req, err := ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "second", req.Header("X-Test"))
}

func TestHostHeaderStripsPort(t *testing.T) {
	req := &Request{Headers: map[string]string{"Host": "example.com:9090"}}
	assert.Equal(t, "example.com", req.HostHeader())
}

func TestParseMultipartUpload(t *testing.T) {
	body := "--Boundary123\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"t.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"binary\x00data\r\n" +
		"--Boundary123--\r\n"
	raw := "POST /uploads HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Content-Type: multipart/form-data; boundary=Boundary123\r\n" +
		"Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body

	req, err := ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "t.txt", req.UploadedFilename)
	assert.Equal(t, "text/plain", req.UploadedContentType)
	assert.Equal(t, "binary\x00data", string(req.Body))
}

func TestParseMultipartMissingBoundaryErrors(t *testing.T) {
	raw := "POST /uploads HTTP/1.1\r\nHost: localhost\r\nContent-Type: multipart/form-data\r\nContent-Length: 0\r\n\r\n"
	_, err := ParseRequest([]byte(raw))
	require.Error(t, err)
}

func TestIsSupportedMethod(t *testing.T) {
	assert.True(t, IsSupportedMethod("GET"))
	assert.True(t, IsSupportedMethod("POST"))
	assert.True(t, IsSupportedMethod("DELETE"))
	assert.False(t, IsSupportedMethod("PUT"))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
