package netloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanFramingIncompleteHeaders(t *testing.T) {
	f := scanFraming([]byte("GET / HTTP/1.1\r\nHost: x"), 1024)
	assert.False(t, f.headersComplete)
}

func TestScanFramingNoBody(t *testing.T) {
	buf := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	f := scanFraming(buf, 1024)
	assert.True(t, f.headersComplete)
	assert.Equal(t, len(buf), f.total)
}

func TestScanFramingWithContentLength(t *testing.T) {
	buf := []byte("POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello")
	f := scanFraming(buf, 1024)
	assert.True(t, f.headersComplete)
	assert.EqualValues(t, 5, f.contentLength)
	assert.Equal(t, len(buf), f.total)
}

func TestScanFramingTooLarge(t *testing.T) {
	buf := []byte("POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 2000\r\n\r\n")
	f := scanFraming(buf, 1024)
	assert.True(t, f.headersComplete)
	assert.True(t, f.tooLarge)
}

func TestScanFramingInvalidContentLength(t *testing.T) {
	buf := []byte("POST / HTTP/1.1\r\nHost: x\r\nContent-Length: notanumber\r\n\r\n")
	f := scanFraming(buf, 1024)
	assert.True(t, f.malformedLength)
}

func TestSniffHostHeader(t *testing.T) {
	host, ok := sniffHostHeader([]byte("GET / HTTP/1.1\r\nHost: example.com:8080\r\n\r\n"))
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
}

func TestSniffHostHeaderMissing(t *testing.T) {
	_, ok := sniffHostHeader([]byte("GET / HTTP/1.1\r\n\r\n"))
	assert.False(t, ok)
}

func TestIsKeepAliveRequested(t *testing.T) {
	assert.True(t, isKeepAliveRequested("keep-alive"))
	assert.True(t, isKeepAliveRequested("Keep-Alive"))
	assert.False(t, isKeepAliveRequested("close"))
	assert.False(t, isKeepAliveRequested(""))
}
