package httpmsg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealConrad/42webserv/internal/config"
)

func newTestServer(t *testing.T, root string) *config.ServerConfig {
	t.Helper()
	return &config.ServerConfig{
		RootDirectory:     root,
		IndexFile:         "index.html",
		DirectoryListing:  true,
		ClientMaxBodySize: 1024,
	}
}

func TestHandleGETServesIndex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hello index"), 0o644))

	req := &Request{Method: "GET", Target: "/"}
	resp := HandleGET(req, newTestServer(t, root))
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hello index", string(resp.Body))
}

func TestHandleGETMissingFileReturns404(t *testing.T) {
	root := t.TempDir()
	req := &Request{Method: "GET", Target: "/nope.txt"}
	resp := HandleGET(req, newTestServer(t, root))
	assert.Equal(t, 404, resp.Status)
}

func TestHandleGETServesRegularFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.css"), []byte("body{}"), 0o644))
	req := &Request{Method: "GET", Target: "/a.css"}
	resp := HandleGET(req, newTestServer(t, root))
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "text/css", resp.Header("Content-Type"))
}

func TestHandleGETDirectoryListingWhenEnabled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "files"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "files", "a.txt"), []byte("a"), 0o644))

	req := &Request{Method: "GET", Target: "/files"}
	resp := HandleGET(req, newTestServer(t, root))
	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Body), "a.txt")
}

func TestHandleGETUploadsDirGetsDeletePage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "uploads", "a.txt"), []byte("a"), 0o644))

	sc := newTestServer(t, root)
	sc.DirectoryListing = false
	req := &Request{Method: "GET", Target: "/uploads"}
	resp := HandleGET(req, sc)
	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Body), "method: 'DELETE'")
}

func TestHandlePOSTCreatesFile(t *testing.T) {
	root := t.TempDir()
	req := &Request{Method: "POST", Target: "/", UploadedFilename: "t.txt", Body: []byte("content")}
	resp := HandlePOST(req, newTestServer(t, root))
	assert.Equal(t, 201, resp.Status)

	data, err := os.ReadFile(filepath.Join(root, "t.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestHandlePOSTExistingFileRedirects(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "t.txt"), []byte("existing"), 0o644))

	req := &Request{Method: "POST", Target: "/", UploadedFilename: "t.txt", Body: []byte("new")}
	resp := HandlePOST(req, newTestServer(t, root))
	assert.Equal(t, 302, resp.Status)
	assert.Equal(t, "/t.txt", resp.Header("Location"))
}

func TestHandleDELETERemovesFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "t.txt"), []byte("x"), 0o644))

	req := &Request{Method: "DELETE", Target: "/t.txt"}
	resp := HandleDELETE(req, newTestServer(t, root))
	assert.Equal(t, 200, resp.Status)
	_, err := os.Stat(filepath.Join(root, "t.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestHandleDELETEMissingFileReturns404(t *testing.T) {
	root := t.TempDir()
	req := &Request{Method: "DELETE", Target: "/missing.txt"}
	resp := HandleDELETE(req, newTestServer(t, root))
	assert.Equal(t, 404, resp.Status)
}

func TestBodyTooLargeMessageIncludesBothSizes(t *testing.T) {
	resp := BodyTooLarge(2048, 1024)
	assert.Equal(t, 413, resp.Status)
	body := string(resp.Body)
	assert.Contains(t, body, "2048")
	assert.Contains(t, body, "1024")
}
