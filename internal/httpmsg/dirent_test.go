package httpmsg

import (
	"io/fs"
	"os"
	"time"
)

// fakeDirEntry is a minimal os.DirEntry stand-in for exercising
// DirectoryListing/DeletePage without touching the filesystem.
type fakeDirEntry struct {
	name  string
	isDir bool
}

func (f fakeDirEntry) Name() string               { return f.name }
func (f fakeDirEntry) IsDir() bool                 { return f.isDir }
func (f fakeDirEntry) Type() fs.FileMode           { return 0 }
func (f fakeDirEntry) Info() (fs.FileInfo, error) { return fakeFileInfo{f}, nil }

type fakeFileInfo struct{ e fakeDirEntry }

func (f fakeFileInfo) Name() string       { return f.e.name }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() fs.FileMode  { return 0 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.e.isDir }
func (f fakeFileInfo) Sys() interface{}   { return nil }

func toDirEntries(entries []fakeDirEntry) []os.DirEntry {
	out := make([]os.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out
}
