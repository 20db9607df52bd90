// Package storage persists archived dashboard snapshots and other files.
// Handlers and jobs depend on the Store interface; main picks the backend.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned by Open when nothing is stored at the path.
var ErrNotFound = errors.New("file not found")

// FileInfo describes a stored file.
type FileInfo struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

// Store is a flat key/object store addressed by slash-separated paths.
type Store interface {
	Save(ctx context.Context, path string, file io.Reader, contentType string) (*FileInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	// List returns the paths of the files stored under the directory dir,
	// in lexical order.
	List(ctx context.Context, dir string) ([]string, error)
	URL(path string) string
}

// Snapshot archive layout.
const (
	SnapshotDir        = "snapshots"
	LatestSnapshotPath = SnapshotDir + "/latest.json"
)

const snapshotStamp = "20060102T150405Z"

// SnapshotPath is the archive path of a snapshot generated at t.
func SnapshotPath(t time.Time) string {
	return SnapshotDir + "/" + t.UTC().Format(snapshotStamp) + ".json"
}

// SnapshotTime parses the generation time back out of a SnapshotPath.
// It reports false for any other path, LatestSnapshotPath included.
func SnapshotTime(p string) (time.Time, bool) {
	name, ok := strings.CutPrefix(p, SnapshotDir+"/")
	if !ok {
		return time.Time{}, false
	}
	stamp, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(snapshotStamp, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
