package cache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/azybler/roadnet/pkg/graph"
)

// FileExt is the extension of cache files written by FileStore.
const FileExt = ".netcache"

// FileStore keeps one cache file per key in a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first save.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, logger: logger}
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key+FileExt)
}

// Save writes g atomically. Failures are logged and reported as false.
func (s *FileStore) Save(key string, g *graph.Graph) bool {
	path := s.Path(key)
	err := os.MkdirAll(s.dir, 0o755)
	if err == nil {
		err = graph.WriteBinary(path, g)
	}
	if err != nil {
		s.logger.Warn("cache save failed", "path", path, "error", err)
		record("file", "save", false)
		return false
	}
	s.logger.Debug("cache saved", "path", path, "nodes", g.NumNodes, "edges", g.NumEdges)
	record("file", "save", true)
	return true
}

// Load reads the graph for key. A missing, unreadable or corrupted file is a
// miss.
func (s *FileStore) Load(key string) (*graph.Graph, bool) {
	path := s.Path(key)
	g, err := decode(func() (*graph.Graph, error) {
		return graph.ReadBinary(path)
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("cache miss", "path", path)
		} else {
			s.logger.Warn("cache load failed", "path", path, "error", err)
		}
		record("file", "load", false)
		return nil, false
	}
	s.logger.Debug("cache hit", "path", path, "nodes", g.NumNodes, "edges", g.NumEdges)
	record("file", "load", true)
	return g, true
}
