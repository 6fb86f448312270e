package fetch

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// searchTTL bounds how long a cached document listing stays valid. New
// filings appear over time, so listings expire; downloaded documents are
// immutable and never expire.
const searchTTL = 24 * time.Hour

// diskCache is a best-effort file cache. Every failure degrades to a miss;
// a broken cache directory never fails a run.
type diskCache struct {
	dir    string
	logger *slog.Logger
}

func newDiskCache(dir string, logger *slog.Logger) *diskCache {
	return &diskCache{dir: dir, logger: logger}
}

func (c *diskCache) enabled() bool { return c.dir != "" }

func (c *diskCache) readSearch(cnpj string) ([]byte, bool) {
	return c.read("search_"+cnpj+".json", searchTTL)
}

func (c *diskCache) writeSearch(cnpj string, data []byte) {
	c.write("search_"+cnpj+".json", data)
}

func (c *diskCache) readDocument(id string) ([]byte, bool) {
	return c.read("doc_"+id+".xml", 0)
}

func (c *diskCache) writeDocument(id string, data []byte) {
	c.write("doc_"+id+".xml", data)
}

// read returns the cached entry unless it is missing or older than ttl.
// A zero ttl means the entry never expires.
func (c *diskCache) read(name string, ttl time.Duration) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	path := filepath.Join(c.dir, name)

	if ttl > 0 {
		info, err := os.Stat(path)
		if err != nil || time.Since(info.ModTime()) > ttl {
			return nil, false
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *diskCache) write(name string, data []byte) {
	if !c.enabled() {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("cache directory unavailable", slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, name), data, 0o644); err != nil {
		c.logger.Warn("cache write failed",
			slog.String("entry", name),
			slog.String("error", err.Error()))
	}
}
