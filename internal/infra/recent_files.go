package infra

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const recentFilesCacheKey = "recent"

// RecentFile is one descriptor from the app's recent-files directory.
type RecentFile struct {
	Name    string
	Key     string
	ModTime time.Time
}

type recentFileDescriptor struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// RecentFilesResolver maps window-title file names to stable file keys using
// the JSON descriptors the desktop app keeps for recently opened files.
type RecentFilesResolver struct {
	dir    string
	ttl    time.Duration
	c      *cache.Cache
	logger *zap.Logger
}

// NewRecentFilesResolver creates a resolver for dir. Scans are cached for ttl;
// a ttl of zero rescans on every lookup.
func NewRecentFilesResolver(dir string, ttl time.Duration, logger *zap.Logger) *RecentFilesResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecentFilesResolver{
		dir:    dir,
		ttl:    ttl,
		c:      cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// List returns the recent files, newest first.
func (r *RecentFilesResolver) List() []RecentFile {
	if r.ttl > 0 {
		if v, ok := r.c.Get(recentFilesCacheKey); ok {
			return v.([]RecentFile)
		}
	}

	files := r.scan()
	if r.ttl > 0 {
		r.c.Set(recentFilesCacheKey, files, cache.DefaultExpiration)
	}
	return files
}

// Resolve returns the key of the newest recent file named name.
func (r *RecentFilesResolver) Resolve(name string) (string, bool) {
	for _, f := range r.List() {
		if f.Name == name {
			return f.Key, true
		}
	}
	return "", false
}

// Invalidate drops the cached scan.
func (r *RecentFilesResolver) Invalidate() {
	r.c.Delete(recentFilesCacheKey)
}

func (r *RecentFilesResolver) scan() []RecentFile {
	if r.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Debug("failed to read recent files dir", zap.String("dir", r.dir), zap.Error(err))
		}
		return nil
	}

	var files []RecentFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.dir, e.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var desc recentFileDescriptor
		if err := json.Unmarshal(data, &desc); err != nil || desc.Name == "" {
			continue // Skip invalid descriptors
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		key := desc.Key
		if key == "" {
			key = strings.TrimSuffix(e.Name(), ".json")
		}
		files = append(files, RecentFile{Name: desc.Name, Key: key, ModTime: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files
}
