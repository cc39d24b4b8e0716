package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const cacheVersion = "1.0"

// CacheManager caches extracted document text so large PDFs are not
// re-parsed on every run. Entries are keyed by absolute path and are valid
// while the document's size and modification time are unchanged.
type CacheManager struct {
	cacheDir string
	mu       sync.Mutex
}

// CacheEntry describes one cached extraction
type CacheEntry struct {
	Key         string    `yaml:"key"`
	Path        string    `yaml:"path"`
	ModTime     time.Time `yaml:"mod_time"`
	Size        int64     `yaml:"size"`
	Chars       int       `yaml:"chars"`
	ExtractedAt time.Time `yaml:"extracted_at"`
}

// CacheIndex represents the YAML index of all cached extractions
type CacheIndex struct {
	Version string       `yaml:"version"`
	Entries []CacheEntry `yaml:"entries"`
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cacheDir string) *CacheManager {
	return &CacheManager{
		cacheDir: cacheDir,
	}
}

// EnsureCacheDir ensures the cache directory exists
func (cm *CacheManager) EnsureCacheDir() error {
	return os.MkdirAll(cm.cacheDir, 0755)
}

// GetCacheDir returns the cache directory path
func (cm *CacheManager) GetCacheDir() string {
	return cm.cacheDir
}

// GetIndexPath returns the path to the extraction index YAML file
func (cm *CacheManager) GetIndexPath() string {
	return filepath.Join(cm.cacheDir, "extractions.yaml")
}

// GetTextPath returns the path to a cached text file
func (cm *CacheManager) GetTextPath(key string) string {
	return filepath.Join(cm.cacheDir, fmt.Sprintf("text_%s.txt", key))
}

func cacheKey(path string) (string, string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:8]), abs
}

// LoadIndex loads the extraction index
func (cm *CacheManager) LoadIndex() (*CacheIndex, error) {
	data, err := os.ReadFile(cm.GetIndexPath())
	if err != nil {
		return nil, err
	}

	var index CacheIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	return &index, nil
}

// SaveIndex saves the extraction index
func (cm *CacheManager) SaveIndex(index *CacheIndex) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return os.WriteFile(cm.GetIndexPath(), data, 0644)
}

func (cm *CacheManager) lookup(index *CacheIndex, key string) (int, bool) {
	for i, e := range index.Entries {
		if e.Key == key {
			return i, true
		}
	}
	return -1, false
}

// IsCacheValid reports whether a cached extraction for path still matches
// the file on disk.
func (cm *CacheManager) IsCacheValid(path string) (bool, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	_, ok := cm.validEntry(path)
	return ok, nil
}

func (cm *CacheManager) validEntry(path string) (*CacheEntry, bool) {
	index, err := cm.LoadIndex()
	if err != nil || index.Version != cacheVersion {
		return nil, false
	}

	key, _ := cacheKey(path)
	i, ok := cm.lookup(index, key)
	if !ok {
		return nil, false
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	entry := index.Entries[i]
	if !entry.ModTime.Equal(info.ModTime()) || entry.Size != info.Size() {
		return nil, false
	}
	return &entry, true
}

// Load returns cached text for path when the cache entry is still valid.
func (cm *CacheManager) Load(path string) (string, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	entry, ok := cm.validEntry(path)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(cm.GetTextPath(entry.Key))
	if err != nil {
		LogDebug("cache text missing for %s: %v", path, err)
		return "", false
	}
	return string(data), true
}

// Store records the extracted text for path.
func (cm *CacheManager) Store(path, text string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return &StorageError{Path: path, Op: "read", Err: err}
	}
	if err := cm.EnsureCacheDir(); err != nil {
		return &StorageError{Path: cm.cacheDir, Op: "write", Err: err}
	}

	key, abs := cacheKey(path)
	if err := os.WriteFile(cm.GetTextPath(key), []byte(text), 0644); err != nil {
		return &StorageError{Path: cm.GetTextPath(key), Op: "write", Err: err}
	}

	index, err := cm.LoadIndex()
	if err != nil || index.Version != cacheVersion {
		index = &CacheIndex{Version: cacheVersion}
	}

	entry := CacheEntry{
		Key:         key,
		Path:        abs,
		ModTime:     info.ModTime(),
		Size:        info.Size(),
		Chars:       len([]rune(text)),
		ExtractedAt: time.Now(),
	}
	if i, ok := cm.lookup(index, key); ok {
		index.Entries[i] = entry
	} else {
		index.Entries = append(index.Entries, entry)
	}

	return cm.SaveIndex(index)
}

// ClearCache clears the cache
func (cm *CacheManager) ClearCache() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	index, err := cm.LoadIndex()
	if err == nil {
		for _, entry := range index.Entries {
			_ = os.Remove(cm.GetTextPath(entry.Key))
		}
	}

	if err := os.Remove(cm.GetIndexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
