package cmd

import (
	"fmt"

	"github.com/iksnae/leby/internal"
	"github.com/iksnae/leby/internal/api"
)

func newClient() *api.Client {
	return api.NewClient(cfg.APIURL, cfg.RequestTimeout)
}

// newExtractor returns an extractor backed by the configured cache unless
// noCache is set.
func newExtractor(noCache bool) *internal.Extractor {
	if noCache {
		return internal.NewExtractor(nil)
	}
	cache := internal.NewCacheManager(cfg.CacheDir)
	if err := cache.EnsureCacheDir(); err != nil {
		internal.LogWarn("extraction cache disabled: %v", err)
		return internal.NewExtractor(nil)
	}
	return internal.NewExtractor(cache)
}

func openArchive() (*internal.Storage, error) {
	storage, err := internal.OpenStorage(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return storage, nil
}

func checkSupported(path string) error {
	if !internal.IsSupportedFile(path) {
		return fmt.Errorf("unsupported file %s (supported: %v)", path, internal.SupportedExtensions)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
