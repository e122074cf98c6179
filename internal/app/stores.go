package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"blockforge/internal/config"
	"blockforge/internal/upstream"
	"blockforge/internal/version"
)

const versionCacheEntries = 256

func initVersionStore(cfg *config.Config) (version.Store, error) {
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pg, err := version.NewPostgresStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open version store: %w", err)
		}
		cached, err := version.NewCachedStore(pg, versionCacheEntries)
		if err != nil {
			return nil, err
		}
		log.Printf("version store: postgres")
		return cached, nil
	}
	log.Printf("version store: in-memory fallback (DATABASE_URL unset)")
	return version.NewMemoryStore(), nil
}

func initArchive(cfg *config.Config) *version.S3Archive {
	if !cfg.Archive.CanUseS3() {
		if cfg.Archive.Enabled {
			log.Printf("version archive: disabled (s3 config incomplete)")
		}
		return nil
	}
	archive, err := version.NewS3Archive(version.S3Config{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		UseSSL:    cfg.Archive.UseSSL,
	})
	if err != nil {
		log.Printf("version archive: init failed, continuing without: %v", err)
		return nil
	}
	log.Printf("version archive: s3 bucket=%s endpoint=%s", cfg.Archive.Bucket, cfg.Archive.Endpoint)
	return archive
}

func initSource(ctx context.Context, cfg *config.Config) (upstream.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Upstream.Provider)) {
	case "", "gemini":
		src, err := upstream.NewGeminiSource(ctx, cfg.Upstream.Model, cfg.Upstream.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize upstream: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.Upstream.Provider)
	}
}
