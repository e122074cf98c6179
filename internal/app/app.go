package app

import (
	"context"
	"fmt"
	"path/filepath"

	"blockforge/internal/chatlog"
	"blockforge/internal/config"
	"blockforge/internal/contentstore"
	"blockforge/internal/handler"
	"blockforge/internal/relay"
	"blockforge/internal/server"
	"blockforge/internal/version"
)

type App struct {
	server *server.Server
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	content := contentstore.NewDiskStore(filepath.Join(cfg.DataDir, "content"))
	chat := chatlog.NewStore(filepath.Join(cfg.DataDir, "chat"))

	versionStore, err := initVersionStore(cfg)
	if err != nil {
		return nil, err
	}
	versionSvc := version.NewService(versionStore, content)
	if cfg.Keep > 0 {
		versionSvc = versionSvc.WithKeep(cfg.Keep)
	}
	if archive := initArchive(cfg); archive != nil {
		versionSvc = versionSvc.WithArchive(archive)
	}

	source, err := initSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	relayHandler := relay.NewHandler(source, cfg.Upstream.Provider).WithChatLog(chat)
	liveHandler := relay.NewLiveHandler(source)
	versionHandler := handler.NewVersionHandler(versionSvc)
	reviewHandler := handler.NewReviewHandler(content, versionSvc)
	chatHandler := handler.NewChatHandler(chat)

	// Routing & Server
	mux := server.NewMux(relayHandler, liveHandler, versionHandler, reviewHandler, chatHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
