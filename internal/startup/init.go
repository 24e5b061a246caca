// Package startup provides initialization and validation for imagelab.
//
// It wires the artifact store, session manager, transform engine, and
// web server together, and validates the environment before the
// application starts accepting requests.
package startup

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Esmaill1/image-lab/internal/artifact"
	"github.com/Esmaill1/image-lab/internal/config"
	"github.com/Esmaill1/image-lab/internal/session"
	"github.com/Esmaill1/image-lab/internal/transform"
	"github.com/Esmaill1/image-lab/internal/web"
)

// Components holds all initialized application components.
type Components struct {
	Store     *artifact.Disk
	Sessions  *session.Manager
	Engine    *transform.Engine
	WebServer *web.Server
}

// CreateLogger creates a logger with the configured level and format.
func CreateLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}

// CreateStore creates the disk artifact store and its area directories.
func CreateStore(cfg *config.Config) (*artifact.Disk, error) {
	store := artifact.NewDisk(cfg.DataDir)
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	return store, nil
}

// CreateSessionManager creates a session manager for editing state.
func CreateSessionManager(cfg *config.Config, store artifact.Store, logger *logrus.Logger) *session.Manager {
	return session.NewManager(store, logger, cfg.SessionTimeout)
}

// CreateWebServer creates the HTTP server with all dependencies wired.
func CreateWebServer(cfg *config.Config, engine *transform.Engine, store artifact.Store, sessions *session.Manager, logger *logrus.Logger) *web.Server {
	return web.NewServerWithDeps(cfg, engine, store, sessions, logger)
}

// InitializeAll creates and initializes all application components and
// starts the artifact reaper. The reaper stops when ctx is cancelled.
func InitializeAll(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Components, error) {
	logger.Debug("initializing components")

	store, err := CreateStore(cfg)
	if err != nil {
		return nil, err
	}
	store.StartReaper(ctx, cfg.ReapInterval, cfg.ReapMaxAge, logger)
	logger.WithField("root", store.Root()).Debug("created artifact store with reaper enabled")

	sessions := CreateSessionManager(cfg, store, logger)
	logger.Debug("created session manager")

	engine := transform.New(logger)
	logger.Debug("created transform engine")

	webServer := CreateWebServer(cfg, engine, store, sessions, logger)
	logger.WithField("addr", cfg.Addr()).Debug("created web server")

	return &Components{
		Store:     store,
		Sessions:  sessions,
		Engine:    engine,
		WebServer: webServer,
	}, nil
}
