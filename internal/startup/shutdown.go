package startup

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Esmaill1/image-lab/internal/web"
)

// Run starts the web server and blocks until a shutdown signal is
// received. It handles SIGTERM and SIGINT for graceful shutdown.
//
// Returns nil on clean shutdown, error otherwise.
func Run(ctx context.Context, server *web.Server, logger *logrus.Logger) error {
	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(shutdownCtx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Cleanup releases what Run leaves behind: the session manager's
// background loop. Stored images stay on disk for the reaper on the
// next run.
//
// If components is nil, this is a no-op.
func Cleanup(components *Components, logger *logrus.Logger) {
	if components == nil {
		return
	}

	if components.Sessions != nil {
		logger.Debug("stopping session manager")
		components.Sessions.Shutdown()
	}

	logger.Debug("cleanup complete")
}
