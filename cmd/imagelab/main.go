// Command imagelab runs the image editing web service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Esmaill1/image-lab/internal/config"
	"github.com/Esmaill1/image-lab/internal/startup"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, config.ErrShowHelp) || errors.Is(err, config.ErrShowVersion) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := startup.CreateLogger(cfg)

	if err := startup.ValidateDataDir(cfg.DataDir); err != nil {
		logger.WithError(err).Error("data directory validation failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := startup.InitializeAll(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("initialization failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer startup.Cleanup(components, logger)

	logger.WithFields(logrus.Fields{
		"version": config.Version,
		"addr":    cfg.Addr(),
	}).Info("starting imagelab")

	if err := startup.Run(ctx, components.WebServer, logger); err != nil {
		logger.WithError(err).Error("server failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}
