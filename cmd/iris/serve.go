package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/urfave/cli/v3"

	"github.com/irisdigital/ife/internal/logger"
	"github.com/irisdigital/ife/internal/slideserver"
)

func serveCmd() *cli.Command {
	var (
		addr     string
		dir      string
		logFile  string
		logLevel string
		rps      float64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve .iris slides over HTTP byte ranges",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8077",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "directory of .iris slides",
				Value:       ".",
				Destination: &dir,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "rotate JSON logs into this file instead of stderr",
				Destination: &logFile,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn, or error",
				Value:       "info",
				Destination: &logLevel,
			},
			&cli.FloatFlag{
				Name:        "rate-limit",
				Usage:       "slide requests per second (0 disables limiting)",
				Destination: &rps,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, loadConfig(), &addr, &dir, &logFile, &logLevel, &rps)

			level := logger.ParseLevel(logLevel)
			var log logger.Logger
			if logFile != "" {
				log = logger.Rotating(logFile, level)
			} else {
				log = logger.JSON(os.Stderr, level)
			}

			logger.InstallDefault(log)

			e := echo.New()
			slideserver.New(dir, log.With("component", "slideserver"), rps).Register(e)

			server := &http.Server{
				Addr:              addr,
				Handler:           e,
				ReadHeaderTimeout: 10 * time.Second,
			}
			log.Info("serving slides", "addr", addr, "dir", dir)

			errCh := make(chan error, 1)
			go func() { errCh <- server.ListenAndServe() }()
			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return cli.Exit(fmt.Sprintf("error: serve: %v", err), 1)
				}
				return nil
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}
}
