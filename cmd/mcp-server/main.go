// Command mcp-server exposes the godual tools to AI agent frameworks.
//
// Usage:
//
//	go run ./cmd/mcp-server --addr :8080
//	GODUAL_TRANSPORT=stdio go run ./cmd/mcp-server
//
// The http transport serves:
//
//	POST /tool    execute a tool call
//	GET  /schema  tool schema for agent registration
//	GET  /health  liveness check
//
// The stdio transport speaks the Model Context Protocol and offers the
// dual_eval and dual_check tools.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logrus.New()
	// stdout carries protocol traffic in stdio mode
	log.SetOutput(os.Stderr)

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	lvl, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg serverConfig, log *logrus.Logger) error {
	if cfg.Transport == transportStdio {
		log.Info("godual MCP server on stdio")
		return newMCPServer(log).Run(ctx, &mcp.StdioTransport{})
	}

	srv := newHTTPServer(cfg.Addr, newHTTPHandler(log, cfg.MaxBodyBytes))
	log.WithField("addr", cfg.Addr).Info("godual MCP server listening")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(sctx), "shutdown")
}
