package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/docchat/internal/api"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser page on localhost",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{backendURL: flags.backendURL, mirror: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			port := a.cfg.Server.Port
			if cmd.Flags().Changed("port") {
				port, _ = cmd.Flags().GetInt("port")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serveWeb(ctx, api.NewWeb(a.deps()), fmt.Sprintf("127.0.0.1:%d", port))
		},
	}
	cmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	return cmd
}

// serveWeb runs the page until ctx is done, then shuts down and waits for
// background backend calls to resolve.
func serveWeb(ctx context.Context, web *api.Web, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: web,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printSuccess("docchat listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		printStep("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		web.Wait()
		return err
	})
	return g.Wait()
}

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the upload and question tools over MCP (stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol; logs stay in the file.
			a, err := newApp(appOptions{backendURL: flags.backendURL})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mcpSrv := api.NewMCPServer(a.deps(), version)
			slog.Info("MCP server started (stdio transport)", "backend", a.client.BaseURL())
			if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		},
	}
}
