package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/cekrek/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and the MCP server (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withHTTP, _ := cmd.Flags().GetBool("http")
		withMCP, _ := cmd.Flags().GetBool("mcp")
		if !withHTTP && !withMCP {
			return fmt.Errorf("nothing to serve: both --http and --mcp are disabled")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return runServer(cmd.Context(), a, serveOptions{
			addr:   fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port),
			http:   withHTTP,
			mcp:    withMCP,
			stdin:  os.Stdin,
			stdout: os.Stdout,
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether cekrek serve is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/health")
		if err != nil {
			printError("%v", err)
			return errReported
		}
		var health map[string]string
		if err := decodeJSON(resp, &health); err != nil {
			return err
		}
		printSuccess("cekrek serve is %s at %s", health["status"], client.baseURL)
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("http", true, "serve the HTTP API on 127.0.0.1:<server.port>")
	serveCmd.Flags().Bool("mcp", true, "serve MCP over stdin/stdout")
}

type serveOptions struct {
	addr   string
	http   bool
	mcp    bool
	stdin  io.Reader
	stdout io.Writer
	// ready, when set, receives the bound HTTP address.
	ready chan<- string
}

// runServer serves until ctx is cancelled or a server fails, then shuts the
// HTTP server down gracefully.
func runServer(ctx context.Context, a *app, opts serveOptions) error {
	fmt.Fprintf(os.Stderr, "cekrek version %s\n", version)

	g, gCtx := errgroup.WithContext(ctx)

	if opts.http {
		ln, err := net.Listen("tcp", opts.addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", opts.addr, err)
		}
		srv := &http.Server{
			Handler: api.NewAppHandler(api.AppDeps{
				Session: a.session,
				History: a.history,
				Token:   a.cfg.Server.Token,
			}),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return gCtx },
		}

		g.Go(func() error {
			slog.Info("HTTP API listening", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if opts.ready != nil {
			opts.ready <- ln.Addr().String()
		}
	}

	if opts.mcp {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Session: a.session,
			History: a.history,
			Version: version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gCtx, opts.stdin, opts.stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	slog.Info("shut down")
	return err
}
