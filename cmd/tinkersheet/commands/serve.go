package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/livetemplate/tinkersheet/internal/config"
	"github.com/livetemplate/tinkersheet/internal/publish"
	"github.com/livetemplate/tinkersheet/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		host       string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "serve [directory]",
		Short: "Serve documents and editor sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(args, configPath)
			if err != nil {
				return err
			}

			// CLI flags override config
			if cmd.Flags().Changed("port") {
				p.cfg.Server.Port = port
			}
			if host != "" {
				p.cfg.Server.Host = host
			}
			if config.IsDebug() {
				p.cfg.Server.Debug = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, p, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to tinkersheet.yaml")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&host, "host", "", "Host to bind")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload pages when .md files change")
	return cmd
}

func serve(ctx context.Context, p *project, watch bool) error {
	store, err := p.openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	renderer := publish.NewRenderer(store, p.cfg.Runtime.GetVersion(), p.cfg.Publish.GetCacheTTL(), p.cfg.Server.Debug)
	defer renderer.Close()

	srv := server.New(p.dir, p.cfg, store, renderer)
	if err := srv.Discover(); err != nil {
		return fmt.Errorf("failed to discover pages: %w", err)
	}
	for _, name := range srv.Pages() {
		slog.Debug("page discovered", "name", name)
	}
	if watch {
		if err := srv.EnableWatch(); err != nil {
			return fmt.Errorf("failed to enable watch mode: %w", err)
		}
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              p.cfg.Server.Addr(),
		Handler:           srv.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", "dir", p.dir, "addr", "http://"+httpSrv.Addr, "store", p.cfg.Store.GetDriver(), "pages", len(srv.Pages()))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
