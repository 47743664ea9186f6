package commands

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/livetemplate/tinkersheet/internal/publish"
	"github.com/livetemplate/tinkersheet/internal/server"
)

func newPublishCmd() *cobra.Command {
	var (
		configPath string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "publish [directory]",
		Short: "Write static HTML pages with published spreadsheet blocks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(args, configPath)
			if err != nil {
				return err
			}
			if out == "" {
				out = p.cfg.Publish.GetOut()
			}
			if !filepath.IsAbs(out) {
				out = filepath.Join(p.dir, out)
			}

			n, err := publishPages(cmd, p, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d pages to %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to tinkersheet.yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default: publish.out from config)")
	return cmd
}

func publishPages(cmd *cobra.Command, p *project, out string) (int, error) {
	store, err := p.openStore()
	if err != nil {
		return 0, fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	renderer := publish.NewRenderer(store, p.cfg.Runtime.GetVersion(), p.cfg.Publish.GetCacheTTL(), false)
	defer renderer.Close()

	srv := server.New(p.dir, p.cfg, store, renderer)
	if err := srv.Discover(); err != nil {
		return 0, fmt.Errorf("failed to discover pages: %w", err)
	}

	count := 0
	for _, name := range srv.Pages() {
		page, _ := srv.Page(name)
		body, err := renderer.Page(cmd.Context(), page)
		if err != nil {
			return count, fmt.Errorf("page %s: %w", name, err)
		}

		var buf bytes.Buffer
		if err := server.WriteDocument(&buf, srv.Title(page), body, srv.ScriptURL()); err != nil {
			return count, fmt.Errorf("page %s: %w", name, err)
		}

		path := filepath.Join(out, filepath.FromSlash(name)+".html")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return count, err
		}
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return count, err
		}
		slog.Debug("page published", "name", name, "path", path, "blocks", len(page.Order))
		count++
	}
	return count, nil
}
