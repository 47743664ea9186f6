// Package commands implements the tinkersheet CLI.
package commands

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livetemplate/tinkersheet/internal/attrs"
	"github.com/livetemplate/tinkersheet/internal/config"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	var (
		verbose bool
		debug   bool
	)

	root := &cobra.Command{
		Use:   "tinkersheet",
		Short: "Markdown documents with embedded spreadsheet blocks",
		Long: `tinkersheet serves markdown documents whose sheet blocks are edited live
in the browser, persists each block's attributes, and publishes static pages
for readers.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			opts := &slog.HandlerOptions{Level: level}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts)))

			log.SetFlags(0)
			config.SetVerbose(verbose)
			config.SetDebug(debug)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Log every message exchanged with editor tabs")

	root.AddCommand(
		newServeCmd(),
		newPublishCmd(),
		newValidateCmd(),
		newVersionCmd(version),
	)
	return root
}

// project is the resolved directory and configuration a command runs on.
type project struct {
	dir string
	cfg *config.Config
}

func loadProject(args []string, configPath string) (*project, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory does not exist: %s", dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDir(absDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &project{dir: absDir, cfg: cfg}, nil
}

// openStore opens the configured attribute store. Relative sqlite and dir
// paths are taken relative to the project directory.
func (p *project) openStore() (attrs.Store, error) {
	sc := p.cfg.Store
	switch sc.GetDriver() {
	case "sqlite":
		if dsn := sc.GetDSN(); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && !filepath.IsAbs(dsn) {
			sc.DSN = filepath.Join(p.dir, dsn)
		}
	case "dir":
		if dir := sc.GetDir(); !filepath.IsAbs(dir) {
			sc.Dir = filepath.Join(p.dir, dir)
		}
	}
	return attrs.Open(sc, config.IsDebug())
}
