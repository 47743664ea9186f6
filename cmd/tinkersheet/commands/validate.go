package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/config"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate [directory]",
		Short: "Check documents for malformed sheet blocks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(args, configPath)
			if err != nil {
				return err
			}
			return validate(cmd, p)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to tinkersheet.yaml")
	return cmd
}

func validate(cmd *cobra.Command, p *project) error {
	out := cmd.OutOrStdout()
	files, failed, blocks := 0, 0, 0
	seen := make(map[string]string) // uid -> file

	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != p.dir && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}
		rel, _ := filepath.Rel(p.dir, path)
		files++

		page, err := tinkersheet.ParseFile(path)
		if err != nil {
			failed++
			var perr *tinkersheet.ParseError
			if errors.As(err, &perr) {
				fmt.Fprintln(out, perr.Format())
			} else {
				fmt.Fprintf(out, "%s: %v\n", rel, err)
			}
			return nil
		}

		if config.IsVerbose() {
			fmt.Fprintf(out, "ok %s (%d sheet blocks)\n", rel, len(page.Order))
		}
		for _, uid := range page.Order {
			blocks++
			if other, dup := seen[uid]; dup {
				failed++
				fmt.Fprintf(out, "%s:%d: block %q is also declared in %s\n", rel, page.Blocks[uid].Line, uid, other)
				continue
			}
			seen[uid] = rel
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Checked %d files, %d sheet blocks\n", files, blocks)
	if failed > 0 {
		return fmt.Errorf("%d problems found", failed)
	}
	return nil
}
