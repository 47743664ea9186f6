package tinkersheet

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var uidPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidUID reports whether uid is usable as a block key: letters, digits,
// '-' and '_', not starting with a separator.
func ValidUID(uid string) bool {
	return uidPattern.MatchString(uid)
}

// ParseFile parses a host document and creates a Page.
func ParseFile(path string) (*Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parse(name, absPath, content)
}

// ParseString parses host document content that has no backing file.
func ParseString(id, content string) (*Page, error) {
	return parse(id, id, []byte(content))
}

func parse(id, sourceFile string, content []byte) (*Page, error) {
	fm, codeBlocks, staticHTML, err := ParseMarkdown(content)
	if err != nil {
		return nil, &ParseError{File: sourceFile, Line: 1, Message: fmt.Sprintf("failed to parse markdown: %v", err)}
	}

	page := New(id)
	page.Title = fm.Title
	page.StaticHTML = staticHTML
	page.SourceFile = sourceFile

	if err := page.buildBlocks(codeBlocks, fm, sourceFile); err != nil {
		return nil, err
	}
	return page, nil
}

// buildBlocks converts sheet fences into blocks, rejecting missing, malformed
// or duplicate uids.
func (p *Page) buildBlocks(codeBlocks []*CodeBlock, fm *Frontmatter, sourceFile string) error {
	seen := make(map[string]int)

	for _, cb := range codeBlocks {
		uid := cb.Metadata[KeyUID]
		if uid == "" {
			return fenceError(sourceFile, cb, "sheet block has no uid").
				hint("Add a stable identifier to the fence, e.g. ```sheet uid=budget")
		}
		if !ValidUID(uid) {
			return fenceError(sourceFile, cb, "invalid sheet uid %q", uid).
				at(cb.token(KeyUID)).
				hint("Use letters, digits, '-' and '_' only")
		}
		if first, dup := seen[uid]; dup {
			perr := fenceError(sourceFile, cb, "duplicate sheet uid %q", uid).
				at(cb.token(KeyUID)).
				hint("Each sheet block needs its own uid")
			perr.First = first
			return perr
		}
		if tok := cb.unknownOption(); tok != "" {
			return fenceError(sourceFile, cb, "unknown sheet option %q", tok).
				at(tok).
				hint("Options are collapsed, toolbar, resizable, scale_control, constrain_width and scale")
		}
		seen[uid] = cb.Line

		block := &Block{
			UID:     uid,
			Line:    cb.Line,
			Theme:   fm.Theme,
			Options: cb.options(),
			Seed:    cb.Content,
		}
		if theme, ok := cb.Metadata[KeyTheme]; ok {
			block.Theme = theme
		}
		if h, ok := cb.Metadata[KeyHeight]; ok {
			height, err := strconv.ParseFloat(h, 64)
			if err != nil || height < 0 {
				return fenceError(sourceFile, cb, "invalid height %q", h).
					at(cb.token(KeyHeight)).
					hint("Height is a number of pixels")
			}
			block.Height = height
		}

		p.Blocks[uid] = block
		p.Order = append(p.Order, uid)
	}
	return nil
}
