package tinkersheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// SheetLanguage is the fence language that declares a spreadsheet block.
const SheetLanguage = "sheet"

// Frontmatter represents the YAML frontmatter at the top of a host document.
type Frontmatter struct {
	Title string `yaml:"title"`
	Theme string `yaml:"theme"` // Default theme for blocks without one
}

// CodeBlock is a sheet fence extracted from markdown.
type CodeBlock struct {
	Info     string            // info string as written, "sheet uid=..."
	Flags    []string          // bare words, read as true options
	Metadata map[string]string // key=value pairs
	Content  string
	Line     int // Line number in source file
}

// ParseMarkdown parses a host document and extracts frontmatter and sheet
// blocks. The returned HTML has each sheet fence replaced by an HTML comment
// placeholder so the publisher can splice markup back in.
func ParseMarkdown(content []byte) (*Frontmatter, []*CodeBlock, string, error) {
	frontmatter, remaining, err := extractFrontmatter(content)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	reader := text.NewReader(remaining)
	doc := md.Parser().Parse(reader)

	lineOffset := bytes.Count(content[:len(content)-len(remaining)], []byte("\n"))

	var codeBlocks []*CodeBlock
	var fences []*ast.FencedCodeBlock
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		block := parseCodeBlock(fenced, remaining, lineOffset)
		if block != nil {
			codeBlocks = append(codeBlocks, block)
			fences = append(fences, fenced)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to walk AST: %w", err)
	}

	// Swap each sheet fence for a raw placeholder node.
	for i, fenced := range fences {
		parent := fenced.Parent()
		if parent == nil {
			continue
		}
		marker := ast.NewString([]byte(placeholderFor(codeBlocks[i])))
		marker.SetCode(true)
		para := ast.NewParagraph()
		para.AppendChild(para, marker)
		parent.ReplaceChild(parent, fenced, para)
	}

	var htmlBuf bytes.Buffer
	if err := md.Renderer().Render(&htmlBuf, remaining, doc); err != nil {
		return nil, nil, "", fmt.Errorf("failed to render HTML: %w", err)
	}

	return frontmatter, codeBlocks, htmlBuf.String(), nil
}

func placeholderFor(cb *CodeBlock) string {
	uid := cb.Metadata[KeyUID]
	if uid == "" {
		uid = fmt.Sprintf("line-%d", cb.Line)
	}
	return (&Block{UID: uid}).Placeholder()
}

// extractFrontmatter extracts YAML frontmatter from the beginning of content.
func extractFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	endIdx := bytes.Index(content[4:], []byte("\n---\n"))
	if endIdx == -1 {
		return nil, nil, fmt.Errorf("unclosed frontmatter")
	}

	yamlContent := content[4 : 4+endIdx]
	remaining := content[4+endIdx+5:]

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlContent, &fm); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &fm, remaining, nil
}

// parseCodeBlock reads a sheet fence. Info string format:
// "sheet uid=budget theme=treb-dark-theme height=320 toolbar resizable".
// Returns nil for any other fence.
func parseCodeBlock(fenced *ast.FencedCodeBlock, source []byte, lineOffset int) *CodeBlock {
	if fenced.Info == nil {
		return nil
	}
	info := strings.TrimSpace(string(fenced.Info.Text(source)))
	parts := strings.Fields(info)
	if len(parts) == 0 || parts[0] != SheetLanguage {
		return nil
	}

	block := &CodeBlock{
		Info:     info,
		Metadata: make(map[string]string),
	}
	for _, part := range parts[1:] {
		if k, v, ok := strings.Cut(part, "="); ok {
			block.Metadata[k] = strings.Trim(v, `"'`)
			continue
		}
		block.Flags = append(block.Flags, part)
	}

	var buf bytes.Buffer
	lines := fenced.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	block.Content = strings.TrimSpace(buf.String())

	block.Line = lineOffset + bytes.Count(source[:fenced.Info.Segment.Start], []byte("\n")) + 1
	return block
}

// token returns the info-string token that set key, e.g. "height=tall".
func (cb *CodeBlock) token(key string) string {
	for _, part := range strings.Fields(cb.Info) {
		if k, _, ok := strings.Cut(part, "="); ok && k == key {
			return part
		}
	}
	return ""
}

// unknownOption returns the first flag or key=value token that names no
// widget option.
func (cb *CodeBlock) unknownOption() string {
	for _, part := range strings.Fields(cb.Info)[1:] {
		k, _, _ := strings.Cut(part, "=")
		switch k {
		case KeyUID, KeyTheme, KeyHeight:
			continue
		}
		if !IsOptionKey(NormalizeKey(k)) {
			return part
		}
	}
	return ""
}

// options converts fence flags and option metadata into an Options record.
// Numbers parse as float64 so records compare equal to decoded JSON.
func (cb *CodeBlock) options() Options {
	opts := Options{}
	for _, flag := range cb.Flags {
		opts[NormalizeKey(flag)] = true
	}
	for k, v := range cb.Metadata {
		switch k {
		case KeyUID, KeyTheme, KeyHeight:
			continue
		}
		key := NormalizeKey(k)
		if b, err := strconv.ParseBool(v); err == nil {
			opts[key] = b
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			opts[key] = f
		}
	}
	return opts
}
