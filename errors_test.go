package tinkersheet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseErrorFormatting(t *testing.T) {
	content := "---\ntitle: \"Budget\"\n---\n\n# Budget\n\n```sheet uid=q1\n```\n\n```sheet uid=q1 toolbar\n```\n"
	path := filepath.Join(t.TempDir(), "budget.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ParseFile(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}

	if perr.Line != 10 || perr.First != 7 || perr.UID != "q1" {
		t.Errorf("got line=%d first=%d uid=%q", perr.Line, perr.First, perr.UID)
	}
	if got, want := perr.Error(), path+`:10: duplicate sheet uid "q1"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	out := perr.Format()
	t.Logf("Formatted:\n%s", out)
	for _, want := range []string{
		"```sheet uid=q1 toolbar\n",
		`sheet "q1" first declared at line 7`,
		"💡 Each sheet block needs its own uid",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q", want)
		}
	}
}

func TestParseErrorPointsAtToken(t *testing.T) {
	_, err := ParseString("doc", "```sheet uid=a toolbar height=tall\n```\n")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Token != "height=tall" {
		t.Fatalf("Token = %q", perr.Token)
	}
	// ```sheet uid=a toolbar height=tall
	// 12345678901234567890123
	if perr.Column() != 24 {
		t.Errorf("Column() = %d, want 24", perr.Column())
	}

	lines := strings.Split(perr.Format(), "\n")
	var fence, marker string
	for i, l := range lines {
		if strings.HasSuffix(l, "```sheet uid=a toolbar height=tall") && i+1 < len(lines) {
			fence, marker = l, lines[i+1]
		}
	}
	if fence == "" {
		t.Fatalf("fence line missing:\n%s", perr.Format())
	}
	at := strings.Index(fence, "height=tall")
	if strings.Index(marker, "^") != at || strings.Count(marker, "^") != len("height=tall") {
		t.Errorf("marker misaligned:\n%s\n%s", fence, marker)
	}
}

func TestParseErrorUnknownFenceOption(t *testing.T) {
	_, err := ParseString("doc", "```sheet uid=a local_storage=elsewhere\n```\n")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Token != "local_storage=elsewhere" || perr.UID != "a" {
		t.Errorf("token=%q uid=%q", perr.Token, perr.UID)
	}
}

func TestParseErrorWithoutFence(t *testing.T) {
	perr := &ParseError{File: "doc.md", Line: 1, Message: "failed to parse markdown"}
	if perr.Column() != 0 {
		t.Errorf("Column() = %d, want 0", perr.Column())
	}
	out := perr.Format()
	if strings.Contains(out, "^") || strings.Contains(out, "🔗") {
		t.Errorf("unexpected fence context:\n%s", out)
	}
	if !strings.HasPrefix(out, "❌ doc.md:1: failed to parse markdown") {
		t.Errorf("got %q", out)
	}
}
