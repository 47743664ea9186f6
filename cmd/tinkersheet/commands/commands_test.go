package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const budgetDoc = "# Budget\n\n```sheet uid=budget height=240 toolbar\n{\"sheets\":[]}\n```\n"

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("1.2.3")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tinkersheet version 1.2.3")
	assert.Contains(t, out, "28.0.5")
}

func TestValidate(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"budget.md":      budgetDoc,
			"notes/plain.md": "# Notes\n",
		})
		out, err := run(t, "validate", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "Checked 2 files, 1 sheet blocks")
	})

	t.Run("bad block", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"broken.md": "```sheet uid=a height=tall\n```\n",
		})
		out, err := run(t, "validate", dir)
		require.Error(t, err)
		assert.Contains(t, out, "invalid height")
	})

	t.Run("uid reused across files", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"a.md": budgetDoc,
			"b.md": budgetDoc,
		})
		out, err := run(t, "validate", dir)
		require.Error(t, err)
		assert.Contains(t, out, `block "budget" is also declared in`)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := run(t, "validate", filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "directory does not exist")
	})
}

func TestPublish(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"tinkersheet.yaml": "title: Reports\nstore:\n  driver: memory\nruntime:\n  version: \"29.1\"\n",
		"budget.md":        budgetDoc,
		"guides/intro.md":  "# Intro\n\nNo sheets here.\n",
	})
	out := filepath.Join(t.TempDir(), "site")

	stdout, err := run(t, "publish", dir, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Published 2 pages")

	html, err := os.ReadFile(filepath.Join(out, "budget.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<treb-spreadsheet")
	assert.Contains(t, string(html), "height: 240px")
	assert.Contains(t, string(html), "treb-spreadsheet.mjs?ver=29.1")

	_, err = os.Stat(filepath.Join(out, "guides", "intro.html"))
	assert.NoError(t, err)
}

func TestPublishStoreUnderProject(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"tinkersheet.yaml": "store:\n  driver: dir\n  dir: state\n",
		"budget.md":        budgetDoc,
	})

	_, err := run(t, "publish", dir, "--out", filepath.Join(t.TempDir(), "site"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "state"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"tinkersheet.yaml": "server:\n  port: 0\nstore:\n  driver: memory\n",
		"budget.md":        budgetDoc,
	})
	p, err := loadProject([]string{dir}, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, serve(ctx, p, false))
}

func TestInvalidConfig(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"tinkersheet.yaml": "store:\n  driver: [\n",
	})
	_, err := run(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestValidateVerbose(t *testing.T) {
	dir := writeProject(t, map[string]string{"budget.md": budgetDoc})
	out, err := run(t, "validate", "-v", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "ok budget.md (1 sheet blocks)")
}
