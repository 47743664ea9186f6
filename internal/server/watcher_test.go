package server

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batches struct {
	mu  sync.Mutex
	got [][]string
}

func (b *batches) record(paths []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, paths)
	return nil
}

func (b *batches) seen(rel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, batch := range b.got {
		for _, p := range batch {
			if p == rel {
				return true
			}
		}
	}
	return false
}

func startWatcher(t *testing.T, dir string, skip func(string) bool) *batches {
	t.Helper()
	b := &batches{}
	w, err := NewWatcher(dir, skip, b.record, false)
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { w.Stop() })
	return b
}

func TestWatcherBatchesRepeatedSaves(t *testing.T) {
	dir := t.TempDir()
	b := startWatcher(t, dir, nil)

	for i := 0; i < 3; i++ {
		writeFile(t, dir, "budget.md", strings.Repeat("x", i+1))
	}
	assert.Eventually(t, func() bool { return b.seen("budget.md") }, 2*time.Second, 20*time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, batch := range b.got {
		seen := map[string]bool{}
		for _, p := range batch {
			assert.False(t, seen[p], "duplicate %s in batch %v", p, batch)
			seen[p] = true
		}
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	b := startWatcher(t, dir, nil)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "guides"), 0755))
	// the new directory is added asynchronously
	rel := filepath.Join("guides", "forecast.md")
	assert.Eventually(t, func() bool {
		writeFile(t, dir, rel, "# Forecast\n")
		return b.seen(rel)
	}, 2*time.Second, 50*time.Millisecond)
}

func TestWatcherSkipsIgnoredAndHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".tinkersheet"), 0755))
	b := startWatcher(t, dir, func(rel string) bool { return strings.HasPrefix(rel, "drafts") })
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts"), 0755))

	writeFile(t, dir, ".tinkersheet/budget.md", "x")
	writeFile(t, dir, "drafts/wip.md", "x")
	writeFile(t, dir, "notes.txt", "x")
	writeFile(t, dir, "budget.md", "x")

	assert.Eventually(t, func() bool { return b.seen("budget.md") }, 2*time.Second, 20*time.Millisecond)
	assert.False(t, b.seen(filepath.Join(".tinkersheet", "budget.md")))
	assert.False(t, b.seen(filepath.Join("drafts", "wip.md")))
	assert.False(t, b.seen("notes.txt"))
}

func TestDiffUIDs(t *testing.T) {
	added, removed := diffUIDs(
		map[string]bool{"budget": true, "q1": true},
		map[string]bool{"budget": true, "forecast": true, "costs": true},
	)
	assert.Equal(t, []string{"costs", "forecast"}, added)
	assert.Equal(t, []string{"q1"}, removed)
}
