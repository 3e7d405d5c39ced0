package integration

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/reex/reexd/internal/models"
	"github.com/reex/reexd/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "reexd.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newFolder(t *testing.T, commands ...models.Command) models.Folder {
	t.Helper()

	folder := models.NewFolder("it", t.TempDir())
	folder.ShellPath = "/bin/sh"
	folder.Commands = commands
	return folder
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}
