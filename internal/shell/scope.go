package shell

import (
	"fmt"
	"os"
	"sync"
)

// ScopedAccess is a time-bounded grant to use a folder's working
// directory. The grant holds an open handle on the directory for the
// lifetime of one execution; Release must run on every exit path,
// including cancellation, and is safe to call more than once.
type ScopedAccess struct {
	path  string
	token []byte

	mu     sync.Mutex
	handle *os.File
}

// Acquire validates the working directory and takes a handle on it.
// Folders carrying a platform capability token present it here; on
// platforms without sandboxed filesystem access the token is empty and
// the directory check is the whole grant.
func Acquire(path string, token []byte) (*ScopedAccess, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("access working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("access working directory: %s is not a directory", path)
	}

	handle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("access working directory: %w", err)
	}

	return &ScopedAccess{path: path, token: token, handle: handle}, nil
}

// Path returns the directory this grant covers.
func (a *ScopedAccess) Path() string {
	return a.path
}

// Release gives the grant back. Idempotent.
func (a *ScopedAccess) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle != nil {
		a.handle.Close()
		a.handle = nil
	}
}
