package storage

import (
	"fmt"
	"os"
)

// lockFile takes an exclusive advisory lock on path, creating it if needed.
// The returned function releases the lock.
func lockFile(path string) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := lockHandle(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring file lock: %w", err)
	}

	return func() error {
		defer f.Close()
		return unlockHandle(f)
	}, nil
}
