package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBFileName is the bbolt file kept under the service datadir.
const DBFileName = "porv.db"

// DBPath returns the tally database location for datadir.
func DBPath(datadir string) string {
	return filepath.Join(datadir, DBFileName)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
