package clonequeue

import (
	"os"
	"path/filepath"
)

func joinPath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(base, rel)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
