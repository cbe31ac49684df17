package db

import (
	"log"
	"os"
)

// writeFileAtomic rewrites path with data by writing a temporary file and
// renaming it into place. When backup is true the previous file is kept as
// path+".bak" on a best-effort basis.
func writeFileAtomic(path string, data []byte, backup bool) error {
	tempPath := path + ".tmp"
	backupPath := path + ".bak"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		log.Printf("ERROR: Failed to write temporary file '%s': %v", tempPath, err)
		return err
	}

	if backup {
		if _, err := os.Stat(path); err == nil {
			if err := os.Rename(path, backupPath); err != nil {
				log.Printf("WARN: Failed to rename '%s' to '%s' for backup: %v. Proceeding with save.", path, backupPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("WARN: Error checking status of '%s' before backup: %v", path, err)
		}
	}

	if err := os.Rename(tempPath, path); err != nil {
		log.Printf("ERROR: Failed to atomically rename '%s' to '%s': %v", tempPath, path, err)
		_ = os.Remove(tempPath)
		return err
	}

	return nil
}
