package vfs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LoadHostDir copies a host directory tree into fs under prefix, keeping
// permission bits so execute permission carries over.
func LoadHostDir(fs *MemFS, dir, prefix string) error {
	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		target := Clean(filepath.Join(prefix, filepath.ToSlash(rel)))
		if info.IsDir() {
			return fs.Mkdir(target)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "loading %s", p)
		}
		return fs.WriteFile(target, data, info.Mode())
	})
}
