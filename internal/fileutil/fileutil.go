package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Checksum returns the hex SHA-256 digest and size of the file at path.
func Checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// TempPath returns a hidden sibling of dest used while dest is being
// written: ".<name>.partial-<uuid>".
func TempPath(dest string) string {
	dir, name := filepath.Split(dest)
	return filepath.Join(dir, "."+name+".partial-"+uuid.NewString())
}

// WriteAtomic produces dest by letting write fill a temporary sibling and
// renaming it into place. The temporary file is removed when write or the
// rename fails, so dest is either complete or untouched.
func WriteAtomic(dest string, write func(tmpPath string) error) (err error) {
	tmp := TempPath(dest)
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = errors.Join(err, fmt.Errorf("remove partial output: %w", rmErr))
			}
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to dest through WriteAtomic.
func WriteFileAtomic(dest string, data []byte, mode os.FileMode) error {
	return WriteAtomic(dest, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
}
