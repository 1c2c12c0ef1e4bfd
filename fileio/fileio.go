package fileio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrUnsafePath is returned for paths that escape the working directory.
var ErrUnsafePath = errors.New("fileio: unsafe path")

const lockSuffix = ".lock"

// CheckRelative rejects absolute paths, the filesystem root, home directory
// references and any parent traversal.
func CheckRelative(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) {
		return fmt.Errorf("%w: %s is absolute", ErrUnsafePath, path)
	}
	if strings.HasPrefix(path, "~") {
		return fmt.Errorf("%w: %s points into a home directory", ErrUnsafePath, path)
	}
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return fmt.Errorf("%w: %s leaves the working directory", ErrUnsafePath, path)
		}
	}
	if filepath.Clean(path) == "." {
		return fmt.Errorf("%w: %s is the working directory itself", ErrUnsafePath, path)
	}
	return nil
}

// WriteLocked writes path through write while holding an advisory lock on
// path+".lock". The content goes to a temporary file that is renamed over
// path, so readers never observe a partial file. The lock is always released
// and the lock file is left in place for the next writer.
func WriteLocked(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	lock := flock.New(path + lockSuffix)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("failed to unlock %s: %w", path, unlockErr)
		}
	}()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	buffered := bufio.NewWriter(tmp)
	if err = write(buffered); err != nil {
		tmp.Close()
		return err
	}
	if err = buffered.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// WriteFileLocked is WriteLocked for an in-memory payload.
func WriteFileLocked(path string, data []byte) error {
	return WriteLocked(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ReadFileLocked reads path while holding the shared side of its lock.
func ReadFileLocked(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	lock := flock.New(path + lockSuffix)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	return os.ReadFile(path)
}

// NextName returns the first "<prefix>_NNNNN_<ext>" name in dir that does not
// exist yet, counting up from the highest existing counter.
func NextName(dir, prefix, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}

	counter := 1
	for _, entry := range entries {
		var n int
		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"_") || !strings.HasSuffix(name, "_"+ext) {
			continue
		}
		if _, err := fmt.Sscanf(strings.TrimPrefix(name, prefix+"_"), "%05d_", &n); err == nil && n >= counter {
			counter = n + 1
		}
	}
	return fmt.Sprintf("%s_%05d_%s", prefix, counter, ext), nil
}
