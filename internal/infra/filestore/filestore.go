// Package filestore holds the write and recovery primitives shared by the
// JSON-file backends.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	FileMode = 0o600
	DirMode  = 0o700
)

// WriteAtomic replaces path with data through a synced temp file in the same
// directory.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func WriteJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return WriteAtomic(path, append(data, '\n'))
}

// ReadJSON decodes path into out. A missing file reports found=false. A file
// that does not decode is moved to <path>.corrupt-<unix> and also reports
// found=false so the caller starts from an empty state.
func ReadJSON(path string, out any, now time.Time, logger *zap.Logger) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		if _, qerr := Quarantine(path, now, logger, err); qerr != nil {
			return false, qerr
		}
		return false, nil
	}
	return true, nil
}

func Quarantine(path string, now time.Time, logger *zap.Logger, cause error) (string, error) {
	target := path + ".corrupt-" + strconv.FormatInt(now.Unix(), 10)
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}
	if logger != nil {
		logger.Warn("quarantined corrupt store file",
			zap.String("path", path),
			zap.String("moved_to", target),
			zap.Error(cause),
		)
	}
	return target, nil
}
