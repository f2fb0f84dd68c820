package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shazow/autojoin/wifi"
)

// DefaultFilename is where the credential list lives on the device.
const DefaultFilename = "wifi-aps.json"

// File stores the credential payload in a single file.
type File struct {
	Path string
}

// NewFile returns a File storage at path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Load reads the payload. A missing file loads as empty.
func (f *File) Load() ([]byte, error) {
	info, err := os.Stat(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Size() > wifi.MaxStorageSize {
		return nil, fmt.Errorf("%s is %d bytes: %w", f.Path, info.Size(), wifi.ErrTooLarge)
	}
	return os.ReadFile(f.Path)
}

// Save replaces the file atomically.
func (f *File) Save(data []byte) error {
	if len(data) > wifi.MaxStorageSize {
		return fmt.Errorf("refusing to write %d bytes: %w", len(data), wifi.ErrTooLarge)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

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
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}
