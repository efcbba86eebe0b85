package localstorage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	maxFilenameLen = 200
	unsafeChars    = `<>:"/\|?*`
)

// LocalStorage implements ports.Storage for the local filesystem.
type LocalStorage struct{}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// ResolveDownloadDir returns override if set, otherwise /tmp when it exists,
// otherwise ~/Downloads. The directory is created if missing.
func ResolveDownloadDir(override string) (string, error) {
	dir := override
	if dir == "" {
		if fi, err := os.Stat("/tmp"); err == nil && fi.IsDir() {
			dir = "/tmp"
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to resolve home directory: %w", err)
			}
			dir = filepath.Join(home, "Downloads")
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory %s: %w", dir, err)
	}
	return dir, nil
}

// NewestWithPrefix returns the path of the most recently modified regular
// file in dir whose name starts with prefix and ends with ext.
// It returns "" and no error when nothing matches.
func (s *LocalStorage) NewestWithPrefix(dir, prefix, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var newest string
	var newestTime time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, name)
			newestTime = info.ModTime()
		}
	}
	return newest, nil
}

// ListWithPrefix returns the sorted names of regular files in dir starting
// with prefix.
func (s *LocalStorage) ListWithPrefix(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// RemoveAll deletes every path. Missing files are not an error.
func (s *LocalStorage) RemoveAll(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// SanitizeFilename replaces characters that are unsafe in file names, caps
// the length and trims surrounding whitespace. An empty result yields
// fallback.
func SanitizeFilename(name, fallback string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(unsafeChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}

	out := []rune(b.String())
	if len(out) > maxFilenameLen {
		out = out[:maxFilenameLen]
	}
	cleaned := strings.TrimSpace(string(out))
	if cleaned == "" {
		return fallback
	}
	return cleaned
}
