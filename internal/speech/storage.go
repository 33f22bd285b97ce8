package speech

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrAudioNotFound = errors.New("audio file not found")

// AudioStore is the local directory of generated audio files. Files are only
// ever added; nothing here removes them.
type AudioStore struct {
	dir string
}

func NewAudioStore(dir string) *AudioStore {
	return &AudioStore{dir: dir}
}

func (s *AudioStore) Dir() string { return s.dir }

// Save writes data under name. The directory is created on first use and an
// existing file is never overwritten.
func (s *AudioStore) Save(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// SafeName reduces a user supplied name to its last path element.
func SafeName(name string) string {
	if un, err := url.PathUnescape(name); err == nil {
		name = un
	}
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

// Resolve maps a requested name to a regular file inside the store.
func (s *AudioStore) Resolve(name string) (string, error) {
	safe := SafeName(name)
	if safe == "." || safe == ".." || safe == "/" {
		return "", ErrAudioNotFound
	}

	p := filepath.Join(s.dir, safe)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrAudioNotFound
		}
		return "", fmt.Errorf("stat %s: %w", safe, err)
	}
	if !info.Mode().IsRegular() {
		return "", ErrAudioNotFound
	}
	return p, nil
}
