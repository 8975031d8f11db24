// Package store persists the small amount of state that has to survive
// between controller invocations: the current volume and the last station
// that was started successfully.
//
// Every value lives in its own flat file. Reads of a missing or unreadable
// file report "absent" instead of an error so first-run behavior degrades
// gracefully; writes replace the whole value.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const (
	volumeFile  = "volume"
	stationFile = "station_recent"
)

// Store is the state contract the controller and supervisor depend on.
type Store interface {
	ReadVolume() (int, bool)
	WriteVolume(v int) error
	ReadLastStation() (string, bool)
	WriteLastStation(id string) error
}

// VolumeStore is the subset of Store the player supervisor needs.
type VolumeStore interface {
	ReadVolume() (int, bool)
	WriteVolume(v int) error
}

// FileStore keeps each value in a file under Dir.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// Verify FileStore implements Store at compile time.
var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir on fs. A nil fs means the OS filesystem.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, dir: dir}
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

// Init creates the state directory if needed.
func (s *FileStore) Init() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}

// ReadVolume returns the persisted volume, or false when none is stored.
func (s *FileStore) ReadVolume() (int, bool) {
	raw, ok := s.read(volumeFile)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// WriteVolume replaces the persisted volume.
func (s *FileStore) WriteVolume(v int) error {
	return s.write(volumeFile, strconv.Itoa(v))
}

// ReadLastStation returns the last successfully started station.
func (s *FileStore) ReadLastStation() (string, bool) {
	raw, ok := s.read(stationFile)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

// WriteLastStation replaces the last started station.
func (s *FileStore) WriteLastStation(id string) error {
	return s.write(stationFile, id)
}

func (s *FileStore) read(name string) (string, bool) {
	b, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
	if err != nil {
		return "", false
	}
	return strings.TrimRightFunc(string(b), isSpace), true
}

// write replaces name atomically: temp file in the same dir, then rename.
func (s *FileStore) write(name, value string) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	f, err := afero.TempFile(s.fs, s.dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	tmp := f.Name()

	if _, err := f.WriteString(value); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := s.fs.Chmod(tmp, 0o644); err != nil && !os.IsNotExist(err) {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
