// Package prefs persists the user's last confirmed device choices.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
)

// Record holds saved device ids. An empty field means "no saved choice".
type Record struct {
	CameraID  string `toml:"camera_id,omitempty"`
	MicID     string `toml:"mic_id,omitempty"`
	SpeakerID string `toml:"speaker_id,omitempty"`
}

// IsEmpty reports whether no field is set.
func (r Record) IsEmpty() bool {
	return r.CameraID == "" && r.MicID == "" && r.SpeakerID == ""
}

// Merge returns r with every non-empty field of update applied.
func (r Record) Merge(update Record) Record {
	if update.CameraID != "" {
		r.CameraID = update.CameraID
	}
	if update.MicID != "" {
		r.MicID = update.MicID
	}
	if update.SpeakerID != "" {
		r.SpeakerID = update.SpeakerID
	}
	return r
}

// Store reads and writes a Record as TOML. Saves are merges performed under
// an exclusive file lock, so concurrent writers never drop each other's
// fields.
type Store struct {
	path string
	lock *flock.Flock
}

// DefaultPath returns ~/.local/share/precall/devices.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "precall", "devices.toml")
}

// NewStore creates a Store at path. An empty path uses DefaultPath.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Load returns the saved record, or an empty record if none exists.
func (s *Store) Load() (Record, error) {
	return readRecord(s.path)
}

// Save merges partial into the saved record.
func (s *Store) Save(partial Record) error {
	if partial.IsEmpty() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock preferences: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	current, err := readRecord(s.path)
	if err != nil {
		return err
	}
	return writeRecord(s.path, current.Merge(partial))
}

func readRecord(path string) (Record, error) {
	var rec Record
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return rec, nil
	}
	if err != nil {
		return rec, err
	}
	if _, err := toml.DecodeFile(path, &rec); err != nil {
		return Record{}, fmt.Errorf("decode preferences %s: %w", path, err)
	}
	return rec, nil
}

// writeRecord writes atomically: a temp file is renamed into place so a
// crash mid-write cannot corrupt the existing record.
func writeRecord(path string, rec Record) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".precall-devices-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(rec); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
