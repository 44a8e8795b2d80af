// Package session persists the bridge credential between invocations.
//
// The file holds exactly two meaningful lines: the credential issued by
// the bridge, then the bridge address. Further lines are ignored.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the conventional name of the session file.
const FileName = "bridge.cnf"

// ErrConfigFormat is returned when the session file exists but is malformed.
var ErrConfigFormat = errors.New("config file format invalid")

// Session is an authorized credential plus the address of the bridge that issued it.
type Session struct {
	Credential    string
	BridgeAddress string
}

// Valid reports whether both fields are set.
func (s Session) Valid() bool {
	return s.Credential != "" && s.BridgeAddress != ""
}

// Store loads and saves a Session at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the session file. A missing file yields an error matching
// os.ErrNotExist; a file with fewer than two lines, or an empty field,
// yields ErrConfigFormat.
func (s *Store) Load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Session{}, err
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) < 2 {
		return Session{}, fmt.Errorf("%s: %w", s.path, ErrConfigFormat)
	}

	sess := Session{Credential: lines[0], BridgeAddress: lines[1]}
	if !sess.Valid() {
		return Session{}, fmt.Errorf("%s: empty credential or address: %w", s.path, ErrConfigFormat)
	}
	return sess, nil
}

// Save writes the session, replacing any previous file. The content is
// written to a temporary file in the same directory and renamed over the
// target so a crash never leaves a truncated credential behind.
func (s *Store) Save(sess Session) error {
	if !sess.Valid() {
		return fmt.Errorf("refusing to save incomplete session: %w", ErrConfigFormat)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".bridge-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(sess.Credential + "\n" + sess.BridgeAddress); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set session file mode: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}
