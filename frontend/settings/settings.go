// Package settings persists the client-side session state: the creator id,
// the selected model and the debug flag.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"shaderland/backend/shared"
)

// Keys under which settings are stored.
const (
	KeyUserID        = "userId"
	KeySelectedModel = "selectedModel"
	KeyDebugMode     = "debugMode"
)

// Settings is the explicit session state passed to whatever needs it.
type Settings struct {
	UserID        string `json:"userId"`
	SelectedModel string `json:"selectedModel"`
	DebugMode     bool   `json:"debugMode"`
}

// Store is a string key-value store.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Load reads the settings, generating and persisting a creator id the first
// time. Unknown models fall back to the default.
func Load(store Store, ids shared.IDGenerator) (Settings, error) {
	if ids == nil {
		ids = shared.DefaultIDGenerator
	}

	var s Settings
	userID, ok, err := store.Get(KeyUserID)
	if err != nil {
		return s, fmt.Errorf("read %s: %w", KeyUserID, err)
	}
	if !ok || userID == "" {
		userID = ids()
		if err := store.Set(KeyUserID, userID); err != nil {
			return s, fmt.Errorf("save %s: %w", KeyUserID, err)
		}
	}
	s.UserID = userID

	model, ok, err := store.Get(KeySelectedModel)
	if err != nil {
		return s, fmt.Errorf("read %s: %w", KeySelectedModel, err)
	}
	if _, known := shared.Backends[model]; ok && known {
		s.SelectedModel = model
	} else {
		s.SelectedModel = shared.DefaultModel
	}

	debug, ok, err := store.Get(KeyDebugMode)
	if err != nil {
		return s, fmt.Errorf("read %s: %w", KeyDebugMode, err)
	}
	if ok {
		s.DebugMode, _ = strconv.ParseBool(debug)
	}
	return s, nil
}

// SetModel validates and persists the selected model.
func SetModel(store Store, model string) error {
	if _, ok := shared.Backends[model]; !ok {
		return &shared.UnsupportedModelError{Model: model}
	}
	return store.Set(KeySelectedModel, model)
}

// SetDebugMode persists the debug flag.
func SetDebugMode(store Store, on bool) error {
	return store.Set(KeyDebugMode, strconv.FormatBool(on))
}

// MemoryStore keeps settings for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// FileStore keeps settings in a JSON object on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is settings.json under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "shaderland", "settings.json"), nil
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	data[key] = value
	return f.write(data)
}

func (f *FileStore) read() (map[string]string, error) {
	data := make(map[string]string)
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("settings file %s: %w", f.path, err)
	}
	return data, nil
}

// write replaces the file through a rename so a crash never leaves it half written.
func (f *FileStore) write(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".settings-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
