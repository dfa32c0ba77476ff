package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

// StoredSettings is the persisted shape of the settings file
type StoredSettings struct {
	// Provider is the last active provider id
	Provider string `toml:"provider"`

	// APIKeys maps provider id to credential
	APIKeys map[string]string `toml:"api_keys"`

	// Models maps provider id to the last selected model
	Models map[string]string `toml:"models"`
}

func emptySettings() StoredSettings {
	return StoredSettings{
		APIKeys: make(map[string]string),
		Models:  make(map[string]string),
	}
}

// FileStore keeps settings in memory and persists them to a TOML file.
// It is safe for concurrent use.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	data StoredSettings
}

// NewFileStore creates a store backed by path. Nothing is read until Load.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		path:   path,
		logger: logger,
		data:   emptySettings(),
	}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the settings file. A missing file leaves the store empty.
// A malformed file is ignored with a warning and the store is reset to defaults.
func (s *FileStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.reset()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	loaded := emptySettings()
	if _, err := toml.Decode(string(raw), &loaded); err != nil {
		s.logger.Warn("ignoring malformed settings file",
			zap.String("path", s.path),
			zap.Error(err))
		s.reset()
		return nil
	}
	if loaded.APIKeys == nil {
		loaded.APIKeys = make(map[string]string)
	}
	if loaded.Models == nil {
		loaded.Models = make(map[string]string)
	}

	s.mu.Lock()
	s.data = loaded
	s.mu.Unlock()

	s.logger.Debug("settings loaded",
		zap.String("path", s.path),
		zap.Int("providers", len(loaded.APIKeys)))
	return nil
}

// Save writes the settings atomically with owner-only permissions
func (s *FileStore) Save() error {
	s.mu.RLock()
	var buf bytes.Buffer
	err := toml.NewEncoder(&buf).Encode(s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set settings file permissions: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	s.logger.Debug("settings saved", zap.String("path", s.path))
	return nil
}

// Credential returns the stored credential for a provider
func (s *FileStore) Credential(providerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.APIKeys[providerID]
	return v, ok && strings.TrimSpace(v) != ""
}

// PreferredModel returns the last selected model for a provider
func (s *FileStore) PreferredModel(providerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.Models[providerID]
	return v, ok && strings.TrimSpace(v) != ""
}

// SetCredential stores a trimmed credential. An empty credential is kept as
// blank so the provider counts as unconfigured.
func (s *FileStore) SetCredential(providerID, credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.APIKeys[providerID] = strings.TrimSpace(credential)
}

// SetPreferredModel stores the selected model for a provider
func (s *FileStore) SetPreferredModel(providerID, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Models[providerID] = model
}

// ActiveProvider returns the last active provider id, or "" if none
func (s *FileStore) ActiveProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Provider
}

// SetActiveProvider records the active provider id
func (s *FileStore) SetActiveProvider(providerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Provider = providerID
}

// Snapshot returns a copy of the current settings
func (s *FileStore) Snapshot() StoredSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := StoredSettings{
		Provider: s.data.Provider,
		APIKeys:  make(map[string]string, len(s.data.APIKeys)),
		Models:   make(map[string]string, len(s.data.Models)),
	}
	for k, v := range s.data.APIKeys {
		out.APIKeys[k] = v
	}
	for k, v := range s.data.Models {
		out.Models[k] = v
	}
	return out
}

func (s *FileStore) reset() {
	s.mu.Lock()
	s.data = emptySettings()
	s.mu.Unlock()
}
