package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// VideoSettings holds the negotiated video parameters the pipeline starts
// with before a host connects. A host's start-stream request overrides them
// for the session; ApplySession persists the last accepted values so the
// next boot resumes where the host left off.
type VideoSettings struct {
	Format  string `toml:"format" json:"format"`
	Width   int    `toml:"width" json:"width"`
	Height  int    `toml:"height" json:"height"`
	FPS     int    `toml:"fps" json:"fps"`
	Quality int    `toml:"quality,omitempty" json:"quality,omitempty"`
	Bitrate int    `toml:"bitrate,omitempty" json:"bitrate,omitempty"`

	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`
}

// SettingsFile is the on-disk shape of the settings store.
type SettingsFile struct {
	Version int           `toml:"version" json:"version"`
	Video   VideoSettings `toml:"video" json:"video"`
}

// SettingsStore persists video settings to a TOML file.
type SettingsStore struct {
	path string
	file *SettingsFile
}

// DefaultVideoSettings are used when no settings file exists.
func DefaultVideoSettings() VideoSettings {
	return VideoSettings{
		Format:  "mjpeg",
		Width:   1280,
		Height:  720,
		FPS:     30,
		Quality: 80,
	}
}

// NewSettingsStore creates a store backed by the given file path.
func NewSettingsStore(path string) *SettingsStore {
	if path == "" {
		path = "camnode.toml"
	}
	return &SettingsStore{
		path: path,
		file: &SettingsFile{
			Version: 1,
			Video:   DefaultVideoSettings(),
		},
	}
}

// Load reads the settings file. A missing file is not an error; the store
// keeps its defaults.
func (s *SettingsStore) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	if err := toml.Unmarshal(data, s.file); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}

	if s.file.Version == 0 {
		s.file.Version = 1
	}
	if s.file.Video.Width == 0 || s.file.Video.Height == 0 {
		s.file.Video = DefaultVideoSettings()
	}

	return nil
}

// Save writes the settings file, creating the directory if needed.
func (s *SettingsStore) Save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := toml.Marshal(s.file)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}

// Video returns the current video settings.
func (s *SettingsStore) Video() VideoSettings {
	return s.file.Video
}

// ApplySession records the parameters of an accepted streaming session and
// persists them as the new defaults.
func (s *SettingsStore) ApplySession(format string, width, height, fps int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid geometry %dx%d", width, height)
	}

	s.file.Video.Format = format
	s.file.Video.Width = width
	s.file.Video.Height = height
	s.file.Video.FPS = fps
	s.file.Video.UpdatedAt = time.Now()
	return s.Save()
}
