package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings is the persisted application configuration.
type Settings struct {
	Server         ServerSettings         `json:"server"`
	Storage        StorageSettings        `json:"storage"`
	Metadata       MetadataSettings       `json:"metadata"`
	Activity       ActivitySettings       `json:"activity"`
	Log            LogConfig              `json:"log"`
	ScheduledTasks ScheduledTasksSettings `json:"scheduledTasks"`
}

// ServerSettings controls the HTTP listener.
type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StorageSettings selects the tree-store backend.
type StorageSettings struct {
	// Backend is "sqlite" or "file".
	Backend string `json:"backend"`
	// Directory holds the store database/file plus user profiles.
	Directory string `json:"directory"`
}

// MetadataSettings configures the external series metadata API.
type MetadataSettings struct {
	BaseURL    string `json:"baseUrl,omitempty"`
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
}

// ActivitySettings configures the optional watch-event tracker.
type ActivitySettings struct {
	Endpoint string `json:"endpoint,omitempty"`
}

// LogConfig controls file logging and rotation.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`    // megabytes per file
	MaxBackups int    `json:"maxBackups"` // old files to keep
	MaxAge     int    `json:"maxAge"`     // days
	Compress   bool   `json:"compress"`
}

// ScheduledTaskType identifies what a task does.
type ScheduledTaskType string

const (
	ScheduledTaskTypeCompletedScan ScheduledTaskType = "completed_series_scan"
)

// ScheduledTaskFrequency defines how often a task runs
type ScheduledTaskFrequency string

const (
	ScheduledTaskFrequency15Min   ScheduledTaskFrequency = "15min"
	ScheduledTaskFrequency30Min   ScheduledTaskFrequency = "30min"
	ScheduledTaskFrequencyHourly  ScheduledTaskFrequency = "hourly"
	ScheduledTaskFrequency6Hours  ScheduledTaskFrequency = "6hours"
	ScheduledTaskFrequency12Hours ScheduledTaskFrequency = "12hours"
	ScheduledTaskFrequencyDaily   ScheduledTaskFrequency = "daily"
)

// ScheduledTaskStatus represents the last run status
type ScheduledTaskStatus string

const (
	ScheduledTaskStatusPending ScheduledTaskStatus = "pending"
	ScheduledTaskStatusRunning ScheduledTaskStatus = "running"
	ScheduledTaskStatusSuccess ScheduledTaskStatus = "success"
	ScheduledTaskStatusError   ScheduledTaskStatus = "error"
)

// ScheduledTask represents a single scheduled task configuration
type ScheduledTask struct {
	ID         string                 `json:"id"`
	Type       ScheduledTaskType      `json:"type"`
	Name       string                 `json:"name"`
	Enabled    bool                   `json:"enabled"`
	Frequency  ScheduledTaskFrequency `json:"frequency"`
	Config     map[string]string      `json:"config"` // Task-specific config (e.g. profileId)
	LastRunAt  *time.Time             `json:"lastRunAt,omitempty"`
	LastStatus ScheduledTaskStatus    `json:"lastStatus"`
	LastError  string                 `json:"lastError,omitempty"`
	ItemsFound int                    `json:"itemsFound,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// ScheduledTasksSettings contains all scheduled task configurations
type ScheduledTasksSettings struct {
	Tasks                []ScheduledTask `json:"tasks"`
	CheckIntervalSeconds int             `json:"checkIntervalSeconds"` // How often scheduler checks for due tasks (default: 60)
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 7878},
		Storage:  StorageSettings{Backend: "sqlite", Directory: "data"},
		Metadata: MetadataSettings{TMDBAPIKey: "", Language: "en"},
		Activity: ActivitySettings{},
		Log: LogConfig{
			File:       "data/logs/backend.log",
			Level:      "info",
			MaxSize:    50, // 50 MB per file
			MaxBackups: 3,  // keep 3 old files
			MaxAge:     7,  // 7 days
			Compress:   true,
		},
		ScheduledTasks: ScheduledTasksSettings{
			Tasks: []ScheduledTask{
				{
					ID:        "completed-series-scan",
					Type:      ScheduledTaskTypeCompletedScan,
					Name:      "Completed series scan",
					Enabled:   true,
					Frequency: ScheduledTaskFrequency6Hours,
					Config:    map[string]string{},
					CreatedAt: time.Now().UTC(),
				},
			},
			CheckIntervalSeconds: 60,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir creates the directory holding the settings file.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		// create with defaults
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	// Backfill defaults for settings a pre-existing config may lack.
	if strings.TrimSpace(s.Storage.Backend) == "" {
		s.Storage.Backend = "sqlite"
	}
	if strings.TrimSpace(s.Storage.Directory) == "" {
		s.Storage.Directory = "data"
	}
	if strings.TrimSpace(s.Metadata.Language) == "" {
		s.Metadata.Language = "en"
	}
	if s.ScheduledTasks.CheckIntervalSeconds <= 0 {
		s.ScheduledTasks.CheckIntervalSeconds = 60
	}
	if len(s.ScheduledTasks.Tasks) == 0 {
		s.ScheduledTasks.Tasks = DefaultSettings().ScheduledTasks.Tasks
	}
	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = "info"
	}

	return s, nil
}

// Save writes settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
