package domain

import "time"

// DequeuePolicy decides what happens to a job that is dequeued while it is
// being downloaded
type DequeuePolicy string

const (
	// DequeueIgnore leaves a running job alone; it removes itself when done
	DequeueIgnore DequeuePolicy = "ignore"
	// DequeueCancel removes a running job and makes the worker abandon it
	DequeueCancel DequeuePolicy = "cancel"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig            `mapstructure:"server"`
	Download     DownloadConfig          `mapstructure:"download"`
	Queue        QueueConfig             `mapstructure:"queue"`
	Sources      map[string]SourceConfig `mapstructure:"sources"`
	Notification NotificationConfig      `mapstructure:"notification"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir          string        `mapstructure:"base_dir"`
	LogsDir          string        `mapstructure:"logs_dir"`
	AsArchive        bool          `mapstructure:"as_archive"`
	MaxTries         int           `mapstructure:"max_tries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	DequeuePolicy    DequeuePolicy `mapstructure:"dequeue_policy"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	AutoStart        bool          `mapstructure:"auto_start"`
}

// QueueConfig contains queue persistence configuration
type QueueConfig struct {
	DatabasePath   string `mapstructure:"database_path"`
	RestoreOnStart bool   `mapstructure:"restore_on_start"`
}

// SourceConfig describes one content source gateway
type SourceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxPageBytes      int64         `mapstructure:"max_page_bytes"` // 0 uses DefaultMaxPageBytes
}

// DefaultMaxPageBytes caps the size of one fetched page image
const DefaultMaxPageBytes int64 = 32 << 20

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 4567,
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/.chapterd/downloads",
			LogsDir:          "$HOME/.chapterd/logs",
			AsArchive:        false,
			MaxTries:         MaxTries,
			RetryDelay:       0,
			DequeuePolicy:    DequeueIgnore,
			ProgressInterval: 250 * time.Millisecond,
			AutoStart:        true,
		},
		Queue: QueueConfig{
			DatabasePath:   "$HOME/.chapterd/library.db",
			RestoreOnStart: true,
		},
		Sources: map[string]SourceConfig{},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
