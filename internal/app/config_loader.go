package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/yourusername/chapterd/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.chapterd")
		v.AddConfigPath("/etc/chapterd")
	}

	// CHAPTERD_DOWNLOAD_BASE_DIR overrides download.base_dir
	v.SetEnvPrefix("CHAPTERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys makes AutomaticEnv see keys that are absent from the config file
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port",
		"download.base_dir", "download.logs_dir", "download.as_archive", "download.max_tries",
		"download.retry_delay", "download.dequeue_policy", "download.progress_interval", "download.auto_start",
		"queue.database_path", "queue.restore_on_start",
		"notification.enabled", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	} {
		_ = v.BindEnv(key)
	}
}

func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}
	return os.ExpandEnv(path)
}

func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Download.MaxTries < 1 {
		return fmt.Errorf("max tries must be at least 1")
	}

	if config.Download.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	switch config.Download.DequeuePolicy {
	case domain.DequeueIgnore, domain.DequeueCancel:
	case "":
		config.Download.DequeuePolicy = domain.DequeueIgnore
	default:
		return fmt.Errorf("unknown dequeue policy: %s", config.Download.DequeuePolicy)
	}

	if config.Queue.DatabasePath == "" {
		return fmt.Errorf("queue database path not configured")
	}

	for id, source := range config.Sources {
		if source.BaseURL == "" {
			return fmt.Errorf("source %s has no base_url", id)
		}
		if source.RequestsPerSecond < 0 {
			return fmt.Errorf("source %s has a negative requests_per_second", id)
		}
		if source.MaxPageBytes < 0 {
			return fmt.Errorf("source %s has a negative max_page_bytes", id)
		}
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig writes configuration as YAML using the same keys LoadConfig reads
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server.host", config.Server.Host)
	v.Set("server.port", config.Server.Port)

	v.Set("download.base_dir", config.Download.BaseDir)
	v.Set("download.logs_dir", config.Download.LogsDir)
	v.Set("download.as_archive", config.Download.AsArchive)
	v.Set("download.max_tries", config.Download.MaxTries)
	v.Set("download.retry_delay", config.Download.RetryDelay.String())
	v.Set("download.dequeue_policy", string(config.Download.DequeuePolicy))
	v.Set("download.progress_interval", config.Download.ProgressInterval.String())
	v.Set("download.auto_start", config.Download.AutoStart)

	v.Set("queue.database_path", config.Queue.DatabasePath)
	v.Set("queue.restore_on_start", config.Queue.RestoreOnStart)

	for id, source := range config.Sources {
		v.Set("sources."+id+".base_url", source.BaseURL)
		v.Set("sources."+id+".requests_per_second", source.RequestsPerSecond)
		v.Set("sources."+id+".timeout", source.Timeout.String())
		v.Set("sources."+id+".max_page_bytes", source.MaxPageBytes)
	}

	v.Set("notification.enabled", config.Notification.Enabled)
	v.Set("notification.method", config.Notification.Method)

	v.Set("logging.level", config.Logging.Level)
	v.Set("logging.format", config.Logging.Format)
	v.Set("logging.output_path", config.Logging.OutputPath)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
