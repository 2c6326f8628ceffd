package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/vkget/vk-archive-downloader/internal/download"
)

// Settings keys for viper
const (
	KeyRootDir     = "root_dir"
	KeyDownloadDir = "download_dir"
	KeyForce       = "force"
	KeyMaxParallel = "max_parallel_downloads"
	KeyRetryLimit  = "retry_limit"
	KeyRetryDelay  = "retry_delay"
	KeyHTTPTimeout = "http_timeout"
	KeyUserAgent   = "user_agent"
)

// Default values
const (
	DefaultDownloadDir = "downloads"
)

// Environment and config file constants
const (
	EnvPrefix      = "VKARC"
	ConfigFileName = "vk-archive-downloader"
	ConfigFileType = "yaml"
)

// Settings manages application configuration
type Settings struct {
	v *viper.Viper
}

// NewSettings creates a new settings manager on top of the given viper
// instance and wires environment overrides
func NewSettings(v *viper.Viper) *Settings {
	s := &Settings{v: v}
	s.v.SetEnvPrefix(EnvPrefix)
	s.v.AutomaticEnv()
	s.setDefaults()
	return s
}

// setDefaults registers fallback values for all known keys
func (s *Settings) setDefaults() {
	s.v.SetDefault(KeyForce, false)
	s.v.SetDefault(KeyMaxParallel, download.DefaultMaxParallel)
	s.v.SetDefault(KeyRetryLimit, download.DefaultRetryLimit)
	s.v.SetDefault(KeyRetryDelay, download.DefaultRetryDelay)
	s.v.SetDefault(KeyHTTPTimeout, download.DefaultHTTPTimeout)
	s.v.SetDefault(KeyUserAgent, download.DefaultUserAgent)
}

// LoadConfigFile reads an optional YAML config. A missing default file is
// fine; an explicitly requested file must exist.
func (s *Settings) LoadConfigFile(path string) error {
	if path != "" {
		s.v.SetConfigFile(path)
		if err := s.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	s.v.SetConfigName(ConfigFileName)
	s.v.SetConfigType(ConfigFileType)
	s.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		s.v.AddConfigPath(home)
	}
	if err := s.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Validate checks that required settings are present
func (s *Settings) Validate() error {
	if s.GetRootDirectory() == "" {
		return fmt.Errorf("root directory is required (--root-dir flag, %s_%s env or config file)", EnvPrefix, "ROOT_DIR")
	}
	return nil
}

// GetRootDirectory returns the archive root directory
func (s *Settings) GetRootDirectory() string {
	return s.v.GetString(KeyRootDir)
}

// SetRootDirectory sets the archive root directory
func (s *Settings) SetRootDirectory(dir string) {
	s.v.Set(KeyRootDir, dir)
}

// GetDownloadDirectory returns the configured download directory
func (s *Settings) GetDownloadDirectory() string {
	dir := s.v.GetString(KeyDownloadDir)
	if dir == "" {
		s.SetDownloadDirectory(DefaultDownloadDir)
		return DefaultDownloadDir
	}
	return dir
}

// SetDownloadDirectory sets the download directory
func (s *Settings) SetDownloadDirectory(dir string) {
	s.v.Set(KeyDownloadDir, dir)
}

// GetForce returns whether existing files should be re-downloaded
func (s *Settings) GetForce() bool {
	return s.v.GetBool(KeyForce)
}

// SetForce sets whether existing files should be re-downloaded
func (s *Settings) SetForce(force bool) {
	s.v.Set(KeyForce, force)
}

// GetMaxParallelDownloads returns the maximum number of parallel downloads
func (s *Settings) GetMaxParallelDownloads() int {
	value := s.v.GetInt(KeyMaxParallel)
	if value <= 0 {
		s.SetMaxParallelDownloads(download.DefaultMaxParallel)
		return download.DefaultMaxParallel
	}
	if value > download.MaxParallel {
		return download.MaxParallel
	}
	return value
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads
func (s *Settings) SetMaxParallelDownloads(count int) {
	if count < download.MinParallel {
		count = download.MinParallel
	}
	if count > download.MaxParallel {
		count = download.MaxParallel
	}
	s.v.Set(KeyMaxParallel, count)
}

// GetRetryLimit returns the number of attempts per download
func (s *Settings) GetRetryLimit() int {
	value := s.v.GetInt(KeyRetryLimit)
	if value < 1 {
		return download.DefaultRetryLimit
	}
	return value
}

// SetRetryLimit sets the number of attempts per download
func (s *Settings) SetRetryLimit(limit int) {
	if limit < 1 {
		limit = 1
	}
	s.v.Set(KeyRetryLimit, limit)
}

// GetRetryDelay returns the base delay between retry attempts
func (s *Settings) GetRetryDelay() time.Duration {
	value := s.v.GetDuration(KeyRetryDelay)
	if value <= 0 {
		return download.DefaultRetryDelay
	}
	return value
}

// GetHTTPTimeout returns the per-request timeout
func (s *Settings) GetHTTPTimeout() time.Duration {
	value := s.v.GetDuration(KeyHTTPTimeout)
	if value <= 0 {
		return download.DefaultHTTPTimeout
	}
	return value
}

// GetUserAgent returns the User-Agent header sent with requests
func (s *Settings) GetUserAgent() string {
	ua := s.v.GetString(KeyUserAgent)
	if ua == "" {
		return download.DefaultUserAgent
	}
	return ua
}
