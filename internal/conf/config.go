// config.go: settings struct for birdnet-listener and the functions that load it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdnet-listener/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings holds instance-wide settings.
type MainSettings struct {
	Name      string  `yaml:"name"`      // station name shown on the dashboard
	Latitude  float64 `yaml:"latitude"`  // station location for sun times, 0 and 0 disables them
	Longitude float64 `yaml:"longitude"` // station location for sun times
}

// FileLogSettings controls JSON log file output.
type FileLogSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Level   string `yaml:"level"`
}

// LoggingSettings controls the central logger.
type LoggingSettings struct {
	Level        string            `yaml:"level"`        // default level for all modules
	Timezone     string            `yaml:"timezone"`     // "Local", "UTC" or an IANA name
	Console      bool              `yaml:"console"`      // text output to stdout
	File         FileLogSettings   `yaml:"file"`         // JSON output to a file
	ModuleLevels map[string]string `yaml:"modulelevels"` // per-module level overrides
}

// RecordingSettings controls the daily raw recording.
type RecordingSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // directory for audio_<date>.wav
}

// SnippetSettings controls the per-detection audio clips.
type SnippetSettings struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	NameFormat string `yaml:"nameformat"` // "timestamped" or "species"
}

// AudioSettings contains settings for audio capture and windowing.
type AudioSettings struct {
	Source        string            `yaml:"source"`        // capture device name or id, "sysdefault" for the default device
	WindowSeconds int               `yaml:"windowseconds"` // length of one analysis window
	QueueSize     int               `yaml:"queuesize"`     // windows buffered between capture and classification
	Recording     RecordingSettings `yaml:"recording"`
	Snippets      SnippetSettings   `yaml:"snippets"`
}

// BirdNETConfig contains settings for the classifier.
type BirdNETConfig struct {
	ModelPath   string  `yaml:"modelpath"`   // path to the TFLite model
	LabelPath   string  `yaml:"labelpath"`   // path to the label file, one label per line
	Threads     int     `yaml:"threads"`     // interpreter threads, 0 for all cores
	Sensitivity float64 `yaml:"sensitivity"` // sigmoid sensitivity, 0.5 - 1.5
	Overlap     float64 `yaml:"overlap"`     // chunk overlap in seconds, 0 - 2.9
	// MinConfidence is the lowest score a label needs to be returned
	// for a chunk. The store threshold is applied later.
	MinConfidence float64 `yaml:"minconfidence"`
	MaxResults    int     `yaml:"maxresults"` // labels kept per chunk, highest first
}

// FilterSettings controls which detections are stored.
type FilterSettings struct {
	Threshold          float64  `yaml:"threshold"`          // minimum confidence to store
	HumanLabels        []string `yaml:"humanlabels"`        // human vocalization labels, never stored
	Exclude            []string `yaml:"exclude"`            // known non-bird and misclassified labels
	DashboardThreshold float64  `yaml:"dashboardthreshold"` // confidence cut used by filtered aggregates
}

// CSVSettings locates the detection store.
type CSVSettings struct {
	Path string `yaml:"path"`
}

// SQLiteSettings controls the optional SQLite mirror.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputSettings groups detection outputs.
type MySQLSettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"` // user:password@tcp(host:3306)/birdnet
}

type OutputSettings struct {
	CSV    CSVSettings    `yaml:"csv"`
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// AutoCommitSettings controls the hourly git snapshot of the detection store.
type AutoCommitSettings struct {
	Enabled      bool          `yaml:"enabled"`
	Minute       int           `yaml:"minute"`       // minute of the hour the commit fires on
	PollInterval time.Duration `yaml:"pollinterval"` // how often the clock is checked
	RepoDir      string        `yaml:"repodir"`      // git work tree, empty for the store's directory
	GitBinary    string        `yaml:"gitbinary"`
}

// WebServerSettings contains settings for the dashboard.
type WebServerSettings struct {
	Enabled        bool   `yaml:"enabled"`
	Listen         string `yaml:"listen"`
	RefreshSeconds int    `yaml:"refreshseconds"` // page auto refresh interval
	Recent         int    `yaml:"recent"`         // number of latest detections listed
	TopSpecies     int    `yaml:"topspecies"`     // number of species in the top list
	HeatmapDays    int    `yaml:"heatmapdays"`    // rows in the activity heatmap
}

// MQTTSettings contains settings for the detection publisher.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Retain   bool   `yaml:"retain"`
}

// TelemetrySettings controls the Prometheus endpoint.
type NotifySettings struct {
	Enabled bool          `yaml:"enabled"`
	URLs    []string      `yaml:"urls"`    // shoutrrr service URLs
	Timeout time.Duration `yaml:"timeout"` // per send timeout
}

type SentrySettings struct {
	Enabled     bool    `yaml:"enabled"`
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"samplerate"` // fraction of errors sent, 0 - 1
}

type TelemetrySettings struct {
	Enabled bool           `yaml:"enabled"` // Prometheus metrics on /metrics
	Sentry  SentrySettings `yaml:"sentry"`  // error reporting
}

// Settings contains all configuration options.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main       MainSettings       `yaml:"main"`
	Logging    LoggingSettings    `yaml:"logging"`
	Audio      AudioSettings      `yaml:"audio"`
	BirdNET    BirdNETConfig      `yaml:"birdnet"`
	Filter     FilterSettings     `yaml:"filter"`
	Output     OutputSettings     `yaml:"output"`
	AutoCommit AutoCommitSettings `yaml:"autocommit"`
	WebServer  WebServerSettings  `yaml:"webserver"`
	MQTT       MQTTSettings       `yaml:"mqtt"`
	Notify     NotifySettings     `yaml:"notify"`
	Telemetry  TelemetrySettings  `yaml:"telemetry"`
}

// WindowDuration returns the analysis window length.
func (s *Settings) WindowDuration() time.Duration {
	return time.Duration(s.Audio.WindowSeconds) * time.Second
}

// ConfigFile overrides the config search when set, typically from --config.
var ConfigFile string

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings()
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// unmarshalSettings decodes the current viper state and validates it.
func unmarshalSettings() (*Settings, error) {
	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper registers defaults, environment overrides and reads the config file.
func initViper() error {
	setDefaultConfig()

	viper.SetEnvPrefix("BIRDNET_LISTENER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if ConfigFile != "" {
		viper.SetConfigFile(ConfigFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", ConfigFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to dir and reads it back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded default configuration.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// MarshalYAML renders settings as YAML. Secrets are masked.
func MarshalYAML(settings *Settings) ([]byte, error) {
	const mask = "********"
	masked := *settings
	if masked.MQTT.Password != "" {
		masked.MQTT.Password = mask
	}
	if masked.Output.MySQL.DSN != "" {
		masked.Output.MySQL.DSN = mask
	}
	if masked.Telemetry.Sentry.DSN != "" {
		masked.Telemetry.Sentry.DSN = mask
	}
	if len(masked.Notify.URLs) > 0 {
		masked.Notify.URLs = make([]string, len(settings.Notify.URLs))
		for i := range masked.Notify.URLs {
			masked.Notify.URLs[i] = mask
		}
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}

// SaveYAMLConfig writes settings to configPath through a temporary file and rename.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
