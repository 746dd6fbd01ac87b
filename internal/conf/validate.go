// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateAudioSettings,
		validateBirdNETSettings,
		validateFilterSettings,
		validateOutputSettings,
		validateAutoCommitSettings,
		validateWebServerSettings,
		validateMQTTSettings,
		validateStationSettings,
		validateNotifySettings,
		validateTelemetrySettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAudioSettings(s *Settings) []string {
	var errs []string

	if s.Audio.WindowSeconds < CaptureLength {
		errs = append(errs, fmt.Sprintf("audio.windowseconds must be at least %d, got %d", CaptureLength, s.Audio.WindowSeconds))
	}
	if s.Audio.QueueSize < 1 {
		errs = append(errs, "audio.queuesize must be at least 1")
	}
	if s.Audio.Recording.Enabled && s.Audio.Recording.Path == "" {
		errs = append(errs, "audio.recording.path is required when recording is enabled")
	}
	if s.Audio.Snippets.Enabled {
		if s.Audio.Snippets.Path == "" {
			errs = append(errs, "audio.snippets.path is required when snippets are enabled")
		}
		switch s.Audio.Snippets.NameFormat {
		case NameFormatTimestamped, NameFormatSpecies:
		default:
			errs = append(errs, fmt.Sprintf("audio.snippets.nameformat must be %q or %q, got %q",
				NameFormatTimestamped, NameFormatSpecies, s.Audio.Snippets.NameFormat))
		}
	}

	return errs
}

func validateBirdNETSettings(s *Settings) []string {
	var errs []string

	if s.BirdNET.Sensitivity < 0.5 || s.BirdNET.Sensitivity > 1.5 {
		errs = append(errs, "birdnet.sensitivity must be between 0.5 and 1.5")
	}
	if s.BirdNET.Overlap < 0 || s.BirdNET.Overlap > 2.9 {
		errs = append(errs, "birdnet.overlap must be between 0 and 2.9")
	}
	if s.BirdNET.Threads < 0 {
		errs = append(errs, "birdnet.threads must not be negative")
	}
	if s.BirdNET.MinConfidence < 0 || s.BirdNET.MinConfidence > 1 {
		errs = append(errs, "birdnet.minconfidence must be between 0 and 1")
	}
	if s.BirdNET.MaxResults < 1 {
		errs = append(errs, "birdnet.maxresults must be at least 1")
	}

	return errs
}

func validateFilterSettings(s *Settings) []string {
	var errs []string

	if s.Filter.Threshold < 0 || s.Filter.Threshold > 1 {
		errs = append(errs, "filter.threshold must be between 0 and 1")
	}
	if s.Filter.DashboardThreshold < 0 || s.Filter.DashboardThreshold > 1 {
		errs = append(errs, "filter.dashboardthreshold must be between 0 and 1")
	}
	for _, label := range append(append([]string{}, s.Filter.HumanLabels...), s.Filter.Exclude...) {
		if strings.TrimSpace(label) == "" {
			errs = append(errs, "filter label lists must not contain empty entries")
			break
		}
	}

	return errs
}

func validateOutputSettings(s *Settings) []string {
	var errs []string

	if s.Output.CSV.Path == "" {
		errs = append(errs, "output.csv.path is required")
	}
	if s.Output.SQLite.Enabled && s.Output.SQLite.Path == "" {
		errs = append(errs, "output.sqlite.path is required when the sqlite mirror is enabled")
	}
	if s.Output.MySQL.Enabled && s.Output.MySQL.DSN == "" {
		errs = append(errs, "output.mysql.dsn is required when the mysql mirror is enabled")
	}

	return errs
}

func validateAutoCommitSettings(s *Settings) []string {
	if !s.AutoCommit.Enabled {
		return nil
	}

	var errs []string
	if s.AutoCommit.Minute < 0 || s.AutoCommit.Minute > 59 {
		errs = append(errs, "autocommit.minute must be between 0 and 59")
	}
	if s.AutoCommit.PollInterval <= 0 {
		errs = append(errs, "autocommit.pollinterval must be positive")
	}
	if s.AutoCommit.GitBinary == "" {
		errs = append(errs, "autocommit.gitbinary is required")
	}
	return errs
}

func validateWebServerSettings(s *Settings) []string {
	if !s.WebServer.Enabled {
		return nil
	}

	var errs []string
	if _, _, err := net.SplitHostPort(s.WebServer.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("webserver.listen %q is not a host:port address", s.WebServer.Listen))
	}
	if s.WebServer.RefreshSeconds < 0 {
		errs = append(errs, "webserver.refreshseconds must not be negative")
	}
	if s.WebServer.Recent < 1 || s.WebServer.TopSpecies < 1 {
		errs = append(errs, "webserver.recent and webserver.topspecies must be at least 1")
	}
	if s.WebServer.HeatmapDays < 1 || s.WebServer.HeatmapDays > 366 {
		errs = append(errs, "webserver.heatmapdays must be between 1 and 366")
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}

	var errs []string
	if u, err := url.Parse(s.MQTT.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker %q is not a valid broker URL", s.MQTT.Broker))
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when mqtt is enabled")
	}
	return errs
}

func validateStationSettings(s *Settings) []string {
	var errs []string
	if s.Main.Latitude < -90 || s.Main.Latitude > 90 {
		errs = append(errs, "main.latitude must be between -90 and 90")
	}
	if s.Main.Longitude < -180 || s.Main.Longitude > 180 {
		errs = append(errs, "main.longitude must be between -180 and 180")
	}
	return errs
}

func validateNotifySettings(s *Settings) []string {
	if !s.Notify.Enabled {
		return nil
	}

	var errs []string
	if len(s.Notify.URLs) == 0 {
		errs = append(errs, "notify.urls needs at least one URL when notify is enabled")
	}
	if s.Notify.Timeout < 0 {
		errs = append(errs, "notify.timeout must not be negative")
	}
	return errs
}

func validateTelemetrySettings(s *Settings) []string {
	sentry := s.Telemetry.Sentry
	if !sentry.Enabled {
		return nil
	}

	var errs []string
	if u, err := url.Parse(sentry.DSN); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "telemetry.sentry.dsn must be a valid DSN when sentry is enabled")
	}
	if sentry.SampleRate < 0 || sentry.SampleRate > 1 {
		errs = append(errs, "telemetry.sentry.samplerate must be between 0 and 1")
	}
	return errs
}
