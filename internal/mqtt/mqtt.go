// Package mqtt publishes stored detections to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// Client defines the MQTT operations the publisher needs.
type Client interface {
	// Connect establishes the broker connection. Later drops are
	// reconnected automatically.
	Connect(ctx context.Context) error

	// Publish sends payload to topic and waits for the broker to
	// acknowledge it or for the publish timeout.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected reports whether the client currently has a connection.
	IsConnected() bool

	// Disconnect closes the connection.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // topic detections are published to
	Retain   bool   // true to retain messages at the broker
	QoS      byte

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnect      time.Duration // upper bound of the reconnect backoff
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		QoS:               1,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    5 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnect:      time.Minute,
	}
}

// ConfigFromSettings fills the defaults with the configured broker.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = clientID(settings.Main.Name)
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Topic = settings.MQTT.Topic
	cfg.Retain = settings.MQTT.Retain
	return cfg
}

func clientID(name string) string {
	if name == "" {
		return "birdnet-listener"
	}
	return "birdnet-listener-" + name
}

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
