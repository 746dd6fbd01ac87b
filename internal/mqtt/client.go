package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/observability/metrics"
)

// client implements the Client interface over paho.
type client struct {
	config  Config
	metrics *metrics.MQTTMetrics
	log     logger.Logger

	// newClient builds the paho client; replaced in tests.
	newClient func(*paho.ClientOptions) paho.Client

	mu       sync.Mutex
	internal paho.Client
}

// NewClient creates a client for cfg. Nothing is dialled until Connect.
func NewClient(cfg Config, m *metrics.MQTTMetrics) Client {
	return &client{
		config:    cfg,
		metrics:   m,
		log:       GetLogger(),
		newClient: paho.NewClient,
	}
}

// Connect resolves the broker host and connects with auto reconnect
// enabled, so a broker that goes away later is retried in the background.
func (c *client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return c.connError(fmt.Errorf("invalid broker URL %q", c.config.Broker))
	}

	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnect)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.mu.Lock()
	c.internal = c.newClient(opts)
	internal := c.internal
	c.mu.Unlock()

	token := internal.Connect()
	if err := wait(ctx, token, c.config.ConnectTimeout); err != nil {
		return c.connError(err)
	}
	return nil
}

// Publish sends payload to topic with the configured QoS.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		err := fmt.Errorf("not connected to MQTT broker")
		c.metrics.RecordPublish(len(payload), 0, err)
		return c.publishError(err, topic)
	}

	start := time.Now()
	token := internal.Publish(topic, c.config.QoS, c.config.Retain, payload)
	err := wait(ctx, token, c.config.PublishTimeout)
	c.metrics.RecordPublish(len(payload), time.Since(start), err)
	if err != nil {
		return c.publishError(err, topic)
	}

	c.log.Debug("published",
		logger.String("topic", topic),
		logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	internal := c.internal
	c.internal = nil
	c.mu.Unlock()

	if internal == nil {
		return
	}
	internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.metrics.UpdateConnectionStatus(false)
	c.log.Info("disconnected from MQTT broker", logger.String("broker", c.config.Broker))
}

func (c *client) onConnect(_ paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.metrics.UpdateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
}

// wait blocks until token completes, ctx is done or timeout passes.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}

func (c *client) connError(err error) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Context("broker", c.config.Broker).
		Build()
}

func (c *client) publishError(err error, topic string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}
