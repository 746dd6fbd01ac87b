package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/birdnet-listener/internal/datastore"
)

// DetectionMessage is the JSON payload of one stored detection.
type DetectionMessage struct {
	Timestamp  string  `json:"timestamp"`
	Species    string  `json:"species"`
	Confidence float64 `json:"confidence"`
	Clip       string  `json:"clip"`
}

// NewDetectionMessage builds the payload for rec. The timestamp is
// RFC 3339 with the record's zone offset.
func NewDetectionMessage(rec datastore.Record, clip string) DetectionMessage {
	return DetectionMessage{
		Timestamp:  rec.Timestamp.Format(time.RFC3339),
		Species:    rec.Species,
		Confidence: rec.Confidence,
		Clip:       clip,
	}
}

// Publisher sends detections to a fixed topic.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher returns a publisher writing to topic through client.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// PublishDetection encodes rec and publishes it.
func (p *Publisher) PublishDetection(ctx context.Context, rec datastore.Record, clip string) error {
	payload, err := json.Marshal(NewDetectionMessage(rec, clip))
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topic, payload)
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	p.client.Disconnect()
}
