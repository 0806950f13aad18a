// Package emitter publishes session lifecycle events to an MQTT broker so
// coaching dashboards can react to finished analyses without polling the
// API. The emitter is optional; a nil *MQTTEmitter is a no-op.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/formlab/squatview/internal/config"
	"github.com/formlab/squatview/internal/store"
)

// SessionEvent is the payload published when a session finishes analysis.
type SessionEvent struct {
	Event     string    `json:"event"` // analyzed, replayed, deleted
	SessionID string    `json:"session_id"`
	Instance  string    `json:"instance"`
	Source    string    `json:"source,omitempty"`
	Frames    int       `json:"frames,omitempty"`
	Reps      int       `json:"reps,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	At        time.Time `json:"at"`
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// MQTTEmitter publishes session events to an MQTT broker
type MQTTEmitter struct {
	cfg    *config.Config
	Client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg *config.Config) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes connection to the MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.MQTT.Broker))
	opts.SetClientID(e.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.MQTT.Broker,
			"client_id", e.cfg.InstanceID,
			"auto_reconnect", "enabled")
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.MQTT.Broker,
			"max_retry_interval", "30s")
	}

	e.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.MQTT.Broker)

	token := e.Client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()

	return nil
}

// PublishSessionEvent publishes a lifecycle event for a session. Nil
// receivers drop the event silently so callers never branch on whether
// the emitter is configured.
func (e *MQTTEmitter) PublishSessionEvent(event string, sess *store.Session) error {
	if e == nil {
		return nil
	}
	if !e.isConnected() {
		e.recordError()
		return fmt.Errorf("mqtt not connected")
	}

	ev := SessionEvent{
		Event:     event,
		SessionID: sess.ID,
		Instance:  e.cfg.InstanceID,
		Reps:      sess.Reps,
		Duration:  sess.Duration,
		At:        time.Now().UTC(),
	}
	if sess.Document != nil {
		ev.Source = sess.Document.Source
		ev.Frames = len(sess.Document.Frames)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		e.recordError()
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", e.cfg.MQTT.Topics.Sessions, event)
	qos := e.cfg.MQTT.QoS["sessions"]

	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.recordError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.recordError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("session event published",
		"topic", topic,
		"qos", qos,
		"size", len(payload),
	)

	return nil
}

// PublishHealth publishes a health message
func (e *MQTTEmitter) PublishHealth(payload []byte) error {
	if e == nil {
		return nil
	}
	if !e.isConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	topic := e.cfg.MQTT.Topics.Health
	qos := e.cfg.MQTT.QoS["health"]

	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}

	return token.Error()
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() error {
	if e == nil {
		return nil
	}
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}

	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()

	return nil
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64)
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) recordError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
