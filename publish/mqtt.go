// Package publish forwards session summaries to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"coach/aggregate"
	"coach/log"
)

var errNotConnected = errors.New("mqtt not connected")

type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

type envelope struct {
	SessionID string `json:"session_id"`
	*aggregate.Summary
}

// MQTT publishes each summary as JSON to <prefix>/<session>/summary.
type MQTT struct {
	opts   Options
	client mqtt.Client

	mu        sync.Mutex
	connected bool
	published uint64
	errors    uint64
}

func NewMQTT(opts Options) *MQTT {
	m := &MQTT{opts: opts}
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(2 * time.Second)
	co.SetMaxReconnectInterval(30 * time.Second)
	co.OnConnect = func(mqtt.Client) {
		m.setConnected(true)
		log.Info("mqtt connected to " + opts.Broker)
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.setConnected(false)
		log.Warnf("mqtt connection lost: %v", err)
	}
	m.client = mqtt.NewClient(co)
	return m
}

// newWithClient wraps an existing client. Used by tests.
func newWithClient(opts Options, c mqtt.Client) *MQTT {
	return &MQTT{opts: opts, client: c, connected: c.IsConnected()}
}

func (m *MQTT) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	m.setConnected(true)
	return nil
}

func (m *MQTT) Topic(sessionID string) string {
	return strings.TrimSuffix(m.opts.TopicPrefix, "/") + "/" + sessionID + "/summary"
}

func (m *MQTT) Publish(sessionID string, sum *aggregate.Summary) error {
	if !m.isConnected() {
		m.fail()
		return errNotConnected
	}
	payload, err := json.Marshal(envelope{SessionID: sessionID, Summary: sum})
	if err != nil {
		m.fail()
		return fmt.Errorf("marshal summary: %w", err)
	}
	topic := m.Topic(sessionID)
	token := m.client.Publish(topic, m.opts.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		m.fail()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		m.fail()
		return fmt.Errorf("publish failed: %w", err)
	}
	m.mu.Lock()
	m.published++
	m.mu.Unlock()
	log.Debugf("summary published to %s (%d bytes)", topic, len(payload))
	return nil
}

func (m *MQTT) Disconnect() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	m.setConnected(false)
}

func (m *MQTT) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Connected: m.connected, Published: m.published, Errors: m.errors}
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MQTT) isConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MQTT) fail() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}
