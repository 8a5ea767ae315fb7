// SPDX-License-Identifier: MIT
//
// Package mqtt publishes beat readings to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"tempo/internal/beat"
	applog "tempo/internal/log"
	"tempo/internal/transport"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = time.Second
	disconnectQuiesce = 250 // Milliseconds to let in-flight publishes finish
)

// Config holds the broker connection settings.
type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
}

// Transport implements transport.Transport by publishing each reading that
// carries beats as JSON, QoS 0.
type Transport struct {
	client    paho.Client
	topic     string
	closeOnce sync.Once
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport connects to the broker. The client reconnects on its own
// after a lost connection; readings sent while disconnected fail.
func NewTransport(cfg Config) (*Transport, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid broker URL %q", cfg.Broker)
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(func(paho.Client) {
		applog.Infof("MQTT: Connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		applog.Warnf("MQTT: Connection to %s lost: %v", cfg.Broker, err)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, err)
	}

	return newTransport(client, cfg.Topic), nil
}

func newTransport(client paho.Client, topic string) *Transport {
	return &Transport{client: client, topic: topic}
}

// Send publishes r if it carries beats. Beat-less readings arrive at the poll
// rate and are skipped.
func (t *Transport) Send(r beat.Reading) error {
	if r.Beats == 0 {
		return nil
	}
	if !t.client.IsConnectionOpen() {
		return errors.New("not connected to MQTT broker")
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	token := t.client.Publish(t.topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", t.topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.client.Disconnect(disconnectQuiesce)
	})
	return nil
}
